package logger

import "testing"

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"+8613800138000": "+86***8000",
		"13800138000":    "13***8000",
		"8000":           "***",
		"":               "",
	}
	for input, want := range cases {
		if got := MaskPhone(input); got != want {
			t.Errorf("MaskPhone(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"192.168.1.100": "192.168.*.*",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334": "2001:0db8:85a3:0000:*:*:*:*",
		"garbage": "***",
		"":        "",
	}
	for input, want := range cases {
		if got := MaskIP(input); got != want {
			t.Errorf("MaskIP(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMaskString(t *testing.T) {
	if got := MaskString("secret123"); got != "se***23" {
		t.Errorf("MaskString = %q", got)
	}
	if got := MaskString("abc"); got != "***" {
		t.Errorf("MaskString short = %q", got)
	}
}
