package domain

import "testing"

func TestNewPhoneCanonicalForms(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		country string
		want    string
	}{
		{"plain national", "13800138000", "86", "+8613800138000"},
		{"with plus and country", "+8613800138000", "86", "+8613800138000"},
		{"with separators", "138-0013-8000", "86", "+8613800138000"},
		{"international prefix", "008613800138000", "86", "+8613800138000"},
		{"country code with plus sign", "13800138000", "+86", "+8613800138000"},
		{"hong kong", "9123 4567", "852", "+85291234567"},
		{"singapore", "81234567", "65", "+6581234567"},
		{"uk trunk zero", "07123456789", "44", "+447123456789"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phone, err := NewPhone(tc.raw, tc.country)
			if err != nil {
				t.Fatalf("NewPhone(%q, %q): %v", tc.raw, tc.country, err)
			}
			if phone.E164() != tc.want {
				t.Fatalf("E164 = %s, want %s", phone.E164(), tc.want)
			}
		})
	}
}

func TestNewPhoneIdempotent(t *testing.T) {
	first, err := NewPhone("138 0013 8000", "86")
	if err != nil {
		t.Fatalf("first normalize: %v", err)
	}
	second, err := NewPhone(first.E164(), first.CountryCode())
	if err != nil {
		t.Fatalf("second normalize: %v", err)
	}
	if first.E164() != second.E164() {
		t.Fatalf("normalization not idempotent: %s != %s", first.E164(), second.E164())
	}
}

func TestNewPhoneRejections(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		country string
		want    *Error
	}{
		{"unsupported country", "13800138000", "33", ErrUnsupportedCountryCode},
		{"too short", "1380013", "86", ErrInvalidPhoneFormat},
		{"empty", "", "86", ErrInvalidPhoneFormat},
		{"landline", "21080012345", "86", ErrNotMobileNumber},
		{"bad carrier prefix", "14112345678", "86", ErrInvalidPhoneFormat},
		{"hk landline", "21234567", "852", ErrNotMobileNumber},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPhone(tc.raw, tc.country); err != tc.want {
				t.Fatalf("NewPhone(%q, %q) error = %v, want %v", tc.raw, tc.country, err, tc.want)
			}
		})
	}
}
