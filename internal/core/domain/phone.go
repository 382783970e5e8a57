package domain

import (
	"regexp"
	"strings"
)

// Phone validation failures.
var (
	ErrInvalidPhoneFormat     = NewValidationError("invalid_phone_format", "phone number format is invalid")
	ErrUnsupportedCountryCode = NewValidationError("unsupported_country_code", "country code is not supported")
	ErrNotMobileNumber        = NewValidationError("not_mobile_number", "phone number is not a mobile number")
)

// phoneRegion describes validation rules for one supported calling code.
type phoneRegion struct {
	countryCode string
	minDigits   int
	maxDigits   int
	mobile      *regexp.Regexp
	// national applies an extra format check on top of the mobile rule.
	national *regexp.Regexp
}

// Mainland China is the primary region and carries the strictest rules:
// eleven digits, 1[3-9] carrier prefixes, plus the full national pattern.
var phoneRegions = map[string]phoneRegion{
	"86": {
		countryCode: "86",
		minDigits:   11,
		maxDigits:   11,
		mobile:      regexp.MustCompile(`^1[3-9]\d{9}$`),
		national:    regexp.MustCompile(`^1(3[0-9]|4[5-9]|5[0-35-9]|6[2567]|7[0-8]|8[0-9]|9[0-35-9])\d{8}$`),
	},
	"852": {countryCode: "852", minDigits: 8, maxDigits: 8, mobile: regexp.MustCompile(`^[4-9]\d{7}$`)},
	"853": {countryCode: "853", minDigits: 8, maxDigits: 8, mobile: regexp.MustCompile(`^6\d{7}$`)},
	"886": {countryCode: "886", minDigits: 9, maxDigits: 9, mobile: regexp.MustCompile(`^9\d{8}$`)},
	"65":  {countryCode: "65", minDigits: 8, maxDigits: 8, mobile: regexp.MustCompile(`^[89]\d{7}$`)},
	"1":   {countryCode: "1", minDigits: 10, maxDigits: 10, mobile: regexp.MustCompile(`^[2-9]\d{2}[2-9]\d{6}$`)},
	"44":  {countryCode: "44", minDigits: 10, maxDigits: 10, mobile: regexp.MustCompile(`^7\d{9}$`)},
	"81":  {countryCode: "81", minDigits: 10, maxDigits: 10, mobile: regexp.MustCompile(`^[789]0\d{8}$`)},
	"82":  {countryCode: "82", minDigits: 9, maxDigits: 10, mobile: regexp.MustCompile(`^1[016789]\d{7,8}$`)},
}

var nonDigit = regexp.MustCompile(`\D`)

// Phone is a validated, canonicalized mobile number.
type Phone struct {
	countryCode string
	national    string
}

// NewPhone validates the raw input against the region identified by countryCode
// and returns the canonical representation. The raw value may carry spaces,
// dashes, parentheses, a leading + prefix, or a national trunk zero.
func NewPhone(raw, countryCode string) (Phone, error) {
	countryCode = strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	region, ok := phoneRegions[countryCode]
	if !ok {
		return Phone{}, ErrUnsupportedCountryCode
	}

	digits := nonDigit.ReplaceAllString(strings.TrimSpace(raw), "")
	if digits == "" {
		return Phone{}, ErrInvalidPhoneFormat
	}

	// Strip an embedded international prefix when present.
	digits = strings.TrimPrefix(digits, "00"+countryCode)
	if len(digits) > region.maxDigits && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}
	// Trunk zero is not part of the canonical national number.
	if len(digits) > region.maxDigits && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}

	if len(digits) < region.minDigits || len(digits) > region.maxDigits {
		return Phone{}, ErrInvalidPhoneFormat
	}
	if !region.mobile.MatchString(digits) {
		return Phone{}, ErrNotMobileNumber
	}
	if region.national != nil && !region.national.MatchString(digits) {
		return Phone{}, ErrInvalidPhoneFormat
	}

	return Phone{countryCode: countryCode, national: digits}, nil
}

// CountryCode returns the calling code without the + prefix.
func (p Phone) CountryCode() string { return p.countryCode }

// National returns the canonical national number.
func (p Phone) National() string { return p.national }

// E164 returns the canonical +<country><national> form used as the identity key input.
func (p Phone) E164() string {
	return "+" + p.countryCode + p.national
}

// SupportedCountryCodes lists the calling codes in the allow-list.
func SupportedCountryCodes() []string {
	codes := make([]string, 0, len(phoneRegions))
	for code := range phoneRegions {
		codes = append(codes, code)
	}
	return codes
}
