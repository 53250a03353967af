package amount

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"0", 18, "0"},
		{"1000000000000000000", 18, "1"},
		{"12000000000000000", 18, "0.012"},
		{"1", 18, "0.000000000000000001"},
		{"1250000", 6, "1.25"},
		{"-5000000", 6, "-5"},
		{"42", 0, "42"},
	}

	for _, tc := range cases {
		value, ok := new(big.Int).SetString(tc.value, 10)
		if !ok {
			t.Fatalf("bad case value %q", tc.value)
		}
		if got := FormatUnits(value, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%s, %d) = %q, want %q", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestParseUnitsRoundTrip(t *testing.T) {
	cases := []struct {
		text     string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.012", 18, "12000000000000000"},
		{"1.25", 6, "1250000"},
		{"0.000000000000000001", 18, "1"},
	}

	for _, tc := range cases {
		got, err := ParseUnits(tc.text, tc.decimals)
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", tc.text, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestParseUnitsRejectsExcessPrecision(t *testing.T) {
	if _, err := ParseUnits("0.0000001", 6); err == nil {
		t.Fatalf("expected error for sub-unit precision")
	}
	if _, err := ParseUnits("abc", 18); err == nil {
		t.Fatalf("expected error for non-numeric input")
	}
}
