package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in       string
		places   int32
		expected string
	}{
		{"803000", 2, "803,000.00"},
		{"0", 0, "0"},
		{"999", 0, "999"},
		{"1000", 0, "1,000"},
		{"1234567.891", 2, "1,234,567.89"},
		{"-20000", 0, "-20,000"},
		{"730000.5", 5, "730,000.50000"},
	}
	for _, tc := range cases {
		got := FormatMoney(decimal.RequireFromString(tc.in), tc.places)
		if got != tc.expected {
			t.Fatalf("FormatMoney(%s, %d) expected %s, got %s", tc.in, tc.places, tc.expected, got)
		}
	}
}
