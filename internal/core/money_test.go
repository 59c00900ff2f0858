package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			want := decimal.RequireFromString(tc.out)
			if err != nil || !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestParseSignedAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"-12.5", "-12.5"},
		{"+3", "3"},
		{"0", "0"},
		{"1000,00", "1000"},
	}
	for _, tc := range cases {
		got, err := ParseSignedAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseSignedAmount(%q) error: %v", tc.in, err)
		}
		if want := decimal.RequireFromString(tc.out); !got.Equal(want) {
			t.Errorf("ParseSignedAmount(%q) = %s, want %s", tc.in, got, want)
		}
	}
	if _, err := ParseSignedAmount("--1"); err == nil {
		t.Errorf("ParseSignedAmount(%q) expected error", "--1")
	}
}

func TestParseRateKeepsPrecision(t *testing.T) {
	got, err := ParseRate("0.923456")
	if err != nil {
		t.Fatalf("ParseRate error: %v", err)
	}
	if got.String() != "0.923456" {
		t.Errorf("ParseRate() = %s, want 0.923456", got)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("12.5"), "EUR"); got != "12.50 EUR" {
		t.Errorf("FormatAmount() = %q, want %q", got, "12.50 EUR")
	}
	if got := FormatAmount(decimal.NewFromInt(-3), ""); got != "-3.00" {
		t.Errorf("FormatAmount() = %q, want %q", got, "-3.00")
	}
}
