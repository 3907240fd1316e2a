package core

import (
	"errors"
	"testing"
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
		{" 2.50 ", "2.5", true},
		{"250", "250", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestParseBudget(t *testing.T) {
	if b, err := ParseBudget("12000"); err != nil || b.String() != "12000" {
		t.Fatalf("expected 12000, got %s (err=%v)", b, err)
	}
	for _, in := range []string{"0", "-5", "x", ""} {
		if _, err := ParseBudget(in); !errors.Is(err, ErrInvalidBudget) {
			t.Fatalf("%q expected ErrInvalidBudget, got %v", in, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	d, _ := ParseAmount("12,5")
	if got := FormatAmount(d); got != "12.50" {
		t.Fatalf("expected 12.50, got %s", got)
	}
}
