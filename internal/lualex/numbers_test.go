// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package lualex

import "testing"

// integerCases holds numerals that are valid Lua integers: every one
// of these must also round-trip through ParseNumber (as a float).
var integerCases = []struct {
	s    string
	want int64
	err  bool
}{
	{s: "0", want: 0},
	{s: "1", want: 1},
	{s: "42", want: 42},
	{s: "1000000", want: 1000000},
	{s: "-1", want: -1},
	{s: "-345", want: -345},
	{s: "0xff", want: 0xff},
	{s: "0XFF", want: 0xff},
	{s: "0xBEBADA", want: 0xBEBADA},
	{s: "0x7fffffffffffffff", want: 0x7fffffffffffffff},
	// Out-of-range hex numerals wrap, per the Lua manual.
	{s: "0x8000000000000000", want: -0x8000000000000000},
	{s: "-0x8000000000000000", want: -0x8000000000000000},
	{s: "-0x8000000000000001", want: 0x7fffffffffffffff},
	// Lua numerals never use digit-group separators.
	{s: "1_000_000", err: true},
}

func TestParseInt(t *testing.T) {
	for _, test := range integerCases {
		got, err := ParseInt(test.s)
		if got != test.want || (err != nil) != test.err {
			wantError := "<nil>"
			if test.err {
				wantError = "<error>"
			}
			t.Errorf("ParseInt(%q) = %d, %v; want %d, %s", test.s, got, err, test.want, wantError)
		}
	}
}

func TestParseIntSurroundingWhitespace(t *testing.T) {
	got, err := ParseInt("  42  ")
	if got != 42 || err != nil {
		t.Errorf("ParseInt(%q) = %d, %v; want 42, <nil>", "  42  ", got, err)
	}
}

func TestParseNumberAcceptsEveryInteger(t *testing.T) {
	for _, test := range integerCases {
		if test.err {
			continue
		}
		want := float64(test.want)
		got, err := ParseNumber(test.s)
		if got != want || err != nil {
			t.Errorf("ParseNumber(%q) = %g, %v; want %g, <nil>", test.s, got, err, want)
		}
	}
}

func TestParseNumberFloats(t *testing.T) {
	tests := []struct {
		s    string
		want float64
		err  bool
	}{
		{s: "0.0", want: 0},
		{s: "-1.0", want: -1},
		{s: "3.1416", want: 3.1416},
		{s: "314.16e-2", want: 314.16e-2},
		{s: "0.31416E1", want: 0.31416e1},
		{s: "34e1", want: 34e1},
		{s: "5.", want: 5},
		{s: ".5", want: 0.5},
		{s: "0x0.1E", want: 0x0.1Ep0},
		{s: "0xA23p-4", want: 0xa23p-4},
		{s: "0X1.921FB54442D18P+1", want: 0x1.921FB54442D18p+1},
		{s: "0x1.fp10", want: 1984},
		{s: "1_000_000", err: true},
	}
	for _, test := range tests {
		got, err := ParseNumber(test.s)
		if got != test.want || (err != nil) != test.err {
			wantError := "<nil>"
			if test.err {
				wantError = "<error>"
			}
			t.Errorf("ParseNumber(%q) = %g, %v; want %g, %s", test.s, got, err, test.want, wantError)
		}
	}
}

// TestParseNumberRejectsWordForms checks that ParseNumber only accepts
// the numeral grammar and never the English spellings Go's strconv
// would otherwise happily parse as infinities or NaN.
func TestParseNumberRejectsWordForms(t *testing.T) {
	for _, s := range []string{
		"inf", "INF", "-inf", "-INF",
		"infinity", "INFINITY", "-infinity",
		"nan", "NaN",
	} {
		if _, err := ParseNumber(s); err == nil {
			t.Errorf("ParseNumber(%q): want error, got nil", s)
		}
	}
}
