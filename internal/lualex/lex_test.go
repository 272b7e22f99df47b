// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package lualex

import (
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// scanAll drains a Scanner, returning every token it produced before
// either EOF or an error. The last non-EOF error, if any, is returned
// alongside so callers can assert on both the token stream and the
// failure.
func scanAll(src string) ([]Token, error) {
	s := NewScanner(strings.NewReader(src))
	var toks []Token
	for {
		tok, err := s.Scan()
		if err == io.EOF {
			return toks, nil
		}
		if err != nil {
			toks = append(toks, tok)
			return toks, err
		}
		toks = append(toks, tok)
	}
}

func checkScan(t *testing.T, src string, want []Token) {
	t.Helper()
	got, err := scanAll(src)
	if err != nil {
		t.Fatalf("scan of %q returned unexpected error: %v", src, err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("scan of %q (-want +got):\n%s", src, diff)
	}
}

func TestScanEmpty(t *testing.T) {
	checkScan(t, "", nil)
	checkScan(t, "   \t\n  ", nil)
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	checkScan(t, "greet", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "greet"},
	})
	checkScan(t, "  self  ", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 3), Value: "self"},
	})
	checkScan(t, "local function", []Token{
		{Kind: LocalToken, Position: Pos(1, 1)},
		{Kind: FunctionToken, Position: Pos(1, 7)},
	})
	checkScan(t, "goto", []Token{
		{Kind: GotoToken, Position: Pos(1, 1)},
	})
	// An identifier that merely starts with a keyword is not a keyword.
	checkScan(t, "ifdef", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "ifdef"},
	})
}

func TestScanNumerals(t *testing.T) {
	tests := []string{
		"0", "3", "345", "1000000",
		"0xff", "0xBEBADA", "0x7fffffffffffffff",
		"3.0", "3.1416", "314.16e-2", "0.31416E1", "34e1",
		"5.", ".5",
		"0x0.1E", "0xA23p-4", "0X1.921FB54442D18P+1",
	}
	for _, s := range tests {
		checkScan(t, s, []Token{
			{Kind: NumeralToken, Position: Pos(1, 1), Value: s},
		})
	}
}

func TestScanStrings(t *testing.T) {
	checkScan(t, `name = 'wumbo\n says "hi"'`, []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "name"},
		{Kind: AssignToken, Position: Pos(1, 6)},
		{Kind: StringToken, Position: Pos(1, 8), Value: "wumbo\n says \"hi\""},
	})
	checkScan(t, `name = "wumbo\n says \"hi\""`, []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "name"},
		{Kind: AssignToken, Position: Pos(1, 6)},
		{Kind: StringToken, Position: Pos(1, 8), Value: "wumbo\n says \"hi\""},
	})
	checkScan(t, "msg = [[line one\nline two]]", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "msg"},
		{Kind: AssignToken, Position: Pos(1, 5)},
		{Kind: StringToken, Position: Pos(1, 7), Value: "line one\nline two"},
	})
	checkScan(t, "msg = [==[ ]] still going ]==]", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "msg"},
		{Kind: AssignToken, Position: Pos(1, 5)},
		{Kind: StringToken, Position: Pos(1, 7), Value: " ]] still going "},
	})
}

func TestScanStringErrors(t *testing.T) {
	tests := []string{
		`a = "unterminated`,
		`a = 'unterminated`,
		"a = 'has\nnewline'",
		`a = [[unterminated`,
		` --[[ unterminated long comment`,
	}
	for _, src := range tests {
		toks, err := scanAll(src)
		if err == nil {
			t.Errorf("scan of %q: want error, got none (tokens: %v)", src, toks)
		}
	}
}

func TestScanComments(t *testing.T) {
	checkScan(t, "-- a line comment\nx\n1 + 1\n", []Token{
		{Kind: IdentifierToken, Position: Pos(2, 1), Value: "x"},
		{Kind: NumeralToken, Position: Pos(3, 1), Value: "1"},
		{Kind: AddToken, Position: Pos(3, 3)},
		{Kind: NumeralToken, Position: Pos(3, 5), Value: "1"},
	})
	checkScan(t, "--[=[ a block comment\nwith a fake ]] inside\n]=]\ny\n", []Token{
		{Kind: IdentifierToken, Position: Pos(4, 1), Value: "y"},
	})
}

func TestScanPunctuationAmbiguities(t *testing.T) {
	checkScan(t, ".", []Token{{Kind: DotToken, Position: Pos(1, 1)}})
	checkScan(t, "..", []Token{{Kind: ConcatToken, Position: Pos(1, 1)}})
	checkScan(t, "...", []Token{{Kind: VarargToken, Position: Pos(1, 1)}})
	checkScan(t, "....", []Token{
		{Kind: VarargToken, Position: Pos(1, 1)},
		{Kind: DotToken, Position: Pos(1, 4)},
	})
	checkScan(t, ":", []Token{{Kind: ColonToken, Position: Pos(1, 1)}})
	checkScan(t, "::", []Token{{Kind: LabelToken, Position: Pos(1, 1)}})
	checkScan(t, "[=", []Token{
		{Kind: LBracketToken, Position: Pos(1, 1)},
		{Kind: AssignToken, Position: Pos(1, 2)},
	})
	checkScan(t, "[===abc", []Token{
		{Kind: LBracketToken, Position: Pos(1, 1)},
		{Kind: EqualToken, Position: Pos(1, 2)},
		{Kind: AssignToken, Position: Pos(1, 4)},
		{Kind: IdentifierToken, Position: Pos(1, 5), Value: "abc"},
	})
}

// TestScanMethodCallExpression exercises the token shape internal/parser
// relies on to recognize obj:method(...) call sugar: a ColonToken
// between two identifiers, followed directly by an argument list.
func TestScanMethodCallExpression(t *testing.T) {
	checkScan(t, `obj:greet("wumbo")`, []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "obj"},
		{Kind: ColonToken, Position: Pos(1, 4)},
		{Kind: IdentifierToken, Position: Pos(1, 5), Value: "greet"},
		{Kind: LParenToken, Position: Pos(1, 10)},
		{Kind: StringToken, Position: Pos(1, 11), Value: "wumbo"},
		{Kind: RParenToken, Position: Pos(1, 18)},
	})
}

// TestScanOperatorSet covers every binary/unary operator token the
// precedence-climbing parser dispatches on, in a single expression so
// adjacency ambiguities (e.g. "//" vs "/", "<<" vs "<") are exercised
// together.
func TestScanOperatorSet(t *testing.T) {
	checkScan(t, "a+b-c*d/e//f%g^h..i", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "a"},
		{Kind: AddToken, Position: Pos(1, 2)},
		{Kind: IdentifierToken, Position: Pos(1, 3), Value: "b"},
		{Kind: SubToken, Position: Pos(1, 4)},
		{Kind: IdentifierToken, Position: Pos(1, 5), Value: "c"},
		{Kind: MulToken, Position: Pos(1, 6)},
		{Kind: IdentifierToken, Position: Pos(1, 7), Value: "d"},
		{Kind: DivToken, Position: Pos(1, 8)},
		{Kind: IdentifierToken, Position: Pos(1, 9), Value: "e"},
		{Kind: IntDivToken, Position: Pos(1, 10)},
		{Kind: IdentifierToken, Position: Pos(1, 12), Value: "f"},
		{Kind: ModToken, Position: Pos(1, 13)},
		{Kind: IdentifierToken, Position: Pos(1, 14), Value: "g"},
		{Kind: PowToken, Position: Pos(1, 15)},
		{Kind: IdentifierToken, Position: Pos(1, 16), Value: "h"},
		{Kind: ConcatToken, Position: Pos(1, 17)},
		{Kind: IdentifierToken, Position: Pos(1, 19), Value: "i"},
	})
	checkScan(t, "a<<2 >> 1 & b | c ~ d", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "a"},
		{Kind: LShiftToken, Position: Pos(1, 2)},
		{Kind: NumeralToken, Position: Pos(1, 4), Value: "2"},
		{Kind: RShiftToken, Position: Pos(1, 6)},
		{Kind: NumeralToken, Position: Pos(1, 9), Value: "1"},
		{Kind: BitAndToken, Position: Pos(1, 11)},
		{Kind: IdentifierToken, Position: Pos(1, 13), Value: "b"},
		{Kind: BitOrToken, Position: Pos(1, 15)},
		{Kind: IdentifierToken, Position: Pos(1, 17), Value: "c"},
		{Kind: BitXorToken, Position: Pos(1, 19)},
		{Kind: IdentifierToken, Position: Pos(1, 21), Value: "d"},
	})
	checkScan(t, "a==b ~=c <=d >=e", []Token{
		{Kind: IdentifierToken, Position: Pos(1, 1), Value: "a"},
		{Kind: EqualToken, Position: Pos(1, 2)},
		{Kind: IdentifierToken, Position: Pos(1, 4), Value: "b"},
		{Kind: NotEqualToken, Position: Pos(1, 6)},
		{Kind: IdentifierToken, Position: Pos(1, 8), Value: "c"},
		{Kind: LessEqualToken, Position: Pos(1, 10)},
		{Kind: IdentifierToken, Position: Pos(1, 12), Value: "d"},
		{Kind: GreaterEqualToken, Position: Pos(1, 14)},
		{Kind: IdentifierToken, Position: Pos(1, 16), Value: "e"},
	})
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		s    string
		want string
		err  bool
	}{
		{s: `""`, want: ""},
		{s: `''`, want: ""},
		{s: `"wumbo"`, want: "wumbo"},
		{s: `'wumbo'`, want: "wumbo"},
		{s: `"\u{110000}"`, want: "\xf4\x90\x80\x80"},
		{s: `"\u{7FFFFFFF}"`, want: "\xfd\xbf\xbf\xbf\xbf\xbf"},
		{s: `"\u{80000000}"`, err: true},
	}
	for _, test := range tests {
		got, err := Unquote(test.s)
		if got != test.want || (err != nil) != test.err {
			errString := "<nil>"
			if test.err {
				errString = "<error>"
			}
			t.Errorf("Unquote(%q) = %q, %v; want %q, %s", test.s, got, err, test.want, errString)
		}
	}
}

func FuzzQuoteUnquoteRoundTrip(f *testing.F) {
	f.Add("")
	f.Add("wumbo")
	f.Add("Hello, 世界")
	f.Add("line\nbreak")
	f.Add("nul\x00byte")
	f.Add("\x00\x01\x023\x05\x009")
	f.Add("\x7f\x80")

	f.Fuzz(func(t *testing.T, s string) {
		quoted := Quote(s)
		got, err := Unquote(quoted)
		if got != s || err != nil {
			t.Errorf("Unquote(Quote(%q)) = %q, %v; want %q, <nil> (Quote(...) = %q)",
				s, got, err, s, quoted)
		}
	})
}
