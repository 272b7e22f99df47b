// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wumbo-lang/wumbo/internal/ast"
)

// ignorePositions drops every ast.Position value from comparisons: exact
// source locations aren't what these tests are checking, just tree shape.
var ignorePositions = cmpopts.IgnoreTypes(ast.Position{})

func parseBlock(t *testing.T, src string) *ast.Block {
	t.Helper()
	blk, err := Parse(strings.NewReader(src), "test.lua")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return blk
}

func TestParseLocalAssignment(t *testing.T) {
	got := parseBlock(t, "local x, y = 1, 2 + 3")
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.LocalStatement{
				Names: []ast.Name{"x", "y"},
				Exprs: []ast.Expression{
					ast.IntExpr(1),
					&ast.BinaryExpr{Op: ast.OpAdd, Lhs: ast.IntExpr(2), Rhs: ast.IntExpr(3)},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(...) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOperatorPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Expression
	}{
		{
			src: "a + b * c",
			want: &ast.BinaryExpr{Op: ast.OpAdd,
				Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "a"}},
				Rhs: &ast.BinaryExpr{Op: ast.OpMul,
					Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "b"}},
					Rhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "c"}},
				},
			},
		},
		{
			// '^' is right-associative: a^b^c == a^(b^c)
			src: "a ^ b ^ c",
			want: &ast.BinaryExpr{Op: ast.OpExp,
				Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "a"}},
				Rhs: &ast.BinaryExpr{Op: ast.OpExp,
					Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "b"}},
					Rhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "c"}},
				},
			},
		},
		{
			// '..' is right-associative: a..b..c == a..(b..c)
			src: `a .. b .. c`,
			want: &ast.BinaryExpr{Op: ast.OpConcat,
				Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "a"}},
				Rhs: &ast.BinaryExpr{Op: ast.OpConcat,
					Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "b"}},
					Rhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "c"}},
				},
			},
		},
		{
			src: "-a ^ 2",
			want: &ast.UnaryExpr{Op: ast.OpMinus,
				Rhs: &ast.BinaryExpr{Op: ast.OpExp,
					Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "a"}},
					Rhs: ast.IntExpr(2),
				},
			},
		},
	}
	for _, test := range tests {
		got := parseBlock(t, "return "+test.src)
		want := &ast.Block{Return: &ast.ReturnStatement{Exprs: []ast.Expression{test.want}}}
		if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
			t.Errorf("Parse(return %s) mismatch (-want +got):\n%s", test.src, diff)
		}
	}
}

func TestParseIfElseif(t *testing.T) {
	got := parseBlock(t, `
if a then
  return 1
elseif b then
  return 2
else
  return 3
end`)
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.IfStatement{
				Clauses: []ast.IfClause{
					{
						Cond: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "a"}},
						Body: ast.Block{Return: &ast.ReturnStatement{Exprs: []ast.Expression{ast.IntExpr(1)}}},
					},
					{
						Cond: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "b"}},
						Body: ast.Block{Return: &ast.ReturnStatement{Exprs: []ast.Expression{ast.IntExpr(2)}}},
					},
				},
				Else: &ast.Block{Return: &ast.ReturnStatement{Exprs: []ast.Expression{ast.IntExpr(3)}}},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(if/elseif/else) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNumericFor(t *testing.T) {
	got := parseBlock(t, "for i = 1, 10, 2 do end")
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.NumericForStatement{
				Var:   "i",
				Start: ast.IntExpr(1),
				Limit: ast.IntExpr(10),
				Step:  ast.IntExpr(2),
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(numeric for) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGenericFor(t *testing.T) {
	got := parseBlock(t, "for k, v in pairs(t) do end")
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.GenericForStatement{
				Names: []ast.Name{"k", "v"},
				Exprs: []ast.Expression{
					&ast.PrefixExpr{
						Head: &ast.NameExpr{Name: "pairs"},
						Tails: []ast.Tail{
							&ast.CallTail{Args: []ast.Expression{&ast.PrefixExpr{Head: &ast.NameExpr{Name: "t"}}}},
						},
					},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(generic for) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMethodPrependsSelf(t *testing.T) {
	got := parseBlock(t, "function t:m(x) end")
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.FunctionDeclStatement{
				Name:   []ast.Name{"t", "m"},
				Method: true,
				Body:   &ast.FunctionBody{Params: []ast.Name{"self", "x"}},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(method decl) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLocalFunctionRecursion(t *testing.T) {
	got := parseBlock(t, `
local function fact(n)
  if n == 0 then return 1 end
  return n * fact(n - 1)
end`)
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.LocalFunctionStatement{
				Name: "fact",
				Body: &ast.FunctionBody{
					Params: []ast.Name{"n"},
					Block: ast.Block{
						Statements: []ast.Statement{
							&ast.IfStatement{
								Clauses: []ast.IfClause{
									{
										Cond: &ast.BinaryExpr{Op: ast.OpEq,
											Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "n"}},
											Rhs: ast.IntExpr(0),
										},
										Body: ast.Block{Return: &ast.ReturnStatement{Exprs: []ast.Expression{ast.IntExpr(1)}}},
									},
								},
							},
						},
						Return: &ast.ReturnStatement{
							Exprs: []ast.Expression{
								&ast.BinaryExpr{Op: ast.OpMul,
									Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "n"}},
									Rhs: &ast.PrefixExpr{
										Head: &ast.NameExpr{Name: "fact"},
										Tails: []ast.Tail{
											&ast.CallTail{Args: []ast.Expression{
												&ast.BinaryExpr{Op: ast.OpSub, Lhs: &ast.PrefixExpr{Head: &ast.NameExpr{Name: "n"}}, Rhs: ast.IntExpr(1)},
											}},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(local function) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTableConstructor(t *testing.T) {
	got := parseBlock(t, `return {1, 2, x = 3, [4+5] = 6}`)
	want := &ast.Block{
		Return: &ast.ReturnStatement{
			Exprs: []ast.Expression{
				&ast.TableExpr{
					Fields: []ast.TableField{
						{Value: ast.IntExpr(1)},
						{Value: ast.IntExpr(2)},
						{Key: ast.StringExpr("x"), Value: ast.IntExpr(3)},
						{Key: &ast.BinaryExpr{Op: ast.OpAdd, Lhs: ast.IntExpr(4), Rhs: ast.IntExpr(5)}, Value: ast.IntExpr(6)},
					},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(table constructor) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMethodCallAndStringCallSugar(t *testing.T) {
	got := parseBlock(t, `obj:method "arg"`)
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.CallStatement{
				Call: &ast.PrefixExpr{
					Head: &ast.NameExpr{Name: "obj"},
					Tails: []ast.Tail{
						&ast.CallTail{Method: "method", Args: []ast.Expression{ast.StringExpr("arg")}},
					},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(method call sugar) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAssignmentToIndexedTarget(t *testing.T) {
	got := parseBlock(t, "t.x, t[1] = 1, 2")
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.AssignStatement{
				Targets: []*ast.PrefixExpr{
					{Head: &ast.NameExpr{Name: "t"}, Tails: []ast.Tail{ast.FieldTail{Name: "x"}}},
					{Head: &ast.NameExpr{Name: "t"}, Tails: []ast.Tail{ast.IndexTail{Expr: ast.IntExpr(1)}}},
				},
				Exprs: []ast.Expression{ast.IntExpr(1), ast.IntExpr(2)},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(indexed assignment) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsAssignToCall(t *testing.T) {
	_, err := Parse(strings.NewReader("f() = 1"), "test.lua")
	if err == nil {
		t.Fatal("Parse(f() = 1): want error, got nil")
	}
}

func TestParseGotoLabel(t *testing.T) {
	got := parseBlock(t, `
do
  goto done
  ::done::
end`)
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.DoStatement{
				Body: ast.Block{
					Statements: []ast.Statement{
						&ast.GotoStatement{Name: "done"},
						&ast.LabelStatement{Name: "done"},
					},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(goto/label) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVarargFunction(t *testing.T) {
	got := parseBlock(t, "local function f(a, ...) return a, ... end")
	want := &ast.Block{
		Statements: []ast.Statement{
			&ast.LocalFunctionStatement{
				Name: "f",
				Body: &ast.FunctionBody{
					Params: []ast.Name{"a"},
					Vararg: true,
					Block: ast.Block{
						Return: &ast.ReturnStatement{
							Exprs: []ast.Expression{
								&ast.PrefixExpr{Head: &ast.NameExpr{Name: "a"}},
								&ast.VarargExpr{},
							},
						},
					},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, ignorePositions); diff != "" {
		t.Errorf("Parse(vararg function) mismatch (-want +got):\n%s", diff)
	}
}

func TestSyntaxErrorIncludesSourceName(t *testing.T) {
	_, err := Parse(strings.NewReader("local = 1"), "bad.lua")
	if err == nil {
		t.Fatal("Parse: want error, got nil")
	}
	if !strings.Contains(err.Error(), "bad.lua") {
		t.Errorf("Parse error %q does not mention source name", err.Error())
	}
}
