// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

func (g *Generator) lhsRhs() (read, read) {
	b := g.B
	return func() *wasmir.Instr { return b.LocalGet(0, wasmir.ValAnyRef) },
		func() *wasmir.Instr { return b.LocalGet(1, wasmir.ValAnyRef) }
}

// buildArithOp implements the family of binary arithmetic operators that
// stay integer when both operands are integer and otherwise promote to
// float (addition, subtraction, multiplication, floor division, modulo):
// §4.2's integer/float split of the value model is what makes this
// promotion a per-call dispatch instead of a static decision.
func (g *Generator) buildArithOp(name string, intCombine func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr, floatCombine func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr) []*wasmir.Instr {
	b := g.B
	T := g.Types
	lhs, rhs := g.lhsRhs()
	bothInt := b.Binary(wasmir.AndI32, wasmir.ValI32, b.RefTest(wasmir.RefType(T.Integer), lhs()), b.RefTest(wasmir.RefType(T.Integer), rhs()))
	bothNum := b.Binary(wasmir.AndI32, wasmir.ValI32, g.IsNumeric(lhs), g.IsNumeric(rhs))
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, bothInt,
			[]*wasmir.Instr{b.Return(b.StructNew(T.Integer, intCombine(b, g.IntegerValue(lhs), g.IntegerValue(rhs))))}, nil),
		b.If(wasmir.ValNone, bothNum,
			[]*wasmir.Instr{b.Return(b.StructNew(T.Number, floatCombine(b, g.NumericValue(lhs), g.NumericValue(rhs))))}, nil),
		b.Return(g.diverge(wasmir.ValAnyRef, "attempt to perform arithmetic on a "+name+" operand")),
	}
}

// buildFloatOp implements the two operators that always produce a float
// regardless of operand tag (division, exponentiation).
func (g *Generator) buildFloatOp(combine func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr) []*wasmir.Instr {
	b := g.B
	T := g.Types
	lhs, rhs := g.lhsRhs()
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.Binary(wasmir.AndI32, wasmir.ValI32, g.IsNumeric(lhs), g.IsNumeric(rhs)),
			[]*wasmir.Instr{b.Return(b.StructNew(T.Number, combine(b, g.NumericValue(lhs), g.NumericValue(rhs))))}, nil),
		b.Return(g.diverge(wasmir.ValAnyRef, "attempt to perform arithmetic on a non-number value")),
	}
}

// buildBitwiseOp implements the five bitwise operators, which coerce both
// operands to i64 strictly (§ Lua 5.3's "no integer representation" error)
// and always produce an Integer.
func (g *Generator) buildBitwiseOp(combine func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr) []*wasmir.Instr {
	b := g.B
	T := g.Types
	lhs, rhs := g.lhsRhs()
	return []*wasmir.Instr{
		b.Return(b.StructNew(T.Integer, combine(b, g.toIntegerStrict(lhs), g.toIntegerStrict(rhs)))),
	}
}

// floorDivInt and floorModInt give wasm's truncating div_s/rem_s Lua's
// floor-toward-negative-infinity rounding (§ Lua 5.3's // and %).
func floorDivInt(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
	q := b.Binary(wasmir.DivSI64, wasmir.ValI64, l, r)
	rem := b.Binary(wasmir.RemSI64, wasmir.ValI64, l, r)
	signsDiffer := b.Binary(wasmir.XorI32, wasmir.ValI32,
		b.Binary(wasmir.LtSI64, wasmir.ValI32, l, b.I64Const(0)),
		b.Binary(wasmir.LtSI64, wasmir.ValI32, r, b.I64Const(0)))
	needAdjust := b.Binary(wasmir.AndI32, wasmir.ValI32, b.Binary(wasmir.NeI64, wasmir.ValI32, rem, b.I64Const(0)), signsDiffer)
	return b.If(wasmir.ValI64, needAdjust, []*wasmir.Instr{b.Binary(wasmir.SubI64, wasmir.ValI64, q, b.I64Const(1))}, []*wasmir.Instr{q})
}

func floorModInt(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
	rem := b.Binary(wasmir.RemSI64, wasmir.ValI64, l, r)
	signsDiffer := b.Binary(wasmir.XorI32, wasmir.ValI32,
		b.Binary(wasmir.LtSI64, wasmir.ValI32, l, b.I64Const(0)),
		b.Binary(wasmir.LtSI64, wasmir.ValI32, r, b.I64Const(0)))
	needAdjust := b.Binary(wasmir.AndI32, wasmir.ValI32, b.Binary(wasmir.NeI64, wasmir.ValI32, rem, b.I64Const(0)), signsDiffer)
	return b.If(wasmir.ValI64, needAdjust, []*wasmir.Instr{b.Binary(wasmir.AddI64, wasmir.ValI64, rem, r)}, []*wasmir.Instr{rem})
}

func floorDivFloat(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
	return b.Unary(wasmir.FloorF64, wasmir.ValF64, b.Binary(wasmir.DivF64, wasmir.ValF64, l, r))
}

func floorModFloat(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
	q := b.Unary(wasmir.FloorF64, wasmir.ValF64, b.Binary(wasmir.DivF64, wasmir.ValF64, l, r))
	return b.Binary(wasmir.SubF64, wasmir.ValF64, l, b.Binary(wasmir.MulF64, wasmir.ValF64, q, r))
}

// buildOrderOp implements the four relational operators over numbers and
// (lexicographically) strings; §4.2's comparison family has no notion of
// ordering tables, functions, or nil, so anything else is an error.
func (g *Generator) buildOrderOp(intOp, floatOp wasmir.NumOp) []*wasmir.Instr {
	b := g.B
	T := g.Types
	lhs, rhs := g.lhsRhs()
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.Binary(wasmir.AndI32, wasmir.ValI32,
			b.RefTest(wasmir.RefType(T.Integer), lhs()), b.RefTest(wasmir.RefType(T.Integer), rhs())),
			[]*wasmir.Instr{b.Return(b.RefI31(b.Binary(intOp, wasmir.ValI32, g.IntegerValue(lhs), g.IntegerValue(rhs))))}, nil),
		b.If(wasmir.ValNone, b.Binary(wasmir.AndI32, wasmir.ValI32, g.IsNumeric(lhs), g.IsNumeric(rhs)),
			[]*wasmir.Instr{b.Return(b.RefI31(b.Binary(floatOp, wasmir.ValI32, g.NumericValue(lhs), g.NumericValue(rhs))))}, nil),
		b.If(wasmir.ValNone, b.Binary(wasmir.AndI32, wasmir.ValI32,
			b.RefTest(wasmir.RefType(T.Str), lhs()), b.RefTest(wasmir.RefType(T.Str), rhs())),
			[]*wasmir.Instr{b.Return(b.RefI31(g.stringOrder(intOp, floatOp, lhs, rhs)))}, nil),
		b.Return(g.diverge(wasmir.ValAnyRef, "attempt to compare incompatible values")),
	}
}

// stringOrder reduces a string comparison to the shared byte-scan helper:
// it always computes both "<" and the strict ordering needs only the sign
// of the first mismatching byte (or the length difference once one
// string is a prefix of the other), so every relational operator reuses
// one lazily-built helper function parameterized by which NumOp family it
// is serving.
func (g *Generator) stringOrder(intOp, floatOp wasmir.NumOp, lhs, rhs read) *wasmir.Instr {
	b := g.B
	name := g.stringCompareFunc()
	cmp := b.Call(name, wasmir.ValI64, b.RefCast(wasmir.RefType(g.Types.Str), lhs()), b.RefCast(wasmir.RefType(g.Types.Str), rhs()))
	return b.Binary(intOp, wasmir.ValI32, cmp, b.I64Const(0))
}

// stringCompareFunc lazily installs a three-way byte comparison (-1, 0, 1
// as an i64, reusing the ordered relation the caller already has an
// i64-vs-0 NumOp for) between two Lua strings.
func (g *Generator) stringCompareFunc() string {
	const name = "*string_compare"
	if _, ok := g.Mod.FuncIndex(name); ok {
		return name
	}
	b := g.B
	str := wasmir.RefType(g.Types.Str)
	sig := wasmir.FuncType(name+"_sig", []wasmir.ValType{str, str}, []wasmir.ValType{wasmir.ValI64})
	// params a=0 b=1; locals i=2, lenA=3, lenB=4
	body := []*wasmir.Instr{
		b.LocalSet(3, b.ArrayLen(b.LocalGet(0, str))),
		b.LocalSet(4, b.ArrayLen(b.LocalGet(1, str))),
		b.LocalSet(2, b.I32Const(0)),
		b.Loop("cmp", wasmir.ValNone,
			b.If(wasmir.ValNone, b.Binary(wasmir.AndI32, wasmir.ValI32,
				b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.LocalGet(3, wasmir.ValI32)),
				b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.LocalGet(4, wasmir.ValI32))),
				[]*wasmir.Instr{
					func() *wasmir.Instr {
						ca := b.ArrayGet(g.Types.Str, b.LocalGet(0, str), b.LocalGet(2, wasmir.ValI32))
						cb := b.ArrayGet(g.Types.Str, b.LocalGet(1, str), b.LocalGet(2, wasmir.ValI32))
						return b.If(wasmir.ValNone, b.Binary(wasmir.NeI32, wasmir.ValI32, ca, cb),
							[]*wasmir.Instr{
								b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, ca, cb),
									[]*wasmir.Instr{b.Return(b.I64Const(-1))},
									[]*wasmir.Instr{b.Return(b.I64Const(1))}),
							}, nil)
					}(),
					b.LocalSet(2, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.I32Const(1))),
					b.Br("cmp"),
				}, nil),
		),
		b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(3, wasmir.ValI32), b.LocalGet(4, wasmir.ValI32)),
			[]*wasmir.Instr{b.Return(b.I64Const(-1))}, nil),
		b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(4, wasmir.ValI32), b.LocalGet(3, wasmir.ValI32)),
			[]*wasmir.Instr{b.Return(b.I64Const(1))}, nil),
		b.Return(b.I64Const(0)),
	}
	fn := &wasmir.Func{
		Name: name, Sig: sig,
		Locals: []wasmir.Local{{Type: wasmir.ValI32, Name: "i"}, {Type: wasmir.ValI32, Name: "lenA"}, {Type: wasmir.ValI32, Name: "lenB"}},
		Body:   body,
	}
	g.Mod.AddFunc(fn)
	return name
}

func (g *Generator) buildEqualityOp(negate bool) []*wasmir.Instr {
	b := g.B
	lhs, rhs := g.lhsRhs()
	eq := g.RawEqual(lhs, rhs)
	if negate {
		eq = b.Unary(wasmir.EqzI32, wasmir.ValI32, eq)
	}
	return []*wasmir.Instr{b.Return(b.RefI31(eq))}
}

// buildConcat implements `..`: both operands must be string or number
// (numbers convert through the same formatting to_string uses), and the
// result is always a string. Locals, after params lhs=0 rhs=1: a=2, b=3
// (the two operands coerced to Ref Str), lenA=4, lenB=5, result=6.
func (g *Generator) buildConcat() []*wasmir.Instr {
	bd := g.B
	T := g.Types
	strT := wasmir.RefType(T.Str)
	lhs, rhs := g.lhsRhs()
	concatable := func(r read) *wasmir.Instr {
		return bd.Binary(wasmir.OrI32, wasmir.ValI32, bd.RefTest(strT, r()), g.IsNumeric(r))
	}
	asString := func(r read) *wasmir.Instr {
		return bd.If(strT, bd.RefTest(strT, r()),
			[]*wasmir.Instr{bd.RefCast(strT, r())},
			[]*wasmir.Instr{g.Call(KeyToString, r())},
		)
	}
	a := func() *wasmir.Instr { return bd.LocalGet(2, strT) }
	b2 := func() *wasmir.Instr { return bd.LocalGet(3, strT) }
	return []*wasmir.Instr{
		bd.If(wasmir.ValNone, bd.Unary(wasmir.EqzI32, wasmir.ValI32, bd.Binary(wasmir.AndI32, wasmir.ValI32, concatable(lhs), concatable(rhs))),
			[]*wasmir.Instr{bd.Return(g.diverge(strT, "attempt to concatenate a non-string/number value"))}, nil),
		bd.LocalSet(2, asString(lhs)),
		bd.LocalSet(3, asString(rhs)),
		bd.LocalSet(4, bd.ArrayLen(a())),
		bd.LocalSet(5, bd.ArrayLen(b2())),
		bd.LocalSet(6, bd.ArrayNew(T.Str, bd.Binary(wasmir.AddI32, wasmir.ValI32, bd.LocalGet(4, wasmir.ValI32), bd.LocalGet(5, wasmir.ValI32)), bd.I32Const(0))),
		bd.ArrayCopy(T.Str, bd.LocalGet(6, strT), bd.I32Const(0), T.Str, a(), bd.I32Const(0), bd.LocalGet(4, wasmir.ValI32)),
		bd.ArrayCopy(T.Str, bd.LocalGet(6, strT), bd.LocalGet(4, wasmir.ValI32), T.Str, b2(), bd.I32Const(0), bd.LocalGet(5, wasmir.ValI32)),
		bd.Return(bd.LocalGet(6, strT)),
	}
}
