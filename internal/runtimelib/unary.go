// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

func (g *Generator) v0() read {
	b := g.B
	return func() *wasmir.Instr { return b.LocalGet(0, wasmir.ValAnyRef) }
}

// buildToBool implements Lua truthiness (§3.1: everything is truthy
// except nil and false).
func (g *Generator) buildToBool(negate bool) []*wasmir.Instr {
	b := g.B
	v := g.v0()
	trueVal, falseVal := int32(1), int32(0)
	if negate {
		trueVal, falseVal = 0, 1
	}
	boolVal := b.I31Get(v())
	if negate {
		boolVal = b.Unary(wasmir.EqzI32, wasmir.ValI32, boolVal)
	}
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.IsNull(v()), []*wasmir.Instr{b.Return(b.I32Const(falseVal))}, nil),
		b.If(wasmir.ValNone, b.IsI31(v()), []*wasmir.Instr{b.Return(boolVal)}, nil),
		b.Return(b.I32Const(trueVal)),
	}
}

// buildLogicNot implements `not x`, returning a Lua boolean rather than
// the raw i32 [KeyToBool]/[KeyToBoolNot] expose to the code generator's
// short-circuit lowering.
func (g *Generator) buildLogicNot() []*wasmir.Instr {
	b := g.B
	v := g.v0()
	return []*wasmir.Instr{
		b.Return(b.RefI31(b.Unary(wasmir.EqzI32, wasmir.ValI32, g.Call(KeyToBool, v())))),
	}
}

func (g *Generator) buildBinaryNot() []*wasmir.Instr {
	b := g.B
	T := g.Types
	v := g.v0()
	return []*wasmir.Instr{
		b.Return(b.StructNew(T.Integer, b.Binary(wasmir.XorI64, wasmir.ValI64, g.toIntegerStrict(v), b.I64Const(-1)))),
	}
}

func (g *Generator) buildMinus() []*wasmir.Instr {
	b := g.B
	T := g.Types
	v := g.v0()
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Integer), v()),
			[]*wasmir.Instr{b.Return(b.StructNew(T.Integer, b.Binary(wasmir.SubI64, wasmir.ValI64, b.I64Const(0), g.IntegerValue(v))))}, nil),
		b.If(wasmir.ValNone, g.IsNumeric(v),
			[]*wasmir.Instr{b.Return(b.StructNew(T.Number, b.Unary(wasmir.NegF64, wasmir.ValF64, g.NumericValue(v))))}, nil),
		b.Return(g.diverge(wasmir.ValAnyRef, "attempt to perform arithmetic on a non-number value")),
	}
}

// buildLen implements `#x`: the byte length of a string, or a table
// border (§ Lua 5.3's # on tables is any n where t[n]~=nil and
// t[n+1]==nil; this walks up from 1, which is always a valid border for
// a table built only through normal assignment — i.e. without holes
// punched by explicit `t[k]=nil`).
func (g *Generator) buildLen() []*wasmir.Instr {
	b := g.B
	T := g.Types
	v := g.v0()
	// locals: i=1 (i64)
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Str), v()),
			[]*wasmir.Instr{b.Return(b.StructNew(T.Integer, b.Convert(wasmir.ExtendI32ToI64, wasmir.ValI64, b.ArrayLen(b.RefCast(wasmir.RefType(T.Str), v())))))}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Table), v()),
			[]*wasmir.Instr{
				b.LocalSet(1, b.I64Const(0)),
				b.Loop("probe", wasmir.ValNone,
					b.If(wasmir.ValNone, b.IsNull(g.Call(KeyTableGet, v(), b.StructNew(T.Integer, b.Binary(wasmir.AddI64, wasmir.ValI64, b.LocalGet(1, wasmir.ValI64), b.I64Const(1))))),
						[]*wasmir.Instr{b.Return(b.StructNew(T.Integer, b.LocalGet(1, wasmir.ValI64)))},
						[]*wasmir.Instr{
							b.LocalSet(1, b.Binary(wasmir.AddI64, wasmir.ValI64, b.LocalGet(1, wasmir.ValI64), b.I64Const(1))),
							b.Br("probe"),
						}),
				),
				b.Unreachable(),
			}, nil),
		b.Return(g.diverge(wasmir.ValAnyRef, "attempt to get length of a non-string/table value")),
	}
}
