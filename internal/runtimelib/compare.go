// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

// read is a cheap, repeatable read of an already-bound value: a LocalGet,
// almost always. The helpers in this file call it multiple times (once
// per probe), so it must not have side effects.
type read func() *wasmir.Instr

func (g *Generator) IsNumeric(r read) *wasmir.Instr {
	b := g.B
	return b.Binary(wasmir.OrI32, wasmir.ValI32,
		b.RefTest(wasmir.RefType(g.Types.Integer), r()),
		b.RefTest(wasmir.RefType(g.Types.Number), r()))
}

// NumericValue reads a value known (by [Generator.IsNumeric]) to be an
// Integer or Number and widens it to f64, the common type arithmetic and
// relational comparisons promote mixed integer/number operands to.
func (g *Generator) NumericValue(r read) *wasmir.Instr {
	b := g.B
	return b.If(wasmir.ValF64, b.RefTest(wasmir.RefType(g.Types.Integer), r()),
		[]*wasmir.Instr{b.Convert(wasmir.ConvertI64ToF64, wasmir.ValF64,
			b.StructGet(g.Types.Integer, 0, b.RefCast(wasmir.RefType(g.Types.Integer), r())))},
		[]*wasmir.Instr{b.StructGet(g.Types.Number, 0, b.RefCast(wasmir.RefType(g.Types.Number), r()))},
	)
}

// IntegerValue reads a value known to be an Integer and extracts its i64.
func (g *Generator) IntegerValue(r read) *wasmir.Instr {
	b := g.B
	return b.StructGet(g.Types.Integer, 0, b.RefCast(wasmir.RefType(g.Types.Integer), r()))
}

// NormalizeKey implements §3.1's integer/float key identification: a
// Number whose value has no fractional part indexes the same table slot
// as the equal-valued Integer (t[1] and t[1.0] name the same entry).
// Everything else passes through unchanged.
func (g *Generator) NormalizeKey(r read) *wasmir.Instr {
	b := g.B
	T := g.Types
	isIntegralFloat := func() *wasmir.Instr {
		v := b.StructGet(T.Number, 0, b.RefCast(wasmir.RefType(T.Number), r()))
		return b.Binary(wasmir.EqF64, wasmir.ValI32, v, b.Unary(wasmir.FloorF64, wasmir.ValF64, v))
	}
	asInteger := func() *wasmir.Instr {
		v := b.StructGet(T.Number, 0, b.RefCast(wasmir.RefType(T.Number), r()))
		return b.StructNew(T.Integer, b.Convert(wasmir.TruncF64ToI64, wasmir.ValI64, v))
	}
	return b.If(wasmir.ValAnyRef, b.RefTest(wasmir.RefType(T.Number), r()),
		[]*wasmir.Instr{b.If(wasmir.ValAnyRef, isIntegralFloat(), []*wasmir.Instr{asInteger()}, []*wasmir.Instr{r()})},
		[]*wasmir.Instr{r()},
	)
}

// stringEqFunc lazily installs the byte-wise string comparison helper
// every string equality test shares, keyed by HashEntry scanning and the
// equality/inequality runtime helpers alike.
func (g *Generator) stringEqFunc() string {
	const name = "*string_eq"
	if _, ok := g.Mod.FuncIndex(name); ok {
		return name
	}
	b := g.B
	str := wasmir.RefType(g.Types.Str)
	// params: a=0, b=1 ; locals: i=2, length=3
	sig := wasmir.FuncType(name+"_sig", []wasmir.ValType{str, str}, []wasmir.ValType{wasmir.ValI32})
	body := []*wasmir.Instr{
		b.LocalSet(3, b.ArrayLen(b.LocalGet(0, str))),
		b.If(wasmir.ValNone, b.Binary(wasmir.NeI32, wasmir.ValI32, b.LocalGet(3, wasmir.ValI32), b.ArrayLen(b.LocalGet(1, str))),
			[]*wasmir.Instr{b.Return(b.I32Const(0))}, nil),
		b.LocalSet(2, b.I32Const(0)),
		b.Loop("strloop", wasmir.ValNone,
			b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.LocalGet(3, wasmir.ValI32)),
				[]*wasmir.Instr{
					b.If(wasmir.ValNone, b.Binary(wasmir.NeI32, wasmir.ValI32,
						b.ArrayGet(g.Types.Str, b.LocalGet(0, str), b.LocalGet(2, wasmir.ValI32)),
						b.ArrayGet(g.Types.Str, b.LocalGet(1, str), b.LocalGet(2, wasmir.ValI32))),
						[]*wasmir.Instr{b.Return(b.I32Const(0))}, nil),
					b.LocalSet(2, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.I32Const(1))),
					b.Br("strloop"),
				}, nil),
		),
		b.Return(b.I32Const(1)),
	}
	fn := &wasmir.Func{
		Name:   name,
		Sig:    sig,
		Locals: []wasmir.Local{{Type: wasmir.ValI32, Name: "i"}, {Type: wasmir.ValI32, Name: "length"}},
		Body:   body,
	}
	g.Mod.AddFunc(fn)
	return name
}

// RawEqual builds the value-equality expression shared by table key
// lookup and the equality/inequality runtime helpers (§3.1's integer/
// float key normalization and §4.2's equality semantics are the same
// underlying rule: no metamethods, numeric operands compare by value
// across the integer/number tags, everything else compares by tag plus
// reference identity or byte content).
func (g *Generator) RawEqual(a, b_ read) *wasmir.Instr {
	bd := g.B
	T := g.Types
	nonNull := func() *wasmir.Instr {
		return bd.If(wasmir.ValI32, g.IsNumeric(a),
			[]*wasmir.Instr{
				bd.If(wasmir.ValI32, g.IsNumeric(b_),
					[]*wasmir.Instr{bd.Binary(wasmir.EqF64, wasmir.ValI32, g.NumericValue(a), g.NumericValue(b_))},
					[]*wasmir.Instr{bd.I32Const(0)}),
			},
			[]*wasmir.Instr{
				bd.If(wasmir.ValI32, bd.RefTest(wasmir.RefType(T.Str), a()),
					[]*wasmir.Instr{
						bd.If(wasmir.ValI32, bd.RefTest(wasmir.RefType(T.Str), b_()),
							[]*wasmir.Instr{bd.Call(g.stringEqFunc(), wasmir.ValI32,
								bd.RefCast(wasmir.RefType(T.Str), a()), bd.RefCast(wasmir.RefType(T.Str), b_()))},
							[]*wasmir.Instr{bd.I32Const(0)}),
					},
					[]*wasmir.Instr{refIdentity(bd, T, a, b_)},
				),
			},
		)
	}
	return bd.If(wasmir.ValI32, bd.IsNull(a()),
		[]*wasmir.Instr{bd.IsNull(b_())},
		[]*wasmir.Instr{
			bd.If(wasmir.ValI32, bd.IsNull(b_()), []*wasmir.Instr{bd.I32Const(0)}, []*wasmir.Instr{nonNull()}),
		},
	)
}

// refIdentity covers the remaining reference-identity tags (table,
// function, thread, userdata) plus boolean: same concrete tag compares by
// ref.eq (i31 values compare equal under ref.eq too, so boolean needs no
// separate case), anything else is unequal.
func refIdentity(bd *wasmir.Builder, T *wasmir.Registry, a, b read) *wasmir.Instr {
	tags := []*wasmir.HeapType{T.Table, T.Closure, T.Userdata, T.Thread}
	var build func(i int) *wasmir.Instr
	build = func(i int) *wasmir.Instr {
		if i == len(tags) {
			// Boolean (i31) and any remaining mismatch: ref.eq handles
			// i31-vs-i31 correctly and returns false for anything that
			// reaches here without a shared concrete tag.
			return bd.Binary(wasmir.RefEq, wasmir.ValI32, a(), b())
		}
		ht := tags[i]
		return bd.If(wasmir.ValI32, bd.RefTest(wasmir.RefType(ht), a()),
			[]*wasmir.Instr{
				bd.If(wasmir.ValI32, bd.RefTest(wasmir.RefType(ht), b()),
					[]*wasmir.Instr{bd.Binary(wasmir.RefEq, wasmir.ValI32, a(), b())},
					[]*wasmir.Instr{bd.I32Const(0)}),
			},
			[]*wasmir.Instr{build(i + 1)},
		)
	}
	return build(0)
}
