// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

// LuaString materializes a compile-time-known Go string as a Lua string
// value, backing it with a passive data segment the way string literals
// in user code are built (§4.5).
func (g *Generator) LuaString(s string) *wasmir.Instr {
	b := g.B
	name := g.Mod.AddDataSegment([]byte(s))
	return b.ArrayNewData(g.Types.Str, name, b.I32Const(0), b.I32Const(int32(len(s))))
}

// throwError raises the Lua error tag carrying msg as the error value.
// Every runtime helper that detects a type error reports it this way
// rather than trapping, so pcall/xpcall can observe it (§6.4).
func (g *Generator) throwError(msg string) *wasmir.Instr {
	return g.B.Throw(g.Types.ErrorTag, g.LuaString(msg))
}

// diverge places a throw where an expression of type t is expected: t's
// declared result is never actually produced, since control never falls
// through the throw, but the IR still needs a well-typed placeholder.
func (g *Generator) diverge(t wasmir.ValType, msg string) *wasmir.Instr {
	return g.B.Seq(t, g.throwError(msg), g.B.Unreachable())
}

// toIntegerStrict coerces a numeric value to i64 for the bitwise
// operators, which (§ Lua 5.3 semantics) accept only integers and floats
// with no fractional part; anything else is a runtime error.
func (g *Generator) toIntegerStrict(r read) *wasmir.Instr {
	b := g.B
	T := g.Types
	return b.If(wasmir.ValI64, b.RefTest(wasmir.RefType(T.Integer), r()),
		[]*wasmir.Instr{g.IntegerValue(r)},
		[]*wasmir.Instr{
			b.If(wasmir.ValI64, b.RefTest(wasmir.RefType(T.Number), r()),
				[]*wasmir.Instr{func() *wasmir.Instr {
					v := b.StructGet(T.Number, 0, b.RefCast(wasmir.RefType(T.Number), r()))
					return b.If(wasmir.ValI64, b.Binary(wasmir.EqF64, wasmir.ValI32, v, b.Unary(wasmir.FloorF64, wasmir.ValF64, v)),
						[]*wasmir.Instr{b.Convert(wasmir.TruncF64ToI64, wasmir.ValI64, v)},
						[]*wasmir.Instr{g.diverge(wasmir.ValI64, "number has no integer representation")})
				}()},
				[]*wasmir.Instr{g.diverge(wasmir.ValI64, "attempt to perform bitwise operation on a non-integer value")},
			),
		},
	)
}
