// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

// buildInvoke implements the call trampoline every `f(...)` call site
// goes through: it is the one place a Lua value is taken apart into its
// funcref and upvalue array and handed to call_ref, tail-called so that
// Lua's unbounded call depth never grows the wasm stack (§4.2's invoke
// helper; every other call site ultimately bottoms out here or in a
// direct call to a statically-known function).
func (g *Generator) buildInvoke() []*wasmir.Instr {
	b := g.B
	T := g.Types
	v := g.v0()
	closureT := wasmir.RefType(T.Closure)
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.RefTest(closureT, v()),
			[]*wasmir.Instr{
				func() *wasmir.Instr {
					closure := func() *wasmir.Instr { return b.LocalTee(2, b.RefCast(closureT, v()), closureT) }
					funcRef := b.StructGet(T.Closure, 0, closure())
					upvalues := b.StructGet(T.Closure, 1, b.LocalGet(2, closureT))
					args := b.LocalGet(1, wasmir.RefType(T.RefArray))
					return b.ReturnCallRef(T.LuaFunc, funcRef, upvalues, args)
				}(),
			}, nil),
		b.Return(g.diverge(wasmir.RefType(T.RefArray), "attempt to call a non-function value")),
	}
}
