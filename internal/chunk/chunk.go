// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package chunk wraps a compiled top-level Lua block into a complete
// module (§2 item 6 / §4.8): it installs `_ENV`, opens the basic
// library, invokes the chunk body, and catches any uncaught error at the
// module boundary.
package chunk

import (
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// initFuncName is the name of the synthesized vararg function that the
// top-level block becomes; it is never exported, only invoked by start.
const initFuncName = "*init"

// Body is the codegen output for the top-level block, already lowered to
// the `*init` function's shape: signature (upvalue-array, arg-array) ->
// arg-array, with local 0 holding `_ENV`'s upvalue array and local 1
// holding the (always empty, since a chunk is never called with
// arguments) arg array.
type Body struct {
	Locals []wasmir.Local
	Instrs []*wasmir.Instr
}

// Globals builds the instruction that produces the chunk's initial
// globals table, already populated with the basic library and any other
// libraries the embedder chose to open. Supplied by the caller (in
// practice, internal/basiclib) so this package never needs to import a
// concrete library implementation.
type Globals func(g *runtimelib.Generator) *wasmir.Instr

// Wrap installs body as `*init` and adds the module's `start` export: a
// no-argument function that builds `_ENV` from globals, invokes `*init`
// inside a try_table guarding the error tag, and returns normally either
// way — an uncaught Lua error becomes a silent no-op at the module
// boundary in standalone/minimal modes (§6.4, §7 item 3). The error tag
// is exported as "error", but `*init` is not, so a host that runs the
// chunk through `start` never observes an uncaught error.
func Wrap(mod *wasmir.Module, types *wasmir.Registry, g *runtimelib.Generator, body Body, globals Globals) {
	b := g.B
	refArray := wasmir.RefType(types.RefArray)
	upvalueArray := wasmir.RefType(types.UpvalueArray)

	initFn := &wasmir.Func{
		Name: initFuncName,
		// *init has the same (upvalue-array, arg-array) -> arg-array
		// shape every Lua function does, so it reuses LuaFunc's type
		// rather than declaring a lookalike: nothing ever calls *init
		// through call_ref, but there is no reason for it to diverge.
		Sig:    types.LuaFunc,
		Locals: body.Locals,
		Body:   body.Instrs,
	}
	mod.AddFunc(initFn)

	startSig := wasmir.FuncType("start_sig", nil, nil)
	startFn := &wasmir.Func{
		Name: "start",
		Sig:  startSig,
		// locals: env=0 (the _ENV upvalue cell), upvalues=1 (the
		// one-element upvalue array *init's closure carries)
		Locals: []wasmir.Local{
			{Name: "env", Type: wasmir.RefType(types.Upvalue)},
			{Name: "upvalues", Type: upvalueArray},
		},
		Body: []*wasmir.Instr{
			b.LocalSet(0, b.StructNew(types.Upvalue, globals(g))),
			b.LocalSet(1, b.ArrayNewFixed(types.UpvalueArray, b.LocalGet(0, wasmir.RefType(types.Upvalue)))),
			// The catch target is this very block: branching to
			// "start_catch" on a caught error falls straight through to
			// start's (normal, empty) return, which is the "silent no-op"
			// behavior §6.4/§7 item 3 specify for an uncaught error in
			// standalone/minimal modes.
			b.Block("start_catch", wasmir.ValNone,
				b.TryTable(wasmir.ValNone,
					[]*wasmir.Instr{
						// A chunk is never invoked with arguments: the
						// second LuaFunc parameter is an empty, non-null
						// arg array rather than null (LuaFunc's
						// signature declares both parameters non-null).
						b.Drop(b.Call(initFuncName, refArray,
							b.LocalGet(1, upvalueArray),
							b.ArrayNewFixed(types.RefArray),
						)),
					},
					[]wasmir.Catch{{Tag: types.ErrorTag, Label: "start_catch"}},
				),
			),
		},
	}
	mod.AddFunc(startFn)
	mod.ExportFunc(startFn, "start")
	mod.ExportTag(types.ErrorTag, "error")
}
