// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"github.com/wumbo-lang/wumbo/internal/ast"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// genFunctionLiteral fully generates fb as its own wasm Func (depth-
// first: the nested function's body, and therefore its full set of free-
// variable captures, is completely built before control returns here),
// then builds the Closure value at the call site from the now-known
// capture list, read from the *enclosing* frame.
func (g *Generator) genFunctionLiteral(fb *ast.FunctionBody) *wasmir.Instr {
	b := g.B

	parent := g.cur
	savedGoto := g.gotoTargets
	g.gotoTargets = nil // goto cannot cross a function boundary

	child := &frame{parent: parent}
	g.FS.PushFunction(2)
	g.cur = child

	locals, body := g.genFuncBody(fb)

	g.FS.PopFunction()
	g.cur = parent
	g.gotoTargets = savedGoto

	name := g.Mod.NewLabel("func")
	g.Mod.AddFunc(&wasmir.Func{Name: name, Sig: g.T.LuaFunc, Locals: locals, Body: body})

	cells := make([]*wasmir.Instr, len(child.captures))
	for i, c := range child.captures {
		cells[i] = g.buildCell(c.source)
	}
	return b.StructNew(g.T.Closure, b.RefFunc(name, g.T.LuaFunc), b.ArrayNewFixed(g.T.UpvalueArray, cells...))
}

// genFuncBody lowers fb's parameters, vararg capture and block into one
// function's locals and body, assuming the caller has already pushed
// both a funcstack function frame (with argCount 2: every LuaFunc shares
// the (upvalues, args) shape) and a matching codegen frame.
func (g *Generator) genFuncBody(fb *ast.FunctionBody) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	var instrs []*wasmir.Instr
	instrs = append(instrs, g.genFuncParams(fb)...)
	instrs = append(instrs, g.genBlock(&fb.Block)...)
	if fb.Block.Return == nil {
		instrs = append(instrs, b.Return(b.ArrayNewFixed(g.T.RefArray)))
	}
	return g.FS.Locals(), instrs
}

// genFuncParams unpacks the fixed args array (wasm local 1) into each
// declared parameter's own local, nil-padding missing trailing
// arguments, and — for a vararg function — slices off the remainder
// into the synthesized `...` array.
func (g *Generator) genFuncParams(fb *ast.FunctionBody) []*wasmir.Instr {
	b := g.B
	T := g.T
	argsT := wasmir.RefType(T.RefArray)
	args := func() *wasmir.Instr { return b.LocalGet(1, argsT) }

	var instrs []*wasmir.Instr
	for i, p := range fb.Params {
		idx := int32(i)
		v := b.If(wasmir.ValAnyRef, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.I32Const(idx), b.ArrayLen(args())),
			[]*wasmir.Instr{b.ArrayGet(T.RefArray, args(), b.I32Const(idx))},
			[]*wasmir.Instr{b.RefNull(wasmir.ValAnyRef)},
		)
		instrs = append(instrs, g.declareLocal(p, fb.ParamUsage[i], v)...)
	}

	if fb.Vararg {
		n := int32(len(fb.Params))
		lenL := g.FS.AllocLocal(wasmir.ValI32, "vararg_len", true)
		varSlot := g.FS.AllocLuaLocal("...", wasmir.RefType(T.RefArray))
		raw := b.Binary(wasmir.SubI32, wasmir.ValI32, b.ArrayLen(args()), b.I32Const(n))
		instrs = append(instrs,
			b.LocalSet(lenL, b.If(wasmir.ValI32, b.Binary(wasmir.LtSI32, wasmir.ValI32, raw, b.I32Const(0)),
				[]*wasmir.Instr{b.I32Const(0)}, []*wasmir.Instr{raw})),
			b.LocalSet(varSlot, b.ArrayNew(T.RefArray, b.LocalGet(lenL, wasmir.ValI32), b.RefNull(wasmir.ValAnyRef))),
			b.ArrayCopy(T.RefArray, b.LocalGet(varSlot, wasmir.RefType(T.RefArray)), b.I32Const(0), T.RefArray, args(), b.I32Const(n), b.LocalGet(lenL, wasmir.ValI32)),
		)
		g.FS.SetVarargIndex(varSlot)
		g.FS.FreeLocal(lenL)
	}
	return instrs
}
