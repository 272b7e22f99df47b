// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package codegen lowers an annotated Lua [ast.Block] into a wasm
// function body (§4.5–4.7 of SPEC_FULL.md): expression and statement
// lowering, the value representation rules runtimelib's catalogue
// assumes, and closure conversion for nested function literals.
//
// Free-variable capture is codegen's own bespoke bookkeeping, layered on
// top of [funcstack.Stack]'s raw slot allocation: a [frame] per nested
// function resolves a name by walking outward through its ancestors,
// and any name resolved in an ancestor is registered, in every frame
// between the declaring one and the requester, as a captured upvalue —
// classic closure conversion, building on the runtime's Upvalue/
// UpvalueArray cell types (internal/wasmir/registry.go); funcstack itself
// only hands out raw slots and has no notion of names or capture.
package codegen

import (
	"fmt"

	"github.com/wumbo-lang/wumbo/internal/ast"
	"github.com/wumbo-lang/wumbo/internal/chunk"
	"github.com/wumbo-lang/wumbo/internal/funcstack"
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/scope"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// Generator holds everything one compilation of a chunk threads through
// expression and statement lowering.
type Generator struct {
	RT  *runtimelib.Generator
	B   *wasmir.Builder
	Mod *wasmir.Module
	T   *wasmir.Registry
	FS  *funcstack.Stack

	cur         *frame
	gotoTargets []gotoTarget
}

// gotoTarget records one visible label: stem names the dispatch [Loop]
// genLabeledRun built around the block the label lives in, selector is
// the wasm local that Loop re-reads on every pass to decide which
// segment to (re)run, and ordinal is the value genGoto stores there to
// select this label's segment — see [Generator.genLabeledRun].
type gotoTarget struct {
	name     ast.Name
	stem     string
	selector int
	ordinal  int32
}

// compileError is the sentinel [Generator.fail] panics with; Compile is
// the only place that recovers it.
type compileError struct{ msg string }

func (e compileError) Error() string { return e.msg }

func (g *Generator) fail(format string, args ...any) {
	panic(compileError{fmt.Sprintf(format, args...)})
}

// sourceKind distinguishes the two places a resolved name's current
// value can live.
type sourceKind int

const (
	srcLocal sourceKind = iota
	srcUpvalue
)

// resolvedSource is what [Generator.resolve] returns: enough to read or
// write the name's current value, or (via [Generator.buildCell]) to
// snapshot/share it into a child closure's upvalue array.
type resolvedSource struct {
	kind  sourceKind
	local int // srcLocal: wasm local index
	typ   wasmir.ValType
	boxed bool // srcLocal: local's own slot is an Upvalue cell
	idx   int  // srcUpvalue: index into the current function's own upvalue array
}

// binding is one name bound in a frame: a Lua local, loop variable, or
// function parameter.
type binding struct {
	name  ast.Name
	local int
	typ   wasmir.ValType
	boxed bool
}

// capture is one free variable a frame must forward from its parent
// through its own UpvalueArray, in the order first requested — the
// order the array literal at the closure's construction site must list
// them in.
type capture struct {
	name   ast.Name
	source resolvedSource // how the *parent* frame reads this name
}

// frame is codegen's own scope-chain node, one per nested Lua function
// currently being generated, parallel to (but independent of)
// [funcstack.Stack]'s function frames.
type frame struct {
	parent *frame

	vars       []binding
	blockMarks []int

	captures   []capture
	captureIdx map[ast.Name]int
}

func (f *frame) pushBlock() { f.blockMarks = append(f.blockMarks, len(f.vars)) }

func (f *frame) popBlock() {
	n := f.blockMarks[len(f.blockMarks)-1]
	f.vars = f.vars[:n]
	f.blockMarks = f.blockMarks[:len(f.blockMarks)-1]
}

func (f *frame) declare(name ast.Name, local int, typ wasmir.ValType, boxed bool) {
	f.vars = append(f.vars, binding{name: name, local: local, typ: typ, boxed: boxed})
}

// resolve finds name starting at f, bubbling outward through ancestor
// frames. A name found in an ancestor is registered as a capture in
// every frame from (but not including) the one that declares it down to
// f, so each intermediate closure forwards it through its own
// UpvalueArray.
func (g *Generator) resolve(f *frame, name ast.Name) (resolvedSource, bool) {
	for i := len(f.vars) - 1; i >= 0; i-- {
		if f.vars[i].name == name {
			v := f.vars[i]
			return resolvedSource{kind: srcLocal, local: v.local, typ: v.typ, boxed: v.boxed}, true
		}
	}
	if idx, ok := f.captureIdx[name]; ok {
		return resolvedSource{kind: srcUpvalue, idx: idx}, true
	}
	if f.parent == nil {
		return resolvedSource{}, false
	}
	parentSrc, ok := g.resolve(f.parent, name)
	if !ok {
		return resolvedSource{}, false
	}
	idx := len(f.captures)
	if f.captureIdx == nil {
		f.captureIdx = make(map[ast.Name]int)
	}
	f.captureIdx[name] = idx
	f.captures = append(f.captures, capture{name: name, source: parentSrc})
	return resolvedSource{kind: srcUpvalue, idx: idx}, true
}

// readSource produces the instruction reading src's current value,
// always relative to the function currently being generated (wasm local
// 0 is every Lua function's upvalue array, per the shared LuaFunc
// signature).
func (g *Generator) readSource(src resolvedSource) *wasmir.Instr {
	b := g.B
	switch src.kind {
	case srcLocal:
		if src.boxed {
			return b.StructGet(g.T.Upvalue, 0, b.LocalGet(src.local, src.typ))
		}
		return b.LocalGet(src.local, src.typ)
	default:
		return b.StructGet(g.T.Upvalue, 0, g.ownUpvalueCell(src.idx))
	}
}

// writeSource stores value into src. Only ever called for a local whose
// [ast.LocalUsage] records a write, so boxed is guaranteed wherever it
// matters (see [Generator.declareLocal]).
func (g *Generator) writeSource(src resolvedSource, value *wasmir.Instr) *wasmir.Instr {
	b := g.B
	switch src.kind {
	case srcLocal:
		if src.boxed {
			return b.StructSet(g.T.Upvalue, 0, b.LocalGet(src.local, src.typ), value)
		}
		return b.LocalSet(src.local, value)
	default:
		return b.StructSet(g.T.Upvalue, 0, g.ownUpvalueCell(src.idx), value)
	}
}

// buildCell produces the Upvalue cell instruction a child closure's
// UpvalueArray literal should use for a captured name, evaluated in the
// *enclosing* (currently generating) function: an already-boxed local or
// an upvalue forwards the same cell by reference (shared mutable
// identity); a plain local is snapshotted into a fresh one-shot cell,
// which is safe because [ast.LocalUsage.IsUpvalue] guarantees it is
// never written again after this point.
func (g *Generator) buildCell(src resolvedSource) *wasmir.Instr {
	b := g.B
	switch src.kind {
	case srcLocal:
		if src.boxed {
			return b.LocalGet(src.local, src.typ)
		}
		return b.StructNew(g.T.Upvalue, b.LocalGet(src.local, src.typ))
	default:
		return g.ownUpvalueCell(src.idx)
	}
}

func (g *Generator) ownUpvalueCell(idx int) *wasmir.Instr {
	b := g.B
	upvaluesT := wasmir.RefType(g.T.UpvalueArray)
	return b.ArrayGet(g.T.UpvalueArray, b.LocalGet(0, upvaluesT), b.I32Const(int32(idx)))
}

func (g *Generator) envTable() *wasmir.Instr {
	src, ok := g.resolve(g.cur, "_ENV")
	if !ok {
		g.fail("codegen: _ENV not in scope")
	}
	return g.readSource(src)
}

func (g *Generator) newTable() *wasmir.Instr {
	b := g.B
	return b.StructNew(g.T.Table,
		b.RefNull(wasmir.NullableRefType(g.T.RefArray)),
		b.RefNull(wasmir.NullableRefType(g.T.HashArray)),
		b.RefNull(wasmir.ValAnyRef),
	)
}

// Compile lowers block (the top level of a chunk) into the body of the
// synthesized `*init` function [chunk.Wrap] installs: a self-contained
// scope analysis pass followed by code generation. _ENV is pre-seeded as
// the chunk frame's sole, already-captured free variable, matching
// [chunk.Wrap]'s single-element upvalue array.
func Compile(mod *wasmir.Module, types *wasmir.Registry, rt *runtimelib.Generator, block *ast.Block) (body chunk.Body, err error) {
	an := scope.New()
	if aerr := an.Analyze(block); aerr != nil {
		return chunk.Body{}, aerr
	}

	g := &Generator{RT: rt, B: rt.B, Mod: mod, T: types, FS: &funcstack.Stack{}}
	// _ENV's cell is supplied by chunk.Wrap as upvalues[0]; pre-seed it as
	// already captured so the chunk frame never tries (and fails) to
	// resolve it in a parent.
	root := &frame{
		captureIdx: map[ast.Name]int{"_ENV": 0},
		captures:   []capture{{name: "_ENV"}},
	}
	g.cur = root
	g.FS.PushFunction(2)
	// The chunk is a vararg function with no declared parameters, so its
	// `...` is the whole arg array in local 1.
	g.FS.SetVarargIndex(1)

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(compileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	instrs := g.genBlock(block)
	if block.Return == nil {
		instrs = append(instrs, g.B.Return(g.B.ArrayNewFixed(g.T.RefArray)))
	}
	locals := g.FS.Locals()
	g.FS.PopFunction()

	return chunk.Body{Locals: locals, Instrs: instrs}, nil
}
