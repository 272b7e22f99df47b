// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package funcstack tracks the code generator's compile-time view of a
// wasm function's local-slot space: which index a Lua local or a
// short-lived helper temporary lives in, and when a slot becomes free to
// reuse (§4.4). It operates purely on [wasmir.ValType] and integer
// offsets and knows nothing about names or free-variable capture —
// name resolution and upvalue-cell boxing are codegen's own concern
// (see internal/codegen's package doc: its frame type walks an
// independent scope chain built on top of this package's raw slots).
//
// Grounded on the source project's function_stack: one flat, shared
// slot array across every nested function, truncated back to a saved
// mark on function exit rather than each scope owning its own slice;
// block exit only marks the block's slots free for reuse.
package funcstack

import (
	"fmt"

	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

type local struct {
	name   string
	typ    wasmir.ValType
	used   bool
	helper bool
}

// funcFrame marks where one nested function's locals begin in vars, plus
// the bookkeeping local_offset needs to translate a vars index into a
// wasm local index (arguments occupy indices [0, argCount) and are never
// represented in vars).
type funcFrame struct {
	offset      int
	argCount    int
	varargIndex int // wasm local index of the synthesized vararg array, or -1
	loopLabels  []string
	loopNo      int
}

// Stack is the function-stack bookkeeping shared by every nested Lua
// function the code generator is currently inside. The zero value is
// ready to use.
type Stack struct {
	functions []funcFrame
	blocks    []int
	vars      []local
}

// PushFunction enters a new nested function with argCount fixed
// parameters already occupying wasm locals [0, argCount).
func (s *Stack) PushFunction(argCount int) {
	s.functions = append(s.functions, funcFrame{
		offset:      len(s.vars),
		argCount:    argCount,
		varargIndex: -1,
	})
}

// PopFunction leaves the innermost function, discarding every local slot
// and loop label it allocated.
func (s *Stack) PopFunction() {
	f := s.functions[len(s.functions)-1]
	s.vars = s.vars[:f.offset]
	s.functions = s.functions[:len(s.functions)-1]
}

func (s *Stack) current() *funcFrame { return &s.functions[len(s.functions)-1] }

// SetVarargIndex records the wasm local index of the current function's
// synthesized `...` array, once [Stack.AllocLuaLocal] has allocated it.
func (s *Stack) SetVarargIndex(index int) { s.current().varargIndex = index }

// VarargIndex reports the current function's vararg array local index,
// and whether the function is variadic at all.
func (s *Stack) VarargIndex() (int, bool) {
	f := s.current()
	return f.varargIndex, f.varargIndex >= 0
}

// PushBlock marks the current local-slot high-water mark so that
// [Stack.PopBlock] knows which slots this block's locals occupied.
func (s *Stack) PushBlock() {
	s.blocks = append(s.blocks, len(s.vars))
}

// PopBlock releases every non-helper local declared since the matching
// PushBlock back to the free pool, leaving helper temporaries' used bit
// untouched: a helper's lifetime is scoped to the single expression it
// was allocated for and is always released explicitly by
// [Stack.FreeLocal], not by block exit.
func (s *Stack) PopBlock() {
	n := s.blocks[len(s.blocks)-1]
	for i := n; i < len(s.vars); i++ {
		if !s.vars[i].helper {
			s.vars[i].used = false
		}
	}
	s.blocks = s.blocks[:len(s.blocks)-1]
}

// PushLoop enters a new loop nested in the current function and returns
// a label stem unique within it; codegen derives the loop's wasm block
// and loop labels from this stem (the stem itself labels the loop,
// stem+"_end" the block around it).
func (s *Stack) PushLoop() string {
	f := s.current()
	f.loopNo++
	label := fmt.Sprintf("loop%d", f.loopNo)
	f.loopLabels = append(f.loopLabels, label)
	return label
}

// PopLoop leaves the innermost loop.
func (s *Stack) PopLoop() {
	f := s.current()
	f.loopLabels = f.loopLabels[:len(f.loopLabels)-1]
}

// BreakTarget returns the label stem of the innermost enclosing loop, for
// lowering a break statement; ok is false outside any loop.
func (s *Stack) BreakTarget() (stem string, ok bool) {
	f := s.current()
	if len(f.loopLabels) == 0 {
		return "", false
	}
	return f.loopLabels[len(f.loopLabels)-1], true
}

// LocalOffset translates a vars-slice index into the wasm local index a
// codegen Instr should address it by.
func (s *Stack) LocalOffset(index int) int {
	f := s.current()
	return f.argCount + (index - f.offset)
}

// FreeLocal releases the slot addressed by the wasm local index pos,
// making it available for the next [Stack.AllocLocal] of the same type.
func (s *Stack) FreeLocal(pos int) {
	f := s.current()
	s.vars[pos-f.argCount+f.offset].used = false
}

// AllocLocal reserves a wasm local of type t, reusing the lowest-index
// free slot of that exact type within the current function if one
// exists and otherwise growing the function's local space by one slot.
// helper marks the slot as a short-lived temporary, exempting it from
// [Stack.PopBlock]'s automatic release.
func (s *Stack) AllocLocal(t wasmir.ValType, name string, helper bool) int {
	f := s.current()
	for i := f.offset; i < len(s.vars); i++ {
		v := &s.vars[i]
		if v.used || v.typ != t {
			continue
		}
		v.used = true
		v.helper = helper
		v.name = name
		return s.LocalOffset(i)
	}
	s.vars = append(s.vars, local{name: name, typ: t, used: true, helper: helper})
	return s.LocalOffset(len(s.vars) - 1)
}

// AllocLuaLocal reserves a wasm local for a named, user-declared Lua
// local (as opposed to a codegen helper temporary): its slot is released
// automatically at the enclosing block's exit, never reused mid-block.
func (s *Stack) AllocLuaLocal(name string, t wasmir.ValType) int {
	return s.AllocLocal(t, name, false)
}

// Locals returns the current (innermost) function's declared locals
// beyond its fixed parameters, in wasm local-index order — the shape
// [wasmir.Func.Locals] needs. A reused slot's Name reflects only its
// last occupant; AllocLocal never reuses a slot at a different type, so
// Type is always accurate. Call this before [Stack.PopFunction] discards
// the bookkeeping it reads.
func (s *Stack) Locals() []wasmir.Local {
	f := s.current()
	out := make([]wasmir.Local, len(s.vars)-f.offset)
	for i := range out {
		v := s.vars[f.offset+i]
		out[i] = wasmir.Local{Type: v.typ, Name: v.name}
	}
	return out
}
