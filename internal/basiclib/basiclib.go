// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package basiclib implements the mandatory Lua basic library (§4.9 of
// SPEC_FULL.md) and stub tables for the other standard libraries, built
// directly against the GC value model instead of as Go closures over a
// tree-walking VM. Install is a [chunk.Globals] value.
package basiclib

import (
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// buildGlobalsFuncName is the lazily-installed internal function that
// constructs and populates the globals table once per module, following
// the same "*"-prefixed lazy-install pattern as runtimelib's
// string/equality helpers.
const buildGlobalsFuncName = "*build_globals"

// Install is a [github.com/wumbo-lang/wumbo/internal/chunk.Globals]: it
// returns the instruction that builds the chunk's initial globals table,
// already populated with every basic-library function and a stub table
// per other standard library.
func Install(g *runtimelib.Generator) *wasmir.Instr {
	b := g.B
	if _, ok := g.Mod.FuncIndex(buildGlobalsFuncName); !ok {
		g.Mod.AddFunc(&wasmir.Func{
			Name:   buildGlobalsFuncName,
			Sig:    wasmir.FuncType(buildGlobalsFuncName+"_sig", nil, []wasmir.ValType{wasmir.ValAnyRef}),
			Locals: []wasmir.Local{{Name: "globals", Type: wasmir.RefType(g.Types.Table)}},
			Body:   buildGlobalsTable(g),
		})
	}
	return b.Call(buildGlobalsFuncName, wasmir.ValAnyRef)
}

func buildGlobalsTable(g *runtimelib.Generator) []*wasmir.Instr {
	b := g.B
	T := g.Types
	tableT := wasmir.RefType(T.Table)
	globals := func() *wasmir.Instr { return b.LocalGet(0, tableT) }

	set := func(name string, value *wasmir.Instr) *wasmir.Instr {
		return g.Call(runtimelib.KeyTableSet, globals(), g.LuaString(name), value)
	}

	instrs := []*wasmir.Instr{
		b.LocalSet(0, newTable(b, T)),
		set("print", luaFunc(g, "*print", buildPrint)),
		set("type", luaFunc(g, "*type", buildType)),
		set("tostring", luaFunc(g, "*tostring", buildToString)),
		set("tonumber", luaFunc(g, "*tonumber", buildToNumber)),
		set("error", luaFunc(g, "*error", buildError)),
		set("assert", luaFunc(g, "*assert", buildAssert)),
		set("pcall", luaFunc(g, "*pcall", buildPcall)),
		set("xpcall", luaFunc(g, "*xpcall", buildXpcall)),
		set("select", luaFunc(g, "*select", buildSelect)),
		set("setmetatable", luaFunc(g, "*setmetatable", buildSetMetatable)),
		set("getmetatable", luaFunc(g, "*getmetatable", buildGetMetatable)),
		set("next", luaFunc(g, "*next", buildNext)),
		set("pairs", luaFunc(g, "*pairs", buildPairs)),
		set("string", stubLibrary(g, "string", "format", "rep", "sub", "len", "upper", "lower", "byte", "char", "find", "gsub", "gmatch")),
		set("table", stubLibrary(g, "table", "insert", "remove", "concat", "sort", "unpack")),
		set("math", stubLibrary(g, "math", "floor", "ceil", "abs", "max", "min", "sqrt", "huge", "random")),
		set("os", stubLibrary(g, "os", "time", "clock", "date")),
		set("io", stubLibrary(g, "io", "write", "read")),
		set("utf8", stubLibrary(g, "utf8", "char", "codepoint", "len", "offset", "codes", "charpattern")),
	}
	return append(instrs, b.Return(globals()))
}

// newTable builds a fresh, empty Lua table value (§3.1): no array-part,
// no hash-part, no metatable.
func newTable(b *wasmir.Builder, T *wasmir.Registry) *wasmir.Instr {
	return b.StructNew(T.Table,
		b.RefNull(wasmir.NullableRefType(T.RefArray)),
		b.RefNull(wasmir.NullableRefType(T.HashArray)),
		b.RefNull(wasmir.ValAnyRef),
	)
}

// luaFunc lazily installs name as a library function with the standard
// Lua-function shape, built by build, and returns the closure value that
// refers to it. Each closure value gets its own empty upvalue array:
// none of the basic-library functions close over anything.
func luaFunc(g *runtimelib.Generator, name string, build func(g *runtimelib.Generator) (locals []wasmir.Local, body []*wasmir.Instr)) *wasmir.Instr {
	b := g.B
	T := g.Types
	if _, ok := g.Mod.FuncIndex(name); !ok {
		locals, body := build(g)
		g.Mod.AddFunc(&wasmir.Func{Name: name, Sig: T.LuaFunc, Locals: locals, Body: body})
	}
	return b.StructNew(T.Closure, b.RefFunc(name, T.LuaFunc), b.ArrayNewFixed(T.UpvalueArray))
}

// stubLibrary lazily installs "*stublib_<libName>", a no-argument helper
// function that builds a table whose named fields are all present but
// call through to a single shared "not implemented" stub closure — so a
// chunk that merely references e.g. string.format compiles and fails at
// the call site with a catchable Lua error, rather than at compile time.
// Built as its own function (rather than spliced inline) so its scratch
// table-building local gets an independent, correctly-declared slot
// instead of colliding with its caller's locals.
func stubLibrary(g *runtimelib.Generator, libName string, fields ...string) *wasmir.Instr {
	b := g.B
	T := g.Types
	tableT := wasmir.RefType(T.Table)
	name := "*stublib_" + libName

	if _, ok := g.Mod.FuncIndex(name); !ok {
		stub := luaFunc(g, "*stub_"+libName, buildStub(libName))
		// locals: lib=0
		lib := func() *wasmir.Instr { return b.LocalGet(0, tableT) }
		instrs := []*wasmir.Instr{b.LocalSet(0, newTable(b, T))}
		for _, f := range fields {
			instrs = append(instrs, g.Call(runtimelib.KeyTableSet, lib(), g.LuaString(f), stub))
		}
		instrs = append(instrs, b.Return(lib()))
		g.Mod.AddFunc(&wasmir.Func{
			Name:   name,
			Sig:    wasmir.FuncType(name+"_sig", nil, []wasmir.ValType{tableT}),
			Locals: []wasmir.Local{{Name: "lib", Type: tableT}},
			Body:   instrs,
		})
	}
	return b.Call(name, tableT)
}

func buildStub(libName string) func(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	return func(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
		b := g.B
		return nil, []*wasmir.Instr{
			b.Throw(g.Types.ErrorTag, g.LuaString(libName+" library function not implemented")),
		}
	}
}

// argAt reads args[i], or nil if the call supplied fewer than i+1
// arguments — every basic-library function is tolerant of missing
// trailing arguments the way Lua itself is.
func argAt(b *wasmir.Builder, T *wasmir.Registry, i int32) *wasmir.Instr {
	args := func() *wasmir.Instr { return b.LocalGet(1, wasmir.RefType(T.RefArray)) }
	return b.If(wasmir.ValAnyRef, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.I32Const(i), b.ArrayLen(args())),
		[]*wasmir.Instr{b.ArrayGet(T.RefArray, args(), b.I32Const(i))},
		[]*wasmir.Instr{b.RefNull(wasmir.ValAnyRef)},
	)
}

func argsLen(b *wasmir.Builder, T *wasmir.Registry) *wasmir.Instr {
	return b.ArrayLen(b.LocalGet(1, wasmir.RefType(T.RefArray)))
}

func one(b *wasmir.Builder, T *wasmir.Registry, v *wasmir.Instr) *wasmir.Instr {
	return b.ArrayNewFixed(T.RefArray, v)
}

func none(b *wasmir.Builder, T *wasmir.Registry) *wasmir.Instr {
	return b.ArrayNewFixed(T.RefArray)
}
