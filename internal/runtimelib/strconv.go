// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

// HostImport lazily declares an imported function under module/name and
// returns the symbol call sites address it by. Re-declaring the same
// module/name pair is a no-op that returns the existing symbol, so a
// host routine is imported at most once however many callers ask for it.
func (g *Generator) HostImport(module, name string, params, results []wasmir.ValType) string {
	key := module + "." + name
	if local, ok := g.hostImports[key]; ok {
		return local
	}
	sig := wasmir.FuncType(key+"_sig", params, results)
	g.Mod.AddImport(&wasmir.Import{Module: module, Name: name, Sig: sig, LocalName: name})
	g.hostImports[key] = name
	return name
}

// buildToString implements `tostring`: string passes through, boolean and
// nil format to their literal spelling, and integer/number are formatted
// by a host-provided collaborator (§1 Non-goals: number formatting is not
// this compiler's concern) and bridged back into a Lua string through
// js_array_to_lua_str. Table/function/userdata/thread have no notion of
// object identity at this layer (no addresses exist before serialization,
// §1 Non-goals), so they format to their bare type name.
func (g *Generator) buildToString() []*wasmir.Instr {
	b := g.B
	T := g.Types
	v := g.v0()
	intToStr := g.HostImport("native", "int_to_str", []wasmir.ValType{wasmir.ValI64}, []wasmir.ValType{wasmir.ValExtern})
	numToStr := g.HostImport("native", "num_to_str", []wasmir.ValType{wasmir.ValF64}, []wasmir.ValType{wasmir.ValExtern})
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.IsNull(v()), []*wasmir.Instr{b.Return(g.LuaString("nil"))}, nil),
		b.If(wasmir.ValNone, b.IsI31(v()), []*wasmir.Instr{
			b.Return(b.If(wasmir.RefType(T.Str), b.I31Get(v()),
				[]*wasmir.Instr{g.LuaString("true")}, []*wasmir.Instr{g.LuaString("false")})),
		}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Str), v()),
			[]*wasmir.Instr{b.Return(b.RefCast(wasmir.RefType(T.Str), v()))}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Integer), v()),
			[]*wasmir.Instr{b.Return(g.Call(KeyJsArrayToLuaStr, b.Call(intToStr, wasmir.ValExtern, g.IntegerValue(v))))}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Number), v()),
			[]*wasmir.Instr{b.Return(g.Call(KeyJsArrayToLuaStr, b.Call(numToStr, wasmir.ValExtern, g.NumericValue(v))))}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Table), v()), []*wasmir.Instr{b.Return(g.LuaString("table"))}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Closure), v()), []*wasmir.Instr{b.Return(g.LuaString("function"))}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Thread), v()), []*wasmir.Instr{b.Return(g.LuaString("thread"))}, nil),
		b.Return(g.LuaString("userdata")),
	}
}

// buildToNumber implements `tonumber` on its single-argument form: a
// number or integer passes through unchanged, a string is parsed by the
// same host collaborator to_string defers formatting to, and anything
// else yields nil (§ Lua 5.3 "fail" return on a non-numeric value, here
// represented the same way table_get's miss case is: a null anyref).
func (g *Generator) buildToNumber() []*wasmir.Instr {
	b := g.B
	T := g.Types
	v := g.v0()
	strToNum := g.HostImport("native", "str_to_num", []wasmir.ValType{wasmir.ValExtern}, []wasmir.ValType{wasmir.ValF64})
	return []*wasmir.Instr{
		b.If(wasmir.ValNone, b.Binary(wasmir.OrI32, wasmir.ValI32,
			b.RefTest(wasmir.RefType(T.Integer), v()), b.RefTest(wasmir.RefType(T.Number), v())),
			[]*wasmir.Instr{b.Return(v())}, nil),
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Str), v()),
			[]*wasmir.Instr{
				b.Return(b.StructNew(T.Number, b.Call(strToNum, wasmir.ValF64, g.Call(KeyLuaStrToJsArray, v())))),
			}, nil),
		b.Return(b.RefNull(wasmir.ValAnyRef)),
	}
}

// buildLuaStrToJsArray copies a Lua string's packed bytes into a
// host-allocated buffer one byte at a time through the "buffer"
// collaborator, so that a host embedder never has to understand this
// module's internal GC layout (§1 Non-goals: the JS embedding API is an
// external collaborator). Locals, after the Ref Str param=0: i=1 (i32,
// counts down), buf=2 (externref).
func (g *Generator) buildLuaStrToJsArray() []*wasmir.Instr {
	b := g.B
	T := g.Types
	str := wasmir.RefType(T.Str)
	bufNew := g.HostImport("buffer", "new", []wasmir.ValType{wasmir.ValI32}, []wasmir.ValType{wasmir.ValExtern})
	bufSet := g.HostImport("buffer", "set", []wasmir.ValType{wasmir.ValExtern, wasmir.ValI32, wasmir.ValI32}, nil)
	length := func() *wasmir.Instr { return b.ArrayLen(b.LocalGet(0, str)) }
	return []*wasmir.Instr{
		b.LocalSet(2, b.Call(bufNew, wasmir.ValExtern, b.LocalTee(1, length(), wasmir.ValI32))),
		b.If(wasmir.ValNone, b.LocalGet(1, wasmir.ValI32),
			[]*wasmir.Instr{
				b.Loop("bufout", wasmir.ValNone,
					b.Call(bufSet, wasmir.ValNone,
						b.LocalGet(2, wasmir.ValExtern),
						b.LocalTee(1, b.Binary(wasmir.SubI32, wasmir.ValI32, b.LocalGet(1, wasmir.ValI32), b.I32Const(1)), wasmir.ValI32),
						b.ArrayGet(T.Str, b.LocalGet(0, str), b.LocalGet(1, wasmir.ValI32))),
					b.BrIf("bufout", b.LocalGet(1, wasmir.ValI32)),
				),
			}, nil),
		b.Return(b.LocalGet(2, wasmir.ValExtern)),
	}
}

// buildJsArrayToLuaStr is buildLuaStrToJsArray's inverse: it copies a
// host buffer's bytes into a freshly allocated Lua string, one byte at a
// time through the same "buffer" collaborator. Locals, after the
// Externref param=0: i=1 (i32), out=2 (Ref Str).
func (g *Generator) buildJsArrayToLuaStr() []*wasmir.Instr {
	b := g.B
	T := g.Types
	str := wasmir.RefType(T.Str)
	bufSize := g.HostImport("buffer", "size", []wasmir.ValType{wasmir.ValExtern}, []wasmir.ValType{wasmir.ValI32})
	bufGet := g.HostImport("buffer", "get", []wasmir.ValType{wasmir.ValExtern, wasmir.ValI32}, []wasmir.ValType{wasmir.ValI32})
	length := func() *wasmir.Instr { return b.Call(bufSize, wasmir.ValI32, b.LocalGet(0, wasmir.ValExtern)) }
	return []*wasmir.Instr{
		b.LocalSet(2, b.ArrayNew(T.Str, b.LocalTee(1, length(), wasmir.ValI32), b.I32Const(0))),
		b.If(wasmir.ValNone, b.LocalGet(1, wasmir.ValI32),
			[]*wasmir.Instr{
				b.Loop("bufin", wasmir.ValNone,
					b.ArraySet(T.Str, b.LocalGet(2, str),
						b.LocalTee(1, b.Binary(wasmir.SubI32, wasmir.ValI32, b.LocalGet(1, wasmir.ValI32), b.I32Const(1)), wasmir.ValI32),
						b.Call(bufGet, wasmir.ValI32, b.LocalGet(0, wasmir.ValExtern), b.LocalGet(1, wasmir.ValI32))),
					b.BrIf("bufin", b.LocalGet(1, wasmir.ValI32)),
				),
			}, nil),
		b.Return(b.LocalGet(2, str)),
	}
}
