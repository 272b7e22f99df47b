// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package basiclib

import (
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// buildPrint implements `print`. Per the basic library's one-argument
// contract (SPEC_FULL.md §4.9), only the first argument is formatted and
// written; passing a result array straight through would require the
// varargs-concatenation machinery `table.concat`-backed user code already
// covers.
func buildPrint(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	stdout := g.HostImport("native", "stdout", []wasmir.ValType{wasmir.ValExtern}, nil)
	s := g.Call(runtimelib.KeyConcat, g.Call(runtimelib.KeyToString, argAt(b, T, 0)), g.LuaString("\n"))
	return nil, []*wasmir.Instr{
		b.Call(stdout, wasmir.ValNone, g.Call(runtimelib.KeyLuaStrToJsArray, s)),
		b.Return(none(b, T)),
	}
}

// buildType implements `type`: the tag name as a Lua string, for every
// tag the value model distinguishes (§3.1).
func buildType(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	v := argAt(b, T, 0)
	tagged := func(ht *wasmir.HeapType, name string) *wasmir.Instr {
		return b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(ht), v),
			[]*wasmir.Instr{b.Return(one(b, T, g.LuaString(name)))}, nil)
	}
	return nil, []*wasmir.Instr{
		b.If(wasmir.ValNone, b.IsNull(v), []*wasmir.Instr{b.Return(one(b, T, g.LuaString("nil")))}, nil),
		b.If(wasmir.ValNone, b.IsI31(v), []*wasmir.Instr{b.Return(one(b, T, g.LuaString("boolean")))}, nil),
		tagged(T.Integer, "number"),
		tagged(T.Number, "number"),
		tagged(T.Str, "string"),
		tagged(T.Closure, "function"),
		tagged(T.Table, "table"),
		tagged(T.Thread, "thread"),
		b.Return(one(b, T, g.LuaString("userdata"))),
	}
}

func buildToString(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	return nil, []*wasmir.Instr{
		b.Return(one(b, T, g.Call(runtimelib.KeyToString, argAt(b, T, 0)))),
	}
}

func buildToNumber(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	return nil, []*wasmir.Instr{
		b.Return(one(b, T, g.Call(runtimelib.KeyToNumber, argAt(b, T, 0)))),
	}
}

// buildError implements `error(v [, level])`: level is accepted, per
// signature parity with real Lua, and ignored — this compiler attaches
// no source-position information to error values (Non-goal: debugging
// beyond local-name preservation).
func buildError(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	return nil, []*wasmir.Instr{
		b.Seq(wasmir.ValNone, b.Throw(T.ErrorTag, argAt(b, T, 0)), b.Unreachable()),
	}
}

// buildAssert implements `assert(v [, message])`: returns every argument
// unchanged when v is truthy, otherwise throws message (default
// "assertion failed!").
func buildAssert(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	v := argAt(b, T, 0)
	msg := b.If(wasmir.ValAnyRef, b.IsNull(argAt(b, T, 1)),
		[]*wasmir.Instr{g.LuaString("assertion failed!")},
		[]*wasmir.Instr{argAt(b, T, 1)},
	)
	return nil, []*wasmir.Instr{
		b.If(wasmir.ValNone, b.Unary(wasmir.EqzI32, wasmir.ValI32, g.Call(runtimelib.KeyToBool, v)),
			[]*wasmir.Instr{b.Seq(wasmir.ValNone, b.Throw(T.ErrorTag, msg), b.Unreachable())}, nil),
		b.Return(b.LocalGet(1, wasmir.RefType(T.RefArray))),
	}
}

// prependBoolFunc lazily installs "*prepend_bool", a helper taking
// (bool, results) and returning a fresh array holding the boxed boolean
// followed by every element of results — how pcall/xpcall assemble
// their "(status, ...)" return shape without a fixed-arity ArrayNewFixed.
func prependBoolFunc(g *runtimelib.Generator) string {
	const name = "*prepend_bool"
	if _, ok := g.Mod.FuncIndex(name); ok {
		return name
	}
	b := g.B
	T := g.Types
	refArray := wasmir.RefType(T.RefArray)
	// params: ok=0 (i32), rest=1 (Ref RefArray) ; locals: out=2 (Ref RefArray)
	sig := wasmir.FuncType(name+"_sig", []wasmir.ValType{wasmir.ValI32, refArray}, []wasmir.ValType{refArray})
	rest := func() *wasmir.Instr { return b.LocalGet(1, refArray) }
	body := []*wasmir.Instr{
		b.LocalSet(2, b.ArrayNew(T.RefArray, b.Binary(wasmir.AddI32, wasmir.ValI32, b.ArrayLen(rest()), b.I32Const(1)), b.RefNull(wasmir.ValAnyRef))),
		b.ArraySet(T.RefArray, b.LocalGet(2, refArray), b.I32Const(0), b.RefI31(b.LocalGet(0, wasmir.ValI32))),
		b.ArrayCopy(T.RefArray, b.LocalGet(2, refArray), b.I32Const(1), T.RefArray, rest(), b.I32Const(0), b.ArrayLen(rest())),
		b.Return(b.LocalGet(2, refArray)),
	}
	g.Mod.AddFunc(&wasmir.Func{Name: name, Sig: sig, Locals: []wasmir.Local{{Name: "out", Type: refArray}}, Body: body})
	return name
}

// buildPcall implements `pcall(f, ...)`: invoke f with the trailing
// arguments, catching the error tag. On success the result array is
// `true` prepended to f's own results; on catch, `(false, err)`.
// Locals, after upvalues=0 args=1: fn_args=2 (Ref RefArray), results=3
// (Ref RefArray, the successful-call outcome copied out of the
// try_table body since try_table itself carries no value here), err=4
// (anyref, the thrown value the catch delivers).
func buildPcall(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	refArray := wasmir.RefType(T.RefArray)
	args := func() *wasmir.Instr { return b.LocalGet(1, refArray) }
	prepend := prependBoolFunc(g)
	locals := []wasmir.Local{
		{Name: "fn_args", Type: refArray},
		{Name: "results", Type: refArray},
		{Name: "err", Type: wasmir.ValAnyRef},
	}
	body := []*wasmir.Instr{
		b.LocalSet(2, b.ArrayNew(T.RefArray, b.Binary(wasmir.SubI32, wasmir.ValI32, b.ArrayLen(args()), b.I32Const(1)), b.RefNull(wasmir.ValAnyRef))),
		b.ArrayCopy(T.RefArray, b.LocalGet(2, refArray), b.I32Const(0), T.RefArray, args(), b.I32Const(1),
			b.Binary(wasmir.SubI32, wasmir.ValI32, b.ArrayLen(args()), b.I32Const(1))),
		b.LocalSet(4, b.Block("pcall_catch", wasmir.ValAnyRef,
			b.TryTable(wasmir.ValNone,
				[]*wasmir.Instr{
					b.LocalSet(3, g.Call(runtimelib.KeyInvoke, argAt(b, T, 0), b.LocalGet(2, refArray))),
					b.Return(b.Call(prepend, refArray, b.I32Const(1), b.LocalGet(3, refArray))),
				},
				[]wasmir.Catch{{Tag: T.ErrorTag, Label: "pcall_catch"}},
			),
			// The try_table body always returns, so the block is only
			// left through the catch, which carries the thrown value.
			b.Unreachable(),
		)),
		b.Return(b.Call(prepend, refArray, b.I32Const(0), one(b, T, b.LocalGet(4, wasmir.ValAnyRef)))),
	}
	return locals, body
}

// buildXpcall implements `xpcall(f, handler, ...)`, the same shape as
// pcall, but on failure it first calls handler with the caught value
// (discarding the handler's results) and then returns `(false, err)`.
func buildXpcall(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	refArray := wasmir.RefType(T.RefArray)
	args := func() *wasmir.Instr { return b.LocalGet(1, refArray) }
	prepend := prependBoolFunc(g)
	locals := []wasmir.Local{
		{Name: "fn_args", Type: refArray},
		{Name: "results", Type: refArray},
		{Name: "err", Type: wasmir.ValAnyRef},
	}
	body := []*wasmir.Instr{
		b.LocalSet(2, b.ArrayNew(T.RefArray, b.Binary(wasmir.SubI32, wasmir.ValI32, b.ArrayLen(args()), b.I32Const(2)), b.RefNull(wasmir.ValAnyRef))),
		b.ArrayCopy(T.RefArray, b.LocalGet(2, refArray), b.I32Const(0), T.RefArray, args(), b.I32Const(2),
			b.Binary(wasmir.SubI32, wasmir.ValI32, b.ArrayLen(args()), b.I32Const(2))),
		b.LocalSet(4, b.Block("xpcall_catch", wasmir.ValAnyRef,
			b.TryTable(wasmir.ValNone,
				[]*wasmir.Instr{
					b.LocalSet(3, g.Call(runtimelib.KeyInvoke, argAt(b, T, 0), b.LocalGet(2, refArray))),
					b.Return(b.Call(prepend, refArray, b.I32Const(1), b.LocalGet(3, refArray))),
				},
				[]wasmir.Catch{{Tag: T.ErrorTag, Label: "xpcall_catch"}},
			),
			b.Unreachable(),
		)),
		b.Drop(g.Call(runtimelib.KeyInvoke, argAt(b, T, 1), one(b, T, b.LocalGet(4, wasmir.ValAnyRef)))),
		b.Return(b.Call(prepend, refArray, b.I32Const(0), one(b, T, b.LocalGet(4, wasmir.ValAnyRef)))),
	}
	return locals, body
}

// buildSelect implements `select(n, ...)` and `select("#", ...)`: since
// this value model has no distinguished string-vs-number fast path at
// this layer, "#" is detected by testing for a Str tag. The numeric form
// returns the trailing slice of the argument list starting at n (1-based,
// per Lua's own convention).
func buildSelect(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	refArray := wasmir.RefType(T.RefArray)
	n := argAt(b, T, 0)
	// locals, after upvalues=0 args=1: start=2 (i32), result=3 (Ref RefArray)
	locals := []wasmir.Local{
		{Name: "start", Type: wasmir.ValI32},
		{Name: "result", Type: refArray},
	}
	args := func() *wasmir.Instr { return b.LocalGet(1, refArray) }
	return locals, []*wasmir.Instr{
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Str), n),
			[]*wasmir.Instr{
				b.Return(one(b, T, b.StructNew(T.Integer, b.Convert(wasmir.ExtendI32ToI64, wasmir.ValI64,
					b.Binary(wasmir.SubI32, wasmir.ValI32, argsLen(b, T), b.I32Const(1)))))),
			}, nil),
		b.LocalSet(2, b.Binary(wasmir.SubI32, wasmir.ValI32,
			b.Convert(wasmir.WrapI64ToI32, wasmir.ValI32,
				g.IntegerValue(func() *wasmir.Instr { return b.RefCast(wasmir.RefType(T.Integer), n) })),
			b.I32Const(1))),
		b.LocalSet(3, b.ArrayNew(T.RefArray,
			b.Binary(wasmir.SubI32, wasmir.ValI32, b.Binary(wasmir.SubI32, wasmir.ValI32, argsLen(b, T), b.I32Const(1)), b.LocalGet(2, wasmir.ValI32)),
			b.RefNull(wasmir.ValAnyRef))),
		b.ArrayCopy(T.RefArray, b.LocalGet(3, refArray), b.I32Const(0), T.RefArray,
			args(), b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.I32Const(1)),
			b.Binary(wasmir.SubI32, wasmir.ValI32, b.Binary(wasmir.SubI32, wasmir.ValI32, argsLen(b, T), b.I32Const(1)), b.LocalGet(2, wasmir.ValI32))),
		b.Return(b.LocalGet(3, refArray)),
	}
}

// setmetatable requires its first argument to be a table (Lua 5.3's own
// restriction, since only tables carry a metatable slot in this value
// model — userdata metatables are out of scope, §1 Non-goals).
func buildSetMetatable(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	tbl := func() *wasmir.Instr { return b.RefCast(wasmir.RefType(T.Table), argAt(b, T, 0)) }
	return nil, []*wasmir.Instr{
		b.If(wasmir.ValNone, b.Unary(wasmir.EqzI32, wasmir.ValI32, b.RefTest(wasmir.RefType(T.Table), argAt(b, T, 0))),
			[]*wasmir.Instr{b.Seq(wasmir.ValNone, b.Throw(T.ErrorTag, g.LuaString("bad argument #1 to 'setmetatable' (table expected)")), b.Unreachable())}, nil),
		b.StructSet(T.Table, 2, tbl(), argAt(b, T, 1)),
		b.Return(one(b, T, argAt(b, T, 0))),
	}
}

func buildGetMetatable(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	tbl := func() *wasmir.Instr { return b.RefCast(wasmir.RefType(T.Table), argAt(b, T, 0)) }
	return nil, []*wasmir.Instr{
		b.If(wasmir.ValNone, b.RefTest(wasmir.RefType(T.Table), argAt(b, T, 0)),
			[]*wasmir.Instr{b.Return(one(b, T, b.StructGet(T.Table, 2, tbl())))}, nil),
		b.Return(one(b, T, b.RefNull(wasmir.ValAnyRef))),
	}
}

// findKeyIndexFunc lazily installs "*hash_find_key", a helper taking
// (hash array, key) and returning the index of the entry whose key is
// raw-equal to key, or the array's length if no entry matches — mirrors
// stringEqFunc/stringCompareFunc's own lazy-loop-helper shape.
func findKeyIndexFunc(g *runtimelib.Generator) string {
	const name = "*hash_find_key"
	if _, ok := g.Mod.FuncIndex(name); ok {
		return name
	}
	b := g.B
	T := g.Types
	hashT := wasmir.RefType(T.HashArray)
	// params: hash=0, key=1 ; locals: i=2, length=3
	sig := wasmir.FuncType(name+"_sig", []wasmir.ValType{hashT, wasmir.ValAnyRef}, []wasmir.ValType{wasmir.ValI32})
	hash := func() *wasmir.Instr { return b.LocalGet(0, hashT) }
	key := func() *wasmir.Instr { return b.LocalGet(1, wasmir.ValAnyRef) }
	entryKey := func() *wasmir.Instr {
		return b.StructGet(T.HashEntry, 0, b.ArrayGet(T.HashArray, hash(), b.LocalGet(2, wasmir.ValI32)))
	}
	body := []*wasmir.Instr{
		b.LocalSet(3, b.ArrayLen(hash())),
		b.LocalSet(2, b.I32Const(0)),
		b.Loop("scan", wasmir.ValNone,
			b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.LocalGet(3, wasmir.ValI32)),
				[]*wasmir.Instr{
					b.If(wasmir.ValNone, g.RawEqual(entryKey, key),
						[]*wasmir.Instr{b.Return(b.LocalGet(2, wasmir.ValI32))}, nil),
					b.LocalSet(2, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(2, wasmir.ValI32), b.I32Const(1))),
					b.Br("scan"),
				}, nil),
		),
		b.Return(b.LocalGet(3, wasmir.ValI32)),
	}
	g.Mod.AddFunc(&wasmir.Func{Name: name, Sig: sig, Locals: []wasmir.Local{{Name: "i", Type: wasmir.ValI32}, {Name: "length", Type: wasmir.ValI32}}, Body: body})
	return name
}

// buildNext implements `next(t, k)`: a linear walk over the table's
// hash-part (§4.2.6's array-part is never populated, so there is nothing
// else to walk), returning the entry after k, or the first entry when k
// is nil, or `(nil)` when k was the last entry.
func buildNext(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	hashT := wasmir.RefType(T.HashArray)
	tbl := func() *wasmir.Instr { return b.RefCast(wasmir.RefType(T.Table), argAt(b, T, 0)) }
	find := findKeyIndexFunc(g)
	// locals, after upvalues=0 args=1: hash=2 (Ref HashArray), i=3 (i32), length=4 (i32)
	locals := []wasmir.Local{
		{Name: "hash", Type: hashT},
		{Name: "i", Type: wasmir.ValI32},
		{Name: "length", Type: wasmir.ValI32},
	}
	hash := func() *wasmir.Instr { return b.LocalGet(2, hashT) }
	body := []*wasmir.Instr{
		b.If(wasmir.ValNone, b.IsNull(b.StructGet(T.Table, 1, tbl())),
			[]*wasmir.Instr{b.Return(one(b, T, b.RefNull(wasmir.ValAnyRef)))}, nil),
		b.LocalSet(2, b.RefCast(hashT, b.StructGet(T.Table, 1, tbl()))),
		b.LocalSet(4, b.ArrayLen(hash())),
		b.If(wasmir.ValNone, b.IsNull(argAt(b, T, 1)),
			[]*wasmir.Instr{b.LocalSet(3, b.I32Const(0))},
			[]*wasmir.Instr{b.LocalSet(3, b.Binary(wasmir.AddI32, wasmir.ValI32, b.Call(find, wasmir.ValI32, hash(), argAt(b, T, 1)), b.I32Const(1)))},
		),
		b.If(wasmir.ValNone, b.Binary(wasmir.GeSI32, wasmir.ValI32, b.LocalGet(3, wasmir.ValI32), b.LocalGet(4, wasmir.ValI32)),
			[]*wasmir.Instr{b.Return(one(b, T, b.RefNull(wasmir.ValAnyRef)))}, nil),
		b.Return(b.ArrayNewFixed(T.RefArray,
			b.StructGet(T.HashEntry, 0, b.ArrayGet(T.HashArray, hash(), b.LocalGet(3, wasmir.ValI32))),
			b.StructGet(T.HashEntry, 1, b.ArrayGet(T.HashArray, hash(), b.LocalGet(3, wasmir.ValI32))),
		)),
	}
	return locals, body
}

// buildPairs implements `pairs(t)`: the generic-for protocol's
// three-value adjust of `(next, t, nil)` — metatable `__pairs` dispatch
// is out of scope (Non-goal: metamethod dispatch, §4.9).
func buildPairs(g *runtimelib.Generator) ([]wasmir.Local, []*wasmir.Instr) {
	b := g.B
	T := g.Types
	next := luaFunc(g, "*next", buildNext)
	return nil, []*wasmir.Instr{
		b.Return(b.ArrayNewFixed(T.RefArray, next, argAt(b, T, 0), b.RefNull(wasmir.ValAnyRef))),
	}
}
