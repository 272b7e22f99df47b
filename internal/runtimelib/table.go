// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

// Both helpers route every key through the table's hash part (§3.1's
// HashEntry/HashArray), scanned linearly and grown by one entry on a
// fresh insert. §3.1 also describes an array-part fast path for the
// dense-integer-key case; this generator does not populate it (see
// DESIGN.md) — array_part stays nil, which table_get/table_set below
// correctly treat as "no array-part entries" rather than as an error.

func (g *Generator) buildTableGet(params []wasmir.ValType, result wasmir.ValType) []*wasmir.Instr {
	b := g.B
	T := g.Types
	tableT := wasmir.RefType(T.Table)
	hashT := wasmir.RefType(T.HashArray)

	// locals, after params table=0 key=1: tbl=2, keyNorm=3, hash=4, i=5, length=6
	tbl := func() *wasmir.Instr { return b.LocalGet(2, tableT) }
	keyNorm := func() *wasmir.Instr { return b.LocalGet(3, wasmir.ValAnyRef) }

	return []*wasmir.Instr{
		b.LocalSet(2, b.RefCast(tableT, b.LocalGet(0, wasmir.ValAnyRef))),
		b.If(wasmir.ValNone, b.IsNull(b.LocalGet(1, wasmir.ValAnyRef)),
			[]*wasmir.Instr{g.diverge(wasmir.ValNone, "table index is nil")}, nil),
		b.LocalSet(3, g.NormalizeKey(func() *wasmir.Instr { return b.LocalGet(1, wasmir.ValAnyRef) })),
		b.LocalSet(4, b.StructGet(T.Table, 1, tbl())),
		b.If(wasmir.ValNone, b.IsNull(b.LocalGet(4, wasmir.NullableRefType(T.HashArray))),
			[]*wasmir.Instr{b.Return(b.RefNull(wasmir.ValAnyRef))}, nil),
		b.LocalSet(6, b.ArrayLen(b.RefCast(hashT, b.LocalGet(4, wasmir.NullableRefType(T.HashArray))))),
		b.LocalSet(5, b.I32Const(0)),
		b.Loop("scan", wasmir.ValNone,
			b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(5, wasmir.ValI32), b.LocalGet(6, wasmir.ValI32)),
				[]*wasmir.Instr{
					b.If(wasmir.ValNone, g.RawEqual(
						func() *wasmir.Instr {
							return b.StructGet(T.HashEntry, 0, b.ArrayGet(T.HashArray, b.RefCast(hashT, b.LocalGet(4, wasmir.NullableRefType(T.HashArray))), b.LocalGet(5, wasmir.ValI32)))
						},
						keyNorm,
					),
						[]*wasmir.Instr{b.Return(b.StructGet(T.HashEntry, 1,
							b.ArrayGet(T.HashArray, b.RefCast(hashT, b.LocalGet(4, wasmir.NullableRefType(T.HashArray))), b.LocalGet(5, wasmir.ValI32))))},
						nil),
					b.LocalSet(5, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(5, wasmir.ValI32), b.I32Const(1))),
					b.Br("scan"),
				}, nil),
		),
		b.Return(b.RefNull(wasmir.ValAnyRef)),
	}
}

func (g *Generator) buildTableSet(params []wasmir.ValType, result wasmir.ValType) []*wasmir.Instr {
	b := g.B
	T := g.Types
	tableT := wasmir.RefType(T.Table)
	hashT := wasmir.RefType(T.HashArray)

	// params: table=0, key=1, value=2
	// locals: tbl=3, keyNorm=4, hash=5, i=6, length=7, newHash=8
	tbl := func() *wasmir.Instr { return b.LocalGet(3, tableT) }
	keyNorm := func() *wasmir.Instr { return b.LocalGet(4, wasmir.ValAnyRef) }
	value := func() *wasmir.Instr { return b.LocalGet(2, wasmir.ValAnyRef) }

	newEntry := func() *wasmir.Instr { return b.StructNew(T.HashEntry, keyNorm(), value()) }

	grow := func() []*wasmir.Instr {
		placeholder := b.StructNew(T.HashEntry, b.RefNull(wasmir.ValAnyRef), b.RefNull(wasmir.ValAnyRef))
		return []*wasmir.Instr{
			b.LocalSet(8, b.ArrayNew(T.HashArray, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(7, wasmir.ValI32), b.I32Const(1)), placeholder)),
			b.ArrayCopy(T.HashArray, b.LocalGet(8, hashT), b.I32Const(0), T.HashArray, b.RefCast(hashT, b.LocalGet(5, wasmir.NullableRefType(T.HashArray))), b.I32Const(0), b.LocalGet(7, wasmir.ValI32)),
			b.ArraySet(T.HashArray, b.LocalGet(8, hashT), b.LocalGet(7, wasmir.ValI32), newEntry()),
			b.StructSet(T.Table, 1, tbl(), b.LocalGet(8, hashT)),
			b.Return(nil),
		}
	}

	return []*wasmir.Instr{
		b.LocalSet(3, b.RefCast(tableT, b.LocalGet(0, wasmir.ValAnyRef))),
		b.If(wasmir.ValNone, b.IsNull(b.LocalGet(1, wasmir.ValAnyRef)),
			[]*wasmir.Instr{g.diverge(wasmir.ValNone, "table index is nil")}, nil),
		b.LocalSet(4, g.NormalizeKey(func() *wasmir.Instr { return b.LocalGet(1, wasmir.ValAnyRef) })),
		b.LocalSet(5, b.StructGet(T.Table, 1, tbl())),
		b.If(wasmir.ValNone, b.IsNull(b.LocalGet(5, wasmir.NullableRefType(T.HashArray))),
			[]*wasmir.Instr{
				b.StructSet(T.Table, 1, tbl(), b.ArrayNewFixed(T.HashArray, newEntry())),
				b.Return(nil),
			}, nil),
		b.LocalSet(7, b.ArrayLen(b.RefCast(hashT, b.LocalGet(5, wasmir.NullableRefType(T.HashArray))))),
		b.LocalSet(6, b.I32Const(0)),
		b.Loop("scan", wasmir.ValNone,
			b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(6, wasmir.ValI32), b.LocalGet(7, wasmir.ValI32)),
				[]*wasmir.Instr{
					func() *wasmir.Instr {
						entry := func() *wasmir.Instr {
							return b.ArrayGet(T.HashArray, b.RefCast(hashT, b.LocalGet(5, wasmir.NullableRefType(T.HashArray))), b.LocalGet(6, wasmir.ValI32))
						}
						match := g.RawEqual(func() *wasmir.Instr { return b.StructGet(T.HashEntry, 0, entry()) }, keyNorm)
						return b.If(wasmir.ValNone, match,
							[]*wasmir.Instr{
								b.StructSet(T.HashEntry, 1, entry(), value()),
								b.Return(nil),
							}, nil)
					}(),
					b.LocalSet(6, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(6, wasmir.ValI32), b.I32Const(1))),
					b.Br("scan"),
				}, nil),
		),
		b.Seq(wasmir.ValNone, grow()...),
	}
}
