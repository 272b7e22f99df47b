// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import "github.com/wumbo-lang/wumbo/internal/wasmir"

// buildCatalog assembles the full set of runtime helpers this compiler
// can emit, keyed by the stable [Key] each call site addresses a helper
// by. Finalize later walks [allKeys] in order and builds exactly the
// entries that turned out to be required.
func (g *Generator) buildCatalog() map[Key]entry {
	T := g.Types
	anyref := wasmir.ValAnyRef
	str := wasmir.RefType(T.Str)
	refArray := wasmir.RefType(T.RefArray)

	arith2 := []wasmir.ValType{anyref, anyref}
	tableT := wasmir.RefType(T.Table)
	hashArrayT := wasmir.RefType(T.HashArray)
	nullableHash := wasmir.NullableRefType(T.HashArray)

	return map[Key]entry{
		KeyTableGet: {params: arith2, result: anyref, locals: []wasmir.Local{
			{Name: "tbl", Type: tableT},
			{Name: "key_norm", Type: anyref},
			{Name: "hash", Type: nullableHash},
			{Name: "i", Type: wasmir.ValI32},
			{Name: "length", Type: wasmir.ValI32},
		}, build: func(g *Generator) []*wasmir.Instr {
			return g.buildTableGet(arith2, anyref)
		}},
		KeyTableSet: {params: []wasmir.ValType{anyref, anyref, anyref}, result: wasmir.ValNone, locals: []wasmir.Local{
			{Name: "tbl", Type: tableT},
			{Name: "key_norm", Type: anyref},
			{Name: "hash", Type: nullableHash},
			{Name: "i", Type: wasmir.ValI32},
			{Name: "length", Type: wasmir.ValI32},
			{Name: "new_hash", Type: hashArrayT},
		}, build: func(g *Generator) []*wasmir.Instr {
			return g.buildTableSet([]wasmir.ValType{anyref, anyref, anyref}, wasmir.ValNone)
		}},
		KeyToBool: {params: []wasmir.ValType{anyref}, result: wasmir.ValI32, build: func(g *Generator) []*wasmir.Instr {
			return g.buildToBool(false)
		}},
		KeyToBoolNot: {params: []wasmir.ValType{anyref}, result: wasmir.ValI32, build: func(g *Generator) []*wasmir.Instr {
			return g.buildToBool(true)
		}},
		KeyLogicNot: {params: []wasmir.ValType{anyref}, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildLogicNot()
		}},
		KeyBinaryNot: {params: []wasmir.ValType{anyref}, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildBinaryNot()
		}},
		KeyMinus: {params: []wasmir.ValType{anyref}, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildMinus()
		}},
		KeyLen: {params: []wasmir.ValType{anyref}, result: anyref, locals: []wasmir.Local{
			{Name: "i", Type: wasmir.ValI64},
		}, build: func(g *Generator) []*wasmir.Instr {
			return g.buildLen()
		}},

		KeyAddition: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildArithOp("addition", func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.AddI64, wasmir.ValI64, l, r)
			}, func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.AddF64, wasmir.ValF64, l, r)
			})
		}},
		KeySubtraction: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildArithOp("subtraction", func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.SubI64, wasmir.ValI64, l, r)
			}, func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.SubF64, wasmir.ValF64, l, r)
			})
		}},
		KeyMultiplication: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildArithOp("multiplication", func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.MulI64, wasmir.ValI64, l, r)
			}, func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.MulF64, wasmir.ValF64, l, r)
			})
		}},
		KeyDivisionFloor: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildArithOp("floor division", floorDivInt, floorDivFloat)
		}},
		KeyModulo: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildArithOp("modulo", floorModInt, floorModFloat)
		}},

		KeyDivision: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildFloatOp(func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.DivF64, wasmir.ValF64, l, r)
			})
		}},
		KeyExponentiation: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			pow := g.HostImport("native", "pow", []wasmir.ValType{wasmir.ValF64, wasmir.ValF64}, []wasmir.ValType{wasmir.ValF64})
			return g.buildFloatOp(func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Call(pow, wasmir.ValF64, l, r)
			})
		}},

		KeyBinaryOr: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildBitwiseOp(func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.OrI64, wasmir.ValI64, l, r)
			})
		}},
		KeyBinaryAnd: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildBitwiseOp(func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.AndI64, wasmir.ValI64, l, r)
			})
		}},
		KeyBinaryXor: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildBitwiseOp(func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.XorI64, wasmir.ValI64, l, r)
			})
		}},
		KeyBinaryRightShift: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildBitwiseOp(func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.ShrSI64, wasmir.ValI64, l, r)
			})
		}},
		KeyBinaryLeftShift: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildBitwiseOp(func(b *wasmir.Builder, l, r *wasmir.Instr) *wasmir.Instr {
				return b.Binary(wasmir.ShlI64, wasmir.ValI64, l, r)
			})
		}},

		KeyEquality: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildEqualityOp(false)
		}},
		KeyInequality: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildEqualityOp(true)
		}},
		KeyLessThan: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildOrderOp(wasmir.LtSI64, wasmir.LtF64)
		}},
		KeyGreaterThan: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildOrderOp(wasmir.GtSI64, wasmir.GtF64)
		}},
		KeyLessOrEqual: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildOrderOp(wasmir.LeSI64, wasmir.LeF64)
		}},
		KeyGreaterOrEqual: {params: arith2, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildOrderOp(wasmir.GeSI64, wasmir.GeF64)
		}},

		KeyConcat: {params: arith2, result: str, locals: []wasmir.Local{
			{Name: "a", Type: str},
			{Name: "b", Type: str},
			{Name: "len_a", Type: wasmir.ValI32},
			{Name: "len_b", Type: wasmir.ValI32},
			{Name: "result", Type: str},
		}, build: func(g *Generator) []*wasmir.Instr {
			return g.buildConcat()
		}},
		KeyToString: {params: []wasmir.ValType{anyref}, result: str, build: func(g *Generator) []*wasmir.Instr {
			return g.buildToString()
		}},
		KeyToNumber: {params: []wasmir.ValType{anyref}, result: anyref, build: func(g *Generator) []*wasmir.Instr {
			return g.buildToNumber()
		}},

		KeyInvoke: {params: []wasmir.ValType{anyref, refArray}, result: refArray, locals: []wasmir.Local{
			{Name: "closure", Type: wasmir.RefType(T.Closure)},
		}, build: func(g *Generator) []*wasmir.Instr {
			return g.buildInvoke()
		}},

		KeyJsArrayToLuaStr: {params: []wasmir.ValType{wasmir.ValExtern}, result: str, locals: []wasmir.Local{
			{Name: "i", Type: wasmir.ValI32},
			{Name: "out", Type: str},
		}, build: func(g *Generator) []*wasmir.Instr {
			return g.buildJsArrayToLuaStr()
		}},
		KeyLuaStrToJsArray: {params: []wasmir.ValType{str}, result: wasmir.ValExtern, locals: []wasmir.Local{
			{Name: "i", Type: wasmir.ValI32},
			{Name: "buf", Type: wasmir.ValExtern},
		}, build: func(g *Generator) []*wasmir.Instr {
			return g.buildLuaStrToJsArray()
		}},
	}
}
