// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"github.com/wumbo-lang/wumbo/internal/ast"
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// genExpr lowers e in single-value context: a call or `...` contributes
// only its first result (or nil if it produced none).
func (g *Generator) genExpr(e ast.Expression) *wasmir.Instr {
	b := g.B
	T := g.T
	switch ex := e.(type) {
	case ast.NilExpr:
		return b.RefNull(wasmir.ValAnyRef)
	case ast.BoolExpr:
		v := int32(0)
		if bool(ex) {
			v = 1
		}
		return b.RefI31(b.I32Const(v))
	case ast.IntExpr:
		return b.StructNew(T.Integer, b.I64Const(int64(ex)))
	case ast.FloatExpr:
		return b.StructNew(T.Number, b.F64Const(float64(ex)))
	case ast.StringExpr:
		return g.RT.LuaString(string(ex))
	case *ast.VarargExpr:
		return g.firstOrNil(g.varargArray())
	case *ast.NameExpr:
		return g.genName(ex.Name)
	case *ast.FunctionExpr:
		return g.genFunctionLiteral(ex.Body)
	case *ast.TableExpr:
		return g.genTableExpr(ex)
	case *ast.BinaryExpr:
		return g.genBinary(ex)
	case *ast.UnaryExpr:
		return g.genUnary(ex)
	case *ast.PrefixExpr:
		return g.genPrefixExpr(ex, false)
	}
	g.fail("codegen: unhandled expression %T", e)
	return nil
}

func (g *Generator) genName(name ast.Name) *wasmir.Instr {
	if src, ok := g.resolve(g.cur, name); ok {
		return g.readSource(src)
	}
	return g.RT.Call(runtimelib.KeyTableGet, g.envTable(), g.RT.LuaString(string(name)))
}

var binKey = map[ast.BinaryOp]runtimelib.Key{
	ast.OpAdd:     runtimelib.KeyAddition,
	ast.OpSub:     runtimelib.KeySubtraction,
	ast.OpMul:     runtimelib.KeyMultiplication,
	ast.OpDiv:     runtimelib.KeyDivision,
	ast.OpFloorDiv: runtimelib.KeyDivisionFloor,
	ast.OpExp:     runtimelib.KeyExponentiation,
	ast.OpMod:     runtimelib.KeyModulo,
	ast.OpBOr:     runtimelib.KeyBinaryOr,
	ast.OpBAnd:    runtimelib.KeyBinaryAnd,
	ast.OpBXor:    runtimelib.KeyBinaryXor,
	ast.OpShr:     runtimelib.KeyBinaryRightShift,
	ast.OpShl:     runtimelib.KeyBinaryLeftShift,
	ast.OpEq:      runtimelib.KeyEquality,
	ast.OpNe:      runtimelib.KeyInequality,
	ast.OpLt:      runtimelib.KeyLessThan,
	ast.OpGt:      runtimelib.KeyGreaterThan,
	ast.OpLe:      runtimelib.KeyLessOrEqual,
	ast.OpGe:      runtimelib.KeyGreaterOrEqual,
}

var unKey = map[ast.UnaryOp]runtimelib.Key{
	ast.OpMinus: runtimelib.KeyMinus,
	ast.OpNot:   runtimelib.KeyLogicNot,
	ast.OpLen:   runtimelib.KeyLen,
	ast.OpBNot:  runtimelib.KeyBinaryNot,
}

// genBinary dispatches every binary operator except `and`/`or` (short-
// circuiting, lowered with a plain `if` rather than a runtime call) as a
// uniform call into the matching runtimelib helper; every one of them
// already returns a properly tagged Lua value, arithmetic and bitwise
// and comparison and equality alike, so there is no boxing step here.
func (g *Generator) genBinary(e *ast.BinaryExpr) *wasmir.Instr {
	switch e.Op {
	case ast.OpAnd:
		return g.genAnd(e.Lhs, e.Rhs)
	case ast.OpOr:
		return g.genOr(e.Lhs, e.Rhs)
	case ast.OpConcat:
		// Concat's result is a Str, a subtype of anyref; usable wherever
		// an anyref is expected with no extra widening.
		return g.RT.Call(runtimelib.KeyConcat, g.genExpr(e.Lhs), g.genExpr(e.Rhs))
	}
	key, ok := binKey[e.Op]
	if !ok {
		g.fail("codegen: unhandled binary operator %v", e.Op)
	}
	return g.RT.Call(key, g.genExpr(e.Lhs), g.genExpr(e.Rhs))
}

func (g *Generator) genUnary(e *ast.UnaryExpr) *wasmir.Instr {
	key, ok := unKey[e.Op]
	if !ok {
		g.fail("codegen: unhandled unary operator %v", e.Op)
	}
	return g.RT.Call(key, g.genExpr(e.Rhs))
}

func (g *Generator) genAnd(lhs, rhs ast.Expression) *wasmir.Instr {
	b := g.B
	tmp := g.FS.AllocLocal(wasmir.ValAnyRef, "and_lhs", true)
	instr := b.Seq(wasmir.ValAnyRef,
		b.LocalSet(tmp, g.genExpr(lhs)),
		b.If(wasmir.ValAnyRef, g.RT.Call(runtimelib.KeyToBool, b.LocalGet(tmp, wasmir.ValAnyRef)),
			[]*wasmir.Instr{g.genExpr(rhs)},
			[]*wasmir.Instr{b.LocalGet(tmp, wasmir.ValAnyRef)},
		),
	)
	g.FS.FreeLocal(tmp)
	return instr
}

func (g *Generator) genOr(lhs, rhs ast.Expression) *wasmir.Instr {
	b := g.B
	tmp := g.FS.AllocLocal(wasmir.ValAnyRef, "or_lhs", true)
	instr := b.Seq(wasmir.ValAnyRef,
		b.LocalSet(tmp, g.genExpr(lhs)),
		b.If(wasmir.ValAnyRef, g.RT.Call(runtimelib.KeyToBool, b.LocalGet(tmp, wasmir.ValAnyRef)),
			[]*wasmir.Instr{b.LocalGet(tmp, wasmir.ValAnyRef)},
			[]*wasmir.Instr{g.genExpr(rhs)},
		),
	)
	g.FS.FreeLocal(tmp)
	return instr
}

// genTableExpr builds a fresh table and populates it field by field.
// Every field's key (if any) and value expression is evaluated exactly
// once, strictly in the order it appears in source — Lua's left-to-
// right evaluation guarantee for table constructors (spec §"Ordering
// guarantees") — by storing each result into its own local before any
// table write happens. Only after every field has been evaluated does
// construction proceed: the array part is written first via a bulk
// loop, then the keyed fields in declaration order, mirroring the
// grounding original's deferred exp[0] array slot followed by
// per-field table_set calls (backend/table.cpp) — that write order
// never depends on evaluation order, since every value it touches was
// already computed above.
func (g *Generator) genTableExpr(e *ast.TableExpr) *wasmir.Instr {
	b := g.B
	T := g.T
	tableT := wasmir.RefType(T.Table)
	refArrayT := wasmir.RefType(T.RefArray)
	tmp := g.FS.AllocLocal(tableT, "table", true)
	tbl := func() *wasmir.Instr { return b.LocalGet(tmp, tableT) }

	instrs := []*wasmir.Instr{b.LocalSet(tmp, g.newTable())}

	type keyedSlot struct{ key, val int }
	var keyedSlots []keyedSlot
	var arraySlots []int
	tailChunk := -1

	lastIdx := len(e.Fields) - 1
	for i, f := range e.Fields {
		switch {
		case f.Key != nil:
			keyLocal := g.FS.AllocLocal(wasmir.ValAnyRef, "key", true)
			valLocal := g.FS.AllocLocal(wasmir.ValAnyRef, "val", true)
			instrs = append(instrs,
				b.LocalSet(keyLocal, g.genExpr(f.Key)),
				b.LocalSet(valLocal, g.genExpr(f.Value)),
			)
			keyedSlots = append(keyedSlots, keyedSlot{keyLocal, valLocal})
		case i == lastIdx:
			// The constructor's final field, if unkeyed, expands fully
			// when it is a call or `...`; every earlier unkeyed field
			// contributes exactly one value regardless of its shape.
			tailChunk = g.FS.AllocLocal(refArrayT, "tailvals", true)
			instrs = append(instrs, b.LocalSet(tailChunk, g.genExprMulti(f.Value)))
		default:
			valLocal := g.FS.AllocLocal(wasmir.ValAnyRef, "val", true)
			instrs = append(instrs, b.LocalSet(valLocal, g.genExpr(f.Value)))
			arraySlots = append(arraySlots, valLocal)
		}
	}

	if len(arraySlots) > 0 || tailChunk >= 0 {
		idx := g.FS.AllocLocal(wasmir.ValI32, "i", true)
		instrs = append(instrs, b.LocalSet(idx, b.I32Const(0)))

		for _, slot := range arraySlots {
			instrs = append(instrs,
				b.LocalSet(idx, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(idx, wasmir.ValI32), b.I32Const(1))),
				b.Drop(g.RT.Call(runtimelib.KeyTableSet, tbl(),
					b.StructNew(T.Integer, b.Convert(wasmir.ExtendI32ToI64, wasmir.ValI64, b.LocalGet(idx, wasmir.ValI32))),
					b.LocalGet(slot, wasmir.ValAnyRef),
				)),
			)
		}

		if tailChunk >= 0 {
			n := g.FS.AllocLocal(wasmir.ValI32, "n", true)
			j := g.FS.AllocLocal(wasmir.ValI32, "j", true)
			label := g.Mod.NewLabel("tblinit")
			instrs = append(instrs,
				b.LocalSet(n, b.ArrayLen(b.LocalGet(tailChunk, refArrayT))),
				b.LocalSet(j, b.I32Const(0)),
				b.Loop(label, wasmir.ValNone,
					b.If(wasmir.ValNone, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.LocalGet(j, wasmir.ValI32), b.LocalGet(n, wasmir.ValI32)),
						[]*wasmir.Instr{
							b.LocalSet(idx, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(idx, wasmir.ValI32), b.I32Const(1))),
							b.Drop(g.RT.Call(runtimelib.KeyTableSet, tbl(),
								b.StructNew(T.Integer, b.Convert(wasmir.ExtendI32ToI64, wasmir.ValI64, b.LocalGet(idx, wasmir.ValI32))),
								b.ArrayGet(T.RefArray, b.LocalGet(tailChunk, refArrayT), b.LocalGet(j, wasmir.ValI32)),
							)),
							b.LocalSet(j, b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(j, wasmir.ValI32), b.I32Const(1))),
							b.Br(label),
						}, nil),
				),
			)
			g.FS.FreeLocal(n)
			g.FS.FreeLocal(j)
		}

		g.FS.FreeLocal(idx)
	}

	for _, ks := range keyedSlots {
		instrs = append(instrs, b.Drop(g.RT.Call(runtimelib.KeyTableSet, tbl(),
			b.LocalGet(ks.key, wasmir.ValAnyRef), b.LocalGet(ks.val, wasmir.ValAnyRef))))
	}

	for _, slot := range arraySlots {
		g.FS.FreeLocal(slot)
	}
	if tailChunk >= 0 {
		g.FS.FreeLocal(tailChunk)
	}
	for _, ks := range keyedSlots {
		g.FS.FreeLocal(ks.key)
		g.FS.FreeLocal(ks.val)
	}

	instrs = append(instrs, tbl())
	result := b.Seq(tableT, instrs...)
	g.FS.FreeLocal(tmp)
	return result
}

// genMultiValue evaluates exprs left to right and returns their combined
// values as one RefArray: every expression but the last contributes
// exactly one value; the last expands fully if it is a call or `...`.
func (g *Generator) genMultiValue(exprs []ast.Expression) *wasmir.Instr {
	b := g.B
	T := g.T
	if len(exprs) == 0 {
		return b.ArrayNewFixed(T.RefArray)
	}
	head := exprs[:len(exprs)-1]
	last := exprs[len(exprs)-1]
	lastChunk := g.genExprMulti(last)
	if len(head) == 0 {
		return lastChunk
	}
	headVals := make([]*wasmir.Instr, len(head))
	for i, e := range head {
		headVals[i] = g.genExpr(e)
	}
	return g.concatRefArrays(b.ArrayNewFixed(T.RefArray, headVals...), lastChunk)
}

// genExprMulti returns e's full set of values as a RefArray.
func (g *Generator) genExprMulti(e ast.Expression) *wasmir.Instr {
	switch ex := e.(type) {
	case *ast.VarargExpr:
		return g.varargArray()
	case *ast.PrefixExpr:
		if n := len(ex.Tails); n > 0 {
			if ct, ok := ex.Tails[n-1].(*ast.CallTail); ok {
				return g.genPrefixExprCall(ex, ct)
			}
		}
	}
	return g.B.ArrayNewFixed(g.T.RefArray, g.genExpr(e))
}

// genAdjusted evaluates exprs and adjusts the result to exactly n
// values, Lua's assignment/local-declaration rule: short lists are
// padded with nil, long lists' extra values are discarded.
func (g *Generator) genAdjusted(exprs []ast.Expression, n int) []*wasmir.Instr {
	b := g.B
	T := g.T
	refArrayT := wasmir.RefType(T.RefArray)
	values := g.genMultiValue(exprs)
	tmp := g.FS.AllocLocal(refArrayT, "adj", true)
	results := make([]*wasmir.Instr, n)
	for i := 0; i < n; i++ {
		get := b.If(wasmir.ValAnyRef, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.I32Const(int32(i)), b.ArrayLen(b.LocalGet(tmp, refArrayT))),
			[]*wasmir.Instr{b.ArrayGet(T.RefArray, b.LocalGet(tmp, refArrayT), b.I32Const(int32(i)))},
			[]*wasmir.Instr{b.RefNull(wasmir.ValAnyRef)},
		)
		if i == 0 {
			results[i] = b.Seq(wasmir.ValAnyRef, b.LocalSet(tmp, values), get)
		} else {
			results[i] = get
		}
	}
	g.FS.FreeLocal(tmp)
	return results
}

// concatRefArrays returns a fresh RefArray holding a's elements followed
// by b's.
func (g *Generator) concatRefArrays(a, bArr *wasmir.Instr) *wasmir.Instr {
	b := g.B
	T := g.T
	refArrayT := wasmir.RefType(T.RefArray)
	la := g.FS.AllocLocal(refArrayT, "concat_a", true)
	lb := g.FS.AllocLocal(refArrayT, "concat_b", true)
	lenA := g.FS.AllocLocal(wasmir.ValI32, "concat_len_a", true)
	out := g.FS.AllocLocal(refArrayT, "concat_out", true)
	instr := b.Seq(refArrayT,
		b.LocalSet(la, a),
		b.LocalSet(lb, bArr),
		b.LocalSet(lenA, b.ArrayLen(b.LocalGet(la, refArrayT))),
		b.LocalSet(out, b.ArrayNew(T.RefArray,
			b.Binary(wasmir.AddI32, wasmir.ValI32, b.LocalGet(lenA, wasmir.ValI32), b.ArrayLen(b.LocalGet(lb, refArrayT))),
			b.RefNull(wasmir.ValAnyRef),
		)),
		b.ArrayCopy(T.RefArray, b.LocalGet(out, refArrayT), b.I32Const(0), T.RefArray, b.LocalGet(la, refArrayT), b.I32Const(0), b.LocalGet(lenA, wasmir.ValI32)),
		b.ArrayCopy(T.RefArray, b.LocalGet(out, refArrayT), b.LocalGet(lenA, wasmir.ValI32), T.RefArray, b.LocalGet(lb, refArrayT), b.I32Const(0), b.ArrayLen(b.LocalGet(lb, refArrayT))),
		b.LocalGet(out, refArrayT),
	)
	g.FS.FreeLocal(la)
	g.FS.FreeLocal(lb)
	g.FS.FreeLocal(lenA)
	g.FS.FreeLocal(out)
	return instr
}

// firstOrNil reduces a RefArray to single-value context.
func (g *Generator) firstOrNil(arr *wasmir.Instr) *wasmir.Instr {
	b := g.B
	T := g.T
	refArrayT := wasmir.RefType(T.RefArray)
	tmp := g.FS.AllocLocal(refArrayT, "call_res", true)
	instr := b.Seq(wasmir.ValAnyRef,
		b.LocalSet(tmp, arr),
		b.If(wasmir.ValAnyRef, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.I32Const(0), b.ArrayLen(b.LocalGet(tmp, refArrayT))),
			[]*wasmir.Instr{b.ArrayGet(T.RefArray, b.LocalGet(tmp, refArrayT), b.I32Const(0))},
			[]*wasmir.Instr{b.RefNull(wasmir.ValAnyRef)},
		),
	)
	g.FS.FreeLocal(tmp)
	return instr
}

func (g *Generator) varargArray() *wasmir.Instr {
	idx, ok := g.FS.VarargIndex()
	if !ok {
		g.fail("codegen: '...' used outside a vararg function")
	}
	return g.B.LocalGet(idx, wasmir.RefType(g.T.RefArray))
}

// genPrefixHead lowers a PrefixExpr's head: a bare name resolves through
// the normal local/upvalue/global rule, anything else is a parenthesized
// expression, already single-valued.
func (g *Generator) genPrefixHead(head ast.Expression) *wasmir.Instr {
	if name, ok := head.(*ast.NameExpr); ok {
		return g.genName(name.Name)
	}
	return g.genExpr(head)
}

// genPrefixExpr folds a PrefixExpr's tail chain. wantMulti only matters
// for a CallTail in final position: true preserves its full RefArray,
// false (and every other case) reduces to a single value.
func (g *Generator) genPrefixExpr(p *ast.PrefixExpr, wantMulti bool) *wasmir.Instr {
	val := g.genPrefixHead(p.Head)
	for i, t := range p.Tails {
		last := i == len(p.Tails)-1
		switch tt := t.(type) {
		case ast.FieldTail:
			val = g.RT.Call(runtimelib.KeyTableGet, val, g.RT.LuaString(string(tt.Name)))
		case ast.IndexTail:
			val = g.RT.Call(runtimelib.KeyTableGet, val, g.genExpr(tt.Expr))
		case *ast.CallTail:
			results := g.genCall(val, tt)
			if last && wantMulti {
				return results
			}
			val = g.firstOrNil(results)
		default:
			g.fail("codegen: unhandled tail %T", t)
		}
	}
	if wantMulti {
		return g.B.ArrayNewFixed(g.T.RefArray, val)
	}
	return val
}

// genPrefixExprCall is genPrefixExpr specialized for the case the last
// tail is known to be a call: it returns the call's full RefArray
// without forcing it through firstOrNil first (used by genExprMulti).
func (g *Generator) genPrefixExprCall(p *ast.PrefixExpr, _ *ast.CallTail) *wasmir.Instr {
	return g.genPrefixExpr(p, true)
}

// genCall lowers a call tail against an already-evaluated callee/object
// value, returning the call's full RefArray of results. A method call
// evaluates the receiver once (it is needed both as the table to look
// the method up on and as the implicit first argument).
func (g *Generator) genCall(val *wasmir.Instr, tt *ast.CallTail) *wasmir.Instr {
	b := g.B
	T := g.T
	refArrayT := wasmir.RefType(T.RefArray)
	if tt.Method == "" {
		return g.RT.Call(runtimelib.KeyInvoke, val, g.genMultiValue(tt.Args))
	}

	recv := g.FS.AllocLocal(wasmir.ValAnyRef, "recv", true)
	recvGet := func() *wasmir.Instr { return b.LocalGet(recv, wasmir.ValAnyRef) }
	method := g.RT.Call(runtimelib.KeyTableGet, recvGet(), g.RT.LuaString(string(tt.Method)))
	args := g.concatRefArrays(b.ArrayNewFixed(T.RefArray, recvGet()), g.genMultiValue(tt.Args))
	instr := b.Seq(refArrayT,
		b.LocalSet(recv, val),
		g.RT.Call(runtimelib.KeyInvoke, method, args),
	)
	g.FS.FreeLocal(recv)
	return instr
}

// numericForOperand coerces v (already evaluated) to f64, raising what
// unless it is numeric.
func (g *Generator) numericForOperand(v *wasmir.Instr, what string) *wasmir.Instr {
	b := g.B
	T := g.T
	tmp := g.FS.AllocLocal(wasmir.ValAnyRef, "for_op", true)
	read := func() *wasmir.Instr { return b.LocalGet(tmp, wasmir.ValAnyRef) }
	instr := b.Seq(wasmir.ValF64,
		b.LocalSet(tmp, v),
		b.If(wasmir.ValF64, g.RT.IsNumeric(read),
			[]*wasmir.Instr{g.RT.NumericValue(read)},
			[]*wasmir.Instr{b.Seq(wasmir.ValF64, b.Throw(T.ErrorTag, g.RT.LuaString(what+" must be a number")), b.Unreachable())},
		),
	)
	g.FS.FreeLocal(tmp)
	return instr
}
