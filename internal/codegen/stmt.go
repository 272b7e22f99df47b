// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"github.com/wumbo-lang/wumbo/internal/ast"
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// genBlock lowers a block's statements (resolving any same-block goto,
// see genLabeledRun) followed by its optional explicit return.
func (g *Generator) genBlock(blk *ast.Block) []*wasmir.Instr {
	g.FS.PushBlock()
	g.cur.pushBlock()
	instrs := g.genLabeledRun(blk.Statements, 0)
	if blk.Return != nil {
		instrs = append(instrs, g.B.Return(g.genMultiValue(blk.Return.Exprs)))
	}
	g.cur.popBlock()
	g.FS.PopBlock()
	return instrs
}

// genLabeledRun lowers stmts[start:]. With no labels present this is
// just genPlain; otherwise the statements split into ordinal-numbered
// segments at each label (segment 0 runs before the first label,
// segment N runs after the Nth label), all wrapped in one dispatch
// [wasmir.Builder.Loop]. Every segment is guarded by "has the dispatch
// selector reached this segment's ordinal yet", so falling off the end
// of one segment always satisfies the next segment's guard — plain,
// goto-free execution runs straight through exactly as genPlain would.
//
// A goto to any label visible in this span (see [Generator.genGoto])
// stores that label's ordinal into the selector and branches back to
// the Loop's top, which re-walks every guard from segment 0: segments
// before the target now fail their guard and are skipped, the target
// segment and everything after it pass. The same mechanism resolves
// both directions — a backward goto simply targets an ordinal the
// dispatch has already passed, re-running it — so forward and backward
// goto need no separate cases (§4.4).
func (g *Generator) genLabeledRun(stmts []ast.Statement, start int) []*wasmir.Instr {
	var labelAt []int
	for i := start; i < len(stmts); i++ {
		if _, ok := stmts[i].(*ast.LabelStatement); ok {
			labelAt = append(labelAt, i)
		}
	}
	if len(labelAt) == 0 {
		return g.genPlain(stmts[start:])
	}

	b := g.B
	stem := g.Mod.NewLabel("goto_dispatch")
	selector := g.FS.AllocLocal(wasmir.ValI32, "goto_sel", true)

	base := len(g.gotoTargets)
	for ord, pos := range labelAt {
		l := stmts[pos].(*ast.LabelStatement)
		g.gotoTargets = append(g.gotoTargets, gotoTarget{name: l.Name, stem: stem, selector: selector, ordinal: int32(ord + 1)})
	}

	bounds := append([]int{start}, labelAt...)
	bounds = append(bounds, len(stmts))

	var body []*wasmir.Instr
	for seg := 0; seg < len(bounds)-1; seg++ {
		lo := bounds[seg]
		if seg > 0 {
			lo++ // skip the label statement itself
		}
		hi := bounds[seg+1]
		reached := b.Binary(wasmir.GeSI32, wasmir.ValI32, b.I32Const(int32(seg)), b.LocalGet(selector, wasmir.ValI32))
		body = append(body, b.If(wasmir.ValNone, reached, g.genPlain(stmts[lo:hi]), nil))
	}

	g.gotoTargets = g.gotoTargets[:base]
	g.FS.FreeLocal(selector)

	return []*wasmir.Instr{
		b.LocalSet(selector, b.I32Const(0)),
		b.Loop(stem, wasmir.ValNone, body...),
	}
}

func (g *Generator) genPlain(stmts []ast.Statement) []*wasmir.Instr {
	var instrs []*wasmir.Instr
	for _, s := range stmts {
		instrs = append(instrs, g.genStatement(s)...)
	}
	return instrs
}

func (g *Generator) genStatement(s ast.Statement) []*wasmir.Instr {
	switch st := s.(type) {
	case *ast.AssignStatement:
		return g.genAssign(st)
	case *ast.CallStatement:
		return []*wasmir.Instr{g.B.Drop(g.genPrefixExpr(st.Call, true))}
	case *ast.LabelStatement:
		return nil
	case *ast.BreakStatement:
		return g.genBreak()
	case *ast.GotoStatement:
		return g.genGoto(st)
	case *ast.DoStatement:
		return g.genBlock(&st.Body)
	case *ast.WhileStatement:
		return g.genWhile(st)
	case *ast.RepeatStatement:
		return g.genRepeat(st)
	case *ast.IfStatement:
		return g.genIf(st)
	case *ast.NumericForStatement:
		return g.genNumericFor(st)
	case *ast.GenericForStatement:
		return g.genGenericFor(st)
	case *ast.FunctionDeclStatement:
		return g.genFunctionDecl(st)
	case *ast.LocalFunctionStatement:
		return g.genLocalFunction(st)
	case *ast.LocalStatement:
		return g.genLocal(st)
	}
	g.fail("codegen: unhandled statement %T", s)
	return nil
}

// declareLocal allocates slot, type and boxing for a newly declared Lua
// local per usage.IsUpvalue, registers it in the current frame, and
// returns the instruction initializing it from init.
func (g *Generator) declareLocal(name ast.Name, usage *ast.LocalUsage, init *wasmir.Instr) []*wasmir.Instr {
	return g.declareLocalBoxed(name, usage.IsUpvalue(), init)
}

func (g *Generator) declareLocalBoxed(name ast.Name, boxed bool, init *wasmir.Instr) []*wasmir.Instr {
	b := g.B
	typ := wasmir.ValAnyRef
	if boxed {
		typ = wasmir.RefType(g.T.Upvalue)
	}
	slot := g.FS.AllocLuaLocal(string(name), typ)
	g.cur.declare(name, slot, typ, boxed)
	if boxed {
		return []*wasmir.Instr{b.LocalSet(slot, b.StructNew(g.T.Upvalue, init))}
	}
	return []*wasmir.Instr{b.LocalSet(slot, init)}
}

func (g *Generator) genLocal(s *ast.LocalStatement) []*wasmir.Instr {
	values := g.genAdjusted(s.Exprs, len(s.Names))
	var instrs []*wasmir.Instr
	for i, name := range s.Names {
		instrs = append(instrs, g.declareLocal(name, s.Usage[i], values[i])...)
	}
	return instrs
}

// genLocalFunction declares the local before generating its closure (so
// the body can resolve the name for recursion), forcing the local to be
// boxed whenever it is captured at all — regardless of
// [ast.LocalUsage.IsUpvalue]'s WriteCount gate, which does not account
// for the implicit write codegen itself performs once the closure is
// built. An unboxed self-capture would snapshot the placeholder nil
// written at declaration instead of the real closure.
func (g *Generator) genLocalFunction(s *ast.LocalFunctionStatement) []*wasmir.Instr {
	b := g.B
	boxed := s.Usage.Upvalue
	instrs := g.declareLocalBoxed(s.Name, boxed, b.RefNull(wasmir.ValAnyRef))
	closure := g.genFunctionLiteral(s.Body)
	src, _ := g.resolve(g.cur, s.Name)
	instrs = append(instrs, g.writeSource(src, closure))
	return instrs
}

func (g *Generator) genFunctionDecl(s *ast.FunctionDeclStatement) []*wasmir.Instr {
	b := g.B
	closure := g.genFunctionLiteral(s.Body)
	if len(s.Name) == 1 {
		name := s.Name[0]
		if src, ok := g.resolve(g.cur, name); ok {
			return []*wasmir.Instr{g.writeSource(src, closure)}
		}
		return []*wasmir.Instr{b.Drop(g.RT.Call(runtimelib.KeyTableSet, g.envTable(), g.RT.LuaString(string(name)), closure))}
	}
	val := g.genName(s.Name[0])
	for _, seg := range s.Name[1 : len(s.Name)-1] {
		val = g.RT.Call(runtimelib.KeyTableGet, val, g.RT.LuaString(string(seg)))
	}
	last := s.Name[len(s.Name)-1]
	return []*wasmir.Instr{b.Drop(g.RT.Call(runtimelib.KeyTableSet, val, g.RT.LuaString(string(last)), closure))}
}

// genAssign lowers single- or multi-target assignment. Each indexed
// target's object and key subexpressions are evaluated once, up front,
// into helper locals (so `t[f()] = v` does not evaluate f() once to read
// the target and again to write it); the RHS list is then adjusted to
// exactly len(Targets) values.
func (g *Generator) genAssign(s *ast.AssignStatement) []*wasmir.Instr {
	b := g.B
	type target struct {
		global       bool
		globalName   ast.Name
		src          resolvedSource
		named        bool
		objL, keyL   int
	}
	targets := make([]target, len(s.Targets))
	var pre []*wasmir.Instr
	for i, t := range s.Targets {
		if len(t.Tails) == 0 {
			name, ok := t.Head.(*ast.NameExpr)
			if !ok {
				g.fail("codegen: invalid assignment target")
			}
			if src, ok := g.resolve(g.cur, name.Name); ok {
				targets[i] = target{named: true, src: src}
			} else {
				targets[i] = target{global: true, globalName: name.Name}
			}
			continue
		}
		val := g.genPrefixHead(t.Head)
		for _, tail := range t.Tails[:len(t.Tails)-1] {
			val = g.applyReadTail(val, tail)
		}
		var keyInstr *wasmir.Instr
		switch lt := t.Tails[len(t.Tails)-1].(type) {
		case ast.FieldTail:
			keyInstr = g.RT.LuaString(string(lt.Name))
		case ast.IndexTail:
			keyInstr = g.genExpr(lt.Expr)
		default:
			g.fail("codegen: invalid assignment target tail %T", lt)
		}
		objL := g.FS.AllocLocal(wasmir.ValAnyRef, "assign_obj", true)
		keyL := g.FS.AllocLocal(wasmir.ValAnyRef, "assign_key", true)
		pre = append(pre, b.LocalSet(objL, val), b.LocalSet(keyL, keyInstr))
		targets[i] = target{objL: objL, keyL: keyL}
	}

	values := g.genAdjusted(s.Exprs, len(s.Targets))

	instrs := append([]*wasmir.Instr{}, pre...)
	for i, t := range targets {
		switch {
		case t.named:
			instrs = append(instrs, g.writeSource(t.src, values[i]))
		case t.global:
			instrs = append(instrs, b.Drop(g.RT.Call(runtimelib.KeyTableSet, g.envTable(), g.RT.LuaString(string(t.globalName)), values[i])))
		default:
			instrs = append(instrs, b.Drop(g.RT.Call(runtimelib.KeyTableSet,
				b.LocalGet(t.objL, wasmir.ValAnyRef), b.LocalGet(t.keyL, wasmir.ValAnyRef), values[i])))
			g.FS.FreeLocal(t.objL)
			g.FS.FreeLocal(t.keyL)
		}
	}
	return instrs
}

// applyReadTail lowers one non-final tail of an assignment target chain
// (read-through: `a.b.c = v` reads `a.b` before writing `.c`).
func (g *Generator) applyReadTail(val *wasmir.Instr, t ast.Tail) *wasmir.Instr {
	switch tt := t.(type) {
	case ast.FieldTail:
		return g.RT.Call(runtimelib.KeyTableGet, val, g.RT.LuaString(string(tt.Name)))
	case ast.IndexTail:
		return g.RT.Call(runtimelib.KeyTableGet, val, g.genExpr(tt.Expr))
	case *ast.CallTail:
		return g.firstOrNil(g.genCall(val, tt))
	}
	g.fail("codegen: unhandled tail %T", t)
	return nil
}

func (g *Generator) genBreak() []*wasmir.Instr {
	stem, ok := g.FS.BreakTarget()
	if !ok {
		g.fail("codegen: break outside a loop")
	}
	return []*wasmir.Instr{g.B.Br(stem + "_end")}
}

// genGoto resolves against the innermost visible label first, so a
// goto always reaches the label lexically nearest to it when the same
// name is (re)used in nested blocks. Direction doesn't matter: setting
// the owning block's dispatch selector and branching to its Loop
// handles a backward jump exactly like a forward one (see
// [Generator.genLabeledRun]).
func (g *Generator) genGoto(s *ast.GotoStatement) []*wasmir.Instr {
	for i := len(g.gotoTargets) - 1; i >= 0; i-- {
		t := g.gotoTargets[i]
		if t.name == s.Name {
			return []*wasmir.Instr{
				g.B.LocalSet(t.selector, g.B.I32Const(t.ordinal)),
				g.B.Br(t.stem),
			}
		}
	}
	g.fail("codegen: goto %q: no visible label", s.Name)
	return nil
}

func (g *Generator) genIf(s *ast.IfStatement) []*wasmir.Instr {
	b := g.B
	var build func(i int) []*wasmir.Instr
	build = func(i int) []*wasmir.Instr {
		if i == len(s.Clauses) {
			if s.Else != nil {
				return g.genBlock(s.Else)
			}
			return nil
		}
		cond := g.RT.Call(runtimelib.KeyToBool, g.genExpr(s.Clauses[i].Cond))
		then := g.genBlock(&s.Clauses[i].Body)
		els := build(i + 1)
		return []*wasmir.Instr{b.If(wasmir.ValNone, cond, then, els)}
	}
	return build(0)
}

func (g *Generator) genWhile(s *ast.WhileStatement) []*wasmir.Instr {
	b := g.B
	stem := g.FS.PushLoop()
	cond := g.RT.Call(runtimelib.KeyToBool, g.genExpr(s.Cond))
	body := g.genBlock(&s.Body)
	loopBody := append([]*wasmir.Instr{
		b.BrIf(stem+"_end", b.Unary(wasmir.EqzI32, wasmir.ValI32, cond)),
	}, body...)
	loopBody = append(loopBody, b.Br(stem))
	g.FS.PopLoop()
	return []*wasmir.Instr{b.Block(stem+"_end", wasmir.ValNone, b.Loop(stem, wasmir.ValNone, loopBody...))}
}

func (g *Generator) genRepeat(s *ast.RepeatStatement) []*wasmir.Instr {
	b := g.B
	stem := g.FS.PushLoop()
	g.FS.PushBlock()
	g.cur.pushBlock()
	body := g.genLabeledRun(s.Body.Statements, 0)
	if s.Body.Return != nil {
		body = append(body, b.Return(g.genMultiValue(s.Body.Return.Exprs)))
	}
	cond := g.RT.Call(runtimelib.KeyToBool, g.genExpr(s.Cond))
	g.cur.popBlock()
	g.FS.PopBlock()

	loopBody := append(body, b.BrIf(stem+"_end", cond), b.Br(stem))
	g.FS.PopLoop()
	return []*wasmir.Instr{b.Block(stem+"_end", wasmir.ValNone, b.Loop(stem, wasmir.ValNone, loopBody...))}
}

func (g *Generator) genNumericFor(s *ast.NumericForStatement) []*wasmir.Instr {
	if isIntLiteral(s.Start) && isIntLiteral(s.Limit) && (s.Step == nil || isIntLiteral(s.Step)) {
		return g.genNumericForInt(s)
	}
	return g.genNumericForFloat(s)
}

func isIntLiteral(e ast.Expression) bool {
	_, ok := e.(ast.IntExpr)
	return ok
}

// genNumericForInt is the fast path for the overwhelmingly common case
// of compile-time-constant integer bounds: the step's sign is known
// statically, so the loop condition can use the correct `<=`/`>=`
// comparison directly instead of the uniform (and, for a descending
// loop, wrong) comparison a naive lowering would use.
func (g *Generator) genNumericForInt(s *ast.NumericForStatement) []*wasmir.Instr {
	b := g.B
	T := g.T
	start := int64(s.Start.(ast.IntExpr))
	limit := int64(s.Limit.(ast.IntExpr))
	step := int64(1)
	if s.Step != nil {
		step = int64(s.Step.(ast.IntExpr))
	}
	if step == 0 {
		return []*wasmir.Instr{b.Throw(T.ErrorTag, g.RT.LuaString("'for' step is zero"))}
	}
	cmp := wasmir.LeSI64
	if step < 0 {
		cmp = wasmir.GeSI64
	}

	ctrl := g.FS.AllocLocal(wasmir.ValI64, "for_ctrl", true)
	stem := g.FS.PushLoop()
	cond := b.Binary(cmp, wasmir.ValI32, b.LocalGet(ctrl, wasmir.ValI64), b.I64Const(limit))

	g.FS.PushBlock()
	g.cur.pushBlock()
	initLocal := g.declareLocal(s.Var, s.VarUsage, b.StructNew(T.Integer, b.LocalGet(ctrl, wasmir.ValI64)))
	body := g.genBlock(&s.Body)
	g.cur.popBlock()
	g.FS.PopBlock()

	advance := b.LocalSet(ctrl, b.Binary(wasmir.AddI64, wasmir.ValI64, b.LocalGet(ctrl, wasmir.ValI64), b.I64Const(step)))

	loopBody := append([]*wasmir.Instr{b.BrIf(stem+"_end", b.Unary(wasmir.EqzI32, wasmir.ValI32, cond))}, initLocal...)
	loopBody = append(loopBody, body...)
	loopBody = append(loopBody, advance, b.Br(stem))

	result := []*wasmir.Instr{
		b.LocalSet(ctrl, b.I64Const(start)),
		b.Block(stem+"_end", wasmir.ValNone, b.Loop(stem, wasmir.ValNone, loopBody...)),
	}
	g.FS.PopLoop()
	g.FS.FreeLocal(ctrl)
	return result
}

// genNumericForFloat is the general path: bounds are arbitrary
// expressions, so the step's sign (and therefore which comparison
// direction ends the loop) is only known at runtime.
func (g *Generator) genNumericForFloat(s *ast.NumericForStatement) []*wasmir.Instr {
	b := g.B
	T := g.T
	startV := g.numericForOperand(g.genExpr(s.Start), "'for' initial value")
	limitV := g.numericForOperand(g.genExpr(s.Limit), "'for' limit")
	var stepV *wasmir.Instr
	if s.Step != nil {
		stepV = g.numericForOperand(g.genExpr(s.Step), "'for' step")
	} else {
		stepV = b.F64Const(1)
	}

	ctrl := g.FS.AllocLocal(wasmir.ValF64, "for_ctrl", true)
	limit := g.FS.AllocLocal(wasmir.ValF64, "for_limit", true)
	step := g.FS.AllocLocal(wasmir.ValF64, "for_step", true)
	pre := []*wasmir.Instr{
		b.LocalSet(ctrl, startV),
		b.LocalSet(limit, limitV),
		b.LocalSet(step, stepV),
	}

	stem := g.FS.PushLoop()
	ascending := b.Binary(wasmir.GeF64, wasmir.ValI32, b.LocalGet(step, wasmir.ValF64), b.F64Const(0))
	cond := b.If(wasmir.ValI32, ascending,
		[]*wasmir.Instr{b.Binary(wasmir.LeF64, wasmir.ValI32, b.LocalGet(ctrl, wasmir.ValF64), b.LocalGet(limit, wasmir.ValF64))},
		[]*wasmir.Instr{b.Binary(wasmir.GeF64, wasmir.ValI32, b.LocalGet(ctrl, wasmir.ValF64), b.LocalGet(limit, wasmir.ValF64))},
	)

	g.FS.PushBlock()
	g.cur.pushBlock()
	initLocal := g.declareLocal(s.Var, s.VarUsage, b.StructNew(T.Number, b.LocalGet(ctrl, wasmir.ValF64)))
	body := g.genBlock(&s.Body)
	g.cur.popBlock()
	g.FS.PopBlock()

	advance := b.LocalSet(ctrl, b.Binary(wasmir.AddF64, wasmir.ValF64, b.LocalGet(ctrl, wasmir.ValF64), b.LocalGet(step, wasmir.ValF64)))

	loopBody := append([]*wasmir.Instr{b.BrIf(stem+"_end", b.Unary(wasmir.EqzI32, wasmir.ValI32, cond))}, initLocal...)
	loopBody = append(loopBody, body...)
	loopBody = append(loopBody, advance, b.Br(stem))

	result := append(pre, b.Block(stem+"_end", wasmir.ValNone, b.Loop(stem, wasmir.ValNone, loopBody...)))
	g.FS.PopLoop()
	g.FS.FreeLocal(ctrl)
	g.FS.FreeLocal(limit)
	g.FS.FreeLocal(step)
	return result
}

// genGenericFor lowers `for names in explist do ... end`: explist is
// adjusted to the (iterator, state, control) triple, then each iteration
// calls the iterator and stops when it returns nil as its first result.
func (g *Generator) genGenericFor(s *ast.GenericForStatement) []*wasmir.Instr {
	b := g.B
	T := g.T
	refArrayT := wasmir.RefType(T.RefArray)

	triple := g.genAdjusted(s.Exprs, 3)
	iterF := g.FS.AllocLocal(wasmir.ValAnyRef, "iter_f", true)
	iterS := g.FS.AllocLocal(wasmir.ValAnyRef, "iter_s", true)
	ctrl := g.FS.AllocLocal(wasmir.ValAnyRef, "iter_ctrl", true)
	pre := []*wasmir.Instr{
		b.LocalSet(iterF, triple[0]),
		b.LocalSet(iterS, triple[1]),
		b.LocalSet(ctrl, triple[2]),
	}

	stem := g.FS.PushLoop()
	resArr := g.FS.AllocLocal(refArrayT, "iter_res", true)
	callArgs := b.ArrayNewFixed(T.RefArray, b.LocalGet(iterS, wasmir.ValAnyRef), b.LocalGet(ctrl, wasmir.ValAnyRef))
	callRes := g.RT.Call(runtimelib.KeyInvoke, b.LocalGet(iterF, wasmir.ValAnyRef), callArgs)
	elemAt := func(idx int32) *wasmir.Instr {
		return b.If(wasmir.ValAnyRef, b.Binary(wasmir.LtSI32, wasmir.ValI32, b.I32Const(idx), b.ArrayLen(b.LocalGet(resArr, refArrayT))),
			[]*wasmir.Instr{b.ArrayGet(T.RefArray, b.LocalGet(resArr, refArrayT), b.I32Const(idx))},
			[]*wasmir.Instr{b.RefNull(wasmir.ValAnyRef)},
		)
	}
	first := elemAt(0)

	g.FS.PushBlock()
	g.cur.pushBlock()
	var decls []*wasmir.Instr
	for i, name := range s.Names {
		decls = append(decls, g.declareLocal(name, s.NameUsage[i], elemAt(int32(i)))...)
	}
	body := g.genBlock(&s.Body)
	g.cur.popBlock()
	g.FS.PopBlock()

	loopBody := []*wasmir.Instr{
		b.LocalSet(resArr, callRes),
		b.BrIf(stem+"_end", b.IsNull(first)),
		b.LocalSet(ctrl, first),
	}
	loopBody = append(loopBody, decls...)
	loopBody = append(loopBody, body...)
	loopBody = append(loopBody, b.Br(stem))

	result := append(pre, b.Block(stem+"_end", wasmir.ValNone, b.Loop(stem, wasmir.ValNone, loopBody...)))
	g.FS.PopLoop()
	g.FS.FreeLocal(iterF)
	g.FS.FreeLocal(iterS)
	g.FS.FreeLocal(ctrl)
	g.FS.FreeLocal(resArr)
	return result
}
