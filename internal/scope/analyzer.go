// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package scope performs the single semantic pre-pass over a parsed Lua
// chunk: it classifies every name reference as local, upvalue, or global,
// and annotates each declaration's [ast.LocalUsage] so that later stages
// (the function-stack bookkeeping, the code generator) know which locals
// must be promoted to heap-allocated upvalue cells.
package scope

import (
	"fmt"

	"github.com/wumbo-lang/wumbo/internal/ast"
)

// kind classifies a name lookup.
type kind int

const (
	kindGlobal kind = iota
	kindLocal
	kindUpvalue
)

type localVar struct {
	name  ast.Name
	usage *ast.LocalUsage
}

// funcFrame marks where a nested function's locals begin in stack.vars.
type funcFrame struct {
	offset int
}

// stack mirrors the source project's ast::function_stack: a flat list of
// declared locals shared by every nested scope, with block and function
// markers recording where to truncate on exit.
type stack struct {
	blocks    []int
	functions []funcFrame
	vars      []localVar
}

func (s *stack) pushBlock() {
	s.blocks = append(s.blocks, len(s.vars))
}

func (s *stack) popBlock() {
	n := s.blocks[len(s.blocks)-1]
	s.vars = s.vars[:n]
	s.blocks = s.blocks[:len(s.blocks)-1]
}

func (s *stack) pushFunction() {
	s.functions = append(s.functions, funcFrame{offset: len(s.vars)})
}

func (s *stack) popFunction() {
	n := s.functions[len(s.functions)-1].offset
	s.vars = s.vars[:n]
	s.functions = s.functions[:len(s.functions)-1]
}

// isIndexLocal reports whether the var at vars[index] belongs to the
// innermost function frame (as opposed to an enclosing one).
func (s *stack) isIndexLocal(index int) bool {
	if len(s.functions) == 0 {
		return true
	}
	return index >= s.functions[len(s.functions)-1].offset
}

func (s *stack) allocLocal(name ast.Name, usage *ast.LocalUsage) {
	s.vars = append(s.vars, localVar{name: name, usage: usage})
}

func (s *stack) find(name ast.Name) (kind, *ast.LocalUsage) {
	for i := len(s.vars) - 1; i >= 0; i-- {
		if s.vars[i].name != name {
			continue
		}
		if s.isIndexLocal(i) {
			return kindLocal, s.vars[i].usage
		}
		return kindUpvalue, s.vars[i].usage
	}
	return kindGlobal, nil
}

// Analyzer runs the scope-analysis pre-pass over one chunk.
type Analyzer struct {
	stack    stack
	envUsage ast.LocalUsage
	err      error
}

// New returns an [Analyzer] with _ENV bootstrapped as the spec requires:
// a single local, visible to the whole chunk, that every global access
// captures as an upvalue.
func New() *Analyzer {
	a := &Analyzer{}
	a.stack.allocLocal("_ENV", &a.envUsage)
	a.envUsage.Upvalue = true
	a.envUsage.ReadCount = 1
	return a
}

// EnvUsage returns the usage record synthesized for the chunk's _ENV local.
func (a *Analyzer) EnvUsage() *ast.LocalUsage {
	return &a.envUsage
}

// Analyze annotates block in place, treating it as the body of the
// top-level vararg chunk function. It returns the first semantic error
// encountered, if any.
func (a *Analyzer) Analyze(block *ast.Block) error {
	a.stack.pushFunction()
	a.visitBlock(block)
	a.stack.popFunction()
	return a.err
}

func (a *Analyzer) errorf(format string, args ...any) {
	if a.err == nil {
		a.err = fmt.Errorf(format, args...)
	}
}

func (a *Analyzer) setVar(name ast.Name) {
	k, usage := a.stack.find(name)
	switch k {
	case kindUpvalue:
		usage.Upvalue = true
		fallthrough
	case kindLocal:
		usage.WriteCount++
	case kindGlobal:
		a.getVar("_ENV")
	}
}

func (a *Analyzer) getVar(name ast.Name) {
	k, usage := a.stack.find(name)
	switch k {
	case kindUpvalue:
		usage.Upvalue = true
		fallthrough
	case kindLocal:
		usage.ReadCount++
	case kindGlobal:
		if name == "_ENV" {
			a.errorf("no environment set")
			return
		}
		a.getVar("_ENV")
	}
}

func (a *Analyzer) visitBlock(b *ast.Block) {
	a.stack.pushBlock()
	for _, stmt := range b.Statements {
		a.visitStatement(stmt)
	}
	if b.Return != nil {
		a.visitExprList(b.Return.Exprs)
	}
	a.stack.popBlock()
}

func (a *Analyzer) visitStatement(s ast.Statement) {
	switch s := s.(type) {
	case *ast.AssignStatement:
		a.visitExprList(s.Exprs)
		a.visitAssignTargets(s.Targets)
	case *ast.CallStatement:
		a.visitPrefixExpr(s.Call)
	case *ast.LabelStatement, *ast.BreakStatement, *ast.GotoStatement:
		// no names referenced
	case *ast.DoStatement:
		a.visitBlock(&s.Body)
	case *ast.WhileStatement:
		a.visitExpr(s.Cond)
		a.visitBlock(&s.Body)
	case *ast.RepeatStatement:
		// The until-condition is evaluated in the scope of the loop
		// body, so it must be visited before the body's block closes.
		a.stack.pushBlock()
		for _, stmt := range s.Body.Statements {
			a.visitStatement(stmt)
		}
		if s.Body.Return != nil {
			a.visitExprList(s.Body.Return.Exprs)
		}
		a.visitExpr(s.Cond)
		a.stack.popBlock()
	case *ast.IfStatement:
		for _, clause := range s.Clauses {
			a.visitExpr(clause.Cond)
			a.visitBlock(&clause.Body)
		}
		if s.Else != nil {
			a.visitBlock(s.Else)
		}
	case *ast.NumericForStatement:
		a.visitExpr(s.Start)
		a.visitExpr(s.Limit)
		if s.Step != nil {
			a.visitExpr(s.Step)
		}
		a.stack.pushBlock()
		s.VarUsage = &ast.LocalUsage{Init: true}
		a.stack.allocLocal(s.Var, s.VarUsage)
		a.visitBlock(&s.Body)
		a.stack.popBlock()
	case *ast.GenericForStatement:
		a.visitExprList(s.Exprs)
		a.stack.pushBlock()
		s.NameUsage = make([]*ast.LocalUsage, len(s.Names))
		for i, n := range s.Names {
			u := &ast.LocalUsage{Init: true}
			s.NameUsage[i] = u
			a.stack.allocLocal(n, u)
		}
		a.visitBlock(&s.Body)
		a.stack.popBlock()
	case *ast.FunctionDeclStatement:
		a.visitFunctionBody(s.Body)
		if len(s.Name) == 1 {
			a.setVar(s.Name[0])
		} else {
			a.getVar(s.Name[0])
		}
	case *ast.LocalFunctionStatement:
		s.Usage = &ast.LocalUsage{Init: true}
		a.stack.allocLocal(s.Name, s.Usage)
		a.visitFunctionBody(s.Body)
	case *ast.LocalStatement:
		a.visitExprList(s.Exprs)
		s.Usage = make([]*ast.LocalUsage, len(s.Names))
		for i, n := range s.Names {
			u := &ast.LocalUsage{Init: i < len(s.Exprs)}
			s.Usage[i] = u
			a.stack.allocLocal(n, u)
		}
	default:
		a.errorf("scope: unhandled statement %T", s)
	}
}

func (a *Analyzer) visitAssignTargets(targets []*ast.PrefixExpr) {
	for _, t := range targets {
		if len(t.Tails) == 0 {
			name, ok := t.Head.(*ast.NameExpr)
			if !ok {
				a.errorf("invalid assignment target")
				continue
			}
			a.setVar(name.Name)
			continue
		}
		a.visitPrefixHead(t.Head)
		for _, tail := range t.Tails {
			a.visitTail(tail)
		}
	}
}

func (a *Analyzer) visitPrefixExpr(p *ast.PrefixExpr) {
	a.visitPrefixHead(p.Head)
	for _, tail := range p.Tails {
		a.visitTail(tail)
	}
}

func (a *Analyzer) visitPrefixHead(head ast.Expression) {
	if name, ok := head.(*ast.NameExpr); ok {
		a.getVar(name.Name)
		return
	}
	a.visitExpr(head)
}

func (a *Analyzer) visitTail(tail ast.Tail) {
	switch t := tail.(type) {
	case ast.FieldTail:
		// A literal field name; nothing to resolve.
	case ast.IndexTail:
		a.visitExpr(t.Expr)
	case *ast.CallTail:
		a.visitExprList(t.Args)
	default:
		a.errorf("scope: unhandled tail %T", tail)
	}
}

func (a *Analyzer) visitFunctionBody(fb *ast.FunctionBody) {
	a.stack.pushFunction()
	fb.ParamUsage = make([]*ast.LocalUsage, len(fb.Params))
	for i, p := range fb.Params {
		u := &ast.LocalUsage{Init: true}
		fb.ParamUsage[i] = u
		a.stack.allocLocal(p, u)
	}
	a.visitBlock(&fb.Block)
	a.stack.popFunction()
}

func (a *Analyzer) visitExprList(list []ast.Expression) {
	for _, e := range list {
		a.visitExpr(e)
	}
}

func (a *Analyzer) visitExpr(e ast.Expression) {
	switch e := e.(type) {
	case ast.NilExpr, ast.BoolExpr, ast.IntExpr, ast.FloatExpr, ast.StringExpr:
		// literals reference nothing
	case *ast.VarargExpr:
	case *ast.FunctionExpr:
		a.visitFunctionBody(e.Body)
	case *ast.TableExpr:
		// Keyed entries are visited before array-style ones. The
		// analyzer only counts reads and writes, so this order (unlike
		// the code generator's strict source-order evaluation) does not
		// affect the result.
		var arrayInit []ast.Expression
		for _, f := range e.Fields {
			if f.Key == nil {
				arrayInit = append(arrayInit, f.Value)
				continue
			}
			a.visitExpr(f.Key)
			a.visitExpr(f.Value)
		}
		a.visitExprList(arrayInit)
	case *ast.BinaryExpr:
		a.visitExpr(e.Lhs)
		a.visitExpr(e.Rhs)
	case *ast.UnaryExpr:
		a.visitExpr(e.Rhs)
	case *ast.PrefixExpr:
		a.visitPrefixExpr(e)
	default:
		a.errorf("scope: unhandled expression %T", e)
	}
}
