// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package parser is a recursive-descent Lua 5.3 parser producing
// [ast.Block] trees for the rest of the compiler to analyze and lower.
// It covers full statement and expression grammar; Lua 5.4 additions
// (integer `for`, `<const>`/`<close>` attributes) are not recognized,
// per spec.md's Non-goals.
package parser

import (
	"bufio"
	"fmt"
	"io"

	"github.com/wumbo-lang/wumbo/internal/ast"
	"github.com/wumbo-lang/wumbo/internal/lualex"
)

// depthLimit bounds recursive-descent depth for expressions and nested
// blocks, guarding against stack overflow on pathological input.
const depthLimit = 200

// SyntaxError reports a parse failure at a source position.
type SyntaxError struct {
	Source   string
	Position lualex.Position
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Source, e.Position, e.Msg)
}

// Parse parses a complete Lua chunk from r. name identifies the source
// for error messages only.
func Parse(r io.Reader, name string) (*ast.Block, error) {
	p := &parser{ls: lualex.NewScanner(bufio.NewReader(r)), source: name}
	p.advance()
	blk, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.curr.Kind != lualex.ErrorToken {
		return nil, p.errorf("'<eof>' expected near %s", p.curr)
	}
	if p.err != nil && p.err != io.EOF {
		return nil, p.err
	}
	return blk, nil
}

type parser struct {
	ls     *lualex.Scanner
	source string

	curr lualex.Token
	next lualex.Token
	err  error

	depth int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Source: p.source, Position: p.curr.Position, Msg: fmt.Sprintf(format, args...)}
}

func tokenPos(t lualex.Token) ast.Position {
	return ast.Position{Line: t.Position.Line, Column: t.Position.Column}
}

func lexPos(lp lualex.Position) ast.Position {
	return ast.Position{Line: lp.Line, Column: lp.Column}
}

func (p *parser) advance() {
	if p.next.Kind != lualex.ErrorToken {
		p.curr = p.next
		p.next = lualex.Token{}
		return
	}
	if p.err == nil {
		p.curr, p.err = p.ls.Scan()
	}
}

func (p *parser) peek() lualex.Token {
	if p.next.Kind == lualex.ErrorToken {
		p.next, p.err = p.ls.Scan()
	}
	return p.next
}

func (p *parser) expect(kind lualex.TokenKind) (lualex.Token, error) {
	if p.curr.Kind != kind {
		return lualex.Token{}, p.errorf("%v expected near %s", kind, p.curr)
	}
	t := p.curr
	p.advance()
	return t, nil
}

func (p *parser) checkMatch(openPos lualex.Position, open, close lualex.TokenKind) error {
	if p.curr.Kind == close {
		p.advance()
		return nil
	}
	if openPos.Line == p.curr.Position.Line {
		return p.errorf("%v expected near %s", close, p.curr)
	}
	return p.errorf("%v expected (to close %v at line %d) near %s", close, open, openPos.Line, p.curr)
}

func (p *parser) name() (ast.Name, error) {
	if p.curr.Kind != lualex.IdentifierToken {
		return "", p.errorf("name expected near %s", p.curr)
	}
	n := ast.Name(p.curr.Value)
	p.advance()
	return n, nil
}

// blockFollow reports whether the current token ends a block.
func (p *parser) blockFollow() bool {
	switch p.curr.Kind {
	case lualex.ErrorToken, lualex.EndToken, lualex.ElseToken, lualex.ElseifToken, lualex.UntilToken:
		return true
	default:
		return false
	}
}

// block parses a sequence of statements optionally ending in a return
// statement, stopping at a block-follow token.
func (p *parser) block() (*ast.Block, error) {
	p.depth++
	if p.depth > depthLimit {
		return nil, p.errorf("chunk has too many syntax levels")
	}
	defer func() { p.depth-- }()

	blk := &ast.Block{}
	for !p.blockFollow() {
		if p.curr.Kind == lualex.ReturnToken {
			ret, err := p.returnStatement()
			if err != nil {
				return nil, err
			}
			blk.Return = ret
			break
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		if s != nil {
			blk.Statements = append(blk.Statements, s)
		}
	}
	return blk, nil
}

func (p *parser) returnStatement() (*ast.ReturnStatement, error) {
	ret := &ast.ReturnStatement{Pos: tokenPos(p.curr)}
	p.advance()
	if !p.blockFollow() && p.curr.Kind != lualex.SemiToken {
		exprs, err := p.expressionList()
		if err != nil {
			return nil, err
		}
		ret.Exprs = exprs
	}
	if p.curr.Kind == lualex.SemiToken {
		p.advance()
	}
	return ret, nil
}

func (p *parser) statement() (ast.Statement, error) {
	switch p.curr.Kind {
	case lualex.SemiToken:
		p.advance()
		return nil, nil
	case lualex.IfToken:
		return p.ifStatement()
	case lualex.WhileToken:
		return p.whileStatement()
	case lualex.DoToken:
		p.advance()
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		if err := p.checkMatch(p.curr.Position, lualex.DoToken, lualex.EndToken); err != nil {
			return nil, err
		}
		return &ast.DoStatement{Body: *body}, nil
	case lualex.ForToken:
		return p.forStatement()
	case lualex.RepeatToken:
		return p.repeatStatement()
	case lualex.FunctionToken:
		return p.functionStatement()
	case lualex.LocalToken:
		return p.localStatement()
	case lualex.LabelToken:
		return p.labelStatement()
	case lualex.BreakToken:
		bp := tokenPos(p.curr)
		p.advance()
		return &ast.BreakStatement{Pos: bp}, nil
	case lualex.GotoToken:
		gp := tokenPos(p.curr)
		p.advance()
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		return &ast.GotoStatement{Pos: gp, Name: n}, nil
	default:
		return p.exprStatement()
	}
}

func (p *parser) labelStatement() (ast.Statement, error) {
	lp := tokenPos(p.curr)
	p.advance()
	n, err := p.name()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.LabelToken); err != nil {
		return nil, err
	}
	return &ast.LabelStatement{Pos: lp, Name: n}, nil
}

func (p *parser) ifStatement() (ast.Statement, error) {
	stmt := &ast.IfStatement{}
	for {
		p.advance() // 'if' or 'elseif'
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.ThenToken); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: *body})
		if p.curr.Kind != lualex.ElseifToken {
			break
		}
	}
	if p.curr.Kind == lualex.ElseToken {
		p.advance()
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		stmt.Else = body
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) whileStatement() (ast.Statement, error) {
	p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.DoToken); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return &ast.WhileStatement{Cond: cond, Body: *body}, nil
}

// repeatStatement parses `repeat ... until cond`. Cond is scoped inside
// Body, per [ast.RepeatStatement]'s documented contract.
func (p *parser) repeatStatement() (ast.Statement, error) {
	p.advance()
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.UntilToken); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.RepeatStatement{Body: *body, Cond: cond}, nil
}

// forStatement disambiguates numeric vs. generic `for` by looking past
// the first name.
func (p *parser) forStatement() (ast.Statement, error) {
	fp := tokenPos(p.curr)
	p.advance()
	first, err := p.name()
	if err != nil {
		return nil, err
	}
	switch p.curr.Kind {
	case lualex.AssignToken:
		return p.numericFor(fp, first)
	case lualex.CommaToken, lualex.InToken:
		return p.genericFor(fp, first)
	default:
		return nil, p.errorf("'=' or 'in' expected near %s", p.curr)
	}
}

func (p *parser) numericFor(fp ast.Position, name ast.Name) (ast.Statement, error) {
	p.advance() // '='
	start, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.CommaToken); err != nil {
		return nil, err
	}
	limit, err := p.expression()
	if err != nil {
		return nil, err
	}
	var step ast.Expression
	if p.curr.Kind == lualex.CommaToken {
		p.advance()
		step, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lualex.DoToken); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return &ast.NumericForStatement{Pos: fp, Var: name, Start: start, Limit: limit, Step: step, Body: *body}, nil
}

func (p *parser) genericFor(fp ast.Position, first ast.Name) (ast.Statement, error) {
	names := []ast.Name{first}
	for p.curr.Kind == lualex.CommaToken {
		p.advance()
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if _, err := p.expect(lualex.InToken); err != nil {
		return nil, err
	}
	exprs, err := p.expressionList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.DoToken); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return &ast.GenericForStatement{Pos: fp, Names: names, Exprs: exprs, Body: *body}, nil
}

// functionStatement parses `function funcname funcbody`, where funcname
// is a dotted path optionally ending in `:Name` for method syntax. Per
// [ast.FunctionDeclStatement]'s documented contract, a method's implicit
// `self` parameter is prepended here, at parse time, so scope analysis
// sees it like any other declared parameter.
func (p *parser) functionStatement() (ast.Statement, error) {
	p.advance()
	first, err := p.name()
	if err != nil {
		return nil, err
	}
	names := []ast.Name{first}
	for p.curr.Kind == lualex.DotToken {
		p.advance()
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	method := false
	if p.curr.Kind == lualex.ColonToken {
		p.advance()
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		method = true
	}
	body, err := p.functionBody(method)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDeclStatement{Name: names, Method: method, Body: body}, nil
}

func (p *parser) localStatement() (ast.Statement, error) {
	p.advance()
	if p.curr.Kind == lualex.FunctionToken {
		p.advance()
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		body, err := p.functionBody(false)
		if err != nil {
			return nil, err
		}
		return &ast.LocalFunctionStatement{Name: n, Body: body}, nil
	}

	first, err := p.name()
	if err != nil {
		return nil, err
	}
	names := []ast.Name{first}
	for p.curr.Kind == lualex.CommaToken {
		p.advance()
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	var exprs []ast.Expression
	if p.curr.Kind == lualex.AssignToken {
		p.advance()
		exprs, err = p.expressionList()
		if err != nil {
			return nil, err
		}
	}
	return &ast.LocalStatement{Names: names, Exprs: exprs}, nil
}

// exprStatement parses either an assignment or a bare call used as a
// statement, per the shared `prefixexp` grammar production.
func (p *parser) exprStatement() (ast.Statement, error) {
	first, err := p.suffixedExpr()
	if err != nil {
		return nil, err
	}
	if p.curr.Kind != lualex.AssignToken && p.curr.Kind != lualex.CommaToken {
		if !endsInCall(first) {
			return nil, p.errorf("syntax error near %s", p.curr)
		}
		return &ast.CallStatement{Call: first}, nil
	}

	ap := tokenPos(p.curr)
	targets := []*ast.PrefixExpr{first}
	for p.curr.Kind == lualex.CommaToken {
		p.advance()
		t, err := p.suffixedExpr()
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if _, err := p.expect(lualex.AssignToken); err != nil {
		return nil, err
	}
	exprs, err := p.expressionList()
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if endsInCall(t) {
			return nil, p.errorf("syntax error: cannot assign to a function call")
		}
	}
	return &ast.AssignStatement{Pos: ap, Targets: targets, Exprs: exprs}, nil
}

func endsInCall(p *ast.PrefixExpr) bool {
	if len(p.Tails) == 0 {
		return false
	}
	_, ok := p.Tails[len(p.Tails)-1].(*ast.CallTail)
	return ok
}

func (p *parser) expressionList() ([]ast.Expression, error) {
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	exprs := []ast.Expression{e}
	for p.curr.Kind == lualex.CommaToken {
		p.advance()
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// --- Expressions ---

type opInfo struct{ left, right int }

var binPrec = map[ast.BinaryOp]opInfo{
	ast.OpOr:       {1, 1},
	ast.OpAnd:      {2, 2},
	ast.OpLt:       {3, 3},
	ast.OpGt:       {3, 3},
	ast.OpLe:       {3, 3},
	ast.OpGe:       {3, 3},
	ast.OpNe:       {3, 3},
	ast.OpEq:       {3, 3},
	ast.OpBOr:      {4, 4},
	ast.OpBXor:     {5, 5},
	ast.OpBAnd:     {6, 6},
	ast.OpShl:      {7, 7},
	ast.OpShr:      {7, 7},
	ast.OpConcat:   {9, 8}, // right associative
	ast.OpAdd:      {10, 10},
	ast.OpSub:      {10, 10},
	ast.OpMul:      {11, 11},
	ast.OpMod:      {11, 11},
	ast.OpDiv:      {11, 11},
	ast.OpFloorDiv: {11, 11},
	ast.OpExp:      {14, 13}, // right associative
}

const unaryPrecedence = 12

func tokenToBinOp(tk lualex.TokenKind) (ast.BinaryOp, bool) {
	switch tk {
	case lualex.AddToken:
		return ast.OpAdd, true
	case lualex.SubToken:
		return ast.OpSub, true
	case lualex.MulToken:
		return ast.OpMul, true
	case lualex.DivToken:
		return ast.OpDiv, true
	case lualex.IntDivToken:
		return ast.OpFloorDiv, true
	case lualex.PowToken:
		return ast.OpExp, true
	case lualex.ModToken:
		return ast.OpMod, true
	case lualex.AndToken:
		return ast.OpAnd, true
	case lualex.OrToken:
		return ast.OpOr, true
	case lualex.BitOrToken:
		return ast.OpBOr, true
	case lualex.BitAndToken:
		return ast.OpBAnd, true
	case lualex.BitXorToken:
		return ast.OpBXor, true
	case lualex.RShiftToken:
		return ast.OpShr, true
	case lualex.LShiftToken:
		return ast.OpShl, true
	case lualex.EqualToken:
		return ast.OpEq, true
	case lualex.NotEqualToken:
		return ast.OpNe, true
	case lualex.LessToken:
		return ast.OpLt, true
	case lualex.GreaterToken:
		return ast.OpGt, true
	case lualex.LessEqualToken:
		return ast.OpLe, true
	case lualex.GreaterEqualToken:
		return ast.OpGe, true
	case lualex.ConcatToken:
		return ast.OpConcat, true
	default:
		return 0, false
	}
}

func tokenToUnOp(tk lualex.TokenKind) (ast.UnaryOp, bool) {
	switch tk {
	case lualex.SubToken:
		return ast.OpMinus, true
	case lualex.NotToken:
		return ast.OpNot, true
	case lualex.LenToken:
		return ast.OpLen, true
	case lualex.BitXorToken:
		return ast.OpBNot, true
	default:
		return 0, false
	}
}

func (p *parser) expression() (ast.Expression, error) {
	e, _, _, err := p.subExpression(0)
	return e, err
}

// subExpression implements precedence climbing: it parses operands
// joined by binary operators whose left priority exceeds limit, and
// returns the first operator it encountered with priority <= limit (so
// the caller can continue the chain at its own level).
func (p *parser) subExpression(limit int) (ast.Expression, ast.BinaryOp, bool, error) {
	p.depth++
	if p.depth > depthLimit {
		return nil, 0, false, p.errorf("expression has too many syntax levels")
	}
	defer func() { p.depth-- }()

	var e ast.Expression
	if uop, ok := tokenToUnOp(p.curr.Kind); ok {
		up := tokenPos(p.curr)
		p.advance()
		rhs, _, _, err := p.subExpression(unaryPrecedence)
		if err != nil {
			return nil, 0, false, err
		}
		e = &ast.UnaryExpr{Pos: up, Op: uop, Rhs: rhs}
	} else {
		var err error
		e, err = p.simpleExpression()
		if err != nil {
			return nil, 0, false, err
		}
	}

	op, ok := tokenToBinOp(p.curr.Kind)
	for ok && binPrec[op].left > limit {
		bp := tokenPos(p.curr)
		p.advance()
		rhs, nextOp, nextOK, err := p.subExpression(binPrec[op].right)
		if err != nil {
			return nil, 0, false, err
		}
		e = &ast.BinaryExpr{Pos: bp, Op: op, Lhs: e, Rhs: rhs}
		op, ok = nextOp, nextOK
	}
	return e, op, ok, nil
}

func (p *parser) simpleExpression() (ast.Expression, error) {
	switch p.curr.Kind {
	case lualex.NilToken:
		p.advance()
		return ast.NilExpr{}, nil
	case lualex.TrueToken:
		p.advance()
		return ast.BoolExpr(true), nil
	case lualex.FalseToken:
		p.advance()
		return ast.BoolExpr(false), nil
	case lualex.NumeralToken:
		return p.numeral()
	case lualex.StringToken:
		s := p.curr.Value
		p.advance()
		return ast.StringExpr(s), nil
	case lualex.VarargToken:
		vp := tokenPos(p.curr)
		p.advance()
		return &ast.VarargExpr{Pos: vp}, nil
	case lualex.FunctionToken:
		p.advance()
		body, err := p.functionBody(false)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionExpr{Body: body}, nil
	case lualex.LBraceToken:
		return p.tableConstructor()
	default:
		pe, err := p.suffixedExpr()
		if err != nil {
			return nil, err
		}
		return pe, nil
	}
}

// numeral classifies a numeral token: it denotes an integer unless it
// has a radix point or an exponent (a plain hex numeral like 0xFF is
// always integral; see [lualex.ParseInt]'s doc comment).
func (p *parser) numeral() (ast.Expression, error) {
	v := p.curr.Value
	p.advance()
	if i, err := lualex.ParseInt(v); err == nil {
		return ast.IntExpr(i), nil
	}
	f, err := lualex.ParseNumber(v)
	if err != nil {
		return nil, err
	}
	return ast.FloatExpr(f), nil
}

// primaryExpr parses a name or a parenthesized expression: the head of
// a [ast.PrefixExpr].
func (p *parser) primaryExpr() (ast.Expression, error) {
	switch p.curr.Kind {
	case lualex.LParenToken:
		op := p.curr.Position
		p.advance()
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.checkMatch(op, lualex.LParenToken, lualex.RParenToken); err != nil {
			return nil, err
		}
		return e, nil
	case lualex.IdentifierToken:
		np := tokenPos(p.curr)
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		return &ast.NameExpr{Pos: np, Name: n}, nil
	default:
		return nil, p.errorf("unexpected symbol near %s", p.curr)
	}
}

// suffixedExpr parses a primary expression followed by any number of
// field/index/call tails.
func (p *parser) suffixedExpr() (*ast.PrefixExpr, error) {
	head, err := p.primaryExpr()
	if err != nil {
		return nil, err
	}
	pe := &ast.PrefixExpr{Head: head}
	for {
		switch p.curr.Kind {
		case lualex.DotToken:
			p.advance()
			n, err := p.name()
			if err != nil {
				return nil, err
			}
			pe.Tails = append(pe.Tails, ast.FieldTail{Name: n})
		case lualex.LBracketToken:
			p.advance()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken); err != nil {
				return nil, err
			}
			pe.Tails = append(pe.Tails, ast.IndexTail{Expr: idx})
		case lualex.ColonToken:
			cp := tokenPos(p.curr)
			p.advance()
			method, err := p.name()
			if err != nil {
				return nil, err
			}
			args, err := p.callArguments()
			if err != nil {
				return nil, err
			}
			pe.Tails = append(pe.Tails, &ast.CallTail{Pos: cp, Method: method, Args: args})
		case lualex.LParenToken, lualex.StringToken, lualex.LBraceToken:
			cp := tokenPos(p.curr)
			args, err := p.callArguments()
			if err != nil {
				return nil, err
			}
			pe.Tails = append(pe.Tails, &ast.CallTail{Pos: cp, Args: args})
		default:
			return pe, nil
		}
	}
}

// callArguments parses a call's argument list: a parenthesized
// expression list, a single string literal, or a table constructor.
func (p *parser) callArguments() ([]ast.Expression, error) {
	switch p.curr.Kind {
	case lualex.LParenToken:
		p.advance()
		if p.curr.Kind == lualex.RParenToken {
			p.advance()
			return nil, nil
		}
		args, err := p.expressionList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.RParenToken); err != nil {
			return nil, err
		}
		return args, nil
	case lualex.StringToken:
		s := p.curr.Value
		p.advance()
		return []ast.Expression{ast.StringExpr(s)}, nil
	case lualex.LBraceToken:
		t, err := p.tableConstructor()
		if err != nil {
			return nil, err
		}
		return []ast.Expression{t}, nil
	default:
		return nil, p.errorf("function arguments expected near %s", p.curr)
	}
}

// tableConstructor parses `{ field {fieldsep field} [fieldsep] }`; a
// `name = value` field's name is normalized to a [ast.StringExpr] key,
// per [ast.TableField]'s documented equivalence with bracketed string
// keys.
func (p *parser) tableConstructor() (ast.Expression, error) {
	start := p.curr.Position
	p.advance()
	te := &ast.TableExpr{Pos: lexPos(start)}
	for p.curr.Kind != lualex.RBraceToken {
		var field ast.TableField
		switch {
		case p.curr.Kind == lualex.LBracketToken:
			p.advance()
			key, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken); err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.AssignToken); err != nil {
				return nil, err
			}
			val, err := p.expression()
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Key: key, Value: val}
		case p.curr.Kind == lualex.IdentifierToken && p.peek().Kind == lualex.AssignToken:
			n, _ := p.name()
			p.advance() // '='
			val, err := p.expression()
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Key: ast.StringExpr(n), Value: val}
		default:
			val, err := p.expression()
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Value: val}
		}
		te.Fields = append(te.Fields, field)
		if p.curr.Kind != lualex.CommaToken && p.curr.Kind != lualex.SemiToken {
			break
		}
		p.advance()
	}
	if err := p.checkMatch(start, lualex.LBraceToken, lualex.RBraceToken); err != nil {
		return nil, err
	}
	return te, nil
}

// functionBody parses `'(' [parlist] ')' block 'end'`. When isMethod is
// true, an implicit "self" parameter is prepended ahead of the declared
// parameter list, per [ast.FunctionDeclStatement]'s documented contract.
func (p *parser) functionBody(isMethod bool) (*ast.FunctionBody, error) {
	fp := tokenPos(p.curr)
	open, err := p.expect(lualex.LParenToken)
	if err != nil {
		return nil, err
	}
	fb := &ast.FunctionBody{Pos: fp}
	if isMethod {
		fb.Params = append(fb.Params, "self")
	}
	if p.curr.Kind != lualex.RParenToken {
		for {
			if p.curr.Kind == lualex.VarargToken {
				p.advance()
				fb.Vararg = true
				break
			}
			n, err := p.name()
			if err != nil {
				return nil, err
			}
			fb.Params = append(fb.Params, n)
			if p.curr.Kind != lualex.CommaToken {
				break
			}
			p.advance()
		}
	}
	if err := p.checkMatch(open.Position, lualex.LParenToken, lualex.RParenToken); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fb.Block = *body
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return fb, nil
}
