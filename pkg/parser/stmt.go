package parser

import (
	"fmt"
	"strings"

	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/scanner"
	"github.com/xplshn/cbc/pkg/token"
	"github.com/xplshn/cbc/pkg/types"
)

// Statement Parsing

func (p *Parser) statement(ctx context) *ast.Node {
	if p.s.Peek() == '{' {
		return p.block(ctx)
	}
	alternatives := []func(context) *ast.Node{
		p.breakStmt,
		p.continueStmt,
		p.asmStmt,
		p.ifStmt,
		p.forStmt,
		p.whileStmt,
		p.returnStmt,
		p.varDecl,
		p.exprStmt,
	}
	for _, alt := range alternatives {
		if n := alt(ctx); n != nil {
			return n
		}
	}
	return nil
}

// block reads `{ ... }`, an empty `;` or a single statement. Variables it
// defines go out of scope when it ends.
func (p *Parser) block(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	switch {
	case p.s.TestNext(';'):
		return ast.NewBlock(pos, nil, 0)
	case !p.s.TestNext('{'):
		p.env.EnterBlock()
		s := p.statement(ctx)
		if s == nil {
			p.s.Restore(cp, "")
			return nil
		}
		return ast.NewBlock(pos, []*ast.Node{s}, p.env.ExitBlock())
	}

	p.env.EnterBlock()
	var stmts []*ast.Node
	terminated, warned := false, false
	p.s.SkipWhitespace()
	for !p.s.TestNext('}') {
		if p.s.Peek() == scanner.EOF {
			p.s.Restore(cp, "expected: '}', got: 'end of file'")
			return nil
		}
		stmtPos := p.s.Pos()
		s := p.statement(ctx)
		if s == nil {
			p.s.Restore(cp, "")
			return nil
		}
		if terminated && !warned {
			p.warn(config.WarnUnreachableCode, stmtPos, "unreachable code")
			warned = true
		}
		terminated = terminated || ast.Terminates(s)
		stmts = append(stmts, s)
		p.s.SkipWhitespace()
	}
	return ast.NewBlock(pos, stmts, p.env.ExitBlock())
}

// condition reads a loop or branch condition. Scalars are compared with
// zero, anything else has to be a comparison already.
func (p *Parser) condition(cp scanner.Checkpoint) *ast.Node {
	c := p.expression()
	if c == nil {
		p.s.Restore(cp, "invalid condition")
		return nil
	}
	if c.Typ.IsPointer() || c.Typ.IsArithmetic() {
		zero := ast.NewLiteral(c.Pos, 0, c.Typ)
		var err error
		if c, err = ast.NewBinary(c.Pos, token.NotEqual, c, zero); err != nil {
			p.s.Restore(cp, err.Error())
			return nil
		}
	}
	if c.Typ != types.Flags {
		p.s.Restore(cp, fmt.Sprintf("invalid condition type, expected: flags, got: %s", c.Typ))
		return nil
	}
	return c
}

func (p *Parser) breakStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("break", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(';', cp) {
		return nil
	}
	if ctx.loop == nil {
		p.s.Restore(cp, "can't break while not in loop")
		return nil
	}
	return ast.NewBreak(pos, p.env.BytesSince(ctx.loop.depth))
}

func (p *Parser) continueStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("continue", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(';', cp) {
		return nil
	}
	if ctx.loop == nil {
		p.s.Restore(cp, "can't continue while not in loop")
		return nil
	}
	return ast.NewContinue(pos, p.env.BytesSince(ctx.loop.depth))
}

// asmStmt reads `__asm {` and passes every following line through until a
// line that starts with `}`.
func (p *Parser) asmStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("__asm", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect('{', cp) {
		return nil
	}
	if !p.cfg.IsFeatureEnabled(config.FeatAsm) {
		p.s.Restore(cp, "inline assembly is disabled (-Fasm)")
		return nil
	}
	var lines []string
	for !p.s.AtEOF() {
		p.s.SkipWhitespace()
		if p.s.TestNext('}') {
			return ast.NewAsm(pos, lines)
		}
		if line := strings.TrimSpace(p.s.ConsumeToEndOfLine()); line != "" {
			lines = append(lines, line)
		}
	}
	p.s.Restore(cp, "expected: '}', got: 'end of file'")
	return nil
}

func (p *Parser) ifStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("if", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect('(', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	cond := p.condition(cp)
	if cond == nil {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(')', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	then := p.block(ctx)
	if then == nil {
		p.s.Restore(cp, "invalid if body")
		return nil
	}

	elseCp := p.s.Checkpoint()
	p.s.SkipWhitespace()
	if !p.keyword("else", elseCp) {
		return ast.NewIf(pos, cond, then, nil)
	}
	p.s.SkipWhitespace()
	els := p.block(ctx)
	if els == nil {
		p.s.Restore(cp, "invalid else body")
		return nil
	}
	return ast.NewIf(pos, cond, then, els)
}

// loopBody reads the body of a loop with a fresh loop frame.
func (p *Parser) loopBody(ctx context) *ast.Node {
	ctx.loop = &loopFrame{depth: p.env.Depth()}
	return p.block(ctx)
}

func (p *Parser) whileStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("while", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect('(', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	cond := p.condition(cp)
	if cond == nil {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(')', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	body := p.loopBody(ctx)
	if body == nil {
		p.s.Restore(cp, "invalid while body")
		return nil
	}
	return ast.NewWhile(pos, cond, body)
}

// forStmt reads `for (init; cond; post) body`. Every clause may be empty.
// Variables defined by init live until the loop ends.
func (p *Parser) forStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("for", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect('(', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	depth := p.env.Depth()

	var init *ast.Node
	if !p.s.TestNext(';') {
		if init = p.varDecl(ctx); init == nil {
			e := p.expression()
			if e == nil {
				p.s.Restore(cp, "invalid initializer")
				return nil
			}
			init = ast.NewExprStmt(e.Pos, e)
			p.s.SkipWhitespace()
			if !p.s.Expect(';', cp) {
				return nil
			}
		}
	}
	p.s.SkipWhitespace()

	var cond *ast.Node
	if !p.s.TestNext(';') {
		if cond = p.condition(cp); cond == nil {
			return nil
		}
		p.s.SkipWhitespace()
		if !p.s.Expect(';', cp) {
			return nil
		}
	}
	p.s.SkipWhitespace()

	var post *ast.Node
	if p.s.Peek() != ')' {
		if post = p.expression(); post == nil {
			p.s.Restore(cp, "invalid incrementer")
			return nil
		}
		p.s.SkipWhitespace()
	}
	if !p.s.Expect(')', cp) {
		return nil
	}
	p.s.SkipWhitespace()

	body := p.loopBody(ctx)
	if body == nil {
		p.s.Restore(cp, "invalid for body")
		return nil
	}
	cleanup := p.env.BytesSince(depth)
	p.s.RestoreScope(cp)
	return ast.NewFor(pos, init, cond, post, body, cleanup)
}

func (p *Parser) returnStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("return", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if ctx.fn.Return == types.Void {
		if !p.s.Expect(';', cp) {
			return nil
		}
		return ast.NewReturn(pos, nil, p.env.CountFunctionExiting())
	}
	e := p.expression()
	if e == nil {
		p.s.Restore(cp, "invalid return expression")
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(';', cp) {
		return nil
	}
	e, err := ast.NewImplicit(e, ctx.fn.Return)
	if err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	return ast.NewReturn(pos, e, p.env.CountFunctionExiting())
}

// varDecl reads `type name;`, `type name = expr;` or `type name[N];`. The
// name is defined after its initializer is read.
func (p *Parser) varDecl(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	typ, ok := p.dataType()
	if !ok {
		p.s.Restore(cp, "invalid variable type")
		return nil
	}
	if typ == types.Void {
		p.s.Restore(cp, "can't define variables of void type")
		return nil
	}
	name, ok := p.name(cp, "variable name")
	if !ok || !p.checkNewName(name, cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if p.s.TestNext('[') {
		return p.arrayDecl(cp, pos, name, typ)
	}

	var init *ast.Node
	if p.s.TestNext('=') {
		p.s.SkipWhitespace()
		if init = p.expression(); init == nil {
			p.s.Restore(cp, "invalid initial value")
			return nil
		}
		var err error
		if init, err = ast.NewImplicit(init, typ); err != nil {
			p.s.Restore(cp, err.Error())
			return nil
		}
		p.s.SkipWhitespace()
	}
	if !p.s.Expect(';', cp) {
		return nil
	}
	offset := p.env.DefineVariable(name, typ)
	return ast.NewVarDecl(pos, name, typ, init, offset)
}

// arrayDecl reserves N elements below the pointer variable that addresses
// them.
func (p *Parser) arrayDecl(cp scanner.Checkpoint, pos token.Pos, name string, elem types.Type) *ast.Node {
	if !p.cfg.IsFeatureEnabled(config.FeatArrays) {
		p.s.Restore(cp, "arrays are disabled (-Farrays)")
		return nil
	}
	p.s.SkipWhitespace()
	n := p.expression()
	if n == nil || !n.Const || !n.Typ.IsArithmetic() {
		p.s.Restore(cp, "array size must be a constant integer")
		return nil
	}
	if n.Value <= 0 {
		p.s.Restore(cp, "array size must be positive")
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(']', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(';', cp) {
		return nil
	}
	size := n.Value * elem.Size()
	storage := p.env.Define("", elem, size)
	offset := p.env.DefineVariable(name, elem.Ref())
	return ast.NewArrayDecl(pos, name, elem, n.Value, size+size%2, storage, offset)
}

func (p *Parser) exprStmt(ctx context) *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	e := p.expression()
	if e == nil {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(';', cp) {
		return nil
	}
	return ast.NewExprStmt(pos, e)
}
