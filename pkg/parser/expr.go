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

// Expression Parsing

type pendingOp struct {
	op  token.Op
	pos token.Pos
}

// expression runs operator precedence over a value stack and an operator
// stack. Every reduction builds a checked, folded node.
func (p *Parser) expression() *ast.Node {
	cp := p.s.Checkpoint()
	first := p.operand()
	if first == nil {
		p.s.Restore(cp, "invalid mathematical expression")
		return nil
	}
	values := []*ast.Node{first}
	var ops []pendingOp

	reduce := func() error {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		l, r := values[len(values)-2], values[len(values)-1]
		values = values[:len(values)-2]
		n, err := p.build.Binary(top.pos, top.op, l, r)
		if err != nil {
			return err
		}
		values = append(values, n)
		return nil
	}

	for {
		end := p.s.Checkpoint()
		p.s.SkipWhitespace()
		pos := p.s.Pos()
		op := p.operator()
		for len(ops) > 0 && (op == token.Unknown || token.HasPrecedence(ops[len(ops)-1].op, op)) {
			if err := reduce(); err != nil {
				p.s.Restore(cp, err.Error())
				return nil
			}
		}
		if op == token.Unknown {
			p.s.Restore(end, "")
			return values[0]
		}
		ops = append(ops, pendingOp{op: op, pos: pos})
		p.s.SkipWhitespace()
		v := p.operand()
		if v == nil {
			p.s.Restore(cp, "invalid operand")
			return nil
		}
		values = append(values, v)
	}
}

// operator reads the longest operator at the cursor.
func (p *Parser) operator() token.Op {
	cp := p.s.Checkpoint()
	switch {
	case p.s.TestNext('+'):
		return token.Add
	case p.s.TestNext('-'):
		return token.Subtract
	case p.s.TestNext('*'):
		return token.Multiply
	case p.s.TestNext('/'):
		return token.Divide
	case p.s.TestNext('%'):
		return token.Modulo
	case p.s.TestNext('>'):
		switch {
		case p.s.TestNext('='):
			return token.GreaterEqual
		case p.s.TestNext('>'):
			return token.ShiftRight
		}
		return token.Greater
	case p.s.TestNext('<'):
		switch {
		case p.s.TestNext('='):
			return token.LessEqual
		case p.s.TestNext('<'):
			return token.ShiftLeft
		}
		return token.Less
	case p.s.TestNext('='):
		if p.s.TestNext('=') {
			return token.Equal
		}
		return token.Assign
	case p.s.TestNext('!'):
		if p.s.TestNext('=') {
			return token.NotEqual
		}
	case p.s.TestNext('|'):
		return token.Or
	case p.s.TestNext('^'):
		return token.Xor
	case p.s.TestNext('&'):
		return token.And
	}
	p.s.Restore(cp, "invalid operator")
	return token.Unknown
}

func (p *Parser) operand() *ast.Node {
	if n := p.cast(); n != nil {
		return n
	}
	if p.s.Peek() == '(' {
		return p.paren()
	}
	return p.value()
}

func (p *Parser) paren() *ast.Node {
	cp := p.s.Checkpoint()
	if !p.s.Expect('(', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	n := p.expression()
	if n == nil {
		p.s.Restore(cp, "invalid mathematical expression")
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(')', cp) {
		return nil
	}
	return n
}

func (p *Parser) value() *ast.Node {
	alternatives := []func() *ast.Node{
		p.null,
		p.increment,
		p.cast,
		p.sizeOf,
		p.call,
		p.arrayAccess,
		p.variable,
		p.literal,
		p.deref,
		p.reference,
	}
	for _, alt := range alternatives {
		if n := alt(); n != nil {
			return n
		}
	}
	p.s.Fail("invalid math expression")
	return nil
}

func (p *Parser) null() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("NULL", cp) {
		return nil
	}
	return ast.NewNull(pos)
}

func (p *Parser) increment() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	decrement := false
	switch {
	case p.s.TestString("++"):
	case p.s.TestString("--"):
		decrement = true
	default:
		return nil
	}
	p.s.SkipWhitespace()
	v := p.value()
	if v == nil {
		p.s.Restore(cp, "invalid increment operand")
		return nil
	}
	n, err := ast.NewIncrement(pos, v, decrement)
	if err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	return n
}

// cast reads `(type) value` or `(type)(expression)`.
func (p *Parser) cast() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.s.Expect('(', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	to, ok := p.dataType()
	if !ok {
		p.s.Restore(cp, "")
		return nil
	}
	if !p.s.Expect(')', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	var inner *ast.Node
	if p.s.Peek() == '(' {
		inner = p.paren()
	} else {
		inner = p.value()
	}
	if inner == nil {
		p.s.Restore(cp, "invalid cast operand")
		return nil
	}
	n, err := ast.NewCast(pos, inner, to)
	if err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	if inner.Const && n.Value != inner.Value {
		p.warn(config.WarnTruncation, pos,
			fmt.Sprintf("cast of constant %d to %s truncates it to %d", inner.Value, to, n.Value))
	}
	return n
}

// sizeOf reads `sizeof(type)` or `sizeof(variable)` as an int constant.
func (p *Parser) sizeOf() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.keyword("sizeof", cp) {
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect('(', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	var size int
	if typ, ok := p.dataType(); ok {
		size = typ.Size()
	} else {
		v, _, found := p.env.FindVariable(strings.ToLower(p.s.Word()))
		if !found {
			p.s.Restore(cp, "invalid variable or type")
			return nil
		}
		size = v.Type.Size()
		p.s.SkipWhitespace()
	}
	if !p.s.Expect(')', cp) {
		return nil
	}
	return ast.NewLiteral(pos, size, types.Int)
}

func (p *Parser) call() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	name := strings.ToLower(p.s.Word())
	if name == "" {
		p.s.Restore(cp, "invalid function name")
		return nil
	}
	args, ok := p.callArgs(cp)
	if !ok {
		return nil
	}
	fn := p.env.FindFunction(name)
	if fn == nil {
		p.s.Restore(cp, "function is not defined: "+name)
		return nil
	}
	n, err := ast.NewCall(pos, fn, args)
	if err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	return n
}

func (p *Parser) callArgs(cp scanner.Checkpoint) ([]*ast.Node, bool) {
	if !p.s.Expect('(', cp) {
		return nil, false
	}
	var args []*ast.Node
	p.s.SkipWhitespace()
	if p.s.TestNext(')') {
		return args, true
	}
	for {
		p.s.SkipWhitespace()
		arg := p.expression()
		if arg == nil {
			p.s.Restore(cp, "invalid call parameter")
			return nil, false
		}
		args = append(args, arg)
		p.s.SkipWhitespace()
		if p.s.TestNext(',') {
			continue
		}
		if !p.s.Expect(')', cp) {
			return nil, false
		}
		return args, true
	}
}

// arrayAccess reads `p[i]`, which is *(p + i*size).
func (p *Parser) arrayAccess() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	base := p.variable()
	if base == nil {
		p.s.Restore(cp, "")
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect('[', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	index := p.expression()
	if index == nil {
		p.s.Restore(cp, "invalid index")
		return nil
	}
	p.s.SkipWhitespace()
	if !p.s.Expect(']', cp) {
		return nil
	}
	n, err := p.build.Index(pos, base, index)
	if err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	return n
}

func (p *Parser) variable() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	name := strings.ToLower(p.s.Word())
	if name == "" {
		p.s.Restore(cp, "invalid name")
		return nil
	}
	v, offset, ok := p.env.FindVariable(name)
	if !ok {
		p.s.Restore(cp, fmt.Sprintf("variable '%s' is not defined", name))
		return nil
	}
	end := p.s.Checkpoint()
	p.s.SkipWhitespace()
	if p.s.Peek() == '(' {
		p.s.Restore(cp, "invalid variable usage")
		return nil
	}
	p.s.Restore(end, "")
	return ast.NewVariable(pos, name, v.Type, offset)
}

// literal reads a decimal or character constant with an optional sign.
func (p *Parser) literal() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	negative := p.s.TestNext('-')

	if p.s.TestNext('\'') {
		c := p.s.Consume()
		if c == '\\' {
			switch e := p.s.Consume(); e {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case '0':
				c = 0
			case '\'', '\\':
				c = e
			default:
				p.s.Restore(cp, fmt.Sprintf("unknown escape sequence: \\%c", e))
				return nil
			}
		}
		if !p.s.Expect('\'', cp) {
			return nil
		}
		v := int(c)
		if negative {
			v = -v
		}
		return ast.NewNumber(pos, v)
	}

	v, digits := 0, 0
	for c := p.s.Peek(); c >= '0' && c <= '9'; c = p.s.Peek() {
		v = v*10 + int(p.s.Consume()-'0')
		digits++
		if digits > 6 {
			p.s.Restore(cp, fmt.Sprintf("integer literal is out of bounds: %d", v))
			return nil
		}
	}
	if digits == 0 {
		p.s.Restore(cp, "invalid integer literal")
		return nil
	}
	if negative {
		v = -v
	}
	if v < -32768 || v > 65535 {
		p.s.Restore(cp, fmt.Sprintf("integer literal is out of bounds: %d", v))
		return nil
	}
	return ast.NewNumber(pos, v)
}

// deref reads `*var`, `*(expression)` or a nested `**...`.
func (p *Parser) deref() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.s.Expect('*', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	var addr *ast.Node
	switch p.s.Peek() {
	case '(':
		addr = p.paren()
	case '*':
		addr = p.deref()
	default:
		addr = p.variable()
	}
	if addr == nil {
		p.s.Restore(cp, "invalid dereference operand")
		return nil
	}
	n, err := ast.NewDeref(pos, addr)
	if err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	return n
}

// reference reads `&var`, `&a[i]` or `&*...`.
func (p *Parser) reference() *ast.Node {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	if !p.s.Expect('&', cp) {
		return nil
	}
	p.s.SkipWhitespace()
	var target *ast.Node
	if p.s.Peek() == '*' {
		target = p.deref()
	} else if target = p.arrayAccess(); target == nil {
		target = p.variable()
	}
	if target == nil {
		p.s.Restore(cp, "can't take the address of expression")
		return nil
	}
	n, err := ast.NewReference(pos, target)
	if err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	return n
}
