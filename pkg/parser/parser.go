// Package parser reads Cb source into a typed program. Each rule tries its
// alternatives in order and rewinds the scanner and the environment when
// one of them fails, so there is no separate tokenizer or checking pass.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/scanner"
	"github.com/xplshn/cbc/pkg/symbols"
	"github.com/xplshn/cbc/pkg/token"
	"github.com/xplshn/cbc/pkg/types"
	"github.com/xplshn/cbc/pkg/util"
)

// loopFrame marks where the variables of a loop body start.
type loopFrame struct {
	depth int
}

// context is passed by value to statement rules. A loop hands its body a
// copy with a fresh frame, so the outer frame is back once the body is read.
type context struct {
	fn   *ast.Function
	loop *loopFrame
}

// Parser holds the state for the parsing process
type Parser struct {
	s     *scanner.Scanner
	env   *symbols.Env
	cfg   *config.Config
	build ast.Builder

	warnings []*util.Diagnostic
	warned   map[string]bool
}

// NewParser creates a parser over preprocessed lines. origins[i] names the
// source of lines[i].
func NewParser(lines, origins []string, cfg *config.Config) *Parser {
	env := symbols.New()
	return &Parser{
		s:      scanner.New(lines, origins, env),
		env:    env,
		cfg:    cfg,
		build:  ast.Builder{ShiftScaling: cfg.IsFeatureEnabled(config.FeatShlScaling)},
		warned: make(map[string]bool),
	}
}

// Warnings returns the warnings found by Parse.
func (p *Parser) Warnings() []*util.Diagnostic { return p.warnings }

// Parse reads function definitions until the end of input. The error is the
// furthest failure any alternative reached.
func (p *Parser) Parse() (*ast.Program, error) {
	p.s.SkipWhitespace()
	for p.s.Peek() != scanner.EOF {
		if p.function() == nil {
			if d := p.s.Err(); d != nil {
				return nil, d
			}
			return nil, p.s.DiagnosticAt(p.s.Pos(), "invalid function definition")
		}
		p.s.SkipWhitespace()
	}
	fns := append([]*ast.Function(nil), p.env.Functions()...)
	return &ast.Program{Functions: fns}, nil
}

func (p *Parser) warn(wt config.Warning, pos token.Pos, msg string) {
	if !p.cfg.IsWarningEnabled(wt) {
		return
	}
	// Backtracking can read the same construct more than once.
	key := fmt.Sprintf("%d:%d:%s", pos.Line, pos.Column, msg)
	if p.warned[key] {
		return
	}
	p.warned[key] = true
	d := p.s.DiagnosticAt(pos, msg)
	d.Severity = util.SeverityWarning
	d.Flag = p.cfg.WarningFlag(wt)
	p.warnings = append(p.warnings, d)
}

// Parser helpers

func isNameChar(c rune) bool { return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c) }

// keyword consumes word unless it is only the prefix of a longer name.
func (p *Parser) keyword(word string, cp scanner.Checkpoint) bool {
	if !p.s.ExpectString(word, cp) {
		return false
	}
	if isNameChar(p.s.Peek()) {
		p.s.Restore(cp, "")
		return false
	}
	return true
}

// name reads an identifier. Names are case-insensitive and kept lowercase.
func (p *Parser) name(cp scanner.Checkpoint, what string) (string, bool) {
	word := strings.ToLower(p.s.Word())
	if word == "" || token.IsReserved(word) {
		p.s.Restore(cp, "invalid "+what)
		return "", false
	}
	return word, true
}

// dataType reads a defined type name followed by any number of '*'.
func (p *Parser) dataType() (types.Type, bool) {
	cp := p.s.Checkpoint()
	word := p.s.Word()
	if word == "" {
		p.s.Restore(cp, "invalid name")
		return types.Type{}, false
	}
	base, ok := p.env.LookupType(word)
	if !ok {
		p.s.Restore(cp, "undefined type: "+strings.ToLower(word))
		return types.Type{}, false
	}
	p.s.SkipWhitespace()
	depth := 0
	for p.s.TestNext('*') {
		depth++
		p.s.SkipWhitespace()
	}
	return types.New(base.Name, depth), true
}

// checkNewName rejects a variable name that is already visible in the
// current function or names a function.
func (p *Parser) checkNewName(name string, cp scanner.Checkpoint) bool {
	if _, _, found := p.env.FindVariable(name); found {
		p.s.Restore(cp, "variable is already defined: "+name)
		return false
	}
	if p.env.FindFunction(name) != nil {
		p.s.Restore(cp, "function with this name is already defined: "+name)
		return false
	}
	return true
}

// Function Parsing

func (p *Parser) function() *ast.Function {
	cp := p.s.Checkpoint()
	pos := p.s.Pos()
	ret, ok := p.dataType()
	if !ok {
		p.s.Restore(cp, "invalid type")
		return nil
	}
	name, ok := p.name(cp, "name")
	if !ok {
		return nil
	}
	if name == "test" {
		p.s.Restore(cp, "invalid name")
		return nil
	}

	p.env.EnterFunction()
	p.s.SkipWhitespace()
	params, named, ok := p.params(cp)
	if !ok {
		return nil
	}
	fn := &ast.Function{Name: name, Return: ret, Params: params, Pos: pos}
	p.s.SkipWhitespace()

	if p.s.TestNext(';') {
		if err := p.env.AddFunction(fn); err != nil {
			p.s.Restore(cp, err.Error())
			return nil
		}
		p.env.ExitFunction()
		return fn
	}

	if !named {
		p.s.Restore(cp, "function implementation can't skip parameter names")
		return nil
	}
	// Registered before the body so that it can call itself.
	if err := p.env.AddFunction(fn); err != nil {
		p.s.Restore(cp, err.Error())
		return nil
	}
	for _, prm := range params {
		p.env.DefineVariable(prm.Name, prm.Type)
	}
	p.env.EnterFrame()

	body := p.block(context{fn: fn})
	if body == nil {
		p.s.Restore(cp, "invalid function body")
		return nil
	}
	p.env.ExitFunction()
	fn.Body = body
	fn.Calls = ast.CallNames(body)
	return fn
}

// params reads a parenthesized parameter list. named is false when any
// parameter omits its name, which only declarations may do.
func (p *Parser) params(cp scanner.Checkpoint) (params []ast.Param, named bool, ok bool) {
	if !p.s.Expect('(', cp) {
		return nil, false, false
	}
	named = true
	seen := make(map[string]bool)
	for {
		p.s.SkipWhitespace()
		if p.s.TestNext(')') {
			return params, named, true
		}
		typ, ok := p.dataType()
		if !ok {
			p.s.Restore(cp, "invalid type")
			return nil, false, false
		}
		if typ == types.Void {
			p.s.Restore(cp, "can't define variables of void type")
			return nil, false, false
		}
		var name string
		if c := p.s.Peek(); c != ',' && c != ')' {
			if name, ok = p.name(cp, "parameter name"); !ok {
				return nil, false, false
			}
			if seen[name] {
				p.s.Restore(cp, "variable is already defined: "+name)
				return nil, false, false
			}
			seen[name] = true
			p.s.SkipWhitespace()
		} else {
			named = false
		}
		params = append(params, ast.Param{Name: name, Type: typ})
		if p.s.TestNext(',') {
			continue
		}
		if c := p.s.Peek(); c != ')' {
			p.s.Restore(cp, fmt.Sprintf("expected: ',' or ')', got: '%c'", c))
			return nil, false, false
		}
	}
}
