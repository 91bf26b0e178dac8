package token

import "strings"

// Op is a binary operator. The tens digit of the code is its precedence tier.
type Op int

const (
	Unknown Op = 0

	Assign Op = 10

	Less         Op = 20
	Greater      Op = 21
	GreaterEqual Op = 22
	LessEqual    Op = 23
	NotEqual     Op = 24
	Equal        Op = 25

	ShiftLeft  Op = 40
	ShiftRight Op = 41
	Or         Op = 42
	And        Op = 43
	Xor        Op = 44

	Add      Op = 60
	Subtract Op = 61

	Multiply Op = 80
	Divide   Op = 81
	Modulo   Op = 82
)

type opInfo struct {
	Symbol string
	Name   string
}

var opTable = map[Op]opInfo{
	Assign:       {"=", "assign"},
	Less:         {"<", "less"},
	Greater:      {">", "greater"},
	GreaterEqual: {">=", "greaterequal"},
	LessEqual:    {"<=", "lessequal"},
	NotEqual:     {"!=", "notequal"},
	Equal:        {"==", "equal"},
	ShiftLeft:    {"<<", "shiftleft"},
	ShiftRight:   {">>", "shiftright"},
	Or:           {"|", "or"},
	And:          {"&", "and"},
	Xor:          {"^", "xor"},
	Add:          {"+", "add"},
	Subtract:     {"-", "subtract"},
	Multiply:     {"*", "multiply"},
	Divide:       {"/", "divide"},
	Modulo:       {"%", "modulo"},
}

// Tier returns the precedence tier, higher binds tighter.
func (o Op) Tier() int { return int(o) / 10 }

// String returns the source spelling of the operator.
func (o Op) String() string {
	if info, ok := opTable[o]; ok {
		return info.Symbol
	}
	return "unknown_op"
}

// Name returns the lower-case operator name used in diagnostics.
func (o Op) Name() string {
	if info, ok := opTable[o]; ok {
		return info.Name
	}
	return "unknown"
}

func (o Op) IsComparison() bool { return o.Tier() == 2 }

// HasPrecedence reports whether the operator on top of the stack must be
// reduced before the incoming one is pushed. Chained assignments never
// reduce, which makes them right-associative.
func HasPrecedence(top, incoming Op) bool {
	if top == Assign && incoming == Assign {
		return false
	}
	return top.Tier() >= incoming.Tier()
}

// Reserved words that can never be used as identifiers.
var Keywords = map[string]bool{
	"int":      true,
	"byte":     true,
	"void":     true,
	"for":      true,
	"while":    true,
	"if":       true,
	"else":     true,
	"return":   true,
	"sizeof":   true,
	"__asm":    true,
	"break":    true,
	"continue": true,
	"null":     true,
}

// IsReserved reports whether name is a keyword. Names are case-insensitive.
func IsReserved(name string) bool { return Keywords[strings.ToLower(name)] }

// Pos is a location in the preprocessed line stream, both fields zero based.
type Pos struct {
	Line   int
	Column int
}

// Before orders positions by line, then column.
func (p Pos) Before(o Pos) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}
