// Package ast defines the typed tree produced by the parser. Nodes are
// checked and folded when they are constructed, so every node that exists
// is well typed.
package ast

import (
	"github.com/xplshn/cbc/pkg/token"
	"github.com/xplshn/cbc/pkg/types"
)

// NodeType defines the kind of a node
type NodeType int

const (
	// Expressions
	Literal NodeType = iota
	Variable
	Deref
	Increment
	Reference
	TypeCast
	Call
	BinaryOp

	// Statements
	Break
	Continue
	Asm
	If
	For
	While
	Return
	VarDecl
	Block
	ExprStmt
)

// Node is a single expression or statement.
type Node struct {
	Type NodeType
	Pos  token.Pos
	Data interface{}

	// Expression attributes, zero for statements.
	Typ           types.Type
	Writable      bool
	Const         bool
	Value         int
	UsesRegisters bool
}

// IsExpr reports whether the node is an expression.
func (n *Node) IsExpr() bool { return n.Type <= BinaryOp }

// --- Node Data Structs ---
type LiteralNode struct{}
type VariableNode struct{ Name string; Offset int }
type DerefNode struct{ Addr *Node; Disp int }
type IncrementNode struct{ Expr *Node; Decrement bool }
type ReferenceNode struct{ Expr *Node }
type TypeCastNode struct{ Expr *Node }
type CallNode struct{ Name string; Args []*Node }
type BinaryOpNode struct{ Op token.Op; Left, Right *Node }

// BreakNode and ContinueNode carry the bytes of loop body locals live at
// the statement.
type BreakNode struct{ Cleanup int }
type ContinueNode struct{ Cleanup int }
type AsmNode struct{ Lines []string }
type IfNode struct{ Cond, Then, Else *Node }
type ForNode struct {
	Init, Cond, Post, Body *Node
	// Cleanup is the size of the variables declared by Init.
	Cleanup int
}
type WhileNode struct{ Cond, Body *Node }

// ReturnNode carries the size of every local live at the statement.
type ReturnNode struct{ Expr *Node; Cleanup int }
type VarDeclNode struct {
	Name    string
	VarType types.Type
	Init    *Node
	Offset  int

	// Arrays reserve Reserved bytes at StorageOffset and store their
	// address in the pointer slot at Offset.
	ArrayLen      int
	Reserved      int
	StorageOffset int
}
type BlockNode struct{ Stmts []*Node; Cleanup int }
type ExprStmtNode struct{ Expr *Node }

// Param is one function parameter. Name is empty for unnamed parameters
// of a declaration.
type Param struct {
	Name string
	Type types.Type
}

// Function is a declaration (Body == nil) or an implementation.
type Function struct {
	Name   string
	Return types.Type
	Params []Param
	Body   *Node
	Calls  []string
	Pos    token.Pos
}

func (f *Function) Implemented() bool { return f.Body != nil }

// ParamBytes is the stack space the callee pops on return.
func (f *Function) ParamBytes() int {
	n := 0
	for _, p := range f.Params {
		n += p.Type.PaddedSize()
	}
	return n
}

// SameParams reports whether g has the same parameter types as f.
func (f *Function) SameParams(g *Function) bool {
	if len(f.Params) != len(g.Params) {
		return false
	}
	for i := range f.Params {
		if f.Params[i].Type != g.Params[i].Type {
			return false
		}
	}
	return true
}

// Program is the parsed translation unit, functions in definition order.
type Program struct {
	Functions []*Function
}

// Lookup returns the function named name.
func (p *Program) Lookup(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// --- Node Constructors ---

func newNode(pos token.Pos, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Pos: pos, Data: data}
}

// NewLiteral returns a constant of type typ, wrapped to its width.
func NewLiteral(pos token.Pos, value int, typ types.Type) *Node {
	n := newNode(pos, Literal, LiteralNode{})
	n.Typ, n.Const, n.Value = typ, true, typ.Mask(value)
	return n
}

// NewNumber types a source literal: byte below 256, int otherwise.
func NewNumber(pos token.Pos, value int) *Node {
	if value >= 0 && value < 256 {
		return NewLiteral(pos, value, types.Byte)
	}
	return NewLiteral(pos, value, types.Int)
}

func NewNull(pos token.Pos) *Node { return NewLiteral(pos, 0, types.VoidPtr) }

func NewVariable(pos token.Pos, name string, typ types.Type, offset int) *Node {
	n := newNode(pos, Variable, VariableNode{Name: name, Offset: offset})
	n.Typ, n.Writable = typ, true
	return n
}

func NewBreak(pos token.Pos, cleanup int) *Node {
	return newNode(pos, Break, BreakNode{Cleanup: cleanup})
}
func NewContinue(pos token.Pos, cleanup int) *Node {
	return newNode(pos, Continue, ContinueNode{Cleanup: cleanup})
}
func NewAsm(pos token.Pos, lines []string) *Node {
	return newNode(pos, Asm, AsmNode{Lines: lines})
}
func NewIf(pos token.Pos, cond, then, els *Node) *Node {
	return newNode(pos, If, IfNode{Cond: cond, Then: then, Else: els})
}
func NewFor(pos token.Pos, init, cond, post, body *Node, cleanup int) *Node {
	return newNode(pos, For, ForNode{Init: init, Cond: cond, Post: post, Body: body, Cleanup: cleanup})
}
func NewWhile(pos token.Pos, cond, body *Node) *Node {
	return newNode(pos, While, WhileNode{Cond: cond, Body: body})
}
func NewReturn(pos token.Pos, expr *Node, cleanup int) *Node {
	return newNode(pos, Return, ReturnNode{Expr: expr, Cleanup: cleanup})
}
func NewVarDecl(pos token.Pos, name string, typ types.Type, init *Node, offset int) *Node {
	return newNode(pos, VarDecl, VarDeclNode{Name: name, VarType: typ, Init: init, Offset: offset})
}
func NewArrayDecl(pos token.Pos, name string, elem types.Type, length, reserved, storageOffset, offset int) *Node {
	return newNode(pos, VarDecl, VarDeclNode{
		Name: name, VarType: elem.Ref(), Offset: offset,
		ArrayLen: length, Reserved: reserved, StorageOffset: storageOffset,
	})
}
func NewBlock(pos token.Pos, stmts []*Node, cleanup int) *Node {
	return newNode(pos, Block, BlockNode{Stmts: stmts, Cleanup: cleanup})
}
func NewExprStmt(pos token.Pos, expr *Node) *Node {
	return newNode(pos, ExprStmt, ExprStmtNode{Expr: expr})
}

// Terminates reports whether control never falls off the end of a statement.
func Terminates(n *Node) bool {
	if n == nil {
		return false
	}
	switch d := n.Data.(type) {
	case ReturnNode:
		return true
	case BlockNode:
		for _, s := range d.Stmts {
			if Terminates(s) {
				return true
			}
		}
	case IfNode:
		return d.Else != nil && Terminates(d.Then) && Terminates(d.Else)
	}
	return false
}
