package ast

import (
	"errors"
	"fmt"

	"github.com/xplshn/cbc/pkg/token"
	"github.com/xplshn/cbc/pkg/types"
	"modernc.org/mathutil"
)

var (
	ErrShiftOperand  = errors.New("second operand of shift operation must be constant")
	ErrNotWritable   = errors.New("cannot assign to a non-writable expression")
	ErrDivideByZero  = errors.New("division by zero in constant expression")
	ErrArgumentCount = errors.New("mismatched call parameter count")
)

// Builder constructs checked nodes. ShiftScaling scales pointer offsets
// with shl instead of mul when the element size is a power of two.
type Builder struct {
	ShiftScaling bool
}

// NewBinary builds a binary operation with multiply scaling.
func NewBinary(pos token.Pos, op token.Op, l, r *Node) (*Node, error) {
	return Builder{}.Binary(pos, op, l, r)
}

// Binary checks operand types, inserts implicit casts and folds constant
// operand pairs into a literal.
func (b Builder) Binary(pos token.Pos, op token.Op, l, r *Node) (*Node, error) {
	switch {
	case op == token.Assign:
		return assign(pos, l, r)
	case op == token.ShiftLeft || op == token.ShiftRight:
		return shift(pos, op, l, r)
	case op.IsComparison():
		return compare(pos, op, l, r)
	case op == token.Add && r.Typ.IsPointer() && l.Typ.IsArithmetic():
		return b.pointerArith(pos, op, r, l)
	case (op == token.Add || op == token.Subtract) && l.Typ.IsPointer() && r.Typ.IsArithmetic():
		return b.pointerArith(pos, op, l, r)
	}
	return arith(pos, op, l, r)
}

func typeError(op token.Op, l, r *Node) error {
	return fmt.Errorf("can't %s types %s and %s", op.Name(), l.Typ, r.Typ)
}

func binary(pos token.Pos, op token.Op, l, r *Node, typ types.Type) *Node {
	n := newNode(pos, BinaryOp, BinaryOpNode{Op: op, Left: l, Right: r})
	n.Typ = typ
	n.UsesRegisters = true
	return n
}

func assign(pos token.Pos, l, r *Node) (*Node, error) {
	if !l.Writable {
		return nil, ErrNotWritable
	}
	if l.Typ != r.Typ {
		if !r.Typ.CanImplicitlyCast(l.Typ) {
			return nil, fmt.Errorf("can't assign %s and %s", l.Typ, r.Typ)
		}
		r = Convert(r, l.Typ)
	}
	// Stores between two memory operands go through the accumulator.
	return binary(pos, token.Assign, l, r, l.Typ), nil
}

func shift(pos token.Pos, op token.Op, l, r *Node) (*Node, error) {
	if !r.Const {
		return nil, ErrShiftOperand
	}
	if !l.Typ.IsArithmetic() || !r.Typ.IsArithmetic() {
		return nil, typeError(op, l, r)
	}
	if l.Const {
		v := l.Value << r.Value
		if op == token.ShiftRight {
			v = l.Value >> r.Value
		}
		return NewLiteral(pos, v, l.Typ), nil
	}
	return binary(pos, op, l, r, l.Typ), nil
}

func compare(pos token.Pos, op token.Op, l, r *Node) (*Node, error) {
	for _, side := range []**Node{&l, &r} {
		n := *side
		if !n.Typ.IsArithmetic() && n.Typ.CanCast(types.Int) {
			*side = Convert(n, types.Int)
		}
	}
	if !l.Typ.IsArithmetic() || !r.Typ.IsArithmetic() {
		return nil, typeError(op, l, r)
	}
	t := types.Promote(l.Typ, r.Typ)
	l, r = Convert(l, t), Convert(r, t)
	if l.Const && r.Const {
		n := NewLiteral(pos, 0, types.Flags)
		if evalCompare(op, l.Value, r.Value) {
			n.Value = 1
		}
		return n, nil
	}
	return binary(pos, op, l, r, types.Flags), nil
}

func evalCompare(op token.Op, a, b int) bool {
	switch op {
	case token.Less: return a < b
	case token.Greater: return a > b
	case token.GreaterEqual: return a >= b
	case token.LessEqual: return a <= b
	case token.NotEqual: return a != b
	case token.Equal: return a == b
	}
	return false
}

func arith(pos token.Pos, op token.Op, l, r *Node) (*Node, error) {
	if !l.Typ.IsArithmetic() || !r.Typ.IsArithmetic() {
		return nil, typeError(op, l, r)
	}
	t := types.Promote(l.Typ, r.Typ)
	l, r = Convert(l, t), Convert(r, t)
	if l.Const && r.Const {
		v, err := eval(op, l.Value, r.Value)
		if err != nil {
			return nil, err
		}
		return NewLiteral(pos, v, t), nil
	}
	return binary(pos, op, l, r, t), nil
}

func eval(op token.Op, a, b int) (int, error) {
	switch op {
	case token.Add: return a + b, nil
	case token.Subtract: return a - b, nil
	case token.Multiply: return a * b, nil
	case token.Or: return a | b, nil
	case token.And: return a & b, nil
	case token.Xor: return a ^ b, nil
	case token.Divide, token.Modulo:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		if op == token.Divide {
			return a / b, nil
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("can't %s constants", op.Name())
}

// pointerArith handles ptr+n, n+ptr and ptr-n. The pointer is always the
// left operand of the resulting node.
func (b Builder) pointerArith(pos token.Pos, op token.Op, ptr, n *Node) (*Node, error) {
	n = Convert(n, types.Int)
	n, err := b.scale(pos, n, ptr.Typ.Deref().Size())
	if err != nil {
		return nil, err
	}
	if ptr.Const && n.Const {
		v, _ := eval(op, ptr.Value, n.Value)
		return NewLiteral(pos, v, ptr.Typ), nil
	}
	return binary(pos, op, ptr, n, ptr.Typ), nil
}

func (b Builder) scale(pos token.Pos, n *Node, size int) (*Node, error) {
	if size == 1 {
		return n, nil
	}
	if b.ShiftScaling && size&(size-1) == 0 {
		bits := mathutil.BitLenUint16(uint16(size)) - 1
		return shift(pos, token.ShiftLeft, n, NewLiteral(pos, bits, types.Byte))
	}
	return arith(pos, token.Multiply, n, NewLiteral(pos, size, types.Int))
}

// Convert inserts an implicit cast. The caller has checked that the cast
// is legal.
func Convert(n *Node, to types.Type) *Node {
	if n.Typ == to {
		return n
	}
	if n.Const {
		return NewLiteral(n.Pos, n.Value, to)
	}
	c := newNode(n.Pos, TypeCast, TypeCastNode{Expr: n})
	c.Typ = to
	c.UsesRegisters = n.UsesRegisters || to.Size() > n.Typ.Size()
	return c
}

// NewCast builds an explicit cast.
func NewCast(pos token.Pos, n *Node, to types.Type) (*Node, error) {
	if !n.Typ.CanCast(to) {
		return nil, fmt.Errorf("can't cast %s to %s", n.Typ, to)
	}
	return Convert(n, to), nil
}

// NewImplicit converts n to to, failing when no implicit cast exists.
func NewImplicit(n *Node, to types.Type) (*Node, error) {
	if !n.Typ.CanImplicitlyCast(to) {
		return nil, fmt.Errorf("can't implicitly cast %s to %s", n.Typ, to)
	}
	return Convert(n, to), nil
}

// NewDeref dereferences addr. Constant offsets from a pointer collapse
// into a displacement.
func NewDeref(pos token.Pos, addr *Node) (*Node, error) {
	if !addr.Typ.IsPointer() {
		return nil, fmt.Errorf("can't dereference non-pointer type %s", addr.Typ)
	}
	if addr.Typ.Deref() == types.Void {
		return nil, fmt.Errorf("can't dereference %s", addr.Typ)
	}
	data := DerefNode{Addr: addr}
	if b, ok := addr.Data.(BinaryOpNode); ok && b.Right.Const && !b.Left.Const {
		switch b.Op {
		case token.Add:
			data = DerefNode{Addr: b.Left, Disp: b.Right.Value}
		case token.Subtract:
			data = DerefNode{Addr: b.Left, Disp: -b.Right.Value}
		}
	}
	n := newNode(pos, Deref, data)
	n.Typ = addr.Typ.Deref()
	n.Writable = true
	n.UsesRegisters = true
	return n, nil
}

// NewIndex builds base[index] as *(base + index).
func (b Builder) Index(pos token.Pos, base, index *Node) (*Node, error) {
	if !base.Typ.IsPointer() {
		return nil, fmt.Errorf("can't index non-pointer type %s", base.Typ)
	}
	if !index.Typ.IsArithmetic() {
		return nil, fmt.Errorf("can't index with type %s", index.Typ)
	}
	addr, err := b.pointerArith(pos, token.Add, base, index)
	if err != nil {
		return nil, err
	}
	return NewDeref(pos, addr)
}

func NewIncrement(pos token.Pos, n *Node, decrement bool) (*Node, error) {
	if !n.Writable {
		return nil, fmt.Errorf("can't increment a non-writable expression")
	}
	if !n.Typ.IsArithmetic() && !n.Typ.IsPointer() {
		return nil, fmt.Errorf("can't increment type %s", n.Typ)
	}
	inc := newNode(pos, Increment, IncrementNode{Expr: n, Decrement: decrement})
	inc.Typ = n.Typ
	inc.Writable = true
	inc.UsesRegisters = n.UsesRegisters
	return inc, nil
}

// NewReference takes the address of a variable or a dereference. &*p is p.
func NewReference(pos token.Pos, n *Node) (*Node, error) {
	switch d := n.Data.(type) {
	case DerefNode:
		if d.Disp == 0 {
			return d.Addr, nil
		}
	case VariableNode:
	default:
		return nil, fmt.Errorf("can't take the address of %s", n)
	}
	ref := newNode(pos, Reference, ReferenceNode{Expr: n})
	ref.Typ = n.Typ.Ref()
	ref.UsesRegisters = true
	return ref, nil
}

// NewCall checks args against the parameters of fn.
func NewCall(pos token.Pos, fn *Function, args []*Node) (*Node, error) {
	if len(args) != len(fn.Params) {
		return nil, ErrArgumentCount
	}
	converted := make([]*Node, len(args))
	for i, arg := range args {
		c, err := NewImplicit(arg, fn.Params[i].Type)
		if err != nil {
			return nil, err
		}
		converted[i] = c
	}
	n := newNode(pos, Call, CallNode{Name: fn.Name, Args: converted})
	n.Typ = fn.Return
	n.UsesRegisters = true
	return n, nil
}
