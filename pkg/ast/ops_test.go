package ast

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/cbc/pkg/token"
	"github.com/xplshn/cbc/pkg/types"
)

var pos = token.Pos{}

func lit(v int) *Node { return NewNumber(pos, v) }

func TestNumberTyping(t *testing.T) {
	be.Equal(t, lit(255).Typ, types.Byte)
	be.Equal(t, lit(256).Typ, types.Int)
	neg := lit(-1)
	be.Equal(t, neg.Typ, types.Int)
	be.Equal(t, neg.Value, 0xFFFF)
}

func TestFoldingWraps(t *testing.T) {
	n, err := NewBinary(pos, token.Add, lit(200), lit(100))
	be.Err(t, err, nil)
	be.Equal(t, n.Type, Literal)
	be.Equal(t, n.Typ, types.Byte)
	be.Equal(t, n.Value, 44)

	n, err = NewBinary(pos, token.Subtract, lit(0), lit(1000))
	be.Err(t, err, nil)
	be.Equal(t, n.Typ, types.Int)
	be.Equal(t, n.Value, 65536-1000)
}

func TestFoldingNested(t *testing.T) {
	// (2 + 3) * (10 << 2) % 7
	sum, _ := NewBinary(pos, token.Add, lit(2), lit(3))
	shl, _ := NewBinary(pos, token.ShiftLeft, lit(10), lit(2))
	mul, _ := NewBinary(pos, token.Multiply, sum, shl)
	mod, err := NewBinary(pos, token.Modulo, mul, lit(7))
	be.Err(t, err, nil)
	be.True(t, mod.Const)
	be.Equal(t, mod.Value, (5*40)%256%7)
}

func TestFoldingCompare(t *testing.T) {
	n, err := NewBinary(pos, token.Less, lit(1), lit(2))
	be.Err(t, err, nil)
	be.Equal(t, n.Typ, types.Flags)
	be.True(t, n.Const)
	be.Equal(t, n.Value, 1)
}

func TestDivisionByZero(t *testing.T) {
	_, err := NewBinary(pos, token.Divide, lit(1), lit(0))
	be.Err(t, err, ErrDivideByZero)
}

func TestPromotion(t *testing.T) {
	b := NewVariable(pos, "b", types.Byte, -2)
	i := NewVariable(pos, "i", types.Int, -4)
	n, err := NewBinary(pos, token.Add, b, i)
	be.Err(t, err, nil)
	be.Equal(t, n.Typ, types.Int)
	d := n.Data.(BinaryOpNode)
	be.Equal(t, d.Left.Type, TypeCast)
	be.Equal(t, d.Left.Typ, types.Int)
	be.True(t, d.Left.UsesRegisters)
	be.Equal(t, d.Right, i)
}

func TestAssign(t *testing.T) {
	b := NewVariable(pos, "b", types.Byte, -2)
	_, err := NewBinary(pos, token.Assign, b, lit(300))
	be.Err(t, err, "can't assign byte and int")

	_, err = NewBinary(pos, token.Assign, lit(1), lit(2))
	be.Err(t, err, ErrNotWritable)

	i := NewVariable(pos, "i", types.Int, -4)
	n, err := NewBinary(pos, token.Assign, i, b)
	be.Err(t, err, nil)
	be.Equal(t, n.String(), "(i = (int)b)")

	x := NewVariable(pos, "x", types.Int, -6)
	n, err = NewBinary(pos, token.Assign, x, i)
	be.Err(t, err, nil)
	be.True(t, !x.UsesRegisters && !i.UsesRegisters)
	be.True(t, n.UsesRegisters)
}

func TestShiftNeedsConstant(t *testing.T) {
	i := NewVariable(pos, "i", types.Int, -2)
	_, err := NewBinary(pos, token.ShiftLeft, lit(1), i)
	be.Err(t, err, ErrShiftOperand)
}

func TestTypeErrors(t *testing.T) {
	p := NewVariable(pos, "p", types.New("int", 1), -2)
	_, err := NewBinary(pos, token.Multiply, p, lit(2))
	be.Err(t, err, "can't multiply types int* and byte")
	cmp, _ := NewBinary(pos, token.Less, lit(1), lit(2))
	_, err = NewBinary(pos, token.Equal, cmp, cmp)
	be.Err(t, err, "can't equal types flags and flags")
}

func TestPointerScaling(t *testing.T) {
	p := NewVariable(pos, "p", types.New("int", 1), 4)
	i := NewVariable(pos, "i", types.Byte, -2)

	n, err := NewBinary(pos, token.Add, i, p)
	be.Err(t, err, nil)
	be.Equal(t, n.Typ, types.New("int", 1))
	be.Equal(t, n.String(), "(p + ((int)i * 2))")

	n, err = Builder{ShiftScaling: true}.Binary(pos, token.Add, p, i)
	be.Err(t, err, nil)
	be.Equal(t, n.String(), "(p + ((int)i << 1))")
}

func TestIndexDisplacement(t *testing.T) {
	a := NewVariable(pos, "a", types.New("int", 1), -2)
	n, err := Builder{}.Index(pos, a, lit(3))
	be.Err(t, err, nil)
	d := n.Data.(DerefNode)
	be.Equal(t, d.Addr, a)
	be.Equal(t, d.Disp, 6)
	be.Equal(t, n.Typ, types.Int)
	be.True(t, n.Writable)
}

func TestReferenceOfDeref(t *testing.T) {
	p := NewVariable(pos, "p", types.New("byte", 1), -2)
	d, err := NewDeref(pos, p)
	be.Err(t, err, nil)
	r, err := NewReference(pos, d)
	be.Err(t, err, nil)
	be.Equal(t, r, p)

	_, err = NewDeref(pos, lit(3))
	be.Err(t, err, "can't dereference non-pointer type byte")
}

func TestCall(t *testing.T) {
	fn := &Function{Name: "add", Return: types.Int, Params: []Param{{"a", types.Int}, {"b", types.Int}}}
	_, err := NewCall(pos, fn, []*Node{lit(1)})
	be.Err(t, err, ErrArgumentCount)

	p := NewVariable(pos, "p", types.New("int", 1), -2)
	_, err = NewCall(pos, fn, []*Node{lit(1), p})
	be.Err(t, err, "can't implicitly cast int* to int")

	n, err := NewCall(pos, fn, []*Node{lit(2), lit(3)})
	be.Err(t, err, nil)
	be.Equal(t, n.Typ, types.Int)
	be.Equal(t, n.String(), "add(2, 3)")
}

func TestTerminates(t *testing.T) {
	ret := NewReturn(pos, nil, 0)
	be.True(t, Terminates(ret))
	be.True(t, Terminates(NewBlock(pos, []*Node{NewBreak(pos, 0), ret}, 0)))
	be.True(t, !Terminates(NewIf(pos, lit(1), ret, nil)))
	be.True(t, Terminates(NewIf(pos, lit(1), ret, ret)))
	be.True(t, !Terminates(nil))
}
