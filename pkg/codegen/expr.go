package codegen

import (
	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/token"
	"github.com/xplshn/cbc/pkg/types"
)

// codegenExpr emits the instructions of an expression and returns where
// its value ends up. Constant nodes emit nothing.
func (ctx *Context) codegenExpr(node *ast.Node) Storage {
	if node.Const {
		return imm(node.Typ.Mask(node.Value))
	}
	switch d := node.Data.(type) {
	case ast.VariableNode:
		return stack(bpOperand(node.Typ.Size(), d.Offset))
	case ast.DerefNode:
		return ctx.codegenDeref(node, d)
	case ast.IncrementNode:
		return ctx.codegenIncrement(d)
	case ast.ReferenceNode:
		return ctx.codegenReference(d)
	case ast.TypeCastNode:
		return ctx.codegenTypeCast(node, d)
	case ast.CallNode:
		return ctx.codegenCall(node, d)
	case ast.BinaryOpNode:
		return ctx.codegenBinaryOp(d)
	}
	return ctx.fail("unexpected expression %s", node)
}

func (ctx *Context) codegenBinaryOp(d ast.BinaryOpNode) Storage {
	switch op := d.Op; {
	case op == token.Assign:
		return ctx.codegenAssign(d)
	case op.IsComparison():
		return ctx.codegenCompare(d)
	case op == token.ShiftLeft || op == token.ShiftRight:
		return ctx.codegenShift(d)
	case op == token.Multiply || op == token.Divide || op == token.Modulo:
		return ctx.codegenMulDiv(d)
	default:
		if m, ok := mnemonics[op]; ok {
			return ctx.codegenClass1(d, m)
		}
	}
	return ctx.fail("unexpected operator %s", d.Op)
}

// codegenDeref loads the address into bx unless it is a constant.
func (ctx *Context) codegenDeref(node *ast.Node, d ast.DerefNode) Storage {
	size := node.Typ.Size()
	addr := ctx.codegenExpr(d.Addr)
	switch addr.Kind {
	case StorageImmediate:
		return data(dsOperand(size, addr.Value, d.Disp))
	case StorageStack, StorageData:
		ctx.emit("mov bx, %s", addr)
	case StorageRegister:
		if addr.Value != "bx" {
			ctx.emit("mov bx, %s", addr)
		}
	default:
		return ctx.fail("can't dereference %s storage", addr.Kind)
	}
	return data(dsOperand(size, "bx", d.Disp))
}

// codegenIncrement changes the operand in place. Pointers to wider types
// step by the pointee size.
func (ctx *Context) codegenIncrement(d ast.IncrementNode) Storage {
	inner := ctx.codegenExpr(d.Expr)
	typ := d.Expr.Typ
	if !typ.IsPointer() || typ.Deref().Size() == 1 {
		if d.Decrement {
			ctx.emit("dec %s", inner)
		} else {
			ctx.emit("inc %s", inner)
		}
		return inner
	}
	if d.Decrement {
		ctx.emit("sub %s, %d", inner, typ.Deref().Size())
	} else {
		ctx.emit("add %s, %d", inner, typ.Deref().Size())
	}
	return inner
}

// codegenReference computes an address in dx.
func (ctx *Context) codegenReference(d ast.ReferenceNode) Storage {
	switch e := d.Expr.Data.(type) {
	case ast.VariableNode:
		ctx.emit("mov dx, bp")
		if e.Offset > 0 {
			ctx.emit("add dx, %d", e.Offset)
		} else if e.Offset < 0 {
			ctx.emit("sub dx, %d", -e.Offset)
		}
		return reg("dx")
	case ast.DerefNode:
		if e.Addr.Const {
			return imm(types.Int.Mask(e.Addr.Value + e.Disp))
		}
		addr := ctx.codegenExpr(e.Addr)
		if addr.Value != "dx" {
			ctx.emit("mov dx, %s", addr)
		}
		if e.Disp > 0 {
			ctx.emit("add dx, %d", e.Disp)
		} else if e.Disp < 0 {
			ctx.emit("sub dx, %d", -e.Disp)
		}
		return reg("dx")
	}
	return ctx.fail("can't take the address of %s", d.Expr)
}

func (ctx *Context) codegenTypeCast(node *ast.Node, d ast.TypeCastNode) Storage {
	from, to := d.Expr.Typ.Size(), node.Typ.Size()
	inner := ctx.codegenExpr(d.Expr)
	switch {
	case from == to:
		return inner
	case from > to:
		return toByte(inner)
	}
	switch inner.Kind {
	case StorageStack, StorageData:
		ctx.emit("mov al, %s", inner)
		ctx.emit("mov ah, 0")
		return reg("ax")
	case StorageRegister:
		if inner.Value == "ah" {
			ctx.emit("mov al, ah")
			ctx.emit("mov ah, 0")
			return reg("ax")
		}
		ctx.emit("mov %s, 0", highHalf(inner.Value))
		return reg(fullReg(inner.Value))
	}
	return ctx.fail("can't widen %s storage", inner.Kind)
}

// placeOnStack pushes a value as one 2 byte slot.
func (ctx *Context) placeOnStack(s Storage, size int) {
	switch s.Kind {
	case StorageStack, StorageData:
		if size == 1 {
			ctx.emit("mov al, %s", s)
		} else {
			ctx.emit("mov ax, %s", s)
		}
		ctx.emit("push ax")
	case StorageRegister:
		if s.Value == "ah" {
			ctx.emit("mov al, ah")
			ctx.emit("push ax")
			return
		}
		ctx.emit("push %s", fullReg(s.Value))
	case StorageImmediate:
		ctx.emit("push %s", s)
	default:
		ctx.fail("can't push %s storage", s.Kind)
	}
}

// codegenCall pushes the arguments left to right. The callee pops them.
func (ctx *Context) codegenCall(node *ast.Node, d ast.CallNode) Storage {
	for _, arg := range d.Args {
		ctx.placeOnStack(ctx.codegenExpr(arg), arg.Typ.Size())
	}
	ctx.emit("call %s", d.Name)
	switch {
	case node.Typ.Size() == 1:
		return reg("al")
	case node.Typ == types.Void:
		return none
	}
	return reg("ax")
}
