package codegen

import (
	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/token"
)

var mnemonics = map[token.Op]string{
	token.Add:      "add",
	token.Subtract: "sub",
	token.And:      "and",
	token.Or:       "or",
	token.Xor:      "xor",
}

// swappable operations may keep their result in the right operand's register.
func swappable(op token.Op) bool {
	return op == token.Add || op == token.And || op == token.Or || op == token.Xor
}

var jumps = map[token.Op]string{
	token.Equal:        "je",
	token.NotEqual:     "jne",
	token.Greater:      "ja",
	token.GreaterEqual: "jae",
	token.Less:         "jb",
	token.LessEqual:    "jbe",
}

// push saves s on the stack for the 8 or 16 bit protocol.
func (ctx *Context) push(w width, s Storage) {
	switch {
	case !w.isByte:
		ctx.emit("push %s", s)
	case s.Kind == StorageData:
		ctx.emit("mov al, %s", s)
		ctx.emit("push_byte al")
	default:
		ctx.emit("push_byte %s", s)
	}
}

func (ctx *Context) pop(w width, r string) {
	if w.isByte {
		ctx.emit("pop_byte %s", r)
		return
	}
	ctx.emit("pop %s", r)
}

// operands lowers both sides of a binary node. The left operand is saved on
// the stack when lowering the right one could clobber it.
func (ctx *Context) operands(d ast.BinaryOpNode) (left, right Storage, pushed bool, w width) {
	w = widthOf(d.Left.Typ.Size())
	left = ctx.codegenExpr(d.Left)
	if (left.Kind == StorageRegister || left.Kind == StorageData) && d.Right.UsesRegisters {
		ctx.push(w, left)
		pushed = true
	}
	right = ctx.codegenExpr(d.Right)
	return left, right, pushed, w
}

// codegenClass1 lowers the two-operand instructions: add, sub, and, or, xor
// and cmp.
func (ctx *Context) codegenClass1(d ast.BinaryOpNode, mnemonic string) Storage {
	left, right, pushed, w := ctx.operands(d)

	switch right.Kind {
	case StorageImmediate, StorageStack, StorageData:
		dst := w.a()
		switch {
		case pushed:
			ctx.pop(w, dst)
		case left.Kind == StorageRegister:
			dst = left.Value
		default:
			ctx.emit("mov %s, %s", dst, left)
		}
		ctx.emit("%s %s, %s", mnemonic, dst, right)
		return reg(dst)

	case StorageRegister:
		dst := w.other(right.Value)
		switch {
		case pushed:
			ctx.pop(w, dst)
		case left.Kind == StorageRegister:
			dst = left.Value
		case swappable(d.Op):
			ctx.emit("%s %s, %s", mnemonic, right, left)
			return right
		default:
			ctx.emit("mov %s, %s", dst, left)
		}
		ctx.emit("%s %s, %s", mnemonic, dst, right)
		return reg(dst)
	}
	return ctx.fail("can't use %s operand of %s", right.Kind, d.Op.Name())
}

// codegenCompare sets the flags and leaves no value.
func (ctx *Context) codegenCompare(d ast.BinaryOpNode) Storage {
	ctx.codegenClass1(d, "cmp")
	return none
}

// codegenShift lowers a shift by a constant count.
func (ctx *Context) codegenShift(d ast.BinaryOpNode) Storage {
	w := widthOf(d.Left.Typ.Size())
	left := ctx.codegenExpr(d.Left)
	right := ctx.codegenExpr(d.Right)
	if right.Kind != StorageImmediate {
		return ctx.fail("shift count is not constant")
	}
	if left.Value != w.a() {
		ctx.emit("mov %s, %s", w.a(), left)
	}
	if d.Op == token.ShiftLeft {
		ctx.emit("shl %s, %s", w.a(), right)
	} else {
		ctx.emit("shr %s, %s", w.a(), right)
	}
	return reg(w.a())
}

// codegenMulDiv lowers multiply, divide and modulo. The dividend goes to
// ax (al for bytes) and the other operand to cx unless it is in memory.
func (ctx *Context) codegenMulDiv(d ast.BinaryOpNode) Storage {
	left, right, pushed, w := ctx.operands(d)

	operand := right.Value
	switch right.Kind {
	case StorageImmediate, StorageRegister:
		if right.Value != w.c() {
			ctx.emit("mov %s, %s", w.c(), right)
		}
		operand = w.c()
	case StorageStack, StorageData:
	default:
		return ctx.fail("can't use %s operand of %s", right.Kind, d.Op.Name())
	}

	switch {
	case pushed:
		ctx.pop(w, w.a())
	case left.Value != w.a():
		ctx.emit("mov %s, %s", w.a(), left)
	}

	if d.Op == token.Multiply {
		ctx.emit("mul %s", operand)
		return reg(w.a())
	}
	if w.isByte {
		ctx.emit("mov ah, 0")
	} else {
		ctx.emit("mov dx, 0")
	}
	ctx.emit("div %s", operand)
	if d.Op == token.Modulo {
		if w.isByte {
			return reg("ah")
		}
		return reg("dx")
	}
	return reg(w.a())
}

// codegenAssign stores the right-hand side into the left one and yields
// the left-hand storage.
func (ctx *Context) codegenAssign(d ast.BinaryOpNode) Storage {
	w := widthOf(d.Left.Typ.Size())
	right := ctx.codegenExpr(d.Right)
	pushed := false
	if (right.Kind == StorageRegister || right.Kind == StorageData) && d.Left.UsesRegisters {
		ctx.push(w, right)
		pushed = true
	}
	left := ctx.codegenExpr(d.Left)

	switch {
	case pushed && w.isByte && left.Kind != StorageRegister:
		ctx.emit("pop_byte al")
		ctx.emit("mov %s, al", left)
	case pushed:
		ctx.pop(w, left.Value)
	case left.IsMemory() && right.IsMemory():
		ctx.emit("mov %s, %s", w.a(), right)
		ctx.emit("mov %s, %s", left, w.a())
	default:
		ctx.emit("mov %s, %s", left, right)
	}
	return left
}
