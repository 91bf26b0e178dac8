package ast

import (
	"fmt"
	"strings"
)

// String renders an expression the way it is echoed into assembly comments.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch d := n.Data.(type) {
	case LiteralNode:
		if n.Typ.IsPointer() && n.Value == 0 {
			return "NULL"
		}
		return fmt.Sprint(n.Value)
	case VariableNode:
		return d.Name
	case DerefNode:
		if d.Disp != 0 {
			return fmt.Sprintf("*(%s%+d)", d.Addr, d.Disp)
		}
		return "*" + d.Addr.String()
	case IncrementNode:
		if d.Decrement {
			return "--" + d.Expr.String()
		}
		return "++" + d.Expr.String()
	case ReferenceNode:
		return "&" + d.Expr.String()
	case TypeCastNode:
		return fmt.Sprintf("(%s)%s", n.Typ, d.Expr)
	case CallNode:
		args := make([]string, len(d.Args))
		for i, a := range d.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s(%s)", d.Name, strings.Join(args, ", "))
	case BinaryOpNode:
		return fmt.Sprintf("(%s %s %s)", d.Left, d.Op, d.Right)
	case BreakNode:
		return "break;"
	case ContinueNode:
		return "continue;"
	case AsmNode:
		return "__asm { ... }"
	case IfNode:
		return fmt.Sprintf("if (%s)", d.Cond)
	case ForNode:
		init := ""
		if d.Init != nil {
			init = strings.TrimPrefix(strings.TrimSuffix(d.Init.String(), ";"), "Variable: ")
		}
		return fmt.Sprintf("for (%s; %s; %s)", init, d.Cond, d.Post)
	case WhileNode:
		return fmt.Sprintf("while (%s)", d.Cond)
	case ReturnNode:
		if d.Expr == nil {
			return "return;"
		}
		return fmt.Sprintf("return %s;", d.Expr)
	case VarDeclNode:
		switch {
		case d.ArrayLen > 0:
			return fmt.Sprintf("Variable: %s %s[%d];", d.VarType.Deref(), d.Name, d.ArrayLen)
		case d.Init != nil:
			return fmt.Sprintf("Variable: %s %s = %s;", d.VarType, d.Name, d.Init)
		}
		return fmt.Sprintf("Variable: %s %s;", d.VarType, d.Name)
	case BlockNode:
		return "{ ... }"
	case ExprStmtNode:
		return d.Expr.String()
	}
	return "<unknown>"
}

// String renders the signature line used as the function header comment.
func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = strings.TrimSpace(p.Type.String() + " " + p.Name)
	}
	body := ";"
	if f.Body != nil {
		body = " { ... }"
	}
	return fmt.Sprintf("Function: %s %s(%s)%s", f.Return, f.Name, strings.Join(params, ", "), body)
}
