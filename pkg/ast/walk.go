package ast

// Children returns the direct subnodes of n in source order.
func Children(n *Node) []*Node {
	var out []*Node
	add := func(nodes ...*Node) {
		for _, c := range nodes {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch d := n.Data.(type) {
	case DerefNode:
		add(d.Addr)
	case IncrementNode:
		add(d.Expr)
	case ReferenceNode:
		add(d.Expr)
	case TypeCastNode:
		add(d.Expr)
	case CallNode:
		add(d.Args...)
	case BinaryOpNode:
		add(d.Left, d.Right)
	case IfNode:
		add(d.Cond, d.Then, d.Else)
	case ForNode:
		add(d.Init, d.Cond, d.Post, d.Body)
	case WhileNode:
		add(d.Cond, d.Body)
	case ReturnNode:
		add(d.Expr)
	case VarDeclNode:
		add(d.Init)
	case BlockNode:
		add(d.Stmts...)
	case ExprStmtNode:
		add(d.Expr)
	}
	return out
}

// Inspect traverses the tree depth first. Children of n are skipped when
// f returns false.
func Inspect(n *Node, f func(*Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// CallNames lists the functions called under n, first call first, without
// duplicates.
func CallNames(n *Node) []string {
	var names []string
	seen := make(map[string]bool)
	Inspect(n, func(c *Node) bool {
		if call, ok := c.Data.(CallNode); ok && !seen[call.Name] {
			seen[call.Name] = true
			names = append(names, call.Name)
		}
		return true
	})
	return names
}
