package codegen

import (
	"fmt"

	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/config"
)

// codegenStmt emits one statement and reports whether control can fall
// off its end.
func (ctx *Context) codegenStmt(node *ast.Node) (terminates bool) {
	if node == nil { return false }
	switch d := node.Data.(type) {
	case ast.BlockNode:
		return ctx.codegenBlock(d)
	case ast.ExprStmtNode:
		ctx.comment("%s", node)
		ctx.codegenExpr(d.Expr)
		return false
	case ast.VarDeclNode:
		ctx.codegenVarDecl(node, d)
		return false
	case ast.IfNode:
		return ctx.codegenIf(node, d)
	case ast.WhileNode:
		ctx.codegenWhile(node, d)
		return false
	case ast.ForNode:
		ctx.codegenFor(node, d)
		return false
	case ast.ReturnNode:
		ctx.codegenReturn(node, d)
		return true
	case ast.BreakNode:
		ctx.comment("break")
		ctx.jumpOut(d.Cleanup, ctx.loop.breakLabel)
		return true
	case ast.ContinueNode:
		ctx.comment("continue")
		ctx.jumpOut(d.Cleanup, ctx.loop.continueLabel)
		return true
	case ast.AsmNode:
		ctx.out.Comment("=== inline assembly block ===")
		for _, l := range d.Lines {
			ctx.emit("%s", l)
		}
		ctx.out.Comment("=== end of inline assembly ===")
		return false
	}
	ctx.fail("unexpected statement %s", node)
	return false
}

// codegenBlock stops after the first statement that never falls through,
// anything behind it is dead.
func (ctx *Context) codegenBlock(d ast.BlockNode) bool {
	ctx.out.Indent()
	defer ctx.out.Dedent()
	for _, s := range d.Stmts {
		if ctx.codegenStmt(s) {
			return true
		}
	}
	if d.Cleanup > 0 {
		ctx.comment("exiting block, pop %d bytes", d.Cleanup)
		ctx.emit("pop_bytes %d", d.Cleanup)
	}
	return false
}

func (ctx *Context) jumpOut(cleanup int, target string) {
	if cleanup > 0 && ctx.cfg.IsFeatureEnabled(config.FeatCleanupOnBreak) {
		ctx.emit("add sp, %d", cleanup)
	}
	ctx.emit("jmp %s", target)
}

// codegenVarDecl allocates the slot of a new local. Initialized locals are
// pushed, so the slot is created by the push itself.
func (ctx *Context) codegenVarDecl(node *ast.Node, d ast.VarDeclNode) {
	ctx.comment("%s", node)
	switch {
	case d.ArrayLen > 0:
		ctx.emit("sub sp, %d", d.Reserved)
		ctx.emit("mov dx, bp")
		ctx.emit("sub dx, %d", -d.StorageOffset)
		ctx.emit("push dx")
	case d.Init != nil:
		ctx.placeOnStack(ctx.codegenExpr(d.Init), d.VarType.Size())
	default:
		ctx.emit("sub sp, %d", d.VarType.PaddedSize())
	}
}

// condJump jumps to target when cond holds. A constant condition is
// decided here and emits at most a jmp.
func (ctx *Context) condJump(cond *ast.Node, target string) {
	if cond == nil || cond.Const {
		if cond == nil || cond.Value != 0 {
			ctx.emit("jmp %s", target)
		}
		return
	}
	d, ok := cond.Data.(ast.BinaryOpNode)
	if !ok || !d.Op.IsComparison() {
		ctx.fail("condition %s is not a comparison", cond)
		return
	}
	ctx.codegenCompare(d)
	ctx.emit("%s %s", jumps[d.Op], target)
}

func (ctx *Context) codegenIf(node *ast.Node, d ast.IfNode) bool {
	ctx.comment("%s", node)
	n := ctx.newLabel()
	trueBranch := fmt.Sprintf("label_%d_true_branch", n)
	falseBranch := fmt.Sprintf("label_%d_false_branch", n)
	endif := fmt.Sprintf("label_%d_endif", n)

	ctx.condJump(d.Cond, trueBranch)
	if d.Else == nil {
		ctx.emit("jmp %s", endif)
	} else {
		ctx.emit("jmp %s", falseBranch)
	}
	ctx.label(trueBranch)
	thenTerm := ctx.codegenStmt(d.Then)
	if d.Else == nil {
		ctx.label(endif)
		return false
	}
	if !thenTerm {
		ctx.emit("jmp %s", endif)
	}
	ctx.label(falseBranch)
	elseTerm := ctx.codegenStmt(d.Else)
	ctx.label(endif)
	return thenTerm && elseTerm
}

// withLoop runs body with the break and continue targets set.
func (ctx *Context) withLoop(breakLabel, continueLabel string, body *ast.Node) {
	prev := ctx.loop
	ctx.loop = &loopLabels{breakLabel: breakLabel, continueLabel: continueLabel}
	ctx.codegenStmt(body)
	ctx.loop = prev
}

func (ctx *Context) codegenWhile(node *ast.Node, d ast.WhileNode) {
	n := ctx.newLabel()
	cond := fmt.Sprintf("label_%d_while_condition", n)
	body := fmt.Sprintf("label_%d_while_body", n)
	end := fmt.Sprintf("label_%d_while_end", n)

	ctx.comment("%s", node)
	ctx.label(cond)
	ctx.condJump(d.Cond, body)
	ctx.emit("jmp %s", end)
	ctx.label(body)
	ctx.withLoop(end, cond, d.Body)
	ctx.emit("jmp %s", cond)
	ctx.label(end)
}

func (ctx *Context) codegenFor(node *ast.Node, d ast.ForNode) {
	n := ctx.newLabel()
	cond := fmt.Sprintf("label_%d_for_condition", n)
	body := fmt.Sprintf("label_%d_for_body", n)
	incr := fmt.Sprintf("label_%d_for_increment", n)
	end := fmt.Sprintf("label_%d_for_end", n)

	ctx.comment("%s", node)
	if d.Init != nil {
		ctx.comment("for initializer")
		ctx.codegenStmt(d.Init)
	}
	ctx.comment("for condition: %s", d.Cond)
	ctx.label(cond)
	ctx.condJump(d.Cond, body)
	ctx.emit("jmp %s", end)
	ctx.label(body)
	ctx.withLoop(end, incr, d.Body)
	ctx.label(incr)
	if d.Post != nil {
		ctx.comment("for incrementer")
		ctx.codegenExpr(d.Post)
	}
	ctx.emit("jmp %s", cond)
	ctx.label(end)
	if d.Cleanup > 0 {
		ctx.comment("exiting for, popping %d bytes", d.Cleanup)
		ctx.emit("add sp, %d", d.Cleanup)
	}
}

// codegenReturn leaves the result in al or ax, drops every local and
// returns to the caller.
func (ctx *Context) codegenReturn(node *ast.Node, d ast.ReturnNode) {
	ctx.comment("%s", node)
	if d.Expr != nil {
		dest := widthOf(d.Expr.Typ.Size()).a()
		if s := ctx.codegenExpr(d.Expr); s.Kind != StorageRegister || s.Value != dest {
			ctx.emit("mov %s, %s", dest, s)
		}
	}
	if d.Cleanup > 0 {
		ctx.emit("add sp, %d", d.Cleanup)
	}
	ctx.epilogue()
}

func (ctx *Context) epilogue() {
	ctx.emit("pop bp")
	if n := ctx.currentFn.ParamBytes(); n > 0 {
		ctx.emit("ret %d", n)
	} else {
		ctx.emit("ret")
	}
}
