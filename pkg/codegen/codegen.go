// Package codegen lowers a checked program to 16-bit x86 assembly. There is
// no register allocator: every expression leaves its value in a Storage and
// the parent decides whether it has to be saved on the stack.
package codegen

import (
	"fmt"

	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/emit"
	"github.com/xplshn/cbc/pkg/util"
)

// loopLabels are the jump targets of break and continue.
type loopLabels struct {
	breakLabel, continueLabel string
}

type Context struct {
	out        *emit.Writer
	cfg        *config.Config
	labelCount int
	currentFn  *ast.Function
	loop       *loopLabels
	warnings   []*util.Diagnostic
	err        error
}

func NewContext(cfg *config.Config) *Context {
	return &Context{out: emit.New(), cfg: cfg}
}

// Lines returns the emitted assembly.
func (ctx *Context) Lines() []string { return ctx.out.Lines() }

func (ctx *Context) emit(format string, args ...interface{}) {
	ctx.out.Line(fmt.Sprintf(format, args...))
}

func (ctx *Context) label(name string) { ctx.out.Line(name + ":") }

// newLabel returns the number shared by the labels of one construct.
func (ctx *Context) newLabel() int {
	ctx.labelCount++
	return ctx.labelCount
}

// comment echoes a statement when asm-comments is enabled.
func (ctx *Context) comment(format string, args ...interface{}) {
	if ctx.cfg.IsFeatureEnabled(config.FeatAsmComments) {
		ctx.out.Comment(fmt.Sprintf(format, args...))
	}
}

// fail records the first internal error. Lowering goes on so that the
// caller sees a single error.
func (ctx *Context) fail(format string, args ...interface{}) Storage {
	if ctx.err == nil {
		ctx.err = fmt.Errorf("codegen: "+format, args...)
	}
	return none
}
