package codegen

import (
	"fmt"

	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/types"
	"github.com/xplshn/cbc/pkg/util"
)

// EntryPoint is the function the startup stub calls.
const EntryPoint = "main"

// Heap layout of the data segment: one free block covering the payload.
const (
	heapBlockSize   = 16384
	heapBlockHeader = 4
)

// CheckEntry validates the signature of main.
func CheckEntry(prog *ast.Program) error {
	main := prog.Lookup(EntryPoint)
	switch {
	case main == nil:
		return util.Errorf("main function not found")
	case len(main.Params) != 0:
		return util.Errorf("main must take 0 parameters")
	case main.Return != types.Void:
		return util.Errorf("main must return void")
	case !main.Implemented():
		return util.Errorf("function main is called but not implemented")
	}
	return nil
}

// Reachable walks the call lists breadth first from main and returns the
// set of functions that have to be emitted.
func Reachable(prog *ast.Program) (map[string]bool, error) {
	if err := CheckEntry(prog); err != nil {
		return nil, err
	}
	seen := map[string]bool{EntryPoint: true}
	queue := []string{EntryPoint}
	for len(queue) > 0 {
		fn := prog.Lookup(queue[0])
		queue = queue[1:]
		for _, name := range fn.Calls {
			if seen[name] {
				continue
			}
			callee := prog.Lookup(name)
			if callee == nil {
				return nil, util.Errorf("function %s is called but not defined", name)
			}
			if !callee.Implemented() {
				return nil, util.Errorf("function %s is called but not implemented", name)
			}
			seen[name] = true
			queue = append(queue, name)
		}
	}
	return seen, nil
}

// GenerateProgram emits the whole output file. Nothing is kept when an
// error is returned.
func (ctx *Context) GenerateProgram(prog *ast.Program) error {
	reachable, err := Reachable(prog)
	if err != nil {
		return err
	}
	ctx.writeHeader()
	for _, fn := range prog.Functions {
		if !fn.Implemented() {
			continue
		}
		if !reachable[fn.Name] {
			ctx.warnUnused(fn)
			continue
		}
		ctx.codegenFunc(fn)
		if ctx.err != nil {
			return ctx.err
		}
	}
	ctx.out.Line("END program")
	return nil
}

func (ctx *Context) warnUnused(fn *ast.Function) {
	if !ctx.cfg.IsWarningEnabled(config.WarnUnusedFunction) {
		return
	}
	d := util.Errorf("function %s is never used", fn.Name)
	d.Severity = util.SeverityWarning
	d.Flag = ctx.cfg.WarningFlag(config.WarnUnusedFunction)
	ctx.warnings = append(ctx.warnings, d)
}

func (ctx *Context) writeHeader() {
	w := ctx.out
	w.Line(".MODEL compact")
	w.Line(".STACK 7FFFh")
	w.Line(".DATA")
	w.Indent()
	w.Line("__firstItemAddress dw 2")
	w.Line("__firstBlockNext dw 0")
	w.Line(fmt.Sprintf("__firstBlockSize dw %d", heapBlockSize))
	w.Line(fmt.Sprintf("__firstBlockPayload db %d dup(0)", heapBlockSize-heapBlockHeader))
	w.Dedent()
	w.Blank()
	w.Line(".CODE")
	w.Blank()
	w.Line("program:")
	w.Indent()
	w.Comment("init data segment")
	w.Line("mov ax, @data")
	w.Line("mov ds, ax")
	w.Comment("call main")
	w.Line("call " + EntryPoint)
	w.Line("mov al, 0")
	w.Line("mov ah, 4Ch")
	w.Line("int 21h")
	w.Dedent()
	w.Blank()
	w.Comment("utility macros")
	ctx.writeMacro("push_byte macro val", "sub sp, 1", "mov si, sp", "mov byte ptr ss:[si], val")
	ctx.writeMacro("pop_byte macro to", "mov si, sp", "mov to, byte ptr ss:[si]", "add sp, 1")
	ctx.writeMacro("pop_bytes macro count", "add sp, count")
	w.Blank()
	w.Blank()
}

func (ctx *Context) writeMacro(head string, body ...string) {
	ctx.out.Line(head)
	ctx.out.Indent()
	for _, l := range body {
		ctx.out.Line(l)
	}
	ctx.out.Dedent()
	ctx.out.Line("endm")
}

// codegenFunc emits one procedure. The callee pops its parameters.
func (ctx *Context) codegenFunc(fn *ast.Function) {
	ctx.currentFn = fn
	defer func() { ctx.currentFn = nil }()

	ctx.out.Comment(fn.String())
	ctx.out.Line(fn.Name + " proc")
	ctx.out.Indent()
	ctx.comment("init stack frame")
	ctx.emit("push bp")
	ctx.emit("mov bp, sp")
	ctx.out.Dedent()
	terminates := ctx.codegenStmt(fn.Body)
	ctx.out.Indent()
	if !terminates {
		ctx.epilogue()
	}
	ctx.out.Dedent()
	ctx.out.Line("endp " + fn.Name)
	ctx.out.Blank()
}
