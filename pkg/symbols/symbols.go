// Package symbols implements the parse-time environment: known types,
// functions and the variable stack that mirrors the runtime frame.
package symbols

import (
	"fmt"
	"strings"

	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/types"
)

// Names of the two slots pushed between the parameters and the locals.
const (
	ReturnAddress   = "__return_address"
	PreviousBasePtr = "__previous_bp"
)

type entryKind int

const (
	entryVar entryKind = iota
	entryFunctionMark
	entryBlockMark
)

// Var is one slot of the variable stack.
type Var struct {
	Name string
	Type types.Type
	Size int
	kind entryKind
}

// Sizes is a snapshot of the environment used to rewind after a failed
// parse attempt.
type Sizes struct {
	Types, Funcs, Vars int
}

type Env struct {
	types []types.Type
	funcs []*ast.Function
	vars  []Var
}

func New() *Env {
	e := &Env{}
	e.types = append(e.types, types.Builtins...)
	return e
}

func (e *Env) Sizes() Sizes {
	return Sizes{Types: len(e.types), Funcs: len(e.funcs), Vars: len(e.vars)}
}

// Truncate rewinds every stack to s. Stacks that are already smaller are
// left alone.
func (e *Env) Truncate(s Sizes) {
	if s.Types < len(e.types) {
		e.types = e.types[:s.Types]
	}
	if s.Funcs < len(e.funcs) {
		e.funcs = e.funcs[:s.Funcs]
	}
	if s.Vars < len(e.vars) {
		e.vars = e.vars[:s.Vars]
	}
}

// LookupType resolves a primitive type name.
func (e *Env) LookupType(name string) (types.Type, bool) {
	name = strings.ToLower(name)
	for _, t := range e.types {
		if t.Name == name {
			return t, true
		}
	}
	return types.Type{}, false
}

// --- Functions ---

func (e *Env) FindFunction(name string) *ast.Function {
	name = strings.ToLower(name)
	for _, f := range e.funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (e *Env) Functions() []*ast.Function { return e.funcs }

// AddFunction registers a declaration or implementation. A later definition
// replaces a matching declaration in place, so the parser can register an
// implementation before reading its body.
func (e *Env) AddFunction(f *ast.Function) error {
	for i, prev := range e.funcs {
		if prev.Name != f.Name {
			continue
		}
		if prev.Implemented() {
			return fmt.Errorf("function %s is already implemented", f.Name)
		}
		if !prev.SameParams(f) {
			return fmt.Errorf("function's %s implementation parameters do not match parameters of its declaration", f.Name)
		}
		if prev.Return != f.Return {
			return fmt.Errorf("function's %s implementation return type does not match return type of its declaration", f.Name)
		}
		e.funcs[i] = f
		return nil
	}
	e.funcs = append(e.funcs, f)
	return nil
}

// --- Variables ---

// EnterFunction pushes the function mark, the parameters are defined next.
func (e *Env) EnterFunction() { e.vars = append(e.vars, Var{kind: entryFunctionMark}) }

// EnterFrame pushes the two slots that separate parameters from locals.
func (e *Env) EnterFrame() {
	e.vars = append(e.vars,
		Var{Name: ReturnAddress, Type: types.Int, Size: 2},
		Var{Name: PreviousBasePtr, Type: types.Int, Size: 2},
	)
}

// ExitFunction pops everything down to and including the function mark and
// returns the number of bytes popped.
func (e *Env) ExitFunction() int { return e.exit(entryFunctionMark) }

func (e *Env) EnterBlock() { e.vars = append(e.vars, Var{kind: entryBlockMark}) }

// ExitBlock pops the innermost block and returns the bytes it allocated.
func (e *Env) ExitBlock() int { return e.exit(entryBlockMark) }

func (e *Env) exit(kind entryKind) int {
	n := 0
	for i := len(e.vars) - 1; i >= 0; i-- {
		v := e.vars[i]
		if v.kind == kind {
			e.vars = e.vars[:i]
			return n
		}
		n += v.Size
	}
	e.vars = e.vars[:0]
	return n
}

// Depth is the current height of the variable stack.
func (e *Env) Depth() int { return len(e.vars) }

// BytesSince sums the variables pushed above depth.
func (e *Env) BytesSince(depth int) int {
	n := 0
	for i := depth; i < len(e.vars); i++ {
		n += e.vars[i].Size
	}
	return n
}

// CountFunctionExiting sums every local of the current function, which is
// what a return has to pop before restoring bp.
func (e *Env) CountFunctionExiting() int {
	n := 0
	for i := len(e.vars) - 1; i >= 0; i-- {
		v := e.vars[i]
		if v.Name == PreviousBasePtr || v.kind == entryFunctionMark {
			break
		}
		n += v.Size
	}
	return n
}

// Define pushes a variable of size bytes rounded up to even and returns
// its offset from bp. An empty name reserves unnamed storage.
func (e *Env) Define(name string, typ types.Type, size int) int {
	e.vars = append(e.vars, Var{Name: strings.ToLower(name), Type: typ, Size: size + size%2})
	return e.offset(len(e.vars) - 1)
}

func (e *Env) DefineVariable(name string, typ types.Type) int {
	return e.Define(name, typ, typ.Size())
}

// FindVariable returns the innermost variable named name in the current
// function with its offset from bp.
func (e *Env) FindVariable(name string) (Var, int, bool) {
	name = strings.ToLower(name)
	for i := len(e.vars) - 1; i >= 0; i-- {
		v := e.vars[i]
		if v.kind == entryFunctionMark {
			break
		}
		if v.kind == entryVar && v.Name != "" && v.Name == name {
			return v, e.offset(i), true
		}
	}
	return Var{}, 0, false
}

// offset of slot i. The saved bp sits at [bp]; slots pushed after it are
// at negative offsets and the return address and parameters below it at
// positive ones.
func (e *Env) offset(i int) int {
	bp := -1
	for j := i; j >= 0 && e.vars[j].kind != entryFunctionMark; j-- {
		if e.vars[j].Name == PreviousBasePtr && e.vars[j].kind == entryVar {
			bp = j
			break
		}
	}
	if bp >= 0 {
		n := 0
		for j := bp + 1; j <= i; j++ {
			n += e.vars[j].Size
		}
		return -n
	}
	// Below the frame boundary: search upwards for the saved bp.
	n := 0
	for j := i + 1; j < len(e.vars); j++ {
		if e.vars[j].Name == PreviousBasePtr {
			return n + e.vars[j].Size
		}
		n += e.vars[j].Size
	}
	return 0
}
