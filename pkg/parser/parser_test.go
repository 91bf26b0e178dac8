package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/types"
)

func parse(t *testing.T, cfg *config.Config, src string) (*ast.Program, *Parser, error) {
	t.Helper()
	lines := strings.Split(src, "\n")
	origins := make([]string, len(lines))
	for i := range lines {
		origins[i] = fmt.Sprintf("file: t.cb, line: %d", i+1)
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	p := NewParser(lines, origins, cfg)
	prog, err := p.Parse()
	return prog, p, err
}

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, _, err := parse(t, nil, src)
	be.Err(t, err, nil)
	return prog
}

func stmts(t *testing.T, prog *ast.Program, name string) []*ast.Node {
	t.Helper()
	fn := prog.Lookup(name)
	be.True(t, fn != nil && fn.Body != nil)
	return fn.Body.Data.(ast.BlockNode).Stmts
}

func strs(nodes []*ast.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.String()
	}
	return out
}

func TestFrameOffsets(t *testing.T) {
	prog := mustParse(t, `
int f(int a, byte b) {
    int x = a;
    byte y;
    return x;
}
void main() { f(1, 2); }`)

	body := stmts(t, prog, "f")
	x := body[0].Data.(ast.VarDeclNode)
	be.Equal(t, x.Offset, -2)
	be.Equal(t, x.Init.Data.(ast.VariableNode).Offset, 6)
	be.Equal(t, body[1].Data.(ast.VarDeclNode).Offset, -4)
	be.Equal(t, body[2].Data.(ast.ReturnNode).Cleanup, 4)
	be.Equal(t, prog.Lookup("f").Body.Data.(ast.BlockNode).Cleanup, 4)

	be.Equal(t, prog.Lookup("main").Calls, []string{"f"})
}

func TestPrecedenceAndAssociativity(t *testing.T) {
	prog := mustParse(t, `
void main() {
    int a;
    int b;
    a = 1 + 2 * b;
    a = b = 3;
    a = a - b - 1;
    a = b << 2;
    a = (a + 1) * b;
}`)
	got := strs(stmts(t, prog, "main")[2:])
	want := []string{
		"(a = (1 + (2 * b)))",
		"(a = (b = 3))",
		"(a = ((a - b) - 1))",
		"(a = (b << 2))",
		"(a = ((a + 1) * b))",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestComparisonCannotBeStored(t *testing.T) {
	_, _, err := parse(t, nil, `
void main() {
    int a;
    a = a < 1;
}`)
	be.Err(t, err, "can't assign int and flags")
}

func TestConstantFolding(t *testing.T) {
	prog := mustParse(t, `
void main() {
    int x = (2 + 3) * 4;
    byte b = 200 + 100;
    int s = sizeof(int*) + sizeof(byte);
    int* p = NULL;
    byte c = '\n';
}`)
	body := stmts(t, prog, "main")
	init := func(i int) *ast.Node { return body[i].Data.(ast.VarDeclNode).Init }
	be.Equal(t, init(0).Value, 20)
	be.Equal(t, init(0).Typ, types.Int)
	be.Equal(t, init(1).Value, 44)
	be.Equal(t, init(2).Value, 3)
	be.Equal(t, body[3].String(), "Variable: int* p = NULL;")
	be.Equal(t, init(4).Value, 10)
}

func TestArrays(t *testing.T) {
	prog := mustParse(t, `
void main() {
    int a[4];
    a[3] = 5;
    int i = 1;
    a[i] = a[0];
}`)
	body := stmts(t, prog, "main")
	decl := body[0].Data.(ast.VarDeclNode)
	be.Equal(t, decl.VarType, types.New("int", 1))
	be.Equal(t, decl.Reserved, 8)
	be.Equal(t, decl.StorageOffset, -8)
	be.Equal(t, decl.Offset, -10)
	be.Equal(t, body[1].String(), "(*(a+6) = 5)")
	be.Equal(t, body[3].String(), "(*(a + (i * 2)) = *a)")
}

func TestShiftScaling(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatShlScaling, true)
	prog, _, err := parse(t, cfg, `
void main() {
    int a[4];
    int i;
    a[i] = 1;
}`)
	be.Err(t, err, nil)
	be.Equal(t, stmts(t, prog, "main")[2].String(), "(*(a + (i << 1)) = 1)")
}

func TestArraysFeature(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatArrays, false)
	_, _, err := parse(t, cfg, "void main() { int a[4]; }")
	be.Err(t, err, "arrays are disabled")

	_, _, err = parse(t, nil, "void main() { int n; int a[n]; }")
	be.Err(t, err, "array size must be a constant")
}

func TestPointers(t *testing.T) {
	prog := mustParse(t, `
void main() {
    int x;
    int* p = &x;
    int** pp = &p;
    *p = 1;
    **pp = 2;
    p = &*p;
    *(p + 2) = 3;
    ++p;
}`)
	got := strs(stmts(t, prog, "main")[1:])
	want := []string{
		"Variable: int* p = &x;",
		"Variable: int** pp = &p;",
		"(*p = 1)",
		"(**pp = 2)",
		"(p = p)",
		"(*(p+4) = 3)",
		"++p",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCasts(t *testing.T) {
	prog, p, err := parse(t, nil, `
void main() {
    int x = 300;
    byte b = (byte)x;
    byte c = (byte)300;
    int* q = (int*)x;
}`)
	be.Err(t, err, nil)
	body := stmts(t, prog, "main")
	be.Equal(t, body[1].String(), "Variable: byte b = (byte)x;")
	be.Equal(t, body[2].Data.(ast.VarDeclNode).Init.Value, 44)
	be.Equal(t, body[3].String(), "Variable: int* q = (int*)x;")

	be.Equal(t, len(p.Warnings()), 1)
	be.Equal(t, p.Warnings()[0].Message, "cast of constant 300 to byte truncates it to 44")
	be.Equal(t, p.Warnings()[0].Flag, "-Wtruncation")
}

func TestConditions(t *testing.T) {
	prog := mustParse(t, `
void main() {
    int* p;
    byte b;
    if (p) return;
    while (b) b = b - 1;
    if (b > 1) { } else { }
}`)
	body := stmts(t, prog, "main")
	be.Equal(t, body[2].String(), "if (((int)p != 0))")
	be.Equal(t, body[3].String(), "while ((b != 0))")
	be.Equal(t, body[4].String(), "if ((b > 1))")
	be.True(t, body[4].Data.(ast.IfNode).Else != nil)
}

func TestInvalidCondition(t *testing.T) {
	_, _, err := parse(t, nil, `
void g() { }
void main() {
    if (g()) return;
}`)
	be.Err(t, err, "invalid condition type, expected: flags, got: void")
}

func TestLoops(t *testing.T) {
	prog := mustParse(t, `
void main() {
    for (int i = 0; i < 10; ++i) {
        int t;
        if (i == 5) continue;
        break;
    }
    for (;;) break;
    while (1 == 1) { }
}`)
	body := stmts(t, prog, "main")
	loop := body[0].Data.(ast.ForNode)
	be.Equal(t, loop.Cleanup, 2)
	be.Equal(t, body[0].String(), "for (int i = 0; (i < 10); ++i)")

	inner := loop.Body.Data.(ast.BlockNode).Stmts
	cont := inner[1].Data.(ast.IfNode).Then.Data.(ast.BlockNode).Stmts[0]
	be.Equal(t, cont.Data.(ast.ContinueNode).Cleanup, 2)
	be.Equal(t, inner[2].Data.(ast.BreakNode).Cleanup, 2)

	forever := body[1].Data.(ast.ForNode)
	be.True(t, forever.Init == nil && forever.Cond == nil && forever.Post == nil)
	be.Equal(t, body[2].Data.(ast.WhileNode).Cond.Value, 1)
}

func TestScopes(t *testing.T) {
	_, _, err := parse(t, nil, `
void main() {
    for (int i = 0; i < 3; ++i) ;
    i = 1;
}`)
	be.Err(t, err, "variable 'i' is not defined")

	prog := mustParse(t, `
void main() {
    { int a; }
    int b;
}`)
	body := stmts(t, prog, "main")
	be.Equal(t, body[0].Data.(ast.BlockNode).Cleanup, 2)
	be.Equal(t, body[1].Data.(ast.VarDeclNode).Offset, -2)
}

func TestInlineAssembly(t *testing.T) {
	prog := mustParse(t, `
void main() {
    __asm {
        mov ax, 1
        int 21h
    }
}`)
	asm := stmts(t, prog, "main")[0].Data.(ast.AsmNode)
	be.Equal(t, asm.Lines, []string{"mov ax, 1", "int 21h"})

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatAsm, false)
	_, _, err := parse(t, cfg, "void main() { __asm {\n}\n}")
	be.Err(t, err, "inline assembly is disabled")
}

func TestFunctions(t *testing.T) {
	prog := mustParse(t, `
int add(int, int);
int add(int a, int b) { return a + b; }
int fact(int n) {
    if (n < 2) return 1;
    return n * fact(n - 1);
}
void main() { add(2, 3); }`)
	be.Equal(t, len(prog.Functions), 3)
	be.True(t, prog.Functions[0].Implemented())
	be.Equal(t, prog.Functions[0].Params[0].Name, "a")
	be.Equal(t, prog.Lookup("fact").Calls, []string{"fact"})
	be.Equal(t, strs(stmts(t, prog, "main")), []string{"add(2, 3)"})
}

func TestUnreachableCode(t *testing.T) {
	_, p, err := parse(t, nil, `
void main() {
    return;
    main();
    main();
}`)
	be.Err(t, err, nil)
	be.Equal(t, len(p.Warnings()), 1)
	be.Equal(t, p.Warnings()[0].Message, "unreachable code")
	be.Equal(t, p.Warnings()[0].Origin, "file: t.cb, line: 4")

	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnreachableCode, false)
	_, p, _ = parse(t, cfg, "void main() { return; main(); }")
	be.Equal(t, len(p.Warnings()), 0)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"implicit narrowing", "void main() { byte b = 300; }", "can't implicitly cast int to byte"},
		{"break outside loop", "void main() { break; }", "can't break while not in loop"},
		{"continue outside loop", "void main() { continue; }", "can't continue while not in loop"},
		{"undefined variable", "void main() { x = 1; }", "variable 'x' is not defined"},
		{"void variable", "void main() { void v; }", "can't define variables of void type"},
		{"redefinition", "void main() { int x; int x; }", "variable is already defined: x"},
		{"case insensitive", "void main() { int x; int X; }", "variable is already defined: x"},
		{"function name", "void f() { }\nvoid main() { int f; }", "function with this name is already defined: f"},
		{"literal bounds", "void main() { int x = 70000; }", "integer literal is out of bounds: 70000"},
		{"literal digits", "void main() { int x = 1000000; }", "integer literal is out of bounds: 1000000"},
		{"literal leading zeros", "void main() { int x = 0000001; }", "integer literal is out of bounds: 1"},
		{"escape", "void main() { byte c = '\\q'; }", "unknown escape sequence: \\q"},
		{"undefined function", "void main() { g(); }", "function is not defined: g"},
		{"argument count", "void f(int a) { }\nvoid main() { f(); }", "mismatched call parameter count"},
		{"argument type", "void f(byte a) { }\nvoid main() { int x; f(x); }", "can't implicitly cast int to byte"},
		{"shift operand", "void main() { int x; x = x << x; }", "second operand of shift operation must be constant"},
		{"division by zero", "void main() { int x = 1 / 0; }", "division by zero in constant expression"},
		{"not writable", "void main() { int x; 1 = x; }", "cannot assign to a non-writable expression"},
		{"void deref", "void main() { void* p; int x = *p; }", "can't dereference void*"},
		{"unnamed implementation", "int f(int) { return 1; }", "function implementation can't skip parameter names"},
		{"reimplementation", "void f() { }\nvoid f() { }", "function f is already implemented"},
		{"return type", "int f();\nbyte f() { return 1; }", "return type does not match"},
		{"reserved name", "void main() { int while; }", "invalid variable name"},
		{"test name", "void test() { }", "invalid name"},
		{"return value", "int f() { return NULL; }", "can't implicitly cast void* to int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parse(t, nil, tt.src)
			be.Err(t, err, tt.want)
		})
	}
}

func TestErrorLocation(t *testing.T) {
	_, _, err := parse(t, nil, "void main() {\n    int x;\n    break;\n}")
	be.Err(t, err, "file: t.cb, line: 3")
}
