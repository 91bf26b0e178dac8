package codegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/mdtest"
	"github.com/xplshn/cbc/pkg/parser"
	"github.com/xplshn/cbc/pkg/preprocess"
	"github.com/xplshn/cbc/pkg/util"
)

// compile runs the whole pipeline on src, pragmas included.
func compile(t *testing.T, src string) (lines []string, warnings []*util.Diagnostic, err error) {
	t.Helper()
	cfg := config.NewConfig()
	pp := preprocess.New(cfg)
	pp.ReadFile = func(string) ([]byte, error) { return []byte(src), nil }
	source, err := pp.File("t.cb")
	if err != nil {
		return nil, nil, err
	}
	p := parser.NewParser(source.Lines, source.Origins, cfg)
	prog, err := p.Parse()
	if err != nil {
		return nil, nil, err
	}
	ctx := NewContext(cfg)
	if err := ctx.GenerateProgram(prog); err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, pp.Warnings()...)
	warnings = append(warnings, p.Warnings()...)
	warnings = append(warnings, ctx.warnings...)
	return ctx.Lines(), warnings, nil
}

func TestEmptyProgram(t *testing.T) {
	got, _, err := compile(t, "void main() { }")
	be.Err(t, err, nil)
	want := []string{
		".MODEL compact",
		".STACK 7FFFh",
		".DATA",
		"    __firstItemAddress dw 2",
		"    __firstBlockNext dw 0",
		"    __firstBlockSize dw 16384",
		"    __firstBlockPayload db 16380 dup(0)",
		"",
		".CODE",
		"",
		"program:",
		"    ; init data segment",
		"    mov ax, @data",
		"    mov ds, ax",
		"    ; call main",
		"    call main",
		"    mov al, 0",
		"    mov ah, 4Ch",
		"    int 21h",
		"",
		"; utility macros",
		"push_byte macro val",
		"    sub sp, 1",
		"    mov si, sp",
		"    mov byte ptr ss:[si], val",
		"endm",
		"pop_byte macro to",
		"    mov si, sp",
		"    mov to, byte ptr ss:[si]",
		"    add sp, 1",
		"endm",
		"pop_bytes macro count",
		"    add sp, count",
		"endm",
		"",
		"",
		"; Function: void main() { ... }",
		"main proc",
		"    ; init stack frame",
		"    push bp",
		"    mov bp, sp",
		"    pop bp",
		"    ret",
		"endp main",
		"",
		"END program",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnusedFunction, true)
	p := parser.NewParser([]string{"void unused() { }", "void main() { }"}, []string{"a", "b"}, cfg)
	prog, err := p.Parse()
	be.Err(t, err, nil)

	b := NewMASMBackend()
	buf, err := b.Generate(prog, cfg)
	be.Err(t, err, nil)
	out := buf.String()
	be.True(t, strings.HasPrefix(out, ".MODEL compact\n"))
	be.True(t, strings.HasSuffix(out, "END program\n"))
	be.True(t, !strings.Contains(out, "unused proc"))
	be.Equal(t, len(b.Warnings()), 1)
	be.Equal(t, b.Warnings()[0].Message, "function unused is never used")
	be.Equal(t, b.Warnings()[0].Flag, "-Wunused-function")
}

func TestReachable(t *testing.T) {
	cfg := config.NewConfig()
	src := []string{
		"void a();",
		"void c();",
		"void b() { c(); }",
		"void c() { b(); }",
		"void d() { a(); }",
		"void main() { b(); }",
	}
	p := parser.NewParser(src, make([]string, len(src)), cfg)
	prog, err := p.Parse()
	be.Err(t, err, nil)

	seen, err := Reachable(prog)
	be.Err(t, err, nil)
	be.Equal(t, seen, map[string]bool{"main": true, "b": true, "c": true})
}

func TestStorageOperands(t *testing.T) {
	be.Equal(t, bpOperand(2, -2), "word ptr [bp - 2]")
	be.Equal(t, bpOperand(1, 4), "byte ptr [bp + 4]")
	be.Equal(t, bpOperand(2, 0), "word ptr [bp]")
	be.Equal(t, dsOperand(2, "bx", 6), "word ptr ds:[bx+6]")
	be.Equal(t, dsOperand(1, "bx", -1), "byte ptr ds:[bx-1]")
	be.Equal(t, dsOperand(2, "100", 0), "word ptr ds:[100]")
	be.Equal(t, toByte(stack("word ptr [bp - 2]")).Value, "byte ptr [bp - 2]")
	be.Equal(t, toByte(reg("dx")).Value, "dl")
	be.Equal(t, widthOf(1).other("al"), "bl")
	be.Equal(t, widthOf(2).other("dx"), "ax")
}

// TestScenarios runs the markdown scenarios under testdata.
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.md"))
	be.Err(t, err, nil)
	be.True(t, len(files) > 0)
	for _, file := range files {
		doc, err := os.ReadFile(file)
		be.Err(t, err, nil)
		cases, err := mdtest.Extract(doc)
		be.Err(t, err, nil)
		for _, tc := range cases {
			t.Run(filepath.Base(file)+"/"+tc.Name, func(t *testing.T) {
				runScenario(t, tc)
			})
		}
	}
}

func runScenario(t *testing.T, tc mdtest.TestCase) {
	lines, warnings, err := compile(t, tc.Input)
	for _, a := range tc.Assertions {
		switch a.Type {
		case mdtest.AssertionError:
			be.Err(t, err, a.Content)
		case mdtest.AssertionASM:
			be.Err(t, err, nil)
			if missing, ok := mdtest.MatchInOrder(lines, a.Lines()); !ok {
				t.Errorf("line %q not found in order, output:\n%s", missing, strings.Join(lines, "\n"))
			}
		case mdtest.AssertionWarning:
			be.Err(t, err, nil)
			found := false
			for _, w := range warnings {
				found = found || strings.Contains(w.Message, a.Content)
			}
			if !found {
				t.Errorf("warning %q not reported, got %d warnings", a.Content, len(warnings))
			}
		}
	}
}
