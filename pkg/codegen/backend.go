package codegen

import (
	"bytes"

	"github.com/xplshn/cbc/pkg/ast"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/util"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a parsed program and a configuration, and produces the
	// target assembly as a byte buffer.
	Generate(prog *ast.Program, cfg *config.Config) (*bytes.Buffer, error)
	// Warnings returns the warnings of the last Generate call.
	Warnings() []*util.Diagnostic
}

type masmBackend struct {
	warnings []*util.Diagnostic
}

// NewMASMBackend returns the backend that emits MASM/TASM source for a
// 16-bit real-mode DOS program in the compact memory model.
func NewMASMBackend() Backend { return &masmBackend{} }

func (b *masmBackend) Generate(prog *ast.Program, cfg *config.Config) (*bytes.Buffer, error) {
	ctx := NewContext(cfg)
	if err := ctx.GenerateProgram(prog); err != nil {
		return nil, err
	}
	b.warnings = ctx.warnings
	var buf bytes.Buffer
	if _, err := ctx.out.WriteTo(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (b *masmBackend) Warnings() []*util.Diagnostic { return b.warnings }
