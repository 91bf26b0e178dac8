package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/cbc/pkg/config"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		be.Err(t, os.MkdirAll(filepath.Dir(path), 0o755), nil)
		be.Err(t, os.WriteFile(path, []byte(content), 0o644), nil)
	}
	return dir
}

func run(t *testing.T, cfg *config.Config, files map[string]string) (*Source, error) {
	dir := writeFiles(t, files)
	if cfg == nil {
		cfg = config.NewConfig()
	}
	for i, inc := range cfg.IncludeDirs {
		cfg.IncludeDirs[i] = filepath.Join(dir, inc)
	}
	return New(cfg).File(filepath.Join(dir, "main.cb"))
}

func TestMacrosAndComments(t *testing.T) {
	src, err := run(t, nil, map[string]string{
		"main.cb": "#define SIZE 10\n#define FLAG\nint x = SIZE; // SIZE\nbyte c = 'S'; int SIZEX = FLAG;\n",
	})
	be.Err(t, err, nil)
	want := []string{"int x = 10; ", "byte c = 'S'; int SIZEX = 1;"}
	if diff := cmp.Diff(want, src.Lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	be.Equal(t, src.Origins[1][len(src.Origins[1])-len("line: 4"):], "line: 4")
}

func TestNestedConditionals(t *testing.T) {
	src, err := run(t, nil, map[string]string{
		"main.cb": `#define A
#ifdef B
#ifdef A
inner_b_a
#else
inner_b_not_a
#endif
#else
#ifndef C
outer_else_not_c
#endif
#endif
`,
	})
	be.Err(t, err, nil)
	be.Equal(t, src.Lines, []string{"outer_else_not_c"})
}

func TestIncludes(t *testing.T) {
	cfg := config.NewConfig()
	cfg.IncludeDirs = []string{"lib"}
	src, err := run(t, cfg, map[string]string{
		"main.cb":     "#include \"sub/util.cb\"\n#include <io>\nmain\n",
		"sub/util.cb": "util\n",
		"lib/io.cb":   "io\n",
	})
	be.Err(t, err, nil)
	be.Equal(t, src.Lines, []string{"util", "io", "main"})
}

func TestIncludeCycle(t *testing.T) {
	_, err := run(t, nil, map[string]string{
		"main.cb": "#include \"a.cb\"\n",
		"a.cb":    "#include \"main.cb\"\n",
	})
	be.Err(t, err, "include cycle")
}

func TestDirectiveErrors(t *testing.T) {
	tests := map[string]string{
		"#else\n":                     "else directive without corresponding if",
		"#ifdef A\n#else\n#else\n":    "current if already has else directive",
		"#endif\n":                    "endif directive without corresponding if",
		"#ifdef A\n":                  "open if directive",
		"#define A 1\n#define A 2\n":  "A is already defined",
		"#undef A\n":                  "constant is not defined: A",
		"#warning x\n":                "unknown preprocessor directive: #warning x",
		"#include missing\n":          "invalid include: missing",
		"#include \"missing.cb\"\n":   "can't open file",
	}
	for input, want := range tests {
		_, err := run(t, nil, map[string]string{"main.cb": input})
		be.Err(t, err, want)
	}
}

func TestMissingFileKeepsCause(t *testing.T) {
	_, err := New(config.NewConfig()).File(filepath.Join(t.TempDir(), "absent.cb"))
	be.Err(t, err, os.ErrNotExist)
	be.Err(t, err, "can't open file")
	be.Err(t, err, "no such file or directory")
}

func TestPragma(t *testing.T) {
	cfg := config.NewConfig()
	dir := writeFiles(t, map[string]string{
		"main.cb": "#pragma cbc -Fshl-scaling -Fbogus\n#pragma once\n",
	})
	p := New(cfg)
	_, err := p.File(filepath.Join(dir, "main.cb"))
	be.Err(t, err, nil)
	be.True(t, cfg.IsFeatureEnabled(config.FeatShlScaling))
	be.Equal(t, len(p.Warnings()), 2)
	be.Equal(t, p.Warnings()[0].Message, "unknown pragma flag: -Fbogus")
	be.Equal(t, p.Warnings()[1].Message, "unknown pragma: once")
}

func TestPredefined(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Define("DEBUG")
	src, err := run(t, cfg, map[string]string{"main.cb": "#ifdef DEBUG\nDEBUG\n#endif\n"})
	be.Err(t, err, nil)
	be.Equal(t, src.Lines, []string{"1"})
}
