package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/cbc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	be.True(t, cfg.IsFeatureEnabled(FeatAsm))
	be.True(t, cfg.IsFeatureEnabled(FeatCleanupOnBreak))
	be.True(t, !cfg.IsFeatureEnabled(FeatShlScaling))
	be.True(t, !cfg.IsWarningEnabled(WarnUnusedFunction))
	be.Equal(t, cfg.WarningFlag(WarnTruncation), "-Wtruncation")
}

func TestDirectiveFlags(t *testing.T) {
	cfg := NewConfig()
	unknown := cfg.ProcessDirectiveFlags("-Fshl-scaling -Wno-truncation -Wbogus Fno-asm")
	be.Equal(t, unknown, []string{"-Wbogus"})
	be.True(t, cfg.IsFeatureEnabled(FeatShlScaling))
	be.True(t, !cfg.IsWarningEnabled(WarnTruncation))
	be.True(t, !cfg.IsFeatureEnabled(FeatAsm))
}

func TestAllWarnings(t *testing.T) {
	cfg := NewConfig()
	be.Equal(t, len(cfg.ProcessDirectiveFlags("-Wall -Wno-extra")), 0)
	be.True(t, cfg.IsWarningEnabled(WarnUnusedFunction))
	be.True(t, !cfg.IsWarningEnabled(WarnExtra))
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("cbc")
	warnings, features := cfg.SetupFlagGroups(fs)
	be.Err(t, fs.Parse([]string{"-Wunused-function", "-Fno-arrays", "in.cb"}), nil)
	cfg.ApplyFlagGroups(warnings, features)
	be.True(t, cfg.IsWarningEnabled(WarnUnusedFunction))
	be.True(t, !cfg.IsFeatureEnabled(FeatArrays))
	be.Equal(t, fs.Args(), []string{"in.cb"})
}

func TestProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultProjectFile)
	src := "include: [lib]\ndefine:\n  DEBUG: \"\"\n  SIZE: \"16\"\nwarnings:\n  unused-function: true\nfeatures:\n  shl-scaling: true\noutput: out.asm\n"
	be.Err(t, os.WriteFile(path, []byte(src), 0o644), nil)

	p, err := LoadProject(path)
	be.Err(t, err, nil)
	cfg := NewConfig()
	be.Err(t, cfg.ApplyProject(p), nil)
	be.Equal(t, cfg.IncludeDirs, []string{filepath.Join(dir, "lib")})
	be.Equal(t, cfg.Defines["DEBUG"], "1")
	be.Equal(t, cfg.Defines["SIZE"], "16")
	be.True(t, cfg.IsWarningEnabled(WarnUnusedFunction))
	be.True(t, cfg.IsFeatureEnabled(FeatShlScaling))
	be.Equal(t, cfg.Output, "out.asm")

	be.Err(t, cfg.ApplyProject(&Project{Features: map[string]bool{"goto": true}}), "unknown feature 'goto'")
}

func TestDefine(t *testing.T) {
	cfg := NewConfig()
	cfg.Define("A")
	cfg.Define("B=2")
	be.Equal(t, cfg.Defines["A"], "1")
	be.Equal(t, cfg.Defines["B"], "2")
}
