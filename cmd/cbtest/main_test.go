package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestCompareGolden(t *testing.T) {
	want := &Golden{ExitCode: 0, Asm: []string{"main proc", "  ret", "endp main"}}

	got := &Golden{ExitCode: 0, Asm: []string{"main proc", "  ret", "endp main"}}
	be.Equal(t, compareGolden(want, got), "")

	got = &Golden{ExitCode: 1, Stderr: []string{"t.cb:1:1: error: main function not found"}}
	diff := compareGolden(want, got)
	be.True(t, strings.Contains(diff, "Exit Code mismatch"))
	be.True(t, strings.Contains(diff, "Assembly mismatch"))
	be.True(t, strings.Contains(diff, "Diagnostics mismatch"))
}

func TestFilterLines(t *testing.T) {
	lines := []string{"; Function: main", "main proc", "; scratch"}
	be.Equal(t, filterLines(lines, []string{"; scratch", ""}), []string{"; Function: main", "main proc"})
	be.Equal(t, filterLines(nil, nil), []string{})
}

func TestSplitLines(t *testing.T) {
	be.Equal(t, splitLines(""), []string(nil))
	be.Equal(t, splitLines("a\nb\n\n"), []string{"a", "b"})
}

func TestGetJSONPath(t *testing.T) {
	be.Equal(t, getJSONPath(filepath.Join("tests", "fact.cb")), filepath.Join("tests", ".fact.json"))
}

func TestHashFileAndGlob(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cb")
	b := filepath.Join(dir, "b.cb")
	be.Err(t, os.WriteFile(a, []byte("void main() {}\n"), 0644), nil)
	be.Err(t, os.WriteFile(b, []byte("void main() {}\n"), 0644), nil)

	ha, err := hashFile(a)
	be.Err(t, err, nil)
	hb, err := hashFile(b)
	be.Err(t, err, nil)
	be.Equal(t, ha, hb)

	files, err := expandGlobPatterns(filepath.Join(dir, "*.cb") + " " + a)
	be.Err(t, err, nil)
	be.Equal(t, len(files), 2)
}

func TestHasFailures(t *testing.T) {
	be.True(t, !hasFailures(map[string]*FileTestResult{"a": {Status: "PASS"}, "b": {Status: "SKIP"}}))
	be.True(t, hasFailures(map[string]*FileTestResult{"a": {Status: "PASS"}, "b": {Status: "ERROR"}}))
}
