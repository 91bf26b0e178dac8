package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestParse(t *testing.T) {
	var (
		out      string
		wait     bool
		includes []string
		defines  []string
		on, off  bool
	)
	fs := NewFlagSet("cbc")
	fs.String(&out, "output", "o", "", "Place the output into <file>.", "file")
	fs.Bool(&wait, "wait", "w", false, "Wait for Enter before exiting.")
	fs.List(&includes, "include", "I", nil, "Add a library directory.", "dir")
	fs.List(&defines, "define", "D", nil, "Predefine a macro.", "name[=value]")
	fs.AddFlagGroup("Warning Flags", "", "warning", "", []FlagGroupEntry{
		{Name: "extra", Prefix: "W", Enabled: &on, Disabled: &off},
	})

	err := fs.Parse([]string{"-o", "a.asm", "-w", "-Ilib", "--include=inc", "-DDEBUG", "-DN=3", "-Wno-extra", "main.cb"})
	be.Err(t, err, nil)
	be.Equal(t, out, "a.asm")
	be.True(t, wait)
	be.Equal(t, includes, []string{"lib", "inc"})
	be.Equal(t, defines, []string{"DEBUG", "N=3"})
	be.True(t, off)
	be.True(t, !on)
	be.Equal(t, fs.Args(), []string{"main.cb"})
}

func TestParseErrors(t *testing.T) {
	var out string
	fs := NewFlagSet("cbc")
	fs.String(&out, "output", "o", "", "", "file")
	be.Err(t, fs.Parse([]string{"--nope"}), "unknown flag: --nope")
	be.Err(t, fs.Parse([]string{"-x"}), "unknown shorthand flag: -x")
	be.Err(t, fs.Parse([]string{"-o"}), "flag needs an argument: -o")
}

func TestHelpPage(t *testing.T) {
	var out string
	app := NewApp("cbc")
	app.Synopsis = "[options] <input.cb>"
	app.FlagSet.String(&out, "output", "o", "", "Place the output into <file>.", "file")
	app.FlagSet.AddFlagGroup("Feature Flags", "", "feature", "Available Features:", []FlagGroupEntry{
		{Name: "asm", Prefix: "F", Usage: "Allow inline assembly.", Enabled: new(bool), Disabled: new(bool), Default: true},
	})
	var stdout bytes.Buffer
	app.Stdout = &stdout
	be.Err(t, app.Run([]string{"--help"}), nil)
	help := stdout.String()
	be.True(t, strings.Contains(help, "cbc [options] <input.cb>"))
	be.True(t, strings.Contains(help, "-o <file>, --output <file>"))
	be.True(t, strings.Contains(help, "-Fno-<feature>"))
	be.True(t, strings.Contains(help, "|x|"))
}

func TestWrapText(t *testing.T) {
	be.Equal(t, wrapText("one two three four", 9), []string{"one two", "three", "four"})
	be.Equal(t, len(wrapText("", 10)), 0)
}
