package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goforj/godump"
	"github.com/xplshn/cbc/pkg/cli"
	"github.com/xplshn/cbc/pkg/codegen"
	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/parser"
	"github.com/xplshn/cbc/pkg/preprocess"
	"github.com/xplshn/cbc/pkg/util"
)

func main() {
	app := cli.NewApp("cbc")
	app.Synopsis = "[options] <input.cb>"
	app.Description = "A single-pass compiler for the Cb language. Emits MASM/TASM assembly for 16-bit real-mode DOS programs."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/cbc>"

	var (
		outFile     string
		projectFile string
		includes    []string
		defines     []string
		wait        bool
		dumpAST     bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>. Defaults to the input with an .asm extension.", "file")
	fs.String(&projectFile, "config", "c", "", "Load project settings from <file> (default: "+config.DefaultProjectFile+" if present).", "file")
	fs.List(&includes, "include", "I", []string{}, "Add a directory to the library search path of #include <...>.", "dir")
	fs.List(&defines, "define", "D", []string{}, "Predefine a macro, optionally with a value.", "name[=value]")
	fs.Bool(&wait, "wait", "w", false, "Wait for Enter before exiting.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Dump the parsed functions and exit.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if wait {
			defer waitForEnter()
		}
		if len(inputFiles) != 1 {
			err := errors.New("expected exactly one input file")
			util.Report(os.Stderr, err)
			app.Usage()
			return err
		}
		input := inputFiles[0]

		// Project settings first, so that command-line flags override them.
		if err := loadProject(cfg, projectFile); err != nil {
			util.Report(os.Stderr, err)
			return err
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		cfg.IncludeDirs = append(cfg.IncludeDirs, includes...)
		for _, d := range defines {
			cfg.Define(d)
		}
		if outFile == "" {
			outFile = cfg.Output
		}
		if outFile == "" {
			outFile = strings.TrimSuffix(input, filepath.Ext(input)) + ".asm"
		}

		pp := preprocess.New(cfg)
		src, err := pp.File(input)
		reportWarnings(pp.Warnings())
		if err != nil {
			util.Report(os.Stderr, err)
			return err
		}

		p := parser.NewParser(src.Lines, src.Origins, cfg)
		prog, err := p.Parse()
		reportWarnings(p.Warnings())
		if err != nil {
			util.Report(os.Stderr, err)
			return err
		}

		if dumpAST {
			for _, fn := range prog.Functions {
				fmt.Println(fn)
				godump.Dump(fn)
			}
			return nil
		}

		backend := codegen.NewMASMBackend()
		out, err := backend.Generate(prog, cfg)
		reportWarnings(backend.Warnings())
		if err != nil {
			util.Report(os.Stderr, err)
			return err
		}
		if err := os.WriteFile(outFile, out.Bytes(), 0o644); err != nil {
			err = fmt.Errorf("could not write output: %w", err)
			util.Report(os.Stderr, err)
			return err
		}
		fmt.Printf("Output written to '%s' (%s)\n", outFile, humanize.Bytes(uint64(out.Len())))
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// loadProject applies the -c file, or cbc.yaml when it exists.
func loadProject(cfg *config.Config, path string) error {
	explicit := path != ""
	if !explicit {
		path = config.DefaultProjectFile
	}
	proj, err := config.LoadProject(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not load project file: %w", err)
	}
	return cfg.ApplyProject(proj)
}

func reportWarnings(warnings []*util.Diagnostic) {
	for _, w := range warnings {
		util.Warn(os.Stderr, w)
	}
}

func waitForEnter() {
	fmt.Print("Press Enter to exit...")
	bufio.NewReader(os.Stdin).ReadString('\n')
}
