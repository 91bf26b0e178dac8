// cbtest compiles every test source with cbc and compares the generated
// assembly and diagnostics against the golden .NAME.json next to it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
	"github.com/xplshn/cbc/pkg/util"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is the recorded outcome of compiling one source file.
type Golden struct {
	Hash     string   `json:"hash"`
	Args     []string `json:"args,omitempty"`
	ExitCode int      `json:"exitCode"`
	Asm      []string `json:"asm,omitempty"`
	Stderr   []string `json:"stderr,omitempty"`
}

type FileTestResult struct {
	File    string    `json:"file"`
	Status  string    `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string    `json:"message,omitempty"`
	Diff    string    `json:"diff,omitempty"`
	Compile Execution `json:"compile"`
	AsmSize int       `json:"asm_size,omitempty"`
}

// Report is the JSON file written after a run.
type Report struct {
	RunID    string                     `json:"run_id"`
	Started  string                     `json:"started"`
	Compiler string                     `json:"compiler"`
	Results  map[string]*FileTestResult `json:"results"`
}

var (
	compiler       = flag.String("compiler", "./cbc", "Path to the compiler to test.")
	compilerArgs   = flag.String("args", "", "Extra arguments for the compiler (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate golden .json files for the given source files (space-separated globs).")
	testFiles      = flag.String("test-files", "tests/*.cb", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each compiler run.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

var au = util.Colorizer(os.Stdout)

func main() {
	flag.Parse()
	log.SetFlags(0)

	// Single tempDir for all test artifacts
	tempDir, err := os.MkdirTemp("", "cbtest-*")
	if err != nil {
		log.Fatalf("%s Failed to create temp directory: %v\n", au.Red("[ERROR]"), err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden, tempDir)
		return
	}
	if !handleRunTestSuite(tempDir) {
		os.RemoveAll(tempDir)
		os.Exit(1)
	}
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s Test run cancelled. Cleaning up...\n", au.Yellow("[INTERRUPT]"))
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile)) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func handleGenerateGolden(patterns, tempDir string) {
	files, err := expandGlobPatterns(patterns)
	if err != nil {
		log.Fatalf("%s Invalid glob pattern(s): %v\n", au.Red("[ERROR]"), err)
	}
	for _, sourceFile := range files {
		fileHash, err := hashFile(sourceFile)
		if err != nil {
			log.Fatalf("%s Could not hash source file %s: %v\n", au.Red("[ERROR]"), sourceFile, err)
		}
		golden, _, _, err := compile(sourceFile, tempDir, fileHash)
		if err != nil {
			log.Fatalf("%s Could not compile %s: %v\n", au.Red("[ERROR]"), sourceFile, err)
		}
		jsonData, err := json.MarshalIndent(golden, "", "  ")
		if err != nil {
			log.Fatalf("%s Failed to marshal golden data to JSON: %v\n", au.Red("[ERROR]"), err)
		}
		goldenFileName := getJSONPath(sourceFile)
		if *jsonDir != "" {
			if err := os.MkdirAll(*jsonDir, 0755); err != nil {
				log.Fatalf("%s Failed to create directory %s: %v\n", au.Red("[ERROR]"), *jsonDir, err)
			}
		}
		if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
			log.Fatalf("%s Failed to write golden file %s: %v\n", au.Red("[ERROR]"), goldenFileName, err)
		}
		log.Printf("%s Golden file created at %s\n", au.Green("[SUCCESS]"), goldenFileName)
	}
}

// handleRunTestSuite reports whether every file passed or was skipped.
func handleRunTestSuite(tempDir string) bool {
	started := time.Now()
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s Invalid glob pattern(s): %v\n", au.Red("[ERROR]"), err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return true
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	type task struct{ file, hash string }
	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				resultsChan <- testFile(t.file, tempDir, t.hash)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- task{file, fileHash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	report := writeJSONReport(allResults, started)
	return !hasFailures(report.Results)
}

func testFile(file, tempDir, fileHash string) *FileTestResult {
	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}
	var want Golden
	if err := json.Unmarshal(goldenData, &want); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	got, run, size, err := compile(file, tempDir, fileHash)
	result := &FileTestResult{File: file, Compile: run, AsmSize: size}
	if err != nil {
		result.Status, result.Message = "ERROR", err.Error()
		return result
	}
	if want.Hash != "" && want.Hash != fileHash && *verbose {
		log.Printf("[%s] source changed since the golden file was generated", file)
	}
	if diff := compareGolden(&want, got); diff != "" {
		result.Status, result.Message, result.Diff = "FAIL", "Output or diagnostics mismatch", diff
		return result
	}
	result.Status, result.Message = "PASS", "Output matches golden file"
	return result
}

// compile runs the compiler on sourceFile from the file's directory, so
// that diagnostics name the file the same way on every machine.
func compile(sourceFile, tempDir, fileHash string) (*Golden, Execution, int, error) {
	compilerPath, err := filepath.Abs(*compiler)
	if err != nil {
		return nil, Execution{}, 0, err
	}
	asmFile := filepath.Join(tempDir, fileHash+"-"+uuid.NewString()+".asm")
	defer os.Remove(asmFile)

	args := append(strings.Fields(*compilerArgs), "-o", asmFile, filepath.Base(sourceFile))
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	run := executeCommand(ctx, filepath.Dir(sourceFile), compilerPath, args...)
	if run.TimedOut {
		return nil, run, 0, fmt.Errorf("compiler timed out after %s", *timeout)
	}
	if run.ExitCode < 0 {
		return nil, run, 0, fmt.Errorf("could not run compiler: %s", run.Stderr)
	}

	g := &Golden{Hash: fileHash, Args: strings.Fields(*compilerArgs), ExitCode: run.ExitCode}
	g.Stderr = splitLines(strings.ReplaceAll(run.Stderr, tempDir, "$TMP"))
	size := 0
	if run.ExitCode == 0 {
		asm, err := os.ReadFile(asmFile)
		if err != nil {
			return nil, run, 0, fmt.Errorf("compiler succeeded but wrote no output: %w", err)
		}
		size = len(asm)
		g.Asm = splitLines(string(asm))
	}
	return g, run, size, nil
}

// compareGolden returns a readable diff, empty when got matches want.
func compareGolden(want, got *Golden) string {
	ignored := []string{}
	if *ignoreLines != "" {
		ignored = strings.Split(*ignoreLines, ",")
	}
	var diffs strings.Builder
	if want.ExitCode != got.ExitCode {
		diffs.WriteString(fmt.Sprintf("Exit Code mismatch:\n  - Golden: %d\n  - Target: %d\n", want.ExitCode, got.ExitCode))
	}
	if d := cmp.Diff(filterLines(want.Asm, ignored), filterLines(got.Asm, ignored)); d != "" {
		diffs.WriteString("Assembly mismatch (-golden +target):\n" + d)
	}
	if d := cmp.Diff(filterLines(want.Stderr, ignored), filterLines(got.Stderr, ignored)); d != "" {
		diffs.WriteString("Diagnostics mismatch (-golden +target):\n" + d)
	}
	return diffs.String()
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func filterLines(lines []string, ignoredSubstrings []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			out = append(out, line)
		}
	}
	return out
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, dir, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err != nil:
		result.ExitCode = -2
		result.Stderr += "\nExecution error: " + err.Error()
	}
	return result
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored, totalSize int
	var totalCompile time.Duration

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s...\n", au.Cyan(result.File))

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%s] %s\n", au.Green("PASS"), result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%s] %s\n", au.Red("FAIL"), result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%s] %s\n", au.Yellow("SKIP"), result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%s] %s\n", au.Red("ERROR"), result.Message)
		}
		totalCompile += result.Compile.Duration
		totalSize += result.AsmSize
		if *verbose && result.Compile.Duration > 0 {
			fmt.Printf("  compile: %s, output: %s\n", result.Compile.Duration.Round(time.Microsecond), humanize.Bytes(uint64(result.AsmSize)))
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%s %s, %s, %s, %s, %d Total\n",
		au.Bold("Test Summary:"),
		au.Green(fmt.Sprintf("%d Passed", passed)),
		au.Red(fmt.Sprintf("%d Failed", failed)),
		au.Yellow(fmt.Sprintf("%d Skipped", skipped)),
		au.Red(fmt.Sprintf("%d Errored", errored)),
		len(results))
	compiled := passed + failed
	if compiled > 0 {
		fmt.Printf("Compiled %s of assembly, %s per file on average.\n",
			humanize.Bytes(uint64(totalSize)), (totalCompile / time.Duration(compiled)).Round(time.Microsecond))
	}
}

// formatDiff indents a diff under its result line.
func formatDiff(diff string) string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "-"):
			sb.WriteString("      " + au.Red(line).String() + "\n")
		case strings.HasPrefix(strings.TrimSpace(line), "+"):
			sb.WriteString("      " + au.Green(line).String() + "\n")
		default:
			sb.WriteString("      " + line + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeJSONReport(results []*FileTestResult, started time.Time) *Report {
	report := &Report{
		RunID:    uuid.NewString(),
		Started:  strftime.Format("%Y-%m-%d %H:%M:%S %z", started),
		Compiler: *compiler,
		Results:  make(map[string]*FileTestResult, len(results)),
	}
	for _, r := range results {
		report.Results[r.File] = r
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("%s Failed to marshal results to JSON: %v\n", au.Red("[ERROR]"), err)
		return report
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s Failed to create dir %s: %v\n", au.Red("[ERROR]"), *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}
	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s Failed to write JSON report to %s: %v\n", au.Red("[ERROR]"), outputFile, err)
	} else {
		fmt.Printf("Full test report %s saved to %s\n", report.RunID, outputFile)
	}
	return report
}

func hasFailures(results map[string]*FileTestResult) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue // Skip files we can't resolve
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
