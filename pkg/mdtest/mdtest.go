// Package mdtest extracts compiler scenarios from markdown documents. A
// scenario starts at a "Test: NAME" heading and holds one cb fence with the
// source plus asm or error fences with the expectations.
package mdtest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// AssertionType names the fence language of an expectation.
type AssertionType string

const (
	// AssertionASM lists lines that must appear in the output in order.
	AssertionASM AssertionType = "asm"
	// AssertionError holds a substring of the expected diagnostic.
	AssertionError AssertionType = "error"
	// AssertionWarning holds a substring of an expected warning.
	AssertionWarning AssertionType = "warning"
)

const inputFence = "cb"

type Assertion struct {
	Type    AssertionType
	Content string
}

// Lines returns the non-blank lines of the assertion, trimmed.
func (a Assertion) Lines() []string {
	var out []string
	for _, l := range strings.Split(a.Content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

type TestCase struct {
	Name       string
	Input      string
	Line       int
	Assertions []Assertion
}

// Extract parses a markdown document and returns its scenarios in order.
func Extract(markdown []byte) ([]TestCase, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []TestCase
	var current *TestCase
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := validate(current); err != nil {
			return err
		}
		cases = append(cases, *current)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, markdown)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if err := flush(); err != nil {
				return ast.WalkStop, err
			}
			current = &TestCase{Name: strings.TrimPrefix(heading, "Test: "), Line: lineOf(n, markdown)}

		case *ast.FencedCodeBlock:
			lang := string(n.Language(markdown))
			content := strings.TrimRight(fenceContent(n, markdown), "\n")
			line := lineOf(n, markdown)
			if current == nil {
				if lang != "" {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of test case", line, lang)
				}
				return ast.WalkContinue, nil
			}
			switch AssertionType(lang) {
			case inputFence:
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple input fences found in test '%s'", line, current.Name)
				}
				current.Input = content
			case AssertionASM, AssertionError, AssertionWarning:
				current.Assertions = append(current.Assertions, Assertion{Type: AssertionType(lang), Content: content})
			case "":
			default:
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, lang, current.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown AST: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cases, nil
}

func validate(tc *TestCase) error {
	if tc.Input == "" {
		return fmt.Errorf("test '%s' has no input fence", tc.Name)
	}
	if len(tc.Assertions) == 0 {
		return fmt.Errorf("test '%s' has no assertion fences", tc.Name)
	}
	return nil
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < block.Lines().Len(); i++ {
		line := block.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based line of the first line of node. Headings and
// fences record their content lines.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	return bytes.Count(source[:node.Lines().At(0).Start], []byte("\n")) + 1
}

// MatchInOrder checks that every line of want occurs in got, in order, with
// surrounding whitespace ignored. It returns the first line not found.
func MatchInOrder(got, want []string) (missing string, ok bool) {
	i := 0
	for _, w := range want {
		for i < len(got) && strings.TrimSpace(got[i]) != w {
			i++
		}
		if i == len(got) {
			return w, false
		}
		i++
	}
	return "", true
}
