// Package scanner is the character cursor the parser backtracks over.
// A checkpoint pairs a position with the environment sizes, so restoring
// one rewinds both.
package scanner

import (
	"fmt"
	"unicode"

	"github.com/xplshn/cbc/pkg/symbols"
	"github.com/xplshn/cbc/pkg/token"
	"github.com/xplshn/cbc/pkg/util"
)

const (
	EOF = '\000'
	EOL = '\n'
)

type Checkpoint struct {
	pos   token.Pos
	sizes symbols.Sizes
}

func (c Checkpoint) Pos() token.Pos { return c.pos }

type Scanner struct {
	lines   []string
	origins []string
	pos     token.Pos
	Env     *symbols.Env

	failPos token.Pos
	failMsg string
}

// New scans lines. origins[i] names where lines[i] came from.
func New(lines, origins []string, env *symbols.Env) *Scanner {
	return &Scanner{lines: lines, origins: origins, Env: env}
}

func (s *Scanner) Pos() token.Pos { return s.pos }

func (s *Scanner) AtEOF() bool { return s.pos.Line >= len(s.lines) }

// Peek returns the current character, EOL once at the end of every line
// and EOF past the last line.
func (s *Scanner) Peek() rune {
	if s.AtEOF() {
		return EOF
	}
	line := s.lines[s.pos.Line]
	if s.pos.Column >= len(line) {
		return EOL
	}
	return rune(line[s.pos.Column])
}

func (s *Scanner) Consume() rune {
	c := s.Peek()
	switch c {
	case EOF:
	case EOL:
		s.pos = token.Pos{Line: s.pos.Line + 1}
	default:
		s.pos.Column++
	}
	return c
}

func (s *Scanner) SkipWhitespace() int {
	n := 0
	for {
		switch s.Peek() {
		case ' ', '\t', '\r', EOL:
			s.Consume()
			n++
		default:
			return n
		}
	}
}

// TestNext consumes c if it is next.
func (s *Scanner) TestNext(c rune) bool {
	if s.Peek() != c {
		return false
	}
	s.Consume()
	return true
}

// TestString consumes str if the input continues with it.
func (s *Scanner) TestString(str string) bool {
	cp := s.Checkpoint()
	for _, c := range str {
		if !s.TestNext(c) {
			s.Restore(cp, "")
			return false
		}
	}
	return true
}

func show(c rune) string {
	switch c {
	case EOF:
		return "end of file"
	case EOL:
		return "end of line"
	}
	return string(c)
}

// Expect consumes c or restores cp with the mismatch as the reason.
func (s *Scanner) Expect(c rune, cp Checkpoint) bool {
	if got := s.Peek(); got != c {
		s.Restore(cp, fmt.Sprintf("expected: '%s', got: '%s'", show(c), show(got)))
		return false
	}
	s.Consume()
	return true
}

func (s *Scanner) ExpectString(str string, cp Checkpoint) bool {
	for _, c := range str {
		if !s.Expect(c, cp) {
			return false
		}
	}
	return true
}

func (s *Scanner) ExpectWhitespace(cp Checkpoint) bool {
	if s.SkipWhitespace() == 0 {
		s.Restore(cp, fmt.Sprintf("expected: ' ', got: '%s'", show(s.Peek())))
		return false
	}
	return true
}

// ConsumeToEndOfLine returns the rest of the current line and moves to the
// start of the next one.
func (s *Scanner) ConsumeToEndOfLine() string {
	if s.AtEOF() {
		return ""
	}
	rest := s.lines[s.pos.Line][min(s.pos.Column, len(s.lines[s.pos.Line])):]
	s.pos = token.Pos{Line: s.pos.Line + 1}
	return rest
}

// Word consumes an identifier-shaped run of characters.
func (s *Scanner) Word() string {
	start := s.pos
	c := s.Peek()
	if c != '_' && !unicode.IsLetter(c) {
		return ""
	}
	for c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c) {
		s.Consume()
		c = s.Peek()
	}
	return s.lines[start.Line][start.Column:s.pos.Column]
}

func (s *Scanner) Checkpoint() Checkpoint {
	return Checkpoint{pos: s.pos, sizes: s.Env.Sizes()}
}

// Restore rewinds to cp. A non-empty reason is remembered when the failure
// got at least as far as the furthest one seen so far.
func (s *Scanner) Restore(cp Checkpoint, reason string) {
	if reason != "" && (s.failMsg == "" || !s.pos.Before(s.failPos)) {
		s.failPos, s.failMsg = s.pos, reason
	}
	if cp.pos.Before(s.pos) {
		s.pos = cp.pos
	}
	s.Env.Truncate(cp.sizes)
}

// RestoreScope rewinds only the environment.
func (s *Scanner) RestoreScope(cp Checkpoint) { s.Env.Truncate(cp.sizes) }

// Fail records reason at the current position without moving.
func (s *Scanner) Fail(reason string) { s.Restore(Checkpoint{pos: s.pos, sizes: s.Env.Sizes()}, reason) }

// Err returns the furthest failure, or nil when nothing failed.
func (s *Scanner) Err() *util.Diagnostic {
	if s.failMsg == "" {
		return nil
	}
	return s.DiagnosticAt(s.failPos, s.failMsg)
}

// DiagnosticAt builds a diagnostic for pos.
func (s *Scanner) DiagnosticAt(pos token.Pos, msg string) *util.Diagnostic {
	d := &util.Diagnostic{Message: msg, Column: pos.Column}
	if pos.Line < len(s.lines) {
		d.Source = s.lines[pos.Line]
		d.Origin = s.origins[pos.Line]
	} else if n := len(s.lines); n > 0 {
		d.Source = s.lines[n-1]
		d.Origin = s.origins[n-1]
		d.Column = len(d.Source)
	}
	return d
}
