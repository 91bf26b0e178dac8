// Package emit buffers assembly lines until generation has succeeded.
package emit

import (
	"bytes"
	"io"
	"strings"
)

const indentUnit = "    "

type Writer struct {
	lines  []string
	indent int
}

func New() *Writer { return &Writer{} }

// Line appends an instruction at the current indentation.
func (w *Writer) Line(s string) {
	w.lines = append(w.lines, strings.Repeat(indentUnit, w.indent)+s)
}

func (w *Writer) Comment(s string) { w.Line("; " + s) }

func (w *Writer) Blank() { w.lines = append(w.lines, "") }

func (w *Writer) Indent() { w.indent++ }

func (w *Writer) Dedent() {
	if w.indent > 0 {
		w.indent--
	}
}

func (w *Writer) Lines() []string { return w.lines }

func (w *Writer) Bytes() []byte {
	var buf bytes.Buffer
	for _, l := range w.lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	n, err := out.Write(w.Bytes())
	return int64(n), err
}
