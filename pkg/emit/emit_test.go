package emit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndentation(t *testing.T) {
	w := New()
	w.Line("main proc")
	w.Indent()
	w.Comment("Function: void main() { ... }")
	w.Line("push bp")
	w.Dedent()
	w.Dedent()
	w.Blank()
	w.Line("END program")

	var sb strings.Builder
	if _, err := w.WriteTo(&sb); err != nil {
		t.Fatal(err)
	}
	want := "main proc\n    ; Function: void main() { ... }\n    push bp\n\nEND program\n"
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}
