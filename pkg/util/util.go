// Package util renders compiler diagnostics.
package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-isatty"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is an error or warning tied to a source location. Origin is
// the "file: NAME, line: N" string the preprocessor attached to the line.
type Diagnostic struct {
	Message  string
	Origin   string
	Source   string
	Column   int
	Severity Severity
	// Flag names the -W option that controls a warning.
	Flag string
	// Err is the underlying cause, if any.
	Err error
}

func (d *Diagnostic) Error() string {
	if d.Origin == "" {
		return d.Message
	}
	return fmt.Sprintf("%s, column %d: %s", d.Origin, d.Column+1, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.Err }

// Errorf builds an error diagnostic without a location.
func Errorf(format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Message: fmt.Sprintf(format, args...)}
}

// Wrapf is Errorf with err appended to the message and kept as the cause.
func Wrapf(err error, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Message: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}

// Colorizer returns an aurora instance that only colors terminal output.
func Colorizer(w io.Writer) aurora.Aurora {
	f, ok := w.(*os.File)
	return aurora.NewAurora(ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())))
}

// Report prints err. Diagnostics get the source line and a caret under the
// failing column.
func Report(w io.Writer, err error) {
	au := Colorizer(w)
	var d *Diagnostic
	if !errors.As(err, &d) {
		fmt.Fprintf(w, "%s %v\n", au.Bold(au.Red("error:")), err)
		return
	}

	label := au.Bold(au.Red("error:"))
	if d.Severity == SeverityWarning {
		label = au.Bold(au.Yellow("warning:"))
	}
	msg := d.Message
	if d.Flag != "" {
		msg += " [" + d.Flag + "]"
	}
	fmt.Fprintf(w, "%s %s\n", label, msg)
	if d.Origin == "" {
		return
	}
	fmt.Fprintf(w, "    at %s, column %d\n", d.Origin, d.Column+1)
	fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(d.Source, "\t", " "))
	fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", d.Column), au.Green("^"))
}

// Warn reports a warning diagnostic.
func Warn(w io.Writer, d *Diagnostic) {
	d.Severity = SeverityWarning
	Report(w, d)
}

// Fatal reports err on stderr and exits with status 1.
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(1)
}
