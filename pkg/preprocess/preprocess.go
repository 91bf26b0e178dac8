// Package preprocess expands includes, object-like macros and conditional
// blocks into the flat line stream the scanner reads. Every output line
// keeps the origin it came from.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xplshn/cbc/pkg/config"
	"github.com/xplshn/cbc/pkg/util"
)

// Source is the preprocessed program. Origins[i] describes Lines[i].
type Source struct {
	Lines   []string
	Origins []string
}

func (s *Source) add(line, origin string) {
	s.Lines = append(s.Lines, line)
	s.Origins = append(s.Origins, origin)
}

type condFrame struct {
	parentActive bool
	cond         bool
	hasElse      bool
}

func (f condFrame) active() bool { return f.parentActive && (f.cond != f.hasElse) }

type Preprocessor struct {
	cfg      *config.Config
	defines  map[string]string
	open     map[string]bool
	warnings []*util.Diagnostic
	// ReadFile loads source files, os.ReadFile by default.
	ReadFile func(string) ([]byte, error)
}

func New(cfg *config.Config) *Preprocessor {
	p := &Preprocessor{
		cfg:      cfg,
		defines:  make(map[string]string),
		open:     make(map[string]bool),
		ReadFile: os.ReadFile,
	}
	for name, value := range cfg.Defines {
		p.defines[name] = value
	}
	return p
}

// Warnings returns the warnings collected so far.
func (p *Preprocessor) Warnings() []*util.Diagnostic { return p.warnings }

// File preprocesses the file at path.
func (p *Preprocessor) File(path string) (*Source, error) {
	src := &Source{}
	if err := p.scan(path, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (p *Preprocessor) scan(path string, out *Source) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if p.open[abs] {
		return util.Errorf("include cycle: %s", path)
	}
	data, err := p.ReadFile(path)
	if err != nil {
		return util.Wrapf(err, "can't open file: %s", path)
	}
	p.open[abs] = true
	defer delete(p.open, abs)

	var ifs []condFrame
	active := func() bool { return len(ifs) == 0 || ifs[len(ifs)-1].active() }

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, raw := range lines {
		origin := fmt.Sprintf("file: %s, line: %d", path, i+1)
		fail := func(format string, args ...interface{}) error {
			return &util.Diagnostic{Message: fmt.Sprintf(format, args...), Origin: origin, Source: raw}
		}
		line := cutComment(raw)
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				out.add(p.replace(line), origin)
			}
			continue
		}

		directive, arg := splitDirective(strings.TrimSpace(trimmed[1:]))
		switch directive {
		case "ifdef", "ifndef":
			if !validName(arg) {
				return fail("invalid definition: %s", arg)
			}
			_, defined := p.defines[arg]
			ifs = append(ifs, condFrame{parentActive: active(), cond: defined == (directive == "ifdef")})
		case "else":
			switch {
			case len(ifs) == 0:
				return fail("else directive without corresponding if")
			case ifs[len(ifs)-1].hasElse:
				return fail("current if already has else directive")
			}
			ifs[len(ifs)-1].hasElse = true
		case "endif":
			if len(ifs) == 0 {
				return fail("endif directive without corresponding if")
			}
			ifs = ifs[:len(ifs)-1]
		case "include":
			if !active() {
				continue
			}
			target, err := p.resolveInclude(path, arg)
			if err != nil {
				return fail("%s", err)
			}
			if err := p.scan(target, out); err != nil {
				return err
			}
		case "define":
			if !active() {
				continue
			}
			name, value := splitDirective(arg)
			if !validName(name) {
				return fail("invalid definition: %s", name)
			}
			if _, ok := p.defines[name]; ok {
				return fail("%s is already defined", name)
			}
			if value == "" {
				value = "1"
			}
			p.defines[name] = value
		case "undef":
			if !active() {
				continue
			}
			if _, ok := p.defines[arg]; !ok {
				return fail("constant is not defined: %s", arg)
			}
			delete(p.defines, arg)
		case "pragma":
			if active() {
				p.pragma(arg, origin, raw)
			}
		default:
			return fail("unknown preprocessor directive: #%s", strings.TrimSpace(trimmed[1:]))
		}
	}
	if len(ifs) > 0 {
		return &util.Diagnostic{Message: "open if directive", Origin: "file: " + path}
	}
	return nil
}

func (p *Preprocessor) resolveInclude(from, arg string) (string, error) {
	switch {
	case len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"':
		name := strings.TrimSpace(arg[1 : len(arg)-1])
		if filepath.IsAbs(name) {
			return name, nil
		}
		return filepath.Join(filepath.Dir(from), name), nil
	case len(arg) >= 2 && arg[0] == '<' && arg[len(arg)-1] == '>':
		name := strings.TrimSpace(arg[1:len(arg)-1]) + ".cb"
		for _, dir := range p.cfg.IncludeDirs {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("can't find library: %s", name)
	}
	return "", fmt.Errorf("invalid include: %s", arg)
}

func (p *Preprocessor) pragma(arg, origin, raw string) {
	ns, flags := splitDirective(arg)
	warn := func(msg string) {
		if p.cfg.IsWarningEnabled(config.WarnExtra) {
			p.warnings = append(p.warnings, &util.Diagnostic{
				Message: msg, Origin: origin, Source: raw,
				Severity: util.SeverityWarning, Flag: p.cfg.WarningFlag(config.WarnExtra),
			})
		}
	}
	if ns != "cbc" {
		warn("unknown pragma: " + ns)
		return
	}
	for _, f := range p.cfg.ProcessDirectiveFlags(flags) {
		warn("unknown pragma flag: " + f)
	}
}

// replace substitutes whole-word macros outside char and string literals.
func (p *Preprocessor) replace(line string) string {
	if len(p.defines) == 0 {
		return line
	}
	var sb strings.Builder
	var quote byte
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(line) {
				sb.WriteString(line[i : i+2])
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case isIdentPart(c):
			start := i
			for i < len(line) && isIdentPart(line[i]) {
				i++
			}
			word := line[start:i]
			if v, ok := p.defines[word]; ok && isIdentStart(word[0]) {
				word = v
			}
			sb.WriteString(word)
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return sb.String()
}

// cutComment strips a // comment that is not inside a literal.
func cutComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

func splitDirective(s string) (string, string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func validName(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
