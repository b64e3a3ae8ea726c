package diag

import (
	"fmt"
	"strings"

	"arbor/internal/ast"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Diagnostic is a message anchored to a source position, with an ordered
// list of nested causes. It doubles as the Go error returned at host
// boundaries.
type Diagnostic struct {
	Code     string
	Message  string
	Severity Severity
	Position ast.Position
	Causes   []*Diagnostic
}

func New(pos ast.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{Message: fmt.Sprintf(format, args...), Position: pos}
}

// Wrap returns a diagnostic whose single cause is the given one.
func Wrap(cause *Diagnostic, pos ast.Position, format string, args ...any) *Diagnostic {
	d := New(pos, format, args...)
	if cause != nil {
		d.Causes = append(d.Causes, cause)
	}
	return d
}

func (d *Diagnostic) With(causes ...*Diagnostic) *Diagnostic {
	for _, c := range causes {
		if c != nil {
			d.Causes = append(d.Causes, c)
		}
	}
	return d
}

func (d *Diagnostic) Error() string {
	if d.Position.IsIntrinsic() {
		return d.Message
	}
	return d.Position.String() + ": " + d.Message
}

// Root follows the first cause down to the innermost diagnostic.
func (d *Diagnostic) Root() *Diagnostic {
	for len(d.Causes) > 0 {
		d = d.Causes[0]
	}
	return d
}

// Format renders the diagnostic tree, one line per diagnostic, causes
// indented under their parent.
func (d *Diagnostic) Format() string {
	var b strings.Builder
	d.format(&b, 0)
	return b.String()
}

func (d *Diagnostic) format(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	if depth == 0 {
		b.WriteString(d.Severity.String())
		if d.Code != "" {
			b.WriteString(" " + d.Code)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	if !d.Position.IsIntrinsic() {
		b.WriteString(" (at " + d.Position.String() + ")")
	}
	b.WriteString("\n")
	for _, c := range d.Causes {
		c.format(b, depth+1)
	}
}
