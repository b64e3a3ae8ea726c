package diag

import (
	"path/filepath"
	"strings"

	"arbor/internal/ast"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ToLspRange converts a position to a 0-based LSP range; the intrinsic
// position maps to the empty range at the start.
func ToLspRange(pos ast.Position) protocol.Range {
	if pos.Document == nil {
		return protocol.Range{}
	}
	line, col := pos.Document.Cursor(pos.Offset)
	endLine, endCol := pos.Document.Cursor(pos.Offset + max(pos.Length, 1))
	return protocol.Range{
		Start: protocol.Position{Line: uint32(line), Character: uint32(col)},
		End:   protocol.Position{Line: uint32(endLine), Character: uint32(endCol)},
	}
}

// DocumentURI returns the URI clients use to refer to a document path.
func DocumentURI(path string) protocol.DocumentUri {
	if strings.Contains(path, "://") {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

// ToLSP converts a diagnostic tree into one LSP diagnostic. Nested causes are
// flattened, depth first, into related information so that clients can
// navigate to every position involved.
func (d *Diagnostic) ToLSP() protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	switch d.Severity {
	case SeverityWarning:
		severity = protocol.DiagnosticSeverityWarning
	case SeverityInfo:
		severity = protocol.DiagnosticSeverityInformation
	}

	pd := protocol.Diagnostic{
		Range:    ToLspRange(d.Position),
		Severity: &severity,
		Source:   ptrString("arbor"),
		Message:  d.Message,
	}
	if d.Code != "" {
		code := protocol.IntegerOrString{Value: d.Code}
		pd.Code = &code
	}
	var walk func(c *Diagnostic, depth int)
	walk = func(c *Diagnostic, depth int) {
		uri := protocol.DocumentUri("")
		if c.Position.Document != nil {
			uri = DocumentURI(c.Position.Document.Path)
		}
		pd.RelatedInformation = append(pd.RelatedInformation, protocol.DiagnosticRelatedInformation{
			Location: protocol.Location{URI: uri, Range: ToLspRange(c.Position)},
			Message:  strings.Repeat("  ", depth) + c.Message,
		})
		for _, cc := range c.Causes {
			walk(cc, depth+1)
		}
	}
	for _, c := range d.Causes {
		walk(c, 0)
	}
	return pd
}

func ToLspDiagnostics(ds []*Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ToLSP())
	}
	return out
}

func ptrString(s string) *string { return &s }
