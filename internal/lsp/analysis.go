package lsp

import (
	"errors"

	"arbor/internal/ast"
	"arbor/internal/astio"
	"arbor/internal/diag"
	"arbor/internal/object"
	"arbor/internal/vm"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Analysis is what the server knows about one document: the problems found
// while decoding and compiling it, and the names it declares.
type Analysis struct {
	URI         string
	Diagnostics []protocol.Diagnostic
	Symbols     []protocol.DocumentSymbol

	doc    *ast.Document
	defs   map[string]protocol.Location
	labels map[string]protocol.Location
	refs   []*ast.Identifier
}

// Analyze decodes text and compiles it against a fresh global scope, so
// that compile-time macros report their errors too. Nothing is evaluated.
func Analyze(uri, text string) *Analysis {
	a := &Analysis{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
		Symbols:     []protocol.DocumentSymbol{},
		defs:        map[string]protocol.Location{},
		labels:      map[string]protocol.Location{},
	}
	path := UriToPath(uri)
	if path == "" {
		path = uri
	}

	node, err := astio.Decode(path, []byte(text))
	if err != nil {
		a.report(err)
		return a
	}
	a.doc = node.Pos().Document
	a.index(node)

	m := vm.New(nil)
	if _, err := m.Compile(object.NewFragment(node), m.Globals()); err != nil {
		a.report(err)
	}
	return a
}

func (a *Analysis) report(err error) {
	var d *diag.Diagnostic
	if !errors.As(err, &d) {
		d = diag.New(ast.Position{Document: a.doc}, "%s", err)
	}
	a.Diagnostics = append(a.Diagnostics, d.ToLSP())
}

func (a *Analysis) location(pos ast.Position) protocol.Location {
	return protocol.Location{URI: protocol.DocumentUri(a.URI), Range: diag.ToLspRange(pos)}
}

func (a *Analysis) declare(name string, pos ast.Position, kind protocol.SymbolKind) {
	loc := a.location(pos)
	a.Symbols = append(a.Symbols, protocol.DocumentSymbol{
		Name:           name,
		Kind:           kind,
		Range:          loc.Range,
		SelectionRange: loc.Range,
	})
	if kind == protocol.SymbolKindKey {
		if _, ok := a.labels[name]; !ok {
			a.labels[name] = loc
		}
		return
	}
	if _, ok := a.defs[name]; !ok {
		a.defs[name] = loc
	}
}

func (a *Analysis) index(root ast.Node) {
	functions := map[*ast.VariableDeclaration]bool{}
	walk(root, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.Assignment:
			if d, ok := n.Receiver.(*ast.VariableDeclaration); ok {
				if _, ok := n.Value.(*ast.FunctionDeclaration); ok {
					functions[d] = true
				}
			}
		case *ast.VariableDeclaration:
			switch target := n.Target.(type) {
			case *ast.Identifier:
				kind := protocol.SymbolKindVariable
				if functions[n] {
					kind = protocol.SymbolKindFunction
				}
				a.declare(target.Name, target.Position, kind)
			case *ast.ArrayLiteral:
				params, err := ast.ParseParameters(target.Elements)
				if err != nil {
					return
				}
				for _, p := range params {
					if p.Name != ast.DiscardName {
						a.declare(p.Name, p.Position, protocol.SymbolKindVariable)
					}
				}
			}
		case *ast.Label:
			a.declare(n.Name, n.Position, protocol.SymbolKindKey)
		case *ast.Identifier:
			a.refs = append(a.refs, n)
		}
	})
}

// DefinitionAt finds the declaration of the identifier under pos. Variables
// are looked up first, then labels, so `@goto(loop)` leads to `loop:`.
func (a *Analysis) DefinitionAt(pos protocol.Position) (protocol.Location, bool) {
	if a.doc == nil {
		return protocol.Location{}, false
	}
	off := a.doc.Offset(int(pos.Line), int(pos.Character))
	for _, id := range a.refs {
		start := id.Position.Offset
		if off < start || off >= start+max(id.Position.Length, len(id.Name)) {
			continue
		}
		if loc, ok := a.defs[id.Name]; ok {
			return loc, true
		}
		if loc, ok := a.labels[id.Name]; ok {
			return loc, true
		}
		return protocol.Location{}, false
	}
	return protocol.Location{}, false
}

// walk visits n and every node below it, parents first.
func walk(n ast.Node, visit func(ast.Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch n := n.(type) {
	case *ast.VariableDeclaration:
		walk(n.Target, visit)
	case *ast.Assignment:
		walk(n.Receiver, visit)
		walk(n.Value, visit)
	case *ast.AdvancedAssignment:
		walk(n.Receiver, visit)
		walk(n.Value, visit)
	case *ast.MemberAccess:
		walk(n.Receiver, visit)
	case *ast.Group:
		for _, c := range n.Children {
			walk(c, visit)
		}
	case *ast.ArrayLiteral:
		for _, e := range n.Elements {
			walk(e, visit)
		}
	case *ast.FunctionDeclaration:
		for _, p := range n.Parameters {
			if p.Default != nil {
				walk(p.Default, visit)
			}
		}
		walk(n.Body, visit)
	case *ast.Label:
		if n.Target != nil {
			walk(n.Target, visit)
		}
	case *ast.Invocation:
		walk(n.Target, visit)
		for _, arg := range n.Arguments {
			walk(arg, visit)
		}
	case *ast.MapLiteral:
		for _, e := range n.Entries {
			walk(e.Key, visit)
			walk(e.Value, visit)
		}
	case *ast.Spread:
		walk(n.Target, visit)
	}
}
