// Package astio decodes expression trees from YAML (or JSON) documents so
// that hosts without a parser can feed programs to the VM.
//
// A number is a NumberLiteral and any other scalar is an Identifier. Every
// other node is a mapping with a single key naming its kind:
//
//	str: text                    string literal
//	id: name                     identifier
//	array: [a, b]                array literal
//	decl: target                 $target
//	assign: [target, value]
//	update: {op: k:add, target: t, value: v}
//	get: [receiver, name]
//	group: [a, b]                a bare sequence is a group too
//	fn: {params: [a, b], body: node}
//	label: name                  or {name: n, target: node}
//	call: [target, args...]
//	method: [receiver, name, args...]
//	map: [[key, value], ...]
//	spread: target
package astio

import (
	"unicode/utf8"

	"arbor/internal/ast"
	"arbor/internal/diag"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Decode parses data and builds the tree it describes. Syntax errors are
// returned wrapped; malformed nodes are reported as a *diag.Diagnostic
// positioned on the offending node.
func Decode(path string, data []byte) (ast.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", path)
	}
	d := &decoder{doc: ast.NewDocument(path, string(data))}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, diag.New(ast.Position{Document: d.doc}, "Empty document")
	}
	return d.node(root.Content[0])
}

type decoder struct {
	doc *ast.Document
}

func (d *decoder) pos(n *yaml.Node) ast.Position {
	p := ast.Position{Document: d.doc, Offset: d.offset(n.Line-1, n.Column-1)}
	if n.Kind == yaml.ScalarNode && n.Style == 0 {
		p.Length = len(n.Value)
	}
	return p
}

// offset converts a line and a column counted in characters, as yaml
// reports them, into a byte offset.
func (d *decoder) offset(line, col int) int {
	text := d.doc.Content
	off := d.doc.Offset(line, 0)
	for ; col > 0 && off < len(text) && text[off] != '\n'; col-- {
		_, size := utf8.DecodeRuneInString(text[off:])
		off += size
	}
	return off
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	return diag.New(d.pos(n), format, args...)
}

func (d *decoder) node(n *yaml.Node) (ast.Node, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return d.node(n.Alias)
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.SequenceNode:
		children, err := d.nodes(n.Content)
		if err != nil {
			return nil, err
		}
		return &ast.Group{Position: d.pos(n), Children: children}, nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return nil, d.errorf(n, "A node must have exactly one key, found %d", len(n.Content)/2)
		}
		return d.tagged(n, n.Content[0].Value, n.Content[1])
	}
	return nil, d.errorf(n, "Unexpected YAML node")
}

func (d *decoder) nodes(ns []*yaml.Node) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(ns))
	for _, c := range ns {
		node, err := d.node(c)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func (d *decoder) scalar(n *yaml.Node) (ast.Node, error) {
	switch n.ShortTag() {
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, d.errorf(n, "Invalid number %q", n.Value)
		}
		return &ast.NumberLiteral{Position: d.pos(n), Value: f}, nil
	case "!!null":
		return &ast.Identifier{Position: d.pos(n), Name: "null"}, nil
	}
	return &ast.Identifier{Position: d.pos(n), Name: n.Value}, nil
}

func (d *decoder) name(n *yaml.Node, what string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", d.errorf(n, "Expected a %s", what)
	}
	return n.Value, nil
}

func (d *decoder) sequence(n *yaml.Node, kind string, min int) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "%s expects a sequence", kind)
	}
	if len(n.Content) < min {
		return nil, d.errorf(n, "%s expects at least %d elements, got %d", kind, min, len(n.Content))
	}
	return n.Content, nil
}

// fields reads a mapping of named children; unknown keys are errors.
func (d *decoder) fields(n *yaml.Node, kind string, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "%s expects a mapping", kind)
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		ok := false
		for _, a := range allowed {
			if key.Value == a {
				ok = true
				break
			}
		}
		if !ok {
			return nil, d.errorf(key, "Unknown field %q for %s", key.Value, kind)
		}
		out[key.Value] = n.Content[i+1]
	}
	return out, nil
}

func (d *decoder) required(n *yaml.Node, fields map[string]*yaml.Node, kind, key string) (*yaml.Node, error) {
	v, ok := fields[key]
	if !ok {
		return nil, d.errorf(n, "%s is missing %q", kind, key)
	}
	return v, nil
}

func (d *decoder) tagged(n *yaml.Node, kind string, v *yaml.Node) (ast.Node, error) {
	pos := d.pos(n)
	switch kind {
	case "str":
		if v.Kind != yaml.ScalarNode {
			return nil, d.errorf(v, "str expects a scalar")
		}
		return &ast.StringLiteral{Position: pos, Value: v.Value}, nil

	case "id":
		name, err := d.name(v, "name")
		if err != nil {
			return nil, err
		}
		return &ast.Identifier{Position: pos, Name: name}, nil

	case "array":
		items, err := d.sequence(v, kind, 0)
		if err != nil {
			return nil, err
		}
		elements, err := d.nodes(items)
		if err != nil {
			return nil, err
		}
		return &ast.ArrayLiteral{Position: pos, Elements: elements}, nil

	case "group":
		items, err := d.sequence(v, kind, 0)
		if err != nil {
			return nil, err
		}
		children, err := d.nodes(items)
		if err != nil {
			return nil, err
		}
		return &ast.Group{Position: pos, Children: children}, nil

	case "decl", "spread":
		target, err := d.node(v)
		if err != nil {
			return nil, err
		}
		if kind == "decl" {
			return &ast.VariableDeclaration{Position: pos, Target: target}, nil
		}
		return &ast.Spread{Position: pos, Target: target}, nil

	case "assign":
		items, err := d.sequence(v, kind, 2)
		if err != nil {
			return nil, err
		}
		if len(items) != 2 {
			return nil, d.errorf(v, "assign expects [target, value]")
		}
		parts, err := d.nodes(items[:2])
		if err != nil {
			return nil, err
		}
		return &ast.Assignment{Position: pos, Receiver: parts[0], Value: parts[1]}, nil

	case "update":
		fields, err := d.fields(v, kind, "op", "target", "value")
		if err != nil {
			return nil, err
		}
		opNode, err := d.required(v, fields, kind, "op")
		if err != nil {
			return nil, err
		}
		op, err := d.name(opNode, "operator name")
		if err != nil {
			return nil, err
		}
		parts := make([]ast.Node, 2)
		for i, key := range []string{"target", "value"} {
			f, err := d.required(v, fields, kind, key)
			if err != nil {
				return nil, err
			}
			if parts[i], err = d.node(f); err != nil {
				return nil, err
			}
		}
		return &ast.AdvancedAssignment{Position: pos, Operator: op, Receiver: parts[0], Value: parts[1]}, nil

	case "get":
		items, err := d.sequence(v, kind, 2)
		if err != nil {
			return nil, err
		}
		if len(items) != 2 {
			return nil, d.errorf(v, "get expects [receiver, name]")
		}
		receiver, err := d.node(items[0])
		if err != nil {
			return nil, err
		}
		member, err := d.name(items[1], "member name")
		if err != nil {
			return nil, err
		}
		return &ast.MemberAccess{Position: pos, Receiver: receiver, Member: member}, nil

	case "fn":
		fields, err := d.fields(v, kind, "params", "body")
		if err != nil {
			return nil, err
		}
		bodyNode, err := d.required(v, fields, kind, "body")
		if err != nil {
			return nil, err
		}
		body, err := d.node(bodyNode)
		if err != nil {
			return nil, err
		}
		var params []*ast.Parameter
		if p, ok := fields["params"]; ok {
			items, err := d.sequence(p, "params", 0)
			if err != nil {
				return nil, err
			}
			nodes, err := d.nodes(items)
			if err != nil {
				return nil, err
			}
			if params, err = ast.ParseParameters(nodes); err != nil {
				return nil, d.errorf(p, "%s", err)
			}
		}
		return &ast.FunctionDeclaration{Position: pos, Parameters: params, Body: body}, nil

	case "label":
		if v.Kind == yaml.ScalarNode {
			name, err := d.name(v, "label name")
			if err != nil {
				return nil, err
			}
			return &ast.Label{Position: pos, Name: name}, nil
		}
		fields, err := d.fields(v, kind, "name", "target")
		if err != nil {
			return nil, err
		}
		nameNode, err := d.required(v, fields, kind, "name")
		if err != nil {
			return nil, err
		}
		name, err := d.name(nameNode, "label name")
		if err != nil {
			return nil, err
		}
		l := &ast.Label{Position: pos, Name: name}
		if t, ok := fields["target"]; ok {
			if l.Target, err = d.node(t); err != nil {
				return nil, err
			}
		}
		return l, nil

	case "call":
		items, err := d.sequence(v, kind, 1)
		if err != nil {
			return nil, err
		}
		parts, err := d.nodes(items)
		if err != nil {
			return nil, err
		}
		return &ast.Invocation{Position: pos, Target: parts[0], Arguments: parts[1:]}, nil

	case "method":
		items, err := d.sequence(v, kind, 2)
		if err != nil {
			return nil, err
		}
		receiver, err := d.node(items[0])
		if err != nil {
			return nil, err
		}
		member, err := d.name(items[1], "method name")
		if err != nil {
			return nil, err
		}
		args, err := d.nodes(items[2:])
		if err != nil {
			return nil, err
		}
		return &ast.Invocation{
			Position:  pos,
			Target:    &ast.MemberAccess{Position: d.pos(items[1]), Receiver: receiver, Member: member},
			Arguments: args,
		}, nil

	case "map":
		items, err := d.sequence(v, kind, 0)
		if err != nil {
			return nil, err
		}
		m := &ast.MapLiteral{Position: pos}
		for _, item := range items {
			pair, err := d.sequence(item, "map entry", 2)
			if err != nil {
				return nil, err
			}
			if len(pair) != 2 {
				return nil, d.errorf(item, "A map entry must be a [key, value] pair")
			}
			kv, err := d.nodes(pair)
			if err != nil {
				return nil, err
			}
			m.Entries = append(m.Entries, ast.MapEntry{Key: kv[0], Value: kv[1]})
		}
		return m, nil
	}
	return nil, d.errorf(n.Content[0], "Unknown node kind %q", kind)
}
