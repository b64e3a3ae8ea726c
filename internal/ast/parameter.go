package ast

import "fmt"

// DiscardName is the parameter name that consumes an input without binding.
const DiscardName = "_"

// Parameter is one entry of a function parameter list or of a destructuring
// pattern.
type Parameter struct {
	Position      Position
	Name          string
	IsDeclaration bool
	IsSpread      bool
	Default       Node
}

func (p *Parameter) String() string {
	s := p.Name
	if p.IsDeclaration {
		s = "$" + s
	}
	if p.IsSpread {
		s = "..." + s
	}
	if p.Default != nil {
		s += " = " + p.Default.String()
	}
	return s
}

// ParseParameter accepts `x`, `$x`, `x = default`, `...x` and combinations
// thereof.
func ParseParameter(node Node) (*Parameter, error) {
	switch n := node.(type) {
	case *Spread:
		p, err := ParseParameter(n.Target)
		if err != nil {
			return nil, err
		}
		if p.IsSpread {
			return nil, fmt.Errorf("nested spread in parameter %q", p.Name)
		}
		p.IsSpread = true
		p.Position = n.Position
		return p, nil
	case *Assignment:
		p, err := ParseParameter(n.Receiver)
		if err != nil {
			return nil, err
		}
		if p.Default != nil {
			return nil, fmt.Errorf("parameter %q has more than one default", p.Name)
		}
		p.Default = n.Value
		p.Position = n.Position
		return p, nil
	case *Identifier:
		return &Parameter{Position: n.Position, Name: n.Name}, nil
	case *VariableDeclaration:
		id, ok := n.Target.(*Identifier)
		if !ok {
			return nil, fmt.Errorf("invalid parameter declaration %s", n.String())
		}
		return &Parameter{Position: n.Position, Name: id.Name, IsDeclaration: true}, nil
	}
	return nil, fmt.Errorf("invalid parameter %s", node.String())
}

// ParseParameters parses every element of a pattern.
func ParseParameters(nodes []Node) ([]*Parameter, error) {
	out := make([]*Parameter, 0, len(nodes))
	for _, n := range nodes {
		p, err := ParseParameter(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
