package ast

import (
	"bytes"
	"strconv"
	"strings"
)

// Node is one expression of the tree handed over by the parser (or by a
// host). Every construct is an expression; there are no statements.
type Node interface {
	Pos() Position
	String() string
	expressionNode()
}

type NumberLiteral struct {
	Position Position
	Value    float64
}

func (*NumberLiteral) expressionNode()  {}
func (n *NumberLiteral) Pos() Position  { return n.Position }
func (n *NumberLiteral) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

type StringLiteral struct {
	Position Position
	Value    string
}

func (*StringLiteral) expressionNode()  {}
func (s *StringLiteral) Pos() Position  { return s.Position }
func (s *StringLiteral) String() string { return strconv.Quote(s.Value) }

type ArrayLiteral struct {
	Position Position
	Elements []Node
}

func (*ArrayLiteral) expressionNode() {}
func (a *ArrayLiteral) Pos() Position { return a.Position }
func (a *ArrayLiteral) String() string {
	return "[" + joinNodes(a.Elements) + "]"
}

type Identifier struct {
	Position Position
	Name     string
}

func (*Identifier) expressionNode()  {}
func (i *Identifier) Pos() Position  { return i.Position }
func (i *Identifier) String() string { return i.Name }

// VariableDeclaration marks its target (an Identifier, a MemberAccess or an
// ArrayLiteral pattern) as a declaration rather than an assignment: `$x`.
type VariableDeclaration struct {
	Position Position
	Target   Node
}

func (*VariableDeclaration) expressionNode()  {}
func (v *VariableDeclaration) Pos() Position  { return v.Position }
func (v *VariableDeclaration) String() string { return "$" + v.Target.String() }

type Assignment struct {
	Position Position
	Receiver Node
	Value    Node
}

func (*Assignment) expressionNode() {}
func (a *Assignment) Pos() Position { return a.Position }
func (a *Assignment) String() string {
	return a.Receiver.String() + " = " + a.Value.String()
}

// AdvancedAssignment is a compound assignment such as `x += 1`; Operator is
// the operator method name (`k:add`).
type AdvancedAssignment struct {
	Position Position
	Operator string
	Receiver Node
	Value    Node
}

func (*AdvancedAssignment) expressionNode() {}
func (a *AdvancedAssignment) Pos() Position { return a.Position }
func (a *AdvancedAssignment) String() string {
	return a.Receiver.String() + " " + a.Operator + "= " + a.Value.String()
}

type MemberAccess struct {
	Position Position
	Receiver Node
	Member   string
}

func (*MemberAccess) expressionNode()  {}
func (m *MemberAccess) Pos() Position  { return m.Position }
func (m *MemberAccess) String() string { return m.Receiver.String() + "." + m.Member }

type Group struct {
	Position Position
	Children []Node
}

func (*Group) expressionNode() {}
func (g *Group) Pos() Position { return g.Position }
func (g *Group) String() string {
	return "(" + joinNodes(g.Children) + ")"
}

type FunctionDeclaration struct {
	Position   Position
	Parameters []*Parameter
	Body       Node
}

func (*FunctionDeclaration) expressionNode() {}
func (f *FunctionDeclaration) Pos() Position { return f.Position }
func (f *FunctionDeclaration) String() string {
	var out bytes.Buffer
	out.WriteString("\\(")
	for i, p := range f.Parameters {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(p.String())
	}
	out.WriteString(") ")
	out.WriteString(f.Body.String())
	return out.String()
}

// Label names a jump target. Target may be nil for a bare label that only
// marks a position inside a group.
type Label struct {
	Position Position
	Name     string
	Target   Node
}

func (*Label) expressionNode() {}
func (l *Label) Pos() Position { return l.Position }
func (l *Label) String() string {
	if l.Target == nil {
		return l.Name + ":"
	}
	return l.Name + ": " + l.Target.String()
}

type Invocation struct {
	Position  Position
	Target    Node
	Arguments []Node
}

func (*Invocation) expressionNode() {}
func (i *Invocation) Pos() Position { return i.Position }
func (i *Invocation) String() string {
	return i.Target.String() + "(" + joinNodes(i.Arguments) + ")"
}

type MapEntry struct {
	Key   Node
	Value Node
}

type MapLiteral struct {
	Position Position
	Entries  []MapEntry
}

func (*MapLiteral) expressionNode() {}
func (m *MapLiteral) Pos() Position { return m.Position }
func (m *MapLiteral) String() string {
	parts := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		parts = append(parts, e.Key.String()+": "+e.Value.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type Spread struct {
	Position Position
	Target   Node
}

func (*Spread) expressionNode()  {}
func (s *Spread) Pos() Position  { return s.Position }
func (s *Spread) String() string { return "..." + s.Target.String() }

// Constant carries a value that was already computed at run time, such as
// the receiver handed to a late-bound macro. Parsers never produce it.
type Constant struct {
	Position Position
	Value    any
}

func (*Constant) expressionNode()  {}
func (c *Constant) Pos() Position  { return c.Position }
func (c *Constant) String() string { return "<constant>" }

func joinNodes(nodes []Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		parts = append(parts, n.String())
	}
	return strings.Join(parts, ", ")
}
