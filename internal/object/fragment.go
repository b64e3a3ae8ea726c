package object

import (
	"arbor/internal/ast"
	"arbor/internal/code"
)

// MacroCall is a macro invocation whose function was unknown at compile
// time. Method macros take their receiver from the stack.
type MacroCall struct {
	Name   string
	Method bool
	Args   []ast.Node
}

// Program is the compiled form of a fragment.
type Program struct {
	Instructions code.Instructions
	Constants    []Value
	Functions    []*FunctionTemplate
	Patterns     [][]*Parameter
	Macros       []MacroCall
	Labels       map[string]code.Label
}

func (p *Program) String() string {
	return code.Format(p.Instructions, p.Labels)
}

// Fragment is a tree together with its lazily compiled program. It is
// compiled at most once and keeps the program for its whole life.
type Fragment struct {
	node    ast.Node
	program *Program
}

func NewFragment(node ast.Node) *Fragment {
	return &Fragment{node: node}
}

func (f *Fragment) Node() ast.Node { return f.node }

func (f *Fragment) Compiled() bool { return f.program != nil }

func (f *Fragment) Program() *Program { return f.program }

// SetProgram stores the compiled program; later calls are ignored.
func (f *Fragment) SetProgram(p *Program) {
	if f.program == nil {
		f.program = p
	}
}
