package compiler

import (
	"fmt"

	"arbor/internal/ast"
	"arbor/internal/code"
	"arbor/internal/diag"
	"arbor/internal/object"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("arbor.compiler")

// anchor is a point inside an argument list whose run-time stack height is
// recorded, so that labels after it can be unwound to.
type anchor struct {
	id      int
	base    int
	dynamic int
}

// Invoker runs functions at compile time. The VM provides it so that the
// compiler can expand macros without depending on the VM package. Call
// passes args exactly as given; no receiver is prepended.
type Invoker interface {
	Call(fn object.Function, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result)
}

// Compiler turns one fragment's tree into instructions. Macros found while
// compiling run against the same Compiler through its exported emit methods.
type Compiler struct {
	instructions code.Instructions
	constants    []object.Value
	functions    []*object.FunctionTemplate
	patterns     [][]*object.Parameter
	macros       []object.MacroCall
	labels       map[string]code.Label
	nextLabel    int
	anchors      []anchor
	nextAnchor   int

	// depth is the static value-stack depth relative to the fragment start;
	// dynamic counts open argument lists whose run-time depth is unknown.
	depth   int
	dynamic int
	pos     ast.Position

	scope   *object.Scope
	result  *object.Result
	invoker Invoker
}

func New(scope *object.Scope, result *object.Result, invoker Invoker) *Compiler {
	return &Compiler{
		labels:  map[string]code.Label{},
		scope:   scope,
		result:  result,
		invoker: invoker,
	}
}

// Bytecode resolves every jump against the label table and returns the
// finished program.
func (c *Compiler) Bytecode() *object.Program {
	for i := range c.instructions {
		in := &c.instructions[i]
		if in.Op != code.OpJump && in.Op != code.OpBranch {
			continue
		}
		if l, ok := c.labels[in.Name]; ok {
			in.Target = l.Index
		}
	}
	return &object.Program{
		Instructions: c.instructions,
		Constants:    c.constants,
		Functions:    c.functions,
		Patterns:     c.patterns,
		Macros:       c.macros,
		Labels:       c.labels,
	}
}

func (c *Compiler) emit(op code.Opcode, operand int, name string) int {
	pos := len(c.instructions)
	c.instructions = append(c.instructions, code.Make(op, operand, name, c.pos))
	if def, ok := code.Lookup(op); ok && !def.Dynamic {
		c.depth += def.Effect
	}
	return pos
}

func (c *Compiler) emitConstant(v object.Value) {
	c.constants = append(c.constants, v)
	c.emit(code.OpConstant, len(c.constants)-1, "")
}

func (c *Compiler) errorf(pos ast.Position, format string, args ...any) error {
	return diag.New(pos, format, args...)
}

func (c *Compiler) Compile(node ast.Node) error {
	prev := c.pos
	if p := node.Pos(); !p.IsIntrinsic() || prev.IsIntrinsic() {
		c.pos = p
	}
	defer func() { c.pos = prev }()

	switch n := node.(type) {
	case *ast.NumberLiteral:
		c.emitConstant(object.Number(n.Value))

	case *ast.StringLiteral:
		c.emitConstant(object.String(n.Value))

	case *ast.Constant:
		v, ok := n.Value.(object.Value)
		if !ok {
			return c.errorf(n.Position, "Constant of type %T is not a value", n.Value)
		}
		c.emitConstant(v)

	case *ast.Identifier:
		c.emit(code.OpLoad, 0, n.Name)

	case *ast.ArrayLiteral:
		base := c.depth
		c.emit(code.OpPrepareCollection, len(n.Elements), "")
		c.dynamic++
		if err := c.compileArguments(n.Elements); err != nil {
			return err
		}
		c.emit(code.OpBuildArray, 0, "")
		c.dynamic--
		c.depth = base + 1

	case *ast.MapLiteral:
		base := c.depth
		for _, e := range n.Entries {
			if err := c.Compile(e.Key); err != nil {
				return err
			}
			if err := c.Compile(e.Value); err != nil {
				return err
			}
		}
		c.emit(code.OpBuildMap, len(n.Entries), "")
		c.depth = base + 1

	case *ast.VariableDeclaration:
		return c.compileDeclaration(n, nil)

	case *ast.Assignment:
		return c.compileAssignment(n)

	case *ast.AdvancedAssignment:
		return c.compileUpdate(n)

	case *ast.MemberAccess:
		if object.IsMacroName(n.Member) {
			return c.errorf(n.Position, "Macro %q can only be invoked", n.Member)
		}
		if err := c.Compile(n.Receiver); err != nil {
			return err
		}
		c.emit(code.OpGet, 0, n.Member)

	case *ast.Group:
		return c.compileGroup(n)

	case *ast.Label:
		return c.compileGroup(&ast.Group{Position: n.Position, Children: []ast.Node{n}})

	case *ast.FunctionDeclaration:
		c.functions = append(c.functions, object.NewFunctionTemplate(n))
		c.emit(code.OpDeclareFunction, len(c.functions)-1, "")

	case *ast.Invocation:
		return c.compileInvocation(n)

	case *ast.Spread:
		return c.errorf(n.Position, "Spread operator is only valid in argument lists and array literals")

	default:
		return c.errorf(node.Pos(), "Cannot compile %T", node)
	}
	return nil
}

// compileGroup keeps exactly one value above the group base at every label,
// so that a label is reached with the same stack whether control falls
// through or jumps.
func (c *Compiler) compileGroup(g *ast.Group) error {
	if len(g.Children) == 0 {
		c.emitConstant(object.Void)
		return nil
	}
	if c.dynamic > 0 && hasLabel(g) {
		c.nextAnchor++
		c.anchors = append(c.anchors, anchor{id: c.nextAnchor, base: c.depth, dynamic: c.dynamic})
		c.emit(code.OpAnchor, c.nextAnchor, "")
		defer func() { c.anchors = c.anchors[:len(c.anchors)-1] }()
	}
	hasValue := false
	for _, child := range g.Children {
		if l, ok := child.(*ast.Label); ok {
			if !hasValue {
				c.emitConstant(object.Void)
				hasValue = true
			}
			if err := c.mark(l.Name, l.Position); err != nil {
				return err
			}
			if l.Target == nil {
				continue
			}
			c.emit(code.OpDiscard, 0, "")
			if err := c.Compile(l.Target); err != nil {
				return err
			}
			continue
		}
		if hasValue {
			c.emit(code.OpDiscard, 0, "")
		}
		if err := c.Compile(child); err != nil {
			return err
		}
		hasValue = true
	}
	return nil
}

func hasLabel(g *ast.Group) bool {
	for _, child := range g.Children {
		if _, ok := child.(*ast.Label); ok {
			return true
		}
	}
	return false
}

func (c *Compiler) mark(name string, pos ast.Position) error {
	if _, ok := c.labels[name]; ok {
		return c.errorf(pos, "Duplicate label %q", name)
	}
	l := code.Label{Index: len(c.instructions), Depth: c.depth}
	if c.dynamic > 0 {
		l.Depth = -1
		if n := len(c.anchors); n > 0 && c.anchors[n-1].dynamic == c.dynamic {
			a := c.anchors[n-1]
			l.Depth, l.Anchor = c.depth-a.base, a.id
		}
	}
	c.labels[name] = l
	return nil
}

func (c *Compiler) compileArguments(args []ast.Node) error {
	for _, a := range args {
		if s, ok := a.(*ast.Spread); ok {
			if err := c.Compile(s.Target); err != nil {
				return err
			}
			c.emit(code.OpSpread, 0, "")
			continue
		}
		if err := c.Compile(a); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileAssignment(n *ast.Assignment) error {
	switch r := n.Receiver.(type) {
	case *ast.Identifier:
		if err := c.Compile(n.Value); err != nil {
			return err
		}
		c.emit(code.OpStore, 0, r.Name)
	case *ast.MemberAccess:
		if err := c.Compile(r.Receiver); err != nil {
			return err
		}
		if err := c.Compile(n.Value); err != nil {
			return err
		}
		c.emit(code.OpSet, 0, r.Member)
	case *ast.VariableDeclaration:
		return c.compileDeclaration(r, n.Value)
	case *ast.ArrayLiteral:
		return c.compileDestructure(r, false, n.Value)
	case *ast.Invocation:
		// `a.k:at(i) = v` calls the target with v appended.
		if _, _, ok := macroTarget(r.Target); ok {
			return c.errorf(n.Position, "Cannot assign to a macro invocation")
		}
		base := c.depth
		if err := c.prepareInvocation(r); err != nil {
			return err
		}
		c.dynamic++
		if err := c.compileArguments(r.Arguments); err != nil {
			return err
		}
		if err := c.Compile(n.Value); err != nil {
			return err
		}
		c.emit(code.OpAppendArgument, 0, "")
		c.emit(code.OpInvoke, 0, "")
		c.dynamic--
		c.depth = base + 1
	default:
		return c.errorf(n.Position, "Invalid assignment target %s", n.Receiver.String())
	}
	return nil
}

func (c *Compiler) compileDeclaration(d *ast.VariableDeclaration, value ast.Node) error {
	switch t := d.Target.(type) {
	case *ast.Identifier:
		if err := c.compileValue(value); err != nil {
			return err
		}
		c.emit(code.OpDeclare, 0, t.Name)
	case *ast.MemberAccess:
		if err := c.Compile(t.Receiver); err != nil {
			return err
		}
		if err := c.compileValue(value); err != nil {
			return err
		}
		c.emit(code.OpDeclareProperty, 0, t.Member)
	case *ast.ArrayLiteral:
		return c.compileDestructure(t, true, value)
	default:
		return c.errorf(d.Position, "Invalid declaration target %s", d.Target.String())
	}
	return nil
}

func (c *Compiler) compileValue(value ast.Node) error {
	if value == nil {
		c.emitConstant(object.Void)
		return nil
	}
	return c.Compile(value)
}

func (c *Compiler) compileDestructure(pattern *ast.ArrayLiteral, declare bool, value ast.Node) error {
	params, err := ast.ParseParameters(pattern.Elements)
	if err != nil {
		return c.errorf(pattern.Position, "Invalid destructuring pattern: %v", err)
	}
	if declare {
		for i, p := range params {
			cp := *p
			cp.IsDeclaration = true
			params[i] = &cp
		}
	}
	if err := c.compileValue(value); err != nil {
		return err
	}
	c.patterns = append(c.patterns, object.NewParameters(params))
	c.emit(code.OpDestructure, len(c.patterns)-1, "")
	return nil
}

// compileUpdate lowers `target op= value` so that the target's receiver and
// arguments are evaluated once.
func (c *Compiler) compileUpdate(n *ast.AdvancedAssignment) error {
	base := c.depth
	switch r := n.Receiver.(type) {
	case *ast.Identifier:
		c.emit(code.OpLoad, 0, r.Name)
		if err := c.applyOperator(n.Operator, n.Value); err != nil {
			return err
		}
		c.emit(code.OpStore, 0, r.Name)

	case *ast.MemberAccess:
		if err := c.Compile(r.Receiver); err != nil {
			return err
		}
		c.emit(code.OpDuplicate, 0, "")
		c.emit(code.OpGet, 0, r.Member)
		if err := c.applyOperator(n.Operator, n.Value); err != nil {
			return err
		}
		c.emit(code.OpSet, 0, r.Member)

	case *ast.Invocation:
		if _, _, ok := macroTarget(r.Target); ok {
			return c.errorf(n.Position, "Cannot assign to a macro invocation")
		}
		if err := c.prepareInvocation(r); err != nil {
			return err
		}
		c.dynamic++
		if err := c.compileArguments(r.Arguments); err != nil {
			return err
		}
		c.emit(code.OpDuplicateInvocation, 0, "")
		c.emit(code.OpInvoke, 0, "")
		if err := c.applyOperator(n.Operator, n.Value); err != nil {
			return err
		}
		c.emit(code.OpAppendArgument, 0, "")
		c.emit(code.OpInvoke, 0, "")
		c.dynamic--

	default:
		return c.errorf(n.Position, "Invalid assignment target %s", n.Receiver.String())
	}
	c.depth = base + 1
	return nil
}

// applyOperator invokes operator on the value on top of the stack with the
// compiled value as its argument.
func (c *Compiler) applyOperator(operator string, value ast.Node) error {
	base := c.depth - 1
	c.emit(code.OpPrepareInvoke, 1, operator)
	c.dynamic++
	if err := c.Compile(value); err != nil {
		return err
	}
	c.emit(code.OpInvoke, 0, "")
	c.dynamic--
	c.depth = base + 1
	return nil
}

func (c *Compiler) prepareInvocation(n *ast.Invocation) error {
	argc := len(n.Arguments)
	if m, ok := n.Target.(*ast.MemberAccess); ok {
		if err := c.Compile(m.Receiver); err != nil {
			return err
		}
		c.emit(code.OpPrepareInvoke, argc, m.Member)
		return nil
	}
	if err := c.Compile(n.Target); err != nil {
		return err
	}
	c.emit(code.OpPrepareInvoke, argc, "")
	return nil
}

func (c *Compiler) compileInvocation(n *ast.Invocation) error {
	if name, receiver, ok := macroTarget(n.Target); ok {
		return c.compileMacroInvocation(n, name, receiver)
	}
	base := c.depth
	if err := c.prepareInvocation(n); err != nil {
		return err
	}
	c.dynamic++
	if err := c.compileArguments(n.Arguments); err != nil {
		return err
	}
	c.emit(code.OpInvoke, 0, "")
	c.dynamic--
	c.depth = base + 1
	return nil
}

func (c *Compiler) newLabel() string {
	name := fmt.Sprintf("_%d", c.nextLabel)
	c.nextLabel++
	return name
}
