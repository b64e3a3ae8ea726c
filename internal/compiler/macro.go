package compiler

import (
	"arbor/internal/ast"
	"arbor/internal/code"
	"arbor/internal/diag"
	"arbor/internal/object"
)

// macroTarget recognises `@name(...)` and `receiver.@name(...)`.
func macroTarget(target ast.Node) (name string, receiver ast.Node, ok bool) {
	switch t := target.(type) {
	case *ast.Identifier:
		if object.IsMacroName(t.Name) {
			return t.Name, nil, true
		}
	case *ast.MemberAccess:
		if object.IsMacroName(t.Member) {
			return t.Member, t.Receiver, true
		}
	}
	return "", nil, false
}

// resolveMacro looks a macro up at compile time: plain macros in the compile
// scope, method macros on the root prototype.
func (c *Compiler) resolveMacro(name string, method bool) object.Function {
	var v object.Value
	if method {
		v, _ = c.scope.Realm().Table.Own(name)
	} else if variable := c.scope.Find(name); variable != nil {
		v = variable.Value
	}
	fn, _ := v.(object.Function)
	return fn
}

func (c *Compiler) compileMacroInvocation(n *ast.Invocation, name string, receiver ast.Node) error {
	for _, a := range n.Arguments {
		if _, ok := a.(*ast.Spread); ok {
			return c.errorf(a.Pos(), "Spread operator cannot be passed to macro %s", name)
		}
	}
	if fn := c.resolveMacro(name, receiver != nil); fn != nil {
		return c.Expand(fn, name, receiver, n.Arguments, n.Position)
	}

	// Not known yet: resolve and expand when the code runs.
	log.Debugf("deferring macro %s at %s", name, n.Position)
	base := c.depth
	if receiver != nil {
		if err := c.Compile(receiver); err != nil {
			return err
		}
	}
	c.macros = append(c.macros, object.MacroCall{Name: name, Method: receiver != nil, Args: n.Arguments})
	c.emit(code.OpInvokeMacro, len(c.macros)-1, name)
	c.depth = base + 1
	return nil
}

// Expand runs fn as a macro: it receives an expression handle for the
// receiver (if any) and for each argument, followed by a handle to this
// compiler, and must emit code that leaves exactly one value.
func (c *Compiler) Expand(fn object.Function, name string, receiver ast.Node, args []ast.Node, pos ast.Position) error {
	realm := c.scope.Realm()
	values := make([]object.Value, 0, len(args)+2)
	if receiver != nil {
		values = append(values, object.NewExpression(realm.Table, receiver))
	}
	for _, a := range args {
		values = append(values, object.NewExpression(realm.Table, a))
	}
	values = append(values, object.NewUnmanagedHandle(realm.Compiler, c))

	log.Debugf("expanding macro %s at %s", name, pos)
	base := c.depth
	prev := c.pos
	c.pos = pos
	c.invoker.Call(fn, values, pos, c.scope, c.result)
	c.pos = prev

	switch c.result.Signal {
	case object.SignalFatal:
		return c.result.Err
	case object.SignalException:
		cause := c.result.Diagnostic
		c.result.Clear()
		return diag.Wrap(cause, pos, "Failed to expand macro %s", name)
	case object.SignalLabel:
		label := c.result.Label
		c.result.Clear()
		return c.errorf(pos, "Macro %s did not resolve label '%s'", name, label)
	}
	ret := c.result.Value
	c.result.Set(object.Void)
	if !object.IsVoid(ret) {
		return c.errorf(pos, "Macro %s returned %s; macros must emit code instead of returning a value", name, object.ValueName(ret))
	}
	if c.depth != base+1 {
		return c.errorf(pos, "Macro %s left %d values instead of one", name, c.depth-base)
	}
	return nil
}

// The methods below form the code generation interface macros use through
// their compiler handle.

// Errorf builds a diagnostic at the position being compiled.
func (c *Compiler) Errorf(format string, args ...any) error {
	return c.errorf(c.pos, format, args...)
}

// NewLabel returns a label name unique within this compilation.
func (c *Compiler) NewLabel() string { return c.newLabel() }

// Mark places label name at the next instruction.
func (c *Compiler) Mark(name string) error { return c.mark(name, c.pos) }

func (c *Compiler) Jump(label string) { c.emit(code.OpJump, 0, label) }

// Branch pops the top value and jumps to label when it satisfies cond.
func (c *Compiler) Branch(label string, cond code.Condition) {
	c.emit(code.OpBranch, int(cond), label)
}

func (c *Compiler) Discard() { c.emit(code.OpDiscard, 0, "") }

func (c *Compiler) Duplicate() { c.emit(code.OpDuplicate, 0, "") }

func (c *Compiler) Push(v object.Value) { c.emitConstant(v) }

// Return pops the top value and returns it from the enclosing function.
func (c *Compiler) Return() { c.emit(code.OpReturn, 0, "") }

// Unwind pops the top value and carries it to label, which may live in an
// enclosing evaluation.
func (c *Compiler) Unwind(label string) { c.emit(code.OpUnwind, 0, label) }
