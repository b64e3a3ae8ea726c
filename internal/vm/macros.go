package vm

import (
	"arbor/internal/ast"
	"arbor/internal/code"
	"arbor/internal/compiler"
	"arbor/internal/object"
)

// macroArgs splits the arguments of a macro call into the compiler handle
// passed last and the expression handles before it.
func macroArgs(args []object.Value, result *object.Result) (*compiler.Compiler, []ast.Node, bool) {
	if len(args) == 0 {
		raise(result, "Macro called without a compiler")
		return nil, nil, false
	}
	c, ok := compilerOf(args[len(args)-1])
	if !ok {
		raise(result, "Macro called without a compiler, got %s", object.ValueName(args[len(args)-1]))
		return nil, nil, false
	}
	nodes := make([]ast.Node, 0, len(args)-1)
	for _, a := range args[:len(args)-1] {
		e, ok := a.(*object.Expression)
		if !ok {
			raise(result, "Expected an expression, got %s", object.ValueName(a))
			return nil, nil, false
		}
		nodes = append(nodes, e.Node)
	}
	return c, nodes, true
}

func compilerOf(v object.Value) (*compiler.Compiler, bool) {
	h, ok := v.(*object.UnmanagedHandle)
	if !ok {
		return nil, false
	}
	c, ok := h.Value.(*compiler.Compiler)
	return c, ok
}

// macro wraps emit so that compile errors surface as exceptions of the
// macro call.
func macro(realm *object.Realm, emit func(c *compiler.Compiler, nodes []ast.Node) error) *object.NativeFunction {
	return realm.NewNative(nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		c, nodes, ok := macroArgs(args, result)
		if !ok {
			return
		}
		if err := emit(c, nodes); err != nil {
			fail(result, err)
		}
	})
}

func compileOrVoid(c *compiler.Compiler, n ast.Node) error {
	if n == nil {
		c.Push(object.Void)
		return nil
	}
	return c.Compile(n)
}

func labelName(n ast.Node) (string, bool) {
	switch n := n.(type) {
	case *ast.Identifier:
		return n.Name, true
	case *ast.StringLiteral:
		return n.Value, true
	}
	return "", false
}

func emitIf(c *compiler.Compiler, nodes []ast.Node) error {
	c.Push(object.Void)
	end := c.NewLabel()
	i := 0
	for ; i+1 < len(nodes); i += 2 {
		next := c.NewLabel()
		if err := c.Compile(nodes[i]); err != nil {
			return err
		}
		c.Branch(next, code.IfFalse)
		c.Discard()
		if err := c.Compile(nodes[i+1]); err != nil {
			return err
		}
		c.Jump(end)
		if err := c.Mark(next); err != nil {
			return err
		}
	}
	if i < len(nodes) {
		c.Discard()
		if err := c.Compile(nodes[i]); err != nil {
			return err
		}
	}
	return c.Mark(end)
}

func emitWhile(c *compiler.Compiler, nodes []ast.Node) error {
	if len(nodes) != 2 {
		return c.Errorf("@while expects a condition and a body, got %d arguments", len(nodes))
	}
	start, end := c.NewLabel(), c.NewLabel()
	c.Push(object.Void)
	if err := c.Mark(start); err != nil {
		return err
	}
	if err := c.Compile(nodes[0]); err != nil {
		return err
	}
	c.Branch(end, code.IfFalse)
	c.Discard()
	if err := c.Compile(nodes[1]); err != nil {
		return err
	}
	c.Jump(start)
	return c.Mark(end)
}

func emitReturn(c *compiler.Compiler, nodes []ast.Node) error {
	if len(nodes) > 1 {
		return c.Errorf("@return expects at most one value, got %d", len(nodes))
	}
	var value ast.Node
	if len(nodes) == 1 {
		value = nodes[0]
	}
	if err := compileOrVoid(c, value); err != nil {
		return err
	}
	c.Return()
	return nil
}

func emitGoto(c *compiler.Compiler, nodes []ast.Node) error {
	if len(nodes) == 0 || len(nodes) > 2 {
		return c.Errorf("@goto expects a label and an optional value, got %d arguments", len(nodes))
	}
	name, ok := labelName(nodes[0])
	if !ok {
		return c.Errorf("@goto expects a label name, got %s", nodes[0].String())
	}
	var value ast.Node
	if len(nodes) == 2 {
		value = nodes[1]
	}
	if err := compileOrVoid(c, value); err != nil {
		return err
	}
	c.Unwind(name)
	return nil
}

// shortCircuit emits `left; dup; branch(end, cond); discard; right; end:`.
func shortCircuit(name string, cond code.Condition) func(c *compiler.Compiler, nodes []ast.Node) error {
	return func(c *compiler.Compiler, nodes []ast.Node) error {
		if len(nodes) != 2 {
			return c.Errorf("%s expects two operands, got %d", name, len(nodes))
		}
		end := c.NewLabel()
		if err := c.Compile(nodes[0]); err != nil {
			return err
		}
		c.Duplicate()
		c.Branch(end, cond)
		c.Discard()
		if err := c.Compile(nodes[1]); err != nil {
			return err
		}
		return c.Mark(end)
	}
}

func declareMacros(scope *object.Scope) {
	realm := scope.Realm()
	declareGlobal(scope, "@if", macro(realm, emitIf))
	declareGlobal(scope, "@while", macro(realm, emitWhile))
	declareGlobal(scope, "@return", macro(realm, emitReturn))
	declareGlobal(scope, "@goto", macro(realm, emitGoto))

	declare(realm.Table, object.OpAnd, macro(realm, shortCircuit(object.OpAnd, code.IfFalse)))
	declare(realm.Table, object.OpOr, macro(realm, shortCircuit(object.OpOr, code.IfTrue)))
	declare(realm.Table, object.OpCoalesce, macro(realm, shortCircuit(object.OpCoalesce, code.IfPresent)))
	declare(realm.Table, object.OpElse, macro(realm, shortCircuit(object.OpElse, code.IfDefined)))
}

var branchConditions = map[string]code.Condition{
	"false":   code.IfFalse,
	"true":    code.IfTrue,
	"present": code.IfPresent,
	"defined": code.IfDefined,
}

// declareCompilerMethods exposes the code generation interface to script
// macros through the compiler handle.
func declareCompilerMethods(realm *object.Realm) {
	proto := realm.Compiler
	method := func(name string, params []string, types []object.Type, fn func(c *compiler.Compiler, args []object.Value, result *object.Result)) {
		declare(proto, name, native(realm,
			append([]string{"this"}, params...),
			append([]object.Type{object.UNMANAGED_HANDLE_OBJ}, types...),
			func(args []object.Value, scope *object.Scope, result *object.Result) {
				c, ok := compilerOf(args[0])
				if !ok {
					raise(result, "Expected a compiler, got %s", object.ValueName(args[0]))
					return
				}
				fn(c, args[1:], result)
			}))
	}

	method("compile", []string{"expression"}, []object.Type{object.EXPRESSION_OBJ}, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		if err := c.Compile(args[0].(*object.Expression).Node); err != nil {
			fail(result, err)
		}
	})
	method("label", nil, nil, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		result.Set(object.String(c.NewLabel()))
	})
	method("mark", []string{"name"}, []object.Type{object.STRING_OBJ}, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		if err := c.Mark(string(args[0].(object.String))); err != nil {
			fail(result, err)
		}
	})
	method("jump", []string{"name"}, []object.Type{object.STRING_OBJ}, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		c.Jump(string(args[0].(object.String)))
	})
	method("branch", []string{"name", "when?"}, []object.Type{object.STRING_OBJ, object.STRING_OBJ}, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		cond := code.IfTrue
		if len(args) > 1 && !object.IsVoid(args[1]) {
			when := string(args[1].(object.String))
			var ok bool
			if cond, ok = branchConditions[when]; !ok {
				raise(result, "Unknown branch condition %q", when)
				return
			}
		}
		c.Branch(string(args[0].(object.String)), cond)
	})
	method("discard", nil, nil, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		c.Discard()
	})
	method("duplicate", nil, nil, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		c.Duplicate()
	})
	method("push", []string{"value"}, []object.Type{""}, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		c.Push(args[0])
	})
	method("ret", nil, nil, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		c.Return()
	})
	method("unwind", []string{"name"}, []object.Type{object.STRING_OBJ}, func(c *compiler.Compiler, args []object.Value, result *object.Result) {
		c.Unwind(string(args[0].(object.String)))
	})
}
