package compiler

import (
	"strings"
	"testing"

	"arbor/internal/ast"
	"arbor/internal/code"
	"arbor/internal/limits"
	"arbor/internal/object"
)

// directInvoker runs native macros without a VM.
type directInvoker struct{}

func (directInvoker) Call(fn object.Function, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	native, ok := fn.(*object.NativeFunction)
	if !ok {
		result.Raisef(pos, "only native macros are supported here")
		return
	}
	result.Set(object.Void)
	native.Handler.Call(args, scope, result)
}

func newCompiler() (*Compiler, *object.Scope) {
	scope := object.NewGlobalScope(object.NewRealm())
	result := object.NewResult(limits.NewBudget(0))
	return New(scope, result, directInvoker{}), scope
}

func compile(t *testing.T, node ast.Node) *object.Program {
	t.Helper()
	c, _ := newCompiler()
	if err := c.Compile(node); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return c.Bytecode()
}

func ops(p *object.Program) []code.Opcode {
	out := make([]code.Opcode, 0, len(p.Instructions))
	for _, in := range p.Instructions {
		out = append(out, in.Op)
	}
	return out
}

func expectOps(t *testing.T, p *object.Program, want ...code.Opcode) {
	t.Helper()
	got := ops(p)
	if len(got) != len(want) {
		t.Fatalf("expected %d instructions, got %d:\n%s", len(want), len(got), p)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("instruction %d: expected %s, got %s:\n%s", i, want[i], got[i], p)
		}
	}
}

func TestGroupDiscardsBetweenChildren(t *testing.T) {
	p := compile(t, ast.Grp(ast.Num(1), ast.Num(2), ast.Num(3)))
	expectOps(t, p, code.OpConstant, code.OpDiscard, code.OpConstant, code.OpDiscard, code.OpConstant)
}

func TestEmptyGroup(t *testing.T) {
	p := compile(t, ast.Grp())
	expectOps(t, p, code.OpConstant)
	if p.Constants[0] != object.Void {
		t.Fatalf("expected void constant, got %s", object.ValueName(p.Constants[0]))
	}
}

func TestLabelLayout(t *testing.T) {
	p := compile(t, ast.Grp(ast.Num(1), ast.Lbl("a", nil), ast.Num(2)))
	expectOps(t, p, code.OpConstant, code.OpDiscard, code.OpConstant)
	if l := p.Labels["a"]; l.Index != 1 || l.Depth != 1 {
		t.Fatalf("unexpected label %+v", l)
	}

	// A leading label gets a value to stand on.
	p = compile(t, ast.Grp(ast.Lbl("a", nil), ast.Num(1)))
	expectOps(t, p, code.OpConstant, code.OpDiscard, code.OpConstant)
	if l := p.Labels["a"]; l.Index != 1 || l.Depth != 1 {
		t.Fatalf("unexpected label %+v", l)
	}

	// A labelled target replaces the value before it.
	p = compile(t, ast.Grp(ast.Num(1), ast.Lbl("b", ast.Num(2))))
	expectOps(t, p, code.OpConstant, code.OpDiscard, code.OpConstant)
	if l := p.Labels["b"]; l.Index != 1 || l.Depth != 1 {
		t.Fatalf("unexpected label %+v", l)
	}
}

func TestLabelInsideArgumentsIsAnchored(t *testing.T) {
	p := compile(t, ast.Call(ast.Id("f"), ast.Grp(ast.Lbl("x", nil))))
	expectOps(t, p, code.OpLoad, code.OpPrepareInvoke, code.OpAnchor, code.OpConstant, code.OpInvoke)
	if l, ok := p.Labels["x"]; !ok || l.Index != 4 || l.Depth != 1 || l.Anchor != 1 {
		t.Fatalf("unexpected label %+v (found %t)", l, ok)
	}
	if p.Instructions[2].Operand != 1 {
		t.Fatalf("unexpected anchor %d", p.Instructions[2].Operand)
	}

	// Groups without labels need no anchor.
	p = compile(t, ast.Call(ast.Id("f"), ast.Grp(ast.Num(1), ast.Num(2))))
	for _, op := range ops(p) {
		if op == code.OpAnchor {
			t.Fatalf("unexpected anchor:\n%s", p)
		}
	}
}

func TestMacroLabelInsideArgumentsWithoutAnchor(t *testing.T) {
	c, scope := newCompiler()
	realm := scope.Realm()
	scope.Define("@marked", realm.NewNative(nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		mc := args[len(args)-1].(*object.UnmanagedHandle).Value.(*Compiler)
		mc.Push(object.Void)
		if err := mc.Mark("m"); err != nil {
			result.Raisef(ast.Intrinsic, "%v", err)
		}
	}))
	if err := c.Compile(ast.Call(ast.Id("f"), ast.Call(ast.Id("@marked")))); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if l := c.Bytecode().Labels["m"]; l.Depth != -1 || l.Anchor != 0 {
		t.Fatalf("unexpected label %+v", l)
	}
}

func TestDuplicateLabel(t *testing.T) {
	c, _ := newCompiler()
	err := c.Compile(ast.Grp(ast.Lbl("a", nil), ast.Lbl("a", nil)))
	if err == nil || !strings.Contains(err.Error(), `Duplicate label "a"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJumpsAreBackpatched(t *testing.T) {
	c, _ := newCompiler()
	c.Push(object.Void)
	c.Jump("end")
	c.Push(object.Number(1))
	c.Discard()
	if err := c.Mark("end"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	c.Jump("elsewhere")
	p := c.Bytecode()
	if p.Instructions[1].Target != 4 {
		t.Fatalf("expected jump to 4, got %d", p.Instructions[1].Target)
	}
	if p.Instructions[4].Target != -1 {
		t.Fatalf("expected unresolved jump, got %d", p.Instructions[4].Target)
	}
}

func TestInvalidTargets(t *testing.T) {
	tests := []struct {
		node ast.Node
		want string
	}{
		{ast.Assign(ast.Num(1), ast.Num(2)), "Invalid assignment target 1"},
		{ast.Decl(ast.Str("x")), "Invalid declaration target"},
		{ast.Spr(ast.Id("x")), "Spread operator is only valid"},
		{ast.Assign(ast.Arr(ast.Num(1)), ast.Id("x")), "Invalid destructuring pattern"},
		{ast.Get(ast.Id("x"), "@if"), "can only be invoked"},
	}
	for _, tt := range tests {
		c, _ := newCompiler()
		err := c.Compile(tt.node)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tt.node, tt.want, err)
		}
	}
}

func TestCompoundMemberAssignment(t *testing.T) {
	p := compile(t, ast.Update(object.OpAdd, ast.Get(ast.Id("t"), "n"), ast.Num(1)))
	expectOps(t, p,
		code.OpLoad, code.OpDuplicate, code.OpGet,
		code.OpPrepareInvoke, code.OpConstant, code.OpInvoke,
		code.OpSet)
}

func TestCompoundInvocationAssignment(t *testing.T) {
	p := compile(t, ast.Update(object.OpAdd, ast.Method(ast.Id("a"), object.OpAt, ast.Num(0)), ast.Num(1)))
	expectOps(t, p,
		code.OpLoad, code.OpPrepareInvoke, code.OpConstant,
		code.OpDuplicateInvocation, code.OpInvoke,
		code.OpPrepareInvoke, code.OpConstant, code.OpInvoke,
		code.OpAppendArgument, code.OpInvoke)
}

func TestMacroExpansion(t *testing.T) {
	c, scope := newCompiler()
	realm := scope.Realm()
	var got []object.Value
	scope.Define("@one", realm.NewNative(nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		got = args
		h := args[len(args)-1].(*object.UnmanagedHandle)
		h.Value.(*Compiler).Push(object.Number(1))
	}))

	if err := c.Compile(ast.Call(ast.Id("@one"), ast.Id("x"))); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	p := c.Bytecode()
	expectOps(t, p, code.OpConstant)
	if len(got) != 2 {
		t.Fatalf("expected an expression and the compiler, got %d arguments", len(got))
	}
	if e, ok := got[0].(*object.Expression); !ok || e.Node.String() != "x" {
		t.Fatalf("unexpected expression argument %s", object.ValueName(got[0]))
	}
}

func TestMacroErrors(t *testing.T) {
	c, scope := newCompiler()
	realm := scope.Realm()
	scope.Define("@value", realm.NewNative(nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		result.Set(object.Number(1))
	}))
	scope.Define("@nothing", realm.NewNative(nil, func(args []object.Value, scope *object.Scope, result *object.Result) {}))
	scope.Define("@fails", realm.NewNative(nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		result.Raisef(ast.Intrinsic, "inner problem")
	}))

	tests := map[string]string{
		"@value":   "macros must emit code",
		"@nothing": "left 0 values instead of one",
		"@fails":   "Failed to expand macro @fails",
	}
	for name, want := range tests {
		err := c.Compile(ast.Call(ast.Id(name)))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%s: expected error containing %q, got %v", name, want, err)
		}
	}
}

func TestUnknownMacroIsDeferred(t *testing.T) {
	p := compile(t, ast.Method(ast.Id("x"), "@later", ast.Num(1)))
	expectOps(t, p, code.OpLoad, code.OpInvokeMacro)
	if len(p.Macros) != 1 {
		t.Fatalf("expected one deferred macro, got %d", len(p.Macros))
	}
	m := p.Macros[0]
	if m.Name != "@later" || !m.Method || len(m.Args) != 1 {
		t.Fatalf("unexpected deferred macro %+v", m)
	}
}
