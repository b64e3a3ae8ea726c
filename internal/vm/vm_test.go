package vm

import (
	"errors"
	"strings"
	"testing"

	"arbor/internal/ast"
	"arbor/internal/diag"
	"arbor/internal/limits"
	"arbor/internal/object"
)

func evalTree(t *testing.T, node ast.Node) object.Value {
	t.Helper()
	m := New(nil)
	v, err := m.Run(object.NewFragment(node))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func evalError(t *testing.T, node ast.Node) error {
	t.Helper()
	m := New(nil)
	v, err := m.Run(object.NewFragment(node))
	if err == nil {
		t.Fatalf("expected an error, got %s", object.ValueName(v))
	}
	return err
}

func expectNumber(t *testing.T, v object.Value, want float64) {
	t.Helper()
	n, ok := v.(object.Number)
	if !ok || float64(n) != want {
		t.Fatalf("expected %v, got %s", want, object.ValueName(v))
	}
}

func expectRootMessage(t *testing.T, err error, want string) {
	t.Helper()
	var d *diag.Diagnostic
	if !errors.As(err, &d) {
		t.Fatalf("expected a diagnostic, got %T (%v)", err, err)
	}
	if msg := d.Root().Message; !strings.Contains(msg, want) {
		t.Fatalf("expected root message containing %q, got %q\n%s", want, msg, d.Format())
	}
}

func TestNumberOperators(t *testing.T) {
	tests := []struct {
		node ast.Node
		want float64
	}{
		{ast.Method(ast.Num(1), object.OpAdd, ast.Method(ast.Num(2), object.OpMul, ast.Num(3))), 7},
		{ast.Method(ast.Num(7), object.OpMod, ast.Num(4)), 3},
		{ast.Method(ast.Num(2), object.OpPow, ast.Num(10)), 1024},
		{ast.Method(ast.Num(6), object.OpBitAnd, ast.Num(3)), 2},
		{ast.Method(ast.Num(1), object.OpBitShl, ast.Num(4)), 16},
		{ast.Method(ast.Num(-16), object.OpBitShr, ast.Num(2)), -4},
		{ast.Method(ast.Num(5), object.OpNeg), -5},
		{ast.Method(ast.Str(" 12 "), object.OpNumber), 12},
	}
	for _, tt := range tests {
		expectNumber(t, evalTree(t, tt.node), tt.want)
	}
}

func TestComparisonAndEquality(t *testing.T) {
	tests := []struct {
		node ast.Node
		want bool
	}{
		{ast.Method(ast.Num(1), object.OpLt, ast.Num(2)), true},
		{ast.Method(ast.Str("b"), object.OpLt, ast.Str("a")), false},
		{ast.Method(ast.Str("a"), object.OpEq, ast.Str("a")), true},
		{ast.Method(ast.Num(1), object.OpEq, ast.Str("1")), false},
		{ast.Method(ast.Num(1), object.OpNeq, ast.Num(2)), true},
		{ast.Method(ast.Id("true"), object.OpIs, ast.Id("true")), true},
		{ast.Method(ast.Num(0), object.OpNot), true},
		{ast.Method(ast.Str(""), object.OpBoolean), false},
	}
	for i, tt := range tests {
		v := evalTree(t, tt.node)
		if v != object.Boolean(tt.want) {
			t.Fatalf("case %d: expected %t, got %s", i, tt.want, object.ValueName(v))
		}
	}
}

func TestStringConcatenation(t *testing.T) {
	v := evalTree(t, ast.Method(ast.Str("a"), object.OpAdd, ast.Num(1)))
	if v != object.String("a1") {
		t.Fatalf("expected \"a1\", got %s", object.ValueName(v))
	}
	// The right operand's operator takes over when the left one cannot apply.
	v = evalTree(t, ast.Method(ast.Num(1), object.OpAdd, ast.Str("a")))
	if v != object.String("1a") {
		t.Fatalf("expected \"1a\", got %s", object.ValueName(v))
	}
}

func TestUnsupportedOperator(t *testing.T) {
	err := evalError(t, ast.Method(ast.Id("true"), object.OpAdd, ast.Num(1)))
	expectRootMessage(t, err, "Operator k:add is not supported for [boolean true] and [number 1]")
}

func TestVariables(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("x")), ast.Num(1)),
		ast.Assign(ast.Id("x"), ast.Method(ast.Id("x"), object.OpAdd, ast.Num(1))),
		ast.Update(object.OpMul, ast.Id("x"), ast.Num(10)),
		ast.Id("x"),
	))
	expectNumber(t, v, 20)

	err := evalError(t, ast.Id("missing"))
	expectRootMessage(t, err, `Cannot find variable "missing"`)

	err = evalError(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("x")), ast.Num(1)),
		ast.Assign(ast.Decl(ast.Id("x")), ast.Num(2)),
	))
	expectRootMessage(t, err, `Duplicate declaration of variable "x"`)
}

func TestEmptyGroupIsVoid(t *testing.T) {
	if v := evalTree(t, ast.Grp()); v != object.Void {
		t.Fatalf("expected void, got %s", object.ValueName(v))
	}
}

func TestGotoLoop(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("i")), ast.Num(0)),
		ast.Lbl("loop", nil),
		ast.Update(object.OpAdd, ast.Id("i"), ast.Num(1)),
		ast.Call(ast.Id("@if"),
			ast.Method(ast.Id("i"), object.OpLt, ast.Num(5)),
			ast.Call(ast.Id("@goto"), ast.Id("loop")),
		),
		ast.Id("i"),
	))
	expectNumber(t, v, 5)
}

func TestGotoCarriesValue(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Call(ast.Id("@goto"), ast.Id("done"), ast.Num(42)),
		ast.Call(ast.Id("unreachable")),
		ast.Lbl("done", nil),
	))
	expectNumber(t, v, 42)
}

func TestLabelledTarget(t *testing.T) {
	v := evalTree(t, ast.Grp(ast.Num(1), ast.Lbl("x", ast.Num(2))))
	expectNumber(t, v, 2)
}

func TestUnresolvedLabel(t *testing.T) {
	err := evalError(t, ast.Call(ast.Id("@goto"), ast.Id("nowhere")))
	if !strings.Contains(err.Error(), "Unresolved label 'nowhere'") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// f((L:, i += 1, @if(i < 3, @goto(L)), i))
func argumentLoop() ast.Node {
	return ast.Grp(
		ast.Assign(ast.Decl(ast.Id("i")), ast.Num(0)),
		ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(ast.Id("v"), ast.Id("v"))),
		ast.Call(ast.Id("f"), ast.Grp(
			ast.Lbl("L", nil),
			ast.Update(object.OpAdd, ast.Id("i"), ast.Num(1)),
			ast.Call(ast.Id("@if"),
				ast.Method(ast.Id("i"), object.OpLt, ast.Num(3)),
				ast.Call(ast.Id("@goto"), ast.Id("L")),
			),
			ast.Id("i"),
		)),
	)
}

func TestGotoInsideArguments(t *testing.T) {
	expectNumber(t, evalTree(t, argumentLoop()), 3)

	// Forward, out of a nested call, keeping the arguments already pushed.
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("add")), ast.Fn(ast.Method(ast.Id("a"), object.OpAdd, ast.Id("b")), ast.Id("a"), ast.Id("b"))),
		ast.Call(ast.Id("add"), ast.Num(1), ast.Grp(
			ast.Method(ast.Num(0), object.OpAdd, ast.Call(ast.Id("@goto"), ast.Id("skip"), ast.Num(5))),
			ast.Call(ast.Id("unreachable")),
			ast.Lbl("skip", nil),
		)),
	))
	expectNumber(t, v, 6)

	v = evalTree(t, ast.Arr(ast.Num(1), ast.Grp(
		ast.Call(ast.Id("@goto"), ast.Id("x"), ast.Num(2)),
		ast.Call(ast.Id("unreachable")),
		ast.Lbl("x", nil),
	)))
	if got := New(nil).Inspect(v); got != "[1, 2]" {
		t.Fatalf("unexpected array %s", got)
	}
}

func TestGotoIntoFinishedArguments(t *testing.T) {
	err := evalError(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(ast.Id("v"), ast.Id("v"))),
		ast.Call(ast.Id("f"), ast.Grp(ast.Lbl("inside", nil), ast.Num(1))),
		ast.Call(ast.Id("@goto"), ast.Id("inside")),
	))
	if !strings.Contains(err.Error(), "Unresolved label 'inside'") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIfChain(t *testing.T) {
	pick := func(n float64) ast.Node {
		return ast.Call(ast.Id("@if"),
			ast.Method(ast.Num(n), object.OpLt, ast.Num(0)), ast.Str("negative"),
			ast.Method(ast.Num(n), object.OpEq, ast.Num(0)), ast.Str("zero"),
			ast.Str("positive"),
		)
	}
	for n, want := range map[float64]string{-1: "negative", 0: "zero", 3: "positive"} {
		if v := evalTree(t, pick(n)); v != object.String(want) {
			t.Fatalf("%v: expected %q, got %s", n, want, object.ValueName(v))
		}
	}
	if v := evalTree(t, ast.Call(ast.Id("@if"), ast.Id("false"), ast.Num(1))); v != object.Void {
		t.Fatalf("expected void, got %s", object.ValueName(v))
	}
}

func TestWhile(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("n")), ast.Num(0)),
		ast.Call(ast.Id("@while"),
			ast.Method(ast.Id("n"), object.OpLt, ast.Num(10)),
			ast.Update(object.OpAdd, ast.Id("n"), ast.Num(3)),
		),
	))
	expectNumber(t, v, 12)
}

func TestOptimizedProgramsAgree(t *testing.T) {
	trees := []ast.Node{
		ast.Grp(
			ast.Assign(ast.Decl(ast.Id("i")), ast.Num(0)),
			ast.Num(1),
			ast.Lbl("loop", nil),
			ast.Update(object.OpAdd, ast.Id("i"), ast.Num(1)),
			ast.Call(ast.Id("@if"),
				ast.Method(ast.Id("i"), object.OpLt, ast.Num(5)),
				ast.Call(ast.Id("@goto"), ast.Id("loop")),
			),
			ast.Id("i"),
		),
		ast.Grp(
			ast.Call(ast.Id("@goto"), ast.Id("done"), ast.Num(42)),
			ast.Num(7),
			ast.Lbl("done", nil),
		),
		ast.Grp(ast.Num(1), ast.Str("x"), ast.Lbl("x", ast.Num(2))),
		argumentLoop(),
		ast.Grp(
			ast.Assign(ast.Decl(ast.Id("n")), ast.Num(0)),
			ast.Call(ast.Id("@while"),
				ast.Method(ast.Id("n"), object.OpLt, ast.Num(10)),
				ast.Grp(ast.Num(0), ast.Update(object.OpAdd, ast.Id("n"), ast.Num(3))),
			),
		),
	}
	for _, tree := range trees {
		plain := New(nil)
		want, err := plain.Run(object.NewFragment(tree))
		if err != nil {
			t.Fatalf("%s: %v", tree, err)
		}
		opt := New(nil)
		opt.SetOptimize(true)
		got, err := opt.Run(object.NewFragment(tree))
		if err != nil {
			t.Fatalf("%s (optimized): %v", tree, err)
		}
		if !object.Equal(got, want) {
			t.Fatalf("%s: expected %s, got %s", tree, object.ValueName(want), object.ValueName(got))
		}
	}
}

func TestShortCircuit(t *testing.T) {
	v := evalTree(t, ast.Method(ast.Id("false"), object.OpAnd, ast.Call(ast.Id("unreachable"))))
	if v != object.False {
		t.Fatalf("expected false, got %s", object.ValueName(v))
	}
	expectNumber(t, evalTree(t, ast.Method(ast.Num(0), object.OpOr, ast.Num(3))), 3)
	expectNumber(t, evalTree(t, ast.Method(ast.Id("null"), object.OpCoalesce, ast.Num(5))), 5)
	if v := evalTree(t, ast.Method(ast.Id("null"), object.OpElse, ast.Num(5))); v != object.Null {
		t.Fatalf("expected null, got %s", object.ValueName(v))
	}
}

func TestNullAndVoidUseRootPrototype(t *testing.T) {
	if v := evalTree(t, ast.Method(ast.Id("null"), object.OpEq, ast.Id("null"))); v != object.True {
		t.Fatalf("expected null == null, got %s", object.ValueName(v))
	}
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("x")), ast.Id("null")),
		ast.Method(ast.Id("x"), object.OpEq, ast.Num(1)),
	))
	if v != object.False {
		t.Fatalf("expected false, got %s", object.ValueName(v))
	}
	if v := evalTree(t, ast.Method(ast.Num(1), object.OpEq, ast.Id("null"))); v != object.False {
		t.Fatalf("expected false, got %s", object.ValueName(v))
	}
	if v := evalTree(t, ast.Method(ast.Id("null"), object.OpBoolean)); v != object.True {
		t.Fatalf("expected null to be truthy, got %s", object.ValueName(v))
	}
	if v := evalTree(t, ast.Method(ast.Id("void"), object.OpBoolean)); v != object.False {
		t.Fatalf("expected void to be falsy, got %s", object.ValueName(v))
	}
	if v := evalTree(t, ast.Method(ast.Id("void"), object.OpInspect)); v != object.String("void") {
		t.Fatalf("unexpected inspection %s", object.ValueName(v))
	}
}

func TestFunctionReturn(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(
			ast.Grp(ast.Call(ast.Id("@return"), ast.Id("a")), ast.Call(ast.Id("unreachable"))),
			ast.Id("a"),
		)),
		ast.Call(ast.Id("f"), ast.Num(5)),
	))
	expectNumber(t, v, 5)
}

func TestClosures(t *testing.T) {
	// counter = fn() { $n = 0; fn() { n += 1 } }
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("counter")), ast.Fn(ast.Grp(
			ast.Assign(ast.Decl(ast.Id("n")), ast.Num(0)),
			ast.Fn(ast.Update(object.OpAdd, ast.Id("n"), ast.Num(1))),
		))),
		ast.Assign(ast.Decl(ast.Id("c")), ast.Call(ast.Id("counter"))),
		ast.Call(ast.Id("c")),
		ast.Call(ast.Id("c")),
		ast.Call(ast.Id("c")),
	))
	expectNumber(t, v, 3)
}

func TestDefaultsAndRest(t *testing.T) {
	f := ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(
		ast.Method(ast.Id("a"), object.OpAdd, ast.Method(ast.Id("b"), object.OpAdd, ast.Get(ast.Id("rest"), "length"))),
		ast.Id("a"), ast.Assign(ast.Id("b"), ast.Num(10)), ast.Spr(ast.Id("rest")),
	))
	expectNumber(t, evalTree(t, ast.Grp(f, ast.Call(ast.Id("f"), ast.Num(1)))), 11)
	expectNumber(t, evalTree(t, ast.Grp(f, ast.Call(ast.Id("f"), ast.Num(1), ast.Id("void")))), 11)
	expectNumber(t, evalTree(t, ast.Grp(f, ast.Call(ast.Id("f"), ast.Num(1), ast.Num(2), ast.Num(3), ast.Num(4)))), 5)
}

func TestSpreadArguments(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("add")), ast.Fn(ast.Method(ast.Id("a"), object.OpAdd, ast.Id("b")), ast.Id("a"), ast.Id("b"))),
		ast.Call(ast.Id("add"), ast.Spr(ast.Arr(ast.Num(2), ast.Num(3)))),
	))
	expectNumber(t, v, 5)
}

func TestArityErrors(t *testing.T) {
	f := ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(ast.Id("a"), ast.Id("a"), ast.Id("b")))

	err := evalError(t, ast.Grp(f, ast.Call(ast.Id("f"), ast.Num(1), ast.Num(2), ast.Num(3))))
	expectRootMessage(t, err, "Too many arguments, expected 2, but got 3")

	err = evalError(t, ast.Grp(f, ast.Call(ast.Id("f"), ast.Num(1))))
	expectRootMessage(t, err, `Missing argument "b"`)
	if !strings.Contains(err.Error(), "While invoking [f]") {
		t.Fatalf("expected the callee to be named, got %v", err)
	}
}

func TestNativeArgumentValidation(t *testing.T) {
	err := evalError(t, ast.Method(ast.Arr(), "truncate"))
	var d *diag.Diagnostic
	if !errors.As(err, &d) {
		t.Fatalf("expected a diagnostic, got %v", err)
	}
	arity := d.Causes[0]
	if arity.Message != "Expected 2 arguments, but got 1" {
		t.Fatalf("unexpected message %q", arity.Message)
	}
	if len(arity.Causes) != 1 || arity.Causes[0].Message != `Missing argument "length"` {
		t.Fatalf("unexpected causes:\n%s", d.Format())
	}

	err = evalError(t, ast.Method(ast.Arr(ast.Num(1)), "slice", ast.Str("x"), ast.Map()))
	if !errors.As(err, &d) {
		t.Fatalf("expected a diagnostic, got %v", err)
	}
	types := d.Causes[0]
	if !strings.HasPrefix(types.Message, "Expected arguments: (this: array, from: number, to?: number)") {
		t.Fatalf("unexpected message %q", types.Message)
	}
	if len(types.Causes) != 2 {
		t.Fatalf("expected one cause per bad argument:\n%s", d.Format())
	}

	// Coercible arguments are converted.
	v := evalTree(t, ast.Method(ast.Arr(ast.Num(1), ast.Num(2)), object.OpAt, ast.Str("1")))
	expectNumber(t, v, 2)
}

func TestDestructuring(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Arr(ast.Decl(ast.Id("a")), ast.Spr(ast.Decl(ast.Id("rest")))), ast.Arr(ast.Num(1), ast.Num(2), ast.Num(3))),
		ast.Method(ast.Id("a"), object.OpAdd, ast.Method(ast.Id("rest"), object.OpAt, ast.Num(1))),
	))
	expectNumber(t, v, 4)

	v = evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("x")), ast.Num(0)),
		ast.Assign(ast.Arr(ast.Id("_"), ast.Id("x")), ast.Arr(ast.Num(1), ast.Num(2))),
		ast.Id("x"),
	))
	expectNumber(t, v, 2)

	err := evalError(t, ast.Assign(ast.Decl(ast.Arr(ast.Id("a"))), ast.Num(1)))
	expectRootMessage(t, err, "Destructuring is only supported for arrays")
}

func TestTableProperties(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("t")), ast.Method(ast.Id("Table"), "new")),
		ast.Assign(ast.Decl(ast.Get(ast.Id("t"), "n")), ast.Num(1)),
		ast.Update(object.OpAdd, ast.Get(ast.Id("t"), "n"), ast.Num(2)),
		ast.Get(ast.Id("t"), "n"),
	))
	expectNumber(t, v, 3)

	err := evalError(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("t")), ast.Method(ast.Id("Table"), "new")),
		ast.Assign(ast.Get(ast.Id("t"), "n"), ast.Num(1)),
	))
	expectRootMessage(t, err, `Property "n" is not defined on`)

	err = evalError(t, ast.Get(ast.Method(ast.Id("Table"), "new"), "nope"))
	expectRootMessage(t, err, `Cannot find property "[object Table.prototype].nope"`)

	v = evalTree(t, ast.Get(ast.Method(ast.Id("Table"), "new", ast.Map(ast.Str("a"), ast.Num(7))), "a"))
	expectNumber(t, v, 7)
}

func TestInheritedPropertiesCannotBeShadowedByAssignment(t *testing.T) {
	err := evalError(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("t")), ast.Method(ast.Id("Table"), "new")),
		ast.Assign(ast.Get(ast.Id("t"), object.OpEq), ast.Num(1)),
	))
	expectRootMessage(t, err, `Property "k:eq" is not defined on`)
}

func TestGettersAndSetters(t *testing.T) {
	scope := NewGlobalScope()
	realm := scope.Realm()

	proto := object.NewTable(realm.Table)
	proto.Declare("get_self", realm.NewNative([]string{"this"}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		result.Set(args[0])
	}))
	var seen object.Value
	proto.Declare("set_value", realm.NewNative([]string{"this", "value"}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		seen = args[1]
	}))
	child := object.NewTable(proto)
	child.Declare("own", object.Number(1))
	scope.Define("child", child)

	m := New(scope)
	v, err := m.Run(object.NewFragment(ast.Get(ast.Id("child"), "self")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != object.Value(child) {
		t.Fatalf("getter should see the original receiver, got %s", object.ValueName(v))
	}

	if _, err := m.Run(object.NewFragment(ast.Assign(ast.Get(ast.Id("child"), "value"), ast.Num(9)))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != object.Number(9) {
		t.Fatalf("setter did not run, saw %v", seen)
	}

	// Own properties are assigned directly even when a setter exists.
	proto.Declare("set_own", realm.NewNative([]string{"this", "value"}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		t.Fatalf("setter must not run for an own property")
	}))
	if _, err := m.Run(object.NewFragment(ast.Assign(ast.Get(ast.Id("child"), "own"), ast.Num(2)))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := child.Own("own"); got != object.Number(2) {
		t.Fatalf("expected own property to be 2, got %v", got)
	}
}

func TestArrays(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("a")), ast.Arr(ast.Num(1), ast.Num(2), ast.Num(3))),
		ast.Method(ast.Id("a"), "push", ast.Num(4), ast.Num(5)),
		ast.Method(ast.Id("a"), "shift"),
		ast.Assign(ast.Call(ast.Get(ast.Id("a"), object.OpAt), ast.Num(0)), ast.Num(20)),
		ast.Update(object.OpAdd, ast.Call(ast.Get(ast.Id("a"), object.OpAt), ast.Num(-1)), ast.Num(10)),
		ast.Method(ast.Id("a"), "slice", ast.Num(-3)),
	))
	m := New(nil)
	if got := m.Inspect(v); got != "[3, 4, 15]" {
		t.Fatalf("unexpected slice %s", got)
	}

	v = evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("a")), ast.Arr(ast.Num(1), ast.Id("void"), ast.Num(2))),
		ast.Get(ast.Id("a"), "length"),
	))
	expectNumber(t, v, 2)

	err := evalError(t, ast.Method(ast.Arr(), object.OpAt, ast.Num(0)))
	expectRootMessage(t, err, "Index 0 out of range for array of size 0")
}

func TestTruncateIsBounded(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("a")), ast.Arr(ast.Num(1))),
		ast.Method(ast.Id("a"), "truncate", ast.Num(3)),
		ast.Id("a"),
	))
	if got := New(nil).Inspect(v); got != "[1, null, null]" {
		t.Fatalf("unexpected array %s", got)
	}

	err := evalError(t, ast.Method(ast.Arr(), "truncate", ast.Num(1e15)))
	expectRootMessage(t, err, "Cannot set array length to 1e+15")
}

func TestMapInsertionOrder(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("m")), ast.Map(ast.Str("a"), ast.Num(1), ast.Str("b"), ast.Num(2), ast.Str("c"), ast.Num(3))),
		ast.Assign(ast.Call(ast.Get(ast.Id("m"), object.OpAt), ast.Str("b")), ast.Id("void")),
		ast.Assign(ast.Call(ast.Get(ast.Id("m"), object.OpAt), ast.Str("d")), ast.Num(4)),
		ast.Method(ast.Id("m"), "entries"),
	))
	m := New(nil)
	if got := m.Inspect(v); got != `[["a", 1], ["c", 3], ["d", 4]]` {
		t.Fatalf("unexpected entries %s", got)
	}
}

func TestInspect(t *testing.T) {
	m := New(nil)
	realm := m.Globals().Realm()

	tbl := realm.NewTable()
	tbl.Declare("x", object.Number(1))
	tbl.Declare("s", object.String("hi"))
	if got := m.Inspect(tbl); got != `{ x: 1, s: "hi" }` {
		t.Fatalf("unexpected table %s", got)
	}

	mp := realm.NewMap()
	mp.Set(object.String("k"), object.True)
	if got := m.Inspect(mp); got != `{"k": true}` {
		t.Fatalf("unexpected map %s", got)
	}

	arr := realm.NewArray(nil)
	arr.Elements = append(arr.Elements, arr)
	if got := m.Inspect(arr); !strings.HasPrefix(got, "[[[") {
		t.Fatalf("unexpected cyclic array %s", got)
	}

	if got := m.Inspect(object.Void); got != "void" {
		t.Fatalf("unexpected void %s", got)
	}
}

func TestFunctionCall(t *testing.T) {
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(ast.Method(ast.Id("this"), object.OpAdd, ast.Id("x")), ast.Id("this"), ast.Id("x"))),
		ast.Method(ast.Id("f"), "call", ast.Num(40), ast.Arr(ast.Num(2))),
	))
	expectNumber(t, v, 42)
}

func TestMethodReceivesReceiver(t *testing.T) {
	// $x = Table.new({ a: \(this) this }), x.a() == x
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("x")), ast.Method(ast.Id("Table"), "new",
			ast.Map(ast.Str("a"), ast.Fn(ast.Id("this"), ast.Id("this"))))),
		ast.Method(ast.Method(ast.Id("x"), "a"), object.OpEq, ast.Id("x")),
	))
	if v != object.True {
		t.Fatalf("expected true, got %s", object.ValueName(v))
	}
}

func TestMemberUpdateEvaluatesReceiverOnce(t *testing.T) {
	// get().a += 1 with get counting its calls
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("calls")), ast.Num(0)),
		ast.Assign(ast.Decl(ast.Id("obj")), ast.Method(ast.Id("Table"), "new", ast.Map(ast.Str("a"), ast.Num(1)))),
		ast.Assign(ast.Decl(ast.Id("get")), ast.Fn(ast.Grp(
			ast.Update(object.OpAdd, ast.Id("calls"), ast.Num(1)),
			ast.Id("obj"),
		))),
		ast.Update(object.OpAdd, ast.Get(ast.Call(ast.Id("get")), "a"), ast.Num(1)),
		ast.Arr(ast.Id("calls"), ast.Get(ast.Id("obj"), "a")),
	))
	if got := New(nil).Inspect(v); got != "[1, 2]" {
		t.Fatalf("unexpected result %s", got)
	}
}

func TestUnresolvedLabelInFunction(t *testing.T) {
	err := evalError(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(ast.Call(ast.Id("@goto"), ast.Id("out")))),
		ast.Call(ast.Id("f")),
		ast.Lbl("out", nil),
	))
	expectRootMessage(t, err, "Did not resolve label 'out' during function execution")
}

func TestErrorBuiltin(t *testing.T) {
	err := evalError(t, ast.Call(ast.Id("error"), ast.Str("boom")))
	expectRootMessage(t, err, "boom")
}

func TestStepBudget(t *testing.T) {
	loop := ast.Call(ast.Id("@while"), ast.Id("true"), ast.Num(1))
	m := New(nil)
	m.SetMaxSteps(1000)
	_, err := m.Run(object.NewFragment(loop))
	if !errors.Is(err, limits.ErrMaxSteps) {
		t.Fatalf("expected step limit error, got %v", err)
	}
	if err.Error() != "Script execution reached the limit of 1000 expressions" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	// The same tree always uses the same number of steps.
	count := func() int64 {
		result := m.NewResult()
		Evaluate(object.NewFragment(ast.Grp(
			ast.Assign(ast.Decl(ast.Id("i")), ast.Num(0)),
			ast.Call(ast.Id("@while"),
				ast.Method(ast.Id("i"), object.OpLt, ast.Num(20)),
				ast.Update(object.OpAdd, ast.Id("i"), ast.Num(1)),
			),
		)), NewGlobalScope(), result)
		if !result.OK() {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		return result.Budget.Used()
	}
	first, second := count(), count()
	if first == 0 || first != second {
		t.Fatalf("step counts differ: %d and %d", first, second)
	}
}

func TestMaxRecursion(t *testing.T) {
	m := New(nil)
	m.SetMaxRecursion(50)
	_, err := m.Run(object.NewFragment(ast.Grp(
		ast.Assign(ast.Decl(ast.Id("f")), ast.Fn(ast.Call(ast.Id("f")))),
		ast.Call(ast.Id("f")),
	)))
	if !errors.Is(err, limits.ErrMaxDepth) {
		t.Fatalf("expected call depth error, got %v", err)
	}
}

func TestFragmentCompiledOnce(t *testing.T) {
	m := New(nil)
	f := object.NewFragment(ast.Method(ast.Num(1), object.OpAdd, ast.Num(1)))
	if _, err := m.Run(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := f.Program()
	if p == nil {
		t.Fatalf("fragment was not compiled")
	}
	if _, err := m.Run(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Program() != p {
		t.Fatalf("fragment was compiled twice")
	}
}

func TestLateBoundScriptMacro(t *testing.T) {
	// $@twice = fn(e, c) { c.compile(e); c.discard(); c.compile(e) }
	v := evalTree(t, ast.Grp(
		ast.Assign(ast.Decl(ast.Id("@twice")), ast.Fn(ast.Grp(
			ast.Method(ast.Id("c"), "compile", ast.Id("e")),
			ast.Method(ast.Id("c"), "discard"),
			ast.Method(ast.Id("c"), "compile", ast.Id("e")),
		), ast.Id("e"), ast.Id("c"))),
		ast.Assign(ast.Decl(ast.Id("n")), ast.Num(0)),
		ast.Call(ast.Id("@twice"), ast.Update(object.OpAdd, ast.Id("n"), ast.Num(1))),
		ast.Id("n"),
	))
	expectNumber(t, v, 2)
}

func TestMacroMustNotReturnValue(t *testing.T) {
	scope := NewGlobalScope()
	scope.Define("@bad", scope.Realm().NewNative(nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		result.Set(object.Number(1))
	}))
	_, err := New(scope).Run(object.NewFragment(ast.Call(ast.Id("@bad"))))
	if err == nil || !strings.Contains(err.Error(), "macros must emit code") {
		t.Fatalf("unexpected error: %v", err)
	}
}

type point struct{ x, y float64 }

func TestHandleType(t *testing.T) {
	scope := NewGlobalScope()
	points := NewHandleType[*point](scope, "Point").
		Property("x",
			func(p *point) object.Value { return object.Number(p.x) },
			func(p *point, v object.Value) error {
				n, ok := v.(object.Number)
				if !ok {
					return errors.New("x must be a number")
				}
				p.x = float64(n)
				return nil
			}).
		Getter("y", func(p *point) object.Value { return object.Number(p.y) }).
		Method("scale", []string{"by"}, func(p *point, args []object.Value, scope *object.Scope, result *object.Result) {
			by, ok := args[0].(object.Number)
			if !ok {
				result.Raisef(ast.Intrinsic, "by must be a number")
				return
			}
			p.x *= float64(by)
			p.y *= float64(by)
		})

	p := &point{x: 3, y: 4}
	scope.Define("p", points.Wrap(p))
	m := New(scope)

	v, err := m.Run(object.NewFragment(ast.Grp(
		ast.Assign(ast.Get(ast.Id("p"), "x"), ast.Num(6)),
		ast.Method(ast.Id("p"), "scale", ast.Num(2)),
		ast.Method(ast.Get(ast.Id("p"), "x"), object.OpAdd, ast.Get(ast.Id("p"), "y")),
	)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectNumber(t, v, 20)
	if p.x != 12 || p.y != 8 {
		t.Fatalf("unexpected point %+v", *p)
	}

	if got, ok := points.Unwrap(scope.Find("p").Value); !ok || got != p {
		t.Fatalf("unwrap returned %v, %t", got, ok)
	}

	_, err = m.Run(object.NewFragment(ast.Assign(ast.Get(ast.Id("p"), "y"), ast.Num(1))))
	if err == nil || !strings.Contains(err.Error(), `Property "y" is not defined`) {
		t.Fatalf("unexpected error: %v", err)
	}
}
