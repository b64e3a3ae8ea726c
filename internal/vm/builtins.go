package vm

import (
	"math"
	"strconv"
	"strings"

	"arbor/internal/ast"
	"arbor/internal/object"
)

// NewGlobalScope returns a global scope with a fresh realm and every builtin
// declared.
func NewGlobalScope() *object.Scope {
	realm := object.NewRealm()
	scope := object.NewGlobalScope(realm)

	scope.Define("true", object.True)
	scope.Define("false", object.False)
	scope.Define("null", object.Null)
	scope.Define("void", object.Void)

	holders := []struct {
		name  string
		proto *object.Table
	}{
		{"Table", realm.Table},
		{"Function", realm.Function},
		{"Number", realm.Number},
		{"String", realm.String},
		{"Boolean", realm.Boolean},
		{"Array", realm.Array},
		{"Map", realm.Map},
	}
	for _, h := range holders {
		holder := object.NewNamedTable(h.name, realm.Table)
		holder.Declare("prototype", h.proto)
		scope.Define(h.name, holder)
	}
	table := scope.Find("Table").Value.(*object.Table)
	declare(table, "new", native(realm, []string{"this", "properties?"}, nil, tableNew))

	declareGlobal(scope, "unreachable", native(realm, []string{}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		raise(result, "Reached unreachable code")
	}))
	declareGlobal(scope, "error", native(realm, []string{"message"}, []object.Type{object.STRING_OBJ}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		raise(result, "%s", string(args[0].(object.String)))
	}))

	declare(realm.Function, "call", native(realm,
		[]string{"this", "receiver", "arguments"},
		[]object.Type{object.FUNCTION_OBJ, "", object.ARRAY_OBJ},
		func(args []object.Value, scope *object.Scope, result *object.Result) {
			fn := args[0].(object.Function)
			Invoke(args[1], fn, args[2].(*object.Array).Elements, ast.Intrinsic, scope, result)
		}))

	declareRootOperators(realm)
	declareNumberOperators(realm)
	declareStringOperators(realm)
	declareBooleanOperators(realm)
	declareArrayMethods(realm)
	declareMapMethods(realm)
	declareMacros(scope)
	declareCompilerMethods(realm)

	log.Debugf("global scope ready")
	return scope
}

func native(realm *object.Realm, params []string, types []object.Type, fn object.NativeHandlerFunc) *object.NativeFunction {
	f := realm.NewNative(params, fn)
	f.Types = types
	return f
}

// declare panics on a duplicate, which can only be a mistake in the builtin
// tables below.
func declare(t *object.Table, name string, v object.Value) {
	if !t.Declare(name, v) {
		panic("duplicate builtin " + t.Name + "." + name)
	}
}

func declareGlobal(scope *object.Scope, name string, v object.Value) {
	if scope.Declare(name, v) == nil {
		panic("duplicate builtin global " + name)
	}
	object.SetName(v, name)
}

func raise(result *object.Result, format string, args ...any) {
	result.Raisef(ast.Intrinsic, format, args...)
}

func tableNew(args []object.Value, scope *object.Scope, result *object.Result) {
	self := args[0]
	protoValue, ok := GetProperty(self, "prototype", ast.Intrinsic, scope, result)
	if !result.OK() {
		return
	}
	if !ok {
		raise(result, "Cannot find a prototype on receiver")
		return
	}
	proto, ok := protoValue.(*object.Table)
	if !ok {
		raise(result, "Prototype must be a Table")
		return
	}
	t := object.NewTable(proto)
	if len(args) > 1 && !object.IsVoid(args[1]) {
		props, ok := args[1].(*object.Map)
		if !ok {
			raise(result, "Properties must be a Map, got %s", object.ValueName(args[1]))
			return
		}
		for _, kv := range props.Pairs() {
			key, ok := kv.Key.(object.String)
			if !ok {
				raise(result, "Property names must be strings, got %s", object.ValueName(kv.Key))
				return
			}
			t.Declare(string(key), kv.Value)
		}
	}
	result.Set(t)
}

// binaryFunc implements an operator for one pair of operands and reports
// whether it applied.
type binaryFunc func(left, right object.Value, scope *object.Scope, result *object.Result) bool

func unsupported(name string) binaryFunc {
	return func(left, right object.Value, scope *object.Scope, result *object.Result) bool {
		raise(result, "Operator %s is not supported for %s and %s", name, object.ValueName(left), object.ValueName(right))
		return true
	}
}

// binaryOperator builds an operator method. Called as `left.op(right)` it
// tries apply and otherwise hands the pair to the right operand's op, which
// receives (void, left, right). In that second form only apply and then
// fallback are tried.
func binaryOperator(realm *object.Realm, name string, apply, fallback binaryFunc) *object.NativeFunction {
	if fallback == nil {
		fallback = unsupported(name)
	}
	var self *object.NativeFunction
	self = native(realm, []string{"this", "other", "right?"}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		if len(args) > 2 {
			if !apply(args[1], args[2], scope, result) && result.OK() {
				fallback(args[1], args[2], scope, result)
			}
			return
		}
		left, right := args[0], args[1]
		if apply(left, right, scope, result) || !result.OK() {
			return
		}
		m, ok := GetProperty(right, name, ast.Intrinsic, scope, result)
		if !result.OK() {
			return
		}
		if fn, isFn := m.(object.Function); ok && isFn && fn != object.Function(self) {
			Invoke(object.Void, fn, []object.Value{left, right}, ast.Intrinsic, scope, result)
			return
		}
		fallback(left, right, scope, result)
	})
	return self
}

func never(left, right object.Value, scope *object.Scope, result *object.Result) bool { return false }

var arithmeticOperators = []string{
	object.OpAdd, object.OpSub, object.OpMul, object.OpDiv, object.OpMod, object.OpPow,
	object.OpLt, object.OpLte, object.OpGt, object.OpGte,
	object.OpBitAnd, object.OpBitOr, object.OpBitXor,
	object.OpBitShl, object.OpBitShr, object.OpBitShrUnsigned,
}

func declareRootOperators(realm *object.Realm) {
	root := realm.Table
	for _, name := range arithmeticOperators {
		declare(root, name, binaryOperator(realm, name, never, nil))
	}

	declare(root, object.OpEq, binaryOperator(realm, object.OpEq,
		func(left, right object.Value, scope *object.Scope, result *object.Result) bool {
			if object.Equal(left, right) {
				result.Set(object.True)
				return true
			}
			return false
		},
		func(left, right object.Value, scope *object.Scope, result *object.Result) bool {
			result.Set(object.False)
			return true
		}))
	declare(root, object.OpNeq, native(realm, []string{"this", "other"}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		InvokeMethod(args[0], object.OpEq, []object.Value{args[1]}, ast.Intrinsic, scope, result)
		if !result.OK() {
			return
		}
		eq := ToBoolean(result.Value, ast.Intrinsic, scope, result)
		if result.OK() {
			result.Set(object.Boolean(!eq))
		}
	}))
	declare(root, object.OpIs, native(realm, []string{"this", "other"}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		result.Set(object.Boolean(args[0] == args[1]))
	}))
	declare(root, object.OpNot, native(realm, []string{"this"}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		b := ToBoolean(args[0], ast.Intrinsic, scope, result)
		if result.OK() {
			result.Set(object.Boolean(!b))
		}
	}))
	declare(root, object.OpBoolean, native(realm, []string{"this"}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		switch v := args[0].(type) {
		case object.Boolean:
			result.Set(v)
		case object.Number:
			result.Set(object.Boolean(v != 0))
		case object.String:
			result.Set(object.Boolean(v != ""))
		default:
			result.Set(object.Boolean(!object.IsVoid(v)))
		}
	}))
	declare(root, object.OpString, native(realm, []string{"this"}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		s := inspectObject(args[0], scope, result)
		if result.OK() {
			result.Set(object.String(s))
		}
	}))
	declare(root, object.OpInspect, native(realm, []string{"this"}, nil, func(args []object.Value, scope *object.Scope, result *object.Result) {
		s := inspectObject(args[0], scope, result)
		if result.OK() {
			result.Set(object.String(s))
		}
	}))
}

func numbers(left, right object.Value) (float64, float64, bool) {
	l, ok := left.(object.Number)
	if !ok {
		return 0, 0, false
	}
	r, ok := right.(object.Number)
	if !ok {
		return 0, 0, false
	}
	return float64(l), float64(r), true
}

func numberOperator(fn func(a, b float64) object.Value) binaryFunc {
	return func(left, right object.Value, scope *object.Scope, result *object.Result) bool {
		a, b, ok := numbers(left, right)
		if !ok {
			return false
		}
		result.Set(fn(a, b))
		return true
	}
}

func integerOperator(fn func(a, b int64) int64) binaryFunc {
	return numberOperator(func(a, b float64) object.Value {
		return object.Number(fn(int64(a), int64(b)))
	})
}

func declareNumberOperators(realm *object.Realm) {
	ops := map[string]binaryFunc{
		object.OpAdd: numberOperator(func(a, b float64) object.Value { return object.Number(a + b) }),
		object.OpSub: numberOperator(func(a, b float64) object.Value { return object.Number(a - b) }),
		object.OpMul: numberOperator(func(a, b float64) object.Value { return object.Number(a * b) }),
		object.OpDiv: numberOperator(func(a, b float64) object.Value { return object.Number(a / b) }),
		object.OpMod: numberOperator(func(a, b float64) object.Value { return object.Number(math.Mod(a, b)) }),
		object.OpPow: numberOperator(func(a, b float64) object.Value { return object.Number(math.Pow(a, b)) }),

		object.OpLt:  numberOperator(func(a, b float64) object.Value { return object.Boolean(a < b) }),
		object.OpLte: numberOperator(func(a, b float64) object.Value { return object.Boolean(a <= b) }),
		object.OpGt:  numberOperator(func(a, b float64) object.Value { return object.Boolean(a > b) }),
		object.OpGte: numberOperator(func(a, b float64) object.Value { return object.Boolean(a >= b) }),

		object.OpBitAnd: integerOperator(func(a, b int64) int64 { return a & b }),
		object.OpBitOr:  integerOperator(func(a, b int64) int64 { return a | b }),
		object.OpBitXor: integerOperator(func(a, b int64) int64 { return a ^ b }),
		object.OpBitShl: integerOperator(func(a, b int64) int64 { return a << uint64(b) }),
		object.OpBitShr: integerOperator(func(a, b int64) int64 { return a >> uint64(b) }),
		object.OpBitShrUnsigned: integerOperator(func(a, b int64) int64 {
			return int64(uint64(a) >> uint64(b))
		}),
	}
	// Declaration order follows arithmeticOperators so that inspection and
	// key listings stay stable.
	for _, name := range arithmeticOperators {
		declare(realm.Number, name, binaryOperator(realm, name, ops[name], nil))
	}

	unary := func(fn func(n object.Number) object.Value) *object.NativeFunction {
		return native(realm, []string{"this"}, []object.Type{object.NUMBER_OBJ}, func(args []object.Value, scope *object.Scope, result *object.Result) {
			result.Set(fn(args[0].(object.Number)))
		})
	}
	declare(realm.Number, object.OpNeg, unary(func(n object.Number) object.Value { return -n }))
	declare(realm.Number, object.OpBitNeg, unary(func(n object.Number) object.Value { return object.Number(^int64(n)) }))
	declare(realm.Number, object.OpNumber, unary(func(n object.Number) object.Value { return n }))
	declare(realm.Number, object.OpString, unary(func(n object.Number) object.Value { return object.String(n.String()) }))
	declare(realm.Number, object.OpInspect, unary(func(n object.Number) object.Value { return object.String(n.String()) }))
}

// stringOf converts v through k:string.
func stringOf(v object.Value, scope *object.Scope, result *object.Result) (string, bool) {
	if s, ok := v.(object.String); ok {
		return string(s), true
	}
	r, ok := convert(v, object.OpString, ast.Intrinsic, scope, result)
	if !result.OK() {
		return "", false
	}
	if !ok {
		return object.ValueName(v), true
	}
	s, ok := r.(object.String)
	if !ok {
		raise(result, "Operator %s must return a string, got %s", object.OpString, object.ValueName(r))
		return "", false
	}
	return string(s), true
}

func stringCompare(fn func(a, b string) bool) binaryFunc {
	return func(left, right object.Value, scope *object.Scope, result *object.Result) bool {
		a, ok := left.(object.String)
		if !ok {
			return false
		}
		b, ok := right.(object.String)
		if !ok {
			return false
		}
		result.Set(object.Boolean(fn(string(a), string(b))))
		return true
	}
}

func declareStringOperators(realm *object.Realm) {
	declare(realm.String, object.OpAdd, binaryOperator(realm, object.OpAdd,
		func(left, right object.Value, scope *object.Scope, result *object.Result) bool {
			a, ok := stringOf(left, scope, result)
			if !ok {
				return true
			}
			b, ok := stringOf(right, scope, result)
			if !ok {
				return true
			}
			result.Set(object.String(a + b))
			return true
		}, nil))
	declare(realm.String, object.OpLt, binaryOperator(realm, object.OpLt, stringCompare(func(a, b string) bool { return a < b }), nil))
	declare(realm.String, object.OpLte, binaryOperator(realm, object.OpLte, stringCompare(func(a, b string) bool { return a <= b }), nil))
	declare(realm.String, object.OpGt, binaryOperator(realm, object.OpGt, stringCompare(func(a, b string) bool { return a > b }), nil))
	declare(realm.String, object.OpGte, binaryOperator(realm, object.OpGte, stringCompare(func(a, b string) bool { return a >= b }), nil))

	declare(realm.String, object.OpNumber, native(realm, []string{"this"}, []object.Type{object.STRING_OBJ}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		s := args[0].(object.String)
		n, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
		if err != nil {
			raise(result, "Cannot convert %s to a number", object.ValueName(s))
			return
		}
		result.Set(object.Number(n))
	}))
	declare(realm.String, object.OpString, native(realm, []string{"this"}, []object.Type{object.STRING_OBJ}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		result.Set(args[0])
	}))
	declare(realm.String, object.OpInspect, native(realm, []string{"this"}, []object.Type{object.STRING_OBJ}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		result.Set(object.String(strconv.Quote(string(args[0].(object.String)))))
	}))
}

func declareBooleanOperators(realm *object.Realm) {
	unary := func(fn func(b bool) object.Value) *object.NativeFunction {
		return native(realm, []string{"this"}, []object.Type{object.BOOLEAN_OBJ}, func(args []object.Value, scope *object.Scope, result *object.Result) {
			result.Set(fn(bool(args[0].(object.Boolean))))
		})
	}
	declare(realm.Boolean, object.OpNot, unary(func(b bool) object.Value { return object.Boolean(!b) }))
	declare(realm.Boolean, object.OpNumber, unary(func(b bool) object.Value {
		if b {
			return object.Number(1)
		}
		return object.Number(0)
	}))
	declare(realm.Boolean, object.OpString, unary(func(b bool) object.Value { return object.String(strconv.FormatBool(b)) }))
	declare(realm.Boolean, object.OpInspect, unary(func(b bool) object.Value { return object.String(strconv.FormatBool(b)) }))
}
