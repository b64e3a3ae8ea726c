package vm

import (
	"strings"

	"arbor/internal/ast"
	"arbor/internal/diag"
	"arbor/internal/limits"
	"arbor/internal/object"
)

// Invoke calls fn on receiver. The receiver is passed as the first argument
// only when fn declares a leading `this` parameter.
func Invoke(receiver object.Value, fn object.Function, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	if fn.HasThis() {
		full := make([]object.Value, 0, len(args)+1)
		full = append(full, receiver)
		args = append(full, args...)
	}
	Call(fn, args, pos, scope, result)
}

// Call runs fn with exactly args. Exceptions leaving the callee are wrapped
// with the call site.
func Call(fn object.Function, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	if result.MaxDepth > 0 && result.Depth >= result.MaxDepth {
		result.Abort(limits.MaxDepthError{Limit: result.MaxDepth})
		return
	}
	result.Depth++
	defer func() { result.Depth-- }()

	switch f := fn.(type) {
	case *object.ScriptFunction:
		callScript(f, args, pos, result)
	case *object.NativeFunction:
		callNative(f, args, pos, scope, result)
	default:
		result.Raisef(pos, "Target \"%s\" is not callable", object.ValueName(fn))
		return
	}
	if result.Signal == object.SignalException {
		result.Raise(diag.Wrap(result.Diagnostic, pos, "While invoking %s", object.ObjectName(fn)))
	}
}

func callScript(f *object.ScriptFunction, args []object.Value, pos ast.Position, result *object.Result) {
	params := f.Template.Params
	if !hasRest(params) && len(args) > len(params) {
		result.Raisef(pos, "Too many arguments, expected %d, but got %d", len(params), len(args))
		return
	}
	inner := f.Closure.Child()
	Bind(params, true, true, args, pos, inner, result)
	if !result.OK() {
		return
	}
	result.Set(object.Void)
	Evaluate(f.Template.Body, inner, result)

	if result.Signal != object.SignalLabel {
		return
	}
	if result.Label == object.LabelReturn {
		result.Clear()
		return
	}
	result.Raisef(f.Template.Pos, "Did not resolve label '%s' during function execution", result.Label)
}

func hasRest(params []*object.Parameter) bool {
	for _, p := range params {
		if p.IsSpread {
			return true
		}
	}
	return false
}

// Bind assigns inputs to params in scope. With declare every name is
// declared in scope, otherwise only `$name` entries are and the rest must
// already exist. strict rejects missing inputs that have no default. A rest
// entry collects the inputs not claimed by the others into a new array.
func Bind(params []*object.Parameter, declare, strict bool, inputs []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	extra := len(inputs) - (len(params) - 1)
	if extra < 0 {
		extra = 0
	}
	next := 0
	for _, p := range params {
		var v object.Value
		if p.IsSpread {
			end := next + extra
			if end > len(inputs) {
				end = len(inputs)
			}
			var rest []object.Value
			if next < end {
				rest = append(rest, inputs[next:end]...)
			}
			next = end
			v = scope.Realm().NewArray(rest)
		} else {
			given := next < len(inputs)
			if given {
				v = inputs[next]
			}
			next++
			if object.IsVoid(v) && p.Default != nil {
				Evaluate(p.Default, scope, result)
				if !result.OK() {
					return
				}
				v = result.Value
			} else if !given && strict {
				result.Raisef(pos, "Missing argument \"%s\"", p.Name)
				return
			}
			if v == nil {
				v = object.Void
			}
		}

		if p.Name == ast.DiscardName {
			continue
		}
		if declare || p.IsDeclaration {
			if scope.Declare(p.Name, v) == nil {
				result.Raisef(p.Position, "Duplicate declaration of variable \"%s\"", p.Name)
				return
			}
			if _, ok := v.(object.Function); ok {
				object.SetName(v, p.Name)
			}
			continue
		}
		variable := scope.Find(p.Name)
		if variable == nil {
			result.Raisef(p.Position, "Cannot find variable \"%s\"", p.Name)
			return
		}
		variable.Value = v
	}
}

func callNative(f *object.NativeFunction, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	if f.Params != nil {
		if d := checkArity(f, args); d != nil {
			result.Raise(d)
			return
		}
	}
	if len(f.Types) > 0 {
		args = ensureTypes(f, args, pos, scope, result)
		if !result.OK() {
			return
		}
	}
	result.Set(object.Void)
	f.Handler.Call(args, scope, result)
}

func checkArity(f *object.NativeFunction, args []object.Value) *diag.Diagnostic {
	required, max, rest := 0, len(f.Params), false
	var missing []*diag.Diagnostic
	for i, p := range f.Params {
		name, optional, isRest := object.ParamSpec(p)
		if isRest {
			rest = true
			max--
			continue
		}
		if optional {
			continue
		}
		required++
		if i >= len(args) {
			missing = append(missing, diag.New(ast.Intrinsic, "Missing argument \"%s\"", name))
		}
	}
	if len(missing) > 0 {
		return diag.New(ast.Intrinsic, "Expected %d arguments, but got %d", required, len(args)).With(missing...)
	}
	if !rest && len(args) > max {
		return diag.New(ast.Intrinsic, "Expected %d arguments, but got %d", max, len(args))
	}
	return nil
}

// ensureTypes checks each argument against the declared parameter types,
// converting through the coercion operators where the target type has one.
// Every mismatch becomes a separate cause.
func ensureTypes(f *object.NativeFunction, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) []object.Value {
	out := make([]object.Value, len(args))
	copy(out, args)
	var causes []*diag.Diagnostic
	for i, arg := range args {
		pi := i
		if pi >= len(f.Params) {
			pi = len(f.Params) - 1
		}
		if pi < 0 || pi >= len(f.Types) || f.Types[pi] == "" {
			continue
		}
		want := f.Types[pi]
		name, optional, _ := object.ParamSpec(f.Params[pi])
		if arg.Type() == want || (optional && object.IsVoid(arg)) {
			continue
		}
		if op := coercion(want); op != "" {
			v, ok := convert(arg, op, pos, scope, result)
			switch result.Signal {
			case object.SignalNone:
			case object.SignalException:
				// A failed conversion is reported as a wrong type.
				result.Clear()
				ok = false
			default:
				return nil
			}
			if ok && v.Type() == want {
				out[i] = v
				continue
			}
		}
		causes = append(causes, diag.New(ast.Intrinsic, "Wrong type for argument \"%s\": expected %s, got %s",
			name, strings.ToLower(string(want)), object.ValueName(arg)))
	}
	if len(causes) > 0 {
		result.Raise(diag.New(ast.Intrinsic, "Expected arguments: %s", f.Signature()).With(causes...))
		return nil
	}
	return out
}

func coercion(t object.Type) string {
	switch t {
	case object.NUMBER_OBJ:
		return object.OpNumber
	case object.BOOLEAN_OBJ:
		return object.OpBoolean
	case object.STRING_OBJ:
		return object.OpString
	}
	return ""
}

// convert applies a unary operator method to v; ok is false when v has no
// such method.
func convert(v object.Value, op string, pos ast.Position, scope *object.Scope, result *object.Result) (object.Value, bool) {
	m, ok := GetProperty(v, op, pos, scope, result)
	if !ok || !result.OK() {
		return nil, false
	}
	fn, ok := m.(object.Function)
	if !ok {
		return nil, false
	}
	Invoke(v, fn, nil, pos, scope, result)
	if !result.OK() {
		return nil, false
	}
	return result.Value, true
}

// ToBoolean evaluates v's truthiness through k:boolean.
func ToBoolean(v object.Value, pos ast.Position, scope *object.Scope, result *object.Result) bool {
	switch {
	case object.IsVoid(v):
		return false
	case v == object.Null:
		return true
	}
	if b, ok := v.(object.Boolean); ok {
		return bool(b)
	}
	r, ok := convert(v, object.OpBoolean, pos, scope, result)
	if !result.OK() {
		return false
	}
	if !ok {
		result.Raisef(pos, "Cannot convert %s to a boolean", object.ValueName(v))
		return false
	}
	b, ok := r.(object.Boolean)
	if !ok {
		result.Raisef(pos, "Operator %s must return a boolean, got %s", object.OpBoolean, object.ValueName(r))
		return false
	}
	return bool(b)
}

// InvokeMethod looks name up on receiver and invokes it.
func InvokeMethod(receiver object.Value, name string, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	m, ok := GetProperty(receiver, name, pos, scope, result)
	if !result.OK() {
		return
	}
	if !ok {
		result.Raisef(pos, "Cannot find method \"%s\" on %s", name, object.ValueName(receiver))
		return
	}
	fn, ok := m.(object.Function)
	if !ok {
		result.Raisef(pos, "Target \"%s\" is not callable", object.ValueName(m))
		return
	}
	Invoke(receiver, fn, args, pos, scope, result)
}
