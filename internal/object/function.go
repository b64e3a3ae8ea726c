package object

import (
	"strings"

	"arbor/internal/ast"
)

// ThisParameter as the first parameter makes a function receive its
// receiver as the first argument.
const ThisParameter = "this"

// Function is implemented by ScriptFunction and NativeFunction.
type Function interface {
	Object
	// HasThis reports whether the receiver is prepended to the arguments.
	HasThis() bool
	Signature() string
}

// Parameter is a parsed parameter plus its lazily compiled default.
type Parameter struct {
	*ast.Parameter
	Default *Fragment
}

func NewParameters(params []*ast.Parameter) []*Parameter {
	out := make([]*Parameter, 0, len(params))
	for _, p := range params {
		op := &Parameter{Parameter: p}
		if p.Default != nil {
			op.Default = NewFragment(p.Default)
		}
		out = append(out, op)
	}
	return out
}

// FunctionTemplate is what a function declaration compiles to; every closure
// created from it shares the parameters and the body fragment.
type FunctionTemplate struct {
	Params []*Parameter
	Body   *Fragment
	Pos    ast.Position
}

func NewFunctionTemplate(decl *ast.FunctionDeclaration) *FunctionTemplate {
	return &FunctionTemplate{
		Params: NewParameters(decl.Parameters),
		Body:   NewFragment(decl.Body),
		Pos:    decl.Position,
	}
}

type ScriptFunction struct {
	ObjectHeader
	Template *FunctionTemplate
	Closure  *Scope
}

func NewScriptFunction(prototype Object, tmpl *FunctionTemplate, closure *Scope) *ScriptFunction {
	return &ScriptFunction{
		ObjectHeader: ObjectHeader{Prototype: prototype},
		Template:     tmpl,
		Closure:      closure,
	}
}

func (*ScriptFunction) Type() Type { return FUNCTION_OBJ }

func (f *ScriptFunction) HasThis() bool {
	ps := f.Template.Params
	return len(ps) > 0 && ps[0].Name == ThisParameter && !ps[0].IsSpread
}

func (f *ScriptFunction) Signature() string {
	parts := make([]string, 0, len(f.Template.Params))
	for _, p := range f.Template.Params {
		parts = append(parts, p.String())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// NativeHandler is the host extension point: it receives the already bound
// arguments and reports through result.
type NativeHandler interface {
	Call(args []Value, scope *Scope, result *Result)
}

type NativeHandlerFunc func(args []Value, scope *Scope, result *Result)

func (f NativeHandlerFunc) Call(args []Value, scope *Scope, result *Result) {
	f(args, scope, result)
}

// NativeFunction wraps a host handler. Params uses `name?` for optional and
// `...name` for rest parameters; nil Params disables arity checks. Types,
// when set, has one entry per parameter ("" accepts anything).
type NativeFunction struct {
	ObjectHeader
	Params  []string
	Types   []Type
	Handler NativeHandler
}

func NewNativeFunction(prototype Object, params []string, handler NativeHandlerFunc) *NativeFunction {
	return &NativeFunction{
		ObjectHeader: ObjectHeader{Prototype: prototype},
		Params:       params,
		Handler:      handler,
	}
}

func (*NativeFunction) Type() Type { return FUNCTION_OBJ }

func (f *NativeFunction) HasThis() bool {
	return len(f.Params) > 0 && f.Params[0] == ThisParameter
}

func (f *NativeFunction) Signature() string {
	parts := make([]string, 0, len(f.Params))
	for i, p := range f.Params {
		if i < len(f.Types) && f.Types[i] != "" {
			p += ": " + strings.ToLower(string(f.Types[i]))
		} else if i < len(f.Types) {
			p += ": any"
		}
		parts = append(parts, p)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ParamSpec decodes the markers of a native parameter name.
func ParamSpec(p string) (name string, optional, rest bool) {
	if strings.HasPrefix(p, "...") {
		return p[3:], false, true
	}
	if strings.HasSuffix(p, "?") {
		return p[:len(p)-1], true, false
	}
	return p, false, false
}
