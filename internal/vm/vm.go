package vm

import (
	"errors"

	"arbor/internal/ast"
	"arbor/internal/code"
	"arbor/internal/compiler"
	"arbor/internal/diag"
	"arbor/internal/limits"
	"arbor/internal/object"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("arbor.vm")

const DefaultMaxRecursion = 1024

// VM is the host-facing entry point. It owns a global scope and the limits
// applied to each top-level evaluation; every Run gets a fresh Result and
// therefore a fresh step budget.
type VM struct {
	globals      *object.Scope
	maxSteps     int64
	maxRecursion int
	optimize     bool
}

func New(globals *object.Scope) *VM {
	if globals == nil {
		globals = NewGlobalScope()
	}
	return &VM{globals: globals, maxRecursion: DefaultMaxRecursion}
}

func (m *VM) Globals() *object.Scope { return m.globals }

// SetMaxSteps bounds the number of instructions a single Run may execute;
// zero means unlimited.
func (m *VM) SetMaxSteps(max int64) {
	if max < 0 {
		max = 0
	}
	m.maxSteps = max
}

func (m *VM) SetMaxRecursion(max int) {
	if max < 0 {
		max = 0
	}
	m.maxRecursion = max
}

// SetOptimize enables the peephole pass for fragments compiled from now on.
// Fragments that already hold a program keep it.
func (m *VM) SetOptimize(on bool) { m.optimize = on }

func (m *VM) NewResult() *object.Result {
	r := object.NewResult(limits.NewBudget(m.maxSteps))
	r.MaxDepth = m.maxRecursion
	r.Optimize = m.optimize
	return r
}

// Run evaluates f in the global scope.
func (m *VM) Run(f *object.Fragment) (object.Value, error) {
	return m.RunIn(f, m.globals)
}

// RunIn evaluates f in scope. A return at the top level completes normally;
// any other label that escapes becomes an error.
func (m *VM) RunIn(f *object.Fragment, scope *object.Scope) (object.Value, error) {
	result := m.NewResult()
	Evaluate(f, scope, result)
	return Finish(result, f.Node().Pos())
}

// Finish converts the state of a top-level result into a value or an error.
func Finish(result *object.Result, pos ast.Position) (object.Value, error) {
	switch result.Signal {
	case object.SignalNone:
		return result.Value, nil
	case object.SignalLabel:
		if result.Label == object.LabelReturn {
			v := result.Value
			result.Clear()
			return v, nil
		}
		return nil, diag.New(pos, "Unresolved label '%s'", result.Label)
	}
	return nil, result.Error()
}

// Compile compiles f against scope without running it.
func (m *VM) Compile(f *object.Fragment, scope *object.Scope) (*object.Program, error) {
	if f.Compiled() {
		return f.Program(), nil
	}
	result := m.NewResult()
	p, err := compile(f.Node(), scope, result)
	if err != nil {
		return nil, err
	}
	f.SetProgram(p)
	return p, nil
}

// Inspect describes v through its k:inspect operator.
func (m *VM) Inspect(v object.Value) string {
	return Inspect(v, m.globals, m.NewResult())
}

type invoker struct{}

func (invoker) Call(fn object.Function, args []object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	Call(fn, args, pos, scope, result)
}

func compile(node ast.Node, scope *object.Scope, result *object.Result) (*object.Program, error) {
	c := compiler.New(scope, result, invoker{})
	if err := c.Compile(node); err != nil {
		return nil, err
	}
	p := c.Bytecode()
	if result.Optimize {
		p = compiler.Optimize(p)
	}
	log.Debugf("compiled fragment at %s: %d instructions, %d labels", node.Pos(), len(p.Instructions), len(p.Labels))
	return p, nil
}

// fail records a Go error on result: diagnostics become exceptions,
// everything else is fatal.
func fail(result *object.Result, err error) {
	var d *diag.Diagnostic
	if errors.As(err, &d) {
		result.Raise(d)
		return
	}
	result.Abort(err)
}

// Evaluate compiles f on first use and runs it in scope. The outcome is left
// on result.
func Evaluate(f *object.Fragment, scope *object.Scope, result *object.Result) {
	if !f.Compiled() {
		p, err := compile(f.Node(), scope, result)
		if err != nil {
			fail(result, err)
			return
		}
		f.SetProgram(p)
	}
	run(f.Program(), scope, result)
}

func run(p *object.Program, scope *object.Scope, result *object.Result) {
	fr := NewFrame(p)
	ins := p.Instructions
	for fr.pc < len(ins) {
		if !result.Step() {
			return
		}
		in := &ins[fr.pc]
		fr.pc++
		if execute(fr, in, scope, result) {
			continue
		}

		// Unwinding: stop unless the label lives in this fragment.
		if result.Signal != object.SignalLabel {
			return
		}
		l, ok := p.Labels[result.Label]
		if !ok {
			return
		}
		height, args, ok := fr.resolve(l)
		if !ok {
			return
		}
		v := result.Value
		result.Clear()
		fr.restore(height-1, args)
		fr.push(v)
		fr.pc = l.Index
	}
	result.Set(fr.pop())
}

// execute runs one instruction and reports whether evaluation continues
// normally; false means a signal is pending on result.
func execute(fr *Frame, in *code.Instruction, scope *object.Scope, result *object.Result) bool {
	p := fr.program
	switch in.Op {
	case code.OpConstant:
		fr.push(p.Constants[in.Operand])

	case code.OpLoad:
		variable := scope.Find(in.Name)
		if variable == nil {
			result.Raisef(in.Pos, "Cannot find variable \"%s\"", in.Name)
			return false
		}
		fr.push(variable.Value)

	case code.OpStore:
		variable := scope.Find(in.Name)
		if variable == nil {
			result.Raisef(in.Pos, "Cannot find variable \"%s\"", in.Name)
			return false
		}
		variable.Value = fr.peek()

	case code.OpDeclare:
		v := fr.peek()
		if scope.Declare(in.Name, v) == nil {
			result.Raisef(in.Pos, "Duplicate declaration of variable \"%s\"", in.Name)
			return false
		}
		if _, ok := v.(object.Function); ok {
			object.SetName(v, in.Name)
		}

	case code.OpGet:
		receiver := fr.pop()
		v, ok := GetProperty(receiver, in.Name, in.Pos, scope, result)
		if !result.OK() {
			return false
		}
		if !ok {
			result.Raisef(in.Pos, "Cannot find property \"%s.%s\"", object.ValueName(receiver), in.Name)
			return false
		}
		fr.push(v)

	case code.OpSet:
		value := fr.pop()
		receiver := fr.pop()
		SetProperty(receiver, in.Name, value, in.Pos, scope, result)
		if !result.OK() {
			return false
		}
		fr.push(value)

	case code.OpDeclareProperty:
		value := fr.pop()
		receiver := fr.pop()
		DeclareProperty(receiver, in.Name, value, in.Pos, result)
		if !result.OK() {
			return false
		}
		fr.push(value)

	case code.OpPrepareInvoke:
		target := fr.pop()
		fn, receiver := target, object.Void
		if in.Name != "" {
			method, ok := GetProperty(target, in.Name, in.Pos, scope, result)
			if !result.OK() {
				return false
			}
			if !ok {
				result.Raisef(in.Pos, "Cannot find method \"%s\" on %s", in.Name, object.ValueName(target))
				return false
			}
			fn, receiver = method, target
		}
		f, ok := fn.(object.Function)
		if !ok {
			result.Raisef(in.Pos, "Target \"%s\" is not callable", object.ValueName(fn))
			return false
		}
		fr.push(f)
		argc := in.Operand
		if f.HasThis() {
			fr.push(receiver)
			argc++
		}
		fr.pushArgs(argc)

	case code.OpSpread:
		arr, ok := fr.pop().(*object.Array)
		if !ok {
			result.Raisef(in.Pos, "Spread operator must be used on an array")
			return false
		}
		for _, e := range arr.Elements {
			fr.push(e)
		}
		fr.growArgs(len(arr.Elements) - 1)

	case code.OpAppendArgument:
		fr.growArgs(1)

	case code.OpDuplicateInvocation:
		n := fr.peekArgs()
		pending := fr.stack[len(fr.stack)-n-1:]
		for _, v := range append([]object.Value(nil), pending...) {
			fr.push(v)
		}
		fr.pushArgs(n)

	case code.OpInvoke:
		args := fr.popN(fr.popArgs())
		fn := fr.pop().(object.Function)
		Call(fn, args, in.Pos, scope, result)
		if !result.OK() {
			return false
		}
		fr.push(result.Value)

	case code.OpInvokeMacro:
		var receiver object.Value
		if p.Macros[in.Operand].Method {
			receiver = fr.pop()
		}
		expandAndRun(p.Macros[in.Operand], receiver, in.Pos, scope, result)
		if !result.OK() {
			return false
		}
		fr.push(result.Value)

	case code.OpDiscard:
		fr.pop()

	case code.OpDuplicate:
		fr.push(fr.peek())

	case code.OpJump:
		return jump(fr, in, result)

	case code.OpBranch:
		v := fr.pop()
		var take bool
		switch code.Condition(in.Operand) {
		case code.IfFalse, code.IfTrue:
			b := ToBoolean(v, in.Pos, scope, result)
			if !result.OK() {
				return false
			}
			take = b == (code.Condition(in.Operand) == code.IfTrue)
		case code.IfPresent:
			take = !object.IsNullish(v)
		case code.IfDefined:
			take = !object.IsVoid(v)
		}
		if take {
			return jump(fr, in, result)
		}

	case code.OpReturn:
		result.Return(fr.pop())
		return false

	case code.OpUnwind:
		result.Unwind(in.Name, fr.pop())
		return false

	case code.OpDeclareFunction:
		tmpl := p.Functions[in.Operand]
		fr.push(object.NewScriptFunction(scope.Realm().Function, tmpl, scope))

	case code.OpDestructure:
		arr, ok := fr.peek().(*object.Array)
		if !ok {
			result.Raisef(in.Pos, "Destructuring is only supported for arrays, got %s", object.ValueName(fr.peek()))
			return false
		}
		Bind(p.Patterns[in.Operand], false, false, arr.Elements, in.Pos, scope, result)
		if !result.OK() {
			return false
		}

	case code.OpPrepareCollection:
		fr.pushArgs(in.Operand)

	case code.OpAnchor:
		fr.anchor(in.Operand)

	case code.OpBuildArray:
		values := fr.popN(fr.popArgs())
		elements := make([]object.Value, 0, len(values))
		for _, v := range values {
			if !object.IsVoid(v) {
				elements = append(elements, v)
			}
		}
		fr.push(scope.Realm().NewArray(elements))

	case code.OpBuildMap:
		values := fr.popN(2 * in.Operand)
		m := scope.Realm().NewMap()
		for i := 0; i+1 < len(values); i += 2 {
			if object.IsVoid(values[i]) || object.IsVoid(values[i+1]) {
				continue
			}
			m.Set(values[i], values[i+1])
		}
		fr.push(m)

	default:
		result.Abort(errors.New("unknown opcode " + in.Op.String()))
		return false
	}
	return true
}

// jump moves to the instruction's resolved target, or unwinds when the label
// is not part of this fragment.
func jump(fr *Frame, in *code.Instruction, result *object.Result) bool {
	if in.Target >= 0 {
		fr.pc = in.Target
		return true
	}
	result.Unwind(in.Name, object.Void)
	return false
}

// expandAndRun handles macros that could not be resolved at compile time:
// the macro is looked up now, expanded against the current scope and the
// expansion evaluated in place.
func expandAndRun(call object.MacroCall, receiver object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	var fnv object.Value
	var recvNode ast.Node
	if call.Method {
		v, ok := GetProperty(receiver, call.Name, pos, scope, result)
		if !result.OK() {
			return
		}
		if !ok {
			result.Raisef(pos, "Cannot find macro \"%s\" on %s", call.Name, object.ValueName(receiver))
			return
		}
		fnv = v
		recvNode = &ast.Constant{Position: pos, Value: receiver}
	} else {
		variable := scope.Find(call.Name)
		if variable == nil {
			result.Raisef(pos, "Cannot find macro \"%s\"", call.Name)
			return
		}
		fnv = variable.Value
	}
	fn, ok := fnv.(object.Function)
	if !ok {
		result.Raisef(pos, "Macro \"%s\" is not callable: %s", call.Name, object.ValueName(fnv))
		return
	}

	c := compiler.New(scope, result, invoker{})
	if err := c.Expand(fn, call.Name, recvNode, call.Args, pos); err != nil {
		fail(result, err)
		return
	}
	p := c.Bytecode()
	if result.Optimize {
		p = compiler.Optimize(p)
	}
	run(p, scope, result)
}
