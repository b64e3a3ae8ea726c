package object

import (
	"fmt"

	"arbor/internal/ast"
	"arbor/internal/diag"
	"arbor/internal/limits"
)

// Signal is the non-local outcome of an evaluation.
type Signal int

const (
	SignalNone Signal = iota
	// SignalLabel unwinds to the named label carrying Value.
	SignalLabel
	// SignalException unwinds to the host carrying Diagnostic.
	SignalException
	// SignalFatal stops evaluation; no script code can intercept it.
	SignalFatal
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalLabel:
		return "label"
	case SignalException:
		return "exception"
	case SignalFatal:
		return "fatal"
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// LabelReturn is the label a function return unwinds to.
const LabelReturn = "!return"

// Result is threaded through one top-level evaluation and everything it
// calls. It holds the last value, the pending signal and the step budget.
type Result struct {
	Value      Value
	Signal     Signal
	Label      string
	Diagnostic *diag.Diagnostic
	Err        error
	Budget     *limits.Budget

	// Depth is the number of function calls in progress; MaxDepth (0 for
	// unlimited) bounds it.
	Depth    int
	MaxDepth int

	// Optimize asks the compiler to run the peephole pass over fragments
	// compiled under this result.
	Optimize bool
}

func NewResult(budget *limits.Budget) *Result {
	return &Result{Value: Void, Budget: budget}
}

// OK reports whether no signal is pending.
func (r *Result) OK() bool { return r.Signal == SignalNone }

func (r *Result) Set(v Value) {
	if v == nil {
		v = Void
	}
	r.Value = v
}

// Raise signals an exception.
func (r *Result) Raise(d *diag.Diagnostic) {
	r.Signal = SignalException
	r.Diagnostic = d
	r.Label = ""
	r.Value = Void
}

func (r *Result) Raisef(pos ast.Position, format string, args ...any) {
	r.Raise(diag.New(pos, format, args...))
}

// Unwind signals a jump to label carrying v.
func (r *Result) Unwind(label string, v Value) {
	r.Signal = SignalLabel
	r.Label = label
	r.Set(v)
}

func (r *Result) Return(v Value) { r.Unwind(LabelReturn, v) }

// Abort signals a fatal error.
func (r *Result) Abort(err error) {
	r.Signal = SignalFatal
	r.Err = err
	r.Label = ""
	r.Value = Void
}

// Clear drops the pending signal and keeps the value.
func (r *Result) Clear() {
	r.Signal = SignalNone
	r.Label = ""
	r.Diagnostic = nil
}

// IsLabel reports whether the pending signal is a jump to label.
func (r *Result) IsLabel(label string) bool {
	return r.Signal == SignalLabel && r.Label == label
}

// Step charges one execution step and aborts on exhaustion.
func (r *Result) Step() bool {
	if r.Signal == SignalFatal {
		return false
	}
	if err := r.Budget.Charge(1); err != nil {
		r.Abort(err)
		return false
	}
	return true
}

// Error converts a pending exception or fatal signal into a Go error.
func (r *Result) Error() error {
	switch r.Signal {
	case SignalException:
		return r.Diagnostic
	case SignalFatal:
		return r.Err
	}
	return nil
}
