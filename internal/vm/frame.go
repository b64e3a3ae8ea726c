package vm

import (
	"arbor/internal/code"
	"arbor/internal/object"
)

// Frame is the state of one fragment evaluation: its program counter, the
// value stack and the stack of pending argument counts.
type Frame struct {
	program *object.Program
	pc      int
	stack   []object.Value
	args    []int

	// lists identifies each pending argument list so that an anchor can
	// tell whether the list it was recorded in is still open.
	lists    []int
	nextList int
	anchors  map[int]anchorState
}

type anchorState struct {
	height int
	args   int
	list   int
}

func NewFrame(p *object.Program) *Frame {
	return &Frame{program: p, stack: make([]object.Value, 0, 16)}
}

func (f *Frame) push(v object.Value) {
	if v == nil {
		v = object.Void
	}
	f.stack = append(f.stack, v)
}

func (f *Frame) pop() object.Value {
	if len(f.stack) == 0 {
		return object.Void
	}
	v := f.stack[len(f.stack)-1]
	f.stack[len(f.stack)-1] = nil
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *Frame) peek() object.Value {
	if len(f.stack) == 0 {
		return object.Void
	}
	return f.stack[len(f.stack)-1]
}

// popN removes the top n values and returns them in push order.
func (f *Frame) popN(n int) []object.Value {
	if n > len(f.stack) {
		n = len(f.stack)
	}
	out := make([]object.Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.truncate(len(f.stack) - n)
	return out
}

func (f *Frame) truncate(depth int) {
	if depth < 0 {
		depth = 0
	}
	for i := depth; i < len(f.stack); i++ {
		f.stack[i] = nil
	}
	if depth < len(f.stack) {
		f.stack = f.stack[:depth]
	}
}

func (f *Frame) pushArgs(n int) {
	f.nextList++
	f.args = append(f.args, n)
	f.lists = append(f.lists, f.nextList)
}

func (f *Frame) popArgs() int {
	if len(f.args) == 0 {
		return 0
	}
	n := f.args[len(f.args)-1]
	f.args = f.args[:len(f.args)-1]
	f.lists = f.lists[:len(f.lists)-1]
	return n
}

// anchor records the current stack height for labels anchored at id.
func (f *Frame) anchor(id int) {
	if f.anchors == nil {
		f.anchors = map[int]anchorState{}
	}
	state := anchorState{height: len(f.stack), args: len(f.args), list: -1}
	if n := len(f.lists); n > 0 {
		state.list = f.lists[n-1]
	}
	f.anchors[id] = state
}

// resolve returns the stack height and number of pending argument lists
// control must be restored to when unwinding to l.
func (f *Frame) resolve(l code.Label) (height, args int, ok bool) {
	if l.Anchor == 0 {
		return l.Depth, 0, l.Depth >= 1
	}
	a, ok := f.anchors[l.Anchor]
	if !ok || l.Depth < 1 || a.args > len(f.args) {
		return 0, 0, false
	}
	if a.args > 0 && f.lists[a.args-1] != a.list {
		return 0, 0, false
	}
	return a.height + l.Depth, a.args, true
}

// restore drops everything above height and the argument lists opened
// after the first args.
func (f *Frame) restore(height, args int) {
	f.truncate(height)
	if args < len(f.args) {
		f.args = f.args[:args]
		f.lists = f.lists[:args]
	}
}

func (f *Frame) growArgs(n int) {
	if len(f.args) > 0 {
		f.args[len(f.args)-1] += n
	}
}

func (f *Frame) peekArgs() int {
	if len(f.args) == 0 {
		return 0
	}
	return f.args[len(f.args)-1]
}
