package compiler

import (
	"arbor/internal/code"
	"arbor/internal/object"
)

// Optimize removes instruction sequences with no effect and returns a new
// program; p itself is left untouched. Labels and resolved jumps are
// remapped to the shifted indices.
func Optimize(p *object.Program) *object.Program {
	ins := append(code.Instructions(nil), p.Instructions...)
	labels := make(map[string]code.Label, len(p.Labels))
	for name, l := range p.Labels {
		labels[name] = l
	}
	for {
		var changed bool
		ins, changed = rebuild(ins, labels, peephole)
		if !changed {
			break
		}
	}
	out := *p
	out.Instructions = ins
	out.Labels = labels
	return &out
}

// rewriteFunc reports how many instructions starting at `at` can be dropped.
type rewriteFunc func(at int, ins code.Instructions, marked map[int]bool) int

func peephole(at int, ins code.Instructions, marked map[int]bool) int {
	next := at + 1
	switch ins[at].Op {
	case code.OpConstant, code.OpDuplicate:
		// A value pushed and dropped right away, unless a jump can land
		// between the two.
		if next < len(ins) && ins[next].Op == code.OpDiscard && !marked[next] {
			return 2
		}
	case code.OpJump:
		if ins[at].Target == next {
			return 1
		}
	}
	return 0
}

func rebuild(ins code.Instructions, labels map[string]code.Label, rewrite rewriteFunc) (code.Instructions, bool) {
	marked := make(map[int]bool, len(labels))
	for _, l := range labels {
		marked[l.Index] = true
	}
	for _, in := range ins {
		if in.Target >= 0 {
			marked[in.Target] = true
		}
	}

	oldToNew := make([]int, len(ins)+1)
	out := make(code.Instructions, 0, len(ins))
	changed := false
	for i := 0; i < len(ins); {
		if n := rewrite(i, ins, marked); n > 0 {
			for j := i; j < i+n; j++ {
				oldToNew[j] = len(out)
			}
			i += n
			changed = true
			continue
		}
		oldToNew[i] = len(out)
		out = append(out, ins[i])
		i++
	}
	oldToNew[len(ins)] = len(out)
	if !changed {
		return ins, false
	}

	for i := range out {
		if out[i].Target >= 0 {
			out[i].Target = oldToNew[out[i].Target]
		}
	}
	for name, l := range labels {
		l.Index = oldToNew[l.Index]
		labels[name] = l
	}
	return out, true
}
