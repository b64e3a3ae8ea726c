package code

import (
	"bytes"
	"fmt"
	"sort"
)

type Instructions []Instruction

func (ins Instructions) String() string {
	return Format(ins, nil)
}

// Format disassembles instructions, printing a header before every
// instruction a label points at.
func Format(ins Instructions, labels map[string]Label) string {
	var out bytes.Buffer

	marks := map[int][]string{}
	for name, l := range labels {
		marks[l.Index] = append(marks[l.Index], name)
	}
	for _, names := range marks {
		sort.Strings(names)
	}

	for i := 0; i <= len(ins); i++ {
		for _, name := range marks[i] {
			fmt.Fprintf(&out, "==== %s ====\n", name)
		}
		if i == len(ins) {
			break
		}
		in := ins[i]
		def, ok := Lookup(in.Op)
		if !ok {
			fmt.Fprintf(&out, "%04d UNKNOWN_OPCODE %d\n", i, in.Op)
			continue
		}
		fmt.Fprintf(&out, "%04d %s", i, def.Name)
		for _, f := range def.Fields {
			switch f {
			case "operand":
				fmt.Fprintf(&out, " %d", in.Operand)
			case "name":
				if in.Name != "" {
					fmt.Fprintf(&out, " %q", in.Name)
				}
			case "label":
				fmt.Fprintf(&out, " %s", in.Name)
				if in.Target >= 0 {
					fmt.Fprintf(&out, "@%04d", in.Target)
				}
			case "condition":
				fmt.Fprintf(&out, " if-%s", Condition(in.Operand))
			}
		}
		fmt.Fprintf(&out, "\n")
	}

	return out.String()
}
