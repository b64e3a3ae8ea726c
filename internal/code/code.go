package code

import (
	"fmt"

	"arbor/internal/ast"
)

type Opcode byte

const (
	OpConstant Opcode = iota // push constants[Operand]

	OpLoad            // push variable Name
	OpStore           // assign top to existing variable Name (value stays)
	OpDeclare         // declare variable Name with top (value stays)
	OpGet             // pop receiver, push property Name
	OpSet             // pop value, pop receiver, set property Name, push value
	OpDeclareProperty // pop value, pop receiver, declare property Name, push value

	OpPrepareInvoke       // pop target, push function (and receiver when it takes `this`); Operand = argument count, Name = method or ""
	OpSpread              // pop array, push its elements, grow pending argument count
	OpAppendArgument      // grow pending argument count by one
	OpDuplicateInvocation // copy the pending invocation (function, receiver, arguments)
	OpInvoke              // pop function and arguments, invoke, push result
	OpInvokeMacro         // resolve Macros[Operand] (popping its receiver for method macros), expand it and run the expansion

	OpDiscard
	OpDuplicate

	OpJump   // jump to Target (label Name)
	OpBranch // pop condition, jump to Target when it satisfies Condition(Operand)
	OpReturn // pop value, raise the return label
	OpUnwind // pop value, raise label Name

	OpDeclareFunction // push a closure over Functions[Operand]
	OpDestructure     // bind the top array to Patterns[Operand] (value stays)

	OpPrepareCollection // start a pending element count of Operand
	OpBuildArray        // pop pending elements, push array
	OpBuildMap          // pop Operand key/value pairs, push map

	OpAnchor // remember the stack height and open argument lists for labels anchored at Operand
)

// Condition selects what OpBranch tests.
type Condition int

const (
	IfFalse Condition = iota
	IfTrue
	IfPresent // neither null nor void
	IfDefined // not void
)

func (c Condition) String() string {
	switch c {
	case IfFalse:
		return "false"
	case IfTrue:
		return "true"
	case IfPresent:
		return "present"
	case IfDefined:
		return "defined"
	}
	return fmt.Sprintf("condition(%d)", int(c))
}

// Instruction is one VM step. Name holds the variable, property, method or
// label name; Target the resolved jump index (-1 while unresolved).
type Instruction struct {
	Op      Opcode
	Operand int
	Name    string
	Target  int
	Pos     ast.Position
}

// Label records where a label was marked. Depth is the static value-stack
// depth at that point. Inside an argument list the depth is only known
// relative to an OpAnchor executed earlier in the same list: Anchor names
// it and Depth counts from the height it recorded. Depth is -1 when a label
// has no anchor and cannot be the destination of an unwind.
type Label struct {
	Index  int
	Depth  int
	Anchor int
}

type Definition struct {
	Name string
	// Effect is the net change of the value-stack depth. Dynamic opcodes
	// depend on run-time argument counts and are tracked by the compiler.
	Effect  int
	Dynamic bool
	// Fields lists the instruction fields the disassembler prints.
	Fields []string
}

var definitions = map[Opcode]*Definition{
	OpConstant:            {"OpConstant", 1, false, []string{"operand"}},
	OpLoad:                {"OpLoad", 1, false, []string{"name"}},
	OpStore:               {"OpStore", 0, false, []string{"name"}},
	OpDeclare:             {"OpDeclare", 0, false, []string{"name"}},
	OpGet:                 {"OpGet", 0, false, []string{"name"}},
	OpSet:                 {"OpSet", -1, false, []string{"name"}},
	OpDeclareProperty:     {"OpDeclareProperty", -1, false, []string{"name"}},
	OpPrepareInvoke:       {"OpPrepareInvoke", 0, true, []string{"operand", "name"}},
	OpSpread:              {"OpSpread", 0, true, nil},
	OpAppendArgument:      {"OpAppendArgument", 0, true, nil},
	OpDuplicateInvocation: {"OpDuplicateInvocation", 0, true, nil},
	OpInvoke:              {"OpInvoke", 0, true, nil},
	OpInvokeMacro:         {"OpInvokeMacro", 0, true, []string{"operand", "name"}},
	OpDiscard:             {"OpDiscard", -1, false, nil},
	OpDuplicate:           {"OpDuplicate", 1, false, nil},
	OpJump:                {"OpJump", 0, false, []string{"label"}},
	OpBranch:              {"OpBranch", -1, false, []string{"label", "condition"}},
	OpReturn:              {"OpReturn", 0, false, nil},
	OpUnwind:              {"OpUnwind", 0, false, []string{"name"}},
	OpDeclareFunction:     {"OpDeclareFunction", 1, false, []string{"operand"}},
	OpDestructure:         {"OpDestructure", 0, false, []string{"operand"}},
	OpPrepareCollection:   {"OpPrepareCollection", 0, true, []string{"operand"}},
	OpBuildArray:          {"OpBuildArray", 0, true, nil},
	OpBuildMap:            {"OpBuildMap", 0, true, []string{"operand"}},
	OpAnchor:              {"OpAnchor", 0, false, []string{"operand"}},
}

func Lookup(op Opcode) (*Definition, bool) {
	def, ok := definitions[op]
	return def, ok
}

func (op Opcode) String() string {
	if def, ok := definitions[op]; ok {
		return def.Name
	}
	return fmt.Sprintf("UNKNOWN_OPCODE %d", byte(op))
}

// Make builds an instruction with an unresolved jump target.
func Make(op Opcode, operand int, name string, pos ast.Position) Instruction {
	return Instruction{Op: op, Operand: operand, Name: name, Target: -1, Pos: pos}
}
