package ast

// Constructors for trees assembled by hosts and tests. Nodes built this way
// carry the intrinsic position.

func Num(v float64) *NumberLiteral { return &NumberLiteral{Value: v} }

func Str(v string) *StringLiteral { return &StringLiteral{Value: v} }

func Id(name string) *Identifier { return &Identifier{Name: name} }

func Decl(target Node) *VariableDeclaration { return &VariableDeclaration{Target: target} }

func Assign(receiver, value Node) *Assignment {
	return &Assignment{Receiver: receiver, Value: value}
}

func Update(op string, receiver, value Node) *AdvancedAssignment {
	return &AdvancedAssignment{Operator: op, Receiver: receiver, Value: value}
}

func Get(receiver Node, member string) *MemberAccess {
	return &MemberAccess{Receiver: receiver, Member: member}
}

func Grp(children ...Node) *Group { return &Group{Children: children} }

func Arr(elements ...Node) *ArrayLiteral { return &ArrayLiteral{Elements: elements} }

func Spr(target Node) *Spread { return &Spread{Target: target} }

func Lbl(name string, target Node) *Label { return &Label{Name: name, Target: target} }

func Call(target Node, args ...Node) *Invocation {
	return &Invocation{Target: target, Arguments: args}
}

// Method builds `receiver.name(args...)`, the shape operators lower to.
func Method(receiver Node, name string, args ...Node) *Invocation {
	return Call(Get(receiver, name), args...)
}

// Map builds a map literal from alternating keys and values.
func Map(kv ...Node) *MapLiteral {
	m := &MapLiteral{}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Entries = append(m.Entries, MapEntry{Key: kv[i], Value: kv[i+1]})
	}
	return m
}

// Fn builds a function literal; it panics on a malformed parameter, which
// only hand-written trees can contain.
func Fn(body Node, params ...Node) *FunctionDeclaration {
	ps, err := ParseParameters(params)
	if err != nil {
		panic(err)
	}
	return &FunctionDeclaration{Parameters: ps, Body: body}
}
