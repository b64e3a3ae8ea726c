package object

type Array struct {
	ObjectHeader
	Elements []Value
}

func NewArray(prototype Object, elements []Value) *Array {
	if elements == nil {
		elements = []Value{}
	}
	return &Array{ObjectHeader: ObjectHeader{Prototype: prototype}, Elements: elements}
}

func (*Array) Type() Type { return ARRAY_OBJ }

func (a *Array) Len() int { return len(a.Elements) }

// Index resolves a possibly negative index; ok is false when it falls
// outside the array.
func (a *Array) Index(i int) (int, bool) {
	if i < 0 {
		i += len(a.Elements)
	}
	return i, i >= 0 && i < len(a.Elements)
}
