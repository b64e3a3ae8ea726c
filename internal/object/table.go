package object

import "strings"

const (
	GetterPrefix = "get_"
	SetterPrefix = "set_"
)

// Table is the general-purpose object: a string-keyed property store where
// declaring and assigning are distinct operations.
type Table struct {
	ObjectHeader
	props map[string]Value
	keys  []string
}

func NewTable(prototype Object) *Table {
	return &Table{ObjectHeader: ObjectHeader{Prototype: prototype}, props: map[string]Value{}}
}

func NewNamedTable(name string, prototype Object) *Table {
	t := NewTable(prototype)
	t.Name = name
	return t
}

func (*Table) Type() Type { return TABLE_OBJ }

// Declare adds a property and fails if it already exists. Declaring a
// get_/set_ property turns on the matching accessor flag, and an unnamed
// object stored in a named table is named after its path.
func (t *Table) Declare(name string, v Value) bool {
	if _, ok := t.props[name]; ok {
		return false
	}
	t.props[name] = v
	t.keys = append(t.keys, name)
	if strings.HasPrefix(name, GetterPrefix) {
		t.HasGetters = true
	}
	if strings.HasPrefix(name, SetterPrefix) {
		t.HasSetters = true
	}
	if t.Name != "" {
		SetName(v, t.Name+"."+name)
	}
	return true
}

// Set assigns an existing property and fails if it is absent.
func (t *Table) Set(name string, v Value) bool {
	if _, ok := t.props[name]; !ok {
		return false
	}
	t.props[name] = v
	return true
}

func (t *Table) Own(name string) (Value, bool) {
	v, ok := t.props[name]
	return v, ok
}

// Keys returns property names in declaration order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

func (t *Table) Len() int { return len(t.keys) }
