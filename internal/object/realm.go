package object

// Realm holds the prototypes shared by every scope of one global scope.
type Realm struct {
	Table    *Table // root of every prototype chain
	Function *Table
	Number   *Table
	String   *Table
	Boolean  *Table
	Array    *Table
	Map      *Table
	Compiler *Table

	// InspectDepth guards k:inspect recursion through cyclic containers.
	InspectDepth int
}

func NewRealm() *Realm {
	root := NewNamedTable("Table.prototype", nil)
	proto := func(name string) *Table { return NewNamedTable(name+".prototype", root) }
	return &Realm{
		Table:    root,
		Function: proto("Function"),
		Number:   proto("Number"),
		String:   proto("String"),
		Boolean:  proto("Boolean"),
		Array:    proto("Array"),
		Map:      proto("Map"),
		Compiler: proto("Compiler"),
	}
}

// PrototypeOf returns the object lookups start from: the object itself, or
// the prototype registered for a primitive kind. Void and null delegate to
// the root prototype.
func (r *Realm) PrototypeOf(v Value) Object {
	switch v := v.(type) {
	case Object:
		return v
	case Number:
		return r.Number
	case String:
		return r.String
	case Boolean:
		return r.Boolean
	case voidValue, nullValue:
		return r.Table
	}
	return nil
}

func (r *Realm) NewArray(elements []Value) *Array { return NewArray(r.Array, elements) }

func (r *Realm) NewMap() *Map { return NewMap(r.Map) }

func (r *Realm) NewTable() *Table { return NewTable(r.Table) }

func (r *Realm) NewNative(params []string, handler NativeHandlerFunc) *NativeFunction {
	return NewNativeFunction(r.Function, params, handler)
}

// OwnProperty reads a property stored on the object itself, including the
// virtual ones of arrays, maps and functions.
func OwnProperty(o Object, name string) (Value, bool) {
	switch o := o.(type) {
	case *Table:
		return o.Own(name)
	case *Array:
		if name == "length" {
			return Number(len(o.Elements)), true
		}
	case *Map:
		if name == "length" {
			return Number(o.Len()), true
		}
	case *ScriptFunction, *NativeFunction:
		if name == "name" {
			return String(o.Header().Name), true
		}
	}
	return nil, false
}
