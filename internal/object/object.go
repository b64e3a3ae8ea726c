package object

import (
	"fmt"
	"reflect"
	"strconv"
)

type Type string

const (
	VOID_OBJ             Type = "VOID"
	NULL_OBJ             Type = "NULL"
	NUMBER_OBJ           Type = "NUMBER"
	STRING_OBJ           Type = "STRING"
	BOOLEAN_OBJ          Type = "BOOLEAN"
	TABLE_OBJ            Type = "TABLE"
	ARRAY_OBJ            Type = "ARRAY"
	MAP_OBJ              Type = "MAP"
	FUNCTION_OBJ         Type = "FUNCTION"
	NATIVE_HANDLE_OBJ    Type = "NATIVE_HANDLE"
	UNMANAGED_HANDLE_OBJ Type = "UNMANAGED_HANDLE"
	EXPRESSION_OBJ       Type = "EXPRESSION"
)

// Value is anything a script can hold. The set of implementations is closed
// to this package.
type Value interface {
	Type() Type
}

type Number float64

func (Number) Type() Type { return NUMBER_OBJ }
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

type String string

func (String) Type() Type { return STRING_OBJ }

type Boolean bool

func (Boolean) Type() Type { return BOOLEAN_OBJ }

type voidValue struct{}

func (voidValue) Type() Type { return VOID_OBJ }

type nullValue struct{}

func (nullValue) Type() Type { return NULL_OBJ }

var (
	// Void is the absence of a value.
	Void Value = voidValue{}
	// Null is the explicit empty value.
	Null Value = nullValue{}

	True  Value = Boolean(true)
	False Value = Boolean(false)
)

func IsVoid(v Value) bool { return v == nil || v == Void }

// IsNullish reports whether v is null or void.
func IsNullish(v Value) bool { return IsVoid(v) || v == Null }

// Object is a Value with identity, a prototype and a name.
type Object interface {
	Value
	Header() *ObjectHeader
}

// ObjectHeader holds the state shared by every object kind.
type ObjectHeader struct {
	Prototype Object
	Name      string
	// HasGetters/HasSetters enable the get_<name>/set_<name> fallbacks when
	// this object is a container during property lookup.
	HasGetters bool
	HasSetters bool
}

func (h *ObjectHeader) Header() *ObjectHeader { return h }

// Equal is value equality: numbers, strings and booleans by value, handles
// by the wrapped value, everything else by identity.
func Equal(a, b Value) bool {
	if a == nil {
		a = Void
	}
	if b == nil {
		b = Void
	}
	if ha, ok := a.(*NativeHandle); ok {
		hb, ok := b.(*NativeHandle)
		return ok && (ha == hb || sameHostValue(ha.Value, hb.Value))
	}
	return a == b
}

// ValueName is the short description used in diagnostics.
func ValueName(v Value) string {
	switch v := v.(type) {
	case nil, voidValue:
		return "void"
	case nullValue:
		return "null"
	case Number:
		return "[number " + v.String() + "]"
	case String:
		return "[string " + strconv.Quote(string(v)) + "]"
	case Boolean:
		return fmt.Sprintf("[boolean %t]", bool(v))
	case Object:
		return ObjectName(v)
	}
	return "[" + string(v.Type()) + "]"
}

// ObjectName is "[name]" for named objects and "[object <prototype>]"
// otherwise.
func ObjectName(o Object) string {
	h := o.Header()
	if h.Name != "" {
		return "[" + h.Name + "]"
	}
	if h.Prototype != nil && h.Prototype.Header().Name != "" {
		return "[object " + h.Prototype.Header().Name + "]"
	}
	return "[object]"
}

func SetName(v Value, name string) {
	if o, ok := v.(Object); ok && o.Header().Name == "" {
		o.Header().Name = name
	}
}

func sameHostValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
