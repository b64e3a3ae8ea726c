package vm

import (
	"strings"
	"unicode/utf8"

	"arbor/internal/ast"
	"arbor/internal/object"
)

// GetProperty reads name from v, walking the prototype chain.
func GetProperty(v object.Value, name string, pos ast.Position, scope *object.Scope, result *object.Result) (object.Value, bool) {
	return FindProperty(v, v, name, pos, scope, result)
}

// FindProperty looks name up starting at container while keeping receiver
// as the value getters are invoked on. An own property always wins; a
// container with getters is asked for get_<name> before the lookup moves on
// to its prototype.
func FindProperty(receiver, container object.Value, name string, pos ast.Position, scope *object.Scope, result *object.Result) (object.Value, bool) {
	switch c := container.(type) {
	case object.Object:
		for o := c; o != nil; o = o.Header().Prototype {
			if v, ok := object.OwnProperty(o, name); ok {
				return v, true
			}
			if !o.Header().HasGetters || strings.HasPrefix(name, object.GetterPrefix) {
				continue
			}
			getter, ok := object.OwnProperty(o, object.GetterPrefix+name)
			if !ok {
				continue
			}
			fn, ok := getter.(object.Function)
			if !ok {
				result.Raisef(pos, "Getter \"%s\" on %s is not a function", name, object.ValueName(o))
				return nil, false
			}
			Invoke(receiver, fn, nil, pos, scope, result)
			if !result.OK() {
				return nil, false
			}
			return result.Value, true
		}
		return nil, false

	case object.String:
		if name == "length" {
			return object.Number(utf8.RuneCountInString(string(c))), true
		}
	}
	proto := scope.Realm().PrototypeOf(container)
	if proto == nil {
		return nil, false
	}
	return FindProperty(receiver, proto, name, pos, scope, result)
}

// SetProperty assigns an existing property of a table, falling back to a
// set_<name> setter somewhere in the prototype chain.
func SetProperty(receiver object.Value, name string, value object.Value, pos ast.Position, scope *object.Scope, result *object.Result) {
	o, ok := receiver.(object.Object)
	if !ok {
		result.Raisef(pos, "Cannot set properties on %s", object.ValueName(receiver))
		return
	}
	if t, ok := o.(*object.Table); ok {
		if _, exists := t.Own(name); exists {
			if object.IsVoid(value) {
				result.Raisef(pos, "Cannot set a table property to void")
				return
			}
			t.Set(name, value)
			return
		}
	}
	if setter := findSetter(o, name); setter != nil {
		Invoke(receiver, setter, []object.Value{value}, pos, scope, result)
		return
	}
	result.Raisef(pos, "Property \"%s\" is not defined on %s", name, object.ValueName(receiver))
}

func findSetter(o object.Object, name string) object.Function {
	if strings.HasPrefix(name, object.SetterPrefix) {
		return nil
	}
	for c := o; c != nil; c = c.Header().Prototype {
		if !c.Header().HasSetters {
			continue
		}
		if v, ok := object.OwnProperty(c, object.SetterPrefix+name); ok {
			fn, _ := v.(object.Function)
			return fn
		}
	}
	return nil
}

// DeclareProperty adds a new property to a table.
func DeclareProperty(receiver object.Value, name string, value object.Value, pos ast.Position, result *object.Result) {
	t, ok := receiver.(*object.Table)
	if !ok {
		result.Raisef(pos, "Cannot declare properties on %s", object.ValueName(receiver))
		return
	}
	if !t.Declare(name, value) {
		result.Raisef(pos, "Duplicate declaration of property \"%s\" on %s", name, object.ValueName(receiver))
	}
}
