package vm

import (
	"arbor/internal/object"
)

// HandleType exposes Go values of type T to scripts as native handles that
// share one prototype. The prototype is published as `<name>.prototype` in
// the global scope.
type HandleType[T any] struct {
	name  string
	realm *object.Realm
	proto *object.Table
}

func NewHandleType[T any](scope *object.Scope, name string) *HandleType[T] {
	realm := scope.Realm()
	proto := object.NewNamedTable(name+".prototype", realm.Table)
	holder := object.NewNamedTable(name, realm.Table)
	holder.Declare("prototype", proto)
	scope.Global().Define(name, holder)
	return &HandleType[T]{name: name, realm: realm, proto: proto}
}

func (h *HandleType[T]) Prototype() *object.Table { return h.proto }

func (h *HandleType[T]) Wrap(v T) *object.NativeHandle {
	return object.NewNativeHandle(h.proto, v)
}

// Unwrap returns the Go value behind v if v is a handle of this type.
func (h *HandleType[T]) Unwrap(v object.Value) (T, bool) {
	var zero T
	handle, ok := v.(*object.NativeHandle)
	if !ok {
		return zero, false
	}
	t, ok := handle.Value.(T)
	return t, ok
}

func (h *HandleType[T]) self(v object.Value, result *object.Result) (T, bool) {
	t, ok := h.Unwrap(v)
	if !ok {
		raise(result, "Expected %s, got %s", h.name, object.ValueName(v))
	}
	return t, ok
}

// Method declares a method taking the receiver plus params, which follow
// the native parameter markers.
func (h *HandleType[T]) Method(name string, params []string, fn func(self T, args []object.Value, scope *object.Scope, result *object.Result)) *HandleType[T] {
	declare(h.proto, name, h.realm.NewNative(append([]string{"this"}, params...), func(args []object.Value, scope *object.Scope, result *object.Result) {
		self, ok := h.self(args[0], result)
		if !ok {
			return
		}
		fn(self, args[1:], scope, result)
	}))
	return h
}

// Getter declares a read-only computed property.
func (h *HandleType[T]) Getter(name string, get func(self T) object.Value) *HandleType[T] {
	declare(h.proto, object.GetterPrefix+name, h.realm.NewNative([]string{"this"}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		self, ok := h.self(args[0], result)
		if !ok {
			return
		}
		result.Set(get(self))
	}))
	return h
}

// Property declares a computed property that scripts can also assign; a
// non-nil error from set becomes an exception.
func (h *HandleType[T]) Property(name string, get func(self T) object.Value, set func(self T, v object.Value) error) *HandleType[T] {
	h.Getter(name, get)
	declare(h.proto, object.SetterPrefix+name, h.realm.NewNative([]string{"this", "value"}, func(args []object.Value, scope *object.Scope, result *object.Result) {
		self, ok := h.self(args[0], result)
		if !ok {
			return
		}
		if err := set(self, args[1]); err != nil {
			raise(result, "%s", err.Error())
		}
	}))
	return h
}
