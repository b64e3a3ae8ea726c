package vm

import (
	"math"

	"arbor/internal/object"
)

// MaxArrayLength bounds how far truncate may grow an array.
const MaxArrayLength = 1 << 24

var (
	arrayReceiver = []object.Type{object.ARRAY_OBJ}
	mapReceiver   = []object.Type{object.MAP_OBJ}
)

func index(a *object.Array, n object.Value, result *object.Result) (int, bool) {
	i, ok := a.Index(int(n.(object.Number)))
	if !ok {
		raise(result, "Index %d out of range for array of size %d", int(n.(object.Number)), a.Len())
	}
	return i, ok
}

// limit is like index but also accepts the position just past the end.
func limit(a *object.Array, n object.Value, result *object.Result) (int, bool) {
	i := int(n.(object.Number))
	if i < 0 {
		i += a.Len()
	}
	if i < 0 || i > a.Len() {
		raise(result, "Limit %d out of range for array of size %d", int(n.(object.Number)), a.Len())
		return 0, false
	}
	return i, true
}

// splice removes count elements at i and inserts items in their place.
func splice(a *object.Array, i, count int, items []object.Value, result *object.Result) bool {
	if count < 0 || i+count > a.Len() {
		raise(result, "Too many elements to delete, deleting %d at index %d in array of size %d", count, i, a.Len())
		return false
	}
	tail := append([]object.Value(nil), a.Elements[i+count:]...)
	a.Elements = append(append(a.Elements[:i], items...), tail...)
	return true
}

func declareArrayMethods(realm *object.Realm) {
	proto := realm.Array
	declare(proto, object.OpAt, native(realm, []string{"this", "index", "value?"},
		[]object.Type{object.ARRAY_OBJ, object.NUMBER_OBJ, ""},
		func(args []object.Value, scope *object.Scope, result *object.Result) {
			self := args[0].(*object.Array)
			i, ok := index(self, args[1], result)
			if !ok {
				return
			}
			if len(args) < 3 {
				result.Set(self.Elements[i])
				return
			}
			if object.IsVoid(args[2]) {
				raise(result, "Cannot set an array element to void")
				return
			}
			self.Elements[i] = args[2]
			result.Set(args[2])
		}))

	declare(proto, "truncate", native(realm, []string{"this", "length"},
		[]object.Type{object.ARRAY_OBJ, object.NUMBER_OBJ},
		func(args []object.Value, scope *object.Scope, result *object.Result) {
			self := args[0].(*object.Array)
			length := float64(args[1].(object.Number))
			if length < 0 {
				raise(result, "Cannot set array length to be less than zero")
				return
			}
			if length > MaxArrayLength || math.IsNaN(length) {
				raise(result, "Cannot set array length to %v, the limit is %d", args[1], MaxArrayLength)
				return
			}
			n := int(length)
			for len(self.Elements) < n {
				self.Elements = append(self.Elements, object.Null)
			}
			self.Elements = self.Elements[:n]
		}))

	declare(proto, "clone", native(realm, []string{"this"}, arrayReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
		self := args[0].(*object.Array)
		result.Set(object.NewArray(self.Prototype, append([]object.Value(nil), self.Elements...)))
	}))

	declare(proto, "clear", native(realm, []string{"this"}, arrayReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
		args[0].(*object.Array).Elements = []object.Value{}
	}))

	declare(proto, "slice", native(realm, []string{"this", "from", "to?"},
		[]object.Type{object.ARRAY_OBJ, object.NUMBER_OBJ, object.NUMBER_OBJ},
		func(args []object.Value, scope *object.Scope, result *object.Result) {
			self := args[0].(*object.Array)
			from, ok := limit(self, args[1], result)
			if !ok {
				return
			}
			to := self.Len()
			if len(args) > 2 && !object.IsVoid(args[2]) {
				if to, ok = limit(self, args[2], result); !ok {
					return
				}
			}
			if to < from {
				to = from
			}
			result.Set(object.NewArray(self.Prototype, append([]object.Value(nil), self.Elements[from:to]...)))
		}))

	declare(proto, "splice", native(realm, []string{"this", "index", "delete", "insert?"},
		[]object.Type{object.ARRAY_OBJ, object.NUMBER_OBJ, object.NUMBER_OBJ, object.ARRAY_OBJ},
		func(args []object.Value, scope *object.Scope, result *object.Result) {
			self := args[0].(*object.Array)
			i, ok := limit(self, args[1], result)
			if !ok {
				return
			}
			var items []object.Value
			if len(args) > 3 && !object.IsVoid(args[3]) {
				items = append(items, args[3].(*object.Array).Elements...)
			}
			splice(self, i, int(args[2].(object.Number)), items, result)
		}))

	insert := func(atEnd bool, rest bool) *object.NativeFunction {
		params := []string{"this", "elements"}
		types := []object.Type{object.ARRAY_OBJ, object.ARRAY_OBJ}
		if rest {
			params = []string{"this", "...elements"}
			types = []object.Type{object.ARRAY_OBJ, ""}
		}
		return native(realm, params, types, func(args []object.Value, scope *object.Scope, result *object.Result) {
			self := args[0].(*object.Array)
			var items []object.Value
			if rest {
				items = append(items, args[1:]...)
			} else {
				items = append(items, args[1].(*object.Array).Elements...)
			}
			at := 0
			if atEnd {
				at = self.Len()
			}
			splice(self, at, 0, items, result)
		})
	}
	declare(proto, "append", insert(true, false))
	declare(proto, "prepend", insert(false, false))
	declare(proto, "push", insert(true, true))
	declare(proto, "unshift", insert(false, true))

	remove := func(atEnd bool) *object.NativeFunction {
		return native(realm, []string{"this"}, arrayReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
			self := args[0].(*object.Array)
			if self.Len() == 0 {
				return
			}
			at := 0
			if atEnd {
				at = self.Len() - 1
			}
			v := self.Elements[at]
			if splice(self, at, 1, nil, result) {
				result.Set(v)
			}
		})
	}
	declare(proto, "pop", remove(true))
	declare(proto, "shift", remove(false))

	declare(proto, object.OpInspect, native(realm, []string{"this"}, arrayReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
		s := inspectArray(args[0].(*object.Array), scope, result)
		if result.OK() {
			result.Set(object.String(s))
		}
	}))
}

func declareMapMethods(realm *object.Realm) {
	proto := realm.Map
	declare(proto, object.OpAt, native(realm, []string{"this", "key", "value?"},
		[]object.Type{object.MAP_OBJ, "", ""},
		func(args []object.Value, scope *object.Scope, result *object.Result) {
			self := args[0].(*object.Map)
			if len(args) < 3 {
				v, _ := self.Get(args[1])
				result.Set(v)
				return
			}
			if object.IsVoid(args[1]) {
				raise(result, "Cannot use void as a map key")
				return
			}
			self.Set(args[1], args[2])
			result.Set(args[2])
		}))

	declare(proto, "clone", native(realm, []string{"this"}, mapReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
		self := args[0].(*object.Map)
		clone := object.NewMap(self.Prototype)
		for _, kv := range self.Pairs() {
			clone.Set(kv.Key, kv.Value)
		}
		result.Set(clone)
	}))

	declare(proto, "clear", native(realm, []string{"this"}, mapReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
		args[0].(*object.Map).Clear()
	}))

	list := func(pick func(kv object.MapPair) object.Value) *object.NativeFunction {
		return native(realm, []string{"this"}, mapReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
			pairs := args[0].(*object.Map).Pairs()
			out := make([]object.Value, 0, len(pairs))
			for _, kv := range pairs {
				out = append(out, pick(kv))
			}
			result.Set(realm.NewArray(out))
		})
	}
	declare(proto, "keys", list(func(kv object.MapPair) object.Value { return kv.Key }))
	declare(proto, "values", list(func(kv object.MapPair) object.Value { return kv.Value }))
	declare(proto, "entries", list(func(kv object.MapPair) object.Value {
		return realm.NewArray([]object.Value{kv.Key, kv.Value})
	}))

	declare(proto, object.OpInspect, native(realm, []string{"this"}, mapReceiver, func(args []object.Value, scope *object.Scope, result *object.Result) {
		s := inspectMap(args[0].(*object.Map), scope, result)
		if result.OK() {
			result.Set(object.String(s))
		}
	}))
}
