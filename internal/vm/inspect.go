package vm

import (
	"strings"

	"arbor/internal/ast"
	"arbor/internal/object"
)

const maxInspectDepth = 16

// Inspect describes v by invoking its k:inspect operator. Values without the
// operator, and values nested deeper than the inspection limit, fall back to
// their diagnostic name. A failing operator leaves its signal on result.
func Inspect(v object.Value, scope *object.Scope, result *object.Result) string {
	realm := scope.Realm()
	if realm.InspectDepth >= maxInspectDepth {
		return object.ValueName(v)
	}
	realm.InspectDepth++
	defer func() { realm.InspectDepth-- }()

	r, ok := convert(v, object.OpInspect, ast.Intrinsic, scope, result)
	if !result.OK() {
		return ""
	}
	if !ok {
		return object.ValueName(v)
	}
	if s, ok := r.(object.String); ok {
		return string(s)
	}
	return object.ValueName(r)
}

// inspectObject is the k:inspect of the root prototype.
func inspectObject(v object.Value, scope *object.Scope, result *object.Result) string {
	switch v := v.(type) {
	case *object.Table:
		if v.Name != "" {
			return object.ObjectName(v)
		}
		keys := v.Keys()
		if len(keys) == 0 {
			return "{}"
		}
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			pv, _ := v.Own(k)
			s := Inspect(pv, scope, result)
			if !result.OK() {
				return ""
			}
			parts = append(parts, k+": "+s)
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case object.Function:
		if v.Header().Name != "" {
			return object.ObjectName(v)
		}
		return "\\" + v.Signature()
	case *object.Expression:
		return "<expression " + v.Node.String() + ">"
	}
	return object.ValueName(v)
}

func inspectArray(a *object.Array, scope *object.Scope, result *object.Result) string {
	parts := make([]string, 0, len(a.Elements))
	for _, e := range a.Elements {
		s := Inspect(e, scope, result)
		if !result.OK() {
			return ""
		}
		parts = append(parts, s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func inspectMap(m *object.Map, scope *object.Scope, result *object.Result) string {
	pairs := m.Pairs()
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		k := Inspect(kv.Key, scope, result)
		if !result.OK() {
			return ""
		}
		v := Inspect(kv.Value, scope, result)
		if !result.OK() {
			return ""
		}
		parts = append(parts, k+": "+v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
