package object

// Variable is a single mutable cell.
type Variable struct {
	Value Value
}

// Scope is one level of the lexical scope chain. The root of a chain is the
// global scope and carries the realm.
type Scope struct {
	vars   map[string]*Variable
	parent *Scope
	global *Scope
	realm  *Realm
}

func NewGlobalScope(realm *Realm) *Scope {
	s := &Scope{vars: map[string]*Variable{}, realm: realm}
	s.global = s
	return s
}

func (s *Scope) Child() *Scope {
	return &Scope{vars: map[string]*Variable{}, parent: s, global: s.global}
}

func (s *Scope) Global() *Scope { return s.global }

func (s *Scope) Realm() *Realm { return s.global.realm }

// Find walks the chain outwards and returns nil when name is undeclared.
func (s *Scope) Find(name string) *Variable {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v
		}
	}
	return nil
}

// Declare adds name to this scope only; it returns nil if the name is
// already declared here.
func (s *Scope) Declare(name string, v Value) *Variable {
	if _, ok := s.vars[name]; ok {
		return nil
	}
	if v == nil {
		v = Void
	}
	variable := &Variable{Value: v}
	s.vars[name] = variable
	return variable
}

// Define declares or overwrites name; hosts use it to populate scopes.
func (s *Scope) Define(name string, v Value) *Variable {
	if variable, ok := s.vars[name]; ok {
		variable.Value = v
		return variable
	}
	return s.Declare(name, v)
}
