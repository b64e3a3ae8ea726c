package object

type MapPair struct {
	Key   Value
	Value Value
}

// Map is an insertion-ordered Value to Value dictionary. Storing Void under
// a key removes it.
type Map struct {
	ObjectHeader
	index map[Value]int
	pairs []MapPair
}

func NewMap(prototype Object) *Map {
	return &Map{ObjectHeader: ObjectHeader{Prototype: prototype}, index: map[Value]int{}}
}

func (*Map) Type() Type { return MAP_OBJ }

func (m *Map) Len() int { return len(m.pairs) }

func (m *Map) Get(key Value) (Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return Void, false
	}
	return m.pairs[i].Value, true
}

func (m *Map) Set(key, value Value) {
	if IsVoid(value) {
		m.Delete(key)
		return
	}
	if i, ok := m.index[key]; ok {
		m.pairs[i].Value = value
		return
	}
	m.index[key] = len(m.pairs)
	m.pairs = append(m.pairs, MapPair{Key: key, Value: value})
}

func (m *Map) Delete(key Value) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	delete(m.index, key)
	m.pairs = append(m.pairs[:i], m.pairs[i+1:]...)
	for j := i; j < len(m.pairs); j++ {
		m.index[m.pairs[j].Key] = j
	}
	return true
}

func (m *Map) Clear() {
	m.index = map[Value]int{}
	m.pairs = nil
}

// Pairs returns a copy of the entries in insertion order.
func (m *Map) Pairs() []MapPair {
	out := make([]MapPair, len(m.pairs))
	copy(out, m.pairs)
	return out
}
