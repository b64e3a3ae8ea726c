package lsp

import "sync"

// Store keeps the latest analysis of every open document.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Analysis // uri -> analysis
}

func NewStore() *Store {
	return &Store{docs: map[string]*Analysis{}}
}

// Update analyses text and remembers the result for uri.
func (s *Store) Update(uri, text string) *Analysis {
	a := Analyze(uri, text)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = a
	return a
}

func (s *Store) Get(uri string) (*Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.docs[uri]
	return a, ok
}

func (s *Store) Delete(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}
