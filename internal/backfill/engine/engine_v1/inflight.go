package engine_v1

import "sync"

// inflightSet tracks the task keys currently being fetched so an identical
// window never runs twice concurrently. Keys are registered before a task
// starts executing and removal is guaranteed by the executor's defer.
type inflightSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{
		mu:   sync.Mutex{},
		keys: make(map[string]struct{}),
	}
}

// Add registers the key and reports whether it was newly added. A false
// return means an identical window is already in flight.
func (s *inflightSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false
	}

	s.keys[key] = struct{}{}

	return true
}

// Remove drops the key from the set.
func (s *inflightSet) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)
}

// Clear drops every key.
func (s *inflightSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = make(map[string]struct{})
}

// Len returns the number of keys currently in flight.
func (s *inflightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.keys)
}
