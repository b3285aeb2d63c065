package ecs

import "sync"

// Removable is implemented by all component stores so the World can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Store is a generic typed component store guarded by a read-write lock.
// Values are stored by pointer so an Update-phase system can mutate a
// component in place under the store's write lock via Mutate.
type Store[T any] struct {
	mu   sync.RWMutex
	data map[EntityID]*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{data: make(map[EntityID]*T, 256)}
}

func (s *Store[T]) Set(id EntityID, c *T) {
	s.mu.Lock()
	s.data[id] = c
	s.mu.Unlock()
}

// Get returns a copy of the component value, so the caller can read it
// without holding the store lock.
func (s *Store[T]) Get(id EntityID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.data[id]; ok {
		return *c, true
	}
	var zero T
	return zero, false
}

// Mutate runs fn against the live component under the write lock. Returns
// false if the entity has no component of this type.
func (s *Store[T]) Mutate(id EntityID, fn func(*T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[id]
	if !ok {
		return false
	}
	fn(c)
	return true
}

func (s *Store[T]) Remove(id EntityID) {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
}

func (s *Store[T]) Has(id EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Each visits every component under the write lock; fn may mutate in place
// but must not call back into the same store.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.data {
		fn(id, c)
	}
}

// Each2 iterates over entities that have both component A and B, holding A's
// write lock and B's read lock. Callers that join the same pair of stores
// must pass them in the same order to keep lock acquisition consistent.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, B)) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	for id, a := range sa.data {
		if b, ok := sb.data[id]; ok {
			fn(id, a, *b)
		}
	}
}
