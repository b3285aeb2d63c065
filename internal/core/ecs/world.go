package ecs

import "sync"

// World is the component-access gateway the scheduler hands to its systems.
// It owns the entity pool, a registry of component stores for bulk cleanup,
// and a deferred destruction queue flushed at a frame boundary.
type World struct {
	pool *EntityPool

	mu           sync.Mutex
	stores       []Removable
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		stores:       make([]Removable, 0, 16),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool { return w.pool }

// RegisterStore adds a component store for bulk removal on entity destroy.
// Called during setup, before systems run.
func (w *World) RegisterStore(store Removable) {
	w.mu.Lock()
	w.stores = append(w.stores, store)
	w.mu.Unlock()
}

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

func (w *World) EntityCount() int {
	return w.pool.Count()
}

// MarkForDestruction queues an entity for the next flush. Safe from any
// system thread.
func (w *World) MarkForDestruction(id EntityID) {
	w.mu.Lock()
	w.destroyQueue = append(w.destroyQueue, id)
	w.mu.Unlock()
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Driven at a frame boundary, when no system update is in flight.
func (w *World) FlushDestroyQueue() {
	w.mu.Lock()
	queue := w.destroyQueue
	w.destroyQueue = make([]EntityID, 0, 64)
	stores := append([]Removable(nil), w.stores...)
	w.mu.Unlock()

	for _, id := range queue {
		for _, s := range stores {
			s.Remove(id)
		}
		w.pool.Destroy(id)
	}
}
