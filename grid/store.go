package grid

import (
	"sync"
	"sync/atomic"
)

// Store owns the current grid. Snapshots are published copy-on-write, so a
// reader always sees a whole grid from before or after any mutation.
type Store struct {
	current atomic.Pointer[Grid]

	mu     sync.Mutex // serialises writers and subscriber delivery
	subs   map[int]func(Grid)
	nextID int
}

// NewStore creates a store holding an empty grid
func NewStore() *Store {
	s := &Store{subs: make(map[int]func(Grid))}
	empty := Empty()
	s.current.Store(&empty)
	return s
}

// Snapshot returns the current grid
func (s *Store) Snapshot() Grid {
	return *s.current.Load()
}

// Toggle flips one cell
func (s *Store) Toggle(row, col int) error {
	if !inRange(row, col) {
		return &OutOfRangeError{Row: row, Col: col}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.current.Load()
	next[row][col] = !next[row][col]
	s.publish(next)
	return nil
}

// Replace swaps in a whole externally supplied matrix. On a shape mismatch
// the store is left untouched.
func (s *Store) Replace(candidate [][]bool) error {
	g, err := FromRows(candidate)
	if err != nil {
		return err
	}
	s.Set(g)
	return nil
}

// Set swaps in an already well-shaped grid
func (s *Store) Set(g Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(g)
}

// Reset clears every cell
func (s *Store) Reset() {
	s.Set(Empty())
}

// Subscribe registers fn to receive every newly published grid. fn runs on
// the mutating goroutine and must not call back into the store's writers.
func (s *Store) Subscribe(fn func(Grid)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// publish must be called with mu held
func (s *Store) publish(g Grid) {
	snap := g
	s.current.Store(&snap)
	for _, fn := range s.subs {
		fn(snap)
	}
}
