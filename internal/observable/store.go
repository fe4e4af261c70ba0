// Package observable provides a single-owner state container with
// subscribe/notify semantics. Each controller owns one Store instance and
// injects it where needed instead of relying on package-level state.
package observable

import "sync"

// Store holds a value of type T and notifies subscribers after every update.
type Store[T any] struct {
	mu        sync.Mutex
	value     T
	nextID    int
	listeners map[int]func(T)
	order     []int
}

// New creates a store seeded with initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		value:     initial,
		listeners: make(map[int]func(T)),
	}
}

// Snapshot returns the current value.
func (s *Store[T]) Snapshot() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe registers fn for future updates. The returned func removes it.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Update applies fn to the current value, stores the result, and notifies
// subscribers in subscription order. Listeners run outside the lock and may
// call Snapshot or Subscribe.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	s.value = fn(s.value)
	next := s.value
	fns := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, f := range fns {
		f(next)
	}
	return next
}

// Set replaces the value and notifies subscribers.
func (s *Store[T]) Set(v T) T {
	return s.Update(func(T) T { return v })
}

// Len returns the number of active subscribers.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
