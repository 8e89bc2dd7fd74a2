package campaign

import "sync"

// Lockable guards a resource. Compound read-then-write sequences must run
// inside a single WithLock call; the lock is never handed out.
type Lockable[T any] struct {
	mu       sync.RWMutex
	resource T
}

func NewLockable[T any](resource T) *Lockable[T] {
	return &Lockable[T]{resource: resource}
}

// WithLock runs fn with exclusive access to the resource.
func (l *Lockable[T]) WithLock(fn func(resource *T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.resource)
}

// Read runs fn with shared access. fn must not mutate the resource.
func (l *Lockable[T]) Read(fn func(resource *T)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(&l.resource)
}
