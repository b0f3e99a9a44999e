package ownership

// Weak observes a Shared resource without keeping it alive.
type Weak[T any] struct {
	_  noCopy
	cb *ControlBlock
}

// NewWeak observes the resource owned by s. An empty s yields an empty
// observer.
func NewWeak[T any](s *Shared[T]) Weak[T] {
	if s.cb == nil {
		return Weak[T]{}
	}
	s.cb.RetainWeak()
	return Weak[T]{cb: s.cb}
}

// Lock promotes the observer. The result is empty when the resource has
// already been destroyed.
func (w *Weak[T]) Lock() Shared[T] {
	if w.cb == nil || !w.cb.TryLockForPromotion() {
		return Shared[T]{}
	}
	return Shared[T]{ptr: w.cb.object.(*T), cb: w.cb}
}

// TryLock is Lock with an explicit success flag.
func (w *Weak[T]) TryLock() (Shared[T], bool) {
	if w.cb == nil || !w.cb.TryLockForPromotion() {
		return Shared[T]{}, false
	}
	return Shared[T]{ptr: w.cb.object.(*T), cb: w.cb}, true
}

// Expired reports whether the resource is gone. Advisory.
func (w *Weak[T]) Expired() bool {
	return w.cb == nil || w.cb.Expired()
}

// UseCount is the number of strong owners. Advisory.
func (w *Weak[T]) UseCount() int64 {
	if w.cb == nil {
		return 0
	}
	return w.cb.StrongCount()
}

// IsEmpty reports whether the observer watches nothing.
func (w *Weak[T]) IsEmpty() bool { return w.cb == nil }

// ID identifies the observed resource, 0 when empty.
func (w *Weak[T]) ID() uint64 {
	if w.cb == nil {
		return 0
	}
	return w.cb.id
}

// Clone returns another observer of the same resource.
func (w *Weak[T]) Clone() Weak[T] {
	if w.cb == nil {
		return Weak[T]{}
	}
	w.cb.RetainWeak()
	return Weak[T]{cb: w.cb}
}

// Move hands the observation to the returned handle and empties w.
func (w *Weak[T]) Move() Weak[T] {
	cb := w.cb
	w.cb = nil
	return Weak[T]{cb: cb}
}

// Release stops observing. Releasing an empty observer does nothing.
func (w *Weak[T]) Release() {
	cb := w.cb
	if cb == nil {
		return
	}
	w.cb = nil
	cb.ReleaseWeak()
}
