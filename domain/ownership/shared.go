package ownership

// noCopy lets `go vet` flag handles copied by assignment.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Shared is a counted owner of a resource. The zero value is empty.
type Shared[T any] struct {
	_   noCopy
	ptr *T
	cb  *ControlBlock
}

// NewShared takes ownership of ptr with a separately allocated
// ControlBlock. A nil ptr yields an empty handle.
func NewShared[T any](ptr *T, opts ...Option[T]) Shared[T] {
	if ptr == nil {
		return Shared[T]{}
	}
	o := buildOptions(opts, Teardown[T])
	cb := &ControlBlock{}
	cb.init(ids.Next(), ptr, &deleterBox[T]{ptr: ptr, release: o.release}, o.descriptor(), false)
	cb.desc.emit(EventCreated, cb.id, true, nil)
	return Shared[T]{ptr: ptr, cb: cb}
}

// Get returns the managed resource. It panics with ErrDanglingAccess on an
// empty handle.
func (s *Shared[T]) Get() *T {
	if s.cb == nil {
		violation(ErrDanglingAccess, "Shared[%s].Get", typeNameOf[T]())
	}
	return s.ptr
}

// IsEmpty reports whether the handle owns nothing.
func (s *Shared[T]) IsEmpty() bool { return s.cb == nil }

// ID identifies the managed resource, 0 when empty.
func (s *Shared[T]) ID() uint64 {
	if s.cb == nil {
		return 0
	}
	return s.cb.id
}

// UseCount is the number of strong owners. Advisory.
func (s *Shared[T]) UseCount() int64 {
	if s.cb == nil {
		return 0
	}
	return s.cb.StrongCount()
}

// WeakCount is the number of Weak observers. Advisory.
func (s *Shared[T]) WeakCount() int64 {
	if s.cb == nil {
		return 0
	}
	return s.cb.WeakCount()
}

// SameOwner reports whether both handles share a ControlBlock.
func (s *Shared[T]) SameOwner(other *Shared[T]) bool {
	return s.cb != nil && s.cb == other.cb
}

// Clone returns another owner of the same resource.
func (s *Shared[T]) Clone() Shared[T] {
	if s.cb == nil {
		return Shared[T]{}
	}
	s.cb.RetainStrong()
	return Shared[T]{ptr: s.ptr, cb: s.cb}
}

// Move hands the reference to the returned handle and empties s. The
// counters are not touched.
func (s *Shared[T]) Move() Shared[T] {
	ptr, cb := s.ptr, s.cb
	s.ptr, s.cb = nil, nil
	return Shared[T]{ptr: ptr, cb: cb}
}

// CopyFrom makes s another owner of other's resource, releasing whatever s
// owned before.
func (s *Shared[T]) CopyFrom(other *Shared[T]) {
	if s == other || s.cb == other.cb {
		return
	}
	if other.cb != nil {
		other.cb.RetainStrong()
	}
	old := s.cb
	s.ptr, s.cb = other.ptr, other.cb
	if old != nil {
		old.ReleaseStrong()
	}
}

// MoveFrom takes other's reference, releasing whatever s owned before.
func (s *Shared[T]) MoveFrom(other *Shared[T]) {
	if s == other {
		return
	}
	old := s.cb
	s.ptr, s.cb = other.ptr, other.cb
	other.ptr, other.cb = nil, nil
	if old != nil {
		old.ReleaseStrong()
	}
}

// Release drops this owner's reference and empties the handle. The
// resource is destroyed if this was the last owner. Releasing an empty
// handle does nothing.
func (s *Shared[T]) Release() {
	cb := s.cb
	if cb == nil {
		return
	}
	s.ptr, s.cb = nil, nil
	cb.ReleaseStrong()
}

// Reset is Release.
func (s *Shared[T]) Reset() { s.Release() }

// ResetTo releases the current reference and takes ownership of ptr with a
// fresh ControlBlock. Passing the pointer s already owns is a violation.
func (s *Shared[T]) ResetTo(ptr *T, opts ...Option[T]) {
	if ptr != nil && ptr == s.ptr {
		violation(ErrDoubleRelease, "Shared[%s].ResetTo with the owned pointer", typeNameOf[T]())
	}
	fresh := NewShared(ptr, opts...)
	s.MoveFrom(&fresh)
}

// Weak returns an observer of the resource.
func (s *Shared[T]) Weak() Weak[T] {
	return NewWeak(s)
}
