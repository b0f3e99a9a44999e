package ownership

// Exclusive is the sole owner of a resource. It cannot be shared; Move
// transfers it and IntoShared converts it, once, into a Shared handle.
// The zero value is empty and uses the default teardown.
type Exclusive[T any] struct {
	_        noCopy
	ptr      *T
	release  func(*T) error
	desc     descriptor
	id       uint64
	released bool
}

// NewExclusive takes ownership of ptr.
func NewExclusive[T any](ptr *T, opts ...Option[T]) Exclusive[T] {
	o := buildOptions(opts, Teardown[T])
	return adoptExclusive(ptr, o.release, o.descriptor())
}

func adoptExclusive[T any](ptr *T, release func(*T) error, desc descriptor) Exclusive[T] {
	var id uint64
	if ptr != nil {
		id = ids.Next()
		desc.emit(EventCreated, id, false, nil)
	}
	return Exclusive[T]{ptr: ptr, release: release, desc: desc, id: id}
}

// Get returns the owned resource. It panics with ErrDanglingAccess on an
// empty owner.
func (e *Exclusive[T]) Get() *T {
	if e.ptr == nil {
		violation(ErrDanglingAccess, "Exclusive[%s].Get", typeNameOf[T]())
	}
	return e.ptr
}

// IsEmpty reports whether the owner holds nothing.
func (e *Exclusive[T]) IsEmpty() bool { return e.ptr == nil }

// ID identifies the owned resource, 0 when empty.
func (e *Exclusive[T]) ID() uint64 { return e.id }

// ReleaseOwnership returns the resource without destroying it. The caller
// becomes responsible for its teardown.
func (e *Exclusive[T]) ReleaseOwnership() *T {
	p := e.ptr
	if p != nil {
		e.desc.emit(EventDetached, e.id, false, nil)
	}
	e.ptr, e.id = nil, 0
	return p
}

// Reset destroys the owned resource, if any, and leaves the owner empty.
func (e *Exclusive[T]) Reset() {
	e.destroyOwned()
}

// ResetTo destroys the owned resource, if any, and takes ownership of ptr
// with the same deleter.
func (e *Exclusive[T]) ResetTo(ptr *T) {
	if ptr != nil && ptr == e.ptr {
		violation(ErrDoubleRelease, "Exclusive[%s].ResetTo with the owned pointer", typeNameOf[T]())
	}
	e.destroyOwned()
	e.released = false
	if ptr != nil {
		e.ptr, e.id = ptr, ids.Next()
		e.desc.emit(EventCreated, e.id, false, nil)
	}
}

// Move hands ownership to the returned owner and empties e. Nothing is
// destroyed.
func (e *Exclusive[T]) Move() Exclusive[T] {
	out := Exclusive[T]{ptr: e.ptr, release: e.release, desc: e.desc, id: e.id}
	e.ptr, e.id = nil, 0
	return out
}

// MoveFrom destroys what e owns and takes over other's resource.
func (e *Exclusive[T]) MoveFrom(other *Exclusive[T]) {
	if e == other {
		return
	}
	e.destroyOwned()
	e.ptr, e.release, e.desc, e.id = other.ptr, other.release, other.desc, other.id
	e.released = false
	other.ptr, other.id = nil, 0
}

// Release is the owner's end of life: the resource, if any, is destroyed
// through the deleter. Releasing an emptied owner does nothing, but
// releasing the same owner twice is a contract violation.
func (e *Exclusive[T]) Release() {
	if e.released {
		violation(ErrDoubleRelease, "Exclusive[%s]", typeNameOf[T]())
	}
	e.released = true
	e.destroyOwned()
}

// IntoShared consumes the owner and returns a Shared handle with a fresh
// ControlBlock that inherits the deleter.
func (e *Exclusive[T]) IntoShared() Shared[T] {
	ptr, id := e.ptr, e.id
	e.ptr, e.id = nil, 0
	if ptr == nil {
		return Shared[T]{}
	}
	release := e.release
	if release == nil {
		release = Teardown[T]
	}
	cb := &ControlBlock{}
	cb.init(id, ptr, &deleterBox[T]{ptr: ptr, release: release}, e.desc, false)
	cb.desc.emit(EventPromoted, id, true, nil)
	return Shared[T]{ptr: ptr, cb: cb}
}

func (e *Exclusive[T]) destroyOwned() {
	ptr, id := e.ptr, e.id
	if ptr == nil {
		return
	}
	e.ptr, e.id = nil, 0
	release := e.release
	if release == nil {
		release = Teardown[T]
	}
	if err := release(ptr); err != nil {
		e.desc.emit(EventDeleterError, id, false, err)
	}
	e.desc.emit(EventObjectDestroyed, id, false, nil)
}
