package ownership

// MakeExclusive allocates a T, runs ctor on it and wraps it in an
// Exclusive. If ctor fails the storage is zeroed and dropped without
// running any deleter, and the error is returned marked with ErrConstruct.
// A nil ctor leaves the zero value.
func MakeExclusive[T any](ctor func(*T) error, opts ...Option[T]) (Exclusive[T], error) {
	o := buildOptions(opts, Teardown[T])
	return makeExclusive(ctor, o.release, o.descriptor())
}

func makeExclusive[T any](ctor func(*T) error, release func(*T) error, desc descriptor) (Exclusive[T], error) {
	p := new(T)
	if ctor != nil {
		if err := ctor(p); err != nil {
			var zero T
			*p = zero
			desc.emit(EventConstructFailed, 0, false, err)
			return Exclusive[T]{}, constructError(desc.typeName, err)
		}
	}
	return adoptExclusive(p, release, desc), nil
}

// MakeExclusiveOf moves v into a freshly allocated Exclusive.
func MakeExclusiveOf[T any](v T, opts ...Option[T]) Exclusive[T] {
	o := buildOptions(opts, Teardown[T])
	p := new(T)
	*p = v
	return adoptExclusive(p, o.release, o.descriptor())
}

// MakeShared allocates the ControlBlock and a T in one allocation, runs
// ctor on the T and returns its first owner. If ctor fails nothing is
// destroyed, the allocation is dropped and the error is returned marked
// with ErrConstruct.
func MakeShared[T any](ctor func(*T) error, opts ...Option[T]) (Shared[T], error) {
	o := buildOptions(opts, Teardown[T])
	return makeShared(ctor, o.release, o.descriptor())
}

func makeShared[T any](ctor func(*T) error, release func(*T) error, desc descriptor) (Shared[T], error) {
	blk := new(inline[T])
	if ctor != nil {
		if err := ctor(&blk.value); err != nil {
			var zero T
			blk.value = zero
			desc.emit(EventConstructFailed, 0, true, err)
			return Shared[T]{}, constructError(desc.typeName, err)
		}
	}
	p := &blk.value
	blk.cb.init(ids.Next(), p, &deleterBox[T]{ptr: p, release: release}, desc, true)
	desc.emit(EventCreated, blk.cb.id, true, nil)
	return Shared[T]{ptr: p, cb: &blk.cb}, nil
}

// MakeSharedOf moves v into a freshly co-allocated Shared.
func MakeSharedOf[T any](v T, opts ...Option[T]) Shared[T] {
	s, _ := MakeShared(func(p *T) error {
		*p = v
		return nil
	}, opts...)
	return s.Move()
}
