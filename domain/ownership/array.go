package ownership

import "github.com/cockroachdb/errors"

// ExclusiveArray solely owns n contiguous elements. The default teardown
// destroys the elements in reverse order.
type ExclusiveArray[T any] struct {
	_     noCopy
	owner Exclusive[[]T]
}

// SharedArray is a counted owner of n contiguous elements.
type SharedArray[T any] struct {
	_     noCopy
	owner Shared[[]T]
}

// WeakArray observes a SharedArray.
type WeakArray[T any] struct {
	_     noCopy
	owner Weak[[]T]
}

// MakeExclusiveArray allocates n zero-valued elements.
func MakeExclusiveArray[T any](n int, opts ...Option[[]T]) (ExclusiveArray[T], error) {
	return MakeExclusiveArrayFunc[T](n, nil, opts...)
}

// MakeExclusiveArrayFunc allocates n elements and constructs them in
// index order with init. If init fails or panics on element i, elements
// i-1 down to 0 are torn down before the error is returned or the panic
// continues.
func MakeExclusiveArrayFunc[T any](n int, init func(int, *T) error, opts ...Option[[]T]) (ExclusiveArray[T], error) {
	if n < 0 {
		return ExclusiveArray[T]{}, errors.Wrapf(ErrInvalidLength, "length %d", n)
	}
	o := buildOptions(opts, teardownArray[T])
	desc := o.descriptor()
	desc.array, desc.length = true, n
	e, err := makeExclusive(func(p *[]T) error {
		return constructElements(p, n, init)
	}, o.release, desc)
	if err != nil {
		return ExclusiveArray[T]{}, err
	}
	return ExclusiveArray[T]{owner: e.Move()}, nil
}

// MakeSharedArray allocates n zero-valued elements together with their
// ControlBlock.
func MakeSharedArray[T any](n int, opts ...Option[[]T]) (SharedArray[T], error) {
	return MakeSharedArrayFunc[T](n, nil, opts...)
}

// MakeSharedArrayFunc is MakeExclusiveArrayFunc for shared ownership.
func MakeSharedArrayFunc[T any](n int, init func(int, *T) error, opts ...Option[[]T]) (SharedArray[T], error) {
	if n < 0 {
		return SharedArray[T]{}, errors.Wrapf(ErrInvalidLength, "length %d", n)
	}
	o := buildOptions(opts, teardownArray[T])
	desc := o.descriptor()
	desc.array, desc.length = true, n
	s, err := makeShared(func(p *[]T) error {
		return constructElements(p, n, init)
	}, o.release, desc)
	if err != nil {
		return SharedArray[T]{}, err
	}
	return SharedArray[T]{owner: s.Move()}, nil
}

func constructElements[T any](p *[]T, n int, init func(int, *T) error) error {
	s := make([]T, n)
	if init != nil {
		built := 0
		defer func() {
			if r := recover(); r != nil {
				unwindElements(s[:built])
				panic(r)
			}
		}()
		for ; built < n; built++ {
			if err := init(built, &s[built]); err != nil {
				var zero T
				s[built] = zero
				unwindElements(s[:built])
				return errors.Wrapf(err, "element %d", built)
			}
		}
	}
	*p = s
	return nil
}

// unwindElements tears down constructed elements last to first.
func unwindElements[T any](s []T) {
	for j := len(s) - 1; j >= 0; j-- {
		_ = Teardown(&s[j])
	}
}

func at[T any](s []T, i int) *T {
	if i < 0 || i >= len(s) {
		violation(ErrIndexOutOfRange, "index %d, length %d", i, len(s))
	}
	return &s[i]
}

// At returns element i. It panics on an empty owner or a bad index.
func (a *ExclusiveArray[T]) At(i int) *T { return at(*a.owner.Get(), i) }

// Len is the element count, 0 when empty.
func (a *ExclusiveArray[T]) Len() int {
	if a.owner.IsEmpty() {
		return 0
	}
	return len(*a.owner.ptr)
}

// Slice exposes the elements. It must not outlive the owner.
func (a *ExclusiveArray[T]) Slice() []T { return *a.owner.Get() }

func (a *ExclusiveArray[T]) IsEmpty() bool { return a.owner.IsEmpty() }
func (a *ExclusiveArray[T]) ID() uint64    { return a.owner.ID() }
func (a *ExclusiveArray[T]) Reset()        { a.owner.Reset() }
func (a *ExclusiveArray[T]) Release()      { a.owner.Release() }

// ReleaseOwnership returns the elements without tearing them down.
func (a *ExclusiveArray[T]) ReleaseOwnership() []T {
	p := a.owner.ReleaseOwnership()
	if p == nil {
		return nil
	}
	return *p
}

// Move hands the elements to the returned owner and empties a.
func (a *ExclusiveArray[T]) Move() ExclusiveArray[T] {
	return ExclusiveArray[T]{owner: a.owner.Move()}
}

// IntoShared consumes a and returns a SharedArray.
func (a *ExclusiveArray[T]) IntoShared() SharedArray[T] {
	return SharedArray[T]{owner: a.owner.IntoShared()}
}

// At returns element i. It panics on an empty owner or a bad index.
func (a *SharedArray[T]) At(i int) *T { return at(*a.owner.Get(), i) }

// Len is the element count, 0 when empty.
func (a *SharedArray[T]) Len() int {
	if a.owner.IsEmpty() {
		return 0
	}
	return len(*a.owner.ptr)
}

// Slice exposes the elements. It must not outlive the owner.
func (a *SharedArray[T]) Slice() []T { return *a.owner.Get() }

func (a *SharedArray[T]) IsEmpty() bool   { return a.owner.IsEmpty() }
func (a *SharedArray[T]) ID() uint64      { return a.owner.ID() }
func (a *SharedArray[T]) UseCount() int64 { return a.owner.UseCount() }
func (a *SharedArray[T]) Release()        { a.owner.Release() }
func (a *SharedArray[T]) Reset()          { a.owner.Reset() }

func (a *SharedArray[T]) Clone() SharedArray[T] {
	return SharedArray[T]{owner: a.owner.Clone()}
}

func (a *SharedArray[T]) Move() SharedArray[T] {
	return SharedArray[T]{owner: a.owner.Move()}
}

// Weak returns an observer of the elements.
func (a *SharedArray[T]) Weak() WeakArray[T] {
	return WeakArray[T]{owner: a.owner.Weak()}
}

// Lock promotes the observer; the result is empty once the elements are
// torn down.
func (w *WeakArray[T]) Lock() SharedArray[T] {
	return SharedArray[T]{owner: w.owner.Lock()}
}

func (w *WeakArray[T]) Expired() bool { return w.owner.Expired() }
func (w *WeakArray[T]) Release()      { w.owner.Release() }

func (w *WeakArray[T]) Clone() WeakArray[T] {
	return WeakArray[T]{owner: w.owner.Clone()}
}
