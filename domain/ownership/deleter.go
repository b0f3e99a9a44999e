package ownership

import (
	"io"
	"reflect"

	"github.com/cockroachdb/errors"
)

// Deleter tears down a managed resource. It is invoked exactly once, with
// the pointer the owner was created with.
type Deleter[T any] func(*T)

// Destroyer is implemented by types with their own teardown.
type Destroyer interface {
	Destroy()
}

// Teardown is the default deleter: it calls Destroy, or Close, on the
// value (through its pointer first) and then zeroes it. Custom deleters
// may call it to chain onto the default behaviour.
func Teardown[T any](p *T) error {
	var err error
	switch v := any(p).(type) {
	case Destroyer:
		v.Destroy()
	case io.Closer:
		err = v.Close()
	default:
		switch v := any(*p).(type) {
		case Destroyer:
			if !isNil(v) {
				v.Destroy()
			}
		case io.Closer:
			if !isNil(v) {
				err = v.Close()
			}
		}
	}
	var zero T
	*p = zero
	return err
}

// teardownArray destroys the elements back to front, then drops the slice.
func teardownArray[T any](p *[]T) error {
	s := *p
	var errs error
	for i := len(s) - 1; i >= 0; i-- {
		errs = errors.CombineErrors(errs, Teardown(&s[i]))
	}
	*p = nil
	return errs
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// disposer is the type-erased teardown a ControlBlock holds. The block
// never learns the managed type.
type disposer interface {
	dispose() error
}

type deleterBox[T any] struct {
	ptr     *T
	release func(*T) error
}

func (b *deleterBox[T]) dispose() error {
	return b.release(b.ptr)
}
