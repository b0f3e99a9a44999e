package ownership

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Contract violations. They are raised with panic, wrapped as assertion
// failures, because carrying on would risk a double teardown or a use of a
// destroyed resource.
var (
	ErrCounterUnderflow = errors.New("ownership: reference counter underflow")
	ErrResurrection     = errors.New("ownership: strong retain of a destroyed resource")
	ErrDanglingAccess   = errors.New("ownership: access through an empty handle")
	ErrDoubleRelease    = errors.New("ownership: resource released twice")
	ErrIndexOutOfRange  = errors.New("ownership: index out of range")
)

// Returned errors.
var (
	ErrConstruct     = errors.New("ownership: construction failed")
	ErrInvalidLength = errors.New("ownership: invalid array length")
)

func violation(sentinel error, format string, args ...any) {
	panic(errors.WithAssertionFailure(errors.Wrapf(sentinel, format, args...)))
}

// IsViolation reports whether a recovered panic value is a contract
// violation raised by this package.
func IsViolation(r any) bool {
	err, ok := r.(error)
	return ok && errors.IsAssertionFailure(err)
}

func constructError(typeName string, err error) error {
	return errors.Mark(errors.Wrapf(err, "ownership: constructing %s", typeName), ErrConstruct)
}

func typeNameOf[T any]() string {
	return fmt.Sprintf("%T", (*T)(nil))[1:]
}
