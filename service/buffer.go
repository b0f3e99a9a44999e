package service

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Buffer is a pooled byte region handed out by LeaseService.
type Buffer struct {
	mu   sync.RWMutex
	data []byte
}

func newBuffer(capacity int) func() *Buffer {
	return func() *Buffer {
		return &Buffer{data: make([]byte, 0, capacity)}
	}
}

// resize makes b exactly n zeroed bytes long, reusing its backing array
// when it is large enough.
func (b *Buffer) resize(n int) {
	if cap(b.data) < n {
		b.data = make([]byte, n)
		return
	}
	b.data = b.data[:n]
	clear(b.data)
}

func resetBuffer(b *Buffer) {
	clear(b.data)
	b.data = b.data[:0]
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// ReadAt copies n bytes starting at off.
func (b *Buffer) ReadAt(off, n int) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !inRange(off, n, len(b.data)) {
		return nil, errors.Wrapf(ErrOutOfRange, "read %d bytes at %d of %d", n, off, len(b.data))
	}
	out := make([]byte, n)
	copy(out, b.data[off:off+n])
	return out, nil
}

// WriteAt copies p into the buffer at off.
func (b *Buffer) WriteAt(off int, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !inRange(off, len(p), len(b.data)) {
		return errors.Wrapf(ErrOutOfRange, "write %d bytes at %d of %d", len(p), off, len(b.data))
	}
	copy(b.data[off:], p)
	return nil
}

// inRange reports whether [off, off+n) fits in size without computing
// off+n, which can overflow.
func inRange(off, n, size int) bool {
	return off >= 0 && n >= 0 && off <= size && n <= size-off
}
