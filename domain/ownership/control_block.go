package ownership

import (
	"sync/atomic"

	"ownkit/infra/sequence"
)

// ids numbers every managed resource in the process.
var ids = sequence.New(0)

// ControlBlock is the shared bookkeeping of one resource managed by Shared
// and Weak handles.
//
// weak holds the number of Weak handles plus one reference owned
// collectively by the strong owners. The strong side gives that reference
// up right after the resource is destroyed, so whichever side finishes last
// frees the block, and the block is never freed before the resource is
// destroyed.
//
// Go's atomics are sequentially consistent: the decrement that reaches zero
// is ordered after every earlier retain and every access made through a
// handle that has since been released.
type ControlBlock struct {
	strong atomic.Int64
	weak   atomic.Int64

	destroyed atomic.Bool
	freed     atomic.Bool

	id          uint64
	object      any // *T, dropped when the resource is destroyed
	disposer    disposer
	desc        descriptor
	coAllocated bool
}

func (cb *ControlBlock) init(id uint64, object any, d disposer, desc descriptor, coAllocated bool) {
	cb.id = id
	cb.object = object
	cb.disposer = d
	cb.desc = desc
	cb.coAllocated = coAllocated
	cb.strong.Store(1)
	cb.weak.Store(1)
}

// ID identifies the managed resource.
func (cb *ControlBlock) ID() uint64 { return cb.id }

// TypeName is the managed type, as printed by %T.
func (cb *ControlBlock) TypeName() string { return cb.desc.typeName }

// CoAllocated reports whether the block and the resource share a single
// allocation. A co-allocated resource's memory stays reachable until the
// last Weak handle is gone, even after teardown.
func (cb *ControlBlock) CoAllocated() bool { return cb.coAllocated }

// RetainStrong adds a strong reference. The caller must already hold one.
func (cb *ControlBlock) RetainStrong() {
	if n := cb.strong.Add(1); n <= 1 {
		violation(ErrResurrection, "block %d (%s)", cb.id, cb.desc.typeName)
	}
}

// ReleaseStrong drops a strong reference and destroys the resource when it
// was the last one.
func (cb *ControlBlock) ReleaseStrong() {
	n := cb.strong.Add(-1)
	switch {
	case n < 0:
		violation(ErrCounterUnderflow, "strong count of block %d (%s)", cb.id, cb.desc.typeName)
	case n == 0:
		cb.destroy()
		cb.ReleaseWeak()
	}
}

// RetainWeak adds a weak reference. The caller must hold a strong or weak
// reference.
func (cb *ControlBlock) RetainWeak() {
	if n := cb.weak.Add(1); n <= 1 {
		violation(ErrResurrection, "weak retain of freed block %d (%s)", cb.id, cb.desc.typeName)
	}
}

// ReleaseWeak drops a weak reference and frees the block when nothing
// references it any more.
func (cb *ControlBlock) ReleaseWeak() {
	n := cb.weak.Add(-1)
	switch {
	case n < 0:
		violation(ErrCounterUnderflow, "weak count of block %d (%s)", cb.id, cb.desc.typeName)
	case n == 0:
		cb.free()
	}
}

// TryLockForPromotion adds a strong reference only if one still exists.
// It never revives a resource whose strong count already reached zero.
func (cb *ControlBlock) TryLockForPromotion() bool {
	for {
		n := cb.strong.Load()
		if n <= 0 {
			return false
		}
		if cb.strong.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// StrongCount is advisory: it may be stale as soon as it returns.
func (cb *ControlBlock) StrongCount() int64 {
	return cb.strong.Load()
}

// WeakCount reports the number of Weak handles. Advisory.
func (cb *ControlBlock) WeakCount() int64 {
	w := cb.weak.Load()
	if cb.strong.Load() > 0 {
		w--
	}
	if w < 0 {
		return 0
	}
	return w
}

// Expired reports whether the resource has been destroyed. Advisory.
func (cb *ControlBlock) Expired() bool {
	return cb.strong.Load() == 0
}

func (cb *ControlBlock) destroy() {
	if !cb.destroyed.CompareAndSwap(false, true) {
		violation(ErrDoubleRelease, "block %d (%s) destroyed twice", cb.id, cb.desc.typeName)
	}
	d := cb.disposer
	cb.disposer = nil
	cb.object = nil
	if err := d.dispose(); err != nil {
		cb.desc.emit(EventDeleterError, cb.id, true, err)
	}
	cb.desc.emit(EventObjectDestroyed, cb.id, true, nil)
}

func (cb *ControlBlock) free() {
	if !cb.destroyed.Load() {
		violation(ErrCounterUnderflow, "block %d (%s) freed before its resource", cb.id, cb.desc.typeName)
	}
	if !cb.freed.CompareAndSwap(false, true) {
		violation(ErrDoubleRelease, "block %d (%s) freed twice", cb.id, cb.desc.typeName)
	}
	cb.desc.emit(EventBlockFreed, cb.id, true, nil)
}

// inline co-allocates a ControlBlock with the value it manages.
type inline[T any] struct {
	cb    ControlBlock
	value T
}
