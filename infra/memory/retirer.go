package memory

import "sync/atomic"

// Retirer is a deleter that defers recycling through a RetireRing, so an
// object released by its last owner is not reused while a reader from an
// earlier epoch may still be looking at it.
type Retirer[T any] struct {
	ring    *RetireRing
	clock   *Epochs
	dropped atomic.Uint64
}

func NewRetirer[T any](ring *RetireRing, clock *Epochs) *Retirer[T] {
	return &Retirer[T]{ring: ring, clock: clock}
}

// Retire stamps v with the current epoch and queues it. A full ring drops
// v for the garbage collector.
func (r *Retirer[T]) Retire(v *T) {
	if v == nil {
		return
	}
	if !r.ring.Enqueue(Retired{Obj: v, Epoch: r.clock.Current()}) {
		r.dropped.Add(1)
	}
}

// Dropped counts objects that did not fit in the ring.
func (r *Retirer[T]) Dropped() uint64 {
	return r.dropped.Load()
}
