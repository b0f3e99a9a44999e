package memory

import "sync/atomic"

const inactive = ^uint64(0)

// Epochs is a reclamation clock. Readers enter at the current epoch;
// objects retire at the current epoch; an object becomes reusable once the
// clock has moved past it and no reader from its epoch or earlier remains.
type Epochs struct {
	global atomic.Uint64
}

// Current returns the epoch new retirements are stamped with.
func (e *Epochs) Current() uint64 {
	return e.global.Load()
}

// NewReader returns an idle reader on this clock.
func (e *Epochs) NewReader() *ReaderEpoch {
	r := &ReaderEpoch{clock: e}
	r.epoch.Store(inactive)
	return r
}

// ReaderEpoch marks when a reader entered its read section.
type ReaderEpoch struct {
	clock *Epochs
	epoch atomic.Uint64
}

func (r *ReaderEpoch) Enter() {
	r.epoch.Store(r.clock.global.Load())
}

func (r *ReaderEpoch) Exit() {
	r.epoch.Store(inactive)
}

func (r *ReaderEpoch) Value() uint64 {
	return r.epoch.Load()
}

// ReclaimStats summarises one reclamation pass.
type ReclaimStats struct {
	Reclaimed int // returned to the pool
	Deferred  int // still visible to a reader, kept for a later pass
	Dropped   int // could not be kept; left to the garbage collector
}

// AdvanceAndReclaim advances the epoch and returns every retired object
// that no active reader can still see to the pool.
func (e *Epochs) AdvanceAndReclaim(
	ring *RetireRing,
	pool ReclaimablePool,
	readers ...*ReaderEpoch,
) ReclaimStats {
	e.global.Add(1)
	min := minReaderEpoch(readers...)

	var st ReclaimStats
	for budget := ring.Cap(); budget > 0; budget-- {
		item, ok := ring.Dequeue()
		if !ok {
			return st
		}

		if item.Epoch < min {
			pool.PutAny(item.Obj)
			st.Reclaimed++
			continue
		}

		// Retired no earlier than the oldest reader: everything behind it
		// is at least as new, so stop here.
		if ring.Enqueue(item) {
			st.Deferred++
		} else {
			st.Dropped++
		}
		return st
	}
	return st
}

func minReaderEpoch(rs ...*ReaderEpoch) uint64 {
	min := inactive
	for _, r := range rs {
		if r == nil {
			continue
		}
		v := r.Value()
		if v < min {
			min = v
		}
	}
	return min
}
