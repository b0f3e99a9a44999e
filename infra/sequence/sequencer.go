package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing IDs. It backs control block
// IDs, lease IDs and ledger event numbers.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next ID.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued ID.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// AdvanceTo moves the sequencer forward so that the next ID is above v.
// It never moves backwards; used when resuming from a persisted ledger.
func (s *Sequencer) AdvanceTo(v uint64) {
	for {
		cur := s.last.Load()
		if cur >= v {
			return
		}
		if s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
