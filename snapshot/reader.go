package snapshot

import "ownkit/infra/memory"

// Reader is a thin adapter over memory.ReaderEpoch that marks where a
// consistent read begins and ends.
type Reader struct {
	epoch *memory.ReaderEpoch
}

func NewReader(clock *memory.Epochs) *Reader {
	return &Reader{epoch: clock.NewReader()}
}

// Begin pins the current epoch.
func (r *Reader) Begin() {
	r.epoch.Enter()
}

func (r *Reader) End() {
	r.epoch.Exit()
}

// Epoch exposes the underlying epoch for reclaimers.
func (r *Reader) Epoch() *memory.ReaderEpoch {
	return r.epoch
}
