// Package ledger persists the lifecycle of managed resources in pebble:
// one record per resource that has not finished its lifecycle, and an
// outbox of transitions waiting to be published. Records are deleted as
// soon as their lifecycle completes, so whatever is left after shutdown is
// a leak.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"ownkit/infra/sequence"
)

var ErrNotFound = errors.New("ledger: record not found")

const (
	blockPrefix = "block/"
	eventPrefix = "event/"
)

// Options tune durability.
type Options struct {
	// Sync makes every Apply durable before it returns.
	Sync bool
}

// Ledger is safe for one writer and any number of concurrent scanners.
type Ledger struct {
	db   *pebble.DB
	seq  *sequence.Sequencer
	sync bool
}

func Open(dir string, opts Options) (*Ledger, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger %s", dir)
	}
	l := &Ledger{db: db, seq: sequence.New(0), sync: opts.Sync}

	last, err := l.lastEventSeq()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.seq.AdvanceTo(last)
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) writeOpts() *pebble.WriteOptions {
	if l.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// -------------------- Apply --------------------

// Apply records a transition: the resource's block record moves to its
// new state (or is deleted once its lifecycle ends) and the transition is
// queued in the outbox. It returns the outbox sequence number.
func (l *Ledger) Apply(tr Transition) (uint64, error) {
	payload, err := json.Marshal(tr)
	if err != nil {
		return 0, errors.Wrap(err, "encode transition")
	}

	b := l.db.NewBatch()
	defer b.Close()

	if tr.ID != 0 {
		if err := l.stageBlock(b, tr); err != nil {
			return 0, err
		}
	}

	seq := l.seq.Next()
	rec := OutboxRecord{State: OutboxNew, Payload: payload}
	if err := b.Set(keyFor(eventPrefix, seq), encodeOutbox(rec), nil); err != nil {
		return 0, errors.Wrap(err, "stage outbox")
	}

	if err := b.Commit(l.writeOpts()); err != nil {
		return 0, errors.Wrap(err, "commit transition")
	}
	return seq, nil
}

func (l *Ledger) stageBlock(b *pebble.Batch, tr Transition) error {
	key := keyFor(blockPrefix, tr.ID)
	now := tr.At.UnixNano()

	switch tr.Kind {
	case KindCreated:
		rec := BlockRecord{
			State:   BlockLive,
			Shared:  tr.Shared,
			Array:   tr.Array,
			Len:     uint64(tr.Len),
			Created: now,
			Updated: now,
			Type:    tr.Type,
		}
		return b.Set(key, encodeBlock(rec), nil)

	case KindPromoted:
		rec, err := l.blockOrNew(tr)
		if err != nil {
			return err
		}
		rec.Shared, rec.Updated = true, now
		return b.Set(key, encodeBlock(rec), nil)

	case KindObjectDestroyed:
		if !tr.Shared {
			return b.Delete(key, nil)
		}
		rec, err := l.blockOrNew(tr)
		if err != nil {
			return err
		}
		rec.State, rec.Updated = BlockDestroyed, now
		return b.Set(key, encodeBlock(rec), nil)

	case KindBlockFreed, KindDetached:
		return b.Delete(key, nil)
	}
	return nil
}

// blockOrNew tolerates a missing creation record, which happens when the
// tracker dropped the creation event under load.
func (l *Ledger) blockOrNew(tr Transition) (BlockRecord, error) {
	rec, err := l.Block(tr.ID)
	if errors.Is(err, ErrNotFound) {
		now := tr.At.UnixNano()
		return BlockRecord{
			Array:   tr.Array,
			Len:     uint64(tr.Len),
			Created: now,
			Updated: now,
			Type:    tr.Type,
		}, nil
	}
	return rec, err
}

// -------------------- Blocks --------------------

// Block returns the record of an unfinished resource.
func (l *Ledger) Block(id uint64) (BlockRecord, error) {
	val, closer, err := l.db.Get(keyFor(blockPrefix, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return BlockRecord{}, errors.Wrapf(ErrNotFound, "block %d", id)
	}
	if err != nil {
		return BlockRecord{}, err
	}
	defer closer.Close()

	return decodeBlock(val)
}

// ScanBlocks iterates every resource that has not finished its lifecycle.
func (l *Ledger) ScanBlocks(fn func(id uint64, rec BlockRecord) error) error {
	return l.scan(blockPrefix, func(id uint64, val []byte) error {
		rec, err := decodeBlock(val)
		if err != nil {
			return err
		}
		return fn(id, rec)
	})
}

// PurgeBlocks deletes every block record and returns how many there were.
func (l *Ledger) PurgeBlocks() (int, error) {
	n := 0
	if err := l.scan(blockPrefix, func(uint64, []byte) error {
		n++
		return nil
	}); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	err := l.db.DeleteRange([]byte(blockPrefix), []byte(blockPrefix+"~"), l.writeOpts())
	return n, errors.Wrap(err, "purge blocks")
}

// -------------------- Outbox --------------------

// ScanPending iterates outbox entries that still need publishing, oldest
// first. Entries that failed for good are skipped.
func (l *Ledger) ScanPending(fn func(seq uint64, rec OutboxRecord) error) error {
	return l.scan(eventPrefix, func(seq uint64, val []byte) error {
		rec, err := decodeOutbox(val)
		if err != nil {
			return err
		}
		if rec.State == OutboxFailed {
			return nil
		}
		return fn(seq, rec)
	})
}

// Outbox returns one outbox entry.
func (l *Ledger) Outbox(seq uint64) (OutboxRecord, error) {
	val, closer, err := l.db.Get(keyFor(eventPrefix, seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return OutboxRecord{}, errors.Wrapf(ErrNotFound, "event %d", seq)
	}
	if err != nil {
		return OutboxRecord{}, err
	}
	defer closer.Close()

	return decodeOutbox(val)
}

// MarkSent records a publish attempt.
func (l *Ledger) MarkSent(seq uint64) error {
	return l.updateOutbox(seq, func(r *OutboxRecord) {
		r.State = OutboxSent
		r.Retries++
	})
}

// MarkFailed gives up on an entry; it stays in the ledger for inspection.
func (l *Ledger) MarkFailed(seq uint64) error {
	return l.updateOutbox(seq, func(r *OutboxRecord) {
		r.State = OutboxFailed
	})
}

// MarkAcked removes a published entry.
func (l *Ledger) MarkAcked(seq uint64) error {
	return l.db.Delete(keyFor(eventPrefix, seq), l.writeOpts())
}

func (l *Ledger) updateOutbox(seq uint64, fn func(*OutboxRecord)) error {
	rec, err := l.Outbox(seq)
	if err != nil {
		return err
	}
	fn(&rec)
	rec.LastAttempt = time.Now().UnixNano()
	return l.db.Set(keyFor(eventPrefix, seq), encodeOutbox(rec), l.writeOpts())
}

// LastSeq is the newest outbox sequence number handed out.
func (l *Ledger) LastSeq() uint64 {
	return l.seq.Current()
}

// -------------------- Helpers --------------------

func (l *Ledger) scan(prefix string, fn func(id uint64, val []byte) error) error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, err := parseKey(prefix, iter.Key())
		if err != nil {
			return err
		}
		if err := fn(id, iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (l *Ledger) lastEventSeq() (uint64, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(eventPrefix),
		UpperBound: []byte(eventPrefix + "~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(eventPrefix, iter.Key())
}

func keyFor(prefix string, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, id))
}

func parseKey(prefix string, b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(prefix))), "%d", &id)
	return id, err
}
