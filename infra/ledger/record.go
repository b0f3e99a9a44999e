package ledger

import (
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
)

// -------------------- Transition --------------------

// Transition is one lifecycle event as the ledger stores and publishes it.
type Transition struct {
	ID     uint64    `json:"id"`
	Kind   string    `json:"kind"`
	Type   string    `json:"type"`
	Shared bool      `json:"shared"`
	Array  bool      `json:"array,omitempty"`
	Len    int       `json:"len,omitempty"`
	Err    string    `json:"err,omitempty"`
	At     time.Time `json:"at"`
}

// Kinds the ledger acts on; they match ownership.EventKind.String().
const (
	KindCreated         = "created"
	KindPromoted        = "promoted"
	KindObjectDestroyed = "object_destroyed"
	KindBlockFreed      = "block_freed"
	KindDetached        = "detached"
)

// -------------------- Block --------------------

type BlockState uint8

const (
	BlockLive BlockState = iota
	// BlockDestroyed: the resource is gone but weak observers still pin
	// the control block.
	BlockDestroyed
)

func (s BlockState) String() string {
	switch s {
	case BlockLive:
		return "LIVE"
	case BlockDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// BlockRecord is the persisted state of a resource that has not finished
// its lifecycle.
type BlockRecord struct {
	State   BlockState
	Shared  bool
	Array   bool
	Len     uint64
	Created int64
	Updated int64
	Type    string
}

const (
	flagShared = 1 << iota
	flagArray
)

// binary encoding: [state:1][flags:1][len:8][created:8][updated:8][type...]
const blockHeader = 26

func encodeBlock(r BlockRecord) []byte {
	buf := make([]byte, blockHeader+len(r.Type))
	buf[0] = byte(r.State)
	if r.Shared {
		buf[1] |= flagShared
	}
	if r.Array {
		buf[1] |= flagArray
	}
	binary.BigEndian.PutUint64(buf[2:10], r.Len)
	binary.BigEndian.PutUint64(buf[10:18], uint64(r.Created))
	binary.BigEndian.PutUint64(buf[18:26], uint64(r.Updated))
	copy(buf[blockHeader:], r.Type)
	return buf
}

func decodeBlock(b []byte) (BlockRecord, error) {
	if len(b) < blockHeader {
		return BlockRecord{}, errors.Newf("invalid block record length %d", len(b))
	}
	return BlockRecord{
		State:   BlockState(b[0]),
		Shared:  b[1]&flagShared != 0,
		Array:   b[1]&flagArray != 0,
		Len:     binary.BigEndian.Uint64(b[2:10]),
		Created: int64(binary.BigEndian.Uint64(b[10:18])),
		Updated: int64(binary.BigEndian.Uint64(b[18:26])),
		Type:    string(b[blockHeader:]),
	}, nil
}

// -------------------- Outbox --------------------

type OutboxState uint8

const (
	OutboxNew OutboxState = iota
	OutboxSent
	OutboxFailed
)

func (s OutboxState) String() string {
	switch s {
	case OutboxNew:
		return "NEW"
	case OutboxSent:
		return "SENT"
	case OutboxFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// OutboxRecord is a transition waiting to be published.
type OutboxRecord struct {
	State       OutboxState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload...]
func encodeOutbox(r OutboxRecord) []byte {
	buf := make([]byte, 13+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeOutbox(b []byte) (OutboxRecord, error) {
	if len(b) < 13 {
		return OutboxRecord{}, errors.Newf("invalid outbox record length %d", len(b))
	}
	payload := make([]byte, len(b)-13)
	copy(payload, b[13:])
	return OutboxRecord{
		State:       OutboxState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}
