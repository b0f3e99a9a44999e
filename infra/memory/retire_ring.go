package memory

import "sync/atomic"

// Retired is an object waiting for reclamation, stamped with the epoch in
// which it was retired.
type Retired struct {
	Obj   any
	Epoch uint64
}

type ringCell struct {
	seq  atomic.Uint64
	item Retired
}

// RetireRing is a bounded lock-free MPMC ring of retired objects. Each cell
// carries a sequence number telling producers and consumers whose turn it
// is, so any goroutine that drops the last owner can retire concurrently.
type RetireRing struct {
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte
	cells []ringCell
	mask  uint64
}

// NewRetireRing allocates a ring; size must be a power of two and at least 2.
// A single cell cannot tell "full" from "free for the next lap".
func NewRetireRing(size uint64) *RetireRing {
	if size < 2 || size&(size-1) != 0 {
		panic("RetireRing size must be a power of two >= 2")
	}
	r := &RetireRing{
		cells: make([]ringCell, size),
		mask:  size - 1,
	}
	for i := range r.cells {
		r.cells[i].seq.Store(uint64(i))
	}
	return r
}

// Enqueue adds an element; returns false if full.
func (r *RetireRing) Enqueue(v Retired) bool {
	pos := r.head.Load()
	for {
		c := &r.cells[pos&r.mask]
		diff := int64(c.seq.Load()) - int64(pos)
		switch {
		case diff == 0:
			if r.head.CompareAndSwap(pos, pos+1) {
				c.item = v
				c.seq.Store(pos + 1)
				return true
			}
			pos = r.head.Load()
		case diff < 0:
			return false
		default:
			pos = r.head.Load()
		}
	}
}

// Dequeue removes the oldest element; ok is false if empty.
func (r *RetireRing) Dequeue() (Retired, bool) {
	pos := r.tail.Load()
	for {
		c := &r.cells[pos&r.mask]
		diff := int64(c.seq.Load()) - int64(pos+1)
		switch {
		case diff == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				v := c.item
				c.item = Retired{}
				c.seq.Store(pos + r.mask + 1)
				return v, true
			}
			pos = r.tail.Load()
		case diff < 0:
			return Retired{}, false
		default:
			pos = r.tail.Load()
		}
	}
}

// Len is approximate under concurrent use.
func (r *RetireRing) Len() int {
	h, t := r.head.Load(), r.tail.Load()
	if h < t {
		return 0
	}
	return int(h - t)
}

func (r *RetireRing) Cap() int { return len(r.cells) }
