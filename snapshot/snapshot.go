package snapshot

import (
	"sort"
	"time"
)

// Report lists the managed resources alive at one point in time.
type Report struct {
	Seq     uint64
	Created time.Time
	Blocks  []BlockEntry
}

// BlockEntry is one live resource.
type BlockEntry struct {
	ID        uint64
	Type      string
	Shared    bool
	Array     bool
	Len       int
	Destroyed bool // shared resource torn down, weak observers keep the block
	Since     time.Time
}

// Sort orders entries by ID so reports diff cleanly.
func (r *Report) Sort() {
	sort.Slice(r.Blocks, func(i, j int) bool { return r.Blocks[i].ID < r.Blocks[j].ID })
}

// Leaks counts resources whose object was never torn down.
func (r *Report) Leaks() int {
	n := 0
	for _, b := range r.Blocks {
		if !b.Destroyed {
			n++
		}
	}
	return n
}
