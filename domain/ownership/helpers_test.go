package ownership

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID        int
	destroyed *atomic.Int32
}

func (w *widget) Destroy() {
	if w.destroyed != nil {
		w.destroyed.Add(1)
	}
}

func newWidget(id int) (*widget, *atomic.Int32) {
	n := &atomic.Int32{}
	return &widget{ID: id, destroyed: n}, n
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Track(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) kindsFor(id uint64) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, e := range r.events {
		if e.ID == id {
			out = append(out, e.Kind)
		}
	}
	return out
}

func requireViolation(t *testing.T, sentinel error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation")
		require.True(t, IsViolation(r), "panic %v is not a contract violation", r)
		require.True(t, errors.Is(r.(error), sentinel), "panic %v is not %v", r, sentinel)
	}()
	fn()
}
