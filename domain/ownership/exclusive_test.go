package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusive_Basic(t *testing.T) {
	w, destroyed := newWidget(1)
	e := NewExclusive(w)
	assert.False(t, e.IsEmpty())
	assert.Same(t, w, e.Get())

	moved := e.Move()
	assert.True(t, e.IsEmpty())
	assert.Equal(t, int32(0), destroyed.Load())
	assert.Same(t, w, moved.Get())

	e.Release()
	assert.Equal(t, int32(0), destroyed.Load())

	moved.Release()
	assert.Equal(t, int32(1), destroyed.Load())
}

func TestExclusive_DoubleReleaseIsViolation(t *testing.T) {
	w, destroyed := newWidget(1)
	e := NewExclusive(w)
	e.Release()
	requireViolation(t, ErrDoubleRelease, e.Release)
	assert.Equal(t, int32(1), destroyed.Load())
}

func TestExclusive_GetOnEmptyIsViolation(t *testing.T) {
	var e Exclusive[widget]
	requireViolation(t, ErrDanglingAccess, func() { e.Get() })
}

func TestExclusive_ReleaseOwnership(t *testing.T) {
	rec := &recorder{}
	w, destroyed := newWidget(1)
	e := NewExclusive(w, WithTracker[widget](rec))
	id := e.ID()

	p := e.ReleaseOwnership()
	assert.Same(t, w, p)
	assert.True(t, e.IsEmpty())

	e.Release()
	assert.Equal(t, int32(0), destroyed.Load())
	assert.Equal(t, []EventKind{EventCreated, EventDetached}, rec.kindsFor(id))
}

func TestExclusive_Reset(t *testing.T) {
	a, aDestroyed := newWidget(1)
	b, bDestroyed := newWidget(2)
	e := NewExclusive(a)

	e.ResetTo(b)
	assert.Equal(t, int32(1), aDestroyed.Load())
	assert.Same(t, b, e.Get())

	e.Reset()
	assert.Equal(t, int32(1), bDestroyed.Load())
	assert.True(t, e.IsEmpty())

	e.Reset()
	e.Release()
}

func TestExclusive_ResetToOwnedPointerIsViolation(t *testing.T) {
	w, destroyed := newWidget(1)
	e := NewExclusive(w)
	requireViolation(t, ErrDoubleRelease, func() { e.ResetTo(w) })
	assert.Equal(t, int32(0), destroyed.Load())
	e.Release()
}

func TestExclusive_MoveFromDestroysPrevious(t *testing.T) {
	a, aDestroyed := newWidget(1)
	b, bDestroyed := newWidget(2)
	ea := NewExclusive(a)
	eb := NewExclusive(b)

	ea.MoveFrom(&eb)
	assert.Equal(t, int32(1), aDestroyed.Load())
	assert.True(t, eb.IsEmpty())
	assert.Same(t, b, ea.Get())

	ea.MoveFrom(&ea)
	assert.Same(t, b, ea.Get())

	eb.Release()
	ea.Release()
	assert.Equal(t, int32(1), bDestroyed.Load())
}

func TestExclusive_IntoSharedCarriesDeleter(t *testing.T) {
	rec := &recorder{}
	var deleted []*widget
	w := &widget{ID: 9}
	e := NewExclusive(w, WithTracker[widget](rec), WithDeleter(func(p *widget) {
		deleted = append(deleted, p)
	}))
	id := e.ID()

	s := e.IntoShared()
	assert.True(t, e.IsEmpty())
	require.False(t, s.IsEmpty())
	assert.Equal(t, id, s.ID())
	assert.Equal(t, int64(1), s.UseCount())
	assert.False(t, s.cb.CoAllocated())

	e.Release()
	assert.Empty(t, deleted)

	c := s.Clone()
	s.Release()
	assert.Empty(t, deleted)
	c.Release()

	assert.Equal(t, []*widget{w}, deleted)
	assert.Equal(t, []EventKind{EventCreated, EventPromoted, EventObjectDestroyed, EventBlockFreed}, rec.kindsFor(id))
}

func TestExclusive_IntoSharedOnEmpty(t *testing.T) {
	var e Exclusive[widget]
	s := e.IntoShared()
	assert.True(t, s.IsEmpty())
}
