package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeak_Basic(t *testing.T) {
	w, destroyed := newWidget(3)
	s := NewShared(w)
	obs := s.Weak()
	defer obs.Release()

	assert.False(t, obs.Expired())
	assert.Equal(t, int64(1), obs.UseCount())
	assert.Equal(t, int64(1), s.WeakCount())

	locked := obs.Lock()
	require.False(t, locked.IsEmpty())
	assert.Same(t, s.Get(), locked.Get())
	assert.Equal(t, int64(2), s.UseCount())
	locked.Release()

	s.Release()
	assert.Equal(t, int32(1), destroyed.Load())
	assert.True(t, obs.Expired())

	gone := obs.Lock()
	assert.True(t, gone.IsEmpty())
	_, ok := obs.TryLock()
	assert.False(t, ok)
}

// s1 = make_shared(Widget(42)); s2 = s1; w = weak(s1); s1.reset();
// w.lock() succeeds; s2.reset() destroys; w.lock() is empty.
func TestWeak_ScenarioA(t *testing.T) {
	rec := &recorder{}
	destroyed := 0
	s1, err := MakeShared(func(w *widget) error {
		w.ID = 42
		return nil
	}, WithTracker[widget](rec), WithDeleter(func(w *widget) {
		destroyed++
	}))
	require.NoError(t, err)

	s2 := s1.Clone()
	w := s1.Weak()
	defer w.Release()

	s1.Reset()
	assert.Equal(t, 0, destroyed)

	locked := w.Lock()
	require.False(t, locked.IsEmpty())
	assert.Equal(t, 42, locked.Get().ID)
	locked.Release()
	assert.Equal(t, 0, destroyed)

	s2.Reset()
	assert.Equal(t, 1, destroyed)

	after := w.Lock()
	assert.True(t, after.IsEmpty())
	assert.Equal(t, 1, rec.count(EventObjectDestroyed))
	assert.Equal(t, 0, rec.count(EventBlockFreed))
}

func TestWeak_CloneAndMove(t *testing.T) {
	s := MakeSharedOf(widget{ID: 1})
	w1 := s.Weak()
	w2 := w1.Clone()
	assert.Equal(t, int64(2), s.WeakCount())

	w3 := w2.Move()
	assert.True(t, w2.IsEmpty())
	assert.Equal(t, int64(2), s.WeakCount())
	assert.Equal(t, s.ID(), w3.ID())

	w1.Release()
	w2.Release()
	w3.Release()
	assert.Equal(t, int64(0), s.WeakCount())
	s.Release()
}

func TestWeak_DoesNotExtendLifetime(t *testing.T) {
	w, destroyed := newWidget(1)
	s := NewShared(w)
	obs := s.Weak()
	more := obs.Clone()

	s.Release()
	assert.Equal(t, int32(1), destroyed.Load())

	obs.Release()
	more.Release()
	assert.Equal(t, int32(1), destroyed.Load())
}

func TestWeak_PromotedOwnerCanBeLast(t *testing.T) {
	w, destroyed := newWidget(1)
	s := NewShared(w)
	obs := s.Weak()
	defer obs.Release()

	promoted := obs.Lock()
	s.Release()
	assert.Equal(t, int32(0), destroyed.Load())

	promoted.Release()
	assert.Equal(t, int32(1), destroyed.Load())
	assert.True(t, obs.Expired())
}
