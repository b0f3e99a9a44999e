package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ownkit/domain/ownership"
	"ownkit/infra/ledger"
)

type file struct {
	err error
}

func (f *file) Close() error { return f.err }

var _ io.Closer = (*file)(nil)

func TestRegistry_ExclusiveLifecycle(t *testing.T) {
	m := newTestMetrics()
	reg := NewRegistry(zap.NewNop(), m, 16)

	e := ownership.NewExclusive(&file{}, ownership.WithTracker[file](reg))
	require.Len(t, reg.Live(), 1)
	assert.False(t, reg.Live()[0].Shared)

	e.Release()
	st := reg.Stats()
	assert.Equal(t, uint64(1), st.Created)
	assert.Equal(t, uint64(1), st.Destroyed)
	assert.Zero(t, st.LiveObjects)
	assert.Empty(t, reg.Live())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResourcesCreated.WithLabelValues("exclusive")))
}

func TestRegistry_PromotedAndDetached(t *testing.T) {
	reg := NewRegistry(zap.NewNop(), newTestMetrics(), 16)

	e := ownership.NewExclusive(&file{}, ownership.WithTracker[file](reg))
	s := e.IntoShared()
	require.Len(t, reg.Live(), 1)
	assert.True(t, reg.Live()[0].Shared)
	assert.Equal(t, int64(1), reg.Stats().LiveBlocks)
	s.Release()
	assert.Empty(t, reg.Live())

	d := ownership.NewExclusive(&file{}, ownership.WithTracker[file](reg))
	raw := d.ReleaseOwnership()
	require.NotNil(t, raw)
	st := reg.Stats()
	assert.Equal(t, uint64(1), st.Detached)
	assert.Zero(t, st.LiveObjects)
}

func TestRegistry_CountsFailures(t *testing.T) {
	m := newTestMetrics()
	reg := NewRegistry(zap.NewNop(), m, 16)

	_, err := ownership.MakeShared(func(*file) error { return errors.New("no disk") },
		ownership.WithTracker[file](reg))
	require.Error(t, err)

	s := ownership.NewShared(&file{err: errors.New("flush failed")}, ownership.WithTracker[file](reg))
	s.Release()

	st := reg.Stats()
	assert.Equal(t, uint64(1), st.ConstructFailed)
	assert.Equal(t, uint64(1), st.DeleterErrors)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeleterErrors))
}

func TestRegistry_DropsWhenQueueFull(t *testing.T) {
	m := newTestMetrics()
	reg := NewRegistry(zap.NewNop(), m, 1)

	s := ownership.NewShared(&file{}, ownership.WithTracker[file](reg))
	s.Release()

	// created fits; destroyed and freed do not
	assert.Equal(t, uint64(2), reg.Stats().Dropped)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrackerDropped))
}

func TestRegistry_RunAppliesToLedger(t *testing.T) {
	l, err := ledger.Open(t.TempDir(), ledger.Options{})
	require.NoError(t, err)
	defer l.Close()

	reg := NewRegistry(zap.NewNop(), newTestMetrics(), 64)

	kept := ownership.NewShared(&file{}, ownership.WithTracker[file](reg))
	gone := ownership.NewShared(&file{}, ownership.WithTracker[file](reg))
	w := gone.Weak()
	gone.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, l) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	blocks := map[uint64]ledger.BlockState{}
	require.NoError(t, l.ScanBlocks(func(id uint64, rec ledger.BlockRecord) error {
		blocks[id] = rec.State
		return nil
	}))
	assert.Equal(t, map[uint64]ledger.BlockState{
		kept.ID(): ledger.BlockLive,
		w.ID():    ledger.BlockDestroyed,
	}, blocks)
	assert.Equal(t, uint64(3), l.LastSeq())

	rep := reg.Report()
	require.Len(t, rep.Blocks, 2)
	assert.Equal(t, 1, rep.Leaks())

	w.Release()
	kept.Release()
}
