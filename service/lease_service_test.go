package service

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLeaseService_ShareReadWrite(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{})

	a, err := svc.Acquire(16)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.UseCount)
	assert.Equal(t, 16, a.Size)

	b, err := svc.Share(a.Lease)
	require.NoError(t, err)
	assert.Equal(t, a.Resource, b.Resource)
	assert.NotEqual(t, a.Lease, b.Lease)
	assert.Equal(t, int64(2), b.UseCount)

	require.NoError(t, svc.Write(a.Lease, 4, []byte("own")))
	got, err := svc.Read(b.Lease, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, "own", string(got))

	zeros, err := svc.Read(b.Lease, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, zeros)
}

func TestLeaseService_WatchExpiresAfterLastRelease(t *testing.T) {
	svc, reg := newTestService(t, LeaseConfig{})

	a, err := svc.Acquire(8)
	require.NoError(t, err)
	b, err := svc.Share(a.Lease)
	require.NoError(t, err)
	w, err := svc.Observe(a.Lease)
	require.NoError(t, err)
	assert.Equal(t, a.Resource, w.Resource)

	require.NoError(t, svc.Release(a.Lease))
	p, err := svc.Promote(w.Watch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.UseCount)

	require.NoError(t, svc.Release(b.Lease))
	require.NoError(t, svc.Release(p.Lease))
	assert.Equal(t, 1, svc.Retired())

	_, err = svc.Promote(w.Watch)
	assert.True(t, errors.Is(err, ErrExpired))

	info, err := svc.Watch(w.Watch)
	require.NoError(t, err)
	assert.True(t, info.Expired)

	st := reg.Stats()
	assert.Equal(t, uint64(1), st.Destroyed)
	assert.Equal(t, uint64(0), st.Freed, "watch still pins the block")
	require.Len(t, reg.Live(), 1)
	assert.True(t, reg.Live()[0].Destroyed)

	require.NoError(t, svc.Forget(w.Watch))
	st = reg.Stats()
	assert.Equal(t, uint64(1), st.Freed)
	assert.Zero(t, st.LiveObjects)
	assert.Zero(t, st.LiveBlocks)
	assert.Empty(t, reg.Live())
}

func TestLeaseService_Errors(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{MaxSize: 64})

	_, err := svc.Acquire(0)
	assert.True(t, errors.Is(err, ErrInvalidSize))
	_, err = svc.Acquire(65)
	assert.True(t, errors.Is(err, ErrInvalidSize))

	_, err = svc.Share(99)
	assert.True(t, errors.Is(err, ErrUnknownLease))
	assert.True(t, errors.Is(svc.Release(99), ErrUnknownLease))
	assert.True(t, errors.Is(svc.Forget(99), ErrUnknownWatch))
	_, err = svc.Promote(99)
	assert.True(t, errors.Is(err, ErrUnknownWatch))

	a, err := svc.Acquire(4)
	require.NoError(t, err)
	_, err = svc.Read(a.Lease, 2, 3)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.True(t, errors.Is(svc.Write(a.Lease, -1, []byte{1}), ErrOutOfRange))

	require.NoError(t, svc.Release(a.Lease))
	assert.True(t, errors.Is(svc.Release(a.Lease), ErrUnknownLease))
}

func TestLeaseService_ReclaimWaitsForReader(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{})

	a, err := svc.Acquire(32)
	require.NoError(t, err)

	svc.reader.Begin()
	require.NoError(t, svc.Release(a.Lease))

	st := svc.AdvanceEpoch()
	assert.Equal(t, 0, st.Reclaimed)
	assert.Equal(t, 1, st.Deferred)
	assert.Equal(t, 1, svc.Retired())

	svc.reader.End()
	st = svc.AdvanceEpoch()
	assert.Equal(t, 1, st.Reclaimed)
	assert.Zero(t, svc.Retired())
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.Reclaimed))
}

func TestLeaseService_RecycledBufferIsZeroed(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{BufferCap: 64})

	a, err := svc.Acquire(8)
	require.NoError(t, err)
	require.NoError(t, svc.Write(a.Lease, 0, []byte("secretss")))
	require.NoError(t, svc.Release(a.Lease))
	svc.AdvanceEpoch()

	b, err := svc.Acquire(8)
	require.NoError(t, err)
	got, err := svc.Read(b.Lease, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 8), got)
}

func TestLeaseService_Snapshot(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{})

	a, err := svc.Acquire(1)
	require.NoError(t, err)
	b, err := svc.Acquire(2)
	require.NoError(t, err)
	c, err := svc.Share(a.Lease)
	require.NoError(t, err)

	snap := svc.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []uint64{a.Lease, b.Lease, c.Lease}, []uint64{snap[0].Lease, snap[1].Lease, snap[2].Lease})
	assert.Equal(t, int64(2), snap[0].UseCount)
	assert.Equal(t, int64(1), snap[1].UseCount)
	assert.Equal(t, 3.0, testutil.ToFloat64(svc.metrics.LeasesOutstanding))
}

func TestLeaseService_CloseReleasesEverything(t *testing.T) {
	m := newTestMetrics()
	reg := NewRegistry(zap.NewNop(), m, 1024)
	svc := NewLeaseService(LeaseConfig{}, reg, zap.NewNop(), m)

	a, err := svc.Acquire(8)
	require.NoError(t, err)
	_, err = svc.Share(a.Lease)
	require.NoError(t, err)
	_, err = svc.Observe(a.Lease)
	require.NoError(t, err)
	_, err = svc.Acquire(8)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	st := reg.Stats()
	assert.Equal(t, uint64(2), st.Created)
	assert.Equal(t, uint64(2), st.Destroyed)
	assert.Equal(t, uint64(2), st.Freed)
	assert.Empty(t, reg.Live())
	assert.Zero(t, svc.Retired())

	_, err = svc.Acquire(8)
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = svc.Share(a.Lease)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestLeaseService_Concurrent(t *testing.T) {
	svc, reg := newTestService(t, LeaseConfig{RetireSlots: 1 << 10})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				a, err := svc.Acquire(16)
				if !assert.NoError(t, err) {
					return
				}
				b, err := svc.Share(a.Lease)
				if !assert.NoError(t, err) {
					return
				}
				w, err := svc.Observe(b.Lease)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, svc.Write(a.Lease, 0, []byte{byte(i)}))
				_, err = svc.Read(b.Lease, 0, 1)
				assert.NoError(t, err)
				assert.NoError(t, svc.Release(a.Lease))
				assert.NoError(t, svc.Release(b.Lease))
				assert.NoError(t, svc.Forget(w.Watch))
				if i%50 == 0 {
					svc.AdvanceEpoch()
				}
			}
		}()
	}
	wg.Wait()

	st := reg.Stats()
	assert.Equal(t, uint64(1600), st.Created)
	assert.Equal(t, st.Created, st.Destroyed)
	assert.Equal(t, st.Created, st.Freed)
	assert.Zero(t, st.LiveObjects)
	assert.Empty(t, svc.Snapshot())
}

func TestLeaseService_Immediate(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{Immediate: true})

	a, err := svc.Acquire(8)
	require.NoError(t, err)
	require.NoError(t, svc.Release(a.Lease))
	assert.Zero(t, svc.Retired())
}

func TestLeaseService_RetireRingOverflow(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{RetireSlots: 2})

	for i := 0; i < 3; i++ {
		a, err := svc.Acquire(1)
		require.NoError(t, err)
		require.NoError(t, svc.Release(a.Lease))
	}
	assert.Equal(t, 2, svc.Retired())
	assert.Equal(t, uint64(1), svc.RetireDropped())
}

func TestLeaseService_SingleRetireSlotRoundsUp(t *testing.T) {
	svc, _ := newTestService(t, LeaseConfig{RetireSlots: 1})

	for i := 0; i < 3; i++ {
		a, err := svc.Acquire(1)
		require.NoError(t, err)
		require.NoError(t, svc.Release(a.Lease))
	}
	assert.Equal(t, 2, svc.Retired())
	assert.Equal(t, uint64(1), svc.RetireDropped())

	st := svc.AdvanceEpoch()
	assert.Equal(t, 2, st.Reclaimed)
	assert.Zero(t, svc.Retired())
}
