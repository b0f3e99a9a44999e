package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type block struct {
	data []byte
}

func newBlockPool() *Pool[block] {
	return NewPool(func() *block {
		return &block{data: make([]byte, 0, 16)}
	}, func(b *block) {
		b.data = b.data[:0]
	})
}

type countingPool struct {
	got []any
}

func (p *countingPool) PutAny(v any) { p.got = append(p.got, v) }

func TestEpochs_ReclaimWithoutReaders(t *testing.T) {
	var clock Epochs
	ring := NewRetireRing(8)
	pool := &countingPool{}
	ret := NewRetirer[block](ring, &clock)

	ret.Retire(&block{})
	ret.Retire(&block{})

	st := clock.AdvanceAndReclaim(ring, pool)
	assert.Equal(t, ReclaimStats{Reclaimed: 2}, st)
	assert.Len(t, pool.got, 2)
	assert.Equal(t, 0, ring.Len())
}

func TestEpochs_ActiveReaderDefersReclaim(t *testing.T) {
	var clock Epochs
	ring := NewRetireRing(8)
	pool := &countingPool{}
	ret := NewRetirer[block](ring, &clock)
	reader := clock.NewReader()

	reader.Enter()
	ret.Retire(&block{})

	st := clock.AdvanceAndReclaim(ring, pool, reader)
	assert.Equal(t, ReclaimStats{Deferred: 1}, st)
	assert.Empty(t, pool.got)

	reader.Exit()
	st = clock.AdvanceAndReclaim(ring, pool, reader)
	assert.Equal(t, ReclaimStats{Reclaimed: 1}, st)
}

func TestEpochs_ReaderFromLaterEpochDoesNotBlock(t *testing.T) {
	var clock Epochs
	ring := NewRetireRing(8)
	pool := &countingPool{}
	ret := NewRetirer[block](ring, &clock)
	reader := clock.NewReader()

	ret.Retire(&block{})
	clock.AdvanceAndReclaim(NewRetireRing(2), pool)
	reader.Enter()

	st := clock.AdvanceAndReclaim(ring, pool, reader)
	assert.Equal(t, ReclaimStats{Reclaimed: 1}, st)
	reader.Exit()
}

func TestRetirer_DropsWhenFull(t *testing.T) {
	var clock Epochs
	ring := NewRetireRing(2)
	ret := NewRetirer[block](ring, &clock)

	ret.Retire(&block{})
	ret.Retire(&block{})
	ret.Retire(&block{})
	ret.Retire(nil)
	assert.Equal(t, uint64(1), ret.Dropped())
	assert.Equal(t, 2, ring.Len())
}

func TestPool_ResetOnPut(t *testing.T) {
	pool := newBlockPool()
	b := pool.Get()
	b.data = append(b.data, "secret"...)

	recycle := pool.Recycler()
	recycle(b)
	assert.Empty(t, b.data)
}

func TestPool_PutAnyWrongType(t *testing.T) {
	pool := newBlockPool()
	require.Panics(t, func() { pool.PutAny("not a block") })
	pool.PutAny(&block{})
}
