package service

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Bounds(t *testing.T) {
	b := newBuffer(8)()
	b.resize(8)

	require.NoError(t, b.WriteAt(6, []byte{1, 2}))
	got, err := b.ReadAt(6, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)

	got, err = b.ReadAt(8, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	cases := []struct {
		name   string
		off, n int
	}{
		{"past end", 7, 2},
		{"negative offset", -1, 1},
		{"negative length", 0, -1},
		{"offset beyond size", 9, 0},
		{"overflowing sum", math.MaxInt - 1, 4},
		{"huge length", 1, math.MaxInt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.ReadAt(tc.off, tc.n)
			assert.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)
		})
	}

	err = b.WriteAt(math.MaxInt-1, []byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrOutOfRange))
}
