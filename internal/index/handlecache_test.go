package index

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCache_OpensOnce(t *testing.T) {
	c := NewHandleCache()
	var opens atomic.Int32
	open := func() (*Handle, error) {
		opens.Add(1)
		return &Handle{}, nil
	}

	h1, err := c.Get("docs", open)
	require.NoError(t, err)
	h2, err := c.Get("docs", open)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, int32(1), opens.Load())
}

func TestHandleCache_ErrorIsNotCached(t *testing.T) {
	c := NewHandleCache()
	boom := errors.New("boom")

	_, err := c.Get("docs", func() (*Handle, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	h, err := c.Get("docs", func() (*Handle, error) { return &Handle{}, nil })
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestHandleCache_InvalidateForcesReopen(t *testing.T) {
	c := NewHandleCache()
	var opens atomic.Int32
	open := func() (*Handle, error) {
		opens.Add(1)
		return &Handle{}, nil
	}

	_, err := c.Get("docs", open)
	require.NoError(t, err)
	c.Invalidate("docs")
	_, err = c.Get("docs", open)
	require.NoError(t, err)

	assert.Equal(t, int32(2), opens.Load())
	assert.Equal(t, 1, c.Len())
}

// Concurrent readers racing on a cold alias must share one open.
func TestHandleCache_ConcurrentGet(t *testing.T) {
	c := NewHandleCache()
	var opens atomic.Int32
	open := func() (*Handle, error) {
		opens.Add(1)
		return &Handle{}, nil
	}

	var wg sync.WaitGroup
	handles := make([]*Handle, 32)
	for i := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.Get("docs", open)
			assert.NoError(t, err)
			handles[i] = h
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}
