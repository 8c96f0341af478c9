package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCompute_MissThenHit(t *testing.T) {
	c := New()
	var calls int32

	build := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	v, hit, err := c.GetOrCompute(context.Background(), "k", time.Minute, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "value", v)

	v, hit, err = c.GetOrCompute(context.Background(), "k", time.Minute, build)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "value", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "builder must only run once")
}

func TestGetOrCompute_SingleFlightDedupesConcurrentCallers(t *testing.T) {
	c := New()
	var calls int32
	release := make(chan struct{})

	build := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), "shared", time.Minute, build)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond) // let goroutines pile up behind build
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "only one caller should actually invoke build")
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}

func TestGetOrCompute_FailureNotCached(t *testing.T) {
	c := New()
	var calls int32
	boom := errors.New("boom")

	build := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return nil, boom
		}
		return "recovered", nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, build)
	require.ErrorIs(t, err, boom)

	v, hit, err := c.GetOrCompute(context.Background(), "k", time.Minute, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "recovered", v)
}

func TestGetOrCompute_LazyTTLEviction(t *testing.T) {
	c := New()
	var calls int32

	build := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "k", 10*time.Millisecond, build)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, hit, err := c.GetOrCompute(context.Background(), "k", 10*time.Millisecond, build)
	require.NoError(t, err)
	assert.False(t, hit, "expired entry must be treated as a miss")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	c := New()
	_, _, err := c.GetOrCompute(context.Background(), "k", time.Millisecond, func(ctx context.Context) (any, error) {
		return "v", nil
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	c.sweep()
	assert.Equal(t, 0, c.Len())
}
