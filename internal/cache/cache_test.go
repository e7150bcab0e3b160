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

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // a becomes most recent
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should be evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("j", "w")
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUCache_Clear(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	assert.Zero(t, c.Size())
	c.Set("c", 3)
	assert.Equal(t, 1, c.Size())
}

func TestLoader_CachesAndCollapses(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background(), "catalog", load)
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	v, err := l.Get(context.Background(), "catalog", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.LessOrEqual(t, calls.Load(), int32(5))
	before := calls.Load()

	l.Invalidate()
	_, err = l.Get(context.Background(), "catalog", func(context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, calls.Load())
}

func TestLoader_ErrorsNotCached(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	_, err := l.Get(context.Background(), "k", func(context.Context) (int, error) {
		return 0, errors.New("db down")
	})
	require.Error(t, err)

	v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestManager_CleanAll(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Hour)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.CleanAll())

	m.StartCleanup(time.Hour)
	m.Stop()
}
