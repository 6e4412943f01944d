package cache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrBuild(t *testing.T) {
	c, err := New[string](2)
	require.NoError(t, err)

	calls := 0
	build := func() (string, error) {
		calls++
		return "graph", nil
	}
	v, err := c.GetOrBuild("fp1", build)
	require.NoError(t, err)
	assert.Equal(t, "graph", v)

	v, err = c.GetOrBuild("fp1", build)
	require.NoError(t, err)
	assert.Equal(t, "graph", v)
	assert.Equal(t, 1, calls)
}

func TestBuildErrorNotCached(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.GetOrBuild("fp", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := c.GetOrBuild("fp", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestConcurrentBuildsCollapse(t *testing.T) {
	c, err := New[int](4)
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	build := func() (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrBuild("fp", build)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestEvictionAndPurge(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)

	c.Add("a", 1)
	c.Add("b", 2)
	_, _ = c.Get("a")
	c.Add("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)

	assert.True(t, c.Evict("a"))
	assert.False(t, c.Evict("a"))
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestDefaultSize(t *testing.T) {
	c, err := New[int](0)
	require.NoError(t, err)
	for i := 0; i < DefaultSize+10; i++ {
		c.Add(strconv.Itoa(i), i)
	}
	assert.Equal(t, DefaultSize, c.Len())
}
