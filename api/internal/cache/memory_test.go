package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "session", []byte("ok"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))

	v, ok := m.Get(ctx, "session")
	require.True(t, ok)
	assert.Equal(t, []byte("ok"), v)

	now = now.Add(time.Minute)
	_, ok = m.Get(ctx, "session")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "forever")
	assert.True(t, ok)

	m.Delete(ctx, "forever")
	_, ok = m.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestMemorySetSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	for _, k := range []string{"admin:session:a", "admin:session:b"} {
		require.NoError(t, m.Set(ctx, k, []byte("1"), time.Minute))
	}
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))
	assert.Len(t, m.items, 3)

	now = now.Add(2 * time.Minute)
	require.NoError(t, m.Set(ctx, "admin:session:c", []byte("1"), time.Hour))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.items, 2)
	assert.Contains(t, m.items, "forever")
	assert.Contains(t, m.items, "admin:session:c")
}

func TestMemoryTakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "cmd", []byte("clear"), time.Minute))

	var (
		wg   sync.WaitGroup
		hits atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Take(ctx, "cmd"); ok {
				hits.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	src := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", src, 0))
	src[0] = 'z'

	v, _ := m.Get(ctx, "k")
	v[1] = 'z'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}
