package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory() (*Memory, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(0)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemory()
	defer c.Stop()

	_, found, err := c.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, 1, 2, true, time.Minute))
	require.NoError(t, c.Set(ctx, 1, 3, false, time.Minute))

	allowed, found, err := c.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, allowed)

	allowed, found, err = c.Get(ctx, 1, 3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, allowed)
}

func TestMemory_Expiration(t *testing.T) {
	ctx := context.Background()
	c, now := newTestMemory()
	defer c.Stop()

	require.NoError(t, c.Set(ctx, 1, 2, true, time.Minute))

	*now = now.Add(59 * time.Second)
	_, found, _ := c.Get(ctx, 1, 2)
	assert.True(t, found)

	*now = now.Add(time.Second)
	_, found, _ = c.Get(ctx, 1, 2)
	assert.False(t, found)
	assert.Equal(t, 1, c.Size())

	c.removeExpired()
	assert.Equal(t, 0, c.Size())
}

func TestMemory_NonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemory()
	defer c.Stop()

	require.NoError(t, c.Set(ctx, 1, 2, true, 0))
	require.NoError(t, c.Set(ctx, 1, 2, true, -time.Second))
	assert.Equal(t, 0, c.Size())
}

func TestMemory_Invalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemory()
	defer c.Stop()

	require.NoError(t, c.Set(ctx, 1, 2, true, time.Minute))
	require.NoError(t, c.Set(ctx, 1, 3, true, time.Minute))
	require.NoError(t, c.Set(ctx, 4, 2, true, time.Minute))

	require.NoError(t, c.Invalidate(ctx, 1, 2, 3))

	_, found, _ := c.Get(ctx, 1, 2)
	assert.False(t, found)
	_, found, _ = c.Get(ctx, 1, 3)
	assert.False(t, found)
	_, found, _ = c.Get(ctx, 4, 2)
	assert.True(t, found)

	require.NoError(t, c.Invalidate(ctx, 9))
}

func TestMemory_StopIsIdempotent(t *testing.T) {
	c := NewMemory(time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestKey(t *testing.T) {
	assert.Equal(t, "access:decision:10:20", Key(10, 20))
}
