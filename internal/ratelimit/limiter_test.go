package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter() (*Limiter, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(10, time.Minute, 5, time.Hour)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_Burst(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("7"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow("7"))

	// другой ключ не делит квоту
	assert.True(t, l.Allow("8"))
}

func TestAllow_Refill(t *testing.T) {
	l, now := newTestLimiter()

	for i := 0; i < 5; i++ {
		l.Allow("7")
	}
	assert.False(t, l.Allow("7"))

	*now = now.Add(6 * time.Second)
	assert.True(t, l.Allow("7"))
	assert.False(t, l.Allow("7"))
}

func TestAllow_ForgetsIdleKeys(t *testing.T) {
	l, now := newTestLimiter()

	l.Allow("7")
	l.Allow("8")
	assert.Len(t, l.visitors, 2)

	*now = now.Add(2 * time.Hour)
	l.Allow("9")
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "9")
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0, 0, 0)

	assert.Equal(t, 1, l.burst)
	assert.Equal(t, 10*time.Minute, l.ttl)
	assert.True(t, l.Allow("1"))
	assert.False(t, l.Allow("1"))
}
