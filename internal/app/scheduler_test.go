package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type digestFunc func(ctx context.Context) (int, error)

func (f digestFunc) NotifyPendingDigest(ctx context.Context) (int, error) {
	return f(ctx)
}

func TestScheduler_SendsDigest(t *testing.T) {
	sent := make(chan int, 10)
	digest := digestFunc(func(context.Context) (int, error) { return 2, nil })

	s := NewScheduler(digest, 10*time.Millisecond, func(n int) { sent <- n }, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop()

	select {
	case n := <-sent:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("digest was not sent")
	}
}

func TestScheduler_ErrorSkipsCallback(t *testing.T) {
	var calls, callbacks atomic.Int32
	digest := digestFunc(func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("db is down")
	})

	s := NewScheduler(digest, 5*time.Millisecond, func(int) { callbacks.Add(1) }, zap.NewNop())
	s.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Zero(t, callbacks.Load())
}

func TestScheduler_Disabled(t *testing.T) {
	digest := digestFunc(func(context.Context) (int, error) {
		t.Error("digest must not run")
		return 0, nil
	})

	s := NewScheduler(digest, 0, nil, zap.NewNop())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	digest := digestFunc(func(context.Context) (int, error) { return 0, nil })

	s := NewScheduler(digest, time.Hour, nil, zap.NewNop())
	s.Start(ctx)
	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
	s.Stop()
}
