package service

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

func TestLanes_SerializesPerSession(t *testing.T) {
	l := NewLanes(8, 128)
	defer l.Stop()

	var running, maxRunning atomic.Int32
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := l.Do(context.Background(), "s", func(context.Context) error {
				n := running.Add(1)
				if n > maxRunning.Load() {
					maxRunning.Store(n)
				}
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Len(t, order, 50)
}

func TestLanes_SessionsRunInParallel(t *testing.T) {
	l := NewLanes(2, 8)
	defer l.Stop()

	release := make(chan struct{})
	started := make(chan string, 2)
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = l.Do(context.Background(), id, func(context.Context) error {
				started <- id
				<-release
				return nil
			})
		}(id)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("sessions did not run concurrently")
		}
	}
	close(release)
	wg.Wait()
}

func TestLanes_ReturnsError(t *testing.T) {
	l := NewLanes(1, 8)
	defer l.Stop()

	want := errors.New("boom")
	err := l.Do(context.Background(), "s", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	err = l.Do(context.Background(), "s", func(context.Context) error { panic("bad") })
	assert.ErrorContains(t, err, "panicked")
}

func TestLanes_Full(t *testing.T) {
	l := NewLanes(1, 1)
	defer l.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), "s", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	go func() { _ = l.Do(context.Background(), "s", func(context.Context) error { return nil }) }()
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		ln := l.lanes["s"]
		return ln != nil && ln.pending == 2
	}, time.Second, 5*time.Millisecond)

	err := l.Do(context.Background(), "s", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLaneFull)
	close(release)
}

func TestLanes_Stop(t *testing.T) {
	l := NewLanes(1, 8)
	require.NoError(t, l.Do(context.Background(), "s", func(context.Context) error { return nil }))
	l.Stop()

	err := l.Do(context.Background(), "s", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLanesStopped)
	assert.True(t, l.WaitIdle(time.Second))
}

func TestLanes_CallerContext(t *testing.T) {
	l := NewLanes(1, 8)
	defer l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Do(ctx, "s", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
