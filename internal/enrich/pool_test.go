// SPDX-License-Identifier: MIT
package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// slowResearcher blocks until released so tests can fill the queue.
type slowResearcher struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (s *slowResearcher) Summarize(ctx context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case <-s.release:
		return "summary", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *slowResearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPool(t *testing.T, researcher Researcher, workers, queue int) (*Pool, *fakeHistory) {
	t.Helper()
	history := &fakeHistory{}
	p := NewPipeline(testOptions(), researcher, &fakeWriter{}, history, nil, nil)
	pool := NewPool(p, workers, queue)
	return pool, history
}

func TestPoolDrainsJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	researcher := &fakeResearcher{summary: "ok"}
	pool, history := newTestPool(t, researcher, 2, 8)
	pool.Start()

	for i := 0; i < 5; i++ {
		job := Job{ID: "job-" + string(rune('a'+i)), Payload: payloadFor(t, fullPayload)}
		require.NoError(t, pool.Enqueue(job))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))

	history.mu.Lock()
	defer history.mu.Unlock()
	assert.Len(t, history.recs, 5)
}

func TestPoolDrainsQueuedJobsDuringShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	researcher := &slowResearcher{release: make(chan struct{})}
	pool, history := newTestPool(t, researcher, 1, 4)
	pool.Start()

	for i := 0; i < 4; i++ {
		job := Job{ID: "job-" + string(rune('a'+i)), Payload: payloadFor(t, fullPayload)}
		require.NoError(t, pool.Enqueue(job))
	}
	require.Eventually(t, func() bool { return researcher.callCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	// unblock the researcher once the drain is underway
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(researcher.release)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))

	// every queued job must complete, none may be aborted by the shutdown
	history.mu.Lock()
	defer history.mu.Unlock()
	require.Len(t, history.recs, 4)
	for _, rec := range history.recs {
		assert.Equal(t, "success", rec.Status)
		assert.Empty(t, rec.Error)
	}
}

func TestPoolShedsOnFullQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	researcher := &slowResearcher{release: make(chan struct{})}
	pool, _ := newTestPool(t, researcher, 1, 1)
	pool.Start()

	// first job occupies the worker, second fills the queue
	require.NoError(t, pool.Enqueue(Job{ID: "j1", Payload: payloadFor(t, fullPayload)}))

	// wait until the worker picked up j1 so the queue slot frees up
	require.Eventually(t, func() bool { return researcher.callCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, pool.Enqueue(Job{ID: "j2", Payload: payloadFor(t, fullPayload)}))

	err := pool.Enqueue(Job{ID: "j3", Payload: payloadFor(t, fullPayload)})
	require.True(t, errors.Is(err, ErrQueueFull))

	close(researcher.release)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool, _ := newTestPool(t, &fakeResearcher{summary: "ok"}, 1, 4)
	pool.Start()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))

	err := pool.Enqueue(Job{ID: "late", Payload: payloadFor(t, fullPayload)})
	require.True(t, errors.Is(err, ErrPoolClosed))
}

func TestPoolShutdownDeadline(t *testing.T) {
	researcher := &slowResearcher{release: make(chan struct{})}
	pool, _ := newTestPool(t, researcher, 1, 4)
	pool.Start()

	require.NoError(t, pool.Enqueue(Job{ID: "stuck", Payload: payloadFor(t, fullPayload)}))
	require.Eventually(t, func() bool { return researcher.callCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shutdownCancel()
	err := pool.Shutdown(shutdownCtx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	// release so the worker finishes and the goroutine drains
	close(researcher.release)
	finalCtx, finalCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer finalCancel()
	_ = pool.Shutdown(finalCtx)
}
