package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("flaky dependency")
		}
		close(done)
		return nil
	}

	queue := NewQueue("reports", handler, Options{Workers: 1, MaxAttempts: 3, RetryBackoff: time.Millisecond})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "job-1", Type: "missing_invoices"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never retried")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestQueueGivesUpAfterMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("always broken")
	}

	queue := NewQueue("reports", handler, Options{Workers: 1, MaxAttempts: 2, RetryBackoff: time.Millisecond})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "job-1", Type: "missing_invoices"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	queue := NewQueue("reports", func(context.Context, Job) error { return nil }, Options{})
	require.Error(t, queue.Enqueue(Job{ID: "job-1"}))
}
