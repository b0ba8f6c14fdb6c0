package worker

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(arbor.NewLogger(), 4)
	pool.Start()
	defer pool.Stop()

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		err := pool.Submit(Task{ID: strconv.Itoa(i), Run: func(ctx context.Context) {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		}})
		require.NoError(t, err)
	}

	waitOrFail(t, &wg, 5*time.Second)
	assert.Equal(t, int64(100), atomic.LoadInt64(&count))
}

func TestWorkerPool_SubmitDoesNotBlockWhenBusy(t *testing.T) {
	pool := NewWorkerPool(arbor.NewLogger(), 1)
	pool.Start()

	release := make(chan struct{})
	require.NoError(t, pool.Submit(Task{ID: "blocker", Run: func(ctx context.Context) {
		<-release
	}}))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = pool.Submit(Task{ID: strconv.Itoa(i), Run: func(ctx context.Context) {}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked while the only worker was busy")
	}

	close(release)
	pool.Stop()
}

func TestWorkerPool_FIFOWithSingleWorker(t *testing.T) {
	pool := NewWorkerPool(arbor.NewLogger(), 1)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, pool.Submit(Task{ID: strconv.Itoa(i), Run: func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}}))
	}

	// Tasks queued before Start run once workers exist
	pool.Start()
	defer pool.Stop()

	waitOrFail(t, &wg, 5*time.Second)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewWorkerPool(arbor.NewLogger(), 1)
	pool.Start()
	defer pool.Stop()

	require.NoError(t, pool.Submit(Task{ID: "panics", Run: func(ctx context.Context) {
		panic("boom")
	}}))

	ran := make(chan struct{})
	require.NoError(t, pool.Submit(Task{ID: "after", Run: func(ctx context.Context) {
		close(ran)
	}}))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestWorkerPool_StopCancelsAndReturnsPending(t *testing.T) {
	pool := NewWorkerPool(arbor.NewLogger(), 1)
	pool.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, pool.Submit(Task{ID: "long", Run: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}}))
	<-started

	require.NoError(t, pool.Submit(Task{ID: "waiting", Run: func(ctx context.Context) {}}))

	dropped := pool.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("running task was not cancelled")
	}
	require.Len(t, dropped, 1)
	assert.Equal(t, "waiting", dropped[0].ID)

	assert.ErrorIs(t, pool.Submit(Task{ID: "late", Run: func(ctx context.Context) {}}), ErrPoolStopped)
	assert.Nil(t, pool.Stop())
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for tasks")
	}
}
