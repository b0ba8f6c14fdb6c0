package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
)

// ErrPoolStopped is returned by Submit once Stop has been called
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is one unit of work. Run receives the pool context, which is
// cancelled when the pool stops.
type Task struct {
	ID  string
	Run func(ctx context.Context)
}

// WorkerPool runs tasks on a fixed number of goroutines, taking them from an
// unbounded FIFO so Submit never blocks.
type WorkerPool struct {
	logger     arbor.ILogger
	numWorkers int

	mu      sync.Mutex
	queue   []Task
	stopped bool
	started bool
	notify  chan struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorkerPool(logger arbor.ILogger, numWorkers int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		logger:     logger,
		numWorkers: numWorkers,
		notify:     make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers. Tasks submitted before Start wait in the queue.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	if wp.started || wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.started = true
	wp.mu.Unlock()

	wp.logger.Info().
		Int("num_workers", wp.numWorkers).
		Msg("Starting worker pool")

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit appends a task to the queue
func (wp *WorkerPool) Submit(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %s has no run function", task.ID)
	}

	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return ErrPoolStopped
	}
	wp.queue = append(wp.queue, task)
	wp.mu.Unlock()

	wp.signal()
	return nil
}

// Pending returns the number of tasks waiting for a worker
func (wp *WorkerPool) Pending() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return len(wp.queue)
}

// Stop cancels running tasks, waits for the workers to exit and returns the
// tasks that never started.
func (wp *WorkerPool) Stop() []Task {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return nil
	}
	wp.stopped = true
	wp.mu.Unlock()

	wp.logger.Info().Msg("Stopping worker pool...")
	wp.cancel()
	wp.wg.Wait()

	wp.mu.Lock()
	dropped := wp.queue
	wp.queue = nil
	wp.mu.Unlock()

	wp.logger.Info().
		Int("dropped", len(dropped)).
		Msg("Worker pool stopped")

	return dropped
}

func (wp *WorkerPool) signal() {
	select {
	case wp.notify <- struct{}{}:
	default:
	}
}

// next pops the oldest task. When more remain it re-signals so another idle
// worker wakes up.
func (wp *WorkerPool) next() (Task, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if len(wp.queue) == 0 {
		return Task{}, false
	}

	task := wp.queue[0]
	wp.queue[0] = Task{}
	wp.queue = wp.queue[1:]

	if len(wp.queue) > 0 {
		wp.signal()
	}
	return task, true
}

func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	wp.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker started")

	for {
		if wp.ctx.Err() != nil {
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping")
			return
		}

		task, ok := wp.next()
		if !ok {
			select {
			case <-wp.ctx.Done():
			case <-wp.notify:
			}
			continue
		}

		wp.run(workerID, task)
	}
}

func (wp *WorkerPool) run(workerID int, task Task) {
	defer common.RecoverPanic(wp.logger, "worker task "+task.ID, nil)

	wp.logger.Debug().
		Int("worker_id", workerID).
		Str("task_id", task.ID).
		Msg("Processing task")

	task.Run(wp.ctx)
}
