package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by TryEnqueue when the buffer has no free slot.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueClosed is returned when a queue has not started or is shutting down.
	ErrQueueClosed = errors.New("queue closed")
)

// Task is one unit of background work carrying a typed payload.
type Task[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task. A non-nil error schedules a retry.
type Handler[T any] func(context.Context, Task[T]) error

// QueueConfig configures the worker pool. Retries back off exponentially from RetryDelay
// up to MaxRetryDelay.
type QueueConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	DrainTimeout  time.Duration
	Logger        *zap.Logger
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * 64
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = 30 * c.RetryDelay
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Queue dispatches tasks to a fixed set of goroutines. On Stop, tasks still buffered are
// handled once more within DrainTimeout; pending retries are abandoned.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     QueueConfig
	log     *zap.SugaredLogger

	tasks chan Task[T]

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewQueue builds a queue that is idle until Start.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	cfg = cfg.withDefaults()
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		tasks:   make(chan Task[T], cfg.BufferSize),
	}
}

// Start launches the workers. Calls after the first are ignored.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.log.Infow("queue started", "workers", q.cfg.Workers)
}

// Stop refuses new tasks, drains the buffer and waits for the workers.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Infow("queue stopped", "dropped", len(q.tasks))
}

// Pending reports the number of buffered tasks.
func (q *Queue[T]) Pending() int {
	return len(q.tasks)
}

// Enqueue adds a task, blocking while the buffer is full.
func (q *Queue[T]) Enqueue(task Task[T]) error {
	ctx, err := q.live()
	if err != nil {
		return err
	}
	stamp(&task)
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueClosed)
	case q.tasks <- task:
		return nil
	}
}

// TryEnqueue adds a task without blocking.
func (q *Queue[T]) TryEnqueue(task Task[T]) error {
	if _, err := q.live(); err != nil {
		return err
	}
	stamp(&task)
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

func stamp[T any](task *Task[T]) {
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}
}

func (q *Queue[T]) live() (context.Context, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return nil, fmt.Errorf("queue %s: %w", q.name, ErrQueueClosed)
	}
	return q.ctx, nil
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case task := <-q.tasks:
			if err := q.handler(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue[T]) drain() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(q.ctx), q.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.handler(ctx, task); err != nil {
				q.log.Warnw("task failed during drain", "task_id", task.ID, "error", err)
			}
		default:
			return
		}
	}
}

// backoff doubles RetryDelay per attempt, capped at MaxRetryDelay.
func (q *Queue[T]) backoff(attempt int) time.Duration {
	d := q.cfg.RetryDelay
	for i := 1; i < attempt && d < q.cfg.MaxRetryDelay; i++ {
		d *= 2
	}
	if d > q.cfg.MaxRetryDelay {
		d = q.cfg.MaxRetryDelay
	}
	return d
}

func (q *Queue[T]) retry(task Task[T], err error) {
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.log.Errorw("task exceeded retries", "task_id", task.ID, "attempts", task.Attempt, "error", err)
		return
	}
	delay := q.backoff(task.Attempt)
	q.log.Warnw("task failed, retrying", "task_id", task.ID, "attempt", task.Attempt, "delay", delay, "error", err)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(task); err != nil {
				q.log.Errorw("requeue failed", "task_id", task.ID, "error", err)
			}
		}
	}()
}
