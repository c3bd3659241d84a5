package syncqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage"
	"github.com/vietddude/sentinel/internal/resilience/backoff"
	"github.com/vietddude/sentinel/internal/resilience/metrics"
	"github.com/vietddude/sentinel/internal/resilience/netmon"
	"github.com/vietddude/sentinel/internal/resilience/sched"
)

// Executor performs one deferred operation. The queue treats the transport as
// opaque; a non-nil error (or a panic) marks the attempt failed.
type Executor func(ctx context.Context, op *domain.SyncOperation) error

// Listener receives terminal per-operation results (succeeded or abandoned).
type Listener func(result domain.SyncResult)

// Config defines queue retry behavior.
type Config struct {
	MaxRetries int
	Backoff    *backoff.Policy
	Classifier backoff.Classifier
	Archive    storage.OperationArchive
	Logger     *slog.Logger
}

// Stats summarizes the queue's current and lifetime counts.
type Stats struct {
	Pending   int `json:"pending"`
	InFlight  int `json:"in_flight"`
	Enqueued  int `json:"enqueued"`
	Succeeded int `json:"succeeded"`
	Abandoned int `json:"abandoned"`
}

// Queue holds operations that must run once connectivity is restored. It
// drains strictly FIFO, one operation at a time, retrying failures with
// backoff up to MaxRetries before abandoning them. The active set is owned
// exclusively by the queue.
type Queue struct {
	mu        sync.Mutex
	cfg       Config
	executor  Executor
	scheduler sched.Scheduler
	log       *slog.Logger

	ops     []*domain.SyncOperation
	current *drainRun
	redrain sched.Handle

	listeners []subscription
	nextSubID int

	monitor   *netmon.Monitor
	monitorID int

	enqueued  int
	succeeded int
	abandoned int
	closed    bool
}

type subscription struct {
	id int
	fn Listener
}

type drainRun struct {
	done    chan struct{}
	results []domain.SyncResult
}

// New creates a queue. A nil scheduler falls back to real timers.
func New(executor Executor, scheduler sched.Scheduler, cfg Config) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.Default()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = backoff.DefaultClassifier()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if scheduler == nil {
		scheduler = sched.NewTimer()
	}

	return &Queue{
		cfg:       cfg,
		executor:  executor,
		scheduler: scheduler,
		log:       cfg.Logger.With("component", "syncqueue"),
	}
}

// AttachMonitor subscribes the queue to connectivity transitions; every
// offline-to-online transition triggers a drain.
func (q *Queue) AttachMonitor(m *netmon.Monitor) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.monitor != nil || q.closed {
		return
	}
	q.monitor = m
	q.monitorID = m.AddListener(func(status domain.NetworkStatus) {
		if status.IsOnline {
			go q.Drain(context.Background())
		}
	})
}

// Enqueue appends a new operation and returns its id. Always succeeds.
func (q *Queue) Enqueue(opType string, payload []byte) string {
	op := &domain.SyncOperation{
		ID:         uuid.New().String(),
		Type:       opType,
		Payload:    payload,
		EnqueuedAt: time.Now(),
		RetryCount: 0,
		Status:     domain.OperationQueued,
	}

	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.enqueued++
	pending := q.countLocked(domain.OperationQueued)
	q.mu.Unlock()

	metrics.QueuePending.Set(float64(pending))
	q.log.Debug("Operation enqueued", "id", op.ID, "type", opType)
	return op.ID
}

// Drain processes all queued operations in FIFO order, one at a time, and
// returns the terminal results produced by this pass. If a drain is already
// in progress the call joins it and returns that pass's results instead;
// two drains never run simultaneously.
func (q *Queue) Drain(ctx context.Context) []domain.SyncResult {
	q.mu.Lock()
	if q.current != nil {
		run := q.current
		q.mu.Unlock()
		<-run.done
		return run.results
	}
	run := &drainRun{done: make(chan struct{})}
	q.current = run
	if q.redrain != nil {
		q.redrain.Cancel()
		q.redrain = nil
	}
	q.mu.Unlock()

	metrics.QueueDrains.Inc()
	q.drainLoop(ctx, run)

	q.mu.Lock()
	q.current = nil
	pending := q.countLocked(domain.OperationQueued)
	q.mu.Unlock()

	metrics.QueuePending.Set(float64(pending))
	close(run.done)
	return run.results
}

func (q *Queue) drainLoop(ctx context.Context, run *drainRun) {
	touched := make(map[string]bool)

	for {
		if ctx.Err() != nil {
			return
		}

		q.mu.Lock()
		op := q.nextQueuedLocked(touched)
		if op == nil {
			q.mu.Unlock()
			return
		}
		touched[op.ID] = true
		op.Status = domain.OperationInFlight
		q.mu.Unlock()

		err := q.execute(ctx, op)
		if err == nil {
			q.complete(run, op)
			continue
		}

		permanent := q.cfg.Classifier(err) == backoff.CategoryPermanent
		q.mu.Lock()
		if !permanent && op.RetryCount < q.cfg.MaxRetries {
			op.RetryCount++
			op.Status = domain.OperationQueued
			delay := q.cfg.Backoff.Delay(op.RetryCount)
			q.scheduleRedrainLocked(delay)
			q.mu.Unlock()

			q.log.Warn("Operation failed, requeued",
				"id", op.ID, "type", op.Type, "retry_count", op.RetryCount, "error", err)
			metrics.QueueOperations.WithLabelValues(op.Type, "requeued").Inc()
			continue
		}
		q.mu.Unlock()

		q.abandon(ctx, run, op, err)
	}
}

// nextQueuedLocked returns the oldest queued operation not yet handled in
// this pass. FIFO order follows the enqueue order of the active set.
func (q *Queue) nextQueuedLocked(touched map[string]bool) *domain.SyncOperation {
	for _, op := range q.ops {
		if op.Status == domain.OperationQueued && !touched[op.ID] {
			return op
		}
	}
	return nil
}

func (q *Queue) execute(ctx context.Context, op *domain.SyncOperation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	// The executor gets a copy; queue-owned records are never handed out.
	snapshot := *op
	return q.executor(ctx, &snapshot)
}

func (q *Queue) complete(run *drainRun, op *domain.SyncOperation) {
	q.mu.Lock()
	op.Status = domain.OperationSucceeded
	q.removeLocked(op.ID)
	q.succeeded++
	q.mu.Unlock()

	result := domain.SyncResult{
		OperationID: op.ID,
		Type:        op.Type,
		Succeeded:   true,
		Attempts:    op.RetryCount + 1,
	}
	run.results = append(run.results, result)

	metrics.QueueOperations.WithLabelValues(op.Type, "succeeded").Inc()
	q.log.Debug("Operation succeeded", "id", op.ID, "attempts", result.Attempts)
	q.notify(result)
}

func (q *Queue) abandon(ctx context.Context, run *drainRun, op *domain.SyncOperation, cause error) {
	q.mu.Lock()
	op.Status = domain.OperationAbandoned
	q.removeLocked(op.ID)
	q.abandoned++
	archive := q.cfg.Archive
	q.mu.Unlock()

	result := domain.SyncResult{
		OperationID: op.ID,
		Type:        op.Type,
		Succeeded:   false,
		Abandoned:   true,
		Attempts:    op.RetryCount + 1,
		Error:       cause.Error(),
	}
	run.results = append(run.results, result)

	metrics.QueueOperations.WithLabelValues(op.Type, "abandoned").Inc()
	q.log.Error("Operation abandoned",
		"id", op.ID, "type", op.Type, "attempts", result.Attempts, "error", cause)

	if archive != nil {
		if err := archive.Add(ctx, op, cause.Error()); err != nil {
			q.log.Warn("Failed to archive abandoned operation", "id", op.ID, "error", err)
		}
	}
	q.notify(result)
}

func (q *Queue) scheduleRedrainLocked(delay time.Duration) {
	if q.redrain != nil || q.closed {
		return
	}
	q.redrain = q.scheduler.Schedule(delay, func() {
		q.mu.Lock()
		q.redrain = nil
		closed := q.closed
		q.mu.Unlock()
		if !closed {
			q.Drain(context.Background())
		}
	})
}

// Clear discards all queued operations without executing them. An operation
// already handed to the executor is unaffected. Returns the number dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()

	dropped := 0
	remaining := q.ops[:0]
	for _, op := range q.ops {
		if op.Status == domain.OperationQueued {
			dropped++
			continue
		}
		remaining = append(remaining, op)
	}
	q.ops = remaining

	if q.redrain != nil {
		q.redrain.Cancel()
		q.redrain = nil
	}
	pending := q.countLocked(domain.OperationQueued)
	q.mu.Unlock()

	metrics.QueuePending.Set(float64(pending))
	if dropped > 0 {
		q.log.Info("Queue cleared", "dropped", dropped)
	}
	return dropped
}

// Stats returns the queue's current and lifetime counts.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Pending:   q.countLocked(domain.OperationQueued),
		InFlight:  q.countLocked(domain.OperationInFlight),
		Enqueued:  q.enqueued,
		Succeeded: q.succeeded,
		Abandoned: q.abandoned,
	}
}

// Subscribe registers a result listener and returns its unsubscribe func.
func (q *Queue) Subscribe(fn Listener) func() {
	q.mu.Lock()
	q.nextSubID++
	id := q.nextSubID
	q.listeners = append(q.listeners, subscription{id: id, fn: fn})
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		remaining := q.listeners[:0]
		for _, sub := range q.listeners {
			if sub.id != id {
				remaining = append(remaining, sub)
			}
		}
		q.listeners = remaining
	}
}

func (q *Queue) notify(result domain.SyncResult) {
	q.mu.Lock()
	listeners := make([]subscription, len(q.listeners))
	copy(listeners, q.listeners)
	q.mu.Unlock()

	for _, sub := range listeners {
		sub.fn(result)
	}
}

// Close cancels pending timers and detaches from the network monitor.
// In-flight executor calls are not aborted.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.redrain != nil {
		q.redrain.Cancel()
		q.redrain = nil
	}
	monitor := q.monitor
	monitorID := q.monitorID
	q.monitor = nil
	q.mu.Unlock()

	if monitor != nil {
		monitor.RemoveListener(monitorID)
	}
}

func (q *Queue) countLocked(status domain.OperationStatus) int {
	count := 0
	for _, op := range q.ops {
		if op.Status == status {
			count++
		}
	}
	return count
}

func (q *Queue) removeLocked(id string) {
	remaining := q.ops[:0]
	for _, op := range q.ops {
		if op.ID != id {
			remaining = append(remaining, op)
		}
	}
	q.ops = remaining
}
