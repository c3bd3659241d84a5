package syncqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage/memory"
	"github.com/vietddude/sentinel/internal/resilience/backoff"
	"github.com/vietddude/sentinel/internal/resilience/netmon"
	"github.com/vietddude/sentinel/internal/resilience/sched"
)

// =============================================================================
// Mock Executor
// =============================================================================

type mockExecutor struct {
	mu       sync.Mutex
	calls    []string // op types in invocation order
	failWith error    // non-nil: every call fails
	failN    int      // fail the first N calls, then succeed
	block    chan struct{}
}

func (e *mockExecutor) run(ctx context.Context, op *domain.SyncOperation) error {
	e.mu.Lock()
	e.calls = append(e.calls, op.Type)
	n := len(e.calls)
	block := e.block
	e.mu.Unlock()

	if block != nil {
		<-block
	}
	if e.failWith != nil {
		return e.failWith
	}
	if n <= e.failN {
		return errors.New("temporary failure")
	}
	return nil
}

func (e *mockExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *mockExecutor) callOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

func fastBackoff() *backoff.Policy {
	return &backoff.Policy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// =============================================================================
// Drain Tests
// =============================================================================

func TestDrain_FIFOOrder(t *testing.T) {
	exec := &mockExecutor{}
	q := New(exec.run, sched.NewManual(), Config{MaxRetries: 3, Backoff: fastBackoff()})
	defer q.Close()

	q.Enqueue("op-a", nil)
	q.Enqueue("op-b", nil)
	q.Enqueue("op-c", nil)

	results := q.Drain(context.Background())

	order := exec.callOrder()
	if len(order) != 3 || order[0] != "op-a" || order[1] != "op-b" || order[2] != "op-c" {
		t.Fatalf("expected FIFO order [op-a op-b op-c], got %v", order)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Succeeded || r.Abandoned {
			t.Errorf("expected success for %s: %+v", r.OperationID, r)
		}
	}

	stats := q.Stats()
	if stats.Pending != 0 || stats.Succeeded != 3 {
		t.Errorf("unexpected stats after drain: %+v", stats)
	}
}

func TestDrain_ConcurrentCallsJoin(t *testing.T) {
	exec := &mockExecutor{block: make(chan struct{})}
	q := New(exec.run, sched.NewManual(), Config{MaxRetries: 3, Backoff: fastBackoff()})
	defer q.Close()

	q.Enqueue("op-a", nil)

	type drainOut struct{ results []domain.SyncResult }
	first := make(chan drainOut, 1)
	second := make(chan drainOut, 1)

	go func() { first <- drainOut{q.Drain(context.Background())} }()

	// Wait until the first drain is inside the executor
	for exec.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	go func() { second <- drainOut{q.Drain(context.Background())} }()

	time.Sleep(10 * time.Millisecond)
	close(exec.block)

	out1 := <-first
	out2 := <-second

	if exec.callCount() != 1 {
		t.Fatalf("expected the processing loop to run once, executor saw %d calls", exec.callCount())
	}
	if len(out1.results) != 1 || len(out2.results) != 1 {
		t.Fatalf("both callers must observe the result set: %v vs %v", out1.results, out2.results)
	}
	if out1.results[0].OperationID != out2.results[0].OperationID {
		t.Error("joined drain returned a different result set")
	}
}

func TestDrain_RetryCeiling(t *testing.T) {
	ms := sched.NewManual()
	exec := &mockExecutor{failWith: errors.New("connection refused")}

	var abandoned []domain.SyncResult
	q := New(exec.run, ms, Config{MaxRetries: 2, Backoff: fastBackoff()})
	defer q.Close()
	q.Subscribe(func(r domain.SyncResult) {
		if r.Abandoned {
			abandoned = append(abandoned, r)
		}
	})

	q.Enqueue("op-a", nil)
	q.Drain(context.Background())

	// First attempt failed, redrain scheduled
	if exec.callCount() != 1 {
		t.Fatalf("expected 1 attempt after first drain, got %d", exec.callCount())
	}

	ms.Advance(10 * time.Second) // second attempt
	ms.Advance(10 * time.Second) // third attempt: retryCount reaches the ceiling

	// MaxRetries=2 means an initial attempt plus two retries
	if exec.callCount() != 3 {
		t.Fatalf("expected 3 attempts total, got %d", exec.callCount())
	}
	if len(abandoned) != 1 {
		t.Fatalf("expected 1 abandoned result, got %d", len(abandoned))
	}
	if abandoned[0].Attempts != 3 {
		t.Errorf("expected 3 attempts in result, got %d", abandoned[0].Attempts)
	}

	// Never retried again without a fresh enqueue
	ms.Advance(time.Minute)
	q.Drain(context.Background())
	if exec.callCount() != 3 {
		t.Errorf("abandoned operation was retried: %d calls", exec.callCount())
	}

	stats := q.Stats()
	if stats.Pending != 0 || stats.Abandoned != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestDrain_RetryThenSucceed(t *testing.T) {
	ms := sched.NewManual()
	exec := &mockExecutor{failN: 2}
	q := New(exec.run, ms, Config{MaxRetries: 3, Backoff: fastBackoff()})
	defer q.Close()

	q.Enqueue("op-a", nil)
	q.Drain(context.Background())
	ms.Advance(10 * time.Second)
	ms.Advance(10 * time.Second)

	if exec.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", exec.callCount())
	}
	stats := q.Stats()
	if stats.Succeeded != 1 || stats.Pending != 0 || stats.Abandoned != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestDrain_PermanentFailureAbandonsImmediately(t *testing.T) {
	exec := &mockExecutor{failWith: errors.New("invalid payload")}
	q := New(exec.run, sched.NewManual(), Config{MaxRetries: 5, Backoff: fastBackoff()})
	defer q.Close()

	q.Enqueue("op-a", nil)
	results := q.Drain(context.Background())

	if exec.callCount() != 1 {
		t.Fatalf("permanent failure must not be retried, got %d calls", exec.callCount())
	}
	if len(results) != 1 || !results[0].Abandoned {
		t.Fatalf("expected immediate abandon, got %+v", results)
	}
}

func TestDrain_ExecutorPanicContained(t *testing.T) {
	ms := sched.NewManual()
	panicking := func(ctx context.Context, op *domain.SyncOperation) error {
		panic("executor exploded")
	}
	q := New(panicking, ms, Config{MaxRetries: 1, Backoff: fastBackoff()})
	defer q.Close()

	var results []domain.SyncResult
	q.Subscribe(func(r domain.SyncResult) { results = append(results, r) })

	q.Enqueue("op-a", nil)
	q.Drain(context.Background()) // panic caught, treated as a retryable failure
	ms.Advance(10 * time.Second)  // retry hits the ceiling

	if len(results) != 1 || !results[0].Abandoned {
		t.Fatalf("panic should be contained and abandon at the ceiling, got %+v", results)
	}
}

func TestClear_DropsQueuedOnly(t *testing.T) {
	exec := &mockExecutor{}
	q := New(exec.run, sched.NewManual(), Config{MaxRetries: 3, Backoff: fastBackoff()})
	defer q.Close()

	q.Enqueue("op-a", nil)
	q.Enqueue("op-b", nil)

	if dropped := q.Clear(); dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}

	results := q.Drain(context.Background())
	if len(results) != 0 || exec.callCount() != 0 {
		t.Errorf("cleared operations must never execute")
	}
}

// =============================================================================
// Network Trigger Tests
// =============================================================================

func TestAutoDrainOnReconnect(t *testing.T) {
	monitor := netmon.New()
	monitor.SetOnline(false)

	exec := &mockExecutor{}
	q := New(exec.run, sched.NewManual(), Config{MaxRetries: 3, Backoff: fastBackoff()})
	defer q.Close()
	q.AttachMonitor(monitor)

	resultCh := make(chan domain.SyncResult, 3)
	q.Subscribe(func(r domain.SyncResult) { resultCh <- r })

	// Enqueue while offline
	q.Enqueue("op-a", nil)
	q.Enqueue("op-b", nil)
	q.Enqueue("op-c", nil)

	if exec.callCount() != 0 {
		t.Fatal("nothing should run while offline")
	}

	monitor.SetOnline(true)

	for i := 0; i < 3; i++ {
		select {
		case r := <-resultCh:
			if !r.Succeeded {
				t.Errorf("expected success, got %+v", r)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("auto-drain never completed")
		}
	}

	order := exec.callOrder()
	if order[0] != "op-a" || order[1] != "op-b" || order[2] != "op-c" {
		t.Errorf("expected FIFO order, got %v", order)
	}
	if stats := q.Stats(); stats.Pending != 0 {
		t.Errorf("expected 0 pending after auto-drain, got %d", stats.Pending)
	}
}

// =============================================================================
// Archive Tests
// =============================================================================

func TestAbandonedOperationArchived(t *testing.T) {
	store := memory.NewMemoryStorage()
	archive := memory.NewOperationRepo(store)

	exec := &mockExecutor{failWith: errors.New("invalid request")}
	q := New(exec.run, sched.NewManual(), Config{
		MaxRetries: 1,
		Backoff:    fastBackoff(),
		Archive:    archive,
	})
	defer q.Close()

	id := q.Enqueue("op-a", []byte(`{"k":"v"}`))
	q.Drain(context.Background())

	count, err := archive.Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("expected 1 archived operation, got %d (err %v)", count, err)
	}

	archived, err := archive.List(context.Background(), 10)
	if err != nil || len(archived) != 1 {
		t.Fatalf("expected archived operation, got %v (err %v)", archived, err)
	}
	if archived[0].ID != id || archived[0].Status != domain.OperationAbandoned {
		t.Errorf("unexpected archived operation: %+v", archived[0])
	}
}
