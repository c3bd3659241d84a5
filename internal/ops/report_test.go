package ops

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage/memory"
	"github.com/vietddude/sentinel/internal/resilience/boundary"
	"github.com/vietddude/sentinel/internal/resilience/netmon"
	"github.com/vietddude/sentinel/internal/resilience/sched"
	"github.com/vietddude/sentinel/internal/resilience/syncqueue"
)

func newTestReporter() (*Reporter, *netmon.Monitor, *syncqueue.Queue) {
	monitor := netmon.New()
	queue := syncqueue.New(func(ctx context.Context, op *domain.SyncOperation) error {
		return nil
	}, sched.NewManual(), syncqueue.Config{})
	return NewReporter(monitor, queue, nil), monitor, queue
}

func TestCheck_HealthyBaseline(t *testing.T) {
	r, _, _ := newTestReporter()

	report := r.Check()
	if report.SystemStatus != StatusHealthy {
		t.Fatalf("expected healthy, got %s", report.SystemStatus)
	}
	if !report.Network.IsOnline {
		t.Error("monitor starts online")
	}
	if len(report.Boundaries) != 0 {
		t.Errorf("expected no boundaries, got %d", len(report.Boundaries))
	}
}

func TestCheck_OfflineDegrades(t *testing.T) {
	r, monitor, _ := newTestReporter()

	monitor.SetOnline(false)
	if got := r.Check().SystemStatus; got != StatusDegraded {
		t.Fatalf("expected degraded while offline, got %s", got)
	}

	monitor.SetOnline(true)
	if got := r.Check().SystemStatus; got != StatusHealthy {
		t.Fatalf("expected healthy after reconnect, got %s", got)
	}
}

func TestCheck_ErroredBoundaryDegrades(t *testing.T) {
	r, _, _ := newTestReporter()

	c := boundary.NewController("checkout", func(ctx context.Context, rec *domain.ErrorRecord) error {
		return nil
	}, boundary.Options{
		Policy:    boundary.Policy{MinErrorAge: time.Hour},
		Scheduler: sched.NewManual(),
	})
	defer c.Close()
	r.Track(c)

	c.CaptureFault(context.Background(), errors.New("render failed"), "")

	report := r.Check()
	if report.SystemStatus != StatusDegraded {
		t.Fatalf("expected degraded with an errored boundary, got %s", report.SystemStatus)
	}
	health, ok := report.Boundaries["checkout"]
	if !ok {
		t.Fatal("tracked boundary missing from report")
	}
	if health.Status.Status != domain.BoundaryErrored {
		t.Errorf("expected errored boundary state, got %s", health.Status.Status)
	}

	r.Untrack("checkout")
	if got := r.Check().SystemStatus; got != StatusHealthy {
		t.Fatalf("expected healthy after untrack, got %s", got)
	}
}

func TestCheck_AbandonedBacklogIsCritical(t *testing.T) {
	monitor := netmon.New()
	ms := sched.NewManual()
	queue := syncqueue.New(func(ctx context.Context, op *domain.SyncOperation) error {
		return errors.New("invalid payload")
	}, ms, syncqueue.Config{MaxRetries: 1})
	r := NewReporter(monitor, queue, nil)

	queue.Enqueue("save_document", nil)
	queue.Drain(context.Background())

	report := r.Check()
	if report.Queue.Abandoned != 1 {
		t.Fatalf("expected 1 abandoned operation, got %d", report.Queue.Abandoned)
	}
	if report.SystemStatus != StatusCritical {
		t.Fatalf("expected critical with abandoned backlog, got %s", report.SystemStatus)
	}
}

func TestCheck_ArchiveBacklogDrivesCritical(t *testing.T) {
	monitor := netmon.New()
	archive := memory.NewOperationRepo(memory.NewMemoryStorage())
	queue := syncqueue.New(func(ctx context.Context, op *domain.SyncOperation) error {
		return errors.New("invalid payload")
	}, sched.NewManual(), syncqueue.Config{MaxRetries: 1, Archive: archive})

	queue.Enqueue("save_document", nil)
	queue.Drain(context.Background())

	r := NewReporter(monitor, queue, archive)
	if got := r.Check().SystemStatus; got != StatusCritical {
		t.Fatalf("expected critical with archived backlog, got %s", got)
	}

	// With the backlog resolved the lifetime counter alone must not pin the
	// system at critical
	resolved := NewReporter(monitor, queue, memory.NewOperationRepo(memory.NewMemoryStorage()))
	if got := resolved.Check().SystemStatus; got != StatusHealthy {
		t.Fatalf("expected healthy once the backlog is cleared, got %s", got)
	}
}
