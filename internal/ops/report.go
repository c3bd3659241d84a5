// Package ops provides aggregated status reporting over the resilience core.
package ops

import (
	"context"
	"sync"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage"
	"github.com/vietddude/sentinel/internal/resilience/boundary"
	"github.com/vietddude/sentinel/internal/resilience/netmon"
	"github.com/vietddude/sentinel/internal/resilience/syncqueue"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// BoundaryHealth contains the reported state of one recovery boundary.
type BoundaryHealth struct {
	BoundaryID string               `json:"boundary_id"`
	Status     domain.BoundaryState `json:"state"`
}

// Report contains the full system status report.
type Report struct {
	SystemStatus SystemStatus              `json:"system_status"`
	Network      domain.NetworkStatus      `json:"network"`
	Queue        syncqueue.Stats           `json:"queue"`
	Boundaries   map[string]BoundaryHealth `json:"boundaries"`
}

// Reporter aggregates status from the monitor, queue, and registered
// boundaries.
type Reporter struct {
	mu         sync.RWMutex
	monitor    *netmon.Monitor
	queue      *syncqueue.Queue
	archive    storage.OperationArchive
	boundaries map[string]*boundary.Controller
}

// NewReporter creates a reporter over the given monitor and queue. A non-nil
// archive drives the critical signal from the current abandoned backlog, so
// resolving archived operations clears it; without one the queue's lifetime
// counter is used.
func NewReporter(monitor *netmon.Monitor, queue *syncqueue.Queue, archive storage.OperationArchive) *Reporter {
	return &Reporter{
		monitor:    monitor,
		queue:      queue,
		archive:    archive,
		boundaries: make(map[string]*boundary.Controller),
	}
}

// Track adds a boundary to the report.
func (r *Reporter) Track(c *boundary.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boundaries[c.ID()] = c
}

// Untrack removes a boundary from the report.
func (r *Reporter) Untrack(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boundaries, id)
}

// Check builds the current status report. Worst case wins: any exhausted
// boundary or abandoned backlog is critical; an active fault, a pending
// recovery, or an offline network degrades the system.
func (r *Reporter) Check() Report {
	r.mu.RLock()
	controllers := make([]*boundary.Controller, 0, len(r.boundaries))
	for _, c := range r.boundaries {
		controllers = append(controllers, c)
	}
	r.mu.RUnlock()

	report := Report{
		SystemStatus: StatusHealthy,
		Network:      r.monitor.Status(),
		Queue:        r.queue.Stats(),
		Boundaries:   make(map[string]BoundaryHealth, len(controllers)),
	}

	for _, c := range controllers {
		state := c.State()
		report.Boundaries[c.ID()] = BoundaryHealth{
			BoundaryID: c.ID(),
			Status:     state,
		}

		switch state.Status {
		case domain.BoundaryExhausted:
			report.SystemStatus = StatusCritical
		case domain.BoundaryErrored, domain.BoundaryRecovering:
			if report.SystemStatus != StatusCritical {
				report.SystemStatus = StatusDegraded
			}
		}
	}

	backlog := report.Queue.Abandoned
	if r.archive != nil {
		if n, err := r.archive.Count(context.Background()); err == nil {
			backlog = n
		}
	}
	if backlog > 0 {
		report.SystemStatus = StatusCritical
	}
	if !report.Network.IsOnline && report.SystemStatus == StatusHealthy {
		report.SystemStatus = StatusDegraded
	}

	return report
}
