package domain

import "time"

// BoundaryStatus is the state of one protected region.
type BoundaryStatus string

const (
	BoundaryHealthy    BoundaryStatus = "healthy"
	BoundaryErrored    BoundaryStatus = "errored"
	BoundaryRecovering BoundaryStatus = "recovering"
	BoundaryExhausted  BoundaryStatus = "exhausted"
)

// BoundaryState is the live state of one protected region.
// CurrentError is non-nil iff Status is errored or recovering.
type BoundaryState struct {
	Status            BoundaryStatus `json:"status"`
	CurrentError      *ErrorRecord   `json:"current_error,omitempty"`
	ManualRetryCount  int            `json:"manual_retry_count"`
	AutoRecoveryCount int            `json:"auto_recovery_count"`
	LastErrorAt       *time.Time     `json:"last_error_at,omitempty"`
}

// BoundarySnapshot is the minimal persisted form of a boundary's state.
// It deliberately excludes the full error record; only the counters and the
// error identity are needed to resume budget accounting after a restart.
type BoundarySnapshot struct {
	HasError          bool   `json:"has_error"`
	ManualRetryCount  int    `json:"manual_retry_count"`
	AutoRecoveryCount int    `json:"auto_recovery_count"`
	ErrorID           string `json:"error_id,omitempty"`
}
