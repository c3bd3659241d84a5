package domain

import "time"

// ErrorRecord represents one captured fault from a protected region.
// Records are immutable after creation; a boundary discards its record on reset.
type ErrorRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	Severity    Severity  `json:"severity"`
	ComponentID string    `json:"component_id,omitempty"`
	Retryable   bool      `json:"retryable"`
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)
