package domain

import "time"

// SyncOperation represents one unit of deferred work waiting for connectivity.
type SyncOperation struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    []byte          `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
	Status     OperationStatus `json:"status"`
}

type OperationStatus string

const (
	OperationQueued    OperationStatus = "queued"
	OperationInFlight  OperationStatus = "in_flight"
	OperationSucceeded OperationStatus = "succeeded"
	OperationFailed    OperationStatus = "failed"
	OperationAbandoned OperationStatus = "abandoned"
)

// SyncResult reports the terminal outcome of one queued operation.
type SyncResult struct {
	OperationID string `json:"operation_id"`
	Type        string `json:"type"`
	Succeeded   bool   `json:"succeeded"`
	Abandoned   bool   `json:"abandoned"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}
