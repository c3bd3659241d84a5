package storage

import (
	"context"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// SnapshotStore is a durable key-value slot for boundary snapshots. Get
// returns (nil, nil) when the key does not exist.
type SnapshotStore interface {
	// Get retrieves the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the value stored under key.
	Remove(ctx context.Context, key string) error
}

// AttemptArchive persists recovery attempts for operator inspection.
// Implementations are best-effort; callers log and continue on error.
type AttemptArchive interface {
	// Append records one recovery attempt for the given boundary.
	Append(ctx context.Context, boundaryID string, attempt *domain.RecoveryAttempt) error

	// ListRecent returns the most recent attempts, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.RecoveryAttempt, error)
}

// OperationArchive persists abandoned operations so terminal queue failures
// survive the process and can be resubmitted by an operator.
type OperationArchive interface {
	// Add records one abandoned operation and its final error.
	Add(ctx context.Context, op *domain.SyncOperation, lastError string) error

	// List returns abandoned operations, newest first.
	List(ctx context.Context, limit int) ([]*domain.SyncOperation, error)

	// Count returns the number of archived operations.
	Count(ctx context.Context) (int, error)
}
