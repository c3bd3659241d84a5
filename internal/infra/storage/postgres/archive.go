package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// AttemptRepo implements storage.AttemptArchive using PostgreSQL.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a PostgreSQL recovery attempt archive.
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Append records one recovery attempt.
func (r *AttemptRepo) Append(
	ctx context.Context,
	boundaryID string,
	attempt *domain.RecoveryAttempt,
) error {
	query := `
		INSERT INTO recovery_attempts (boundary_id, error_id, strategy, succeeded, user_initiated, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		boundaryID,
		attempt.ErrorID,
		string(attempt.Strategy),
		attempt.Succeeded,
		attempt.UserInitiated,
		attempt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to archive recovery attempt: %w", err)
	}
	return nil
}

// ListRecent returns the most recent attempts, newest first.
func (r *AttemptRepo) ListRecent(ctx context.Context, limit int) ([]*domain.RecoveryAttempt, error) {
	query := `
		SELECT error_id, strategy, succeeded, user_initiated, attempted_at
		FROM recovery_attempts
		ORDER BY attempted_at DESC
		LIMIT $1
	`

	var rows []struct {
		ErrorID       string    `db:"error_id"`
		Strategy      string    `db:"strategy"`
		Succeeded     bool      `db:"succeeded"`
		UserInitiated bool      `db:"user_initiated"`
		AttemptedAt   time.Time `db:"attempted_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recovery attempts: %w", err)
	}

	out := make([]*domain.RecoveryAttempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.RecoveryAttempt{
			ErrorID:       row.ErrorID,
			Strategy:      domain.RecoveryStrategy(row.Strategy),
			Succeeded:     row.Succeeded,
			UserInitiated: row.UserInitiated,
			Timestamp:     row.AttemptedAt,
		})
	}
	return out, nil
}

// OperationRepo implements storage.OperationArchive using PostgreSQL.
type OperationRepo struct {
	db *DB
}

// NewOperationRepo creates a PostgreSQL abandoned operation archive.
func NewOperationRepo(db *DB) *OperationRepo {
	return &OperationRepo{db: db}
}

// Add records one abandoned operation and its final error.
func (r *OperationRepo) Add(ctx context.Context, op *domain.SyncOperation, lastError string) error {
	query := `
		INSERT INTO abandoned_operations (id, op_type, payload, retry_count, last_error, enqueued_at, abandoned_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		op.ID,
		op.Type,
		op.Payload,
		op.RetryCount,
		lastError,
		op.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive abandoned operation: %w", err)
	}
	return nil
}

// List returns abandoned operations, newest first.
func (r *OperationRepo) List(ctx context.Context, limit int) ([]*domain.SyncOperation, error) {
	query := `
		SELECT id, op_type, payload, retry_count, enqueued_at
		FROM abandoned_operations
		ORDER BY abandoned_at DESC
		LIMIT $1
	`

	var rows []struct {
		ID         string    `db:"id"`
		OpType     string    `db:"op_type"`
		Payload    []byte    `db:"payload"`
		RetryCount int       `db:"retry_count"`
		EnqueuedAt time.Time `db:"enqueued_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list abandoned operations: %w", err)
	}

	out := make([]*domain.SyncOperation, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.SyncOperation{
			ID:         row.ID,
			Type:       row.OpType,
			Payload:    row.Payload,
			EnqueuedAt: row.EnqueuedAt,
			RetryCount: row.RetryCount,
			Status:     domain.OperationAbandoned,
		})
	}
	return out, nil
}

// Count returns the number of archived operations.
func (r *OperationRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM abandoned_operations`); err != nil {
		return 0, fmt.Errorf("failed to count abandoned operations: %w", err)
	}
	return count, nil
}
