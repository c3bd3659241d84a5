package memory

import (
	"context"
	"sync"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// MemoryStorage backs the storage ports without external infrastructure.
// Used when neither redis nor postgres is configured, and in tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	attempts  []archivedAttempt
	abandoned []archivedOperation
}

type archivedAttempt struct {
	boundaryID string
	attempt    domain.RecoveryAttempt
}

type archivedOperation struct {
	op        domain.SyncOperation
	lastError string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		snapshots: make(map[string][]byte),
	}
}

// -----------------------------------------------------------------------------
// Snapshot store
// -----------------------------------------------------------------------------

type SnapshotRepo struct {
	store *MemoryStorage
}

func NewSnapshotRepo(store *MemoryStorage) *SnapshotRepo {
	return &SnapshotRepo{store: store}
}

func (r *SnapshotRepo) Get(ctx context.Context, key string) ([]byte, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	data, ok := r.store.snapshots[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (r *SnapshotRepo) Set(ctx context.Context, key string, value []byte) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	data := make([]byte, len(value))
	copy(data, value)
	r.store.snapshots[key] = data
	return nil
}

func (r *SnapshotRepo) Remove(ctx context.Context, key string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.snapshots, key)
	return nil
}

// -----------------------------------------------------------------------------
// Attempt archive
// -----------------------------------------------------------------------------

type AttemptRepo struct {
	store *MemoryStorage
}

func NewAttemptRepo(store *MemoryStorage) *AttemptRepo {
	return &AttemptRepo{store: store}
}

func (r *AttemptRepo) Append(
	ctx context.Context,
	boundaryID string,
	attempt *domain.RecoveryAttempt,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.attempts = append(r.store.attempts, archivedAttempt{
		boundaryID: boundaryID,
		attempt:    *attempt,
	})
	return nil
}

func (r *AttemptRepo) ListRecent(ctx context.Context, limit int) ([]*domain.RecoveryAttempt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.RecoveryAttempt
	for i := len(r.store.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		a := r.store.attempts[i].attempt
		out = append(out, &a)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Operation archive
// -----------------------------------------------------------------------------

type OperationRepo struct {
	store *MemoryStorage
}

func NewOperationRepo(store *MemoryStorage) *OperationRepo {
	return &OperationRepo{store: store}
}

func (r *OperationRepo) Add(ctx context.Context, op *domain.SyncOperation, lastError string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.abandoned = append(r.store.abandoned, archivedOperation{
		op:        *op,
		lastError: lastError,
	})
	return nil
}

func (r *OperationRepo) List(ctx context.Context, limit int) ([]*domain.SyncOperation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.SyncOperation
	for i := len(r.store.abandoned) - 1; i >= 0 && len(out) < limit; i-- {
		op := r.store.abandoned[i].op
		out = append(out, &op)
	}
	return out, nil
}

func (r *OperationRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.abandoned), nil
}
