package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

func TestSnapshotRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepo(NewMemoryStorage())

	got, err := repo.Get(ctx, "boundary:checkout")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("missing key must return nil, nil")
	}

	if err := repo.Set(ctx, "boundary:checkout", []byte(`{"hasError":true}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = repo.Get(ctx, "boundary:checkout")
	if err != nil || string(got) != `{"hasError":true}` {
		t.Fatalf("get after set: %s, %v", got, err)
	}

	// Returned slice is a copy; mutating it must not corrupt the store
	got[0] = 'X'
	again, _ := repo.Get(ctx, "boundary:checkout")
	if string(again) != `{"hasError":true}` {
		t.Error("stored value shared memory with the caller")
	}

	if err := repo.Remove(ctx, "boundary:checkout"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err = repo.Get(ctx, "boundary:checkout")
	if err != nil || got != nil {
		t.Fatalf("get after remove: %s, %v", got, err)
	}
}

func TestAttemptRepo_ListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptRepo(NewMemoryStorage())

	for _, id := range []string{"e1", "e2", "e3"} {
		err := repo.Append(ctx, "checkout", &domain.RecoveryAttempt{
			ErrorID:   id,
			Strategy:  domain.StrategyAutoRecovery,
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	attempts, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected limit to apply, got %d attempts", len(attempts))
	}
	if attempts[0].ErrorID != "e3" || attempts[1].ErrorID != "e2" {
		t.Errorf("expected newest first, got %s then %s", attempts[0].ErrorID, attempts[1].ErrorID)
	}
}

func TestOperationRepo_AddListCount(t *testing.T) {
	ctx := context.Background()
	repo := NewOperationRepo(NewMemoryStorage())

	for _, id := range []string{"op1", "op2"} {
		err := repo.Add(ctx, &domain.SyncOperation{
			ID:     id,
			Type:   "save_document",
			Status: domain.OperationAbandoned,
		}, "network unreachable")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("count: %d, %v", n, err)
	}

	ops, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ops) != 2 || ops[0].ID != "op2" {
		t.Errorf("expected newest first, got %+v", ops)
	}
}
