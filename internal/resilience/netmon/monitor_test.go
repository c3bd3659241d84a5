package netmon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

func TestMonitor_StatusTransitions(t *testing.T) {
	m := New()

	if !m.Status().IsOnline {
		t.Fatal("monitor should start online")
	}

	m.SetOnline(false)
	status := m.Status()
	if status.IsOnline {
		t.Fatal("expected offline after SetOnline(false)")
	}
	if status.LastOfflineAt.IsZero() {
		t.Error("offline transition should stamp LastOfflineAt")
	}

	before := status.LastOnlineAt
	m.SetOnline(true)
	status = m.Status()
	if !status.IsOnline {
		t.Fatal("expected online after SetOnline(true)")
	}
	if !status.LastOnlineAt.After(before) && status.LastOnlineAt != before {
		t.Error("online transition should refresh LastOnlineAt")
	}
}

func TestMonitor_ListenersFireInRegistrationOrder(t *testing.T) {
	m := New()

	var order []string
	m.AddListener(func(s domain.NetworkStatus) { order = append(order, "first") })
	second := m.AddListener(func(s domain.NetworkStatus) { order = append(order, "second") })

	m.SetOnline(false)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected [first second], got %v", order)
	}

	// No event when state does not change
	m.SetOnline(false)
	if len(order) != 2 {
		t.Fatalf("duplicate signal must not notify, got %v", order)
	}

	m.RemoveListener(second)
	m.SetOnline(true)
	if len(order) != 3 || order[2] != "first" {
		t.Fatalf("removed listener still firing: %v", order)
	}
}

func TestMonitor_WaitForConnection(t *testing.T) {
	m := New()

	// Already online: resolves immediately
	if err := m.WaitForConnection(context.Background(), time.Second); err != nil {
		t.Fatalf("expected immediate resolve while online, got %v", err)
	}

	m.SetOnline(false)

	// Released by an online transition
	done := make(chan error, 1)
	go func() {
		done <- m.WaitForConnection(context.Background(), 5*time.Second)
	}()
	time.Sleep(20 * time.Millisecond)
	m.SetOnline(true)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil after reconnect, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never released")
	}
}

func TestMonitor_WaitForConnectionTimeout(t *testing.T) {
	m := New()
	m.SetOnline(false)

	err := m.WaitForConnection(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestMonitor_WaitForConnectionContextCancel(t *testing.T) {
	m := New()
	m.SetOnline(false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := m.WaitForConnection(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
