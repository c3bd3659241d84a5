package netmon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/resilience/metrics"
)

// ErrTimeout is returned by WaitForConnection when the deadline passes while
// still offline. It is the monitor's only error; the monitor itself never
// fails, it only reports reality.
var ErrTimeout = errors.New("netmon: timed out waiting for connection")

// Listener is invoked synchronously on every online/offline transition.
type Listener func(status domain.NetworkStatus)

// Monitor tracks connectivity transitions driven by an external signal
// (SetOnline, typically fed by a probe loop). One writer, many readers.
type Monitor struct {
	mu        sync.RWMutex
	status    domain.NetworkStatus
	listeners []subscription
	nextID    int
	waiters   []chan struct{}
	now       func() time.Time
}

type subscription struct {
	id int
	fn Listener
}

// New creates a monitor that starts online, matching hosts that assume
// connectivity until the first signal says otherwise.
func New() *Monitor {
	m := &Monitor{now: time.Now}
	m.status = domain.NetworkStatus{
		IsOnline:     true,
		LastOnlineAt: m.now(),
	}
	metrics.NetworkOnline.Set(1)
	return m
}

// Status returns a snapshot of current connectivity.
func (m *Monitor) Status() domain.NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetOnline reports the raw connectivity signal. A no-op when the state is
// unchanged; on a transition every listener is invoked synchronously in
// registration order and, when coming online, all waiters are released.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()

	if m.status.IsOnline == online {
		m.mu.Unlock()
		return
	}

	now := m.now()
	m.status.IsOnline = online
	if online {
		m.status.LastOnlineAt = now
		metrics.NetworkOnline.Set(1)
		metrics.NetworkTransitions.WithLabelValues("online").Inc()
	} else {
		m.status.LastOfflineAt = now
		metrics.NetworkOnline.Set(0)
		metrics.NetworkTransitions.WithLabelValues("offline").Inc()
	}

	status := m.status
	listeners := make([]subscription, len(m.listeners))
	copy(listeners, m.listeners)

	var waiters []chan struct{}
	if online {
		waiters = m.waiters
		m.waiters = nil
	}
	m.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, sub := range listeners {
		sub.fn(status)
	}
}

// SetConnection updates connection metadata without emitting a transition.
func (m *Monitor) SetConnection(connectionType, effectiveType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.ConnectionType = connectionType
	m.status.EffectiveType = effectiveType
}

// AddListener registers a transition listener and returns its id.
func (m *Monitor) AddListener(fn Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.listeners = append(m.listeners, subscription{id: m.nextID, fn: fn})
	return m.nextID
}

// RemoveListener unregisters the listener with the given id.
func (m *Monitor) RemoveListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.listeners[:0]
	for _, sub := range m.listeners {
		if sub.id != id {
			remaining = append(remaining, sub)
		}
	}
	m.listeners = remaining
}

// WaitForConnection blocks until the monitor reports online, the timeout
// elapses (ErrTimeout), or ctx is cancelled. Returns immediately when already
// online. A timeout of zero waits on ctx alone.
func (m *Monitor) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	m.mu.Lock()
	if m.status.IsOnline {
		m.mu.Unlock()
		return nil
	}

	waiter := make(chan struct{})
	m.waiters = append(m.waiters, waiter)
	m.mu.Unlock()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-waiter:
		return nil
	case <-timeoutCh:
		m.dropWaiter(waiter)
		return ErrTimeout
	case <-ctx.Done():
		m.dropWaiter(waiter)
		return ctx.Err()
	}
}

func (m *Monitor) dropWaiter(waiter chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if w != waiter {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
}
