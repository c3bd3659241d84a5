package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage"
	"github.com/vietddude/sentinel/internal/resilience/backoff"
	"github.com/vietddude/sentinel/internal/resilience/metrics"
	"github.com/vietddude/sentinel/internal/resilience/sched"
	"github.com/vietddude/sentinel/internal/resilience/tracker"
)

var (
	// ErrRetryBudgetExhausted is returned when the manual retry budget is spent.
	ErrRetryBudgetExhausted = errors.New("manual retry budget exhausted")

	// ErrNoActiveFault is returned when a retry is requested without a fault.
	ErrNoActiveFault = errors.New("no active fault")

	// ErrRecoveryInProgress is returned when a retry is requested while a
	// recovery attempt is already pending.
	ErrRecoveryInProgress = errors.New("recovery already in progress")
)

// Strategy attempts to resolve a captured fault. A nil error means the fault
// is resolved. Errors and panics are contained by the controller.
type Strategy func(ctx context.Context, rec *domain.ErrorRecord) error

// FaultClassifier derives severity and retryability for a captured fault.
type FaultClassifier func(err error) (domain.Severity, bool)

// Policy holds the recovery eligibility parameters. The defaults are
// product-tuned, not derived; keep them configurable.
type Policy struct {
	MaxAutoRecovery  int
	MaxManualRetries int
	MinErrorAge      time.Duration
	RecoveryWindow   time.Duration
}

// DefaultPolicy returns the standard recovery budgets.
func DefaultPolicy() Policy {
	return Policy{
		MaxAutoRecovery:  2,
		MaxManualRetries: 3,
		MinErrorAge:      5 * time.Second,
		RecoveryWindow:   5 * time.Minute,
	}
}

// TransitionListener receives state transition events for telemetry.
type TransitionListener func(t Transition)

// Options configures a Controller. Zero-value fields get defaults.
type Options struct {
	Policy     Policy
	Backoff    *backoff.Policy
	Tracker    *tracker.Tracker
	Registry   *Registry
	Snapshots  storage.SnapshotStore
	Archive    storage.AttemptArchive
	Scheduler  sched.Scheduler
	Classifier FaultClassifier
	Logger     *slog.Logger
}

// Controller is the state machine of one protected region. Transitions are
// strictly sequential per instance; faults captured while recovering coalesce
// into the existing error instead of spawning a parallel recovery.
type Controller struct {
	id       string
	strategy Strategy
	policy   Policy
	retryoff *backoff.Policy

	mu          sync.Mutex
	state       domain.BoundaryState
	lastErrorID string
	generation  int
	autoCheck   sched.Handle
	closed      bool

	tracker    *tracker.Tracker
	registry   *Registry
	snapshots  storage.SnapshotStore
	archive    storage.AttemptArchive
	scheduler  sched.Scheduler
	classifier FaultClassifier
	now        func() time.Time
	log        *slog.Logger

	listeners []transitionSub
	nextSubID int
}

type transitionSub struct {
	id int
	fn TransitionListener
}

// NewController creates a controller in the Healthy state, or restores the
// persisted broken state when a snapshot exists for this boundary identity.
func NewController(id string, strategy Strategy, opts Options) *Controller {
	if opts.Policy.MaxAutoRecovery <= 0 {
		opts.Policy.MaxAutoRecovery = DefaultPolicy().MaxAutoRecovery
	}
	if opts.Policy.MaxManualRetries <= 0 {
		opts.Policy.MaxManualRetries = DefaultPolicy().MaxManualRetries
	}
	if opts.Policy.MinErrorAge <= 0 {
		opts.Policy.MinErrorAge = DefaultPolicy().MinErrorAge
	}
	if opts.Policy.RecoveryWindow <= 0 {
		opts.Policy.RecoveryWindow = DefaultPolicy().RecoveryWindow
	}
	if opts.Backoff == nil {
		opts.Backoff = backoff.Default()
	}
	if opts.Tracker == nil {
		opts.Tracker = tracker.New(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(opts.Logger)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = sched.NewTimer()
	}
	if opts.Classifier == nil {
		opts.Classifier = func(err error) (domain.Severity, bool) {
			return domain.SeverityMedium, true
		}
	}

	c := &Controller{
		id:         id,
		strategy:   strategy,
		policy:     opts.Policy,
		retryoff:   opts.Backoff,
		state:      domain.BoundaryState{Status: domain.BoundaryHealthy},
		tracker:    opts.Tracker,
		registry:   opts.Registry,
		snapshots:  opts.Snapshots,
		archive:    opts.Archive,
		scheduler:  opts.Scheduler,
		classifier: opts.Classifier,
		now:        time.Now,
		log:        opts.Logger.With("boundary", id),
	}

	c.restore()
	return c
}

func (c *Controller) snapshotKey() string {
	return "boundary:" + c.id
}

// restore loads the persisted snapshot, if any, and resumes the broken state.
func (c *Controller) restore() {
	if c.snapshots == nil {
		return
	}

	data, err := c.snapshots.Get(context.Background(), c.snapshotKey())
	if err != nil {
		c.log.Warn("Failed to load boundary snapshot", "error", err)
		return
	}
	if data == nil {
		return
	}

	var snap domain.BoundarySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.log.Warn("Failed to decode boundary snapshot", "error", err)
		return
	}
	if !snap.HasError {
		return
	}

	c.mu.Lock()
	c.state.ManualRetryCount = snap.ManualRetryCount
	c.state.AutoRecoveryCount = snap.AutoRecoveryCount
	c.lastErrorID = snap.ErrorID

	if snap.ManualRetryCount >= c.policy.MaxManualRetries &&
		snap.AutoRecoveryCount >= c.policy.MaxAutoRecovery {
		c.state.Status = domain.BoundaryExhausted
		c.mu.Unlock()
		c.log.Info("Restored exhausted boundary state")
		return
	}

	now := c.now()
	c.state.Status = domain.BoundaryErrored
	c.state.LastErrorAt = &now
	c.state.CurrentError = &domain.ErrorRecord{
		ID:        snap.ErrorID,
		Timestamp: now,
		Message:   "fault carried over from previous run",
		Severity:  domain.SeverityMedium,
		Retryable: true,
	}
	c.scheduleAutoCheckLocked(c.policy.MinErrorAge)
	c.mu.Unlock()

	c.log.Info("Restored errored boundary state",
		"error_id", snap.ErrorID,
		"manual_retries", snap.ManualRetryCount,
		"auto_recoveries", snap.AutoRecoveryCount)
}

// CaptureFault records a fault raised inside the protected region. Faults
// never propagate past the boundary; the return value is the active error
// record (nil only when the boundary is exhausted). While a recovery is
// pending the fault coalesces into the existing record; while already errored
// the original record is kept and only the error age is refreshed.
func (c *Controller) CaptureFault(ctx context.Context, cause error, componentID string) *domain.ErrorRecord {
	c.mu.Lock()

	switch c.state.Status {
	case domain.BoundaryRecovering:
		rec := c.state.CurrentError
		c.mu.Unlock()
		c.log.Debug("Fault coalesced into pending recovery", "error", cause)
		return rec

	case domain.BoundaryErrored:
		now := c.now()
		c.state.LastErrorAt = &now
		rec := c.state.CurrentError
		c.mu.Unlock()
		c.log.Debug("Fault while already errored, error age refreshed", "error", cause)
		return rec

	case domain.BoundaryExhausted:
		severity, _ := c.classifier(cause)
		c.mu.Unlock()
		metrics.FaultsCaptured.WithLabelValues(c.id, string(severity)).Inc()
		c.log.Warn("Fault captured on exhausted boundary, no recovery budget left",
			"severity", severity, "error", cause)
		return nil
	}

	severity, retryable := c.classifier(cause)
	now := c.now()
	rec := &domain.ErrorRecord{
		ID:          uuid.New().String(),
		Timestamp:   now,
		Message:     cause.Error(),
		Severity:    severity,
		ComponentID: componentID,
		Retryable:   retryable,
	}

	c.state.CurrentError = rec
	c.state.LastErrorAt = &now
	c.lastErrorID = rec.ID
	t := c.transitionLocked(domain.BoundaryErrored, "fault captured")

	if retryable {
		c.scheduleAutoCheckLocked(c.policy.MinErrorAge)
	}
	c.persistLocked()
	c.mu.Unlock()

	metrics.FaultsCaptured.WithLabelValues(c.id, string(severity)).Inc()
	c.log.Error("Fault captured",
		"error_id", rec.ID, "severity", severity, "component", componentID, "error", cause)
	c.notify(t)
	return rec
}

// RequestManualRetry runs the recovery strategy on user request, within the
// manual retry budget. Returns ErrRetryBudgetExhausted (state unchanged) once
// the budget is spent.
func (c *Controller) RequestManualRetry(ctx context.Context) error {
	c.mu.Lock()

	switch c.state.Status {
	case domain.BoundaryRecovering:
		c.mu.Unlock()
		return ErrRecoveryInProgress
	case domain.BoundaryHealthy, domain.BoundaryExhausted:
		c.mu.Unlock()
		return ErrNoActiveFault
	}

	if c.state.ManualRetryCount >= c.policy.MaxManualRetries {
		c.mu.Unlock()
		c.log.Warn("Manual retry refused, budget exhausted",
			"manual_retries", c.policy.MaxManualRetries)
		return ErrRetryBudgetExhausted
	}

	c.state.ManualRetryCount++
	t := c.beginRecoveryLocked(ctx, domain.StrategyManualRetry, true)
	c.persistLocked()
	c.mu.Unlock()

	c.notify(t)
	return nil
}

// tryAutoRecover runs the scheduled eligibility check. Eligible iff the auto
// budget has room, the error is at least MinErrorAge old, no recovery is
// already pending, and the attempt window is not saturated.
func (c *Controller) tryAutoRecover() {
	c.mu.Lock()
	c.autoCheck = nil

	if c.closed || c.state.Status != domain.BoundaryErrored {
		c.mu.Unlock()
		return
	}
	if c.state.AutoRecoveryCount >= c.policy.MaxAutoRecovery {
		c.mu.Unlock()
		return
	}

	// Repeated faults refresh LastErrorAt; wait out the remaining age so we
	// do not recover into an error that is still actively re-throwing.
	age := c.now().Sub(*c.state.LastErrorAt)
	if age < c.policy.MinErrorAge {
		c.scheduleAutoCheckLocked(c.policy.MinErrorAge - age)
		c.mu.Unlock()
		return
	}

	errorID := c.state.CurrentError.ID
	recent := 0
	for _, a := range c.tracker.Recent(errorID, c.policy.RecoveryWindow) {
		if a.Strategy == domain.StrategyAutoRecovery {
			recent++
		}
	}
	if recent >= c.policy.MaxAutoRecovery {
		c.mu.Unlock()
		return
	}

	t := c.beginRecoveryLocked(context.Background(), domain.StrategyAutoRecovery, false)
	c.persistLocked()
	c.mu.Unlock()

	c.notify(t)
}

// beginRecoveryLocked transitions to Recovering and launches the strategy.
func (c *Controller) beginRecoveryLocked(
	ctx context.Context,
	strategy domain.RecoveryStrategy,
	userInitiated bool,
) Transition {
	if c.autoCheck != nil {
		c.autoCheck.Cancel()
		c.autoCheck = nil
	}

	t := c.transitionLocked(domain.BoundaryRecovering, string(strategy))
	c.generation++
	gen := c.generation
	rec := c.state.CurrentError

	go func() {
		err := c.runStrategy(ctx, rec)
		c.finishRecovery(gen, strategy, userInitiated, err)
	}()

	return t
}

func (c *Controller) runStrategy(ctx context.Context, rec *domain.ErrorRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovery strategy panic: %v", r)
		}
	}()
	return c.strategy(ctx, rec)
}

// finishRecovery applies the outcome of one strategy run. Stale completions
// (a full reset happened while the strategy was running) are dropped.
func (c *Controller) finishRecovery(
	gen int,
	strategy domain.RecoveryStrategy,
	userInitiated bool,
	cause error,
) {
	succeeded := cause == nil

	c.mu.Lock()
	if c.closed || gen != c.generation || c.state.Status != domain.BoundaryRecovering {
		c.mu.Unlock()
		return
	}

	errorID := c.state.CurrentError.ID
	attempt := c.tracker.Record(errorID, strategy, succeeded, userInitiated)

	var transitions []Transition
	if succeeded {
		transitions = append(transitions, c.transitionLocked(domain.BoundaryHealthy, "recovery succeeded"))
		c.state.CurrentError = nil
		c.state.LastErrorAt = nil
		c.lastErrorID = ""
		if strategy == domain.StrategyAutoRecovery {
			c.state.ManualRetryCount = 0
		}
		c.removeSnapshotLocked()
	} else {
		transitions = append(transitions, c.transitionLocked(domain.BoundaryErrored, "recovery failed"))
		if strategy == domain.StrategyAutoRecovery {
			c.state.AutoRecoveryCount++
		}

		if c.state.ManualRetryCount >= c.policy.MaxManualRetries &&
			c.state.AutoRecoveryCount >= c.policy.MaxAutoRecovery {
			transitions = append(transitions, c.transitionLocked(domain.BoundaryExhausted, "recovery budgets spent"))
			c.state.CurrentError = nil
			c.state.LastErrorAt = nil
		} else if c.state.AutoRecoveryCount < c.policy.MaxAutoRecovery &&
			c.state.CurrentError.Retryable {
			// Re-entering Errored always re-arms the eligibility check; a
			// failed manual retry must not strand the auto budget.
			c.scheduleAutoCheckLocked(c.retryoff.Delay(c.state.AutoRecoveryCount))
		}
		c.persistLocked()
	}
	c.mu.Unlock()

	result := "failed"
	if succeeded {
		result = "succeeded"
		c.log.Info("Recovery succeeded", "strategy", strategy, "error_id", errorID)
	} else {
		c.log.Warn("Recovery failed", "strategy", strategy, "error_id", errorID, "error", cause)
	}
	metrics.RecoveryAttempts.WithLabelValues(c.id, string(strategy), result).Inc()
	c.archiveAttempt(&attempt)

	if succeeded {
		c.registry.ResetAll()
	}
	for _, t := range transitions {
		c.notify(t)
	}
}

// RequestFullReset unconditionally returns the boundary to Healthy, zeroes
// all budgets, discards the persisted snapshot, and resets every registered
// component. Safe in any state; from Healthy the state itself is a no-op but
// components are still remounted.
func (c *Controller) RequestFullReset(ctx context.Context) {
	c.mu.Lock()

	if c.autoCheck != nil {
		c.autoCheck.Cancel()
		c.autoCheck = nil
	}
	c.generation++ // invalidate any in-flight recovery

	hadFault := c.lastErrorID != ""
	errorID := c.lastErrorID
	from := c.state.Status

	var t *Transition
	if from != domain.BoundaryHealthy {
		tt := c.transitionLocked(domain.BoundaryHealthy, "full reset")
		t = &tt
	}
	c.state.CurrentError = nil
	c.state.LastErrorAt = nil
	c.state.ManualRetryCount = 0
	c.state.AutoRecoveryCount = 0
	c.lastErrorID = ""
	c.removeSnapshotLocked()
	c.mu.Unlock()

	if hadFault {
		attempt := c.tracker.Record(errorID, domain.StrategyComponentRemount, true, true)
		metrics.RecoveryAttempts.WithLabelValues(c.id, string(domain.StrategyComponentRemount), "succeeded").Inc()
		c.archiveAttempt(&attempt)
	}

	c.registry.ResetAll()
	c.log.Info("Full reset", "from", from)
	if t != nil {
		c.notify(*t)
	}
}

// RegisterComponent adds a resettable sub-component to this boundary.
func (c *Controller) RegisterComponent(id string, r Resettable) {
	c.registry.Register(id, r)
}

// UnregisterComponent removes a sub-component.
func (c *Controller) UnregisterComponent(id string) {
	c.registry.Unregister(id)
}

// ResetComponent resets one sub-component without touching the rest.
func (c *Controller) ResetComponent(id string) error {
	return c.registry.Reset(id)
}

// State returns a read-only snapshot of the boundary state.
func (c *Controller) State() domain.BoundaryState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.state
	if c.state.CurrentError != nil {
		rec := *c.state.CurrentError
		state.CurrentError = &rec
	}
	if c.state.LastErrorAt != nil {
		at := *c.state.LastErrorAt
		state.LastErrorAt = &at
	}
	return state
}

// ID returns the boundary identity.
func (c *Controller) ID() string {
	return c.id
}

// Subscribe registers a transition listener and returns its unsubscribe func.
func (c *Controller) Subscribe(fn TransitionListener) func() {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.listeners = append(c.listeners, transitionSub{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		remaining := c.listeners[:0]
		for _, sub := range c.listeners {
			if sub.id != id {
				remaining = append(remaining, sub)
			}
		}
		c.listeners = remaining
	}
}

// Close cancels pending timers and stops the controller. In-flight strategy
// calls are not aborted; their completions are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.autoCheck != nil {
		c.autoCheck.Cancel()
		c.autoCheck = nil
	}
}

func (c *Controller) transitionLocked(to domain.BoundaryStatus, reason string) Transition {
	from := c.state.Status
	if !CanTransition(from, to) {
		c.log.Warn("Invalid boundary transition forced", "from", from, "to", to, "reason", reason)
	}
	c.state.Status = to

	metrics.BoundaryTransitions.WithLabelValues(c.id, string(from), string(to)).Inc()
	return Transition{
		BoundaryID: c.id,
		From:       from,
		To:         to,
		Reason:     reason,
		Timestamp:  c.now(),
	}
}

func (c *Controller) scheduleAutoCheckLocked(delay time.Duration) {
	if c.closed {
		return
	}
	if c.autoCheck != nil {
		c.autoCheck.Cancel()
	}
	c.autoCheck = c.scheduler.Schedule(delay, c.tryAutoRecover)
}

func (c *Controller) persistLocked() {
	if c.snapshots == nil {
		return
	}

	snap := domain.BoundarySnapshot{
		HasError:          c.state.Status != domain.BoundaryHealthy,
		ManualRetryCount:  c.state.ManualRetryCount,
		AutoRecoveryCount: c.state.AutoRecoveryCount,
		ErrorID:           c.lastErrorID,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.snapshots.Set(context.Background(), c.snapshotKey(), data); err != nil {
		c.log.Warn("Failed to persist boundary snapshot", "error", err)
	}
}

func (c *Controller) removeSnapshotLocked() {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Remove(context.Background(), c.snapshotKey()); err != nil {
		c.log.Warn("Failed to remove boundary snapshot", "error", err)
	}
}

func (c *Controller) archiveAttempt(attempt *domain.RecoveryAttempt) {
	if c.archive == nil {
		return
	}
	if err := c.archive.Append(context.Background(), c.id, attempt); err != nil {
		c.log.Warn("Failed to archive recovery attempt", "error", err)
	}
}

func (c *Controller) notify(t Transition) {
	c.mu.Lock()
	listeners := make([]transitionSub, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, sub := range listeners {
		sub.fn(t)
	}
}
