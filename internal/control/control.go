package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/sentinel/internal/core/config"
	"github.com/vietddude/sentinel/internal/core/domain"
	redisclient "github.com/vietddude/sentinel/internal/infra/redis"
	"github.com/vietddude/sentinel/internal/infra/storage"
	"github.com/vietddude/sentinel/internal/infra/storage/memory"
	"github.com/vietddude/sentinel/internal/infra/storage/postgres"
	"github.com/vietddude/sentinel/internal/ops"
	"github.com/vietddude/sentinel/internal/resilience/backoff"
	"github.com/vietddude/sentinel/internal/resilience/boundary"
	"github.com/vietddude/sentinel/internal/resilience/netmon"
	"github.com/vietddude/sentinel/internal/resilience/syncqueue"
	"github.com/vietddude/sentinel/internal/resilience/tracker"
)

// Config holds the application configuration.
type Config struct {
	Port     int
	Network  config.NetworkConfig
	Queue    config.QueueConfig
	Recovery config.RecoveryConfig
	Redis    redisclient.Config
	Database postgres.Config
}

// Sentinel is the composition root: it owns the single network monitor, the
// operation queue, the storage backends, and hands out recovery boundaries.
type Sentinel struct {
	cfg      Config
	monitor  *netmon.Monitor
	queue    *syncqueue.Queue
	reporter *ops.Reporter
	server   *ops.Server
	tracker  *tracker.Tracker
	log      *slog.Logger

	snapshots      storage.SnapshotStore
	attemptArchive storage.AttemptArchive
	opArchive      storage.OperationArchive
	redisClient    *redisclient.Client
	db             *postgres.DB
	probe          netmon.Probe

	mu         sync.Mutex
	executors  map[string]syncqueue.Executor
	boundaries map[string]*boundary.Controller
	cancel     context.CancelFunc
}

// NewSentinel creates a Sentinel instance with all dependencies initialized.
func NewSentinel(cfg Config) (*Sentinel, error) {
	log := slog.Default()

	s := &Sentinel{
		cfg:        cfg,
		monitor:    netmon.New(),
		tracker:    tracker.New(0),
		log:        log,
		executors:  make(map[string]syncqueue.Executor),
		boundaries: make(map[string]*boundary.Controller),
	}

	// 1. Storage: redis for snapshots, postgres for archives, memory fallback
	store := memory.NewMemoryStorage()
	s.snapshots = memory.NewSnapshotRepo(store)
	s.attemptArchive = memory.NewAttemptRepo(store)
	s.opArchive = memory.NewOperationRepo(store)

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		s.redisClient = client
		s.snapshots = redisclient.NewSnapshotRepo(client, cfg.Recovery.SnapshotTTL)
		slog.Info("Using Redis snapshot storage")
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			s.closePartial()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			_ = db.Close()
			s.closePartial()
			return nil, err
		}
		s.db = db
		s.attemptArchive = postgres.NewAttemptRepo(db)
		s.opArchive = postgres.NewOperationRepo(db)
		slog.Info("Using PostgreSQL archive storage")
	}

	// 2. Operation queue, fed by the shared monitor
	s.queue = syncqueue.New(s.dispatch, nil, syncqueue.Config{
		MaxRetries: cfg.Queue.MaxRetries,
		Backoff: &backoff.Policy{
			InitialDelay:   cfg.Queue.Backoff.InitialDelay,
			MaxDelay:       cfg.Queue.Backoff.MaxDelay,
			Multiplier:     cfg.Queue.Backoff.Multiplier,
			JitterFraction: cfg.Queue.Backoff.Jitter,
		},
		Archive: s.opArchive,
		Logger:  log,
	})
	s.queue.AttachMonitor(s.monitor)

	// 3. Connectivity probe
	if cfg.Network.ProbeGRPC != "" {
		probe, err := netmon.NewGRPCProbe(cfg.Network.ProbeGRPC, cfg.Network.GRPCService)
		if err != nil {
			s.closePartial()
			return nil, fmt.Errorf("failed to init grpc probe: %w", err)
		}
		s.probe = probe
	} else if cfg.Network.ProbeURL != "" {
		s.probe = netmon.NewHTTPProbe(cfg.Network.ProbeURL, cfg.Network.ProbeInterval)
	}

	// 4. Ops surface
	s.reporter = ops.NewReporter(s.monitor, s.queue, s.opArchive)
	s.server = ops.NewServer(s.reporter, cfg.Port)

	return s, nil
}

// Monitor returns the process-wide network monitor.
func (s *Sentinel) Monitor() *netmon.Monitor {
	return s.monitor
}

// Queue returns the operation queue.
func (s *Sentinel) Queue() *syncqueue.Queue {
	return s.queue
}

// RegisterExecutor registers the executor responsible for an operation type.
func (s *Sentinel) RegisterExecutor(opType string, fn syncqueue.Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[opType] = fn
}

// dispatch routes a queued operation to its registered executor. An unknown
// type is an invalid operation: the classifier treats it as permanent, so it
// is abandoned instead of retried forever.
func (s *Sentinel) dispatch(ctx context.Context, op *domain.SyncOperation) error {
	s.mu.Lock()
	fn, ok := s.executors[op.Type]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("invalid operation type %q: no executor registered", op.Type)
	}
	return fn(ctx, op)
}

// NewBoundary creates (or returns) the recovery boundary with the given
// identity, wired to the configured policy, snapshot store, and archive.
func (s *Sentinel) NewBoundary(id string, strategy boundary.Strategy) *boundary.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.boundaries[id]; ok {
		return existing
	}

	c := boundary.NewController(id, strategy, boundary.Options{
		Policy: boundary.Policy{
			MaxAutoRecovery:  s.cfg.Recovery.MaxAutoRecovery,
			MaxManualRetries: s.cfg.Recovery.MaxManualRetries,
			MinErrorAge:      s.cfg.Recovery.MinErrorAge,
			RecoveryWindow:   s.cfg.Recovery.RecoveryWindow,
		},
		Tracker:   s.tracker,
		Snapshots: s.snapshots,
		Archive:   s.attemptArchive,
		Logger:    s.log,
	})
	s.boundaries[id] = c
	s.reporter.Track(c)
	return c
}

// Start launches the probe loop and the ops server.
func (s *Sentinel) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if s.probe != nil {
		go netmon.Watch(ctx, s.monitor, s.probe, s.cfg.Network.ProbeInterval)
		slog.Info("Connectivity probe started",
			"type", s.probe.Type(), "interval", s.cfg.Network.ProbeInterval)
	}

	go func() {
		slog.Info("Ops server listening", "port", s.cfg.Port)
		if err := s.server.Start(); err != nil && ctx.Err() == nil {
			slog.Error("Ops server stopped", "error", err)
		}
	}()

	return nil
}

// Stop shuts everything down: probe loop, ops server, queue timers, boundary
// timers, and storage connections.
func (s *Sentinel) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	boundaries := make([]*boundary.Controller, 0, len(s.boundaries))
	for _, c := range s.boundaries {
		boundaries = append(boundaries, c)
	}
	s.mu.Unlock()

	for _, c := range boundaries {
		c.Close()
	}
	s.queue.Close()

	if err := s.server.Stop(ctx); err != nil {
		slog.Warn("Failed to stop ops server", "error", err)
	}
	s.closePartial()

	slog.Info("Sentinel stopped")
	return nil
}

func (s *Sentinel) closePartial() {
	if closer, ok := s.probe.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
