package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FaultsCaptured tracks faults captured per boundary and severity
	FaultsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_faults_captured_total",
			Help: "Total number of faults captured by recovery boundaries",
		},
		[]string{"boundary", "severity"},
	)

	// BoundaryTransitions tracks state machine transitions per boundary
	BoundaryTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_boundary_transitions_total",
			Help: "Total number of boundary state transitions",
		},
		[]string{"boundary", "from", "to"},
	)

	// RecoveryAttempts tracks recovery attempts per boundary, strategy and result
	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_recovery_attempts_total",
			Help: "Total number of recovery attempts",
		},
		[]string{"boundary", "strategy", "result"},
	)

	// QueueOperations tracks queued operation outcomes per type
	QueueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_queue_operations_total",
			Help: "Total number of queued operation outcomes",
		},
		[]string{"type", "outcome"},
	)

	// QueuePending tracks the number of operations waiting in the queue
	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_queue_pending",
			Help: "Number of operations currently queued",
		},
	)

	// QueueDrains tracks drain passes
	QueueDrains = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_queue_drains_total",
			Help: "Total number of queue drain passes",
		},
	)

	// NetworkOnline reports current connectivity (1 = online)
	NetworkOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_network_online",
			Help: "Whether the network monitor currently reports online",
		},
	)

	// NetworkTransitions tracks connectivity transitions
	NetworkTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_network_transitions_total",
			Help: "Total number of connectivity transitions",
		},
		[]string{"to"},
	)
)
