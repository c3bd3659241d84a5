package domain

import "time"

// RecoveryAttempt represents one attempt to resolve a captured fault.
// Attempts are append-only and ordered by timestamp per error ID.
type RecoveryAttempt struct {
	ErrorID       string           `json:"error_id"`
	Strategy      RecoveryStrategy `json:"strategy"`
	Succeeded     bool             `json:"succeeded"`
	UserInitiated bool             `json:"user_initiated"`
	Timestamp     time.Time        `json:"timestamp"`
}

type RecoveryStrategy string

const (
	StrategyAutoRecovery     RecoveryStrategy = "auto_recovery"
	StrategyManualRetry      RecoveryStrategy = "manual_retry"
	StrategyComponentRemount RecoveryStrategy = "component_remount"
)
