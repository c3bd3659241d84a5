package domain

import "time"

// NetworkStatus is a snapshot of current connectivity.
// Exactly one of LastOnlineAt/LastOfflineAt carries the most recent transition.
type NetworkStatus struct {
	IsOnline       bool      `json:"is_online"`
	LastOnlineAt   time.Time `json:"last_online_at,omitempty"`
	LastOfflineAt  time.Time `json:"last_offline_at,omitempty"`
	ConnectionType string    `json:"connection_type,omitempty"`
	EffectiveType  string    `json:"effective_type,omitempty"`
}
