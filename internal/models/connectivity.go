package models

import "time"

// ConnectivityState is the supervisor's view of the remote service.
type ConnectivityState string

const (
	StateOnline  ConnectivityState = "online"
	StateOffline ConnectivityState = "offline"
)

// ConnectivityStatus captures the outcome of a single liveness probe.
type ConnectivityStatus struct {
	Board     string    `json:"board"`
	Target    string    `json:"target"`
	OK        bool      `json:"ok"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Transition records a change of connectivity state on one board page.
type Transition struct {
	Board string            `json:"board"`
	From  ConnectivityState `json:"from"`
	To    ConnectivityState `json:"to"`
	At    time.Time         `json:"at"`
}
