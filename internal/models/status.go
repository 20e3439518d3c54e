package models

import "time"

type CheckStatus string

const (
	StatusOK      CheckStatus = "ok"
	StatusCrit    CheckStatus = "crit"
	StatusUnknown CheckStatus = "unknown"
)

// ProtocolStatus is the latest probe outcome for one (target, protocol)
// pair. It is overwritten in place on every check and never historized.
type ProtocolStatus struct {
	Protocol  string      `json:"protocol"`
	Status    CheckStatus `json:"status"`
	LatencyMs *float64    `json:"latency_ms"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_ts"`
}

// HostStatus is the per-host aggregate. It follows only the designated
// reachability protocol (ICMP); other protocol failures are surfaced as
// individual ProtocolStatus values without flipping this aggregate.
type HostStatus struct {
	Status    CheckStatus `json:"status"`
	LatencyMs *float64    `json:"latency_ms"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_ts"`
}

type AnomalySeverity string

const (
	SeverityWarn AnomalySeverity = "warn"
	SeverityCrit AnomalySeverity = "crit"
)

// Anomaly flags one statistically abnormal metric. It is valid only within
// the snapshot that produced it and is recomputed from history every tick.
type Anomaly struct {
	Metric   string          `json:"metric"`
	Severity AnomalySeverity `json:"severity"`
	Message  string          `json:"message"`
}

type Insight struct {
	Summary   string    `json:"summary"`
	Anomalies []Anomaly `json:"anomalies"`
}
