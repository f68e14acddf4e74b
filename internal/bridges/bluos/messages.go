package bluos

import "time"

// BridgeID identifies this bridge in health messages and topics.
const BridgeID = "bluos"

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthStats is the counter snapshot carried in a health message.
type HealthStats struct {
	DevicesManaged int    `json:"devices_managed"`
	DevicesOnline  int    `json:"devices_online"`
	PollsOK        uint64 `json:"polls_ok"`
	PollsFailed    uint64 `json:"polls_failed"`
}

// HealthMessage reports the bridge's operational status.
// Topic: <root>/health/bluos
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge    string       `json:"bridge"`
	Timestamp time.Time    `json:"timestamp"`
	Status    HealthStatus `json:"status"`
	Version   string       `json:"version"`

	// Reason explains a non-healthy status.
	Reason string `json:"reason,omitempty"`

	UptimeSeconds int64 `json:"uptime_seconds"`

	HealthStats
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(version string, status HealthStatus, stats HealthStats, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:        BridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		HealthStats:   stats,
	}
}
