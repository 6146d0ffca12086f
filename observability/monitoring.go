// Package observability aggregates relay counters for the admin surface.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// RelayStats is the snapshot served by /chathub/stats.
type RelayStats struct {
	Connections      int64  `json:"connections"`
	Registered       int64  `json:"registered"`
	Broadcasts       uint64 `json:"broadcasts"`
	Unicasts         uint64 `json:"unicasts"`
	RecipientMisses  uint64 `json:"recipient_misses"`
	DroppedInvalid   uint64 `json:"dropped_invalid"`
	ReplayedMessages uint64 `json:"replayed_messages"`
	DeliveryFailures uint64 `json:"delivery_failures"`

	// Self process stats sampled by the monitor worker.
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	PidStatus  string    `json:"pid_status"`
	SampledAt  time.Time `json:"sampled_at"`
}

// MonitoringManager collects counters from the router and orchestrator
// plus periodic process stats. Safe for concurrent use.
type MonitoringManager struct {
	connections      atomic.Int64
	registered       atomic.Int64
	broadcasts       atomic.Uint64
	unicasts         atomic.Uint64
	recipientMisses  atomic.Uint64
	droppedInvalid   atomic.Uint64
	replayedMessages atomic.Uint64
	deliveryFailures atomic.Uint64

	mu        sync.Mutex
	cpu       float64
	rss       uint64
	pidStatus string
	sampledAt time.Time
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{}
}

func (m *MonitoringManager) ConnectionOpened()     { m.connections.Add(1) }
func (m *MonitoringManager) ConnectionClosed()     { m.connections.Add(-1) }
func (m *MonitoringManager) Registered()           { m.registered.Add(1) }
func (m *MonitoringManager) Deregistered()         { m.registered.Add(-1) }
func (m *MonitoringManager) Broadcast()            { m.broadcasts.Add(1) }
func (m *MonitoringManager) Unicast()              { m.unicasts.Add(1) }
func (m *MonitoringManager) RecipientMiss()        { m.recipientMisses.Add(1) }
func (m *MonitoringManager) DroppedInvalid()       { m.droppedInvalid.Add(1) }
func (m *MonitoringManager) Replayed(messages int) { m.replayedMessages.Add(uint64(messages)) }
func (m *MonitoringManager) DeliveryFailure()      { m.deliveryFailures.Add(1) }

// RecordSelfStats stores the latest process sample.
func (m *MonitoringManager) RecordSelfStats(cpu float64, rss uint64, status string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu = cpu
	m.rss = rss
	m.pidStatus = status
	m.sampledAt = at
}

// GetLatest snapshots all counters and the last process sample.
func (m *MonitoringManager) GetLatest() RelayStats {
	m.mu.Lock()
	cpu, rss, status, at := m.cpu, m.rss, m.pidStatus, m.sampledAt
	m.mu.Unlock()

	return RelayStats{
		Connections:      m.connections.Load(),
		Registered:       m.registered.Load(),
		Broadcasts:       m.broadcasts.Load(),
		Unicasts:         m.unicasts.Load(),
		RecipientMisses:  m.recipientMisses.Load(),
		DroppedInvalid:   m.droppedInvalid.Load(),
		ReplayedMessages: m.replayedMessages.Load(),
		DeliveryFailures: m.deliveryFailures.Load(),
		CPUPercent:       cpu,
		RSSBytes:         rss,
		PidStatus:        status,
		SampledAt:        at,
	}
}
