package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability using atomic counters.
// PrometheusCollector exposes the same counters on /metrics.
type Metrics struct {
	// Counters
	eventsProcessed atomic.Uint64
	errorsTotal     atomic.Uint64

	votesAttempted atomic.Uint64
	votesConfirmed atomic.Uint64
	votesRejected  atomic.Uint64 // precondition failures, incl. already voted
	votesFailed    atomic.Uint64 // submission stage failures

	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	marketFailures atomic.Uint64
	ledgerReads    atomic.Uint64

	// Latency tracking (session events)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Vote submission latency
	voteLatencySumNs atomic.Int64
	voteLatencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	walletConnected   atomic.Int32 // 1 = connected, 0 = not
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records a processed session event with latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

func (m *Metrics) RecordVoteAttempt() {
	m.votesAttempted.Add(1)
}

// RecordVoteConfirmed records a confirmed vote and its end-to-end latency.
func (m *Metrics) RecordVoteConfirmed(latency time.Duration) {
	m.votesConfirmed.Add(1)
	m.voteLatencySumNs.Add(latency.Nanoseconds())
	m.voteLatencyCount.Add(1)
}

func (m *Metrics) RecordVoteRejected() {
	m.votesRejected.Add(1)
}

func (m *Metrics) RecordVoteFailed() {
	m.votesFailed.Add(1)
	m.errorsTotal.Add(1)
}

// RecordCacheLookup records a market cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

func (m *Metrics) RecordMarketFailure() {
	m.marketFailures.Add(1)
}

func (m *Metrics) RecordLedgerRead() {
	m.ledgerReads.Add(1)
}

// SetActiveConnections sets the current websocket client count.
func (m *Metrics) SetActiveConnections(count int32) {
	m.activeConnections.Store(count)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetWalletConnected sets the wallet connection gauge.
func (m *Metrics) SetWalletConnected(connected bool) {
	if connected {
		m.walletConnected.Store(1)
	} else {
		m.walletConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsProcessed   uint64
	ErrorsTotal       uint64
	VotesAttempted    uint64
	VotesConfirmed    uint64
	VotesRejected     uint64
	VotesFailed       uint64
	CacheHits         uint64
	CacheMisses       uint64
	MarketFailures    uint64
	LedgerReads       uint64
	AvgLatencyNs      int64
	AvgVoteLatencyNs  int64
	ActiveConnections int32
	WalletConnected   bool
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency, avgVoteLatency int64
	if count := m.latencyCount.Load(); count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}
	if count := m.voteLatencyCount.Load(); count > 0 {
		avgVoteLatency = m.voteLatencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		EventsProcessed:   m.eventsProcessed.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		VotesAttempted:    m.votesAttempted.Load(),
		VotesConfirmed:    m.votesConfirmed.Load(),
		VotesRejected:     m.votesRejected.Load(),
		VotesFailed:       m.votesFailed.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		MarketFailures:    m.marketFailures.Load(),
		LedgerReads:       m.ledgerReads.Load(),
		AvgLatencyNs:      avgLatency,
		AvgVoteLatencyNs:  avgVoteLatency,
		ActiveConnections: m.activeConnections.Load(),
		WalletConnected:   m.walletConnected.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.eventsProcessed.Store(0)
	m.errorsTotal.Store(0)
	m.votesAttempted.Store(0)
	m.votesConfirmed.Store(0)
	m.votesRejected.Store(0)
	m.votesFailed.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.marketFailures.Store(0)
	m.ledgerReads.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.voteLatencySumNs.Store(0)
	m.voteLatencyCount.Store(0)
	m.activeConnections.Store(0)
	m.walletConnected.Store(0)
}
