package infra

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordEvent(t *testing.T) {
	m := &Metrics{}

	m.RecordEvent(1000)
	m.RecordEvent(2000)
	m.RecordEvent(3000)

	snap := m.Snapshot()

	if snap.EventsProcessed != 3 {
		t.Errorf("Expected 3 events, got %d", snap.EventsProcessed)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_Votes(t *testing.T) {
	m := &Metrics{}

	m.RecordVoteAttempt()
	m.RecordVoteAttempt()
	m.RecordVoteAttempt()
	m.RecordVoteConfirmed(2 * time.Second)
	m.RecordVoteRejected()
	m.RecordVoteFailed()

	snap := m.Snapshot()
	if snap.VotesAttempted != 3 || snap.VotesConfirmed != 1 || snap.VotesRejected != 1 || snap.VotesFailed != 1 {
		t.Errorf("unexpected vote counters: %+v", snap)
	}
	if snap.AvgVoteLatencyNs != int64(2*time.Second) {
		t.Errorf("Expected avg vote latency 2s, got %d", snap.AvgVoteLatencyNs)
	}
	if snap.ErrorsTotal != 1 {
		t.Errorf("Expected failed vote to count as error, got %d", snap.ErrorsTotal)
	}
}

func TestMetrics_Connections(t *testing.T) {
	m := &Metrics{}

	m.IncrementConnections()
	m.IncrementConnections()
	m.IncrementConnections()

	snap := m.Snapshot()
	if snap.ActiveConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", snap.ActiveConnections)
	}

	m.DecrementConnections()
	snap = m.Snapshot()
	if snap.ActiveConnections != 2 {
		t.Errorf("Expected 2 connections, got %d", snap.ActiveConnections)
	}
}

func TestMetrics_WalletState(t *testing.T) {
	m := &Metrics{}

	if m.Snapshot().WalletConnected {
		t.Error("Expected wallet disconnected initially")
	}

	m.SetWalletConnected(true)
	if !m.Snapshot().WalletConnected {
		t.Error("Expected wallet connected")
	}

	m.SetWalletConnected(false)
	if m.Snapshot().WalletConnected {
		t.Error("Expected wallet disconnected")
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordEvent(1000)
	m.RecordError()
	m.RecordCacheLookup(true)
	m.IncrementConnections()

	m.Reset()
	snap := m.Snapshot()

	if snap.EventsProcessed != 0 {
		t.Error("Expected 0 events after reset")
	}
	if snap.ErrorsTotal != 0 {
		t.Error("Expected 0 errors after reset")
	}
	if snap.CacheHits != 0 {
		t.Error("Expected 0 cache hits after reset")
	}
	if snap.ActiveConnections != 0 {
		t.Error("Expected 0 connections after reset")
	}
}

func TestPrometheusCollector(t *testing.T) {
	m := &Metrics{}
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordLedgerRead()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewPrometheusCollector(m)))

	// 9 descriptors, votes and cache fan out by label
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 13, count)

	count, err = testutil.GatherAndCount(reg, "tokenvote_market_cache_lookups_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "tokenvote_market_cache_lookups_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			label := metric.GetLabel()[0].GetValue()
			switch label {
			case "hit":
				require.Equal(t, 2.0, metric.GetCounter().GetValue())
			case "miss":
				require.Equal(t, 1.0, metric.GetCounter().GetValue())
			}
		}
	}
}
