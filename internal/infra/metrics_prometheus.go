package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tokenvote"

// PrometheusCollector exports a Metrics instance. Values are read from the atomics at scrape time.
type PrometheusCollector struct {
	metrics *Metrics

	events      *prometheus.Desc
	errors      *prometheus.Desc
	votes       *prometheus.Desc
	cache       *prometheus.Desc
	market      *prometheus.Desc
	ledgerReads *prometheus.Desc
	voteLatency *prometheus.Desc
	connections *prometheus.Desc
	wallet      *prometheus.Desc
}

// NewPrometheusCollector wraps m. A nil m uses GlobalMetrics.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	if m == nil {
		m = GlobalMetrics
	}
	return &PrometheusCollector{
		metrics: m,
		events: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "session", "events_total"),
			"Session events processed", nil, nil),
		errors: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "errors_total"),
			"Errors recorded", nil, nil),
		votes: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "vote", "submissions_total"),
			"Vote submissions by outcome", []string{"outcome"}, nil),
		cache: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "market", "cache_lookups_total"),
			"Market cache lookups by result", []string{"result"}, nil),
		market: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "market", "fetch_failures_total"),
			"Market provider fetch failures", nil, nil),
		ledgerReads: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "ledger", "reads_total"),
			"Ledger account reads", nil, nil),
		voteLatency: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "vote", "avg_latency_seconds"),
			"Average confirmed vote latency", nil, nil),
		connections: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "ws", "connections"),
			"Active websocket clients", nil, nil),
		wallet: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "wallet", "connected"),
			"1 if a wallet is connected", nil, nil),
	}
}

func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.events
	ch <- c.errors
	ch <- c.votes
	ch <- c.cache
	ch <- c.market
	ch <- c.ledgerReads
	ch <- c.voteLatency
	ch <- c.connections
	ch <- c.wallet
}

func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(s.EventsProcessed))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.ErrorsTotal))
	ch <- prometheus.MustNewConstMetric(c.votes, prometheus.CounterValue, float64(s.VotesAttempted), "attempted")
	ch <- prometheus.MustNewConstMetric(c.votes, prometheus.CounterValue, float64(s.VotesConfirmed), "confirmed")
	ch <- prometheus.MustNewConstMetric(c.votes, prometheus.CounterValue, float64(s.VotesRejected), "rejected")
	ch <- prometheus.MustNewConstMetric(c.votes, prometheus.CounterValue, float64(s.VotesFailed), "failed")
	ch <- prometheus.MustNewConstMetric(c.cache, prometheus.CounterValue, float64(s.CacheHits), "hit")
	ch <- prometheus.MustNewConstMetric(c.cache, prometheus.CounterValue, float64(s.CacheMisses), "miss")
	ch <- prometheus.MustNewConstMetric(c.market, prometheus.CounterValue, float64(s.MarketFailures))
	ch <- prometheus.MustNewConstMetric(c.ledgerReads, prometheus.CounterValue, float64(s.LedgerReads))
	ch <- prometheus.MustNewConstMetric(c.voteLatency, prometheus.GaugeValue, float64(s.AvgVoteLatencyNs)/1e9)
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.ActiveConnections))

	var wallet float64
	if s.WalletConnected {
		wallet = 1
	}
	ch <- prometheus.MustNewConstMetric(c.wallet, prometheus.GaugeValue, wallet)
}
