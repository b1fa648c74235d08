// Package collector exposes the expired-record coordinator as Prometheus metrics.
package collector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus"
)

// SnapshotSource is what StatusCollector reads on every scrape.
type SnapshotSource interface {
	Snapshot() nfdstatus.Snapshot
}

// StatusCollector reports the coordinator's state at scrape time and counts
// its decisions through the nfdstatus.Observer hooks.
type StatusCollector struct {
	source SnapshotSource

	lastRun      *prometheus.Desc
	inFlight     *prometheus.Desc
	lastUpdated  *prometheus.Desc
	lastFailed   *prometheus.Desc
	ttl          *prometheus.Desc
	runs         *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	runDuration  prometheus.Histogram
	recordsTotal prometheus.Counter
}

// compile-time checks
var (
	_ prometheus.Collector = (*StatusCollector)(nil)
	_ nfdstatus.Observer   = (*StatusCollector)(nil)
)

// NewStatusCollector creates a collector. Call SetSource before registering
// it; the coordinator needs the collector as an observer first.
func NewStatusCollector() *StatusCollector {
	return &StatusCollector{
		lastRun: prometheus.NewDesc(
			"nfd_autoupdate_last_run_timestamp_seconds",
			"Unix time the last update-expired call completed (0 if never).",
			nil, nil),
		inFlight: prometheus.NewDesc(
			"nfd_autoupdate_in_flight",
			"1 while an update-expired call is running.",
			nil, nil),
		lastUpdated: prometheus.NewDesc(
			"nfd_autoupdate_last_updated_count",
			"Records marked expired by the last completed call.",
			nil, nil),
		lastFailed: prometheus.NewDesc(
			"nfd_autoupdate_last_failed",
			"1 if the last completed call failed.",
			nil, nil),
		ttl: prometheus.NewDesc(
			"nfd_autoupdate_ttl_seconds",
			"Cache validity window for update-expired outcomes.",
			nil, nil),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nfd_autoupdate_runs_total",
			Help: "Completed update-expired calls by result.",
		}, []string{"result"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nfd_autoupdate_skipped_total",
			Help: "Auto-update requests answered without a backend call, by reason.",
		}, []string{"reason"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nfd_autoupdate_run_duration_seconds",
			Help:    "Duration of update-expired calls.",
			Buckets: prometheus.DefBuckets,
		}),
		recordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nfd_autoupdate_records_updated_total",
			Help: "Records marked expired across all calls.",
		}),
	}
}

// SetSource sets where scrape-time state is read from.
func (c *StatusCollector) SetSource(src SnapshotSource) {
	c.source = src
}

// OnSkip implements nfdstatus.Observer.
func (c *StatusCollector) OnSkip(reason nfdstatus.SkipReason) {
	c.skipped.WithLabelValues(string(reason)).Inc()
}

// OnSettle implements nfdstatus.Observer.
func (c *StatusCollector) OnSettle(o nfdstatus.Outcome, elapsed time.Duration) {
	result := "success"
	if o.Failed {
		result = "failure"
	}
	c.runs.WithLabelValues(result).Inc()
	c.runDuration.Observe(elapsed.Seconds())
	c.recordsTotal.Add(float64(o.UpdatedCount))
}

// Describe implements prometheus.Collector.
func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lastRun
	ch <- c.inFlight
	ch <- c.lastUpdated
	ch <- c.lastFailed
	ch <- c.ttl
	c.runs.Describe(ch)
	c.skipped.Describe(ch)
	c.runDuration.Describe(ch)
	c.recordsTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	c.runs.Collect(ch)
	c.skipped.Collect(ch)
	c.runDuration.Collect(ch)
	c.recordsTotal.Collect(ch)

	if c.source == nil {
		return
	}
	snap := c.source.Snapshot()

	var lastRun float64
	if snap.HasRun() {
		lastRun = float64(snap.LastRunAt.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastRun, prometheus.GaugeValue, lastRun)
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, boolToFloat(snap.InFlight))
	ch <- prometheus.MustNewConstMetric(c.lastUpdated, prometheus.GaugeValue, float64(snap.LastOutcome.UpdatedCount))
	ch <- prometheus.MustNewConstMetric(c.lastFailed, prometheus.GaugeValue, boolToFloat(snap.LastOutcome.Failed))
	ch <- prometheus.MustNewConstMetric(c.ttl, prometheus.GaugeValue, snap.TTL.Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
