package miner

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "equiminer"

// Collector exports a Speed and the worker count to Prometheus
type Collector struct {
	speed   *Speed
	workers func() int

	hashes    *prometheus.Desc
	solutions *prometheus.Desc
	shares    *prometheus.Desc
	results   *prometheus.Desc
	stale     *prometheus.Desc
	active    *prometheus.Desc
}

// NewCollector returns a collector reading speed on every scrape. workers
// may be nil.
func NewCollector(speed *Speed, workers func() int) *Collector {
	return &Collector{
		speed:   speed,
		workers: workers,
		hashes: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "hashes_total"),
			"Base hash units processed by all solvers.", nil, nil),
		solutions: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "solutions_total"),
			"Structural Equihash solutions found.", nil, nil),
		shares: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "shares_total"),
			"Solutions below the share target forwarded for submission.", nil, nil),
		results: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "submissions_total"),
			"Submission results reported by the pool.", []string{"result"}, nil),
		stale: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "stale_shares_total"),
			"Accepted or rejected submissions flagged stale.", nil, nil),
		active: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "workers"),
			"Running solver workers.", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hashes
	ch <- c.solutions
	ch <- c.shares
	ch <- c.results
	ch <- c.stale
	ch <- c.active
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.speed.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.hashes, prometheus.CounterValue, float64(snap.Hashes))
	ch <- prometheus.MustNewConstMetric(c.solutions, prometheus.CounterValue, float64(snap.Solutions))
	ch <- prometheus.MustNewConstMetric(c.shares, prometheus.CounterValue, float64(snap.Shares))
	ch <- prometheus.MustNewConstMetric(c.results, prometheus.CounterValue, float64(snap.Accepted), "accepted")
	ch <- prometheus.MustNewConstMetric(c.results, prometheus.CounterValue, float64(snap.Rejected), "rejected")
	ch <- prometheus.MustNewConstMetric(c.results, prometheus.CounterValue, float64(snap.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.stale, prometheus.CounterValue, float64(snap.Stale))
	workers := 0
	if c.workers != nil {
		workers = c.workers()
	}
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(workers))
}
