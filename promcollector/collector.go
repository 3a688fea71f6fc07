// Package promcollector exports rangeload metrics to Prometheus.
//
//	c := promcollector.New(prometheus.DefaultRegisterer, "myapp")
//	l, _ := rangeload.New(src, rangeload.WithMetricsCollector(c))
//	http.Handle("/metrics", promhttp.Handler())
package promcollector

import (
	"time"

	"github.com/hupe1980/rangeload"
	"github.com/prometheus/client_golang/prometheus"
)

var _ rangeload.MetricsCollector = (*Collector)(nil)

// Collector implements rangeload.MetricsCollector with Prometheus metrics.
type Collector struct {
	requestLatency *prometheus.HistogramVec
	fetchLatency   *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	items          *prometheus.CounterVec
	resets         prometheus.Counter
}

// New creates a Collector and registers its metrics with reg under the given
// namespace. A nil reg leaves the metrics unregistered.
func New(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rangeload",
			Name:      "request_duration_seconds",
			Help:      "Latency of list requests including all their fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rangeload",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of source fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rangeload",
			Name:      "runs_total",
			Help:      "Planned fetch runs by outcome",
		}, []string{"outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rangeload",
			Name:      "items_total",
			Help:      "Fetched items by outcome",
		}, []string{"outcome"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rangeload",
			Name:      "resets_total",
			Help:      "Total list resets",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.requestLatency, c.fetchLatency, c.runs, c.items, c.resets)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRequest implements rangeload.MetricsCollector.
func (c *Collector) RecordRequest(_ int, d time.Duration, err error) {
	c.requestLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}

// RecordPlan implements rangeload.MetricsCollector.
func (c *Collector) RecordPlan(runs, trimmed int) {
	c.runs.WithLabelValues("dispatched").Add(float64(runs))
	c.runs.WithLabelValues("trimmed").Add(float64(trimmed))
}

// RecordFetch implements rangeload.MetricsCollector.
func (c *Collector) RecordFetch(items int, d time.Duration, err error) {
	c.fetchLatency.WithLabelValues(status(err)).Observe(d.Seconds())
	c.items.WithLabelValues("fetched").Add(float64(items))
}

// RecordDiscard implements rangeload.MetricsCollector.
func (c *Collector) RecordDiscard(items int) {
	c.items.WithLabelValues("discarded").Add(float64(items))
}

// RecordReset implements rangeload.MetricsCollector.
func (c *Collector) RecordReset() {
	c.resets.Inc()
}
