// Package metrics exports broadcaster statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pior/ircline"
)

const namespace = "ircline"

// Source is the statistics provider, implemented by *ircline.Broadcaster.
type Source interface {
	Stats() ircline.BroadcastStats
	CachePoolStats() ircline.CachePoolStats
	OpenBreakers() int
}

// Collector reads a Source on every scrape. Counters are cumulative since the
// Source was created.
type Collector struct {
	source Source

	sends          *prometheus.Desc
	deliveries     *prometheus.Desc
	writeErrors    *prometheus.Desc
	dropped        *prometheus.Desc
	cacheLookups   *prometheus.Desc
	cacheEvictions *prometheus.Desc
	openBreakers   *prometheus.Desc
	poolCaches     *prometheus.Desc
	poolAcquires   *prometheus.Desc
	poolWaits      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for source.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		sends: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broadcast", "sends_total"),
			"Total number of messages broadcast",
			nil, nil,
		),
		deliveries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broadcast", "deliveries_total"),
			"Total number of lines written to recipients",
			nil, nil,
		),
		writeErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broadcast", "write_errors_total"),
			"Total number of lines recipients failed to write",
			nil, nil,
		),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broadcast", "dropped_total"),
			"Total number of lines dropped before reaching a recipient",
			nil, nil,
		),
		cacheLookups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "render_cache", "lookups_total"),
			"Render cache lookups by result",
			[]string{"result"}, nil, // hit, miss
		),
		cacheEvictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "render_cache", "evictions_total"),
			"Rendered lines replaced in a full render cache",
			nil, nil,
		),
		openBreakers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "circuit_breaker", "open"),
			"Number of recipients with an open circuit breaker",
			nil, nil,
		),
		poolCaches: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache_pool", "caches"),
			"Render caches in the pool",
			[]string{"state"}, nil, // idle, active
		),
		poolAcquires: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache_pool", "acquires_total"),
			"Total render cache acquisitions",
			nil, nil,
		),
		poolWaits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache_pool", "acquire_waits_total"),
			"Render cache acquisitions that waited for a free cache",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sends
	ch <- c.deliveries
	ch <- c.writeErrors
	ch <- c.dropped
	ch <- c.cacheLookups
	ch <- c.cacheEvictions
	ch <- c.openBreakers
	ch <- c.poolCaches
	ch <- c.poolAcquires
	ch <- c.poolWaits
}

// Collect implements prometheus.Collector. It reads the Source once per call.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.sends, prometheus.CounterValue, float64(s.Sends))
	ch <- prometheus.MustNewConstMetric(c.deliveries, prometheus.CounterValue, float64(s.Deliveries))
	ch <- prometheus.MustNewConstMetric(c.writeErrors, prometheus.CounterValue, float64(s.WriteErrors))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.cacheLookups, prometheus.CounterValue, float64(s.CacheHits), "hit")
	ch <- prometheus.MustNewConstMetric(c.cacheLookups, prometheus.CounterValue, float64(s.CacheMisses), "miss")
	ch <- prometheus.MustNewConstMetric(c.cacheEvictions, prometheus.CounterValue, float64(s.CacheEvictions))

	ch <- prometheus.MustNewConstMetric(c.openBreakers, prometheus.GaugeValue, float64(c.source.OpenBreakers()))

	p := c.source.CachePoolStats()
	ch <- prometheus.MustNewConstMetric(c.poolCaches, prometheus.GaugeValue, float64(p.IdleCaches), "idle")
	ch <- prometheus.MustNewConstMetric(c.poolCaches, prometheus.GaugeValue, float64(p.ActiveCaches), "active")
	ch <- prometheus.MustNewConstMetric(c.poolAcquires, prometheus.CounterValue, float64(p.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.poolWaits, prometheus.CounterValue, float64(p.AcquireWaitCount))
}

// NewRegistry returns a registry holding a Collector for source and the Go
// runtime collectors.
func NewRegistry(source Source) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
	)
	return registry
}

// Handler serves the metrics of registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
