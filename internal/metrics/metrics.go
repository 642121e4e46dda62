// Package metrics holds the prometheus collectors for sync and feed outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cragmap"

// Collector owns its registry so tests can build as many as they like.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	LocalWrites   *prometheus.CounterVec
	LocalFailures *prometheus.CounterVec
	RemoteMirror  *prometheus.CounterVec
	RemotePulled  *prometheus.CounterVec
	FeedPublished *prometheus.CounterVec
	FeedRefresh   *prometheus.CounterVec
	CatalogSites  prometheus.Gauge
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		LocalWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_writes_total",
			Help:      "Collection writes persisted to the local cache.",
		}, []string{"collection", "op"}),
		LocalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_failures_total",
			Help:      "Local cache reads or writes that failed and were degraded.",
		}, []string{"collection", "op"}),
		RemoteMirror: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_mirror_total",
			Help:      "Remote mirror attempts by outcome.",
		}, []string{"collection", "op", "status"}),
		RemotePulled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_pulled_records_total",
			Help:      "Remote records merged into the local collection by a pull.",
		}, []string{"collection"}),
		FeedPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_published_total",
			Help:      "Activities written to the shared feed by outcome.",
		}, []string{"kind", "status"}),
		FeedRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refresh_total",
			Help:      "Feed refreshes by outcome.",
		}, []string{"status"}),
		CatalogSites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_sites",
			Help:      "Sites currently in the catalog.",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.LocalWrites,
		c.LocalFailures,
		c.RemoteMirror,
		c.RemotePulled,
		c.FeedPublished,
		c.FeedRefresh,
		c.CatalogSites,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) LocalWrite(collection, op string) {
	if c == nil {
		return
	}
	c.LocalWrites.WithLabelValues(collection, op).Inc()
}

func (c *Collector) LocalFailure(collection, op string) {
	if c == nil {
		return
	}
	c.LocalFailures.WithLabelValues(collection, op).Inc()
}

func (c *Collector) Mirror(collection, op string, err error) {
	if c == nil {
		return
	}
	c.RemoteMirror.WithLabelValues(collection, op, status(err)).Inc()
}

func (c *Collector) Pulled(collection string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.RemotePulled.WithLabelValues(collection).Add(float64(n))
}

func (c *Collector) Published(kind string, err error) {
	if c == nil {
		return
	}
	c.FeedPublished.WithLabelValues(kind, status(err)).Inc()
}

func (c *Collector) Refreshed(err error) {
	if c == nil {
		return
	}
	c.FeedRefresh.WithLabelValues(status(err)).Inc()
}

func (c *Collector) SetCatalogSites(n int) {
	if c == nil {
		return
	}
	c.CatalogSites.Set(float64(n))
}
