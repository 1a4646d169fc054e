// Package metrics defines the admin-only Prometheus registry: counters for
// uploads, dedup hits, rexpump updates, and RPC failures, scraped at
// /admin/metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the counters the upload and rexpump engines increment. It
// wraps a dedicated prometheus.Registry rather than the global default so
// scraping it never leaks process-wide Go runtime metrics this service
// doesn't promise as part of its admin surface.
type Registry struct {
	reg *prometheus.Registry

	UploadsTotal        *prometheus.CounterVec
	DedupHitsTotal      prometheus.Counter
	RexPumpUpdatesTotal *prometheus.CounterVec
	RPCFailuresTotal    *prometheus.CounterVec
}

// New builds a Registry with all counters registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediavault_uploads_total",
			Help: "Completed media uploads, labeled by path (simple|chunked) and outcome (ok|error).",
		}, []string{"path", "outcome"}),
		DedupHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediavault_dedup_hits_total",
			Help: "Uploads short-circuited by a content-hash dedup hit.",
		}),
		RexPumpUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediavault_rexpump_updates_total",
			Help: "Token metadata updates, labeled by actor (owner|admin) and outcome (ok|error).",
		}, []string{"actor", "outcome"}),
		RPCFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediavault_rpc_failures_total",
			Help: "Outbound chain RPC failures, labeled by endpoint (primary|fallback).",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(r.UploadsTotal, r.DedupHitsTotal, r.RexPumpUpdatesTotal, r.RPCFailuresTotal)
	return r
}

// Handler serves the text exposition format for this registry only.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
