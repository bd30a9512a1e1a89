// Package metrics registers and exposes the relay's Prometheus metric
// families. Names are preserved for compatibility with the source
// relay (spec §6) the way create_metrics() in the original server.rs
// registers them, adapted to client_golang's API the way
// go-server/internal/metrics wires up its own counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every Prometheus collector the relay core updates.
type Metrics struct {
	QuerySeconds      prometheus.Histogram
	FilterSeconds     prometheus.Histogram
	EventsWriteSeconds prometheus.Histogram
	EventsSentTotal   *prometheus.CounterVec
	ConnectionsTotal  prometheus.Counter
	DBConnections     prometheus.Gauge
	QueryAbortTotal   *prometheus.CounterVec
	CmdReqTotal       prometheus.Counter
	CmdEventTotal     prometheus.Counter
	CmdCloseTotal     prometheus.Counter
	DisconnectsTotal  *prometheus.CounterVec
	SpamsTotal        *prometheus.CounterVec
}

// New creates and registers every relay metric family on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		QuerySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "nostr_query_seconds",
			Help: "Subscription response times",
		}),
		FilterSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "nostr_filter_seconds",
			Help: "Filter SQL query times",
		}),
		EventsWriteSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "nostr_events_write_seconds",
			Help: "Event writing response times",
		}),
		EventsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nostr_events_sent_total",
			Help: "Events sent to clients",
		}, []string{"source"}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nostr_connections_total",
			Help: "New connections",
		}),
		DBConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nostr_db_connections",
			Help: "Active database connections",
		}),
		QueryAbortTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nostr_query_abort_total",
			Help: "Aborted queries",
		}, []string{"reason"}),
		CmdReqTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nostr_cmd_req_total",
			Help: "REQ commands",
		}),
		CmdEventTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nostr_cmd_event_total",
			Help: "EVENT commands",
		}),
		CmdCloseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nostr_cmd_close_total",
			Help: "CLOSE commands",
		}),
		DisconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nostr_disconnects_total",
			Help: "Client disconnects",
		}, []string{"reason"}),
		SpamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nostr_spams_total",
			Help: "EVENT spams",
		}, []string{"author"}),
	}

	registry.MustRegister(
		m.QuerySeconds,
		m.FilterSeconds,
		m.EventsWriteSeconds,
		m.EventsSentTotal,
		m.ConnectionsTotal,
		m.DBConnections,
		m.QueryAbortTotal,
		m.CmdReqTotal,
		m.CmdEventTotal,
		m.CmdCloseTotal,
		m.DisconnectsTotal,
		m.SpamsTotal,
	)

	return m
}
