// Package transport implements the relay's HTTP surface: WebSocket
// upgrade, NIP-11 relay info, the plain-text landing page, and the
// Prometheus /metrics endpoint (spec §6). Grounded on
// go-server/internal/server/server.go's mux-based routing and
// go-server/pkg/websocket/client.go's upgrader configuration.
package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kofj/nostr-rs-relay/internal/adminauth"
	"github.com/kofj/nostr-rs-relay/internal/admission"
	"github.com/kofj/nostr-rs-relay/internal/broadcast"
	"github.com/kofj/nostr-rs-relay/internal/dispatch"
	"github.com/kofj/nostr-rs-relay/internal/engine"
	"github.com/kofj/nostr-rs-relay/internal/info"
	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/writer"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries transport-layer settings derived from internal/config.
type Config struct {
	RemoteIPHeader string
	EngineConfig   engine.Config
	InfoDocument   info.Document
}

// Server wires the relay's HTTP handlers together.
type Server struct {
	cfg         Config
	upgrader    websocket.Upgrader
	bus         *broadcast.Bus
	writer      *writer.Writer
	dispatcher  *dispatch.Dispatcher
	gate        *admission.Gate
	metricsGate *adminauth.Gate
	m           *metrics.Metrics
	registry    *prometheus.Registry
	log         zerolog.Logger

	// connCtx is the parent context handed to every connection engine.
	// It must outlive the individual HTTP request that upgraded the
	// socket, so it is derived from context.Background(), not from
	// the request's own Context() (which net/http cancels the moment
	// the upgrading handler returns).
	connCtx    context.Context
	connCancel context.CancelFunc

	// Shutdown is closed by the supervisor to signal every live
	// connection engine to disconnect.
	Shutdown chan struct{}
}

// New builds a Server.
func New(cfg Config, bus *broadcast.Bus, w *writer.Writer, d *dispatch.Dispatcher, gate *admission.Gate, metricsGate *adminauth.Gate, m *metrics.Metrics, registry *prometheus.Registry, log zerolog.Logger) *Server {
	connCtx, connCancel := context.WithCancel(context.Background())
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		bus:         bus,
		writer:      w,
		dispatcher:  d,
		gate:        gate,
		metricsGate: metricsGate,
		m:           m,
		registry:    registry,
		log:         log,
		connCtx:     connCtx,
		connCancel:  connCancel,
		Shutdown:    make(chan struct{}),
	}
}

// Close cancels the context handed to every connection engine. The
// supervisor calls this once it has closed Shutdown so the server's
// goroutines don't outlive the process shutting down.
func (s *Server) Close() {
	s.connCancel()
}

// Mux builds the HTTP handler tree.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.Handle("/metrics", s.metricsHandler())
	return mux
}

func (s *Server) metricsHandler() http.Handler {
	base := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsGate != nil {
			if err := s.metricsGate.Authorize(r); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		base.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Nothing here.", http.StatusNotFound)
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/nostr+json") {
		w.Header().Set("Content-Type", "application/nostr+json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		body, err := s.cfg.InfoDocument.Marshal()
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Please use a Nostr client to connect."))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.gate != nil {
		if ok, reason := s.gate.Admit(); !ok {
			s.log.Warn().Str("reason", reason).Msg("rejecting connection, relay overloaded")
			http.Error(w, "relay overloaded", http.StatusServiceUnavailable)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ip := clientIP(r, s.cfg.RemoteIPHeader)
	eng := engine.New(conn, ip, s.bus, s.writer, s.dispatcher, s.m, s.log, s.cfg.EngineConfig)
	go eng.Run(s.connCtx, s.Shutdown)
}

// clientIP derives the caller's IP from the configured forwarded-for
// header if present, else falls back to the socket's remote address
// (spec §6).
func clientIP(r *http.Request, header string) string {
	if header != "" {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	return r.RemoteAddr
}
