// Command relay runs the Nostr relay core: protocol engine, writer
// pipeline, query dispatcher, and the HTTP/WebSocket surface. Wiring
// follows go-server/cmd/main.go's load-config-then-start-server shape.
package main

import (
	"context"
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kofj/nostr-rs-relay/internal/admission"
	"github.com/kofj/nostr-rs-relay/internal/adminauth"
	"github.com/kofj/nostr-rs-relay/internal/broadcast"
	"github.com/kofj/nostr-rs-relay/internal/config"
	"github.com/kofj/nostr-rs-relay/internal/dispatch"
	"github.com/kofj/nostr-rs-relay/internal/engine"
	"github.com/kofj/nostr-rs-relay/internal/info"
	"github.com/kofj/nostr-rs-relay/internal/logging"
	"github.com/kofj/nostr-rs-relay/internal/metadatabus"
	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/nip05"
	"github.com/kofj/nostr-rs-relay/internal/repository/memrepo"
	"github.com/kofj/nostr-rs-relay/internal/supervisor"
	"github.com/kofj/nostr-rs-relay/internal/transport"
	"github.com/kofj/nostr-rs-relay/internal/writer"
)

func main() {
	log := logging.New(logging.Config{Level: "info", Pretty: false})

	cfg, err := config.Load(&log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log = logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogFormat == "pretty"})
	cfg.LogConfig(log)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	repo := memrepo.New()
	bus := broadcast.New(cfg.BroadcastBufferSize)

	var metaBus metadatabus.Bus
	if cfg.NATSURL != "" {
		metaBus, err = metadatabus.NewNATS(cfg.NATSURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("could not connect metadata bus, falling back to in-process")
			metaBus = metadatabus.NewLocal()
		}
	} else {
		metaBus = metadatabus.NewLocal()
	}

	policy := &writer.Policy{}
	w := writer.New(repo, bus, metaBus, policy, m, log, cfg.EventPersistBufferSize)
	d := dispatch.New(repo, cfg.MaxBlockingThreads, m)

	var verifierSvc *nip05.Service
	if cfg.NIP05VerificationEnabled {
		verifier := nip05.NewHTTPVerifier(0)
		verifierSvc = nip05.NewService(metaBus, bus, verifier, log)
	}

	var rejectFuture *int
	if cfg.RejectFutureSeconds > 0 {
		rejectFuture = &cfg.RejectFutureSeconds
	}

	doc := info.New(cfg.RelayName, cfg.RelayDescription, cfg.RelayPubkey, cfg.RelayContact, "0.1.0")

	gate := admission.New(cfg.CPURejectThreshold, cfg.MemRejectThreshold)
	metricsGate := adminauth.New(cfg.MetricsJWTSecret)

	tcfg := transport.Config{
		RemoteIPHeader: cfg.RemoteIPHeader,
		InfoDocument:   doc,
		EngineConfig: engine.Config{
			MaxEventBytes:       cfg.MaxEventBytes,
			MaxSubsPerConn:      cfg.MaxSubscriptionsPerConn,
			SubscriptionsPerMin: cfg.SubscriptionsPerMin,
			RejectFutureSeconds: rejectFuture,
			PingInterval:        time.Duration(cfg.PingIntervalSeconds) * time.Second,
			IdleTimeout:         time.Duration(cfg.IdleTimeoutSeconds) * time.Second,
		},
	}

	t := transport.New(tcfg, bus, w, d, gate, metricsGate, m, registry, log)
	sup := supervisor.New(cfg.Addr, t, w, verifierSvc, log)

	if err := sup.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("relay exited with error")
		os.Exit(1)
	}
}
