// Package supervisor owns process-level startup and shutdown: binding
// the listener, running the writer and verifier as background tasks,
// installing signal handlers, and coordinating a graceful stop across
// all of them (spec §4.8). Adapted from
// go-server/internal/server/server.go's Start/Shutdown/waitForShutdown
// trio.
package supervisor

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kofj/nostr-rs-relay/internal/nip05"
	"github.com/kofj/nostr-rs-relay/internal/transport"
	"github.com/kofj/nostr-rs-relay/internal/writer"
)

// shutdownGrace bounds how long the HTTP server and background tasks
// are given to wind down once shutdown begins.
const shutdownGrace = 30 * time.Second

// Supervisor starts and stops the relay's background tasks and HTTP
// listener as a unit.
type Supervisor struct {
	addr       string
	httpServer *http.Server
	transport  *transport.Server
	writer     *writer.Writer
	verifier   *nip05.Service
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Supervisor bound to addr, serving t.Mux().
func New(addr string, t *transport.Server, w *writer.Writer, verifier *nip05.Service, log zerolog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		addr:      addr,
		transport: t,
		writer:    w,
		verifier:  verifier,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: t.Mux(),
		},
	}
}

// Run starts every background task and the HTTP listener, then blocks
// until SIGINT, SIGTERM, or ctx is cancelled, at which point it
// performs an orderly shutdown and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writer.Run(s.ctx)
	}()

	if s.verifier != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.verifier.Run(s.ctx)
		}()
	}

	serveErr := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().Str("addr", s.addr).Msg("relay listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.log.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case <-ctx.Done():
		s.log.Info().Msg("shutdown requested by caller context")
	case err := <-serveErr:
		s.log.Error().Err(err).Msg("http server failed")
		return err
	}

	return s.shutdown()
}

func (s *Supervisor) shutdown() error {
	close(s.transport.Shutdown)
	s.transport.Close()
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("http server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("shutdown complete")
	case <-shutdownCtx.Done():
		s.log.Warn().Msg("shutdown grace period exceeded")
	}
	return nil
}
