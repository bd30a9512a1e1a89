// Package engine runs the per-connection protocol state machine: the
// fair select over six event sources described in spec §4.1-§4.4 and
// §9. Its shape — one goroutine owning a socket, fed by a dedicated
// read-pump goroutine over a channel, selecting across timers and
// internal channels — is lifted directly from
// go-server/pkg/websocket/client.go's handleConnection/readPump pair,
// generalized from chat broadcast fan-out to Nostr's REQ/EVENT/CLOSE
// semantics.
package engine

import (
	"context"
	"errors"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kofj/nostr-rs-relay/internal/broadcast"
	"github.com/kofj/nostr-rs-relay/internal/conn"
	"github.com/kofj/nostr-rs-relay/internal/dispatch"
	"github.com/kofj/nostr-rs-relay/internal/metrics"
	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
	"github.com/kofj/nostr-rs-relay/internal/notice"
	"github.com/kofj/nostr-rs-relay/internal/protocol"
	"github.com/kofj/nostr-rs-relay/internal/ratelimit"
	"github.com/kofj/nostr-rs-relay/internal/repository"
	"github.com/kofj/nostr-rs-relay/internal/writer"
)

// Config carries the per-connection tunables that ultimately come
// from internal/config.
type Config struct {
	MaxEventBytes       int
	MaxSubsPerConn      int
	SubscriptionsPerMin int
	RejectFutureSeconds *int
	PingInterval        time.Duration
	IdleTimeout         time.Duration
	ResultsChannelSize  int
	NoticeChannelSize   int
	InboundChannelSize  int
}

// resultsChannelDefault matches spec §4.7's "on the order of 20000".
const resultsChannelDefault = 20000

// Engine owns one client connection end to end.
type Engine struct {
	socket     Socket
	client     *conn.ClientConn
	bus        *broadcast.Bus
	writer     *writer.Writer
	dispatcher *dispatch.Dispatcher
	limiter    *ratelimit.Limiter
	m          *metrics.Metrics
	log        zerolog.Logger
	cfg        Config
}

// New builds an Engine for one accepted socket.
func New(socket Socket, ip string, bus *broadcast.Bus, w *writer.Writer, d *dispatch.Dispatcher, m *metrics.Metrics, log zerolog.Logger, cfg Config) *Engine {
	if cfg.ResultsChannelSize == 0 {
		cfg.ResultsChannelSize = resultsChannelDefault
	}
	if cfg.NoticeChannelSize == 0 {
		cfg.NoticeChannelSize = 16
	}
	if cfg.InboundChannelSize == 0 {
		cfg.InboundChannelSize = 64
	}
	client := conn.New(ip, cfg.MaxSubsPerConn)
	return &Engine{
		socket:     socket,
		client:     client,
		bus:        bus,
		writer:     w,
		dispatcher: d,
		limiter:    ratelimit.New(cfg.SubscriptionsPerMin),
		m:          m,
		log:        log.With().Str("conn", client.Prefix()).Logger(),
		cfg:        cfg,
	}
}

// Run drives the connection until the socket closes, the connection
// idles out, or shutdown fires. It never returns an error a caller
// needs to act on; every termination path is recorded as a metric and
// logged.
func (e *Engine) Run(ctx context.Context, shutdown <-chan struct{}) {
	e.m.ConnectionsTotal.Inc()

	busSub := e.bus.Subscribe()
	defer busSub.Unsubscribe()

	noticeCh := make(chan notice.Notice, e.cfg.NoticeChannelSize)
	resultsCh := make(chan repository.QueryResult, e.cfg.ResultsChannelSize)
	running := make(map[string]chan struct{})
	defer func() {
		for _, cancel := range running {
			close(cancel)
		}
	}()

	inbound := make(chan []byte, e.cfg.InboundChannelSize)
	readErr := make(chan error, 1)
	go e.readPump(inbound, readErr)

	pingInterval := e.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 5 * time.Minute
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	idleTimeout := e.cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 20 * time.Minute
	}
	lastActivity := time.Now()

	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	for {
		select {
		case <-shutdown:
			e.m.DisconnectsTotal.WithLabelValues("shutdown").Inc()
			return

		case <-pingTicker.C:
			if time.Since(lastActivity) > idleTimeout {
				e.m.DisconnectsTotal.WithLabelValues("timeout").Inc()
				return
			}
			if err := e.socket.WriteMessage(PingMessage, nil); err != nil {
				e.m.DisconnectsTotal.WithLabelValues("error").Inc()
				return
			}

		case n := <-noticeCh:
			e.writeNotice(n)

		case r := <-resultsCh:
			e.deliverQueryResult(r, running)

		case ev := <-busSub.Events:
			e.deliverRealtime(ev)

		case raw, ok := <-inbound:
			if !ok {
				e.m.DisconnectsTotal.WithLabelValues(classifyReadError(<-readErr)).Inc()
				return
			}
			lastActivity = time.Now()
			e.handleInbound(connCtx, raw, noticeCh, resultsCh, running)
		}
	}
}

func (e *Engine) readPump(inbound chan<- []byte, readErr chan<- error) {
	defer close(inbound)
	for {
		_, msg, err := e.socket.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		inbound <- msg
	}
}

func classifyReadError(err error) string {
	if err == nil {
		return "normal"
	}
	if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		return "normal"
	}
	return "error"
}

func (e *Engine) writeNotice(n notice.Notice) {
	frame, err := n.Frame()
	if err != nil {
		e.log.Error().Err(err).Msg("encode notice frame")
		return
	}
	if err := e.socket.WriteMessage(TextMessage, frame); err != nil {
		e.log.Debug().Err(err).Msg("write notice failed")
	}
}

func (e *Engine) deliverQueryResult(r repository.QueryResult, running map[string]chan struct{}) {
	if _, stillRunning := running[r.SubID]; !stillRunning {
		return // CLOSE raced the result; drop it silently (spec §8 property)
	}
	if r.EOSE {
		delete(running, r.SubID)
		frame, err := eoseFrame(r.SubID)
		if err != nil {
			return
		}
		_ = e.socket.WriteMessage(TextMessage, frame)
		return
	}
	frame, err := eventFrame(r.SubID, r.Event)
	if err != nil {
		return
	}
	if err := e.socket.WriteMessage(TextMessage, frame); err == nil {
		e.m.EventsSentTotal.WithLabelValues("db").Inc()
	}
}

func (e *Engine) deliverRealtime(ev nostrcore.Event) {
	for subID, sub := range e.client.Snapshot() {
		if !sub.InterestedIn(ev) {
			continue
		}
		frame, err := eventFrame(subID, &ev)
		if err != nil {
			continue
		}
		if err := e.socket.WriteMessage(TextMessage, frame); err == nil {
			e.m.EventsSentTotal.WithLabelValues("realtime").Inc()
		}
	}
}

// handleInbound parses and dispatches one inbound frame (spec §4.1-4.4).
func (e *Engine) handleInbound(ctx context.Context, raw []byte, noticeCh chan notice.Notice, resultsCh chan repository.QueryResult, running map[string]chan struct{}) {
	cmd, err := protocol.Parse(raw, e.cfg.MaxEventBytes)
	if err != nil {
		var tooLarge *protocol.EventMaxLengthError
		if errors.As(err, &tooLarge) {
			e.writeNotice(notice.Message(tooLarge.Error()))
			return
		}
		e.writeNotice(notice.Message("could not parse command"))
		return
	}

	switch c := cmd.(type) {
	case protocol.EventCmd:
		e.handleEvent(ctx, c, noticeCh)
	case protocol.ReqCmd:
		e.handleReq(ctx, c, resultsCh, running)
	case protocol.CloseCmd:
		e.handleClose(c, running)
	}
}

func (e *Engine) handleEvent(ctx context.Context, c protocol.EventCmd, noticeCh chan notice.Notice) {
	e.m.CmdEventTotal.Inc()
	ev := c.Event

	if err := ev.Validate(); err != nil {
		e.writeNotice(notice.Invalid(ev.ID, err.Error()))
		return
	}
	if !ev.IsValidTimestamp(time.Now().Unix(), e.cfg.RejectFutureSeconds) {
		if e.cfg.RejectFutureSeconds != nil {
			e.writeNotice(notice.Invalid(ev.ID, "event created_at too far in the future"))
		}
		// IsValidTimestamp accepts every event when the window is nil,
		// so a rejection only happens, with a notice, when a window is set.
		return
	}

	if err := e.writer.Submit(ctx, writer.SubmittedEvent{Event: ev, Result: noticeCh}); err != nil {
		e.log.Debug().Err(err).Msg("submit event to writer")
	}
}

func (e *Engine) handleReq(ctx context.Context, c protocol.ReqCmd, resultsCh chan repository.QueryResult, running map[string]chan struct{}) {
	e.m.CmdReqTotal.Inc()
	sub := c.Sub

	if e.client.HasSubscription(sub.ID) {
		return // duplicate REQ ignored uniformly (spec §9 open question, ignore branch)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return
	}
	if err := e.client.Subscribe(sub); err != nil {
		e.writeNotice(notice.Message(err.Error()))
		return
	}

	cancel := make(chan struct{})
	running[sub.ID] = cancel

	if sub.NeedsHistory(time.Now().Unix()) {
		e.dispatcher.Submit(ctx, sub, e.client.Prefix(), resultsCh, cancel)
		return
	}
	go func() {
		select {
		case resultsCh <- repository.QueryResult{SubID: sub.ID, EOSE: true}:
		case <-cancel:
		}
	}()
}

func (e *Engine) handleClose(c protocol.CloseCmd, running map[string]chan struct{}) {
	e.m.CmdCloseTotal.Inc()
	if cancel, ok := running[c.SubID]; ok {
		close(cancel)
		delete(running, c.SubID)
	}
	e.client.Unsubscribe(c.SubID)
}
