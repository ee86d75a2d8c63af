package heartbeat

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/liveness"
	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/route"
	"github.com/bft-labs/heartlink/pkg/task"
	"github.com/bft-labs/heartlink/pkg/wire"
)

// ServerConfig configures the server heartbeat task.
type ServerConfig struct {
	// Endpoint is the TCP address the router binds, e.g. "0.0.0.0:6801".
	Endpoint string

	// Peers is the fixed list of client identities to poll, in PING order.
	Peers []string

	// Interval is the time between PING rounds.
	// Default: DefaultInterval
	Interval time.Duration

	// Transport tunes the router socket.
	Transport route.Options
}

// ServerTask polls every configured peer with PING and turns PONG arrivals
// and absences into LinkUp and LinkDown events.
type ServerTask struct {
	cfg    ServerConfig
	events event.Poster
	opts   options
	logger log.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewServerTask creates the server task. Events are posted to events.
func NewServerTask(cfg ServerConfig, events event.Poster, opts ...Option) *ServerTask {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := log.Named(o.logger, "heartbeat.server")
	if cfg.Transport.Logger == nil {
		cfg.Transport.Logger = logger
	}
	return &ServerTask{
		cfg:    cfg,
		events: events,
		opts:   o,
		logger: logger,
	}
}

// Name implements task.Task.
func (s *ServerTask) Name() string { return "heartbeat-server" }

// Addr returns the bound address, or nil before the router is up.
func (s *ServerTask) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run binds the router and runs the PING loop until ctx is cancelled.
// Transport errors are logged and absorbed.
func (s *ServerTask) Run(ctx context.Context) error {
	router, err := s.bind(ctx)
	if err != nil {
		return nil
	}
	defer func() {
		_ = router.Close()
		s.mu.Lock()
		s.addr = nil
		s.mu.Unlock()
	}()

	tracker := liveness.NewTracker(s.cfg.Peers)
	ticker := s.opts.clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("heartbeat server started",
		log.String("endpoint", router.Addr().String()),
		log.Int("peers", len(tracker.Peers())),
		log.Duration("interval", s.cfg.Interval),
	)

	s.tick(router, tracker)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("heartbeat server stopped")
			return nil
		case <-ticker.C:
			s.tick(router, tracker)
		case msg, ok := <-router.Messages():
			if !ok {
				return nil
			}
			s.handle(msg, tracker)
		}
	}
}

// bind retries until the endpoint is bound or ctx is cancelled.
func (s *ServerTask) bind(ctx context.Context) (*route.Router, error) {
	backoff := task.NewBackoff(s.cfg.Interval/4, s.cfg.Interval)
	for {
		router, err := route.Listen(s.cfg.Endpoint, s.cfg.Transport)
		if err == nil {
			s.mu.Lock()
			s.addr = router.Addr()
			s.mu.Unlock()
			return router, nil
		}

		wait := backoff.Next()
		s.logger.Warn("bind failed, retrying",
			log.String("endpoint", s.cfg.Endpoint),
			log.Duration("retry_in", wait),
			log.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.opts.clock.After(wait):
		}
	}
}

// tick decays every peer in configuration order and sends each a PING.
func (s *ServerTask) tick(router *route.Router, tracker *liveness.Tracker) {
	for _, peer := range tracker.Peers() {
		if tracker.Decay(peer) == liveness.Down {
			s.post(event.LinkDown(peer))
			s.opts.recorder.LinkChanged(peer, false)
		}

		err := router.Send(wire.Routed(peer, wire.Ping))
		if err != nil {
			// an away peer is usually just not connected
			level := s.logger.Debug
			if !errors.Is(err, route.ErrHostUnreachable) {
				level = s.logger.Warn
			}
			level("ping not routed", log.Peer(peer), log.Err(err))
			s.opts.recorder.RouteFailed(peer)
			continue
		}
		s.opts.recorder.HeartbeatSent(peer, wire.Ping)
	}
}

func (s *ServerTask) handle(msg wire.Message, tracker *liveness.Tracker) {
	peer := msg.Identity()
	if !tracker.Known(peer) {
		s.logger.Debug("frame from unknown identity dropped", log.Peer(peer))
		return
	}

	var payload []byte
	if len(msg) >= 2 {
		payload = msg.Payload()
	}
	tag, err := wire.DecodeHeartbeat(payload)
	if err != nil {
		s.logger.Debug("malformed frame dropped", log.Peer(peer), log.Err(err))
		s.opts.recorder.MalformedFrame(peer)
		return
	}
	s.opts.recorder.HeartbeatReceived(peer, tag)

	if tag != wire.Pong {
		s.logger.Trace("ignoring non-pong frame", log.Peer(peer), log.String("tag", tag.String()))
		return
	}
	if tracker.Pong(peer) == liveness.Up {
		s.post(event.LinkUp(peer))
		s.opts.recorder.LinkChanged(peer, true)
	}
}

func (s *ServerTask) post(ev event.Event) {
	if err := s.events.Enqueue(ev); err != nil {
		s.logger.Warn("event dropped", log.String("event", ev.String()), log.Err(err))
		return
	}
	s.logger.Info("link event", log.String("event", ev.String()))
}
