package heartbeat

import (
	"context"
	"time"

	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/route"
	"github.com/bft-labs/heartlink/pkg/wire"
)

// DefaultServerName is the peer name carried by client link events.
const DefaultServerName = "server"

// minTimeoutCheck bounds how often the server timeout is checked.
const minTimeoutCheck = time.Millisecond

// ClientConfig configures the client heartbeat task.
type ClientConfig struct {
	// Identity is the fixed identity announced to the server.
	Identity string

	// Endpoint is the server's TCP address.
	Endpoint string

	// ServerName is the peer name used in LinkUp and LinkDown events.
	// Default: DefaultServerName
	ServerName string

	// ServerTimeout, when positive, posts one LinkDown after no PING has
	// arrived for that long. Zero disables the check.
	ServerTimeout time.Duration

	// Transport tunes the dealer socket.
	Transport route.Options
}

// ClientTask answers every PING with a PONG and reports the server link.
type ClientTask struct {
	cfg    ClientConfig
	events event.Poster
	opts   options
	logger log.Logger
}

// NewClientTask creates the client task. Events are posted to events.
func NewClientTask(cfg ClientConfig, events event.Poster, opts ...Option) *ClientTask {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.ServerName == "" {
		cfg.ServerName = DefaultServerName
	}
	logger := log.Named(o.logger, "heartbeat.client")
	if cfg.Transport.Logger == nil {
		cfg.Transport.Logger = logger
	}
	return &ClientTask{
		cfg:    cfg,
		events: events,
		opts:   o,
		logger: logger,
	}
}

// Name implements task.Task.
func (c *ClientTask) Name() string { return "heartbeat-client" }

// Run dials the server and echoes heartbeats until ctx is cancelled.
func (c *ClientTask) Run(ctx context.Context) error {
	dealer := route.Dial(c.cfg.Identity, c.cfg.Endpoint, c.cfg.Transport)
	defer dealer.Close()

	c.logger.Info("heartbeat client started",
		log.String("identity", c.cfg.Identity),
		log.String("endpoint", c.cfg.Endpoint),
	)

	var timeoutC <-chan time.Time
	if c.cfg.ServerTimeout > 0 {
		check := c.opts.clock.Ticker(max(c.cfg.ServerTimeout/4, minTimeoutCheck))
		defer check.Stop()
		timeoutC = check.C
	}

	var (
		up       bool
		lastPing time.Time
	)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("heartbeat client stopped")
			return nil

		case msg, ok := <-dealer.Messages():
			if !ok {
				return nil
			}
			if !c.handle(dealer, msg) {
				continue
			}
			lastPing = c.opts.clock.Now()
			if !up {
				up = true
				c.opts.recorder.LinkChanged(c.cfg.ServerName, true)
			}

		case now := <-timeoutC:
			if up && now.Sub(lastPing) >= c.cfg.ServerTimeout {
				up = false
				c.logger.Warn("server silent", log.Duration("timeout", c.cfg.ServerTimeout))
				c.post(event.LinkDown(c.cfg.ServerName))
				c.opts.recorder.LinkChanged(c.cfg.ServerName, false)
			}
		}
	}
}

// handle processes one inbound frame and reports whether it was a PING.
func (c *ClientTask) handle(dealer *route.Dealer, msg wire.Message) bool {
	server := c.cfg.ServerName
	tag, err := wire.DecodeHeartbeat(msg.Payload())
	if err != nil {
		c.logger.Debug("malformed frame dropped", log.Err(err))
		c.opts.recorder.MalformedFrame(server)
		return false
	}
	c.opts.recorder.HeartbeatReceived(server, tag)
	if tag != wire.Ping {
		c.logger.Trace("ignoring non-ping frame", log.String("tag", tag.String()))
		return false
	}

	c.post(event.LinkUp(server))

	if err := dealer.Send(wire.Heartbeat(wire.Pong)); err != nil {
		c.logger.Debug("pong not sent", log.Err(err))
		c.opts.recorder.RouteFailed(server)
		return true
	}
	c.opts.recorder.HeartbeatSent(server, wire.Pong)
	return true
}

func (c *ClientTask) post(ev event.Event) {
	if err := c.events.Enqueue(ev); err != nil {
		c.logger.Warn("event dropped", log.String("event", ev.String()), log.Err(err))
	}
}
