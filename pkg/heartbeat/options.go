package heartbeat

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/wire"
)

// DefaultInterval is the time between two PING rounds.
const DefaultInterval = 2 * time.Second

// Recorder observes heartbeat traffic, typically to export metrics.
// Methods are called from the task goroutine and must not block.
type Recorder interface {
	// HeartbeatSent is called after a frame was handed to the transport.
	HeartbeatSent(peer string, tag wire.Tag)

	// HeartbeatReceived is called for every well-formed frame from a known peer.
	HeartbeatReceived(peer string, tag wire.Tag)

	// RouteFailed is called when a frame could not be routed to peer.
	RouteFailed(peer string)

	// MalformedFrame is called for an empty or unknown payload.
	MalformedFrame(peer string)

	// LinkChanged is called when the task sees a link go up or down.
	LinkChanged(peer string, up bool)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) HeartbeatSent(string, wire.Tag)     {}
func (NopRecorder) HeartbeatReceived(string, wire.Tag) {}
func (NopRecorder) RouteFailed(string)                 {}
func (NopRecorder) MalformedFrame(string)              {}
func (NopRecorder) LinkChanged(string, bool)           {}

// Option configures a heartbeat task.
type Option func(*options)

type options struct {
	clock    clock.Clock
	logger   log.Logger
	recorder Recorder
}

func defaultOptions() options {
	return options{
		clock:    clock.New(),
		logger:   log.NewNoopLogger(),
		recorder: NopRecorder{},
	}
}

// WithClock sets the clock driving ticks and timeouts.
// Tests pass a *clock.Mock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the traffic recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}
