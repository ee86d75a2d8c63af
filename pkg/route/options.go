package route

import (
	"errors"
	"time"

	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/wire"
)

// Transport errors.
var (
	// ErrHostUnreachable is returned by Router.Send for an unknown or
	// disconnected identity.
	ErrHostUnreachable = errors.New("route: host unreachable")

	// ErrNotConnected is returned by Dealer.Send while no connection is up.
	ErrNotConnected = errors.New("route: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("route: socket closed")

	// ErrBadHandshake is returned when a peer's first message is not an identity.
	ErrBadHandshake = errors.New("route: bad handshake")
)

// Options tunes socket behavior. Zero values pick defaults.
type Options struct {
	// ReconnectInterval is the dealer's delay between dial attempts.
	// Default: 500 milliseconds
	ReconnectInterval time.Duration

	// HandshakeTimeout bounds how long the router waits for an identity.
	// Default: 5 seconds
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single message write.
	// Default: 1 second
	WriteTimeout time.Duration

	// InboxSize is the capacity of the inbound message channel.
	// Default: 256
	InboxSize int

	// MaxPart bounds a single inbound part.
	// Default: wire.DefaultMaxPart
	MaxPart int

	// Logger receives connection-level diagnostics.
	Logger log.Logger
}

func (o Options) withDefaults() Options {
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 500 * time.Millisecond
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = time.Second
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 256
	}
	if o.MaxPart <= 0 {
		o.MaxPart = wire.DefaultMaxPart
	}
	if o.Logger == nil {
		o.Logger = log.NewNoopLogger()
	}
	return o
}
