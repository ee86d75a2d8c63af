package heartlink

import (
	"errors"
	"fmt"
	"time"
)

// Role selects which side of the heartbeat protocol a Service runs.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// Default values for Config.
const (
	DefaultEndpoint        = "127.0.0.1:6801"
	DefaultInterval        = 2 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Configuration errors.
var (
	ErrInvalidRole     = errors.New("role must be server or client")
	ErrMissingIdentity = errors.New("client identity is required")
	ErrMissingPeers    = errors.New("server needs at least one peer")
	ErrMissingEndpoint = errors.New("endpoint is required")
)

// Config holds the settings of a Service.
type Config struct {
	// Role is RoleServer or RoleClient.
	Role Role

	// Identity is the client's fixed identity. Ignored by the server.
	Identity string

	// Endpoint is the address the server binds and the client dials.
	// Default: DefaultEndpoint
	Endpoint string

	// Peers is the server's fixed list of client identities.
	Peers []string

	// Interval is the server's PING period.
	// Default: DefaultInterval
	Interval time.Duration

	// ServerTimeout lets a client report LinkDown after this much silence.
	// Zero disables it.
	ServerTimeout time.Duration

	// QueueCapacity bounds the normal lane of the event queue. Zero is unbounded.
	QueueCapacity int

	// ShutdownTimeout bounds the wait for background tasks on exit.
	// Default: DefaultShutdownTimeout
	ShutdownTimeout time.Duration
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks the configuration for the selected role.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity must not be negative: %d", c.QueueCapacity)
	}
	switch c.Role {
	case RoleServer:
		if len(c.Peers) == 0 {
			return ErrMissingPeers
		}
		seen := make(map[string]bool, len(c.Peers))
		for _, p := range c.Peers {
			if p == "" {
				return errors.New("peer identity must not be empty")
			}
			if seen[p] {
				return fmt.Errorf("duplicate peer identity %q", p)
			}
			seen[p] = true
		}
	case RoleClient:
		if c.Identity == "" {
			return ErrMissingIdentity
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, c.Role)
	}
	return nil
}
