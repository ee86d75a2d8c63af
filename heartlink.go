// Package heartlink runs a fixed-identity heartbeat node with default
// logging. Embedders that need plugins, metrics or their own logger should
// use pkg/heartlink directly.
//
// Example usage:
//
//	cfg := heartlink.DefaultConfig(heartlink.RoleServer)
//	cfg.Peers = []string{"A", "B", "C"}
//	if err := heartlink.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
package heartlink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bft-labs/heartlink/pkg/heartlink"
	"github.com/bft-labs/heartlink/pkg/log"
)

// Config holds the configuration of a heartbeat node.
type Config = heartlink.Config

// Roles accepted in Config.Role.
const (
	RoleServer = heartlink.RoleServer
	RoleClient = heartlink.RoleClient
)

// DefaultConfig returns a Config for role with default endpoint, interval
// and shutdown timeout. Servers still need Peers and clients an Identity.
func DefaultConfig(role heartlink.Role) Config {
	cfg := Config{Role: role}
	cfg.SetDefaults()
	return cfg
}

// Run validates cfg and runs the node until ctx is cancelled.
// Logs go to stderr at info level.
func Run(ctx context.Context, cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	svc, err := heartlink.New(cfg, heartlink.WithLogger(log.NewZerologAdapter(zerolog.InfoLevel)))
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

// Version is the heartlink release.
const Version = heartlink.Version
