package heartlink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/heartlink/pkg/heartlink"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(RoleClient)
	if cfg.Endpoint != heartlink.DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, heartlink.DefaultEndpoint)
	}
	if cfg.Interval != heartlink.DefaultInterval {
		t.Errorf("Interval = %v, want %v", cfg.Interval, heartlink.DefaultInterval)
	}
	if err := cfg.Validate(); !errors.Is(err, heartlink.ErrMissingIdentity) {
		t.Errorf("Validate() = %v, want ErrMissingIdentity", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	err := Run(context.Background(), DefaultConfig(RoleServer))
	if !errors.Is(err, heartlink.ErrMissingPeers) {
		t.Fatalf("Run() = %v, want ErrMissingPeers", err)
	}
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	cfg := DefaultConfig(RoleServer)
	cfg.Endpoint = "127.0.0.1:0"
	cfg.Peers = []string{"A"}
	cfg.Interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(200*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
