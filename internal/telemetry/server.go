package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bft-labs/heartlink/pkg/heartlink"
	"github.com/bft-labs/heartlink/pkg/log"
)

// Plugin serves /metrics for the lifetime of a heartlink.Service.
type Plugin struct {
	addr    string
	metrics *Metrics
	logger  log.Logger
	srv     *http.Server
	ln      net.Listener
	done    chan struct{}
}

// NewPlugin creates a metrics endpoint plugin listening on addr.
func NewPlugin(addr string, m *Metrics) *Plugin {
	return &Plugin{addr: addr, metrics: m}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string { return "metrics" }

// Addr returns the bound address after Initialize.
func (p *Plugin) Addr() net.Addr {
	if p.ln == nil {
		return nil
	}
	return p.ln.Addr()
}

// Initialize binds the listener and starts serving.
func (p *Plugin) Initialize(ctx context.Context, pc heartlink.PluginContext) error {
	p.logger = log.Named(pc.Logger, "metrics")

	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}
	p.ln = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.metrics.Handler())
	p.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := p.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server failed", log.Err(err))
		}
	}()
	p.logger.Info("serving metrics", log.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown stops the HTTP server.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := p.srv.Shutdown(ctx)
	<-p.done
	return err
}

var _ heartlink.Plugin = (*Plugin)(nil)
var _ heartlink.Recorder = (*Metrics)(nil)
