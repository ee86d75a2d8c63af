package heartlink

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/heartlink/internal/machine"
	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/heartbeat"
	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/route"
	"github.com/bft-labs/heartlink/pkg/task"
)

// Recorder observes heartbeat traffic and state entries.
// internal/telemetry provides a Prometheus implementation.
type Recorder interface {
	heartbeat.Recorder
	machine.Recorder
}

// Plugin extends a Service with optional functionality.
// Plugins are initialized in registration order when Run starts and shut
// down in reverse order after the background tasks are joined.
type Plugin interface {
	// Name returns the plugin identifier.
	Name() string

	// Initialize is called once before the heartbeat task starts.
	// ctx is cancelled when the service begins shutting down.
	Initialize(ctx context.Context, pc PluginContext) error

	// Shutdown releases the plugin's resources.
	Shutdown(ctx context.Context) error
}

// PluginContext is handed to plugins on Initialize.
type PluginContext struct {
	Config Config
	Logger log.Logger

	// Events posts into the service's event queue.
	Events event.Poster
}

// Option configures optional behavior of a Service.
type Option func(*options)

type options struct {
	logger     log.Logger
	recorder   Recorder
	clock      clock.Clock
	transport  route.Options
	plugins    []Plugin
	beforeJoin []func()
	onError    task.ErrorHandler
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clock:  clock.New(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithClock sets the clock driving heartbeat ticks.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithTransport tunes the router or dealer socket.
func WithTransport(opts route.Options) Option {
	return func(o *options) {
		o.transport = opts
	}
}

// WithPlugin registers a plugin to be initialized when Run starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithBeforeJoin registers a hook that runs after the state loop exits and
// every task has been cancelled, right before the tasks are joined.
// The CLI uses it to detach the async log sink.
func WithBeforeJoin(hook func()) Option {
	return func(o *options) {
		o.beforeJoin = append(o.beforeJoin, hook)
	}
}

// WithErrorHandler sets the handler for task errors and panics.
// The default logs them.
func WithErrorHandler(h task.ErrorHandler) Option {
	return func(o *options) {
		o.onError = h
	}
}
