package heartlink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/heartlink/internal/machine"
	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/fsm"
	"github.com/bft-labs/heartlink/pkg/heartbeat"
	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/pkg/task"
)

// Service errors.
var (
	ErrAlreadyRunning = errors.New("service already running")
	ErrNotRunning     = errors.New("service not running")

	// ErrShutdownTimeout is returned by Run when background tasks did not
	// stop within Config.ShutdownTimeout.
	ErrShutdownTimeout = task.ErrShutdownTimeout
)

// Link is one row of the server's client link table.
type Link = machine.Link

// Service wires the event queue, the heartbeat task, the task manager and
// the state machine of one role. Use New, then Run.
type Service struct {
	config    Config
	opts      options
	logger    log.Logger
	queue     *event.Queue
	tasks     *task.Manager
	machine   *machine.Machine
	heartbeat task.Task

	mu      sync.Mutex
	runCtx  context.Context
	started bool
}

// New creates a Service for cfg. Returns an error if cfg is invalid.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		config: cfg,
		opts:   o,
		logger: log.Named(o.logger, "service"),
		queue:  event.NewQueue(cfg.QueueCapacity),
	}
	s.tasks = task.NewManager(o.logger, o.onError)

	machineOpts := []machine.Option{machine.WithLogger(o.logger)}
	hbOpts := []heartbeat.Option{heartbeat.WithLogger(o.logger), heartbeat.WithClock(o.clock)}
	if o.recorder != nil {
		machineOpts = append(machineOpts, machine.WithRecorder(o.recorder))
		hbOpts = append(hbOpts, heartbeat.WithRecorder(o.recorder))
	}

	var err error
	switch cfg.Role {
	case RoleServer:
		s.machine, err = machine.NewServer(cfg.Peers, s.queue, machineOpts...)
		s.heartbeat = heartbeat.NewServerTask(heartbeat.ServerConfig{
			Endpoint:  cfg.Endpoint,
			Peers:     cfg.Peers,
			Interval:  cfg.Interval,
			Transport: o.transport,
		}, s, hbOpts...)
	case RoleClient:
		s.machine, err = machine.NewClient(s.queue, machineOpts...)
		s.heartbeat = heartbeat.NewClientTask(heartbeat.ClientConfig{
			Identity:      cfg.Identity,
			Endpoint:      cfg.Endpoint,
			ServerTimeout: cfg.ServerTimeout,
			Transport:     o.transport,
		}, s, hbOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("build state machine: %w", err)
	}
	return s, nil
}

// Run starts the plugins and the heartbeat task, then runs the state loop
// on the calling goroutine until Terminate is called or ctx is cancelled.
// On the way out it cancels every task, runs the BeforeJoin hooks, joins
// the tasks and shuts the plugins down.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.runCtx = runCtx
	s.mu.Unlock()

	initialized, err := s.initPlugins(runCtx)
	if err != nil {
		s.shutdownPlugins(initialized)
		s.queue.Close()
		return err
	}

	if err := s.tasks.Start(runCtx, s.heartbeat); err != nil {
		s.shutdownPlugins(initialized)
		s.queue.Close()
		return fmt.Errorf("start heartbeat: %w", err)
	}

	s.logger.Info("service started",
		log.String("role", string(s.config.Role)),
		log.String("endpoint", s.config.Endpoint),
	)
	loopErr := s.machine.Run(runCtx)
	s.logger.Info("state loop exited", log.String("state", s.State()))

	joinErr := s.shutdown(cancel, initialized)

	switch {
	case joinErr != nil:
		return joinErr
	case loopErr != nil && !errors.Is(loopErr, context.Canceled):
		return loopErr
	}
	return nil
}

func (s *Service) shutdown(cancel context.CancelFunc, plugins []Plugin) error {
	s.tasks.CancelAll()
	cancel()

	for _, hook := range s.opts.beforeJoin {
		hook()
	}

	err := s.tasks.WaitWithTimeout(s.config.ShutdownTimeout)
	s.shutdownPlugins(plugins)
	s.queue.Close()
	return err
}

func (s *Service) initPlugins(ctx context.Context) ([]Plugin, error) {
	pc := PluginContext{Config: s.config, Logger: s.opts.logger, Events: s}
	var done []Plugin
	for _, p := range s.opts.plugins {
		if err := p.Initialize(ctx, pc); err != nil {
			s.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			return done, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		s.logger.Info("plugin initialized", log.String("plugin", p.Name()))
		done = append(done, p)
	}
	return done, nil
}

// shutdownPlugins shuts plugins down in reverse order.
func (s *Service) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			s.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			s.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// Terminate asks the state loop to exit. It jumps ahead of queued events
// and is safe to call from any goroutine, including signal handlers.
func (s *Service) Terminate() {
	s.queue.EnqueueUrgent(event.Terminate())
}

// Enqueue posts ev to the state loop.
func (s *Service) Enqueue(ev event.Event) error {
	return s.queue.Enqueue(ev)
}

// Queue returns the service's event queue.
func (s *Service) Queue() *event.Queue {
	return s.queue
}

// StartTask runs t alongside the heartbeat task. Only valid while Run is active.
func (s *Service) StartTask(t task.Task) error {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return ErrNotRunning
	}
	return s.tasks.Start(ctx, t)
}

// CancelAllTasks requests every background task to stop.
func (s *Service) CancelAllTasks() {
	s.tasks.CancelAll()
}

// JoinAllTasks blocks until every background task has returned.
func (s *Service) JoinAllTasks() {
	s.tasks.JoinAll()
}

// Tasks returns a snapshot of the background tasks.
func (s *Service) Tasks() []task.Info {
	return s.tasks.Tasks()
}

// AddObserver registers an observer on the state loop.
func (s *Service) AddObserver(kind event.Kind, fn fsm.Handler) fsm.ObserverID {
	return s.machine.AddObserver(kind, fn)
}

// RemoveObserver drops an observer registration.
func (s *Service) RemoveObserver(kind event.Kind, id fsm.ObserverID) bool {
	return s.machine.RemoveObserver(kind, id)
}

// Peers returns the server's link table. It is empty for a client.
func (s *Service) Peers() []Link {
	return s.machine.Links()
}

// State returns the name of the current state.
// Safe to call concurrently from any goroutine.
func (s *Service) State() string {
	return s.machine.CurrentName()
}

// Role returns the configured role.
func (s *Service) Role() Role {
	return s.config.Role
}
