package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/heartlink/pkg/log"
)

// Common task manager errors.
var (
	ErrDuplicateTask   = errors.New("task already running")
	ErrUnknownTask     = errors.New("unknown task")
	ErrManagerStopped  = errors.New("task manager stopped")
	ErrShutdownTimeout = errors.New("shutdown timeout")
)

// Task is a long-running background activity. Run must return once ctx is
// cancelled.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// ErrorHandler receives errors returned by tasks and recovered panics.
type ErrorHandler func(name string, err error)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Info is a snapshot of one managed task.
type Info struct {
	Name  string
	State State
	Err   error
}

type entry struct {
	task   Task
	cancel context.CancelFunc
	state  State
	err    error
	done   chan struct{}
}

// Manager runs tasks on their own goroutines and joins them on shutdown.
type Manager struct {
	mu      sync.RWMutex
	tasks   map[string]*entry
	order   []string
	stopped bool
	wg      sync.WaitGroup
	logger  log.Logger
	onError ErrorHandler
}

// NewManager creates a new task manager. A nil handler logs errors.
func NewManager(logger log.Logger, handler ErrorHandler) *Manager {
	m := &Manager{
		tasks:  make(map[string]*entry),
		logger: log.Named(logger, "task"),
	}
	if handler == nil {
		handler = m.logError
	}
	m.onError = handler
	return m
}

// SetErrorHandler replaces the process-wide error handler.
func (m *Manager) SetErrorHandler(handler ErrorHandler) {
	if handler == nil {
		handler = m.logError
	}
	m.mu.Lock()
	m.onError = handler
	m.mu.Unlock()
}

// Start runs t in a new goroutine under a context derived from ctx.
// A finished task's name can be reused.
func (m *Manager) Start(ctx context.Context, t Task) error {
	name := t.Name()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrManagerStopped
	}
	if prev, ok := m.tasks[name]; ok && !prev.state.Done() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	} else if !ok {
		m.order = append(m.order, name)
	}
	taskCtx, cancel := context.WithCancel(ctx)
	e := &entry{task: t, cancel: cancel, state: StateRunning, done: make(chan struct{})}
	m.tasks[name] = e
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Debug("task started", log.String("task", name))
	go m.run(taskCtx, e)
	return nil
}

func (m *Manager) run(ctx context.Context, e *entry) {
	defer m.wg.Done()
	defer close(e.done)
	defer e.cancel()

	err := m.invoke(ctx, e.task)

	m.mu.Lock()
	if err != nil {
		e.state = StateFailed
		e.err = err
	} else {
		e.state = StateFinished
	}
	handler := m.onError
	m.mu.Unlock()

	name := e.task.Name()
	if err != nil {
		handler(name, err)
		return
	}
	m.logger.Debug("task finished", log.String("task", name))
}

// invoke converts a panic into a PanicError.
func (m *Manager) invoke(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	err = t.Run(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	return err
}

// Cancel requests the named task to stop. It does not wait.
func (m *Manager) Cancel(name string) error {
	m.mu.Lock()
	e, ok := m.tasks[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	if e.state == StateRunning {
		e.state = StateCancelling
	}
	m.mu.Unlock()

	e.cancel()
	return nil
}

// CancelAll requests every task to stop and rejects further Start calls.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	m.stopped = true
	entries := make([]*entry, 0, len(m.tasks))
	for _, e := range m.tasks {
		if e.state == StateRunning {
			e.state = StateCancelling
		}
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
	m.logger.Debug("cancelled all tasks", log.Int("count", len(entries)))
}

// JoinAll blocks until every started task has returned.
func (m *Manager) JoinAll() {
	m.wg.Wait()
}

// WaitWithTimeout waits for all tasks to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (m *Manager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		m.logger.Warn("shutdown timeout, tasks still running",
			log.Duration("timeout", timeout),
			log.Any("running", m.running()),
		)
		return ErrShutdownTimeout
	}
}

// Wait blocks until the named task returns or ctx is done.
func (m *Manager) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	e, ok := m.tasks[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tasks returns a snapshot of every task in start order.
func (m *Manager) Tasks() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.order))
	for _, name := range m.order {
		e := m.tasks[name]
		out = append(out, Info{Name: name, State: e.state, Err: e.err})
	}
	return out
}

// Count returns the number of tasks that have not returned yet.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.tasks {
		if !e.state.Done() {
			n++
		}
	}
	return n
}

func (m *Manager) running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name, e := range m.tasks {
		if !e.state.Done() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (m *Manager) logError(name string, err error) {
	var pe *PanicError
	if errors.As(err, &pe) {
		m.logger.Error("task panicked", log.String("task", name), log.Any("panic", pe.Value))
		return
	}
	m.logger.Error("task failed", log.String("task", name), log.Err(err))
}
