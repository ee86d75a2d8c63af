package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/log"
)

// TransitionFunc decides the next state for an event that passed the observers.
type TransitionFunc func(current State, ev event.Event) Descriptor

// EnterFunc runs once each time a state is entered.
type EnterFunc func(next State)

// Definition describes a machine: its closed state set, initial state and
// callbacks. Transition is required; Enter is optional.
type Definition struct {
	Name       string
	Initial    StateID
	States     map[StateID]string
	Transition TransitionFunc
	Enter      EnterFunc
}

// Source is the consumer side of an event queue.
type Source interface {
	Dequeue(ctx context.Context) (event.Event, error)
}

// Machine dispatches events from a Source on a single goroutine.
type Machine struct {
	def       Definition
	src       Source
	logger    log.Logger
	observers *observerTable

	mu      sync.RWMutex
	current State
	running bool
}

// New validates def and creates a machine reading from src.
func New(def Definition, src Source, logger log.Logger) (*Machine, error) {
	if def.Transition == nil {
		return nil, fmt.Errorf("fsm %q: transition function is required", def.Name)
	}
	if _, ok := def.States[def.Initial]; !ok {
		return nil, fmt.Errorf("fsm %q: initial state %d is not declared", def.Name, def.Initial)
	}
	if src == nil {
		return nil, fmt.Errorf("fsm %q: event source is required", def.Name)
	}
	return &Machine{
		def:       def,
		src:       src,
		logger:    log.Named(logger, "fsm."+def.Name),
		observers: newObserverTable(),
		current:   State{ID: def.Initial},
	}, nil
}

// AddObserver registers fn for events of kind. Safe to call from Enter or
// from another observer.
func (m *Machine) AddObserver(kind event.Kind, fn Handler) ObserverID {
	return m.observers.add(kind, fn)
}

// RemoveObserver drops a registration. It reports whether id was found.
func (m *Machine) RemoveObserver(kind event.Kind, id ObserverID) bool {
	return m.observers.remove(kind, id)
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// StateName returns the declared name of id.
func (m *Machine) StateName(id StateID) string {
	if name, ok := m.def.States[id]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", id)
}

// Run enters the initial state and dispatches events until a Terminate event
// arrives, the source is closed, or ctx is cancelled. Only the first call runs.
func (m *Machine) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("fsm %q: already running", m.def.Name)
	}
	m.running = true
	initial := m.current
	m.mu.Unlock()

	m.logger.Debug("entering initial state", log.String("state", m.StateName(initial.ID)))
	m.enter(initial)

	for {
		ev, err := m.src.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, event.ErrClosed) {
				m.logger.Debug("event source closed")
				return nil
			}
			return err
		}
		if ev.Kind == event.KindTerminate {
			m.logger.Debug("terminate received")
			return nil
		}
		m.dispatch(ev)
	}
}

// dispatch runs one event through observers and the transition function.
func (m *Machine) dispatch(ev event.Event) {
	if !m.observers.notify(ev) {
		m.logger.Trace("event consumed by observer", log.String("event", ev.String()))
		return
	}

	cur := m.Current()
	d := m.def.Transition(cur, ev)
	target, ok := d.Target()
	if !ok {
		return
	}
	if _, declared := m.def.States[target]; !declared {
		m.logger.Debug("transition to undeclared state ignored",
			log.String("event", ev.String()),
			log.String("descriptor", d.String()),
		)
		return
	}

	next := d.state()
	m.mu.Lock()
	m.current = next
	m.mu.Unlock()

	fields := []log.Field{
		log.String("from", m.StateName(cur.ID)),
		log.String("to", m.StateName(next.ID)),
		log.String("event", ev.String()),
	}
	if next.HasSpeed {
		fields = append(fields, log.Int("speed", next.Speed))
	}
	m.logger.Info("state transition", fields...)
	m.enter(next)
}

func (m *Machine) enter(s State) {
	if m.def.Enter != nil {
		m.def.Enter(s)
	}
}
