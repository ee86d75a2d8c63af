// Package machine defines the server and client heartbeat state machines.
package machine

import (
	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/fsm"
	"github.com/bft-labs/heartlink/pkg/log"
)

// States shared by both roles.
const (
	Startup fsm.StateID = iota
	Online
)

var stateNames = map[fsm.StateID]string{
	Startup: "Startup",
	Online:  "Online",
}

// Recorder observes state entries, typically to export metrics.
type Recorder interface {
	StateEntered(role, state string)
}

type nopRecorder struct{}

func (nopRecorder) StateEntered(string, string) {}

// Option configures a machine.
type Option func(*options)

type options struct {
	logger   log.Logger
	recorder Recorder
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the state recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// Machine is a heartbeat state machine for one role.
type Machine struct {
	*fsm.Machine

	role   string
	links  *LinkTable
	logger log.Logger
}

// Role returns "server" or "client".
func (m *Machine) Role() string { return m.role }

// Links returns the link table snapshot. It is empty for the client role.
func (m *Machine) Links() []Link {
	if m.links == nil {
		return nil
	}
	return m.links.Snapshot()
}

// CurrentName returns the name of the current state.
func (m *Machine) CurrentName() string {
	return m.StateName(m.Current().ID)
}

// transition is shared by both roles; the observers decide what gets through.
func transition(cur fsm.State, ev event.Event) fsm.Descriptor {
	switch {
	case cur.ID == Startup && ev.Kind == event.KindLinkUp:
		return fsm.GoTo(Online)
	case cur.ID == Online && ev.Kind == event.KindLinkDown:
		return fsm.GoTo(Startup)
	default:
		return fsm.Stay()
	}
}

func build(role string, src fsm.Source, links *LinkTable, opts []Option) (*Machine, error) {
	o := options{logger: log.NewNoopLogger(), recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Machine{
		role:   role,
		links:  links,
		logger: log.Named(o.logger, "state."+role),
	}
	fm, err := fsm.New(fsm.Definition{
		Name:       role,
		Initial:    Startup,
		States:     stateNames,
		Transition: transition,
		Enter: func(next fsm.State) {
			name := stateNames[next.ID]
			m.logger.Info("enter " + name + " state")
			o.recorder.StateEntered(role, name)
		},
	}, src, o.logger)
	if err != nil {
		return nil, err
	}
	m.Machine = fm

	m.AddObserver(event.KindConfigChanged, func(ev event.Event) bool {
		m.logger.Warn("configuration changed, restart required", log.String("path", ev.Name))
		return false
	})
	return m, nil
}
