package fsm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/log"
)

const (
	idle StateID = iota
	moving
	halted
)

var motorStates = map[StateID]string{idle: "Idle", moving: "Moving", halted: "Halted"}

// enterRecorder collects entered states.
type enterRecorder struct {
	mu      sync.Mutex
	entered []State
}

func (r *enterRecorder) enter(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entered = append(r.entered, s)
}

func (r *enterRecorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State{}, r.entered...)
}

func motorDefinition(rec *enterRecorder) Definition {
	return Definition{
		Name:    "motor",
		Initial: idle,
		States:  motorStates,
		Transition: func(cur State, ev event.Event) Descriptor {
			if ev.Kind != event.KindCustom {
				return Stay()
			}
			switch ev.Name {
			case "move":
				return GoToWithSpeed(moving, int(ev.Value))
			case "stop":
				if cur.ID == moving {
					return GoTo(idle)
				}
			case "bogus":
				return GoTo(StateID(42))
			}
			return Stay()
		},
		Enter: rec.enter,
	}
}

func runMachine(t *testing.T, m *Machine) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("machine did not stop")
		return nil
	}
}

func TestDescriptor_Accessors(t *testing.T) {
	tests := []struct {
		name       string
		d          Descriptor
		stay       bool
		target     StateID
		speed      int
		hasSpeed   bool
		wantString string
	}{
		{"stay", Stay(), true, 0, 0, false, "Stay"},
		{"goto", GoTo(moving), false, moving, 0, false, "GoTo(1)"},
		{"goto with speed", GoToWithSpeed(moving, 30), false, moving, 30, true, "GoToWithSpeed(1, 30)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.d.IsStay() != tt.stay {
				t.Errorf("IsStay() = %v, want %v", tt.d.IsStay(), tt.stay)
			}
			target, ok := tt.d.Target()
			if ok == tt.stay || (ok && target != tt.target) {
				t.Errorf("Target() = %d, %v", target, ok)
			}
			speed, ok := tt.d.Speed()
			if ok != tt.hasSpeed || speed != tt.speed {
				t.Errorf("Speed() = %d, %v, want %d, %v", speed, ok, tt.speed, tt.hasSpeed)
			}
			if got := tt.d.String(); got != tt.wantString {
				t.Errorf("String() = %q, want %q", got, tt.wantString)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	q := event.NewQueue(0)
	rec := &enterRecorder{}

	noTransition := motorDefinition(rec)
	noTransition.Transition = nil
	if _, err := New(noTransition, q, nil); err == nil {
		t.Error("New() without transition succeeded")
	}

	badInitial := motorDefinition(rec)
	badInitial.Initial = StateID(9)
	if _, err := New(badInitial, q, nil); err == nil {
		t.Error("New() with undeclared initial state succeeded")
	}

	if _, err := New(motorDefinition(rec), nil, nil); err == nil {
		t.Error("New() without source succeeded")
	}
}

func TestMachine_EntersInitialStateAndTransitions(t *testing.T) {
	q := event.NewQueue(0)
	rec := &enterRecorder{}
	m, err := New(motorDefinition(rec), q, log.NewNoopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_ = q.Enqueue(event.Custom("stop", 0)) // Stay in Idle
	_ = q.Enqueue(event.Custom("move", 30))
	_ = q.Enqueue(event.Custom("bogus", 0)) // undeclared target, ignored
	_ = q.Enqueue(event.Custom("stop", 0))
	_ = q.Enqueue(event.Terminate())

	if err := waitDone(t, runMachine(t, m)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []State{
		{ID: idle},
		{ID: moving, Speed: 30, HasSpeed: true},
		{ID: idle},
	}
	got := rec.States()
	if len(got) != len(want) {
		t.Fatalf("entered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entered[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if m.Current().ID != idle {
		t.Errorf("Current() = %v, want Idle", m.Current())
	}
}

func TestMachine_ObserverConsumesEvent(t *testing.T) {
	q := event.NewQueue(0)
	rec := &enterRecorder{}
	m, _ := New(motorDefinition(rec), q, nil)

	var seen []string
	id := m.AddObserver(event.KindCustom, func(ev event.Event) bool {
		seen = append(seen, ev.Name)
		return ev.Name != "move"
	})
	m.AddObserver(event.KindCustom, func(ev event.Event) bool { return true })

	_ = q.Enqueue(event.Custom("move", 10))
	_ = q.Enqueue(event.Terminate())
	if err := waitDone(t, runMachine(t, m)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(seen) != 1 || seen[0] != "move" {
		t.Errorf("observer saw %v, want [move]", seen)
	}
	if m.Current().ID != idle {
		t.Errorf("consumed event changed state to %v", m.Current())
	}
	if !m.RemoveObserver(event.KindCustom, id) {
		t.Error("RemoveObserver() = false for registered observer")
	}
	if m.RemoveObserver(event.KindCustom, id) {
		t.Error("RemoveObserver() = true for removed observer")
	}
}

func TestMachine_ObserverRegisteredOnEnter(t *testing.T) {
	q := event.NewQueue(0)
	var m *Machine
	var consumed int
	var haltObserver ObserverID

	def := Definition{
		Name:    "halting",
		Initial: idle,
		States:  motorStates,
		Transition: func(cur State, ev event.Event) Descriptor {
			if ev.Kind == event.KindCustom && ev.Name == "halt" {
				return GoTo(halted)
			}
			return Stay()
		},
		Enter: func(s State) {
			// while halted, every custom event is swallowed
			if s.ID == halted {
				haltObserver = m.AddObserver(event.KindCustom, func(event.Event) bool {
					consumed++
					return false
				})
			}
		},
	}
	m, _ = New(def, q, nil)

	_ = q.Enqueue(event.Custom("halt", 0))
	_ = q.Enqueue(event.Custom("halt", 0))
	_ = q.Enqueue(event.Custom("move", 1))
	_ = q.Enqueue(event.Terminate())
	if err := waitDone(t, runMachine(t, m)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if consumed != 2 {
		t.Errorf("halt observer consumed %d events, want 2", consumed)
	}
	if !m.RemoveObserver(event.KindCustom, haltObserver) {
		t.Error("halt observer was not registered")
	}
}

func TestMachine_TerminateSkipsObservers(t *testing.T) {
	q := event.NewQueue(0)
	m, _ := New(motorDefinition(&enterRecorder{}), q, nil)

	called := false
	m.AddObserver(event.KindTerminate, func(event.Event) bool {
		called = true
		return false
	})

	_ = q.Enqueue(event.Custom("move", 5))
	q.EnqueueUrgent(event.Terminate())
	if err := waitDone(t, runMachine(t, m)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if called {
		t.Error("terminate observer was called")
	}
	// urgent terminate overtook the queued move
	if m.Current().ID != idle {
		t.Errorf("Current() = %v, want Idle", m.Current())
	}
}

func TestMachine_ContextCancel(t *testing.T) {
	q := event.NewQueue(0)
	m, _ := New(motorDefinition(&enterRecorder{}), q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	if err := waitDone(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestMachine_ClosedSourceStops(t *testing.T) {
	q := event.NewQueue(0)
	m, _ := New(motorDefinition(&enterRecorder{}), q, nil)
	q.Close()

	if err := waitDone(t, runMachine(t, m)); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
	if err := m.Run(context.Background()); err == nil {
		t.Error("second Run() succeeded")
	}
}

func TestMachine_StateName(t *testing.T) {
	m, _ := New(motorDefinition(&enterRecorder{}), event.NewQueue(0), nil)
	if got := m.StateName(moving); got != "Moving" {
		t.Errorf("StateName(moving) = %q", got)
	}
	if got := m.StateName(StateID(7)); got != "State(7)" {
		t.Errorf("StateName(7) = %q", got)
	}
}

func TestObserverTable_RemovedDuringNotifyIsSkipped(t *testing.T) {
	table := newObserverTable()
	var calls []string
	var second ObserverID

	table.add(event.KindCustom, func(event.Event) bool {
		calls = append(calls, "first")
		table.remove(event.KindCustom, second)
		table.add(event.KindCustom, func(event.Event) bool {
			calls = append(calls, "late")
			return true
		})
		return true
	})
	second = table.add(event.KindCustom, func(event.Event) bool {
		calls = append(calls, "second")
		return false
	})

	if !table.notify(event.Custom("x", 1)) {
		t.Error("notify() = false, want the removed observer not to consume the event")
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("calls = %v, want [first]", calls)
	}
}
