// Package fsm provides a small event-driven state machine.
//
// A Machine reads events from a queue on one goroutine. Each event first
// goes through the observers registered for its kind; any observer may
// consume it. Events that pass reach the transition function, which returns
// a Descriptor: Stay, GoTo, or GoToWithSpeed. A new State value is built for
// every transition and Enter runs once for it. Enter also runs for the
// initial state when Run starts.
//
// A Terminate event ends Run without reaching observers.
//
// # Usage
//
//	q := event.NewQueue(0)
//	m, err := fsm.New(fsm.Definition{
//		Name:    "motor",
//		Initial: Idle,
//		States:  map[fsm.StateID]string{Idle: "Idle", Moving: "Moving"},
//		Transition: func(cur fsm.State, ev event.Event) fsm.Descriptor {
//			if ev.Kind == event.KindCustom && ev.Name == "move" {
//				return fsm.GoToWithSpeed(Moving, int(ev.Value))
//			}
//			return fsm.Stay()
//		},
//	}, q, logger)
//	go m.Run(ctx)
package fsm
