// Package liveness turns heartbeat replies and silences into link transitions.
//
// Every peer has a decay counter. Each heartbeat tick lowers it by one until
// it bottoms out at Away; a PONG raises it back to Alive. Only the first
// arrival at Away is reported as a link-down, and only a recovery from a
// missing or away state is reported as a link-up, so the steady
// ping/pong cycle produces no transitions at all.
package liveness

import "fmt"

// Counter is a per-peer liveness decay counter.
type Counter int8

const (
	Alive    Counter = 1
	WaitPong Counter = 0
	Missing2 Counter = -1
	Missing3 Counter = -2
	Missing4 Counter = -3
	Away     Counter = -4
)

// String returns the counter state name.
func (c Counter) String() string {
	switch c {
	case Alive:
		return "ALIVE"
	case WaitPong:
		return "WAIT_PONG"
	case Missing2:
		return "MISSING_2"
	case Missing3:
		return "MISSING_3"
	case Missing4:
		return "MISSING_4"
	case Away:
		return "AWAY"
	default:
		return fmt.Sprintf("Counter(%d)", int8(c))
	}
}

// Transition is the link change caused by a tick or a PONG.
type Transition int

const (
	NoChange Transition = iota
	Up
	Down
)

// Tracker holds the counters of a fixed peer set. It is not safe for
// concurrent use; it lives inside the heartbeat task goroutine.
type Tracker struct {
	peers    []string
	counters map[string]Counter
}

// NewTracker creates a tracker for peers. Every peer starts Away.
// Duplicate identities are ignored.
func NewTracker(peers []string) *Tracker {
	t := &Tracker{counters: make(map[string]Counter, len(peers))}
	for _, id := range peers {
		if _, dup := t.counters[id]; dup {
			continue
		}
		t.peers = append(t.peers, id)
		t.counters[id] = Away
	}
	return t
}

// Peers returns the tracked identities in configuration order.
func (t *Tracker) Peers() []string {
	return append([]string(nil), t.peers...)
}

// Known reports whether id is a configured peer.
func (t *Tracker) Known(id string) bool {
	_, ok := t.counters[id]
	return ok
}

// Counter returns the counter for id.
func (t *Tracker) Counter(id string) (Counter, bool) {
	c, ok := t.counters[id]
	return c, ok
}

// Decay applies one heartbeat interval to id. It returns Down exactly when
// this decrement brings the counter to Away.
func (t *Tracker) Decay(id string) Transition {
	c, ok := t.counters[id]
	if !ok || c <= Away {
		return NoChange
	}
	c--
	t.counters[id] = c
	if c == Away {
		return Down
	}
	return NoChange
}

// Pong records a PONG from id. It returns Up when the peer recovers from a
// missing or away state; the expected reply after WaitPong is silent.
func (t *Tracker) Pong(id string) Transition {
	c, ok := t.counters[id]
	if !ok {
		return NoChange
	}
	switch c {
	case Missing2, Missing3, Missing4, Away:
		t.counters[id] = Alive
		return Up
	case WaitPong:
		t.counters[id] = Alive
	}
	return NoChange
}

// Up returns the peers whose counter is above Away.
func (t *Tracker) Up() []string {
	var up []string
	for _, id := range t.peers {
		if t.counters[id] > Away {
			up = append(up, id)
		}
	}
	return up
}
