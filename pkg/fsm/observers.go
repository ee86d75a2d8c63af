package fsm

import (
	"sync"

	"github.com/bft-labs/heartlink/pkg/event"
)

// Handler observes an event before the transition function sees it.
// Returning false consumes the event.
type Handler func(ev event.Event) bool

// ObserverID identifies a registration for RemoveObserver.
type ObserverID uint64

type observer struct {
	id ObserverID
	fn Handler
}

// observerTable maps an event kind to its handlers in registration order.
type observerTable struct {
	mu     sync.RWMutex
	nextID ObserverID
	byKind map[event.Kind][]observer
}

func newObserverTable() *observerTable {
	return &observerTable{byKind: make(map[event.Kind][]observer)}
}

func (t *observerTable) add(kind event.Kind, fn Handler) ObserverID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.byKind[kind] = append(t.byKind[kind], observer{id: t.nextID, fn: fn})
	return t.nextID
}

func (t *observerTable) remove(kind event.Kind, id ObserverID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.byKind[kind]
	for i, o := range list {
		if o.id == id {
			t.byKind[kind] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// notify runs every handler for ev.Kind and reports whether all let it through.
// Handlers run outside the lock so they may add or remove observers. A
// handler removed by an earlier one is skipped; one added during the event
// first sees the next event.
func (t *observerTable) notify(ev event.Event) bool {
	t.mu.RLock()
	list := t.byKind[ev.Kind]
	t.mu.RUnlock()

	forward := true
	for _, o := range list {
		if !t.registered(ev.Kind, o.id) {
			continue
		}
		if !o.fn(ev) {
			forward = false
		}
	}
	return forward
}

func (t *observerTable) registered(kind event.Kind, id ObserverID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, o := range t.byKind[kind] {
		if o.id == id {
			return true
		}
	}
	return false
}
