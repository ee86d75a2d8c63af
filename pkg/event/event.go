// Package event defines the typed events exchanged between background tasks
// and the state loop, and the two-priority queue that carries them.
package event

import "fmt"

// Kind tags an Event.
type Kind uint8

const (
	KindTerminate Kind = iota + 1
	KindLinkUp
	KindLinkDown
	KindConfigChanged
	KindCustom
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTerminate:
		return "Terminate"
	case KindLinkUp:
		return "LinkUp"
	case KindLinkDown:
		return "LinkDown"
	case KindConfigChanged:
		return "ConfigChanged"
	case KindCustom:
		return "Custom"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Event is an immutable tagged value. Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind

	// Peer is the identity for LinkUp and LinkDown.
	Peer string

	// Name is the config path for ConfigChanged, or the payload name for Custom.
	Name string

	// Value is the Custom payload (motor feedback position, sensor level, ...).
	Value int64
}

// Terminate requests the state loop to exit.
func Terminate() Event { return Event{Kind: KindTerminate} }

// LinkUp reports that peer answered a heartbeat.
func LinkUp(peer string) Event { return Event{Kind: KindLinkUp, Peer: peer} }

// LinkDown reports that peer stopped answering heartbeats.
func LinkDown(peer string) Event { return Event{Kind: KindLinkDown, Peer: peer} }

// ConfigChanged reports that the configuration file at path was modified.
func ConfigChanged(path string) Event { return Event{Kind: KindConfigChanged, Name: path} }

// Custom carries a domain payload posted by another task.
func Custom(name string, value int64) Event {
	return Event{Kind: KindCustom, Name: name, Value: value}
}

// String renders the event for logs.
func (e Event) String() string {
	switch e.Kind {
	case KindLinkUp, KindLinkDown:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Peer)
	case KindConfigChanged:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Name)
	case KindCustom:
		return fmt.Sprintf("%s(%s=%d)", e.Kind, e.Name, e.Value)
	default:
		return e.Kind.String()
	}
}

// Poster is the producer side of a queue, handed to tasks.
type Poster interface {
	Enqueue(ev Event) error
}
