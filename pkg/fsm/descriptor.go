package fsm

import "fmt"

// StateID names a state within one machine's closed set.
type StateID uint8

// State is the immutable current state of a machine. Speed carries the
// optional parameter of a GoToWithSpeed transition.
type State struct {
	ID       StateID
	Speed    int
	HasSpeed bool
}

type descriptorKind uint8

const (
	stay descriptorKind = iota
	goTo
	goToWithSpeed
)

// Descriptor is the result of a transition function: stay where we are, or
// move to a target state with an optional speed parameter.
type Descriptor struct {
	kind   descriptorKind
	target StateID
	speed  int
}

// Stay keeps the current state.
func Stay() Descriptor { return Descriptor{kind: stay} }

// GoTo transitions to id.
func GoTo(id StateID) Descriptor { return Descriptor{kind: goTo, target: id} }

// GoToWithSpeed transitions to id carrying a speed parameter.
func GoToWithSpeed(id StateID, speed int) Descriptor {
	return Descriptor{kind: goToWithSpeed, target: id, speed: speed}
}

// IsStay reports whether d keeps the current state.
func (d Descriptor) IsStay() bool { return d.kind == stay }

// Target returns the destination state, false for Stay.
func (d Descriptor) Target() (StateID, bool) {
	return d.target, d.kind != stay
}

// Speed returns the speed parameter, false unless built by GoToWithSpeed.
func (d Descriptor) Speed() (int, bool) {
	return d.speed, d.kind == goToWithSpeed
}

// state builds the State a non-Stay descriptor leads to.
func (d Descriptor) state() State {
	return State{ID: d.target, Speed: d.speed, HasSpeed: d.kind == goToWithSpeed}
}

func (d Descriptor) String() string {
	switch d.kind {
	case goTo:
		return fmt.Sprintf("GoTo(%d)", d.target)
	case goToWithSpeed:
		return fmt.Sprintf("GoToWithSpeed(%d, %d)", d.target, d.speed)
	default:
		return "Stay"
	}
}
