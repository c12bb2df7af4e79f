// Package node implements NodeInfo and the node lifecycle (spec §4.4):
// identity, the state machine, per-tick metrics, rolling error/warning
// windows, and heartbeat emission.
package node

import (
	"fmt"

	"github.com/horus-robotics/horus-core/horuserr"
)

// State is a node lifecycle state (spec §4.4).
type State int

const (
	Uninitialized State = iota
	Initializing
	Running
	Paused
	Stopping
	Stopped
	Error
	Crashed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initializing:
		return "Initializing"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Error:
		return "Error"
	case Crashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// transitions encodes the DAG from spec §4.4:
//
//	Uninitialized -> Initializing -> Running <-> Paused
//	Running -> Stopping -> Stopped
//	any -> Error -> (Stopping -> Stopped) | Crashed
var transitions = map[State]map[State]bool{
	Uninitialized: {Initializing: true},
	Initializing:  {Running: true, Error: true},
	Running:       {Paused: true, Stopping: true, Error: true},
	Paused:        {Running: true, Stopping: true, Error: true},
	Stopping:      {Stopped: true, Error: true},
	Stopped:       {},
	Error:         {Stopping: true, Crashed: true},
	Crashed:       {},
}

// CanTransition reports whether from->to is a legal edge in the state DAG.
// Every state except Error, Crashed and Stopped may transition to Error.
// A transition to the same state is never legal.
func CanTransition(from, to State) bool {
	if to == Error {
		return from != Error && from != Crashed && from != Stopped
	}
	return transitions[from][to]
}

// ErrIllegalTransition is returned by NodeInfo.SetState for an edge not in
// the state DAG.
type ErrIllegalTransition struct {
	From, To State
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal state transition %s -> %s", e.From, e.To)
}

// Unwrap lets callers classify this with errors.Is(err, horuserr.ErrStateViolation)
// alongside every other package's state-violation errors.
func (e *ErrIllegalTransition) Unwrap() error {
	return horuserr.ErrStateViolation
}
