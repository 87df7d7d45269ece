package binsession

import (
	"errors"
	"fmt"
	"slices"
)

// State of a bin interaction. A session walks
// closed -> open -> detecting -> awarded -> closed, and may be closed early
// from open or detecting.
type State string

const (
	StateClosed    State = "closed"
	StateOpen      State = "open"
	StateDetecting State = "detecting"
	StateAwarded   State = "awarded"
)

// Close reasons
const (
	ReasonCompleted = "completed"
	ReasonUser      = "user"
	ReasonExpired   = "expired"
	ReasonShutdown  = "shutdown"
)

var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	StateClosed:    {StateOpen},
	StateOpen:      {StateDetecting, StateClosed},
	StateDetecting: {StateAwarded, StateClosed},
	StateAwarded:   {StateClosed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Transition returns to, or ErrInvalidTransition.
func Transition(from, to State) (State, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
