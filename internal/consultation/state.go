package consultation

import "fmt"

// State is the lifecycle position of a consultation.
type State string

const (
	StateQueued     State = "QUEUED"
	StateProcessing State = "PROCESSING"
	StateReady      State = "READY"
	StateApproved   State = "APPROVED"
	StateSynced     State = "SYNCED"
	StateError      State = "ERROR"
)

// transitions is the full set of legal moves. ERROR and SYNCED are terminal;
// there is no automatic retry out of ERROR.
var transitions = map[State][]State{
	StateQueued:     {StateProcessing},
	StateProcessing: {StateReady, StateError},
	StateReady:      {StateApproved},
	StateApproved:   {StateSynced},
	StateSynced:     {},
	StateError:      {},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s -> to is a legal move.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the consultation to the given state, rejecting illegal
// moves. State is only ever mutated through this method.
func (c *Consultation) Transition(to State) error {
	if !c.State.CanTransition(to) {
		return fmt.Errorf("illegal state transition %s -> %s for consultation %s", c.State, to, c.ID)
	}
	c.State = to
	return nil
}
