package pipeline

import (
	"errors"
	"fmt"
)

// State is a run's position in the pipeline.
type State string

const (
	StateInit               State = "INIT"
	StateSchemaReset        State = "SCHEMA_RESET"
	StateStagingLoaded      State = "STAGING_LOADED"
	StateAnalyticsPopulated State = "ANALYTICS_POPULATED"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// ErrIllegalTransition is returned for a transition the pipeline never makes.
// Seeing it means the orchestrator has a bug.
var ErrIllegalTransition = errors.New("pipeline: illegal state transition")

var next = map[State]State{
	StateInit:               StateSchemaReset,
	StateSchemaReset:        StateStagingLoaded,
	StateStagingLoaded:      StateAnalyticsPopulated,
	StateAnalyticsPopulated: StateDone,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Machine tracks a run's state. The zero value is not ready; use NewMachine.
type Machine struct {
	state   State
	history []State
}

// NewMachine returns a Machine in StateInit.
func NewMachine() *Machine {
	return &Machine{state: StateInit, history: []State{StateInit}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// History returns every state visited, in order.
func (m *Machine) History() []State { return append([]State(nil), m.history...) }

// Advance moves to the state after the current one. Only the linear
// INIT → SCHEMA_RESET → STAGING_LOADED → ANALYTICS_POPULATED → DONE path is
// allowed, and to must name the next state on it.
func (m *Machine) Advance(to State) error {
	if want, ok := next[m.state]; !ok || want != to {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
	}
	m.set(to)
	return nil
}

// Fail moves to StateFailed from any non-terminal state.
func (m *Machine) Fail() error {
	if m.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, StateFailed)
	}
	m.set(StateFailed)
	return nil
}

func (m *Machine) set(s State) {
	m.state = s
	m.history = append(m.history, s)
}
