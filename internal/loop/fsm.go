package loop

import "fmt"

// State is a state of the refinement state machine.
type State string

const (
	StateInit           State = "INIT"
	StateGenerating     State = "GENERATING"
	StateHealthChecking State = "HEALTH_CHECKING"
	StateValidating     State = "VALIDATING"
	StateRefining       State = "REFINING"
	StateFinalized      State = "FINALIZED"
)

// transitions lists the legal successor states. FINALIZED is reachable from
// every other state so that aborts and fatal errors can end the run at any
// transition; it has no successors.
var transitions = map[State][]State{
	StateInit:           {StateGenerating, StateFinalized},
	StateGenerating:     {StateHealthChecking, StateFinalized},
	StateHealthChecking: {StateGenerating, StateValidating, StateFinalized},
	StateValidating:     {StateRefining, StateFinalized},
	StateRefining:       {StateGenerating, StateFinalized},
	StateFinalized:      nil,
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IllegalTransitionError is returned for a transition not in the table.
type IllegalTransitionError struct {
	From State
	To   State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// Machine tracks the current state and every state visited.
type Machine struct {
	state State
	trail []State
}

// NewMachine returns a machine in INIT.
func NewMachine() *Machine {
	return &Machine{state: StateInit, trail: []State{StateInit}}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Done reports whether the machine reached FINALIZED.
func (m *Machine) Done() bool {
	return m.state == StateFinalized
}

// Transition moves to the next state or returns an IllegalTransitionError.
func (m *Machine) Transition(to State) error {
	if !CanTransition(m.state, to) {
		return &IllegalTransitionError{From: m.state, To: to}
	}
	m.state = to
	m.trail = append(m.trail, to)
	return nil
}

// Trail returns a copy of the visited states in order.
func (m *Machine) Trail() []State {
	return append([]State(nil), m.trail...)
}
