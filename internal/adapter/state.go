package adapter

import (
	"fmt"
	"sync"
)

// State is a subprocess session's lifecycle state.
type State int

const (
	StateStarting State = iota
	StateAwaitingPrompt
	StateReady
	StateSendingCommand
	StateAwaitingResponse
	StateTerminating
	StateTerminated
)

var stateNames = [...]string{
	StateStarting:         "starting",
	StateAwaitingPrompt:   "awaiting-prompt",
	StateReady:            "ready",
	StateSendingCommand:   "sending-command",
	StateAwaitingResponse: "awaiting-response",
	StateTerminating:      "terminating",
	StateTerminated:       "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// transitions lists the legal edges. Every live state may move to
// Terminating; only Terminating reaches Terminated, except a spawn failure.
var transitions = map[State][]State{
	StateStarting:         {StateAwaitingPrompt, StateTerminating, StateTerminated},
	StateAwaitingPrompt:   {StateReady, StateTerminating},
	StateReady:            {StateSendingCommand, StateTerminating},
	StateSendingCommand:   {StateAwaitingResponse, StateTerminating},
	StateAwaitingResponse: {StateReady, StateTerminating},
	StateTerminating:      {StateTerminated},
	StateTerminated:       nil,
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// stateMachine guards a session's state. history records every state
// entered, starting with Starting.
type stateMachine struct {
	mu      sync.Mutex
	state   State
	history []State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateStarting, history: []State{StateStarting}}
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to next, rejecting illegal edges.
func (m *stateMachine) transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransition(m.state, next) {
		return fmt.Errorf("illegal session transition %s -> %s", m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}

func (m *stateMachine) trace() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.history...)
}
