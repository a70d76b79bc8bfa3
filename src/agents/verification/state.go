package verification

import "time"

// State is a step of the verification loop.
type State int

const (
	StateAwaitingModel State = iota
	StateModelRequestedTools
	StateExecutingTools
	StateTerminalSuccess
	StateTerminalError
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateModelRequestedTools:
		return "MODEL_REQUESTED_TOOLS"
	case StateExecutingTools:
		return "EXECUTING_TOOLS"
	case StateTerminalSuccess:
		return "TERMINAL_SUCCESS"
	case StateTerminalError:
		return "TERMINAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	return s == StateTerminalSuccess || s == StateTerminalError
}

// Trace records what one verification did.
type Trace struct {
	States     []State
	ModelCalls int
	ToolTurns  int
	ToolCalls  int
	ToolErrors int
	Tools      []string
	Err        error
	Elapsed    time.Duration
}

func (t *Trace) enter(s State) {
	t.States = append(t.States, s)
}

// Final is the last state entered.
func (t *Trace) Final() State {
	if len(t.States) == 0 {
		return StateAwaitingModel
	}
	return t.States[len(t.States)-1]
}
