package message

import (
	"fmt"
	"log/slog"
	"sync"
)

type ToolState string

const (
	StateInputStreaming    ToolState = "input-streaming"
	StateInputAvailable    ToolState = "input-available"
	StateOutputStreaming   ToolState = "output-streaming"
	StateOutputAvailable   ToolState = "output-available"
	StateApprovalRequested ToolState = "approval-requested"
	StateApprovalResponded ToolState = "approval-responded"
	StateOutputError       ToolState = "output-error"
	StateOutputDenied      ToolState = "output-denied"
)

// stateRank orders the lifecycle. Approval happens between input and output;
// the three outcome states share the terminal rank.
var stateRank = map[ToolState]int{
	StateInputStreaming:    0,
	StateInputAvailable:    1,
	StateApprovalRequested: 2,
	StateApprovalResponded: 3,
	StateOutputStreaming:   4,
	StateOutputAvailable:   5,
	StateOutputError:       5,
	StateOutputDenied:      5,
}

func (s ToolState) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

func (s ToolState) Terminal() bool {
	return stateRank[s] == stateRank[StateOutputAvailable] && s.Valid()
}

// IsLoading is the single predicate every renderer uses to choose between a
// placeholder and final content.
func IsLoading(state ToolState) bool {
	switch state {
	case StateInputStreaming, StateInputAvailable, StateOutputStreaming:
		return true
	default:
		return false
	}
}

type ErrStateRegression struct {
	ToolCallID string
	From       ToolState
	To         ToolState
}

func (e ErrStateRegression) Error() string {
	return fmt.Sprintf("tool call %s: state cannot move from %s to %s", e.ToolCallID, e.From, e.To)
}

type ErrUnknownState struct {
	State ToolState
}

func (e ErrUnknownState) Error() string {
	return fmt.Sprintf("unknown tool state: %q", string(e.State))
}

// Tracker holds the current lifecycle state of every tool call in a turn.
type Tracker struct {
	mu     sync.Mutex
	states map[string]ToolState
}

func NewTracker() *Tracker {
	return &Tracker{states: map[string]ToolState{}}
}

// Advance records a transition. Repeating the current state is accepted;
// moving backwards, or between two outcome states, is rejected and the
// previous state is kept.
func (t *Tracker) Advance(toolCallID string, next ToolState) error {
	if !next.Valid() {
		return ErrUnknownState{State: next}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	current, seen := t.states[toolCallID]
	if !seen || current == next {
		t.states[toolCallID] = next
		return nil
	}
	if current.Terminal() || stateRank[next] < stateRank[current] {
		err := ErrStateRegression{ToolCallID: toolCallID, From: current, To: next}
		slog.Warn("rejected tool state transition", "tool_call_id", toolCallID, "from", current, "to", next)
		return err
	}
	t.states[toolCallID] = next
	return nil
}

func (t *Tracker) State(toolCallID string) (ToolState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[toolCallID]
	return state, ok
}
