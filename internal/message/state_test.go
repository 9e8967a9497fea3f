package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoading(t *testing.T) {
	loading := map[ToolState]bool{
		StateInputStreaming:    true,
		StateInputAvailable:    true,
		StateOutputStreaming:   true,
		StateOutputAvailable:   false,
		StateApprovalRequested: false,
		StateApprovalResponded: false,
		StateOutputError:       false,
		StateOutputDenied:      false,
		ToolState(""):          false,
		ToolState("bogus"):     false,
	}
	for state, want := range loading {
		assert.Equal(t, want, IsLoading(state), "state %q", state)
	}
}

func TestTracker_AdvancesForward(t *testing.T) {
	tracker := NewTracker()

	for _, state := range []ToolState{
		StateInputStreaming,
		StateInputStreaming,
		StateInputAvailable,
		StateApprovalRequested,
		StateApprovalResponded,
		StateOutputStreaming,
		StateOutputAvailable,
		StateOutputAvailable,
	} {
		require.NoError(t, tracker.Advance("call-1", state))
	}

	state, ok := tracker.State("call-1")
	require.True(t, ok)
	assert.Equal(t, StateOutputAvailable, state)
}

func TestTracker_SkipsIntermediateStates(t *testing.T) {
	tracker := NewTracker()

	require.NoError(t, tracker.Advance("call-1", StateInputAvailable))
	require.NoError(t, tracker.Advance("call-1", StateOutputError))
}

func TestTracker_RejectsRegression(t *testing.T) {
	tracker := NewTracker()
	require.NoError(t, tracker.Advance("call-1", StateOutputStreaming))

	err := tracker.Advance("call-1", StateInputAvailable)

	var regression ErrStateRegression
	require.True(t, errors.As(err, &regression))
	assert.Equal(t, StateOutputStreaming, regression.From)
	assert.Equal(t, StateInputAvailable, regression.To)
	state, _ := tracker.State("call-1")
	assert.Equal(t, StateOutputStreaming, state)
}

func TestTracker_RejectsMovesBetweenOutcomes(t *testing.T) {
	tracker := NewTracker()
	require.NoError(t, tracker.Advance("call-1", StateOutputAvailable))

	err := tracker.Advance("call-1", StateOutputError)

	assert.ErrorAs(t, err, &ErrStateRegression{})
	state, _ := tracker.State("call-1")
	assert.Equal(t, StateOutputAvailable, state)
}

func TestTracker_RejectsUnknownState(t *testing.T) {
	tracker := NewTracker()

	err := tracker.Advance("call-1", ToolState("finished"))

	assert.EqualError(t, err, `unknown tool state: "finished"`)
	_, ok := tracker.State("call-1")
	assert.False(t, ok)
}

func TestTracker_TracksCallsIndependently(t *testing.T) {
	tracker := NewTracker()
	require.NoError(t, tracker.Advance("a", StateOutputAvailable))
	require.NoError(t, tracker.Advance("b", StateInputStreaming))

	a, _ := tracker.State("a")
	b, _ := tracker.State("b")
	assert.Equal(t, StateOutputAvailable, a)
	assert.Equal(t, StateInputStreaming, b)
}
