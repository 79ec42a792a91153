package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []State{
	StateStart, StateDecompose, StateSchedule, StateNavigate, StateSense, StatePlan,
	StateAct, StateScrollRead, StateCapture, StateNoteVisit, StateCloseOpened,
	StateReview, StateSynthesize, StateClearIndex, StateCompile, StateDone,
}

func TestTransitions_EveryStateButDoneHasAnExit(t *testing.T) {
	for _, s := range allStates {
		if s == StateDone {
			assert.Empty(t, Transitions[s])
			continue
		}
		assert.NotEmpty(t, Transitions[s], s)
	}
}

func TestTransitions_TargetsAreKnown(t *testing.T) {
	known := map[State]bool{}
	for _, s := range allStates {
		known[s] = true
	}
	for from, edges := range Transitions {
		require.True(t, known[from], from)
		for ev, to := range edges {
			assert.True(t, known[to], "%s --%s--> %s", from, ev, to)
		}
	}
}

func TestTransitions_DoneIsReachable(t *testing.T) {
	seen := map[State]bool{StateStart: true}
	queue := []State{StateStart}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, to := range Transitions[s] {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	for _, s := range allStates {
		assert.True(t, seen[s], "%s unreachable", s)
	}
}

func TestTransition_Routing(t *testing.T) {
	cases := []struct {
		from State
		ev   Event
		to   State
	}{
		{StateAct, EventNewTabOpened, StateScrollRead},
		{StateAct, EventScrollRead, StateCapture},
		{StateAct, EventActionDone, StateSense},
		{StateAct, EventRetry, StateSense},
		{StateReview, EventInsufficient, StateSense},
		{StateReview, EventSufficient, StateSynthesize},
		{StateSense, EventBudgetSpent, StateReview},
		{StateSchedule, EventAllDone, StateCompile},
		{StateClearIndex, EventNext, StateSchedule},
	}
	for _, tc := range cases {
		got, err := transition(tc.from, tc.ev)
		require.NoError(t, err)
		assert.Equal(t, tc.to, got, "%s on %s", tc.from, tc.ev)
	}
}

func TestTransition_MissingEdge(t *testing.T) {
	_, err := transition(StateCapture, EventSufficient)
	assert.ErrorIs(t, err, ErrNoTransition)

	_, err = transition(StateDone, EventNext)
	assert.ErrorIs(t, err, ErrNoTransition)
}
