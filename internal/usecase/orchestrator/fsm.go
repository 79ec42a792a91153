package orchestrator

import (
	"errors"
	"fmt"
)

type State string

const (
	StateStart       State = "start"
	StateDecompose   State = "decompose"
	StateSchedule    State = "schedule"
	StateNavigate    State = "navigate"
	StateSense       State = "sense"
	StatePlan        State = "plan"
	StateAct         State = "act"
	StateScrollRead  State = "scroll_read"
	StateCapture     State = "capture"
	StateNoteVisit   State = "note_visit"
	StateCloseOpened State = "close_opened"
	StateReview      State = "review"
	StateSynthesize  State = "synthesize"
	StateClearIndex  State = "clear_index"
	StateCompile     State = "compile"
	StateDone        State = "done"
)

type Event string

const (
	EventNext         Event = "next"
	EventAllDone      Event = "all_done"
	EventMoreWork     Event = "more_work"
	EventRetry        Event = "retry"
	EventActionDone   Event = "action_done"
	EventNewTabOpened Event = "new_tab_opened"
	EventScrollRead   Event = "scroll_read"
	EventInsufficient Event = "insufficient"
	EventSufficient   Event = "sufficient"
	EventFailed       Event = "failed"
	EventBudgetSpent  Event = "budget_spent"
)

var ErrNoTransition = errors.New("no transition")

// Transitions is the research graph. Every node result is looked up here;
// there are no implicit edges.
var Transitions = map[State]map[Event]State{
	StateStart:     {EventNext: StateDecompose},
	StateDecompose: {EventNext: StateSchedule},
	StateSchedule: {
		EventMoreWork: StateNavigate,
		EventAllDone:  StateCompile,
	},
	StateNavigate: {EventNext: StateSense},
	StateSense: {
		EventNext:        StatePlan,
		EventBudgetSpent: StateReview,
	},
	StatePlan: {
		EventNext:   StateAct,
		EventFailed: StateSense,
	},
	StateAct: {
		EventActionDone:   StateSense,
		EventRetry:        StateSense,
		EventNewTabOpened: StateScrollRead,
		EventScrollRead:   StateCapture,
	},
	StateScrollRead:  {EventNext: StateCapture},
	StateCapture:     {EventNext: StateNoteVisit},
	StateNoteVisit:   {EventNext: StateCloseOpened},
	StateCloseOpened: {EventNext: StateReview},
	StateReview: {
		EventInsufficient: StateSense,
		EventSufficient:   StateSynthesize,
	},
	StateSynthesize: {EventNext: StateClearIndex},
	StateClearIndex: {EventNext: StateSchedule},
	StateCompile:    {EventNext: StateDone},
}

func transition(from State, ev Event) (State, error) {
	to, ok := Transitions[from][ev]
	if !ok {
		return "", fmt.Errorf("%w from %s on %s", ErrNoTransition, from, ev)
	}
	return to, nil
}
