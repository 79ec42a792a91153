package planner

import (
	"context"
	"fmt"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/prompts"
	"research-agent/internal/usecase/structured"
)

const (
	site = "next_action"

	maxElements = 150
	maxTrace    = 30
)

// response is what the model fills in. The element is referenced by index
// and resolved against the snapshot the prompt was built from.
type response struct {
	Thought      string `json:"thought" description:"Short reasoning for the chosen action"`
	ActionType   string `json:"action_type" enum:"click,type,scroll_read,close_page,wait,go_back,go_to_search,retry"`
	Args         string `json:"args" description:"Text to type, or seconds to wait; empty otherwise"`
	ElementIndex int    `json:"element_index" description:"Index of the target element for click and type, -1 otherwise"`
}

func (r response) Validate() error {
	t := entity.ActionType(r.ActionType)
	if err := t.Validate(); err != nil {
		return err
	}
	if t.NeedsTarget() && r.ElementIndex < 0 {
		return fmt.Errorf("action %s requires element_index", t)
	}
	return nil
}

type Agent struct {
	caller   *structured.Caller
	logger   output.LoggerPort
	progress output.ProgressPort
}

func New(caller *structured.Caller, logger output.LoggerPort, progress output.ProgressPort) *Agent {
	return &Agent{caller: caller, logger: logger, progress: progress}
}

// Plan picks the next action for the active subtopic from state.Snapshot.
// An index outside the snapshot yields an action without an element, which
// the executor turns into a retry.
func (a *Agent) Plan(ctx context.Context, state *entity.ResearchState) (entity.Action, error) {
	snap := state.Snapshot

	messages, err := prompts.Messages(prompts.Planner, prompts.PlannerData{
		Subtopic:     state.ActiveSubtopic,
		ActionsTaken: state.ActionsTaken.Tail(maxTrace),
		Elements:     snap.Describe(maxElements),
		VisitedURLs:  state.VisitedURLs.Items(),
	})
	if err != nil {
		return entity.Action{}, err
	}

	resp, err := structured.Call[response](ctx, a.caller, site, output.TierPro, messages)
	if err != nil {
		return entity.Action{}, fmt.Errorf("plan next action: %w", err)
	}

	action := entity.Action{
		Thought:    resp.Thought,
		Type:       entity.ActionType(resp.ActionType),
		Args:       resp.Args,
		SnapshotID: snap.ID,
	}
	if action.Type.NeedsTarget() {
		if el, ok := snap.Find(resp.ElementIndex); ok {
			action.Element = &el
		} else {
			a.logger.Warn("Planned element not in snapshot", "index", resp.ElementIndex, "snapshot", snap.ID)
		}
	}

	if resp.Thought != "" {
		a.progress.ShowThinking(ctx, resp.Thought)
	}
	a.logger.Info("Action planned", "action", action.String(), "args", action.Args, "snapshot", snap.ID)
	return action, nil
}
