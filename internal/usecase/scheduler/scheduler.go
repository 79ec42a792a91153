// Package scheduler splits the research goal into subtopics and decides
// which one to work on next.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/prompts"
	"research-agent/internal/usecase/structured"
)

const (
	MinSubtopics = 3
	MaxSubtopics = 6

	decomposeSite = "subtopics"
	trackerSite   = "subtopic_selection"
)

var (
	ErrInvalidDecomposition = errors.New("invalid subtopic decomposition")
	ErrUnknownSubtopic      = errors.New("selected subtopic is not in the list")
)

type subtopicList entity.SubtopicList

func (l subtopicList) Validate() error {
	n := len(l.Subtopics)
	if n < MinSubtopics || n > MaxSubtopics {
		return fmt.Errorf("expected %d-%d subtopics, got %d", MinSubtopics, MaxSubtopics, n)
	}
	seen := make(map[string]bool, n)
	for i, s := range l.Subtopics {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			return fmt.Errorf("subtopic %d is empty", i)
		}
		if seen[key] {
			return fmt.Errorf("duplicate subtopic %q", s)
		}
		seen[key] = true
	}
	return nil
}

type selection struct {
	Subtopic string `json:"subtopic" description:"One subtopic from the list exactly as written, or ALL_DONE"`
}

func (s selection) Validate() error {
	if strings.TrimSpace(s.Subtopic) == "" {
		return errors.New("subtopic is empty")
	}
	return nil
}

// CompletionEntry is the status line recorded once a subtopic is written up.
func CompletionEntry(subtopic string) string {
	return "Comprehensive research on " + subtopic + " completed"
}

func IsCompleted(status []string, subtopic string) bool {
	entry := CompletionEntry(subtopic)
	for _, s := range status {
		if s == entry {
			return true
		}
	}
	return false
}

// SelectNext returns the first subtopic in list order without a completion
// entry, or entity.AllDone.
func SelectNext(subtopics, status []string) string {
	for _, s := range subtopics {
		if !IsCompleted(status, s) {
			return s
		}
	}
	return entity.AllDone
}

func ValidateSelection(subtopics []string, selected string) error {
	if selected == entity.AllDone {
		return nil
	}
	for _, s := range subtopics {
		if s == selected {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSubtopic, selected)
}

type Scheduler struct {
	caller      *structured.Caller
	logger      output.LoggerPort
	modelDriven bool
}

// New returns a scheduler. With modelDriven set the next subtopic is chosen
// by the model and validated against the list.
func New(caller *structured.Caller, logger output.LoggerPort, modelDriven bool) *Scheduler {
	return &Scheduler{caller: caller, logger: logger, modelDriven: modelDriven}
}

func (s *Scheduler) Decompose(ctx context.Context, goal string) ([]string, error) {
	messages, err := prompts.Messages(prompts.Decompose, prompts.DecomposeData{Goal: goal})
	if err != nil {
		return nil, err
	}

	list, err := structured.Call[subtopicList](ctx, s.caller, decomposeSite, output.TierFast, messages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDecomposition, err)
	}

	out := make([]string, len(list.Subtopics))
	for i, sub := range list.Subtopics {
		out[i] = strings.TrimSpace(sub)
	}
	s.logger.Info("Goal decomposed", "goal", goal, "subtopics", out)
	return out, nil
}

// Next picks the subtopic to research. The deterministic path never calls
// the model.
func (s *Scheduler) Next(ctx context.Context, state *entity.ResearchState) (string, error) {
	status := state.SubtopicStatus.Items()
	fallback := SelectNext(state.Subtopics, status)
	if !s.modelDriven || fallback == entity.AllDone {
		return fallback, nil
	}

	messages, err := prompts.Messages(prompts.Tracker, prompts.TrackerData{Subtopics: state.Subtopics, Status: status})
	if err != nil {
		return "", err
	}
	choice, err := structured.Call[selection](ctx, s.caller, trackerSite, output.TierFast, messages)
	if err != nil {
		s.logger.Warn("Model selection failed, using list order", "error", err)
		return fallback, nil
	}

	selected := strings.TrimSpace(choice.Subtopic)
	if err := ValidateSelection(state.Subtopics, selected); err != nil {
		return "", err
	}
	if selected == entity.AllDone || IsCompleted(status, selected) {
		s.logger.Warn("Model selected a finished subtopic, using list order", "selected", selected)
		return fallback, nil
	}
	return selected, nil
}
