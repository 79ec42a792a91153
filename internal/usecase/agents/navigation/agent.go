package navigation

import (
	"context"
	"fmt"
	"time"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/prompts"
	"research-agent/internal/usecase/structured"
)

const (
	site = "navigation_decision"

	defaultNavTimeout = 30 * time.Second
	maxHistory        = 20
)

// Agent decides once per subtopic whether the browser should move before
// the research loop starts.
type Agent struct {
	caller     *structured.Caller
	logger     output.LoggerPort
	progress   output.ProgressPort
	searchURL  string
	navTimeout time.Duration
}

func New(
	caller *structured.Caller,
	logger output.LoggerPort,
	progress output.ProgressPort,
	searchURL string,
	navTimeout time.Duration,
) *Agent {
	if navTimeout <= 0 {
		navTimeout = defaultNavTimeout
	}
	return &Agent{
		caller:     caller,
		logger:     logger,
		progress:   progress,
		searchURL:  searchURL,
		navTimeout: navTimeout,
	}
}

// Decide returns the URL to open, or false to stay on the current page.
func (a *Agent) Decide(ctx context.Context, task string, history []string, currentURL string) (string, bool, error) {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	messages, err := prompts.Messages(prompts.Navigation, prompts.NavigationData{
		Task:       task,
		History:    history,
		CurrentURL: currentURL,
	})
	if err != nil {
		return "", false, err
	}

	decision, err := structured.Call[entity.NavigationDecision](ctx, a.caller, site, output.TierFast, messages)
	if err != nil {
		return "", false, fmt.Errorf("navigation decision: %w", err)
	}

	target, ok := decision.Target()
	if !ok && decision.URL != entity.NoChange {
		a.logger.Warn("Ignoring invalid navigation target", "url", decision.URL)
	}
	return target, ok, nil
}

// Run decides and applies the move for the active subtopic. A failed
// decision keeps the page; a failed navigation falls back to search.
func (a *Agent) Run(ctx context.Context, state *entity.ResearchState, page output.PagePort) {
	task := fmt.Sprintf("%s (current subtopic: %s)", state.Goal, state.ActiveSubtopic)
	current := page.URL()

	target, move, err := a.Decide(ctx, task, state.ConversationHistory.Items(), current)
	if err != nil {
		a.logger.Error("Navigation decision failed", "error", err)
		a.trace(state, "Navigation decision failed, staying on %s", current)
		return
	}
	if !move {
		a.logger.Info("Navigation unchanged", "url", current)
		a.trace(state, "Staying on %s for %s", current, state.ActiveSubtopic)
		return
	}

	a.progress.ShowAction(ctx, "navigate", target)
	if err := page.Navigate(ctx, target, a.navTimeout); err != nil {
		a.logger.Warn("Navigation failed, falling back to search", "url", target, "error", err)
		if fallbackErr := page.Navigate(ctx, a.searchURL, a.navTimeout); fallbackErr != nil {
			a.logger.Error("Search fallback failed", "url", a.searchURL, "error", fallbackErr)
			a.trace(state, "Failed to navigate to %s and to %s", target, a.searchURL)
			return
		}
		a.trace(state, "Failed to navigate to %s, navigated to %s instead", target, a.searchURL)
		return
	}
	a.trace(state, "Navigated to %s", target)
}

func (a *Agent) trace(state *entity.ResearchState, format string, args ...any) {
	state.ConversationHistory.Append(state.Trace(format, args...))
}
