// Package evaluator decides whether the evidence gathered for a subtopic is
// enough to write it up.
package evaluator

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
	DefaultK             = 40
	DefaultMaxIterations = 25
	DefaultMaxDuration   = 20 * time.Minute
	DefaultMaxActions    = 150

	site = "self_review"
)

// Config bounds the work spent on one subtopic. MaxIterations counts
// reviews, MaxActions counts browser actions, MaxDuration is wall clock.
type Config struct {
	K             int
	MaxIterations int
	MaxDuration   time.Duration
	MaxActions    int
}

func DefaultConfig() Config {
	return Config{
		K:             DefaultK,
		MaxIterations: DefaultMaxIterations,
		MaxDuration:   DefaultMaxDuration,
		MaxActions:    DefaultMaxActions,
	}
}

type Verdict struct {
	Sufficient bool
	Forced     bool
	Reasoning  string
}

type Evaluator struct {
	caller  *structured.Caller
	index   output.RetrievalIndex
	logger  output.LoggerPort
	metrics output.MetricsPort
	cfg     Config
	now     func() time.Time
}

func New(caller *structured.Caller, index output.RetrievalIndex, logger output.LoggerPort, metrics output.MetricsPort, cfg Config) *Evaluator {
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	return &Evaluator{
		caller:  caller,
		index:   index,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Review asks the model whether the indexed documents answer subtopic. An
// empty index is insufficient without a model call.
func (e *Evaluator) Review(ctx context.Context, subtopic string) (Verdict, error) {
	docs, err := e.index.SimilaritySearch(ctx, subtopic, e.cfg.K)
	if err != nil {
		return Verdict{}, fmt.Errorf("review search: %w", err)
	}
	if len(docs) == 0 {
		return Verdict{Reasoning: "no documents collected yet"}, nil
	}

	messages, err := prompts.Messages(prompts.Review, prompts.ReviewData{Subtopic: subtopic, Documents: docs})
	if err != nil {
		return Verdict{}, err
	}

	review, err := structured.Call[entity.SelfReview](ctx, e.caller, site, output.TierFast, messages)
	if err != nil {
		return Verdict{}, fmt.Errorf("self review: %w", err)
	}
	return Verdict{Sufficient: review.Sufficient(), Reasoning: review.Reasoning}, nil
}

// Evaluate runs one review iteration for the active subtopic. Once the
// iteration or wall-clock budget since started is spent the verdict is
// forced to sufficient.
func (e *Evaluator) Evaluate(ctx context.Context, state *entity.ResearchState, started time.Time) Verdict {
	subtopic := state.ActiveSubtopic
	state.ReviewIterations++

	if e.exhausted(state.ReviewIterations, started) {
		e.logger.Warn("Review budget exhausted", "subtopic", subtopic, "iterations", state.ReviewIterations)
		state.Trace("Review budget exhausted for %s; proceeding with collected evidence", subtopic)
		return e.force(state, "review budget exhausted")
	}

	verdict, err := e.Review(ctx, subtopic)
	if err != nil {
		e.logger.Error("Review failed", "subtopic", subtopic, "error", err)
		verdict = Verdict{Reasoning: err.Error()}
	}

	state.NeedsMoreEvidence = !verdict.Sufficient
	if verdict.Sufficient {
		state.Trace("I have enough information on %s. I will now proceed to write the article on %s", subtopic, subtopic)
	} else {
		state.Trace("I need more information on %s. I should visit more websites to gather information on %s", subtopic, subtopic)
	}
	e.metrics.ReviewFinished(verdict.Sufficient, false)
	e.logger.Info("Review finished", "subtopic", subtopic, "sufficient", verdict.Sufficient, "iteration", state.ReviewIterations)
	return verdict
}

// Spent reports whether the subtopic ran out of actions or time before a
// review could settle it, and why.
func (e *Evaluator) Spent(actions int, started time.Time) (string, bool) {
	if e.cfg.MaxActions > 0 && actions >= e.cfg.MaxActions {
		return fmt.Sprintf("%d actions taken", actions), true
	}
	if e.overTime(started) {
		return fmt.Sprintf("more than %s spent", e.cfg.MaxDuration), true
	}
	return "", false
}

// Force closes the active subtopic with whatever evidence is indexed.
func (e *Evaluator) Force(state *entity.ResearchState, reason string) Verdict {
	e.logger.Warn("Subtopic budget spent", "subtopic", state.ActiveSubtopic, "reason", reason)
	state.Trace("Research budget spent for %s (%s); proceeding with collected evidence", state.ActiveSubtopic, reason)
	return e.force(state, reason)
}

func (e *Evaluator) force(state *entity.ResearchState, reason string) Verdict {
	state.NeedsMoreEvidence = false
	e.metrics.ReviewFinished(true, true)
	return Verdict{Sufficient: true, Forced: true, Reasoning: reason}
}

func (e *Evaluator) overTime(started time.Time) bool {
	return e.cfg.MaxDuration > 0 && !started.IsZero() && e.now().Sub(started) > e.cfg.MaxDuration
}

func (e *Evaluator) exhausted(iterations int, started time.Time) bool {
	if e.cfg.MaxIterations > 0 && iterations > e.cfg.MaxIterations {
		return true
	}
	return e.overTime(started)
}
