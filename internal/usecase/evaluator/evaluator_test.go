package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/logger"
	"research-agent/internal/testutil"
	"research-agent/internal/usecase/structured"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(llm *testutil.LLM, index *testutil.Index, cfg Config) *Evaluator {
	caller := structured.NewCaller(llm, logger.NewNop(), nil, 2, 0)
	return New(caller, index, logger.NewNop(), nil, cfg)
}

func TestReview_EmptyIndexSkipsModel(t *testing.T) {
	llm := testutil.NewLLM()
	e := newEvaluator(llm, testutil.NewIndex(), DefaultConfig())

	verdict, err := e.Review(context.Background(), "battery chemistry")
	require.NoError(t, err)
	assert.False(t, verdict.Sufficient)
	assert.Empty(t, llm.Calls)
}

func TestReview_UsesModelVerdict(t *testing.T) {
	llm := testutil.NewLLM().On(site, `{"answer":"Yes","reasoning":"covers costs and chemistry"}`)
	index := testutil.NewIndex(entity.Document{Content: "battery chemistry overview", Source: "https://a"})
	e := newEvaluator(llm, index, DefaultConfig())

	verdict, err := e.Review(context.Background(), "battery chemistry")
	require.NoError(t, err)
	assert.True(t, verdict.Sufficient)
	assert.Equal(t, "covers costs and chemistry", verdict.Reasoning)
	assert.Equal(t, []string{"battery chemistry"}, index.Queries)

	calls := llm.CallsFor(site)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[1].Content, "battery chemistry overview")
}

func TestReview_RetriesSchemaViolation(t *testing.T) {
	llm := testutil.NewLLM().On(site, `{"answer":"Perhaps"}`, `{"answer":"No","reasoning":"thin"}`)
	index := testutil.NewIndex(entity.Document{Content: "x"})
	e := newEvaluator(llm, index, DefaultConfig())

	verdict, err := e.Review(context.Background(), "topic")
	require.NoError(t, err)
	assert.False(t, verdict.Sufficient)
	assert.Len(t, llm.CallsFor(site), 2)
}

func TestEvaluate_TracesOutcome(t *testing.T) {
	llm := testutil.NewLLM().On(site, `{"answer":"No","reasoning":"thin"}`, `{"answer":"Yes","reasoning":"ok"}`)
	index := testutil.NewIndex(entity.Document{Content: "x"})
	e := newEvaluator(llm, index, DefaultConfig())

	state := entity.NewResearchState("goal")
	state.ActiveSubtopic = "Costs"

	v := e.Evaluate(context.Background(), state, time.Now())
	assert.False(t, v.Sufficient)
	assert.True(t, state.NeedsMoreEvidence)
	last, _ := state.ActionsTaken.Last()
	assert.Equal(t, "I need more information on Costs. I should visit more websites to gather information on Costs", last)

	v = e.Evaluate(context.Background(), state, time.Now())
	assert.True(t, v.Sufficient)
	last, _ = state.ActionsTaken.Last()
	assert.Equal(t, "I have enough information on Costs. I will now proceed to write the article on Costs", last)
	assert.Equal(t, 2, state.ReviewIterations)
}

func TestEvaluate_ModelFailureIsInsufficient(t *testing.T) {
	llm := testutil.NewLLM().Fail(site, errors.New("upstream 502"))
	index := testutil.NewIndex(entity.Document{Content: "x"})
	e := newEvaluator(llm, index, DefaultConfig())

	state := entity.NewResearchState("goal")
	state.ActiveSubtopic = "Costs"

	v := e.Evaluate(context.Background(), state, time.Now())
	assert.False(t, v.Sufficient)
	assert.False(t, v.Forced)
}

func TestEvaluate_IterationBudgetForcesSufficient(t *testing.T) {
	llm := testutil.NewLLM()
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	e := newEvaluator(llm, testutil.NewIndex(), cfg)

	state := entity.NewResearchState("goal")
	state.ActiveSubtopic = "Costs"

	assert.False(t, e.Evaluate(context.Background(), state, time.Now()).Sufficient)
	assert.False(t, e.Evaluate(context.Background(), state, time.Now()).Sufficient)

	v := e.Evaluate(context.Background(), state, time.Now())
	assert.True(t, v.Sufficient)
	assert.True(t, v.Forced)
	last, _ := state.ActionsTaken.Last()
	assert.Equal(t, "Review budget exhausted for Costs; proceeding with collected evidence", last)
	assert.Empty(t, llm.Calls)
}

func TestEvaluate_DurationBudgetForcesSufficient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDuration = time.Minute
	e := newEvaluator(testutil.NewLLM(), testutil.NewIndex(), cfg)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return start.Add(2 * time.Minute) }

	state := entity.NewResearchState("goal")
	state.ActiveSubtopic = "Costs"

	v := e.Evaluate(context.Background(), state, start)
	assert.True(t, v.Forced)
}

func TestSpent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxActions = 3
	cfg.MaxDuration = time.Minute
	e := newEvaluator(testutil.NewLLM(), testutil.NewIndex(), cfg)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return start.Add(30 * time.Second) }

	_, spent := e.Spent(2, start)
	assert.False(t, spent)

	reason, spent := e.Spent(3, start)
	assert.True(t, spent)
	assert.Equal(t, "3 actions taken", reason)

	e.now = func() time.Time { return start.Add(2 * time.Minute) }
	reason, spent = e.Spent(0, start)
	assert.True(t, spent)
	assert.Equal(t, "more than 1m0s spent", reason)
}

func TestForce(t *testing.T) {
	e := newEvaluator(testutil.NewLLM(), testutil.NewIndex(), DefaultConfig())
	state := entity.NewResearchState("goal")
	state.ActiveSubtopic = "Costs"
	state.NeedsMoreEvidence = true

	v := e.Force(state, "5 actions taken")

	assert.True(t, v.Sufficient)
	assert.True(t, v.Forced)
	assert.False(t, state.NeedsMoreEvidence)
	last, _ := state.ActionsTaken.Last()
	assert.Equal(t, "Research budget spent for Costs (5 actions taken); proceeding with collected evidence", last)
}
