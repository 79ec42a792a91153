package extraction

import (
	"context"
	"fmt"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/prompts"
	"research-agent/internal/usecase/scheduler"
	"research-agent/internal/usecase/structured"
)

const (
	DefaultK = 60

	site          = "subtopic_answer"
	maxExcerptLen = 500
)

// Agent writes up a subtopic from the retrieval index and then empties it.
type Agent struct {
	caller  *structured.Caller
	index   output.RetrievalIndex
	logger  output.LoggerPort
	metrics output.MetricsPort
	k       int
}

func New(
	caller *structured.Caller,
	index output.RetrievalIndex,
	logger output.LoggerPort,
	metrics output.MetricsPort,
	k int,
) *Agent {
	if k <= 0 {
		k = DefaultK
	}
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	return &Agent{
		caller:  caller,
		index:   index,
		logger:  logger,
		metrics: metrics,
		k:       k,
	}
}

// CompileSubtopic synthesizes the structured answer for subtopic.
func (a *Agent) CompileSubtopic(ctx context.Context, goal, subtopic string) (entity.SubtopicAnswer, error) {
	docs, err := a.index.SimilaritySearch(ctx, subtopic, a.k)
	if err != nil {
		return entity.SubtopicAnswer{}, fmt.Errorf("synthesis search: %w", err)
	}

	references := References(docs)
	excerpts := make([]string, 0, len(docs))
	for _, d := range docs {
		excerpts = append(excerpts, fmt.Sprintf("Source: %s\nContent: %s", d.Title, truncate(d.Content, maxExcerptLen)))
	}

	messages, err := prompts.Messages(prompts.Synthesis, prompts.SynthesisData{
		Subtopic:   subtopic,
		Goal:       goal,
		Excerpts:   excerpts,
		References: references,
	})
	if err != nil {
		return entity.SubtopicAnswer{}, err
	}

	answer, err := structured.Call[entity.SubtopicAnswer](ctx, a.caller, site, output.TierPro, messages)
	if err != nil {
		return entity.SubtopicAnswer{}, fmt.Errorf("synthesize %s: %w", subtopic, err)
	}
	answer.Subtopic = subtopic
	if len(answer.References) == 0 {
		answer.References = references
	}
	return answer, nil
}

// Synthesize records the answer for the active subtopic and marks it
// complete. A failed synthesis still completes the subtopic with a short
// placeholder answer so the run can move on.
func (a *Agent) Synthesize(ctx context.Context, state *entity.ResearchState) {
	subtopic := state.ActiveSubtopic

	answer, err := a.CompileSubtopic(ctx, state.Goal, subtopic)
	if err != nil {
		a.logger.Error("Subtopic synthesis failed", "subtopic", subtopic, "error", err)
		answer = entity.SubtopicAnswer{
			Subtopic: subtopic,
			Answer:   fmt.Sprintf("The collected evidence on %s could not be synthesized.", subtopic),
		}
		state.Trace("Failed to generate section on %s", subtopic)
	} else {
		state.Trace("Generated high-quality academic section on %s", subtopic)
	}

	state.SubtopicAnswers.Append(answer)
	state.SubtopicStatus.Append(scheduler.CompletionEntry(subtopic))
	state.NeedsMoreEvidence = false
	state.ReviewIterations = 0
	a.metrics.SubtopicCompleted()
	a.logger.Info("Subtopic completed", "subtopic", subtopic, "references", len(answer.References))
}

// ClearIndex empties the retrieval index before the next subtopic.
func (a *Agent) ClearIndex(ctx context.Context, state *entity.ResearchState) {
	if err := a.index.Clear(ctx); err != nil {
		a.logger.Error("Failed to empty vector store", "error", err)
		state.Trace("Error Emptying Vector Store")
		return
	}
	state.Trace("Emptied Vector Store")
}

// Reset empties the index before a run so chunks left by an interrupted
// run never count as evidence.
func (a *Agent) Reset(ctx context.Context, state *entity.ResearchState) error {
	if err := a.index.Clear(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	state.Trace("Cleared the vector store of earlier runs")
	return nil
}

// References returns one citation per distinct title and source, in
// retrieval order.
func References(docs []entity.Document) []string {
	seen := make(map[string]bool, len(docs))
	var out []string
	for _, d := range docs {
		key := d.Title + "|" + d.Source
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d.Reference())
	}
	return out
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
