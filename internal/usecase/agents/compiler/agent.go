package compiler

import (
	"context"
	"errors"
	"fmt"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/prompts"
	"research-agent/internal/usecase/structured"
)

const site = "final_report"

var ErrNoAnswers = errors.New("no subtopic answers to compile")

type Agent struct {
	caller *structured.Caller
	logger output.LoggerPort
}

func New(caller *structured.Caller, logger output.LoggerPort) *Agent {
	return &Agent{caller: caller, logger: logger}
}

// Compile writes the final report from the subtopic answers.
func (a *Agent) Compile(ctx context.Context, goal string, answers []entity.SubtopicAnswer, visitedURLs []string) (string, error) {
	if len(answers) == 0 {
		return "", ErrNoAnswers
	}

	messages, err := prompts.Messages(prompts.Compile, prompts.CompileData{
		Goal:        goal,
		Answers:     answers,
		VisitedURLs: visitedURLs,
	})
	if err != nil {
		return "", err
	}

	a.logger.Info("Compiling final report", "goal", goal, "sections", len(answers), "sources", len(visitedURLs))
	report, err := structured.Text(ctx, a.caller, site, output.TierPro, messages)
	if err != nil {
		return "", fmt.Errorf("compile report: %w", err)
	}
	return report, nil
}
