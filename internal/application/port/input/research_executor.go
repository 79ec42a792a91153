package input

import (
	"context"

	"research-agent/internal/domain/entity"
)

type ExecuteResult struct {
	FinalReport     string
	Subtopics       []string
	SubtopicAnswers []entity.SubtopicAnswer
	VisitedURLs     []string
	ActionsTaken    []string
	Steps           int
}

type ResearchExecutor interface {
	Execute(ctx context.Context, goal string) (*ExecuteResult, error)
}
