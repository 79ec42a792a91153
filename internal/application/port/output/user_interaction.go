package output

import "context"

type ProgressPort interface {
	ShowSubtopics(ctx context.Context, subtopics []string)
	ShowSubtopicStart(ctx context.Context, subtopic string, index, total int)
	ShowStep(ctx context.Context, step int, state string)
	ShowThinking(ctx context.Context, content string)
	ShowAction(ctx context.Context, actionType, target string)
	ShowTrace(ctx context.Context, entry string, isError bool)
	ShowReview(ctx context.Context, subtopic string, sufficient bool, reasoning string)
}
