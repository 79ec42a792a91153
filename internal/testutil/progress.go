package testutil

import (
	"context"
	"fmt"
	"sync"
)

// Progress records everything shown to the user.
type Progress struct {
	mu     sync.Mutex
	Events []string
}

func (p *Progress) add(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, fmt.Sprintf(format, args...))
}

func (p *Progress) ShowSubtopics(ctx context.Context, subtopics []string) {
	p.add("subtopics %v", subtopics)
}

func (p *Progress) ShowSubtopicStart(ctx context.Context, subtopic string, index, total int) {
	p.add("start %d/%d %s", index, total, subtopic)
}

func (p *Progress) ShowStep(ctx context.Context, step int, state string) {
	p.add("step %d %s", step, state)
}

func (p *Progress) ShowThinking(ctx context.Context, content string) {
	p.add("thinking %s", content)
}

func (p *Progress) ShowAction(ctx context.Context, actionType, target string) {
	p.add("action %s %s", actionType, target)
}

func (p *Progress) ShowTrace(ctx context.Context, entry string, isError bool) {
	p.add("trace %v %s", isError, entry)
}

func (p *Progress) ShowReview(ctx context.Context, subtopic string, sufficient bool, reasoning string) {
	p.add("review %s %v", subtopic, sufficient)
}

// Metrics counts calls by name.
type Metrics struct {
	mu     sync.Mutex
	Counts map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{Counts: make(map[string]int)}
}

func (m *Metrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counts[key]++
}

func (m *Metrics) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[key]
}

func (m *Metrics) ActionExecuted(actionType string, ok bool) {
	m.inc(fmt.Sprintf("action %s %v", actionType, ok))
}

func (m *Metrics) CaptureFinished(outcome string) { m.inc("capture " + outcome) }

func (m *Metrics) ReviewFinished(sufficient, forced bool) {
	m.inc(fmt.Sprintf("review %v %v", sufficient, forced))
}

func (m *Metrics) SubtopicCompleted() { m.inc("subtopic") }

func (m *Metrics) StuckDetected(strategy string) { m.inc("stuck " + strategy) }

func (m *Metrics) LLMCall(site string, err error) {
	m.inc(fmt.Sprintf("llm %s %v", site, err == nil))
}
