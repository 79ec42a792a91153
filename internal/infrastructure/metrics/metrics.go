package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"research-agent/internal/application/port/output"
)

var (
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_actions_total",
			Help: "Browser actions executed",
		},
		[]string{"action", "status"}, // status: ok, failed
	)

	CapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_captures_total",
			Help: "Content capture outcomes",
		},
		[]string{"outcome"}, // stored, forbidden, no_data
	)

	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_reviews_total",
			Help: "Sufficiency reviews",
		},
		[]string{"verdict"}, // sufficient, insufficient, forced
	)

	SubtopicsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "research_agent_subtopics_completed_total",
			Help: "Subtopics written up",
		},
	)

	StuckTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_stuck_total",
			Help: "Times the agent repeated itself, by suggested recovery",
		},
		[]string{"strategy"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_llm_calls_total",
			Help: "Language model calls by call site",
		},
		[]string{"site", "status"},
	)
)

var _ output.MetricsPort = Recorder{}

// Recorder writes to the package level collectors.
type Recorder struct{}

func NewRecorder() Recorder {
	return Recorder{}
}

func (Recorder) ActionExecuted(actionType string, ok bool) {
	ActionsTotal.WithLabelValues(actionType, status(ok)).Inc()
}

func (Recorder) CaptureFinished(outcome string) {
	CapturesTotal.WithLabelValues(outcome).Inc()
}

func (Recorder) ReviewFinished(sufficient, forced bool) {
	verdict := "insufficient"
	switch {
	case forced:
		verdict = "forced"
	case sufficient:
		verdict = "sufficient"
	}
	ReviewsTotal.WithLabelValues(verdict).Inc()
}

func (Recorder) SubtopicCompleted() {
	SubtopicsCompleted.Inc()
}

func (Recorder) StuckDetected(strategy string) {
	StuckTotal.WithLabelValues(strategy).Inc()
}

func (Recorder) LLMCall(site string, err error) {
	LLMCallsTotal.WithLabelValues(site, status(err == nil)).Inc()
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
