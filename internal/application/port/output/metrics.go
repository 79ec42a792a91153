package output

type MetricsPort interface {
	ActionExecuted(actionType string, ok bool)
	CaptureFinished(outcome string)
	ReviewFinished(sufficient bool, forced bool)
	SubtopicCompleted()
	StuckDetected(strategy string)
	LLMCall(site string, err error)
}

type NopMetrics struct{}

func (NopMetrics) ActionExecuted(string, bool) {}
func (NopMetrics) CaptureFinished(string) {}
func (NopMetrics) ReviewFinished(bool, bool) {}
func (NopMetrics) SubtopicCompleted() {}
func (NopMetrics) StuckDetected(string) {}
func (NopMetrics) LLMCall(string, error) {}
