package entity

import "fmt"

// AllDone is the scheduler result once every subtopic has been completed.
const AllDone = "ALL_DONE"

// ResearchState is threaded through every node of a run. The browser tab
// handle is held by the orchestrator next to it, the state only records
// what the tab showed.
type ResearchState struct {
	Goal      string
	Subtopics []string

	SubtopicStatus Log[string]
	ActiveSubtopic string

	VisitedURLs         Log[string]
	ActionsTaken        Log[string]
	ConversationHistory Log[string]

	Snapshot       Snapshot
	PendingAction  *Action
	IsDocumentPage bool
	NewPage        bool

	SubtopicAnswers   Log[SubtopicAnswer]
	NeedsMoreEvidence bool
	ReviewIterations  int
	FinalReport       string
}

func NewResearchState(goal string) *ResearchState {
	return &ResearchState{Goal: goal}
}

func (s *ResearchState) Trace(format string, args ...any) string {
	entry := fmt.Sprintf(format, args...)
	s.ActionsTaken.Append(entry)
	return entry
}

// NoteVisited records url unless it is already present.
func (s *ResearchState) NoteVisited(url string) bool {
	if url == "" || Contains(s.VisitedURLs, url) {
		return false
	}
	s.VisitedURLs.Append(url)
	return true
}

func (s *ResearchState) DomElements() []DomElement {
	return s.Snapshot.Elements
}
