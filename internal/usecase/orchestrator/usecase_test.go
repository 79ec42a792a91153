package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/logger"
	"research-agent/internal/testutil"
	"research-agent/internal/usecase/agents/compiler"
	"research-agent/internal/usecase/agents/extraction"
	"research-agent/internal/usecase/agents/navigation"
	"research-agent/internal/usecase/agents/planner"
	"research-agent/internal/usecase/capture"
	"research-agent/internal/usecase/evaluator"
	"research-agent/internal/usecase/executor"
	"research-agent/internal/usecase/scheduler"
	"research-agent/internal/usecase/sensing"
	"research-agent/internal/usecase/structured"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	startURL = "https://search.example/results"
	paperURL = "https://journal.example/grid-storage"

	answerJSON = `{"subtopic":"","subtopic_answer":"Section text.","methodology":{"research_paradigm":"qualitative","data_collection_methods":[],"analysis_techniques":[],"limitations":[],"validity_concerns":[]},"research_gaps":[],"citation_network":{"key_authors":[],"seminal_papers":[],"recent_developments":[],"conflicting_findings":[]},"source_quality_assessment":[],"key_findings":[],"contradictions":[],"references":[]}`

	scrollReadJSON = `{"thought":"read it","action_type":"scroll_read","args":"","element_index":-1}`
	clickJSON      = `{"thought":"open the paper","action_type":"click","args":"","element_index":0}`
	retryJSON      = `{"thought":"","action_type":"retry","args":"","element_index":-1}`
)

type harness struct {
	llm       *testutil.LLM
	page      *testutil.Page
	browser   *testutil.Browser
	index     *testutil.Index
	extractor *testutil.Extractor
	progress  *testutil.Progress
	metrics   *testutil.Metrics
	reviewCfg evaluator.Config
	maxSteps  int
}

func newHarness() *harness {
	page := testutil.NewPage(startURL)
	page.Elements = []entity.DomElement{{Index: 0, Type: "link", XPath: "//a[1]", X: 5, Y: 5, Description: "Grid storage paper"}}

	llm := testutil.NewLLM().
		On("subtopics", `{"subtopics":["Definitions","Costs","Policy"]}`).
		On("navigation_decision", `{"url":"NO_CHANGE"}`).
		On("self_review", `{"answer":"Yes","reasoning":"enough"}`).
		On("subtopic_answer", answerJSON).
		On(testutil.TextSite, "# Final report")

	return &harness{
		llm:     llm,
		page:    page,
		browser: testutil.NewBrowser(page),
		index:   testutil.NewIndex(),
		extractor: &testutil.Extractor{Pages: map[string]string{
			startURL: "Search results about grid storage systems and battery costs.",
			paperURL: "Peer reviewed study of grid storage costs and policy.",
		}},
		progress:  &testutil.Progress{},
		metrics:   testutil.NewMetrics(),
		reviewCfg: evaluator.DefaultConfig(),
	}
}

func (h *harness) build() *UseCase {
	log := logger.NewNop()
	caller := structured.NewCaller(h.llm, log, h.metrics, 2, 0)

	execCfg := executor.DefaultConfig()
	execCfg.ClickSettle = 0
	execCfg.TypeSettle = 0
	execCfg.BackSettle = 0
	execCfg.DefaultWait = 0
	execCfg.DocumentScrollDelay = 0
	execCfg.SearchURL = startURL

	return New(Deps{
		Browser:    h.browser,
		Scheduler:  scheduler.New(caller, log, false),
		Navigator:  navigation.New(caller, log, h.progress, startURL, time.Second),
		Sensor:     sensing.New(log, 0),
		Planner:    planner.New(caller, log, h.progress),
		Executor:   executor.New(h.browser, log, h.metrics, execCfg),
		Capture:    capture.New(h.extractor, h.index, h.browser, log, h.metrics, 200, 20),
		Evaluator:  evaluator.New(caller, h.index, log, h.metrics, h.reviewCfg),
		Extraction: extraction.New(caller, h.index, log, h.metrics, 0),
		Compiler:   compiler.New(caller, log),
		Logger:     log,
		Progress:   h.progress,
		Metrics:    h.metrics,
	}, Config{StartURL: startURL, MaxSteps: h.maxSteps})
}

func count(entries []string, prefix string) int {
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func TestExecute_ScrollReadRun(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", scrollReadJSON)

	res, err := h.build().Execute(context.Background(), "Grid-scale energy storage")
	require.NoError(t, err)

	assert.Equal(t, "# Final report", res.FinalReport)
	assert.Equal(t, []string{"Definitions", "Costs", "Policy"}, res.Subtopics)
	require.Len(t, res.SubtopicAnswers, 3)
	for i, s := range res.Subtopics {
		assert.Equal(t, s, res.SubtopicAnswers[i].Subtopic)
	}
	assert.Equal(t, []string{startURL}, res.VisitedURLs)
	assert.Equal(t, 3, count(res.ActionsTaken, "Emptied Vector Store"))
	assert.Equal(t, 3, count(res.ActionsTaken, "Generated high-quality academic section on"))
	assert.Equal(t, 3, h.metrics.Count("subtopic"))
	assert.Equal(t, 4, h.index.Clears, "once at start and once per subtopic")
	assert.Empty(t, h.browser.Closed)
}

func TestExecute_NewTabIsCapturedAndClosed(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", clickJSON, scrollReadJSON)
	paper := testutil.NewPage(paperURL)
	h.browser.NextPage = paper

	res, err := h.build().Execute(context.Background(), "Grid-scale energy storage")
	require.NoError(t, err)

	assert.Equal(t, []string{paperURL, startURL}, res.VisitedURLs)
	assert.Equal(t, []*testutil.Page{paper}, h.browser.Closed)
	assert.Contains(t, res.ActionsTaken, "Clicked link element Grid storage paper")
	assert.Contains(t, res.ActionsTaken, "Scraped the url "+paperURL+" and stored the information in a vector database for future reference")
	assert.Contains(t, res.ActionsTaken, "Closed the opened link "+paperURL+" and switched to "+startURL)
	assert.Equal(t, 3, paper.Called("Eval"), "document check, scroll and rendered DOM")
}

func TestExecute_EmptyEvidenceHitsReviewBudget(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", scrollReadJSON)
	h.extractor.Err = output.ErrNoData
	h.reviewCfg.MaxIterations = 2

	res, err := h.build().Execute(context.Background(), "Grid-scale energy storage")
	require.NoError(t, err)

	assert.Equal(t, 3, count(res.ActionsTaken, "Review budget exhausted for"))
	assert.Equal(t, 9, count(res.ActionsTaken, "No textual content found on the webpage"))
	assert.Empty(t, h.llm.CallsFor("self_review"), "empty index never reaches the model")
	assert.Len(t, res.SubtopicAnswers, 3)
}

func TestExecute_InvalidDecompositionIsFatal(t *testing.T) {
	h := newHarness()
	h.llm = testutil.NewLLM().On("subtopics", `{"subtopics":["only"]}`)

	_, err := h.build().Execute(context.Background(), "goal")
	assert.ErrorIs(t, err, scheduler.ErrInvalidDecomposition)
}

func TestExecute_StepLimit(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", scrollReadJSON)
	h.maxSteps = 5

	_, err := h.build().Execute(context.Background(), "goal")
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestExecute_StepLimitCompilesFinishedSubtopics(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", scrollReadJSON)
	h.maxSteps = 15

	res, err := h.build().Execute(context.Background(), "goal")
	assert.ErrorIs(t, err, ErrStepLimit)
	require.NotNil(t, res)
	assert.Equal(t, "# Final report", res.FinalReport)
	assert.Len(t, res.SubtopicAnswers, 1)
	assert.Contains(t, res.ActionsTaken, "Step limit reached; compiling the report from 1 completed subtopics")
}

func TestExecute_ActionBudgetClosesSubtopic(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", retryJSON)
	h.reviewCfg.MaxActions = 2

	res, err := h.build().Execute(context.Background(), "goal")
	require.NoError(t, err)

	assert.Len(t, res.SubtopicAnswers, 3)
	assert.Equal(t, 3, count(res.ActionsTaken, "Research budget spent for"))
	assert.Len(t, h.llm.CallsFor("next_action"), 6)
	assert.Equal(t, 3, h.metrics.Count("review true true"))
	assert.Equal(t, "# Final report", res.FinalReport)
}

func TestExecute_WallClockBudgetClosesSubtopic(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", retryJSON)
	h.reviewCfg.MaxDuration = time.Nanosecond
	h.reviewCfg.MaxIterations = 1
	h.maxSteps = 300

	res, err := h.build().Execute(context.Background(), "goal")
	require.NoError(t, err)

	assert.Len(t, res.SubtopicAnswers, 3)
	assert.Contains(t, res.ActionsTaken, "Research budget spent for Definitions (more than 1ns spent); proceeding with collected evidence")
	assert.Empty(t, h.llm.CallsFor("next_action"))
}

func TestExecute_ClearsIndexLeftByEarlierRun(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", scrollReadJSON)
	h.index = testutil.NewIndex(entity.Document{
		Content: "Definitions Costs Policy from an aborted run",
		Source:  "https://old.example/x",
	})
	h.extractor.Err = output.ErrNoData
	h.reviewCfg.MaxIterations = 1

	res, err := h.build().Execute(context.Background(), "goal")
	require.NoError(t, err)

	assert.Equal(t, "Cleared the vector store of earlier runs", res.ActionsTaken[0])
	assert.Empty(t, h.llm.CallsFor("self_review"), "stale chunks never reach review")
	assert.Empty(t, h.index.Docs)
	for _, a := range res.SubtopicAnswers {
		assert.NotContains(t, strings.Join(a.References, " "), "old.example")
	}
}

func TestExecute_IndexResetFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.index.ClearErr = errors.New("database is locked")

	res, err := h.build().Execute(context.Background(), "goal")
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "reset index")
}

func TestExecute_Cancelled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.build().Execute(ctx, "goal")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_StuckDetectorOnlyObserves(t *testing.T) {
	h := newHarness()
	h.llm.On("next_action", retryJSON)
	h.maxSteps = 60

	_, err := h.build().Execute(context.Background(), "goal")
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Positive(t, h.metrics.Count("stuck go_to_search"))
}
