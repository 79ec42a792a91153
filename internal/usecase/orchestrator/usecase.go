// Package orchestrator drives one research run through the state graph in
// fsm.go. Exactly one node runs at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"research-agent/internal/application/port/input"
	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
	"research-agent/internal/usecase/agents/compiler"
	"research-agent/internal/usecase/agents/extraction"
	"research-agent/internal/usecase/agents/navigation"
	"research-agent/internal/usecase/agents/planner"
	"research-agent/internal/usecase/capture"
	"research-agent/internal/usecase/evaluator"
	"research-agent/internal/usecase/executor"
	"research-agent/internal/usecase/scheduler"
	"research-agent/internal/usecase/sensing"
	"research-agent/internal/usecase/stuck"
)

const DefaultMaxSteps = 2000

var ErrStepLimit = errors.New("step limit reached")

var _ input.ResearchExecutor = (*UseCase)(nil)

type Deps struct {
	Browser    output.BrowserPort
	Scheduler  *scheduler.Scheduler
	Navigator  *navigation.Agent
	Sensor     *sensing.Sensor
	Planner    *planner.Agent
	Executor   *executor.Engine
	Capture    *capture.UseCase
	Evaluator  *evaluator.Evaluator
	Extraction *extraction.Agent
	Compiler   *compiler.Agent
	Stuck      *stuck.Detector
	Logger     output.LoggerPort
	Progress   output.ProgressPort
	Metrics    output.MetricsPort
}

type Config struct {
	StartURL string
	MaxSteps int
}

type UseCase struct {
	deps Deps
	cfg  Config
}

func New(deps Deps, cfg Config) *UseCase {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if deps.Metrics == nil {
		deps.Metrics = output.NopMetrics{}
	}
	if deps.Stuck == nil {
		deps.Stuck = stuck.New(stuck.DefaultWindow, stuck.DefaultThreshold)
	}
	return &UseCase{deps: deps, cfg: cfg}
}

// run is the mutable context of one Execute call.
type run struct {
	state          *entity.ResearchState
	page           output.PagePort
	subtopicStart  time.Time
	subtopicNumber int
	actions        int
	// forced holds why the subtopic budget ran out, empty while it lasts.
	forced         string
	shown          int
}

func (uc *UseCase) Execute(ctx context.Context, goal string) (*input.ExecuteResult, error) {
	uc.deps.Logger.Info("Research started", "goal", goal)

	r := &run{state: entity.NewResearchState(goal)}
	current := StateStart
	steps := 0

	for current != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("research cancelled in %s: %w", current, err)
		}
		if steps >= uc.cfg.MaxSteps {
			return uc.stopAtLimit(ctx, r, steps, fmt.Errorf("%w (%d) in %s", ErrStepLimit, uc.cfg.MaxSteps, current))
		}
		steps++
		uc.deps.Progress.ShowStep(ctx, steps, string(current))

		ev, err := uc.step(ctx, r, current)
		uc.flushTrace(ctx, r)
		if err != nil {
			uc.deps.Logger.Error("Research failed", "state", current, "error", err)
			return nil, err
		}

		next, err := transition(current, ev)
		if err != nil {
			return nil, err
		}
		uc.deps.Logger.Debug("Transition", "from", current, "event", ev, "to", next, "step", steps)
		current = next
	}

	uc.deps.Logger.Info("Research finished", "steps", steps, "sources", r.state.VisitedURLs.Len())
	return r.result(steps), nil
}

// stopAtLimit compiles a report from the subtopics finished so far. The
// result is returned together with the limit error.
func (uc *UseCase) stopAtLimit(ctx context.Context, r *run, steps int, limitErr error) (*input.ExecuteResult, error) {
	done := r.state.SubtopicAnswers.Len()
	uc.deps.Logger.Error("Research stopped", "error", limitErr, "completed", done)
	if done == 0 {
		return nil, limitErr
	}

	r.state.Trace("Step limit reached; compiling the report from %d completed subtopics", done)
	_, err := uc.compile(ctx, r)
	uc.flushTrace(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w; partial report: %v", limitErr, err)
	}
	return r.result(steps), limitErr
}

func (r *run) result(steps int) *input.ExecuteResult {
	return &input.ExecuteResult{
		FinalReport:     r.state.FinalReport,
		Subtopics:       r.state.Subtopics,
		SubtopicAnswers: r.state.SubtopicAnswers.Items(),
		VisitedURLs:     r.state.VisitedURLs.Items(),
		ActionsTaken:    r.state.ActionsTaken.Items(),
		Steps:           steps,
	}
}

func (uc *UseCase) step(ctx context.Context, r *run, s State) (Event, error) {
	switch s {
	case StateStart:
		return uc.start(ctx, r)
	case StateDecompose:
		return uc.decompose(ctx, r)
	case StateSchedule:
		return uc.schedule(ctx, r)
	case StateNavigate:
		uc.deps.Navigator.Run(ctx, r.state, r.page)
		return EventNext, nil
	case StateSense:
		return uc.sense(ctx, r), nil
	case StatePlan:
		return uc.plan(ctx, r), nil
	case StateAct:
		return uc.act(ctx, r), nil
	case StateScrollRead:
		return uc.scrollRead(ctx, r), nil
	case StateCapture:
		uc.deps.Capture.Store(ctx, r.state, r.page)
		return EventNext, nil
	case StateNoteVisit:
		r.state.NoteVisited(r.page.URL())
		return EventNext, nil
	case StateCloseOpened:
		r.page = uc.deps.Capture.CloseOpened(ctx, r.state, r.page)
		return EventNext, nil
	case StateReview:
		return uc.review(ctx, r), nil
	case StateSynthesize:
		uc.deps.Extraction.Synthesize(ctx, r.state)
		return EventNext, nil
	case StateClearIndex:
		uc.deps.Extraction.ClearIndex(ctx, r.state)
		return EventNext, nil
	case StateCompile:
		return uc.compile(ctx, r)
	default:
		return "", fmt.Errorf("%w: unknown state %s", ErrNoTransition, s)
	}
}

func (uc *UseCase) start(ctx context.Context, r *run) (Event, error) {
	page, err := uc.deps.Browser.Connect(ctx, uc.cfg.StartURL)
	if err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	r.page = page
	if err := uc.deps.Extraction.Reset(ctx, r.state); err != nil {
		return "", err
	}
	return EventNext, nil
}

func (uc *UseCase) decompose(ctx context.Context, r *run) (Event, error) {
	subtopics, err := uc.deps.Scheduler.Decompose(ctx, r.state.Goal)
	if err != nil {
		return "", err
	}
	r.state.Subtopics = subtopics
	uc.deps.Progress.ShowSubtopics(ctx, subtopics)
	return EventNext, nil
}

func (uc *UseCase) schedule(ctx context.Context, r *run) (Event, error) {
	next, err := uc.deps.Scheduler.Next(ctx, r.state)
	if err != nil {
		return "", fmt.Errorf("schedule: %w", err)
	}
	r.state.ActiveSubtopic = next
	if next == entity.AllDone {
		return EventAllDone, nil
	}

	r.state.ReviewIterations = 0
	r.state.NeedsMoreEvidence = true
	r.subtopicStart = time.Now()
	r.subtopicNumber++
	r.actions = 0
	r.forced = ""
	uc.deps.Stuck.Reset()

	uc.deps.Logger.Info("Researching subtopic", "subtopic", next, "index", r.subtopicNumber)
	uc.deps.Progress.ShowSubtopicStart(ctx, next, r.subtopicNumber, len(r.state.Subtopics))
	return EventMoreWork, nil
}

func (uc *UseCase) sense(ctx context.Context, r *run) Event {
	if reason, spent := uc.deps.Evaluator.Spent(r.actions, r.subtopicStart); spent {
		r.forced = reason
		return EventBudgetSpent
	}

	snap, err := uc.deps.Sensor.Sense(ctx, r.page)
	r.state.Snapshot = snap
	r.state.IsDocumentPage = snap.IsDocument
	r.state.PendingAction = nil
	if err != nil {
		uc.deps.Logger.Warn("Sensing failed", "error", err)
		r.state.Trace("Could not read the elements of %s, retrying...", snap.URL)
	}
	return EventNext
}

func (uc *UseCase) plan(ctx context.Context, r *run) Event {
	action, err := uc.deps.Planner.Plan(ctx, r.state)
	if err != nil {
		uc.deps.Logger.Error("Planning failed", "error", err)
		r.state.Trace("Could not decide on the next action, retrying...")
		return EventFailed
	}
	r.state.PendingAction = &action

	target := action.Args
	if action.Element != nil {
		target = action.Element.Label()
	}
	uc.deps.Progress.ShowAction(ctx, string(action.Type), target)
	return EventNext
}

func (uc *UseCase) act(ctx context.Context, r *run) Event {
	action := *r.state.PendingAction
	r.state.PendingAction = nil

	out := uc.deps.Executor.Execute(ctx, r.page, r.state.Snapshot, action)
	r.actions++
	r.page = out.Page
	r.state.NewPage = out.NewPage
	r.state.Trace("%s", out.Trace)

	uc.observe(action)

	switch {
	case out.Capture && out.NewPage:
		return EventNewTabOpened
	case out.Capture:
		r.state.IsDocumentPage = out.Document
		return EventScrollRead
	case !out.OK:
		return EventRetry
	default:
		return EventActionDone
	}
}

// scrollRead reads a freshly opened tab before capture.
func (uc *UseCase) scrollRead(ctx context.Context, r *run) Event {
	out := uc.deps.Executor.Execute(ctx, r.page, r.state.Snapshot, entity.Action{
		Type:       entity.ActionScrollRead,
		SnapshotID: r.state.Snapshot.ID,
	})
	r.page = out.Page
	r.state.IsDocumentPage = out.Document
	r.state.Trace("%s", out.Trace)
	return EventNext
}

func (uc *UseCase) review(ctx context.Context, r *run) Event {
	var verdict evaluator.Verdict
	if r.forced != "" {
		verdict = uc.deps.Evaluator.Force(r.state, r.forced)
		r.forced = ""
	} else {
		verdict = uc.deps.Evaluator.Evaluate(ctx, r.state, r.subtopicStart)
	}
	uc.deps.Progress.ShowReview(ctx, r.state.ActiveSubtopic, verdict.Sufficient, verdict.Reasoning)
	if verdict.Sufficient {
		return EventSufficient
	}
	return EventInsufficient
}

func (uc *UseCase) compile(ctx context.Context, r *run) (Event, error) {
	report, err := uc.deps.Compiler.Compile(ctx, r.state.Goal, r.state.SubtopicAnswers.Items(), r.state.VisitedURLs.Items())
	if err != nil {
		return "", err
	}
	r.state.FinalReport = report
	return EventNext, nil
}

// observe feeds the stuck detector. Its verdict is reported, not acted on.
func (uc *UseCase) observe(action entity.Action) {
	uc.deps.Stuck.Record(action.String())
	if !uc.deps.Stuck.Stuck() {
		return
	}
	strategy := uc.deps.Stuck.RecoveryStrategy()
	uc.deps.Metrics.StuckDetected(string(strategy))
	uc.deps.Logger.Warn("Agent appears stuck", "last_action", action.String(), "suggestion", strategy)
}

func (uc *UseCase) flushTrace(ctx context.Context, r *run) {
	entries := r.state.ActionsTaken.Items()
	for _, e := range entries[r.shown:] {
		uc.deps.Progress.ShowTrace(ctx, e, isFailure(e))
	}
	r.shown = len(entries)
}

func isFailure(entry string) bool {
	lower := strings.ToLower(entry)
	return strings.Contains(lower, "failed") || strings.Contains(lower, "retrying") || strings.Contains(lower, "error")
}
