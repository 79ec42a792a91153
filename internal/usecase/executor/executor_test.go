package executor

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"research-agent/internal/domain/entity"
	"research-agent/internal/infrastructure/logger"
	"research-agent/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ClickSettle = 0
	cfg.TypeSettle = 0
	cfg.BackSettle = 0
	cfg.DefaultWait = time.Millisecond
	cfg.MaxWait = 50 * time.Millisecond
	cfg.DocumentScrollDelay = 0
	cfg.SearchURL = "https://search.example"
	return cfg
}

type fixture struct {
	page    *testutil.Page
	browser *testutil.Browser
	metrics *testutil.Metrics
	engine  *Engine
	snap    entity.Snapshot
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	page := testutil.NewPage("https://start.example")
	browser := testutil.NewBrowser(page)
	_, err := browser.Connect(context.Background(), page.CurrentURL)
	require.NoError(t, err)
	metrics := testutil.NewMetrics()

	return &fixture{
		page:    page,
		browser: browser,
		metrics: metrics,
		engine:  New(browser, logger.NewNop(), metrics, cfg),
		snap: entity.Snapshot{ID: 7, Elements: []entity.DomElement{
			{Index: 0, Type: "link", XPath: "//a[1]", X: 10, Y: 20, Description: "Paper"},
			{Index: 1, Type: "button", XPath: "//button[1]", X: 30, Y: 40, Description: "Next"},
			{Index: 2, Type: "input", XPath: "//input[1]", X: 50, Y: 60, Description: "Search"},
		}},
	}
}

func (f *fixture) action(typ entity.ActionType, index int, args string) entity.Action {
	a := entity.Action{Type: typ, Args: args, SnapshotID: f.snap.ID}
	if index >= 0 {
		el, _ := f.snap.Find(index)
		a.Element = &el
	}
	return a
}

func TestClick_LinkOpensNewTab(t *testing.T) {
	f := newFixture(t, testConfig())
	opened := testutil.NewPage("https://paper.example")
	f.browser.NextPage = opened

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionClick, 0, ""))

	assert.True(t, out.OK)
	assert.True(t, out.NewPage)
	assert.True(t, out.Capture)
	assert.Equal(t, opened, out.Page)
	assert.Equal(t, "Clicked link element Paper", out.Trace)
	assert.Equal(t, 1, f.page.Called("ClickElement //a[1] [Control]")+f.page.Called("ClickElement //a[1] [Meta]"))
	assert.Zero(t, f.page.Called("ClickAt"))
}

func TestClick_NonLinkPlainClick(t *testing.T) {
	f := newFixture(t, testConfig())

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionClick, 1, ""))

	assert.True(t, out.OK)
	assert.False(t, out.NewPage)
	assert.False(t, out.Capture)
	assert.Equal(t, f.page, out.Page)
	assert.Equal(t, 1, f.page.Called("ClickElement //button[1] []"))
}

func TestClick_FallsBackToCoordinates(t *testing.T) {
	f := newFixture(t, testConfig())
	f.page.Errs["ScrollIntoView"] = errors.New("element not found")

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionClick, 1, ""))

	assert.True(t, out.OK)
	assert.Zero(t, f.page.Called("ClickElement"))
	assert.Equal(t, 1, f.page.Called("ClickAt 30 40 1 []"))
}

func TestClick_LadderOrderWhenEverythingFails(t *testing.T) {
	cfg := testConfig()
	cfg.ScreenshotDir = t.TempDir()
	f := newFixture(t, cfg)
	f.page.Errs["ClickElement"] = errors.New("detached")
	f.page.Errs["ClickAt"] = errors.New("out of viewport")

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionClick, 1, ""))

	assert.False(t, out.OK)
	assert.Equal(t, "All click attempts failed, retrying...", out.Trace)
	assert.Equal(t, f.page, out.Page)

	var order []string
	for _, c := range f.page.Calls {
		order = append(order, strings.Fields(c)[0])
	}
	assert.Equal(t, []string{"ScrollIntoView", "ClickElement", "ClickAt", "Eval", "Screenshot"}, order)

	entries, err := os.ReadDir(cfg.ScreenshotDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, f.metrics.Count("action click false"))
}

func TestClick_LinkWithoutNewTabIsNotClickedTwice(t *testing.T) {
	f := newFixture(t, testConfig())

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionClick, 0, ""))

	assert.False(t, out.OK)
	assert.False(t, out.NewPage)
	assert.Equal(t, "Link click didn't open new page, retrying...", out.Trace)
	assert.Equal(t, f.page, out.Page)
	assert.Equal(t, 1, f.page.Called("ClickElement //a[1]"))
	assert.Zero(t, f.page.Called("ClickAt"))
}

func TestClick_CoordinateLinkWithoutNewTab(t *testing.T) {
	f := newFixture(t, testConfig())
	f.page.Errs["ScrollIntoView"] = errors.New("element not found")

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionClick, 0, ""))

	assert.False(t, out.OK)
	assert.Equal(t, "Link click didn't open new page, retrying...", out.Trace)
	assert.Zero(t, f.page.Called("ClickElement"))
	assert.Equal(t, 1, f.page.Called("ClickAt 10 20 1"))
}

func TestExecute_StaleActionBecomesRetry(t *testing.T) {
	f := newFixture(t, testConfig())
	a := f.action(entity.ActionClick, 1, "")
	a.SnapshotID = f.snap.ID - 1

	out := f.engine.Execute(context.Background(), f.page, f.snap, a)

	assert.False(t, out.OK)
	assert.Contains(t, out.Trace, "retrying")
	assert.Empty(t, f.page.Calls)
}

func TestExecute_MissingTargetBecomesRetry(t *testing.T) {
	f := newFixture(t, testConfig())
	a := f.action(entity.ActionClick, 1, "")
	a.Element.XPath = "//div[9]"

	out := f.engine.Execute(context.Background(), f.page, f.snap, a)

	assert.False(t, out.OK)
	assert.Empty(t, f.page.Calls)

	a = f.action(entity.ActionTypeText, -1, "query")
	out = f.engine.Execute(context.Background(), f.page, f.snap, a)
	assert.False(t, out.OK)
	assert.Empty(t, f.page.Calls)
}

func TestType_CoordinatePath(t *testing.T) {
	f := newFixture(t, testConfig())

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionTypeText, 2, "grid storage"))

	assert.True(t, out.OK)
	assert.Equal(t, "Typed grid storage into input element Search", out.Trace)
	assert.Equal(t, []string{
		"ClickAt 50 60 3 []",
		"SelectAll",
		"PressKey Backspace",
		"TypeText grid storage",
		"PressKey Enter",
	}, f.page.Calls)
}

func TestType_FallsBackToXPath(t *testing.T) {
	f := newFixture(t, testConfig())
	f.page.Errs["ClickAt"] = errors.New("covered")

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionTypeText, 2, "grid"))

	assert.True(t, out.OK)
	assert.Equal(t, 1, f.page.Called("FocusElement //input[1]"))
	assert.Equal(t, 1, f.page.Called("TypeIntoElement //input[1] grid"))
	assert.Equal(t, 1, f.page.Called("PressKey Enter"))
}

func TestScrollRead_Webpage(t *testing.T) {
	f := newFixture(t, testConfig())
	f.page.EvalFunc = func(js string) (string, error) {
		if strings.Contains(js, "isPDF") {
			return "webpage", nil
		}
		return "", nil
	}

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionScrollRead, -1, ""))

	assert.True(t, out.Capture)
	assert.False(t, out.NewPage)
	assert.Equal(t, "Scrolled down the page and collected information", out.Trace)
	assert.Zero(t, f.page.Called("MouseWheel"))
}

func TestScrollRead_Document(t *testing.T) {
	f := newFixture(t, testConfig())
	f.page.EvalFunc = func(js string) (string, error) {
		if strings.Contains(js, "isPDF") {
			return "pdf", nil
		}
		return "", nil
	}

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionScrollRead, -1, ""))

	assert.True(t, out.Capture)
	assert.True(t, out.Document)
	assert.Equal(t, "Scrolled PDF viewer and collected the relevant information", out.Trace)
	assert.Equal(t, 1, f.page.Called("ClickAt 300 300 1"))
	assert.Equal(t, 50, f.page.Called("MouseWheel 300"))
	assert.Equal(t, 10, f.page.Called("MouseWheel -1500"))
}

func TestClosePage_SwitchesToRemainingTab(t *testing.T) {
	f := newFixture(t, testConfig())
	opened := testutil.NewPage("https://paper.example")
	f.browser.Open = append(f.browser.Open, opened)

	out := f.engine.Execute(context.Background(), opened, f.snap, f.action(entity.ActionClosePage, -1, ""))

	assert.True(t, out.OK)
	assert.Equal(t, f.page, out.Page)

	out = f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionClosePage, -1, ""))
	require.NotNil(t, out.Page)
	assert.Equal(t, "about:blank", out.Page.URL())
}

func TestWait_Duration(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWait = 2 * time.Second
	e := New(nil, logger.NewNop(), nil, cfg)

	assert.Equal(t, 500*time.Millisecond, e.waitDuration("0.5"))
	assert.Equal(t, 2*time.Second, e.waitDuration(" 2 "))
	assert.Equal(t, time.Millisecond, e.waitDuration(""))
	assert.Equal(t, time.Millisecond, e.waitDuration("abc"))
	assert.Equal(t, time.Millisecond, e.waitDuration("-3"))
	assert.Equal(t, time.Millisecond, e.waitDuration("120"))
}

func TestGoBackAndSearch(t *testing.T) {
	f := newFixture(t, testConfig())

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionGoBack, -1, ""))
	assert.True(t, out.OK)
	assert.Contains(t, out.Trace, "Navigated back to")

	out = f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionGoToSearch, -1, ""))
	assert.True(t, out.OK)
	assert.Equal(t, "https://search.example", f.page.URL())

	f.page.Errs["Navigate"] = errors.New("timeout")
	out = f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionGoToSearch, -1, ""))
	assert.False(t, out.OK)
	assert.Equal(t, f.page, out.Page)
}

func TestRetry_NoPageAction(t *testing.T) {
	f := newFixture(t, testConfig())

	out := f.engine.Execute(context.Background(), f.page, f.snap, f.action(entity.ActionRetry, -1, ""))

	assert.True(t, out.OK)
	assert.False(t, out.Capture)
	assert.Empty(t, f.page.Calls)
}
