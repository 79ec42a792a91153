// Package executor runs one planned browser action with ordered fallbacks.
// Handlers never return errors: every outcome is a trace line and a route.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
)

const (
	scrollTopJS = `async () => {
		const delay = ms => new Promise(resolve => setTimeout(resolve, ms));
		window.scrollTo({ top: 0, left: 0, behavior: 'smooth' });
		for (let i = 0; i < 50 && window.scrollY > 0; i++) {
			await delay(100);
		}
	}`

	scrollPageJS = `async () => {
		const delay = ms => new Promise(resolve => setTimeout(resolve, ms));
		let scrollCount = 0;
		while (scrollCount < 10 && (window.innerHeight + window.scrollY) < document.body.scrollHeight) {
			window.scrollBy({ top: 650, left: 0, behavior: 'smooth' });
			scrollCount++;
			await delay(350);
		}
		window.scrollTo({ top: 0, left: 0, behavior: 'smooth' });
		for (let i = 0; i < 50 && window.scrollY > 0; i++) {
			await delay(100);
		}
	}`

	isDocumentJS = `() => {
		const url = window.location.href.toLowerCase();
		const isPDF = url.endsWith('.pdf') ||
			document.querySelector("embed[type*='pdf']") ||
			document.querySelector("iframe[src*='.pdf']");
		return isPDF ? "pdf" : "webpage";
	}`

	selectAllJS   = `() => String(document.execCommand('selectAll', false, null))`
	historyBackJS = `() => { window.history.back(); }`

	clickFailedTrace = "All click attempts failed, retrying..."
	noNewTabTrace    = "Link click didn't open new page, retrying..."
)

var (
	ErrStaleAction   = errors.New("action planned from a stale snapshot")
	ErrMissingTarget = errors.New("action target not in snapshot")
)

type Config struct {
	SearchURL     string
	ScreenshotDir string

	ClickTimeout  time.Duration
	NewTabTimeout time.Duration
	NavTimeout    time.Duration

	ClickSettle time.Duration
	TypeSettle  time.Duration
	BackSettle  time.Duration
	DefaultWait time.Duration
	MaxWait     time.Duration

	DocumentScrollDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		SearchURL:           "https://www.google.com",
		ClickTimeout:        5 * time.Second,
		NewTabTimeout:       10 * time.Second,
		NavTimeout:          30 * time.Second,
		ClickSettle:         2 * time.Second,
		TypeSettle:          time.Second,
		BackSettle:          5 * time.Second,
		DefaultWait:         5 * time.Second,
		MaxWait:             30 * time.Second,
		DocumentScrollDelay: 100 * time.Millisecond,
	}
}

// Outcome is what one action did. Capture is set when the next step is
// content capture (a new tab opened or the page was read by scrolling).
// Document is only meaningful after a scroll read.
type Outcome struct {
	Trace    string
	Page     output.PagePort
	NewPage  bool
	Capture  bool
	Document bool
	OK       bool
}

type Engine struct {
	browser output.BrowserPort
	logger  output.LoggerPort
	metrics output.MetricsPort
	cfg     Config
}

func New(browser output.BrowserPort, logger output.LoggerPort, metrics output.MetricsPort, cfg Config) *Engine {
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	return &Engine{browser: browser, logger: logger, metrics: metrics, cfg: cfg}
}

// Execute runs action against page. The action must have been planned from
// snap; otherwise it is turned into a retry.
func (e *Engine) Execute(ctx context.Context, page output.PagePort, snap entity.Snapshot, action entity.Action) Outcome {
	if err := e.check(snap, action); err != nil {
		e.logger.Warn("Refusing action", "action", action.String(), "error", err)
		e.metrics.ActionExecuted(string(action.Type), false)
		return Outcome{Trace: fmt.Sprintf("Could not execute %s (%v), retrying...", action.Type, err), Page: page}
	}

	var out Outcome
	switch action.Type {
	case entity.ActionClick:
		out = e.click(ctx, page, snap, *action.Element)
	case entity.ActionTypeText:
		out = e.typeText(ctx, page, *action.Element, action.Args)
	case entity.ActionScrollRead:
		out = e.scrollRead(ctx, page, snap)
	case entity.ActionClosePage:
		out = e.closePage(ctx, page)
	case entity.ActionWait:
		out = e.wait(ctx, page, action.Args)
	case entity.ActionGoBack:
		out = e.goBack(ctx, page)
	case entity.ActionGoToSearch:
		out = e.goToSearch(ctx, page)
	case entity.ActionRetry:
		out = Outcome{Trace: "Retrying with a fresh look at the page", Page: page, OK: true}
	default:
		out = Outcome{Trace: fmt.Sprintf("Unknown action %q, retrying...", action.Type), Page: page}
	}

	if out.Page == nil {
		out.Page = page
	}
	e.metrics.ActionExecuted(string(action.Type), out.OK)
	e.logger.Info("Action executed", "action", action.String(), "ok", out.OK, "new_page", out.NewPage, "trace", out.Trace)
	return out
}

func (e *Engine) check(snap entity.Snapshot, action entity.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	if !action.Type.NeedsTarget() {
		return nil
	}
	if action.SnapshotID != snap.ID {
		return fmt.Errorf("%w: planned from %d, current %d", ErrStaleAction, action.SnapshotID, snap.ID)
	}
	if !snap.Contains(*action.Element) {
		return fmt.Errorf("%w: index %d", ErrMissingTarget, action.Element.Index)
	}
	return nil
}

func (e *Engine) click(ctx context.Context, page output.PagePort, snap entity.Snapshot, el entity.DomElement) Outcome {
	mods := []output.Modifier{output.PlatformModifier()}

	opened, err := e.clickByXPath(ctx, page, el, mods)
	if errors.Is(err, output.ErrNoNewPage) {
		// The click landed; clicking again could open the tab twice.
		e.logger.Info("Link click opened no tab", "element", el.Index)
		return Outcome{Trace: noNewTabTrace, Page: page}
	}
	if err != nil {
		e.logger.Debug("XPath click failed, trying coordinates", "xpath", el.XPath, "error", err)
		opened, err = e.clickByCoordinates(ctx, page, el, mods)
	}
	if errors.Is(err, output.ErrNoNewPage) {
		e.logger.Info("Link click opened no tab", "element", el.Index)
		return Outcome{Trace: noNewTabTrace, Page: page}
	}
	if err != nil {
		e.logger.Warn("All click attempts failed", "element", el.Index, "error", err)
		if _, scrollErr := page.Eval(ctx, scrollTopJS); scrollErr != nil {
			e.logger.Debug("Scroll reset failed", "error", scrollErr)
		}
		e.saveScreenshot(ctx, page, snap.ID)
		return Outcome{Trace: clickFailedTrace, Page: page}
	}

	sleep(ctx, e.cfg.ClickSettle)

	trace := fmt.Sprintf("Clicked %s element %s", el.Type, el.Description)
	if opened != nil {
		return Outcome{Trace: trace, Page: opened, NewPage: true, Capture: true, OK: true}
	}
	return Outcome{Trace: trace, Page: page, OK: true}
}

func (e *Engine) clickByXPath(ctx context.Context, page output.PagePort, el entity.DomElement, mods []output.Modifier) (output.PagePort, error) {
	if el.XPath == "" {
		return nil, errors.New("element has no xpath")
	}
	if err := page.ScrollIntoView(ctx, el.XPath, e.cfg.ClickTimeout); err != nil {
		return nil, fmt.Errorf("scroll into view: %w", err)
	}
	if !el.IsLink() {
		return nil, page.ClickElement(ctx, el.XPath, nil, e.cfg.ClickTimeout)
	}
	return e.browser.ExpectNewPage(ctx, e.cfg.NewTabTimeout, func() error {
		return page.ClickElement(ctx, el.XPath, mods, e.cfg.ClickTimeout)
	})
}

func (e *Engine) clickByCoordinates(ctx context.Context, page output.PagePort, el entity.DomElement, mods []output.Modifier) (output.PagePort, error) {
	if !el.IsLink() {
		return nil, page.ClickAt(ctx, el.X, el.Y, 1, nil)
	}
	return e.browser.ExpectNewPage(ctx, e.cfg.NewTabTimeout, func() error {
		return page.ClickAt(ctx, el.X, el.Y, 1, mods)
	})
}

func (e *Engine) typeText(ctx context.Context, page output.PagePort, el entity.DomElement, text string) Outcome {
	err := e.typeByCoordinates(ctx, page, el, text)
	if err != nil {
		e.logger.Debug("Coordinate typing failed, trying xpath", "xpath", el.XPath, "error", err)
		err = e.typeByXPath(ctx, page, el, text)
	}
	if err != nil {
		e.logger.Warn("Typing failed", "element", el.Index, "error", err)
		return Outcome{Trace: fmt.Sprintf("Failed to type %s into %s element %s, retrying...", text, el.Type, el.Description), Page: page}
	}

	if err := page.PressKey(ctx, output.KeyEnter); err != nil {
		e.logger.Warn("Enter press failed", "error", err)
	}
	sleep(ctx, e.cfg.ClickSettle)

	return Outcome{Trace: fmt.Sprintf("Typed %s into %s element %s", text, el.Type, el.Description), Page: page, OK: true}
}

func (e *Engine) typeByCoordinates(ctx context.Context, page output.PagePort, el entity.DomElement, text string) error {
	if err := page.ClickAt(ctx, el.X, el.Y, 3, nil); err != nil {
		return fmt.Errorf("triple click: %w", err)
	}
	sleep(ctx, e.cfg.TypeSettle)
	if err := page.SelectAll(ctx); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	if err := page.PressKey(ctx, output.KeyBackspace); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := page.TypeText(ctx, text); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

func (e *Engine) typeByXPath(ctx context.Context, page output.PagePort, el entity.DomElement, text string) error {
	if err := page.FocusElement(ctx, el.XPath, e.cfg.ClickTimeout); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	if _, err := page.Eval(ctx, selectAllJS); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	if err := page.TypeIntoElement(ctx, el.XPath, text, e.cfg.ClickTimeout); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

func (e *Engine) scrollRead(ctx context.Context, page output.PagePort, snap entity.Snapshot) Outcome {
	isDocument := snap.IsDocument
	if kind, err := page.Eval(ctx, isDocumentJS); err == nil {
		isDocument = kind == entity.DocumentSentinel
	} else {
		e.logger.Debug("Document check failed, using snapshot", "error", err)
	}

	if isDocument {
		e.scrollDocument(ctx, page)
		return Outcome{Trace: "Scrolled PDF viewer and collected the relevant information", Page: page, Capture: true, Document: true, OK: true}
	}

	if _, err := page.Eval(ctx, scrollPageJS); err != nil {
		e.logger.Warn("Page scroll failed", "error", err)
	}
	return Outcome{Trace: "Scrolled down the page and collected information", Page: page, Capture: true, OK: true}
}

func (e *Engine) scrollDocument(ctx context.Context, page output.PagePort) {
	if err := page.ClickAt(ctx, 300, 300, 1, nil); err != nil {
		e.logger.Debug("Viewer focus click failed", "error", err)
	}
	for i := 0; i < 50 && ctx.Err() == nil; i++ {
		_ = page.MouseWheel(ctx, 300)
		sleep(ctx, e.cfg.DocumentScrollDelay)
	}
	for i := 0; i < 10 && ctx.Err() == nil; i++ {
		_ = page.MouseWheel(ctx, -1500)
		sleep(ctx, e.cfg.DocumentScrollDelay)
	}
	if _, err := page.Eval(ctx, scrollTopJS); err != nil {
		e.logger.Debug("Scroll reset failed", "error", err)
	}
}

func (e *Engine) closePage(ctx context.Context, page output.PagePort) Outcome {
	next, err := e.browser.ClosePage(ctx, page)
	if err != nil {
		e.logger.Warn("Close tab failed", "error", err)
		return Outcome{Trace: "Failed to close the current tab, retrying...", Page: page}
	}
	return Outcome{Trace: "Closed the current tab and switched to the last opened tab", Page: next, OK: true}
}

func (e *Engine) wait(ctx context.Context, page output.PagePort, args string) Outcome {
	d := e.waitDuration(args)
	sleep(ctx, d)
	return Outcome{Trace: fmt.Sprintf("Waited for %s seconds", strconv.FormatFloat(d.Seconds(), 'f', -1, 64)), Page: page, OK: true}
}

// waitDuration parses args as seconds, falling back to DefaultWait when the
// value is missing, not positive or above MaxWait.
func (e *Engine) waitDuration(args string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
	if err != nil || secs <= 0 {
		return e.cfg.DefaultWait
	}
	d := time.Duration(secs * float64(time.Second))
	if e.cfg.MaxWait > 0 && d > e.cfg.MaxWait {
		return e.cfg.DefaultWait
	}
	return d
}

func (e *Engine) goBack(ctx context.Context, page output.PagePort) Outcome {
	previous := page.URL()
	if _, err := page.Eval(ctx, historyBackJS); err != nil {
		e.logger.Warn("History back failed", "error", err)
		return Outcome{Trace: "Failed to navigate back, retrying...", Page: page}
	}
	sleep(ctx, e.cfg.BackSettle)
	return Outcome{Trace: fmt.Sprintf("Navigated back to %s from %s", page.URL(), previous), Page: page, OK: true}
}

func (e *Engine) goToSearch(ctx context.Context, page output.PagePort) Outcome {
	if err := page.Navigate(ctx, e.cfg.SearchURL, e.cfg.NavTimeout); err != nil {
		e.logger.Warn("Search navigation failed", "url", e.cfg.SearchURL, "error", err)
		return Outcome{Trace: fmt.Sprintf("Failed to navigate to %s, retrying...", e.cfg.SearchURL), Page: page}
	}
	return Outcome{Trace: fmt.Sprintf("Navigated to %s", e.cfg.SearchURL), Page: page, OK: true}
}

func (e *Engine) saveScreenshot(ctx context.Context, page output.PagePort, snapshotID int) {
	if e.cfg.ScreenshotDir == "" {
		return
	}
	img, err := page.Screenshot(ctx)
	if err != nil {
		e.logger.Debug("Debug screenshot failed", "error", err)
		return
	}
	if err := os.MkdirAll(e.cfg.ScreenshotDir, 0o755); err != nil {
		e.logger.Debug("Screenshot dir failed", "error", err)
		return
	}
	name := fmt.Sprintf("click_failed_%d_%s.jpg", snapshotID, time.Now().Format("20060102_150405"))
	path := filepath.Join(e.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		e.logger.Debug("Screenshot write failed", "error", err)
		return
	}
	e.logger.Info("Saved debug screenshot", "path", path)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
