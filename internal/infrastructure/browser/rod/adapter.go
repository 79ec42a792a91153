package rod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"research-agent/internal/application/port/output"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

var ErrNoNewPage = output.ErrNoNewPage

const (
	defaultTimeout    = 10 * time.Second
	defaultSlowMotion = 200 * time.Millisecond
	newPagePoll       = 200 * time.Millisecond
)

type BrowserAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	router   *rod.HijackRouter
	cfg      BrowserConfig
	logger   output.LoggerPort

	mu    sync.Mutex
	pages []*PageAdapter
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
	SearchURL  string
	// BlockMedia drops font and media requests for every tab.
	BlockMedia bool
}

// hideWebdriver runs before any page script.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

var blockedResources = []proto.NetworkResourceType{
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeMedia,
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   false,
		SlowMotion: defaultSlowMotion,
		Timeout:    defaultTimeout,
		NoSandbox:  true,
		SearchURL:  "https://www.google.com",
		BlockMedia: true,
	}
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("disable-blink-features", "AutomationControlled")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(url).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b := &BrowserAdapter{
		browser:  browser,
		launcher: l,
		cfg:      cfg,
		logger:   logger,
	}
	if cfg.BlockMedia {
		if err := b.blockResources(); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

func (b *BrowserAdapter) blockResources() error {
	router := b.browser.HijackRequests()
	for _, rt := range blockedResources {
		err := router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
		if err != nil {
			return fmt.Errorf("block %s requests: %w", rt, err)
		}
	}
	b.router = router
	go router.Run()
	return nil
}

// Connect opens the first tab on startURL, falling back to the search page
// when the target does not load.
func (b *BrowserAdapter) Connect(ctx context.Context, startURL string) (output.PagePort, error) {
	page, err := b.openPage("about:blank")
	if err != nil {
		return nil, err
	}

	if err := page.Navigate(ctx, startURL, 3*b.cfg.Timeout); err != nil {
		b.logger.Warn("Start page failed to load, falling back to search", "url", startURL, "error", err)
		if err := page.Navigate(ctx, b.cfg.SearchURL, 3*b.cfg.Timeout); err != nil {
			return nil, fmt.Errorf("fallback navigation failed: %w", err)
		}
	}
	return page, nil
}

func (b *BrowserAdapter) openPage(url string) (*PageAdapter, error) {
	p, err := b.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if _, err := p.EvalOnNewDocument(hideWebdriver); err != nil {
		b.logger.Warn("Failed to install webdriver override", "error", err)
	}
	page := newPageAdapter(p, b.logger)

	b.mu.Lock()
	b.pages = append(b.pages, page)
	b.mu.Unlock()
	return page, nil
}

func (b *BrowserAdapter) targetIDs() (map[proto.TargetTargetID]bool, error) {
	pages, err := b.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	ids := make(map[proto.TargetTargetID]bool, len(pages))
	for _, p := range pages {
		ids[p.TargetID] = true
	}
	return ids, nil
}

func (b *BrowserAdapter) ExpectNewPage(ctx context.Context, timeout time.Duration, trigger func() error) (output.PagePort, error) {
	before, err := b.targetIDs()
	if err != nil {
		return nil, err
	}

	if err := trigger(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pages, err := b.browser.Pages()
		if err == nil {
			for _, p := range pages {
				if before[p.TargetID] {
					continue
				}
				_, _ = p.Activate()
				_ = p.Timeout(b.cfg.Timeout).WaitLoad()

				page := newPageAdapter(p, b.logger)
				b.mu.Lock()
				b.pages = append(b.pages, page)
				b.mu.Unlock()
				return page, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(newPagePoll):
		}
	}
	return nil, ErrNoNewPage
}

func (b *BrowserAdapter) ClosePage(ctx context.Context, p output.PagePort) (output.PagePort, error) {
	b.mu.Lock()
	var closing *PageAdapter
	kept := b.pages[:0]
	for _, page := range b.pages {
		if output.PagePort(page) == p {
			closing = page
			continue
		}
		kept = append(kept, page)
	}
	b.pages = kept
	b.mu.Unlock()

	if closing != nil {
		if err := closing.page.Close(); err != nil {
			b.logger.Warn("Tab close failed", "error", err)
		}
	}

	b.mu.Lock()
	var last *PageAdapter
	if len(b.pages) > 0 {
		last = b.pages[len(b.pages)-1]
	}
	b.mu.Unlock()

	if last == nil {
		return b.openPage("about:blank")
	}
	if _, err := last.page.Activate(); err != nil {
		return nil, fmt.Errorf("activate tab: %w", err)
	}
	return last, nil
}

func (b *BrowserAdapter) Close() {
	if b.router != nil {
		_ = b.router.Stop()
	}
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
