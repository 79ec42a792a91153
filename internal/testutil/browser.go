package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
)

var ErrNoNewPage = output.ErrNoNewPage

// Page records every call as "Method arg..." and fails the methods listed
// in Errs.
type Page struct {
	mu sync.Mutex

	CurrentURL string
	Elements   []entity.DomElement
	EvalFunc   func(js string) (string, error)
	Errs       map[string]error
	Calls      []string
}

func NewPage(url string) *Page {
	return &Page{CurrentURL: url, Errs: make(map[string]error)}
}

func (p *Page) record(method string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	parts := []string{method}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	p.Calls = append(p.Calls, strings.Join(parts, " "))
	return p.Errs[method]
}

// Called reports how many recorded calls start with prefix.
func (p *Page) Called(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.record("Navigate", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	return nil
}

func (p *Page) Eval(ctx context.Context, js string) (string, error) {
	if err := p.record("Eval", js); err != nil {
		return "", err
	}
	if p.EvalFunc != nil {
		return p.EvalFunc(js)
	}
	return "", nil
}

func (p *Page) ScrollIntoView(ctx context.Context, xpath string, timeout time.Duration) error {
	return p.record("ScrollIntoView", xpath)
}

func (p *Page) ClickElement(ctx context.Context, xpath string, mods []output.Modifier, timeout time.Duration) error {
	return p.record("ClickElement", xpath, mods)
}

func (p *Page) ClickAt(ctx context.Context, x, y float64, clicks int, mods []output.Modifier) error {
	return p.record("ClickAt", x, y, clicks, mods)
}

func (p *Page) SelectAll(ctx context.Context) error {
	return p.record("SelectAll")
}

func (p *Page) PressKey(ctx context.Context, key output.Key) error {
	return p.record("PressKey", key)
}

func (p *Page) TypeText(ctx context.Context, text string) error {
	return p.record("TypeText", text)
}

func (p *Page) FocusElement(ctx context.Context, xpath string, timeout time.Duration) error {
	return p.record("FocusElement", xpath)
}

func (p *Page) TypeIntoElement(ctx context.Context, xpath, text string, timeout time.Duration) error {
	return p.record("TypeIntoElement", xpath, text)
}

func (p *Page) MouseWheel(ctx context.Context, deltaY float64) error {
	return p.record("MouseWheel", deltaY)
}

func (p *Page) Annotate(ctx context.Context) ([]entity.DomElement, error) {
	if err := p.record("Annotate"); err != nil {
		return nil, err
	}
	return append([]entity.DomElement(nil), p.Elements...), nil
}

func (p *Page) RemoveAnnotations(ctx context.Context) error {
	return p.record("RemoveAnnotations")
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.record("Screenshot"); err != nil {
		return nil, err
	}
	return []byte{0xff, 0xd8, 0xff}, nil
}

// Browser hands out NextPage from ExpectNewPage when set and tracks open
// tabs in opening order.
type Browser struct {
	mu sync.Mutex

	Start     *Page
	NextPage  *Page
	Open      []*Page
	Closed    []*Page
	ExpectErr error
}

func NewBrowser(start *Page) *Browser {
	return &Browser{Start: start}
}

func (b *Browser) Connect(ctx context.Context, startURL string) (output.PagePort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Start == nil {
		b.Start = NewPage(startURL)
	}
	b.Start.CurrentURL = startURL
	b.Open = append(b.Open, b.Start)
	return b.Start, nil
}

func (b *Browser) ExpectNewPage(ctx context.Context, timeout time.Duration, trigger func() error) (output.PagePort, error) {
	if err := trigger(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ExpectErr != nil {
		return nil, b.ExpectErr
	}
	if b.NextPage == nil {
		return nil, ErrNoNewPage
	}
	page := b.NextPage
	b.NextPage = nil
	b.Open = append(b.Open, page)
	return page, nil
}

func (b *Browser) ClosePage(ctx context.Context, p output.PagePort) (output.PagePort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.Open[:0]
	for _, page := range b.Open {
		if output.PagePort(page) == p {
			b.Closed = append(b.Closed, page)
			continue
		}
		kept = append(kept, page)
	}
	b.Open = kept
	if len(b.Open) == 0 {
		blank := NewPage("about:blank")
		b.Open = append(b.Open, blank)
		return blank, nil
	}
	return b.Open[len(b.Open)-1], nil
}

func (b *Browser) Close() {}
