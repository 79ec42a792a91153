package output

import (
	"context"
	"errors"
	"runtime"
	"time"

	"research-agent/internal/domain/entity"
)

// ErrNoNewPage is returned by ExpectNewPage when the trigger succeeded but
// no tab appeared in time.
var ErrNoNewPage = errors.New("no new tab opened")

type Modifier string

const (
	ModifierControl Modifier = "Control"
	ModifierMeta    Modifier = "Meta"
)

// PlatformModifier is the key that opens a link in a new tab.
func PlatformModifier() Modifier {
	if runtime.GOOS == "darwin" {
		return ModifierMeta
	}
	return ModifierControl
}

type Key string

const (
	KeyEnter     Key = "Enter"
	KeyBackspace Key = "Backspace"
)

// PagePort is a single browser tab. Methods that interact with an element
// locate it by xpath; methods taking coordinates act on the viewport.
type PagePort interface {
	URL() string
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Eval(ctx context.Context, js string) (string, error)

	ScrollIntoView(ctx context.Context, xpath string, timeout time.Duration) error
	ClickElement(ctx context.Context, xpath string, mods []Modifier, timeout time.Duration) error
	ClickAt(ctx context.Context, x, y float64, clicks int, mods []Modifier) error

	SelectAll(ctx context.Context) error
	PressKey(ctx context.Context, key Key) error
	TypeText(ctx context.Context, text string) error
	FocusElement(ctx context.Context, xpath string, timeout time.Duration) error
	TypeIntoElement(ctx context.Context, xpath, text string, timeout time.Duration) error

	MouseWheel(ctx context.Context, deltaY float64) error

	Annotate(ctx context.Context) ([]entity.DomElement, error)
	RemoveAnnotations(ctx context.Context) error

	Screenshot(ctx context.Context) ([]byte, error)
}

// BrowserPort owns tab lifetime. The orchestrator only holds references.
type BrowserPort interface {
	Connect(ctx context.Context, startURL string) (PagePort, error)
	// ExpectNewPage runs trigger and returns the tab it opened, or an error
	// if none appeared within timeout.
	ExpectNewPage(ctx context.Context, timeout time.Duration, trigger func() error) (PagePort, error)
	// ClosePage closes p and returns the most recently opened remaining tab,
	// opening a blank one if none is left.
	ClosePage(ctx context.Context, p PagePort) (PagePort, error)
	Close()
}
