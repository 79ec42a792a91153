package rod

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"time"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

//go:embed annotate.js
var annotateScript string

//go:embed unmark.js
var unmarkScript string

const screenshotMaxWidth = 1024

var _ output.PagePort = (*PageAdapter)(nil)

type PageAdapter struct {
	page   *rod.Page
	logger output.LoggerPort
}

func newPageAdapter(p *rod.Page, logger output.LoggerPort) *PageAdapter {
	return &PageAdapter{page: p, logger: logger}
}

func (p *PageAdapter) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *PageAdapter) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (p *PageAdapter) Eval(ctx context.Context, js string) (string, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", fmt.Errorf("eval: %w", err)
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

func (p *PageAdapter) element(ctx context.Context, xpath string, timeout time.Duration) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Timeout(timeout).ElementX(xpath)
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", xpath, err)
	}
	return el, nil
}

func (p *PageAdapter) ScrollIntoView(ctx context.Context, xpath string, timeout time.Duration) error {
	el, err := p.element(ctx, xpath, timeout)
	if err != nil {
		return err
	}
	return el.ScrollIntoView()
}

func (p *PageAdapter) withModifiers(mods []output.Modifier, fn func() error) error {
	keys := make([]input.Key, 0, len(mods))
	for _, m := range mods {
		switch m {
		case output.ModifierMeta:
			keys = append(keys, input.MetaLeft)
		case output.ModifierControl:
			keys = append(keys, input.ControlLeft)
		}
	}
	for _, k := range keys {
		if err := p.page.Keyboard.Press(k); err != nil {
			return fmt.Errorf("press modifier: %w", err)
		}
	}
	defer func() {
		for _, k := range keys {
			_ = p.page.Keyboard.Release(k)
		}
	}()
	return fn()
}

func (p *PageAdapter) ClickElement(ctx context.Context, xpath string, mods []output.Modifier, timeout time.Duration) error {
	el, err := p.element(ctx, xpath, timeout)
	if err != nil {
		return err
	}
	return p.withModifiers(mods, func() error {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click failed: %w", err)
		}
		return nil
	})
}

func (p *PageAdapter) ClickAt(ctx context.Context, x, y float64, clicks int, mods []output.Modifier) error {
	if err := p.page.Mouse.MoveTo(proto.NewPoint(x, y)); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}
	return p.withModifiers(mods, func() error {
		if err := p.page.Mouse.Click(proto.InputMouseButtonLeft, clicks); err != nil {
			return fmt.Errorf("mouse click: %w", err)
		}
		return nil
	})
}

func (p *PageAdapter) SelectAll(ctx context.Context) error {
	return p.withModifiers([]output.Modifier{output.PlatformModifier()}, func() error {
		return p.page.Keyboard.Type(input.KeyA)
	})
}

func (p *PageAdapter) PressKey(ctx context.Context, key output.Key) error {
	switch key {
	case output.KeyEnter:
		return p.page.Keyboard.Type(input.Enter)
	case output.KeyBackspace:
		return p.page.Keyboard.Type(input.Backspace)
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
}

func (p *PageAdapter) TypeText(ctx context.Context, text string) error {
	return p.page.InsertText(text)
}

func (p *PageAdapter) FocusElement(ctx context.Context, xpath string, timeout time.Duration) error {
	el, err := p.element(ctx, xpath, timeout)
	if err != nil {
		return err
	}
	return el.Focus()
}

func (p *PageAdapter) TypeIntoElement(ctx context.Context, xpath, text string, timeout time.Duration) error {
	el, err := p.element(ctx, xpath, timeout)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (p *PageAdapter) MouseWheel(ctx context.Context, deltaY float64) error {
	return p.page.Mouse.Scroll(0, deltaY, 1)
}

func (p *PageAdapter) Annotate(ctx context.Context) ([]entity.DomElement, error) {
	raw, err := p.Eval(ctx, annotateScript)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	var elements []entity.DomElement
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	return elements, nil
}

func (p *PageAdapter) RemoveAnnotations(ctx context.Context) error {
	mode, err := p.Eval(ctx, unmarkScript)
	if err != nil {
		return fmt.Errorf("remove annotations: %w", err)
	}
	if mode == "reinjected" {
		p.logger.Debug("Annotator unmark routine missing, used fallback")
	}
	return nil
}

// Screenshot returns a JPEG no wider than screenshotMaxWidth.
func (p *PageAdapter) Screenshot(ctx context.Context) ([]byte, error) {
	imgBytes, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > screenshotMaxWidth {
		img = imaging.Resize(img, screenshotMaxWidth, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
