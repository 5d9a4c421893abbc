package rod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

var (
	ErrInvalidSelector = errors.New("invalid selector")
	ErrUnknownKey      = errors.New("unknown key")
	ErrClosed          = errors.New("browser closed")
)

const (
	loadIdle   = 2 * time.Second
	actionIdle = time.Second
)

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"space":      input.Space,
	" ":          input.Space,
}

// BrowserAdapter is one Chrome process with a single page.
type BrowserAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	viewport entity.Viewport
	cfg      Config
	logger   output.LoggerPort

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

func (b *BrowserAdapter) pageCtx(ctx context.Context) (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.page == nil {
		return nil, ErrClosed
	}
	return b.page.Context(ctx), nil
}

func (b *BrowserAdapter) Navigate(ctx context.Context, url string) error {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	_ = page.WaitIdle(loadIdle)
	return nil
}

func (b *BrowserAdapter) CurrentURL(ctx context.Context) (string, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return "", err
	}
	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// Screenshot captures the viewport and downscales it to FrameMaxWidth.
func (b *BrowserAdapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return nil, err
	}

	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if b.cfg.FrameFormat == entity.FrameFormatJPEG {
		req = &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: gson.Int(b.cfg.FrameQuality),
		}
	}

	data, err := page.Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	if b.viewport.Width <= b.cfg.FrameMaxWidth {
		return &entity.Screenshot{
			Data:   data,
			Format: b.cfg.FrameFormat,
			Width:  b.viewport.Width,
			Height: b.viewport.Height,
		}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	img = imaging.Resize(img, b.cfg.FrameMaxWidth, 0, imaging.Lanczos)

	format, opts := imaging.PNG, []imaging.EncodeOption(nil)
	if b.cfg.FrameFormat == entity.FrameFormatJPEG {
		format, opts = imaging.JPEG, []imaging.EncodeOption{imaging.JPEGQuality(b.cfg.FrameQuality)}
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("image encode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: b.cfg.FrameFormat,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (b *BrowserAdapter) ClickAt(ctx context.Context, x, y int) error {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse.MoveTo(proto.Point{X: float64(x), Y: float64(y)}); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("mouse click: %w", err)
	}
	return nil
}

// Press dispatches a named key. A single printable character is inserted as text.
func (b *BrowserAdapter) Press(ctx context.Context, key string) error {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}

	if k, ok := namedKeys[strings.ToLower(key)]; ok {
		if err := page.Keyboard.Press(k); err != nil {
			return fmt.Errorf("press %s: %w", key, err)
		}
		return nil
	}

	if r := []rune(key); len(r) == 1 {
		return b.InsertChar(ctx, r[0])
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

func (b *BrowserAdapter) InsertChar(ctx context.Context, ch rune) error {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}
	if err := page.InsertText(string(ch)); err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) element(ctx context.Context, selector string) (*rod.Element, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, ErrInvalidSelector
	}

	page, err := b.pageCtx(ctx)
	if err != nil {
		return nil, err
	}
	page = page.Timeout(b.cfg.ActionTimeout)

	var el *rod.Element
	if isXPath(selector) {
		el, err = page.ElementX(selector)
	} else {
		el, err = page.Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el, nil
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") || strings.HasPrefix(selector, "./")
}

func (b *BrowserAdapter) Click(ctx context.Context, selector string) error {
	el, err := b.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if page, err := b.pageCtx(ctx); err == nil {
		_ = page.WaitIdle(actionIdle)
	}
	return nil
}

func (b *BrowserAdapter) Fill(ctx context.Context, selector, text string) error {
	el, err := b.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		b.logger.Debug("Select all failed, appending instead", "selector", selector, "error", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) Scroll(ctx context.Context, direction string) error {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return err
	}

	var js string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "down":
		js = `() => window.scrollBy(0, window.innerHeight * 0.8)`
	case "up":
		js = `() => window.scrollBy(0, -window.innerHeight * 0.8)`
	case "top":
		js = `() => window.scrollTo(0, 0)`
	case "bottom":
		js = `() => window.scrollTo(0, document.body.scrollHeight)`
	default:
		return fmt.Errorf("unknown scroll direction: %s", direction)
	}

	if _, err := page.Eval(js); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	_ = page.WaitIdle(actionIdle)
	return nil
}

func (b *BrowserAdapter) GetPageText(ctx context.Context) (string, error) {
	el, err := b.element(ctx, "body")
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("page text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (b *BrowserAdapter) GetPageHTML(ctx context.Context) (string, error) {
	page, err := b.pageCtx(ctx)
	if err != nil {
		return "", err
	}
	raw, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return CleanHTML(raw, nil)
}

// Close shuts Chrome down and removes its profile directory. Safe to call twice.
func (b *BrowserAdapter) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		if b.browser != nil {
			if err := b.browser.Close(); err != nil {
				b.logger.Debug("Browser close returned error", "error", err)
			}
		}
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher.Cleanup()
		}
		b.logger.Info("Browser released")
	})
}
