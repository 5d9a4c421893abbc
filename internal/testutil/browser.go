// Package testutil holds in-memory fakes of the output ports for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
)

var (
	_ output.BrowserPort     = (*FakeBrowser)(nil)
	_ output.BrowserLauncher = (*FakeLauncher)(nil)
)

type Point struct {
	X, Y int
}

// FakeBrowser records every call it receives. Errors set on it are returned
// by the matching method.
type FakeBrowser struct {
	mu sync.Mutex

	ID   int
	URLs []string // returned in order by CurrentURL; the last one repeats

	Navigated   []string
	Clicks      []Point
	Keys        []string
	Chars       []rune
	Selectors   []string
	Fills       map[string]string
	Scrolls     []string
	Screenshots int
	Closed      int

	Text string
	HTML string

	NavigateErr   error
	URLErr        error
	ScreenshotErr error
	ClickErr      error
	InputErr      error

	// NavigateHook runs inside Navigate before it returns.
	NavigateHook func(ctx context.Context) error
}

func NewFakeBrowser(urls ...string) *FakeBrowser {
	return &FakeBrowser{URLs: urls, Fills: map[string]string{}}
}

func (b *FakeBrowser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	hook := b.NavigateHook
	b.Navigated = append(b.Navigated, url)
	err := b.NavigateErr
	b.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return err
}

// SetURLs replaces the URL script used by CurrentURL.
func (b *FakeBrowser) SetURLs(urls ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.URLs = urls
}

func (b *FakeBrowser) CurrentURL(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.URLErr != nil {
		return "", b.URLErr
	}
	if len(b.URLs) == 0 {
		return "about:blank", nil
	}
	url := b.URLs[0]
	if len(b.URLs) > 1 {
		b.URLs = b.URLs[1:]
	}
	return url, nil
}

func (b *FakeBrowser) Screenshot(context.Context) (*entity.Screenshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Screenshots++
	if b.ScreenshotErr != nil {
		return nil, b.ScreenshotErr
	}
	return &entity.Screenshot{
		Data:   []byte(fmt.Sprintf("frame-%d", b.Screenshots)),
		Format: "jpeg",
		Width:  1280,
		Height: 800,
	}, nil
}

func (b *FakeBrowser) ClickAt(_ context.Context, x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ClickErr != nil {
		return b.ClickErr
	}
	b.Clicks = append(b.Clicks, Point{X: x, Y: y})
	return nil
}

func (b *FakeBrowser) Press(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.InputErr != nil {
		return b.InputErr
	}
	b.Keys = append(b.Keys, key)
	return nil
}

func (b *FakeBrowser) InsertChar(_ context.Context, ch rune) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.InputErr != nil {
		return b.InputErr
	}
	b.Chars = append(b.Chars, ch)
	return nil
}

func (b *FakeBrowser) Click(_ context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ClickErr != nil {
		return b.ClickErr
	}
	b.Selectors = append(b.Selectors, selector)
	return nil
}

func (b *FakeBrowser) Fill(_ context.Context, selector, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.InputErr != nil {
		return b.InputErr
	}
	b.Fills[selector] = text
	return nil
}

func (b *FakeBrowser) Scroll(_ context.Context, direction string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Scrolls = append(b.Scrolls, direction)
	return nil
}

func (b *FakeBrowser) GetPageText(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Text, nil
}

func (b *FakeBrowser) GetPageHTML(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.HTML, nil
}

func (b *FakeBrowser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed++
}

func (b *FakeBrowser) CloseCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Closed
}

func (b *FakeBrowser) ClickLog() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Point(nil), b.Clicks...)
}

func (b *FakeBrowser) KeyLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Keys...)
}

func (b *FakeBrowser) CharLog() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.Chars)
}

// FakeLauncher hands out FakeBrowsers and keeps an ordered event log of
// acquisitions and releases across all of them.
type FakeLauncher struct {
	mu sync.Mutex

	Err      error
	Browsers []*FakeBrowser
	Events   []string

	// Prepare customises each browser before it is handed out.
	Prepare func(b *FakeBrowser)
}

func (l *FakeLauncher) Launch(ctx context.Context, _ entity.Viewport) (output.BrowserPort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	b := NewFakeBrowser()
	b.ID = len(l.Browsers) + 1
	if l.Prepare != nil {
		l.Prepare(b)
	}
	l.Browsers = append(l.Browsers, b)
	l.Events = append(l.Events, fmt.Sprintf("acquire %d", b.ID))
	return &trackedBrowser{FakeBrowser: b, launcher: l}, nil
}

func (l *FakeLauncher) EventLog() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Events...)
}

func (l *FakeLauncher) Browser(i int) *FakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.Browsers) {
		return nil
	}
	return l.Browsers[i]
}

type trackedBrowser struct {
	*FakeBrowser
	launcher *FakeLauncher
}

func (t *trackedBrowser) Close() {
	t.FakeBrowser.Close()
	t.launcher.mu.Lock()
	t.launcher.Events = append(t.launcher.Events, fmt.Sprintf("release %d", t.ID))
	t.launcher.mu.Unlock()
}
