package rod

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
)

var _ output.BrowserLauncher = (*Launcher)(nil)

const (
	defaultActionTimeout = 10 * time.Second
	defaultFrameMaxWidth = 1024
	defaultFrameQuality  = 80
)

type Config struct {
	Headless  bool
	NoSandbox bool
	// Bin is the Chrome executable. Empty lets rod find or download one.
	Bin string
	// ActionTimeout bounds element lookups made by the agent tools.
	ActionTimeout time.Duration
	FrameFormat   string // jpeg or png
	FrameMaxWidth int
	FrameQuality  int
}

func DefaultConfig() Config {
	return Config{
		Headless:      true,
		NoSandbox:     true,
		ActionTimeout: defaultActionTimeout,
		FrameFormat:   entity.FrameFormatJPEG,
		FrameMaxWidth: defaultFrameMaxWidth,
		FrameQuality:  defaultFrameQuality,
	}
}

type Launcher struct {
	cfg    Config
	logger output.LoggerPort
}

func NewLauncher(cfg Config, logger output.LoggerPort) *Launcher {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	if cfg.FrameMaxWidth <= 0 {
		cfg.FrameMaxWidth = defaultFrameMaxWidth
	}
	if cfg.FrameQuality <= 0 || cfg.FrameQuality > 100 {
		cfg.FrameQuality = defaultFrameQuality
	}
	if cfg.FrameFormat != entity.FrameFormatPNG {
		cfg.FrameFormat = entity.FrameFormatJPEG
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// Launch starts Chrome and opens one page sized to viewport. If ctx ends
// first, Launch returns and the browser is released once it comes up.
func (l *Launcher) Launch(ctx context.Context, viewport entity.Viewport) (output.BrowserPort, error) {
	type result struct {
		adapter *BrowserAdapter
		err     error
	}

	done := make(chan result, 1)
	go func() {
		a, err := l.launch(viewport)
		done <- result{adapter: a, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.adapter, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.adapter != nil {
				l.logger.Warn("Releasing browser that finished launching after timeout")
				r.adapter.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (l *Launcher) launch(viewport entity.Viewport) (*BrowserAdapter, error) {
	start := time.Now()

	lc := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", viewport.Width, viewport.Height))
	if l.cfg.Bin != "" {
		lc = lc.Bin(l.cfg.Bin)
	}

	controlURL, err := lc.Launch()
	if err != nil {
		lc.Kill()
		lc.Cleanup()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		lc.Kill()
		lc.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	adapter := &BrowserAdapter{
		browser:  browser,
		launcher: lc,
		viewport: viewport,
		cfg:      l.cfg,
		logger:   l.logger,
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		adapter.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	adapter.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewport.Width,
		Height:            viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		adapter.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	l.logger.Info("Browser launched", "headless", l.cfg.Headless, "elapsed", time.Since(start))
	return adapter, nil
}
