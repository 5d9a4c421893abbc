// Package session owns the single remote browser session: its browser
// resource, its status state machine and the single extraction pass.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portal-session/internal/application/port/input"
	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
	"portal-session/internal/domain/errs"
	"portal-session/internal/usecase/authdetect"
)

var _ input.SessionController = (*Controller)(nil)

type Config struct {
	PortalURL         string
	Viewport          entity.Viewport
	LaunchTimeout     time.Duration
	NavigationTimeout time.Duration
	TypingDelay       time.Duration
	ClickSettle       time.Duration
	MaxSteps          int
	Task              string
}

func DefaultConfig() Config {
	return Config{
		PortalURL:         "https://buckeyelink.osu.edu/",
		Viewport:          entity.Viewport{Width: 1280, Height: 800},
		LaunchTimeout:     30 * time.Second,
		NavigationTimeout: 30 * time.Second,
		TypingDelay:       50 * time.Millisecond,
		ClickSettle:       200 * time.Millisecond,
		MaxSteps:          30,
	}
}

// Extractor runs the automation pass and returns the agent's raw answer.
type Extractor interface {
	Run(ctx context.Context, task string, browser output.BrowserPort, maxSteps int) (string, error)
}

type Parser interface {
	Parse(rawText string) *entity.ScheduleRecord
}

type Deps struct {
	Launcher  output.BrowserLauncher
	Detector  authdetect.Detector
	Extractor Extractor
	Parser    Parser
	Logger    output.LoggerPort
}

// Controller is safe for concurrent use. Its mutex is never held across
// browser or agent calls; a generation counter drops results that arrive
// after the session was closed.
type Controller struct {
	id     string
	cfg    Config
	deps   Deps
	logger output.LoggerPort

	mu            sync.Mutex
	gen           uint64
	status        entity.SessionStatus
	browser       output.BrowserPort
	schedule      *entity.ScheduleRecord
	errMsg        string
	sawAuthPortal bool
	cancelExtract context.CancelFunc
}

func NewController(id string, cfg Config, deps Deps) *Controller {
	return &Controller{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.WithField("session_id", id),
		status: entity.StatusIdle,
	}
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != entity.StatusIdle || c.browser != nil {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("%w: start from %s", errs.ErrInvalidTransition, status)
	}
	gen := c.gen
	c.mu.Unlock()

	c.logger.Info("Starting session", "portal_url", c.cfg.PortalURL)

	browser, err := c.launch(ctx)
	if err != nil {
		c.fail(gen, err)
		return err
	}

	if err := c.navigate(ctx, browser); err != nil {
		browser.Close()
		c.fail(gen, err)
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		browser.Close()
		c.logger.Warn("Session closed while starting, browser released")
		return fmt.Errorf("%w: session closed during start", errs.ErrSessionNotStarted)
	}
	c.browser = browser
	c.status = entity.StatusAwaitingAuth
	c.mu.Unlock()

	c.logger.Info("Session awaiting authentication")
	return nil
}

func (c *Controller) launch(ctx context.Context) (output.BrowserPort, error) {
	launchCtx, cancel := context.WithTimeout(ctx, c.cfg.LaunchTimeout)
	defer cancel()

	browser, err := c.deps.Launcher.Launch(launchCtx, c.cfg.Viewport)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrBrowserLaunch, err)
	}
	return browser, nil
}

func (c *Controller) navigate(ctx context.Context, browser output.BrowserPort) error {
	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	defer cancel()

	err := browser.Navigate(navCtx, c.cfg.PortalURL)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", errs.ErrNavigationTimeout, c.cfg.PortalURL, c.cfg.NavigationTimeout)
	}
	return fmt.Errorf("%w: navigate to %s: %w", errs.ErrBrowserLaunch, c.cfg.PortalURL, err)
}

// fail records a start failure. The browser is already released by the caller.
func (c *Controller) fail(gen uint64, err error) {
	c.logger.Error("Session start failed", "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.status = entity.StatusError
	c.errMsg = err.Error()
	c.schedule = nil
}

func (c *Controller) PollForAuth(ctx context.Context) bool {
	c.mu.Lock()
	if c.status != entity.StatusAwaitingAuth {
		past := c.status.PastAuth()
		c.mu.Unlock()
		return past
	}
	gen, browser, saw := c.gen, c.browser, c.sawAuthPortal
	c.mu.Unlock()

	url, err := browser.CurrentURL(ctx)
	if err != nil {
		c.logger.Warn("Failed to read current URL", "error", fmt.Errorf("%w: %w", errs.ErrTransport, err))
		return false
	}

	verdict := c.deps.Detector.Detect(url, saw)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.status != entity.StatusAwaitingAuth {
		return c.status.PastAuth()
	}
	if verdict.SawAuthPortal && !c.sawAuthPortal {
		c.logger.Info("Identity provider observed", "url", url)
	}
	c.sawAuthPortal = c.sawAuthPortal || verdict.SawAuthPortal
	if verdict.Authenticated {
		c.status = entity.StatusAuthenticated
		c.logger.Info("Authentication detected", "url", url)
	}
	return verdict.Authenticated
}

func (c *Controller) Extract(ctx context.Context) (*entity.ScheduleRecord, error) {
	c.mu.Lock()
	if c.status != entity.StatusAuthenticated {
		status := c.status
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: extract from %s", errs.ErrInvalidTransition, status)
	}
	extractCtx, cancel := context.WithCancel(ctx)
	gen, browser := c.gen, c.browser
	c.status = entity.StatusExtracting
	c.cancelExtract = cancel
	c.mu.Unlock()
	defer cancel()

	text, err := c.deps.Extractor.Run(extractCtx, c.cfg.Task, browser, c.cfg.MaxSteps)

	var rec *entity.ScheduleRecord
	if err == nil {
		rec = c.deps.Parser.Parse(text)
		c.logger.Debug("Agent answer", "text", text)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.logger.Info("Discarding extraction result of closed session")
		return nil, fmt.Errorf("%w: session closed", errs.ErrExtractionCancelled)
	}
	c.cancelExtract = nil

	if err != nil {
		c.status = entity.StatusError
		c.errMsg = err.Error()
		c.schedule = nil
		return nil, err
	}

	c.status = entity.StatusComplete
	c.schedule = rec
	c.errMsg = ""
	c.logger.Info("Schedule extracted", "term", rec.Term, "courses", len(rec.Courses))
	return rec, nil
}

func (c *Controller) HandleClick(ctx context.Context, xNorm, yNorm float64) {
	browser := c.currentBrowser()
	if browser == nil {
		c.logger.Debug("Click ignored, no browser")
		return
	}

	x, y := c.cfg.Viewport.ToPixels(xNorm, yNorm)
	if err := browser.ClickAt(ctx, x, y); err != nil {
		c.logger.Warn("Click failed", "x", x, "y", y, "error", fmt.Errorf("%w: %w", errs.ErrTransport, err))
		return
	}
	pause(ctx, c.cfg.ClickSettle)
}

func (c *Controller) HandleKeyboard(ctx context.Context, in entity.KeyInput) {
	if in.IsEmpty() {
		return
	}
	browser := c.currentBrowser()
	if browser == nil {
		c.logger.Debug("Keyboard input ignored, no browser")
		return
	}

	if in.Key != "" {
		if err := browser.Press(ctx, in.Key); err != nil {
			c.logger.Warn("Key press failed", "key", in.Key, "error", fmt.Errorf("%w: %w", errs.ErrTransport, err))
		}
		return
	}

	first := true
	for _, ch := range in.Text {
		if !first && !pause(ctx, c.cfg.TypingDelay) {
			return
		}
		first = false
		if err := browser.InsertChar(ctx, ch); err != nil {
			c.logger.Warn("Typing failed", "error", fmt.Errorf("%w: %w", errs.ErrTransport, err))
			return
		}
	}
}

func (c *Controller) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	browser := c.currentBrowser()
	if browser == nil {
		return nil, errs.ErrSessionNotStarted
	}
	shot, err := browser.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot: %w", errs.ErrTransport, err)
	}
	return shot, nil
}

func (c *Controller) Snapshot() entity.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return entity.Snapshot{
		SessionID:     c.id,
		Status:        c.status,
		Schedule:      c.schedule,
		Error:         c.errMsg,
		SawAuthPortal: c.sawAuthPortal,
	}
}

func (c *Controller) Close() {
	c.mu.Lock()
	browser := c.browser
	cancel := c.cancelExtract
	wasIdle := c.status == entity.StatusIdle && browser == nil

	c.gen++
	c.status = entity.StatusIdle
	c.browser = nil
	c.schedule = nil
	c.errMsg = ""
	c.sawAuthPortal = false
	c.cancelExtract = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if browser != nil {
		browser.Close()
	}
	if !wasIdle {
		c.logger.Info("Session closed")
	}
}

func (c *Controller) currentBrowser() output.BrowserPort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser
}

// pause sleeps for d unless ctx ends first. It reports whether the full pause elapsed.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
