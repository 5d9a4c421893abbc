// Package di assembles the session service from configuration.
package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"portal-session/internal/adapter/httpapi"
	"portal-session/internal/adapter/tool"
	"portal-session/internal/application/port/input"
	"portal-session/internal/application/port/output"
	"portal-session/internal/application/service"
	"portal-session/internal/domain/entity"
	"portal-session/internal/infrastructure/browser/rod"
	"portal-session/internal/infrastructure/llm/openrouter"
	"portal-session/internal/infrastructure/logger"
	"portal-session/internal/infrastructure/prompts"
	"portal-session/internal/usecase/authdetect"
	"portal-session/internal/usecase/executor"
	"portal-session/internal/usecase/extraction"
	"portal-session/internal/usecase/schedule"
	"portal-session/internal/usecase/session"
)

var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is not set")

type Config struct {
	HTTPAddr string

	Session session.Config
	Browser rod.Config
	Gateway httpapi.GatewayConfig
	Router  httpapi.RouterConfig
	Log     logger.Options

	DefaultTerm string
	MarkersFile string

	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	LLMTimeout        time.Duration
}

// LoadConfig reads every setting from cfg, falling back to the built-in defaults.
func LoadConfig(cfg output.ConfigPort) Config {
	sess := session.DefaultConfig()
	sess.PortalURL = cfg.GetWithDefault("PORTAL_URL", sess.PortalURL)
	sess.Viewport = entity.Viewport{
		Width:  cfg.GetInt("VIEWPORT_WIDTH", sess.Viewport.Width),
		Height: cfg.GetInt("VIEWPORT_HEIGHT", sess.Viewport.Height),
	}
	sess.LaunchTimeout = cfg.GetDuration("LAUNCH_TIMEOUT", sess.LaunchTimeout)
	sess.NavigationTimeout = cfg.GetDuration("NAVIGATION_TIMEOUT", sess.NavigationTimeout)
	sess.TypingDelay = cfg.GetDuration("TYPING_DELAY", sess.TypingDelay)
	sess.ClickSettle = cfg.GetDuration("CLICK_SETTLE", sess.ClickSettle)
	sess.MaxSteps = cfg.GetInt("EXTRACTION_MAX_STEPS", sess.MaxSteps)

	browser := rod.DefaultConfig()
	browser.Headless = cfg.GetBool("BROWSER_HEADLESS", browser.Headless)
	browser.NoSandbox = cfg.GetBool("BROWSER_NO_SANDBOX", browser.NoSandbox)
	browser.Bin = cfg.Get("BROWSER_BIN")
	browser.FrameFormat = cfg.GetWithDefault("FRAME_FORMAT", browser.FrameFormat)
	browser.FrameMaxWidth = cfg.GetInt("FRAME_MAX_WIDTH", browser.FrameMaxWidth)
	browser.FrameQuality = cfg.GetInt("FRAME_QUALITY", browser.FrameQuality)

	origins := cfg.GetList("CORS_ORIGINS", []string{"http://localhost:3000"})

	gw := httpapi.DefaultGatewayConfig()
	gw.FrameInterval = cfg.GetDuration("FRAME_INTERVAL", gw.FrameInterval)
	gw.CORSOrigins = origins

	appEnv := cfg.GetWithDefault("APP_ENV", "dev")

	return Config{
		HTTPAddr: cfg.GetWithDefault("HTTP_ADDR", ":8000"),
		Session:  sess,
		Browser:  browser,
		Gateway:  gw,
		Router: httpapi.RouterConfig{
			CORSOrigins: origins,
			RequestLogs: cfg.GetBool("REQUEST_LOGS", true),
		},
		Log: logger.Options{
			Level:       cfg.GetWithDefault("LOG_LEVEL", "info"),
			Development: appEnv == "dev",
			Dir:         cfg.Get("LOG_DIR"),
			Name:        "portal-session",
		},
		DefaultTerm:       cfg.GetWithDefault("DEFAULT_TERM", schedule.DefaultTerm),
		MarkersFile:       cfg.Get("AUTH_MARKERS_FILE"),
		OpenRouterAPIKey:  cfg.Get("OPENROUTER_API_KEY"),
		OpenRouterModel:   cfg.GetWithDefault("OPENROUTER_MODEL_NAME", "openai/gpt-4o-mini"),
		OpenRouterBaseURL: cfg.GetWithDefault("OPENROUTER_BASE_URL", openrouter.DefaultBaseURL),
		LLMTimeout:        cfg.GetDuration("LLM_TIMEOUT", 2*time.Minute),
	}
}

type Container struct {
	Config   Config
	Logger   output.LoggerPort
	Registry input.SessionRegistry
	Gateway  *httpapi.Gateway
	Handler  http.Handler
}

func NewContainer(cfg Config) (*Container, error) {
	if cfg.OpenRouterAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	log, err := logger.NewLoggerAdapter(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	markers := authdetect.DefaultMarkers()
	if cfg.MarkersFile != "" {
		markers, err = authdetect.LoadMarkers(cfg.MarkersFile)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to load auth markers: %w", err)
		}
	}

	systemPrompt, err := prompts.GenerateSystemPrompt(prompts.SystemTemplate, toolDefinitions(log))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}

	sessCfg := cfg.Session
	if sessCfg.Task == "" {
		sessCfg.Task, err = prompts.GenerateTaskPrompt(prompts.ScheduleTaskTemplate, prompts.TaskData{
			PortalURL: sessCfg.PortalURL,
			Term:      cfg.DefaultTerm,
		})
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to render task prompt: %w", err)
		}
	}
	cfg.Session = sessCfg

	llmCfg := openrouter.DefaultConfig(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	llmCfg.BaseURL = cfg.OpenRouterBaseURL
	if cfg.LLMTimeout > 0 {
		llmCfg.Timeout = cfg.LLMTimeout
	}
	llmCfg.Logger = log.WithField("component", "llm")
	llm := openrouter.NewOpenRouterAdapter(llmCfg)

	agent := executor.New(llm, log.WithField("component", "agent"), systemPrompt)

	browserCfg := cfg.Browser
	registry := session.NewRegistry(sessCfg, session.Deps{
		Launcher:  rod.NewLauncher(browserCfg, log.WithField("component", "browser")),
		Detector:  authdetect.NewMarkerDetector(markers),
		Extractor: extraction.NewCoordinator(agent, log.WithField("component", "extraction")),
		Parser:    schedule.NewParser(cfg.DefaultTerm),
		Logger:    log,
	})

	gateway := httpapi.NewGateway(registry, cfg.Gateway, log.WithField("component", "stream"))
	handler := httpapi.NewSessionHandler(registry, log)

	log.Info("Container ready",
		"portal_url", sessCfg.PortalURL,
		"headless", browserCfg.Headless,
		"frame_format", browserCfg.FrameFormat,
		"model", cfg.OpenRouterModel,
	)

	return &Container{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Gateway:  gateway,
		Handler:  httpapi.NewRouter(handler, gateway, cfg.Router, log),
	}, nil
}

// Shutdown stops open streams, releases the browser and flushes the logger.
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.Gateway.Shutdown(ctx)
	c.Registry.Close()
	c.Logger.Info("Shutdown complete")
	if cerr := c.Logger.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// toolDefinitions lists the browser tools for the system prompt. No page is
// bound; only names and descriptions are read.
func toolDefinitions(log output.LoggerPort) []entity.ToolDefinition {
	registry := service.NewToolRegistry()
	for _, t := range tool.BrowserTools(nil, log) {
		registry.Register(t)
	}
	return registry.Definitions()
}
