package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portal-session/internal/infrastructure/logger"
	"portal-session/internal/testutil"
	"portal-session/internal/usecase/authdetect"
	"portal-session/internal/usecase/extraction"
	"portal-session/internal/usecase/schedule"
	"portal-session/internal/usecase/session"
)

const (
	idpURL       = "https://login.osu.edu/idp/profile/SAML2/Redirect/SSO"
	dashboardURL = "https://buckeyelink.osu.edu/psc/csosuprd/EMPLOYEE/SA/c/NUI_FRAMEWORK.PT_LANDINGPAGE.GBL"
	scheduleJSON = `{"term":"Spring 2026","courses":[{"code":"CSE 2221","title":"Software I","days":"MWF"}]}`
)

type testEnv struct {
	launcher *testutil.FakeLauncher
	agent    *testutil.StubAgent
	registry *session.Registry
	gateway  *Gateway
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	env := &testEnv{
		launcher: &testutil.FakeLauncher{},
		agent:    &testutil.StubAgent{Answer: scheduleJSON},
	}

	cfg := session.DefaultConfig()
	cfg.TypingDelay = 0
	cfg.ClickSettle = 0
	cfg.Task = "read schedule"
	env.registry = session.NewRegistry(cfg, session.Deps{
		Launcher:  env.launcher,
		Detector:  authdetect.NewMarkerDetector(authdetect.DefaultMarkers()),
		Extractor: extraction.NewCoordinator(env.agent, log),
		Parser:    schedule.NewParser(""),
		Logger:    log,
	})

	env.gateway = NewGateway(env.registry, GatewayConfig{FrameInterval: 20 * time.Millisecond}, log)
	router := NewRouter(NewSessionHandler(env.registry, log), env.gateway, RouterConfig{
		CORSOrigins: []string{"http://localhost:3000"},
	}, log)

	env.server = httptest.NewServer(router)
	t.Cleanup(func() {
		env.server.Close()
		env.registry.Close()
	})
	return env
}

func (e *testEnv) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + path
}
