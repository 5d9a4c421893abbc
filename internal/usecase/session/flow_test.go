package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
	"portal-session/internal/infrastructure/browser/rod"
	"portal-session/internal/infrastructure/logger"
	"portal-session/internal/usecase/authdetect"
	"portal-session/internal/usecase/executor"
	"portal-session/internal/usecase/extraction"
	"portal-session/internal/usecase/schedule"
	"portal-session/internal/usecase/session"
)

const loginPage = `<!DOCTYPE html>
<html><body style="margin:0">
<form action="/psp/dashboard" method="get">
  <input id="user" name="user" style="position:absolute;left:0;top:0;width:100%;height:50vh">
</form>
</body></html>`

const dashboardPage = `<!DOCTYPE html>
<html><body>
<h1>My Class Schedule</h1>
<table>
  <tr><td>CSE 2221</td><td>Software I</td><td>MoWeFr</td><td>9:10 AM</td><td>10:05 AM</td></tr>
</table>
</body></html>`

func newPortal(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	users := []string{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/idp/login", http.StatusFound)
	})
	mux.HandleFunc("/idp/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/psp/dashboard", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		users = append(users, r.URL.Query().Get("user"))
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, dashboardPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), users...)
	}
}

// readThenAnswerLLM reads the page once, then answers with a schedule built
// from what the tool returned.
type readThenAnswerLLM struct {
	calls int
}

func (l *readThenAnswerLLM) Chat(_ context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	l.calls++
	if l.calls == 1 {
		return &output.ChatResponse{Message: entity.Message{
			Role: entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{{
				ID:        "call_1",
				Name:      string(entity.ToolBrowserExtractText),
				Arguments: "{}",
			}},
		}}, nil
	}

	last := req.Messages[len(req.Messages)-1]
	if !strings.Contains(last.Content, "CSE 2221") {
		return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: "no schedule"}}, nil
	}
	answer := "```json\n" + `{"term":"Spring 2026","courses":[{"code":"CSE 2221","title":"Software I","days":"MoWeFr"}]}` + "\n```"
	return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: answer}}, nil
}

func TestSessionFlow_RealBrowser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("chrome not installed")
	}

	portal, users := newPortal(t)
	log := logger.NewNop()

	browserCfg := rod.DefaultConfig()
	browserCfg.Bin = bin

	cfg := session.DefaultConfig()
	cfg.PortalURL = portal.URL + "/"
	cfg.TypingDelay = 0
	cfg.ClickSettle = 50 * time.Millisecond
	cfg.MaxSteps = 5
	cfg.Task = "read schedule"

	markers := authdetect.Markers{
		IdPDomains:       []string{"/idp/"},
		DashboardMarkers: []string{"/psp/"},
		AppDomains:       []string{"portal.invalid"},
	}
	require.NoError(t, markers.Validate())

	agent := executor.New(&readThenAnswerLLM{}, log, "system")
	c := session.NewController("flow", cfg, session.Deps{
		Launcher:  rod.NewLauncher(browserCfg, log),
		Detector:  authdetect.NewMarkerDetector(markers),
		Extractor: extraction.NewCoordinator(agent, log),
		Parser:    schedule.NewParser(""),
		Logger:    log,
	})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, entity.StatusAwaitingAuth, c.Snapshot().Status)

	assert.False(t, c.PollForAuth(ctx))
	assert.True(t, c.Snapshot().SawAuthPortal)

	shot, err := c.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, shot.Data)

	c.HandleClick(ctx, 0.5, 0.25)
	c.HandleKeyboard(ctx, entity.KeyInput{Text: "brutus.1"})
	c.HandleKeyboard(ctx, entity.KeyInput{Key: "Enter"})

	require.Eventually(t, func() bool {
		return c.PollForAuth(ctx)
	}, 10*time.Second, 100*time.Millisecond)
	assert.Equal(t, []string{"brutus.1"}, users())

	record, err := c.Extract(ctx)
	require.NoError(t, err)
	require.Len(t, record.Courses, 1)
	assert.Equal(t, "CSE 2221", record.Courses[0].Code)
	assert.Equal(t, "MoWeFr", record.Courses[0].Days)

	snap := c.Snapshot()
	assert.Equal(t, entity.StatusComplete, snap.Status)
	assert.Equal(t, "Done! Found 1 courses.", snap.Message())
}
