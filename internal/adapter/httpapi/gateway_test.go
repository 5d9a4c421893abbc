package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-session/internal/domain/entity"
	"portal-session/internal/testutil"
)

type serverMessage struct {
	Type     string                 `json:"type"`
	Image    string                 `json:"image"`
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Schedule *entity.ScheduleRecord `json:"schedule"`
}

func dial(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(env.wsURL("/session/stream"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg serverMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil reads messages until one has the wanted type, returning everything read.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) []serverMessage {
	t.Helper()
	var seen []serverMessage
	for i := 0; i < 500; i++ {
		msg := readMessage(t, conn)
		seen = append(seen, msg)
		if msg.Type == msgType {
			return seen
		}
	}
	t.Fatalf("no %q message received", msgType)
	return nil
}

func startSession(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.registry.Start(context.Background())
	require.NoError(t, err)
}

func TestStream_NoSession(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)

	msg := readMessage(t, conn)
	assert.Equal(t, serverMessage{Type: "error", Message: "No session started"}, msg)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestStream_LoginToComplete(t *testing.T) {
	env := newTestEnv(t)
	env.launcher.Prepare = func(b *testutil.FakeBrowser) {
		b.SetURLs("https://buckeyelink.osu.edu/", idpURL, idpURL, dashboardURL)
	}
	startSession(t, env)
	conn := dial(t, env)

	seen := readUntil(t, conn, "complete")

	first := seen[0]
	assert.Equal(t, "frame", first.Type)
	assert.Equal(t, "awaiting_auth", first.Status)
	assert.Equal(t, "Waiting for you to log in...", first.Message)
	assert.NotEmpty(t, first.Image)

	final := seen[len(seen)-1]
	assert.Equal(t, "complete", final.Status)
	assert.Equal(t, "Done! Found 1 courses.", final.Message)
	require.NotNil(t, final.Schedule)
	require.Len(t, final.Schedule.Courses, 1)
	assert.Equal(t, "CSE 2221", final.Schedule.Courses[0].Code)

	assert.Equal(t, "complete", seen[len(seen)-2].Status, "a frame with the terminal status precedes the final payload")
	assert.Equal(t, 1, env.agent.CallCount())

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestStream_ExtractionFailure(t *testing.T) {
	env := newTestEnv(t)
	env.agent.Err = errors.New("agent crashed")
	env.launcher.Prepare = func(b *testutil.FakeBrowser) { b.SetURLs(idpURL, dashboardURL) }
	startSession(t, env)
	conn := dial(t, env)

	seen := readUntil(t, conn, "error")

	final := seen[len(seen)-1]
	assert.Contains(t, final.Message, "agent crashed")
	assert.Equal(t, 1, env.agent.CallCount())
}

func TestStream_ScreenshotFailureSendsEmptyImage(t *testing.T) {
	env := newTestEnv(t)
	env.launcher.Prepare = func(b *testutil.FakeBrowser) { b.ScreenshotErr = errors.New("gpu lost") }
	startSession(t, env)
	conn := dial(t, env)

	msg := readMessage(t, conn)

	assert.Equal(t, "frame", msg.Type)
	assert.Empty(t, msg.Image)
	assert.Equal(t, "awaiting_auth", msg.Status)
}

func TestStream_ForwardsInput(t *testing.T) {
	env := newTestEnv(t)
	startSession(t, env)
	conn := dial(t, env)
	readMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "scroll", "dy": 3}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "click", "x": 0.5, "y": 0.5}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "keypress", "key": "Enter"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "keypress", "key": ""}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "type", "text": "osu"}))

	b := env.launcher.Browser(0)
	assert.Eventually(t, func() bool { return b.CharLog() == "osu" }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []testutil.Point{{X: 640, Y: 400}}, b.ClickLog())
	assert.Equal(t, []string{"Enter"}, b.KeyLog())
}

func TestStream_DisconnectCancelsExtraction(t *testing.T) {
	env := newTestEnv(t)
	env.agent.Block = make(chan struct{})
	env.launcher.Prepare = func(b *testutil.FakeBrowser) { b.SetURLs(idpURL, dashboardURL) }
	startSession(t, env)
	started := env.agent.Started()

	conn := dial(t, env)
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("extraction never started")
	}

	require.NoError(t, conn.Close())
	disconnected := time.Now()

	done := make(chan struct{})
	go func() {
		env.gateway.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not tear down after disconnect")
	}
	assert.Less(t, time.Since(disconnected), 500*time.Millisecond)

	current, ok := env.registry.Current()
	require.True(t, ok)
	snap := current.Snapshot()
	assert.Equal(t, entity.StatusError, snap.Status)
	assert.Contains(t, snap.Error, "cancelled")
}

// readToClose reads until the server ends the stream and returns the messages seen.
func readToClose(t *testing.T, conn *websocket.Conn) []serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var seen []serverMessage
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "stream did not close cleanly: %v", err)
			return seen
		}
		seen = append(seen, msg)
	}
}

func TestStream_EndsWhenSessionClosed(t *testing.T) {
	env := newTestEnv(t)
	startSession(t, env)
	conn := dial(t, env)
	readMessage(t, conn)

	env.registry.Close()

	seen := readToClose(t, conn)
	require.NotEmpty(t, seen)
	assert.Equal(t, serverMessage{Type: "error", Message: "Session closed"}, seen[len(seen)-1])
}

func TestStream_EndsWhenSessionReplaced(t *testing.T) {
	env := newTestEnv(t)
	startSession(t, env)
	conn := dial(t, env)
	readMessage(t, conn)

	startSession(t, env)

	seen := readToClose(t, conn)
	require.NotEmpty(t, seen)
	assert.Equal(t, "Session closed", seen[len(seen)-1].Message)

	// A new connection follows the replacement session.
	fresh := dial(t, env)
	msg := readMessage(t, fresh)
	assert.Equal(t, "frame", msg.Type)
	assert.Equal(t, "awaiting_auth", msg.Status)
}

func TestStream_OversizedMessageEndsStream(t *testing.T) {
	env := newTestEnv(t)
	startSession(t, env)
	conn := dial(t, env)
	readMessage(t, conn)

	big := `{"type":"type","text":"` + strings.Repeat("x", maxClientMessageSize) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "unexpected error: %v", err)
			break
		}
	}
	assert.Empty(t, env.launcher.Browser(0).CharLog())
}

func TestGateway_ShutdownEndsStreams(t *testing.T) {
	env := newTestEnv(t)
	startSession(t, env)
	conn := dial(t, env)
	readMessage(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.gateway.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	header := http.Header{"Origin": []string{"https://evil.example"}}

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("/session/stream"), header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
