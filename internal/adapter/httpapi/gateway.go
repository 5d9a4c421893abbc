package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"portal-session/internal/application/port/input"
	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
)

type GatewayConfig struct {
	FrameInterval time.Duration
	WriteTimeout  time.Duration
	CORSOrigins   []string
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		FrameInterval: 333 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
	}
}

// Gateway streams one session over a websocket: a frame loop pushes
// screenshots and drives auth polling and extraction, an input loop forwards
// pointer and keyboard events. Only the frame loop writes to the socket.
type Gateway struct {
	registry input.SessionRegistry
	cfg      GatewayConfig
	logger   output.LoggerPort
	upgrader websocket.Upgrader

	baseCtx  context.Context
	shutdown context.CancelFunc
	streams  sync.WaitGroup
}

func NewGateway(registry input.SessionRegistry, cfg GatewayConfig, logger output.LoggerPort) *Gateway {
	def := DefaultGatewayConfig()
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     originChecker(cfg.CORSOrigins),
		},
		baseCtx:  ctx,
		shutdown: cancel,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	g.streams.Add(1)
	defer g.streams.Done()
	defer conn.Close()

	s, ok := g.registry.Current()
	if !ok {
		_ = g.write(conn, errorMessage{Type: msgError, Message: noSessionMessage})
		g.closeConn(conn)
		return
	}

	log := g.logger.WithField("session_id", s.Snapshot().SessionID)
	log.Info("WebSocket client connected")
	g.serve(conn, s, log)
	log.Info("WebSocket session ended")
}

// Shutdown ends every open stream and waits for them to finish tearing down.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdown()
	done := make(chan struct{})
	go func() {
		g.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until no streams are open.
func (g *Gateway) Wait() {
	g.streams.Wait()
}

func (g *Gateway) serve(conn *websocket.Conn, s input.SessionController, log output.LoggerPort) {
	ctx, cancel := context.WithCancel(g.baseCtx)
	defer cancel()

	inbound := make(chan clientMessage)
	go g.readLoop(ctx, cancel, conn, inbound, log)

	ex := &extractionTask{logger: log}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		g.frameLoop(ctx, conn, s, ex, log)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		g.inputLoop(ctx, s, inbound)
	}()
	wg.Wait()

	ex.stop()
	g.closeConn(conn)
}

func (g *Gateway) frameLoop(ctx context.Context, conn *websocket.Conn, s input.SessionController, ex *extractionTask, log output.LoggerPort) {
	ticker := time.NewTicker(g.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		if done := g.tick(ctx, conn, s, ex, log); done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick pushes one frame. It reports true when the stream should end.
func (g *Gateway) tick(ctx context.Context, conn *websocket.Conn, s input.SessionController, ex *extractionTask, log output.LoggerPort) bool {
	if current, ok := g.registry.Current(); !ok || current != s {
		log.Info("Session closed or replaced, ending stream")
		_ = g.write(conn, errorMessage{Type: msgError, Message: sessionClosedMessage})
		return true
	}

	image := ""
	if shot, err := s.Screenshot(ctx); err != nil {
		log.Debug("Screenshot failed", "error", err)
	} else {
		image = base64.StdEncoding.EncodeToString(shot.Data)
	}

	if s.Snapshot().Status == entity.StatusAwaitingAuth {
		s.PollForAuth(ctx)
	}
	if s.Snapshot().Status == entity.StatusAuthenticated && !ex.launched() {
		log.Info("Auth detected, starting extraction in background")
		ex.launch(s)
	}

	snap := s.Snapshot()
	if err := g.write(conn, frameMessage{
		Type:    msgFrame,
		Image:   image,
		Status:  snap.Status.String(),
		Message: snap.Message(),
	}); err != nil {
		log.Debug("Frame write failed", "error", err)
		return true
	}

	if !snap.Status.IsTerminal() {
		return false
	}
	if snap.Status == entity.StatusComplete {
		_ = g.write(conn, completeMessage{
			Type:     msgComplete,
			Status:   snap.Status.String(),
			Schedule: snap.Schedule,
			Message:  snap.Message(),
		})
	} else {
		_ = g.write(conn, errorMessage{Type: msgError, Message: snap.Message()})
	}
	return true
}

// readLoop pumps decoded client messages into out until the socket fails.
// Undecodable frames are dropped.
func (g *Gateway) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- clientMessage, log output.LoggerPort) {
	defer cancel()
	conn.SetReadLimit(maxClientMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("WebSocket read ended", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) inputLoop(ctx context.Context, s input.SessionController, in <-chan clientMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-in:
			dispatch(ctx, s, msg)
		}
	}
}

func dispatch(ctx context.Context, s input.SessionController, msg clientMessage) {
	switch msg.Type {
	case msgClick:
		s.HandleClick(ctx, msg.X, msg.Y)
	case msgKeypress:
		if msg.Key != "" {
			s.HandleKeyboard(ctx, entity.KeyInput{Key: msg.Key})
		}
	case msgType:
		if msg.Text != "" {
			s.HandleKeyboard(ctx, entity.KeyInput{Text: msg.Text})
		}
	}
}

func (g *Gateway) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
	return conn.WriteJSON(v)
}

func (g *Gateway) closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

// extractionTask is the single background extraction of one stream. It runs
// on its own context so a slow socket cannot cut it short; stop cancels it.
type extractionTask struct {
	logger  output.LoggerPort
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (t *extractionTask) launched() bool {
	return t.started
}

func (t *extractionTask) launch(s input.SessionController) {
	if t.started {
		return
	}
	t.started = true

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)
		defer cancel()
		if _, err := s.Extract(ctx); err != nil {
			t.logger.Warn("Extraction ended with error", "error", err)
		}
	}()
}

// stop cancels an outstanding extraction and waits for it to return.
func (t *extractionTask) stop() {
	if !t.started {
		return
	}
	select {
	case <-t.done:
		return
	default:
	}
	t.logger.Info("Cancelling outstanding extraction")
	t.cancel()
	<-t.done
}
