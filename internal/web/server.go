// Package web serves the running session's state over HTTP and streams it to
// websocket clients.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/colormap"
	"github.com/guidoenr/beatviz/internal/logger"
	"github.com/guidoenr/beatviz/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBuffer     = 16
	maxRequestBody = 1 << 12
)

//go:embed static
var staticFiles embed.FS

// Controller applies commands on the render loop.
type Controller interface {
	// UpdateThresholds merges u into the running thresholds and returns
	// the result.
	UpdateThresholds(ctx context.Context, u beat.ThresholdsUpdate) (beat.Thresholds, error)
	Reset(ctx context.Context) error
}

// Config configures the server.
type Config struct {
	// StreamHz caps websocket pushes per second.
	StreamHz float64
	Mapper   colormap.Mapper
	Logger   *slog.Logger
}

// Server holds the latest published snapshot and fans it out to clients.
type Server struct {
	ctrl     Controller
	mapper   colormap.Mapper
	log      *slog.Logger
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	latest  session.Snapshot
	have    bool
	version uint64
	clients map[*client]struct{}
	closed  bool

	wg sync.WaitGroup
}

// StreamMessage is one websocket push.
type StreamMessage struct {
	Session      string                     `json:"session"`
	Frames       int                        `json:"frames"`
	Beats        int                        `json:"beats"`
	Beat         beat.Frame                 `json:"beat"`
	Animations   animation.Stats            `json:"animations"`
	States       map[string]animation.State `json:"states"`
	Distribution map[string]float64         `json:"distribution"`
}

// BandResponse describes one catalog band.
type BandResponse struct {
	Name  string  `json:"name"`
	MinHz float64 `json:"minHz"`
	MaxHz float64 `json:"maxHz"`
	Hue   float64 `json:"hue"`
	Color string  `json:"color"`
}

// BandsResponse is the body of /api/bands.
type BandsResponse struct {
	Bands    []BandResponse       `json:"bands"`
	Stops    []colormap.ColorStop `json:"stops"`
	Gradient string               `json:"gradient"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer builds a server dispatching commands to ctrl.
func NewServer(ctrl Controller, cfg Config) *Server {
	if cfg.StreamHz <= 0 {
		cfg.StreamHz = 30
	}
	if cfg.Mapper.Nyquist <= 0 {
		cfg.Mapper = colormap.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Server{
		ctrl:     ctrl,
		mapper:   cfg.Mapper,
		log:      cfg.Logger.With(slog.String("component", "web")),
		interval: time.Duration(float64(time.Second) / cfg.StreamHz),
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Publish records the latest snapshot. It never blocks.
func (s *Server) Publish(snap session.Snapshot) {
	s.mu.Lock()
	s.latest = snap
	s.have = true
	s.version++
	s.mu.Unlock()
}

// Latest returns the last published snapshot.
func (s *Server) Latest() (session.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.have
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /{$}", http.FileServerFS(static))
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/bands", s.handleBands)
	mux.HandleFunc("POST /api/thresholds", s.handleThresholds)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down and waits for
// every client to disconnect.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.log.Info("web server listening", slog.String("addr", "http://"+ln.Addr().String()))

	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		s.Broadcast(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), writeWait)
	defer cancelShutdown()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	cancel()
	<-broadcastDone
	s.wg.Wait()

	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if err == nil {
		s.log.Info("web server stopped")
	}
	return err
}

// Broadcast pushes new snapshots to every client at most StreamHz times per
// second. On return every client has been told to disconnect.
func (s *Server) Broadcast(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.closeClients()

	var sent uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			snap, version, have := s.latest, s.version, s.have
			s.mu.RUnlock()
			if !have || version == sent {
				continue
			}
			sent = version
			data, err := json.Marshal(newStreamMessage(snap))
			if err != nil {
				s.log.Warn("encode stream message", slog.Any("error", err))
				continue
			}
			s.fanOut(data)
		}
	}
}

func newStreamMessage(snap session.Snapshot) StreamMessage {
	return StreamMessage{
		Session:      snap.ID,
		Frames:       snap.Frames,
		Beats:        snap.Beats,
		Beat:         snap.Beat,
		Animations:   snap.Animations,
		States:       snap.States,
		Distribution: snap.Distribution,
	}
}

func (s *Server) fanOut(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.log.Debug("dropping slow client", slog.String("remote", c.conn.RemoteAddr().String()))
			delete(s.clients, c)
			close(c.send)
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no session yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	bands := s.mapper.Bands()
	resp := BandsResponse{
		Bands:    make([]BandResponse, len(bands)),
		Stops:    s.mapper.ColorStops(),
		Gradient: s.mapper.GradientCSS(),
	}
	for i, b := range bands {
		resp.Bands[i] = BandResponse{Name: b.Name, MinHz: b.MinHz, MaxHz: b.MaxHz, Hue: b.Hue, Color: b.Hex}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	var req beat.ThresholdsUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode thresholds: %v", err))
		return
	}
	if req.Empty() {
		writeError(w, http.StatusBadRequest, "no thresholds given")
		return
	}

	t, err := s.ctrl.UpdateThresholds(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.log.Info("thresholds requested", slog.Float64("beat", t.Beat), slog.Float64("kick", t.Kick), slog.Float64("bass", t.Bass))
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reset(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	if s.have {
		if data, err := json.Marshal(newStreamMessage(s.latest)); err == nil {
			c.send <- data
		}
	}
	s.mu.Unlock()
	s.log.Debug("websocket client connected", slog.String("remote", conn.RemoteAddr().String()))

	s.wg.Add(2)
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer s.wg.Done()
	defer func() {
		s.removeClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxRequestBody)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
