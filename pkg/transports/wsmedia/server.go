// Package wsmedia serves the duplex call-media websocket protocol. Each
// accepted connection becomes one call session with its own media handler.
package wsmedia

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/media"
	"github.com/voxline/voxline/pkg/turn"
	"github.com/voxline/voxline/pkg/wire"
)

type Config struct {
	Addr           string   `mapstructure:"addr"`
	Path           string   `mapstructure:"path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SendBuffer     int      `mapstructure:"send_buffer"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Path == "" {
		c.Path = "/media"
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = 512
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// HandlerFactory builds the media handler for a newly accepted call. The
// emitter writes agent audio back over the same connection.
type HandlerFactory func(callID string, emit turn.Emitter) (*media.Handler, error)

type Server struct {
	cfg      Config
	factory  HandlerFactory
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	draining atomic.Bool
}

func New(cfg Config, factory HandlerFactory) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:      cfg,
		factory:  factory,
		logger:   logging.NewComponentLogger(nil, "wsmedia_server"),
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

func (s *Server) Name() string { return "wsmedia" }

func (s *Server) ReadyFields() map[string]any {
	return map[string]any{
		"media_url": "ws://" + hostFromAddr(s.cfg.Addr) + s.cfg.Path,
	}
}

func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = s.server.Close()
	}()
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("media_server_error", slog.String("error", err.Error()))
		}
	}()
	s.logger.Info("media_server_started",
		slog.String("addr", s.cfg.Addr),
		slog.String("path", s.cfg.Path))
	return nil
}

func (s *Server) Stop() error {
	s.draining.Store(true)
	if s.server != nil {
		_ = s.server.Close()
	}
	s.mu.Lock()
	for _, sess := range s.sessions {
		_ = sess.close()
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	return nil
}

func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("media_upgrade_failed", slog.String("error", err.Error()))
		return
	}
	callID := uuid.NewString()
	sess := &session{
		conn:   conn,
		sendCh: make(chan []byte, s.cfg.SendBuffer),
	}
	go sess.loop()

	s.mu.Lock()
	s.sessions[callID] = sess
	s.mu.Unlock()

	s.logger.Info("call_session_opened",
		slog.String("call_id", callID),
		slog.String("remote_addr", r.RemoteAddr))
	s.serveCall(r.Context(), callID, sess)
}

func (s *Server) serveCall(ctx context.Context, callID string, sess *session) {
	defer func() {
		s.mu.Lock()
		delete(s.sessions, callID)
		s.mu.Unlock()
		_ = sess.close()
		s.logger.Info("call_session_closed", slog.String("call_id", callID))
	}()

	handler, err := s.factory(callID, &sessionEmitter{sess: sess})
	if err != nil {
		s.logger.Error("media_handler_build_failed",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return
	}
	if err := handler.Start(ctx); err != nil {
		s.logger.Error("media_handler_start_failed",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return
	}
	defer func() {
		_ = handler.Stop()
	}()

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("media_read_ended",
					slog.String("call_id", callID),
					slog.String("error", err.Error()))
			}
			return
		}
		handler.HandleMessage(ctx, data)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range s.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

func hostFromAddr(addr string) string {
	if addr == "" {
		return "localhost:8080"
	}
	if addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

type session struct {
	conn   *websocket.Conn
	sendCh chan []byte

	// mu orders enqueue against close so a send can never hit a closed
	// sendCh while another goroutine is tearing the session down.
	mu     sync.Mutex
	closed bool
}

func (s *session) enqueue(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	select {
	case s.sendCh <- msg:
	default:
	}
	return nil
}

func (s *session) loop() {
	for msg := range s.sendCh {
		_ = s.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *session) close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.sendCh)
	}
	s.mu.Unlock()
	return s.conn.Close()
}

// sessionEmitter writes agent audio frames back over the call's websocket.
type sessionEmitter struct {
	sess *session
}

func (e *sessionEmitter) EmitAudio(pcm []byte) error {
	msg, err := wire.EncodeAudioData(pcm)
	if err != nil {
		return err
	}
	return e.sess.enqueue(msg)
}

func (e *sessionEmitter) EmitStopAudio() error {
	msg, err := wire.EncodeStopAudio()
	if err != nil {
		return err
	}
	return e.sess.enqueue(msg)
}

var _ turn.Emitter = (*sessionEmitter)(nil)
