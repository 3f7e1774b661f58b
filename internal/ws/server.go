package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/signal-sync/signal-sync/internal/config"
	"github.com/signal-sync/signal-sync/internal/health"
	"github.com/signal-sync/signal-sync/internal/session"
	"github.com/signal-sync/signal-sync/internal/signal"
	"github.com/signal-sync/signal-sync/internal/telemetry"
)

// Server accepts WebSocket connections and runs one counter session per
// connection until the peer goes away or the server shuts down.
type Server struct {
	config         *config.Config
	store          *session.Store
	metrics        *telemetry.Metrics
	reporter       *health.Reporter
	logger         *slog.Logger
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	closing        atomic.Bool
}

// NewServer wires the accept layer. metrics and reporter may be nil.
func NewServer(cfg *config.Config, store *session.Store, metrics *telemetry.Metrics, reporter *health.Reporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:         cfg,
		store:          store,
		metrics:        metrics,
		reporter:       reporter,
		logger:         logger,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/ws", s.handleWS)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}", s.handleSession)
		r.Get("/health", s.handleHealth)
	})
	if s.metrics != nil && s.config.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		s.reject("shutdown")
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	if !s.authorize(r) {
		s.reject("unauthorized")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.store.Full() {
		s.reject("limit")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.reject("upgrade")
		s.logger.Debug("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.serveSession(NewConn(wsConn, s.config.Sync.WriteTimeout), r.RemoteAddr)
}

// serveSession owns conn until it returns; conn is always closed on exit.
func (s *Server) serveSession(conn *Conn, remote string) {
	id := uuid.NewString()
	name := s.config.Sync.SignalName
	logger := s.logger.With("session_id", id, "remote", remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []signal.Option{
		signal.WithID(id),
		signal.WithName(name),
	}
	if s.metrics != nil {
		opts = append(opts, signal.WithObserver(s.metrics))
	}
	if !s.config.Sync.Envelope {
		opts = append(opts, signal.WithEncoder(signal.PayloadEncoder{}))
	}
	sess := signal.New(conn,
		signal.Count{Value: s.config.Sync.InitialValue},
		s.config.Sync.Interval,
		signal.Increment(s.config.Sync.Increment),
		opts...)

	info := session.Info{ID: id, Name: name, RemoteAddr: remote, StartedAt: time.Now()}
	if err := s.store.Admit(info, sess, cancel); err != nil {
		code, reason := refusalFor(err)
		if errors.Is(err, session.ErrClosed) {
			s.reject("shutdown")
			logger.Info("session refused", "error", err)
		} else {
			s.reject("limit")
			logger.Warn("session refused", "error", err)
		}
		conn.Close(code, reason)
		return
	}
	defer s.store.Remove(id)

	logger.Info("session started", "interval", s.config.Sync.Interval)

	spanCtx, span := telemetry.StartSessionSpan(ctx, id, name, remote)
	term := sess.Run(spanCtx)
	telemetry.EndSessionSpan(span, term)

	logTermination(logger, term)
	conn.Close(closeCodeFor(term))
}

// refusalFor picks the close frame for a session the store would not admit.
func refusalFor(err error) (int, string) {
	if errors.Is(err, session.ErrClosed) {
		return websocket.CloseGoingAway, "server shutting down"
	}
	return websocket.CloseTryAgainLater, "server busy"
}

// logTermination reports how a session ended. Peer disconnects and shutdown
// are routine and never logged as errors.
func logTermination(logger *slog.Logger, t signal.Termination) {
	attrs := []any{"cause", t.Cause.String(), "ticks", t.Ticks, "sent", t.Sent}
	if t.Cause.Expected() {
		logger.Info("session ended", attrs...)
		if t.Err != nil {
			logger.Debug("session close detail", "error", t.Err)
		}
		return
	}
	logger.Warn("session ended", append(attrs, "error", t.Err)...)
}

func (s *Server) reject(reason string) {
	if s.metrics != nil {
		s.metrics.Rejected(reason)
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetAll())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	info, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		http.Error(w, "health not available", http.StatusServiceUnavailable)
		return
	}
	rep := s.reporter.Collect()
	rep.ActiveSessions = s.store.Count()
	if s.closing.Load() {
		rep.Status = "shutting_down"
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(r *http.Request) bool {
	token := s.config.Server.AuthToken
	if token == "" {
		return true
	}

	if r.URL.Query().Get("token") == token {
		return true
	}

	if r.Header.Get("X-Signal-Token") == token {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == token {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops accepting sessions, cancels the live ones and waits for
// them to release their connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	s.store.CancelAll()
	return s.store.Wait(ctx)
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts down
// within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	sessErr := s.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return sessErr
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return err
	}
	s.logger.Info("server listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}
