// Package httpapi serves the gateway's HTTP surface: the time zone page,
// the endpoint it reports back to, health and metrics.
package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/crystaldolphin/confidant/internal/schema"
)

//go:embed tz_setup.html
var tzSetupPage []byte

// TimezoneSetter records a user's offset in minutes east of UTC.
type TimezoneSetter interface {
	SetTimezone(ctx context.Context, userID int64, offsetMinutes int) error
}

// Config locates the listener.
type Config struct {
	Host string
	Port int
}

// Server is the gateway's HTTP server.
type Server struct {
	cfg    Config
	tz     TimezoneSetter
	router chi.Router
}

// New builds the router. metrics may be nil.
func New(cfg Config, tz TimezoneSetter, metrics http.Handler) *Server {
	s := &Server{cfg: cfg, tz: tz}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	r.Get("/", s.root)
	r.Get("/tz-setup", s.tzSetup)
	r.Post("/set-timezone", s.setTimezone)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http: shutdown", "err", err)
	}
	slog.Info("http: stopped")
	return ctx.Err()
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("confidant is running"))
}

func (s *Server) tzSetup(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(tzSetupPage)
}

// timezoneRequest accepts both the current shape {sessionId,
// utcOffsetMinutes} and the legacy page's {chatId, offset}, where offset
// is a browser getTimezoneOffset value (minutes west of UTC).
type timezoneRequest struct {
	SessionID        *flexInt `json:"sessionId"`
	UTCOffsetMinutes *flexInt `json:"utcOffsetMinutes"`
	ChatID           *flexInt `json:"chatId"`
	Offset           *flexInt `json:"offset"`
}

func (req timezoneRequest) resolve() (userID int64, offset int, ok bool) {
	switch {
	case req.SessionID != nil && req.UTCOffsetMinutes != nil:
		return int64(*req.SessionID), int(*req.UTCOffsetMinutes), true
	case req.ChatID != nil && req.Offset != nil:
		return int64(*req.ChatID), -int(*req.Offset), true
	}
	return 0, 0, false
}

func (s *Server) setTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "malformed body")
		return
	}
	userID, offset, ok := req.resolve()
	if !ok || userID == 0 {
		Error(w, http.StatusBadRequest, "missing session id or offset")
		return
	}

	if err := s.tz.SetTimezone(r.Context(), userID, offset); err != nil {
		if errors.Is(err, schema.ErrValidation) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("http: set timezone failed", "user", userID, "err", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": "ok", "utcOffsetMinutes": offset})
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: encode response", "err", err)
	}
}

// Error writes a JSON error body.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// flexInt decodes a JSON number or a string holding an integer.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n = json.Number(s)
	} else if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %q", n)
	}
	*f = flexInt(v)
	return nil
}
