package kettle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/3cpo-dev/teatime/internal/telemetry"
)

// Server simulates the remote smart kettle. /delay/{seconds} answers after the
// given delay, /status/{code} answers with that code.
type Server struct {
	Version string
	// Token, when set, must be presented as a bearer token or X-Auth-Token.
	Token   string
	Clock   clock.Clock
	Metrics *telemetry.Collector

	mu  sync.Mutex
	srv *http.Server
}

func (s *Server) clock() clock.Clock {
	if s.Clock == nil {
		return clock.New()
	}
	return s.Clock
}

// Handler returns the kettle routes wrapped with token auth, plus the
// unauthenticated /health and /metrics endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	root := http.NewServeMux()
	root.Handle("/", s.auth(mux))
	root.Handle("GET /health", telemetry.HealthHandler(telemetry.DefaultHealthChecks()))
	root.Handle("GET /metrics", telemetry.MetricsHandler(s.Metrics))
	return root
}

// Routes for the server
func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v0/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.Counter("kettled_heartbeats", 1, map[string]string{"endpoint": "heartbeat"})

		h := HeartbeatResponse{Time: s.clock().Now(), Host: r.Host, Version: s.Version}
		writeJSON(w, http.StatusOK, h)
	})
	mux.HandleFunc("GET /delay/{seconds}", func(w http.ResponseWriter, r *http.Request) {
		start := s.clock().Now()
		secs, err := strconv.ParseFloat(r.PathValue("seconds"), 64)
		if err != nil || secs < 0 {
			http.Error(w, "invalid delay", http.StatusBadRequest)
			return
		}
		delay := time.Duration(secs * float64(time.Second))
		if delay > MaxDelay {
			delay = MaxDelay
		}

		t := s.clock().Timer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-r.Context().Done():
			s.Metrics.Counter("kettled_delay_abandoned", 1, map[string]string{"endpoint": "delay"})
			return
		}

		s.Metrics.Timer("kettled_request_duration", s.clock().Since(start), map[string]string{
			"endpoint": "delay",
			"status":   "200",
		})
		writeJSON(w, http.StatusOK, StatusResponse{
			Time:    s.clock().Now(),
			Host:    r.Host,
			Version: s.Version,
			DelayMS: delay.Milliseconds(),
		})
	})
	mux.HandleFunc("GET /status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "invalid status code", http.StatusBadRequest)
			return
		}
		s.Metrics.Counter("kettled_status_requests", 1, map[string]string{"endpoint": "status", "code": strconv.Itoa(code)})
		w.WriteHeader(code)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" {
			auth := r.Header.Get("Authorization")
			x := r.Header.Get("X-Auth-Token")
			if auth != "Bearer "+s.Token && x != s.Token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) setServer(srv *http.Server) {
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.setServer(srv)
	return srv.ListenAndServe()
}

// Shutdown the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return fmt.Errorf("server not running")
	}
	return srv.Shutdown(ctx)
}
