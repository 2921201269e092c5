package kettle

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/3cpo-dev/teatime/internal/telemetry"
)

// serveOnMock serves path on h, advancing mock by step until the handler returns.
func serveOnMock(t *testing.T, mock *clock.Mock, h http.Handler, path string, step time.Duration) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case <-done:
			return rr
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never answered", path)
		}
		mock.Add(step)
	}
}

// TestHeartbeat tests the heartbeat endpoint
func TestHeartbeat(t *testing.T) {
	srv := &Server{Version: "test"}
	mux := http.NewServeMux()
	srv.routes(mux)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v0/heartbeat", nil)
	mux.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("status %d", rr.Code)
	}
	var resp HeartbeatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Version != "test" {
		t.Fatalf("version mismatch")
	}
}

// TestDelay tests that /delay answers once the clock has moved
func TestDelay(t *testing.T) {
	mock := clock.NewMock()
	metrics := telemetry.NewCollector(true)
	srv := &Server{Version: "test", Clock: mock, Metrics: metrics}
	h := srv.Handler()

	rr := serveOnMock(t, mock, h, "/delay/3", 100*time.Millisecond)

	if rr.Code != 200 {
		t.Fatalf("status %d", rr.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.DelayMS != 3000 {
		t.Fatalf("delay_ms %d", resp.DelayMS)
	}
	if metrics.Sum("kettled_request_duration") < float64(3*time.Second/time.Millisecond) {
		t.Fatalf("request duration not recorded")
	}
}

// TestDelayCapped tests that delays above MaxDelay are capped
func TestDelayCapped(t *testing.T) {
	mock := clock.NewMock()
	srv := &Server{Version: "test", Clock: mock}
	h := srv.Handler()

	rr := serveOnMock(t, mock, h, "/delay/60", time.Second)

	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.DelayMS != MaxDelay.Milliseconds() {
		t.Fatalf("delay_ms %d, want %d", resp.DelayMS, MaxDelay.Milliseconds())
	}
}

func TestDelayInvalid(t *testing.T) {
	srv := &Server{Version: "test"}
	for _, path := range []string{"/delay/abc", "/delay/-1"} {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", path, rr.Code)
		}
	}
}

func TestStatusRoute(t *testing.T) {
	srv := &Server{Version: "test"}
	tests := map[string]int{
		"/status/200": 200,
		"/status/503": 503,
		"/status/418": 418,
		"/status/abc": 400,
		"/status/999": 400,
	}
	for path, want := range tests {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != want {
			t.Fatalf("%s: status %d, want %d", path, rr.Code, want)
		}
	}
}

func TestAuth(t *testing.T) {
	srv := &Server{Version: "test", Token: "s3cret"}
	h := srv.Handler()

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong bearer", header: "Authorization", value: "Bearer nope", want: http.StatusUnauthorized},
		{name: "bearer", header: "Authorization", value: "Bearer s3cret", want: http.StatusOK},
		{name: "x-auth-token", header: "X-Auth-Token", value: "s3cret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v0/heartbeat", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestShutdownNotRunning(t *testing.T) {
	srv := &Server{}
	if err := srv.Shutdown(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestMTLSMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Subject", r.Header.Get("X-Client-Subject"))
	})

	rr := httptest.NewRecorder()
	MTLSMiddleware(true)(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("plaintext with mTLS required: status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	MTLSMiddleware(false)(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("plaintext with mTLS optional: status %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	cert := &x509.Certificate{SerialNumber: big.NewInt(42)}
	cert.Subject.CommonName = "teatime"
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
	rr = httptest.NewRecorder()
	MTLSMiddleware(true)(ok).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("client cert: status %d", rr.Code)
	}
	if rr.Header().Get("X-Seen-Subject") != "CN=teatime" {
		t.Fatalf("subject %q", rr.Header().Get("X-Seen-Subject"))
	}
}

func TestLoadTLSConfig(t *testing.T) {
	t.Setenv("KETTLED_TLS_CERT", "")
	t.Setenv("KETTLED_TLS_KEY", "")
	if LoadTLSConfig().Enabled() {
		t.Fatal("TLS should be disabled without cert and key")
	}

	t.Setenv("KETTLED_TLS_CERT", "cert.pem")
	t.Setenv("KETTLED_TLS_KEY", "key.pem")
	t.Setenv("KETTLED_REQUIRE_MTLS", "true")
	cfg := LoadTLSConfig()
	if !cfg.Enabled() || !cfg.RequireAuth {
		t.Fatalf("unexpected config %+v", cfg)
	}

	srv := &Server{}
	if _, err := srv.ConfigureTLS(cfg); err == nil {
		t.Fatal("expected error for missing certificate files")
	}
}
