package kettle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/3cpo-dev/teatime/internal/telemetry"
)

func newTestProbe(t *testing.T, url string, timeout time.Duration, token string) (*HTTPProbe, *telemetry.Collector) {
	t.Helper()
	client := NewClient(timeout, token)
	t.Cleanup(func() { _ = client.Close() })
	metrics := telemetry.NewCollector(true)
	return NewHTTPProbe(client, url, zerolog.Nop(), metrics, nil), metrics
}

func TestCheckStatus(t *testing.T) {
	slow := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"hot":true}`))
		case "/no-content":
			w.WriteHeader(http.StatusNoContent)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			select {
			case <-slow:
			case <-r.Context().Done():
			}
		}
	}))
	defer srv.Close()
	defer close(slow)

	tests := []struct {
		name   string
		path   string
		status Status
		cause  Cause
	}{
		{name: "ok", path: "/ok", status: Available, cause: CauseNone},
		{name: "no content", path: "/no-content", status: Available, cause: CauseNone},
		{name: "server error", path: "/broken", status: Unavailable, cause: CauseHTTPStatus},
		{name: "not found", path: "/missing", status: Unavailable, cause: CauseHTTPStatus},
		{name: "timeout", path: "/slow", status: Unavailable, cause: CauseTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe, metrics := newTestProbe(t, srv.URL+tt.path, 100*time.Millisecond, "")

			res := probe.CheckStatus(context.Background())

			require.Equal(t, tt.status, res.Status)
			require.Equal(t, tt.cause, res.Cause)
			require.Equal(t, tt.status == Available, res.Available())
			if tt.status == Unavailable {
				require.Error(t, res.Err)
			} else {
				require.NoError(t, res.Err)
			}
			require.EqualValues(t, 1, metrics.Sum("teatime_kettle_probes"))
		})
	}
}

func TestCheckStatus_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	probe, _ := newTestProbe(t, srv.URL, time.Second, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := probe.CheckStatus(ctx)
	require.Equal(t, Unavailable, res.Status)
	require.Equal(t, CauseCanceled, res.Cause)
	require.ErrorIs(t, res.Err, context.Canceled)
}

func TestCheckStatus_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	probe, _ := newTestProbe(t, url, time.Second, "")
	res := probe.CheckStatus(context.Background())
	require.Equal(t, Unavailable, res.Status)
	require.Equal(t, CauseTransport, res.Cause)
}

func TestCheckStatus_MalformedURL(t *testing.T) {
	probe, _ := newTestProbe(t, "http://[::1", time.Second, "")
	res := probe.CheckStatus(context.Background())
	require.Equal(t, Unavailable, res.Status)
	require.Equal(t, CauseRequest, res.Cause)

	var reqErr *RequestError
	require.ErrorAs(t, res.Err, &reqErr)
	require.Equal(t, "http://[::1", reqErr.URL)
}

func TestCheckStatus_AgainstKettleServer(t *testing.T) {
	ks := &Server{Version: "test", Token: "s3cret"}
	srv := httptest.NewServer(ks.Handler())
	defer srv.Close()

	probe, _ := newTestProbe(t, srv.URL+"/delay/0", time.Second, "s3cret")
	require.True(t, probe.CheckStatus(context.Background()).Available())

	probe, _ = newTestProbe(t, srv.URL+"/status/503", time.Second, "s3cret")
	res := probe.CheckStatus(context.Background())
	require.Equal(t, CauseHTTPStatus, res.Cause)

	probe, _ = newTestProbe(t, srv.URL+"/delay/0", time.Second, "")
	res = probe.CheckStatus(context.Background())
	require.Equal(t, Unavailable, res.Status)
	require.Equal(t, CauseHTTPStatus, res.Cause)
}

func TestClientSendsHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	client := NewClient(time.Second, "tok")
	defer client.Close()

	code, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	h := <-headers
	require.Equal(t, "Bearer tok", h.Get("Authorization"))
	require.Equal(t, "teatime", h.Get("User-Agent"))
}
