package kettle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/3cpo-dev/teatime/internal/telemetry"
)

// Status is the normalized outcome of a kettle status check.
type Status string

const (
	Available   Status = "available"
	Unavailable Status = "unavailable"
)

// Cause explains an Unavailable status. It is diagnostic only.
type Cause string

const (
	CauseNone       Cause = ""
	CauseRequest    Cause = "request"
	CauseTransport  Cause = "transport"
	CauseTimeout    Cause = "timeout"
	CauseCanceled   Cause = "canceled"
	CauseHTTPStatus Cause = "http_status"
)

// Result is what a probe resolves to. Status is always set.
type Result struct {
	Status  Status
	Cause   Cause
	Err     error
	Latency time.Duration
}

// Available reports whether the kettle answered.
func (r Result) Available() bool { return r.Status == Available }

// Prober checks whether the remote kettle is reachable.
type Prober interface {
	CheckStatus(ctx context.Context) Result
}

// HTTPProbe checks the kettle with a single GET request.
type HTTPProbe struct {
	client  *Client
	url     string
	logger  zerolog.Logger
	metrics *telemetry.Collector
	tracer  trace.Tracer
}

var _ Prober = (*HTTPProbe)(nil)

// NewHTTPProbe creates a probe against url. metrics and tracer may be nil.
func NewHTTPProbe(client *Client, url string, logger zerolog.Logger, metrics *telemetry.Collector, tracer trace.Tracer) *HTTPProbe {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("kettle")
	}
	return &HTTPProbe{
		client:  client,
		url:     url,
		logger:  logger.With().Str("component", "KettleService").Logger(),
		metrics: metrics,
		tracer:  tracer,
	}
}

// CheckStatus never fails: transport errors, timeouts, cancellation and non-2xx
// answers all resolve to Unavailable.
func (p *HTTPProbe) CheckStatus(ctx context.Context) Result {
	ctx, span := p.tracer.Start(ctx, "kettle.CheckStatus", trace.WithAttributes(attribute.String("http.url", p.url)))
	defer span.End()

	start := time.Now()
	code, err := p.client.Get(ctx, p.url)
	res := Result{Status: Available, Latency: time.Since(start)}

	switch {
	case err != nil:
		res.Status, res.Cause, res.Err = Unavailable, classify(ctx, err), err
	case code < 200 || code > 299:
		res.Status, res.Cause, res.Err = Unavailable, CauseHTTPStatus, fmt.Errorf("unexpected status %d", code)
	}

	labels := map[string]string{"status": string(res.Status)}
	if res.Cause != CauseNone {
		labels["cause"] = string(res.Cause)
	}
	p.metrics.Counter("teatime_kettle_probes", 1, labels)
	p.metrics.Timer("teatime_kettle_probe_duration", res.Latency, labels)

	span.SetAttributes(attribute.String("kettle.status", string(res.Status)), attribute.Int("http.status_code", code))
	if !res.Available() {
		span.SetStatus(codes.Error, string(res.Cause))
		p.logger.Warn().
			Str("url", p.url).
			Str("cause", string(res.Cause)).
			Err(res.Err).
			Msg("CheckKettleStatus - kettle offline, request failed")
		return res
	}

	p.logger.Debug().Str("url", p.url).Int("status", code).Dur("latency", res.Latency).Msg("CheckKettleStatus - kettle online")
	return res
}

func classify(ctx context.Context, err error) Cause {
	var reqErr *RequestError
	var netErr net.Error
	switch {
	case errors.As(err, &reqErr):
		return CauseRequest
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return CauseCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CauseTimeout
	default:
		return CauseTransport
	}
}
