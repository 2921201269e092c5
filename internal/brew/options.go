package brew

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/3cpo-dev/teatime/internal/telemetry"
)

// Config holds the delays of a tea run.
type Config struct {
	FallbackDelay   time.Duration
	BackgroundDelay time.Duration
}

// DefaultConfig returns the reference delays: 3s fallback boil, 20s snacks.
func DefaultConfig() Config {
	return Config{
		FallbackDelay:   BoilingTime,
		BackgroundDelay: SnackPrepTime,
	}
}

// Options carries the logging, metrics, tracing and time sources shared by
// the components of a run. Zero values are replaced with no-op or real ones.
type Options struct {
	Logger  zerolog.Logger
	Metrics *telemetry.Collector
	Tracer  trace.Tracer
	Clock   clock.Clock
}

func (o Options) withDefaults() Options {
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("brew")
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}
