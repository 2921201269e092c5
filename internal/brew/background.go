package brew

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SnackPrepTime is how long the background preparation takes.
const SnackPrepTime = 20000 * time.Millisecond

// BackgroundTask is unrelated preparation work that runs alongside boiling.
// Its duration is spent on an injected Timer.
type BackgroundTask struct {
	duration time.Duration
	timer    Timer
	opts     Options
}

func NewBackgroundTask(duration time.Duration, timer Timer, opts Options) *BackgroundTask {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With().Str("component", "SnackPreparation").Logger()
	return &BackgroundTask{duration: duration, timer: timer, opts: opts}
}

// Run returns an error wrapping ErrInterrupted if ctx is canceled before the
// work is done.
func (t *BackgroundTask) Run(ctx context.Context) error {
	ctx, span := t.opts.Tracer.Start(ctx, "brew.PrepareSnacks")
	defer span.End()
	span.SetAttributes(attribute.Int64("snacks.duration_ms", t.duration.Milliseconds()))

	start := t.opts.Clock.Now()
	t.opts.Logger.Info().Dur("duration", t.duration).Msg("Preparing snacks (CPU-bound work)...")

	if err := t.timer.Wait(ctx, t.duration); err != nil {
		span.SetStatus(codes.Error, "interrupted")
		t.opts.Logger.Warn().Err(err).Msg("Snack preparation interrupted")
		return err
	}

	t.opts.Metrics.Timer("teatime_snack_duration", t.opts.Clock.Since(start), nil)
	t.opts.Logger.Info().Msg("Snacks ready!")
	return nil
}
