package brew

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/3cpo-dev/teatime/internal/kettle"
)

// BoilingTime is how long the fallback timer waits when the kettle is offline.
const BoilingTime = 3000 * time.Millisecond

// Path records how the water was boiled.
type Path string

const (
	PathRemote   Path = "remote"
	PathFallback Path = "fallback"
)

// Water is the token handed from the boiler to the pour step.
type Water struct {
	Name   string
	Boiled bool
	Path   Path
}

func (w Water) String() string { return w.Name }

func boiledWater(p Path) Water {
	return Water{Name: "Boiled Water", Boiled: true, Path: p}
}

// WaterBoiler asks the kettle for its status and falls back to a local timer
// when the kettle cannot be reached.
type WaterBoiler struct {
	probe kettle.Prober
	timer Timer
	delay time.Duration
	opts  Options
}

func NewWaterBoiler(probe kettle.Prober, timer Timer, delay time.Duration, opts Options) *WaterBoiler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With().Str("component", "WaterBoiler").Logger()
	return &WaterBoiler{probe: probe, timer: timer, delay: delay, opts: opts}
}

// Boil always resolves. The probe absorbs network failures and the timer only
// fails when ctx is canceled, which yields Water{Boiled: false}.
func (b *WaterBoiler) Boil(ctx context.Context) Water {
	ctx, span := b.opts.Tracer.Start(ctx, "brew.BoilWater")
	defer span.End()

	b.opts.Logger.Info().Msg("BoilWater START - checking kettle status...")

	res := b.probe.CheckStatus(ctx)
	if res.Available() {
		b.opts.Logger.Info().Dur("latency", res.Latency).Msg("BoilWater - kettle responded")
		span.SetAttributes(attribute.String("boil.path", string(PathRemote)))
		b.opts.Logger.Info().Msg("BoilWater END")
		return boiledWater(PathRemote)
	}

	b.opts.Logger.Warn().Dur("delay", b.delay).Msg("BoilWater - kettle offline, using timer fallback")
	span.SetAttributes(attribute.String("boil.path", string(PathFallback)), attribute.Int64("boil.fallback_ms", b.delay.Milliseconds()))
	b.opts.Metrics.Counter("teatime_fallback_boils", 1, map[string]string{"cause": string(res.Cause)})

	if err := b.timer.Wait(ctx, b.delay); err != nil {
		span.SetStatus(codes.Error, "fallback interrupted")
		span.RecordError(err, trace.WithStackTrace(false))
		b.opts.Logger.Warn().Err(err).Msg("BoilWater - fallback timer interrupted, water not boiled")
		return Water{Path: PathFallback}
	}

	b.opts.Logger.Info().Msg("BoilWater END")
	return boiledWater(PathFallback)
}
