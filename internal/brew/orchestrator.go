// Package brew makes a cup of tea: it boils water (remote kettle or local
// fallback timer) while snacks are prepared in the background, and serves the
// cup once both are done.
package brew

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/3cpo-dev/teatime/internal/kettle"
	"github.com/3cpo-dev/teatime/pkg/api"
)

// State is a step of the tea workflow.
type State string

const (
	StateStart     State = "START"
	StateTeaPlaced State = "TEA_PLACED"
	StateWaiting   State = "WAITING_ON_BOILER_AND_BACKGROUND"
	StatePoured    State = "POURED_WAITING_ON_BACKGROUND"
	StateServed    State = "SERVED"
	StateFailed    State = "FAILED"
)

// Boiler produces boiled water. Boil must always resolve.
type Boiler interface {
	Boil(ctx context.Context) Water
}

// Task is a unit of background work with no result.
type Task interface {
	Run(ctx context.Context) error
}

// Report describes one finished run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Path     Path
	States   []State
	Err      error
}

// Duration is the wall time of the run on the orchestrator's clock.
func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Final returns the last state reached.
func (r Report) Final() State {
	if len(r.States) == 0 {
		return StateStart
	}
	return r.States[len(r.States)-1]
}

// API converts the report to its public JSON form.
func (r Report) API() api.RunReport {
	out := api.RunReport{
		RunID:      r.RunID,
		Status:     api.RunSucceeded,
		BoilPath:   string(r.Path),
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
		DurationMS: r.Duration().Milliseconds(),
	}
	for _, s := range r.States {
		out.States = append(out.States, string(s))
	}
	if r.Err != nil {
		out.Status = api.RunFailed
		out.Error = r.Err.Error()
	}
	return out
}

// Orchestrator runs the tea workflow.
type Orchestrator struct {
	boiler     Boiler
	background Task
	steps      Steps
	opts       Options
}

// New wires the reference workflow: a WaterBoiler over probe and a
// BackgroundTask, each with its own clock timer.
func New(probe kettle.Prober, steps Steps, cfg Config, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	boiler := NewWaterBoiler(probe, NewTimer(opts.Clock), cfg.FallbackDelay, opts)
	background := NewBackgroundTask(cfg.BackgroundDelay, NewTimer(opts.Clock), opts)
	return NewOrchestrator(boiler, background, steps, opts)
}

// NewOrchestrator builds an orchestrator from its parts. A nil steps logs each step.
func NewOrchestrator(boiler Boiler, background Task, steps Steps, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	if steps == nil {
		steps = NewLoggingSteps(opts.Logger)
	}
	opts.Logger = opts.Logger.With().Str("component", "TeaMaker").Logger()
	return &Orchestrator{boiler: boiler, background: background, steps: steps, opts: opts}
}

// Run makes one cup of tea. Boiling and snack preparation start right away and
// run concurrently; the tea bag is placed while they run; water is poured as
// soon as it has boiled; the cup is served once both are done.
//
// If either task is interrupted the run still waits for both, skips the
// remaining steps and returns an error wrapping ErrInterrupted.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Started: o.opts.Clock.Now(), States: []State{StateStart}}
	logger := o.opts.Logger.With().Str("run_id", rep.RunID).Logger()

	ctx, span := o.opts.Tracer.Start(ctx, "brew.MakeTea", trace.WithAttributes(attribute.String("run.id", rep.RunID)))
	defer span.End()

	transition := func(s State) {
		logger.Debug().Str("from", string(rep.Final())).Str("to", string(s)).Msg("state transition")
		rep.States = append(rep.States, s)
	}

	logger.Info().Msg("MakeTea - START")

	boiling := Go(ctx, func(ctx context.Context) (Water, error) {
		return o.boiler.Boil(ctx), nil
	})
	snacks := Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.background.Run(ctx)
	})

	o.steps.PlaceTea()
	transition(StateTeaPlaced)

	transition(StateWaiting)
	logger.Info().Msg("MakeTea - waiting for boiling water")

	var errs []error
	water, err := boiling.Get()
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("boil water: %w", err))
	case !water.Boiled:
		errs = append(errs, fmt.Errorf("boil water: %w", ErrInterrupted))
	default:
		rep.Path = water.Path
		o.steps.Pour(water)
		if !snacks.Ready() {
			transition(StatePoured)
		}
	}

	if _, err := snacks.Get(); err != nil {
		errs = append(errs, fmt.Errorf("prepare snacks: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		rep.Err = err
		rep.Finished = o.opts.Clock.Now()
		transition(StateFailed)
		span.SetStatus(codes.Error, "run failed")
		span.RecordError(err)
		o.opts.Metrics.Counter("teatime_runs", 1, map[string]string{"status": string(api.RunFailed)})
		logger.Error().Err(err).Dur("elapsed", rep.Duration()).Msg("MakeTea - FAILED")
		return rep, err
	}

	o.steps.Serve()
	rep.Finished = o.opts.Clock.Now()
	transition(StateServed)

	span.SetAttributes(attribute.String("boil.path", string(rep.Path)))
	o.opts.Metrics.Counter("teatime_runs", 1, map[string]string{"status": string(api.RunSucceeded), "path": string(rep.Path)})
	o.opts.Metrics.Timer("teatime_run_duration", rep.Duration(), map[string]string{"path": string(rep.Path)})
	logger.Info().Str("path", string(rep.Path)).Dur("elapsed", rep.Duration()).Msg("MakeTea - END")
	return rep, nil
}
