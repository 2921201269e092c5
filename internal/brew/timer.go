package brew

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrInterrupted reports a wait that was cut short by context cancellation.
var ErrInterrupted = errors.New("interrupted")

// Timer waits for a fixed delay.
type Timer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// ClockTimer waits on a clock.Clock, so tests can drive it with clock.NewMock().
type ClockTimer struct {
	clock clock.Clock
}

var _ Timer = (*ClockTimer)(nil)

func NewTimer(clk clock.Clock) *ClockTimer {
	if clk == nil {
		clk = clock.New()
	}
	return &ClockTimer{clock: clk}
}

// Wait returns nil once d has elapsed, or an error wrapping ErrInterrupted if
// ctx is done first.
func (t *ClockTimer) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}
	if d <= 0 {
		return nil
	}

	tm := t.clock.Timer(d)
	defer tm.Stop()

	select {
	case <-tm.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}
}
