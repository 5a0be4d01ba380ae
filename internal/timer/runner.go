package timer

import (
	"context"
	"time"
)

// Runner drives an engine from a ticker when no UI event loop does.
type Runner struct {
	engine   *Engine
	interval time.Duration

	// OnTick is called after every tick with the resulting state.
	OnTick func(State)
	// OnError receives storage errors from ticks; the countdown goes on.
	OnError func(error)
}

func NewRunner(e *Engine, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Runner{engine: e, interval: interval}
}

// Run ticks until ctx is done, then closes the engine.
func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.engine.Close()
		case <-t.C:
			if err := r.engine.Tick(r.engine.clock.Now()); err != nil && r.OnError != nil {
				r.OnError(err)
			}
			if r.OnTick != nil {
				r.OnTick(r.engine.State())
			}
		}
	}
}
