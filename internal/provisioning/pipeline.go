package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunPhases executes phases in order and stops at the first failure. Step
// errors are returned as they are. When the run was interrupted, the
// remaining phases are skipped and no error is returned.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()

	for i, phase := range phases {
		if ctx.Err() != nil {
			ctx.Observer.Event(Event{Type: EventPhaseInterrupted, Phase: phase.Name(), Message: "skipped"})
			return nil
		}

		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))
		LogPhaseStart(ctx.Observer, name)

		if err := phase.Provision(ctx); err != nil {
			if interrupted(ctx, err) {
				ctx.Observer.Event(Event{Type: EventPhaseInterrupted, Phase: name, Message: "interrupted"})
				return nil
			}
			LogPhaseFailed(ctx.Observer, name, err)
			return err
		}

		LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
	}

	ctx.Observer.Printf("Finished %d phases in %v", len(phases), time.Since(start).Round(time.Millisecond))
	return nil
}

func interrupted(ctx *Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// PhaseFunc adapts a function to the Phase interface.
type PhaseFunc struct {
	PhaseName string
	Fn        func(ctx *Context) error
}

// Name implements Phase.
func (p PhaseFunc) Name() string { return p.PhaseName }

// Provision implements Phase.
func (p PhaseFunc) Provision(ctx *Context) error { return p.Fn(ctx) }
