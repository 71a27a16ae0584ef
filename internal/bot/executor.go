// Package bot implements the single-session Bot core (spec §4.5): a
// priority-ordered, cancellable subroutine pipeline driven by one tick
// per Worker event-loop pass, plus the player, permit/group resolution,
// and rate-limited message sender it depends on. Grounded on
// original_source/lamb/core/executor.py (Signal/executor ordering) and
// bot/routines/subroutines/*.py (the five top-level subroutines).
package bot

import (
	"context"
	"fmt"
)

// Signal is a subroutine's cooperative control return, mirroring
// lamb.core.executor.Signal.
type Signal int

const (
	// SignalNone lets the remaining subroutines in this tick run.
	SignalNone Signal = iota
	// SignalSkip cancels the rest of this tick's subroutines; the Bot
	// keeps running.
	SignalSkip
	// SignalTerminate cancels this tick and every future one; the Bot
	// stops (used by the `leave` command).
	SignalTerminate
)

// Subroutine is one named step of the per-tick pipeline. Subroutines run
// in source-declared order (spec §4.5 "Executor ordering guarantee").
type Subroutine struct {
	Name string
	Run  func(ctx context.Context) (Signal, error)
}

// Executor runs an ordered list of Subroutines once per tick, honoring
// SKIP/TERMINATE exactly as spec §4.5 describes. A TERMINATE latches:
// once issued, every subsequent Tick is a no-op.
type Executor struct {
	subroutines []Subroutine
	terminated  bool
}

// NewExecutor builds an Executor over subroutines in priority order.
func NewExecutor(subroutines []Subroutine) *Executor {
	return &Executor{subroutines: subroutines}
}

// Running reports whether the executor has not yet been terminated.
func (e *Executor) Running() bool { return !e.terminated }

// Tick runs every subroutine once, in order, stopping early on SKIP or
// TERMINATE. It returns the first subroutine error encountered, which the
// caller must treat as fatal to the Bot (spec §7 "on the Bot event-loop
// thread it terminates the Bot"). Panics are not recovered here.
func (e *Executor) Tick(ctx context.Context) error {
	if e.terminated {
		return nil
	}
	for _, sub := range e.subroutines {
		signal, err := sub.Run(ctx)
		if err != nil {
			return fmt.Errorf("subroutine %s failed: %w", sub.Name, err)
		}
		switch signal {
		case SignalTerminate:
			e.terminated = true
			return nil
		case SignalSkip:
			return nil
		}
	}
	return nil
}
