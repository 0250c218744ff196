/*
saga.go - Ordered undo stack replacing multi-statement transactions

PURPOSE:
  The store has no cross-row transactions. Each multi-step flow pushes an
  undo action after every irreversible step succeeds. When a later step
  fails, the stack unwinds in reverse order before the error is returned.

RULES:
  1. Exactly one attempt per undo step. A failing undo is logged and
     recorded, and the remaining undos still run.
  2. Undos run on a context detached from request cancellation: once a
     rollback starts it runs to completion.
  3. The caller sees the fully resolved outcome, including rollback.

EXAMPLE:
  var undo compensation
  slot, err := locks.Claim(ctx, slotID)          // irreversible
  undo.push("release slot", func(ctx context.Context) error { ... })
  res, err := store.InsertReservation(ctx, r)
  if err != nil {
      return undo.rollback(ctx, downstream("reservation insert failed", err))
  }
*/
package studio

import (
	"context"
	"log"
)

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

type compensation struct {
	steps []undoStep
}

func (c *compensation) push(name string, fn func(ctx context.Context) error) {
	c.steps = append(c.steps, undoStep{name: name, fn: fn})
}

// rollback undoes every pushed step in reverse and returns failure, or a
// *CompensationError wrapping failure if any undo failed.
func (c *compensation) rollback(ctx context.Context, failure error) error {
	ctx = context.WithoutCancel(ctx)

	var failed []StepError
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.fn(ctx); err != nil {
			log.Printf("[Lifecycle] compensation %q failed: %v (original failure: %v)", step.name, err, failure)
			failed = append(failed, StepError{Step: step.name, Err: err})
		}
	}
	c.steps = nil

	if len(failed) > 0 {
		return &CompensationError{Failure: failure, Failed: failed}
	}
	return failure
}
