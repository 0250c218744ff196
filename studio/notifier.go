package studio

import (
	"context"
	"log"
	"time"
)

// =============================================================================
// CALENDAR SYNC NOTIFIER - Best-effort, fire-and-forget
// =============================================================================

// CalendarNotifier is informed of slot state changes so an external
// calendar can mirror them. Implementations may fail; the engine logs and
// discards every error and never compensates because of one.
type CalendarNotifier interface {
	// SlotCreated registers a new slot and returns its external reference.
	SlotCreated(ctx context.Context, slot Slot) (string, error)
	SlotOccupied(ctx context.Context, externalRef, label string) error
	SlotFreed(ctx context.Context, externalRef string) error
	SlotDeleted(ctx context.Context, externalRef string) error
}

// NopNotifier ignores every notification.
type NopNotifier struct{}

func (NopNotifier) SlotCreated(context.Context, Slot) (string, error)   { return "", nil }
func (NopNotifier) SlotOccupied(context.Context, string, string) error { return nil }
func (NopNotifier) SlotFreed(context.Context, string) error            { return nil }
func (NopNotifier) SlotDeleted(context.Context, string) error          { return nil }

// notifyTimeout bounds a single notification attempt.
const notifyTimeout = 5 * time.Second

// bestEffort runs fn detached from the request's cancellation and swallows
// its error.
func bestEffort(ctx context.Context, what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("[Calendar] %s failed: %v", what, err)
	}
}
