/*
slotlock.go - Slot Lock Manager

PURPOSE:
  Owns the available <-> booked transition of a slot. Claim is the only
  way a slot becomes booked during a reservation, and it goes through a
  single compare-and-swap on the status column:

    UPDATE slots SET status='booked' WHERE id=? AND status='available'

  Zero affected rows means another request claimed the slot first. There
  is no retry: the loser gets ErrConflict and the user retries.

  Release and Revert are unconditional writes. They are used by the
  cancel flow and by compensation, where the caller already knows the
  reservation that owned the slot.

ADMIN OPERATIONS:
  CreateSlot / DeleteSlot manage the slot inventory and mirror it to the
  external calendar on a best-effort basis.

  ResyncCalendar retries the registration of upcoming slots that have no
  external reference because the notifier failed when they were created.

SEE ALSO:
  - lifecycle.go: Claim on create, Release on cancel
  - notifier.go: Calendar mirroring
*/
package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

type SlotLockManager struct {
	Store    Store
	Clock    Clock
	Notifier CalendarNotifier
}

func NewSlotLockManager(store Store, clock Clock, notifier CalendarNotifier) *SlotLockManager {
	if clock == nil {
		clock = SystemClock()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SlotLockManager{Store: store, Clock: clock, Notifier: notifier}
}

// =============================================================================
// CLAIM / RELEASE
// =============================================================================

// Claim atomically moves the slot from available to booked.
func (m *SlotLockManager) Claim(ctx context.Context, slotID string) (Slot, error) {
	if slotID == "" {
		return Slot{}, newError(ErrValidation, "slotId is required")
	}
	slot, err := m.Store.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Slot{}, newError(ErrNotFound, "slot not found")
		}
		return Slot{}, err
	}

	now := m.Clock.Now()
	if slot.IsPast(now) {
		return Slot{}, newError(ErrDenied, "cannot reserve a past slot")
	}
	if slot.Status != SlotAvailable {
		return Slot{}, newError(ErrConflict, "slot is not available")
	}

	claimed, ok, err := m.Store.CompareAndSetSlotStatus(ctx, slotID, SlotAvailable, SlotBooked, now)
	if err != nil {
		return Slot{}, downstream("slot claim failed", err)
	}
	if !ok {
		return Slot{}, newError(ErrConflict, "slot already booked")
	}
	return claimed, nil
}

// Release makes the slot available again. Idempotent.
func (m *SlotLockManager) Release(ctx context.Context, slotID string) error {
	return m.Store.SetSlotStatus(ctx, slotID, SlotAvailable, m.Clock.Now())
}

// Revert marks the slot booked again. Cancel compensation only.
func (m *SlotLockManager) Revert(ctx context.Context, slotID string) error {
	return m.Store.SetSlotStatus(ctx, slotID, SlotBooked, m.Clock.Now())
}

// =============================================================================
// SLOT INVENTORY
// =============================================================================

// CreateSlot adds an available slot and registers it with the calendar.
func (m *SlotLockManager) CreateSlot(ctx context.Context, start, end time.Time) (Slot, error) {
	if start.IsZero() || end.IsZero() {
		return Slot{}, newError(ErrValidation, "start_at and end_at are required")
	}
	if !start.Before(end) {
		return Slot{}, newError(ErrValidation, "start_at must be before end_at")
	}

	now := m.Clock.Now()
	slot := Slot{
		ID:        NewID(),
		StartAt:   start.UTC(),
		EndAt:     end.UTC(),
		Status:    SlotAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := m.Store.InsertSlot(ctx, slot)
	if err != nil {
		return Slot{}, downstream("slot insert failed", err)
	}

	// The calendar only hears about slots that exist. A missing reference
	// is picked up by ResyncCalendar.
	bestEffort(ctx, "create event", func(ctx context.Context) error {
		ref, err := m.Notifier.SlotCreated(ctx, created)
		if err != nil || ref == "" {
			return err
		}
		if err := m.Store.SetSlotExternalRef(ctx, created.ID, ref, m.Clock.Now()); err != nil {
			return fmt.Errorf("store reference %s: %w", ref, err)
		}
		created.ExternalRef = ref
		return nil
	})
	return created, nil
}

// DeleteSlot removes a slot that no reservation has ever referenced.
func (m *SlotLockManager) DeleteSlot(ctx context.Context, slotID string) error {
	slot, err := m.Store.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrNotFound, "slot not found")
		}
		return err
	}

	n, err := m.Store.CountBySlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("count reservations: %w", err)
	}
	if n > 0 {
		return newError(ErrInvalidState, "cannot delete a slot that has reservations")
	}

	if slot.ExternalRef != "" {
		bestEffort(ctx, "delete event", func(ctx context.Context) error {
			return m.Notifier.SlotDeleted(ctx, slot.ExternalRef)
		})
	}

	if err := m.Store.DeleteSlot(ctx, slotID); err != nil {
		return downstream("slot delete failed", err)
	}
	return nil
}

// ListSlots returns slots matching the filter ordered by start time.
func (m *SlotLockManager) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	return m.Store.ListSlots(ctx, f)
}

// =============================================================================
// CALENDAR RESYNC
// =============================================================================

// ResyncCalendar registers upcoming slots that lack an external reference
// and returns how many were registered. Booked slots are also marked
// occupied. A notifier error for one slot does not stop the others.
func (m *SlotLockManager) ResyncCalendar(ctx context.Context) (int, error) {
	now := m.Clock.Now()
	slots, err := m.Store.ListSlots(ctx, SlotFilter{From: &now})
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}

	synced := 0
	for _, slot := range slots {
		if slot.ExternalRef != "" {
			continue
		}
		ref, err := m.Notifier.SlotCreated(ctx, slot)
		if err != nil {
			log.Printf("[Calendar] resync of slot %s failed: %v", slot.ID, err)
			continue
		}
		if ref == "" {
			continue
		}
		if err := m.Store.SetSlotExternalRef(ctx, slot.ID, ref, m.Clock.Now()); err != nil {
			return synced, downstream("slot external ref update failed", err)
		}
		if slot.Status == SlotBooked {
			bestEffort(ctx, "mark occupied", func(ctx context.Context) error {
				return m.Notifier.SlotOccupied(ctx, ref, "Booked")
			})
		}
		synced++
	}
	return synced, nil
}
