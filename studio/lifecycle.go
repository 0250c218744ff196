/*
lifecycle.go - Reservation Lifecycle Controller

PURPOSE:
  Orchestrates the create and cancel flows across the Entitlement
  Resolver, the Slot Lock Manager and the Ticket Ledger. The store has no
  multi-row transactions, so every irreversible step pushes its undo onto
  a compensation stack (saga.go) and a later failure unwinds it before
  the error is returned.

CREATE FLOW:
  1. Resolve member, check the caller owns it and the
     member is active                                 (no mutation)
  2. Fetch slot: missing / not available / past       (no mutation)
  3. Entitlement check                                (no mutation)
  4. Claim slot (CAS available->booked)               undo: release slot
  5. Insert reservation (confirmed)                   undo: delete reservation
  6. Ticket mode only: consume -1                     (last write)
  7. Calendar "occupied", best-effort

  The claim is the first irreversible action because it is the only step
  with conflict detection.

CANCEL FLOW:
  1. Fetch reservation
  2. Member path: ownership + deadline (slot start - CancelDeadline)
  3. Reject already cancelled
  4. CAS confirmed->cancelled                         undo: revert to confirmed
  5. Release slot                                     undo: mark booked again
  6. Refund +1 when a ticket was charged              (last write)
  7. Calendar "freed", best-effort

STATE MACHINE:
  none -> confirmed -> cancelled (terminal)

SEE ALSO:
  - saga.go: Undo stack
  - entitlement.go: Charge mode decision
  - slotlock.go: Claim / release
*/
package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"
	"unicode/utf8"
)

// DefaultCancelDeadline is how long before a slot starts a member can
// still cancel it themselves.
const DefaultCancelDeadline = 2 * time.Hour

type Controller struct {
	Store          Store
	Resolver       *EntitlementResolver
	Locks          *SlotLockManager
	Ledger         *TicketLedger
	Notifier       CalendarNotifier
	Clock          Clock
	CancelDeadline time.Duration
}

// =============================================================================
// CREATE
// =============================================================================

// Create books slotID for memberID on behalf of actor.
func (c *Controller) Create(ctx context.Context, actor Actor, memberID, slotID string) (Reservation, error) {
	if !actor.Authenticated() {
		return Reservation{}, newError(ErrUnauthenticated, "authentication required")
	}
	if memberID == "" || slotID == "" {
		return Reservation{}, newError(ErrValidation, "slotId and memberId are required")
	}

	// 1. Member and ownership
	member, err := c.Store.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Reservation{}, newError(ErrNotFound, "member not found")
		}
		return Reservation{}, err
	}
	if !actor.IsAdmin() && member.AuthUserID != actor.UserID {
		return Reservation{}, newError(ErrForbidden, "not allowed to book for this member")
	}
	if member.Status == MemberInactive {
		return Reservation{}, newError(ErrDenied, "member is inactive")
	}

	// 2. Slot
	slot, err := c.Store.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Reservation{}, newError(ErrNotFound, "slot not found")
		}
		return Reservation{}, err
	}
	if slot.Status != SlotAvailable {
		return Reservation{}, newError(ErrConflict, "slot is not available")
	}
	if slot.IsPast(c.Clock.Now()) {
		return Reservation{}, newError(ErrDenied, "cannot reserve a past slot")
	}

	// 3. Entitlement
	ent, err := c.Resolver.Resolve(ctx, member.ID, slot.StartAt)
	if err != nil {
		return Reservation{}, err
	}
	if err := ent.Err(member.ID); err != nil {
		return Reservation{}, err
	}

	var undo compensation

	// 4. Claim
	slot, err = c.Locks.Claim(ctx, slotID)
	if err != nil {
		return Reservation{}, err
	}
	undo.push("release slot", func(ctx context.Context) error {
		return c.Locks.Release(ctx, slotID)
	})

	// 5. Reservation row
	now := c.Clock.Now()
	res, err := c.Store.InsertReservation(ctx, Reservation{
		ID:         NewID(),
		SlotID:     slotID,
		MemberID:   member.ID,
		Type:       ReservationMember,
		Status:     ReservationConfirmed,
		ChargeMode: ent.Mode,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Reservation{}, undo.rollback(ctx, downstream("reservation insert failed", err))
	}
	undo.push("delete reservation", func(ctx context.Context) error {
		return c.Store.DeleteReservation(ctx, res.ID)
	})

	// 6. Charge
	switch ent.Mode {
	case ModeTicket:
		_, err := c.Ledger.Append(ctx, TicketLogEntry{
			MemberID:      member.ID,
			Type:          TicketConsume,
			Amount:        -1,
			Reason:        "reservation",
			ReservationID: res.ID,
		})
		if err != nil {
			return Reservation{}, undo.rollback(ctx, downstream("ticket consume failed", err))
		}
	case ModeMonthly:
		// counted from reservation rows
	default:
		return Reservation{}, undo.rollback(ctx, newError(ErrDenied, reasonInsufficient))
	}

	// 7. Calendar
	if slot.ExternalRef != "" {
		bestEffort(ctx, "mark occupied", func(ctx context.Context) error {
			return c.Notifier.SlotOccupied(ctx, slot.ExternalRef, "Booked: "+member.Name)
		})
	}

	log.Printf("[Lifecycle] reservation %s created (slot %s, member %s, mode %s)", res.ID, slotID, member.ID, ent.Mode)
	return res, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel cancels a confirmed reservation. Admins skip the ownership and
// deadline checks.
func (c *Controller) Cancel(ctx context.Context, actor Actor, reservationID string) (Reservation, error) {
	if !actor.Authenticated() {
		return Reservation{}, newError(ErrUnauthenticated, "authentication required")
	}
	if reservationID == "" {
		return Reservation{}, newError(ErrValidation, "reservation id is required")
	}

	var member Member
	if !actor.IsAdmin() {
		m, err := c.Store.GetMemberByAuthUser(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Reservation{}, newError(ErrNotFound, "member not found")
			}
			return Reservation{}, err
		}
		member = m
	}

	// 1. Reservation
	res, err := c.Store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Reservation{}, newError(ErrNotFound, "reservation not found")
		}
		return Reservation{}, err
	}
	slot, err := c.Store.GetSlot(ctx, res.SlotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Reservation{}, newError(ErrNotFound, "slot not found")
		}
		return Reservation{}, err
	}

	// 2. Member path checks
	if !actor.IsAdmin() {
		if res.MemberID != member.ID {
			return Reservation{}, newError(ErrForbidden, "not allowed to cancel this reservation")
		}
		if !c.Clock.Now().Before(slot.StartAt.Add(-c.CancelDeadline)) {
			return Reservation{}, newError(ErrDenied, fmt.Sprintf("cancellation deadline passed (%s)", formatDeadline(c.CancelDeadline)))
		}
	}

	// 3. State
	if res.Status == ReservationCancelled {
		return Reservation{}, newError(ErrInvalidState, "reservation is already cancelled")
	}

	refund, err := c.chargedTicket(ctx, res)
	if err != nil {
		return Reservation{}, err
	}

	var undo compensation

	// 4. CAS confirmed -> cancelled
	now := c.Clock.Now()
	cancelled, ok, err := c.Store.CompareAndSetReservation(ctx, res.ID, ReservationConfirmed, ReservationPatch{
		Status:      ReservationCancelled,
		CancelledAt: &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Reservation{}, downstream("reservation update failed", err)
	}
	if !ok {
		return Reservation{}, newError(ErrConflict, "reservation already cancelled")
	}
	undo.push("restore reservation", func(ctx context.Context) error {
		return c.Store.SetReservation(ctx, res.ID, ReservationPatch{
			Status:    ReservationConfirmed,
			UpdatedAt: c.Clock.Now(),
		})
	})

	// 5. Release
	if err := c.Locks.Release(ctx, res.SlotID); err != nil {
		return Reservation{}, undo.rollback(ctx, downstream("slot release failed", err))
	}
	undo.push("rebook slot", func(ctx context.Context) error {
		return c.Locks.Revert(ctx, res.SlotID)
	})

	// 6. Refund
	if refund {
		_, err := c.Ledger.Append(ctx, TicketLogEntry{
			MemberID:      res.MemberID,
			Type:          TicketRefund,
			Amount:        1,
			Reason:        "cancellation",
			ReservationID: res.ID,
		})
		if err != nil {
			return Reservation{}, undo.rollback(ctx, downstream("ticket refund failed", err))
		}
	}

	// 7. Calendar
	if slot.ExternalRef != "" {
		bestEffort(ctx, "mark freed", func(ctx context.Context) error {
			return c.Notifier.SlotFreed(ctx, slot.ExternalRef)
		})
	}

	log.Printf("[Lifecycle] reservation %s cancelled (refund=%t)", res.ID, refund)
	return cancelled, nil
}

// chargedTicket reports whether cancelling res must refund a ticket.
// Rows without a recorded charge mode fall back to the ledger.
func (c *Controller) chargedTicket(ctx context.Context, res Reservation) (bool, error) {
	if res.Type != ReservationMember || res.MemberID == "" {
		return false, nil
	}
	switch res.ChargeMode {
	case ModeTicket:
		return true, nil
	case ModeMonthly, ModeNone:
		return false, nil
	}
	return c.Ledger.HasConsumption(ctx, res.ID)
}

func formatDeadline(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

// =============================================================================
// TRIAL BOOKINGS
// =============================================================================

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9-]{10,14}$`)
)

const (
	maxGuestName = 50
	maxGuestNote = 500
)

// ValidateGuest checks a trial booking form.
func ValidateGuest(g Guest) error {
	switch {
	case g.Name == "":
		return newError(ErrValidation, "name is required")
	case utf8.RuneCountInString(g.Name) > maxGuestName:
		return newError(ErrValidation, fmt.Sprintf("name must be at most %d characters", maxGuestName))
	case !emailPattern.MatchString(g.Email):
		return newError(ErrValidation, "invalid email address")
	case !phonePattern.MatchString(g.Phone):
		return newError(ErrValidation, "invalid phone number")
	case utf8.RuneCountInString(g.Note) > maxGuestNote:
		return newError(ErrValidation, fmt.Sprintf("message must be at most %d characters", maxGuestNote))
	}
	return nil
}

// BookTrial books a slot for a non-member. No entitlement applies and the
// ledger is not touched.
func (c *Controller) BookTrial(ctx context.Context, slotID string, guest Guest) (Reservation, error) {
	if slotID == "" {
		return Reservation{}, newError(ErrValidation, "slotId is required")
	}
	if err := ValidateGuest(guest); err != nil {
		return Reservation{}, err
	}

	var undo compensation

	slot, err := c.Locks.Claim(ctx, slotID)
	if err != nil {
		return Reservation{}, err
	}
	undo.push("release slot", func(ctx context.Context) error {
		return c.Locks.Release(ctx, slotID)
	})

	now := c.Clock.Now()
	g := guest
	res, err := c.Store.InsertReservation(ctx, Reservation{
		ID:         NewID(),
		SlotID:     slotID,
		Type:       ReservationTrial,
		Status:     ReservationConfirmed,
		ChargeMode: ModeNone,
		Guest:      &g,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Reservation{}, undo.rollback(ctx, downstream("reservation insert failed", err))
	}

	if slot.ExternalRef != "" {
		bestEffort(ctx, "mark occupied", func(ctx context.Context) error {
			return c.Notifier.SlotOccupied(ctx, slot.ExternalRef, "Trial: "+guest.Name)
		})
	}
	return res, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// ListForMember lists the reservations of the actor's own member record.
func (c *Controller) ListForMember(ctx context.Context, actor Actor, status ReservationStatus) ([]Reservation, error) {
	if !actor.Authenticated() {
		return nil, newError(ErrUnauthenticated, "authentication required")
	}
	member, err := c.Store.GetMemberByAuthUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrNotFound, "member not found")
		}
		return nil, err
	}
	return c.Store.ListReservations(ctx, ReservationFilter{MemberID: member.ID, Status: status})
}

// ListAll lists reservations for administrators.
func (c *Controller) ListAll(ctx context.Context, f ReservationFilter) ([]Reservation, error) {
	return c.Store.ListReservations(ctx, f)
}
