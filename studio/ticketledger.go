/*
ticketledger.go - Append-only ticket ledger

PURPOSE:
  The ledger is the source of truth for ticket balances. Every grant,
  consumption and refund is a row; the balance is always recomputed by
  summing rows, there is no stored balance that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never edited
  2. BALANCE = sum of amounts of entries not expired at the query time
  3. The ledger does not enforce non-negative balances. Callers that
     consume check first; grants and refunds used as compensation are
     therefore never blocked.

SIGN CONVENTION:
  consume < 0, grant > 0, refund > 0. Append rejects entries whose sign
  contradicts their type; it does not flip signs for the caller.

REMOVAL:
  Remove exists only for compensating a failed multi-step flow (the
  consume written by a booking that then rolled back).

SEE ALSO:
  - tickets.go: Admin ticket operation (balance check, sign normalization)
  - lifecycle.go: Consume on create, refund on cancel
*/
package studio

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// TICKET LEDGER
// =============================================================================

type TicketLedger struct {
	Store TicketStore
	Clock Clock
}

func NewTicketLedger(store TicketStore, clock Clock) *TicketLedger {
	if clock == nil {
		clock = SystemClock()
	}
	return &TicketLedger{Store: store, Clock: clock}
}

// Append writes a new ledger entry and returns it as stored.
func (l *TicketLedger) Append(ctx context.Context, e TicketLogEntry) (TicketLogEntry, error) {
	if e.MemberID == "" {
		return TicketLogEntry{}, newError(ErrValidation, "member_id is required")
	}
	if !e.Type.Valid() {
		return TicketLogEntry{}, newError(ErrValidation, fmt.Sprintf("unknown ticket type %q", e.Type))
	}
	switch {
	case e.Type == TicketConsume && e.Amount >= 0:
		return TicketLogEntry{}, newError(ErrValidation, "consume amount must be negative")
	case e.Type != TicketConsume && e.Amount <= 0:
		return TicketLogEntry{}, newError(ErrValidation, fmt.Sprintf("%s amount must be positive", e.Type))
	}

	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.Clock.Now()
	}
	return l.Store.AppendTicketLog(ctx, e)
}

// CurrentBalance sums the member's entries that have not expired now.
func (l *TicketLedger) CurrentBalance(ctx context.Context, memberID string) (int, error) {
	entries, err := l.Store.ListTicketLogs(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return Balance(entries, l.Clock.Now()), nil
}

// History returns every entry of the member, newest first.
func (l *TicketLedger) History(ctx context.Context, memberID string) ([]TicketLogEntry, error) {
	entries, err := l.Store.ListTicketLogs(ctx, memberID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// HasConsumption reports whether a consume entry references the reservation.
func (l *TicketLedger) HasConsumption(ctx context.Context, reservationID string) (bool, error) {
	entries, err := l.Store.ListTicketLogsByReservation(ctx, reservationID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Type == TicketConsume {
			return true, nil
		}
	}
	return false, nil
}

// Remove deletes an entry. Compensation only.
func (l *TicketLedger) Remove(ctx context.Context, entryID string) error {
	return l.Store.DeleteTicketLog(ctx, entryID)
}

// Balance is the pure balance computation: the sum of entries active at t.
func Balance(entries []TicketLogEntry, t time.Time) int {
	total := 0
	for _, e := range entries {
		if e.ActiveAt(t) {
			total += e.Amount
		}
	}
	return total
}
