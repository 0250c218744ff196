/*
store.go - Persistence contract (the Ledger Store)

PURPOSE:
  Defines the interface between the engine and the row store. The store
  offers per-entity read, insert, delete and a single-row conditional
  update. There are NO cross-entity transactions: the engine compensates
  for their absence itself (see saga.go).

CONDITIONAL UPDATE:
  CompareAndSet* methods write only if the stored status still equals
  the expected value, as one atomic statement. They return ok=false (and
  no error) when zero rows matched; that is the only concurrency signal
  the engine relies on.

NOT FOUND:
  Get* methods return an error wrapping ErrNotFound for a missing row.
  ActiveMemberPlan returns (nil, nil) when the member has no plan.

IMPLEMENTATIONS:
  - studio/store/memory.go: In-memory for tests and development
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL

SEE ALSO:
  - slotlock.go, lifecycle.go, ticketledger.go: Callers
*/
package studio

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

type SlotFilter struct {
	From   *time.Time // StartAt >= From
	To     *time.Time // StartAt <= To
	Status SlotStatus // empty = any
}

type ReservationFilter struct {
	MemberID string
	SlotID   string
	Status   ReservationStatus
	Type     ReservationType
	From     *time.Time // slot StartAt >= From
	To       *time.Time // slot StartAt <= To
}

// ReservationPatch is applied by reservation status writes.
type ReservationPatch struct {
	Status      ReservationStatus
	CancelledAt *time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type SlotStore interface {
	GetSlot(ctx context.Context, id string) (Slot, error)
	// ListSlots orders by StartAt ascending.
	ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error)
	InsertSlot(ctx context.Context, s Slot) (Slot, error)

	// CompareAndSetSlotStatus moves the slot to next only if its stored
	// status equals expected.
	CompareAndSetSlotStatus(ctx context.Context, id string, expected, next SlotStatus, at time.Time) (Slot, bool, error)

	// SetSlotStatus writes status unconditionally. Missing rows are not an error.
	SetSlotStatus(ctx context.Context, id string, next SlotStatus, at time.Time) error

	// SetSlotExternalRef records the calendar reference. Missing rows are not an error.
	SetSlotExternalRef(ctx context.Context, id, ref string, at time.Time) error

	DeleteSlot(ctx context.Context, id string) error
}

type ReservationStore interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// ListReservations orders by CreatedAt descending.
	ListReservations(ctx context.Context, f ReservationFilter) ([]Reservation, error)
	InsertReservation(ctx context.Context, r Reservation) (Reservation, error)

	// CompareAndSetReservation applies patch only if the stored status
	// equals expected.
	CompareAndSetReservation(ctx context.Context, id string, expected ReservationStatus, patch ReservationPatch) (Reservation, bool, error)

	// SetReservation applies patch unconditionally (compensation only).
	// A nil CancelledAt clears the stored timestamp.
	SetReservation(ctx context.Context, id string, patch ReservationPatch) error

	// DeleteReservation physically removes a row (compensation only).
	DeleteReservation(ctx context.Context, id string) error

	// CountConfirmed counts confirmed reservations of a member whose slot
	// starts in [from, to).
	CountConfirmed(ctx context.Context, memberID string, from, to time.Time) (int, error)

	// CountBySlot counts reservations of any status referencing a slot.
	CountBySlot(ctx context.Context, slotID string) (int, error)
}

type TicketStore interface {
	AppendTicketLog(ctx context.Context, e TicketLogEntry) (TicketLogEntry, error)
	// ListTicketLogs orders by CreatedAt ascending.
	ListTicketLogs(ctx context.Context, memberID string) ([]TicketLogEntry, error)
	ListTicketLogsByReservation(ctx context.Context, reservationID string) ([]TicketLogEntry, error)
	DeleteTicketLog(ctx context.Context, id string) error
}

type PlanStore interface {
	GetPlan(ctx context.Context, id string) (Plan, error)
	ListPlans(ctx context.Context) ([]Plan, error)
	InsertPlan(ctx context.Context, p Plan) (Plan, error)
	UpdatePlan(ctx context.Context, p Plan) (Plan, error)

	ActiveMemberPlan(ctx context.Context, memberID string) (*MemberPlan, error)
	InsertMemberPlan(ctx context.Context, mp MemberPlan) (MemberPlan, error)

	// CancelActiveMemberPlans cancels every active plan of the member and
	// returns how many rows changed.
	CancelActiveMemberPlans(ctx context.Context, memberID string, at time.Time) (int, error)
	CancelMemberPlan(ctx context.Context, id string, at time.Time) error
}

type MemberStore interface {
	GetMember(ctx context.Context, id string) (Member, error)
	GetMemberByAuthUser(ctx context.Context, authUserID string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	InsertMember(ctx context.Context, m Member) (Member, error)
	// UpdateMember overwrites name, email, phone, status and note of the
	// member with m.ID. Missing rows return ErrNotFound.
	UpdateMember(ctx context.Context, m Member) (Member, error)
}

// Store is the full Ledger Store used by the engine.
type Store interface {
	SlotStore
	ReservationStore
	TicketStore
	PlanStore
	MemberStore
}
