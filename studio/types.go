/*
Package studio provides the reservation ledger engine for a booking studio.

PURPOSE:
  This package owns the consistency core of the studio: slot availability,
  member entitlement (monthly plan counts or ticket balance) and the
  create/cancel flows that keep slots, reservations and the ticket ledger
  in agreement without multi-statement database transactions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Slot: A bookable lesson window (available or booked)
  - Reservation: A member or trial booking of a slot
  - TicketLogEntry: An append-only ledger line (grant, consume, refund)
  - Plan / MemberPlan: Monthly subscriptions driving plan-count entitlement
  - EntitlementMode: Closed enum deciding how a booking is accounted

DESIGN PRINCIPLES:
  1. Single-row CAS: Slot and Reservation status change only through
     compare-and-swap writes on the status field
  2. Append-only ledger: Ticket entries are never edited, only removed as
     a compensating action of a failed multi-step flow
  3. Explicit compensation: Every irreversible step registers its undo

SEE ALSO:
  - store.go: Persistence contract (Ledger Store)
  - lifecycle.go: Create/cancel orchestration
  - entitlement.go: Monthly vs ticket accounting decision
*/
package studio

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SLOT
// =============================================================================

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// Slot is a bookable window created by an administrator.
// At most one confirmed reservation references a slot at any time.
type Slot struct {
	ID          string
	StartAt     time.Time
	EndAt       time.Time
	Status      SlotStatus
	ExternalRef string // calendar event reference, empty when sync failed or is disabled
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsPast reports whether the slot has already started at now.
func (s Slot) IsPast(now time.Time) bool { return s.StartAt.Before(now) }

// =============================================================================
// RESERVATION
// =============================================================================

type ReservationType string

const (
	ReservationMember ReservationType = "member"
	ReservationTrial  ReservationType = "trial"
)

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is a booking of a slot. Status moves confirmed -> cancelled
// only; a cancelled reservation is never resurrected.
type Reservation struct {
	ID       string
	SlotID   string
	MemberID string // empty for trial bookings
	Type     ReservationType
	Status   ReservationStatus

	// ChargeMode records how the booking was accounted so cancellation can
	// reverse exactly what was charged. Empty for rows written before the
	// mode was recorded.
	ChargeMode EntitlementMode

	Guest      *Guest
	MemberNote string

	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Guest carries the contact details of a non-member trial booking.
type Guest struct {
	Name  string
	Email string
	Phone string
	Note  string
}

// =============================================================================
// TICKET LEDGER ENTRY
// =============================================================================

type TicketType string

const (
	TicketGrant   TicketType = "grant"
	TicketConsume TicketType = "consume"
	TicketRefund  TicketType = "refund"
)

// Valid reports whether t is one of the ledger entry types.
func (t TicketType) Valid() bool {
	switch t {
	case TicketGrant, TicketConsume, TicketRefund:
		return true
	}
	return false
}

// TicketLogEntry is one line of a member's ticket ledger.
// Amount is signed: consume entries are negative, grant and refund positive.
type TicketLogEntry struct {
	ID            string
	MemberID      string
	Type          TicketType
	Amount        int
	Reason        string
	ReservationID string // empty when not tied to a booking
	ExpiresAt     *time.Time
	CreatedAt     time.Time
}

// ActiveAt reports whether the entry still counts toward the balance at t.
func (e TicketLogEntry) ActiveAt(t time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(t)
}

// =============================================================================
// MEMBERS AND PLANS
// =============================================================================

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

// Member is a studio customer. Inactive members cannot book.
type Member struct {
	ID         string
	AuthUserID string
	Name       string
	Email      string
	Phone      string
	Status     MemberStatus
	Note       string
	CreatedAt  time.Time
}

// Plan is a monthly subscription product.
type Plan struct {
	ID              string
	Name            string
	TicketsPerMonth int
	Price           *decimal.Decimal
	IsActive        bool
	CreatedAt       time.Time
}

type MemberPlanStatus string

const (
	MemberPlanActive    MemberPlanStatus = "active"
	MemberPlanCancelled MemberPlanStatus = "cancelled"
)

// MemberPlan binds a member to a plan. At most one is active per member.
type MemberPlan struct {
	ID          string
	MemberID    string
	PlanID      string
	Status      MemberPlanStatus
	StartedAt   time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
}

// =============================================================================
// ENTITLEMENT MODE
// =============================================================================

// EntitlementMode is derived at booking time, never stored on the member.
type EntitlementMode string

const (
	ModeNone    EntitlementMode = "none"
	ModeMonthly EntitlementMode = "monthly"
	ModeTicket  EntitlementMode = "ticket"
)

// =============================================================================
// ACTOR
// =============================================================================

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Actor is the caller resolved by the auth collaborator.
// A zero Actor means the request is unauthenticated.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) Authenticated() bool { return a.UserID != "" }
func (a Actor) IsAdmin() bool       { return a.Role == RoleAdmin }
