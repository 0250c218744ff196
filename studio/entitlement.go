/*
entitlement.go - Decides whether a member may book, and how it is charged

PURPOSE:
  Exactly one accounting mode applies to a member at call time:

    active MemberPlan  -> ModeMonthly  (count confirmed reservations in
                                        the billing period vs allotment)
    ticket balance > 0 -> ModeTicket   (one ticket consumed per booking)
    otherwise          -> ModeNone     (denied)

  The modes are mutually exclusive: a member with an active plan is judged
  by the plan alone, even when they also hold tickets.

SIDE EFFECTS:
  None. Resolve only reads.

SEE ALSO:
  - period.go: Billing period boundaries
  - lifecycle.go: Acts on the resolved mode
*/
package studio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entitlement is the outcome of a resolution.
type Entitlement struct {
	Mode    EntitlementMode
	Allowed bool
	Reason  string

	// Monthly mode details
	Plan      *Plan
	Period    Period
	Used      int
	Allotment int

	// Ticket balance at resolution time (always computed)
	Balance int
}

// Err converts a denial into an *EntitlementError; nil when allowed.
func (e Entitlement) Err(memberID string) error {
	if e.Allowed {
		return nil
	}
	return &EntitlementError{MemberID: memberID, Mode: e.Mode, Reason: e.Reason}
}

const reasonInsufficient = "insufficient entitlement"

// =============================================================================
// RESOLVER
// =============================================================================

type EntitlementResolver struct {
	Store      Store
	Ledger     *TicketLedger
	PeriodType PeriodType
}

func NewEntitlementResolver(store Store, ledger *TicketLedger, pt PeriodType) *EntitlementResolver {
	if pt == "" {
		pt = PeriodAnniversary
	}
	return &EntitlementResolver{Store: store, Ledger: ledger, PeriodType: pt}
}

// Resolve determines the member's mode for a booking of a slot starting
// at slotStart. A member without any plan or ledger rows resolves to
// ModeNone.
func (r *EntitlementResolver) Resolve(ctx context.Context, memberID string, slotStart time.Time) (Entitlement, error) {
	balance, err := r.Ledger.CurrentBalance(ctx, memberID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("ticket balance: %w", err)
	}

	mp, err := r.Store.ActiveMemberPlan(ctx, memberID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("active plan: %w", err)
	}
	if mp != nil {
		return r.resolveMonthly(ctx, *mp, slotStart, balance)
	}

	if balance > 0 {
		return Entitlement{Mode: ModeTicket, Allowed: true, Reason: "OK", Balance: balance}, nil
	}
	return Entitlement{Mode: ModeNone, Allowed: false, Reason: reasonInsufficient, Balance: balance}, nil
}

func (r *EntitlementResolver) resolveMonthly(ctx context.Context, mp MemberPlan, slotStart time.Time, balance int) (Entitlement, error) {
	plan, err := r.Store.GetPlan(ctx, mp.PlanID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("plan %s: %w", mp.PlanID, err)
	}

	period := r.PeriodType.PeriodFor(mp.StartedAt, slotStart)
	used, err := r.Store.CountConfirmed(ctx, mp.MemberID, period.Start, period.End)
	if err != nil {
		return Entitlement{}, fmt.Errorf("count reservations: %w", err)
	}

	ent := Entitlement{
		Mode:      ModeMonthly,
		Plan:      &plan,
		Period:    period,
		Used:      used,
		Allotment: plan.TicketsPerMonth,
		Balance:   balance,
	}
	if used < plan.TicketsPerMonth {
		ent.Allowed = true
		ent.Reason = "OK"
	} else {
		ent.Reason = fmt.Sprintf("monthly limit reached (%d/%d)", used, plan.TicketsPerMonth)
	}
	return ent, nil
}

// =============================================================================
// AVAILABILITY SUMMARY
// =============================================================================

// Availability is the member-facing summary of what they can still book.
type Availability struct {
	MemberID      string
	Mode          EntitlementMode
	TicketBalance int

	PlanName               string
	TicketsPerMonth        int
	CurrentPeriod          Period
	CurrentPeriodUsed      int
	CurrentPeriodRemaining int
	NextPeriodRemaining    int
}

// Availability summarises the member's entitlement as of now.
func (r *EntitlementResolver) Availability(ctx context.Context, memberID string, now time.Time) (Availability, error) {
	if _, err := r.Store.GetMember(ctx, memberID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Availability{}, newError(ErrNotFound, "member not found")
		}
		return Availability{}, err
	}

	ent, err := r.Resolve(ctx, memberID, now)
	if err != nil {
		return Availability{}, err
	}

	av := Availability{MemberID: memberID, Mode: ent.Mode, TicketBalance: ent.Balance}
	if ent.Mode != ModeMonthly {
		return av, nil
	}

	av.PlanName = ent.Plan.Name
	av.TicketsPerMonth = ent.Allotment
	av.CurrentPeriod = ent.Period
	av.CurrentPeriodUsed = ent.Used
	av.CurrentPeriodRemaining = max(ent.Allotment-ent.Used, 0)

	mp, err := r.Store.ActiveMemberPlan(ctx, memberID)
	if err != nil || mp == nil {
		return av, err
	}
	next := ent.Period.Next(r.PeriodType, mp.StartedAt)
	usedNext, err := r.Store.CountConfirmed(ctx, memberID, next.Start, next.End)
	if err != nil {
		return av, err
	}
	av.NextPeriodRemaining = max(ent.Allotment-usedNext, 0)
	return av, nil
}
