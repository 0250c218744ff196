package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// =============================================================================
// PLANS AND PLAN ASSIGNMENT
// =============================================================================

type PlanService struct {
	Store  Store
	Ledger *TicketLedger
	Clock  Clock

	// GrantOnAssign appends a grant of TicketsPerMonth tickets whenever a
	// plan is assigned.
	GrantOnAssign bool
}

func validatePlan(p Plan) error {
	if p.Name == "" {
		return newError(ErrValidation, "name is required")
	}
	if p.TicketsPerMonth <= 0 {
		return newError(ErrValidation, "tickets_per_month must be positive")
	}
	if p.Price != nil && p.Price.IsNegative() {
		return newError(ErrValidation, "price must not be negative")
	}
	return nil
}

func (s *PlanService) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	if err := validatePlan(p); err != nil {
		return Plan{}, err
	}
	p.ID = NewID()
	p.CreatedAt = s.Clock.Now()
	return s.Store.InsertPlan(ctx, p)
}

func (s *PlanService) UpdatePlan(ctx context.Context, p Plan) (Plan, error) {
	if err := validatePlan(p); err != nil {
		return Plan{}, err
	}
	existing, err := s.Store.GetPlan(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Plan{}, newError(ErrNotFound, "plan not found")
		}
		return Plan{}, err
	}
	p.CreatedAt = existing.CreatedAt
	return s.Store.UpdatePlan(ctx, p)
}

func (s *PlanService) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.Store.ListPlans(ctx)
}

// AssignPlan makes planID the member's only active plan, starting today.
func (s *PlanService) AssignPlan(ctx context.Context, memberID, planID string) (MemberPlan, error) {
	if memberID == "" || planID == "" {
		return MemberPlan{}, newError(ErrValidation, "member_id and plan_id are required")
	}
	if _, err := s.Store.GetMember(ctx, memberID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return MemberPlan{}, newError(ErrNotFound, "member not found")
		}
		return MemberPlan{}, err
	}
	plan, err := s.Store.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MemberPlan{}, newError(ErrNotFound, "plan not found")
		}
		return MemberPlan{}, err
	}
	if !plan.IsActive {
		return MemberPlan{}, newError(ErrInvalidState, "plan is not active")
	}

	now := s.Clock.Now()
	if _, err := s.Store.CancelActiveMemberPlans(ctx, memberID, now); err != nil {
		return MemberPlan{}, downstream("cancel active plan failed", err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	mp, err := s.Store.InsertMemberPlan(ctx, MemberPlan{
		ID:        NewID(),
		MemberID:  memberID,
		PlanID:    planID,
		Status:    MemberPlanActive,
		StartedAt: today,
		CreatedAt: now,
	})
	if err != nil {
		// a concurrent assignment won the one active slot
		if errors.Is(err, ErrConflict) {
			return MemberPlan{}, newError(ErrConflict, "member already has an active plan")
		}
		return MemberPlan{}, downstream("member plan insert failed", err)
	}

	if s.GrantOnAssign {
		_, err := s.Ledger.Append(ctx, TicketLogEntry{
			MemberID: memberID,
			Type:     TicketGrant,
			Amount:   plan.TicketsPerMonth,
			Reason:   fmt.Sprintf("plan grant: %s", plan.Name),
		})
		if err != nil {
			// the plan itself is in place; the grant can be redone by hand
			log.Printf("[Plans] grant for member %s failed: %v", memberID, err)
		}
	}
	return mp, nil
}

func (s *PlanService) CancelMemberPlan(ctx context.Context, id string) error {
	if id == "" {
		return newError(ErrValidation, "id is required")
	}
	if err := s.Store.CancelMemberPlan(ctx, id, s.Clock.Now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrNotFound, "member plan not found")
		}
		return err
	}
	return nil
}

// ActivePlan returns the member's active plan, or nil.
func (s *PlanService) ActivePlan(ctx context.Context, memberID string) (*MemberPlan, error) {
	return s.Store.ActiveMemberPlan(ctx, memberID)
}
