/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Each scenario creates the plan catalog, members,
	upcoming slots and a few bookings that demonstrate specific features.

AVAILABLE SCENARIOS:

	monthly-member:  Member on "Monthly 4" with one booking this period
	ticket-member:   Member without a plan holding 3 tickets
	busy-studio:     Both members, a fully used monthly plan and a trial booking

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Create plans via factory.StandardPlans
 3. Create members (auth user ids "demo-monthly", "demo-tickets")
 4. Create slots for the next 14 days
 5. Book through the lifecycle controller, exactly like the API does

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "ticket-member"}

NOTE:

	Scenarios reset the store. Routes are mounted only when
	ENABLE_SCENARIOS=true and require an admin token. Config refuses
	the flag on PostgreSQL.

SEE ALSO:
  - handlers.go: Handler type
  - factory/plan.go: Plan JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/studio-engine/factory"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "monthly-member",
		Name:        "Monthly Member",
		Description: "Member on Monthly 4 with one lesson booked this period",
	},
	{
		ID:          "ticket-member",
		Name:        "Ticket Member",
		Description: "Member without a plan holding 3 tickets",
	},
	{
		ID:          "busy-studio",
		Name:        "Busy Studio",
		Description: "Monthly limit reached, ticket bookings and a trial guest",
	},
}

// Demo auth user ids. Sign tokens with these as "sub" to act as the members.
const (
	DemoMonthlyUser = "demo-monthly"
	DemoTicketUser  = "demo-tickets"
)

var scenarioAdmin = studio.Actor{UserID: "scenario-loader", Role: studio.RoleAdmin}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var load func(ctx context.Context) error
	switch req.ScenarioID {
	case "monthly-member":
		load = h.loadMonthlyMemberScenario
	case "ticket-member":
		load = h.loadTicketMemberScenario
	case "busy-studio":
		load = h.loadBusyStudioScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Scenario loaded",
		"scenario_id": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Store reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Engine.Store.(resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMonthlyMemberScenario(ctx context.Context) error {
	plans, err := h.seedPlans(ctx)
	if err != nil {
		return err
	}
	slots, err := h.seedSlots(ctx, 14)
	if err != nil {
		return err
	}
	m, err := h.seedMember(ctx, DemoMonthlyUser, "Aiko Tanaka", "aiko@example.com")
	if err != nil {
		return err
	}
	if _, err := h.Engine.Plans.AssignPlan(ctx, m.ID, plans["Monthly 4"].ID); err != nil {
		return fmt.Errorf("assign plan: %w", err)
	}
	_, err = h.Engine.Lifecycle.Create(ctx, scenarioAdmin, m.ID, slots[0].ID)
	return err
}

func (h *Handler) loadTicketMemberScenario(ctx context.Context) error {
	if _, err := h.seedPlans(ctx); err != nil {
		return err
	}
	if _, err := h.seedSlots(ctx, 14); err != nil {
		return err
	}
	m, err := h.seedMember(ctx, DemoTicketUser, "Ren Sato", "ren@example.com")
	if err != nil {
		return err
	}
	_, err = h.Engine.Tickets.Apply(ctx, studio.TicketOperation{
		MemberID: m.ID,
		Type:     studio.TicketGrant,
		Amount:   3,
		Reason:   "welcome pack",
	})
	return err
}

func (h *Handler) loadBusyStudioScenario(ctx context.Context) error {
	plans, err := h.seedPlans(ctx)
	if err != nil {
		return err
	}
	slots, err := h.seedSlots(ctx, 14)
	if err != nil {
		return err
	}

	monthly, err := h.seedMember(ctx, DemoMonthlyUser, "Aiko Tanaka", "aiko@example.com")
	if err != nil {
		return err
	}
	if _, err := h.Engine.Plans.AssignPlan(ctx, monthly.ID, plans["Monthly 2"].ID); err != nil {
		return fmt.Errorf("assign plan: %w", err)
	}
	for _, s := range slots[:2] {
		if _, err := h.Engine.Lifecycle.Create(ctx, scenarioAdmin, monthly.ID, s.ID); err != nil {
			return err
		}
	}

	tickets, err := h.seedMember(ctx, DemoTicketUser, "Ren Sato", "ren@example.com")
	if err != nil {
		return err
	}
	if _, err := h.Engine.Tickets.Apply(ctx, studio.TicketOperation{
		MemberID: tickets.ID, Type: studio.TicketGrant, Amount: 2, Reason: "welcome pack",
	}); err != nil {
		return err
	}
	if _, err := h.Engine.Lifecycle.Create(ctx, scenarioAdmin, tickets.ID, slots[2].ID); err != nil {
		return err
	}

	_, err = h.Engine.Lifecycle.BookTrial(ctx, slots[3].ID, studio.Guest{
		Name:  "Mika Ito",
		Email: "mika@example.com",
		Phone: "090-1234-5678",
		Note:  "First time, beginner",
	})
	return err
}

// =============================================================================
// SEED HELPERS
// =============================================================================

// seedPlans creates the standard catalog, keyed by name.
func (h *Handler) seedPlans(ctx context.Context) (map[string]studio.Plan, error) {
	out := make(map[string]studio.Plan)
	for _, js := range factory.StandardPlans() {
		p, err := h.PlanFactory.ParsePlan(js)
		if err != nil {
			return nil, err
		}
		created, err := h.Engine.Plans.CreatePlan(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create plan %s: %w", p.Name, err)
		}
		out[created.Name] = created
	}
	return out, nil
}

// seedSlots creates a 10:00 and an 18:00 one-hour lesson on each of the
// next days.
func (h *Handler) seedSlots(ctx context.Context, days int) ([]studio.Slot, error) {
	now := h.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var slots []studio.Slot
	for d := 1; d <= days; d++ {
		day := today.AddDate(0, 0, d)
		for _, hour := range []int{10, 18} {
			start := day.Add(time.Duration(hour) * time.Hour)
			s, err := h.Engine.Locks.CreateSlot(ctx, start, start.Add(time.Hour))
			if err != nil {
				return nil, fmt.Errorf("create slot: %w", err)
			}
			slots = append(slots, s)
		}
	}
	return slots, nil
}

func (h *Handler) seedMember(ctx context.Context, authUser, name, email string) (studio.Member, error) {
	m, err := h.Engine.Members.CreateMember(ctx, studio.Member{AuthUserID: authUser, Name: name, Email: email})
	if err != nil {
		return studio.Member{}, fmt.Errorf("create member %s: %w", name, err)
	}
	return m, nil
}
