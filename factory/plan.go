/*
Package factory provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON plan definitions into studio.Plan values so the plan
  catalog can be edited without code changes (admin UI, seed files,
  demo scenarios).

JSON SCHEMA:
  {
    "name": "Monthly 4",
    "tickets_per_month": 4,
    "price": "12000",
    "is_active": true
  }

  price is a decimal string (or JSON number); omitted means unpriced.
  is_active defaults to true.

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParsePlan(jsonString)
  plan, err = engine.Plans.CreatePlan(ctx, plan)

SEE ALSO:
  - studio/types.go: Plan type definition
  - studio/plans.go: Plan service
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a plan.
type PlanJSON struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name"`
	TicketsPerMonth int              `json:"tickets_per_month"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	IsActive        *bool            `json:"is_active,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

type PlanFactory struct{}

func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON plan definition.
func (f *PlanFactory) ParsePlan(jsonStr string) (studio.Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return studio.Plan{}, fmt.Errorf("invalid plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON validates pj and converts it.
func (f *PlanFactory) FromJSON(pj PlanJSON) (studio.Plan, error) {
	if pj.Name == "" {
		return studio.Plan{}, fmt.Errorf("plan name is required")
	}
	if pj.TicketsPerMonth <= 0 {
		return studio.Plan{}, fmt.Errorf("tickets_per_month must be positive, got %d", pj.TicketsPerMonth)
	}
	if pj.Price != nil && pj.Price.IsNegative() {
		return studio.Plan{}, fmt.Errorf("price must not be negative, got %s", pj.Price)
	}

	active := true
	if pj.IsActive != nil {
		active = *pj.IsActive
	}

	plan := studio.Plan{
		ID:              pj.ID,
		Name:            pj.Name,
		TicketsPerMonth: pj.TicketsPerMonth,
		IsActive:        active,
	}
	if pj.Price != nil {
		price := pj.Price.Round(2)
		plan.Price = &price
	}
	return plan, nil
}

// ToJSON converts a plan back to its JSON form.
func (f *PlanFactory) ToJSON(p studio.Plan) PlanJSON {
	active := p.IsActive
	return PlanJSON{
		ID:              p.ID,
		Name:            p.Name,
		TicketsPerMonth: p.TicketsPerMonth,
		Price:           p.Price,
		IsActive:        &active,
	}
}

// =============================================================================
// PRESETS
// =============================================================================

// PlanPreset builds the JSON for a plan with a price in whole currency units.
func PlanPreset(name string, ticketsPerMonth int, price int64) string {
	return fmt.Sprintf(`{
		"name": %q,
		"tickets_per_month": %d,
		"price": "%d"
	}`, name, ticketsPerMonth, price)
}

// StandardPlans is the default catalog used by demo scenarios.
func StandardPlans() []string {
	return []string{
		PlanPreset("Monthly 2", 2, 6500),
		PlanPreset("Monthly 4", 4, 12000),
		PlanPreset("Monthly 8", 8, 22000),
	}
}
