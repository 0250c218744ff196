package studio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/studio"
)

func TestResolve_NoPlanNoTickets_Denied(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")

	ent, err := f.engine.Resolver.Resolve(f.ctx, m.ID, baseTime.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, studio.ModeNone, ent.Mode)
	assert.False(t, ent.Allowed)
	assert.Equal(t, "insufficient entitlement", ent.Reason)

	var entErr *studio.EntitlementError
	require.ErrorAs(t, ent.Err(m.ID), &entErr)
	assert.ErrorIs(t, ent.Err(m.ID), studio.ErrDenied)
}

func TestResolve_TicketBalance_TicketMode(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 3)

	ent, err := f.engine.Resolver.Resolve(f.ctx, m.ID, baseTime.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, studio.ModeTicket, ent.Mode)
	assert.True(t, ent.Allowed)
	assert.Equal(t, 3, ent.Balance)
	assert.NoError(t, ent.Err(m.ID))
}

func TestResolve_ActivePlanWinsOverTickets(t *testing.T) {
	// GIVEN: A member with an active plan AND a positive ticket balance
	// WHEN: Resolving
	// THEN: Monthly mode, judged by the plan alone

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 5)
	f.monthlyPlan(t, m.ID, 4)

	ent, err := f.engine.Resolver.Resolve(f.ctx, m.ID, baseTime.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, studio.ModeMonthly, ent.Mode)
	assert.True(t, ent.Allowed)
	assert.Equal(t, 0, ent.Used)
	assert.Equal(t, 4, ent.Allotment)
	assert.Equal(t, 5, ent.Balance)
}

func TestResolve_MonthlyLimitReached(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.monthlyPlan(t, m.ID, 2)

	for i := 1; i <= 2; i++ {
		s := f.slotAt(t, time.Duration(i)*24*time.Hour)
		_, err := f.engine.Lifecycle.Create(f.ctx, admin, m.ID, s.ID)
		require.NoError(t, err)
	}

	ent, err := f.engine.Resolver.Resolve(f.ctx, m.ID, baseTime.Add(3*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, studio.ModeMonthly, ent.Mode)
	assert.False(t, ent.Allowed)
	assert.Equal(t, "monthly limit reached (2/2)", ent.Reason)
	assert.EqualError(t, ent.Err(m.ID), "cannot reserve: monthly limit reached (2/2)")
}

func TestResolve_MonthlyCountsOnlyTheSlotsPeriod(t *testing.T) {
	// GIVEN: Plan started Mar 10 with 1/month, one booking on Mar 11
	// WHEN: Resolving for a slot in the next period (Apr 12)
	// THEN: Allowed, the March booking does not count

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.monthlyPlan(t, m.ID, 1)

	s := f.slotAt(t, 24*time.Hour)
	_, err := f.engine.Lifecycle.Create(f.ctx, admin, m.ID, s.ID)
	require.NoError(t, err)

	ent, err := f.engine.Resolver.Resolve(f.ctx, m.ID, date(2025, time.April, 12).Add(10*time.Hour))
	require.NoError(t, err)
	assert.True(t, ent.Allowed)
	assert.Equal(t, date(2025, time.April, 10), ent.Period.Start)
	assert.Equal(t, 0, ent.Used)
}

func TestResolve_CancelledReservationsDoNotCount(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.monthlyPlan(t, m.ID, 1)

	s := f.slotAt(t, 48*time.Hour)
	res, err := f.engine.Lifecycle.Create(f.ctx, admin, m.ID, s.ID)
	require.NoError(t, err)
	_, err = f.engine.Lifecycle.Cancel(f.ctx, admin, res.ID)
	require.NoError(t, err)

	ent, err := f.engine.Resolver.Resolve(f.ctx, m.ID, baseTime.Add(72*time.Hour))
	require.NoError(t, err)
	assert.True(t, ent.Allowed)
	assert.Equal(t, 0, ent.Used)
}

func TestAvailability_MonthlySummary(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.monthlyPlan(t, m.ID, 4)

	s := f.slotAt(t, 24*time.Hour)
	_, err := f.engine.Lifecycle.Create(f.ctx, admin, m.ID, s.ID)
	require.NoError(t, err)

	av, err := f.engine.Resolver.Availability(f.ctx, m.ID, f.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, studio.ModeMonthly, av.Mode)
	assert.Equal(t, "Monthly", av.PlanName)
	assert.Equal(t, 4, av.TicketsPerMonth)
	assert.Equal(t, 1, av.CurrentPeriodUsed)
	assert.Equal(t, 3, av.CurrentPeriodRemaining)
	assert.Equal(t, 4, av.NextPeriodRemaining)
}

func TestAvailability_UnknownMember(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Resolver.Availability(f.ctx, "nobody", f.clock.Now())
	assert.ErrorIs(t, err, studio.ErrNotFound)
}
