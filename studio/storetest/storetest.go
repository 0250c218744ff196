// Package storetest is the behavioural contract every studio.Store
// implementation must satisfy. Driver packages call Run from their tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/studio"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) studio.Store

var t0 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// Run executes the contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s studio.Store)
	}{
		{"SlotRoundTrip", testSlotRoundTrip},
		{"SlotCompareAndSet", testSlotCompareAndSet},
		{"SlotExternalRef", testSlotExternalRef},
		{"ListSlotsFilters", testListSlotsFilters},
		{"ReservationRoundTrip", testReservationRoundTrip},
		{"ReservationCompareAndSet", testReservationCompareAndSet},
		{"ListReservationsFilters", testListReservationsFilters},
		{"CountConfirmedHalfOpen", testCountConfirmedHalfOpen},
		{"TicketLogs", testTicketLogs},
		{"Plans", testPlans},
		{"MemberPlans", testMemberPlans},
		{"MemberPlanSingleActive", testMemberPlanSingleActive},
		{"Members", testMembers},
		{"UpdateMember", testUpdateMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

func insertSlot(t *testing.T, s studio.Store, start time.Time) studio.Slot {
	t.Helper()
	slot, err := s.InsertSlot(context.Background(), studio.Slot{
		ID:          studio.NewID(),
		StartAt:     start,
		EndAt:       start.Add(time.Hour),
		Status:      studio.SlotAvailable,
		ExternalRef: "ref-" + start.Format("0102T15"),
		CreatedAt:   t0,
		UpdatedAt:   t0,
	})
	require.NoError(t, err)
	return slot
}

func insertMember(t *testing.T, s studio.Store, authUser string) studio.Member {
	t.Helper()
	m, err := s.InsertMember(context.Background(), studio.Member{
		ID:         studio.NewID(),
		AuthUserID: authUser,
		Name:       "Member " + authUser,
		Email:      authUser + "@example.com",
		Status:     studio.MemberActive,
		CreatedAt:  t0,
	})
	require.NoError(t, err)
	return m
}

func insertReservation(t *testing.T, s studio.Store, slotID, memberID string, created time.Time) studio.Reservation {
	t.Helper()
	r, err := s.InsertReservation(context.Background(), studio.Reservation{
		ID:         studio.NewID(),
		SlotID:     slotID,
		MemberID:   memberID,
		Type:       studio.ReservationMember,
		Status:     studio.ReservationConfirmed,
		ChargeMode: studio.ModeTicket,
		CreatedAt:  created,
		UpdatedAt:  created,
	})
	require.NoError(t, err)
	return r
}

// =============================================================================
// SLOTS
// =============================================================================

func testSlotExternalRef(t *testing.T, s studio.Store) {
	ctx := context.Background()
	slot := insertSlot(t, s, t0.Add(24*time.Hour))
	later := t0.Add(time.Minute)

	require.NoError(t, s.SetSlotExternalRef(ctx, slot.ID, "cal-42", later))
	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, "cal-42", got.ExternalRef)
	assert.True(t, later.Equal(got.UpdatedAt))

	require.NoError(t, s.SetSlotExternalRef(ctx, slot.ID, "", later))
	got, err = s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ExternalRef)

	assert.NoError(t, s.SetSlotExternalRef(ctx, studio.NewID(), "cal-x", later))
}

func testSlotRoundTrip(t *testing.T, s studio.Store) {
	ctx := context.Background()
	slot := insertSlot(t, s, t0.Add(24*time.Hour))

	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, got.ID)
	assert.True(t, slot.StartAt.Equal(got.StartAt))
	assert.True(t, slot.EndAt.Equal(got.EndAt))
	assert.Equal(t, studio.SlotAvailable, got.Status)
	assert.Equal(t, slot.ExternalRef, got.ExternalRef)

	_, err = s.GetSlot(ctx, studio.NewID())
	assert.ErrorIs(t, err, studio.ErrNotFound)

	require.NoError(t, s.DeleteSlot(ctx, slot.ID))
	_, err = s.GetSlot(ctx, slot.ID)
	assert.ErrorIs(t, err, studio.ErrNotFound)
}

func testSlotCompareAndSet(t *testing.T, s studio.Store) {
	ctx := context.Background()
	slot := insertSlot(t, s, t0.Add(24*time.Hour))
	at := t0.Add(time.Minute)

	claimed, ok, err := s.CompareAndSetSlotStatus(ctx, slot.ID, studio.SlotAvailable, studio.SlotBooked, at)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, studio.SlotBooked, claimed.Status)
	assert.True(t, at.Equal(claimed.UpdatedAt))

	// second claim loses
	_, ok, err = s.CompareAndSetSlotStatus(ctx, slot.ID, studio.SlotAvailable, studio.SlotBooked, at)
	require.NoError(t, err)
	assert.False(t, ok)

	// unknown slot is a lost race, not an error
	_, ok, err = s.CompareAndSetSlotStatus(ctx, studio.NewID(), studio.SlotAvailable, studio.SlotBooked, at)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSlotStatus(ctx, slot.ID, studio.SlotAvailable, at))
	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.SlotAvailable, got.Status)

	assert.NoError(t, s.SetSlotStatus(ctx, studio.NewID(), studio.SlotAvailable, at))
}

func testListSlotsFilters(t *testing.T, s studio.Store) {
	ctx := context.Background()
	day3 := insertSlot(t, s, t0.Add(72*time.Hour))
	day1 := insertSlot(t, s, t0.Add(24*time.Hour))
	day2 := insertSlot(t, s, t0.Add(48*time.Hour))
	_, _, err := s.CompareAndSetSlotStatus(ctx, day2.ID, studio.SlotAvailable, studio.SlotBooked, t0)
	require.NoError(t, err)

	all, err := s.ListSlots(ctx, studio.SlotFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{day1.ID, day2.ID, day3.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	from := t0.Add(48 * time.Hour)
	ranged, err := s.ListSlots(ctx, studio.SlotFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	available, err := s.ListSlots(ctx, studio.SlotFilter{Status: studio.SlotAvailable})
	require.NoError(t, err)
	assert.Len(t, available, 2)
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func testReservationRoundTrip(t *testing.T, s studio.Store) {
	ctx := context.Background()
	slot := insertSlot(t, s, t0.Add(24*time.Hour))

	trial, err := s.InsertReservation(ctx, studio.Reservation{
		ID:         studio.NewID(),
		SlotID:     slot.ID,
		Type:       studio.ReservationTrial,
		Status:     studio.ReservationConfirmed,
		ChargeMode: studio.ModeNone,
		Guest:      &studio.Guest{Name: "Mika", Email: "mika@example.com", Phone: "090-1234-5678", Note: "hello"},
		CreatedAt:  t0,
		UpdatedAt:  t0,
	})
	require.NoError(t, err)

	got, err := s.GetReservation(ctx, trial.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.ReservationTrial, got.Type)
	assert.Empty(t, got.MemberID)
	assert.Equal(t, studio.ModeNone, got.ChargeMode)
	require.NotNil(t, got.Guest)
	assert.Equal(t, "Mika", got.Guest.Name)
	assert.Equal(t, "hello", got.Guest.Note)
	assert.Nil(t, got.CancelledAt)

	n, err := s.CountBySlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteReservation(ctx, trial.ID))
	_, err = s.GetReservation(ctx, trial.ID)
	assert.ErrorIs(t, err, studio.ErrNotFound)
}

func testReservationCompareAndSet(t *testing.T, s studio.Store) {
	ctx := context.Background()
	m := insertMember(t, s, "cas")
	slot := insertSlot(t, s, t0.Add(24*time.Hour))
	r := insertReservation(t, s, slot.ID, m.ID, t0)

	at := t0.Add(time.Hour)
	patch := studio.ReservationPatch{Status: studio.ReservationCancelled, CancelledAt: &at, UpdatedAt: at}

	cancelled, ok, err := s.CompareAndSetReservation(ctx, r.ID, studio.ReservationConfirmed, patch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, studio.ReservationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.True(t, at.Equal(*cancelled.CancelledAt))

	_, ok, err = s.CompareAndSetReservation(ctx, r.ID, studio.ReservationConfirmed, patch)
	require.NoError(t, err)
	assert.False(t, ok)

	// compensation restore clears the cancellation timestamp
	require.NoError(t, s.SetReservation(ctx, r.ID, studio.ReservationPatch{Status: studio.ReservationConfirmed, UpdatedAt: at}))
	got, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.ReservationConfirmed, got.Status)
	assert.Nil(t, got.CancelledAt)

	err = s.SetReservation(ctx, studio.NewID(), patch)
	assert.ErrorIs(t, err, studio.ErrNotFound)
}

func testListReservationsFilters(t *testing.T, s studio.Store) {
	ctx := context.Background()
	a := insertMember(t, s, "a")
	b := insertMember(t, s, "b")
	s1 := insertSlot(t, s, t0.Add(24*time.Hour))
	s2 := insertSlot(t, s, t0.Add(48*time.Hour))
	s3 := insertSlot(t, s, t0.Add(72*time.Hour))

	older := insertReservation(t, s, s1.ID, a.ID, t0)
	newer := insertReservation(t, s, s2.ID, a.ID, t0.Add(time.Minute))
	insertReservation(t, s, s3.ID, b.ID, t0.Add(2*time.Minute))

	at := t0.Add(time.Hour)
	_, _, err := s.CompareAndSetReservation(ctx, older.ID, studio.ReservationConfirmed,
		studio.ReservationPatch{Status: studio.ReservationCancelled, CancelledAt: &at, UpdatedAt: at})
	require.NoError(t, err)

	mine, err := s.ListReservations(ctx, studio.ReservationFilter{MemberID: a.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, newer.ID, mine[0].ID, "newest first")

	confirmed, err := s.ListReservations(ctx, studio.ReservationFilter{MemberID: a.ID, Status: studio.ReservationConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, newer.ID, confirmed[0].ID)

	from, to := t0.Add(40*time.Hour), t0.Add(80*time.Hour)
	ranged, err := s.ListReservations(ctx, studio.ReservationFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	bySlot, err := s.ListReservations(ctx, studio.ReservationFilter{SlotID: s1.ID})
	require.NoError(t, err)
	assert.Len(t, bySlot, 1)
}

func testCountConfirmedHalfOpen(t *testing.T, s studio.Store) {
	ctx := context.Background()
	m := insertMember(t, s, "count")
	start := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

	onStart := insertSlot(t, s, start)
	onEnd := insertSlot(t, s, end)
	before := insertSlot(t, s, start.Add(-time.Hour))
	insertReservation(t, s, onStart.ID, m.ID, t0)
	insertReservation(t, s, onEnd.ID, m.ID, t0)
	insertReservation(t, s, before.ID, m.ID, t0)

	n, err := s.CountConfirmed(ctx, m.ID, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// TICKET LOGS
// =============================================================================

func testTicketLogs(t *testing.T, s studio.Store) {
	ctx := context.Background()
	m := insertMember(t, s, "tickets")
	resID := studio.NewID()
	exp := t0.Add(30 * 24 * time.Hour)

	second, err := s.AppendTicketLog(ctx, studio.TicketLogEntry{
		ID: studio.NewID(), MemberID: m.ID, Type: studio.TicketConsume, Amount: -1,
		Reason: "reservation", ReservationID: resID, CreatedAt: t0.Add(time.Minute),
	})
	require.NoError(t, err)
	first, err := s.AppendTicketLog(ctx, studio.TicketLogEntry{
		ID: studio.NewID(), MemberID: m.ID, Type: studio.TicketGrant, Amount: 3,
		Reason: "grant", ExpiresAt: &exp, CreatedAt: t0,
	})
	require.NoError(t, err)

	entries, err := s.ListTicketLogs(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID, "oldest first")
	assert.Equal(t, second.ID, entries[1].ID)
	require.NotNil(t, entries[0].ExpiresAt)
	assert.True(t, exp.Equal(*entries[0].ExpiresAt))
	assert.Nil(t, entries[1].ExpiresAt)
	assert.Equal(t, -1, entries[1].Amount)

	byRes, err := s.ListTicketLogsByReservation(ctx, resID)
	require.NoError(t, err)
	require.Len(t, byRes, 1)
	assert.Equal(t, second.ID, byRes[0].ID)

	require.NoError(t, s.DeleteTicketLog(ctx, second.ID))
	entries, err = s.ListTicketLogs(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// PLANS AND MEMBERS
// =============================================================================

func testPlans(t *testing.T, s studio.Store) {
	ctx := context.Background()
	price := decimal.RequireFromString("12000.50")

	priced, err := s.InsertPlan(ctx, studio.Plan{ID: studio.NewID(), Name: "Monthly 4", TicketsPerMonth: 4, Price: &price, IsActive: true, CreatedAt: t0})
	require.NoError(t, err)
	free, err := s.InsertPlan(ctx, studio.Plan{ID: studio.NewID(), Name: "Staff", TicketsPerMonth: 8, CreatedAt: t0.Add(time.Second)})
	require.NoError(t, err)

	got, err := s.GetPlan(ctx, priced.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.True(t, price.Equal(*got.Price), "got %s", got.Price)
	assert.True(t, got.IsActive)

	got, err = s.GetPlan(ctx, free.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Price)
	assert.False(t, got.IsActive)

	got.TicketsPerMonth = 10
	got.IsActive = true
	_, err = s.UpdatePlan(ctx, got)
	require.NoError(t, err)
	got, err = s.GetPlan(ctx, free.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.TicketsPerMonth)
	assert.True(t, got.IsActive)

	plans, err := s.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	_, err = s.GetPlan(ctx, studio.NewID())
	assert.ErrorIs(t, err, studio.ErrNotFound)
}

func testMemberPlans(t *testing.T, s studio.Store) {
	ctx := context.Background()
	m := insertMember(t, s, "plans")
	p, err := s.InsertPlan(ctx, studio.Plan{ID: studio.NewID(), Name: "Monthly 2", TicketsPerMonth: 2, IsActive: true, CreatedAt: t0})
	require.NoError(t, err)

	none, err := s.ActiveMemberPlan(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	mp, err := s.InsertMemberPlan(ctx, studio.MemberPlan{
		ID: studio.NewID(), MemberID: m.ID, PlanID: p.ID, Status: studio.MemberPlanActive,
		StartedAt: t0.Truncate(24 * time.Hour), CreatedAt: t0,
	})
	require.NoError(t, err)

	active, err := s.ActiveMemberPlan(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, mp.ID, active.ID)
	assert.True(t, mp.StartedAt.Equal(active.StartedAt))

	n, err := s.CancelActiveMemberPlans(ctx, m.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err = s.ActiveMemberPlan(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	assert.ErrorIs(t, s.CancelMemberPlan(ctx, studio.NewID(), t0), studio.ErrNotFound)
}

func testMemberPlanSingleActive(t *testing.T, s studio.Store) {
	ctx := context.Background()
	m := insertMember(t, s, "single")
	other := insertMember(t, s, "other")
	p, err := s.InsertPlan(ctx, studio.Plan{ID: studio.NewID(), Name: "Monthly 4", TicketsPerMonth: 4, IsActive: true, CreatedAt: t0})
	require.NoError(t, err)

	assign := func(memberID string, status studio.MemberPlanStatus) error {
		_, err := s.InsertMemberPlan(ctx, studio.MemberPlan{
			ID: studio.NewID(), MemberID: memberID, PlanID: p.ID, Status: status,
			StartedAt: t0, CreatedAt: t0,
		})
		return err
	}

	require.NoError(t, assign(m.ID, studio.MemberPlanActive))
	assert.ErrorIs(t, assign(m.ID, studio.MemberPlanActive), studio.ErrConflict)

	// cancelled rows and other members are unaffected
	require.NoError(t, assign(m.ID, studio.MemberPlanCancelled))
	require.NoError(t, assign(other.ID, studio.MemberPlanActive))

	_, err = s.CancelActiveMemberPlans(ctx, m.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, assign(m.ID, studio.MemberPlanActive))
}

func testMembers(t *testing.T, s studio.Store) {
	ctx := context.Background()
	m := insertMember(t, s, "auth-1")
	insertMember(t, s, "")

	got, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth-1", got.AuthUserID)
	assert.Equal(t, "auth-1@example.com", got.Email)

	got, err = s.GetMemberByAuthUser(ctx, "auth-1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = s.GetMemberByAuthUser(ctx, "auth-2")
	assert.ErrorIs(t, err, studio.ErrNotFound)

	all, err := s.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetMember(ctx, studio.NewID())
	assert.ErrorIs(t, err, studio.ErrNotFound)
}

func testUpdateMember(t *testing.T, s studio.Store) {
	ctx := context.Background()
	m := insertMember(t, s, "upd")

	m.Name = "Renamed"
	m.Email = ""
	m.Phone = "090-0000-0000"
	m.Status = studio.MemberInactive
	m.Note = "paused lessons"
	got, err := s.UpdateMember(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, studio.MemberInactive, got.Status)

	stored, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "upd", stored.AuthUserID)
	assert.Equal(t, "Renamed", stored.Name)
	assert.Empty(t, stored.Email)
	assert.Equal(t, "090-0000-0000", stored.Phone)
	assert.Equal(t, studio.MemberInactive, stored.Status)
	assert.Equal(t, "paused lessons", stored.Note)
	assert.True(t, m.CreatedAt.Equal(stored.CreatedAt))

	_, err = s.UpdateMember(ctx, studio.Member{ID: studio.NewID(), Name: "Ghost", Status: studio.MemberActive})
	assert.ErrorIs(t, err, studio.ErrNotFound)
}
