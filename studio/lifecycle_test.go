package studio_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_TicketMember_ConsumesOneTicket(t *testing.T) {
	// GIVEN: Slot tomorrow 10:00-11:00, member with 3 tickets and no plan
	// WHEN: Member books it
	// THEN: Confirmed, slot booked, consume -1 recorded, balance 2

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 3)
	s := f.slotAt(t, 25*time.Hour)

	res, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)
	require.NoError(t, err)

	assert.Equal(t, studio.ReservationConfirmed, res.Status)
	assert.Equal(t, studio.ModeTicket, res.ChargeMode)
	assert.Equal(t, studio.SlotBooked, f.slotStatus(t, s.ID))
	assert.Equal(t, 2, f.balance(t, m.ID))

	history, err := f.engine.Ledger.History(f.ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, studio.TicketConsume, history[0].Type)
	assert.Equal(t, -1, history[0].Amount)
	assert.Equal(t, res.ID, history[0].ReservationID)

	assert.Equal(t, []string{"created", "occupied"}, f.notifier.ops())
}

func TestCreate_SlotAlreadyBooked_Conflict(t *testing.T) {
	// GIVEN: Slot booked by another member
	// WHEN: A second member books it
	// THEN: Conflict, no state change for the second member

	f := newFixture(t)
	m1 := f.member(t, "u1", "Aiko")
	m2 := f.member(t, "u2", "Ren")
	f.grant(t, m1.ID, 1)
	f.grant(t, m2.ID, 1)
	s := f.slotAt(t, 24*time.Hour)

	_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m1.ID, s.ID)
	require.NoError(t, err)

	_, err = f.engine.Lifecycle.Create(f.ctx, memberActor("u2"), m2.ID, s.ID)
	assert.ErrorIs(t, err, studio.ErrConflict)
	assert.True(t, studio.IsConflict(err))
	assert.Equal(t, 1, f.balance(t, m2.ID))

	res, err := f.mem.ListReservations(f.ctx, studio.ReservationFilter{SlotID: s.ID})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestCreate_MonthlyLimitReached_Denied(t *testing.T) {
	// GIVEN: Plan with 4/month and 4 confirmed bookings this period
	// WHEN: Booking a fifth
	// THEN: Denied in monthly mode, nothing mutated

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.monthlyPlan(t, m.ID, 4)
	for i := 1; i <= 4; i++ {
		s := f.slotAt(t, time.Duration(i)*24*time.Hour)
		_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)
		require.NoError(t, err)
	}
	fifth := f.slotAt(t, 5*24*time.Hour)

	_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, fifth.ID)

	assert.ErrorIs(t, err, studio.ErrDenied)
	var entErr *studio.EntitlementError
	require.ErrorAs(t, err, &entErr)
	assert.Equal(t, studio.ModeMonthly, entErr.Mode)
	assert.Contains(t, err.Error(), "cannot reserve")
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, fifth.ID))

	entries, err := f.mem.ListTicketLogs(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreate_NoEntitlement_Denied(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	s := f.slotAt(t, 24*time.Hour)

	_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)

	assert.ErrorIs(t, err, studio.ErrDenied)
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
}

func TestCreate_InactiveMember_Denied(t *testing.T) {
	// GIVEN: A member with tickets who was set inactive
	// WHEN: Booking, even as admin
	// THEN: Denied, nothing charged, slot still available

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 2)
	s := f.slotAt(t, 24*time.Hour)
	inactive := studio.MemberInactive
	_, err := f.engine.Members.UpdateMember(f.ctx, m.ID, studio.MemberUpdate{Status: &inactive})
	require.NoError(t, err)

	for _, actor := range []studio.Actor{memberActor("u1"), admin} {
		_, err = f.engine.Lifecycle.Create(f.ctx, actor, m.ID, s.ID)

		assert.ErrorIs(t, err, studio.ErrDenied)
		assert.Equal(t, "member is inactive", studio.Reason(err))
	}
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
	assert.Equal(t, 2, f.balance(t, m.ID))
}

func TestCreate_PlanMemberWithTickets_NeverChargedTicket(t *testing.T) {
	// GIVEN: Active plan AND 5 tickets
	// WHEN: Booking
	// THEN: Monthly mode, no ledger entry written, balance untouched

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 5)
	f.monthlyPlan(t, m.ID, 2)

	for i := 1; i <= 2; i++ {
		s := f.slotAt(t, time.Duration(i)*24*time.Hour)
		res, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)
		require.NoError(t, err)
		assert.Equal(t, studio.ModeMonthly, res.ChargeMode)

		has, err := f.engine.Ledger.HasConsumption(f.ctx, res.ID)
		require.NoError(t, err)
		assert.False(t, has)
	}
	assert.Equal(t, 5, f.balance(t, m.ID))

	// plan exhausted: still no fallback to tickets
	s := f.slotAt(t, 3*24*time.Hour)
	_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)
	assert.ErrorIs(t, err, studio.ErrDenied)
	assert.Equal(t, 5, f.balance(t, m.ID))
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 5)
	s := f.slotAt(t, 24*time.Hour)
	past := f.slotAt(t, -time.Hour)

	tests := []struct {
		name     string
		actor    studio.Actor
		memberID string
		slotID   string
		want     error
	}{
		{"unauthenticated", studio.Actor{}, m.ID, s.ID, studio.ErrUnauthenticated},
		{"missing ids", memberActor("u1"), "", s.ID, studio.ErrValidation},
		{"unknown member", memberActor("u1"), "nobody", s.ID, studio.ErrNotFound},
		{"other member", memberActor("u2"), m.ID, s.ID, studio.ErrForbidden},
		{"unknown slot", memberActor("u1"), m.ID, "missing", studio.ErrNotFound},
		{"past slot", memberActor("u1"), m.ID, past.ID, studio.ErrDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Lifecycle.Create(f.ctx, tt.actor, tt.memberID, tt.slotID)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 5, f.balance(t, m.ID))
}

func TestCreate_AdminBooksForAnyMember(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 1)
	s := f.slotAt(t, 24*time.Hour)

	res, err := f.engine.Lifecycle.Create(f.ctx, admin, m.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, res.MemberID)
}

func TestCreate_ConcurrentAttempts_ExactlyOneWins(t *testing.T) {
	// GIVEN: 20 members with tickets racing for one slot
	// WHEN: All book concurrently
	// THEN: One confirmed reservation, every loser gets Conflict and keeps
	//       their ticket

	f := newFixture(t)
	s := f.slotAt(t, 24*time.Hour)

	const n = 20
	members := make([]studio.Member, n)
	for i := range members {
		auth := "u" + string(rune('a'+i))
		members[i] = f.member(t, auth, "Member "+auth)
		f.grant(t, members[i].ID, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range members {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Lifecycle.Create(f.ctx, admin, members[i].ID, s.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		if err == nil {
			wins++
			assert.Equal(t, 0, f.balance(t, members[i].ID))
			continue
		}
		assert.ErrorIs(t, err, studio.ErrConflict)
		assert.Equal(t, 1, f.balance(t, members[i].ID))
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, studio.SlotBooked, f.slotStatus(t, s.ID))

	res, err := f.mem.ListReservations(f.ctx, studio.ReservationFilter{SlotID: s.ID, Status: studio.ReservationConfirmed})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

// =============================================================================
// CREATE COMPENSATION
// =============================================================================

func TestCreate_ConsumeFails_RollsBack(t *testing.T) {
	// GIVEN: The ledger write fails after the reservation row was inserted
	// WHEN: Booking
	// THEN: Downstream error, no reservation row, slot available again

	f, fs := newFaultyFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 2)
	s := f.slotAt(t, 24*time.Hour)
	fs.failConsume = true

	_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)

	assert.ErrorIs(t, err, studio.ErrDownstream)
	assert.Equal(t, "ticket consume failed", studio.Reason(err))
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
	assert.Equal(t, 2, f.balance(t, m.ID))

	res, err := f.mem.ListReservations(f.ctx, studio.ReservationFilter{SlotID: s.ID})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestCreate_InsertFails_ReleasesSlot(t *testing.T) {
	f, fs := newFaultyFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 1)
	s := f.slotAt(t, 24*time.Hour)
	fs.failInsertReservation = true

	_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)

	assert.ErrorIs(t, err, studio.ErrDownstream)
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
	assert.Equal(t, 1, f.balance(t, m.ID))
}

func TestCreate_UndoFails_ReturnsCompensationError(t *testing.T) {
	// GIVEN: Consume fails and deleting the reservation also fails
	// WHEN: Booking
	// THEN: *CompensationError naming the failed undo, wrapping the
	//       original failure; the remaining undo (slot release) still ran

	f, fs := newFaultyFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 1)
	s := f.slotAt(t, 24*time.Hour)
	fs.failConsume = true
	fs.failDeleteReservation = true

	_, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)

	var compErr *studio.CompensationError
	require.ErrorAs(t, err, &compErr)
	require.Len(t, compErr.Failed, 1)
	assert.Equal(t, "delete reservation", compErr.Failed[0].Step)
	assert.ErrorIs(t, compErr.Failed[0].Err, errInjected)
	assert.Equal(t, "ticket consume failed", studio.Reason(compErr.Failure))
	assert.ErrorIs(t, err, studio.ErrDownstream)
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
}

// =============================================================================
// CANCEL
// =============================================================================

// bookTicket books a slot starting offset from now with one ticket.
func bookTicket(t *testing.T, f *fixture, auth string, offset time.Duration) (studio.Member, studio.Slot, studio.Reservation) {
	t.Helper()
	m := f.member(t, auth, "Member "+auth)
	f.grant(t, m.ID, 3)
	s := f.slotAt(t, offset)
	res, err := f.engine.Lifecycle.Create(f.ctx, memberActor(auth), m.ID, s.ID)
	require.NoError(t, err)
	return m, s, res
}

func TestCancel_BeforeDeadline_RefundsTicket(t *testing.T) {
	// GIVEN: Confirmed ticket booking, slot starts in 3 hours
	// WHEN: Owner cancels
	// THEN: Cancelled, slot released, refund +1 recorded

	f := newFixture(t)
	m, s, res := bookTicket(t, f, "u1", 3*time.Hour)
	require.Equal(t, 2, f.balance(t, m.ID))

	cancelled, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)
	require.NoError(t, err)

	assert.Equal(t, studio.ReservationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, baseTime, *cancelled.CancelledAt)
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
	assert.Equal(t, 3, f.balance(t, m.ID))

	history, err := f.engine.Ledger.History(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.TicketRefund, history[0].Type)
	assert.Equal(t, 1, history[0].Amount)
	assert.Equal(t, res.ID, history[0].ReservationID)

	assert.Equal(t, []string{"created", "occupied", "freed"}, f.notifier.ops())
}

func TestCancel_AfterDeadline_Denied(t *testing.T) {
	// GIVEN: Slot starts in 1 hour
	// WHEN: Owner cancels
	// THEN: Denied with the deadline reason, nothing mutated

	f := newFixture(t)
	m, s, res := bookTicket(t, f, "u1", time.Hour)

	_, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)

	assert.ErrorIs(t, err, studio.ErrDenied)
	assert.Equal(t, "cancellation deadline passed (2 hours)", studio.Reason(err))
	assert.Equal(t, studio.SlotBooked, f.slotStatus(t, s.ID))
	assert.Equal(t, 2, f.balance(t, m.ID))

	got, err := f.mem.GetReservation(f.ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.ReservationConfirmed, got.Status)
}

func TestCancel_ExactlyAtDeadline_Denied(t *testing.T) {
	f := newFixture(t)
	_, _, res := bookTicket(t, f, "u1", 2*time.Hour)

	_, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)
	assert.ErrorIs(t, err, studio.ErrDenied)
}

func TestCancel_AdminSkipsDeadline(t *testing.T) {
	f := newFixture(t)
	m, _, res := bookTicket(t, f, "u1", 30*time.Minute)

	_, err := f.engine.Lifecycle.Cancel(f.ctx, admin, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.balance(t, m.ID))
}

func TestCancel_OtherMembersReservation_Forbidden(t *testing.T) {
	f := newFixture(t)
	_, _, res := bookTicket(t, f, "u1", 48*time.Hour)
	f.member(t, "u2", "Ren")

	_, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u2"), res.ID)
	assert.ErrorIs(t, err, studio.ErrForbidden)
}

func TestCancel_AlreadyCancelled_InvalidState(t *testing.T) {
	f := newFixture(t)
	m, _, res := bookTicket(t, f, "u1", 48*time.Hour)
	_, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)
	require.NoError(t, err)

	_, err = f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)

	assert.ErrorIs(t, err, studio.ErrInvalidState)
	assert.Equal(t, 3, f.balance(t, m.ID), "no second refund")
}

func TestCancel_MonthlyBooking_NoRefund(t *testing.T) {
	// GIVEN: A monthly booking by a member who also holds tickets
	// WHEN: Cancelling
	// THEN: No ledger entry; the booking frees its monthly count

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 2)
	f.monthlyPlan(t, m.ID, 1)
	s := f.slotAt(t, 48*time.Hour)
	res, err := f.engine.Lifecycle.Create(f.ctx, memberActor("u1"), m.ID, s.ID)
	require.NoError(t, err)

	_, err = f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, f.balance(t, m.ID))
	ent, err := f.engine.Resolver.Resolve(f.ctx, m.ID, s.StartAt)
	require.NoError(t, err)
	assert.True(t, ent.Allowed)
}

func TestCancel_TicketBookingAfterPlanAssigned_StillRefunds(t *testing.T) {
	// GIVEN: A ticket booking, then a plan assigned before cancelling
	// WHEN: Cancelling
	// THEN: The ticket consumed at booking time is refunded

	f := newFixture(t)
	m, _, res := bookTicket(t, f, "u1", 48*time.Hour)
	f.monthlyPlan(t, m.ID, 4)

	_, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.balance(t, m.ID))
}

func TestCancel_LegacyRowWithoutChargeMode_UsesLedger(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 1)
	s := f.slotAt(t, 48*time.Hour)
	_, _, err := f.mem.CompareAndSetSlotStatus(f.ctx, s.ID, studio.SlotAvailable, studio.SlotBooked, baseTime)
	require.NoError(t, err)

	legacy, err := f.mem.InsertReservation(f.ctx, studio.Reservation{
		ID:        "legacy-1",
		SlotID:    s.ID,
		MemberID:  m.ID,
		Type:      studio.ReservationMember,
		Status:    studio.ReservationConfirmed,
		CreatedAt: baseTime,
	})
	require.NoError(t, err)
	_, err = f.engine.Ledger.Append(f.ctx, studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketConsume, Amount: -1, ReservationID: legacy.ID})
	require.NoError(t, err)

	_, err = f.engine.Lifecycle.Cancel(f.ctx, admin, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.balance(t, m.ID))
}

func TestCancel_ConcurrentAttempts_ExactlyOneWins(t *testing.T) {
	// GIVEN: One confirmed ticket booking
	// WHEN: 10 cancels race
	// THEN: One succeeds, the rest report "already cancelled", one refund

	f := newFixture(t)
	m, s, res := bookTicket(t, f, "u1", 48*time.Hour)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, strings.Contains(studio.Reason(err), "already cancelled"), "got %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
	assert.Equal(t, 3, f.balance(t, m.ID))
}

func TestCancel_RefundFails_RestoresReservationAndSlot(t *testing.T) {
	f, fs := newFaultyFixture(t)
	m, s, res := bookTicket(t, f, "u1", 48*time.Hour)
	fs.failRefund = true

	_, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)

	assert.ErrorIs(t, err, studio.ErrDownstream)
	assert.Equal(t, "ticket refund failed", studio.Reason(err))

	got, err := f.mem.GetReservation(f.ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.ReservationConfirmed, got.Status)
	assert.Nil(t, got.CancelledAt)
	assert.Equal(t, studio.SlotBooked, f.slotStatus(t, s.ID))
	assert.Equal(t, 2, f.balance(t, m.ID))
}

func TestCancel_RestoreFails_ReturnsCompensationError(t *testing.T) {
	f, fs := newFaultyFixture(t)
	_, _, res := bookTicket(t, f, "u1", 48*time.Hour)
	fs.failRefund = true
	fs.failSetReservation = true

	_, err := f.engine.Lifecycle.Cancel(f.ctx, memberActor("u1"), res.ID)

	var compErr *studio.CompensationError
	require.ErrorAs(t, err, &compErr)
	require.Len(t, compErr.Failed, 1)
	assert.Equal(t, "restore reservation", compErr.Failed[0].Step)
}

// =============================================================================
// TRIAL BOOKINGS
// =============================================================================

func validGuest() studio.Guest {
	return studio.Guest{Name: "Mika Ito", Email: "mika@example.com", Phone: "090-1234-5678", Note: "beginner"}
}

func TestBookTrial_ClaimsSlotWithoutLedger(t *testing.T) {
	f := newFixture(t)
	s := f.slotAt(t, 24*time.Hour)

	res, err := f.engine.Lifecycle.BookTrial(f.ctx, s.ID, validGuest())
	require.NoError(t, err)

	assert.Equal(t, studio.ReservationTrial, res.Type)
	assert.Empty(t, res.MemberID)
	require.NotNil(t, res.Guest)
	assert.Equal(t, "Mika Ito", res.Guest.Name)
	assert.Equal(t, studio.SlotBooked, f.slotStatus(t, s.ID))

	_, err = f.engine.Lifecycle.BookTrial(f.ctx, s.ID, validGuest())
	assert.ErrorIs(t, err, studio.ErrConflict)
}

func TestBookTrial_CancelDoesNotRefund(t *testing.T) {
	f := newFixture(t)
	s := f.slotAt(t, 24*time.Hour)
	res, err := f.engine.Lifecycle.BookTrial(f.ctx, s.ID, validGuest())
	require.NoError(t, err)

	_, err = f.engine.Lifecycle.Cancel(f.ctx, admin, res.ID)
	require.NoError(t, err)

	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
	has, err := f.engine.Ledger.HasConsumption(f.ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestValidateGuest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *studio.Guest)
		reason string
	}{
		{"missing name", func(g *studio.Guest) { g.Name = "" }, "name is required"},
		{"long name", func(g *studio.Guest) { g.Name = strings.Repeat("a", 51) }, "name must be at most 50 characters"},
		{"bad email", func(g *studio.Guest) { g.Email = "mika@" }, "invalid email address"},
		{"short phone", func(g *studio.Guest) { g.Phone = "090-123" }, "invalid phone number"},
		{"letters in phone", func(g *studio.Guest) { g.Phone = "090-abcd-5678" }, "invalid phone number"},
		{"long note", func(g *studio.Guest) { g.Note = strings.Repeat("x", 501) }, "message must be at most 500 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGuest()
			tt.mutate(&g)
			err := studio.ValidateGuest(g)
			assert.ErrorIs(t, err, studio.ErrValidation)
			assert.Equal(t, tt.reason, studio.Reason(err))
		})
	}
	assert.NoError(t, studio.ValidateGuest(validGuest()))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestListForMember_OnlyOwnReservations(t *testing.T) {
	f := newFixture(t)
	_, _, mine := bookTicket(t, f, "u1", 24*time.Hour)
	bookTicket(t, f, "u2", 48*time.Hour)

	res, err := f.engine.Lifecycle.ListForMember(f.ctx, memberActor("u1"), "")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, mine.ID, res[0].ID)

	res, err = f.engine.Lifecycle.ListForMember(f.ctx, memberActor("u1"), studio.ReservationCancelled)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = f.engine.Lifecycle.ListForMember(f.ctx, studio.Actor{}, "")
	assert.ErrorIs(t, err, studio.ErrUnauthenticated)
}
