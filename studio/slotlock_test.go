package studio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/studio"
	"github.com/warp/studio-engine/studio/store"
)

func TestClaim_MovesAvailableToBooked(t *testing.T) {
	f := newFixture(t)
	s := f.slotAt(t, 24*time.Hour)

	claimed, err := f.engine.Locks.Claim(f.ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, studio.SlotBooked, claimed.Status)
	assert.Equal(t, studio.SlotBooked, f.slotStatus(t, s.ID))
}

func TestClaim_Rejections(t *testing.T) {
	f := newFixture(t)
	booked := f.slotAt(t, 24*time.Hour)
	_, err := f.engine.Locks.Claim(f.ctx, booked.ID)
	require.NoError(t, err)
	past := f.slotAt(t, -time.Hour)

	_, err = f.engine.Locks.Claim(f.ctx, booked.ID)
	assert.ErrorIs(t, err, studio.ErrConflict)

	_, err = f.engine.Locks.Claim(f.ctx, past.ID)
	assert.ErrorIs(t, err, studio.ErrDenied)
	assert.Equal(t, "cannot reserve a past slot", studio.Reason(err))

	_, err = f.engine.Locks.Claim(f.ctx, "missing")
	assert.ErrorIs(t, err, studio.ErrNotFound)

	_, err = f.engine.Locks.Claim(f.ctx, "")
	assert.ErrorIs(t, err, studio.ErrValidation)
}

func TestReleaseAndRevert(t *testing.T) {
	f := newFixture(t)
	s := f.slotAt(t, 24*time.Hour)
	_, err := f.engine.Locks.Claim(f.ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.Locks.Release(f.ctx, s.ID))
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))

	// idempotent
	require.NoError(t, f.engine.Locks.Release(f.ctx, s.ID))

	require.NoError(t, f.engine.Locks.Revert(f.ctx, s.ID))
	assert.Equal(t, studio.SlotBooked, f.slotStatus(t, s.ID))
}

func TestCreateSlot_ValidatesAndRegistersCalendarEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Locks.CreateSlot(f.ctx, baseTime.Add(2*time.Hour), baseTime.Add(time.Hour))
	assert.ErrorIs(t, err, studio.ErrValidation)
	assert.Equal(t, "start_at must be before end_at", studio.Reason(err))

	_, err = f.engine.Locks.CreateSlot(f.ctx, time.Time{}, baseTime)
	assert.ErrorIs(t, err, studio.ErrValidation)

	s := f.slotAt(t, 24*time.Hour)
	assert.Equal(t, studio.SlotAvailable, s.Status)
	assert.Equal(t, "ref-"+s.ID, s.ExternalRef)
	assert.Equal(t, []string{"created"}, f.notifier.ops())

	stored, err := f.mem.GetSlot(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "ref-"+s.ID, stored.ExternalRef)
}

func TestCreateSlot_InsertFailureSkipsCalendar(t *testing.T) {
	// GIVEN: The store rejects slot inserts
	// WHEN: Creating a slot
	// THEN: A downstream error, and no calendar event for a slot that does not exist

	mem := store.NewMemory()
	fs := &faultyStore{Memory: mem, failInsertSlot: true}
	f := newFixtureWithStore(t, fs, mem)

	_, err := f.engine.Locks.CreateSlot(f.ctx, baseTime.Add(24*time.Hour), baseTime.Add(25*time.Hour))

	assert.ErrorIs(t, err, studio.ErrDownstream)
	assert.Empty(t, f.notifier.ops())
	slots, err := mem.ListSlots(f.ctx, studio.SlotFilter{})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestCreateSlot_CalendarFailureIsNotFatal(t *testing.T) {
	// GIVEN: The calendar is down
	// WHEN: Creating a slot
	// THEN: The slot exists without an external reference

	f := newFixture(t)
	f.notifier.fail = true

	s := f.slotAt(t, 24*time.Hour)

	assert.Empty(t, s.ExternalRef)
	got, err := f.mem.GetSlot(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestDeleteSlot(t *testing.T) {
	f := newFixture(t)
	s := f.slotAt(t, 24*time.Hour)

	require.NoError(t, f.engine.Locks.DeleteSlot(f.ctx, s.ID))

	_, err := f.mem.GetSlot(f.ctx, s.ID)
	assert.ErrorIs(t, err, studio.ErrNotFound)
	assert.Equal(t, []string{"created", "deleted"}, f.notifier.ops())

	err = f.engine.Locks.DeleteSlot(f.ctx, s.ID)
	assert.ErrorIs(t, err, studio.ErrNotFound)
}

func TestDeleteSlot_WithCancelledReservation_Rejected(t *testing.T) {
	// GIVEN: A slot whose only reservation was cancelled
	// WHEN: Admin deletes the slot
	// THEN: Rejected, any reservation blocks deletion

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 1)
	s := f.slotAt(t, 24*time.Hour)

	res, err := f.engine.Lifecycle.Create(f.ctx, admin, m.ID, s.ID)
	require.NoError(t, err)
	_, err = f.engine.Lifecycle.Cancel(f.ctx, admin, res.ID)
	require.NoError(t, err)

	err = f.engine.Locks.DeleteSlot(f.ctx, s.ID)
	assert.ErrorIs(t, err, studio.ErrInvalidState)
	assert.Equal(t, "cannot delete a slot that has reservations", studio.Reason(err))

	_, err = f.mem.GetSlot(f.ctx, s.ID)
	assert.NoError(t, err)
}

func TestListSlots_FiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	later := f.slotAt(t, 72*time.Hour)
	sooner := f.slotAt(t, 24*time.Hour)
	f.slotAt(t, 30*24*time.Hour)

	to := baseTime.Add(5 * 24 * time.Hour)
	slots, err := f.engine.Locks.ListSlots(f.ctx, studio.SlotFilter{To: &to})
	require.NoError(t, err)

	require.Len(t, slots, 2)
	assert.Equal(t, sooner.ID, slots[0].ID)
	assert.Equal(t, later.ID, slots[1].ID)
}

func TestResyncCalendar_RegistersMissingReferences(t *testing.T) {
	// GIVEN: Three slots created while the calendar was down, one of them
	//        booked and one already in the past
	// WHEN: The calendar recovers and a resync runs
	// THEN: Only the two upcoming slots are registered and the booked one
	//       is also marked occupied

	f := newFixture(t)
	f.notifier.fail = true
	past := f.slotAt(t, time.Hour)
	open := f.slotAt(t, 24*time.Hour)
	booked := f.slotAt(t, 48*time.Hour)
	_, err := f.engine.Locks.Claim(f.ctx, booked.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	f.notifier.fail = false
	f.notifier.calls = nil

	n, err := f.engine.Locks.ResyncCalendar(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"created", "created", "occupied"}, f.notifier.ops())

	got, err := f.mem.GetSlot(f.ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, "ref-"+open.ID, got.ExternalRef)
	got, err = f.mem.GetSlot(f.ctx, past.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ExternalRef)

	// A second run finds nothing left to do.
	n, err = f.engine.Locks.ResyncCalendar(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResyncCalendar_NotifierStillDown(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	s := f.slotAt(t, 24*time.Hour)

	n, err := f.engine.Locks.ResyncCalendar(f.ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, studio.SlotAvailable, f.slotStatus(t, s.ID))
}
