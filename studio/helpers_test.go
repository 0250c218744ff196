package studio_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/studio"
	"github.com/warp/studio-engine/studio/store"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

// baseTime is Monday 2025-03-10 09:00 UTC.
var baseTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

var admin = studio.Actor{UserID: "admin-1", Role: studio.RoleAdmin}

func memberActor(authUser string) studio.Actor {
	return studio.Actor{UserID: authUser, Role: studio.RoleMember}
}

type fixture struct {
	ctx      context.Context
	clock    *studio.FixedClock
	mem      *store.Memory
	notifier *recordingNotifier
	engine   *studio.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemory(), nil)
}

// newFixtureWithStore builds an engine over s; mem is the memory store
// s wraps (nil when s is the memory store itself).
func newFixtureWithStore(t *testing.T, s studio.Store, mem *store.Memory) *fixture {
	t.Helper()
	if mem == nil {
		mem = s.(*store.Memory)
	}
	clock := studio.NewFixedClock(baseTime)
	notifier := newRecordingNotifier()
	return &fixture{
		ctx:      context.Background(),
		clock:    clock,
		mem:      mem,
		notifier: notifier,
		engine:   studio.New(s, studio.Options{Clock: clock, Notifier: notifier}),
	}
}

// slotAt creates a one-hour slot starting offset after the fixture clock.
func (f *fixture) slotAt(t *testing.T, offset time.Duration) studio.Slot {
	t.Helper()
	start := f.clock.Now().Add(offset)
	s, err := f.engine.Locks.CreateSlot(f.ctx, start, start.Add(time.Hour))
	require.NoError(t, err)
	return s
}

func (f *fixture) member(t *testing.T, authUser, name string) studio.Member {
	t.Helper()
	m, err := f.engine.Members.CreateMember(f.ctx, studio.Member{AuthUserID: authUser, Name: name})
	require.NoError(t, err)
	return m
}

func (f *fixture) grant(t *testing.T, memberID string, n int) {
	t.Helper()
	_, err := f.engine.Tickets.Apply(f.ctx, studio.TicketOperation{
		MemberID: memberID,
		Type:     studio.TicketGrant,
		Amount:   n,
		Reason:   "test grant",
	})
	require.NoError(t, err)
}

// monthlyPlan creates a plan with the allotment and assigns it to memberID.
func (f *fixture) monthlyPlan(t *testing.T, memberID string, perMonth int) studio.Plan {
	t.Helper()
	p, err := f.engine.Plans.CreatePlan(f.ctx, studio.Plan{Name: "Monthly", TicketsPerMonth: perMonth, IsActive: true})
	require.NoError(t, err)
	_, err = f.engine.Plans.AssignPlan(f.ctx, memberID, p.ID)
	require.NoError(t, err)
	return p
}

func (f *fixture) balance(t *testing.T, memberID string) int {
	t.Helper()
	b, err := f.engine.Ledger.CurrentBalance(f.ctx, memberID)
	require.NoError(t, err)
	return b
}

func (f *fixture) slotStatus(t *testing.T, slotID string) studio.SlotStatus {
	t.Helper()
	s, err := f.mem.GetSlot(f.ctx, slotID)
	require.NoError(t, err)
	return s.Status
}

// =============================================================================
// RECORDING NOTIFIER
// =============================================================================

type notifyCall struct {
	Op    string
	Ref   string
	Label string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	fail  bool
}

func newRecordingNotifier() *recordingNotifier { return &recordingNotifier{} }

func (n *recordingNotifier) record(c notifyCall) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, c)
	if n.fail {
		return errors.New("calendar unavailable")
	}
	return nil
}

func (n *recordingNotifier) SlotCreated(_ context.Context, s studio.Slot) (string, error) {
	if err := n.record(notifyCall{Op: "created", Ref: "ref-" + s.ID}); err != nil {
		return "", err
	}
	return "ref-" + s.ID, nil
}

func (n *recordingNotifier) SlotOccupied(_ context.Context, ref, label string) error {
	return n.record(notifyCall{Op: "occupied", Ref: ref, Label: label})
}

func (n *recordingNotifier) SlotFreed(_ context.Context, ref string) error {
	return n.record(notifyCall{Op: "freed", Ref: ref})
}

func (n *recordingNotifier) SlotDeleted(_ context.Context, ref string) error {
	return n.record(notifyCall{Op: "deleted", Ref: ref})
}

func (n *recordingNotifier) ops() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, c := range n.calls {
		out = append(out, c.Op)
	}
	return out
}

// =============================================================================
// FAILURE-INJECTING STORE
// =============================================================================

var errInjected = errors.New("injected store failure")

// faultyStore fails selected writes of the wrapped memory store.
type faultyStore struct {
	*store.Memory

	failConsume           bool
	failRefund            bool
	failDeleteReservation bool
	failSetReservation    bool
	failInsertReservation bool
	failInsertSlot        bool
	skipCancelPlans       bool
}

// CancelActiveMemberPlans with skipCancelPlans behaves as if another
// assignment inserted its plan right after the cancel.
func (s *faultyStore) CancelActiveMemberPlans(ctx context.Context, memberID string, at time.Time) (int, error) {
	if s.skipCancelPlans {
		return 0, nil
	}
	return s.Memory.CancelActiveMemberPlans(ctx, memberID, at)
}

func (s *faultyStore) InsertSlot(ctx context.Context, slot studio.Slot) (studio.Slot, error) {
	if s.failInsertSlot {
		return studio.Slot{}, errInjected
	}
	return s.Memory.InsertSlot(ctx, slot)
}

func (s *faultyStore) AppendTicketLog(ctx context.Context, e studio.TicketLogEntry) (studio.TicketLogEntry, error) {
	if s.failConsume && e.Type == studio.TicketConsume && e.ReservationID != "" {
		return studio.TicketLogEntry{}, errInjected
	}
	if s.failRefund && e.Type == studio.TicketRefund {
		return studio.TicketLogEntry{}, errInjected
	}
	return s.Memory.AppendTicketLog(ctx, e)
}

func (s *faultyStore) DeleteReservation(ctx context.Context, id string) error {
	if s.failDeleteReservation {
		return errInjected
	}
	return s.Memory.DeleteReservation(ctx, id)
}

func (s *faultyStore) SetReservation(ctx context.Context, id string, patch studio.ReservationPatch) error {
	if s.failSetReservation {
		return errInjected
	}
	return s.Memory.SetReservation(ctx, id, patch)
}

func (s *faultyStore) InsertReservation(ctx context.Context, r studio.Reservation) (studio.Reservation, error) {
	if s.failInsertReservation {
		return studio.Reservation{}, errInjected
	}
	return s.Memory.InsertReservation(ctx, r)
}

func newFaultyFixture(t *testing.T) (*fixture, *faultyStore) {
	t.Helper()
	mem := store.NewMemory()
	fs := &faultyStore{Memory: mem}
	return newFixtureWithStore(t, fs, mem), fs
}
