// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements studio.Store. Each method holds the lock for exactly
// one row operation, so CompareAndSet* behave like single-row conditional
// updates and nothing spans rows.
type Memory struct {
	mu           sync.RWMutex
	slots        map[string]studio.Slot
	reservations map[string]studio.Reservation
	tickets      []studio.TicketLogEntry
	plans        map[string]studio.Plan
	memberPlans  map[string]studio.MemberPlan
	members      map[string]studio.Member
}

var _ studio.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		slots:        make(map[string]studio.Slot),
		reservations: make(map[string]studio.Reservation),
		plans:        make(map[string]studio.Plan),
		memberPlans:  make(map[string]studio.MemberPlan),
		members:      make(map[string]studio.Member),
	}
}

// Reset drops every row.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make(map[string]studio.Slot)
	m.reservations = make(map[string]studio.Reservation)
	m.tickets = nil
	m.plans = make(map[string]studio.Plan)
	m.memberPlans = make(map[string]studio.MemberPlan)
	m.members = make(map[string]studio.Member)
	return nil
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, studio.ErrNotFound)
}

// =============================================================================
// SLOTS
// =============================================================================

func (m *Memory) GetSlot(_ context.Context, id string) (studio.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return studio.Slot{}, notFound("slot", id)
	}
	return s, nil
}

func (m *Memory) ListSlots(_ context.Context, f studio.SlotFilter) ([]studio.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []studio.Slot
	for _, s := range m.slots {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if !within(s.StartAt, f.From, f.To) {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

func (m *Memory) InsertSlot(_ context.Context, s studio.Slot) (studio.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.slots[s.ID]; exists {
		return studio.Slot{}, fmt.Errorf("slot %s already exists", s.ID)
	}
	m.slots[s.ID] = s
	return s, nil
}

func (m *Memory) CompareAndSetSlotStatus(_ context.Context, id string, expected, next studio.SlotStatus, at time.Time) (studio.Slot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || s.Status != expected {
		return studio.Slot{}, false, nil
	}
	s.Status = next
	s.UpdatedAt = at
	m.slots[id] = s
	return s, true, nil
}

func (m *Memory) SetSlotStatus(_ context.Context, id string, next studio.SlotStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil
	}
	s.Status = next
	s.UpdatedAt = at
	m.slots[id] = s
	return nil
}

func (m *Memory) SetSlotExternalRef(_ context.Context, id, ref string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil
	}
	s.ExternalRef = ref
	s.UpdatedAt = at
	m.slots[id] = s
	return nil
}

func (m *Memory) DeleteSlot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, id)
	return nil
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func (m *Memory) GetReservation(_ context.Context, id string) (studio.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return studio.Reservation{}, notFound("reservation", id)
	}
	return cloneReservation(r), nil
}

func (m *Memory) ListReservations(_ context.Context, f studio.ReservationFilter) ([]studio.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []studio.Reservation
	for _, r := range m.reservations {
		if f.MemberID != "" && r.MemberID != f.MemberID {
			continue
		}
		if f.SlotID != "" && r.SlotID != f.SlotID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.From != nil || f.To != nil {
			s, ok := m.slots[r.SlotID]
			if !ok || !within(s.StartAt, f.From, f.To) {
				continue
			}
		}
		result = append(result, cloneReservation(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) InsertReservation(_ context.Context, r studio.Reservation) (studio.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reservations[r.ID]; exists {
		return studio.Reservation{}, fmt.Errorf("reservation %s already exists", r.ID)
	}
	if _, ok := m.slots[r.SlotID]; !ok {
		return studio.Reservation{}, fmt.Errorf("reservation %s: unknown slot %s", r.ID, r.SlotID)
	}
	r = cloneReservation(r)
	m.reservations[r.ID] = r
	return cloneReservation(r), nil
}

func (m *Memory) CompareAndSetReservation(_ context.Context, id string, expected studio.ReservationStatus, patch studio.ReservationPatch) (studio.Reservation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Status != expected {
		return studio.Reservation{}, false, nil
	}
	r = applyPatch(r, patch)
	m.reservations[id] = r
	return cloneReservation(r), true, nil
}

func (m *Memory) SetReservation(_ context.Context, id string, patch studio.ReservationPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return notFound("reservation", id)
	}
	m.reservations[id] = applyPatch(r, patch)
	return nil
}

func (m *Memory) DeleteReservation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, id)
	return nil
}

func (m *Memory) CountConfirmed(_ context.Context, memberID string, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.reservations {
		if r.MemberID != memberID || r.Status != studio.ReservationConfirmed {
			continue
		}
		s, ok := m.slots[r.SlotID]
		if ok && !s.StartAt.Before(from) && s.StartAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountBySlot(_ context.Context, slotID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.reservations {
		if r.SlotID == slotID {
			n++
		}
	}
	return n, nil
}

func applyPatch(r studio.Reservation, p studio.ReservationPatch) studio.Reservation {
	r.Status = p.Status
	r.CancelledAt = nil
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		r.CancelledAt = &t
	}
	r.UpdatedAt = p.UpdatedAt
	return r
}

func cloneReservation(r studio.Reservation) studio.Reservation {
	if r.Guest != nil {
		g := *r.Guest
		r.Guest = &g
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		r.CancelledAt = &t
	}
	return r
}

// =============================================================================
// TICKET LOG (append-only)
// =============================================================================

func (m *Memory) AppendTicketLog(_ context.Context, e studio.TicketLogEntry) (studio.TicketLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Insert keeping CreatedAt order
	i := sort.Search(len(m.tickets), func(i int) bool {
		return m.tickets[i].CreatedAt.After(e.CreatedAt)
	})
	m.tickets = append(m.tickets, studio.TicketLogEntry{})
	copy(m.tickets[i+1:], m.tickets[i:])
	m.tickets[i] = e
	return e, nil
}

func (m *Memory) ListTicketLogs(_ context.Context, memberID string) ([]studio.TicketLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []studio.TicketLogEntry
	for _, e := range m.tickets {
		if e.MemberID == memberID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) ListTicketLogsByReservation(_ context.Context, reservationID string) ([]studio.TicketLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []studio.TicketLogEntry
	for _, e := range m.tickets {
		if reservationID != "" && e.ReservationID == reservationID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) DeleteTicketLog(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.tickets {
		if e.ID == id {
			m.tickets = append(m.tickets[:i], m.tickets[i+1:]...)
			return nil
		}
	}
	return nil
}

// =============================================================================
// PLANS
// =============================================================================

func (m *Memory) GetPlan(_ context.Context, id string) (studio.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return studio.Plan{}, notFound("plan", id)
	}
	return p, nil
}

func (m *Memory) ListPlans(_ context.Context) ([]studio.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]studio.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) InsertPlan(_ context.Context, p studio.Plan) (studio.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plans[p.ID]; exists {
		return studio.Plan{}, fmt.Errorf("plan %s already exists", p.ID)
	}
	m.plans[p.ID] = p
	return p, nil
}

func (m *Memory) UpdatePlan(_ context.Context, p studio.Plan) (studio.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[p.ID]; !ok {
		return studio.Plan{}, notFound("plan", p.ID)
	}
	m.plans[p.ID] = p
	return p, nil
}

func (m *Memory) ActiveMemberPlan(_ context.Context, memberID string) (*studio.MemberPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active *studio.MemberPlan
	for _, mp := range m.memberPlans {
		if mp.MemberID != memberID || mp.Status != studio.MemberPlanActive {
			continue
		}
		if active == nil || mp.CreatedAt.After(active.CreatedAt) {
			found := mp
			active = &found
		}
	}
	return active, nil
}

func (m *Memory) InsertMemberPlan(_ context.Context, mp studio.MemberPlan) (studio.MemberPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.memberPlans[mp.ID]; exists {
		return studio.MemberPlan{}, fmt.Errorf("member plan %s already exists", mp.ID)
	}
	if mp.Status == studio.MemberPlanActive {
		for _, other := range m.memberPlans {
			if other.MemberID == mp.MemberID && other.Status == studio.MemberPlanActive {
				return studio.MemberPlan{}, fmt.Errorf("active plan for member %s: %w", mp.MemberID, studio.ErrConflict)
			}
		}
	}
	m.memberPlans[mp.ID] = mp
	return mp, nil
}

func (m *Memory) CancelActiveMemberPlans(_ context.Context, memberID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, mp := range m.memberPlans {
		if mp.MemberID == memberID && mp.Status == studio.MemberPlanActive {
			mp.Status = studio.MemberPlanCancelled
			t := at
			mp.CancelledAt = &t
			m.memberPlans[id] = mp
			n++
		}
	}
	return n, nil
}

func (m *Memory) CancelMemberPlan(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.memberPlans[id]
	if !ok {
		return notFound("member plan", id)
	}
	mp.Status = studio.MemberPlanCancelled
	t := at
	mp.CancelledAt = &t
	m.memberPlans[id] = mp
	return nil
}

// =============================================================================
// MEMBERS
// =============================================================================

func (m *Memory) GetMember(_ context.Context, id string) (studio.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.members[id]
	if !ok {
		return studio.Member{}, notFound("member", id)
	}
	return mb, nil
}

func (m *Memory) GetMemberByAuthUser(_ context.Context, authUserID string) (studio.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if authUserID != "" {
		for _, mb := range m.members {
			if mb.AuthUserID == authUserID {
				return mb, nil
			}
		}
	}
	return studio.Member{}, notFound("member for user", authUserID)
}

func (m *Memory) ListMembers(_ context.Context) ([]studio.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]studio.Member, 0, len(m.members))
	for _, mb := range m.members {
		result = append(result, mb)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) InsertMember(_ context.Context, mb studio.Member) (studio.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.members[mb.ID]; exists {
		return studio.Member{}, fmt.Errorf("member %s already exists", mb.ID)
	}
	m.members[mb.ID] = mb
	return mb, nil
}

func (m *Memory) UpdateMember(_ context.Context, mb studio.Member) (studio.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.members[mb.ID]
	if !ok {
		return studio.Member{}, notFound("member", mb.ID)
	}
	cur.Name = mb.Name
	cur.Email = mb.Email
	cur.Phone = mb.Phone
	cur.Status = mb.Status
	cur.Note = mb.Note
	m.members[mb.ID] = cur
	return cur, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func within(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}
