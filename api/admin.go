package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/studio-engine/factory"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// ADMIN: SLOTS
// =============================================================================

// ListSlots returns slots filtered by ?from, ?to and ?status.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from", nil)
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to", nil)
		return
	}
	slots, err := h.Engine.Locks.ListSlots(r.Context(), studio.SlotFilter{
		From:   from,
		To:     to,
		Status: studio.SlotStatus(q.Get("status")),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTOs(slots))
}

func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req CreateSlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := parseTimeParam(req.StartAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_at", nil)
		return
	}
	end, err := parseTimeParam(req.EndAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_at", nil)
		return
	}
	if start == nil || end == nil {
		writeError(w, http.StatusBadRequest, "start_at and end_at are required", nil)
		return
	}

	slot, err := h.Engine.Locks.CreateSlot(r.Context(), *start, *end)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotDTO(slot))
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Locks.DeleteSlot(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "slot deleted"})
}

// =============================================================================
// ADMIN: RESERVATIONS
// =============================================================================

// ListReservations filters by ?status, ?type, ?member_id, ?slot_id and the
// slot date range ?from / ?to.
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, ok := parseReservationStatus(q.Get("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, "status must be confirmed or cancelled", nil)
		return
	}
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from", nil)
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to", nil)
		return
	}

	res, err := h.Engine.Lifecycle.ListAll(r.Context(), studio.ReservationFilter{
		MemberID: q.Get("member_id"),
		SlotID:   q.Get("slot_id"),
		Status:   status,
		Type:     studio.ReservationType(q.Get("type")),
		From:     from,
		To:       to,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(res))
}

// =============================================================================
// ADMIN: TICKETS
// =============================================================================

// ListTickets returns a member's ledger, newest first.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.Tickets.History(r.Context(), r.URL.Query().Get("member_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]TicketLogDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toTicketLogDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTicketOperation grants, consumes or refunds tickets by hand.
func (h *Handler) CreateTicketOperation(w http.ResponseWriter, r *http.Request) {
	var req TicketOperationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	expires, err := parseTimeParam(req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expires_at", nil)
		return
	}

	entry, err := h.Engine.Tickets.Apply(r.Context(), studio.TicketOperation{
		MemberID:  req.MemberID,
		Type:      studio.TicketType(req.Type),
		Amount:    req.Amount,
		Reason:    req.Reason,
		ExpiresAt: expires,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTicketLogDTO(entry))
}

// =============================================================================
// ADMIN: PLANS
// =============================================================================

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Engine.Plans.ListPlans(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]PlanDTO, 0, len(plans))
	for _, p := range plans {
		dtos = append(dtos, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan creates a plan from its JSON definition.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = ""
	plan, err := h.PlanFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	plan, err = h.Engine.Plans.CreatePlan(r.Context(), plan)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(plan))
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	plan, err := h.PlanFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	plan, err = h.Engine.Plans.UpdatePlan(r.Context(), plan)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// AssignPlan replaces the member's active plan.
func (h *Handler) AssignPlan(w http.ResponseWriter, r *http.Request) {
	var req AssignPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mp, err := h.Engine.Plans.AssignPlan(r.Context(), req.MemberID, req.PlanID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberPlanDTO(mp))
}

func (h *Handler) CancelMemberPlan(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Plans.CancelMemberPlan(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "member plan cancelled"})
}

// =============================================================================
// ADMIN: MEMBERS
// =============================================================================

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Engine.Members.ListMembers(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, toMemberDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.Engine.Members.CreateMember(r.Context(), studio.Member{
		AuthUserID: req.AuthUserID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Engine.Members.GetMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// UpdateMember edits a member's profile and status.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := studio.MemberUpdate{Name: req.Name, Email: req.Email, Phone: req.Phone, Note: req.Note}
	if req.Status != nil {
		status, err := studio.ParseMemberStatus(*req.Status)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		u.Status = &status
	}
	m, err := h.Engine.Members.UpdateMember(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// GetMemberBalance returns the member's current ticket balance.
func (h *Handler) GetMemberBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	balance, err := h.Engine.Tickets.Balance(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{MemberID: id, Balance: balance})
}

// =============================================================================
// ADMIN: CALENDAR
// =============================================================================

// ResyncCalendar runs a calendar resync pass immediately.
func (h *Handler) ResyncCalendar(w http.ResponseWriter, r *http.Request) {
	var run SyncRun
	if h.Scheduler != nil {
		run = h.Scheduler.RunNow(r.Context())
	} else {
		n, err := h.Engine.Locks.ResyncCalendar(r.Context())
		run = SyncRun{At: h.now(), Synced: n, Err: err}
	}
	if run.Err != nil {
		writeEngineError(w, run.Err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarSyncDTO(run))
}

// GetCalendarSync reports the scheduler's last and next run.
func (h *Handler) GetCalendarSync(w http.ResponseWriter, r *http.Request) {
	var dto CalendarSyncDTO
	if h.Scheduler != nil {
		if last := h.Scheduler.LastRun(); last != nil {
			dto = toCalendarSyncDTO(*last)
		}
		if h.Scheduler.Enabled {
			next := h.Scheduler.GetNextRunTime()
			dto.NextRunAt = formatTimePtr(&next)
		}
	}
	writeJSON(w, http.StatusOK, dto)
}
