/*
handlers.go - HTTP API handlers for the studio reservation engine

PURPOSE:
  Exposes the studio engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the studio services.

ENDPOINTS:
  Member (Bearer JWT):
    GET    /api/member/availability        Plan/ticket entitlement summary
    GET    /api/member/slots               Slots in a date range
    GET    /api/member/reservations        Own reservations (?status=)
    POST   /api/member/reservations        Book a slot
    DELETE /api/member/reservations/{id}   Cancel own booking

  Public:
    POST   /api/trial/bookings             Non-member trial booking

  Admin (role=admin): see admin.go

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

ARCHITECTURE:
  Handler holds the engine. Every business rule lives in package studio;
  handlers only decode, resolve the actor and map errors (errors.go).

SEE ALSO:
  - dto.go: Request/response data structures
  - admin.go: Administrator handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/studio-engine/factory"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// resetter is implemented by stores that can be wiped for demo scenarios.
type resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine      *studio.Engine
	PlanFactory *factory.PlanFactory
	Scheduler   *CalendarSyncScheduler // optional

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the engine.
func NewHandler(engine *studio.Engine) *Handler {
	return &Handler{
		Engine:      engine,
		PlanFactory: factory.NewPlanFactory(),
	}
}

func (h *Handler) now() time.Time { return h.Engine.Clock.Now() }

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// GetAvailability returns the signed-in member's entitlement summary.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := h.Engine.Members.MemberByAuthUser(ctx, ActorFrom(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	av, err := h.Engine.Resolver.Availability(ctx, member.ID, h.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityDTO(av))
}

// ListMemberSlots returns slots between ?start and ?end. Without start the
// range begins now; without end it spans 31 days.
func (h *Handler) ListMemberSlots(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start", nil)
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end", nil)
		return
	}
	if start == nil {
		now := h.now()
		start = &now
	}
	if end == nil {
		e := start.AddDate(0, 0, 31)
		end = &e
	}

	slots, err := h.Engine.Locks.ListSlots(r.Context(), studio.SlotFilter{From: start, To: end})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTOs(slots))
}

// ListMemberReservations returns the member's own reservations.
func (h *Handler) ListMemberReservations(w http.ResponseWriter, r *http.Request) {
	status, ok := parseReservationStatus(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, "status must be confirmed or cancelled", nil)
		return
	}
	ctx := r.Context()
	res, err := h.Engine.Lifecycle.ListForMember(ctx, ActorFrom(ctx), status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(res))
}

// CreateReservation books a slot for a member.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	res, err := h.Engine.Lifecycle.Create(ctx, ActorFrom(ctx), req.MemberID, req.SlotID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

// CancelReservation cancels a booking. Used by both the member and the
// admin route; the actor's role decides which checks apply.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.Engine.Lifecycle.Cancel(ctx, ActorFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "reservation cancelled",
		"reservation": toReservationDTO(res),
	})
}

// =============================================================================
// TRIAL BOOKING
// =============================================================================

// ListTrialSlots returns the bookable slots of ?date=YYYY-MM-DD (UTC day)
// for the public trial form. Slots that already started are left out.
func (h *Handler) ListTrialSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required", nil)
		return
	}
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, use YYYY-MM-DD", nil)
		return
	}
	from := day
	to := day.Add(24*time.Hour - time.Nanosecond)

	slots, err := h.Engine.Locks.ListSlots(r.Context(), studio.SlotFilter{From: &from, To: &to, Status: studio.SlotAvailable})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	now := h.now()
	open := make([]studio.Slot, 0, len(slots))
	for _, s := range slots {
		if s.IsPast(now) {
			continue
		}
		s.ExternalRef = ""
		open = append(open, s)
	}
	writeJSON(w, http.StatusOK, TrialSlotsDTO{Date: date, Slots: toSlotDTOs(open)})
}

// CreateTrialBooking books a slot for a non-member guest.
func (h *Handler) CreateTrialBooking(w http.ResponseWriter, r *http.Request) {
	var req TrialBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	guest := studio.Guest{Name: req.Name, Email: req.Email, Phone: req.Phone, Note: req.Message}
	res, err := h.Engine.Lifecycle.BookTrial(r.Context(), req.SlotID, guest)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: codeForStatus(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return false
	}
	return true
}

// parseTimeParam accepts RFC 3339 timestamps or YYYY-MM-DD dates (UTC
// midnight). Empty input yields nil.
func parseTimeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseReservationStatus(s string) (studio.ReservationStatus, bool) {
	switch studio.ReservationStatus(s) {
	case "", studio.ReservationConfirmed, studio.ReservationCancelled:
		return studio.ReservationStatus(s), true
	}
	return "", false
}
