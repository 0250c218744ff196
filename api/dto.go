/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Slots:         SlotDTO, CreateSlotRequest
  Reservations:  ReservationDTO, GuestDTO, CreateReservationRequest,
                 TrialBookingRequest
  Tickets:       TicketLogDTO, TicketOperationRequest, BalanceDTO
  Plans:         PlanDTO (factory.PlanJSON), MemberPlanDTO, AssignPlanRequest
  Members:       MemberDTO, CreateMemberRequest, AvailabilityDTO
  Calendar:      CalendarSyncDTO
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by the studio services, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/warp/studio-engine/factory"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// SLOTS
// =============================================================================

type SlotDTO struct {
	ID          string `json:"id"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at"`
	Status      string `json:"status"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// TrialSlotsDTO is the public list of open slots on one day.
type TrialSlotsDTO struct {
	Date  string    `json:"date"`
	Slots []SlotDTO `json:"slots"`
}

type CreateSlotRequest struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

// =============================================================================
// RESERVATIONS
// =============================================================================

type GuestDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Note  string `json:"message,omitempty"`
}

type ReservationDTO struct {
	ID          string    `json:"id"`
	SlotID      string    `json:"slot_id"`
	MemberID    string    `json:"member_id,omitempty"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	ChargeMode  string    `json:"charge_mode,omitempty"`
	Guest       *GuestDTO `json:"guest,omitempty"`
	MemberNote  string    `json:"member_note,omitempty"`
	CancelledAt *string   `json:"cancelled_at,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

type CreateReservationRequest struct {
	SlotID   string `json:"slotId"`
	MemberID string `json:"memberId"`
}

type TrialBookingRequest struct {
	SlotID  string `json:"slotId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// =============================================================================
// TICKETS
// =============================================================================

type TicketLogDTO struct {
	ID            string  `json:"id"`
	MemberID      string  `json:"member_id"`
	Type          string  `json:"type"`
	Amount        int     `json:"amount"`
	Reason        string  `json:"reason,omitempty"`
	ReservationID string  `json:"reservation_id,omitempty"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type TicketOperationRequest struct {
	MemberID  string `json:"member_id"`
	Type      string `json:"type"`
	Amount    int    `json:"amount"`
	Reason    string `json:"reason"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type BalanceDTO struct {
	MemberID string `json:"member_id"`
	Balance  int    `json:"balance"`
}

// =============================================================================
// PLANS
// =============================================================================

// PlanDTO is the plan catalog entry; the JSON shape is shared with the factory.
type PlanDTO struct {
	factory.PlanJSON
	CreatedAt string `json:"created_at,omitempty"`
}

type MemberPlanDTO struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"member_id"`
	PlanID      string  `json:"plan_id"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	CancelledAt *string `json:"cancelled_at,omitempty"`
}

type AssignPlanRequest struct {
	MemberID string `json:"member_id"`
	PlanID   string `json:"plan_id"`
}

// =============================================================================
// MEMBERS
// =============================================================================

type MemberDTO struct {
	ID         string `json:"id"`
	AuthUserID string `json:"auth_user_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Status     string `json:"status"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type CreateMemberRequest struct {
	AuthUserID string `json:"auth_user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// UpdateMemberRequest edits a member. Omitted fields keep their value.
type UpdateMemberRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	Status *string `json:"status"`
	Note   *string `json:"note"`
}

// AvailabilityDTO is the member's "what can I still book" view.
type AvailabilityDTO struct {
	MemberID      string `json:"member_id"`
	Mode          string `json:"mode"`
	TicketBalance int    `json:"ticket_balance"`

	PlanName               string `json:"plan_name,omitempty"`
	TicketsPerMonth        int    `json:"tickets_per_month,omitempty"`
	PeriodStart            string `json:"period_start,omitempty"`
	PeriodEnd              string `json:"period_end,omitempty"`
	CurrentPeriodUsed      int    `json:"current_period_used"`
	CurrentPeriodRemaining int    `json:"current_period_remaining"`
	NextPeriodRemaining    int    `json:"next_period_remaining"`
}

// =============================================================================
// CALENDAR
// =============================================================================

type CalendarSyncDTO struct {
	LastRunAt *string `json:"last_run_at,omitempty"`
	Synced    int     `json:"synced"`
	Error     string  `json:"error,omitempty"`
	NextRunAt *string `json:"next_run_at,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toSlotDTO(s studio.Slot) SlotDTO {
	return SlotDTO{
		ID:          s.ID,
		StartAt:     formatTime(s.StartAt),
		EndAt:       formatTime(s.EndAt),
		Status:      string(s.Status),
		ExternalRef: s.ExternalRef,
	}
}

func toSlotDTOs(slots []studio.Slot) []SlotDTO {
	out := make([]SlotDTO, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotDTO(s))
	}
	return out
}

func toReservationDTO(r studio.Reservation) ReservationDTO {
	dto := ReservationDTO{
		ID:          r.ID,
		SlotID:      r.SlotID,
		MemberID:    r.MemberID,
		Type:        string(r.Type),
		Status:      string(r.Status),
		ChargeMode:  string(r.ChargeMode),
		MemberNote:  r.MemberNote,
		CancelledAt: formatTimePtr(r.CancelledAt),
		CreatedAt:   formatTime(r.CreatedAt),
	}
	if r.Guest != nil {
		dto.Guest = &GuestDTO{Name: r.Guest.Name, Email: r.Guest.Email, Phone: r.Guest.Phone, Note: r.Guest.Note}
	}
	return dto
}

func toReservationDTOs(rs []studio.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationDTO(r))
	}
	return out
}

func toTicketLogDTO(e studio.TicketLogEntry) TicketLogDTO {
	return TicketLogDTO{
		ID:            e.ID,
		MemberID:      e.MemberID,
		Type:          string(e.Type),
		Amount:        e.Amount,
		Reason:        e.Reason,
		ReservationID: e.ReservationID,
		ExpiresAt:     formatTimePtr(e.ExpiresAt),
		CreatedAt:     formatTime(e.CreatedAt),
	}
}

func toPlanDTO(p studio.Plan) PlanDTO {
	return PlanDTO{
		PlanJSON:  factory.NewPlanFactory().ToJSON(p),
		CreatedAt: formatTime(p.CreatedAt),
	}
}

func toMemberPlanDTO(mp studio.MemberPlan) MemberPlanDTO {
	return MemberPlanDTO{
		ID:          mp.ID,
		MemberID:    mp.MemberID,
		PlanID:      mp.PlanID,
		Status:      string(mp.Status),
		StartedAt:   formatTime(mp.StartedAt),
		CancelledAt: formatTimePtr(mp.CancelledAt),
	}
}

func toMemberDTO(m studio.Member) MemberDTO {
	return MemberDTO{
		ID:         m.ID,
		AuthUserID: m.AuthUserID,
		Name:       m.Name,
		Email:      m.Email,
		Phone:      m.Phone,
		Status:     string(m.Status),
		Note:       m.Note,
		CreatedAt:  formatTime(m.CreatedAt),
	}
}

func toAvailabilityDTO(av studio.Availability) AvailabilityDTO {
	dto := AvailabilityDTO{
		MemberID:               av.MemberID,
		Mode:                   string(av.Mode),
		TicketBalance:          av.TicketBalance,
		PlanName:               av.PlanName,
		TicketsPerMonth:        av.TicketsPerMonth,
		CurrentPeriodUsed:      av.CurrentPeriodUsed,
		CurrentPeriodRemaining: av.CurrentPeriodRemaining,
		NextPeriodRemaining:    av.NextPeriodRemaining,
	}
	if av.Mode == studio.ModeMonthly {
		dto.PeriodStart = formatTime(av.CurrentPeriod.Start)
		dto.PeriodEnd = formatTime(av.CurrentPeriod.End)
	}
	return dto
}

func toCalendarSyncDTO(run SyncRun) CalendarSyncDTO {
	dto := CalendarSyncDTO{LastRunAt: formatTimePtr(&run.At), Synced: run.Synced}
	if run.Err != nil {
		dto.Error = run.Err.Error()
	}
	return dto
}
