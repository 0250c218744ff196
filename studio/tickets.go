package studio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ADMIN TICKET OPERATIONS
// =============================================================================

// TicketOperation is an administrator's manual ledger adjustment. Amount
// may be given with either sign; the type decides the stored sign.
type TicketOperation struct {
	MemberID  string
	Type      TicketType
	Amount    int
	Reason    string
	ExpiresAt *time.Time
}

type TicketService struct {
	Ledger  *TicketLedger
	Members MemberStore
}

// Apply validates op, checks the balance for consumes and appends the entry.
// The balance check and the append are not atomic: two concurrent consumes
// for one member may both pass the check.
func (s *TicketService) Apply(ctx context.Context, op TicketOperation) (TicketLogEntry, error) {
	if op.MemberID == "" {
		return TicketLogEntry{}, newError(ErrValidation, "member_id is required")
	}
	if op.Type == "" {
		return TicketLogEntry{}, newError(ErrValidation, "type is required")
	}
	if !op.Type.Valid() {
		return TicketLogEntry{}, newError(ErrValidation, "type must be one of grant, consume, refund")
	}
	if op.Amount == 0 {
		return TicketLogEntry{}, newError(ErrValidation, "amount must be non-zero")
	}

	if _, err := s.Members.GetMember(ctx, op.MemberID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return TicketLogEntry{}, newError(ErrNotFound, "member not found")
		}
		return TicketLogEntry{}, err
	}

	n := op.Amount
	if n < 0 {
		n = -n
	}

	if op.Type == TicketConsume {
		balance, err := s.Ledger.CurrentBalance(ctx, op.MemberID)
		if err != nil {
			return TicketLogEntry{}, fmt.Errorf("ticket balance: %w", err)
		}
		if balance < n {
			return TicketLogEntry{}, &InsufficientBalanceError{MemberID: op.MemberID, Available: balance, Requested: n}
		}
		n = -n
	}

	entry, err := s.Ledger.Append(ctx, TicketLogEntry{
		MemberID:  op.MemberID,
		Type:      op.Type,
		Amount:    n,
		Reason:    op.Reason,
		ExpiresAt: op.ExpiresAt,
	})
	if err != nil {
		if IsClientError(err) {
			return TicketLogEntry{}, err
		}
		return TicketLogEntry{}, downstream("ticket log insert failed", err)
	}
	return entry, nil
}

// History lists a member's ledger, newest first.
func (s *TicketService) History(ctx context.Context, memberID string) ([]TicketLogEntry, error) {
	if memberID == "" {
		return nil, newError(ErrValidation, "member_id is required")
	}
	return s.Ledger.History(ctx, memberID)
}

// Balance returns the member's current balance.
func (s *TicketService) Balance(ctx context.Context, memberID string) (int, error) {
	if _, err := s.Members.GetMember(ctx, memberID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, newError(ErrNotFound, "member not found")
		}
		return 0, err
	}
	return s.Ledger.CurrentBalance(ctx, memberID)
}
