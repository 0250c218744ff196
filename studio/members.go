package studio

import (
	"context"
	"errors"
	"fmt"
)

type MemberService struct {
	Store Store
	Clock Clock
}

// CreateMember registers a member. AuthUserID may be empty for members
// managed only by administrators.
func (s *MemberService) CreateMember(ctx context.Context, m Member) (Member, error) {
	if m.Name == "" {
		return Member{}, newError(ErrValidation, "name is required")
	}
	if m.Email != "" && !emailPattern.MatchString(m.Email) {
		return Member{}, newError(ErrValidation, "invalid email address")
	}
	if m.AuthUserID != "" {
		_, err := s.Store.GetMemberByAuthUser(ctx, m.AuthUserID)
		if err == nil {
			return Member{}, newError(ErrConflict, "auth user already linked to a member")
		}
		if !errors.Is(err, ErrNotFound) {
			return Member{}, err
		}
	}
	if m.Status == "" {
		m.Status = MemberActive
	}
	if _, err := ParseMemberStatus(string(m.Status)); err != nil {
		return Member{}, err
	}
	m.ID = NewID()
	m.CreatedAt = s.Clock.Now()
	return s.Store.InsertMember(ctx, m)
}

func (s *MemberService) GetMember(ctx context.Context, id string) (Member, error) {
	m, err := s.Store.GetMember(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Member{}, newError(ErrNotFound, "member not found")
	}
	return m, err
}

// MemberUpdate carries the editable profile fields. Nil fields keep
// their current value.
type MemberUpdate struct {
	Name   *string
	Email  *string
	Phone  *string
	Status *MemberStatus
	Note   *string
}

// UpdateMember edits a member's profile. Setting the status to inactive
// blocks new bookings; existing reservations are untouched.
func (s *MemberService) UpdateMember(ctx context.Context, id string, u MemberUpdate) (Member, error) {
	m, err := s.GetMember(ctx, id)
	if err != nil {
		return Member{}, err
	}
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Email != nil {
		m.Email = *u.Email
	}
	if u.Phone != nil {
		m.Phone = *u.Phone
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.Note != nil {
		m.Note = *u.Note
	}

	if m.Name == "" {
		return Member{}, newError(ErrValidation, "name is required")
	}
	if m.Email != "" && !emailPattern.MatchString(m.Email) {
		return Member{}, newError(ErrValidation, "invalid email address")
	}
	if _, err := ParseMemberStatus(string(m.Status)); err != nil {
		return Member{}, err
	}

	updated, err := s.Store.UpdateMember(ctx, m)
	if errors.Is(err, ErrNotFound) {
		return Member{}, newError(ErrNotFound, "member not found")
	}
	return updated, err
}

// ParseMemberStatus accepts "active" or "inactive".
func ParseMemberStatus(s string) (MemberStatus, error) {
	switch MemberStatus(s) {
	case MemberActive, MemberInactive:
		return MemberStatus(s), nil
	}
	return "", newError(ErrValidation, fmt.Sprintf("unknown member status %q", s))
}

func (s *MemberService) ListMembers(ctx context.Context) ([]Member, error) {
	return s.Store.ListMembers(ctx)
}

// MemberByAuthUser resolves the member record of the signed-in user.
func (s *MemberService) MemberByAuthUser(ctx context.Context, actor Actor) (Member, error) {
	if !actor.Authenticated() {
		return Member{}, newError(ErrUnauthenticated, "authentication required")
	}
	m, err := s.Store.GetMemberByAuthUser(ctx, actor.UserID)
	if errors.Is(err, ErrNotFound) {
		return Member{}, newError(ErrNotFound, "member not found")
	}
	return m, err
}
