package model

import "time"

type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusCancelled InvitationStatus = "cancelled"
	InvitationStatusExpired   InvitationStatus = "expired"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusCancelled, InvitationStatusExpired:
		return true
	}
	return false
}

func (s InvitationStatus) IsTerminal() bool {
	return s == InvitationStatusAccepted || s == InvitationStatusCancelled || s == InvitationStatusExpired
}

// CanTransitionTo reports whether next is reachable from s. Only pending has exits.
func (s InvitationStatus) CanTransitionTo(next InvitationStatus) bool {
	return s == InvitationStatusPending && next.IsTerminal()
}

type Invitation struct {
	ID         int64            `json:"id"`
	TeamID     int64            `json:"team_id"`
	Email      string           `json:"email"`
	InvitedBy  int64            `json:"invited_by"`
	Role       TeamRole         `json:"role"`
	Token      string           `json:"-"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expires_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
	AcceptedBy *int64           `json:"accepted_by,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (i *Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}

// LapsedAt reports whether a pending invitation has passed its expiry at now.
func (i *Invitation) LapsedAt(now time.Time) bool {
	return i.Status == InvitationStatusPending && i.ExpiresAt.Before(now)
}
