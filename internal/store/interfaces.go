package store

import (
	"context"
	"errors"
	"time"

	"wardline.app/api/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a unique constraint
var ErrDuplicate = errors.New("duplicate")

// TeamStore defines the contract for team data access.
// ForUpdate variants take a row lock that lives until the surrounding transaction ends.
type TeamStore interface {
	GetByID(ctx context.Context, id int64) (*model.Team, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Team, error)
	GetBySubscriptionRef(ctx context.Context, ref string) (*model.Team, error)
	Create(ctx context.Context, team *model.Team) error
	Update(ctx context.Context, team *model.Team) error
	CountMembers(ctx context.Context, teamID int64) (int, error)
}

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*model.User, error)
	GetByPasswordResetToken(ctx context.Context, token string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	ListByTeam(ctx context.Context, teamID int64) ([]model.User, error)
}

// InvitationStore defines the contract for team invitation data access.
// Invitations are never deleted; Update persists status transitions.
type InvitationStore interface {
	Create(ctx context.Context, inv *model.Invitation) error
	GetByID(ctx context.Context, id int64) (*model.Invitation, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Invitation, error)
	GetByToken(ctx context.Context, token string) (*model.Invitation, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*model.Invitation, error)
	GetPendingByTeamAndEmail(ctx context.Context, teamID int64, email string) (*model.Invitation, error)
	// CountLivePendingByTeam counts pending invitations that have not lapsed at now.
	CountLivePendingByTeam(ctx context.Context, teamID int64, now time.Time) (int, error)
	ListByTeam(ctx context.Context, teamID int64, status *model.InvitationStatus) ([]model.Invitation, error)
	Update(ctx context.Context, inv *model.Invitation) error
}

// PatientStore defines the contract for patient data access. Every lookup is team-scoped.
type PatientStore interface {
	Create(ctx context.Context, p *model.Patient) error
	GetByID(ctx context.Context, teamID, id int64) (*model.Patient, error)
	ListByTeam(ctx context.Context, teamID int64, limit, offset int32) ([]model.Patient, error)
	Update(ctx context.Context, p *model.Patient) error
	Delete(ctx context.Context, teamID, id int64) error
}
