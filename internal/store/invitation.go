package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"wardline.app/api/core/db"
	"wardline.app/api/internal/model"
)

const invitationColumns = `id, team_id, email, invited_by, role, token, expires_at, status,
	accepted_at, accepted_by, created_at`

type invitationRow struct {
	ID         int64
	TeamID     int64
	Email      string
	InvitedBy  int64
	Role       string
	Token      string
	ExpiresAt  pgtype.Timestamptz
	Status     string
	AcceptedAt pgtype.Timestamptz
	AcceptedBy *int64
	CreatedAt  pgtype.Timestamptz
}

type invitationStore struct {
	db db.DBTX
}

func newInvitationStore(conn db.DBTX) InvitationStore {
	return &invitationStore{db: conn}
}

func (s *invitationStore) Create(ctx context.Context, inv *model.Invitation) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO team_invitations (id, team_id, email, invited_by, role, token, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+invitationColumns,
		inv.ID, inv.TeamID, inv.Email, inv.InvitedBy, string(inv.Role), inv.Token,
		pgtype.Timestamptz{Time: inv.ExpiresAt, Valid: true}, string(inv.Status),
	)
	created, err := scanInvitation(row)
	if err != nil {
		return mapErr(err)
	}
	*inv = *created
	return nil
}

func (s *invitationStore) GetByID(ctx context.Context, id int64) (*model.Invitation, error) {
	return s.getOne(ctx, `SELECT `+invitationColumns+` FROM team_invitations WHERE id = $1`, id)
}

func (s *invitationStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Invitation, error) {
	return s.getOne(ctx, `SELECT `+invitationColumns+` FROM team_invitations WHERE id = $1 FOR UPDATE`, id)
}

func (s *invitationStore) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	return s.getOne(ctx, `SELECT `+invitationColumns+` FROM team_invitations WHERE token = $1`, token)
}

func (s *invitationStore) GetByTokenForUpdate(ctx context.Context, token string) (*model.Invitation, error) {
	return s.getOne(ctx, `SELECT `+invitationColumns+` FROM team_invitations WHERE token = $1 FOR UPDATE`, token)
}

func (s *invitationStore) GetPendingByTeamAndEmail(ctx context.Context, teamID int64, email string) (*model.Invitation, error) {
	return s.getOne(ctx, `
		SELECT `+invitationColumns+` FROM team_invitations
		WHERE team_id = $1 AND lower(email) = lower($2) AND status = 'pending'`,
		teamID, email,
	)
}

func (s *invitationStore) CountLivePendingByTeam(ctx context.Context, teamID int64, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM team_invitations WHERE team_id = $1 AND status = 'pending' AND expires_at >= $2`,
		teamID, pgtype.Timestamptz{Time: now, Valid: true},
	).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (s *invitationStore) ListByTeam(ctx context.Context, teamID int64, status *model.InvitationStatus) ([]model.Invitation, error) {
	var statusFilter *string
	if status != nil {
		v := string(*status)
		statusFilter = &v
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+invitationColumns+` FROM team_invitations
		WHERE team_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC`,
		teamID, statusFilter,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return collect(rows, scanInvitation)
}

func (s *invitationStore) Update(ctx context.Context, inv *model.Invitation) error {
	row := s.db.QueryRow(ctx, `
		UPDATE team_invitations SET
			status = $2,
			expires_at = $3,
			accepted_at = $4,
			accepted_by = $5
		WHERE id = $1
		RETURNING `+invitationColumns,
		inv.ID, string(inv.Status), pgtype.Timestamptz{Time: inv.ExpiresAt, Valid: true},
		timestamptz(inv.AcceptedAt), inv.AcceptedBy,
	)
	updated, err := scanInvitation(row)
	if err != nil {
		return mapErr(err)
	}
	*inv = *updated
	return nil
}

func (s *invitationStore) getOne(ctx context.Context, query string, args ...any) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return inv, nil
}

func scanInvitation(row rowScanner) (*model.Invitation, error) {
	var r invitationRow
	if err := row.Scan(
		&r.ID, &r.TeamID, &r.Email, &r.InvitedBy, &r.Role, &r.Token, &r.ExpiresAt, &r.Status,
		&r.AcceptedAt, &r.AcceptedBy, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return toInvitationModel(r), nil
}

func toInvitationModel(r invitationRow) *model.Invitation {
	return &model.Invitation{
		ID:         r.ID,
		TeamID:     r.TeamID,
		Email:      r.Email,
		InvitedBy:  r.InvitedBy,
		Role:       model.TeamRole(r.Role),
		Token:      r.Token,
		Status:     model.InvitationStatus(r.Status),
		ExpiresAt:  r.ExpiresAt.Time,
		AcceptedAt: timePtr(r.AcceptedAt),
		AcceptedBy: r.AcceptedBy,
		CreatedAt:  r.CreatedAt.Time,
	}
}
