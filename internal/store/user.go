package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"wardline.app/api/core/db"
	"wardline.app/api/internal/model"
)

const userColumns = `id, name, email, password_hash, role, team_id, team_role, is_active, email_verified,
	email_verification_token, email_verification_expires, password_reset_token, password_reset_expires,
	created_at, updated_at`

type userRow struct {
	ID                       int64
	Name                     string
	Email                    string
	PasswordHash             string
	Role                     string
	TeamID                   *int64
	TeamRole                 *string
	IsActive                 bool
	EmailVerified            bool
	EmailVerificationToken   *string
	EmailVerificationExpires pgtype.Timestamptz
	PasswordResetToken       *string
	PasswordResetExpires     pgtype.Timestamptz
	CreatedAt                pgtype.Timestamptz
	UpdatedAt                pgtype.Timestamptz
}

type userStore struct {
	db db.DBTX
}

func newUserStore(conn db.DBTX) UserStore {
	return &userStore{db: conn}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *userStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *userStore) GetByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email_verification_token = $1`, token)
}

func (s *userStore) GetByPasswordResetToken(ctx context.Context, token string) (*model.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_token = $1`, token)
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	teamID, teamRole := membershipColumns(user.Membership)
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, team_id, team_role, is_active, email_verified,
			email_verification_token, email_verification_expires, password_reset_token, password_reset_expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), teamID, teamRole,
		user.IsActive, user.EmailVerified,
		user.EmailVerificationToken, timestamptz(user.EmailVerificationExpires),
		user.PasswordResetToken, timestamptz(user.PasswordResetExpires),
	)
	created, err := scanUser(row)
	if err != nil {
		return mapErr(err)
	}
	*user = *created
	return nil
}

func (s *userStore) Update(ctx context.Context, user *model.User) error {
	teamID, teamRole := membershipColumns(user.Membership)
	row := s.db.QueryRow(ctx, `
		UPDATE users SET
			name = $2,
			email = $3,
			password_hash = $4,
			role = $5,
			team_id = $6,
			team_role = $7,
			is_active = $8,
			email_verified = $9,
			email_verification_token = $10,
			email_verification_expires = $11,
			password_reset_token = $12,
			password_reset_expires = $13,
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), teamID, teamRole,
		user.IsActive, user.EmailVerified,
		user.EmailVerificationToken, timestamptz(user.EmailVerificationExpires),
		user.PasswordResetToken, timestamptz(user.PasswordResetExpires),
	)
	updated, err := scanUser(row)
	if err != nil {
		return mapErr(err)
	}
	*user = *updated
	return nil
}

func (s *userStore) ListByTeam(ctx context.Context, teamID int64) ([]model.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE team_id = $1 ORDER BY created_at, id`, teamID)
	if err != nil {
		return nil, mapErr(err)
	}
	return collect(rows, scanUser)
}

func (s *userStore) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var r userRow
	if err := row.Scan(
		&r.ID, &r.Name, &r.Email, &r.PasswordHash, &r.Role, &r.TeamID, &r.TeamRole, &r.IsActive, &r.EmailVerified,
		&r.EmailVerificationToken, &r.EmailVerificationExpires, &r.PasswordResetToken, &r.PasswordResetExpires,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return toUserModel(r), nil
}

func toUserModel(r userRow) *model.User {
	user := &model.User{
		ID:                       r.ID,
		Name:                     r.Name,
		Email:                    r.Email,
		PasswordHash:             r.PasswordHash,
		Role:                     model.UserRole(r.Role),
		IsActive:                 r.IsActive,
		EmailVerified:            r.EmailVerified,
		EmailVerificationToken:   r.EmailVerificationToken,
		EmailVerificationExpires: timePtr(r.EmailVerificationExpires),
		PasswordResetToken:       r.PasswordResetToken,
		PasswordResetExpires:     timePtr(r.PasswordResetExpires),
		CreatedAt:                r.CreatedAt.Time,
		UpdatedAt:                r.UpdatedAt.Time,
	}
	if r.TeamID != nil && r.TeamRole != nil {
		user.Membership = &model.Membership{
			TeamID: *r.TeamID,
			Role:   model.TeamRole(*r.TeamRole),
		}
	}
	return user
}

func membershipColumns(m *model.Membership) (*int64, *string) {
	if m == nil {
		return nil, nil
	}
	teamID := m.TeamID
	role := string(m.Role)
	return &teamID, &role
}

// collect drains rows through scan, closing them on return.
func collect[T any](rows pgx.Rows, scan func(rowScanner) (*T, error)) ([]T, error) {
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return result, nil
}
