package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"wardline.app/api/core/db"
	"wardline.app/api/internal/model"
)

const teamColumns = `id, name, subscription_status, subscription_plan, member_limit, trial_ends_at,
	billing_customer_ref, billing_subscription_ref, deleted_at, deletion_scheduled_for,
	created_at, updated_at`

type teamRow struct {
	ID                     int64
	Name                   string
	SubscriptionStatus     string
	SubscriptionPlan       *string
	MemberLimit            int32
	TrialEndsAt            pgtype.Timestamptz
	BillingCustomerRef     *string
	BillingSubscriptionRef *string
	DeletedAt              pgtype.Timestamptz
	DeletionScheduledFor   pgtype.Timestamptz
	CreatedAt              pgtype.Timestamptz
	UpdatedAt              pgtype.Timestamptz
}

type teamStore struct {
	db db.DBTX
}

func newTeamStore(conn db.DBTX) TeamStore {
	return &teamStore{db: conn}
}

func (s *teamStore) GetByID(ctx context.Context, id int64) (*model.Team, error) {
	return s.getOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
}

func (s *teamStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Team, error) {
	return s.getOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, id)
}

func (s *teamStore) GetBySubscriptionRef(ctx context.Context, ref string) (*model.Team, error) {
	return s.getOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE billing_subscription_ref = $1`, ref)
}

func (s *teamStore) Create(ctx context.Context, team *model.Team) error {
	del := deletionColumns(team.Deletion)
	row := s.db.QueryRow(ctx, `
		INSERT INTO teams (id, name, subscription_status, subscription_plan, member_limit, trial_ends_at,
			billing_customer_ref, billing_subscription_ref, deleted_at, deletion_scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+teamColumns,
		team.ID, team.Name, string(team.SubscriptionStatus), planColumn(team.SubscriptionPlan),
		int32(team.MemberLimit), timestamptz(team.TrialEndsAt),
		team.BillingCustomerRef, team.BillingSubscriptionRef, del[0], del[1],
	)
	created, err := scanTeam(row)
	if err != nil {
		return mapErr(err)
	}
	*team = *created
	return nil
}

func (s *teamStore) Update(ctx context.Context, team *model.Team) error {
	del := deletionColumns(team.Deletion)
	row := s.db.QueryRow(ctx, `
		UPDATE teams SET
			name = $2,
			subscription_status = $3,
			subscription_plan = $4,
			member_limit = $5,
			trial_ends_at = $6,
			billing_customer_ref = $7,
			billing_subscription_ref = $8,
			deleted_at = $9,
			deletion_scheduled_for = $10,
			updated_at = now()
		WHERE id = $1
		RETURNING `+teamColumns,
		team.ID, team.Name, string(team.SubscriptionStatus), planColumn(team.SubscriptionPlan),
		int32(team.MemberLimit), timestamptz(team.TrialEndsAt),
		team.BillingCustomerRef, team.BillingSubscriptionRef, del[0], del[1],
	)
	updated, err := scanTeam(row)
	if err != nil {
		return mapErr(err)
	}
	*team = *updated
	return nil
}

func (s *teamStore) CountMembers(ctx context.Context, teamID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE team_id = $1`, teamID).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (s *teamStore) getOne(ctx context.Context, query string, args ...any) (*model.Team, error) {
	team, err := scanTeam(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return team, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*model.Team, error) {
	var r teamRow
	if err := row.Scan(
		&r.ID, &r.Name, &r.SubscriptionStatus, &r.SubscriptionPlan, &r.MemberLimit, &r.TrialEndsAt,
		&r.BillingCustomerRef, &r.BillingSubscriptionRef, &r.DeletedAt, &r.DeletionScheduledFor,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return toTeamModel(r), nil
}

func toTeamModel(r teamRow) *model.Team {
	team := &model.Team{
		ID:                     r.ID,
		Name:                   r.Name,
		SubscriptionStatus:     model.SubscriptionStatus(r.SubscriptionStatus),
		MemberLimit:            int(r.MemberLimit),
		TrialEndsAt:            timePtr(r.TrialEndsAt),
		BillingCustomerRef:     r.BillingCustomerRef,
		BillingSubscriptionRef: r.BillingSubscriptionRef,
		CreatedAt:              r.CreatedAt.Time,
		UpdatedAt:              r.UpdatedAt.Time,
	}
	if r.SubscriptionPlan != nil {
		plan := model.SubscriptionPlan(*r.SubscriptionPlan)
		team.SubscriptionPlan = &plan
	}
	if r.DeletedAt.Valid && r.DeletionScheduledFor.Valid {
		team.Deletion = &model.TeamDeletion{
			DeletedAt:    r.DeletedAt.Time,
			ScheduledFor: r.DeletionScheduledFor.Time,
		}
	}
	return team
}

func planColumn(p *model.SubscriptionPlan) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func deletionColumns(d *model.TeamDeletion) [2]pgtype.Timestamptz {
	if d == nil {
		return [2]pgtype.Timestamptz{}
	}
	return [2]pgtype.Timestamptz{
		{Time: d.DeletedAt, Valid: true},
		{Time: d.ScheduledFor, Valid: true},
	}
}
