package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"wardline.app/api/common/id"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/store"
)

const (
	TrialDays         = 14
	DeletionGraceDays = 30
	maxTeamNameLength = 100
)

// TeamService owns team lifecycle and every mutation of a user's team membership.
type TeamService interface {
	Create(ctx context.Context, actor *model.User, name string) (*model.Team, error)
	// Mine returns the actor's current team.
	Mine(ctx context.Context, actor *model.User) (*model.Team, error)
	ListMembers(ctx context.Context, actor *model.User, teamID int64) ([]model.User, error)
	Update(ctx context.Context, actor *model.User, teamID int64, name string) (*model.Team, error)
	Delete(ctx context.Context, actor *model.User, teamID int64) (*model.Team, error)
	Restore(ctx context.Context, actor *model.User, teamID int64) (*model.Team, error)
	UpdateMemberRole(ctx context.Context, actor *model.User, teamID, userID int64, role model.TeamRole) (*model.User, error)
	RemoveMember(ctx context.Context, actor *model.User, teamID, userID int64) error
	TransferOwnership(ctx context.Context, actor *model.User, teamID, userID int64) error
	Leave(ctx context.Context, actor *model.User) error
}

type teamService struct {
	txRunner TxRunner
	now      func() time.Time
}

func NewTeamService(txRunner TxRunner, now func() time.Time) TeamService {
	if now == nil {
		now = time.Now
	}
	return &teamService{txRunner: txRunner, now: now}
}

func (s *teamService) Create(ctx context.Context, actor *model.User, name string) (*model.Team, error) {
	name, err := validTeamName(name)
	if err != nil {
		return nil, err
	}

	var team *model.Team
	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		owner, err := lockUser(ctx, sp, actor.ID)
		if err != nil {
			return err
		}
		if owner.HasTeam() {
			return ErrAlreadyInTeam
		}

		team = newTrialTeam(name, s.now())
		if err := sp.Teams().Create(ctx, team); err != nil {
			return fmt.Errorf("creating team: %w", err)
		}

		owner.JoinTeam(team.ID, model.TeamRoleOwner)
		if err := sp.Users().Update(ctx, owner); err != nil {
			return fmt.Errorf("assigning owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "team created", "team_id", team.ID, "owner_id", actor.ID)
	return team, nil
}

func (s *teamService) Mine(ctx context.Context, actor *model.User) (*model.Team, error) {
	var team *model.Team
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		user, err := sp.Users().GetByID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("getting user: %w", err)
		}
		if !user.HasTeam() {
			return ErrNoTeam
		}
		team, err = getTeam(ctx, sp, user.Membership.TeamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (s *teamService) ListMembers(ctx context.Context, actor *model.User, teamID int64) ([]model.User, error) {
	var members []model.User
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamMember(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		var err error
		members, err = sp.Users().ListByTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *teamService) Update(ctx context.Context, actor *model.User, teamID int64, name string) (*model.Team, error) {
	name, err := validTeamName(name)
	if err != nil {
		return nil, err
	}

	var team *model.Team
	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamOwner(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		team, err = lockTeam(ctx, sp, teamID)
		if err != nil {
			return err
		}
		if team.IsDeleted() {
			return ErrTeamDeleted
		}
		team.Name = name
		if err := sp.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("updating team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (s *teamService) Delete(ctx context.Context, actor *model.User, teamID int64) (*model.Team, error) {
	var team *model.Team
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamOwner(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		var err error
		team, err = lockTeam(ctx, sp, teamID)
		if err != nil {
			return err
		}
		if team.IsDeleted() {
			return ErrTeamDeleted
		}
		now := s.now()
		team.Deletion = &model.TeamDeletion{
			DeletedAt:    now,
			ScheduledFor: now.AddDate(0, 0, DeletionGraceDays),
		}
		if err := sp.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("scheduling team deletion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "team scheduled for deletion",
		"team_id", teamID,
		"scheduled_for", team.Deletion.ScheduledFor,
	)
	return team, nil
}

func (s *teamService) Restore(ctx context.Context, actor *model.User, teamID int64) (*model.Team, error) {
	var team *model.Team
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamOwner(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		var err error
		team, err = lockTeam(ctx, sp, teamID)
		if err != nil {
			return err
		}
		if !team.IsDeleted() {
			return ErrTeamNotDeleted
		}
		if !s.now().Before(team.Deletion.ScheduledFor) {
			return ErrRestoreExpired
		}
		team.Deletion = nil
		if err := sp.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("restoring team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "team restored", "team_id", teamID)
	return team, nil
}

func (s *teamService) UpdateMemberRole(ctx context.Context, actor *model.User, teamID, userID int64, role model.TeamRole) (*model.User, error) {
	if !role.Assignable() {
		return nil, ErrInvalidTeamRole
	}
	if actor.ID == userID {
		return nil, ErrSelfTarget
	}

	var target *model.User
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamOwner(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		var err error
		target, err = lockMember(ctx, sp, teamID, userID)
		if err != nil {
			return err
		}
		target.Membership.Role = role
		if err := sp.Users().Update(ctx, target); err != nil {
			return fmt.Errorf("updating member role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "member role updated",
		"team_id", teamID,
		"user_id", userID,
		"team_role", role,
	)
	return target, nil
}

func (s *teamService) RemoveMember(ctx context.Context, actor *model.User, teamID, userID int64) error {
	if actor.ID == userID {
		return ErrSelfTarget
	}

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamManager(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		target, err := lockMember(ctx, sp, teamID, userID)
		if err != nil {
			return err
		}
		if target.Membership.Role == model.TeamRoleOwner {
			return ErrCannotRemoveOwner
		}
		target.LeaveTeam()
		if err := sp.Users().Update(ctx, target); err != nil {
			return fmt.Errorf("removing member: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "member removed",
		"team_id", teamID,
		"user_id", userID,
		"removed_by", actor.ID,
	)
	return nil
}

func (s *teamService) TransferOwnership(ctx context.Context, actor *model.User, teamID, userID int64) error {
	if actor.ID == userID {
		return ErrSelfTarget
	}

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		owner, err := lockUser(ctx, sp, actor.ID)
		if err != nil {
			return err
		}
		if role, ok := owner.TeamRoleIn(teamID); !ok {
			return ErrNotTeamMember
		} else if role != model.TeamRoleOwner {
			return ErrOwnerOnly
		}
		successor, err := lockMember(ctx, sp, teamID, userID)
		if err != nil {
			return err
		}

		// Demote before promoting: at most one owner row may exist per team.
		owner.Membership.Role = model.TeamRoleAdmin
		if err := sp.Users().Update(ctx, owner); err != nil {
			return fmt.Errorf("demoting owner: %w", err)
		}
		successor.Membership.Role = model.TeamRoleOwner
		if err := sp.Users().Update(ctx, successor); err != nil {
			return fmt.Errorf("promoting owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "team ownership transferred",
		"team_id", teamID,
		"from_user_id", actor.ID,
		"to_user_id", userID,
	)
	return nil
}

func (s *teamService) Leave(ctx context.Context, actor *model.User) error {
	var teamID int64
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		user, err := lockUser(ctx, sp, actor.ID)
		if err != nil {
			return err
		}
		if !user.HasTeam() {
			return ErrNoTeam
		}
		if user.Membership.Role == model.TeamRoleOwner {
			return ErrOwnerCannotLeave
		}
		teamID = user.Membership.TeamID
		user.LeaveTeam()
		if err := sp.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("leaving team: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "member left team", "team_id", teamID, "user_id", actor.ID)
	return nil
}

func newTrialTeam(name string, now time.Time) *model.Team {
	plan := model.SubscriptionPlanBasic
	trialEnds := now.AddDate(0, 0, TrialDays)
	return &model.Team{
		ID:                 id.New(),
		Name:               name,
		SubscriptionStatus: model.SubscriptionStatusTrial,
		SubscriptionPlan:   &plan,
		MemberLimit:        plan.MemberLimit(),
		TrialEndsAt:        &trialEnds,
	}
}

func validTeamName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxTeamNameLength {
		return "", ErrInvalidTeamName
	}
	return name, nil
}

func lockUser(ctx context.Context, sp StoreProvider, userID int64) (*model.User, error) {
	user, err := sp.Users().GetByIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// lockMember locks a user who must currently belong to teamID.
func lockMember(ctx context.Context, sp StoreProvider, teamID, userID int64) (*model.User, error) {
	user, err := sp.Users().GetByIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("getting member: %w", err)
	}
	if !user.InTeam(teamID) {
		return nil, ErrMemberNotFound
	}
	return user, nil
}

func getTeam(ctx context.Context, sp StoreProvider, teamID int64) (*model.Team, error) {
	team, err := sp.Teams().GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("getting team: %w", err)
	}
	return team, nil
}

func lockTeam(ctx context.Context, sp StoreProvider, teamID int64) (*model.Team, error) {
	team, err := sp.Teams().GetByIDForUpdate(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("locking team: %w", err)
	}
	return team, nil
}

// getLiveTeamForUpdate locks a team that has not been soft-deleted.
func getLiveTeamForUpdate(ctx context.Context, sp StoreProvider, teamID int64) (*model.Team, error) {
	team, err := lockTeam(ctx, sp, teamID)
	if err != nil {
		return nil, err
	}
	if team.IsDeleted() {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

// requireTeamMember reloads the actor and checks it belongs to teamID.
func requireTeamMember(ctx context.Context, sp StoreProvider, actorID, teamID int64) (*model.User, error) {
	user, err := sp.Users().GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotTeamMember
		}
		return nil, fmt.Errorf("getting actor: %w", err)
	}
	if !user.InTeam(teamID) {
		return nil, ErrNotTeamMember
	}
	return user, nil
}

func requireTeamManager(ctx context.Context, sp StoreProvider, actorID, teamID int64) (*model.User, error) {
	user, err := requireTeamMember(ctx, sp, actorID, teamID)
	if err != nil {
		return nil, err
	}
	if !user.Membership.Role.CanManageMembers() {
		return nil, ErrInsufficientRole
	}
	return user, nil
}

func requireTeamOwner(ctx context.Context, sp StoreProvider, actorID, teamID int64) (*model.User, error) {
	user, err := requireTeamMember(ctx, sp, actorID, teamID)
	if err != nil {
		return nil, err
	}
	if user.Membership.Role != model.TeamRoleOwner {
		return nil, ErrOwnerOnly
	}
	return user, nil
}
