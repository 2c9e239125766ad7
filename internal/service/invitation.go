package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wardline.app/api/common/id"
	"wardline.app/api/common/logger"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/notify"
	"wardline.app/api/internal/store"
)

const (
	InviteExpiryDays = 7
	inviteTTL        = InviteExpiryDays * 24 * time.Hour
	verificationTTL  = 24 * time.Hour
)

// InvitationDetails is what the public token lookup exposes.
type InvitationDetails struct {
	Invitation  *model.Invitation
	TeamName    string
	InviterName string
}

// Registration carries the credentials for a new account.
type Registration struct {
	Name     string
	Email    string
	Password string
}

type InvitationService interface {
	Create(ctx context.Context, actor *model.User, teamID int64, email string, role model.TeamRole) (*model.Invitation, error)
	List(ctx context.Context, actor *model.User, teamID int64, status *model.InvitationStatus) ([]model.Invitation, error)
	// Lookup resolves a token. When the invitation is no longer pending the details are
	// returned together with ErrInvitationExpired or ErrInvitationNotPending.
	Lookup(ctx context.Context, token string) (*InvitationDetails, error)
	Accept(ctx context.Context, token string, actor *model.User) (*model.User, error)
	AcceptAndRegister(ctx context.Context, token string, reg Registration) (*AuthResult, error)
	Cancel(ctx context.Context, actor *model.User, teamID, invitationID int64) (*model.Invitation, error)
	Resend(ctx context.Context, actor *model.User, teamID, invitationID int64) (*model.Invitation, error)
}

type invitationService struct {
	txRunner  TxRunner
	notifier  Notifier
	passwords PasswordHasher
	sessions  SessionManager
	links     links
	now       func() time.Time
}

func NewInvitationService(
	txRunner TxRunner,
	notifier Notifier,
	passwords PasswordHasher,
	sessions SessionManager,
	frontendURL string,
	now func() time.Time,
) InvitationService {
	if now == nil {
		now = time.Now
	}
	return &invitationService{
		txRunner:  txRunner,
		notifier:  notifier,
		passwords: passwords,
		sessions:  sessions,
		links:     links{frontendURL: frontendURL},
		now:       now,
	}
}

func (s *invitationService) Create(ctx context.Context, actor *model.User, teamID int64, email string, role model.TeamRole) (*model.Invitation, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !role.Assignable() {
		return nil, ErrInvalidTeamRole
	}

	var (
		inv         *model.Invitation
		teamName    string
		inviterName string
	)
	now := s.now()

	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		inviter, err := requireTeamManager(ctx, sp, actor.ID, teamID)
		if err != nil {
			return err
		}
		if !inviter.EmailVerified {
			return ErrEmailNotVerified
		}

		// The team row lock serializes seat accounting against concurrent invites and accepts.
		team, err := getLiveTeamForUpdate(ctx, sp, teamID)
		if err != nil {
			return err
		}

		members, err := sp.Teams().CountMembers(ctx, teamID)
		if err != nil {
			return fmt.Errorf("counting members: %w", err)
		}
		pending, err := sp.Invitations().CountLivePendingByTeam(ctx, teamID, now)
		if err != nil {
			return fmt.Errorf("counting pending invitations: %w", err)
		}
		if members+pending >= team.MemberLimit {
			return ErrMemberLimitReached
		}

		existing, err := sp.Invitations().GetPendingByTeamAndEmail(ctx, teamID, email)
		switch {
		case err == nil && existing.LapsedAt(now):
			if err := s.expire(ctx, sp, existing); err != nil {
				return err
			}
		case err == nil:
			return ErrPendingInvitationExists
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("checking pending invitation: %w", err)
		}

		invitee, err := sp.Users().GetByEmail(ctx, email)
		if err == nil && invitee.InTeam(teamID) {
			return ErrAlreadyMember
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("looking up invitee: %w", err)
		}

		token, err := newSecretToken()
		if err != nil {
			return err
		}

		inv = &model.Invitation{
			ID:        id.New(),
			TeamID:    teamID,
			Email:     email,
			InvitedBy: inviter.ID,
			Role:      role,
			Token:     token,
			Status:    model.InvitationStatusPending,
			ExpiresAt: now.Add(inviteTTL),
		}
		if err := sp.Invitations().Create(ctx, inv); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrPendingInvitationExists
			}
			return fmt.Errorf("creating invitation: %w", err)
		}

		teamName = team.Name
		inviterName = inviter.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{TeamID: &teamID, InvitationID: &inv.ID})
	slog.InfoContext(ctx, "invitation created",
		"email", email,
		"role", role,
		"expires_at", inv.ExpiresAt,
	)

	s.sendInvitation(ctx, inv, teamName, inviterName)
	return inv, nil
}

func (s *invitationService) List(ctx context.Context, actor *model.User, teamID int64, status *model.InvitationStatus) ([]model.Invitation, error) {
	if status != nil && !status.Valid() {
		return nil, newError(ErrValidation, fmt.Sprintf("unknown invitation status %q", *status))
	}

	var invitations []model.Invitation
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamMember(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		var err error
		invitations, err = sp.Invitations().ListByTeam(ctx, teamID, status)
		if err != nil {
			return fmt.Errorf("listing invitations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (s *invitationService) Lookup(ctx context.Context, token string) (*InvitationDetails, error) {
	var (
		details *InvitationDetails
		lapsed  bool
	)
	now := s.now()

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		inv, err := getInvitationByTokenForUpdate(ctx, sp, token)
		if err != nil {
			return err
		}

		if inv.LapsedAt(now) {
			if err := s.expire(ctx, sp, inv); err != nil {
				return err
			}
			lapsed = true
		}

		details = &InvitationDetails{Invitation: inv}
		if team, err := sp.Teams().GetByID(ctx, inv.TeamID); err == nil {
			details.TeamName = team.Name
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("getting team: %w", err)
		}
		if inviter, err := sp.Users().GetByID(ctx, inv.InvitedBy); err == nil {
			details.InviterName = inviter.Name
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("getting inviter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lapsed {
		return details, ErrInvitationExpired
	}
	if err := checkPending(details.Invitation); err != nil {
		return details, err
	}
	return details, nil
}

func (s *invitationService) Accept(ctx context.Context, token string, actor *model.User) (*model.User, error) {
	var (
		member *model.User
		inv    *model.Invitation
		lapsed bool
	)
	now := s.now()

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		inv, err = getInvitationByTokenForUpdate(ctx, sp, token)
		if err != nil {
			return err
		}
		if inv.LapsedAt(now) {
			lapsed = true
			return s.expire(ctx, sp, inv)
		}
		if err := checkPending(inv); err != nil {
			return err
		}

		user, err := sp.Users().GetByIDForUpdate(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("getting user: %w", err)
		}
		if !strings.EqualFold(user.Email, inv.Email) {
			slog.WarnContext(ctx, "email mismatch on invitation acceptance",
				"invitation_id", inv.ID,
				"user_id", user.ID,
			)
			return ErrEmailMismatch
		}
		if !user.EmailVerified {
			return ErrEmailNotVerified
		}
		if user.HasTeam() {
			return ErrAlreadyInTeam
		}

		if err := ensureSeat(ctx, sp, inv.TeamID); err != nil {
			return err
		}

		user.JoinTeam(inv.TeamID, inv.Role)
		if err := sp.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("joining team: %w", err)
		}

		markAccepted(inv, user.ID, now)
		if err := sp.Invitations().Update(ctx, inv); err != nil {
			return fmt.Errorf("accepting invitation: %w", err)
		}

		member = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lapsed {
		return nil, ErrInvitationExpired
	}

	slog.InfoContext(ctx, "invitation accepted",
		"invitation_id", inv.ID,
		"team_id", inv.TeamID,
		"user_id", member.ID,
		"team_role", inv.Role,
	)
	return member, nil
}

func (s *invitationService) AcceptAndRegister(ctx context.Context, token string, reg Registration) (*AuthResult, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	if len(reg.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	var (
		user   *model.User
		inv    *model.Invitation
		lapsed bool
	)
	now := s.now()

	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		inv, err = getInvitationByTokenForUpdate(ctx, sp, token)
		if err != nil {
			return err
		}
		if inv.LapsedAt(now) {
			lapsed = true
			return s.expire(ctx, sp, inv)
		}
		if err := checkPending(inv); err != nil {
			return err
		}
		if email != inv.Email {
			return ErrRegistrationEmailMismatch
		}

		if _, err := sp.Users().GetByEmail(ctx, email); err == nil {
			return ErrEmailAlreadyRegistered
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking existing account: %w", err)
		}

		if err := ensureSeat(ctx, sp, inv.TeamID); err != nil {
			return err
		}

		hash, err := s.passwords.Hash(reg.Password)
		if err != nil {
			return err
		}
		verifyToken, err := newSecretToken()
		if err != nil {
			return err
		}
		verifyExpires := now.Add(verificationTTL)

		user = &model.User{
			ID:                       id.New(),
			Name:                     name,
			Email:                    email,
			PasswordHash:             hash,
			IsActive:                 true,
			EmailVerified:            false,
			EmailVerificationToken:   &verifyToken,
			EmailVerificationExpires: &verifyExpires,
		}
		user.JoinTeam(inv.TeamID, inv.Role)
		if err := sp.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrEmailAlreadyRegistered
			}
			return fmt.Errorf("creating user: %w", err)
		}

		markAccepted(inv, user.ID, now)
		if err := sp.Invitations().Update(ctx, inv); err != nil {
			return fmt.Errorf("accepting invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lapsed {
		return nil, ErrInvitationExpired
	}

	slog.InfoContext(ctx, "invitation accepted with new account",
		"invitation_id", inv.ID,
		"team_id", inv.TeamID,
		"user_id", user.ID,
	)

	if !s.notifier.Notify(ctx, user.Email, notify.KindVerification, map[string]string{
		notify.FieldLink:      s.links.verification(*user.EmailVerificationToken),
		notify.FieldRecipient: user.Name,
	}) {
		slog.WarnContext(ctx, "verification email not queued", "user_id", user.ID)
	}

	sessionToken, expiresAt, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: sessionToken, ExpiresAt: expiresAt}, nil
}

func (s *invitationService) Cancel(ctx context.Context, actor *model.User, teamID, invitationID int64) (*model.Invitation, error) {
	var (
		inv    *model.Invitation
		lapsed bool
	)
	now := s.now()

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := requireTeamManager(ctx, sp, actor.ID, teamID); err != nil {
			return err
		}
		var err error
		inv, err = getTeamInvitationForUpdate(ctx, sp, teamID, invitationID)
		if err != nil {
			return err
		}
		if inv.LapsedAt(now) {
			lapsed = true
			return s.expire(ctx, sp, inv)
		}
		if err := checkPending(inv); err != nil {
			return err
		}

		inv.Status = model.InvitationStatusCancelled
		if err := sp.Invitations().Update(ctx, inv); err != nil {
			return fmt.Errorf("cancelling invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lapsed {
		return nil, ErrInvitationExpired
	}

	slog.InfoContext(ctx, "invitation cancelled",
		"invitation_id", inv.ID,
		"team_id", teamID,
		"cancelled_by", actor.ID,
	)
	return inv, nil
}

func (s *invitationService) Resend(ctx context.Context, actor *model.User, teamID, invitationID int64) (*model.Invitation, error) {
	var (
		inv         *model.Invitation
		lapsed      bool
		teamName    string
		inviterName string
	)
	now := s.now()

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		inviter, err := requireTeamManager(ctx, sp, actor.ID, teamID)
		if err != nil {
			return err
		}
		inv, err = getTeamInvitationForUpdate(ctx, sp, teamID, invitationID)
		if err != nil {
			return err
		}
		if inv.LapsedAt(now) {
			lapsed = true
			return s.expire(ctx, sp, inv)
		}
		if err := checkPending(inv); err != nil {
			return err
		}

		team, err := sp.Teams().GetByID(ctx, teamID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTeamNotFound
			}
			return fmt.Errorf("getting team: %w", err)
		}

		// The token is kept so links from earlier emails keep working.
		inv.ExpiresAt = now.Add(inviteTTL)
		if err := sp.Invitations().Update(ctx, inv); err != nil {
			return fmt.Errorf("extending invitation: %w", err)
		}

		teamName = team.Name
		inviterName = inviter.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lapsed {
		return nil, ErrInvitationExpired
	}

	slog.InfoContext(ctx, "invitation resent",
		"invitation_id", inv.ID,
		"team_id", teamID,
		"expires_at", inv.ExpiresAt,
	)

	s.sendInvitation(ctx, inv, teamName, inviterName)
	return inv, nil
}

func (s *invitationService) sendInvitation(ctx context.Context, inv *model.Invitation, teamName, inviterName string) {
	ok := s.notifier.Notify(ctx, inv.Email, notify.KindInvitation, map[string]string{
		notify.FieldLink:     s.links.invitation(inv.Token),
		notify.FieldTeamName: teamName,
		notify.FieldInviter:  inviterName,
	})
	if !ok {
		slog.WarnContext(ctx, "invitation email not queued", "invitation_id", inv.ID)
	}
}

// expire persists the lazy pending -> expired transition. Callers that report the
// expiry must return nil from the transaction so the write commits.
func (s *invitationService) expire(ctx context.Context, sp StoreProvider, inv *model.Invitation) error {
	inv.Status = model.InvitationStatusExpired
	if err := sp.Invitations().Update(ctx, inv); err != nil {
		return fmt.Errorf("expiring invitation: %w", err)
	}
	slog.InfoContext(ctx, "invitation expired", "invitation_id", inv.ID, "expired_at", inv.ExpiresAt)
	return nil
}

func checkPending(inv *model.Invitation) error {
	switch inv.Status {
	case model.InvitationStatusPending:
		return nil
	case model.InvitationStatusExpired:
		return ErrInvitationExpired
	default:
		return ErrInvitationNotPending
	}
}

func markAccepted(inv *model.Invitation, userID int64, now time.Time) {
	inv.Status = model.InvitationStatusAccepted
	inv.AcceptedAt = &now
	inv.AcceptedBy = &userID
}

func getInvitationByTokenForUpdate(ctx context.Context, sp StoreProvider, token string) (*model.Invitation, error) {
	if token == "" {
		return nil, ErrInvitationNotFound
	}
	inv, err := sp.Invitations().GetByTokenForUpdate(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("getting invitation: %w", err)
	}
	return inv, nil
}

func getTeamInvitationForUpdate(ctx context.Context, sp StoreProvider, teamID, invitationID int64) (*model.Invitation, error) {
	inv, err := sp.Invitations().GetByIDForUpdate(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("getting invitation: %w", err)
	}
	if inv.TeamID != teamID {
		return nil, ErrInvitationNotFound
	}
	return inv, nil
}

// ensureSeat locks the team and checks there is room for one more member.
func ensureSeat(ctx context.Context, sp StoreProvider, teamID int64) error {
	team, err := getLiveTeamForUpdate(ctx, sp, teamID)
	if err != nil {
		return err
	}
	members, err := sp.Teams().CountMembers(ctx, teamID)
	if err != nil {
		return fmt.Errorf("counting members: %w", err)
	}
	if members >= team.MemberLimit {
		return ErrMemberLimitReached
	}
	return nil
}
