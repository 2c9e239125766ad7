package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wardline.app/api/common/id"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/notify"
	"wardline.app/api/internal/store"
)

const passwordResetTTL = time.Hour

// AuthResult is a freshly issued session for a user.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

type AuthService interface {
	Register(ctx context.Context, reg Registration) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate resolves a bearer credential to an active user.
	Authenticate(ctx context.Context, token string) (*model.User, error)
	VerifyEmail(ctx context.Context, token string) (*model.User, error)
	ResendVerification(ctx context.Context, actor *model.User) error
	// RequestPasswordReset never reveals whether the email is registered.
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

type authService struct {
	userStore store.UserStore
	notifier  Notifier
	passwords PasswordHasher
	sessions  SessionManager
	links     links
	now       func() time.Time
}

func NewAuthService(
	userStore store.UserStore,
	notifier Notifier,
	passwords PasswordHasher,
	sessions SessionManager,
	frontendURL string,
	now func() time.Time,
) AuthService {
	if now == nil {
		now = time.Now
	}
	return &authService{
		userStore: userStore,
		notifier:  notifier,
		passwords: passwords,
		sessions:  sessions,
		links:     links{frontendURL: frontendURL},
		now:       now,
	}
}

func (s *authService) Register(ctx context.Context, reg Registration) (*AuthResult, error) {
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

	if _, err := s.userStore.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking existing account: %w", err)
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return nil, err
	}
	verifyToken, err := newSecretToken()
	if err != nil {
		return nil, err
	}
	verifyExpires := s.now().Add(verificationTTL)

	user := &model.User{
		ID:                       id.New(),
		Name:                     name,
		Email:                    email,
		PasswordHash:             hash,
		Role:                     model.UserRoleBasic,
		IsActive:                 true,
		EmailVerificationToken:   &verifyToken,
		EmailVerificationExpires: &verifyExpires,
	}
	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailAlreadyRegistered
		}
		slog.ErrorContext(ctx, "failed to create user", "error", err)
		return nil, fmt.Errorf("creating user: %w", err)
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID)
	s.sendVerification(ctx, user)

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if err := s.passwords.Compare(user.PasswordHash, password); err != nil {
		slog.InfoContext(ctx, "login rejected", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.sessions.Parse(token)
	if err != nil {
		return nil, ErrInvalidSession
	}

	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrVerificationNotFound
	}
	user, err := s.userStore.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}
	if user.EmailVerificationExpires != nil && s.now().After(*user.EmailVerificationExpires) {
		return nil, ErrVerificationExpired
	}

	user.EmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationExpires = nil
	if err := s.userStore.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("verifying email: %w", err)
	}

	slog.InfoContext(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

func (s *authService) ResendVerification(ctx context.Context, actor *model.User) error {
	user, err := s.userStore.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("getting user: %w", err)
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	token, err := newSecretToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(verificationTTL)
	user.EmailVerificationToken = &token
	user.EmailVerificationExpires = &expires
	if err := s.userStore.Update(ctx, user); err != nil {
		return fmt.Errorf("rotating verification token: %w", err)
	}

	s.sendVerification(ctx, user)
	return nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("getting user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := newSecretToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(passwordResetTTL)
	user.PasswordResetToken = &token
	user.PasswordResetExpires = &expires
	if err := s.userStore.Update(ctx, user); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	ok := s.notifier.Notify(ctx, user.Email, notify.KindPasswordReset, map[string]string{
		notify.FieldLink:      s.links.passwordReset(token),
		notify.FieldRecipient: user.Name,
	})
	if !ok {
		slog.WarnContext(ctx, "password reset email not queued", "user_id", user.ID)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	if token == "" {
		return ErrInvalidResetToken
	}

	user, err := s.userStore.GetByPasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("getting user: %w", err)
	}
	if user.PasswordResetExpires == nil || s.now().After(*user.PasswordResetExpires) {
		return ErrResetTokenExpired
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	if err := s.userStore.Update(ctx, user); err != nil {
		return fmt.Errorf("resetting password: %w", err)
	}

	slog.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

func (s *authService) issue(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *authService) sendVerification(ctx context.Context, user *model.User) {
	if user.EmailVerificationToken == nil {
		return
	}
	ok := s.notifier.Notify(ctx, user.Email, notify.KindVerification, map[string]string{
		notify.FieldLink:      s.links.verification(*user.EmailVerificationToken),
		notify.FieldRecipient: user.Name,
	})
	if !ok {
		slog.WarnContext(ctx, "verification email not queued", "user_id", user.ID)
	}
}
