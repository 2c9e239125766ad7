package service

import (
	"time"

	"wardline.app/api/internal/billing"
	"wardline.app/api/internal/store"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Stores      *store.Stores
	TxRunner    TxRunner
	Notifier    Notifier
	Passwords   PasswordHasher
	Sessions    SessionManager
	Billing     billing.Gateway
	BillingURLs BillingURLs
	FrontendURL string
	Now         func() time.Time
}

type Services struct {
	deps Deps
}

func NewServices(deps Deps) *Services {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Services{deps: deps}
}

func (s *Services) Auth() AuthService {
	return NewAuthService(
		s.deps.Stores.Users(),
		s.deps.Notifier,
		s.deps.Passwords,
		s.deps.Sessions,
		s.deps.FrontendURL,
		s.deps.Now,
	)
}

func (s *Services) Invitations() InvitationService {
	return NewInvitationService(
		s.deps.TxRunner,
		s.deps.Notifier,
		s.deps.Passwords,
		s.deps.Sessions,
		s.deps.FrontendURL,
		s.deps.Now,
	)
}

func (s *Services) Teams() TeamService {
	return NewTeamService(s.deps.TxRunner, s.deps.Now)
}

func (s *Services) Subscriptions() SubscriptionService {
	return NewSubscriptionService(s.deps.TxRunner, s.deps.Billing, s.deps.BillingURLs, s.deps.Now)
}

func (s *Services) Patients() PatientService {
	return NewPatientService(s.deps.Stores.Patients())
}
