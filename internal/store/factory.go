package store

import "wardline.app/api/core/db"

// Stores hands out entity stores bound to one DBTX, either the pool or an open transaction.
type Stores struct {
	db db.DBTX
}

func NewStores(conn db.DBTX) *Stores {
	return &Stores{db: conn}
}

func (s *Stores) Teams() TeamStore {
	return newTeamStore(s.db)
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.db)
}

func (s *Stores) Invitations() InvitationStore {
	return newInvitationStore(s.db)
}

func (s *Stores) Patients() PatientStore {
	return newPatientStore(s.db)
}
