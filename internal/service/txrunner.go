package service

import (
	"context"

	"wardline.app/api/core/db"
	"wardline.app/api/internal/store"
)

// StoreProvider is the set of stores an operation sees inside one transaction.
type StoreProvider interface {
	Teams() store.TeamStore
	Users() store.UserStore
	Invitations() store.InvitationStore
	Patients() store.PatientStore
}

// TxRunner runs fn with stores bound to a single transaction. A non-nil error
// from fn rolls everything back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// TxFunc lets a plain function serve as a TxRunner.
type TxFunc func(ctx context.Context, fn func(stores StoreProvider) error) error

func (f TxFunc) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return f(ctx, fn)
}

func NewTxRunner(database *db.DB) TxRunner {
	return TxFunc(func(ctx context.Context, fn func(StoreProvider) error) error {
		return database.WithTx(ctx, func(tx db.DBTX) error {
			return fn(store.NewStores(tx))
		})
	})
}
