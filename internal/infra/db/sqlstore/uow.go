package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

var ErrUnitOfWorkNotConfigured = errors.New("sqlstore: unit of work factory missing database")

// Factory opens one database transaction per unit of work. Read-only units skip the
// transaction and read committed rows directly.
type Factory struct {
	DB *gorm.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	if opts.ReadOnly {
		return &Unit{db: f.DB.WithContext(ctx)}, nil
	}
	tx := f.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{db: tx, tx: true}, nil
}

type Unit struct {
	db *gorm.DB
	tx bool
}

func (u *Unit) Bookings() domainbooking.Repository {
	return &BookingRepository{db: u.db}
}

func (u *Unit) Outbox() outbox.Outbox {
	return NewOutboxStore(u.db)
}

func (u *Unit) Commit(ctx context.Context) error {
	if !u.tx {
		return nil
	}
	return u.db.Commit().Error
}

func (u *Unit) Rollback(ctx context.Context) error {
	if !u.tx {
		return nil
	}
	err := u.db.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

var _ uow.UoWFactory = Factory{}
