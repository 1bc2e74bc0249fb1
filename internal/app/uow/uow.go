package uow

import (
	"context"

	"staybook/internal/app/outbox"
	domainbooking "staybook/internal/domain/booking"
)

// UnitOfWork coordinates the booking store and the outbox inside one transaction boundary.
// Nothing written through it is visible to other units before Commit returns.
type UnitOfWork interface {
	Bookings() domainbooking.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (sessions, tx handles)
// downstream repositories read from the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}
