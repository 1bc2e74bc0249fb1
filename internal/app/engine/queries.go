package engine

import (
	"context"
	"slices"
	"strings"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/directory"
)

func (e *Engine) GetBooking(ctx context.Context, id booking.ID, actorID directory.UserID) (*booking.Booking, error) {
	return e.read(ctx, actorID, func(ctx context.Context, repo booking.Repository) (*booking.Booking, error) {
		return repo.ByID(ctx, id)
	})
}

// GetByReference looks a booking up by its public reference. References that could not
// have been generated are NotFound without touching the store.
func (e *Engine) GetByReference(ctx context.Context, ref string, actorID directory.UserID) (*booking.Booking, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	return e.read(ctx, actorID, func(ctx context.Context, repo booking.Repository) (*booking.Booking, error) {
		if !e.References.Valid(ref) {
			return nil, booking.ErrNotFound
		}
		return repo.ByReference(ctx, ref)
	})
}

func (e *Engine) read(ctx context.Context, actorID directory.UserID, load func(context.Context, booking.Repository) (*booking.Booking, error)) (*booking.Booking, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	actor, err := e.activeUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	unit, execCtx, cleanup, err := uow.BeginReadOnly(ctx, e.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := load(execCtx, unit.Bookings())
	if err != nil {
		return nil, err
	}
	if err := ownerOrAdmin(actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookingsForUser returns the user's bookings in one partition ordered by check-in.
func (e *Engine) ListBookingsForUser(ctx context.Context, userID directory.UserID, partition booking.Partition) ([]*booking.Booking, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.Directory.User(ctx, userID); err != nil {
		return nil, err
	}
	all, err := e.listByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if e.SettleOnRead {
		for i, b := range all {
			if booking.NeedsSettlement(b, now) {
				all[i] = e.settle(ctx, b)
			}
		}
	}
	out := booking.Filter(all, partition, now)
	slices.SortStableFunc(out, func(a, b *booking.Booking) int {
		return a.Range.CheckIn.Compare(b.Range.CheckIn)
	})
	return out, nil
}

func (e *Engine) listByUser(ctx context.Context, userID directory.UserID) ([]*booking.Booking, error) {
	unit, execCtx, cleanup, err := uow.BeginReadOnly(ctx, e.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Bookings().ListByUser(execCtx, userID)
}

// settle completes a finished stay. Failures are logged and the stored booking is kept.
func (e *Engine) settle(ctx context.Context, b *booking.Booking) *booking.Booking {
	release, err := e.lock(ctx, bookingLockKey(b.ID))
	if err != nil {
		e.logger().WarnContext(ctx, "settle booking skipped", "booking_id", b.ID, "err", err)
		return b
	}
	defer release()

	var settled *booking.Booking
	err = e.withUnit(ctx, func(ctx context.Context, unit uow.UnitOfWork) error {
		repo := unit.Bookings()
		current, err := repo.ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		now := e.now()
		if !booking.NeedsSettlement(current, now) {
			settled = current
			return nil
		}
		if err := current.Complete(SystemActor, now); err != nil {
			return err
		}
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), e.encoder(), current.Drain()); err != nil {
			return err
		}
		settled = current
		return nil
	})
	if err != nil {
		e.logger().WarnContext(ctx, "settle booking failed", "booking_id", b.ID, "err", err)
		return b
	}
	e.logger().InfoContext(ctx, "booking settled", "booking_id", settled.ID, "status", settled.Status)
	return settled
}
