package engine

import (
	"context"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/directory"
)

type authorizeFunc func(actor directory.User, b *booking.Booking) error

type applyFunc func(b *booking.Booking, by directory.UserID, now time.Time) error

func ownerOrAdmin(actor directory.User, b *booking.Booking) error {
	if actor.IsAdmin() || b.OwnedBy(actor.ID) {
		return nil
	}
	return ErrForbidden
}

func adminOnly(actor directory.User, _ *booking.Booking) error {
	if actor.IsAdmin() {
		return nil
	}
	return ErrForbidden
}

// mutate loads the booking under its lock, checks the actor and applies one transition.
// Stores reject the update if another writer changed the booking in between.
func (e *Engine) mutate(ctx context.Context, id booking.ID, actorID directory.UserID, authorize authorizeFunc, apply applyFunc) (*booking.Booking, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	actor, err := e.activeUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	release, err := e.lock(ctx, bookingLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *booking.Booking
	err = e.withUnit(ctx, func(ctx context.Context, unit uow.UnitOfWork) error {
		repo := unit.Bookings()
		b, err := repo.ByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, b); err != nil {
			return err
		}
		if err := apply(b, actor.ID, e.now()); err != nil {
			return err
		}
		if err := repo.Update(ctx, b); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), e.encoder(), b.Drain()); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelBooking cancels on behalf of the owner or an admin. The refund outcome is kept on
// the booking.
func (e *Engine) CancelBooking(ctx context.Context, id booking.ID, actorID directory.UserID, reason string) (*booking.Booking, error) {
	b, err := e.mutate(ctx, id, actorID, ownerOrAdmin, func(b *booking.Booking, by directory.UserID, now time.Time) error {
		_, err := b.Cancel(reason, by, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger().InfoContext(ctx, "booking cancelled",
		"booking_id", b.ID,
		"reference", b.Reference,
		"by", actorID,
		"refundable", b.Cancellation.Refundable,
		"refund", b.Cancellation.Refund.String(),
	)
	return b, nil
}

// ConfirmBooking moves a PENDING booking to CONFIRMED once payment is captured.
func (e *Engine) ConfirmBooking(ctx context.Context, id booking.ID, actorID directory.UserID, paymentRef string) (*booking.Booking, error) {
	return e.mutate(ctx, id, actorID, ownerOrAdmin, func(b *booking.Booking, by directory.UserID, now time.Time) error {
		return b.Confirm(paymentRef, by, now)
	})
}

func (e *Engine) RecordArrival(ctx context.Context, id booking.ID, actorID directory.UserID) (*booking.Booking, error) {
	return e.mutate(ctx, id, actorID, adminOnly, (*booking.Booking).RecordArrival)
}

func (e *Engine) CompleteBooking(ctx context.Context, id booking.ID, actorID directory.UserID) (*booking.Booking, error) {
	return e.mutate(ctx, id, actorID, adminOnly, (*booking.Booking).Complete)
}

func (e *Engine) MarkNoShow(ctx context.Context, id booking.ID, actorID directory.UserID) (*booking.Booking, error) {
	return e.mutate(ctx, id, actorID, adminOnly, (*booking.Booking).MarkNoShow)
}
