// Package engine is the booking facade: it validates requests against the catalog and the
// directory, serializes writes per bookable unit and drives the booking lifecycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/reference"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
)

var (
	ErrNotConfigured       = errors.New("engine: missing dependencies")
	ErrForbidden           = fmt.Errorf("engine: %w", errs.ErrForbidden)
	ErrUserInactive        = fmt.Errorf("engine: user is inactive: %w", errs.ErrForbidden)
	ErrAccommodationClosed = fmt.Errorf("engine: accommodation is not accepting bookings: %w", errs.ErrRoomUnavailable)
	ErrRoomClosed          = fmt.Errorf("engine: room is not available: %w", errs.ErrRoomUnavailable)
	ErrRoomMismatch        = fmt.Errorf("engine: room does not belong to accommodation: %w", errs.ErrNotFound)
	ErrCheckInPast         = fmt.Errorf("engine: check-in date is in the past: %w", errs.ErrInvalidDateRange)
)

// SystemActor is recorded as UpdatedBy for transitions the engine performs on its own.
const SystemActor directory.UserID = "system"

type Engine struct {
	Catalog    catalog.Catalog
	Directory  directory.Directory
	UoWFactory uow.UoWFactory
	Locker     policies.Locker
	Pricing    policies.PricingPort
	References reference.Generator
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	// Maintenance supplies maintenance windows that block units. Optional.
	Maintenance availability.BlockSource

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string

	FreeCancellationWindow time.Duration
	LatePenaltyPercent     int
	// SettleOnRead completes finished stays while listing a user's bookings.
	SettleOnRead bool
}

func (e *Engine) ready() error {
	if e == nil || e.Catalog == nil || e.Directory == nil || e.UoWFactory == nil || e.Locker == nil || e.Pricing == nil {
		return ErrNotConfigured
	}
	return nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) encoder() outbox.EventEncoder {
	if e.Encoder != nil {
		return e.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (e *Engine) cancellationWindow(acc catalog.Accommodation) time.Duration {
	if acc.FreeCancellation > 0 {
		return acc.FreeCancellation
	}
	if e.FreeCancellationWindow > 0 {
		return e.FreeCancellationWindow
	}
	return booking.DefaultFreeCancellationWindow
}

func (e *Engine) latePenalty() int {
	if e.LatePenaltyPercent > 0 {
		return e.LatePenaltyPercent
	}
	return booking.DefaultLatePenaltyPercent
}

// checker builds the availability checker for unit with the maintenance windows overlapping dr.
func (e *Engine) checker(ctx context.Context, unit booking.UnitKey, dr daterange.DateRange) (availability.Checker, error) {
	if e.Maintenance == nil {
		return availability.Checker{}, nil
	}
	blocks, err := e.Maintenance.Blocks(ctx, unit, dr)
	if err != nil {
		return availability.Checker{}, fmt.Errorf("engine: maintenance windows for %s: %w", unit, err)
	}
	return availability.Checker{Blocks: availability.Checker{Blocks: blocks}.BlockConflicts(dr)}, nil
}

// activeUser loads a user and rejects inactive accounts.
func (e *Engine) activeUser(ctx context.Context, id directory.UserID) (directory.User, error) {
	user, err := e.Directory.User(ctx, id)
	if err != nil {
		return directory.User{}, err
	}
	if !user.Active {
		return directory.User{}, ErrUserInactive
	}
	return user, nil
}

// withUnit runs fn inside a write unit of work and commits when fn succeeds.
func (e *Engine) withUnit(ctx context.Context, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	unit, txCtx, err := uow.Begin(ctx, e.UoWFactory, uow.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(txCtx)
		}
	}()
	if err := fn(txCtx, unit); err != nil {
		return err
	}
	if err := unit.Commit(txCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (e *Engine) lock(ctx context.Context, key string) (policies.Release, error) {
	release, err := e.Locker.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("engine: lock %s: %w", key, err)
	}
	return release, nil
}

func bookingLockKey(id booking.ID) string {
	return "booking:" + string(id)
}

func today(now time.Time) time.Time {
	return daterange.Day(now)
}
