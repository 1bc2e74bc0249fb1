package availability

import (
	"context"
	"fmt"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
)

var ErrUnavailable = fmt.Errorf("availability: unit is booked for the requested dates: %w", errs.ErrRoomUnavailable)

type BlockReason string

const (
	ReasonBooking     BlockReason = "BOOKING"
	ReasonMaintenance BlockReason = "MAINTENANCE"
)

// Block is a range during which a unit cannot be sold.
type Block struct {
	Range     daterange.DateRange
	Reason    BlockReason
	Reference string
}

// BlockSource supplies maintenance windows for a unit that overlap dr. The engine
// reads them but never stores them.
type BlockSource interface {
	Blocks(ctx context.Context, unit booking.UnitKey, dr daterange.DateRange) ([]Block, error)
}

// Checker answers overlap questions for one unit. Blocks are extra ranges supplied by the
// caller and are never persisted.
type Checker struct {
	Blocks []Block
}

// IsAvailable reports whether dr is free for unit given the existing bookings.
func (c Checker) IsAvailable(unit booking.UnitKey, dr daterange.DateRange, existing []*booking.Booking) bool {
	return len(c.Conflicts(unit, dr, existing)) == 0 && len(c.BlockConflicts(dr)) == 0
}

// Conflicts returns the active bookings of unit whose ranges overlap dr. Back-to-back
// stays never conflict because the check-out day is not occupied.
func (c Checker) Conflicts(unit booking.UnitKey, dr daterange.DateRange, existing []*booking.Booking) []*booking.Booking {
	var out []*booking.Booking
	for _, b := range existing {
		if b == nil || !b.IsActive() || b.Unit() != unit {
			continue
		}
		if b.Range.Overlaps(dr) {
			out = append(out, b)
		}
	}
	return out
}

// BlockConflicts returns the caller blocks overlapping dr.
func (c Checker) BlockConflicts(dr daterange.DateRange) []Block {
	var out []Block
	for _, block := range c.Blocks {
		if block.Range.Overlaps(dr) {
			out = append(out, block)
		}
	}
	return out
}

// Ensure returns ErrUnavailable when dr cannot be booked.
func (c Checker) Ensure(unit booking.UnitKey, dr daterange.DateRange, existing []*booking.Booking) error {
	if !c.IsAvailable(unit, dr, existing) {
		return ErrUnavailable
	}
	return nil
}

// Occupied lists the ranges held by active bookings of unit plus caller blocks, as
// blocks in input order. Used to render availability calendars.
func (c Checker) Occupied(unit booking.UnitKey, existing []*booking.Booking) []Block {
	out := make([]Block, 0, len(existing)+len(c.Blocks))
	for _, b := range existing {
		if b == nil || !b.IsActive() || b.Unit() != unit {
			continue
		}
		out = append(out, Block{Range: b.Range, Reason: ReasonBooking, Reference: b.Reference})
	}
	return append(out, c.Blocks...)
}
