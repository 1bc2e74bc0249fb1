package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"staybook/internal/domain/shared/errs"
	"staybook/internal/domain/shared/money"
)

var (
	ErrAccommodationNotFound = fmt.Errorf("catalog: accommodation %w", errs.ErrNotFound)
	ErrRoomNotFound          = fmt.Errorf("catalog: room %w", errs.ErrNotFound)
	ErrIDRequired            = errors.New("catalog: id is required")
	ErrInvalidCapacity       = errors.New("catalog: room capacity must be positive")
	ErrInvalidModifier       = errors.New("catalog: price modifier must be positive")
	ErrInvalidBasePrice      = errors.New("catalog: base price must be positive")
)

type AccommodationID string

type RoomID string

// Accommodation is a read-only snapshot of a bookable property.
type Accommodation struct {
	ID          AccommodationID
	Name        string
	BasePrice   money.Money
	StarRating  float64
	Active      bool
	CheckInTime string
	// FreeCancellation overrides the engine-wide free cancellation window when positive.
	FreeCancellation time.Duration
}

// Room is a read-only snapshot of a room inside an accommodation.
type Room struct {
	ID              RoomID
	AccommodationID AccommodationID
	Name            string
	Capacity        int
	PriceModifier   decimal.Decimal
	Available       bool
}

// Catalog is the read-only port onto accommodation data owned by another service.
type Catalog interface {
	Accommodation(ctx context.Context, id AccommodationID) (Accommodation, error)
	Room(ctx context.Context, id RoomID) (Room, error)
}

func (a Accommodation) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return ErrIDRequired
	}
	if !a.BasePrice.IsPositive() {
		return ErrInvalidBasePrice
	}
	return nil
}

func (r Room) Validate() error {
	if strings.TrimSpace(string(r.ID)) == "" || strings.TrimSpace(string(r.AccommodationID)) == "" {
		return ErrIDRequired
	}
	if r.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if r.PriceModifier.IsNegative() {
		return ErrInvalidModifier
	}
	return nil
}

// Modifier returns the price multiplier, treating an unset value as 1.
func (r Room) Modifier() decimal.Decimal {
	if r.PriceModifier.IsZero() {
		return decimal.NewFromInt(1)
	}
	return r.PriceModifier
}
