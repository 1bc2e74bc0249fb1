package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
)

type CreateRequest struct {
	UserID          directory.UserID
	AccommodationID catalog.AccommodationID
	RoomID          catalog.RoomID
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	SpecialRequests string
	// DeferPayment creates a PENDING booking awaiting ConfirmBooking.
	DeferPayment bool
	PaymentRef   string
}

// stay is a resolved bookable unit with the data pricing and capacity checks need.
type stay struct {
	accommodation catalog.Accommodation
	room          *catalog.Room
	unit          booking.UnitKey
	capacity      int
	modifier      decimal.Decimal
}

func (e *Engine) resolveStay(ctx context.Context, accID catalog.AccommodationID, roomID catalog.RoomID) (stay, error) {
	acc, err := e.Catalog.Accommodation(ctx, accID)
	if err != nil {
		return stay{}, err
	}
	if !acc.Active {
		return stay{}, ErrAccommodationClosed
	}
	s := stay{accommodation: acc, unit: booking.UnitFor(acc.ID, ""), modifier: decimal.NewFromInt(1)}
	if roomID == "" {
		return s, nil
	}
	room, err := e.Catalog.Room(ctx, roomID)
	if err != nil {
		return stay{}, err
	}
	if room.AccommodationID != acc.ID {
		return stay{}, ErrRoomMismatch
	}
	if !room.Available {
		return stay{}, ErrRoomClosed
	}
	s.room = &room
	s.unit = booking.UnitFor(acc.ID, room.ID)
	s.capacity = room.Capacity
	s.modifier = room.Modifier()
	return s, nil
}

// stayRange validates the dates and rejects check-ins before today.
func (e *Engine) stayRange(checkIn, checkOut time.Time) (daterange.DateRange, error) {
	dr, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return daterange.DateRange{}, err
	}
	if dr.CheckIn.Before(today(e.now())) {
		return daterange.DateRange{}, ErrCheckInPast
	}
	return dr, nil
}

// CreateBooking validates the request, then holds the unit lock across the overlap check,
// the insert and the commit. A lost race surfaces as RoomUnavailable.
func (e *Engine) CreateBooking(ctx context.Context, req CreateRequest) (*booking.Booking, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	user, err := e.activeUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	s, err := e.resolveStay(ctx, req.AccommodationID, req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := booking.CheckCapacity(req.Guests, s.capacity); err != nil {
		return nil, err
	}
	dr, err := e.stayRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	price, err := e.Pricing.Quote(s.accommodation.BasePrice, s.modifier, dr)
	if err != nil {
		return nil, err
	}
	checker, err := e.checker(ctx, s.unit, dr)
	if err != nil {
		return nil, err
	}

	release, err := e.lock(ctx, string(s.unit))
	if err != nil {
		return nil, err
	}
	defer release()

	var created *booking.Booking
	err = e.withUnit(ctx, func(ctx context.Context, unit uow.UnitOfWork) error {
		repo := unit.Bookings()
		existing, err := repo.Overlapping(ctx, s.unit, dr)
		if err != nil {
			return err
		}
		if err := checker.Ensure(s.unit, dr, existing); err != nil {
			return err
		}
		ref, err := e.References.Generate(ctx, referenceExists(repo))
		if err != nil {
			return err
		}
		now := e.now()
		var roomID catalog.RoomID
		if s.room != nil {
			roomID = s.room.ID
		}
		b, err := booking.NewBooking(booking.CreateParams{
			ID:              booking.ID(e.newID()),
			Reference:       ref,
			UserID:          user.ID,
			AccommodationID: s.accommodation.ID,
			RoomID:          roomID,
			Range:           dr,
			Guests:          req.Guests,
			Capacity:        s.capacity,
			Price:           price,
			Policy:          booking.NewCancellationPolicy(dr.CheckIn, e.cancellationWindow(s.accommodation), e.latePenalty()),
			SpecialRequests: req.SpecialRequests,
			DeferPayment:    req.DeferPayment,
			PaymentRef:      strings.TrimSpace(req.PaymentRef),
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		if err := repo.Insert(ctx, b); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), e.encoder(), b.Drain()); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger().InfoContext(ctx, "booking created",
		"booking_id", created.ID,
		"reference", created.Reference,
		"unit", s.unit,
		"range", dr.String(),
		"status", created.Status,
		"total", created.Price.Total.String(),
	)
	return created, nil
}

func referenceExists(repo booking.Repository) func(ctx context.Context, ref string) (bool, error) {
	return func(ctx context.Context, ref string) (bool, error) {
		_, err := repo.ByReference(ctx, ref)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, booking.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
}

type QuoteRequest struct {
	AccommodationID catalog.AccommodationID
	RoomID          catalog.RoomID
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
}

// Quote prices a stay with the same validation CreateBooking applies, without booking it.
func (e *Engine) Quote(ctx context.Context, req QuoteRequest) (pricing.PriceBreakdown, error) {
	if err := e.ready(); err != nil {
		return pricing.PriceBreakdown{}, err
	}
	s, err := e.resolveStay(ctx, req.AccommodationID, req.RoomID)
	if err != nil {
		return pricing.PriceBreakdown{}, err
	}
	if req.Guests != 0 {
		if err := booking.CheckCapacity(req.Guests, s.capacity); err != nil {
			return pricing.PriceBreakdown{}, err
		}
	}
	dr, err := e.stayRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return pricing.PriceBreakdown{}, err
	}
	return e.Pricing.Quote(s.accommodation.BasePrice, s.modifier, dr)
}

type AvailabilityRequest struct {
	AccommodationID catalog.AccommodationID
	RoomID          catalog.RoomID
	CheckIn         time.Time
	CheckOut        time.Time
	// ActorID is optional. Admins see the references of the bookings holding the unit.
	ActorID directory.UserID
}

type Availability struct {
	Unit      booking.UnitKey
	Range     daterange.DateRange
	Available bool
	// Occupied lists bookings and maintenance windows overlapping the requested range.
	Occupied []availability.Block
}

// CheckAvailability reports whether the unit is free for the whole range.
func (e *Engine) CheckAvailability(ctx context.Context, req AvailabilityRequest) (Availability, error) {
	if err := e.ready(); err != nil {
		return Availability{}, err
	}
	s, err := e.resolveStay(ctx, req.AccommodationID, req.RoomID)
	if err != nil {
		return Availability{}, err
	}
	dr, err := daterange.New(req.CheckIn, req.CheckOut)
	if err != nil {
		return Availability{}, err
	}
	showReferences, err := e.isAdmin(ctx, req.ActorID)
	if err != nil {
		return Availability{}, err
	}
	checker, err := e.checker(ctx, s.unit, dr)
	if err != nil {
		return Availability{}, err
	}
	unit, execCtx, cleanup, err := uow.BeginReadOnly(ctx, e.UoWFactory)
	if err != nil {
		return Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	existing, err := unit.Bookings().Overlapping(execCtx, s.unit, dr)
	if err != nil {
		return Availability{}, err
	}
	conflicts := checker.Conflicts(s.unit, dr, existing)
	out := Availability{
		Unit:      s.unit,
		Range:     dr,
		Available: checker.IsAvailable(s.unit, dr, existing),
		Occupied:  checker.Occupied(s.unit, conflicts),
	}
	if !showReferences {
		for i := range out.Occupied {
			out.Occupied[i].Reference = ""
		}
	}
	return out, nil
}

// isAdmin reports whether id names an active admin. Unknown or empty ids are anonymous.
func (e *Engine) isAdmin(ctx context.Context, id directory.UserID) (bool, error) {
	if strings.TrimSpace(string(id)) == "" {
		return false, nil
	}
	user, err := e.Directory.User(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Active && user.IsAdmin(), nil
}
