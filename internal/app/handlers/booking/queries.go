package booking

import (
	"context"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/engine"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
)

const (
	listBookingsKey      = "booking.list"
	getBookingKey        = "booking.get"
	getByReferenceKey    = "booking.by_reference"
	quoteKey             = "booking.quote"
	checkAvailabilityKey = "booking.availability"
)

type ListBookingsQuery struct {
	ActorID   string `validate:"required"`
	Partition string `validate:"omitempty,oneof=upcoming past cancelled"`
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

func (q ListBookingsQuery) Actor() directory.UserID { return directory.UserID(q.ActorID) }

type GetBookingQuery struct {
	ActorID   string `validate:"required"`
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) Actor() directory.UserID { return directory.UserID(q.ActorID) }

type GetByReferenceQuery struct {
	ActorID   string `validate:"required"`
	Reference string `validate:"required,max=32"`
}

func (q GetByReferenceQuery) Key() string { return getByReferenceKey }

func (q GetByReferenceQuery) Actor() directory.UserID { return directory.UserID(q.ActorID) }

type QuoteQuery struct {
	AccommodationID string `validate:"required"`
	RoomID          string
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          int
}

func (q QuoteQuery) Key() string { return quoteKey }

// AvailabilityQuery may be anonymous; ActorID only controls whether booking references are shown.
type AvailabilityQuery struct {
	AccommodationID string `validate:"required"`
	RoomID          string
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	ActorID         string
}

func (q AvailabilityQuery) Key() string { return checkAvailabilityKey }

type QueryHandler struct {
	Engine *engine.Engine
}

func (h *QueryHandler) List(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	partition, err := domainbooking.ParsePartition(q.Partition)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	items, err := h.Engine.ListBookingsForUser(ctx, directory.UserID(q.ActorID), partition)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(partition, items), nil
}

func (h *QueryHandler) Get(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	return mapped(h.Engine.GetBooking(ctx, domainbooking.ID(q.BookingID), directory.UserID(q.ActorID)))
}

func (h *QueryHandler) ByReference(ctx context.Context, q GetByReferenceQuery) (*dto.Booking, error) {
	return mapped(h.Engine.GetByReference(ctx, q.Reference, directory.UserID(q.ActorID)))
}

func (h *QueryHandler) Quote(ctx context.Context, q QuoteQuery) (dto.PriceBreakdown, error) {
	price, err := h.Engine.Quote(ctx, engine.QuoteRequest{
		AccommodationID: catalog.AccommodationID(q.AccommodationID),
		RoomID:          catalog.RoomID(q.RoomID),
		CheckIn:         q.CheckIn,
		CheckOut:        q.CheckOut,
		Guests:          q.Guests,
	})
	if err != nil {
		return dto.PriceBreakdown{}, err
	}
	return dto.MapPriceBreakdown(price), nil
}

func (h *QueryHandler) Availability(ctx context.Context, q AvailabilityQuery) (dto.Availability, error) {
	res, err := h.Engine.CheckAvailability(ctx, engine.AvailabilityRequest{
		AccommodationID: catalog.AccommodationID(q.AccommodationID),
		RoomID:          catalog.RoomID(q.RoomID),
		CheckIn:         q.CheckIn,
		CheckOut:        q.CheckOut,
		ActorID:         directory.UserID(q.ActorID),
	})
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(string(res.Unit), res.Range, res.Available, res.Occupied), nil
}
