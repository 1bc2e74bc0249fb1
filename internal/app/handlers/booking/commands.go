package booking

import (
	"context"
	"errors"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/engine"
	"staybook/internal/app/middleware"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
)

const (
	createBookingKey   = "booking.create"
	cancelBookingKey   = "booking.cancel"
	confirmBookingKey  = "booking.confirm"
	recordArrivalKey   = "booking.arrive"
	completeBookingKey = "booking.complete"
	markNoShowKey      = "booking.no_show"
)

type CreateBookingCommand struct {
	ActorID         string `validate:"required"`
	AccommodationID string `validate:"required"`
	RoomID          string `validate:"omitempty,max=64"`
	// CheckIn and CheckOut are YYYY-MM-DD days. Malformed days surface from the
	// engine as InvalidDateRange after the user, unit and capacity checks.
	CheckIn         string `validate:"max=32"`
	CheckOut        string `validate:"max=32"`
	Guests          int
	SpecialRequests string `validate:"max=1000"`
	DeferPayment    bool
	PaymentRef      string `validate:"max=128"`
	IdempotencyKeyV string `validate:"max=128"`
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) Actor() directory.UserID { return directory.UserID(c.ActorID) }

func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.ActorID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

type CreateBookingHandler struct {
	Engine *engine.Engine
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	checkIn, inErr := daterange.ParseDay(cmd.CheckIn)
	checkOut, outErr := daterange.ParseDay(cmd.CheckOut)
	b, err := h.Engine.CreateBooking(ctx, engine.CreateRequest{
		UserID:          directory.UserID(cmd.ActorID),
		AccommodationID: catalog.AccommodationID(cmd.AccommodationID),
		RoomID:          catalog.RoomID(cmd.RoomID),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          cmd.Guests,
		SpecialRequests: cmd.SpecialRequests,
		DeferPayment:    cmd.DeferPayment,
		PaymentRef:      cmd.PaymentRef,
	})
	if err != nil {
		// Unparsed days reach the engine as zero times; report the parse failure instead.
		if errors.Is(err, errs.ErrInvalidDateRange) {
			if parseErr := errors.Join(inErr, outErr); parseErr != nil {
				return nil, parseErr
			}
		}
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

type CancelBookingCommand struct {
	ActorID   string `validate:"required"`
	BookingID string `validate:"required"`
	Reason    string `validate:"max=500"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) Actor() directory.UserID { return directory.UserID(c.ActorID) }

type ConfirmBookingCommand struct {
	ActorID    string `validate:"required"`
	BookingID  string `validate:"required"`
	PaymentRef string `validate:"max=128"`
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) Actor() directory.UserID { return directory.UserID(c.ActorID) }

// TransitionCommand drives the admin-only transitions that carry no payload.
type TransitionCommand struct {
	Event     domainbooking.Event `validate:"required,oneof=arrive complete no_show"`
	ActorID   string              `validate:"required"`
	BookingID string              `validate:"required"`
}

func (c TransitionCommand) Key() string {
	switch c.Event {
	case domainbooking.EventArrive:
		return recordArrivalKey
	case domainbooking.EventComplete:
		return completeBookingKey
	default:
		return markNoShowKey
	}
}

func (c TransitionCommand) Actor() directory.UserID { return directory.UserID(c.ActorID) }

// LifecycleHandler serves every command that moves an existing booking.
type LifecycleHandler struct {
	Engine *engine.Engine
}

func (h *LifecycleHandler) Cancel(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	return mapped(h.Engine.CancelBooking(ctx, domainbooking.ID(cmd.BookingID), directory.UserID(cmd.ActorID), cmd.Reason))
}

func (h *LifecycleHandler) Confirm(ctx context.Context, cmd ConfirmBookingCommand) (*dto.Booking, error) {
	return mapped(h.Engine.ConfirmBooking(ctx, domainbooking.ID(cmd.BookingID), directory.UserID(cmd.ActorID), cmd.PaymentRef))
}

func (h *LifecycleHandler) Transition(ctx context.Context, cmd TransitionCommand) (*dto.Booking, error) {
	id := domainbooking.ID(cmd.BookingID)
	actor := directory.UserID(cmd.ActorID)
	switch cmd.Event {
	case domainbooking.EventArrive:
		return mapped(h.Engine.RecordArrival(ctx, id, actor))
	case domainbooking.EventComplete:
		return mapped(h.Engine.CompleteBooking(ctx, id, actor))
	default:
		return mapped(h.Engine.MarkNoShow(ctx, id, actor))
	}
}

func mapped(b *domainbooking.Booking, err error) (*dto.Booking, error) {
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var (
	_ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
	_ middleware.IdempotentCommand                         = CreateBookingCommand{}
	_ middleware.ActorMessage                              = CancelBookingCommand{}
)
