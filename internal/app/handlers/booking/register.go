package booking

import (
	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/engine"
	"staybook/internal/app/queries"
)

// Register binds every booking command and query to the engine.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, eng *engine.Engine) {
	create := &CreateBookingHandler{Engine: eng}
	lifecycle := &LifecycleHandler{Engine: eng}
	reads := &QueryHandler{Engine: eng}

	commands.RegisterHandler[CreateBookingCommand, *dto.Booking](cmdBus, createBookingKey, create)
	commands.RegisterHandler[CancelBookingCommand, *dto.Booking](cmdBus, cancelBookingKey, commands.HandlerFunc[CancelBookingCommand, *dto.Booking](lifecycle.Cancel))
	commands.RegisterHandler[ConfirmBookingCommand, *dto.Booking](cmdBus, confirmBookingKey, commands.HandlerFunc[ConfirmBookingCommand, *dto.Booking](lifecycle.Confirm))
	for _, key := range []string{recordArrivalKey, completeBookingKey, markNoShowKey} {
		commands.RegisterHandler[TransitionCommand, *dto.Booking](cmdBus, key, commands.HandlerFunc[TransitionCommand, *dto.Booking](lifecycle.Transition))
	}

	queries.RegisterHandler[ListBookingsQuery, dto.BookingCollection](queryBus, listBookingsKey, queries.HandlerFunc[ListBookingsQuery, dto.BookingCollection](reads.List))
	queries.RegisterHandler[GetBookingQuery, *dto.Booking](queryBus, getBookingKey, queries.HandlerFunc[GetBookingQuery, *dto.Booking](reads.Get))
	queries.RegisterHandler[GetByReferenceQuery, *dto.Booking](queryBus, getByReferenceKey, queries.HandlerFunc[GetByReferenceQuery, *dto.Booking](reads.ByReference))
	queries.RegisterHandler[QuoteQuery, dto.PriceBreakdown](queryBus, quoteKey, queries.HandlerFunc[QuoteQuery, dto.PriceBreakdown](reads.Quote))
	queries.RegisterHandler[AvailabilityQuery, dto.Availability](queryBus, checkAvailabilityKey, queries.HandlerFunc[AvailabilityQuery, dto.Availability](reads.Availability))
}
