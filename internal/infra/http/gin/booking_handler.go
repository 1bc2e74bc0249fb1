package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	AccommodationID string `json:"accommodation_id"`
	RoomID          string `json:"room_id"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Guests          int    `json:"guests"`
	SpecialRequests string `json:"special_requests"`
	DeferPayment    bool   `json:"defer_payment"`
	PaymentRef      string `json:"payment_ref"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type confirmRequest struct {
	PaymentRef string `json:"payment_ref"`
}

func (h BookingHandler) Create(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		ActorID:         string(p.ID),
		AccommodationID: req.AccommodationID,
		RoomID:          req.RoomID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		SpecialRequests: req.SpecialRequests,
		DeferPayment:    req.DeferPayment,
		PaymentRef:      req.PaymentRef,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](requestContext(c), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.ListBookingsQuery{ActorID: string(p.ID), Partition: c.Query("partition")}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](requestContext(c), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{ActorID: string(p.ID), BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](requestContext(c), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ByReference(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.GetByReferenceQuery{ActorID: string(p.ID), Reference: c.Param("ref")}
	result, err := queries.Ask[bookingapp.GetByReferenceQuery, *dto.Booking](requestContext(c), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cmd := bookingapp.CancelBookingCommand{ActorID: string(p.ID), BookingID: c.Param("id"), Reason: req.Reason}
	h.dispatch(c, func() (*dto.Booking, error) {
		return commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](requestContext(c), h.Commands, cmd)
	})
}

func (h BookingHandler) Confirm(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req confirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cmd := bookingapp.ConfirmBookingCommand{ActorID: string(p.ID), BookingID: c.Param("id"), PaymentRef: req.PaymentRef}
	h.dispatch(c, func() (*dto.Booking, error) {
		return commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.Booking](requestContext(c), h.Commands, cmd)
	})
}

func (h BookingHandler) Arrive(c *gin.Context) {
	h.transition(c, domainbooking.EventArrive)
}

func (h BookingHandler) Complete(c *gin.Context) {
	h.transition(c, domainbooking.EventComplete)
}

func (h BookingHandler) NoShow(c *gin.Context) {
	h.transition(c, domainbooking.EventNoShow)
}

func (h BookingHandler) transition(c *gin.Context, event domainbooking.Event) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := bookingapp.TransitionCommand{Event: event, ActorID: string(p.ID), BookingID: c.Param("id")}
	h.dispatch(c, func() (*dto.Booking, error) {
		return commands.Dispatch[bookingapp.TransitionCommand, *dto.Booking](requestContext(c), h.Commands, cmd)
	})
}

func (h BookingHandler) dispatch(c *gin.Context, run func() (*dto.Booking, error)) {
	result, err := run()
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
