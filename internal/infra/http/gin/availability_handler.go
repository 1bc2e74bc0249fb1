package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/daterange"
)

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Quote(c *gin.Context) {
	dr, err := daterange.Parse(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	guests := 1
	if raw := c.Query("guests"); raw != "" {
		guests, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "guests must be an integer"})
			return
		}
	}
	query := bookingapp.QuoteQuery{
		AccommodationID: c.Param("id"),
		RoomID:          c.Query("room_id"),
		CheckIn:         dr.CheckIn,
		CheckOut:        dr.CheckOut,
		Guests:          guests,
	}
	result, err := queries.Ask[bookingapp.QuoteQuery, dto.PriceBreakdown](requestContext(c), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Availability(c *gin.Context) {
	dr, err := daterange.Parse(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	query := bookingapp.AvailabilityQuery{
		AccommodationID: c.Param("id"),
		RoomID:          c.Query("room_id"),
		CheckIn:         dr.CheckIn,
		CheckOut:        dr.CheckOut,
	}
	if p, ok := currentPrincipal(c); ok {
		query.ActorID = string(p.ID)
	}
	result, err := queries.Ask[bookingapp.AvailabilityQuery, dto.Availability](requestContext(c), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
