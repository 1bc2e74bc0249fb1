package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
	"staybook/internal/domain/shared/money"
)

var createdAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func testParams(t *testing.T) CreateParams {
	t.Helper()
	dr := daterange.MustParse("2025-06-10", "2025-06-13")
	price, err := pricing.Compute(pricing.Input{
		BaseNightly: money.Must(15000, "EUR"),
		Modifier:    decimal.RequireFromString("1.2"),
		Range:       dr,
		TaxRate:     decimal.RequireFromString("0.12"),
	})
	require.NoError(t, err)
	return CreateParams{
		ID:              "b-1",
		Reference:       "BK-7K3M9Q2X",
		UserID:          "u-1",
		AccommodationID: "acc-1",
		RoomID:          "room-1",
		Range:           dr,
		Guests:          2,
		Capacity:        4,
		Price:           price,
		Policy:          NewCancellationPolicy(dr.CheckIn, DefaultFreeCancellationWindow, DefaultLatePenaltyPercent),
		CreatedAt:       createdAt,
	}
}

func newTestBooking(t *testing.T, mutate func(*CreateParams)) *Booking {
	t.Helper()
	params := testParams(t)
	if mutate != nil {
		mutate(&params)
	}
	b, err := NewBooking(params)
	require.NoError(t, err)
	b.Drain()
	return b
}

func TestNewBookingDefaultsToConfirmed(t *testing.T) {
	b, err := NewBooking(testParams(t))
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, PaymentCaptured, b.Payment)
	assert.Equal(t, UnitKey("room:room-1"), b.Unit())
	require.Len(t, b.History, 1)
	assert.Equal(t, EventCreate, b.History[0].Event)

	pending := b.PendingEvents()
	require.Len(t, pending, 1)
	created, ok := pending[0].(BookingCreated)
	require.True(t, ok)
	assert.Equal(t, "604.80", created.Total.String())
}

func TestNewBookingDeferredPaymentIsPending(t *testing.T) {
	b := newTestBooking(t, func(p *CreateParams) { p.DeferPayment = true })
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentUnpaid, b.Payment)
}

func TestNewBookingCapacity(t *testing.T) {
	for _, guests := range []int{0, 5} {
		params := testParams(t)
		params.Guests = guests
		_, err := NewBooking(params)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrCapacityExceeded))
		var capErr *CapacityError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, guests, capErr.Guests)
	}

	params := testParams(t)
	params.RoomID = ""
	params.Capacity = 0
	params.Guests = 9
	b, err := NewBooking(params)
	require.NoError(t, err)
	assert.Equal(t, UnitKey("accommodation:acc-1"), b.Unit())
}

func TestCloneDropsEventsAndCopiesHistory(t *testing.T) {
	b, err := NewBooking(testParams(t))
	require.NoError(t, err)

	c := b.Clone()
	assert.Empty(t, c.PendingEvents())
	c.History[0].Event = EventCancel
	assert.Equal(t, EventCreate, b.History[0].Event)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" no_show ")
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, s)

	s, err = ParseStatus("CONFIRMED")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s)

	_, err = ParseStatus("ARCHIVED")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}
