package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/errs"
)

func at(day string, hour int) time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
		ok    bool
	}{
		{StatusPending, EventConfirm, true},
		{StatusPending, EventCancel, true},
		{StatusPending, EventComplete, false},
		{StatusConfirmed, EventCancel, true},
		{StatusConfirmed, EventComplete, true},
		{StatusConfirmed, EventNoShow, true},
		{StatusConfirmed, EventConfirm, false},
		{StatusCancelled, EventCancel, false},
		{StatusCompleted, EventCancel, false},
		{StatusNoShow, EventComplete, false},
	}
	for _, tt := range tests {
		_, err := Next(tt.from, tt.event)
		assert.Equalf(t, tt.ok, err == nil, "%s --%s-->", tt.from, tt.event)
	}
}

func TestCancelBeforeFreeWindowIsRefundable(t *testing.T) {
	b := newTestBooking(t, nil)

	outcome, err := b.Cancel("plans changed", "u-1", at("2025-06-05", 9))
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, b.Status)
	assert.True(t, outcome.Refundable)
	assert.Equal(t, "604.80", outcome.Refund.String())
	assert.True(t, outcome.Penalty.IsZero())
	assert.Equal(t, PaymentRefundDue, b.Payment)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, "plans changed", b.Cancellation.Reason)
	assert.Len(t, b.History, 2)

	events := b.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.cancelled", events[0].EventName())
}

func TestCancelInsideFreeWindowChargesPenalty(t *testing.T) {
	b := newTestBooking(t, nil)

	outcome, err := b.Cancel("", "u-1", at("2025-06-09", 8))
	require.NoError(t, err)
	assert.False(t, outcome.Refundable)
	assert.True(t, outcome.Refund.IsZero())
	assert.Equal(t, "604.80", outcome.Penalty.String())
	assert.Equal(t, PaymentNonRefundable, b.Payment)
}

func TestCancelPendingBooking(t *testing.T) {
	b := newTestBooking(t, func(p *CreateParams) { p.DeferPayment = true })

	_, err := b.Cancel("", "u-1", at("2025-06-02", 12))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, PaymentUnpaid, b.Payment)
}

func TestCancelRejected(t *testing.T) {
	t.Run("on check-in day", func(t *testing.T) {
		b := newTestBooking(t, nil)
		_, err := b.Cancel("", "u-1", at("2025-06-10", 1))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
		assert.Equal(t, StatusConfirmed, b.Status)
		assert.Len(t, b.History, 1)
	})

	t.Run("already cancelled", func(t *testing.T) {
		b := newTestBooking(t, nil)
		_, err := b.Cancel("", "u-1", at("2025-06-02", 12))
		require.NoError(t, err)
		_, err = b.Cancel("", "u-1", at("2025-06-02", 13))
		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, StatusCancelled, te.From)
		assert.Equal(t, StatusCancelled, te.To)
	})

	t.Run("completed", func(t *testing.T) {
		b := newTestBooking(t, nil)
		require.NoError(t, b.Complete("admin", at("2025-06-13", 11)))
		_, err := b.Cancel("", "u-1", at("2025-06-14", 9))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestConfirmRequiresPaymentReference(t *testing.T) {
	b := newTestBooking(t, func(p *CreateParams) { p.DeferPayment = true })

	err := b.Confirm("  ", "u-1", at("2025-06-02", 9))
	assert.ErrorIs(t, err, ErrPaymentRequired)
	assert.Equal(t, StatusPending, b.Status)

	require.NoError(t, b.Confirm("pay_123", "u-1", at("2025-06-02", 9)))
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, PaymentCaptured, b.Payment)
	assert.Equal(t, "pay_123", b.PaymentRef)

	assert.ErrorIs(t, b.Confirm("pay_123", "u-1", at("2025-06-02", 10)), ErrInvalidTransition)
}

func TestCompleteRequiresCheckOutDay(t *testing.T) {
	b := newTestBooking(t, nil)

	err := b.Complete("admin", at("2025-06-12", 23))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, b.Complete("admin", at("2025-06-13", 0)))
	assert.Equal(t, StatusCompleted, b.Status)
	assert.Equal(t, "admin", string(b.UpdatedBy))
}

func TestNoShowGuards(t *testing.T) {
	b := newTestBooking(t, nil)
	assert.ErrorIs(t, b.MarkNoShow("admin", at("2025-06-10", 20)), ErrInvalidTransition)
	require.NoError(t, b.MarkNoShow("admin", at("2025-06-11", 9)))
	assert.Equal(t, StatusNoShow, b.Status)

	arrived := newTestBooking(t, nil)
	require.NoError(t, arrived.RecordArrival("admin", at("2025-06-10", 15)))
	assert.Equal(t, StatusConfirmed, arrived.Status)
	assert.ErrorIs(t, arrived.RecordArrival("admin", at("2025-06-10", 16)), ErrInvalidTransition)
	assert.ErrorIs(t, arrived.MarkNoShow("admin", at("2025-06-11", 9)), ErrInvalidTransition)
}

func TestRecordArrivalOutsideStay(t *testing.T) {
	b := newTestBooking(t, nil)
	assert.ErrorIs(t, b.RecordArrival("admin", at("2025-06-09", 15)), ErrInvalidTransition)
	assert.ErrorIs(t, b.RecordArrival("admin", at("2025-06-13", 9)), ErrInvalidTransition)
	assert.True(t, b.CheckedInAt.IsZero())
}
