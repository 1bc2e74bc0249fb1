package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func TestClassify(t *testing.T) {
	today := time.Date(2025, 6, 12, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status Status
		rng    daterange.DateRange
		want   Partition
	}{
		{"future confirmed", StatusConfirmed, daterange.MustParse("2025-06-20", "2025-06-22"), PartitionUpcoming},
		{"future pending", StatusPending, daterange.MustParse("2025-06-20", "2025-06-22"), PartitionUpcoming},
		{"in progress", StatusConfirmed, daterange.MustParse("2025-06-10", "2025-06-14"), PartitionUpcoming},
		{"checking out today", StatusConfirmed, daterange.MustParse("2025-06-10", "2025-06-12"), PartitionUpcoming},
		{"stale confirmed", StatusConfirmed, daterange.MustParse("2025-06-01", "2025-06-05"), PartitionPast},
		{"completed", StatusCompleted, daterange.MustParse("2025-06-01", "2025-06-05"), PartitionPast},
		{"no show", StatusNoShow, daterange.MustParse("2025-06-10", "2025-06-14"), PartitionPast},
		{"cancelled future", StatusCancelled, daterange.MustParse("2025-06-20", "2025-06-22"), PartitionCancelled},
		{"cancelled past", StatusCancelled, daterange.MustParse("2025-06-01", "2025-06-05"), PartitionCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Status: tt.status, Range: tt.rng}
			assert.Equal(t, tt.want, Classify(b, today))
		})
	}
}

func TestFilterAndSettlement(t *testing.T) {
	today := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	stale := &Booking{ID: "a", Status: StatusConfirmed, Range: daterange.MustParse("2025-06-01", "2025-06-05")}
	future := &Booking{ID: "b", Status: StatusConfirmed, Range: daterange.MustParse("2025-06-20", "2025-06-21")}

	past := Filter([]*Booking{stale, future}, PartitionPast, today)
	require.Len(t, past, 1)
	assert.Equal(t, ID("a"), past[0].ID)

	assert.True(t, NeedsSettlement(stale, today))
	assert.False(t, NeedsSettlement(future, today))
}

func TestParsePartition(t *testing.T) {
	p, err := ParsePartition(" Past ")
	require.NoError(t, err)
	assert.Equal(t, PartitionPast, p)

	p, err = ParsePartition("")
	require.NoError(t, err)
	assert.Equal(t, PartitionUpcoming, p)

	_, err = ParsePartition("archived")
	assert.Error(t, err)
}

func TestCancellationPolicyEvaluate(t *testing.T) {
	checkIn := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	policy := NewCancellationPolicy(checkIn, 48*time.Hour, 30)
	total := money.Must(10000, "EUR")

	early := policy.Evaluate(total, checkIn.Add(-49*time.Hour))
	assert.True(t, early.Refundable)
	assert.Equal(t, int64(10000), early.Refund.Amount)

	late := policy.Evaluate(total, checkIn.Add(-47*time.Hour))
	assert.False(t, late.Refundable)
	assert.Equal(t, int64(3000), late.Penalty.Amount)
	assert.Equal(t, int64(7000), late.Refund.Amount)

	clamped := NewCancellationPolicy(checkIn, -time.Hour, 150)
	assert.Equal(t, checkIn, clamped.FreeCancellationUntil)
	assert.Equal(t, 100, clamped.LatePenaltyPercent)
}
