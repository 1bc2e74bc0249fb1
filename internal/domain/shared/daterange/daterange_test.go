package daterange

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/errs"
)

func TestParseRejectsNonPositiveRanges(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  string
		checkOut string
	}{
		{name: "same day", checkIn: "2025-06-10", checkOut: "2025-06-10"},
		{name: "reversed", checkIn: "2025-06-12", checkOut: "2025-06-10"},
		{name: "malformed", checkIn: "10/06/2025", checkOut: "2025-06-12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.checkIn, tt.checkOut)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrInvalidDateRange))
		})
	}
}

func TestNightsUsesCalendarDays(t *testing.T) {
	in := time.Date(2025, 3, 29, 23, 30, 0, 0, time.UTC)
	out := time.Date(2025, 4, 1, 1, 0, 0, 0, time.UTC)
	dr, err := New(in, out)
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Nights())
	assert.Equal(t, "2025-03-29/2025-04-01", dr.String())
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	base := MustParse("2025-06-10", "2025-06-13")

	assert.True(t, base.Overlaps(MustParse("2025-06-12", "2025-06-14")))
	assert.True(t, base.Overlaps(MustParse("2025-06-09", "2025-06-11")))
	assert.True(t, base.Overlaps(MustParse("2025-06-11", "2025-06-12")))
	assert.False(t, base.Overlaps(MustParse("2025-06-13", "2025-06-15")))
	assert.False(t, base.Overlaps(MustParse("2025-06-08", "2025-06-10")))
}

func TestContainsDayExcludesCheckOut(t *testing.T) {
	dr := MustParse("2025-06-10", "2025-06-12")
	assert.True(t, dr.ContainsDay(time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)))
	assert.True(t, dr.ContainsDay(time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)))
	assert.False(t, dr.ContainsDay(time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)))
	assert.False(t, dr.ContainsDay(time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)))
}
