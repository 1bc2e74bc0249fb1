package daterange

import (
	"fmt"
	"time"

	"staybook/internal/domain/shared/errs"
)

const (
	dayLayout  = "2006-01-02"
	secsPerDay = 24 * 60 * 60
)

var (
	ErrInvalidRange = fmt.Errorf("daterange: checkout must be after checkin: %w", errs.ErrInvalidDateRange)
	ErrInvalidDay   = fmt.Errorf("daterange: malformed day: %w", errs.ErrInvalidDateRange)
)

// DateRange represents a half-open interval of calendar days [CheckIn, CheckOut).
// Both bounds are kept at UTC midnight so that the check-out day is never occupied.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDay(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDay(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

// MustParse is Parse for fixtures and tests.
func MustParse(checkIn, checkOut string) DateRange {
	dr, err := Parse(checkIn, checkOut)
	if err != nil {
		panic(err)
	}
	return dr
}

func ParseDay(value string) (time.Time, error) {
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, value)
	}
	return t.UTC(), nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EpochDay returns the number of days since 1970-01-01 for the calendar day of t.
func EpochDay(t time.Time) int64 {
	return Day(t).Unix() / secsPerDay
}

func FormatDay(t time.Time) string {
	return Day(t).Format(dayLayout)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if EpochDay(dr.CheckOut) <= EpochDay(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(EpochDay(dr.CheckOut) - EpochDay(dr.CheckIn))
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDay(t time.Time) bool {
	d := Day(t)
	return !d.Before(dr.CheckIn) && d.Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return FormatDay(dr.CheckIn) + "/" + FormatDay(dr.CheckOut)
}
