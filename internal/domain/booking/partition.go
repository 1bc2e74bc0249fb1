package booking

import (
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/shared/daterange"
)

type Partition string

const (
	PartitionUpcoming  Partition = "upcoming"
	PartitionPast      Partition = "past"
	PartitionCancelled Partition = "cancelled"
)

func ParsePartition(raw string) (Partition, error) {
	p := Partition(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PartitionUpcoming, PartitionPast, PartitionCancelled:
		return p, nil
	case "":
		return PartitionUpcoming, nil
	}
	return "", fmt.Errorf("booking: unknown partition %q", raw)
}

// Classify places b in exactly one partition using only its status and dates.
// NO_SHOW and stale active bookings fall into Past.
func Classify(b *Booking, now time.Time) Partition {
	today := daterange.Day(now)
	switch {
	case b.Status == StatusCancelled:
		return PartitionCancelled
	case b.Status.Active() && !b.Range.CheckOut.Before(today):
		return PartitionUpcoming
	default:
		return PartitionPast
	}
}

// Filter keeps the bookings classified into p, preserving order.
func Filter(bookings []*Booking, p Partition, now time.Time) []*Booking {
	out := make([]*Booking, 0, len(bookings))
	for _, b := range bookings {
		if Classify(b, now) == p {
			out = append(out, b)
		}
	}
	return out
}

// NeedsSettlement reports whether a confirmed stay has ended and can be completed lazily.
func NeedsSettlement(b *Booking, now time.Time) bool {
	return b.Status == StatusConfirmed && b.Range.CheckOut.Before(daterange.Day(now))
}
