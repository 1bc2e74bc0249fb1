package booking

import (
	"time"

	"staybook/internal/domain/shared/money"
)

const (
	DefaultFreeCancellationWindow = 48 * time.Hour
	DefaultLatePenaltyPercent     = 100
)

// CancellationPolicy is snapshotted onto the booking at creation so later catalog edits
// never change the terms the guest accepted.
type CancellationPolicy struct {
	FreeCancellationUntil time.Time
	LatePenaltyPercent    int
}

// NewCancellationPolicy allows fee-free cancellation until window before check-in.
func NewCancellationPolicy(checkIn time.Time, window time.Duration, latePenaltyPercent int) CancellationPolicy {
	if window < 0 {
		window = 0
	}
	return CancellationPolicy{
		FreeCancellationUntil: checkIn.UTC().Add(-window),
		LatePenaltyPercent:    clampPercent(latePenaltyPercent),
	}
}

// Evaluate splits total into refund and penalty for a cancellation at the given time.
func (p CancellationPolicy) Evaluate(total money.Money, at time.Time) Cancellation {
	refundable := !p.FreeCancellationUntil.IsZero() && at.Before(p.FreeCancellationUntil)
	percent := 0
	if !refundable {
		percent = clampPercent(p.LatePenaltyPercent)
	}
	penalty := total.Percent(percent)
	refund, err := total.Sub(penalty)
	if err != nil {
		refund = money.Money{Currency: total.Currency}
	}
	return Cancellation{Refundable: refundable, Refund: refund, Penalty: penalty}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
