package booking

import (
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
)

type Event string

const (
	EventCreate   Event = "create"
	EventConfirm  Event = "confirm"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete"
	EventNoShow   Event = "no_show"
	EventArrive   Event = "arrive"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errs.ErrInvalidTransition

// transitions is the only place that decides which status an event may move a booking to.
// Terminal statuses have no outgoing edges.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventConfirm: StatusConfirmed,
		EventCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		EventCancel:   StatusCancelled,
		EventComplete: StatusCompleted,
		EventNoShow:   StatusNoShow,
		EventArrive:   StatusConfirmed,
	},
}

var eventTargets = map[Event]Status{
	EventConfirm:  StatusConfirmed,
	EventCancel:   StatusCancelled,
	EventComplete: StatusCompleted,
	EventNoShow:   StatusNoShow,
	EventArrive:   StatusConfirmed,
}

// TransitionError names the rejected from/to pair and, for guard failures, why.
type TransitionError struct {
	From   Status
	To     Status
	Event  Event
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("booking: cannot %s from %s to %s", e.Event, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == errs.ErrInvalidTransition
}

// Next resolves the target status of event from status, or a *TransitionError.
func Next(from Status, event Event) (Status, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	reason := ""
	if from.Terminal() {
		reason = "status is terminal"
	}
	return "", &TransitionError{From: from, To: eventTargets[event], Event: event, Reason: reason}
}

// Confirm captures payment for a pending booking.
func (b *Booking) Confirm(paymentRef string, by directory.UserID, now time.Time) error {
	to, err := Next(b.Status, EventConfirm)
	if err != nil {
		return err
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if b.Price.Total.IsPositive() && paymentRef == "" {
		return ErrPaymentRequired
	}
	b.PaymentRef = paymentRef
	b.Payment = PaymentCaptured
	b.apply(EventConfirm, to, by, now)
	b.Record(BookingConfirmed{BookingID: b.ID, Reference: b.Reference, Total: b.Price.Total, At: b.UpdatedAt})
	return nil
}

// Cancel is allowed while the check-in day is still ahead. The policy snapshot decides
// whether the cancellation is refundable.
func (b *Booking) Cancel(reason string, by directory.UserID, now time.Time) (Cancellation, error) {
	to, err := Next(b.Status, EventCancel)
	if err != nil {
		return Cancellation{}, err
	}
	if !daterange.Day(now).Before(b.Range.CheckIn) {
		return Cancellation{}, b.guardFailure(EventCancel, to, "check-in date has been reached")
	}
	outcome := b.Policy.Evaluate(b.Price.Total, now)
	outcome.At = now.UTC()
	outcome.By = by
	outcome.Reason = strings.TrimSpace(reason)
	if b.Payment == PaymentCaptured {
		if outcome.Refund.IsPositive() {
			b.Payment = PaymentRefundDue
		} else {
			b.Payment = PaymentNonRefundable
		}
	}
	b.Cancellation = &outcome
	b.apply(EventCancel, to, by, now)
	b.Record(BookingCancelled{
		BookingID:  b.ID,
		Reference:  b.Reference,
		Refundable: outcome.Refundable,
		Refund:     outcome.Refund,
		Penalty:    outcome.Penalty,
		Reason:     outcome.Reason,
		At:         b.UpdatedAt,
	})
	return outcome, nil
}

// RecordArrival marks the guest as checked in. Status stays CONFIRMED.
func (b *Booking) RecordArrival(by directory.UserID, now time.Time) error {
	to, err := Next(b.Status, EventArrive)
	if err != nil {
		return err
	}
	if !b.CheckedInAt.IsZero() {
		return b.guardFailure(EventArrive, to, "arrival already recorded")
	}
	if !b.Range.ContainsDay(now) {
		return b.guardFailure(EventArrive, to, "arrival outside the stay window")
	}
	b.CheckedInAt = now.UTC()
	b.apply(EventArrive, to, by, now)
	b.Record(GuestArrived{BookingID: b.ID, Reference: b.Reference, At: b.UpdatedAt})
	return nil
}

// Complete is allowed once the check-out day has been reached.
func (b *Booking) Complete(by directory.UserID, now time.Time) error {
	to, err := Next(b.Status, EventComplete)
	if err != nil {
		return err
	}
	if daterange.Day(now).Before(b.Range.CheckOut) {
		return b.guardFailure(EventComplete, to, "check-out date not reached")
	}
	b.apply(EventComplete, to, by, now)
	b.Record(BookingCompleted{BookingID: b.ID, Reference: b.Reference, At: b.UpdatedAt})
	return nil
}

// MarkNoShow is allowed after the check-in day when no arrival was recorded.
func (b *Booking) MarkNoShow(by directory.UserID, now time.Time) error {
	to, err := Next(b.Status, EventNoShow)
	if err != nil {
		return err
	}
	if !daterange.Day(now).After(b.Range.CheckIn) {
		return b.guardFailure(EventNoShow, to, "check-in date has not passed")
	}
	if !b.CheckedInAt.IsZero() {
		return b.guardFailure(EventNoShow, to, "guest checked in")
	}
	b.apply(EventNoShow, to, by, now)
	b.Record(NoShowRecorded{BookingID: b.ID, Reference: b.Reference, At: b.UpdatedAt})
	return nil
}

func (b *Booking) apply(event Event, to Status, by directory.UserID, now time.Time) {
	at := now.UTC()
	b.History = append(b.History, HistoryEntry{From: b.Status, To: to, Event: event, At: at, By: by})
	b.Status = to
	b.UpdatedAt = at
	b.UpdatedBy = by
}

func (b *Booking) guardFailure(event Event, to Status, reason string) error {
	return &TransitionError{From: b.Status, To: to, Event: event, Reason: reason}
}
