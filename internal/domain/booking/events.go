package booking

import (
	"time"

	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID       ID                      `json:"booking_id"`
	Reference       string                  `json:"reference"`
	UserID          directory.UserID        `json:"user_id"`
	AccommodationID catalog.AccommodationID `json:"accommodation_id"`
	RoomID          catalog.RoomID          `json:"room_id,omitempty"`
	Range           daterange.DateRange     `json:"range"`
	Guests          int                     `json:"guests"`
	Status          Status                  `json:"status"`
	Total           money.Money             `json:"total"`
	At              time.Time               `json:"at"`
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID ID          `json:"booking_id"`
	Reference string      `json:"reference"`
	Total     money.Money `json:"total"`
	At        time.Time   `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID  ID          `json:"booking_id"`
	Reference  string      `json:"reference"`
	Refundable bool        `json:"refundable"`
	Refund     money.Money `json:"refund"`
	Penalty    money.Money `json:"penalty"`
	Reason     string      `json:"reason,omitempty"`
	At         time.Time   `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type GuestArrived struct {
	BookingID ID        `json:"booking_id"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

func (e GuestArrived) EventName() string     { return "booking.arrived" }
func (e GuestArrived) AggregateID() string   { return string(e.BookingID) }
func (e GuestArrived) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID ID        `json:"booking_id"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type NoShowRecorded struct {
	BookingID ID        `json:"booking_id"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

func (e NoShowRecorded) EventName() string     { return "booking.no_show" }
func (e NoShowRecorded) AggregateID() string   { return string(e.BookingID) }
func (e NoShowRecorded) OccurredAt() time.Time { return e.At }
