package dto

import (
	"time"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type CancellationDTO struct {
	At         time.Time `json:"at"`
	By         string    `json:"by"`
	Reason     string    `json:"reason,omitempty"`
	Refundable bool      `json:"refundable"`
	Refund     MoneyDTO  `json:"refund"`
	Penalty    MoneyDTO  `json:"penalty"`
}

type HistoryEntryDTO struct {
	From  string    `json:"from,omitempty"`
	To    string    `json:"to"`
	Event string    `json:"event"`
	At    time.Time `json:"at"`
	By    string    `json:"by,omitempty"`
}

type Booking struct {
	ID                    string            `json:"id"`
	Reference             string            `json:"reference"`
	UserID                string            `json:"user_id"`
	AccommodationID       string            `json:"accommodation_id"`
	RoomID                string            `json:"room_id,omitempty"`
	CheckIn               string            `json:"check_in"`
	CheckOut              string            `json:"check_out"`
	Nights                int               `json:"nights"`
	Guests                int               `json:"guests"`
	Status                string            `json:"status"`
	PaymentStatus         string            `json:"payment_status"`
	Price                 PriceBreakdown    `json:"price"`
	FreeCancellationUntil time.Time         `json:"free_cancellation_until"`
	Cancellation          *CancellationDTO  `json:"cancellation,omitempty"`
	CheckedInAt           *time.Time        `json:"checked_in_at,omitempty"`
	SpecialRequests       string            `json:"special_requests,omitempty"`
	History               []HistoryEntryDTO `json:"history"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	UpdatedBy             string            `json:"updated_by,omitempty"`
}

type BookingCollection struct {
	Partition string    `json:"partition"`
	Items     []Booking `json:"items"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
		Value:    value.String(),
	}
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:                    string(b.ID),
		Reference:             b.Reference,
		UserID:                string(b.UserID),
		AccommodationID:       string(b.AccommodationID),
		RoomID:                string(b.RoomID),
		CheckIn:               daterange.FormatDay(b.Range.CheckIn),
		CheckOut:              daterange.FormatDay(b.Range.CheckOut),
		Nights:                b.Range.Nights(),
		Guests:                b.Guests,
		Status:                string(b.Status),
		PaymentStatus:         string(b.Payment),
		Price:                 MapPriceBreakdown(b.Price),
		FreeCancellationUntil: b.Policy.FreeCancellationUntil,
		SpecialRequests:       b.SpecialRequests,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
		UpdatedBy:             string(b.UpdatedBy),
		History:               make([]HistoryEntryDTO, 0, len(b.History)),
	}
	if c := b.Cancellation; c != nil {
		out.Cancellation = &CancellationDTO{
			At:         c.At,
			By:         string(c.By),
			Reason:     c.Reason,
			Refundable: c.Refundable,
			Refund:     MapMoney(c.Refund),
			Penalty:    MapMoney(c.Penalty),
		}
	}
	if !b.CheckedInAt.IsZero() {
		at := b.CheckedInAt
		out.CheckedInAt = &at
	}
	for _, h := range b.History {
		out.History = append(out.History, HistoryEntryDTO{
			From:  string(h.From),
			To:    string(h.To),
			Event: string(h.Event),
			At:    h.At,
			By:    string(h.By),
		})
	}
	return out
}

func MapBookings(partition domainbooking.Partition, items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Partition: string(partition), Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}
