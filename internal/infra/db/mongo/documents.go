package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type priceDocument struct {
	Nights   int           `bson:"nights"`
	Nightly  moneyDocument `bson:"nightly"`
	Subtotal moneyDocument `bson:"subtotal"`
	Tax      moneyDocument `bson:"tax"`
	Total    moneyDocument `bson:"total"`
	TaxRate  string        `bson:"tax_rate"`
	Modifier string        `bson:"modifier"`
}

type historyDocument struct {
	From  string `bson:"from,omitempty"`
	To    string `bson:"to"`
	Event string `bson:"event"`
	At    int64  `bson:"at"`
	By    string `bson:"by,omitempty"`
}

type cancellationDocument struct {
	At         int64         `bson:"at"`
	By         string        `bson:"by"`
	Reason     string        `bson:"reason,omitempty"`
	Refundable bool          `bson:"refundable"`
	Refund     moneyDocument `bson:"refund"`
	Penalty    moneyDocument `bson:"penalty"`
}

type bookingDocument struct {
	ID              string                `bson:"_id"`
	Reference       string                `bson:"reference"`
	UserID          string                `bson:"user_id"`
	AccommodationID string                `bson:"accommodation_id"`
	RoomID          string                `bson:"room_id,omitempty"`
	UnitKey         string                `bson:"unit_key"`
	Range           rangeDocument         `bson:"range"`
	Guests          int                   `bson:"guests"`
	Status          string                `bson:"status"`
	Price           priceDocument         `bson:"price"`
	Payment         string                `bson:"payment"`
	PaymentRef      string                `bson:"payment_ref,omitempty"`
	FreeUntil       int64                 `bson:"free_cancellation_until"`
	LatePenalty     int                   `bson:"late_penalty_percent"`
	Cancellation    *cancellationDocument `bson:"cancellation,omitempty"`
	CheckedInAt     int64                 `bson:"checked_in_at,omitempty"`
	SpecialRequests string                `bson:"special_requests,omitempty"`
	History         []historyDocument     `bson:"history"`
	CreatedAt       int64                 `bson:"created_at"`
	UpdatedAt       int64                 `bson:"updated_at"`
	UpdatedBy       string                `bson:"updated_by,omitempty"`
	Version         int64                 `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:              string(b.ID),
		Reference:       b.Reference,
		UserID:          string(b.UserID),
		AccommodationID: string(b.AccommodationID),
		RoomID:          string(b.RoomID),
		UnitKey:         string(b.Unit()),
		Range:           rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:          b.Guests,
		Status:          string(b.Status),
		Price: priceDocument{
			Nights:   b.Price.Nights,
			Nightly:  newMoneyDocument(b.Price.Nightly),
			Subtotal: newMoneyDocument(b.Price.Subtotal),
			Tax:      newMoneyDocument(b.Price.Tax),
			Total:    newMoneyDocument(b.Price.Total),
			TaxRate:  b.Price.TaxRate.String(),
			Modifier: b.Price.Modifier.String(),
		},
		Payment:         string(b.Payment),
		PaymentRef:      b.PaymentRef,
		FreeUntil:       timeToTimestamp(b.Policy.FreeCancellationUntil),
		LatePenalty:     b.Policy.LatePenaltyPercent,
		CheckedInAt:     timeToTimestamp(b.CheckedInAt),
		SpecialRequests: b.SpecialRequests,
		History:         make([]historyDocument, 0, len(b.History)),
		CreatedAt:       b.CreatedAt.UnixMilli(),
		UpdatedAt:       b.UpdatedAt.UnixMilli(),
		UpdatedBy:       string(b.UpdatedBy),
		Version:         b.Version,
	}
	for _, h := range b.History {
		doc.History = append(doc.History, historyDocument{
			From:  string(h.From),
			To:    string(h.To),
			Event: string(h.Event),
			At:    h.At.UnixMilli(),
			By:    string(h.By),
		})
	}
	if c := b.Cancellation; c != nil {
		doc.Cancellation = &cancellationDocument{
			At:         c.At.UnixMilli(),
			By:         string(c.By),
			Reason:     c.Reason,
			Refundable: c.Refundable,
			Refund:     newMoneyDocument(c.Refund),
			Penalty:    newMoneyDocument(c.Penalty),
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	status, err := domainbooking.ParseStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("mongo: booking %s: %w", d.ID, err)
	}
	b := &domainbooking.Booking{
		ID:              domainbooking.ID(d.ID),
		Reference:       d.Reference,
		UserID:          directory.UserID(d.UserID),
		AccommodationID: catalog.AccommodationID(d.AccommodationID),
		RoomID:          catalog.RoomID(d.RoomID),
		Range:           daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Guests:          d.Guests,
		Status:          status,
		Price: pricing.PriceBreakdown{
			Nights:   d.Price.Nights,
			Nightly:  d.Price.Nightly.toMoney(),
			Subtotal: d.Price.Subtotal.toMoney(),
			Tax:      d.Price.Tax.toMoney(),
			Total:    d.Price.Total.toMoney(),
			TaxRate:  parseDecimal(d.Price.TaxRate),
			Modifier: parseDecimal(d.Price.Modifier),
		},
		Payment:    domainbooking.PaymentStatus(d.Payment),
		PaymentRef: d.PaymentRef,
		Policy: domainbooking.CancellationPolicy{
			FreeCancellationUntil: timestampToTime(d.FreeUntil),
			LatePenaltyPercent:    d.LatePenalty,
		},
		CheckedInAt:     timestampToTime(d.CheckedInAt),
		SpecialRequests: d.SpecialRequests,
		History:         make([]domainbooking.HistoryEntry, 0, len(d.History)),
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
		UpdatedBy:       directory.UserID(d.UpdatedBy),
		Version:         d.Version,
	}
	for _, h := range d.History {
		b.History = append(b.History, domainbooking.HistoryEntry{
			From:  domainbooking.Status(h.From),
			To:    domainbooking.Status(h.To),
			Event: domainbooking.Event(h.Event),
			At:    timestampToTime(h.At),
			By:    directory.UserID(h.By),
		})
	}
	if c := d.Cancellation; c != nil {
		b.Cancellation = &domainbooking.Cancellation{
			At:         timestampToTime(c.At),
			By:         directory.UserID(c.By),
			Reason:     c.Reason,
			Refundable: c.Refundable,
			Refund:     c.Refund.toMoney(),
			Penalty:    c.Penalty.toMoney(),
		}
	}
	return b, nil
}

type accommodationDocument struct {
	ID               string        `bson:"_id"`
	Name             string        `bson:"name"`
	BasePrice        moneyDocument `bson:"base_price"`
	StarRating       float64       `bson:"star_rating"`
	Active           bool          `bson:"active"`
	CheckInTime      string        `bson:"check_in_time,omitempty"`
	FreeCancellation int64         `bson:"free_cancellation_seconds,omitempty"`
}

type roomDocument struct {
	ID              string `bson:"_id"`
	AccommodationID string `bson:"accommodation_id"`
	Name            string `bson:"name"`
	Capacity        int    `bson:"capacity"`
	PriceModifier   string `bson:"price_modifier"`
	Available       bool   `bson:"available"`
}

type userDocument struct {
	ID           string   `bson:"_id"`
	Email        string   `bson:"email"`
	Name         string   `bson:"name"`
	Roles        []string `bson:"roles"`
	Active       bool     `bson:"active"`
	PasswordHash string   `bson:"password_hash,omitempty"`
}

func (d accommodationDocument) toAccommodation() catalog.Accommodation {
	return catalog.Accommodation{
		ID:               catalog.AccommodationID(d.ID),
		Name:             d.Name,
		BasePrice:        d.BasePrice.toMoney(),
		StarRating:       d.StarRating,
		Active:           d.Active,
		CheckInTime:      d.CheckInTime,
		FreeCancellation: time.Duration(d.FreeCancellation) * time.Second,
	}
}

func (d roomDocument) toRoom() catalog.Room {
	return catalog.Room{
		ID:              catalog.RoomID(d.ID),
		AccommodationID: catalog.AccommodationID(d.AccommodationID),
		Name:            d.Name,
		Capacity:        d.Capacity,
		PriceModifier:   parseDecimal(d.PriceModifier),
		Available:       d.Available,
	}
}

func (d userDocument) toUser() directory.User {
	roles := make([]directory.Role, 0, len(d.Roles))
	for _, r := range d.Roles {
		roles = append(roles, directory.Role(r))
	}
	return directory.User{
		ID:           directory.UserID(d.ID),
		Email:        d.Email,
		Name:         d.Name,
		Roles:        roles,
		Active:       d.Active,
		PasswordHash: d.PasswordHash,
	}
}

func parseDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
