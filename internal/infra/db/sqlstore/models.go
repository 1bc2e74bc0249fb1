package sqlstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

// Timestamps are stored as unix milliseconds so range comparisons behave the same on
// every driver.

type bookingRow struct {
	ID              string `gorm:"primaryKey;size:64"`
	Reference       string `gorm:"size:32;uniqueIndex"`
	UserID          string `gorm:"size:64;index"`
	AccommodationID string `gorm:"size:64"`
	RoomID          string `gorm:"size:64"`
	UnitKey         string `gorm:"size:160;index:idx_bookings_unit_range,priority:1"`
	CheckIn         int64  `gorm:"index:idx_bookings_unit_range,priority:2"`
	CheckOut        int64
	Guests          int
	Status          string `gorm:"size:16;index"`
	Currency        string `gorm:"size:3"`
	Nights          int
	NightlyAmount   int64
	SubtotalAmount  int64
	TaxAmount       int64
	TotalAmount     int64
	TaxRate         string `gorm:"size:32"`
	Modifier        string `gorm:"size:32"`
	Payment         string `gorm:"size:16"`
	PaymentRef      string `gorm:"size:128"`
	FreeUntil       int64
	LatePenalty     int
	CancelledAt     int64
	CancelledBy     string `gorm:"size:64"`
	CancelReason    string `gorm:"type:text"`
	Refundable      bool
	RefundAmount    int64
	PenaltyAmount   int64
	CheckedInAt     int64
	SpecialRequests string `gorm:"type:text"`
	CreatedAt       int64  `gorm:"autoCreateTime:false"`
	UpdatedAt       int64  `gorm:"autoUpdateTime:false"`
	UpdatedBy       string `gorm:"size:64"`
	Version         int64
}

func (bookingRow) TableName() string { return "bookings" }

type historyRow struct {
	BookingID string `gorm:"primaryKey;size:64"`
	Seq       int    `gorm:"primaryKey;autoIncrement:false"`
	FromState string `gorm:"size:16"`
	ToState   string `gorm:"size:16"`
	Event     string `gorm:"size:16"`
	At        int64
	By        string `gorm:"column:actor_id;size:64"`
}

func (historyRow) TableName() string { return "booking_history" }

// unitRow is touched by every insert for its unit so concurrent inserts serialize on it.
type unitRow struct {
	UnitKey string `gorm:"primaryKey;size:160"`
	Seq     int64
}

func (unitRow) TableName() string { return "booking_units" }

type outboxRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:64"`
	Aggregate     string `gorm:"size:64;index"`
	Payload       []byte
	Headers       string `gorm:"type:text"`
	OccurredAt    int64
	State         string `gorm:"size:16;index:idx_outbox_due,priority:1"`
	NextAttemptAt int64  `gorm:"index:idx_outbox_due,priority:2"`
	Attempts      int
	ClaimedBy     string `gorm:"size:64"`
	ClaimedAt     int64
	SentAt        int64
	LastError     string `gorm:"type:text"`
}

func (outboxRow) TableName() string { return "outbox_events" }

type idempotencyRow struct {
	Key        string `gorm:"column:idempotency_key;primaryKey;size:128"`
	Payload    []byte
	Error      string `gorm:"type:text"`
	ErrorKind  string `gorm:"size:64"`
	OccurredAt int64
	CreatedAt  int64 `gorm:"autoCreateTime:false;index"`
}

func (idempotencyRow) TableName() string { return "idempotency_records" }

type accommodationRow struct {
	ID               string `gorm:"primaryKey;size:64"`
	Name             string `gorm:"size:255"`
	BaseAmount       int64
	Currency         string `gorm:"size:3"`
	StarRating       float64
	Active           bool
	CheckInTime      string `gorm:"size:8"`
	FreeCancellation int64
}

func (accommodationRow) TableName() string { return "catalog_accommodations" }

type roomRow struct {
	ID              string `gorm:"primaryKey;size:64"`
	AccommodationID string `gorm:"size:64;index"`
	Name            string `gorm:"size:255"`
	Capacity        int
	PriceModifier   string `gorm:"size:32"`
	Available       bool
}

func (roomRow) TableName() string { return "catalog_rooms" }

type userRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"size:255;index"`
	Name         string `gorm:"size:255"`
	Roles        string `gorm:"size:255"`
	Active       bool
	PasswordHash string `gorm:"size:255"`
}

func (userRow) TableName() string { return "users" }

// Migrate creates or updates every table the store uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&bookingRow{},
		&historyRow{},
		&unitRow{},
		&outboxRow{},
		&idempotencyRow{},
		&accommodationRow{},
		&roomRow{},
		&userRow{},
	)
}

func newBookingRow(b *domainbooking.Booking) bookingRow {
	row := bookingRow{
		ID:              string(b.ID),
		Reference:       b.Reference,
		UserID:          string(b.UserID),
		AccommodationID: string(b.AccommodationID),
		RoomID:          string(b.RoomID),
		UnitKey:         string(b.Unit()),
		CheckIn:         toMillis(b.Range.CheckIn),
		CheckOut:        toMillis(b.Range.CheckOut),
		Guests:          b.Guests,
		Status:          string(b.Status),
		Currency:        b.Price.Total.Currency,
		Nights:          b.Price.Nights,
		NightlyAmount:   b.Price.Nightly.Amount,
		SubtotalAmount:  b.Price.Subtotal.Amount,
		TaxAmount:       b.Price.Tax.Amount,
		TotalAmount:     b.Price.Total.Amount,
		TaxRate:         b.Price.TaxRate.String(),
		Modifier:        b.Price.Modifier.String(),
		Payment:         string(b.Payment),
		PaymentRef:      b.PaymentRef,
		FreeUntil:       toMillis(b.Policy.FreeCancellationUntil),
		LatePenalty:     b.Policy.LatePenaltyPercent,
		CheckedInAt:     toMillis(b.CheckedInAt),
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       toMillis(b.CreatedAt),
		UpdatedAt:       toMillis(b.UpdatedAt),
		UpdatedBy:       string(b.UpdatedBy),
		Version:         b.Version,
	}
	if c := b.Cancellation; c != nil {
		row.CancelledAt = toMillis(c.At)
		row.CancelledBy = string(c.By)
		row.CancelReason = c.Reason
		row.Refundable = c.Refundable
		row.RefundAmount = c.Refund.Amount
		row.PenaltyAmount = c.Penalty.Amount
	}
	return row
}

// mutableColumns lists what Update may change. Identity, unit and price are fixed at creation.
func (r bookingRow) mutableColumns() map[string]any {
	return map[string]any{
		"status":         r.Status,
		"payment":        r.Payment,
		"payment_ref":    r.PaymentRef,
		"cancelled_at":   r.CancelledAt,
		"cancelled_by":   r.CancelledBy,
		"cancel_reason":  r.CancelReason,
		"refundable":     r.Refundable,
		"refund_amount":  r.RefundAmount,
		"penalty_amount": r.PenaltyAmount,
		"checked_in_at":  r.CheckedInAt,
		"updated_at":     r.UpdatedAt,
		"updated_by":     r.UpdatedBy,
		"version":        r.Version,
	}
}

func (r bookingRow) toAggregate(history []historyRow) (*domainbooking.Booking, error) {
	status, err := domainbooking.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: booking %s: %w", r.ID, err)
	}
	m := func(amount int64) money.Money { return money.Money{Amount: amount, Currency: r.Currency} }
	b := &domainbooking.Booking{
		ID:              domainbooking.ID(r.ID),
		Reference:       r.Reference,
		UserID:          directory.UserID(r.UserID),
		AccommodationID: catalog.AccommodationID(r.AccommodationID),
		RoomID:          catalog.RoomID(r.RoomID),
		Range:           daterange.DateRange{CheckIn: fromMillis(r.CheckIn), CheckOut: fromMillis(r.CheckOut)},
		Guests:          r.Guests,
		Status:          status,
		Price: pricing.PriceBreakdown{
			Nights:   r.Nights,
			Nightly:  m(r.NightlyAmount),
			Subtotal: m(r.SubtotalAmount),
			Tax:      m(r.TaxAmount),
			Total:    m(r.TotalAmount),
			TaxRate:  parseDecimal(r.TaxRate),
			Modifier: parseDecimal(r.Modifier),
		},
		Payment:    domainbooking.PaymentStatus(r.Payment),
		PaymentRef: r.PaymentRef,
		Policy: domainbooking.CancellationPolicy{
			FreeCancellationUntil: fromMillis(r.FreeUntil),
			LatePenaltyPercent:    r.LatePenalty,
		},
		CheckedInAt:     fromMillis(r.CheckedInAt),
		SpecialRequests: r.SpecialRequests,
		History:         make([]domainbooking.HistoryEntry, 0, len(history)),
		CreatedAt:       fromMillis(r.CreatedAt),
		UpdatedAt:       fromMillis(r.UpdatedAt),
		UpdatedBy:       directory.UserID(r.UpdatedBy),
		Version:         r.Version,
	}
	for _, h := range history {
		b.History = append(b.History, domainbooking.HistoryEntry{
			From:  domainbooking.Status(h.FromState),
			To:    domainbooking.Status(h.ToState),
			Event: domainbooking.Event(h.Event),
			At:    fromMillis(h.At),
			By:    directory.UserID(h.By),
		})
	}
	if status == domainbooking.StatusCancelled {
		b.Cancellation = &domainbooking.Cancellation{
			At:         fromMillis(r.CancelledAt),
			By:         directory.UserID(r.CancelledBy),
			Reason:     r.CancelReason,
			Refundable: r.Refundable,
			Refund:     m(r.RefundAmount),
			Penalty:    m(r.PenaltyAmount),
		}
	}
	return b, nil
}

func historyRows(b *domainbooking.Booking, from int) []historyRow {
	if from >= len(b.History) {
		return nil
	}
	out := make([]historyRow, 0, len(b.History)-from)
	for i := from; i < len(b.History); i++ {
		h := b.History[i]
		out = append(out, historyRow{
			BookingID: string(b.ID),
			Seq:       i,
			FromState: string(h.From),
			ToState:   string(h.To),
			Event:     string(h.Event),
			At:        toMillis(h.At),
			By:        string(h.By),
		})
	}
	return out
}

func (r accommodationRow) toAccommodation() catalog.Accommodation {
	return catalog.Accommodation{
		ID:               catalog.AccommodationID(r.ID),
		Name:             r.Name,
		BasePrice:        money.Money{Amount: r.BaseAmount, Currency: r.Currency},
		StarRating:       r.StarRating,
		Active:           r.Active,
		CheckInTime:      r.CheckInTime,
		FreeCancellation: time.Duration(r.FreeCancellation) * time.Second,
	}
}

func (r roomRow) toRoom() catalog.Room {
	return catalog.Room{
		ID:              catalog.RoomID(r.ID),
		AccommodationID: catalog.AccommodationID(r.AccommodationID),
		Name:            r.Name,
		Capacity:        r.Capacity,
		PriceModifier:   parseDecimal(r.PriceModifier),
		Available:       r.Available,
	}
}

func parseDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
