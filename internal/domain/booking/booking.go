package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrNotFound           = fmt.Errorf("booking: %w", errs.ErrNotFound)
	ErrConflict           = fmt.Errorf("booking: overlapping active booking exists: %w", errs.ErrRoomUnavailable)
	ErrConcurrentUpdate   = errors.New("booking: concurrent update detected")
	ErrDuplicateReference = errors.New("booking: reference already in use")
	ErrIDRequired         = errors.New("booking: id is required")
	ErrReferenceRequired  = errors.New("booking: reference is required")
	ErrUserRequired       = errors.New("booking: user id is required")
	ErrTotalRequired      = errors.New("booking: total must be positive")
	ErrPaymentRequired    = errors.New("booking: payment reference required before confirmation")
)

type ID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return s, nil
	}
	return "", fmt.Errorf("booking: unknown status %q", raw)
}

// Active statuses block availability.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentCaptured      PaymentStatus = "CAPTURED"
	PaymentRefundDue     PaymentStatus = "REFUND_DUE"
	PaymentNonRefundable PaymentStatus = "NON_REFUNDABLE"
)

// UnitKey identifies the bookable unit: a room, or a whole accommodation booked as one unit.
type UnitKey string

func UnitFor(accommodationID catalog.AccommodationID, roomID catalog.RoomID) UnitKey {
	if roomID != "" {
		return UnitKey("room:" + string(roomID))
	}
	return UnitKey("accommodation:" + string(accommodationID))
}

type HistoryEntry struct {
	From  Status
	To    Status
	Event Event
	At    time.Time
	By    directory.UserID
}

type Cancellation struct {
	At         time.Time
	By         directory.UserID
	Reason     string
	Refundable bool
	Refund     money.Money
	Penalty    money.Money
}

type Booking struct {
	ID              ID
	Reference       string
	UserID          directory.UserID
	AccommodationID catalog.AccommodationID
	RoomID          catalog.RoomID
	Range           daterange.DateRange
	Guests          int
	Status          Status
	Price           pricing.PriceBreakdown
	Payment         PaymentStatus
	PaymentRef      string
	Policy          CancellationPolicy
	Cancellation    *Cancellation
	CheckedInAt     time.Time
	SpecialRequests string
	History         []HistoryEntry
	CreatedAt       time.Time
	UpdatedAt       time.Time
	UpdatedBy       directory.UserID
	Version         int64
	events.Recorder
}

// Repository is the booking store. Implementations run inside a unit of work; Insert
// must refuse a booking that overlaps an active booking of the same unit.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Booking, error)
	ByReference(ctx context.Context, ref string) (*Booking, error)
	ListByUser(ctx context.Context, userID directory.UserID) ([]*Booking, error)
	Overlapping(ctx context.Context, unit UnitKey, dr daterange.DateRange) ([]*Booking, error)
	Insert(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
}

type CreateParams struct {
	ID              ID
	Reference       string
	UserID          directory.UserID
	AccommodationID catalog.AccommodationID
	RoomID          catalog.RoomID
	Range           daterange.DateRange
	Guests          int
	// Capacity is the room capacity; zero means the accommodation has no per-room limit.
	Capacity        int
	Price           pricing.PriceBreakdown
	Policy          CancellationPolicy
	SpecialRequests string
	// DeferPayment creates the booking PENDING instead of CONFIRMED.
	DeferPayment bool
	PaymentRef   string
	CreatedAt    time.Time
}

// CapacityError reports a party size outside [1, capacity].
type CapacityError struct {
	Guests   int
	Capacity int
}

func (e *CapacityError) Error() string {
	if e.Guests < 1 {
		return fmt.Sprintf("booking: guests must be at least 1, got %d", e.Guests)
	}
	return fmt.Sprintf("booking: %d guests exceed room capacity %d", e.Guests, e.Capacity)
}

func (e *CapacityError) Is(target error) bool {
	return target == errs.ErrCapacityExceeded
}

// CheckCapacity validates the party size; capacity <= 0 disables the upper bound.
func CheckCapacity(guests, capacity int) error {
	if guests < 1 || (capacity > 0 && guests > capacity) {
		return &CapacityError{Guests: guests, Capacity: capacity}
	}
	return nil
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.Reference) == "" {
		return nil, ErrReferenceRequired
	}
	if strings.TrimSpace(string(params.UserID)) == "" {
		return nil, ErrUserRequired
	}
	if err := CheckCapacity(params.Guests, params.Capacity); err != nil {
		return nil, err
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if !params.Price.Total.IsPositive() {
		return nil, ErrTotalRequired
	}
	now := params.CreatedAt.UTC()
	status := StatusConfirmed
	payment := PaymentCaptured
	if params.DeferPayment {
		status = StatusPending
		payment = PaymentUnpaid
	}
	b := &Booking{
		ID:              params.ID,
		Reference:       params.Reference,
		UserID:          params.UserID,
		AccommodationID: params.AccommodationID,
		RoomID:          params.RoomID,
		Range:           params.Range,
		Guests:          params.Guests,
		Status:          status,
		Price:           params.Price,
		Payment:         payment,
		PaymentRef:      params.PaymentRef,
		Policy:          params.Policy,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.History = append(b.History, HistoryEntry{To: status, Event: EventCreate, At: now, By: params.UserID})
	b.Record(BookingCreated{
		BookingID:       b.ID,
		Reference:       b.Reference,
		UserID:          b.UserID,
		AccommodationID: b.AccommodationID,
		RoomID:          b.RoomID,
		Range:           b.Range,
		Guests:          b.Guests,
		Status:          b.Status,
		Total:           b.Price.Total,
		At:              now,
	})
	return b, nil
}

func (b *Booking) Unit() UnitKey {
	return UnitFor(b.AccommodationID, b.RoomID)
}

func (b *Booking) IsActive() bool {
	return b.Status.Active()
}

func (b *Booking) IsCancellable() bool {
	return b.Status.Active()
}

func (b *Booking) OwnedBy(userID directory.UserID) bool {
	return b.UserID == userID
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.Recorder = events.Recorder{}
	c.History = append([]HistoryEntry(nil), b.History...)
	if b.Cancellation != nil {
		cancellation := *b.Cancellation
		c.Cancellation = &cancellation
	}
	return &c
}
