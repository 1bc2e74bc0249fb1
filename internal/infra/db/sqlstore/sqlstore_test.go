package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
	"staybook/internal/domain/shared/money"
)

var createdAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func newBooking(t *testing.T, id, ref, checkIn, checkOut string) *domainbooking.Booking {
	t.Helper()
	dr := daterange.MustParse(checkIn, checkOut)
	price, err := pricing.Compute(pricing.Input{
		BaseNightly: money.Must(10000, "USD"),
		Modifier:    decimal.NewFromInt(1),
		Range:       dr,
		TaxRate:     decimal.RequireFromString("0.12"),
	})
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:              domainbooking.ID(id),
		Reference:       ref,
		UserID:          "u-1",
		AccommodationID: "acc-1",
		RoomID:          "room-1",
		Range:           dr,
		Guests:          2,
		Capacity:        2,
		Price:           price,
		Policy:          domainbooking.NewCancellationPolicy(dr.CheckIn, domainbooking.DefaultFreeCancellationWindow, domainbooking.DefaultLatePenaltyPercent),
		CreatedAt:       createdAt,
	})
	require.NoError(t, err)
	b.Drain()
	return b
}

func TestBookingRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(openTestDB(t))
	b := newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")
	b.SpecialRequests = "late arrival"

	require.NoError(t, repo.Insert(ctx, b))
	assert.Equal(t, int64(1), b.Version)

	got, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)
	assert.Equal(t, domainbooking.StatusConfirmed, got.Status)
	assert.True(t, b.Range.CheckIn.Equal(got.Range.CheckIn))
	assert.True(t, b.Range.CheckOut.Equal(got.Range.CheckOut))
	assert.Equal(t, b.Price.Total, got.Price.Total)
	assert.True(t, b.Price.TaxRate.Equal(got.Price.TaxRate))
	assert.Equal(t, "late arrival", got.SpecialRequests)
	require.Len(t, got.History, 1)
	assert.Equal(t, domainbooking.EventCreate, got.History[0].Event)
	assert.Nil(t, got.Cancellation)

	byRef, err := repo.ByReference(ctx, "BK-AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byRef.ID)

	_, err = repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBookingRepositoryRejectsUnknownStoredStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewBookingRepository(db)
	require.NoError(t, repo.Insert(ctx, newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")))
	require.NoError(t, db.Model(&bookingRow{}).Where("id = ?", "b-1").Update("status", "ARCHIVED").Error)

	_, err := repo.ByID(ctx, "b-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
	_, err = repo.ListByUser(ctx, "u-1")
	assert.Error(t, err)
}

func TestBookingRepositoryRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(openTestDB(t))
	require.NoError(t, repo.Insert(ctx, newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")))

	err := repo.Insert(ctx, newBooking(t, "b-2", "BK-BBBB2222", "2025-06-12", "2025-06-15"))
	assert.ErrorIs(t, err, errs.ErrRoomUnavailable)

	// back-to-back stays share only the turnover day
	require.NoError(t, repo.Insert(ctx, newBooking(t, "b-3", "BK-CCCC3333", "2025-06-13", "2025-06-15")))

	err = repo.Insert(ctx, newBooking(t, "b-1", "BK-DDDD4444", "2025-07-01", "2025-07-02"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = repo.Insert(ctx, newBooking(t, "b-4", "BK-AAAA1111", "2025-07-01", "2025-07-02"))
	assert.ErrorIs(t, err, domainbooking.ErrDuplicateReference)

	overlapping, err := repo.Overlapping(ctx, domainbooking.UnitFor("acc-1", "room-1"), daterange.MustParse("2025-06-11", "2025-06-14"))
	require.NoError(t, err)
	require.Len(t, overlapping, 2)
	assert.Equal(t, domainbooking.ID("b-1"), overlapping[0].ID)
	assert.Equal(t, domainbooking.ID("b-3"), overlapping[1].ID)
}

func TestOverlapRecheckLocksOnServerDatabases(t *testing.T) {
	unit := domainbooking.UnitFor("acc-1", "room-1")
	dr := daterange.MustParse("2025-06-10", "2025-06-13")
	recheck := func(tx *gorm.DB) *gorm.DB {
		var ids []string
		return overlapRecheck(tx, unit, dr).Pluck("id", &ids)
	}

	pg, err := gorm.Open(postgres.Open("host=127.0.0.1 user=staybook dbname=staybook sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	stmt := pg.ToSQL(recheck)
	assert.Contains(t, stmt, "FOR SHARE")
	assert.Contains(t, stmt, "LIMIT 1")

	stmt = openTestDB(t).ToSQL(recheck)
	assert.NotContains(t, stmt, "FOR SHARE")
	assert.Contains(t, stmt, "LIMIT 1")
}

func TestBookingRepositoryCancelledFreesRange(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(openTestDB(t))
	b := newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")
	require.NoError(t, repo.Insert(ctx, b))

	_, err := b.Cancel("plans changed", "u-1", createdAt)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, b))
	assert.Equal(t, int64(2), b.Version)

	got, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, got.Status)
	require.NotNil(t, got.Cancellation)
	assert.True(t, got.Cancellation.Refundable)
	assert.Equal(t, "plans changed", got.Cancellation.Reason)
	assert.Equal(t, b.Price.Total, got.Cancellation.Refund)
	require.Len(t, got.History, 2)
	assert.Equal(t, domainbooking.StatusCancelled, got.History[1].To)

	require.NoError(t, repo.Insert(ctx, newBooking(t, "b-2", "BK-BBBB2222", "2025-06-10", "2025-06-13")))
}

func TestBookingRepositoryVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(openTestDB(t))
	require.NoError(t, repo.Insert(ctx, newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")))

	first, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	second, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)

	_, err = first.Cancel("", "u-1", createdAt)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, first))

	_, err = second.Cancel("", "u-1", createdAt)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Update(ctx, second), domainbooking.ErrConcurrentUpdate)

	ghost := newBooking(t, "ghost", "BK-ZZZZ9999", "2025-06-10", "2025-06-13")
	ghost.Version = 1
	assert.ErrorIs(t, repo.Update(ctx, ghost), errs.ErrNotFound)
}

func TestListByUserOrdersByCheckIn(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(openTestDB(t))
	require.NoError(t, repo.Insert(ctx, newBooking(t, "b-2", "BK-BBBB2222", "2025-08-01", "2025-08-03")))
	require.NoError(t, repo.Insert(ctx, newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")))

	list, err := repo.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domainbooking.ID("b-1"), list[0].ID)
	assert.Equal(t, domainbooking.ID("b-2"), list[1].ID)
	assert.Len(t, list[0].History, 1)

	none, err := repo.ListByUser(ctx, "u-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnitOfWorkCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	factory := Factory{DB: db}

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Insert(ctx, newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "booking.created", Aggregate: "b-1", Payload: []byte(`{}`)}))
	require.NoError(t, unit.Rollback(ctx))

	repo := NewBookingRepository(db)
	_, err = repo.ByID(ctx, "b-1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	pending, err := NewOutboxStore(db).Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	unit, err = factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Insert(ctx, newBooking(t, "b-1", "BK-AAAA1111", "2025-06-10", "2025-06-13")))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "booking.created", Aggregate: "b-1", Payload: []byte(`{}`)}))
	require.NoError(t, unit.Commit(ctx))
	require.NoError(t, unit.Rollback(ctx))

	_, err = repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	pending, err = NewOutboxStore(db).Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestOutboxClaimRetryAndSend(t *testing.T) {
	ctx := context.Background()
	store := NewOutboxStore(openTestDB(t))
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	require.NoError(t, store.Add(ctx, appoutbox.EventRecord{
		ID:        "evt-1",
		Name:      "booking.created",
		Aggregate: "b-1",
		Payload:   []byte(`{"booking_id":"b-1"}`),
		Headers:   map[string]string{"ce-type": "booking.created"},
	}))

	claimed, err := store.Claim(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "evt-1", claimed.ID)
	assert.Equal(t, "booking.created", claimed.Headers["ce-type"])
	assert.Zero(t, claimed.Attempts)

	again, err := store.Claim(ctx, "w-2")
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, store.MarkFailed(ctx, "evt-1", now.Add(time.Second), "broker down"))
	early, err := store.Claim(ctx, "w-1")
	require.NoError(t, err)
	assert.Nil(t, early)

	now = now.Add(2 * time.Second)
	retried, err := store.Claim(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, 1, retried.Attempts)

	require.NoError(t, store.MarkSent(ctx, "evt-1"))
	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestOutboxReclaimsAbandonedLease(t *testing.T) {
	ctx := context.Background()
	store := NewOutboxStore(openTestDB(t))
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	require.NoError(t, store.Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "booking.created"}))

	_, err := store.Claim(ctx, "w-1")
	require.NoError(t, err)

	now = now.Add(store.ClaimTimeout + time.Second)
	claimed, err := store.Claim(ctx, "w-2")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "evt-1", claimed.ID)
}

func TestCatalogAndUsers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	cat := NewCatalogRepository(db)

	err := cat.PutRoom(ctx, catalog.Room{ID: "room-1", AccommodationID: "acc-1", Name: "Double", Capacity: 2, PriceModifier: decimal.NewFromInt(1), Available: true})
	assert.ErrorIs(t, err, catalog.ErrAccommodationNotFound)

	require.NoError(t, cat.PutAccommodation(ctx, catalog.Accommodation{
		ID:               "acc-1",
		Name:             "Harbor Inn",
		BasePrice:        money.Must(12000, "USD"),
		StarRating:       4.5,
		Active:           true,
		FreeCancellation: 72 * time.Hour,
	}))
	require.NoError(t, cat.PutRoom(ctx, catalog.Room{ID: "room-1", AccommodationID: "acc-1", Name: "Double", Capacity: 2, PriceModifier: decimal.RequireFromString("1.25"), Available: true}))

	acc, err := cat.Accommodation(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, money.Must(12000, "USD"), acc.BasePrice)
	assert.Equal(t, 72*time.Hour, acc.FreeCancellation)

	room, err := cat.Room(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.25").Equal(room.PriceModifier))

	_, err = cat.Room(ctx, "room-x")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	users := NewUserRepository(db)
	require.NoError(t, users.Put(ctx, directory.User{ID: "u-1", Email: " Guest@Example.com ", Name: "Guest", Roles: []directory.Role{"guest"}, Active: true}))
	u, err := users.UserByEmail(ctx, "guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, directory.UserID("u-1"), u.ID)
	assert.Equal(t, "guest@example.com", u.Email)
	assert.NotEmpty(t, u.Roles)

	_, err = users.User(ctx, "u-2")
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}

func TestIdempotencyStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(openTestDB(t), time.Hour)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k-1", Payload: []byte(`{"id":"b-1"}`), OccurredAt: now}))
	rec, ok, err := store.Get(ctx, "k-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"b-1"}`, string(rec.Payload))

	now = now.Add(2 * time.Hour)
	_, ok, err = store.Get(ctx, "k-1")
	require.NoError(t, err)
	assert.False(t, ok)

	purged, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
