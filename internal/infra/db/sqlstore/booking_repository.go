package sqlstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
)

var ErrDuplicateID = errors.New("sqlstore: booking id already exists")

var activeStatuses = []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}

// BookingRepository stores bookings in a relational database. Bound to a transaction it
// is the repository of one unit of work.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	return r.first(ctx, "id = ?", string(id))
}

func (r *BookingRepository) ByReference(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	return r.first(ctx, "reference = ?", ref)
}

func (r *BookingRepository) first(ctx context.Context, query string, arg any) (*domainbooking.Booking, error) {
	db := r.db.WithContext(ctx)
	var row bookingRow
	if err := db.Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	var history []historyRow
	if err := db.Where("booking_id = ?", row.ID).Order("seq").Find(&history).Error; err != nil {
		return nil, err
	}
	return row.toAggregate(history)
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID directory.UserID) ([]*domainbooking.Booking, error) {
	var rows []bookingRow
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", string(userID)).
		Order("check_in").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

// Overlapping returns active bookings of unit whose range intersects dr.
func (r *BookingRepository) Overlapping(ctx context.Context, unit domainbooking.UnitKey, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	var rows []bookingRow
	if err := overlapScope(r.db.WithContext(ctx), unit, dr).Order("check_in").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

func overlapScope(db *gorm.DB, unit domainbooking.UnitKey, dr daterange.DateRange) *gorm.DB {
	return db.Model(&bookingRow{}).
		Where("unit_key = ?", string(unit)).
		Where("status IN ?", activeStatuses).
		Where("check_in < ? AND check_out > ?", toMillis(dr.CheckOut), toMillis(dr.CheckIn))
}

func (r *BookingRepository) hydrate(ctx context.Context, rows []bookingRow) ([]*domainbooking.Booking, error) {
	if len(rows) == 0 {
		return []*domainbooking.Booking{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var history []historyRow
	if err := r.db.WithContext(ctx).
		Where("booking_id IN ?", ids).
		Order("booking_id, seq").
		Find(&history).Error; err != nil {
		return nil, err
	}
	byBooking := make(map[string][]historyRow, len(rows))
	for _, h := range history {
		byBooking[h.BookingID] = append(byBooking[h.BookingID], h)
	}
	out := make([]*domainbooking.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := row.toAggregate(byBooking[row.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Insert touches the unit row first so a concurrent insert for the same unit waits on
// its row lock, then re-checks overlap before writing.
func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	db := r.db.WithContext(ctx)
	if err := touchUnit(db, b.Unit()); err != nil {
		return err
	}
	var exists int64
	if err := db.Model(&bookingRow{}).Where("id = ?", string(b.ID)).Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return ErrDuplicateID
	}
	if b.Status.Active() {
		var clash []string
		if err := overlapRecheck(db, b.Unit(), b.Range).Pluck("id", &clash).Error; err != nil {
			return err
		}
		if len(clash) > 0 {
			return domainbooking.ErrConflict
		}
	}
	row := newBookingRow(b)
	row.Version = 1
	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainbooking.ErrDuplicateReference
		}
		return err
	}
	if history := historyRows(b, 0); len(history) > 0 {
		if err := db.Create(&history).Error; err != nil {
			return err
		}
	}
	b.Version = 1
	return nil
}

// overlapRecheck must see rows committed after the transaction snapshot (MySQL repeatable
// read), so it is a locking read. SQLite has no row locks; writers share one database lock.
func overlapRecheck(db *gorm.DB, unit domainbooking.UnitKey, dr daterange.DateRange) *gorm.DB {
	q := overlapScope(db, unit, dr).Limit(1)
	if db.Dialector.Name() != DriverSQLite {
		q = q.Clauses(clause.Locking{Strength: "SHARE"})
	}
	return q
}

func touchUnit(db *gorm.DB, unit domainbooking.UnitKey) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unit_key"}},
		DoUpdates: clause.Assignments(map[string]any{"seq": gorm.Expr("booking_units.seq + 1")}),
	}).Create(&unitRow{UnitKey: string(unit), Seq: 1}).Error
}

// Update writes the mutable columns only if the stored version still matches b.Version.
func (r *BookingRepository) Update(ctx context.Context, b *domainbooking.Booking) error {
	db := r.db.WithContext(ctx)
	row := newBookingRow(b)
	row.Version = b.Version + 1
	res := db.Model(&bookingRow{}).
		Where("id = ? AND version = ?", row.ID, b.Version).
		Updates(row.mutableColumns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := db.Model(&bookingRow{}).Where("id = ?", row.ID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domainbooking.ErrNotFound
		}
		return domainbooking.ErrConcurrentUpdate
	}
	var stored int64
	if err := db.Model(&historyRow{}).Where("booking_id = ?", row.ID).Count(&stored).Error; err != nil {
		return err
	}
	if history := historyRows(b, int(stored)); len(history) > 0 {
		if err := db.Create(&history).Error; err != nil {
			return err
		}
	}
	b.Version = row.Version
	return nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
