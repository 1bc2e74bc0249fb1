package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staybook/internal/app/middleware"
)

type IdempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewIdempotencyStore ignores records older than ttl. Expired rows are overwritten on
// the next Save for the same key.
func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = time.Hour * 24 * 7
	}
	return &IdempotencyStore{db: db, ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var row idempotencyRow
	if err := s.db.WithContext(ctx).First(&row, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	if s.now().Sub(fromMillis(row.CreatedAt)) > s.ttl {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return middleware.IdempotencyRecord{
		Key:        row.Key,
		Payload:    row.Payload,
		Error:      row.Error,
		ErrorKind:  row.ErrorKind,
		OccurredAt: fromMillis(row.OccurredAt),
	}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	row := idempotencyRow{
		Key:        rec.Key,
		Payload:    rec.Payload,
		Error:      rec.Error,
		ErrorKind:  rec.ErrorKind,
		OccurredAt: toMillis(rec.OccurredAt),
		CreatedAt:  toMillis(s.now()),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Purge deletes records that can no longer be replayed.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	cutoff := toMillis(s.now().Add(-s.ttl))
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&idempotencyRow{})
	return res.RowsAffected, res.Error
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
