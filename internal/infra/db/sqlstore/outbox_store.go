package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	appoutbox "staybook/internal/app/outbox"
)

const (
	outboxNew     = "NEW"
	outboxClaimed = "CLAIMED"
	outboxSent    = "SENT"
	outboxFailed  = "FAILED"

	defaultClaimTimeout = 2 * time.Minute
	claimAttempts       = 3
)

// OutboxStore writes event records next to the booking rows and leases them to relay workers.
type OutboxStore struct {
	db           *gorm.DB
	ClaimTimeout time.Duration
	Now          func() time.Time
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db, ClaimTimeout: defaultClaimTimeout, Now: time.Now}
}

func (s *OutboxStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := s.now()
	occurred := record.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	return s.db.WithContext(ctx).Create(&outboxRow{
		ID:            record.ID,
		Name:          record.Name,
		Aggregate:     record.Aggregate,
		Payload:       record.Payload,
		Headers:       string(headers),
		OccurredAt:    toMillis(occurred),
		State:         outboxNew,
		NextAttemptAt: toMillis(now),
	}).Error
}

// Claim leases the oldest due record to workerID. A record claimed longer than
// ClaimTimeout ago is considered abandoned and may be claimed again.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*appoutbox.Claimed, error) {
	db := s.db.WithContext(ctx)
	timeout := s.ClaimTimeout
	if timeout <= 0 {
		timeout = defaultClaimTimeout
	}
	for range claimAttempts {
		now := s.now()
		var row outboxRow
		err := db.
			Where("(state IN ? AND next_attempt_at <= ?) OR (state = ? AND claimed_at < ?)",
				[]string{outboxNew, outboxFailed}, toMillis(now), outboxClaimed, toMillis(now.Add(-timeout))).
			Order("next_attempt_at").
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		res := db.Model(&outboxRow{}).
			Where("id = ? AND state = ? AND claimed_at = ?", row.ID, row.State, row.ClaimedAt).
			Updates(map[string]any{
				"state":      outboxClaimed,
				"claimed_by": workerID,
				"claimed_at": toMillis(now),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// another worker won the lease
			continue
		}
		return row.toClaimed()
	}
	return nil, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":   outboxSent,
		"sent_at": toMillis(s.now()),
	}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":           outboxFailed,
		"attempts":        gorm.Expr("attempts + 1"),
		"next_attempt_at": toMillis(next),
		"last_error":      errMsg,
	}).Error
}

// Pending counts records not yet delivered.
func (s *OutboxStore) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&outboxRow{}).Where("state <> ?", outboxSent).Count(&n).Error
	return n, err
}

func (r outboxRow) toClaimed() (*appoutbox.Claimed, error) {
	var headers map[string]string
	if r.Headers != "" {
		if err := json.Unmarshal([]byte(r.Headers), &headers); err != nil {
			return nil, err
		}
	}
	return &appoutbox.Claimed{
		EventRecord: appoutbox.EventRecord{
			ID:         r.ID,
			Name:       r.Name,
			Payload:    r.Payload,
			OccurredAt: fromMillis(r.OccurredAt),
			Aggregate:  r.Aggregate,
			Headers:    headers,
		},
		Attempts: r.Attempts,
	}, nil
}

var (
	_ appoutbox.Outbox     = (*OutboxStore)(nil)
	_ appoutbox.RelayStore = (*OutboxStore)(nil)
)
