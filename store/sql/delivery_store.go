package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-fliggy/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeliveryStore is the SQL-backed delivery ledger for deployments where more
// than one receiver shares the partner endpoint. A unique index on
// (category, message_id) is the dedupe guarantee.
type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]
	now  func() time.Time
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *DeliveryStore) Claim(
	ctx context.Context,
	category string,
	messageID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	category = strings.TrimSpace(category)
	messageID = strings.TrimSpace(messageID)
	if category == "" || messageID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: category and message id are required")
	}

	now := s.now()
	record := &deliveryRecord{
		ID:        uuid.NewString(),
		ClaimID:   uuid.NewString(),
		Category:  category,
		MessageID: messageID,
		Status:    webhooks.DeliveryStatusProcessing,
		Attempts:  1,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return webhooks.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, category, messageID, lease)
	}
	return deliveryToDomain(record), true, nil
}

// reclaim handles the duplicate path: the row exists, so the push was seen
// before. A stale processing claim (lease expired) or a due retry may be
// claimed again; anything else is a dedupe hit.
func (s *DeliveryStore) reclaim(
	ctx context.Context,
	category string,
	messageID string,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	existing := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(existing).
		Where("?TableAlias.category = ?", category).
		Where("?TableAlias.message_id = ?", messageID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}

	now := s.now()
	expired := existing.Status == webhooks.DeliveryStatusProcessing &&
		now.Sub(existing.UpdatedAt) > lease
	retryDue := existing.Status == webhooks.DeliveryStatusRetryReady &&
		(existing.NextAttemptAt == nil || !existing.NextAttemptAt.After(now))
	if !expired && !retryDue {
		return deliveryToDomain(existing), false, nil
	}

	claimID := uuid.NewString()
	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("updated_at = ?", now).
		Where("category = ?", category).
		Where("message_id = ?", messageID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// Another receiver won the reclaim race.
		return deliveryToDomain(existing), false, nil
	}

	existing.ClaimID = claimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.UpdatedAt = now
	return deliveryToDomain(existing), true, nil
}

func (s *DeliveryStore) Get(ctx context.Context, category string, messageID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.category = ?", strings.TrimSpace(category)).
		Where("?TableAlias.message_id = ?", strings.TrimSpace(messageID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return webhooks.DeliveryRecord{}, webhooks.ErrDeliveryNotFound
		}
		return webhooks.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

func (s *DeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return webhooks.ErrClaimNotFound
	}
	return nil
}

func (s *DeliveryStore) Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return webhooks.ErrClaimNotFound
		}
		return err
	}

	status := webhooks.DeliveryStatusRetryReady
	var next *time.Time
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		status = webhooks.DeliveryStatusDead
	} else {
		value := nextAttemptAt.UTC()
		next = &value
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	_, err = s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", status).
		Set("last_error = ?", lastError).
		Set("next_attempt_at = ?", next).
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Exec(ctx)
	return err
}

func deliveryToDomain(record *deliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:        record.ID,
		ClaimID:   record.ClaimID,
		Category:  record.Category,
		MessageID: record.MessageID,
		PushType:  record.PushType,
		Status:    record.Status,
		Attempts:  record.Attempts,
		LastError: record.LastError,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ webhooks.DeliveryLedger = (*DeliveryStore)(nil)
