package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-fliggy/command"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProcessedMessageStore is the SQL-backed handler idempotency gate. The
// unique index on (category, message_id) turns the second insert into a
// no-op report.
type ProcessedMessageStore struct {
	db   *bun.DB
	repo repository.Repository[*processedMessageRecord]
	now  func() time.Time
}

func NewProcessedMessageStore(db *bun.DB) (*ProcessedMessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*processedMessageRecord](db, processedMessageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid processed message repository wiring: %w", err)
		}
	}
	return &ProcessedMessageStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ProcessedMessageStore) MarkProcessed(ctx context.Context, category string, messageID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: processed message store is not configured")
	}
	category = strings.TrimSpace(category)
	messageID = strings.TrimSpace(messageID)
	if category == "" || messageID == "" {
		return false, fmt.Errorf("sqlstore: category and message id are required")
	}

	record := &processedMessageRecord{
		ID:          uuid.NewString(),
		Category:    category,
		MessageID:   messageID,
		ProcessedAt: s.now(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ command.ProcessedMarker = (*ProcessedMessageStore)(nil)
