package webhooks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// DeliveryRecord tracks one partner push through verification and handling.
// MessageID is the partner-issued dedupe key.
type DeliveryRecord struct {
	ID            string
	ClaimID       string
	Category      string
	MessageID     string
	PushType      string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger persists push deliveries for dedupe and retry. Claim is the
// idempotency gate: the second claim for the same messageId reports
// claimed=false and the processor answers success without re-handling.
type DeliveryLedger interface {
	Claim(ctx context.Context, category string, messageID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, category string, messageID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

// MemoryDeliveryLedger is the in-process default. Single-node only; use the
// SQL ledger when more than one receiver shares the partner endpoint.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]*DeliveryRecord
	claims  map[string]string
	now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		records: map[string]*DeliveryRecord{},
		claims:  map[string]string{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func ledgerKey(category string, messageID string) string {
	return strings.TrimSpace(category) + ":" + strings.TrimSpace(messageID)
}

func (l *MemoryDeliveryLedger) Claim(_ context.Context, category string, messageID string, _ []byte, lease time.Duration) (DeliveryRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(category, messageID)
	now := l.now()

	if existing, ok := l.records[key]; ok {
		expired := existing.Status == DeliveryStatusProcessing &&
			now.Sub(existing.UpdatedAt) > lease
		retryDue := existing.Status == DeliveryStatusRetryReady &&
			(existing.NextAttemptAt == nil || !existing.NextAttemptAt.After(now))
		if !expired && !retryDue {
			return *existing, false, nil
		}
		existing.ClaimID = uuid.NewString()
		existing.Status = DeliveryStatusProcessing
		existing.Attempts++
		existing.UpdatedAt = now
		l.claims[existing.ClaimID] = key
		return *existing, true, nil
	}

	record := &DeliveryRecord{
		ID:        uuid.NewString(),
		ClaimID:   uuid.NewString(),
		Category:  strings.TrimSpace(category),
		MessageID: strings.TrimSpace(messageID),
		Status:    DeliveryStatusProcessing,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.records[key] = record
	l.claims[record.ClaimID] = key
	return *record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, category string, messageID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[ledgerKey(category, messageID)]
	if !ok {
		return DeliveryRecord{}, ErrDeliveryNotFound
	}
	return *record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return ErrClaimNotFound
	}
	record := l.records[key]
	record.Status = DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return ErrClaimNotFound
	}
	record := l.records[key]
	if cause != nil {
		record.LastError = cause.Error()
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		record.Status = DeliveryStatusRetryReady
		next := nextAttemptAt.UTC()
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
