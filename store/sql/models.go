package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type deliveryRecord struct {
	bun.BaseModel `bun:"table:fliggy_webhook_deliveries,alias:fwd"`

	ID            string     `bun:"id,pk"`
	ClaimID       string     `bun:"claim_id"`
	Category      string     `bun:"category,notnull"`
	MessageID     string     `bun:"message_id,notnull"`
	PushType      string     `bun:"push_type"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type processedMessageRecord struct {
	bun.BaseModel `bun:"table:fliggy_processed_messages,alias:fpm"`

	ID          string    `bun:"id,pk"`
	Category    string    `bun:"category,notnull"`
	MessageID   string    `bun:"message_id,notnull"`
	ProcessedAt time.Time `bun:"processed_at,nullzero,notnull,default:current_timestamp"`
}
