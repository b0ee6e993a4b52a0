package sqlstore

import (
	"context"
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL stores off a shared bun handle. It
// accepts either a *bun.DB or a go-persistence-bun client.
type RepositoryFactory struct {
	db *bun.DB

	deliveryStore         *DeliveryStore
	processedMessageStore *ProcessedMessageStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.deliveryStore == nil {
		store, err := NewDeliveryStore(f.db)
		if err != nil {
			return err
		}
		f.deliveryStore = store
	}
	if f.processedMessageStore == nil {
		store, err := NewProcessedMessageStore(f.db)
		if err != nil {
			return err
		}
		f.processedMessageStore = store
	}
	return nil
}

func (f *RepositoryFactory) DeliveryStore() *DeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) ProcessedMessageStore() *ProcessedMessageStore {
	if f == nil {
		return nil
	}
	return f.processedMessageStore
}

// EnsureSchema creates the ledger tables and their dedupe indexes. Intended
// for sqlite deployments and tests; production postgres schemas are managed
// by the host application's migrations.
func (f *RepositoryFactory) EnsureSchema(ctx context.Context) error {
	if f == nil || f.db == nil {
		return fmt.Errorf("sqlstore: repository factory is not configured")
	}
	if _, err := f.db.NewCreateTable().
		Model((*deliveryRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create deliveries table: %w", err)
	}
	if _, err := f.db.NewCreateIndex().
		Model((*deliveryRecord)(nil)).
		Index("idx_fliggy_webhook_deliveries_dedupe").
		Unique().
		Column("category", "message_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create deliveries dedupe index: %w", err)
	}
	if _, err := f.db.NewCreateTable().
		Model((*processedMessageRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create processed messages table: %w", err)
	}
	if _, err := f.db.NewCreateIndex().
		Model((*processedMessageRecord)(nil)).
		Index("idx_fliggy_processed_messages_dedupe").
		Unique().
		Column("category", "message_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create processed messages dedupe index: %w", err)
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
