package command

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gocmd "github.com/goliatone/go-command"
)

// PushMutatingService applies the local-side effects of verified partner
// pushes: refetching changed products, updating order projections.
type PushMutatingService interface {
	ProcessProductChange(ctx context.Context, payload map[string]any) error
	ProcessOrderPush(ctx context.Context, payload map[string]any) error
}

// CatalogSyncService walks the partner catalog page by page and returns the
// number of products visited.
type CatalogSyncService interface {
	SyncAllProducts(ctx context.Context, pageSize int) (int, error)
}

// ProcessedMarker is the handler-level idempotency gate, separate from the
// delivery ledger: the queue may redeliver after a crash between ledger
// completion and handler execution. MarkProcessed returns false when the
// message was already handled.
type ProcessedMarker interface {
	MarkProcessed(ctx context.Context, category string, messageID string) (bool, error)
}

// MemoryProcessedMarker is the in-process default ProcessedMarker.
type MemoryProcessedMarker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryProcessedMarker() *MemoryProcessedMarker {
	return &MemoryProcessedMarker{seen: map[string]struct{}{}}
}

func (m *MemoryProcessedMarker) MarkProcessed(_ context.Context, category string, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.TrimSpace(category) + ":" + strings.TrimSpace(messageID)
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

type ProcessProductChangeCommand struct {
	service   PushMutatingService
	processed ProcessedMarker
}

func NewProcessProductChangeCommand(service PushMutatingService, processed ProcessedMarker) *ProcessProductChangeCommand {
	return &ProcessProductChangeCommand{service: service, processed: processed}
}

func (c *ProcessProductChangeCommand) Execute(ctx context.Context, msg ProcessProductChangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: product push service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid product push message")
	}
	if fresh, err := c.markProcessed(ctx, "product", msg.Payload); err != nil {
		return err
	} else if !fresh {
		return nil
	}
	return c.service.ProcessProductChange(ctx, msg.Payload)
}

func (c *ProcessProductChangeCommand) markProcessed(ctx context.Context, category string, payload map[string]any) (bool, error) {
	return markProcessed(ctx, c.processed, category, payload)
}

type ProcessOrderPushCommand struct {
	service   PushMutatingService
	processed ProcessedMarker
}

func NewProcessOrderPushCommand(service PushMutatingService, processed ProcessedMarker) *ProcessOrderPushCommand {
	return &ProcessOrderPushCommand{service: service, processed: processed}
}

func (c *ProcessOrderPushCommand) Execute(ctx context.Context, msg ProcessOrderPushMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order push service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid order push message")
	}
	if fresh, err := markProcessed(ctx, c.processed, "order", msg.Payload); err != nil {
		return err
	} else if !fresh {
		return nil
	}
	return c.service.ProcessOrderPush(ctx, msg.Payload)
}

type SyncProductsCommand struct {
	service CatalogSyncService
}

func NewSyncProductsCommand(service CatalogSyncService) *SyncProductsCommand {
	return &SyncProductsCommand{service: service}
}

func (c *SyncProductsCommand) Execute(ctx context.Context, msg SyncProductsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: catalog sync service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid catalog sync message")
	}
	total, err := c.service.SyncAllProducts(ctx, msg.PageSize)
	if err != nil {
		return err
	}
	storeResult(ctx, total)
	return nil
}

func markProcessed(ctx context.Context, marker ProcessedMarker, category string, payload map[string]any) (bool, error) {
	if marker == nil {
		return true, nil
	}
	messageID := strings.TrimSpace(fmt.Sprint(payload["messageId"]))
	return marker.MarkProcessed(ctx, category, messageID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
