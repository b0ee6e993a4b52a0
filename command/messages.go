package command

import (
	"fmt"
	"strings"
)

const (
	TypeProcessProductChange = "fliggy.command.product.process"
	TypeProcessOrderPush     = "fliggy.command.order.process"
	TypeSyncProducts         = "fliggy.command.catalog.sync"
)

// ProcessProductChangeMessage carries a verified product push payload into
// the async handler.
type ProcessProductChangeMessage struct {
	Payload map[string]any
}

func (ProcessProductChangeMessage) Type() string { return TypeProcessProductChange }

func (m ProcessProductChangeMessage) Validate() error {
	if err := requirePayloadField(m.Payload, "messageId"); err != nil {
		return err
	}
	if err := requirePayloadField(m.Payload, "pushType"); err != nil {
		return err
	}
	return requirePayloadField(m.Payload, "productId")
}

// ProcessOrderPushMessage carries a verified order push payload into the
// async handler.
type ProcessOrderPushMessage struct {
	Payload map[string]any
}

func (ProcessOrderPushMessage) Type() string { return TypeProcessOrderPush }

func (m ProcessOrderPushMessage) Validate() error {
	if err := requirePayloadField(m.Payload, "messageId"); err != nil {
		return err
	}
	if err := requirePayloadField(m.Payload, "pushType"); err != nil {
		return err
	}
	return requirePayloadField(m.Payload, "orderId")
}

// SyncProductsMessage triggers a full catalog walk. PageSize zero uses the
// service default.
type SyncProductsMessage struct {
	PageSize int
}

func (SyncProductsMessage) Type() string { return TypeSyncProducts }

func (m SyncProductsMessage) Validate() error {
	if m.PageSize < 0 {
		return fmt.Errorf("command: page size must not be negative")
	}
	return nil
}

func requirePayloadField(payload map[string]any, field string) error {
	if payload == nil {
		return fmt.Errorf("command: payload is required")
	}
	value, present := payload[field]
	if !present || value == nil || strings.TrimSpace(fmt.Sprint(value)) == "" {
		return fmt.Errorf("command: payload field %q is required", field)
	}
	return nil
}
