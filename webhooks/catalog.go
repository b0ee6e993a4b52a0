package webhooks

import "strings"

// Push categories map to the two inbound endpoints the partner calls.
const (
	CategoryProduct = "product"
	CategoryOrder   = "order"
)

// Known push types per category. Unknown types are still accepted and
// enqueued (the partner adds types without notice); the allow-list only
// drives classification and logging.
var productPushTypes = map[string]struct{}{
	"VACATION_RESOURCE_INFO_CHANGE":        {},
	"VACATION_RESOURCE_VALID_CHANGE":       {},
	"VACATION_RESOURCE_INVALID_CHANGE":     {},
	"VACATION_RESOURCE_PRICE_STOCK_CHANGE": {},
	"VACATION_RESOURCE_PRICE_CHANGE":       {},
	"VACATION_RESOURCE_STOCK_CHANGE":       {},
}

var orderPushTypes = map[string]struct{}{
	"ORDER_STATUS_CHANGE":    {},
	"ORDER_SEND_CODE_NOTIFY": {},
	"ORDER_REFUND_NOTIFY":    {},
	"ORDER_VERIFY_NOTIFY":    {},
}

// Required top-level fields per category. Pushes missing any of these are
// rejected before classification or enqueueing.
var productRequiredFields = []string{
	"pushType",
	"productCategory",
	"productId",
	"distributorId",
	"changedTime",
	"timestamp",
	"messageId",
}

var orderRequiredFields = []string{
	"pushType",
	"distributorId",
	"orderId",
	"outOrderId",
	"timestamp",
	"messageId",
	"data",
}

func requiredFieldsFor(category string) ([]string, bool) {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryProduct:
		return productRequiredFields, true
	case CategoryOrder:
		return orderRequiredFields, true
	}
	return nil, false
}

func knownPushType(category string, pushType string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryProduct:
		_, ok := productPushTypes[pushType]
		return ok
	case CategoryOrder:
		_, ok := orderPushTypes[pushType]
		return ok
	}
	return false
}
