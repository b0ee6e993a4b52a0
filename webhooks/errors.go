package webhooks

import "errors"

var (
	ErrDeliveryNotFound = errors.New("webhooks: delivery not found")
	ErrClaimNotFound    = errors.New("webhooks: claim not found")
)
