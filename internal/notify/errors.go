package notify

import "codeberg.org/mutker/macstatd/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig

	ErrDeliveryFailed  = errors.ErrorCode("notify_delivery_failed")
	ErrWebhookResponse = errors.ErrorCode("notify_webhook_response")
)
