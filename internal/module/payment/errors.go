package payment

import "errors"

// Module errors.
var (
	ErrProviderNotFound        = errors.New("payment provider not found")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrSessionNotLinked        = errors.New("session has no gateway order")
)
