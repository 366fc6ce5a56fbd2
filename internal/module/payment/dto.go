package payment

import "github.com/velocart/payments/internal/module/payment/provider"

// InitiatePaymentRequest starts a payment for a session.
type InitiatePaymentRequest struct {
	Session *PaymentSession          `json:"session" binding:"required"`
	Context *provider.SessionContext `json:"context" binding:"required"`
}

// UpdatePaymentRequest re-initiates a session's order with new details.
type UpdatePaymentRequest struct {
	Session *PaymentSession          `json:"session" binding:"required"`
	Context *provider.SessionContext `json:"context" binding:"required"`
}

// UpdatePaymentDataRequest patches notes on a session's order.
type UpdatePaymentDataRequest struct {
	Session *PaymentSession        `json:"session" binding:"required"`
	Patch   *provider.SessionPatch `json:"patch"`
}

// SessionRequest carries just a session, for status/capture/cancel calls.
type SessionRequest struct {
	Session *PaymentSession `json:"session" binding:"required"`
}

// RefundPaymentRequest refunds an amount against a session's order.
type RefundPaymentRequest struct {
	Session *PaymentSession `json:"session" binding:"required"`
	Amount  int64           `json:"amount" binding:"required,gt=0"`
}

// SessionResponse wraps a session for the client.
type SessionResponse struct {
	Session *PaymentSession `json:"session"`
}

// StatusResponse reports a session's polled status.
type StatusResponse struct {
	Status  provider.SessionStatus `json:"status"`
	Session *PaymentSession        `json:"session"`
}
