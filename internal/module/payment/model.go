package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/velocart/payments/internal/module/payment/provider"
)

// PaymentSession is the checkout session's payment state. It is supplied and
// owned by the caller; this module mutates it only through the service, and
// never persists it.
type PaymentSession struct {
	SessionID string                 `json:"session_id"`
	Provider  string                 `json:"provider"`
	Amount    int64                  `json:"amount"`
	Currency  string                 `json:"currency"`
	Status    provider.SessionStatus `json:"status"`
	Customer  *provider.Customer     `json:"customer,omitempty"`
	Data      *provider.OrderData    `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewPaymentSession creates a session in the pending state.
func NewPaymentSession(providerName string) *PaymentSession {
	now := time.Now().UTC()
	return &PaymentSession{
		SessionID: uuid.NewString(),
		Provider:  providerName,
		Status:    provider.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the session reached a terminal status. Terminal
// sessions are no longer pollable.
func (s *PaymentSession) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// OrderID returns the linked gateway order id, if any.
func (s *PaymentSession) OrderID() string {
	return s.Data.OrderID()
}

// applyResult links a (possibly superseding) order result to the session.
// The previous order is replaced wholesale, never mutated in place.
func (s *PaymentSession) applyResult(res *provider.SessionResult) {
	if res == nil || res.Data == nil {
		return
	}
	// Carry the refund trail across superseded orders.
	if s.Data != nil && len(s.Data.Refunds) > 0 {
		res.Data.Refunds = append(s.Data.Refunds, res.Data.Refunds...)
	}
	s.Data = res.Data
	if res.Data.Order != nil {
		s.Amount = res.Data.Order.Amount
		s.Currency = res.Data.Order.Currency
	}
	if res.LinkedCustomerID != "" && s.Customer != nil && s.Customer.GatewayCustomerID == "" {
		s.Customer.GatewayCustomerID = res.LinkedCustomerID
	}
	s.UpdatedAt = time.Now().UTC()
}
