package provider

import (
	"context"
	"strings"
)

// SessionStatus is the local payment session status.
type SessionStatus string

const (
	StatusPending      SessionStatus = "pending"
	StatusRequiresMore SessionStatus = "requires_more"
	StatusAuthorized   SessionStatus = "authorized"
	StatusError        SessionStatus = "error"
)

// IsTerminal reports whether the status ends the session lifecycle.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusAuthorized || s == StatusError
}

// Error codes carried by ProviderError.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeNotFound             = "NOT_FOUND"
	CodeStateError           = "STATE_ERROR"
	CodeGatewayError         = "GATEWAY_ERROR"
)

// Address is the billing address supplied with a checkout session.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	Country   string `json:"country"`
	PostalZip string `json:"postal_code"`
	TaxID     string `json:"tax_id"`
}

// Customer is the local customer reference passed in by the caller.
// GatewayCustomerID is the single canonical linkage to the remote customer
// record; CustomerFromMetadata collapses legacy metadata shapes into it.
type Customer struct {
	ID                string `json:"id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	TaxID             string `json:"tax_id"`
	GatewayCustomerID string `json:"gateway_customer_id"`
}

// FullName returns the customer's display name.
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// linkageKey is the flat metadata key holding the remote customer id.
// legacy data may instead nest it under "razorpay" → "rp_customer_id".
const linkageKey = "razorpay_id"

// CustomerFromMetadata builds a Customer from host-application fields plus its
// untyped metadata map, migrating any linkage id at read time. The flat key
// wins over the legacy nested representation.
func CustomerFromMetadata(c Customer, metadata map[string]any) *Customer {
	if c.GatewayCustomerID == "" {
		if id, ok := metadata[linkageKey].(string); ok && id != "" {
			c.GatewayCustomerID = id
		} else if nested, ok := metadata["razorpay"].(map[string]any); ok {
			if id, ok := nested["rp_customer_id"].(string); ok {
				c.GatewayCustomerID = id
			}
		}
	}
	if c.TaxID == "" {
		if gstin, ok := metadata["gstin"].(string); ok {
			c.TaxID = gstin
		}
	}
	return &c
}

// LinkageMetadata returns the flat-key metadata delta the host should persist
// for a newly linked customer.
func LinkageMetadata(gatewayCustomerID string) map[string]string {
	return map[string]string{linkageKey: gatewayCustomerID}
}

// SessionContext carries everything a gateway needs to create or supersede an
// order for a checkout session. Amount is in minor units and may arrive
// fractional from upstream tax math; providers round it.
type SessionContext struct {
	Amount         float64           `json:"amount"`
	CurrencyCode   string            `json:"currency_code"`
	Email          string            `json:"email"`
	SessionID      string            `json:"session_id"`
	Customer       *Customer         `json:"customer"`
	BillingAddress *Address          `json:"billing_address"`
	Notes          map[string]string `json:"notes"`
	Data           *OrderData        `json:"data"`
}

// SessionPatch is the validated ingress shape for UpdatePaymentData. Amount
// and Currency are present only to be rejected: money changes must supersede
// the order through UpdatePayment.
type SessionPatch struct {
	Amount   *int64            `json:"amount"`
	Currency *string           `json:"currency"`
	Notes    map[string]string `json:"notes"`
	Data     *OrderData        `json:"data"`
}

// SessionResult is the outcome of initiating (or superseding) a payment.
// LinkedCustomerID is set only when the inbound customer carried no gateway
// linkage, so idempotent repeat calls on a linked customer emit no delta.
type SessionResult struct {
	Data             *OrderData `json:"data"`
	LinkedCustomerID string     `json:"linked_customer_id,omitempty"`
}

// WebhookPayload is the parsed webhook envelope handed to signature
// verification.
type WebhookPayload struct {
	OrderID   string
	PaymentID string
	Raw       []byte
}

// Provider is the capability contract every payment gateway implements.
// Call sites stay gateway-agnostic; the registry selects an implementation
// by name.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// InitiatePayment resolves the customer and creates a gateway order.
	InitiatePayment(ctx context.Context, sc *SessionContext) (*SessionResult, error)

	// UpdatePayment supersedes the current order on amount, currency or
	// customer change. The existing order is never mutated in place.
	UpdatePayment(ctx context.Context, sc *SessionContext) (*SessionResult, error)

	// UpdatePaymentData patches free-form notes on the remote order. Any
	// payload touching amount or currency is rejected before a remote call.
	UpdatePaymentData(ctx context.Context, sessionID string, patch *SessionPatch) (*OrderData, error)

	// GetPaymentStatus maps the remote order status to the local session status.
	GetPaymentStatus(ctx context.Context, data *OrderData) (SessionStatus, error)

	// CapturePayment captures every authorized payment on the order
	// concurrently; any single failure discards the whole batch.
	CapturePayment(ctx context.Context, data *OrderData) (*OrderData, error)

	// RefundPayment refunds exactly amount against one sufficient payment and
	// appends the refund record. No eligible payment is a no-op, not an error.
	RefundPayment(ctx context.Context, data *OrderData, amount int64) (*OrderData, error)

	// CancelPayment cancels the payment where the gateway supports it.
	CancelPayment(ctx context.Context, data *OrderData) (*OrderData, error)

	// DeletePayment delegates to CancelPayment.
	DeletePayment(ctx context.Context, data *OrderData) (*OrderData, error)

	// RetrievePayment fetches the order, falling back to a payment's embedded
	// order id.
	RetrievePayment(ctx context.Context, data *OrderData) (*GatewayOrder, error)

	// VerifyWebhookSignature validates a webhook signature with the webhook secret.
	VerifyWebhookSignature(payload *WebhookPayload, signature string) bool

	// VerifyCaptureSignature validates a direct-capture confirmation signature
	// with the API secret.
	VerifyCaptureSignature(orderID, paymentID, signature string) bool
}

// ProviderError is the normalized failure shape returned across the module
// boundary. It matches the {error, code, detail} contract of the host
// checkout pipeline.
type ProviderError struct {
	Message string `json:"error"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// ErrorDetail implements detailer.
func (e *ProviderError) ErrorDetail() string {
	return e.Detail
}

// NewProviderError creates a ProviderError with a code and no detail.
func NewProviderError(code, message string) *ProviderError {
	return &ProviderError{Message: message, Code: code}
}

// detailer is implemented by failures that carry a detail field beyond the
// plain message, such as gateway API error bodies.
type detailer interface {
	ErrorDetail() string
}

// coder is implemented by failures that carry a machine-readable code.
type coder interface {
	ErrorCode() string
}

// BuildError normalizes any failure into a ProviderError. An inner
// ProviderError has its error and detail fields concatenated; otherwise the
// failure's detail field is used when present, else its message.
func BuildError(message string, err error) *ProviderError {
	out := &ProviderError{Message: message}
	if err == nil {
		return out
	}

	if pe, ok := err.(*ProviderError); ok {
		out.Code = pe.Code
		out.Detail = strings.TrimSpace(pe.Message + "\n" + pe.Detail)
		return out
	}

	if c, ok := err.(coder); ok {
		out.Code = c.ErrorCode()
	}
	if d, ok := err.(detailer); ok {
		out.Detail = d.ErrorDetail()
	} else {
		out.Detail = err.Error()
	}
	return out
}

// IsProviderError reports whether err is a normalized provider error and
// returns it if so.
func IsProviderError(err error) (*ProviderError, bool) {
	pe, ok := err.(*ProviderError)
	return pe, ok
}
