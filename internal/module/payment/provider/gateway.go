package provider

import (
	"context"
	"sort"
)

// Gateway order statuses.
const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// Gateway payment statuses.
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusFailed     = "failed"
	PaymentStatusAttempted  = "attempted"
)

// GatewayOrder is the remote gateway's record of a payable transaction.
// Amount is immutable after creation; money changes create a new order.
type GatewayOrder struct {
	ID         string                     `json:"id"`
	Amount     int64                      `json:"amount"`
	AmountPaid int64                      `json:"amount_paid"`
	AmountDue  int64                      `json:"amount_due"`
	Currency   string                     `json:"currency"`
	Status     string                     `json:"status"`
	Receipt    string                     `json:"receipt"`
	Notes      map[string]string          `json:"notes"`
	Payments   map[string]*GatewayPayment `json:"payments,omitempty"`
	CreatedAt  int64                      `json:"created_at"`
}

// PaymentIDs returns the ids of payments attached to the order, sorted for
// deterministic iteration.
func (o *GatewayOrder) PaymentIDs() []string {
	ids := make([]string, 0, len(o.Payments))
	for id := range o.Payments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GatewayPayment is a single payment attempt against a gateway order.
type GatewayPayment struct {
	ID       string            `json:"id"`
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Method   string            `json:"method"`
	Email    string            `json:"email"`
	Contact  string            `json:"contact"`
	Notes    map[string]string `json:"notes"`
}

// GatewayCustomer is the gateway-owned customer record; this system holds
// only its id as a reference.
type GatewayCustomer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
	GSTIN   string `json:"gstin"`
}

// GatewayRefund is the gateway's record of an issued refund.
type GatewayRefund struct {
	ID             string `json:"id"`
	PaymentID      string `json:"payment_id"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	SpeedProcessed string `json:"speed_processed"`
}

// RefundRecord is the session-level trace of an issued refund. Records are
// appended, never replaced.
type RefundRecord struct {
	Amount   int64  `json:"amount"`
	RefundID string `json:"refund_id"`
}

// OrderData is the gateway-order snapshot held on a payment session. Order is
// nil until the first successful initiate. Payment is set when the session
// was last touched by a payment-level event (for example a webhook) and
// carries the embedded order id used as a retrieval fallback.
type OrderData struct {
	Order      *GatewayOrder   `json:"order"`
	Payment    *GatewayPayment `json:"payment,omitempty"`
	CustomerID string          `json:"customer_id"`
	Refunds    []RefundRecord  `json:"refunds,omitempty"`
}

// OrderID returns the linked order id, falling back to the embedded payment's
// order id.
func (d *OrderData) OrderID() string {
	if d == nil {
		return ""
	}
	if d.Order != nil && d.Order.ID != "" {
		return d.Order.ID
	}
	if d.Payment != nil {
		return d.Payment.OrderID
	}
	return ""
}

// OrderParams are the creation parameters for a gateway order.
type OrderParams struct {
	Amount   int64
	Currency string
	// Receipt doubles as the idempotency key; it is derived from the session
	// id so caller retries do not mint duplicate remote orders.
	Receipt         string
	Notes           map[string]string
	Capture         string // "automatic" or "manual"
	RefundSpeed     string
	AutomaticExpiry int
	ManualExpiry    int
}

// CustomerParams are the creation/edit parameters for a gateway customer.
type CustomerParams struct {
	Name    string
	Email   string
	Contact string
	GSTIN   string
	// FailExisting asks the gateway to error on duplicate contact details
	// instead of silently returning the existing record.
	FailExisting bool
	Notes        map[string]string
}

// GatewayClient is the typed surface of the remote gateway REST API. It is
// injected per provider instance so tests substitute a double and no shared
// lazily-initialized client exists.
type GatewayClient interface {
	CreateOrder(ctx context.Context, params *OrderParams) (*GatewayOrder, error)
	FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error)
	UpdateOrderNotes(ctx context.Context, orderID string, notes map[string]string) (*GatewayOrder, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]*GatewayPayment, error)

	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*GatewayPayment, error)
	RefundPayment(ctx context.Context, paymentID string, amount int64, speed string) (*GatewayRefund, error)

	CreateCustomer(ctx context.Context, params *CustomerParams) (*GatewayCustomer, error)
	FetchCustomer(ctx context.Context, customerID string) (*GatewayCustomer, error)
	EditCustomer(ctx context.Context, customerID string, params *CustomerParams) (*GatewayCustomer, error)
	// ListCustomers returns one page of count customers starting at skip, in
	// ascending creation order.
	ListCustomers(ctx context.Context, count, skip int) ([]*GatewayCustomer, error)
}

// GatewayError is a failed remote call, carrying whatever code and
// description the gateway returned.
type GatewayError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Description
	}
	return e.Description
}

// ErrorCode implements coder.
func (e *GatewayError) ErrorCode() string {
	return e.Code
}

// ErrorDetail implements detailer.
func (e *GatewayError) ErrorDetail() string {
	return e.Description
}
