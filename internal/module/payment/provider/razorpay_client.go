package provider

import (
	"context"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/sony/gobreaker/v2"
)

// accountHeader carries the optional sub-account on every gateway request.
const accountHeader = "X-Razorpay-Account"

// RazorpayClient implements GatewayClient over the official Razorpay SDK.
// Every remote call goes through a circuit breaker so a dead gateway fails
// fast; the breaker never retries, failures surface to the caller unchanged.
type RazorpayClient struct {
	sdk     *razorpay.Client
	account string
	breaker *gobreaker.CircuitBreaker[map[string]interface{}]
	observe func(resource string, d time.Duration)
}

// NewRazorpayClient creates a gateway client for the given API credentials.
func NewRazorpayClient(opts *RazorpayOptions) *RazorpayClient {
	breaker := gobreaker.NewCircuitBreaker[map[string]interface{}](gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &RazorpayClient{
		sdk:     razorpay.NewClient(opts.KeyID, opts.KeySecret),
		account: opts.Account,
		breaker: breaker,
	}
}

// SetObserver installs a per-call duration observer, labeled by the remote
// resource ("order", "payment", "customer").
func (c *RazorpayClient) SetObserver(fn func(resource string, d time.Duration)) {
	c.observe = fn
}

// headers returns the extra headers sent with every request.
func (c *RazorpayClient) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.account != "" {
		h[accountHeader] = c.account
	}
	return h
}

// call runs one SDK request through the breaker, honoring context
// cancellation before the request is issued.
func (c *RazorpayClient) call(ctx context.Context, resource string, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	body, err := c.breaker.Execute(fn)
	if c.observe != nil {
		c.observe(resource, time.Since(start))
	}
	if err != nil {
		return nil, &GatewayError{Description: err.Error()}
	}
	return body, nil
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, params *OrderParams) (*GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":   params.Amount,
		"currency": params.Currency,
		"receipt":  params.Receipt,
		"notes":    params.Notes,
		"payment": map[string]interface{}{
			"capture": params.Capture,
			"capture_options": map[string]interface{}{
				"refund_speed":            params.RefundSpeed,
				"automatic_expiry_period": params.AutomaticExpiry,
				"manual_expiry_period":    params.ManualExpiry,
			},
		},
	}
	body, err := c.call(ctx, "order", func() (map[string]interface{}, error) {
		return c.sdk.Order.Create(data, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(body), nil
}

func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error) {
	body, err := c.call(ctx, "order", func() (map[string]interface{}, error) {
		return c.sdk.Order.Fetch(orderID, nil, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(body), nil
}

func (c *RazorpayClient) UpdateOrderNotes(ctx context.Context, orderID string, notes map[string]string) (*GatewayOrder, error) {
	data := map[string]interface{}{"notes": notes}
	body, err := c.call(ctx, "order", func() (map[string]interface{}, error) {
		return c.sdk.Order.Update(orderID, data, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(body), nil
}

func (c *RazorpayClient) FetchOrderPayments(ctx context.Context, orderID string) ([]*GatewayPayment, error) {
	body, err := c.call(ctx, "order", func() (map[string]interface{}, error) {
		return c.sdk.Order.Payments(orderID, nil, c.headers())
	})
	if err != nil {
		return nil, err
	}
	items, _ := body["items"].([]interface{})
	payments := make([]*GatewayPayment, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			payments = append(payments, decodePayment(m))
		}
	}
	return payments, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	body, err := c.call(ctx, "payment", func() (map[string]interface{}, error) {
		return c.sdk.Payment.Fetch(paymentID, nil, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodePayment(body), nil
}

func (c *RazorpayClient) CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*GatewayPayment, error) {
	data := map[string]interface{}{"currency": currency}
	body, err := c.call(ctx, "payment", func() (map[string]interface{}, error) {
		return c.sdk.Payment.Capture(paymentID, int(amount), data, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodePayment(body), nil
}

func (c *RazorpayClient) RefundPayment(ctx context.Context, paymentID string, amount int64, speed string) (*GatewayRefund, error) {
	data := map[string]interface{}{"speed": speed}
	body, err := c.call(ctx, "payment", func() (map[string]interface{}, error) {
		return c.sdk.Payment.Refund(paymentID, int(amount), data, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodeRefund(body), nil
}

func (c *RazorpayClient) CreateCustomer(ctx context.Context, params *CustomerParams) (*GatewayCustomer, error) {
	failExisting := 0
	if params.FailExisting {
		failExisting = 1
	}
	data := map[string]interface{}{
		"name":          params.Name,
		"email":         params.Email,
		"contact":       params.Contact,
		"fail_existing": failExisting,
	}
	if params.GSTIN != "" {
		data["gstin"] = params.GSTIN
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}
	body, err := c.call(ctx, "customer", func() (map[string]interface{}, error) {
		return c.sdk.Customer.Create(data, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body), nil
}

func (c *RazorpayClient) FetchCustomer(ctx context.Context, customerID string) (*GatewayCustomer, error) {
	body, err := c.call(ctx, "customer", func() (map[string]interface{}, error) {
		return c.sdk.Customer.Fetch(customerID, nil, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body), nil
}

func (c *RazorpayClient) EditCustomer(ctx context.Context, customerID string, params *CustomerParams) (*GatewayCustomer, error) {
	data := map[string]interface{}{
		"name":    params.Name,
		"email":   params.Email,
		"contact": params.Contact,
	}
	body, err := c.call(ctx, "customer", func() (map[string]interface{}, error) {
		return c.sdk.Customer.Edit(customerID, data, c.headers())
	})
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body), nil
}

func (c *RazorpayClient) ListCustomers(ctx context.Context, count, skip int) ([]*GatewayCustomer, error) {
	query := map[string]interface{}{"count": count, "skip": skip}
	body, err := c.call(ctx, "customer", func() (map[string]interface{}, error) {
		return c.sdk.Customer.All(query, c.headers())
	})
	if err != nil {
		return nil, err
	}
	items, _ := body["items"].([]interface{})
	customers := make([]*GatewayCustomer, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			customers = append(customers, decodeCustomer(m))
		}
	}
	return customers, nil
}

// --- Response decoding ---
//
// The SDK returns untyped maps; these helpers lift them into the typed
// gateway shapes the providers work with.

func decodeOrder(m map[string]interface{}) *GatewayOrder {
	order := &GatewayOrder{
		ID:         asString(m["id"]),
		Amount:     asInt64(m["amount"]),
		AmountPaid: asInt64(m["amount_paid"]),
		AmountDue:  asInt64(m["amount_due"]),
		Currency:   asString(m["currency"]),
		Status:     asString(m["status"]),
		Receipt:    asString(m["receipt"]),
		Notes:      asNotes(m["notes"]),
		CreatedAt:  asInt64(m["created_at"]),
	}
	if payments, ok := m["payments"].(map[string]interface{}); ok {
		order.Payments = make(map[string]*GatewayPayment, len(payments))
		for id, raw := range payments {
			if pm, ok := raw.(map[string]interface{}); ok {
				order.Payments[id] = decodePayment(pm)
			}
		}
	}
	return order
}

func decodePayment(m map[string]interface{}) *GatewayPayment {
	return &GatewayPayment{
		ID:       asString(m["id"]),
		OrderID:  asString(m["order_id"]),
		Amount:   asInt64(m["amount"]),
		Currency: asString(m["currency"]),
		Status:   asString(m["status"]),
		Method:   asString(m["method"]),
		Email:    asString(m["email"]),
		Contact:  asString(m["contact"]),
		Notes:    asNotes(m["notes"]),
	}
}

func decodeCustomer(m map[string]interface{}) *GatewayCustomer {
	return &GatewayCustomer{
		ID:      asString(m["id"]),
		Name:    asString(m["name"]),
		Email:   asString(m["email"]),
		Contact: asString(m["contact"]),
		GSTIN:   asString(m["gstin"]),
	}
}

func decodeRefund(m map[string]interface{}) *GatewayRefund {
	return &GatewayRefund{
		ID:             asString(m["id"]),
		PaymentID:      asString(m["payment_id"]),
		Amount:         asInt64(m["amount"]),
		Status:         asString(m["status"]),
		SpeedProcessed: asString(m["speed_processed"]),
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func asNotes(v interface{}) map[string]string {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	notes := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			notes[k] = s
		}
	}
	return notes
}
