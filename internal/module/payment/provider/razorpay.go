package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProviderNameRazorpay identifies the Razorpay provider in the registry.
const ProviderNameRazorpay = "razorpay"

// Gateway minimums for capture expiry periods, in minutes. Configured values
// below these are clamped, not rejected.
const (
	minAutomaticExpiryPeriod = 12
	minManualExpiryPeriod    = 7200
)

// Defaults applied when the expiry periods are not configured.
const (
	defaultAutomaticExpiryPeriod = 20
	defaultManualExpiryPeriod    = 10
)

// defaultRefundSpeed is used when no refund speed is configured.
const defaultRefundSpeed = "normal"

// RazorpayOptions configures the Razorpay provider.
type RazorpayOptions struct {
	KeyID                 string
	KeySecret             string
	Account               string
	AutoCapture           bool
	AutomaticExpiryPeriod int
	ManualExpiryPeriod    int
	RefundSpeed           string
	WebhookSecret         string
}

// RazorpayProvider implements Provider against the Razorpay orders API.
// The gateway client is injected at construction; the provider itself holds
// no hidden shared state.
type RazorpayProvider struct {
	client GatewayClient
	opts   *RazorpayOptions
	logger *zap.Logger
}

// NewRazorpayProvider creates a Razorpay provider.
func NewRazorpayProvider(client GatewayClient, opts *RazorpayOptions, logger *zap.Logger) *RazorpayProvider {
	return &RazorpayProvider{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Name returns the provider name.
func (p *RazorpayProvider) Name() string {
	return ProviderNameRazorpay
}

// buildOrderParams turns a session context into gateway order parameters:
// amount rounded to integer minor units, currency upper-cased, capture mode
// and expiry clamps applied, session notes merged with the session id.
func (p *RazorpayProvider) buildOrderParams(sc *SessionContext) *OrderParams {
	notes := make(map[string]string, len(sc.Notes)+2)
	for k, v := range sc.Notes {
		notes[k] = v
	}
	notes["session_id"] = sc.SessionID

	capture := "manual"
	if p.opts.AutoCapture {
		capture = "automatic"
	}

	automaticExpiry := p.opts.AutomaticExpiryPeriod
	if automaticExpiry == 0 {
		automaticExpiry = defaultAutomaticExpiryPeriod
	}
	manualExpiry := p.opts.ManualExpiryPeriod
	if manualExpiry == 0 {
		manualExpiry = defaultManualExpiryPeriod
	}
	refundSpeed := p.opts.RefundSpeed
	if refundSpeed == "" {
		refundSpeed = defaultRefundSpeed
	}

	return &OrderParams{
		Amount:          int64(math.Round(sc.Amount)),
		Currency:        strings.ToUpper(sc.CurrencyCode),
		Receipt:         receiptForSession(sc.SessionID),
		Notes:           notes,
		Capture:         capture,
		RefundSpeed:     refundSpeed,
		AutomaticExpiry: max(automaticExpiry, minAutomaticExpiryPeriod),
		ManualExpiry:    max(manualExpiry, minManualExpiryPeriod),
	}
}

// receiptForSession derives a stable idempotency receipt from the session id,
// so caller-level retries of order creation reuse the same receipt value.
func receiptForSession(sessionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sessionID)).String()
}

// InitiatePayment resolves the customer and creates a gateway order for the
// session. Customer resolution is a hard dependency: its failure aborts with
// a normalized error and no order is created.
func (p *RazorpayProvider) InitiatePayment(ctx context.Context, sc *SessionContext) (*SessionResult, error) {
	params := p.buildOrderParams(sc)

	hadLinkage := sc.Customer != nil && sc.Customer.GatewayCustomerID != ""

	rc, err := p.resolveCustomer(ctx, sc, params)
	if err != nil {
		return nil, BuildError("an error occurred in initiatePayment while resolving the customer", err)
	}

	p.logger.Debug("creating gateway order",
		zap.Int64("amount", params.Amount),
		zap.String("currency", params.Currency),
		zap.String("session_id", sc.SessionID),
	)

	order, err := p.client.CreateOrder(ctx, params)
	if err != nil {
		return nil, BuildError("an error occurred in initiatePayment during the creation of the gateway order", err)
	}

	result := &SessionResult{
		Data: &OrderData{
			Order:      order,
			CustomerID: rc.ID,
		},
	}
	if !hadLinkage {
		result.LinkedCustomerID = rc.ID
	}
	return result, nil
}

// UpdatePayment supersedes the current order. A customer change re-runs
// initiation outright; an amount or currency change re-creates the order from
// the existing one with server-assigned fields stripped. The old order is
// never mutated.
func (p *RazorpayProvider) UpdatePayment(ctx context.Context, sc *SessionContext) (*SessionResult, error) {
	if sc.BillingAddress == nil {
		return nil, NewProviderError(CodeStateError, "billing address is required to update a payment")
	}

	var linkageID string
	if sc.Customer != nil {
		linkageID = sc.Customer.GatewayCustomerID
	}

	embeddedID := ""
	if sc.Data != nil {
		embeddedID = sc.Data.CustomerID
	}

	if linkageID != embeddedID {
		// Customer changed since the order was created: supersede.
		phone := sc.BillingAddress.Phone
		if phone == "" && sc.Customer != nil {
			phone = sc.Customer.Phone
		}
		if phone == "" {
			p.logger.Warn("phone number missing for customer change", zap.String("session_id", sc.SessionID))
			return nil, NewProviderError(CodeValidationError, "a phone number is required to switch the payment customer")
		}
		result, err := p.InitiatePayment(ctx, sc)
		if err != nil {
			return nil, BuildError("an error occurred in updatePayment while initiating the payment for the new customer", err)
		}
		return result, nil
	}

	existing := sc.Data
	amountChanged := existing == nil || existing.Order == nil ||
		int64(math.Round(sc.Amount)) != existing.Order.Amount
	currencyChanged := existing == nil || existing.Order == nil ||
		(sc.CurrencyCode != "" && strings.ToUpper(sc.CurrencyCode) != existing.Order.Currency)

	if !amountChanged && !currencyChanged {
		return nil, NewProviderError(CodeUnsupportedOperation, "neither amount nor currency changed; nothing to update")
	}

	currency := strings.ToUpper(sc.CurrencyCode)
	if existing != nil && existing.Order != nil && existing.Order.ID != "" {
		order, err := p.client.FetchOrder(ctx, existing.Order.ID)
		if err != nil {
			return nil, BuildError("an error occurred in updatePayment while fetching the existing order", err)
		}
		// Strip server-assigned fields; only the merged currency survives.
		if currency == "" {
			currency = order.Currency
		}
	}
	if currency == "" {
		currency = "INR"
	}
	sc.CurrencyCode = currency

	result, err := p.InitiatePayment(ctx, sc)
	if err != nil {
		return nil, BuildError("an error occurred in updatePayment", err)
	}
	return result, nil
}

// UpdatePaymentData patches free-form notes on the remote order. Amount and
// currency changes are rejected before any remote call: money changes must go
// through UpdatePayment so the order is superseded.
func (p *RazorpayProvider) UpdatePaymentData(ctx context.Context, sessionID string, patch *SessionPatch) (*OrderData, error) {
	if patch == nil {
		return nil, NewProviderError(CodeValidationError, "no update payload supplied")
	}
	if patch.Amount != nil || patch.Currency != nil {
		return nil, NewProviderError(CodeValidationError, "cannot update amount or currency, use updatePayment instead")
	}

	orderID := patch.Data.OrderID()
	if orderID == "" {
		orderID = sessionID
	}

	if len(patch.Notes) == 0 {
		p.logger.Warn("only notes can be updated on a gateway order", zap.String("order_id", orderID))
		return patch.Data, nil
	}

	order, err := p.client.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, BuildError("an error occurred in updatePaymentData while fetching the order", err)
	}

	notes := make(map[string]string, len(order.Notes)+len(patch.Notes))
	for k, v := range order.Notes {
		notes[k] = v
	}
	for k, v := range patch.Notes {
		notes[k] = v
	}

	updated, err := p.client.UpdateOrderNotes(ctx, orderID, notes)
	if err != nil {
		return nil, BuildError("an error occurred in updatePaymentData", err)
	}

	data := patch.Data
	if data == nil {
		data = &OrderData{}
	}
	data.Order = updated
	return data, nil
}

// GetPaymentStatus fetches the order and maps its remote status onto the
// local session status.
func (p *RazorpayProvider) GetPaymentStatus(ctx context.Context, data *OrderData) (SessionStatus, error) {
	orderID := data.OrderID()
	if orderID == "" {
		return StatusError, nil
	}

	order, err := p.client.FetchOrder(ctx, orderID)
	if err != nil {
		p.logger.Warn("unable to fetch order for status", zap.String("order_id", orderID), zap.Error(err))
		order = nil
	}
	return MapOrderStatus(order), nil
}

// MapOrderStatus maps a remote order status to the local session status:
// created → requires_more, paid → authorized, attempted → authorized when
// order data is present, anything else or missing → pending.
func MapOrderStatus(order *GatewayOrder) SessionStatus {
	if order == nil {
		return StatusPending
	}
	switch order.Status {
	case OrderStatusCreated:
		return StatusRequiresMore
	case OrderStatusPaid:
		return StatusAuthorized
	case OrderStatusAttempted:
		return attemptedStatus(order)
	default:
		return StatusPending
	}
}

// attemptedStatus resolves the "attempted" remote status: authorized when the
// order is present, error otherwise.
func attemptedStatus(order *GatewayOrder) SessionStatus {
	if order == nil {
		return StatusError
	}
	return StatusAuthorized
}

// CapturePayment captures every authorized payment on the session's order.
// Captures are issued concurrently and joined; the first failure discards the
// whole batch so no partial result is committed. Zero eligible payments
// returns the data unchanged.
func (p *RazorpayProvider) CapturePayment(ctx context.Context, data *OrderData) (*OrderData, error) {
	if data == nil || data.Order == nil || data.Order.ID == "" {
		return nil, NewProviderError(CodeStateError, "no gateway order linked to the session")
	}

	payments, err := p.client.FetchOrderPayments(ctx, data.Order.ID)
	if err != nil {
		return nil, BuildError("an error occurred in capturePayment while listing order payments", err)
	}

	var eligible []*GatewayPayment
	for _, pay := range payments {
		if pay.Status == PaymentStatusAuthorized {
			eligible = append(eligible, pay)
		}
	}
	if len(eligible) == 0 {
		return data, nil
	}

	captured := make([]*GatewayPayment, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	for i, pay := range eligible {
		g.Go(func() error {
			res, err := p.client.CapturePayment(gctx, pay.ID, pay.Amount, pay.Currency)
			if err != nil {
				return err
			}
			captured[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, BuildError("an error occurred in capturePayment", err)
	}

	if data.Order.Payments == nil {
		data.Order.Payments = make(map[string]*GatewayPayment, len(captured))
	}
	for _, pay := range captured {
		data.Order.Payments[pay.ID] = pay
	}
	return data, nil
}

// RefundPayment refunds exactly amount against the first payment on the order
// whose amount covers it, appending the refund record to the session's list.
// No eligible payment is a no-op, not an error.
func (p *RazorpayProvider) RefundPayment(ctx context.Context, data *OrderData, amount int64) (*OrderData, error) {
	if data == nil || data.Order == nil || data.Order.ID == "" {
		return nil, NewProviderError(CodeStateError, "no gateway order linked to the session")
	}

	order, err := p.client.FetchOrder(ctx, data.Order.ID)
	if err != nil {
		return nil, BuildError("an error occurred in refundPayment while fetching the order", err)
	}

	ids := order.PaymentIDs()
	if len(ids) == 0 {
		// The gateway does not embed payments on every order fetch.
		payments, err := p.client.FetchOrderPayments(ctx, data.Order.ID)
		if err != nil {
			p.logger.Warn("unable to list order payments for refund", zap.String("order_id", data.Order.ID), zap.Error(err))
		}
		for _, pay := range payments {
			ids = append(ids, pay.ID)
		}
	}

	var candidate *GatewayPayment
	for _, id := range ids {
		pay, err := p.client.FetchPayment(ctx, id)
		if err != nil {
			return nil, BuildError("an error occurred in refundPayment while fetching a payment", err)
		}
		if pay.Amount >= amount {
			candidate = pay
			break
		}
	}
	if candidate == nil {
		return data, nil
	}

	speed := p.opts.RefundSpeed
	if speed == "" {
		speed = defaultRefundSpeed
	}
	refund, err := p.client.RefundPayment(ctx, candidate.ID, amount, speed)
	if err != nil {
		return nil, BuildError("an error occurred in refundPayment", err)
	}

	data.Refunds = append(data.Refunds, RefundRecord{
		Amount:   refund.Amount,
		RefundID: refund.ID,
	})
	return data, nil
}

// CancelPayment always fails: the gateway offers no order cancellation. No
// remote call is made.
func (p *RazorpayProvider) CancelPayment(ctx context.Context, data *OrderData) (*OrderData, error) {
	return nil, NewProviderError(CodeUnsupportedOperation, "unable to cancel as razorpay doesn't support cancellation")
}

// DeletePayment delegates to CancelPayment.
func (p *RazorpayProvider) DeletePayment(ctx context.Context, data *OrderData) (*OrderData, error) {
	return p.CancelPayment(ctx, data)
}

// RetrievePayment fetches the linked order, falling back to the order id
// embedded in the session's payment data.
func (p *RazorpayProvider) RetrievePayment(ctx context.Context, data *OrderData) (*GatewayOrder, error) {
	if data != nil && data.Order != nil && data.Order.ID != "" {
		order, err := p.client.FetchOrder(ctx, data.Order.ID)
		if err == nil {
			return order, nil
		}
		p.logger.Warn("unable to fetch order by id, trying embedded payment order id", zap.Error(err))
	}

	if data != nil && data.Payment != nil && data.Payment.OrderID != "" {
		order, err := p.client.FetchOrder(ctx, data.Payment.OrderID)
		if err != nil {
			return nil, BuildError("an error occurred in retrievePayment", err)
		}
		return order, nil
	}

	return nil, NewProviderError(CodeNotFound, "no order id available on the payment session")
}

// VerifyWebhookSignature recomputes the webhook HMAC with the webhook secret.
func (p *RazorpayProvider) VerifyWebhookSignature(payload *WebhookPayload, signature string) bool {
	if payload == nil {
		return false
	}
	return verifySignature(payload.OrderID, payload.PaymentID, signature, p.opts.WebhookSecret)
}

// VerifyCaptureSignature validates a direct-capture confirmation signature
// with the API key secret. Same primitive as webhooks, different key.
func (p *RazorpayProvider) VerifyCaptureSignature(orderID, paymentID, signature string) bool {
	return verifySignature(orderID, paymentID, signature, p.opts.KeySecret)
}

// verifySignature compares hex HMAC-SHA256 digests over the canonical
// "<orderId>|<paymentId>" string.
func verifySignature(orderID, paymentID, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
