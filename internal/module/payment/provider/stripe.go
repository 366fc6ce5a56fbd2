package provider

import (
	"context"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// ProviderNameStripe identifies the Stripe provider in the registry.
const ProviderNameStripe = "stripe"

// StripeOptions configures the Stripe provider.
type StripeOptions struct {
	APIKey        string
	WebhookSecret string
	AutoCapture   bool
}

// StripeProvider implements Provider over Stripe PaymentIntents. A payment
// intent plays the role of the gateway order; unlike Razorpay, Stripe
// supports cancellation.
type StripeProvider struct {
	api    *client.API
	opts   *StripeOptions
	logger *zap.Logger
}

// NewStripeProvider creates a Stripe provider with its own API client.
func NewStripeProvider(opts *StripeOptions, logger *zap.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(opts.APIKey, nil)
	return &StripeProvider{
		api:    api,
		opts:   opts,
		logger: logger,
	}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return ProviderNameStripe
}

// InitiatePayment resolves the Stripe customer and creates a payment intent.
func (p *StripeProvider) InitiatePayment(ctx context.Context, sc *SessionContext) (*SessionResult, error) {
	hadLinkage := sc.Customer != nil && sc.Customer.GatewayCustomerID != ""

	cust, err := p.resolveCustomer(sc)
	if err != nil {
		return nil, BuildError("an error occurred in initiatePayment while resolving the customer", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(sc.Amount))),
		Currency: stripe.String(strings.ToLower(sc.CurrencyCode)),
		Customer: stripe.String(cust.ID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.opts.AutoCapture {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic))
	} else {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	params.AddMetadata("session_id", sc.SessionID)
	for k, v := range sc.Notes {
		params.AddMetadata(k, v)
	}
	// Stable idempotency key so caller retries do not mint duplicate intents.
	params.IdempotencyKey = stripe.String(receiptForSession(sc.SessionID))

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, BuildError("an error occurred in initiatePayment during the creation of the payment intent", err)
	}

	result := &SessionResult{
		Data: &OrderData{
			Order:      intentToOrder(pi),
			CustomerID: cust.ID,
		},
	}
	if !hadLinkage {
		result.LinkedCustomerID = cust.ID
	}
	return result, nil
}

// resolveCustomer fetches the linked Stripe customer or creates one from the
// session's contact details.
func (p *StripeProvider) resolveCustomer(sc *SessionContext) (*stripe.Customer, error) {
	if sc.Customer != nil && sc.Customer.GatewayCustomerID != "" {
		cust, err := p.api.Customers.Get(sc.Customer.GatewayCustomerID, nil)
		if err == nil {
			return cust, nil
		}
		p.logger.Warn("unable to fetch stripe customer, creating a new one",
			zap.String("gateway_customer_id", sc.Customer.GatewayCustomerID), zap.Error(err))
	}

	if sc.Email == "" {
		return nil, NewProviderError(CodeValidationError, "an email is required to create a stripe customer")
	}
	params := &stripe.CustomerParams{Email: stripe.String(sc.Email)}
	if sc.Customer != nil {
		if name := sc.Customer.FullName(); name != "" {
			params.Name = stripe.String(name)
		}
		if sc.Customer.Phone != "" {
			params.Phone = stripe.String(sc.Customer.Phone)
		}
	}
	cust, err := p.api.Customers.New(params)
	if err != nil {
		return nil, err
	}
	if sc.Customer != nil && sc.Customer.GatewayCustomerID == "" {
		sc.Customer.GatewayCustomerID = cust.ID
	}
	return cust, nil
}

// UpdatePayment supersedes the current intent on customer, amount or
// currency change. Stripe intents could be amended in place, but the session
// contract is supersede-only so both gateways behave alike.
func (p *StripeProvider) UpdatePayment(ctx context.Context, sc *SessionContext) (*SessionResult, error) {
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
		return p.InitiatePayment(ctx, sc)
	}

	existing := sc.Data
	amountChanged := existing == nil || existing.Order == nil ||
		int64(math.Round(sc.Amount)) != existing.Order.Amount
	currencyChanged := existing == nil || existing.Order == nil ||
		(sc.CurrencyCode != "" && strings.ToUpper(sc.CurrencyCode) != existing.Order.Currency)
	if !amountChanged && !currencyChanged {
		return nil, NewProviderError(CodeUnsupportedOperation, "neither amount nor currency changed; nothing to update")
	}

	if sc.CurrencyCode == "" && existing != nil && existing.Order != nil {
		sc.CurrencyCode = existing.Order.Currency
	}
	return p.InitiatePayment(ctx, sc)
}

// UpdatePaymentData patches intent metadata; money fields are rejected.
func (p *StripeProvider) UpdatePaymentData(ctx context.Context, sessionID string, patch *SessionPatch) (*OrderData, error) {
	if patch == nil {
		return nil, NewProviderError(CodeValidationError, "no update payload supplied")
	}
	if patch.Amount != nil || patch.Currency != nil {
		return nil, NewProviderError(CodeValidationError, "cannot update amount or currency, use updatePayment instead")
	}

	intentID := patch.Data.OrderID()
	if intentID == "" {
		intentID = sessionID
	}
	if len(patch.Notes) == 0 {
		return patch.Data, nil
	}

	params := &stripe.PaymentIntentParams{}
	for k, v := range patch.Notes {
		params.AddMetadata(k, v)
	}
	pi, err := p.api.PaymentIntents.Update(intentID, params)
	if err != nil {
		return nil, BuildError("an error occurred in updatePaymentData", err)
	}

	data := patch.Data
	if data == nil {
		data = &OrderData{}
	}
	data.Order = intentToOrder(pi)
	return data, nil
}

// GetPaymentStatus maps the intent status onto the local session status.
func (p *StripeProvider) GetPaymentStatus(ctx context.Context, data *OrderData) (SessionStatus, error) {
	intentID := data.OrderID()
	if intentID == "" {
		return StatusError, nil
	}
	pi, err := p.api.PaymentIntents.Get(intentID, nil)
	if err != nil {
		p.logger.Warn("unable to fetch payment intent for status", zap.String("intent_id", intentID), zap.Error(err))
		return StatusPending, nil
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction:
		return StatusRequiresMore, nil
	case stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusSucceeded:
		return StatusAuthorized, nil
	case stripe.PaymentIntentStatusCanceled:
		return StatusError, nil
	default:
		return StatusPending, nil
	}
}

// CapturePayment captures the intent when it is awaiting capture.
func (p *StripeProvider) CapturePayment(ctx context.Context, data *OrderData) (*OrderData, error) {
	if data == nil || data.Order == nil || data.Order.ID == "" {
		return nil, NewProviderError(CodeStateError, "no payment intent linked to the session")
	}

	pi, err := p.api.PaymentIntents.Get(data.Order.ID, nil)
	if err != nil {
		return nil, BuildError("an error occurred in capturePayment while fetching the intent", err)
	}
	if pi.Status != stripe.PaymentIntentStatusRequiresCapture {
		return data, nil
	}

	captured, err := p.api.PaymentIntents.Capture(data.Order.ID, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return nil, BuildError("an error occurred in capturePayment", err)
	}

	if data.Order.Payments == nil {
		data.Order.Payments = make(map[string]*GatewayPayment, 1)
	}
	data.Order.Payments[captured.ID] = &GatewayPayment{
		ID:       captured.ID,
		OrderID:  captured.ID,
		Amount:   captured.Amount,
		Currency: strings.ToUpper(string(captured.Currency)),
		Status:   PaymentStatusCaptured,
	}
	data.Order.Status = string(captured.Status)
	return data, nil
}

// RefundPayment refunds exactly amount against the intent when enough was
// collected; an insufficient intent is a no-op, not an error.
func (p *StripeProvider) RefundPayment(ctx context.Context, data *OrderData, amount int64) (*OrderData, error) {
	if data == nil || data.Order == nil || data.Order.ID == "" {
		return nil, NewProviderError(CodeStateError, "no payment intent linked to the session")
	}

	pi, err := p.api.PaymentIntents.Get(data.Order.ID, nil)
	if err != nil {
		return nil, BuildError("an error occurred in refundPayment while fetching the intent", err)
	}
	if pi.AmountReceived < amount {
		return data, nil
	}

	refund, err := p.api.Refunds.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(data.Order.ID),
		Amount:        stripe.Int64(amount),
	})
	if err != nil {
		return nil, BuildError("an error occurred in refundPayment", err)
	}

	data.Refunds = append(data.Refunds, RefundRecord{
		Amount:   refund.Amount,
		RefundID: refund.ID,
	})
	return data, nil
}

// CancelPayment cancels the intent; Stripe supports cancellation.
func (p *StripeProvider) CancelPayment(ctx context.Context, data *OrderData) (*OrderData, error) {
	if data == nil || data.Order == nil || data.Order.ID == "" {
		return nil, NewProviderError(CodeStateError, "no payment intent linked to the session")
	}
	pi, err := p.api.PaymentIntents.Cancel(data.Order.ID, nil)
	if err != nil {
		return nil, BuildError("an error occurred in cancelPayment", err)
	}
	data.Order = intentToOrder(pi)
	return data, nil
}

// DeletePayment delegates to CancelPayment.
func (p *StripeProvider) DeletePayment(ctx context.Context, data *OrderData) (*OrderData, error) {
	return p.CancelPayment(ctx, data)
}

// RetrievePayment fetches the intent, falling back to the embedded payment's
// order id.
func (p *StripeProvider) RetrievePayment(ctx context.Context, data *OrderData) (*GatewayOrder, error) {
	intentID := data.OrderID()
	if intentID == "" {
		return nil, NewProviderError(CodeNotFound, "no payment intent id available on the payment session")
	}
	pi, err := p.api.PaymentIntents.Get(intentID, nil)
	if err != nil {
		return nil, BuildError("an error occurred in retrievePayment", err)
	}
	return intentToOrder(pi), nil
}

// VerifyWebhookSignature validates the Stripe-Signature header over the raw
// payload body.
func (p *StripeProvider) VerifyWebhookSignature(payload *WebhookPayload, signature string) bool {
	if payload == nil {
		return false
	}
	_, err := webhook.ConstructEvent(payload.Raw, signature, p.opts.WebhookSecret)
	return err == nil
}

// VerifyCaptureSignature is not part of the Stripe flow; captures are
// confirmed by webhook only.
func (p *StripeProvider) VerifyCaptureSignature(orderID, paymentID, signature string) bool {
	return false
}

// intentToOrder maps a payment intent onto the gateway order shape.
func intentToOrder(pi *stripe.PaymentIntent) *GatewayOrder {
	return &GatewayOrder{
		ID:         pi.ID,
		Amount:     pi.Amount,
		AmountPaid: pi.AmountReceived,
		AmountDue:  pi.Amount - pi.AmountReceived,
		Currency:   strings.ToUpper(string(pi.Currency)),
		Status:     string(pi.Status),
		Notes:      pi.Metadata,
		CreatedAt:  pi.Created,
	}
}
