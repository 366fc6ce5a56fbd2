package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	stripe "github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func TestIntentToOrder(t *testing.T) {
	order := intentToOrder(&stripe.PaymentIntent{
		ID:             "pi_1",
		Amount:         50000,
		AmountReceived: 20000,
		Currency:       stripe.CurrencyINR,
		Status:         stripe.PaymentIntentStatusRequiresCapture,
		Metadata:       map[string]string{"session_id": "sess_1"},
		Created:        1700000000,
	})

	assert.Equal(t, "pi_1", order.ID)
	assert.Equal(t, int64(50000), order.Amount)
	assert.Equal(t, int64(20000), order.AmountPaid)
	assert.Equal(t, int64(30000), order.AmountDue)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "requires_capture", order.Status)
	assert.Equal(t, "sess_1", order.Notes["session_id"])
}

func TestStripeProvider_Name(t *testing.T) {
	p := NewStripeProvider(&StripeOptions{APIKey: "sk_test"}, zap.NewNop())
	assert.Equal(t, ProviderNameStripe, p.Name())
}

func TestStripeProvider_VerifyCaptureSignature(t *testing.T) {
	p := NewStripeProvider(&StripeOptions{APIKey: "sk_test"}, zap.NewNop())
	assert.False(t, p.VerifyCaptureSignature("order_1", "pay_1", "sig"))
}
