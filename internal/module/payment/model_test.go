package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocart/payments/internal/module/payment/provider"
)

func TestNewPaymentSession(t *testing.T) {
	s := NewPaymentSession(provider.ProviderNameRazorpay)

	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, provider.ProviderNameRazorpay, s.Provider)
	assert.Equal(t, provider.StatusPending, s.Status)
	assert.False(t, s.IsTerminal())
	assert.Empty(t, s.OrderID())
}

func TestPaymentSession_ApplyResult(t *testing.T) {
	t.Run("Links the order and syncs money fields", func(t *testing.T) {
		s := NewPaymentSession(provider.ProviderNameRazorpay)

		s.applyResult(&provider.SessionResult{
			Data: &provider.OrderData{
				Order:      &provider.GatewayOrder{ID: "order_1", Amount: 50000, Currency: "INR"},
				CustomerID: "cust_1",
			},
		})

		assert.Equal(t, "order_1", s.OrderID())
		assert.Equal(t, int64(50000), s.Amount)
		assert.Equal(t, "INR", s.Currency)
	})

	t.Run("Carries the refund trail across superseded orders", func(t *testing.T) {
		s := NewPaymentSession(provider.ProviderNameRazorpay)
		s.Data = &provider.OrderData{
			Order:   &provider.GatewayOrder{ID: "order_1"},
			Refunds: []provider.RefundRecord{{Amount: 500, RefundID: "rfnd_0"}},
		}

		s.applyResult(&provider.SessionResult{
			Data: &provider.OrderData{
				Order: &provider.GatewayOrder{ID: "order_2", Amount: 75000, Currency: "INR"},
			},
		})

		assert.Equal(t, "order_2", s.OrderID())
		require.Len(t, s.Data.Refunds, 1)
		assert.Equal(t, "rfnd_0", s.Data.Refunds[0].RefundID)
	})

	t.Run("Applies the linkage delta only to an unlinked customer", func(t *testing.T) {
		s := NewPaymentSession(provider.ProviderNameRazorpay)
		s.Customer = &provider.Customer{}

		s.applyResult(&provider.SessionResult{
			Data:             &provider.OrderData{Order: &provider.GatewayOrder{ID: "order_1"}},
			LinkedCustomerID: "cust_new",
		})
		assert.Equal(t, "cust_new", s.Customer.GatewayCustomerID)

		s.applyResult(&provider.SessionResult{
			Data:             &provider.OrderData{Order: &provider.GatewayOrder{ID: "order_2"}},
			LinkedCustomerID: "cust_other",
		})
		assert.Equal(t, "cust_new", s.Customer.GatewayCustomerID, "an existing linkage is never overwritten")
	})

	t.Run("Nil results are ignored", func(t *testing.T) {
		s := NewPaymentSession(provider.ProviderNameRazorpay)

		s.applyResult(nil)
		s.applyResult(&provider.SessionResult{})

		assert.Nil(t, s.Data)
	})
}
