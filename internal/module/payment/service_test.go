package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velocart/payments/internal/module/payment/provider"
)

func newTestService(p provider.Provider) *Service {
	registry := NewProviderRegistry("razorpay")
	if p != nil {
		registry.Register(p)
	}
	return NewService(registry, nil, zap.NewNop())
}

func TestService_InitiatePayment(t *testing.T) {
	t.Run("Links the order and moves the session forward", func(t *testing.T) {
		stub := &stubProvider{
			name: "razorpay",
			initiateFn: func(sc *provider.SessionContext) (*provider.SessionResult, error) {
				return &provider.SessionResult{
					Data: &provider.OrderData{
						Order: &provider.GatewayOrder{ID: "order_1", Amount: 50000, Currency: "INR"},
					},
					LinkedCustomerID: "cust_1",
				}, nil
			},
		}
		svc := newTestService(stub)

		sess := NewPaymentSession("razorpay")
		sess.Customer = &provider.Customer{}

		got, err := svc.InitiatePayment(context.Background(), sess, &provider.SessionContext{Amount: 50000, CurrencyCode: "INR"})
		require.NoError(t, err)

		assert.Equal(t, provider.StatusRequiresMore, got.Status)
		assert.Equal(t, "order_1", got.OrderID())
		assert.Equal(t, int64(50000), got.Amount)
		assert.Equal(t, "cust_1", got.Customer.GatewayCustomerID)
	})

	t.Run("Failure marks the session errored", func(t *testing.T) {
		stub := &stubProvider{
			name: "razorpay",
			initiateFn: func(sc *provider.SessionContext) (*provider.SessionResult, error) {
				return nil, provider.NewProviderError(provider.CodeGatewayError, "gateway unavailable")
			},
		}
		svc := newTestService(stub)

		sess := NewPaymentSession("razorpay")
		_, err := svc.InitiatePayment(context.Background(), sess, &provider.SessionContext{})
		require.Error(t, err)
		assert.Equal(t, provider.StatusError, sess.Status)
	})

	t.Run("Unknown provider fails before any gateway work", func(t *testing.T) {
		svc := newTestService(nil)

		sess := NewPaymentSession("razorpay")
		_, err := svc.InitiatePayment(context.Background(), sess, &provider.SessionContext{})
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("Session id and customer flow into the context", func(t *testing.T) {
		var seen *provider.SessionContext
		stub := &stubProvider{
			name: "razorpay",
			initiateFn: func(sc *provider.SessionContext) (*provider.SessionResult, error) {
				seen = sc
				return &provider.SessionResult{Data: &provider.OrderData{}}, nil
			},
		}
		svc := newTestService(stub)

		sess := NewPaymentSession("razorpay")
		sess.Customer = &provider.Customer{ID: "local_1"}

		_, err := svc.InitiatePayment(context.Background(), sess, &provider.SessionContext{})
		require.NoError(t, err)

		require.NotNil(t, seen)
		assert.Equal(t, sess.SessionID, seen.SessionID)
		assert.Equal(t, "local_1", seen.Customer.ID)
	})
}

func TestService_UpdatePayment(t *testing.T) {
	t.Run("Supersedes the order and carries refunds", func(t *testing.T) {
		stub := &stubProvider{
			name: "razorpay",
			updateFn: func(sc *provider.SessionContext) (*provider.SessionResult, error) {
				return &provider.SessionResult{
					Data: &provider.OrderData{
						Order: &provider.GatewayOrder{ID: "order_2", Amount: 75000, Currency: "INR"},
					},
				}, nil
			},
		}
		svc := newTestService(stub)

		sess := NewPaymentSession("razorpay")
		sess.Data = &provider.OrderData{
			Order:   &provider.GatewayOrder{ID: "order_1", Amount: 50000, Currency: "INR"},
			Refunds: []provider.RefundRecord{{Amount: 500, RefundID: "rfnd_0"}},
		}

		got, err := svc.UpdatePayment(context.Background(), sess, &provider.SessionContext{Amount: 75000})
		require.NoError(t, err)

		assert.Equal(t, "order_2", got.OrderID())
		assert.Equal(t, int64(75000), got.Amount)
		require.Len(t, got.Data.Refunds, 1)
	})

	t.Run("Existing order data flows into the context", func(t *testing.T) {
		var seen *provider.SessionContext
		stub := &stubProvider{
			name: "razorpay",
			updateFn: func(sc *provider.SessionContext) (*provider.SessionResult, error) {
				seen = sc
				return &provider.SessionResult{Data: &provider.OrderData{}}, nil
			},
		}
		svc := newTestService(stub)

		sess := NewPaymentSession("razorpay")
		sess.Data = &provider.OrderData{Order: &provider.GatewayOrder{ID: "order_1"}}

		_, err := svc.UpdatePayment(context.Background(), sess, &provider.SessionContext{})
		require.NoError(t, err)

		require.NotNil(t, seen)
		require.NotNil(t, seen.Data)
		assert.Equal(t, "order_1", seen.Data.Order.ID)
	})
}

func TestService_GetPaymentStatus(t *testing.T) {
	stub := &stubProvider{
		name: "razorpay",
		statusFn: func(data *provider.OrderData) (provider.SessionStatus, error) {
			return provider.StatusAuthorized, nil
		},
	}
	svc := newTestService(stub)

	sess := NewPaymentSession("razorpay")
	status, err := svc.GetPaymentStatus(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, provider.StatusAuthorized, status)
	assert.Equal(t, provider.StatusAuthorized, sess.Status)
	assert.True(t, sess.IsTerminal())
}

func TestService_RefundPayment(t *testing.T) {
	t.Run("Unlinked session is rejected", func(t *testing.T) {
		svc := newTestService(&stubProvider{name: "razorpay"})

		_, err := svc.RefundPayment(context.Background(), NewPaymentSession("razorpay"), 100)
		assert.ErrorIs(t, err, ErrSessionNotLinked)

		_, err = svc.CapturePayment(context.Background(), NewPaymentSession("razorpay"))
		assert.ErrorIs(t, err, ErrSessionNotLinked)
	})

	stub := &stubProvider{
		name: "razorpay",
		refundFn: func(data *provider.OrderData, amount int64) (*provider.OrderData, error) {
			data.Refunds = append(data.Refunds, provider.RefundRecord{Amount: amount, RefundID: "rfnd_1"})
			return data, nil
		},
	}
	svc := newTestService(stub)

	sess := NewPaymentSession("razorpay")
	sess.Data = &provider.OrderData{Order: &provider.GatewayOrder{ID: "order_1"}}

	got, err := svc.RefundPayment(context.Background(), sess, 25000)
	require.NoError(t, err)
	require.Len(t, got.Data.Refunds, 1)
	assert.Equal(t, int64(25000), got.Data.Refunds[0].Amount)
}

func TestService_CancelPayment(t *testing.T) {
	t.Run("Propagates unsupported cancellation", func(t *testing.T) {
		stub := &stubProvider{
			name: "razorpay",
			cancelFn: func(data *provider.OrderData) (*provider.OrderData, error) {
				return nil, provider.NewProviderError(provider.CodeUnsupportedOperation, "unable to cancel")
			},
		}
		svc := newTestService(stub)

		sess := NewPaymentSession("razorpay")
		_, err := svc.CancelPayment(context.Background(), sess)
		require.Error(t, err)

		pe, ok := provider.IsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, provider.CodeUnsupportedOperation, pe.Code)
	})

	t.Run("Delete delegates to cancel", func(t *testing.T) {
		called := false
		stub := &stubProvider{
			name: "razorpay",
			cancelFn: func(data *provider.OrderData) (*provider.OrderData, error) {
				called = true
				return data, nil
			},
		}
		svc := newTestService(stub)

		_, err := svc.DeletePayment(context.Background(), NewPaymentSession("razorpay"))
		require.NoError(t, err)
		assert.True(t, called)
	})
}

func TestService_VerifyWebhookSignature(t *testing.T) {
	stub := &stubProvider{
		name: "razorpay",
		verifyFn: func(payload *provider.WebhookPayload, signature string) bool {
			return signature == "valid"
		},
	}
	svc := newTestService(stub)

	ok, err := svc.VerifyWebhookSignature("razorpay", &provider.WebhookPayload{}, "valid")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyWebhookSignature("razorpay", &provider.WebhookPayload{}, "bogus")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.VerifyWebhookSignature("adyen", &provider.WebhookPayload{}, "valid")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}
