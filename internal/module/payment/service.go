package payment

import (
	"context"

	"github.com/velocart/payments/internal/module/payment/provider"
	"github.com/velocart/payments/internal/shared/metrics"
	"go.uber.org/zap"
)

// Service orchestrates payment operations over the provider registry. It
// holds no session state of its own: sessions are supplied by the caller and
// handed back mutated.
type Service struct {
	registry *ProviderRegistry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService creates a new payment service.
func NewService(registry *ProviderRegistry, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		metrics:  m,
		logger:   logger,
	}
}

// record counts an operation outcome when metrics are wired.
func (s *Service) record(providerName, operation string, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordPaymentOperation(providerName, operation, status)
}

// InitiatePayment creates a gateway order for the session and links it.
func (s *Service) InitiatePayment(ctx context.Context, sess *PaymentSession, sc *provider.SessionContext) (*PaymentSession, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return nil, err
	}
	sc.SessionID = sess.SessionID
	if sc.Customer == nil {
		sc.Customer = sess.Customer
	}

	res, err := p.InitiatePayment(ctx, sc)
	s.record(p.Name(), "initiate", err)
	if err != nil {
		s.logger.Error("initiate payment failed", zap.String("session_id", sess.SessionID), zap.Error(err))
		sess.Status = provider.StatusError
		return sess, err
	}

	sess.applyResult(res)
	sess.Status = provider.StatusRequiresMore
	s.logger.Info("payment initiated",
		zap.String("session_id", sess.SessionID),
		zap.String("order_id", sess.OrderID()),
		zap.String("provider", p.Name()),
	)
	return sess, nil
}

// UpdatePayment supersedes the session's order on amount, currency or
// customer change.
func (s *Service) UpdatePayment(ctx context.Context, sess *PaymentSession, sc *provider.SessionContext) (*PaymentSession, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return nil, err
	}
	sc.SessionID = sess.SessionID
	if sc.Customer == nil {
		sc.Customer = sess.Customer
	}
	if sc.Data == nil {
		sc.Data = sess.Data
	}

	res, err := p.UpdatePayment(ctx, sc)
	s.record(p.Name(), "update", err)
	if err != nil {
		return sess, err
	}

	superseded := sess.OrderID()
	sess.applyResult(res)
	s.logger.Info("payment updated",
		zap.String("session_id", sess.SessionID),
		zap.String("superseded_order_id", superseded),
		zap.String("order_id", sess.OrderID()),
	)
	return sess, nil
}

// UpdatePaymentData patches free-form notes on the session's remote order.
func (s *Service) UpdatePaymentData(ctx context.Context, sess *PaymentSession, patch *provider.SessionPatch) (*PaymentSession, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return nil, err
	}
	if patch != nil && patch.Data == nil {
		patch.Data = sess.Data
	}

	data, err := p.UpdatePaymentData(ctx, sess.SessionID, patch)
	s.record(p.Name(), "update_data", err)
	if err != nil {
		return sess, err
	}
	sess.Data = data
	return sess, nil
}

// GetPaymentStatus polls the gateway and moves the session status.
func (s *Service) GetPaymentStatus(ctx context.Context, sess *PaymentSession) (provider.SessionStatus, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return provider.StatusError, err
	}

	status, err := p.GetPaymentStatus(ctx, sess.Data)
	s.record(p.Name(), "status", err)
	if err != nil {
		return provider.StatusError, err
	}
	sess.Status = status
	return status, nil
}

// CapturePayment captures all authorized payments on the session's order.
func (s *Service) CapturePayment(ctx context.Context, sess *PaymentSession) (*PaymentSession, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return nil, err
	}
	if sess.Data == nil {
		return nil, ErrSessionNotLinked
	}

	data, err := p.CapturePayment(ctx, sess.Data)
	s.record(p.Name(), "capture", err)
	if err != nil {
		return sess, err
	}
	sess.Data = data
	return sess, nil
}

// RefundPayment refunds amount against the session's order and appends the
// refund record.
func (s *Service) RefundPayment(ctx context.Context, sess *PaymentSession, amount int64) (*PaymentSession, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return nil, err
	}
	if sess.Data == nil {
		return nil, ErrSessionNotLinked
	}

	data, err := p.RefundPayment(ctx, sess.Data, amount)
	s.record(p.Name(), "refund", err)
	if err != nil {
		return sess, err
	}
	sess.Data = data
	return sess, nil
}

// CancelPayment cancels the session's payment where the gateway supports it.
func (s *Service) CancelPayment(ctx context.Context, sess *PaymentSession) (*PaymentSession, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return nil, err
	}

	data, err := p.CancelPayment(ctx, sess.Data)
	s.record(p.Name(), "cancel", err)
	if err != nil {
		return sess, err
	}
	sess.Data = data
	return sess, nil
}

// DeletePayment delegates to CancelPayment.
func (s *Service) DeletePayment(ctx context.Context, sess *PaymentSession) (*PaymentSession, error) {
	return s.CancelPayment(ctx, sess)
}

// RetrievePayment fetches the session's gateway order.
func (s *Service) RetrievePayment(ctx context.Context, sess *PaymentSession) (*provider.GatewayOrder, error) {
	p, err := s.registry.Get(sess.Provider)
	if err != nil {
		return nil, err
	}
	order, err := p.RetrievePayment(ctx, sess.Data)
	s.record(p.Name(), "retrieve", err)
	return order, err
}

// VerifyWebhookSignature verifies a webhook signature for the named provider.
func (s *Service) VerifyWebhookSignature(providerName string, payload *provider.WebhookPayload, signature string) (bool, error) {
	p, err := s.registry.Get(providerName)
	if err != nil {
		return false, err
	}
	return p.VerifyWebhookSignature(payload, signature), nil
}
