package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/velocart/payments/internal/module/payment/provider"
)

// WebhookHandler handles gateway webhook deliveries.
type WebhookHandler struct {
	service *Service
	logger  *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service *Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/razorpay", h.HandleRazorpayWebhook)
	r.POST("/stripe", h.HandleStripeWebhook)
}

// razorpayEvent is the envelope Razorpay posts to webhook endpoints.
type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// HandleRazorpayWebhook verifies and acknowledges a Razorpay event. Signature
// verification needs the raw body, so the event is decoded after.
func (h *WebhookHandler) HandleRazorpayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	var event razorpayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("failed to parse webhook event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}

	orderID := event.Payload.Payment.Entity.OrderID
	if orderID == "" {
		orderID = event.Payload.Order.Entity.ID
	}
	payload := &provider.WebhookPayload{
		OrderID:   orderID,
		PaymentID: event.Payload.Payment.Entity.ID,
		Raw:       body,
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	ok, err := h.service.VerifyWebhookSignature(provider.ProviderNameRazorpay, payload, signature)
	if err != nil {
		h.logger.Error("webhook verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if !ok {
		h.logger.Warn("rejecting webhook",
			zap.String("event", event.Event),
			zap.String("order_id", orderID),
			zap.Error(ErrInvalidWebhookSignature),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	h.logger.Info("webhook verified",
		zap.String("event", event.Event),
		zap.String("order_id", orderID),
		zap.String("payment_id", payload.PaymentID),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleStripeWebhook verifies and acknowledges a Stripe event.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	payload := &provider.WebhookPayload{Raw: body}
	signature := c.GetHeader("Stripe-Signature")
	ok, err := h.service.VerifyWebhookSignature(provider.ProviderNameStripe, payload, signature)
	if err != nil {
		h.logger.Error("webhook verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if !ok {
		h.logger.Warn("rejecting stripe webhook", zap.Error(ErrInvalidWebhookSignature))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
