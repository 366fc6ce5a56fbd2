package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/velocart/payments/internal/module/payment/provider"
)

// Handler handles HTTP requests for payments.
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("/initiate", h.InitiatePayment)
		payments.POST("/update", h.UpdatePayment)
		payments.POST("/data", h.UpdatePaymentData)
		payments.POST("/status", h.GetPaymentStatus)
		payments.POST("/capture", h.CapturePayment)
		payments.POST("/refund", h.RefundPayment)
		payments.POST("/cancel", h.CancelPayment)
		payments.POST("/retrieve", h.RetrievePayment)
	}
}

// InitiatePayment creates a gateway order for a session.
func (h *Handler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.service.InitiatePayment(c.Request.Context(), req.Session, req.Context)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// UpdatePayment re-initiates a session's order with new details.
func (h *Handler) UpdatePayment(c *gin.Context) {
	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.service.UpdatePayment(c.Request.Context(), req.Session, req.Context)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// UpdatePaymentData patches notes on a session's order.
func (h *Handler) UpdatePaymentData(c *gin.Context) {
	var req UpdatePaymentDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.service.UpdatePaymentData(c.Request.Context(), req.Session, req.Patch)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// GetPaymentStatus polls the gateway for a session's status.
func (h *Handler) GetPaymentStatus(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.service.GetPaymentStatus(c.Request.Context(), req.Session)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Status: status, Session: req.Session})
}

// CapturePayment captures all authorized payments on a session's order.
func (h *Handler) CapturePayment(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.service.CapturePayment(c.Request.Context(), req.Session)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// RefundPayment refunds an amount against a session's order.
func (h *Handler) RefundPayment(c *gin.Context) {
	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.service.RefundPayment(c.Request.Context(), req.Session, req.Amount)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// CancelPayment cancels a session's payment where the gateway supports it.
func (h *Handler) CancelPayment(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.service.CancelPayment(c.Request.Context(), req.Session)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// RetrievePayment fetches a session's gateway order.
func (h *Handler) RetrievePayment(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.RetrievePayment(c.Request.Context(), req.Session)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// handlePaymentError maps provider error codes to HTTP statuses.
func handlePaymentError(c *gin.Context, err error) {
	if errors.Is(err, ErrProviderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, ErrSessionNotLinked) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		body := gin.H{"error": pe.Message, "code": pe.Code}
		if pe.Detail != "" {
			body["detail"] = pe.Detail
		}
		switch pe.Code {
		case provider.CodeValidationError, provider.CodeStateError:
			c.JSON(http.StatusBadRequest, body)
		case provider.CodeNotFound:
			c.JSON(http.StatusNotFound, body)
		case provider.CodeUnsupportedOperation:
			c.JSON(http.StatusMethodNotAllowed, body)
		default:
			c.JSON(http.StatusBadGateway, body)
		}
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
