package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/service"
)

// PaymentHandler handles HTTP requests for trip payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RecordPaymentRequest is the HTTP request body for recording a payment.
type RecordPaymentRequest struct {
	Amount    float64 `json:"amount" binding:"required"`
	Method    string  `json:"method" binding:"required"`
	Reference string  `json:"reference"`
}

// UpdatePaymentRequest is the HTTP request body for changing the paid flag.
type UpdatePaymentRequest struct {
	IsPaid    *bool  `json:"is_paid" binding:"required"`
	Reference string `json:"reference"`
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID        string  `json:"id"`
	TripID    string  `json:"trip_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference string  `json:"reference,omitempty"`
	IsPaid    bool    `json:"is_paid"`
	PaidAt    string  `json:"paid_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func newPaymentResponse(p *domain.TripPayment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		TripID:    p.TripID,
		Amount:    p.Amount,
		Method:    string(p.Method),
		Reference: p.Reference,
		IsPaid:    p.IsPaid,
		PaidAt:    formatTime(p.PaidAt),
		CreatedAt: formatTime(&p.CreatedAt),
	}
}

// RecordPayment handles POST /v1/trips/:id/payment
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "amount and method are required")
		return
	}

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), service.RecordPaymentRequest{
		TripID:    c.Param("id"),
		Amount:    req.Amount,
		Method:    domain.PaymentMethod(strings.ToUpper(req.Method)),
		Reference: req.Reference,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newPaymentResponse(payment))
}

// GetPayment handles GET /v1/trips/:id/payment
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newPaymentResponse(payment))
}

// UpdatePayment handles PATCH /v1/trips/:id/payment
func (h *PaymentHandler) UpdatePayment(c *gin.Context) {
	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "is_paid is required")
		return
	}

	payment, err := h.paymentService.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), *req.IsPaid, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newPaymentResponse(payment))
}
