package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/service"
)

// PricingHandler handles HTTP requests for pricing rules.
type PricingHandler struct {
	pricingService *service.PricingService
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(pricingService *service.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

// PricingRuleRequest is the HTTP request body for creating or updating a rule.
type PricingRuleRequest struct {
	VehicleClass   string  `json:"vehicle_class" binding:"required"`
	BasePrice      float64 `json:"base_price"`
	PricePerKm     float64 `json:"price_per_km"`
	PricePerMinute float64 `json:"price_per_minute"`
	MinimumPrice   float64 `json:"minimum_price"`
}

func (r PricingRuleRequest) toService() service.PricingRuleRequest {
	return service.PricingRuleRequest{
		VehicleClass:   domain.VehicleClass(strings.ToUpper(r.VehicleClass)),
		BasePrice:      r.BasePrice,
		PricePerKm:     r.PricePerKm,
		PricePerMinute: r.PricePerMinute,
		MinimumPrice:   r.MinimumPrice,
	}
}

// PricingRuleResponse is the HTTP response for pricing rule operations.
type PricingRuleResponse struct {
	ID             string  `json:"id"`
	VehicleClass   string  `json:"vehicle_class"`
	BasePrice      float64 `json:"base_price"`
	PricePerKm     float64 `json:"price_per_km"`
	PricePerMinute float64 `json:"price_per_minute"`
	MinimumPrice   float64 `json:"minimum_price"`
	IsActive       bool    `json:"is_active"`
	UpdatedAt      string  `json:"updated_at"`
}

func newPricingRuleResponse(r *domain.PricingRule) PricingRuleResponse {
	return PricingRuleResponse{
		ID:             r.ID,
		VehicleClass:   string(r.VehicleClass),
		BasePrice:      r.BasePrice,
		PricePerKm:     r.PricePerKm,
		PricePerMinute: r.PricePerMinute,
		MinimumPrice:   r.MinimumPrice,
		IsActive:       r.IsActive,
		UpdatedAt:      formatTime(&r.UpdatedAt),
	}
}

// CreateRule handles POST /v1/pricing-rules
func (h *PricingHandler) CreateRule(c *gin.Context) {
	var req PricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	rule, err := h.pricingService.CreateRule(c.Request.Context(), req.toService())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newPricingRuleResponse(rule))
}

// UpdateRule handles PUT /v1/pricing-rules/:id
func (h *PricingHandler) UpdateRule(c *gin.Context) {
	var req PricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	rule, err := h.pricingService.UpdateRule(c.Request.Context(), c.Param("id"), req.toService())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newPricingRuleResponse(rule))
}

// DeactivateRule handles POST /v1/pricing-rules/:id/deactivate
func (h *PricingHandler) DeactivateRule(c *gin.Context) {
	rule, err := h.pricingService.DeactivateRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newPricingRuleResponse(rule))
}

// ListRules handles GET /v1/pricing-rules
func (h *PricingHandler) ListRules(c *gin.Context) {
	rules, err := h.pricingService.ListRules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PricingRuleResponse, 0, len(rules))
	for _, r := range rules {
		response = append(response, newPricingRuleResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}
