package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/middleware"
	"ridehail/internal/realtime"
	"ridehail/internal/service"
)

// RatingHandler handles HTTP requests for trip ratings.
type RatingHandler struct {
	ratingService *service.RatingService
}

// NewRatingHandler creates a new RatingHandler.
func NewRatingHandler(ratingService *service.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// SubmitRatingRequest is the HTTP request body for rating a trip. Role
// defaults to the caller's role.
type SubmitRatingRequest struct {
	Role    string `json:"role"`
	Score   int    `json:"score" binding:"required"`
	Comment string `json:"comment"`
}

// RatingResponse is the HTTP response for rating operations.
type RatingResponse struct {
	TripID           string `json:"trip_id"`
	PassengerRating  *int   `json:"passenger_rating,omitempty"`
	PassengerComment string `json:"passenger_comment,omitempty"`
	DriverRating     *int   `json:"driver_rating,omitempty"`
	DriverComment    string `json:"driver_comment,omitempty"`
	UpdatedAt        string `json:"updated_at"`
}

func newRatingResponse(r *domain.TripRating) RatingResponse {
	return RatingResponse{
		TripID:           r.TripID,
		PassengerRating:  r.PassengerRating,
		PassengerComment: r.PassengerComment,
		DriverRating:     r.DriverRating,
		DriverComment:    r.DriverComment,
		UpdatedAt:        formatTime(&r.UpdatedAt),
	}
}

// SubmitRating handles POST /v1/trips/:id/rating
func (h *RatingHandler) SubmitRating(c *gin.Context) {
	var req SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "score is required")
		return
	}

	role := domain.RatingRole(strings.ToUpper(req.Role))
	if role == "" {
		role = ratingRoleOf(middleware.Role(c))
	}

	rating, err := h.ratingService.SubmitRating(c.Request.Context(), service.SubmitRatingRequest{
		TripID:  c.Param("id"),
		Role:    role,
		Score:   req.Score,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRatingResponse(rating))
}

// GetRating handles GET /v1/trips/:id/rating
func (h *RatingHandler) GetRating(c *gin.Context) {
	rating, err := h.ratingService.GetRating(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRatingResponse(rating))
}

func ratingRoleOf(role realtime.Role) domain.RatingRole {
	switch role {
	case realtime.RolePassenger:
		return domain.RatingRolePassenger
	case realtime.RoleDriver:
		return domain.RatingRoleDriver
	}
	return ""
}
