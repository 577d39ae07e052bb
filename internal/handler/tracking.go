package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/service"
)

// TrackingHandler handles HTTP requests for trip GPS pings.
type TrackingHandler struct {
	trackingService *service.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(trackingService *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{trackingService: trackingService}
}

// AddLocationRequest is the HTTP request body for a trip GPS ping.
type AddLocationRequest struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Speed   *float64 `json:"speed"`
	Heading *float64 `json:"heading"`
}

// LocationResponse is one recorded ping.
type LocationResponse struct {
	ID        string   `json:"id"`
	TripID    string   `json:"trip_id"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp string   `json:"timestamp"`
}

func newLocationResponse(l *domain.TripLocation) LocationResponse {
	return LocationResponse{
		ID:        l.ID,
		TripID:    l.TripID,
		Lat:       l.Latitude,
		Lng:       l.Longitude,
		Speed:     l.Speed,
		Heading:   l.Heading,
		Timestamp: formatTime(&l.Timestamp),
	}
}

// AddLocation handles POST /v1/trips/:id/locations
func (h *TrackingHandler) AddLocation(c *gin.Context) {
	var req AddLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "lat and lng are required")
		return
	}

	loc, err := h.trackingService.AddTripLocation(c.Request.Context(), service.AddLocationRequest{
		TripID:    c.Param("id"),
		Latitude:  *req.Lat,
		Longitude: *req.Lng,
		Speed:     req.Speed,
		Heading:   req.Heading,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newLocationResponse(loc))
}

// ListLocations handles GET /v1/trips/:id/locations
func (h *TrackingHandler) ListLocations(c *gin.Context) {
	locs, err := h.trackingService.ListTripLocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]LocationResponse, 0, len(locs))
	for _, l := range locs {
		response = append(response, newLocationResponse(l))
	}
	respondJSON(c, http.StatusOK, response)
}
