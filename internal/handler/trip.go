package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/middleware"
	"ridehail/internal/service"
)

// TripHandler handles HTTP requests for the trip lifecycle.
type TripHandler struct {
	tripService     *service.TripService
	matchingService *service.MatchingService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService, matchingService *service.MatchingService) *TripHandler {
	return &TripHandler{
		tripService:     tripService,
		matchingService: matchingService,
	}
}

// PlaceRequest is an addressed coordinate in a request body.
type PlaceRequest struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
}

func (p PlaceRequest) place() domain.Place {
	return domain.Place{Address: p.Address, Latitude: *p.Lat, Longitude: *p.Lng}
}

// PlaceResponse is an addressed coordinate in a response body.
type PlaceResponse struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func newPlaceResponse(p domain.Place) PlaceResponse {
	return PlaceResponse{Address: p.Address, Lat: p.Latitude, Lng: p.Longitude}
}

// CreateTripRequest is the HTTP request body for requesting a trip.
type CreateTripRequest struct {
	PassengerID  string       `json:"passenger_id"`
	Origin       PlaceRequest `json:"origin"`
	Destination  PlaceRequest `json:"destination"`
	VehicleClass string       `json:"vehicle_class" binding:"required"`
	Notes        string       `json:"notes"`
}

// AcceptTripRequest is the HTTP request body for accepting a trip.
type AcceptTripRequest struct {
	DriverID  string `json:"driver_id"`
	VehicleID string `json:"vehicle_id"`
}

// CompleteTripRequest is the HTTP request body for completing a trip.
type CompleteTripRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// CancelTripRequest is the HTTP request body for cancelling or failing a trip.
type CancelTripRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

// EstimateFareRequest is the HTTP request body for a fare quote.
type EstimateFareRequest struct {
	Origin       PlaceRequest `json:"origin"`
	Destination  PlaceRequest `json:"destination"`
	VehicleClass string       `json:"vehicle_class" binding:"required"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	ID                 string        `json:"id"`
	Code               string        `json:"code"`
	PassengerID        string        `json:"passenger_id"`
	DriverID           string        `json:"driver_id,omitempty"`
	VehicleID          string        `json:"vehicle_id,omitempty"`
	Origin             PlaceResponse `json:"origin"`
	Destination        PlaceResponse `json:"destination"`
	VehicleClass       string        `json:"vehicle_class"`
	Status             string        `json:"status"`
	Version            int64         `json:"version"`
	EstimatedPrice     float64       `json:"estimated_price"`
	FinalPrice         *float64      `json:"final_price,omitempty"`
	DistanceKm         *float64      `json:"distance_km,omitempty"`
	EstimatedDuration  int           `json:"estimated_duration"`
	ActualDuration     *int          `json:"actual_duration,omitempty"`
	PassengerNotes     string        `json:"passenger_notes,omitempty"`
	RequestedAt        string        `json:"requested_at"`
	AcceptedAt         string        `json:"accepted_at,omitempty"`
	DriverArrivedAt    string        `json:"driver_arrived_at,omitempty"`
	StartedAt          string        `json:"started_at,omitempty"`
	CompletedAt        string        `json:"completed_at,omitempty"`
	CancelledAt        string        `json:"cancelled_at,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CancelledBy        string        `json:"cancelled_by,omitempty"`
}

func newTripResponse(t *domain.Trip) TripResponse {
	return TripResponse{
		ID:                 t.ID,
		Code:               t.Code,
		PassengerID:        t.PassengerID,
		DriverID:           t.DriverID,
		VehicleID:          t.VehicleID,
		Origin:             newPlaceResponse(t.Origin),
		Destination:        newPlaceResponse(t.Destination),
		VehicleClass:       string(t.VehicleClass),
		Status:             string(t.Status),
		Version:            t.Version,
		EstimatedPrice:     t.EstimatedPrice,
		FinalPrice:         t.FinalPrice,
		DistanceKm:         t.DistanceKm,
		EstimatedDuration:  t.EstimatedDuration,
		ActualDuration:     t.ActualDuration,
		PassengerNotes:     t.PassengerNotes,
		RequestedAt:        formatTime(&t.RequestedAt),
		AcceptedAt:         formatTime(t.AcceptedAt),
		DriverArrivedAt:    formatTime(t.DriverArrivedAt),
		StartedAt:          formatTime(t.StartedAt),
		CompletedAt:        formatTime(t.CompletedAt),
		CancelledAt:        formatTime(t.CancelledAt),
		CancellationReason: t.CancellationReason,
		CancelledBy:        t.CancelledBy,
	}
}

// TripListResponse is a page of trips.
type TripListResponse struct {
	Trips    []TripResponse `json:"trips"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// DriverMatchResponse describes a driver able to serve a trip.
type DriverMatchResponse struct {
	DriverID     string   `json:"driver_id"`
	DriverName   string   `json:"driver_name"`
	DriverRating float64  `json:"driver_rating"`
	VehicleID    string   `json:"vehicle_id"`
	VehicleClass string   `json:"vehicle_class"`
	PlateNumber  string   `json:"plate_number"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
}

// TripPriceResponse is the current price of a trip.
type TripPriceResponse struct {
	TripID string  `json:"trip_id"`
	Price  float64 `json:"price"`
}

// FareEstimateResponse is a fare quote.
type FareEstimateResponse struct {
	VehicleClass      string  `json:"vehicle_class"`
	DistanceKm        float64 `json:"distance_km"`
	EstimatedDuration int     `json:"estimated_duration"`
	EstimatedPrice    float64 `json:"estimated_price"`
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	passengerID := req.PassengerID
	if passengerID == "" {
		passengerID = middleware.UserID(c)
	}

	trip, err := h.tripService.RequestTrip(c.Request.Context(), service.RequestTripRequest{
		PassengerID:  passengerID,
		Origin:       req.Origin.place(),
		Destination:  req.Destination.place(),
		VehicleClass: domain.VehicleClass(req.VehicleClass),
		Notes:        req.Notes,
		ActorID:      middleware.UserID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newTripResponse(trip))
}

// EstimateFare handles POST /v1/fares/estimate
func (h *TripHandler) EstimateFare(c *gin.Context) {
	var req EstimateFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	quote, err := h.tripService.EstimateFare(c.Request.Context(), req.Origin.place(), req.Destination.place(), domain.VehicleClass(req.VehicleClass))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, FareEstimateResponse{
		VehicleClass:      string(quote.VehicleClass),
		DistanceKm:        quote.DistanceKm,
		EstimatedDuration: quote.EstimatedDuration,
		EstimatedPrice:    quote.EstimatedPrice,
	})
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// GetTripByCode handles GET /v1/trips/code/:code
func (h *TripHandler) GetTripByCode(c *gin.Context) {
	trip, err := h.tripService.GetTripByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// ListTrips handles GET /v1/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	filter, ok := parseTripFilter(c)
	if !ok {
		return
	}

	trips, err := h.tripService.ListTrips(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	filter = filter.Normalize()
	response := TripListResponse{
		Trips:    make([]TripResponse, 0, len(trips)),
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	for _, trip := range trips {
		response.Trips = append(response.Trips, newTripResponse(trip))
	}

	respondJSON(c, http.StatusOK, response)
}

func parseTripFilter(c *gin.Context) (domain.TripFilter, bool) {
	filter := domain.TripFilter{
		Status:      domain.TripStatus(c.Query("status")),
		PassengerID: c.Query("passenger_id"),
		DriverID:    c.Query("driver_id"),
	}

	for name, dst := range map[string]*int{"page": &filter.Page, "page_size": &filter.PageSize} {
		if raw := c.Query(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				respondBadRequest(c, name+" must be an integer")
				return filter, false
			}
			*dst = n
		}
	}

	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := c.Query(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respondBadRequest(c, name+" must be an RFC 3339 timestamp")
				return filter, false
			}
			*dst = t
		}
	}

	return filter, true
}

// AcceptTrip handles POST /v1/trips/:id/accept
func (h *TripHandler) AcceptTrip(c *gin.Context) {
	var req AcceptTripRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondBadRequest(c, "invalid request body")
		return
	}

	driverID := req.DriverID
	if driverID == "" {
		driverID = middleware.UserID(c)
	}

	trip, err := h.tripService.AcceptTrip(c.Request.Context(), service.AcceptTripRequest{
		TripID:    c.Param("id"),
		DriverID:  driverID,
		VehicleID: req.VehicleID,
		ActorID:   middleware.UserID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// MarkArrived handles POST /v1/trips/:id/arrive
func (h *TripHandler) MarkArrived(c *gin.Context) {
	trip, err := h.tripService.MarkDriverArrived(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// StartTrip handles POST /v1/trips/:id/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	trip, err := h.tripService.StartTrip(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// CompleteTrip handles POST /v1/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	var req CompleteTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "lat and lng are required")
		return
	}

	trip, err := h.tripService.CompleteTrip(c.Request.Context(), service.CompleteTripRequest{
		TripID:    c.Param("id"),
		Latitude:  *req.Lat,
		Longitude: *req.Lng,
		ActorID:   middleware.UserID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	var req CancelTripRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondBadRequest(c, "invalid request body")
		return
	}

	cancelledBy := req.CancelledBy
	if cancelledBy == "" {
		cancelledBy = middleware.UserID(c)
	}

	trip, err := h.tripService.CancelTrip(c.Request.Context(), c.Param("id"), cancelledBy, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// FailTrip handles POST /v1/trips/:id/fail
func (h *TripHandler) FailTrip(c *gin.Context) {
	var req CancelTripRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondBadRequest(c, "invalid request body")
		return
	}

	trip, err := h.tripService.FailTrip(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}

// DeleteTrip handles DELETE /v1/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	if err := h.tripService.DeleteTrip(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetTripPrice handles GET /v1/trips/:id/price
func (h *TripHandler) GetTripPrice(c *gin.Context) {
	tripID := c.Param("id")

	price, err := h.tripService.CalculateTripPrice(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, TripPriceResponse{TripID: tripID, Price: price})
}

// FindDriver handles GET /v1/trips/:id/match
func (h *TripHandler) FindDriver(c *gin.Context) {
	match, err := h.matchingService.FindDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DriverMatchResponse{
		DriverID:     match.Driver.ID,
		DriverName:   match.Driver.Name,
		DriverRating: match.Driver.Rating,
		VehicleID:    match.Vehicle.ID,
		VehicleClass: string(match.Vehicle.Class),
		PlateNumber:  match.Vehicle.PlateNumber,
		DistanceKm:   match.DistanceKm,
	})
}

// AutoAssign handles POST /v1/trips/:id/auto-assign
func (h *TripHandler) AutoAssign(c *gin.Context) {
	trip, err := h.matchingService.AutoAssign(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newTripResponse(trip))
}
