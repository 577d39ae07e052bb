package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ridehail/internal/handler"
	"ridehail/internal/logging"
	"ridehail/internal/middleware"
	"ridehail/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler     *handler.TripHandler
	TrackingHandler *handler.TrackingHandler
	RatingHandler   *handler.RatingHandler
	PaymentHandler  *handler.PaymentHandler
	PricingHandler  *handler.PricingHandler
	DriverHandler   *handler.DriverHandler
	RealtimeHandler *handler.RealtimeHandler // nil disables /v1/ws
	ResponseCache   redis.ResponseCacheInterface // nil disables idempotent replay
	NewRelicApp     *newrelic.Application
	Logger          logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Identity())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	// Health check and metrics.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(middleware.IdempotencyMiddleware(deps.ResponseCache, deps.Logger))
	{
		v1.POST("/fares/estimate", deps.TripHandler.EstimateFare)

		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.CreateTrip)
			trips.GET("", deps.TripHandler.ListTrips)
			trips.GET("/code/:code", deps.TripHandler.GetTripByCode)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.DELETE("/:id", deps.TripHandler.DeleteTrip)
			trips.POST("/:id/accept", deps.TripHandler.AcceptTrip)
			trips.POST("/:id/arrive", deps.TripHandler.MarkArrived)
			trips.POST("/:id/start", deps.TripHandler.StartTrip)
			trips.POST("/:id/complete", deps.TripHandler.CompleteTrip)
			trips.POST("/:id/cancel", deps.TripHandler.CancelTrip)
			trips.POST("/:id/fail", deps.TripHandler.FailTrip)
			trips.GET("/:id/price", deps.TripHandler.GetTripPrice)
			trips.GET("/:id/match", deps.TripHandler.FindDriver)
			trips.POST("/:id/auto-assign", deps.TripHandler.AutoAssign)

			trips.POST("/:id/locations", deps.TrackingHandler.AddLocation)
			trips.GET("/:id/locations", deps.TrackingHandler.ListLocations)

			trips.POST("/:id/rating", deps.RatingHandler.SubmitRating)
			trips.GET("/:id/rating", deps.RatingHandler.GetRating)

			trips.POST("/:id/payment", deps.PaymentHandler.RecordPayment)
			trips.GET("/:id/payment", deps.PaymentHandler.GetPayment)
			trips.PATCH("/:id/payment", deps.PaymentHandler.UpdatePayment)
		}

		// Pricing rule routes.
		rules := v1.Group("/pricing-rules")
		{
			rules.POST("", deps.PricingHandler.CreateRule)
			rules.GET("", deps.PricingHandler.ListRules)
			rules.PUT("/:id", deps.PricingHandler.UpdateRule)
			rules.POST("/:id/deactivate", deps.PricingHandler.DeactivateRule)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		}

		if deps.RealtimeHandler != nil {
			v1.GET("/ws", deps.RealtimeHandler.Connect)
		}
	}

	return router
}
