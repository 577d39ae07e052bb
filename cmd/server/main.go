package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridehail/internal/app"
	"ridehail/internal/config"
	"ridehail/internal/events"
	"ridehail/internal/fare"
	"ridehail/internal/handler"
	"ridehail/internal/logging"
	"ridehail/internal/realtime"
	internalRedis "ridehail/internal/redis"
	"ridehail/internal/repository/postgres"
	"ridehail/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("failed to apply schema")
		}
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout)
		log.WithField("topic", cfg.Kafka.Topic).Info("publishing trip events to Kafka")
	}
	defer publisher.Close()

	server := wireServer(db, redisClient, publisher, nrApp, cfg, log)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher events.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log *logrus.Logger,
) *http.Server {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	repos := postgres.NewRepositories(db)
	tx := postgres.NewTransactor(db)

	// Initialize services.
	timeout := cfg.Trip.RequestTimeout
	registry := realtime.NewRegistry(log)
	notificationService := service.NewNotificationService(registry, publisher, log)
	pricingService := service.NewPricingService(tx, repos.Pricing, cacheStore, timeout, log)

	var tripOpts []service.TripOption
	if cfg.Trip.AcceptLockEnabled {
		tripOpts = append(tripOpts, service.WithLockStore(lockStore))
	}
	tripService := service.NewTripService(
		tx,
		repos,
		fare.NewEngine(pricingService),
		notificationService,
		service.TripConfig{
			RequestTimeout:  timeout,
			AverageSpeedKmh: cfg.Trip.AverageSpeedKmh,
			AcceptLockTTL:   cfg.Trip.AcceptLockTTL,
		},
		log,
		tripOpts...,
	)
	trackingService := service.NewTrackingService(tx, repos, locationStore, notificationService, timeout, log)
	ratingService := service.NewRatingService(tx, repos, notificationService, timeout, log)
	paymentService := service.NewPaymentService(tx, repos, notificationService, timeout, log)
	matchingService := service.NewMatchingService(repos, locationStore, tripService, service.MatchingConfig{
		RadiusKm: cfg.Trip.MatchRadiusKm,
		Limit:    cfg.Trip.MatchLimit,
		Timeout:  timeout,
	}, log)
	driverService := service.NewDriverService(locationStore, repos.Drivers, timeout, log)

	// Initialize handlers.
	var realtimeHandler *handler.RealtimeHandler
	if cfg.Realtime.Enabled {
		realtimeHandler = handler.NewRealtimeHandler(registry, log)
	}

	router := app.NewRouter(app.RouterDeps{
		TripHandler:     handler.NewTripHandler(tripService, matchingService),
		TrackingHandler: handler.NewTrackingHandler(trackingService),
		RatingHandler:   handler.NewRatingHandler(ratingService),
		PaymentHandler:  handler.NewPaymentHandler(paymentService),
		PricingHandler:  handler.NewPricingHandler(pricingService),
		DriverHandler:   handler.NewDriverHandler(driverService),
		RealtimeHandler: realtimeHandler,
		ResponseCache:   cacheStore,
		NewRelicApp:     nrApp,
		Logger:          log,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
