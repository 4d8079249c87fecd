package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/intercity-tours/booking/internal/access"
	"github.com/intercity-tours/booking/internal/cache"
	"github.com/intercity-tours/booking/internal/di"
	"github.com/intercity-tours/booking/internal/handler"
	"github.com/intercity-tours/booking/internal/metrics"
	"github.com/intercity-tours/booking/internal/notify"
	"github.com/intercity-tours/booking/internal/payment"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/internal/worker"
	"github.com/intercity-tours/booking/pkg/config"
	"github.com/intercity-tours/booking/pkg/database"
	"github.com/intercity-tours/booking/pkg/logger"
	"github.com/intercity-tours/booking/pkg/middleware"
	pkgredis "github.com/intercity-tours/booking/pkg/redis"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.App.Name,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting booking service...")

	ctx := context.Background()

	// Tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Fatal(fmt.Sprintf("Telemetry init failed: %v", err))
	}
	defer telemetry.Shutdown(ctx)

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	// Database
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  10 * time.Second,
		MaxRetries:      3,
		RetryInterval:   2 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// Redis: availability mirror, token revocation, idempotency
	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Kafka notifier, optional
	var notifier notify.Notifier = notify.NoOpNotifier{}
	if cfg.Kafka.Enabled {
		kafkaNotifier, err := notify.NewKafkaNotifier(ctx, &notify.KafkaNotifierConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, events disabled: %v", err))
		} else {
			defer kafkaNotifier.Close()
			notifier = kafkaNotifier
			appLog.Info("Kafka notifier connected")
		}
	}

	// Payment gateway, optional
	var gateway payment.Gateway = payment.NoOpGateway{}
	if cfg.Stripe.Enabled {
		stripeGateway, err := payment.NewStripeGateway(&payment.StripeGatewayConfig{
			SecretKey: cfg.Stripe.SecretKey,
			Currency:  cfg.Stripe.Currency,
		})
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Stripe init failed: %v", err))
		}
		gateway = stripeGateway
		appLog.Info("Stripe gateway configured")
	}

	issuer, err := access.NewTokenIssuer(access.TokenIssuerConfig{
		Secret:      cfg.TicketToken.Secret,
		TTL:         cfg.TicketToken.TTL,
		DeepLinkURL: cfg.TicketToken.DeepLinkURL,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Token issuer init failed: %v", err))
	}
	revoker := access.NewRedisRevoker(redisClient, cfg.TicketToken.TTL)
	mirror := cache.NewRedisAvailabilityMirror(redisClient, cfg.Booking.MirrorTTL)

	store := repository.NewPostgresStore(db.Pool())

	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		Store:          store,
		Notifier:       notifier,
		Gateway:        gateway,
		Issuer:         issuer,
		Revoker:        revoker,
		Mirror:         mirror,
		ReservationTTL: cfg.Booking.ReservationTTL,
	})

	// Background sweepers run in-process
	expiryWorker := worker.NewExpiryWorker(container.PurchaseService, &worker.ExpiryWorkerConfig{
		ScanInterval: cfg.Booking.ExpiryScanInterval,
		BatchSize:    cfg.Booking.ExpiryBatchSize,
	})
	if err := expiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Expiry worker start failed: %v", err))
	}
	defer expiryWorker.Stop()

	departureWorker := worker.NewDepartureWorker(container.TourService, &worker.DepartureWorkerConfig{
		ScanInterval: cfg.Booking.DepartureScanInterval,
		BatchSize:    cfg.Booking.DepartureBatchSize,
	})
	if err := departureWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Departure worker start failed: %v", err))
	}
	defer departureWorker.Stop()

	router := buildRouter(cfg, container, issuer, revoker, redisClient)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Booking service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

func buildRouter(cfg *config.Config, container *di.Container, issuer *access.TokenIssuer, revoker access.Revoker, redisClient *pkgredis.Client) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		gin.DisableConsoleColor()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.App.Name))
	}
	router.Use(handler.Metrics())

	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	idempotencyConfig := middleware.DefaultIdempotencyConfig(redisClient.Client())
	idempotencyConfig.SkipPaths = []string{"/health", "/ready"}
	idempotent := middleware.IdempotencyMiddleware(idempotencyConfig)

	v1 := router.Group("/api/v1")
	v1.Use(handler.TicketAuth(issuer, revoker))
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		tours := v1.Group("/tours")
		{
			tours.POST("", idempotent, container.TourHandler.CreateTour)
			tours.GET("/:id", container.TourHandler.GetTour)
			tours.GET("/:id/availability", container.TourHandler.FreeSeats)
		}

		bookings := v1.Group("/bookings")
		{
			bookings.POST("/quote", container.BookingHandler.Quote)
			bookings.POST("", idempotent, container.BookingHandler.Book)
		}

		modifications := v1.Group("/modifications")
		{
			modifications.POST("/reschedule/plan", container.ModificationHandler.PlanReschedule)
			modifications.POST("/reschedule/commit", idempotent, container.ModificationHandler.CommitReschedule)
			modifications.POST("/baggage/plan", container.ModificationHandler.PlanBaggage)
			modifications.POST("/baggage/commit", idempotent, container.ModificationHandler.CommitBaggage)
			modifications.POST("/cancel/plan", container.ModificationHandler.PlanCancel)
			modifications.POST("/cancel/commit", idempotent, container.ModificationHandler.CommitCancel)
		}

		purchases := v1.Group("/purchases")
		{
			purchases.GET("/:id", container.PurchaseHandler.GetPurchase)
			purchases.POST("/:id/pay", idempotent, container.PurchaseHandler.Pay)
			purchases.POST("/:id/refund", idempotent, container.PurchaseHandler.Refund)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/resync-availability", container.AdminHandler.ResyncAvailability)
			admin.GET("/tours/:id/mirror-status", container.AdminHandler.MirrorStatus)
		}
	}

	return router
}
