package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intercity-tours/booking/internal/access"
	"github.com/intercity-tours/booking/internal/cache"
	"github.com/intercity-tours/booking/internal/notify"
	"github.com/intercity-tours/booking/internal/payment"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/internal/service"
	"github.com/intercity-tours/booking/internal/worker"
	"github.com/intercity-tours/booking/pkg/config"
	"github.com/intercity-tours/booking/pkg/database"
	"github.com/intercity-tours/booking/pkg/logger"
	pkgredis "github.com/intercity-tours/booking/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "expiry-worker",
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting expiry worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      20,
		MinIdleConns:  5,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	var notifier notify.Notifier = notify.NoOpNotifier{}
	if cfg.Kafka.Enabled {
		kafkaNotifier, err := notify.NewKafkaNotifier(ctx, &notify.KafkaNotifierConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: "expiry-worker",
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, events disabled: %v", err))
		} else {
			defer kafkaNotifier.Close()
			notifier = kafkaNotifier
			appLog.Info("Kafka notifier connected")
		}
	}

	store := repository.NewPostgresStore(db.Pool())
	mirror := cache.NewRedisAvailabilityMirror(redisClient, cfg.Booking.MirrorTTL)
	revoker := access.NewRedisRevoker(redisClient, cfg.TicketToken.TTL)

	purchases := service.NewPurchaseService(store, payment.NoOpGateway{}, notifier, mirror, revoker, nil)

	expiryWorker := worker.NewExpiryWorker(purchases, &worker.ExpiryWorkerConfig{
		ScanInterval: cfg.Booking.ExpiryScanInterval,
		BatchSize:    cfg.Booking.ExpiryBatchSize,
	})
	if err := expiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start worker: %v", err))
	}

	appLog.Info("Expiry worker started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down worker...")
	expiryWorker.Stop()
	cancel()

	appLog.Info("Worker exited gracefully")
}
