package di

import (
	"time"

	"github.com/intercity-tours/booking/internal/access"
	"github.com/intercity-tours/booking/internal/handler"
	"github.com/intercity-tours/booking/internal/notify"
	"github.com/intercity-tours/booking/internal/payment"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/internal/service"
	"github.com/intercity-tours/booking/pkg/database"
	pkgredis "github.com/intercity-tours/booking/pkg/redis"
)

// Container holds all dependencies for the booking service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *pkgredis.Client
	Store repository.Store

	// Collaborators
	Notifier notify.Notifier
	Gateway  payment.Gateway
	Issuer   *access.TokenIssuer
	Revoker  access.Revoker
	Mirror   service.AvailabilityMirror

	// Services
	BookingService      service.BookingService
	ModificationService service.ModificationService
	PurchaseService     service.PurchaseService
	TourService         service.TourService
	AvailabilityService *service.AvailabilityService

	// Handlers
	HealthHandler       *handler.HealthHandler
	BookingHandler      *handler.BookingHandler
	ModificationHandler *handler.ModificationHandler
	PurchaseHandler     *handler.PurchaseHandler
	TourHandler         *handler.TourHandler
	AdminHandler        *handler.AdminHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *pkgredis.Client
	Store          repository.Store
	Notifier       notify.Notifier
	Gateway        payment.Gateway
	Issuer         *access.TokenIssuer
	Revoker        access.Revoker
	Mirror         service.AvailabilityMirror
	ReservationTTL time.Duration
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:       cfg.DB,
		Redis:    cfg.Redis,
		Store:    cfg.Store,
		Notifier: cfg.Notifier,
		Gateway:  cfg.Gateway,
		Issuer:   cfg.Issuer,
		Revoker:  cfg.Revoker,
		Mirror:   cfg.Mirror,
	}

	// Initialize services
	c.BookingService = service.NewBookingService(c.Store, c.Notifier, c.Issuer, c.Mirror, &service.BookingServiceConfig{
		ReservationTTL: cfg.ReservationTTL,
	})
	c.ModificationService = service.NewModificationService(c.Store, c.Notifier, c.Mirror, c.Revoker, nil)
	c.PurchaseService = service.NewPurchaseService(c.Store, c.Gateway, c.Notifier, c.Mirror, c.Revoker, nil)
	c.TourService = service.NewTourService(c.Store, c.Mirror, nil)
	c.AvailabilityService = service.NewAvailabilityService(c.Store, c.Mirror)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.BookingHandler = handler.NewBookingHandler(c.BookingService)
	c.ModificationHandler = handler.NewModificationHandler(c.ModificationService)
	c.PurchaseHandler = handler.NewPurchaseHandler(c.PurchaseService)
	c.TourHandler = handler.NewTourHandler(c.TourService, c.AvailabilityService)
	c.AdminHandler = handler.NewAdminHandler(c.AvailabilityService)

	return c
}
