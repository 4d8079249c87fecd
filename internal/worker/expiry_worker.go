package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/intercity-tours/booking/internal/service"
	"github.com/intercity-tours/booking/pkg/logger"
)

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// ScanInterval is the interval between sweeps
	ScanInterval time.Duration
	// BatchSize caps the purchases expired per sweep
	BatchSize int
	// Tick overrides the ticker: when set, a sweep runs on every
	// receive and ScanInterval is ignored. Tests drive it directly.
	Tick <-chan time.Time
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: 15 * time.Second,
		BatchSize:    100,
	}
}

// ExpiryWorker sweeps reserved purchases past their payment deadline.
// Each sweep runs in one transaction, so a crashed sweep leaves
// nothing half-expired.
type ExpiryWorker struct {
	purchases service.PurchaseService
	config    *ExpiryWorkerConfig
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool

	totalExpired int64
	lastScanTime time.Time
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(purchases service.PurchaseService, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	return &ExpiryWorker{
		purchases: purchases,
		config:    config,
		stopCh:    make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	logger.Get().Info("Starting expiry worker",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops the expiry worker
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	logger.Get().Info("Expiry worker stopped")
}

func (w *ExpiryWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	tick := w.config.Tick
	if tick == nil {
		ticker := time.NewTicker(w.config.ScanInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-tick:
			w.sweep(ctx)
		}
	}
}

// sweep expires one batch. Errors are logged and retried next tick.
func (w *ExpiryWorker) sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.mu.Unlock()

	expired, err := w.purchases.ExpireReservations(ctx, w.config.BatchSize)
	if err != nil {
		logger.Get().Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if expired == 0 {
		return
	}

	w.mu.Lock()
	w.totalExpired += int64(expired)
	w.mu.Unlock()

	logger.Get().Info("Expired reserved purchases", zap.Int("count", expired))
}

// Stats returns worker statistics
func (w *ExpiryWorker) Stats() ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ExpiryWorkerStats{
		IsRunning:    w.running,
		TotalExpired: w.totalExpired,
		LastScanTime: w.lastScanTime,
	}
}

// ExpiryWorkerStats contains worker statistics
type ExpiryWorkerStats struct {
	IsRunning    bool      `json:"is_running"`
	TotalExpired int64     `json:"total_expired"`
	LastScanTime time.Time `json:"last_scan_time"`
}
