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

// DepartureWorkerConfig contains configuration for the departure worker
type DepartureWorkerConfig struct {
	// ScanInterval is the interval between sweeps
	ScanInterval time.Duration
	// BatchSize caps the tours closed per sweep
	BatchSize int
	// Tick overrides the ticker: when set, a sweep runs on every
	// receive and ScanInterval is ignored. Tests drive it directly.
	Tick <-chan time.Time
}

// DefaultDepartureWorkerConfig returns default configuration
func DefaultDepartureWorkerConfig() *DepartureWorkerConfig {
	return &DepartureWorkerConfig{
		ScanInterval: time.Minute,
		BatchSize:    50,
	}
}

// DepartureWorker closes tours whose departure time has passed, taking
// them off sale.
type DepartureWorker struct {
	tours   service.TourService
	config  *DepartureWorkerConfig
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	totalClosed  int64
	lastScanTime time.Time
}

// NewDepartureWorker creates a new departure worker
func NewDepartureWorker(tours service.TourService, config *DepartureWorkerConfig) *DepartureWorker {
	if config == nil {
		config = DefaultDepartureWorkerConfig()
	}
	return &DepartureWorker{
		tours:  tours,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start starts the departure worker
func (w *DepartureWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("departure worker already running")
	}
	w.running = true
	w.mu.Unlock()

	logger.Get().Info("Starting departure worker",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops the departure worker
func (w *DepartureWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	logger.Get().Info("Departure worker stopped")
}

func (w *DepartureWorker) loop(ctx context.Context) {
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

// sweep closes one batch. Errors are logged and retried next tick.
func (w *DepartureWorker) sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.mu.Unlock()

	closed, err := w.tours.CloseDepartedTours(ctx, w.config.BatchSize)
	if err != nil {
		logger.Get().Error("Departure sweep failed", zap.Error(err))
		return
	}
	if closed == 0 {
		return
	}

	w.mu.Lock()
	w.totalClosed += int64(closed)
	w.mu.Unlock()

	logger.Get().Info("Closed departed tours", zap.Int("count", closed))
}

// Stats returns worker statistics
func (w *DepartureWorker) Stats() DepartureWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return DepartureWorkerStats{
		IsRunning:    w.running,
		TotalClosed:  w.totalClosed,
		LastScanTime: w.lastScanTime,
	}
}

// DepartureWorkerStats contains worker statistics
type DepartureWorkerStats struct {
	IsRunning    bool      `json:"is_running"`
	TotalClosed  int64     `json:"total_closed"`
	LastScanTime time.Time `json:"last_scan_time"`
}
