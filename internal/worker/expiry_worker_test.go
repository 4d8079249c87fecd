package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intercity-tours/booking/internal/dto"
)

// stubPurchaseService counts sweep calls.
type stubPurchaseService struct {
	expired int64
	perCall int
	err     error
}

func (s *stubPurchaseService) GetPurchase(ctx context.Context, purchaseID string) (*dto.PurchaseResponse, error) {
	return nil, nil
}

func (s *stubPurchaseService) Pay(ctx context.Context, req *dto.PayRequest) (*dto.ModificationResult, error) {
	return nil, nil
}

func (s *stubPurchaseService) Refund(ctx context.Context, req *dto.RefundRequest) (*dto.ModificationResult, error) {
	return nil, nil
}

func (s *stubPurchaseService) ExpireReservations(ctx context.Context, limit int) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	atomic.AddInt64(&s.expired, int64(s.perCall))
	return s.perCall, nil
}

func TestExpiryWorker_SweepsOnStart(t *testing.T) {
	stub := &stubPurchaseService{perCall: 3}
	w := NewExpiryWorker(stub, &ExpiryWorkerConfig{
		ScanInterval: 10 * time.Millisecond,
		BatchSize:    100,
	})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&stub.expired) >= 3
	}, time.Second, 5*time.Millisecond)

	stats := w.Stats()
	assert.True(t, stats.IsRunning)
	assert.GreaterOrEqual(t, stats.TotalExpired, int64(3))
	assert.False(t, stats.LastScanTime.IsZero())
}

func TestExpiryWorker_SweepsOnInjectedTick(t *testing.T) {
	stub := &stubPurchaseService{perCall: 2}
	tick := make(chan time.Time)
	w := NewExpiryWorker(stub, &ExpiryWorkerConfig{BatchSize: 10, Tick: tick})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// One sweep on start, then exactly one per delivered tick.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&stub.expired) == 2
	}, time.Second, time.Millisecond)

	tick <- time.Now()
	tick <- time.Now()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&stub.expired) == 6
	}, time.Second, time.Millisecond)
	assert.Equal(t, int64(6), w.Stats().TotalExpired)
}

func TestExpiryWorker_DoubleStart(t *testing.T) {
	w := NewExpiryWorker(&stubPurchaseService{}, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestExpiryWorker_StopIsIdempotent(t *testing.T) {
	w := NewExpiryWorker(&stubPurchaseService{}, &ExpiryWorkerConfig{
		ScanInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
	assert.False(t, w.Stats().IsRunning)
}

func TestExpiryWorker_KeepsRunningAfterSweepError(t *testing.T) {
	stub := &stubPurchaseService{err: context.DeadlineExceeded}
	w := NewExpiryWorker(stub, &ExpiryWorkerConfig{
		ScanInterval: 5 * time.Millisecond,
		BatchSize:    10,
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.True(t, w.Stats().IsRunning)
	assert.Zero(t, w.Stats().TotalExpired)
}
