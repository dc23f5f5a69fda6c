package bond

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *ManualClock) Advance(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

// LogPayoutSink only logs releases. It stands in for a settlement system.
type LogPayoutSink struct {
	Log *slog.Logger
}

var (
	_ interfaces.Clock      = SystemClock{}
	_ interfaces.Clock      = (*ManualClock)(nil)
	_ interfaces.PayoutSink = LogPayoutSink{}
)

func (s LogPayoutSink) Release(ctx context.Context, payout interfaces.Payout) error {
	if s.Log != nil {
		s.Log.Info("releasing funds", "payout", payout.ID, "to", payout.To.Hex(), "amount", payout.Amount)
	}
	return nil
}
