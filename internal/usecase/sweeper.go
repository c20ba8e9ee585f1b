package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HoldSweeper periodically releases expired slot holds.
type HoldSweeper struct {
	booking  BookingService
	interval time.Duration
	log      *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

func NewHoldSweeper(booking BookingService, interval time.Duration, log *zap.Logger) *HoldSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HoldSweeper{
		booking:  booking,
		interval: interval,
		log:      log.With(zap.String("worker", "hold-sweeper")),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs a sweep immediately, then on every tick until Stop or ctx ends.
func (w *HoldSweeper) Start(ctx context.Context) {
	w.log.Info("Starting hold sweeper", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

// Stop blocks until the running sweep, if any, has returned. It must follow
// Start.
func (w *HoldSweeper) Stop() {
	close(w.stopChan)
	<-w.done
	w.log.Info("Hold sweeper stopped")
}

func (w *HoldSweeper) run(ctx context.Context) {
	defer close(w.done)

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *HoldSweeper) sweep(ctx context.Context) {
	released, err := w.booking.ExpireHolds(ctx)
	if err != nil {
		w.log.Error("Hold sweep finished with errors", zap.Int("released", released), zap.Error(err))
		return
	}
	if released > 0 {
		w.log.Info("Hold sweep released slots", zap.Int("released", released))
	}
}
