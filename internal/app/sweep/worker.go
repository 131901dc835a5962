package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	offerhandlers "gearyard/internal/app/handlers/offers"
)

var ErrWorkerNotConfigured = errors.New("sweep: worker is not configured")

const defaultInterval = time.Minute

// Worker periodically expires pending offers whose deadline passed. The
// handler tolerates overlapping runs, so a slow tick never needs locking.
type Worker struct {
	Handler  *offerhandlers.SweepHandler
	Interval time.Duration
	Logger   *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Handler == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Worker) sweepOnce(ctx context.Context) {
	result, err := w.Handler.SweepExpired(ctx, time.Now())
	if err != nil {
		if w.Logger != nil {
			w.Logger.Error("offer sweep failed", "error", err)
		}
		return
	}
	if result.Expired > 0 && w.Logger != nil {
		w.Logger.Info("offers expired", "count", result.Expired)
	}
}

func (w *Worker) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return defaultInterval
}
