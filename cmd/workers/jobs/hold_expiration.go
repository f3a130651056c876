package jobs

import (
	"context"
	"time"

	"hornbill/internal/logger"
	"hornbill/internal/service"
)

const holdSweepInterval = 30 * time.Second

// HoldExpirationJob releases overdue reservation holds back to the
// inventory ledger. The claiming update inside the sweep keeps overlapping
// runs from double-releasing, so the interval is a freshness knob only.
type HoldExpirationJob struct {
	reservations *service.ReservationService
	ticker       *time.Ticker
	done         chan bool
}

func NewHoldExpirationJob(reservations *service.ReservationService) *HoldExpirationJob {
	return &HoldExpirationJob{
		reservations: reservations,
		done:         make(chan bool),
	}
}

// Start begins the background job that sweeps expired holds
func (j *HoldExpirationJob) Start(ctx context.Context) {
	logger.Get().Info("Starting hold expiration job", "interval", holdSweepInterval.String())

	j.ticker = time.NewTicker(holdSweepInterval)

	// Run initial sweep immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				logger.Get().Info("Hold expiration job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *HoldExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *HoldExpirationJob) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := j.reservations.ExpireSweep(sweepCtx)
	if err != nil {
		logger.Get().Error("Hold expiration sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Get().Info("Expired holds released", "count", n)
	}
}
