package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/stan.go"

	"hornbill/internal/logger"
	"hornbill/internal/messaging"
	"hornbill/internal/models"
	"hornbill/internal/service"
)

// WalletAccountWatchJob resolves deferred FRIEND transfers. The primary
// path reacts to wallet account opened notifications; a slow poll re-checks
// every open intent to cover notifications lost while this worker was down.
type WalletAccountWatchJob struct {
	transfers    *service.TransferService
	nats         *messaging.NATSClient
	pollInterval time.Duration
	sub          stan.Subscription
	ticker       *time.Ticker
	done         chan bool
}

func NewWalletAccountWatchJob(transfers *service.TransferService, nats *messaging.NATSClient, pollInterval time.Duration) *WalletAccountWatchJob {
	return &WalletAccountWatchJob{
		transfers:    transfers,
		nats:         nats,
		pollInterval: pollInterval,
		done:         make(chan bool),
	}
}

// Start subscribes to account opened notifications and begins the poll
func (j *WalletAccountWatchJob) Start(ctx context.Context) error {
	logger.Get().Info("Starting wallet account watch job", "poll_interval", j.pollInterval.String())

	sub, err := j.nats.SubscribeQueue(models.EventWalletAccountOpened, "transfer-intents", func(msg *stan.Msg) {
		var event models.WalletAccountOpenedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Get().Error("Failed to decode wallet account event", "error", err)
			return
		}

		resolveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := j.transfers.ResolveIntentsFor(resolveCtx, event.AccountID); err != nil {
			logger.Get().Error("Failed to resolve intents for account",
				"error", err, "account_id", event.AccountID)
		}
	})
	if err != nil {
		return err
	}
	j.sub = sub

	j.ticker = time.NewTicker(j.pollInterval)
	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.poll(ctx)
			case <-j.done:
				logger.Get().Info("Wallet account watch job stopped")
				return
			}
		}
	}()
	return nil
}

// Stop gracefully stops the background job
func (j *WalletAccountWatchJob) Stop() {
	if j.sub != nil {
		if err := j.sub.Close(); err != nil {
			logger.Get().Error("Failed to close subscription", "error", err)
		}
	}
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *WalletAccountWatchJob) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := j.transfers.ResolveOpenIntents(pollCtx); err != nil {
		logger.Get().Error("Intent poll failed", "error", err)
	}
}
