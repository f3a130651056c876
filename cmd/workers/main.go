package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hornbill/cmd/workers/jobs"
	"hornbill/internal/cache"
	"hornbill/internal/config"
	"hornbill/internal/database"
	"hornbill/internal/external"
	"hornbill/internal/logger"
	"hornbill/internal/messaging"
	"hornbill/internal/push"
	"hornbill/internal/repository"
	"hornbill/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Workers get their own NATS identity
	cfg.NATS.ClientID = "hornbill-workers"

	logger.Get().Info("Starting workers service...")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	defer redisClient.Close()

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}
	defer natsClient.Close()

	repos := repository.NewRepositories(db)
	services := service.NewServices(cfg, service.Deps{
		Repos:     repos,
		Sessions:  redisClient,
		Challenge: redisClient,
		Publisher: natsClient,
		Pusher:    push.NewPubNubPublisher(cfg.PubNub),
		Gateway:   external.NewCardGateway(cfg.Gateway),
		Wallet:    external.NewWalletClient(cfg.Wallet),
		Verifier:  external.NewOCRClient(cfg.OCR),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	holdExpiration := jobs.NewHoldExpirationJob(services.Reservations)
	holdExpiration.Start(ctx)

	walletWatch := jobs.NewWalletAccountWatchJob(services.Transfers, natsClient, cfg.Transfer.IntentPollInterval)
	if err := walletWatch.Start(ctx); err != nil {
		logger.Fatal("Failed to start wallet account watch", "error", err)
	}

	logger.Get().Info("Workers service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down workers service...")

	holdExpiration.Stop()
	walletWatch.Stop()
	services.Admission.Stop()

	logger.Get().Info("Workers service stopped")
}
