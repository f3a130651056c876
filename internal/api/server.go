package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hornbill/internal/cache"
	"hornbill/internal/config"
	"hornbill/internal/database"
	"hornbill/internal/external"
	"hornbill/internal/handlers"
	"hornbill/internal/logger"
	"hornbill/internal/messaging"
	"hornbill/internal/middleware"
	"hornbill/internal/push"
	"hornbill/internal/repository"
	"hornbill/internal/service"
)

// Server is the HTTP API server
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	redis    *cache.Client
	nats     *messaging.NATSClient
	services *service.Services
}

// NewServer wires the full stack: storage, cache, messaging, push and the
// external payment/verification collaborators.
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

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

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		redis:    redisClient,
		nats:     natsClient,
		services: services,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	h := handlers.New(s.services)

	api := s.router.Group("/api")
	api.Use(middleware.BearerAuth(s.config.JWTSecret))
	{
		queue := api.Group("/queue")
		{
			queue.POST("/join", h.JoinQueue)
			queue.POST("/heartbeat", h.Heartbeat)
			queue.POST("/exit", h.ExitQueue)
			queue.GET("/position", h.QueuePosition)
		}

		challenge := api.Group("/challenge")
		{
			challenge.POST("", h.IssueChallenge)
			challenge.POST("/solve", h.SolveChallenge)
		}

		api.GET("/events/:id/slots", h.QuerySlots)

		reservations := api.Group("/reservations")
		{
			reservations.POST("", h.SelectSlot)
			reservations.PATCH("/delivery", h.SelectDelivery)
			reservations.POST("/finalize", h.Finalize)
			reservations.PATCH("/release", h.ReleaseHold)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/request", h.RequestPayment)
			payments.POST("/confirm", h.ConfirmPayment)
			payments.POST("/wallet/debit", h.DebitWallet)
		}

		transfers := api.Group("/transfers")
		{
			transfers.POST("", h.RequestTransfer)
			transfers.PATCH("/respond", h.RespondTransfer)
			transfers.GET("/inbox", h.TransferInbox)
		}

		api.GET("/tickets", h.ListTickets)
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	health := s.db.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   health.Status,
		"service":  "hornbill-api",
		"database": health,
	})
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes the connections
func (s *Server) Cleanup() error {
	s.services.Admission.Stop()

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Get().Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
