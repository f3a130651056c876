package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"hornbill/internal/cache"
	"hornbill/internal/database"
	"hornbill/internal/external"
	"hornbill/internal/messaging"
	"hornbill/internal/push"
)

// Config holds the application configuration
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	JWTSecret      string

	Admission   AdmissionConfig
	Reservation ReservationConfig
	Transfer    TransferConfig

	Database database.Config
	Redis    cache.Config
	NATS     messaging.Config
	PubNub   push.Config
	Gateway  external.GatewayConfig
	Wallet   external.WalletConfig
	OCR      external.OCRConfig
}

// AdmissionConfig tunes the waiting room.
type AdmissionConfig struct {
	// HeartbeatGrace is the server-side eviction window: a session silent
	// longer than this is treated as abandoned. Deliberately longer than the
	// client silence timeout, which fails open.
	HeartbeatGrace time.Duration
	SweepInterval  time.Duration

	// SilenceTimeout and SilencePolicy are the client-side watchdog
	// contract, delivered as data in the join response.
	SilenceTimeout time.Duration
	SilencePolicy  string // "promote" (fail-open) or "reconnect"

	// AdmitTTL bounds how long a promoted session may take to reach
	// SelectSlot before its admission lapses.
	AdmitTTL time.Duration
}

// ReservationConfig tunes holds and the anti-automation gate.
type ReservationConfig struct {
	HoldTTL      time.Duration
	ChallengeTTL time.Duration
	Currency     string
	SellerID     int64
}

// TransferConfig tunes the handshake fee sub-payment and the deferred
// FRIEND intent poll.
type TransferConfig struct {
	FeeAmount          string
	Currency           string
	IntentPollInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),

		Admission: AdmissionConfig{
			HeartbeatGrace: time.Duration(getEnvInt("QUEUE_HEARTBEAT_GRACE_SEC", 60)) * time.Second,
			SweepInterval:  time.Duration(getEnvInt("QUEUE_SWEEP_INTERVAL_SEC", 15)) * time.Second,
			SilenceTimeout: time.Duration(getEnvInt("QUEUE_SILENCE_TIMEOUT_SEC", 15)) * time.Second,
			SilencePolicy:  getEnv("QUEUE_SILENCE_POLICY", "promote"),
			AdmitTTL:       time.Duration(getEnvInt("QUEUE_ADMIT_TTL_SEC", 300)) * time.Second,
		},

		Reservation: ReservationConfig{
			HoldTTL:      time.Duration(getEnvInt("HOLD_TTL_MIN", 7)) * time.Minute,
			ChallengeTTL: time.Duration(getEnvInt("CHALLENGE_TTL_SEC", 180)) * time.Second,
			Currency:     getEnv("CURRENCY", "LAK"),
			SellerID:     int64(getEnvInt("SELLER_ACCOUNT_ID", 1)),
		},

		Transfer: TransferConfig{
			FeeAmount:          getEnv("TRANSFER_FEE", "5000"),
			Currency:           getEnv("CURRENCY", "LAK"),
			IntentPollInterval: time.Duration(getEnvInt("TRANSFER_INTENT_POLL_SEC", 30)) * time.Second,
		},

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "hornbill"),
			Password:           getEnv("DB_PASSWORD", "hornbill123"),
			DBName:             getEnv("DB_NAME", "hornbill"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		Redis: cache.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "hornbill"),
			ClientID:  getEnv("NATS_CLIENT_ID", "hornbill-api"),
		},

		PubNub: push.Config{
			PublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
			SubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
			SecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
			UserID:       getEnv("PUBNUB_USER_ID", "hornbill-server"),
		},

		Gateway: external.GatewayConfig{
			BaseURL:    getEnv("CARD_GATEWAY_URL", "https://gateway.example.com"),
			MerchantID: getEnv("CARD_GATEWAY_MERCHANT", ""),
			Secret:     getEnv("CARD_GATEWAY_SECRET", ""),
			Timeout:    time.Duration(getEnvInt("CARD_GATEWAY_TIMEOUT_SEC", 30)) * time.Second,
		},

		Wallet: external.WalletConfig{
			BaseURL: getEnv("WALLET_SERVICE_URL", "http://localhost:9090"),
			APIKey:  getEnv("WALLET_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("WALLET_TIMEOUT_SEC", 15)) * time.Second,
		},

		OCR: external.OCRConfig{
			BaseURL: getEnv("OCR_SERVICE_URL", "http://localhost:9091"),
			APIKey:  getEnv("OCR_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("OCR_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

// getEnv reads an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
