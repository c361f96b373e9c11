package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr         string
	MongoURI         string
	CRDBDSN          string
	RedisAddr        string
	RabbitURL        string
	FlightServiceURL string
	// ServiceToken is the credential used when no caller token is available,
	// e.g. compensating releases issued by the recovery worker.
	ServiceToken         string
	CancelWindow         time.Duration
	InventoryMaxInFlight int64
	SagaStaleAfter       time.Duration
	SweepInterval        time.Duration
	IdempotencyTTL       time.Duration
	FlightCacheTTL       time.Duration
	OTLPEndpoint         string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cancelWindow, _ := time.ParseDuration(os.Getenv("CANCEL_WINDOW"))
	if cancelWindow == 0 {
		cancelWindow = 24 * time.Hour
	}

	staleAfter, _ := time.ParseDuration(os.Getenv("SAGA_STALE_AFTER"))
	if staleAfter == 0 {
		staleAfter = 10 * time.Minute
	}

	sweepInterval, _ := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if sweepInterval == 0 {
		sweepInterval = time.Minute
	}

	idempTTL, _ := time.ParseDuration(os.Getenv("IDEMPOTENCY_TTL"))
	if idempTTL == 0 {
		idempTTL = time.Hour
	}

	flightCacheTTL, _ := time.ParseDuration(os.Getenv("FLIGHT_CACHE_TTL"))
	if flightCacheTTL == 0 {
		flightCacheTTL = 30 * time.Second
	}

	maxInFlight, _ := strconv.ParseInt(os.Getenv("INVENTORY_MAX_INFLIGHT"), 10, 64)
	if maxInFlight == 0 {
		maxInFlight = 16
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		HTTPAddr:             addr,
		MongoURI:             os.Getenv("MONGO_URI"),
		CRDBDSN:              os.Getenv("CRDB_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RabbitURL:            os.Getenv("RABBIT_URL"),
		FlightServiceURL:     os.Getenv("FLIGHT_SERVICE_URL"),
		ServiceToken:         os.Getenv("SERVICE_TOKEN"),
		CancelWindow:         cancelWindow,
		InventoryMaxInFlight: maxInFlight,
		SagaStaleAfter:       staleAfter,
		SweepInterval:        sweepInterval,
		IdempotencyTTL:       idempTTL,
		FlightCacheTTL:       flightCacheTTL,
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
