package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flightapp/booking-service/internal/adapters/crdb"
	mongoadapter "github.com/flightapp/booking-service/internal/adapters/mongo"
	"github.com/flightapp/booking-service/internal/adapters/rabbit"
	redisadapter "github.com/flightapp/booking-service/internal/adapters/redis"
	"github.com/flightapp/booking-service/internal/booking"
	"github.com/flightapp/booking-service/internal/config"
	"github.com/flightapp/booking-service/internal/events"
	"github.com/flightapp/booking-service/internal/flights"
	httphandler "github.com/flightapp/booking-service/internal/http"
	"github.com/flightapp/booking-service/internal/idempotency"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/flightapp/booking-service/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	sagaRepo := crdb.NewSagaRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("flightapp")
	ticketRepo := mongoadapter.NewTicketRepository(mongoDB, logger)
	passengerRepo := mongoadapter.NewPassengerRepository(mongoDB, logger)
	auditLog := mongoadapter.NewAuditLogger(mongoDB, logger)

	if err := passengerRepo.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("failed to ensure passenger indexes: %v", err)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient, cfg.FlightCacheTTL)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	emitter := events.NewEmitter(rabbitPub, logger)

	inventory := flights.NewClient(cfg.FlightServiceURL, cfg.InventoryMaxInFlight)

	svc := booking.NewService(
		ticketRepo,
		passengerRepo,
		sagaRepo,
		inventory,
		emitter,
		auditLog,
		logger,
		cfg.CancelWindow,
		booking.WithFlightCache(redisCache),
	)

	handlers := httphandler.NewHandlers(svc, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
