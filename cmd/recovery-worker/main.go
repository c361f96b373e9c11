package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flightapp/booking-service/internal/adapters/crdb"
	mongoadapter "github.com/flightapp/booking-service/internal/adapters/mongo"
	"github.com/flightapp/booking-service/internal/config"
	"github.com/flightapp/booking-service/internal/flights"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/flightapp/booking-service/internal/recovery"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

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
	auditLog := mongoadapter.NewAuditLogger(mongoDB, logger)

	inventory := flights.NewClient(cfg.FlightServiceURL, cfg.InventoryMaxInFlight)

	sweeper := recovery.NewSweeper(sagaRepo, ticketRepo, inventory, auditLog, logger, cfg.ServiceToken, cfg.SagaStaleAfter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, cfg.SweepInterval)
	logger.Info("Recovery worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown recovery worker")
}
