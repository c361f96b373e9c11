package integration_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
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

// flightStub mimics the inventory service: one flight with a live seat
// counter so reserve/release effects are observable.
type flightStub struct {
	flightID string
	seats    atomic.Int64
	price    float64
	departs  time.Time
}

func (f *flightStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, f.flightID) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch {
		case strings.Contains(r.URL.Path, "/reserve/"):
			f.seats.Add(-seatArg(r.URL.Path))
			w.WriteHeader(http.StatusOK)
		case strings.Contains(r.URL.Path, "/release/"):
			f.seats.Add(seatArg(r.URL.Path))
			w.WriteHeader(http.StatusOK)
		default:
			json.NewEncoder(w).Encode(flights.FlightDto{
				ID:             f.flightID,
				Airline:        "TestAir",
				FromPlace:      "DEL",
				ToPlace:        "BOM",
				DepartureTime:  f.departs,
				ArrivalTime:    f.departs.Add(2 * time.Hour),
				Price:          f.price,
				AvailableSeats: int(f.seats.Load()),
			})
		}
	})
}

func seatArg(path string) int64 {
	parts := strings.Split(path, "/")
	n, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	return n
}

func bearerFor(sub string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload, _ := json.Marshal(map[string]string{"sub": sub})
	return "Bearer " + header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestIntegration_BookAndCancel(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongo", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	crdbDSN, err := crdbContainer.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, _ := mongoContainer.Host(ctx)
	mongoPort, _ := mongoContainer.MappedPort(ctx, "27017")
	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")
	rabbitHost, _ := rabbitContainer.Host(ctx)
	rabbitPort, _ := rabbitContainer.MappedPort(ctx, "5672")

	stub := &flightStub{flightID: "FL100", price: 120, departs: time.Now().Add(72 * time.Hour)}
	stub.seats.Store(10)
	flightSrv := httptest.NewServer(stub.handler())
	defer flightSrv.Close()

	cfg := &config.Config{
		CRDBDSN:          crdbDSN + "/flightapp?sslmode=disable",
		MongoURI:         "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:        redisHost + ":" + redisPort.Port(),
		RabbitURL:        "amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/",
		FlightServiceURL: flightSrv.URL,
		CancelWindow:     24 * time.Hour,
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, `
		CREATE DATABASE IF NOT EXISTS flightapp;
		CREATE TABLE IF NOT EXISTS flightapp.booking_sagas (
			id UUID PRIMARY KEY,
			pnr TEXT NOT NULL,
			user_email TEXT NOT NULL,
			state TEXT NOT NULL,
			departure_flight_id TEXT NOT NULL,
			return_flight_id TEXT,
			seat_count INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		t.Fatal(err)
	}
	sagaRepo := crdb.NewSagaRepository(pool)

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("flightapp")
	ticketRepo := mongoadapter.NewTicketRepository(mongoDB, logger)
	passengerRepo := mongoadapter.NewPassengerRepository(mongoDB, logger)
	auditLog := mongoadapter.NewAuditLogger(mongoDB, logger)
	if err := passengerRepo.EnsureIndexes(ctx); err != nil {
		t.Fatal(err)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient, 30*time.Second)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}
	emitter := events.NewEmitter(rabbitPub, logger)

	inventory := flights.NewClient(cfg.FlightServiceURL, 16)

	svc := booking.NewService(ticketRepo, passengerRepo, sagaRepo, inventory, emitter, auditLog, logger, cfg.CancelWindow)
	handlers := httphandler.NewHandlers(svc, idemp, logger)
	apiSrv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, rl))
	defer apiSrv.Close()

	token := bearerFor("asha@example.com")

	// Book a one-way flight for two passengers.
	bookBody, _ := json.Marshal(map[string]interface{}{
		"tripType": "ONE_WAY",
		"passengers": []map[string]interface{}{
			{"name": "Asha Rao", "gender": "F", "age": 34, "seatNumber": "A1"},
			{"name": "Ravi Rao", "gender": "M", "age": 36, "seatNumber": "A2"},
		},
	})
	req, _ := http.NewRequest(http.MethodPost, apiSrv.URL+"/api/flight/booking/FL100", bytes.NewReader(bookBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())
	req.Header.Set("Authorization", token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("book failed: status %d", resp.StatusCode)
	}
	var bookResp struct {
		PNR string `json:"pnr"`
	}
	json.NewDecoder(resp.Body).Decode(&bookResp)
	resp.Body.Close()
	if len(bookResp.PNR) != 8 {
		t.Fatalf("expected 8-char PNR, got %q", bookResp.PNR)
	}
	if got := stub.seats.Load(); got != 8 {
		t.Errorf("expected 8 seats left after booking, got %d", got)
	}

	// The ticket is readable by PNR.
	req, _ = http.NewRequest(http.MethodGet, apiSrv.URL+"/api/flight/ticket/"+bookResp.PNR, nil)
	req.Header.Set("Authorization", token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get ticket failed: %v, status %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	// Same seat again conflicts.
	req, _ = http.NewRequest(http.MethodPost, apiSrv.URL+"/api/flight/booking/FL100", bytes.NewReader(bookBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on double booking, got %v status %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	// Cancel gives the seats back.
	req, _ = http.NewRequest(http.MethodDelete, apiSrv.URL+"/api/flight/booking/cancel/"+bookResp.PNR, nil)
	req.Header.Set("Authorization", token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel failed: %v, status %d", err, resp.StatusCode)
	}
	var cancelResp struct {
		Message string `json:"message"`
	}
	json.NewDecoder(resp.Body).Decode(&cancelResp)
	resp.Body.Close()
	if cancelResp.Message != "Cancelled Successfully" {
		t.Errorf("unexpected cancel message: %q", cancelResp.Message)
	}
	if got := stub.seats.Load(); got != 10 {
		t.Errorf("expected all 10 seats back after cancel, got %d", got)
	}

	// Cancelling again is an idempotent no-op.
	req, _ = http.NewRequest(http.MethodDelete, apiSrv.URL+"/api/flight/booking/cancel/"+bookResp.PNR, nil)
	req.Header.Set("Authorization", token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat cancel failed: %v, status %d", err, resp.StatusCode)
	}
	resp.Body.Close()
	if got := stub.seats.Load(); got != 10 {
		t.Errorf("repeat cancel must not release again, got %d seats", got)
	}
}
