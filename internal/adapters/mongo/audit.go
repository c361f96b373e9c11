package mongo

import (
	"context"
	"time"

	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger records operational events that need a durable trail, most
// importantly failed compensations: a held departure reservation with no
// ticket is an inconsistency nobody will notice from the request path alone.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	PNR       string    `bson:"pnr"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, pnr string, data map[string]interface{}) error {
	rec := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		PNR:       pnr,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, rec)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

// LogCompensationFailure is the operational alert for a booking whose
// departure seats stayed reserved after the inline release failed.
func (a *AuditLogger) LogCompensationFailure(ctx context.Context, saga domain.BookingSaga, cause, compensationErr error) error {
	data := map[string]interface{}{
		"saga_id":             saga.ID.String(),
		"departure_flight_id": saga.DepartureFlightID,
		"return_flight_id":    saga.ReturnFlightID,
		"seat_count":          saga.SeatCount,
		"cause":               cause.Error(),
		"compensation_error":  compensationErr.Error(),
	}
	return a.LogEvent(ctx, "booking.compensation_failed", saga.PNR, data)
}

// LogSagaRecovered marks a stale saga the sweep repaired.
func (a *AuditLogger) LogSagaRecovered(ctx context.Context, saga domain.BookingSaga, releasedDeparture, releasedReturn bool) error {
	data := map[string]interface{}{
		"saga_id":             saga.ID.String(),
		"state":               string(saga.State),
		"departure_flight_id": saga.DepartureFlightID,
		"return_flight_id":    saga.ReturnFlightID,
		"seat_count":          saga.SeatCount,
		"released_departure":  releasedDeparture,
		"released_return":     releasedReturn,
	}
	return a.LogEvent(ctx, "booking.saga_recovered", saga.PNR, data)
}
