package events

import (
	"context"
	"encoding/json"

	"github.com/flightapp/booking-service/internal/adapters/rabbit"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Emitter publishes booking events to the topic exchange the notification
// service consumes. Delivery is at-most-once: a failed publish is logged
// and counted, never retried and never surfaced to the caller.
type Emitter struct {
	pub    *rabbit.Publisher
	logger observability.Logger
}

func NewEmitter(pub *rabbit.Publisher, logger observability.Logger) *Emitter {
	return &Emitter{pub: pub, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, event domain.BookingEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.WithError(err).WithField("pnr", event.PNR).Error("failed to marshal booking event")
		observability.EventPublishFailures.Inc()
		return
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	if err := e.pub.Publish(ctx, routingKey(event.EventType), msg); err != nil {
		e.logger.WithError(err).WithField("pnr", event.PNR).Error("failed to publish booking event")
		observability.EventPublishFailures.Inc()
	}
}

func routingKey(t domain.EventType) string {
	switch t {
	case domain.EventBookingConfirmed:
		return "booking.confirmed"
	case domain.EventBookingCancelled:
		return "booking.cancelled"
	}
	return "booking.unknown"
}
