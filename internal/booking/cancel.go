package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/observability"
)

const (
	msgAlreadyCancelled   = "Ticket already cancelled"
	msgCancelledSucceeded = "Cancelled Successfully"
)

// Cancel runs the cancellation saga for a PNR: lookup, idempotency
// short-circuit, 24h policy check, seat release on every booked leg,
// ticket update, event emission. Returns the confirmation message.
func (s *Service) Cancel(ctx context.Context, pnr, token string) (string, error) {
	ticket, err := s.tickets.FindByPNR(ctx, pnr)
	if err != nil {
		observability.CancellationsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	// Cancellation is idempotent: a second call is a no-op success.
	if ticket.Canceled {
		observability.CancellationsTotal.WithLabelValues("noop").Inc()
		return msgAlreadyCancelled, nil
	}

	seatCount := ticket.ReleasableSeats()

	depFlight, err := s.inventory.Fetch(ctx, ticket.DepartureFlightID, token)
	if errors.Is(err, domain.ErrNotFound) {
		observability.CancellationsTotal.WithLabelValues("rejected").Inc()
		return "", errors.Wrap(domain.ErrNotFound, "departure flight not found")
	}
	if err != nil {
		observability.CancellationsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	if depFlight.DepartureTime.Add(-s.cancelWindow).Before(s.now()) {
		observability.CancellationsTotal.WithLabelValues("rejected").Inc()
		return "", errors.Wrap(domain.ErrPolicyViolation, "cannot cancel ticket within 24 hours of departure")
	}

	// A failed release leaves seats under-released, never over-released,
	// so no compensation is needed here.
	if err := s.inventory.Release(ctx, ticket.DepartureFlightID, seatCount, token); err != nil {
		observability.CancellationsTotal.WithLabelValues("error").Inc()
		return "", errors.Wrapf(domain.ErrExternalService, "release departure seats: %v", err)
	}
	if ticket.ReturnFlightID != "" {
		if err := s.inventory.Release(ctx, ticket.ReturnFlightID, seatCount, token); err != nil {
			observability.CancellationsTotal.WithLabelValues("error").Inc()
			return "", errors.Wrapf(domain.ErrExternalService, "release return seats: %v", err)
		}
	}

	if err := s.tickets.MarkCanceled(ctx, ticket.ID); err != nil {
		observability.CancellationsTotal.WithLabelValues("error").Inc()
		return "", errors.Wrap(err, "mark ticket canceled")
	}
	ticket.Canceled = true

	s.emitter.Emit(ctx, domain.NewBookingEvent(domain.EventBookingCancelled, *ticket))
	observability.CancellationsTotal.WithLabelValues("cancelled").Inc()

	return msgCancelledSucceeded, nil
}
