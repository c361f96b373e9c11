package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/flights"
	"github.com/flightapp/booking-service/internal/observability"
)

type PassengerInput struct {
	Name           string `json:"name"`
	Gender         string `json:"gender"`
	Age            int    `json:"age"`
	SeatNumber     string `json:"seatNumber"`
	MealPreference string `json:"mealPreference"`
}

type BookRequest struct {
	DepartureFlightID string
	ReturnFlightID    string
	TripType          domain.TripType
	Passengers        []PassengerInput
	UserEmail         string
	Token             string
}

// Book runs the booking saga: validate, check seats, verify legs, reserve
// (with compensation on a failed return leg), persist, emit. Returns the
// generated PNR.
func (s *Service) Book(ctx context.Context, req BookRequest) (string, error) {
	it, err := s.validate(req)
	if err != nil {
		observability.BookingsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	seats := make([]string, len(req.Passengers))
	for i, p := range req.Passengers {
		seats[i] = p.SeatNumber
	}
	seatCount := len(seats)

	if err := s.checkAvailability(ctx, it.Departure, seats); err != nil {
		observability.BookingsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	depFlight, err := s.verifyLeg(ctx, it.Departure, seatCount, "departure", req.Token)
	if err != nil {
		observability.BookingsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	var retFlight *flights.FlightDto
	if it.HasReturn() {
		retFlight, err = s.verifyLeg(ctx, it.Return, seatCount, "return", req.Token)
		if err != nil {
			observability.BookingsTotal.WithLabelValues("rejected").Inc()
			return "", err
		}
	}

	totalPrice := depFlight.Price * float64(seatCount)
	if retFlight != nil {
		totalPrice += retFlight.Price * float64(seatCount)
	}

	ticket := domain.NewTicket(it, req.UserEmail, seats, "", totalPrice)

	// The saga row goes down before the first remote reservation so a crash
	// from here on always leaves evidence for the recovery sweep.
	saga := domain.NewBookingSaga(ticket.PNR, req.UserEmail, it, seatCount)
	if err := s.sagas.Insert(ctx, saga); err != nil {
		observability.BookingsTotal.WithLabelValues("error").Inc()
		return "", errors.Wrap(err, "persist saga record")
	}

	if err := s.reserve(ctx, &saga, it, seatCount, req.Token); err != nil {
		observability.BookingsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	if err := s.persistBooking(ctx, &saga, &ticket, req.Passengers); err != nil {
		observability.BookingsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	s.emitter.Emit(ctx, domain.NewBookingEvent(domain.EventBookingConfirmed, ticket))
	observability.BookingsTotal.WithLabelValues("confirmed").Inc()

	return ticket.PNR, nil
}

func (s *Service) validate(req BookRequest) (domain.Itinerary, error) {
	if len(req.Passengers) == 0 {
		return domain.Itinerary{}, errors.Wrap(domain.ErrValidation, "Passengers list cannot be empty")
	}
	if req.TripType == domain.TripRoundTrip && req.ReturnFlightID == "" {
		return domain.Itinerary{}, errors.Wrap(domain.ErrValidation, "return flight is required for round trip")
	}
	seen := make(map[string]struct{}, len(req.Passengers))
	for _, p := range req.Passengers {
		if _, dup := seen[p.SeatNumber]; dup {
			return domain.Itinerary{}, errors.Wrap(domain.ErrValidation, "duplicate seat numbers are not allowed")
		}
		seen[p.SeatNumber] = struct{}{}
	}
	if req.TripType == domain.TripRoundTrip {
		return domain.RoundTrip(req.DepartureFlightID, req.ReturnFlightID), nil
	}
	return domain.OneWay(req.DepartureFlightID), nil
}

// verifyLeg fetches one leg and checks capacity before anything is reserved.
func (s *Service) verifyLeg(ctx context.Context, flightID string, seatCount int, leg, token string) (*flights.FlightDto, error) {
	flight, err := s.inventory.Fetch(ctx, flightID, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrapf(domain.ErrNotFound, "%s flight not found", leg)
	}
	if err != nil {
		return nil, err
	}
	if flight.AvailableSeats < seatCount {
		return nil, errors.Wrapf(domain.ErrConflict, "not enough seats in %s flight", leg)
	}
	return flight, nil
}

// reserve holds seats on each leg, compensating the departure leg when the
// return leg fails. The inline release is best-effort; if it also fails the
// saga row stays behind as COMPENSATION_FAILED for the recovery sweep and
// an operational alert is written.
func (s *Service) reserve(ctx context.Context, saga *domain.BookingSaga, it domain.Itinerary, seatCount int, token string) error {
	// Nothing was held yet, so this is an abort, not a compensation.
	if err := s.inventory.Reserve(ctx, it.Departure, seatCount, token); err != nil {
		s.markSaga(ctx, saga, domain.SagaAborted)
		return errors.Wrap(err, "reserve departure seats")
	}

	if !it.HasReturn() {
		s.markSaga(ctx, saga, domain.SagaPersisting)
		return nil
	}

	s.markSaga(ctx, saga, domain.SagaReservingReturn)

	if err := s.inventory.Reserve(ctx, it.Return, seatCount, token); err != nil {
		s.compensateDeparture(ctx, saga, it.Departure, seatCount, token, err)
		return errors.Wrapf(domain.ErrExternalService, "failed to reserve return flight, rolled back departure: %v", err)
	}

	s.markSaga(ctx, saga, domain.SagaPersisting)
	return nil
}

func (s *Service) compensateDeparture(ctx context.Context, saga *domain.BookingSaga, flightID string, seatCount int, token string, cause error) {
	relErr := s.inventory.Release(ctx, flightID, seatCount, token)
	if relErr == nil {
		observability.CompensationsTotal.WithLabelValues("released").Inc()
		s.markSaga(ctx, saga, domain.SagaCompensated)
		return
	}

	// Departure seats are still held with no ticket to show for them. Not
	// repairable from the request path; alert and leave the saga row for
	// the sweep.
	observability.CompensationsTotal.WithLabelValues("failed").Inc()
	s.logger.WithField("pnr", saga.PNR).
		WithField("flight_id", flightID).
		WithError(relErr).
		Error("compensating release failed after return-leg reservation failure", cause)
	if s.audit != nil {
		_ = s.audit.LogCompensationFailure(ctx, *saga, cause, relErr)
	}
	s.markSaga(ctx, saga, domain.SagaCompensationFailed)
}

// persistBooking writes the ticket, then the passenger batch stamped with
// the ticket id. The ticket must be durable before passengers are tried;
// a passenger failure after that leaves the ticket visible as booked.
func (s *Service) persistBooking(ctx context.Context, saga *domain.BookingSaga, ticket *domain.Ticket, inputs []PassengerInput) error {
	if err := s.tickets.Insert(ctx, ticket); err != nil {
		return errors.Wrap(err, "persist ticket")
	}

	passengers := make([]domain.Passenger, len(inputs))
	for i, in := range inputs {
		passengers[i] = domain.Passenger{
			FlightID:       ticket.DepartureFlightID,
			Name:           in.Name,
			Gender:         in.Gender,
			Age:            in.Age,
			SeatNumber:     in.SeatNumber,
			MealPreference: in.MealPreference,
			TicketID:       ticket.ID,
		}
	}
	if err := s.passengers.InsertBatch(ctx, passengers); err != nil {
		return errors.Wrap(err, "persist passengers")
	}

	s.markSaga(ctx, saga, domain.SagaDone)
	return nil
}

func (s *Service) markSaga(ctx context.Context, saga *domain.BookingSaga, state domain.SagaState) {
	saga.State = state
	if err := s.sagas.UpdateState(ctx, saga.ID, state); err != nil {
		s.logger.WithField("saga_id", saga.ID.String()).
			WithField("state", string(state)).
			WithError(err).
			Error("failed to advance saga state")
	}
}
