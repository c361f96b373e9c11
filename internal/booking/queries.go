package booking

import (
	"context"
	"time"

	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/flights"
)

// TicketDetail is a ticket with its passenger list attached.
type TicketDetail struct {
	domain.Ticket
	Passengers []domain.Passenger
}

// HistoryRecord is one booking in the caller's history, enriched with the
// departure flight's descriptive fields.
type HistoryRecord struct {
	TicketID      string            `json:"ticketId"`
	PNR           string            `json:"pnr"`
	TripType      domain.TripType   `json:"tripType"`
	BookingTime   time.Time         `json:"bookingTime"`
	SeatsBooked   string            `json:"seatsBooked"`
	MealType      string            `json:"mealType,omitempty"`
	TotalPrice    float64           `json:"totalPrice"`
	Canceled      bool              `json:"canceled"`
	Airline       string            `json:"airline,omitempty"`
	FromPlace     string            `json:"fromPlace,omitempty"`
	ToPlace       string            `json:"toPlace,omitempty"`
	DepartureTime *time.Time        `json:"departureTime,omitempty"`
	ArrivalTime   *time.Time        `json:"arrivalTime,omitempty"`
	Passengers    []domain.Passenger `json:"passengers"`
}

func (s *Service) GetTicket(ctx context.Context, pnr string) (*TicketDetail, error) {
	ticket, err := s.tickets.FindByPNR(ctx, pnr)
	if err != nil {
		return nil, err
	}
	passengers, err := s.passengers.FindByTicketID(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{Ticket: *ticket, Passengers: passengers}, nil
}

// History lists the caller's bookings, newest data the stores have, each
// enriched with departure flight details. Enrichment is best-effort: a
// flight the inventory service cannot serve right now leaves those fields
// empty rather than failing the whole listing.
func (s *Service) History(ctx context.Context, email, token string) ([]HistoryRecord, error) {
	tickets, err := s.tickets.FindByUserEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	records := make([]HistoryRecord, 0, len(tickets))
	for _, t := range tickets {
		rec := HistoryRecord{
			TicketID:    t.ID,
			PNR:         t.PNR,
			TripType:    t.TripType,
			BookingTime: t.BookingTime,
			SeatsBooked: t.SeatsBooked,
			MealType:    t.MealType,
			TotalPrice:  t.TotalPrice,
			Canceled:    t.Canceled,
		}

		if flight, err := s.lookupFlight(ctx, t.DepartureFlightID, token); err != nil {
			s.logger.WithField("pnr", t.PNR).WithError(err).Warn("history: flight enrichment skipped")
		} else {
			rec.Airline = flight.Airline
			rec.FromPlace = flight.FromPlace
			rec.ToPlace = flight.ToPlace
			dep, arr := flight.DepartureTime, flight.ArrivalTime
			rec.DepartureTime = &dep
			rec.ArrivalTime = &arr
		}

		passengers, err := s.passengers.FindByTicketID(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		rec.Passengers = passengers

		records = append(records, rec)
	}
	return records, nil
}

// lookupFlight reads through the cache when one is configured.
func (s *Service) lookupFlight(ctx context.Context, flightID, token string) (*flights.FlightDto, error) {
	if s.cache != nil {
		var cached flights.FlightDto
		if hit, err := s.cache.GetFlight(ctx, flightID, &cached); err == nil && hit {
			return &cached, nil
		}
	}
	flight, err := s.inventory.Fetch(ctx, flightID, token)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlight(ctx, flightID, flight)
	}
	return flight, nil
}
