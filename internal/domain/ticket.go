package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TripType string

const (
	TripOneWay    TripType = "ONE_WAY"
	TripRoundTrip TripType = "ROUND_TRIP"
)

const seatDelimiter = ","

// Ticket is the booking record, owned exclusively by the booking
// orchestrator. Created once, mutated only by cancellation.
type Ticket struct {
	ID                string
	PNR               string
	UserEmail         string
	DepartureFlightID string
	ReturnFlightID    string
	TripType          TripType
	BookingTime       time.Time
	SeatsBooked       string
	SeatCount         int
	MealType          string
	TotalPrice        float64
	Canceled          bool
}

// Passenger holds one seat of a booking. FlightID is the departure leg;
// the (FlightID, SeatNumber) pair is unique across all passengers, enforced
// by the store. Passengers are never mutated or deleted.
type Passenger struct {
	ID             string
	FlightID       string
	Name           string
	Gender         string
	Age            int
	SeatNumber     string
	MealPreference string
	TicketID       string
}

// NewTicket assembles a booking-time ticket. totalPrice must already be the
// per-leg price sum for seatCount seats.
func NewTicket(it Itinerary, userEmail string, seats []string, mealType string, totalPrice float64) Ticket {
	return Ticket{
		PNR:               NewPNR(),
		UserEmail:         userEmail,
		DepartureFlightID: it.Departure,
		ReturnFlightID:    it.Return,
		TripType:          it.TripType(),
		BookingTime:       time.Now().UTC(),
		SeatsBooked:       strings.Join(seats, seatDelimiter),
		SeatCount:         len(seats),
		MealType:          mealType,
		TotalPrice:        totalPrice,
	}
}

// ReleasableSeats is how many seats a cancellation has to give back.
// Old tickets predate the explicit seat count, so fall back to the
// delimited field, then to one seat.
func (t Ticket) ReleasableSeats() int {
	if t.SeatCount > 0 {
		return t.SeatCount
	}
	if t.SeatsBooked != "" {
		return len(strings.Split(t.SeatsBooked, seatDelimiter))
	}
	return 1
}

func (t Ticket) Seats() []string {
	if t.SeatsBooked == "" {
		return nil
	}
	return strings.Split(t.SeatsBooked, seatDelimiter)
}

// NewPNR returns the short public booking code. Collisions are possible but
// accepted, same as the upstream reservation systems this feeds.
func NewPNR() string {
	return uuid.NewString()[:8]
}
