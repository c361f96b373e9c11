package domain

import (
	"time"

	"github.com/google/uuid"
)

type SagaState string

// Saga states advance in order; the compensation states hang off the
// reserving states when a later step fails. ABORTED means the departure
// reservation itself failed, so nothing was ever held or released.
// COMPENSATING_RETURN means the departure seats are already given back
// and only the return leg is still held.
const (
	SagaReservingDeparture SagaState = "RESERVING_DEPARTURE"
	SagaReservingReturn    SagaState = "RESERVING_RETURN"
	SagaPersisting         SagaState = "PERSISTING"
	SagaDone               SagaState = "DONE"
	SagaAborted            SagaState = "ABORTED"
	SagaCompensatingReturn SagaState = "COMPENSATING_RETURN"
	SagaCompensated        SagaState = "COMPENSATED"
	SagaCompensationFailed SagaState = "COMPENSATION_FAILED"
)

// BookingSaga is the durable record of an in-flight booking, written before
// each remote inventory call. It lets the recovery sweep find reservations
// that were issued but never turned into a ticket.
type BookingSaga struct {
	ID                uuid.UUID
	PNR               string
	UserEmail         string
	State             SagaState
	DepartureFlightID string
	ReturnFlightID    string
	SeatCount         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewBookingSaga(pnr, userEmail string, it Itinerary, seatCount int) BookingSaga {
	return BookingSaga{
		ID:                uuid.New(),
		PNR:               pnr,
		UserEmail:         userEmail,
		State:             SagaReservingDeparture,
		DepartureFlightID: it.Departure,
		ReturnFlightID:    it.Return,
		SeatCount:         seatCount,
	}
}

// DepartureReserved reports whether the saga got far enough that departure
// seats are held on the inventory side.
func (s BookingSaga) DepartureReserved() bool {
	switch s.State {
	case SagaReservingReturn, SagaPersisting, SagaCompensationFailed:
		return true
	}
	return false
}

// ReturnReserved reports whether the return leg is still held: either the
// saga stalled after both reservations, or a sweep already gave back the
// departure seats and recorded that before touching the return leg.
func (s BookingSaga) ReturnReserved() bool {
	if s.ReturnFlightID == "" {
		return false
	}
	return s.State == SagaPersisting || s.State == SagaCompensatingReturn
}
