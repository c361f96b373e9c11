package booking

import (
	"context"
	"testing"
	"time"

	"github.com/flightapp/booking-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func roundTripTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:                "ticket-1",
		PNR:               "AB12CD34",
		UserEmail:         "asha@example.com",
		DepartureFlightID: "FL100",
		ReturnFlightID:    "FL200",
		TripType:          domain.TripRoundTrip,
		BookingTime:       time.Now().Add(-48 * time.Hour),
		SeatsBooked:       "A1,A2",
		SeatCount:         2,
		TotalPrice:        500,
	}
}

func TestCancel_RoundTripReleasesBothLegs(t *testing.T) {
	f := newFixture()
	ticket := roundTripTicket()

	f.tickets.On("FindByPNR", mock.Anything, "AB12CD34").Return(ticket, nil)
	f.inventory.On("Fetch", mock.Anything, "FL100", "tok").Return(depFlight("FL100", 3, 100), nil)
	f.inventory.On("Release", mock.Anything, "FL100", 2, "tok").Return(nil)
	f.inventory.On("Release", mock.Anything, "FL200", 2, "tok").Return(nil)
	f.tickets.On("MarkCanceled", mock.Anything, "ticket-1").Return(nil)
	f.emitter.On("Emit", mock.Anything, mock.Anything).Return()

	msg, err := f.svc.Cancel(context.Background(), "AB12CD34", "tok")

	require.NoError(t, err)
	assert.Equal(t, "Cancelled Successfully", msg)

	// Two seats on each leg, exactly once per leg.
	f.inventory.AssertNumberOfCalls(t, "Release", 2)
	f.inventory.AssertCalled(t, "Release", mock.Anything, "FL100", 2, "tok")
	f.inventory.AssertCalled(t, "Release", mock.Anything, "FL200", 2, "tok")

	f.emitter.AssertCalled(t, "Emit", mock.Anything, mock.MatchedBy(func(e domain.BookingEvent) bool {
		return e.EventType == domain.EventBookingCancelled && e.PNR == "AB12CD34" && e.TotalPrice == 500
	}))
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture()
	ticket := roundTripTicket()
	ticket.Canceled = true

	f.tickets.On("FindByPNR", mock.Anything, "AB12CD34").Return(ticket, nil)

	msg, err := f.svc.Cancel(context.Background(), "AB12CD34", "tok")

	require.NoError(t, err)
	assert.Equal(t, "Ticket already cancelled", msg)

	f.inventory.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.tickets.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything)
	f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestCancel_WithinWindowRejected(t *testing.T) {
	f := newFixture()
	ticket := roundTripTicket()

	soon := depFlight("FL100", 3, 100)
	soon.DepartureTime = time.Now().Add(6 * time.Hour)

	f.tickets.On("FindByPNR", mock.Anything, "AB12CD34").Return(ticket, nil)
	f.inventory.On("Fetch", mock.Anything, "FL100", "tok").Return(soon, nil)

	_, err := f.svc.Cancel(context.Background(), "AB12CD34", "tok")

	assert.ErrorIs(t, err, domain.ErrPolicyViolation)
	assert.Contains(t, err.Error(), "24 hours")
	f.inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.tickets.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything)
}

func TestCancel_UnknownPNR(t *testing.T) {
	f := newFixture()

	f.tickets.On("FindByPNR", mock.Anything, "NOPE1234").Return(nil, domain.ErrNotFound)

	_, err := f.svc.Cancel(context.Background(), "NOPE1234", "tok")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.inventory.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_ReleaseFailureSurfaces(t *testing.T) {
	f := newFixture()
	ticket := roundTripTicket()

	f.tickets.On("FindByPNR", mock.Anything, "AB12CD34").Return(ticket, nil)
	f.inventory.On("Fetch", mock.Anything, "FL100", "tok").Return(depFlight("FL100", 3, 100), nil)
	f.inventory.On("Release", mock.Anything, "FL100", 2, "tok").Return(assert.AnError)

	_, err := f.svc.Cancel(context.Background(), "AB12CD34", "tok")

	assert.ErrorIs(t, err, domain.ErrExternalService)
	f.tickets.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything)
	f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestCancel_SeatCountFallsBackToSeatsBooked(t *testing.T) {
	f := newFixture()
	ticket := roundTripTicket()
	ticket.SeatCount = 0
	ticket.ReturnFlightID = ""
	ticket.TripType = domain.TripOneWay

	f.tickets.On("FindByPNR", mock.Anything, "AB12CD34").Return(ticket, nil)
	f.inventory.On("Fetch", mock.Anything, "FL100", "tok").Return(depFlight("FL100", 3, 100), nil)
	f.inventory.On("Release", mock.Anything, "FL100", 2, "tok").Return(nil)
	f.tickets.On("MarkCanceled", mock.Anything, "ticket-1").Return(nil)
	f.emitter.On("Emit", mock.Anything, mock.Anything).Return()

	_, err := f.svc.Cancel(context.Background(), "AB12CD34", "tok")

	require.NoError(t, err)
	f.inventory.AssertCalled(t, "Release", mock.Anything, "FL100", 2, "tok")
}

func TestCancel_ExactlyAtWindowBoundary(t *testing.T) {
	f := newFixture()
	ticket := roundTripTicket()
	ticket.ReturnFlightID = ""
	ticket.TripType = domain.TripOneWay

	now := time.Now()
	flight := depFlight("FL100", 3, 100)
	flight.DepartureTime = now.Add(25 * time.Hour)

	f.tickets.On("FindByPNR", mock.Anything, "AB12CD34").Return(ticket, nil)
	f.inventory.On("Fetch", mock.Anything, "FL100", "tok").Return(flight, nil)
	f.inventory.On("Release", mock.Anything, "FL100", 2, "tok").Return(nil)
	f.tickets.On("MarkCanceled", mock.Anything, "ticket-1").Return(nil)
	f.emitter.On("Emit", mock.Anything, mock.Anything).Return()

	svc := NewService(
		f.tickets, f.passengers, f.sagas, f.inventory, f.emitter, f.audit,
		f.svc.logger, 24*time.Hour, WithClock(func() time.Time { return now }),
	)

	_, err := svc.Cancel(context.Background(), "AB12CD34", "tok")
	require.NoError(t, err)
}
