package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// checkAvailability verifies every requested seat is free on the departure
// flight. Seats are checked independently with no ordering between them;
// the first conflict found aborts the booking before any reservation call.
// Advisory only: the passenger store's unique index is the real guard
// against the check/reserve race.
func (s *Service) checkAvailability(ctx context.Context, flightID string, seats []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, seat := range seats {
		seat := seat
		g.Go(func() error {
			taken, err := s.passengers.ExistsByFlightAndSeat(gctx, flightID, seat)
			if err != nil {
				return err
			}
			if taken {
				return errors.Wrapf(domain.ErrConflict, "Seat %s is already booked", seat)
			}
			return nil
		})
	}
	return g.Wait()
}
