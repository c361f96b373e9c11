package recovery

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/flights"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	sweepBatchSize  = 50
	releaseAttempts = 3
)

type SagaStore interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetStale(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]domain.BookingSaga, error)
	MarkInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.SagaState) error
	UpdateState(ctx context.Context, id uuid.UUID, state domain.SagaState) error
}

type TicketChecker interface {
	ExistsByPNR(ctx context.Context, pnr string) (bool, error)
}

type AuditSink interface {
	LogSagaRecovered(ctx context.Context, saga domain.BookingSaga, releasedDeparture, releasedReturn bool) error
}

// Sweeper finds booking sagas that stalled mid-flight, a crash after a
// reservation but before the ticket landed, and compensates the
// reservations the saga state proves were made. It runs with the service
// credential because the original caller's token is long gone.
type Sweeper struct {
	sagas          SagaStore
	tickets        TicketChecker
	inventory      flights.Inventory
	audit          AuditSink
	logger         observability.Logger
	token          string
	staleAfter     time.Duration
	releaseBackoff time.Duration
}

func NewSweeper(sagas SagaStore, tickets TicketChecker, inventory flights.Inventory, audit AuditSink, logger observability.Logger, token string, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		sagas:          sagas,
		tickets:        tickets,
		inventory:      inventory,
		audit:          audit,
		logger:         logger,
		token:          token,
		staleAfter:     staleAfter,
		releaseBackoff: time.Second,
	}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.WithError(err).Error("saga sweep failed")
			}
		}
	}
}

// Sweep claims one batch of stale sagas in a short transaction, then does
// the remote releases outside it. Claiming means touching updated_at: the
// rows fall out of the staleness window, so concurrent sweepers and the
// next tick skip them while the slow inventory calls run, and a claim
// that dies without resolving simply goes stale again.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now()
	cutoff := now.Add(-s.staleAfter)

	var stale []domain.BookingSaga
	err := s.sagas.WithTx(ctx, func(tx pgx.Tx) error {
		batch, err := s.sagas.GetStale(ctx, tx, cutoff, sweepBatchSize)
		if err != nil {
			return err
		}
		for _, saga := range batch {
			if err := s.sagas.MarkInTx(ctx, tx, saga.ID, saga.State); err != nil {
				return err
			}
		}
		stale = batch
		return nil
	})
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		observability.SagaSweepLag.Set(0)
		return nil
	}
	observability.SagaSweepLag.Set(now.Sub(stale[0].UpdatedAt).Seconds())

	for _, saga := range stale {
		if err := s.resolve(ctx, saga); err != nil {
			s.logger.WithField("saga_id", saga.ID.String()).
				WithField("pnr", saga.PNR).
				WithError(err).
				Error("failed to resolve stale saga")
		}
	}
	return nil
}

func (s *Sweeper) resolve(ctx context.Context, saga domain.BookingSaga) error {
	// The ticket store is the source of truth for "the booking completed";
	// a saga that crashed between ticket insert and its own DONE update
	// must not have its live reservations released.
	booked, err := s.tickets.ExistsByPNR(ctx, saga.PNR)
	if err != nil {
		return err
	}
	if booked {
		return s.sagas.UpdateState(ctx, saga.ID, domain.SagaDone)
	}

	releasedDeparture := false
	if saga.DepartureReserved() {
		if err := s.releaseWithRetry(ctx, saga.DepartureFlightID, saga.SeatCount); err != nil {
			// Leave the row; it goes stale again and the next sweep retries.
			return errors.Wrap(err, "release departure seats")
		}
		releasedDeparture = true
		if saga.ReturnReserved() {
			// Record the departure release before touching the return leg.
			// A crash or failure past this point must not make a later sweep
			// release the departure seats a second time.
			if err := s.sagas.UpdateState(ctx, saga.ID, domain.SagaCompensatingReturn); err != nil {
				return errors.Wrap(err, "record departure release")
			}
			saga.State = domain.SagaCompensatingReturn
		}
	}

	releasedReturn := false
	if saga.ReturnReserved() {
		if err := s.releaseWithRetry(ctx, saga.ReturnFlightID, saga.SeatCount); err != nil {
			return errors.Wrap(err, "release return seats")
		}
		releasedReturn = true
	}

	if err := s.sagas.UpdateState(ctx, saga.ID, domain.SagaCompensated); err != nil {
		return err
	}

	observability.CompensationsTotal.WithLabelValues("swept").Inc()
	if s.audit != nil {
		_ = s.audit.LogSagaRecovered(ctx, saga, releasedDeparture, releasedReturn)
	}
	s.logger.WithField("saga_id", saga.ID.String()).
		WithField("pnr", saga.PNR).
		WithField("state", string(saga.State)).
		Info("stale saga compensated")
	return nil
}

func (s *Sweeper) releaseWithRetry(ctx context.Context, flightID string, seatCount int) error {
	var lastErr error
	for i := 0; i < releaseAttempts; i++ {
		lastErr = s.inventory.Release(ctx, flightID, seatCount, s.token)
		if lastErr == nil {
			return nil
		}
		if i == releaseAttempts-1 {
			break
		}
		backoff := time.Duration(1<<i) * s.releaseBackoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(lastErr, "failed after %d attempts", releaseAttempts)
}
