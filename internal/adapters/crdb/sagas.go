package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SerializationFailureCode = "40001"
)

// SagaRepository persists booking saga state. A row is written before the
// first inventory reservation and advanced before each later remote step,
// so a crash always leaves behind a record of what was reserved.
type SagaRepository struct {
	pool *pgxpool.Pool
}

func NewSagaRepository(pool *pgxpool.Pool) *SagaRepository {
	return &SagaRepository{pool: pool}
}

func (r *SagaRepository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *SagaRepository) Insert(ctx context.Context, saga domain.BookingSaga) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_sagas (id, pnr, user_email, state, departure_flight_id, return_flight_id, seat_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, now(), now())
	`, saga.ID, saga.PNR, saga.UserEmail, saga.State, saga.DepartureFlightID, saga.ReturnFlightID, saga.SeatCount)
	return err
}

func (r *SagaRepository) UpdateState(ctx context.Context, id uuid.UUID, state domain.SagaState) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE booking_sagas SET state = $2, updated_at = now() WHERE id = $1
	`, id, state)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "saga %s", id)
	}
	return nil
}

// GetStale returns sagas stuck in a non-terminal state past the cutoff,
// locked so concurrent sweepers do not compensate the same booking twice.
func (r *SagaRepository) GetStale(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]domain.BookingSaga, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, pnr, user_email, state, departure_flight_id, COALESCE(return_flight_id, ''), seat_count, created_at, updated_at
		FROM booking_sagas
		WHERE state IN ('RESERVING_DEPARTURE', 'RESERVING_RETURN', 'PERSISTING', 'COMPENSATING_RETURN', 'COMPENSATION_FAILED')
		  AND updated_at <= $1
		ORDER BY updated_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sagas []domain.BookingSaga
	for rows.Next() {
		var s domain.BookingSaga
		err := rows.Scan(&s.ID, &s.PNR, &s.UserEmail, &s.State, &s.DepartureFlightID, &s.ReturnFlightID, &s.SeatCount, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		sagas = append(sagas, s)
	}
	return sagas, rows.Err()
}

func (r *SagaRepository) MarkInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.SagaState) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_sagas SET state = $2, updated_at = now() WHERE id = $1
	`, id, state)
	return err
}

func (r *SagaRepository) Get(ctx context.Context, id uuid.UUID) (*domain.BookingSaga, error) {
	var s domain.BookingSaga
	err := r.pool.QueryRow(ctx, `
		SELECT id, pnr, user_email, state, departure_flight_id, COALESCE(return_flight_id, ''), seat_count, created_at, updated_at
		FROM booking_sagas WHERE id = $1
	`, id).Scan(&s.ID, &s.PNR, &s.UserEmail, &s.State, &s.DepartureFlightID, &s.ReturnFlightID, &s.SeatCount, &s.CreatedAt, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(domain.ErrNotFound, "saga %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
