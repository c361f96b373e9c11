package booking

import (
	"context"
	"time"

	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/flights"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/google/uuid"
)

// TicketStore owns ticket persistence. Tickets are created once and only
// ever mutated by cancellation.
type TicketStore interface {
	Insert(ctx context.Context, t *domain.Ticket) error
	FindByPNR(ctx context.Context, pnr string) (*domain.Ticket, error)
	FindByUserEmail(ctx context.Context, email string) ([]domain.Ticket, error)
	MarkCanceled(ctx context.Context, id string) error
}

// PassengerStore persists per-seat passenger records. The store, not this
// package, enforces (flightID, seatNumber) uniqueness.
type PassengerStore interface {
	InsertBatch(ctx context.Context, passengers []domain.Passenger) error
	ExistsByFlightAndSeat(ctx context.Context, flightID, seatNumber string) (bool, error)
	FindByTicketID(ctx context.Context, ticketID string) ([]domain.Passenger, error)
}

// SagaLog is the durable saga-state record written before each remote
// inventory call.
type SagaLog interface {
	Insert(ctx context.Context, saga domain.BookingSaga) error
	UpdateState(ctx context.Context, id uuid.UUID, state domain.SagaState) error
}

// Emitter sends booking events. Implementations must not fail the saga on
// broker errors, hence the missing error return.
type Emitter interface {
	Emit(ctx context.Context, event domain.BookingEvent)
}

// AuditSink records operational alerts that outlive the request.
type AuditSink interface {
	LogCompensationFailure(ctx context.Context, saga domain.BookingSaga, cause, compensationErr error) error
}

// FlightCache fronts read-only flight lookups used for response enrichment.
type FlightCache interface {
	GetFlight(ctx context.Context, flightID string, out interface{}) (bool, error)
	SetFlight(ctx context.Context, flightID string, flight interface{}) error
}

type Service struct {
	tickets      TicketStore
	passengers   PassengerStore
	sagas        SagaLog
	inventory    flights.Inventory
	emitter      Emitter
	audit        AuditSink
	cache        FlightCache
	logger       observability.Logger
	cancelWindow time.Duration
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, for the cancellation-window tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithFlightCache(cache FlightCache) Option {
	return func(s *Service) { s.cache = cache }
}

func NewService(
	tickets TicketStore,
	passengers PassengerStore,
	sagas SagaLog,
	inventory flights.Inventory,
	emitter Emitter,
	audit AuditSink,
	logger observability.Logger,
	cancelWindow time.Duration,
	opts ...Option,
) *Service {
	s := &Service{
		tickets:      tickets,
		passengers:   passengers,
		sagas:        sagas,
		inventory:    inventory,
		emitter:      emitter,
		audit:        audit,
		logger:       logger,
		cancelWindow: cancelWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
