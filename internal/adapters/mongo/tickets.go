package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type TicketRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewTicketRepository(db *mongo.Database, logger observability.Logger) *TicketRepository {
	return &TicketRepository{
		coll:   db.Collection("tickets"),
		logger: logger,
	}
}

type ticketDoc struct {
	ID                string    `bson:"_id"`
	PNR               string    `bson:"pnr"`
	UserEmail         string    `bson:"user_email"`
	DepartureFlightID string    `bson:"departure_flight_id"`
	ReturnFlightID    string    `bson:"return_flight_id,omitempty"`
	TripType          string    `bson:"trip_type"`
	BookingTime       time.Time `bson:"booking_time"`
	SeatsBooked       string    `bson:"seats_booked"`
	SeatCount         int       `bson:"seat_count"`
	MealType          string    `bson:"meal_type,omitempty"`
	TotalPrice        float64   `bson:"total_price"`
	Canceled          bool      `bson:"canceled"`
}

func toTicketDoc(t domain.Ticket) ticketDoc {
	return ticketDoc{
		ID:                t.ID,
		PNR:               t.PNR,
		UserEmail:         t.UserEmail,
		DepartureFlightID: t.DepartureFlightID,
		ReturnFlightID:    t.ReturnFlightID,
		TripType:          string(t.TripType),
		BookingTime:       t.BookingTime,
		SeatsBooked:       t.SeatsBooked,
		SeatCount:         t.SeatCount,
		MealType:          t.MealType,
		TotalPrice:        t.TotalPrice,
		Canceled:          t.Canceled,
	}
}

func (d ticketDoc) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:                d.ID,
		PNR:               d.PNR,
		UserEmail:         d.UserEmail,
		DepartureFlightID: d.DepartureFlightID,
		ReturnFlightID:    d.ReturnFlightID,
		TripType:          domain.TripType(d.TripType),
		BookingTime:       d.BookingTime,
		SeatsBooked:       d.SeatsBooked,
		SeatCount:         d.SeatCount,
		MealType:          d.MealType,
		TotalPrice:        d.TotalPrice,
		Canceled:          d.Canceled,
	}
}

// Insert stores a new ticket and returns its assigned id.
func (r *TicketRepository) Insert(ctx context.Context, t *domain.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.coll.InsertOne(ctx, toTicketDoc(*t))
	if err != nil {
		r.logger.WithError(err).Error("failed to insert ticket")
		return err
	}
	return nil
}

func (r *TicketRepository) FindByPNR(ctx context.Context, pnr string) (*domain.Ticket, error) {
	var doc ticketDoc
	err := r.coll.FindOne(ctx, bson.M{"pnr": pnr}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(domain.ErrNotFound, "pnr %s", pnr)
	}
	if err != nil {
		return nil, err
	}
	t := doc.toDomain()
	return &t, nil
}

func (r *TicketRepository) ExistsByPNR(ctx context.Context, pnr string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"pnr": pnr}, countLimitOne())
	return n > 0, err
}

func (r *TicketRepository) FindByUserEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_email": email})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tickets []domain.Ticket
	for cur.Next(ctx) {
		var doc ticketDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		tickets = append(tickets, doc.toDomain())
	}
	return tickets, cur.Err()
}

// MarkCanceled flips canceled to true. The transition is one-directional;
// there is no way back to an active ticket.
func (r *TicketRepository) MarkCanceled(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"canceled": true}})
	if err != nil {
		r.logger.WithError(err).Error("failed to mark ticket canceled")
		return err
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(domain.ErrNotFound, "ticket %s", id)
	}
	return nil
}
