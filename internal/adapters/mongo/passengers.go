package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PassengerRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewPassengerRepository(db *mongo.Database, logger observability.Logger) *PassengerRepository {
	return &PassengerRepository{
		coll:   db.Collection("passengers"),
		logger: logger,
	}
}

type passengerDoc struct {
	ID             string `bson:"_id"`
	FlightID       string `bson:"flight_id"`
	Name           string `bson:"name"`
	Gender         string `bson:"gender"`
	Age            int    `bson:"age"`
	SeatNumber     string `bson:"seat_number"`
	MealPreference string `bson:"meal_preference,omitempty"`
	TicketID       string `bson:"ticket_id"`
}

// EnsureIndexes creates the unique (flight_id, seat_number) index. This
// index, not the availability check, is the real seat-uniqueness
// enforcement point.
func (r *PassengerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "flight_id", Value: 1},
			{Key: "seat_number", Value: 1},
		},
		Options: options.Index().SetName("unique_seat_per_flight").SetUnique(true),
	})
	return err
}

// InsertBatch saves the booking's passenger records. A duplicate-key error
// means another booking won the seat between our availability check and now.
func (r *PassengerRepository) InsertBatch(ctx context.Context, passengers []domain.Passenger) error {
	docs := make([]interface{}, len(passengers))
	for i, p := range passengers {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		docs[i] = passengerDoc{
			ID:             p.ID,
			FlightID:       p.FlightID,
			Name:           p.Name,
			Gender:         p.Gender,
			Age:            p.Age,
			SeatNumber:     p.SeatNumber,
			MealPreference: p.MealPreference,
			TicketID:       p.TicketID,
		}
	}
	_, err := r.coll.InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(domain.ErrConflict, "seat already assigned on this flight")
	}
	if err != nil {
		r.logger.WithError(err).Error("failed to insert passengers")
	}
	return err
}

// ExistsByFlightAndSeat is the advisory fast-path check used before any
// reservation call is made.
func (r *PassengerRepository) ExistsByFlightAndSeat(ctx context.Context, flightID, seatNumber string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"flight_id":   flightID,
		"seat_number": seatNumber,
	}, countLimitOne())
	return n > 0, err
}

func (r *PassengerRepository) FindByTicketID(ctx context.Context, ticketID string) ([]domain.Passenger, error) {
	cur, err := r.coll.Find(ctx, bson.M{"ticket_id": ticketID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var passengers []domain.Passenger
	for cur.Next(ctx) {
		var doc passengerDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		passengers = append(passengers, domain.Passenger{
			ID:             doc.ID,
			FlightID:       doc.FlightID,
			Name:           doc.Name,
			Gender:         doc.Gender,
			Age:            doc.Age,
			SeatNumber:     doc.SeatNumber,
			MealPreference: doc.MealPreference,
			TicketID:       doc.TicketID,
		})
	}
	return passengers, cur.Err()
}

func countLimitOne() *options.CountOptions {
	return options.Count().SetLimit(1)
}
