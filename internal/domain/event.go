package domain

type EventType string

const (
	EventBookingConfirmed EventType = "BOOKING_CONFIRMED"
	EventBookingCancelled EventType = "BOOKING_CANCELLED"
)

// BookingEvent is the transient message handed to the event emitter.
// It is not persisted by this service.
type BookingEvent struct {
	EventType  EventType `json:"eventType"`
	PNR        string    `json:"pnr"`
	UserEmail  string    `json:"userEmail"`
	TotalPrice float64   `json:"totalPrice"`
}

func NewBookingEvent(eventType EventType, t Ticket) BookingEvent {
	return BookingEvent{
		EventType:  eventType,
		PNR:        t.PNR,
		UserEmail:  t.UserEmail,
		TotalPrice: t.TotalPrice,
	}
}
