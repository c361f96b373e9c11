package domain

// Itinerary binds the one or two legs of a booking. Construct through
// OneWay or RoundTrip so a round trip without a return leg cannot exist.
type Itinerary struct {
	Departure string
	Return    string
}

func OneWay(departureFlightID string) Itinerary {
	return Itinerary{Departure: departureFlightID}
}

func RoundTrip(departureFlightID, returnFlightID string) Itinerary {
	return Itinerary{Departure: departureFlightID, Return: returnFlightID}
}

func (i Itinerary) HasReturn() bool {
	return i.Return != ""
}

func (i Itinerary) TripType() TripType {
	if i.HasReturn() {
		return TripRoundTrip
	}
	return TripOneWay
}
