package itinerary

import "time"

// Location is one stop of a trip. Order is its rank among the trip's
// locations, starting at zero.
type Location struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Location  string    `json:"location"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

type Itinerary struct {
	TripID          string     `json:"trip_id"`
	Locations       []Location `json:"locations"`
	TotalDistanceKm float64    `json:"total_distance_km"`
}

type AddLocationRequest struct {
	Address string `json:"address" validate:"required"`
}

type ReorderRequest struct {
	OrderedLocationIDs []string `json:"orderedLocationIds"`
}

const (
	EventLocationAdded   = "location_added"
	EventLocationRemoved = "location_removed"
	EventReordered       = "reordered"
)

// Event is pushed to itinerary viewers after a committed change.
type Event struct {
	Type      string     `json:"type"`
	TripID    string     `json:"trip_id"`
	Locations []Location `json:"locations"`
}
