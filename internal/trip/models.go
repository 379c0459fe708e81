package trip

import (
	"math"
	"time"

	"backend-travelplanner/internal/itinerary"
)

type Trip struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	ImageURL      *string   `json:"image_url"`
	UserID        string    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	LocationCount int       `json:"location_count"`
	DurationDays  int       `json:"duration_days"`
}

// Detail is a trip with its itinerary in order.
type Detail struct {
	Trip
	Locations []itinerary.Location `json:"locations"`
}

// TripInput is the create and update payload. Dates are calendar days
// (2006-01-02) or RFC 3339 timestamps.
type TripInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	StartDate   string  `json:"start_date" validate:"required"`
	EndDate     string  `json:"end_date" validate:"required"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

type Dashboard struct {
	TotalTrips     int    `json:"total_trips"`
	UpcomingTrips  int    `json:"upcoming_trips"`
	TotalLocations int    `json:"total_locations"`
	RecentTrips    []Trip `json:"recent_trips"`
}

// recentLimit is how many trips the dashboard lists.
const recentLimit = 6

func durationDays(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Hours()/24)) + 1
}
