package trip

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"backend-travelplanner/internal/db"
	"backend-travelplanner/internal/itinerary"
	"backend-travelplanner/internal/shared/apperr"
	"backend-travelplanner/internal/shared/validate"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LocationLister supplies a trip's locations in itinerary order.
type LocationLister interface {
	ListByTrip(ctx context.Context, tripID string) ([]itinerary.Location, error)
}

type Service struct {
	db        db.Querier
	locations LocationLister
}

func NewService(db db.Querier, locations LocationLister) *Service {
	return &Service{db: db, locations: locations}
}

const tripColumns = `
	t.id, t.title, t.description, t.start_date, t.end_date, t.image_url, t.user_id, t.created_at,
	(SELECT COUNT(*) FROM locations l WHERE l.trip_id = t.id)`

func (s *Service) CreateTrip(ctx context.Context, userID string, input TripInput) (Trip, error) {
	trip, err := fromInput(input)
	if err != nil {
		return Trip{}, err
	}
	trip.ID = uuid.NewString()
	trip.UserID = userID

	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, title, description, start_date, end_date, image_url, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, trip.ID, trip.Title, trip.Description, trip.StartDate, trip.EndDate, trip.ImageURL, trip.UserID)
	if err := row.Scan(&trip.CreatedAt); err != nil {
		return Trip{}, apperr.Persistence(err)
	}
	trip.DurationDays = durationDays(trip.StartDate, trip.EndDate)
	return trip, nil
}

// ListTrips returns the caller's trips, latest start date first.
func (s *Service) ListTrips(ctx context.Context, userID string) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `SELECT `+tripColumns+`
		FROM trips t WHERE t.user_id=$1
		ORDER BY t.start_date DESC
	`, userID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, apperr.Persistence(err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err)
	}
	return trips, nil
}

func (s *Service) GetTrip(ctx context.Context, userID, id string) (Detail, error) {
	trip, err := s.ownedTrip(ctx, userID, id)
	if err != nil {
		return Detail{}, err
	}
	locations, err := s.locations.ListByTrip(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Trip: trip, Locations: locations}, nil
}

func (s *Service) UpdateTrip(ctx context.Context, userID, id string, input TripInput) (Trip, error) {
	current, err := s.ownedTrip(ctx, userID, id)
	if err != nil {
		return Trip{}, err
	}
	trip, err := fromInput(input)
	if err != nil {
		return Trip{}, err
	}
	trip.ID = current.ID
	trip.UserID = current.UserID
	trip.CreatedAt = current.CreatedAt
	trip.LocationCount = current.LocationCount

	_, err = s.db.Exec(ctx, `
		UPDATE trips
		SET title=$2, description=$3, start_date=$4, end_date=$5, image_url=$6
		WHERE id=$1 AND user_id=$7
	`, trip.ID, trip.Title, trip.Description, trip.StartDate, trip.EndDate, trip.ImageURL, userID)
	if err != nil {
		return Trip{}, apperr.Persistence(err)
	}
	trip.DurationDays = durationDays(trip.StartDate, trip.EndDate)
	return trip, nil
}

// DeleteTrip removes the trip; its locations go with it.
func (s *Service) DeleteTrip(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trips WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return apperr.Persistence(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Authorization()
	}
	return nil
}

// Dashboard summarises the caller's trips. A trip is upcoming when it
// starts on or after the start of today.
func (s *Service) Dashboard(ctx context.Context, userID string, now time.Time) (Dashboard, error) {
	trips, err := s.ListTrips(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	out := Dashboard{TotalTrips: len(trips), RecentTrips: []Trip{}}
	for _, t := range trips {
		if !t.StartDate.Before(today) {
			out.UpcomingTrips++
		}
		out.TotalLocations += t.LocationCount
	}

	recent := append([]Trip(nil), trips...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	out.RecentTrips = append(out.RecentTrips, recent...)
	return out, nil
}

func (s *Service) ownedTrip(ctx context.Context, userID, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+`
		FROM trips t WHERE t.id=$1
	`, id)
	trip, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, apperr.Authorization()
	}
	if err != nil {
		return Trip{}, apperr.Persistence(err)
	}
	if trip.UserID != userID {
		return Trip{}, apperr.Authorization()
	}
	return trip, nil
}

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.StartDate, &t.EndDate, &t.ImageURL, &t.UserID, &t.CreatedAt, &t.LocationCount); err != nil {
		return Trip{}, err
	}
	t.DurationDays = durationDays(t.StartDate, t.EndDate)
	return t, nil
}

func fromInput(input TripInput) (Trip, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.ImageURL != nil && strings.TrimSpace(*input.ImageURL) == "" {
		input.ImageURL = nil
	}
	if err := validate.Struct(input); err != nil {
		return Trip{}, err
	}
	start, err := parseDate(input.StartDate)
	if err != nil {
		return Trip{}, apperr.Validation("start_date", "must be a date")
	}
	end, err := parseDate(input.EndDate)
	if err != nil {
		return Trip{}, apperr.Validation("end_date", "must be a date")
	}
	if end.Before(start) {
		return Trip{}, apperr.Validation("end_date", "must not be before start_date")
	}
	return Trip{
		Title:       input.Title,
		Description: input.Description,
		StartDate:   start,
		EndDate:     end,
		ImageURL:    input.ImageURL,
	}, nil
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
