package itinerary

import (
	"context"
	"errors"
	"strings"

	"backend-travelplanner/internal/auth"
	"backend-travelplanner/internal/logging"
	"backend-travelplanner/internal/metrics"
	"backend-travelplanner/internal/shared/apperr"
	"backend-travelplanner/internal/shared/geo"

	"github.com/goccy/go-json"
)

// Geocoder resolves an address before a location is stored.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

// Publisher fans committed itinerary changes out to viewers.
type Publisher interface {
	Publish(tripID string, payload []byte)
}

type Service struct {
	store    Store
	geocoder Geocoder
	events   Publisher
}

func NewService(store Store, geocoder Geocoder, events Publisher) *Service {
	return &Service{store: store, geocoder: geocoder, events: events}
}

func (s *Service) List(ctx context.Context, session auth.Session, tripID string) (Itinerary, error) {
	if err := s.Authorize(ctx, session.UserID, tripID); err != nil {
		return Itinerary{}, err
	}
	locations, err := s.store.ListByTrip(ctx, tripID)
	if err != nil {
		return Itinerary{}, err
	}
	return newItinerary(tripID, locations), nil
}

// ListByTrip returns a trip's locations in itinerary order without an
// ownership check. Callers must have authorized the trip already.
func (s *Service) ListByTrip(ctx context.Context, tripID string) ([]Location, error) {
	return s.store.ListByTrip(ctx, tripID)
}

// AddLocation geocodes address and appends the result to the trip. Nothing
// is stored when geocoding fails.
func (s *Service) AddLocation(ctx context.Context, session auth.Session, tripID, address string) (Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Location{}, apperr.Validation("address", "is required")
	}
	if err := s.Authorize(ctx, session.UserID, tripID); err != nil {
		return Location{}, err
	}

	point, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		if apperr.IsKind(err, apperr.KindGeocode) || apperr.IsKind(err, apperr.KindValidation) {
			return Location{}, err
		}
		return Location{}, apperr.Geocode("geocoding failed", err)
	}

	var created Location
	var locations []Location
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := authorizeLocked(ctx, tx, session.UserID, tripID); err != nil {
			return err
		}
		count, err := tx.CountByTrip(ctx, tripID)
		if err != nil {
			return err
		}
		created, err = tx.Create(ctx, Location{
			TripID:   tripID,
			Location: address,
			Lat:      point.Lat,
			Lng:      point.Lng,
			Order:    count,
		})
		if err != nil {
			return err
		}
		locations, err = tx.ListByTrip(ctx, tripID)
		return err
	})
	if err != nil {
		return Location{}, ownerError(err)
	}

	metrics.LocationsCreated.Inc()
	s.publish(EventLocationAdded, tripID, locations)
	return created, nil
}

// Reorder replaces the trip's ordering with orderedIDs. The trip row stays
// locked from the ownership check to commit, so concurrent reorders of one
// trip apply one after the other and readers never see a partial order.
func (s *Service) Reorder(ctx context.Context, session auth.Session, tripID string, orderedIDs []string) ([]Location, error) {
	var locations []Location
	changed := false
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := authorizeLocked(ctx, tx, session.UserID, tripID); err != nil {
			return err
		}
		current, err := tx.ListByTrip(ctx, tripID)
		if err != nil {
			return err
		}
		plan, err := Reconcile(current, orderedIDs)
		if err != nil {
			return err
		}
		if len(plan.Changes) == 0 {
			locations = current
			return nil
		}
		if err := tx.ApplyOrders(ctx, tripID, plan.Changes); err != nil {
			return err
		}
		changed = true
		locations, err = tx.ListByTrip(ctx, tripID)
		return err
	})
	if err != nil {
		err = ownerError(err)
		metrics.Reorders.WithLabelValues(reorderResult(err)).Inc()
		return nil, err
	}

	if !changed {
		metrics.Reorders.WithLabelValues("noop").Inc()
		return locations, nil
	}
	metrics.Reorders.WithLabelValues("ok").Inc()
	s.publish(EventReordered, tripID, locations)
	return locations, nil
}

// RemoveLocation deletes one location and closes the gap it leaves.
func (s *Service) RemoveLocation(ctx context.Context, session auth.Session, tripID, locationID string) ([]Location, error) {
	var locations []Location
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := authorizeLocked(ctx, tx, session.UserID, tripID); err != nil {
			return err
		}
		deleted, err := tx.Delete(ctx, tripID, locationID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFound("location not found")
		}
		locations, err = tx.ListByTrip(ctx, tripID)
		if err != nil {
			return err
		}
		return tx.ApplyOrders(ctx, tripID, Densify(locations))
	})
	if err != nil {
		return nil, ownerError(err)
	}

	s.publish(EventLocationRemoved, tripID, locations)
	return locations, nil
}

// Authorize reports whether userID owns tripID. An absent trip and a trip
// owned by someone else produce the same error.
func (s *Service) Authorize(ctx context.Context, userID, tripID string) error {
	if userID == "" {
		return apperr.Authentication("login required")
	}
	owner, err := s.store.TripOwner(ctx, tripID, false)
	if err != nil {
		return ownerError(err)
	}
	if owner != userID {
		return apperr.Authorization()
	}
	return nil
}

func authorizeLocked(ctx context.Context, tx Store, userID, tripID string) error {
	if userID == "" {
		return apperr.Authentication("login required")
	}
	owner, err := tx.TripOwner(ctx, tripID, true)
	if err != nil {
		return err
	}
	if owner != userID {
		return apperr.Authorization()
	}
	return nil
}

func ownerError(err error) error {
	if errors.Is(err, errTripNotFound) {
		return apperr.Authorization()
	}
	return err
}

func reorderResult(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid"
	case apperr.KindAuthorization, apperr.KindAuthentication:
		return "forbidden"
	default:
		return "error"
	}
}

func (s *Service) publish(kind, tripID string, locations []Location) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(Event{Type: kind, TripID: tripID, Locations: locations})
	if err != nil {
		logging.Warn().Err(err).Str("trip_id", tripID).Msg("encode itinerary event")
		return
	}
	s.events.Publish(tripID, payload)
}

func newItinerary(tripID string, locations []Location) Itinerary {
	points := make([]geo.Point, len(locations))
	for i, l := range locations {
		points[i] = geo.Point{Lat: l.Lat, Lng: l.Lng}
	}
	return Itinerary{TripID: tripID, Locations: locations, TotalDistanceKm: geo.PathKm(points)}
}
