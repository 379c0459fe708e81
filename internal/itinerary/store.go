package itinerary

import (
	"context"
	"errors"
	"fmt"

	"backend-travelplanner/internal/db"
	"backend-travelplanner/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errTripNotFound = errors.New("trip not found")

// Store is the persisted location list of a trip. Implementations returned
// by InTx see and write the same transaction.
type Store interface {
	Create(ctx context.Context, loc Location) (Location, error)
	ListByTrip(ctx context.Context, tripID string) ([]Location, error)
	UpdateOrder(ctx context.Context, id string, order int) error
	CountByTrip(ctx context.Context, tripID string) (int, error)
	ApplyOrders(ctx context.Context, tripID string, updates []OrderUpdate) error
	Delete(ctx context.Context, tripID, id string) (bool, error)
	// TripOwner returns the owning user of a trip. With lock set it holds
	// the trip row until the surrounding transaction ends.
	TripOwner(ctx context.Context, tripID string, lock bool) (string, error)
	InTx(ctx context.Context, fn func(Store) error) error
}

type PGStore struct {
	db db.Querier
}

func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{db: q}
}

func (s *PGStore) Create(ctx context.Context, loc Location) (Location, error) {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO locations (id, trip_id, location, lat, lng, sort_order)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, loc.ID, loc.TripID, loc.Location, loc.Lat, loc.Lng, loc.Order)
	if err := row.Scan(&loc.CreatedAt); err != nil {
		return Location{}, apperr.Persistence(err)
	}
	return loc, nil
}

func (s *PGStore) ListByTrip(ctx context.Context, tripID string) ([]Location, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, location, lat, lng, sort_order, created_at
		FROM locations WHERE trip_id=$1
		ORDER BY sort_order, created_at
	`, tripID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	defer rows.Close()

	locations := []Location{}
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.TripID, &l.Location, &l.Lat, &l.Lng, &l.Order, &l.CreatedAt); err != nil {
			return nil, apperr.Persistence(err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err)
	}
	return locations, nil
}

func (s *PGStore) UpdateOrder(ctx context.Context, id string, order int) error {
	tag, err := s.db.Exec(ctx, `UPDATE locations SET sort_order=$2 WHERE id=$1`, id, order)
	if err != nil {
		return apperr.Persistence(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("location not found")
	}
	return nil
}

func (s *PGStore) CountByTrip(ctx context.Context, tripID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM locations WHERE trip_id=$1`, tripID).Scan(&n); err != nil {
		return 0, apperr.Persistence(err)
	}
	return n, nil
}

// ApplyOrders writes every update in one statement.
func (s *PGStore) ApplyOrders(ctx context.Context, tripID string, updates []OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	ids := make([]string, len(updates))
	orders := make([]int32, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
		orders[i] = int32(u.Order)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE locations AS l
		SET sort_order = u.sort_order
		FROM unnest($2::text[], $3::int[]) AS u(id, sort_order)
		WHERE l.id = u.id AND l.trip_id = $1
	`, tripID, ids, orders)
	if err != nil {
		return apperr.Persistence(err)
	}
	if n := tag.RowsAffected(); n != int64(len(updates)) {
		return apperr.Persistence(fmt.Errorf("order update touched %d of %d locations", n, len(updates)))
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, tripID, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM locations WHERE id=$1 AND trip_id=$2`, id, tripID)
	if err != nil {
		return false, apperr.Persistence(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) TripOwner(ctx context.Context, tripID string, lock bool) (string, error) {
	query := `SELECT user_id FROM trips WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	var owner string
	if err := s.db.QueryRow(ctx, query, tripID).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errTripNotFound
		}
		return "", apperr.Persistence(err)
	}
	return owner, nil
}

func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PGStore{db: tx})
	})
	var appErr *apperr.Error
	if err != nil && !errors.As(err, &appErr) && !errors.Is(err, errTripNotFound) {
		return apperr.Persistence(err)
	}
	return err
}
