package itinerary

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"backend-travelplanner/internal/shared/apperr"
	"backend-travelplanner/internal/shared/geo"
)

// memDB is a committed snapshot plus a transaction lock. Transactions work
// on a clone that replaces the snapshot on commit, so readers outside a
// transaction only ever see committed states.
type memDB struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	owners    map[string]string
	locations map[string]Location
	seq       int

	failApply error
}

func newMemDB() *memDB {
	return &memDB{owners: map[string]string{}, locations: map[string]Location{}}
}

func (d *memDB) addTrip(tripID, owner string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[tripID] = owner
}

func (d *memDB) seed(tripID string, ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, id := range ids {
		d.locations[id] = Location{ID: id, TripID: tripID, Location: id, Lat: float64(i), Lng: float64(i), Order: i}
	}
}

func (d *memDB) store() *memStore {
	return &memStore{db: d}
}

type memState struct {
	owners    map[string]string
	locations map[string]Location
}

type memStore struct {
	db     *memDB
	staged *memState
}

func (s *memStore) view(fn func(st *memState)) {
	if s.staged != nil {
		fn(s.staged)
		return
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	fn(&memState{owners: s.db.owners, locations: s.db.locations})
}

func (s *memStore) write(fn func(st *memState) error) error {
	if s.staged != nil {
		return fn(s.staged)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(&memState{owners: s.db.owners, locations: s.db.locations})
}

func (s *memStore) Create(_ context.Context, loc Location) (Location, error) {
	err := s.write(func(st *memState) error {
		for _, l := range st.locations {
			if l.TripID == loc.TripID && l.Order == loc.Order {
				return apperr.Persistence(fmt.Errorf("duplicate sort_order %d", loc.Order))
			}
		}
		s.db.seq++
		if loc.ID == "" {
			loc.ID = fmt.Sprintf("loc-%d", s.db.seq)
		}
		loc.CreatedAt = time.Unix(int64(s.db.seq), 0)
		st.locations[loc.ID] = loc
		return nil
	})
	return loc, err
}

func (s *memStore) ListByTrip(_ context.Context, tripID string) ([]Location, error) {
	locations := []Location{}
	s.view(func(st *memState) {
		for _, l := range st.locations {
			if l.TripID == tripID {
				locations = append(locations, l)
			}
		}
	})
	sort.Slice(locations, func(i, j int) bool { return locations[i].Order < locations[j].Order })
	return locations, nil
}

func (s *memStore) UpdateOrder(_ context.Context, id string, order int) error {
	return s.write(func(st *memState) error {
		l, ok := st.locations[id]
		if !ok {
			return apperr.NotFound("location not found")
		}
		l.Order = order
		st.locations[id] = l
		return nil
	})
}

func (s *memStore) CountByTrip(ctx context.Context, tripID string) (int, error) {
	locations, err := s.ListByTrip(ctx, tripID)
	return len(locations), err
}

func (s *memStore) ApplyOrders(_ context.Context, tripID string, updates []OrderUpdate) error {
	if s.db.failApply != nil && len(updates) > 0 {
		return apperr.Persistence(s.db.failApply)
	}
	return s.write(func(st *memState) error {
		for _, u := range updates {
			l, ok := st.locations[u.ID]
			if !ok || l.TripID != tripID {
				return apperr.Persistence(fmt.Errorf("location %s not in trip", u.ID))
			}
			l.Order = u.Order
			st.locations[u.ID] = l
		}
		return nil
	})
}

func (s *memStore) Delete(_ context.Context, tripID, id string) (bool, error) {
	var deleted bool
	err := s.write(func(st *memState) error {
		if l, ok := st.locations[id]; ok && l.TripID == tripID {
			delete(st.locations, id)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (s *memStore) TripOwner(_ context.Context, tripID string, _ bool) (string, error) {
	var owner string
	var ok bool
	s.view(func(st *memState) { owner, ok = st.owners[tripID] })
	if !ok {
		return "", errTripNotFound
	}
	return owner, nil
}

// InTx holds the transaction lock for the whole of fn, which stands in for
// the trip row lock.
func (s *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.RLock()
	staged := &memState{owners: map[string]string{}, locations: map[string]Location{}}
	for k, v := range s.db.owners {
		staged.owners[k] = v
	}
	for k, v := range s.db.locations {
		staged.locations[k] = v
	}
	s.db.mu.RUnlock()

	if err := fn(&memStore{db: s.db, staged: staged}); err != nil {
		return err
	}

	s.db.mu.Lock()
	s.db.owners = staged.owners
	s.db.locations = staged.locations
	s.db.mu.Unlock()
	return nil
}

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (geo.Point, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return geo.Point{}, g.err
	}
	return geo.Point{Lat: float64(len(address)), Lng: float64(g.calls)}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(tripID string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, tripID+" "+string(payload))
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
