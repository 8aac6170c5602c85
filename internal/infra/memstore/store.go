// Package memstore is an in-process TripStore. It backs local development
// and tests, and mirrors the collaborator's reply shapes.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// Store keeps trips in memory, copying on every read and write.
type Store struct {
	mu     sync.RWMutex
	trips  map[string]domain.TripRecord
	order  []string
	logger *zap.Logger
}

// New creates an empty store, optionally seeded.
func New(logger *zap.Logger, seed ...domain.TripRecord) *Store {
	s := &Store{trips: make(map[string]domain.TripRecord), logger: logger}
	for _, t := range seed {
		s.trips[t.ID] = t.Clone()
		s.order = append(s.order, t.ID)
	}
	return s
}

// ListTrips returns every trip, newest date first.
func (s *Store) ListTrips(ctx context.Context) ([]domain.TripRecord, error) {
	if err := checkContext(ctx, "list"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TripRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.trips[id].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// CreateTrip stores a new trip under its own id.
func (s *Store) CreateTrip(ctx context.Context, trip domain.TripRecord) (domain.MutationResult, error) {
	if err := checkContext(ctx, "create"); err != nil {
		return domain.MutationResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[trip.ID]; exists {
		return domain.MutationResult{Success: false, Message: "trip already exists"}, &domain.ErrConflict{Message: "trip already exists: " + trip.ID}
	}
	s.trips[trip.ID] = trip.Clone()
	s.order = append(s.order, trip.ID)

	s.logger.Debug("memstore: trip created", zap.String("trip_id", trip.ID))
	return domain.MutationResult{Success: true, Message: "trip created", ID: trip.ID}, nil
}

// UpdateTrip replaces a stored trip.
func (s *Store) UpdateTrip(ctx context.Context, id string, trip domain.TripRecord) (domain.MutationResult, error) {
	if err := checkContext(ctx, "update"); err != nil {
		return domain.MutationResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[id]; !ok {
		return domain.MutationResult{Success: false, Message: "trip not found"}, &domain.ErrNotFound{Resource: "trip", ID: id}
	}
	stored := trip.Clone()
	stored.ID = id
	s.trips[id] = stored

	s.logger.Debug("memstore: trip updated", zap.String("trip_id", id))
	return domain.MutationResult{Success: true, Message: "trip updated", ID: id}, nil
}

// DeleteTrip removes a trip and, with it, its misc costs.
func (s *Store) DeleteTrip(ctx context.Context, id string) (domain.MutationResult, error) {
	if err := checkContext(ctx, "delete"); err != nil {
		return domain.MutationResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[id]; !ok {
		return domain.MutationResult{Success: false, Message: "trip not found"}, &domain.ErrNotFound{Resource: "trip", ID: id}
	}
	delete(s.trips, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Debug("memstore: trip deleted", zap.String("trip_id", id))
	return domain.MutationResult{Success: true, Message: "trip deleted", ID: id}, nil
}

// checkContext reports a cancelled or expired request the way remote stores
// do, so callers see the same error types whatever the backend.
func checkContext(ctx context.Context, operation string) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: "memstore." + operation}
	default:
		return &domain.ErrExternalService{Service: "memstore/" + operation, Err: err}
	}
}
