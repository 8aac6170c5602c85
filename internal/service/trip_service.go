// Package service provides the business logic layer (use cases).
// TripService owns the ledger's application state and is the only writer
// of it: every change goes through the store first and reaches the Book
// only once the store has accepted it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/trips")

// Resync reasons, used as metric labels.
const (
	ResyncManual   = "manual"
	ResyncNotFound = "not_found"
	ResyncStartup  = "startup"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"

	resyncTimeout = 30 * time.Second
)

// TripService serves trip mutations and ledger summaries.
type TripService struct {
	store    port.TripStore
	model    *ledger.Model
	notifier port.Notifier
	cache    port.Cache[ledger.Summary]
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu        sync.RWMutex
	book      *Book
	locks     *keyedLock
	resyncing atomic.Bool
}

// NewTripService creates a service with an empty Book at version 0.
func NewTripService(
	store port.TripStore,
	model *ledger.Model,
	notifier port.Notifier,
	cache port.Cache[ledger.Summary],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TripService {
	return &TripService{
		store:    store,
		model:    model,
		notifier: notifier,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		book:     newBook(0, nil),
		locks:    newKeyedLock(),
	}
}

// Book returns the current snapshot.
func (s *TripService) Book() *Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book
}

// Model exposes the record model, e.g. for its clock.
func (s *TripService) Model() *ledger.Model {
	return s.model
}

// ============================================================
// Sync
// ============================================================

// Sync reloads every trip from the store. If the Book changed while the list
// call was in flight the response is stale and is dropped; the current Book
// is returned instead.
func (s *TripService) Sync(ctx context.Context, reason string) (*Book, error) {
	ctx, span := tracer.Start(ctx, "TripService.Sync")
	defer span.End()
	span.SetAttributes(attribute.String("sync.reason", reason))

	issued := s.Book().Version

	trips, err := s.store.ListTrips(ctx)
	if err != nil {
		s.logger.Error("sync failed", zap.String("reason", reason), zap.Error(err))
		s.notifier.Notify(ctx, "Could not load trips: "+err.Error(), domain.SeverityError)
		return nil, err
	}

	normalized := make([]domain.TripRecord, 0, len(trips))
	for _, t := range trips {
		normalized = append(normalized, s.model.Normalize(t))
	}

	s.mu.Lock()
	if s.book.Version != issued {
		current := s.book
		s.mu.Unlock()
		s.metrics.IncrStaleDiscard()
		s.logger.Info("discarding stale sync response",
			zap.Uint64("issued_version", issued),
			zap.Uint64("current_version", current.Version),
		)
		return current, nil
	}
	next := newBook(issued+1, normalized)
	s.book = next
	s.mu.Unlock()

	s.metrics.IncrResync(reason)
	s.metrics.SetBook(next.Version, len(next.Trips))
	s.logger.Info("trips synced",
		zap.String("reason", reason),
		zap.Int("trips", len(next.Trips)),
		zap.Uint64("version", next.Version),
	)
	return next, nil
}

// resyncInBackground starts at most one background Sync at a time.
func (s *TripService) resyncInBackground(reason string) {
	if !s.resyncing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.resyncing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
		defer cancel()
		if _, err := s.Sync(ctx, reason); err != nil {
			s.logger.Warn("background resync failed", zap.String("reason", reason), zap.Error(err))
		}
	}()
}

// ============================================================
// Reads
// ============================================================

// ListTrips returns the trips in r (all trips when r is nil) with their
// derived financials.
func (s *TripService) ListTrips(ctx context.Context, r *ledger.Range) ([]ledger.TripView, error) {
	_, span := tracer.Start(ctx, "TripService.ListTrips")
	defer span.End()

	trips := s.Book().Trips
	if r != nil {
		var err error
		if trips, err = ledger.FilterByRange(trips, r.Start, r.End); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("trips.count", len(trips)))
	return ledger.Views(trips), nil
}

// GetTrip returns one trip with its financials.
func (s *TripService) GetTrip(ctx context.Context, id string) (ledger.TripView, error) {
	_, span := tracer.Start(ctx, "TripService.GetTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", id))

	t, ok := s.Book().Get(id)
	if !ok {
		return ledger.TripView{}, &domain.ErrNotFound{Resource: "trip", ID: id}
	}
	return ledger.TripView{TripRecord: t.Clone(), Financials: ledger.DeriveFinancials(t)}, nil
}

// Financials derives the per-trip figures of one trip.
func (s *TripService) Financials(ctx context.Context, id string) (ledger.Financials, error) {
	v, err := s.GetTrip(ctx, id)
	if err != nil {
		return ledger.Financials{}, err
	}
	return v.Financials, nil
}

// InstallmentPreview lays out the parcels of a credit purchase.
func (s *TripService) InstallmentPreview(ctx context.Context, in domain.InstallmentInput) (ledger.InstallmentPreview, error) {
	_, span := tracer.Start(ctx, "TripService.InstallmentPreview")
	defer span.End()

	if in.FirstDate == "" {
		return ledger.InstallmentPreview{}, &domain.ErrMissingField{Field: "firstDate"}
	}
	first, err := domain.ParseDate(in.FirstDate)
	if err != nil {
		return ledger.InstallmentPreview{}, err
	}
	return ledger.InstallmentSchedule(in.Count.Int(), in.Amount.Money(), first, in.DueDay.Int())
}

// ============================================================
// Mutations
// ============================================================

// CreateTrip validates the submission, stores it and adds it to the Book.
// When the store assigns its own id the trip is kept under that id.
func (s *TripService) CreateTrip(ctx context.Context, in domain.TripInput) (ledger.TripView, error) {
	ctx, span := tracer.Start(ctx, "TripService.CreateTrip")
	defer span.End()

	const op = "create"

	trip, err := s.model.CreateTrip(in)
	if err != nil {
		return ledger.TripView{}, s.fail(ctx, op, "", err)
	}

	err = s.mutate(ctx, op, trip.ID, func() error {
		res, err := s.store.CreateTrip(ctx, trip)
		if err != nil {
			return err
		}
		if res.ID != "" && res.ID != trip.ID {
			s.logger.Debug("store assigned trip id", zap.String("local_id", trip.ID), zap.String("trip_id", res.ID))
			trip.ID = res.ID
		}
		s.apply(func(b *Book) *Book { return b.put(trip) })
		return nil
	})
	if err != nil {
		return ledger.TripView{}, err
	}
	span.SetAttributes(attribute.String("trip.id", trip.ID))
	s.succeed(ctx, op, trip.ID, "Trip saved successfully")
	return ledger.TripView{TripRecord: trip, Financials: ledger.DeriveFinancials(trip)}, nil
}

// UpdateTrip replaces the trip's own fields, keeping its misc costs.
func (s *TripService) UpdateTrip(ctx context.Context, id string, in domain.TripInput) (ledger.TripView, error) {
	ctx, span := tracer.Start(ctx, "TripService.UpdateTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", id))

	return s.rewrite(ctx, "update", id, "Trip updated successfully", func(t domain.TripRecord) (domain.TripRecord, error) {
		return s.model.UpdateTrip(t, in)
	})
}

// AddMiscCost appends a cost item to a trip.
func (s *TripService) AddMiscCost(ctx context.Context, tripID string, in domain.MiscCostInput) (ledger.TripView, error) {
	ctx, span := tracer.Start(ctx, "TripService.AddMiscCost")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", tripID))

	return s.rewrite(ctx, "add_cost", tripID, "Cost added successfully", func(t domain.TripRecord) (domain.TripRecord, error) {
		return s.model.AddMiscCost(t, in)
	})
}

// EditMiscCost replaces a cost item in place.
func (s *TripService) EditMiscCost(ctx context.Context, tripID, costID string, in domain.MiscCostInput) (ledger.TripView, error) {
	ctx, span := tracer.Start(ctx, "TripService.EditMiscCost")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", tripID), attribute.String("cost.id", costID))

	return s.rewrite(ctx, "edit_cost", tripID, "Cost updated successfully", func(t domain.TripRecord) (domain.TripRecord, error) {
		return s.model.EditMiscCost(t, costID, in)
	})
}

// RemoveMiscCost deletes a cost item from a trip.
func (s *TripService) RemoveMiscCost(ctx context.Context, tripID, costID string) (ledger.TripView, error) {
	ctx, span := tracer.Start(ctx, "TripService.RemoveMiscCost")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", tripID), attribute.String("cost.id", costID))

	return s.rewrite(ctx, "remove_cost", tripID, "Cost removed successfully", func(t domain.TripRecord) (domain.TripRecord, error) {
		return s.model.RemoveMiscCost(t, costID)
	})
}

// DeleteTrip removes a trip and its misc costs.
func (s *TripService) DeleteTrip(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TripService.DeleteTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", id))

	const op = "delete"

	err := s.mutate(ctx, op, id, func() error {
		if _, ok := s.Book().Get(id); !ok {
			return &domain.ErrNotFound{Resource: "trip", ID: id}
		}
		if _, err := s.store.DeleteTrip(ctx, id); err != nil {
			return err
		}
		s.apply(func(b *Book) *Book { return b.remove(id) })
		return nil
	})
	if err != nil {
		return err
	}
	s.succeed(ctx, op, id, "Trip deleted successfully")
	return nil
}

// rewrite runs a read-modify-write of one trip under its lock. The store is
// written before the Book; on failure the Book is left as it was.
func (s *TripService) rewrite(ctx context.Context, op, id, successMsg string, change func(domain.TripRecord) (domain.TripRecord, error)) (ledger.TripView, error) {
	var updated domain.TripRecord
	err := s.mutate(ctx, op, id, func() error {
		current, ok := s.Book().Get(id)
		if !ok {
			return &domain.ErrNotFound{Resource: "trip", ID: id}
		}
		next, err := change(current)
		if err != nil {
			return err
		}
		if _, err := s.store.UpdateTrip(ctx, id, next); err != nil {
			return err
		}
		s.apply(func(b *Book) *Book { return b.put(next) })
		updated = next
		return nil
	})
	if err != nil {
		return ledger.TripView{}, err
	}
	s.succeed(ctx, op, id, successMsg)
	return ledger.TripView{TripRecord: updated, Financials: ledger.DeriveFinancials(updated)}, nil
}

// mutate runs fn while holding the trip's lock. A failure is reported after
// the lock is released so a slow notifier never holds the trip busy.
func (s *TripService) mutate(ctx context.Context, op, id string, fn func() error) error {
	if !s.locks.TryLock(id) {
		s.metrics.IncrConflict(op)
		s.logger.Info("mutation rejected: trip busy", zap.String("operation", op), zap.String("trip_id", id))
		return &domain.ErrConflict{Message: fmt.Sprintf("mutation already in flight for trip %s", id)}
	}
	err := func() error {
		defer s.locks.Unlock(id)
		return fn()
	}()

	if err != nil {
		return s.fail(ctx, op, id, err)
	}
	return nil
}

func (s *TripService) apply(change func(*Book) *Book) {
	s.mu.Lock()
	next := change(s.book)
	s.book = next
	s.mu.Unlock()
	s.metrics.SetBook(next.Version, len(next.Trips))
}

func (s *TripService) succeed(ctx context.Context, op, id, message string) {
	s.metrics.IncrMutation(op, outcomeSuccess)
	s.logger.Info("mutation applied", zap.String("operation", op), zap.String("trip_id", id))
	s.notifier.Notify(ctx, message, domain.SeveritySuccess)
}

// fail records a failed mutation and tells the user. A trip the store does
// not know about means the Book is behind, so a resync is started.
func (s *TripService) fail(ctx context.Context, op, id string, err error) error {
	s.metrics.IncrMutation(op, outcomeError)
	s.logger.Warn("mutation failed", zap.String("operation", op), zap.String("trip_id", id), zap.Error(err))
	s.notifier.Notify(ctx, err.Error(), domain.SeverityError)

	var nf *domain.ErrNotFound
	if errors.As(err, &nf) && nf.Resource == "trip" {
		s.resyncInBackground(ResyncNotFound)
	}
	return err
}
