// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
)

// TripStore is the persistence collaborator for trip records.
// Implementations return the full record set on list; range filtering is
// done by the ledger, not the store.
type TripStore interface {
	ListTrips(ctx context.Context) ([]domain.TripRecord, error)
	CreateTrip(ctx context.Context, trip domain.TripRecord) (domain.MutationResult, error)
	UpdateTrip(ctx context.Context, id string, trip domain.TripRecord) (domain.MutationResult, error)
	DeleteTrip(ctx context.Context, id string) (domain.MutationResult, error)
}

// Notifier delivers user-facing messages. It is fire-and-forget: callers
// never depend on delivery succeeding.
type Notifier interface {
	Notify(ctx context.Context, message string, severity domain.Severity)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
