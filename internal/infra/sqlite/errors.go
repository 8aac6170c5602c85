package sqlite

import (
	"context"
	"errors"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
)

const serviceName = "sqlite"

// classify maps database failures onto the domain error types. Not-found and
// conflict pass through; anything else is a persistence failure.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}

	var (
		notFound *domain.ErrNotFound
		conflict *domain.ErrConflict
	)
	switch {
	case errors.As(err, &notFound):
		return notFound
	case errors.As(err, &conflict):
		return conflict
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: serviceName + "." + operation}
	}
	return &domain.ErrExternalService{Service: serviceName + "/" + operation, Err: err}
}
