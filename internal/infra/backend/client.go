// Package backend is the TripStore that talks to the dashboard server over
// HTTP. Mutations carry the server's anti-forgery token; reads do not.
package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("backend")

const (
	serviceName = "backend"
	csrfKey     = "csrf"
	csrfCookie  = "csrftoken"
	csrfHeader  = "X-CSRFToken"
)

// errForbidden is returned for a 403 so the caller can refresh the token once.
var errForbidden = errors.New("backend: forbidden")

// Client wraps HTTP calls to the dashboard server's trip API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	tokens     port.Cache[string]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a backend client. tokens caches the CSRF token between
// mutations; metrics may be nil.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, tokens port.Cache[string], metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		tokens:     tokens,
		metrics:    metrics,
		logger:     logger,
	}
}

// call runs fn behind the bulkhead and the circuit breaker. Only idempotent
// calls are retried.
func (c *Client) call(ctx context.Context, operation string, idempotent bool, fn func() error) error {
	start := time.Now()
	err := c.bulkhead.Do(ctx, func() error {
		_, err := c.cb.Execute(func() (any, error) {
			if !idempotent {
				return nil, fn()
			}
			return nil, resilience.RetryWithBackoff(ctx, c.cfg, fn)
		})
		return err
	})
	if c.metrics != nil {
		c.metrics.RecordRequestDuration(serviceName+"."+operation, time.Since(start))
	}
	return c.classify(operation, err)
}

func (c *Client) classify(operation string, err error) error {
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
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.Warn("backend: circuit open", zap.String("operation", operation))
		return &domain.ErrCircuitOpen{Service: serviceName}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: serviceName + "." + operation}
	}

	if c.metrics != nil {
		c.metrics.IncrExternalError(serviceName)
	}
	return &domain.ErrExternalService{Service: serviceName + "/" + operation, Err: err}
}
