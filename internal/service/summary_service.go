package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Dashboard bundles the to-date windows with the all-time totals.
type Dashboard struct {
	AsOf    domain.Date    `json:"asOf"`
	Version uint64         `json:"version"`
	Today   ledger.Summary `json:"today"`
	Week    ledger.Summary `json:"week"`
	Month   ledger.Summary `json:"month"`
	AllTime ledger.Summary `json:"allTime"`
}

// Summary aggregates the trips in r, or every trip when r is nil.
func (s *TripService) Summary(ctx context.Context, r *ledger.Range) (ledger.Summary, error) {
	_, span := tracer.Start(ctx, "TripService.Summary")
	defer span.End()

	return s.rangeSummary(s.Book(), r)
}

func (s *TripService) rangeSummary(book *Book, r *ledger.Range) (ledger.Summary, error) {
	if r == nil {
		return book.Total.Clone(), nil
	}
	if _, err := ledger.NewRange(r.Start, r.End); err != nil {
		return ledger.Summary{}, err
	}

	key := fmt.Sprintf("v%d:range:%s:%s", book.Version, r.Start, r.End)
	return s.cached(key, func() (ledger.Summary, error) {
		return ledger.SummarizeRange(book.Trips, *r)
	})
}

// Report is a summary together with the trips it covers.
type Report struct {
	Version uint64
	Range   *ledger.Range
	Summary ledger.Summary
	Trips   []domain.TripRecord
}

// Report summarizes window w, or range r when w is empty, or every trip when
// both are unset. The summary and the trip list come from one snapshot.
func (s *TripService) Report(ctx context.Context, w ledger.Window, r *ledger.Range) (Report, error) {
	_, span := tracer.Start(ctx, "TripService.Report")
	defer span.End()

	book := s.Book()
	var (
		sum ledger.Summary
		err error
	)
	if w != "" {
		sum, err = s.windowSummary(book, w, s.model.Today())
		r = sum.Range
	} else {
		sum, err = s.rangeSummary(book, r)
	}
	if err != nil {
		return Report{}, err
	}

	trips := book.Trips
	if r != nil {
		if trips, err = ledger.FilterByRange(trips, r.Start, r.End); err != nil {
			return Report{}, err
		}
	}
	span.SetAttributes(attribute.Int("trips.count", len(trips)), attribute.Int64("book.version", int64(book.Version)))
	return Report{Version: book.Version, Range: r, Summary: sum, Trips: trips}, nil
}

// WindowSummary aggregates the named to-date window ending today.
func (s *TripService) WindowSummary(ctx context.Context, w ledger.Window) (ledger.Summary, error) {
	_, span := tracer.Start(ctx, "TripService.WindowSummary")
	defer span.End()
	span.SetAttributes(attribute.String("window", string(w)))

	return s.windowSummary(s.Book(), w, s.model.Today())
}

func (s *TripService) windowSummary(book *Book, w ledger.Window, today domain.Date) (ledger.Summary, error) {
	key := fmt.Sprintf("v%d:window:%s:%s", book.Version, w, today)
	return s.cached(key, func() (ledger.Summary, error) {
		return ledger.SummarizeWindow(book.Trips, w, today)
	})
}

// Dashboard computes today, week, month and all-time summaries against one
// snapshot, in parallel.
func (s *TripService) Dashboard(ctx context.Context) (Dashboard, error) {
	ctx, span := tracer.Start(ctx, "TripService.Dashboard")
	defer span.End()

	book := s.Book()
	today := s.model.Today()
	d := Dashboard{AsOf: today, Version: book.Version, AllTime: book.Total.Clone()}

	g, _ := errgroup.WithContext(ctx)
	targets := map[ledger.Window]*ledger.Summary{
		ledger.WindowToday: &d.Today,
		ledger.WindowWeek:  &d.Week,
		ledger.WindowMonth: &d.Month,
	}
	for w, dst := range targets {
		w, dst := w, dst
		g.Go(func() error {
			sum, err := s.windowSummary(book, w, today)
			if err != nil {
				return err
			}
			*dst = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// cached serves a summary from the cache, computing and storing it on a miss.
// Keys carry the Book version, so a changed Book never reads a stale entry.
func (s *TripService) cached(key string, compute func() (ledger.Summary, error)) (ledger.Summary, error) {
	if sum, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("summary")
		return sum.Clone(), nil
	}
	s.metrics.IncrCacheMiss("summary")

	sum, err := compute()
	if err != nil {
		return ledger.Summary{}, err
	}
	s.cache.Set(key, sum)
	return sum.Clone(), nil
}
