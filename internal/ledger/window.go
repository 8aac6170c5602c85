package ledger

import (
	"strings"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
)

// Range is an inclusive span of calendar dates.
type Range struct {
	Start domain.Date `json:"start"`
	End   domain.Date `json:"end"`
}

// NewRange builds a Range, rejecting a start that falls after the end.
func NewRange(start, end domain.Date) (Range, error) {
	if start.After(end) {
		return Range{}, &domain.ErrInvalidRange{Start: start, End: end}
	}
	return Range{Start: start, End: end}, nil
}

// Contains reports whether d lies within the range, bounds included.
func (r Range) Contains(d domain.Date) bool {
	return d.InRange(r.Start, r.End)
}

// Days is the number of calendar days the range spans.
func (r Range) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

// FilterByRange keeps the trips dated within [start, end], in input order.
func FilterByRange(trips []domain.TripRecord, start, end domain.Date) ([]domain.TripRecord, error) {
	r, err := NewRange(start, end)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TripRecord, 0, len(trips))
	for _, t := range trips {
		if r.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out, nil
}

// SummarizeRange summarizes the trips inside r. The calendar-day divisor is
// the length of the range.
func SummarizeRange(trips []domain.TripRecord, r Range) (Summary, error) {
	in, err := FilterByRange(trips, r.Start, r.End)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(in).WithRange(r, r.Days()), nil
}

// Window names a to-date period anchored on today.
type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// ParseWindow accepts today, week or month (case-insensitive).
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case WindowToday, WindowWeek, WindowMonth:
		return w, nil
	}
	return "", &domain.ErrValidation{Field: "window", Message: "must be one of today, week, month"}
}

// ResolveWindow turns a named window into a concrete range ending today.
// Weeks start on Sunday; week and month are to-date, not the full period.
func ResolveWindow(w Window, today domain.Date) (Range, error) {
	switch w {
	case WindowToday:
		return Range{Start: today, End: today}, nil
	case WindowWeek:
		return Range{Start: today.AddDays(-int(today.Weekday())), End: today}, nil
	case WindowMonth:
		return Range{Start: today.FirstOfMonth(), End: today}, nil
	}
	return Range{}, &domain.ErrValidation{Field: "window", Message: "must be one of today, week, month"}
}

// SummarizeWindow summarizes the trips that fall in the named window.
//
// The calendar-day divisor keeps the older dashboard's convention: a fixed 7
// for the week even when it is only partly elapsed, and the day of month for
// the month.
func SummarizeWindow(trips []domain.TripRecord, w Window, today domain.Date) (Summary, error) {
	r, err := ResolveWindow(w, today)
	if err != nil {
		return Summary{}, err
	}
	in, err := FilterByRange(trips, r.Start, r.End)
	if err != nil {
		return Summary{}, err
	}
	days := r.Days()
	switch w {
	case WindowWeek:
		days = 7
	case WindowMonth:
		days = today.Day()
	}
	return Summarize(in).WithRange(r, days), nil
}
