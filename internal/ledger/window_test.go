package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWindow(t *testing.T) {
	// 2024-03-14 is a Thursday
	thu := domain.MustParseDate("2024-03-14")
	sun := domain.MustParseDate("2024-03-10")
	sat := domain.MustParseDate("2024-03-16")
	require.Equal(t, time.Thursday, thu.Weekday())
	require.Equal(t, time.Sunday, sun.Weekday())

	tests := []struct {
		name   string
		window ledger.Window
		today  domain.Date
		start  string
		end    string
	}{
		{"today", ledger.WindowToday, thu, "2024-03-14", "2024-03-14"},
		{"week mid", ledger.WindowWeek, thu, "2024-03-10", "2024-03-14"},
		{"week on sunday", ledger.WindowWeek, sun, "2024-03-10", "2024-03-10"},
		{"week on saturday", ledger.WindowWeek, sat, "2024-03-10", "2024-03-16"},
		{"week across month", ledger.WindowWeek, domain.MustParseDate("2024-03-02"), "2024-02-25", "2024-03-02"},
		{"month", ledger.WindowMonth, thu, "2024-03-01", "2024-03-14"},
		{"month first day", ledger.WindowMonth, domain.MustParseDate("2024-03-01"), "2024-03-01", "2024-03-01"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := ledger.ResolveWindow(tc.window, tc.today)
			require.NoError(t, err)
			assert.Equal(t, tc.start, r.Start.String())
			assert.Equal(t, tc.end, r.End.String())
		})
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ledger.ParseWindow(" Week ")
	require.NoError(t, err)
	assert.Equal(t, ledger.WindowWeek, w)

	_, err = ledger.ParseWindow("year")
	var v *domain.ErrValidation
	assert.True(t, errors.As(err, &v))
}

func TestSummarizeWindow(t *testing.T) {
	today := domain.MustParseDate("2024-03-14")
	trips := []domain.TripRecord{
		trip("sat-before", "2024-03-09", 10000, 0, 0),
		trip("sun", "2024-03-10", 20000, 0, 0),
		trip("thu", "2024-03-14", 40000, 0, 0),
		trip("future", "2024-03-15", 80000, 0, 0),
	}

	day, err := ledger.SummarizeWindow(trips, ledger.WindowToday, today)
	require.NoError(t, err)
	assert.Equal(t, 1, day.TripCount)
	assert.Equal(t, 1, day.CalendarDays)
	assert.Equal(t, domain.Cents(40000), day.AverageProfitPerCalendarDay)

	week, err := ledger.SummarizeWindow(trips, ledger.WindowWeek, today)
	require.NoError(t, err)
	assert.Equal(t, 2, week.TripCount)
	assert.Equal(t, domain.Cents(60000), week.TotalRevenue)
	assert.Equal(t, domain.Cents(30000), week.AverageDailyProfit)
	assert.Equal(t, 7, week.CalendarDays)
	assert.Equal(t, domain.Cents(60000).DivRound(7), week.AverageProfitPerCalendarDay)

	month, err := ledger.SummarizeWindow(trips, ledger.WindowMonth, today)
	require.NoError(t, err)
	assert.Equal(t, 3, month.TripCount)
	assert.Equal(t, 14, month.CalendarDays)
}
