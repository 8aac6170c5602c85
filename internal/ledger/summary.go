package ledger

import (
	"math"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
)

// ExpenseBreakdown splits a summary's total expense by source.
type ExpenseBreakdown struct {
	Fuel      domain.Money `json:"fuel"`
	PerDiem   domain.Money `json:"perDiem"`
	MiscCosts domain.Money `json:"miscCosts"`
	DriverPay domain.Money `json:"driverPay"`
}

// CategoryTotal aggregates misc costs of one category.
type CategoryTotal struct {
	Label string       `json:"label"`
	Total domain.Money `json:"total"`
	Count int          `json:"count"`
}

// Summary is the aggregate of a set of trips.
//
// AverageDailyProfit divides net profit by the number of trips.
// AverageProfitPerCalendarDay divides it by the calendar days the range
// spans, and is only set when the summary covers a range.
type Summary struct {
	TripCount                   int                               `json:"tripCount"`
	TotalRevenue                domain.Money                      `json:"totalRevenue"`
	TotalExpense                domain.Money                      `json:"totalExpense"`
	NetProfit                   domain.Money                      `json:"netProfit"`
	AverageDailyProfit          domain.Money                      `json:"averageDailyProfit"`
	Expenses                    ExpenseBreakdown                  `json:"expenses"`
	TripExpenseSubtotal         domain.Money                      `json:"tripExpenseSubtotal"`
	FuelLiters                  float64                           `json:"fuelLiters"`
	MiscByCategory              map[domain.Category]CategoryTotal `json:"miscByCategory"`
	Range                       *Range                            `json:"range,omitempty"`
	CalendarDays                int                               `json:"calendarDays,omitempty"`
	AverageProfitPerCalendarDay domain.Money                      `json:"averageProfitPerCalendarDay"`

	// fuel is tracked in milliliters so running totals stay exact.
	fuelML int64
}

// Summarize reduces trips into a Summary. The result does not depend on the
// order of trips; an empty set yields the zero summary.
func Summarize(trips []domain.TripRecord) Summary {
	s := Summary{MiscByCategory: map[domain.Category]CategoryTotal{}}
	for _, t := range trips {
		s.apply(t, 1)
	}
	s.finish()
	return s
}

// Add folds one more trip into the summary.
func (s *Summary) Add(t domain.TripRecord) {
	s.apply(t, 1)
	s.finish()
}

// Remove takes a previously added trip back out of the summary.
func (s *Summary) Remove(t domain.TripRecord) {
	s.apply(t, -1)
	s.finish()
}

// Replace swaps before for after, as when a trip or its misc costs are edited.
func (s *Summary) Replace(before, after domain.TripRecord) {
	s.apply(before, -1)
	s.apply(after, 1)
	s.finish()
}

// Clone returns a copy whose category map is independent of s.
func (s Summary) Clone() Summary {
	out := s
	out.MiscByCategory = make(map[domain.Category]CategoryTotal, len(s.MiscByCategory))
	for k, v := range s.MiscByCategory {
		out.MiscByCategory[k] = v
	}
	if s.Range != nil {
		r := *s.Range
		out.Range = &r
	}
	return out
}

// WithRange attaches the covered range and its calendar-day divisor.
func (s Summary) WithRange(r Range, calendarDays int) Summary {
	out := s.Clone()
	out.Range = &r
	out.CalendarDays = calendarDays
	out.finish()
	return out
}

func (s *Summary) apply(t domain.TripRecord, sign int) {
	if s.MiscByCategory == nil {
		s.MiscByCategory = map[domain.Category]CategoryTotal{}
	}
	f := DeriveFinancials(t)
	m := domain.Money(sign)

	s.TripCount += sign
	s.TotalRevenue += m * t.Revenue
	s.TotalExpense += m * f.TotalExpense
	s.TripExpenseSubtotal += m * f.TripExpenseSubtotal
	s.Expenses.Fuel += m * t.FuelCost
	s.Expenses.PerDiem += m * f.TotalPerDiem
	s.Expenses.MiscCosts += m * f.TotalMiscCosts
	s.Expenses.DriverPay += m * f.NetDriverPay
	s.fuelML += int64(sign) * int64(math.Round(t.FuelLiters*1000))

	for _, item := range t.MiscCosts {
		ct := s.MiscByCategory[item.Category]
		ct.Label = item.Category.Label()
		ct.Total += m * item.Amount
		ct.Count += sign
		if ct.Count == 0 {
			delete(s.MiscByCategory, item.Category)
			continue
		}
		s.MiscByCategory[item.Category] = ct
	}
}

func (s *Summary) finish() {
	s.NetProfit = s.TotalRevenue - s.TotalExpense
	s.FuelLiters = float64(s.fuelML) / 1000

	s.AverageDailyProfit = 0
	if s.TripCount > 0 {
		s.AverageDailyProfit = s.NetProfit.DivRound(int64(s.TripCount))
	}

	s.AverageProfitPerCalendarDay = 0
	if s.CalendarDays > 0 {
		s.AverageProfitPerCalendarDay = s.NetProfit.DivRound(int64(s.CalendarDays))
	}
}
