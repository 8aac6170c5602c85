package ledger

import "github.com/boddenberg/truck-ledger-bfa-go/internal/domain"

// Financials are the per-trip figures derived from a TripRecord's inputs.
type Financials struct {
	TotalPerDiem        domain.Money `json:"totalPerDiem"`
	TotalMiscCosts      domain.Money `json:"totalMiscCosts"`
	NetDriverPay        domain.Money `json:"netDriverPay"`
	TripExpenseSubtotal domain.Money `json:"tripExpenseSubtotal"`
	TotalExpense        domain.Money `json:"totalExpense"`
	NetProfit           domain.Money `json:"netProfit"`
}

// DeriveFinancials computes the derived fields of a trip. It reads only the
// record, so repeated calls on the same input return the same result.
func DeriveFinancials(t domain.TripRecord) Financials {
	var misc domain.Money
	for _, item := range t.MiscCosts {
		misc += item.Amount
	}

	perDiem := t.PerDiemRate.Mul(t.PerDiemCount)
	driverPay := t.DriverBaseSalary + t.DriverBonus - t.DriverDeduction
	total := t.FuelCost + perDiem + misc + driverPay

	return Financials{
		TotalPerDiem:        perDiem,
		TotalMiscCosts:      misc,
		NetDriverPay:        driverPay,
		TripExpenseSubtotal: t.FuelCost + perDiem,
		TotalExpense:        total,
		NetProfit:           t.Revenue - total,
	}
}

// TripView pairs a record with its derived figures for presentation.
type TripView struct {
	domain.TripRecord
	Financials Financials `json:"financials"`
}

// Views derives the financials of every trip, preserving order.
func Views(trips []domain.TripRecord) []TripView {
	out := make([]TripView, 0, len(trips))
	for _, t := range trips {
		out = append(out, TripView{TripRecord: t, Financials: DeriveFinancials(t)})
	}
	return out
}
