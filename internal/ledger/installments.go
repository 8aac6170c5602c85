package ledger

import (
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
)

const (
	// DefaultDueDay is the day of month parcels fall due when none is given.
	DefaultDueDay   = 15
	maxInstallments = 120
)

// Installment is one parcel of a credit purchase.
type Installment struct {
	Number  int          `json:"number"`
	DueDate domain.Date  `json:"dueDate"`
	Amount  domain.Money `json:"amount"`
}

// InstallmentPreview lists every parcel of a plan and their sum.
type InstallmentPreview struct {
	Installments []Installment `json:"installments"`
	Total        domain.Money  `json:"total"`
}

// InstallmentSchedule lays out count parcels of amount each. Parcel i falls
// due on dueDay of the month i-1 months after first; days past the end of a
// short month clamp to its last day. A dueDay of 0 means DefaultDueDay.
// The schedule is informational and does not feed any trip total.
func InstallmentSchedule(count int, amount domain.Money, first domain.Date, dueDay int) (InstallmentPreview, error) {
	if count < 1 || count > maxInstallments {
		return InstallmentPreview{}, &domain.ErrValidation{Field: "count", Message: "must be between 1 and 120"}
	}
	if amount <= 0 {
		return InstallmentPreview{}, &domain.ErrInvalidAmount{Value: amount.String()}
	}
	if first.IsZero() {
		return InstallmentPreview{}, &domain.ErrMissingField{Field: "firstDate"}
	}
	if dueDay == 0 {
		dueDay = DefaultDueDay
	}
	if dueDay < 1 || dueDay > 31 {
		return InstallmentPreview{}, &domain.ErrValidation{Field: "dueDay", Message: "must be between 1 and 31"}
	}

	out := InstallmentPreview{Installments: make([]Installment, 0, count)}
	for i := 0; i < count; i++ {
		month := first.FirstOfMonth().Time().AddDate(0, i, 0)
		day := dueDay
		if last := daysIn(month.Year(), month.Month()); day > last {
			day = last
		}
		out.Installments = append(out.Installments, Installment{
			Number:  i + 1,
			DueDate: domain.NewDate(month.Year(), month.Month(), day),
			Amount:  amount,
		})
		out.Total += amount
	}
	return out, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// planCovers reports whether the parcels add up to total, allowing one cent
// of rounding per parcel.
func planCovers(plan domain.InstallmentPlan, total domain.Money) bool {
	diff := plan.Amount.Mul(plan.Count) - total
	if diff < 0 {
		diff = -diff
	}
	return diff <= domain.Money(plan.Count)
}

func buildInstallmentPlan(in domain.InstallmentInput) (domain.InstallmentPlan, error) {
	if in.Count.IsBlank() {
		return domain.InstallmentPlan{}, &domain.ErrMissingField{Field: "installments.count"}
	}
	if in.Amount.IsBlank() {
		return domain.InstallmentPlan{}, &domain.ErrMissingField{Field: "installments.amount"}
	}
	first, err := domain.ParseDate(in.FirstDate)
	if err != nil {
		return domain.InstallmentPlan{}, err
	}
	plan := domain.InstallmentPlan{
		Count:     in.Count.Int(),
		Amount:    in.Amount.Money(),
		FirstDate: first,
		DueDay:    in.DueDay.Int(),
	}
	if plan.DueDay == 0 {
		plan.DueDay = DefaultDueDay
	}
	// Validate through the same rules the preview applies.
	if _, err := InstallmentSchedule(plan.Count, plan.Amount, plan.FirstDate, plan.DueDay); err != nil {
		return domain.InstallmentPlan{}, err
	}
	return plan, nil
}
