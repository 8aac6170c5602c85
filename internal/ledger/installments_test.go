package ledger_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallmentSchedule(t *testing.T) {
	p, err := ledger.InstallmentSchedule(4, domain.Cents(25050), domain.MustParseDate("2024-01-20"), 31)
	require.NoError(t, err)
	require.Len(t, p.Installments, 4)

	want := []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}
	for i, inst := range p.Installments {
		assert.Equal(t, i+1, inst.Number)
		assert.Equal(t, want[i], inst.DueDate.String())
		assert.Equal(t, domain.Cents(25050), inst.Amount)
	}
	assert.Equal(t, domain.Cents(100200), p.Total)
}

func TestInstallmentSchedule_DefaultDueDay(t *testing.T) {
	p, err := ledger.InstallmentSchedule(2, domain.Cents(100), domain.MustParseDate("2024-12-03"), 0)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-15", p.Installments[0].DueDate.String())
	assert.Equal(t, "2025-01-15", p.Installments[1].DueDate.String())
}

func TestInstallmentSchedule_Validation(t *testing.T) {
	first := domain.MustParseDate("2024-01-01")
	var v *domain.ErrValidation
	var amt *domain.ErrInvalidAmount
	var mf *domain.ErrMissingField

	_, err := ledger.InstallmentSchedule(0, domain.Cents(100), first, 10)
	assert.True(t, errors.As(err, &v))
	_, err = ledger.InstallmentSchedule(2, 0, first, 10)
	assert.True(t, errors.As(err, &amt))
	_, err = ledger.InstallmentSchedule(2, domain.Cents(100), domain.Date{}, 10)
	assert.True(t, errors.As(err, &mf))
	_, err = ledger.InstallmentSchedule(2, domain.Cents(100), first, 32)
	assert.True(t, errors.As(err, &v))
}

func TestAddMiscCost_WithInstallmentPlan(t *testing.T) {
	m := newTestModel()
	tr, err := m.CreateTrip(validInput())
	require.NoError(t, err)

	out, err := m.AddMiscCost(tr, domain.MiscCostInput{
		Category:      "parts",
		Description:   "Gearbox",
		Amount:        "3000",
		PaymentMethod: "credit",
		Installments:  &domain.InstallmentInput{Count: "3", Amount: "1000", FirstDate: "2024-03-20"},
	})
	require.NoError(t, err)

	plan := out.MiscCosts[0].Installments
	require.NotNil(t, plan)
	assert.Equal(t, 3, plan.Count)
	assert.Equal(t, ledger.DefaultDueDay, plan.DueDay)
	// the plan does not change what the item contributes
	assert.Equal(t, domain.Cents(300000), ledger.DeriveFinancials(out).TotalMiscCosts)
}

func TestAddMiscCost_InstallmentPlanMustMatchAmount(t *testing.T) {
	m := newTestModel()
	tr, err := m.CreateTrip(validInput())
	require.NoError(t, err)

	_, err = m.AddMiscCost(tr, domain.MiscCostInput{
		Category:     "parts",
		Description:  "Gearbox",
		Amount:       "3000",
		Installments: &domain.InstallmentInput{Count: "3", Amount: "900", FirstDate: "2024-03-20"},
	})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "installments.amount", verr.Field)

	// 100.00 in three parcels of 33.33 is within rounding.
	out, err := m.AddMiscCost(tr, domain.MiscCostInput{
		Category:     "parts",
		Description:  "Hose",
		Amount:       "100",
		Installments: &domain.InstallmentInput{Count: "3", Amount: "33.33", FirstDate: "2024-03-20"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(3333), out.MiscCosts[0].Installments.Amount)
}
