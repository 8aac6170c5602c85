package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/sqlite"
)

func openTemp(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "data", "ledger.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTrip(id, date string) domain.TripRecord {
	due := domain.MustParseDate("2024-04-10")
	return domain.TripRecord{
		ID:               id,
		Date:             domain.MustParseDate(date),
		Origin:           "Campinas",
		Destination:      "Santos",
		DriverName:       "Ana",
		TruckName:        "Volvo FH",
		Revenue:          domain.Cents(500000),
		PerDiemCount:     2,
		PerDiemRate:      domain.Cents(7000),
		FuelLiters:       312.5,
		FuelCost:         domain.Cents(180000),
		DriverBaseSalary: domain.Cents(100000),
		DriverBonus:      domain.Cents(5000),
		DriverDeduction:  domain.Cents(2000),
		MiscCosts: []domain.MiscCostItem{
			{
				ID: id + "-toll", Category: domain.CategoryToll, Date: domain.MustParseDate(date),
				VehiclePlate: "ABC1D23", Vendor: "Ecovias", Description: "toll",
				Amount: domain.Cents(4550), PaymentMethod: domain.PaymentCash, PaymentStatus: domain.PaymentPaid,
			},
			{
				ID: id + "-parts", Category: domain.CategoryParts, Date: domain.MustParseDate(date),
				VehiclePlate: "N/A", Vendor: "not informed", Description: "tyres",
				Amount: domain.Cents(120000), PaymentMethod: domain.PaymentCredit, PaymentStatus: domain.PaymentUnpaid,
				DueDate: &due,
				Installments: &domain.InstallmentPlan{
					Count: 3, Amount: domain.Cents(40000), FirstDate: domain.MustParseDate("2024-04-15"), DueDay: 15,
				},
			},
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	res, err := s.CreateTrip(ctx, sampleTrip("t1", "2024-03-01"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	_, err = s.CreateTrip(ctx, sampleTrip("t2", "2024-03-05"))
	require.NoError(t, err)

	trips, err := s.ListTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, "t2", trips[0].ID, "newest first")

	got := trips[1]
	assert.Equal(t, sampleTrip("t1", "2024-03-01"), got)
}

func TestStore_UpdateReplacesCosts(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.CreateTrip(ctx, sampleTrip("t1", "2024-03-01"))
	require.NoError(t, err)

	upd := sampleTrip("t1", "2024-03-02")
	upd.MiscCosts = upd.MiscCosts[1:]
	upd.Revenue = domain.Cents(1)
	_, err = s.UpdateTrip(ctx, "t1", upd)
	require.NoError(t, err)

	trips, err := s.ListTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, domain.Cents(1), trips[0].Revenue)
	require.Len(t, trips[0].MiscCosts, 1)
	assert.Equal(t, "t1-parts", trips[0].MiscCosts[0].ID)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.CreateTrip(ctx, sampleTrip("t1", "2024-03-01"))
	require.NoError(t, err)

	res, err := s.CreateTrip(ctx, sampleTrip("t1", "2024-03-01"))
	var conflict *domain.ErrConflict
	assert.True(t, errors.As(err, &conflict))
	assert.False(t, res.Success)

	var nf *domain.ErrNotFound
	_, err = s.UpdateTrip(ctx, "missing", sampleTrip("missing", "2024-03-01"))
	assert.True(t, errors.As(err, &nf))

	_, err = s.DeleteTrip(ctx, "missing")
	assert.True(t, errors.As(err, &nf))

	_, err = s.DeleteTrip(ctx, "t1")
	require.NoError(t, err)
	trips, err := s.ListTrips(ctx)
	require.NoError(t, err)
	assert.Empty(t, trips)
}

func TestStore_UpdateNotFoundRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trips SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	s := sqlite.New(db, zap.NewNop())
	res, err := s.UpdateTrip(context.Background(), "ghost", sampleTrip("ghost", "2024-01-01"))

	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
	assert.False(t, res.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateCostFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trips").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO misc_costs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := sqlite.New(db, zap.NewNop())
	_, err = s.CreateTrip(context.Background(), sampleTrip("t1", "2024-01-01"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "sqlite/create", ext.Service)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, trip_date").WillReturnError(errors.New("boom"))

	s := sqlite.New(db, zap.NewNop())
	_, err = s.ListTrips(context.Background())
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "sqlite/list", ext.Service)
	assert.NoError(t, mock.ExpectationsWereMet())
}
