// Package sqlite is a TripStore backed by a local SQLite file, for running
// the ledger without the dashboard server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

var tracer = otel.Tracer("sqlite")

// Store persists trips and their misc costs in two tables.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the database file if needed, applies migrations and returns
// a ready Store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return New(db, logger), nil
}

// New wraps an already migrated database handle.
func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectTrips = `SELECT id, trip_date, origin, destination, driver_name, truck_name,
	revenue_cents, per_diem_count, per_diem_rate_cents, fuel_liters, fuel_cost_cents,
	driver_base_salary_cents, driver_bonus_cents, driver_deduction_cents
	FROM trips ORDER BY trip_date DESC, created_at DESC`

const selectCosts = `SELECT id, trip_id, category, cost_date, vehicle_plate, vendor, description,
	amount_cents, payment_method, payment_status, due_date,
	installment_count, installment_amount_cents, installment_first_date, installment_due_day
	FROM misc_costs ORDER BY trip_id, position`

// ListTrips loads every trip with its misc costs in entry order.
func (s *Store) ListTrips(ctx context.Context) ([]domain.TripRecord, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTrips")
	defer span.End()

	trips, err := s.listTrips(ctx)
	if err != nil {
		return nil, classify("list", err)
	}
	span.SetAttributes(attribute.Int("trips.count", len(trips)))
	return trips, nil
}

func (s *Store) listTrips(ctx context.Context) ([]domain.TripRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectTrips)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var trips []domain.TripRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			t    domain.TripRecord
			date string
		)
		if err := rows.Scan(&t.ID, &date, &t.Origin, &t.Destination, &t.DriverName, &t.TruckName,
			&t.Revenue, &t.PerDiemCount, &t.PerDiemRate, &t.FuelLiters, &t.FuelCost,
			&t.DriverBaseSalary, &t.DriverBonus, &t.DriverDeduction); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		if t.Date, err = domain.ParseDate(date); err != nil {
			return nil, fmt.Errorf("trip %s: %w", t.ID, err)
		}
		t.MiscCosts = []domain.MiscCostItem{}
		index[t.ID] = len(trips)
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}

	costRows, err := s.db.QueryContext(ctx, selectCosts)
	if err != nil {
		return nil, fmt.Errorf("query misc costs: %w", err)
	}
	defer costRows.Close()

	for costRows.Next() {
		tripID, item, err := scanCost(costRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[tripID]; ok {
			trips[i].MiscCosts = append(trips[i].MiscCosts, item)
		}
	}
	if err := costRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate misc costs: %w", err)
	}
	if trips == nil {
		trips = []domain.TripRecord{}
	}
	return trips, nil
}

// CreateTrip inserts a trip and its misc costs in one transaction.
func (s *Store) CreateTrip(ctx context.Context, trip domain.TripRecord) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", trip.ID))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO trips (id, trip_date, origin, destination, driver_name, truck_name,
			revenue_cents, per_diem_count, per_diem_rate_cents, fuel_liters, fuel_cost_cents,
			driver_base_salary_cents, driver_bonus_cents, driver_deduction_cents)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			trip.ID, trip.Date.String(), trip.Origin, trip.Destination, trip.DriverName, trip.TruckName,
			trip.Revenue.Cents(), trip.PerDiemCount, trip.PerDiemRate.Cents(), trip.FuelLiters, trip.FuelCost.Cents(),
			trip.DriverBaseSalary.Cents(), trip.DriverBonus.Cents(), trip.DriverDeduction.Cents())
		if err != nil {
			if isUniqueViolation(err) {
				return &domain.ErrConflict{Message: "trip already exists: " + trip.ID}
			}
			return fmt.Errorf("insert trip: %w", err)
		}
		return insertCosts(ctx, tx, trip.ID, trip.MiscCosts)
	})
	if err != nil {
		err = classify("create", err)
		return domain.MutationResult{Success: false, Message: err.Error()}, err
	}

	s.logger.Info("trip saved to sqlite", zap.String("trip_id", trip.ID), zap.Int("misc_costs", len(trip.MiscCosts)))
	return domain.MutationResult{Success: true, Message: "trip created", ID: trip.ID}, nil
}

// UpdateTrip overwrites a trip's fields and replaces its misc costs.
func (s *Store) UpdateTrip(ctx context.Context, id string, trip domain.TripRecord) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", id))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE trips SET trip_date = ?, origin = ?, destination = ?, driver_name = ?,
			truck_name = ?, revenue_cents = ?, per_diem_count = ?, per_diem_rate_cents = ?, fuel_liters = ?,
			fuel_cost_cents = ?, driver_base_salary_cents = ?, driver_bonus_cents = ?, driver_deduction_cents = ?
			WHERE id = ?`,
			trip.Date.String(), trip.Origin, trip.Destination, trip.DriverName,
			trip.TruckName, trip.Revenue.Cents(), trip.PerDiemCount, trip.PerDiemRate.Cents(), trip.FuelLiters,
			trip.FuelCost.Cents(), trip.DriverBaseSalary.Cents(), trip.DriverBonus.Cents(), trip.DriverDeduction.Cents(),
			id)
		if err != nil {
			return fmt.Errorf("update trip: %w", err)
		}
		if err := requireRow(res, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM misc_costs WHERE trip_id = ?`, id); err != nil {
			return fmt.Errorf("clear misc costs: %w", err)
		}
		return insertCosts(ctx, tx, id, trip.MiscCosts)
	})
	if err != nil {
		err = classify("update", err)
		return domain.MutationResult{Success: false, Message: err.Error()}, err
	}
	return domain.MutationResult{Success: true, Message: "trip updated", ID: id}, nil
}

// DeleteTrip removes a trip together with its misc costs.
func (s *Store) DeleteTrip(ctx context.Context, id string) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", id))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM misc_costs WHERE trip_id = ?`, id); err != nil {
			return fmt.Errorf("delete misc costs: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete trip: %w", err)
		}
		return requireRow(res, id)
	})
	if err != nil {
		err = classify("delete", err)
		return domain.MutationResult{Success: false, Message: err.Error()}, err
	}
	return domain.MutationResult{Success: true, Message: "trip deleted", ID: id}, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("sqlite: rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertCosts(ctx context.Context, tx *sql.Tx, tripID string, items []domain.MiscCostItem) error {
	for pos, it := range items {
		var (
			due                               sql.NullString
			instCount, instAmount, instDueDay sql.NullInt64
			instFirst                         sql.NullString
		)
		if it.DueDate != nil {
			due = sql.NullString{String: it.DueDate.String(), Valid: true}
		}
		if p := it.Installments; p != nil {
			instCount = sql.NullInt64{Int64: int64(p.Count), Valid: true}
			instAmount = sql.NullInt64{Int64: p.Amount.Cents(), Valid: true}
			instFirst = sql.NullString{String: p.FirstDate.String(), Valid: true}
			instDueDay = sql.NullInt64{Int64: int64(p.DueDay), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO misc_costs (id, trip_id, position, category, cost_date,
			vehicle_plate, vendor, description, amount_cents, payment_method, payment_status, due_date,
			installment_count, installment_amount_cents, installment_first_date, installment_due_day)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, tripID, pos, string(it.Category), it.Date.String(),
			it.VehiclePlate, it.Vendor, it.Description, it.Amount.Cents(), string(it.PaymentMethod), string(it.PaymentStatus), due,
			instCount, instAmount, instFirst, instDueDay)
		if err != nil {
			return fmt.Errorf("insert misc cost %s: %w", it.ID, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCost(row scanner) (string, domain.MiscCostItem, error) {
	var (
		tripID, category, costDate, method, status string
		item                                       domain.MiscCostItem
		due, instFirst                             sql.NullString
		instCount, instAmount, instDueDay          sql.NullInt64
	)
	if err := row.Scan(&item.ID, &tripID, &category, &costDate, &item.VehiclePlate, &item.Vendor, &item.Description,
		&item.Amount, &method, &status, &due,
		&instCount, &instAmount, &instFirst, &instDueDay); err != nil {
		return "", item, fmt.Errorf("scan misc cost: %w", err)
	}

	item.Category = domain.Category(category)
	item.PaymentMethod = domain.PaymentMethod(method)
	item.PaymentStatus = domain.PaymentStatus(status)

	var err error
	if item.Date, err = domain.ParseDate(costDate); err != nil {
		return "", item, fmt.Errorf("misc cost %s: %w", item.ID, err)
	}
	if due.Valid && due.String != "" {
		d, err := domain.ParseDate(due.String)
		if err != nil {
			return "", item, fmt.Errorf("misc cost %s due date: %w", item.ID, err)
		}
		item.DueDate = &d
	}
	if instCount.Valid {
		first, _ := domain.ParseDate(instFirst.String)
		item.Installments = &domain.InstallmentPlan{
			Count:     int(instCount.Int64),
			Amount:    domain.Cents(instAmount.Int64),
			FirstDate: first,
			DueDay:    int(instDueDay.Int64),
		}
	}
	return tripID, item, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "trip", ID: id}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
