// Package ledger holds the trip record model and the aggregation engine.
// Everything here is pure: functions take the records they work on and
// return new values, leaving state ownership to the caller.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"

	"github.com/google/uuid"
)

// Defaults applied to misc costs submitted without the optional fields.
const (
	DefaultVehiclePlate = "N/A"
	DefaultVendor       = "not informed"
)

// Model validates raw trip input and manages a trip's misc costs.
// The per-diem rate is fixed at construction and stamped onto new trips.
type Model struct {
	perDiemRate domain.Money
	now         func() time.Time
	newID       func() string
	loc         *time.Location
}

// Option customizes a Model.
type Option func(*Model)

// WithClock overrides the wall clock used for "today" defaults.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithIDGenerator overrides how trip and misc cost ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(m *Model) { m.newID = newID }
}

// WithLocation sets the timezone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(m *Model) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// NewModel creates a Model that charges perDiemRate per per-diem day.
func NewModel(perDiemRate domain.Money, opts ...Option) *Model {
	m := &Model{
		perDiemRate: perDiemRate,
		now:         time.Now,
		newID:       uuid.NewString,
		loc:         time.UTC,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PerDiemRate returns the configured per-diem rate.
func (m *Model) PerDiemRate() domain.Money { return m.perDiemRate }

// Today returns the current calendar date in the model's timezone.
func (m *Model) Today() domain.Date {
	return domain.DateOf(m.now().In(m.loc))
}

// CreateTrip validates a submission and builds a new TripRecord.
func (m *Model) CreateTrip(in domain.TripInput) (domain.TripRecord, error) {
	trip, err := m.buildTrip(in)
	if err != nil {
		return domain.TripRecord{}, err
	}
	trip.ID = m.newID()
	trip.PerDiemRate = m.perDiemRate

	trip.MiscCosts = make([]domain.MiscCostItem, 0, len(in.MiscCosts))
	for _, ci := range in.MiscCosts {
		item, err := m.buildMiscCost(ci)
		if err != nil {
			return domain.TripRecord{}, err
		}
		item.ID = m.newID()
		trip.MiscCosts = append(trip.MiscCosts, item)
	}
	return trip, nil
}

// UpdateTrip replaces the trip's own fields with a new submission.
// Id, per-diem rate and misc costs carry over from existing.
func (m *Model) UpdateTrip(existing domain.TripRecord, in domain.TripInput) (domain.TripRecord, error) {
	trip, err := m.buildTrip(in)
	if err != nil {
		return domain.TripRecord{}, err
	}
	prev := existing.Clone()
	trip.ID = prev.ID
	trip.PerDiemRate = prev.PerDiemRate
	if trip.PerDiemRate == 0 {
		trip.PerDiemRate = m.perDiemRate
	}
	trip.MiscCosts = prev.MiscCosts
	return trip, nil
}

// Normalize fills in the per-diem rate for records persisted without one
// and guarantees a non-nil misc cost slice.
func (m *Model) Normalize(trip domain.TripRecord) domain.TripRecord {
	out := trip.Clone()
	if out.PerDiemRate == 0 {
		out.PerDiemRate = m.perDiemRate
	}
	out.PerDiemCount = clampPerDiemCount(out.PerDiemCount)
	return out
}

// maxPerDiemCount bounds the days one trip can claim. Larger counts are
// garbage input and read as zero, like any unparsable number.
const maxPerDiemCount = 10000

func clampPerDiemCount(n int) int {
	if n < 0 || n > maxPerDiemCount {
		return 0
	}
	return n
}

// AddMiscCost appends a validated cost item. The input trip is not modified.
func (m *Model) AddMiscCost(trip domain.TripRecord, in domain.MiscCostInput) (domain.TripRecord, error) {
	item, err := m.buildMiscCost(in)
	if err != nil {
		return domain.TripRecord{}, err
	}
	item.ID = m.newID()

	out := trip.Clone()
	out.MiscCosts = append(out.MiscCosts, item)
	return out, nil
}

// RemoveMiscCost drops the item with the given id.
func (m *Model) RemoveMiscCost(trip domain.TripRecord, itemID string) (domain.TripRecord, error) {
	idx := trip.MiscCostIndex(itemID)
	if idx < 0 {
		return domain.TripRecord{}, &domain.ErrNotFound{Resource: "misc cost", ID: itemID}
	}

	out := trip.Clone()
	out.MiscCosts = append(out.MiscCosts[:idx], out.MiscCosts[idx+1:]...)
	return out, nil
}

// EditMiscCost replaces the whole item with the given id, keeping its id and
// position. Fields left blank take the same defaults as on creation.
func (m *Model) EditMiscCost(trip domain.TripRecord, itemID string, in domain.MiscCostInput) (domain.TripRecord, error) {
	idx := trip.MiscCostIndex(itemID)
	if idx < 0 {
		return domain.TripRecord{}, &domain.ErrNotFound{Resource: "misc cost", ID: itemID}
	}
	item, err := m.buildMiscCost(in)
	if err != nil {
		return domain.TripRecord{}, err
	}
	item.ID = itemID

	out := trip.Clone()
	out.MiscCosts[idx] = item
	return out, nil
}

func (m *Model) buildTrip(in domain.TripInput) (domain.TripRecord, error) {
	required := []struct {
		field string
		value string
	}{
		{"date", in.Date},
		{"origin", in.Origin},
		{"destination", in.Destination},
		{"driverName", in.DriverName},
		{"truckName", in.TruckName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.TripRecord{}, &domain.ErrMissingField{Field: r.field}
		}
	}

	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.TripRecord{}, err
	}

	perDiem := clampPerDiemCount(in.PerDiemCount.Int())

	return domain.TripRecord{
		Date:             date,
		Origin:           strings.TrimSpace(in.Origin),
		Destination:      strings.TrimSpace(in.Destination),
		DriverName:       strings.TrimSpace(in.DriverName),
		TruckName:        strings.TrimSpace(in.TruckName),
		Revenue:          in.Revenue.Money(),
		PerDiemCount:     perDiem,
		FuelLiters:       in.FuelLiters.Float(),
		FuelCost:         in.FuelCost.Money(),
		DriverBaseSalary: in.DriverBaseSalary.Money(),
		DriverBonus:      in.DriverBonus.Money(),
		DriverDeduction:  in.DriverDeduction.Money(),
	}, nil
}

func (m *Model) buildMiscCost(in domain.MiscCostInput) (domain.MiscCostItem, error) {
	if strings.TrimSpace(in.Category) == "" {
		return domain.MiscCostItem{}, &domain.ErrMissingField{Field: "category"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return domain.MiscCostItem{}, &domain.ErrMissingField{Field: "description"}
	}
	if in.Amount.IsBlank() {
		return domain.MiscCostItem{}, &domain.ErrMissingField{Field: "amount"}
	}
	amount := in.Amount.Money()
	if amount <= 0 {
		return domain.MiscCostItem{}, &domain.ErrInvalidAmount{Value: string(in.Amount)}
	}

	date := m.Today()
	if strings.TrimSpace(in.Date) != "" {
		d, err := domain.ParseDate(in.Date)
		if err != nil {
			return domain.MiscCostItem{}, err
		}
		date = d
	}

	item := domain.MiscCostItem{
		Category:      domain.Category(strings.TrimSpace(in.Category)),
		Date:          date,
		VehiclePlate:  orDefault(strings.ToUpper(strings.TrimSpace(in.VehiclePlate)), DefaultVehiclePlate),
		Vendor:        orDefault(strings.TrimSpace(in.Vendor), DefaultVendor),
		Description:   strings.TrimSpace(in.Description),
		Amount:        amount,
		PaymentMethod: domain.PaymentMethod(orDefault(strings.TrimSpace(in.PaymentMethod), string(domain.PaymentNotInformed))),
		PaymentStatus: domain.PaymentStatus(orDefault(strings.TrimSpace(in.PaymentStatus), string(domain.PaymentPending))),
	}

	if strings.TrimSpace(in.DueDate) != "" {
		due, err := domain.ParseDate(in.DueDate)
		if err != nil {
			return domain.MiscCostItem{}, err
		}
		item.DueDate = &due
	}

	if in.Installments != nil {
		plan, err := buildInstallmentPlan(*in.Installments)
		if err != nil {
			return domain.MiscCostItem{}, err
		}
		if !planCovers(plan, amount) {
			return domain.MiscCostItem{}, &domain.ErrValidation{
				Field:   "installments.amount",
				Message: fmt.Sprintf("%d parcels of %s do not add up to %s", plan.Count, plan.Amount, amount),
			}
		}
		item.Installments = &plan
	}
	return item, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
