package domain

// ============================================================
// Trip ledger records
// ============================================================

// TripRecord is one logged freight trip with its raw financial inputs.
// Derived totals are never stored here; see ledger.DeriveFinancials.
type TripRecord struct {
	ID               string         `json:"id"`
	Date             Date           `json:"date"`
	Origin           string         `json:"origin"`
	Destination      string         `json:"destination"`
	DriverName       string         `json:"driverName"`
	TruckName        string         `json:"truckName"`
	Revenue          Money          `json:"revenue"`
	PerDiemCount     int            `json:"perDiemCount"`
	PerDiemRate      Money          `json:"perDiemRate"`
	FuelLiters       float64        `json:"fuelLiters"`
	FuelCost         Money          `json:"fuelCost"`
	DriverBaseSalary Money          `json:"driverBaseSalary"`
	DriverBonus      Money          `json:"driverBonus"`
	DriverDeduction  Money          `json:"driverDeduction"`
	MiscCosts        []MiscCostItem `json:"miscCosts"`
}

// Clone returns a deep copy that shares no mutable state with t.
func (t TripRecord) Clone() TripRecord {
	out := t
	out.MiscCosts = make([]MiscCostItem, len(t.MiscCosts))
	for i, item := range t.MiscCosts {
		out.MiscCosts[i] = item.Clone()
	}
	return out
}

// MiscCostIndex returns the position of the item with the given id, or -1.
func (t TripRecord) MiscCostIndex(id string) int {
	for i, item := range t.MiscCosts {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// MiscCostItem is an itemized ad-hoc cost owned by exactly one trip.
type MiscCostItem struct {
	ID            string           `json:"id"`
	Category      Category         `json:"category"`
	Date          Date             `json:"date"`
	VehiclePlate  string           `json:"vehiclePlate"`
	Vendor        string           `json:"vendor"`
	Description   string           `json:"description"`
	Amount        Money            `json:"amount"`
	PaymentMethod PaymentMethod    `json:"paymentMethod"`
	PaymentStatus PaymentStatus    `json:"paymentStatus"`
	DueDate       *Date            `json:"dueDate,omitempty"`
	Installments  *InstallmentPlan `json:"installments,omitempty"`
}

// Clone returns a copy with its own pointer fields.
func (m MiscCostItem) Clone() MiscCostItem {
	out := m
	if m.DueDate != nil {
		d := *m.DueDate
		out.DueDate = &d
	}
	if m.Installments != nil {
		p := *m.Installments
		out.Installments = &p
	}
	return out
}

// InstallmentPlan records how a credit purchase was split into parcels.
type InstallmentPlan struct {
	Count     int   `json:"count"`
	Amount    Money `json:"amount"`
	FirstDate Date  `json:"firstDate"`
	DueDay    int   `json:"dueDay"`
}

// ============================================================
// Enumerations
// ============================================================

// Category classifies a misc cost. Values outside the known set are
// legacy data and are kept as-is.
type Category string

const (
	CategoryMaintenance           Category = "maintenance"
	CategoryInsuranceRegistration Category = "insurance_registration"
	CategoryInsurance             Category = "insurance"
	CategoryCollision             Category = "collision"
	CategoryParts                 Category = "parts"
	CategoryAccessories           Category = "accessories"
	CategoryFuel                  Category = "fuel"
	CategoryToll                  Category = "toll"
	CategoryOther                 Category = "other"
)

var categoryLabels = map[Category]string{
	CategoryMaintenance:           "Maintenance",
	CategoryInsuranceRegistration: "Vehicle tax (IPVA)",
	CategoryInsurance:             "Insurance",
	CategoryCollision:             "Collision",
	CategoryParts:                 "Parts",
	CategoryAccessories:           "Accessories",
	CategoryFuel:                  "Fuel",
	CategoryToll:                  "Toll",
	CategoryOther:                 "Other",
}

// Known reports whether c is one of the current categories.
func (c Category) Known() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label is the display name; unknown categories display verbatim.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// PaymentMethod is how a misc cost was or will be paid.
type PaymentMethod string

const (
	PaymentInvoice     PaymentMethod = "invoice"
	PaymentCash        PaymentMethod = "cash"
	PaymentCredit      PaymentMethod = "credit"
	PaymentOpenCredit  PaymentMethod = "open_credit"
	PaymentOther       PaymentMethod = "other"
	PaymentNotInformed PaymentMethod = "not_informed"
)

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentInvoice:     "Invoice (boleto)",
	PaymentCash:        "Cash",
	PaymentCredit:      "Credit / installments",
	PaymentOpenCredit:  "Open credit",
	PaymentOther:       "Other",
	PaymentNotInformed: "Not informed",
}

func (p PaymentMethod) Label() string {
	if l, ok := paymentMethodLabels[p]; ok {
		return l
	}
	return string(p)
}

// PaymentStatus tracks whether a misc cost has been settled.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
)

func (p PaymentStatus) Label() string {
	switch p {
	case PaymentPaid:
		return "Paid"
	case PaymentUnpaid:
		return "Unpaid"
	case PaymentPending:
		return "Pending"
	}
	return string(p)
}

// ============================================================
// Raw input (as submitted by the dashboard)
// ============================================================

// TripInput is an unvalidated trip submission. Numeric fields stay raw
// until the model coerces them.
type TripInput struct {
	Date             string          `json:"date"`
	Origin           string          `json:"origin"`
	Destination      string          `json:"destination"`
	DriverName       string          `json:"driverName"`
	TruckName        string          `json:"truckName"`
	Revenue          RawNumber       `json:"revenue"`
	PerDiemCount     RawNumber       `json:"perDiemCount"`
	FuelLiters       RawNumber       `json:"fuelLiters"`
	FuelCost         RawNumber       `json:"fuelCost"`
	DriverBaseSalary RawNumber       `json:"driverBaseSalary"`
	DriverBonus      RawNumber       `json:"driverBonus"`
	DriverDeduction  RawNumber       `json:"driverDeduction"`
	MiscCosts        []MiscCostInput `json:"miscCosts,omitempty"`
}

// MiscCostInput is an unvalidated misc cost submission.
type MiscCostInput struct {
	Category      string            `json:"category"`
	Date          string            `json:"date"`
	VehiclePlate  string            `json:"vehiclePlate"`
	Vendor        string            `json:"vendor"`
	Description   string            `json:"description"`
	Amount        RawNumber         `json:"amount"`
	PaymentMethod string            `json:"paymentMethod"`
	PaymentStatus string            `json:"paymentStatus"`
	DueDate       string            `json:"dueDate"`
	Installments  *InstallmentInput `json:"installments,omitempty"`
}

// InstallmentInput describes a parcel plan as typed into the form.
type InstallmentInput struct {
	Count     RawNumber `json:"count"`
	Amount    RawNumber `json:"amount"`
	FirstDate string    `json:"firstDate"`
	DueDay    RawNumber `json:"dueDay"`
}

// MutationResult is the persistence collaborator's reply to a write.
type MutationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// Severity grades a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)
