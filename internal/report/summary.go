// Package report renders ledger summaries as printable documents.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"

	"github.com/phpdave11/gofpdf"
)

var tripColumns = []struct {
	title string
	width float64
}{
	{"Date", 22}, {"Route", 58}, {"Driver", 30}, {"Revenue", 26}, {"Expense", 26}, {"Profit", 28},
}

// RenderSummary builds an A4 PDF with the summary totals, the expense
// breakdown, misc costs per category and one row per trip.
func RenderSummary(title string, s ledger.Summary, trips []domain.TripRecord, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(title), false)
	pdf.SetCreator("truck-ledger-bfa", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if s.Range != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s (%d days)", s.Range.Start, s.Range.End, s.CalendarDays))
	} else {
		pdf.Cell(0, 6, "Period: all trips")
	}
	pdf.Ln(6)
	pdf.Cell(0, 6, "Generated: "+generatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	section(pdf, "Totals")
	line(pdf, "Trips", fmt.Sprintf("%d", s.TripCount))
	line(pdf, "Revenue", money(s.TotalRevenue))
	line(pdf, "Expense", money(s.TotalExpense))
	line(pdf, "Net profit", money(s.NetProfit))
	line(pdf, "Average profit per trip", money(s.AverageDailyProfit))
	if s.Range != nil {
		line(pdf, "Average profit per day", money(s.AverageProfitPerCalendarDay))
	}
	line(pdf, "Fuel", fmt.Sprintf("%.2f L", s.FuelLiters))
	pdf.Ln(4)

	section(pdf, "Expenses")
	line(pdf, "Fuel", money(s.Expenses.Fuel))
	line(pdf, "Per-diem", money(s.Expenses.PerDiem))
	line(pdf, "Misc costs", money(s.Expenses.MiscCosts))
	line(pdf, "Driver pay", money(s.Expenses.DriverPay))
	pdf.Ln(4)

	if len(s.MiscByCategory) > 0 {
		section(pdf, "Misc costs by category")
		cats := make([]domain.Category, 0, len(s.MiscByCategory))
		for c := range s.MiscByCategory {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
		for _, c := range cats {
			ct := s.MiscByCategory[c]
			line(pdf, fmt.Sprintf("%s (%d)", tr(ct.Label), ct.Count), money(ct.Total))
		}
		pdf.Ln(4)
	}

	if len(trips) > 0 {
		section(pdf, "Trips")
		pdf.SetFont("Helvetica", "B", 10)
		for _, col := range tripColumns {
			pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 9)
		for _, t := range trips {
			f := ledger.DeriveFinancials(t)
			cells := []string{
				t.Date.String(),
				tr(fmt.Sprintf("%s - %s", t.Origin, t.Destination)),
				tr(t.DriverName),
				money(t.Revenue),
				money(f.TotalExpense),
				money(f.NetProfit),
			}
			for i, col := range tripColumns {
				align := "L"
				if i >= 3 {
					align = "R"
				}
				pdf.CellFormat(col.width, 6, cells[i], "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, name string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, name)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
}

func line(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(80, 6, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, value, "", 1, "R", false, 0, "")
}

func money(m domain.Money) string {
	return "R$ " + m.String()
}
