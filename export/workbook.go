/*
Package export renders stored calculations as XLSX workbooks.

SHEETS:
  Ledger:  one row per contributory year
           Year | Monthly <job>... | Base before cap | Cap | Base after cap |
           Contribution <job>... | Contribution total | Valorization factor |
           Valorized
  Summary: inputs and derived figures as label/value pairs

  CalculationsWorkbook renders many calculations on one sheet:
  Calculations: one summary row per stored calculation, newest first

Values are written as numbers so the sheet can be re-summed; the stored
decimal strings remain the source of truth.

SEE ALSO:
  - store/sqlite/sqlite.go: CalculationRecord
  - api/handlers.go: GET /api/calculations/{id}/export,
                    GET /api/calculations/export
*/
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/pension-engine/store/sqlite"
)

const (
	LedgerSheet       = "Ledger"
	SummarySheet      = "Summary"
	CalculationsSheet = "Calculations"
)

// CalculationHeaders is the header row of the Calculations sheet.
var CalculationHeaders = []string{
	"Calculation", "Created at", "Sex", "Age", "Postal code",
	"Calculation year", "Work start year", "Work end year", "Retirement year",
	"Include sick leave", "Contributory years",
	"Notional capital (KR)", "Initial capital", "Total capital",
	"Monthly pension", "Real monthly pension", "Replacement rate",
	"Expected pension", "Gap to expected pension",
}

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LedgerWorkbook returns the XLSX bytes for rec.
func LedgerWorkbook(rec sqlite.CalculationRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LedgerSheet); err != nil {
		return nil, err
	}
	if err := writeLedger(f, rec); err != nil {
		return nil, fmt.Errorf("ledger sheet: %w", err)
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, err
	}
	if err := writeSummary(f, rec); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}

	index, _ := f.GetSheetIndex(LedgerSheet)
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// CalculationsWorkbook returns the XLSX bytes for a list of calculations,
// one row each. Records only need their summary columns.
func CalculationsWorkbook(recs []sqlite.CalculationRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CalculationsSheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, CalculationsSheet, 1, toAny(CalculationHeaders)); err != nil {
		return nil, err
	}

	for i, rec := range recs {
		created := ""
		if !rec.CreatedAt.IsZero() {
			created = rec.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []any{
			rec.ID, created, rec.Sex, rec.Age, rec.PostalCode,
			rec.CalculationYear, rec.WorkStartYear, rec.WorkEndYear, rec.RetirementYear,
			rec.IncludeSickLeave, rec.ContributoryYears,
			num(rec.KR), num(rec.InitialCapital), num(rec.Capital),
			num(rec.MonthlyPension), num(rec.RealMonthlyPension), num(rec.ReplacementRate),
			optional(rec.ExpectedPension), optional(rec.ExpectedPensionGap),
		}
		if err := writeRow(f, CalculationsSheet, i+2, row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	last, _ := excelize.ColumnNumberToName(len(CalculationHeaders))
	if err := f.SetColWidth(CalculationsSheet, "A", last, 18); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// LedgerHeaders returns the Ledger sheet header row for rec's jobs.
func LedgerHeaders(rec sqlite.CalculationRecord) []string {
	headers := []string{"Year"}
	for i, j := range rec.Jobs {
		headers = append(headers, "Monthly "+jobName(i, j))
	}
	headers = append(headers, "Base before cap", "Cap", "Base after cap")
	for i, j := range rec.Jobs {
		headers = append(headers, "Contribution "+jobName(i, j))
	}
	return append(headers, "Contribution total", "Valorization factor", "Valorized")
}

func writeLedger(f *excelize.File, rec sqlite.CalculationRecord) error {
	if err := writeRow(f, LedgerSheet, 1, toAny(LedgerHeaders(rec))); err != nil {
		return err
	}

	for i, y := range rec.Years {
		row := []any{y.Year}
		row = append(row, numbers(y.MonthlyByJob)...)
		row = append(row, num(y.BaseBeforeCap), num(y.CapAnnual), num(y.BaseAfterCap))
		row = append(row, numbers(y.ContributionsByJob)...)
		row = append(row, num(y.ContributionTotal), num(y.ValorizationFactor), num(y.Valorized))
		if err := writeRow(f, LedgerSheet, i+2, row); err != nil {
			return err
		}
	}

	last, _ := excelize.ColumnNumberToName(len(LedgerHeaders(rec)))
	return f.SetColWidth(LedgerSheet, "A", last, 18)
}

func writeSummary(f *excelize.File, rec sqlite.CalculationRecord) error {
	rows := [][]any{
		{"Calculation", rec.ID},
		{"Sex", rec.Sex},
		{"Age", rec.Age},
		{"Calculation year", rec.CalculationYear},
		{"Work start year", rec.WorkStartYear},
		{"Work end year", rec.WorkEndYear},
		{"Retirement year", rec.RetirementYear},
		{"Contribution rate", num(rec.ContributionRate)},
		{"Include sick leave", rec.IncludeSickLeave},
		{"Statistics scenario", rec.StatisticsScenario},
		{"Contributory years", rec.ContributoryYears},
		{"Notional capital (KR)", num(rec.KR)},
		{"Initial capital", num(rec.InitialCapital)},
		{"Total capital", num(rec.Capital)},
		{"Age at retirement", rec.AgeAtRetirement},
		{"Life expectancy (years)", num(rec.LifeExpectancyYears)},
		{"Monthly pension", num(rec.MonthlyPension)},
		{"Real monthly pension", num(rec.RealMonthlyPension)},
		{"Average wage at retirement", num(rec.AverageWageAtRetirement)},
		{"Replacement rate", num(rec.ReplacementRate)},
	}
	if rec.ExpectedPension != nil {
		rows = append(rows, []any{"Expected pension", num(*rec.ExpectedPension)})
	}
	if rec.ExpectedPensionGap != nil {
		rows = append(rows, []any{"Gap to expected pension", num(*rec.ExpectedPensionGap)})
	}

	for i, r := range rows {
		if err := writeRow(f, SummarySheet, i+1, r); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 28)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func jobName(i int, j sqlite.JobRecord) string {
	if j.Label != "" {
		return j.Label
	}
	return fmt.Sprintf("job %d", i+1)
}

func num(d decimal.Decimal) float64 { return d.InexactFloat64() }

// optional leaves the cell empty for a nil value.
func optional(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return num(*d)
}

func numbers(ds []decimal.Decimal) []any {
	out := make([]any, len(ds))
	for i, d := range ds {
		out[i] = num(d)
	}
	return out
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
