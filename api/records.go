/*
records.go - Mapping between wire DTOs, engine types and stored records

FLOW:
  CalculationRequest --toEngineRequest--> pension.Request
  pension.Outcome    --toRecord---------> sqlite.CalculationRecord
  CalculationRecord  --toCalculationDTO-> CalculationDTO

  Previews skip the store but share the same record shape, so a preview
  and a saved calculation serialize identically.

ROUNDING:
  The engine multiplies exactly, so compounded factors grow a digit or
  more per year. Derived figures are rounded to RecordScale places when
  the record is built; inputs are kept as given.
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pension-engine/indices"
	"github.com/warp/pension-engine/pension"
	"github.com/warp/pension-engine/store/sqlite"
)

const dateLayout = "2006-01-02"

// RecordScale is the number of decimal places kept for derived figures.
const RecordScale = 10

func rounded(d decimal.Decimal) decimal.Decimal { return d.Round(RecordScale) }

func roundedPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := rounded(*d)
	return &r
}

func roundedAll(ds []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ds))
	for i, d := range ds {
		out[i] = rounded(d)
	}
	return out
}

// toEngineRequest converts and syntactically checks a request body.
// Semantic checks are left to the engine.
func toEngineRequest(req CalculationRequest, calculationYear int) (pension.Request, error) {
	sex, err := indices.ParseSex(req.Sex)
	if err != nil {
		return pension.Request{}, &pension.ValidationError{Field: "sex", Reason: err.Error()}
	}

	if req.CalculationYear != 0 {
		calculationYear = req.CalculationYear
	}

	out := pension.Request{
		Sex:                   sex,
		Age:                   req.Age,
		CalculationYear:       calculationYear,
		WorkStartYear:         req.WorkStartYear,
		WorkEndYear:           req.WorkEndYear,
		RetirementYear:        req.RetirementYear,
		IncludeSickLeave:      req.IncludeSickLeave,
		ExpectedPension:       req.ExpectedPension,
		TotalAccumulatedFunds: req.TotalAccumulatedFunds,
	}

	for _, j := range req.Jobs {
		out.Jobs = append(out.Jobs, pension.Job{
			Label:             j.Label,
			BaseSalaryMonthly: j.BaseSalaryMonthly,
			BaseYear:          j.BaseYear,
			StartYear:         j.StartYear,
			EndYear:           j.EndYear,
			SickFactor:        j.SickFactor,
		})
	}

	for i, l := range req.SickLeaves {
		start, err := time.Parse(dateLayout, l.Start)
		if err != nil {
			return pension.Request{}, &pension.ValidationError{
				Field:  fmt.Sprintf("sick_leaves[%d].start", i),
				Reason: "use YYYY-MM-DD",
			}
		}
		leave := pension.SickLeave{Start: start}
		if l.End != "" {
			end, err := time.Parse(dateLayout, l.End)
			if err != nil {
				return pension.Request{}, &pension.ValidationError{
					Field:  fmt.Sprintf("sick_leaves[%d].end", i),
					Reason: "use YYYY-MM-DD",
				}
			}
			leave.End = &end
		}
		out.SickLeaves = append(out.SickLeaves, leave)
	}

	return out, nil
}

// toRecord captures a finished calculation in storable form.
func toRecord(id string, req pension.Request, postalCode string, out *pension.Outcome, settings pension.Settings, tables *indices.Tables, createdAt time.Time) sqlite.CalculationRecord {
	rec := sqlite.CalculationRecord{
		ID:                      id,
		Sex:                     string(req.Sex),
		Age:                     req.Age,
		PostalCode:              postalCode,
		CalculationYear:         req.CalculationYear,
		WorkStartYear:           out.StartYear,
		WorkEndYear:             out.EndYear,
		RetirementYear:          req.RetirementYear,
		IncludeSickLeave:        req.IncludeSickLeave,
		ExpectedPension:         req.ExpectedPension,
		TotalAccumulatedFunds:   req.TotalAccumulatedFunds,
		ContributionRate:        settings.ContributionRate,
		StatisticsScenario:      tables.Meta().Scenario,
		KR:                      rounded(out.Result.KR),
		InitialCapital:          rounded(out.InitialCapital),
		Capital:                 rounded(out.Capital),
		ContributoryYears:       out.ContributoryYears,
		AgeAtRetirement:         out.AgeAtRetirement,
		LifeExpectancyYears:     rounded(out.LifeExpectancyYears),
		MonthlyPension:          rounded(out.MonthlyPension),
		RealMonthlyPension:      rounded(out.RealMonthlyPension),
		AverageWageAtRetirement: rounded(out.AverageWageAtRetirement),
		ReplacementRate:         rounded(out.ReplacementRate),
		ExpectedPensionGap:      roundedPtr(out.ExpectedPensionGap),
		CreatedAt:               createdAt,
	}

	for _, j := range out.Jobs {
		rec.Jobs = append(rec.Jobs, sqlite.JobRecord{
			Label:             j.Label,
			BaseSalaryMonthly: j.BaseSalaryMonthly,
			BaseYear:          j.BaseYear,
			StartYear:         j.StartYear,
			EndYear:           j.EndYear,
			SickFactor:        j.SickFactor,
		})
	}
	for _, l := range req.SickLeaves {
		rec.Leaves = append(rec.Leaves, sqlite.LeaveRecord{Start: l.Start, End: l.End})
	}
	for _, y := range out.Result.Years {
		rec.Years = append(rec.Years, sqlite.YearRecord{
			Year:               y.Year,
			MonthlyByJob:       roundedAll(y.MonthlyByJob),
			BaseByJob:          roundedAll(y.BaseByJob),
			BaseBeforeCap:      rounded(y.BaseAnnualBeforeCap),
			CapAnnual:          rounded(y.CapAnnual),
			BaseAfterCap:       rounded(y.BaseAnnualAfterCap),
			ContributionsByJob: roundedAll(y.ContributionsByJob),
			ContributionTotal:  rounded(y.ContributionTotal),
			ValorizationFactor: rounded(y.ValorizationFactor),
			Valorized:          rounded(y.ValorizedToRetirement),
		})
	}
	return rec
}

func toSummaryDTO(rec sqlite.CalculationRecord) CalculationSummaryDTO {
	dto := CalculationSummaryDTO{
		ID:                      rec.ID,
		Sex:                     rec.Sex,
		Age:                     rec.Age,
		CalculationYear:         rec.CalculationYear,
		WorkStartYear:           rec.WorkStartYear,
		WorkEndYear:             rec.WorkEndYear,
		RetirementYear:          rec.RetirementYear,
		ContributoryYears:       rec.ContributoryYears,
		KR:                      rec.KR,
		InitialCapital:          rec.InitialCapital,
		Capital:                 rec.Capital,
		AgeAtRetirement:         rec.AgeAtRetirement,
		LifeExpectancyYears:     rec.LifeExpectancyYears,
		MonthlyPension:          rec.MonthlyPension,
		RealMonthlyPension:      rec.RealMonthlyPension,
		AverageWageAtRetirement: rec.AverageWageAtRetirement,
		ReplacementRate:         rec.ReplacementRate,
		ExpectedPension:         rec.ExpectedPension,
		ExpectedPensionGap:      rec.ExpectedPensionGap,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toCalculationDTO(rec sqlite.CalculationRecord) CalculationDTO {
	dto := CalculationDTO{
		CalculationSummaryDTO: toSummaryDTO(rec),
		IncludeSickLeave:      rec.IncludeSickLeave,
		ContributionRate:      rec.ContributionRate,
		TotalAccumulatedFunds: rec.TotalAccumulatedFunds,
		PostalCode:            rec.PostalCode,
		StatisticsScenario:    rec.StatisticsScenario,
		Jobs:                  make([]JobDTO, len(rec.Jobs)),
		Years:                 make([]YearDTO, len(rec.Years)),
	}
	for i, j := range rec.Jobs {
		dto.Jobs[i] = JobDTO{
			Label:             j.Label,
			BaseSalaryMonthly: j.BaseSalaryMonthly,
			BaseYear:          j.BaseYear,
			StartYear:         j.StartYear,
			EndYear:           j.EndYear,
			SickFactor:        j.SickFactor,
		}
	}
	for _, l := range rec.Leaves {
		leave := SickLeaveRequest{Start: l.Start.Format(dateLayout)}
		if l.End != nil {
			leave.End = l.End.Format(dateLayout)
		}
		dto.SickLeaves = append(dto.SickLeaves, leave)
	}
	for i, y := range rec.Years {
		dto.Years[i] = YearDTO{
			Year:                  y.Year,
			MonthlyByJob:          y.MonthlyByJob,
			BaseByJob:             y.BaseByJob,
			BaseAnnualBeforeCap:   y.BaseBeforeCap,
			CapAnnual:             y.CapAnnual,
			BaseAnnualAfterCap:    y.BaseAfterCap,
			ContributionsByJob:    y.ContributionsByJob,
			ContributionTotal:     y.ContributionTotal,
			ValorizationFactor:    y.ValorizationFactor,
			ValorizedToRetirement: y.Valorized,
		}
	}
	return dto
}

func toSeriesDTO(s indices.YearSeries) SeriesDTO {
	points := s.Points()
	dto := SeriesDTO{Name: string(s.Name()), Points: make([]PointDTO, len(points))}
	for i, p := range points {
		dto.Points[i] = PointDTO{Year: p.Year, Value: p.Value}
	}
	return dto
}

func toLifeExpectancyDTO(life indices.LifeExpectancy, sex indices.Sex) LifeExpectancyDTO {
	points := life.Points(sex)
	dto := LifeExpectancyDTO{Gender: string(sex), Points: make([]LifePointDTO, len(points))}
	for i, p := range points {
		dto.Points[i] = LifePointDTO{Year: p.Year, Age: p.Age, Value: p.Value}
	}
	return dto
}
