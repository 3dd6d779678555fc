/*
calculator.go - End-to-end pension calculation for one person

PURPOSE:
  The service layer hands in a person (sex, age, career years, jobs, sick
  leaves) and gets back the ledger and every derived pension figure. This
  is the only entry point the HTTP handlers use.

STEPS:
  1. Validate the request and fill defaults (job base/start years,
     working span ending the year before retirement). A span outside the
     average wage table fails here, before any per-year work.
  2. Turn leave dates into per-year sick factors (sickleave.go).
  3. Build the ledger (contributions.go).
  4. Enforce the minimum contributory years gate (eligibility.go).
  5. Add already accumulated funds, valorized to retirement.
  6. Look up life expectancy at (sex, retirement year, retirement age)
     and award the pension (award.go).
  7. Deflate by cumulative inflation for the real pension; divide by the
     average wage at retirement for the replacement rate.

CANCELLATION:
  The engine is bounded and side-effect free. Calculate only checks ctx
  before and after the ledger is built so a caller deadline is honored.

SEE ALSO:
  - api/handlers.go: Maps DTOs to Request
*/
package pension

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/pension-engine/indices"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings are the scheme parameters shared by every calculation.
type Settings struct {
	// ContributionRate is tau.
	ContributionRate decimal.Decimal

	// SickFactor is the global factor used when no leave dates are given.
	SickFactor decimal.Decimal

	// SickPayRatio is the share of salary that remains the contribution
	// base on a sick day; it drives SickFactorsByYear.
	SickPayRatio decimal.Decimal

	// MinContributoryYears gates eligibility; 0 disables the gate.
	MinContributoryYears int
}

// DefaultSettings returns the standard scheme parameters.
func DefaultSettings() Settings {
	return Settings{
		ContributionRate: decimal.RequireFromString("0.1952"),
		SickFactor:       decimal.RequireFromString("0.97"),
		SickPayRatio:     decimal.RequireFromString("0.8"),
	}
}

// =============================================================================
// REQUEST / OUTCOME
// =============================================================================

// Request describes one person's career.
type Request struct {
	Sex             indices.Sex
	Age             int // age in CalculationYear
	CalculationYear int

	WorkStartYear  int
	WorkEndYear    *int // default: RetirementYear - 1
	RetirementYear int

	// Jobs with BaseYear 0 are stated for CalculationYear; StartYear 0
	// means WorkStartYear.
	Jobs       []Job
	SickLeaves []SickLeave

	IncludeSickLeave bool

	ExpectedPension       *decimal.Decimal
	TotalAccumulatedFunds *decimal.Decimal
}

// Outcome is the ledger plus every figure derived from it.
type Outcome struct {
	Result *MultiJobResult
	Jobs   []Job // jobs as used, defaults applied

	StartYear         int
	EndYear           int
	ContributoryYears int

	// InitialCapital is TotalAccumulatedFunds valorized to retirement.
	InitialCapital decimal.Decimal
	// Capital is Result.KR + InitialCapital.
	Capital decimal.Decimal

	AgeAtRetirement     int
	LifeExpectancyYears decimal.Decimal

	MonthlyPension          decimal.Decimal
	RealMonthlyPension      decimal.Decimal
	AverageWageAtRetirement decimal.Decimal
	ReplacementRate         decimal.Decimal

	// ExpectedPensionGap is expected minus nominal pension, when an
	// expectation was given. Positive means a shortfall.
	ExpectedPensionGap *decimal.Decimal
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator runs calculations against one frozen table set. It is safe
// for concurrent use.
type Calculator struct {
	tables   *indices.Tables
	settings Settings
}

// NewCalculator binds tables and scheme settings.
func NewCalculator(tables *indices.Tables, settings Settings) *Calculator {
	return &Calculator{tables: tables, settings: settings}
}

func (c *Calculator) Tables() *indices.Tables { return c.tables }
func (c *Calculator) Settings() Settings      { return c.settings }

// Calculate runs the full pipeline for req.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	start := req.WorkStartYear
	end := req.RetirementYear - 1
	if req.WorkEndYear != nil {
		end = *req.WorkEndYear
	}

	jobs := make([]Job, len(req.Jobs))
	for i, j := range req.Jobs {
		if j.BaseYear == 0 {
			j.BaseYear = req.CalculationYear
		}
		if j.StartYear == 0 {
			j.StartYear = req.WorkStartYear
		}
		jobs[i] = j
	}

	in := BuildInput{
		Jobs:             jobs,
		StartYear:        start,
		EndYear:          end,
		Tau:              c.settings.ContributionRate,
		IncludeSickLeave: req.IncludeSickLeave,
		SickFactorGlobal: c.settings.SickFactor,
		RetirementYear:   req.RetirementYear,
	}
	if start > end {
		return nil, invalid("work_end_year", "%d is before work start %d", end, start)
	}
	if err := checkCoverage(c.tables, start, end); err != nil {
		return nil, err
	}
	if req.IncludeSickLeave && len(req.SickLeaves) > 0 {
		factors, err := SickFactorsByYear(req.SickLeaves, start, end, c.settings.SickPayRatio)
		if err != nil {
			return nil, err
		}
		// Dates replace the global factor; years without leave keep 1.
		in.SickFactorByYear = factors
		in.SickFactorGlobal = one
	}

	result, err := Build(c.tables, in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckEligibility(result, c.settings.MinContributoryYears); err != nil {
		return nil, err
	}

	out := &Outcome{
		Result:            result,
		Jobs:              jobs,
		StartYear:         start,
		EndYear:           end,
		ContributoryYears: ContributoryYears(result),
		InitialCapital:    decimal.Zero,
		AgeAtRetirement:   req.Age + (req.RetirementYear - req.CalculationYear),
	}

	if req.TotalAccumulatedFunds != nil && req.TotalAccumulatedFunds.IsPositive() {
		f, err := ChainFactor(c.tables.Valorization(), req.CalculationYear, req.RetirementYear)
		if err != nil {
			return nil, fmt.Errorf("valorize accumulated funds: %w", err)
		}
		out.InitialCapital = req.TotalAccumulatedFunds.Mul(f)
	}
	out.Capital = result.KR.Add(out.InitialCapital)

	le, err := c.tables.LifeExpectancy().At(req.Sex, req.RetirementYear, out.AgeAtRetirement)
	if err != nil {
		return nil, err
	}
	out.LifeExpectancyYears = le

	if out.MonthlyPension, err = Award(out.Capital, le); err != nil {
		return nil, err
	}

	deflator, err := ChainFactor(c.tables.Inflation(), req.CalculationYear, req.RetirementYear)
	if err != nil {
		return nil, fmt.Errorf("deflate pension: %w", err)
	}
	if !deflator.IsPositive() {
		return nil, fmt.Errorf("inflation chain %d-%d is not positive", req.CalculationYear, req.RetirementYear)
	}
	out.RealMonthlyPension = out.MonthlyPension.Div(deflator)

	avg, err := c.tables.AverageWage().At(req.RetirementYear)
	if err != nil {
		return nil, fmt.Errorf("replacement rate: %w", err)
	}
	if !avg.IsPositive() {
		return nil, fmt.Errorf("average wage for %d is not positive", req.RetirementYear)
	}
	out.AverageWageAtRetirement = avg
	out.ReplacementRate = out.MonthlyPension.Div(avg)

	if req.ExpectedPension != nil {
		gap := req.ExpectedPension.Sub(out.MonthlyPension)
		out.ExpectedPensionGap = &gap
	}

	return out, nil
}

func (r Request) validate() error {
	if r.Sex != indices.SexMale && r.Sex != indices.SexFemale {
		return invalid("sex", "must be M or F, got %q", r.Sex)
	}
	if r.Age < 0 {
		return invalid("age", "must not be negative")
	}
	if len(r.Jobs) == 0 {
		return invalid("jobs", "at least one job is required")
	}
	if r.RetirementYear < r.WorkStartYear {
		return invalid("retirement_year", "%d is before work start %d", r.RetirementYear, r.WorkStartYear)
	}
	if r.ExpectedPension != nil && r.ExpectedPension.IsNegative() {
		return invalid("expected_pension", "must not be negative")
	}
	if r.TotalAccumulatedFunds != nil && r.TotalAccumulatedFunds.IsNegative() {
		return invalid("total_accumulated_funds", "must not be negative")
	}
	return nil
}
