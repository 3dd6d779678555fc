/*
Package pension is the contribution and valorization engine.

PURPOSE:
  Turns a job history plus the index tables into a year-by-year
  contribution ledger and a notional capital (KR) at the retirement year,
  then converts KR into a monthly pension.

PIPELINE:
  indices.Tables
      |
      +--> ProjectSalary (salary.go)   job salary at base year -> year y
      +--> ChainFactor   (valorization.go) contribution in y -> retirement
      |
      v
  Build (contributions.go)   per year: project, sick-leave, cap, allocate,
      |                      valorize, accumulate KR
      v
  Award (award.go)           KR / (12 x life expectancy)

  Calculator (calculator.go) wires the pipeline for the service layer and
  adds sick-leave weighting from leave dates, eligibility, initial capital,
  real (inflation-adjusted) pension and replacement rate.

DESIGN PRINCIPLES:
  1. Pure: no I/O, no clocks, no shared mutable state. Same inputs and
     tables always give the same ledger.
  2. Fail fast: parameter problems are reported before the first year is
     computed; a missing table year aborts the run.
  3. Precision: money and coefficients are decimal.Decimal.
  4. Auditability: every intermediate of a year is kept in YearBreakdown.

SEE ALSO:
  - indices/tables.go: Table lookups
  - api/handlers.go: HTTP surface
*/
package pension

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// AnnualCapMultiple is the number of average monthly wages that form
	// the yearly ceiling on the combined contribution base.
	AnnualCapMultiple = 30

	MonthsPerYear = 12
)

var (
	one         = decimal.NewFromInt(1)
	months      = decimal.NewFromInt(MonthsPerYear)
	capMultiple = decimal.NewFromInt(AnnualCapMultiple)
)

// YearTable is a year-keyed coefficient lookup. indices.YearSeries
// implements it.
type YearTable interface {
	At(year int) (decimal.Decimal, error)
}

// =============================================================================
// JOB
// =============================================================================

// Job is one employment relationship.
type Job struct {
	// BaseSalaryMonthly is the gross monthly salary as of BaseYear.
	BaseSalaryMonthly decimal.Decimal
	BaseYear          int

	StartYear int  // inclusive
	EndYear   *int // inclusive; nil = open-ended

	Label string

	// SickFactor overrides every other sick factor for this job when
	// sick leave is included.
	SickFactor *decimal.Decimal
}

// ActiveIn reports whether the job contributes in year.
func (j Job) ActiveIn(year int) bool {
	return year >= j.StartYear && (j.EndYear == nil || year <= *j.EndYear)
}

func (j Job) name(i int) string {
	if j.Label != "" {
		return fmt.Sprintf("job %d (%s)", i, j.Label)
	}
	return fmt.Sprintf("job %d", i)
}

// =============================================================================
// LEDGER
// =============================================================================

// YearBreakdown records every intermediate value of one contributory year.
// Per-job slices are index-aligned with the input jobs.
type YearBreakdown struct {
	Year int

	MonthlyByJob []decimal.Decimal // projected monthly salary, 0 if inactive
	BaseByJob    []decimal.Decimal // annual base after sick factor, before cap

	BaseAnnualBeforeCap decimal.Decimal
	CapAnnual           decimal.Decimal
	BaseAnnualAfterCap  decimal.Decimal

	ContributionsByJob []decimal.Decimal
	ContributionTotal  decimal.Decimal

	ValorizationFactor    decimal.Decimal
	ValorizedToRetirement decimal.Decimal
}

// MultiJobResult is the ordered ledger plus the notional capital.
type MultiJobResult struct {
	Years []YearBreakdown
	KR    decimal.Decimal
}

// =============================================================================
// BUILD INPUT
// =============================================================================

// BuildInput holds the parameters of one Build run.
type BuildInput struct {
	Jobs []Job

	StartYear int
	EndYear   int

	// Tau is the contribution rate, 0 < Tau <= 1.
	Tau decimal.Decimal

	IncludeSickLeave bool
	SickFactorGlobal decimal.Decimal

	// SickFactorByYear carries day-weighted factors derived from leave
	// periods (see SickFactorsByYear). A year present here replaces the
	// global factor; a job override still wins.
	SickFactorByYear map[int]decimal.Decimal

	RetirementYear int
}

// sickFactor resolves the factor for job in year.
func (in BuildInput) sickFactor(job Job, year int) decimal.Decimal {
	if !in.IncludeSickLeave {
		return one
	}
	if job.SickFactor != nil {
		return *job.SickFactor
	}
	if f, ok := in.SickFactorByYear[year]; ok {
		return f
	}
	return in.SickFactorGlobal
}
