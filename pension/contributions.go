/*
contributions.go - Annual contribution builder

SPAN:
  Both StartYear and EndYear must be in the average wage table; anything
  else is a missing-data error before the first year is computed.

PER YEAR (StartYear..EndYear, ascending):
  1. Project every active job's monthly salary to the year.
  2. Annual base per job = 12 x monthly x sick factor.
  3. Cap = 30 x average monthly wage of the year; after-cap = min(sum, cap).
  4. Allocate contributions per job:
       sum <= 0    -> all zero
       sum <= cap  -> tau x base
       sum >  cap  -> tau x base x cap/sum   (pro-rata, shares stay
                                              proportional to each base)
  5. Valorize the year total to RetirementYear and add it to KR.
  6. Record the YearBreakdown.

SICK FACTOR PRECEDENCE (IncludeSickLeave only):
  job override > SickFactorByYear[year] > SickFactorGlobal

SEE ALSO:
  - salary.go, valorization.go: Per-year helpers
  - sickleave.go: Builds SickFactorByYear from leave dates
*/
package pension

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/pension-engine/indices"
)

// Build computes the contribution ledger and notional capital.
func Build(tables *indices.Tables, in BuildInput) (*MultiJobResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := checkCoverage(tables, in.StartYear, in.EndYear); err != nil {
		return nil, err
	}

	n := len(in.Jobs)
	result := &MultiJobResult{KR: decimal.Zero}

	for y := in.StartYear; y <= in.EndYear; y++ {
		monthly := make([]decimal.Decimal, n)
		bases := make([]decimal.Decimal, n)

		for i, job := range in.Jobs {
			if !job.ActiveIn(y) {
				monthly[i] = decimal.Zero
				bases[i] = decimal.Zero
				continue
			}
			m, err := ProjectSalary(job.BaseSalaryMonthly, job.BaseYear, y, tables.Growth())
			if err != nil {
				return nil, fmt.Errorf("project %s to %d: %w", job.name(i), y, err)
			}
			monthly[i] = m
			bases[i] = m.Mul(months).Mul(in.sickFactor(job, y))
		}

		before := sum(bases)
		avgWage, err := tables.AverageWage().At(y)
		if err != nil {
			return nil, fmt.Errorf("cap for %d: %w", y, err)
		}
		capAnnual := avgWage.Mul(capMultiple)
		after := decimal.Min(before, capAnnual)

		contributions := allocate(bases, before, capAnnual, in.Tau)
		total := sum(contributions)

		factor, err := ChainFactor(tables.Valorization(), y, in.RetirementYear)
		if err != nil {
			return nil, fmt.Errorf("valorize %d to %d: %w", y, in.RetirementYear, err)
		}
		valorized := total.Mul(factor)
		result.KR = result.KR.Add(valorized)

		result.Years = append(result.Years, YearBreakdown{
			Year:                  y,
			MonthlyByJob:          monthly,
			BaseByJob:             bases,
			BaseAnnualBeforeCap:   before,
			CapAnnual:             capAnnual,
			BaseAnnualAfterCap:    after,
			ContributionsByJob:    contributions,
			ContributionTotal:     total,
			ValorizationFactor:    factor,
			ValorizedToRetirement: valorized,
		})
	}

	return result, nil
}

// checkCoverage fails with a missing-data error when either end of the
// span lies outside the average wage table. Every ledger year needs a wage,
// so this bounds the span to the table before the first year runs.
func checkCoverage(tables *indices.Tables, startYear, endYear int) error {
	wages := tables.AverageWage()
	for _, y := range []int{startYear, endYear} {
		if !wages.Has(y) {
			_, err := wages.At(y)
			return fmt.Errorf("ledger span %d-%d: %w", startYear, endYear, err)
		}
	}
	return nil
}

// allocate splits tau x min(before, cap) across jobs in proportion to
// their bases.
func allocate(bases []decimal.Decimal, before, capAnnual, tau decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bases))
	switch {
	case !before.IsPositive():
		for i := range out {
			out[i] = decimal.Zero
		}
	case before.LessThanOrEqual(capAnnual):
		for i, b := range bases {
			out[i] = tau.Mul(b)
		}
	default:
		scale := capAnnual.Div(before)
		for i, b := range bases {
			out[i] = tau.Mul(b).Mul(scale)
		}
	}
	return out
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (in BuildInput) validate() error {
	if in.StartYear > in.EndYear {
		return invalid("year range", "start year %d is after end year %d", in.StartYear, in.EndYear)
	}
	if !in.Tau.IsPositive() || in.Tau.GreaterThan(one) {
		return invalid("tau", "contribution rate %s must be in (0, 1]", in.Tau)
	}
	for i, job := range in.Jobs {
		if job.EndYear != nil && *job.EndYear < job.StartYear {
			return invalid(fmt.Sprintf("jobs[%d].end_year", i), "end year %d is before start year %d", *job.EndYear, job.StartYear)
		}
		if job.BaseSalaryMonthly.IsNegative() {
			return invalid(fmt.Sprintf("jobs[%d].base_salary", i), "salary must not be negative")
		}
	}
	if !in.IncludeSickLeave {
		return nil
	}
	if !isFactor(in.SickFactorGlobal) {
		return invalid("sick_factor", "global factor %s must be in (0, 1]", in.SickFactorGlobal)
	}
	for i, job := range in.Jobs {
		if job.SickFactor != nil && !isFactor(*job.SickFactor) {
			return invalid(fmt.Sprintf("jobs[%d].sick_factor", i), "factor %s must be in (0, 1]", *job.SickFactor)
		}
	}
	for y, f := range in.SickFactorByYear {
		if f.IsNegative() || f.GreaterThan(one) {
			return invalid("sick_factor_by_year", "factor %s for %d must be in [0, 1]", f, y)
		}
	}
	return nil
}

func isFactor(f decimal.Decimal) bool {
	return f.IsPositive() && f.LessThanOrEqual(one)
}
