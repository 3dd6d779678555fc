package pension

import "github.com/shopspring/decimal"

// ProjectSalary carries a salary stated for baseYear to targetYear.
//
// Forward, each year y in (baseYear, targetYear] multiplies by 1+growth[y].
// Backward, each year y from baseYear down to targetYear+1 divides by
// 1+growth[y], so a forward then backward projection returns the input.
func ProjectSalary(base decimal.Decimal, baseYear, targetYear int, growth YearTable) (decimal.Decimal, error) {
	s := base
	switch {
	case targetYear > baseYear:
		for y := baseYear + 1; y <= targetYear; y++ {
			g, err := growth.At(y)
			if err != nil {
				return decimal.Zero, err
			}
			s = s.Mul(one.Add(g))
		}
	case targetYear < baseYear:
		for y := baseYear; y > targetYear; y-- {
			g, err := growth.At(y)
			if err != nil {
				return decimal.Zero, err
			}
			f := one.Add(g)
			if f.IsZero() {
				return decimal.Zero, invalid("growth", "rate of -100%% in %d cannot be reversed", y)
			}
			s = s.Div(f)
		}
	}
	return s, nil
}
