package pension

import "github.com/shopspring/decimal"

// Award converts notional capital into the first monthly pension by
// spreading it over the remaining life expectancy in months. The pension
// is not indexed after award.
func Award(kr, lifeExpectancyYears decimal.Decimal) (decimal.Decimal, error) {
	if !lifeExpectancyYears.IsPositive() {
		return decimal.Zero, invalid("life_expectancy", "must be > 0, got %s", lifeExpectancyYears)
	}
	return kr.Div(months.Mul(lifeExpectancyYears)), nil
}
