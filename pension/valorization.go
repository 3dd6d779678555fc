package pension

import "github.com/shopspring/decimal"

// ChainFactor returns the multiplier that carries an amount booked in
// startYear to endYear: the product of 1+valorization[y] for y in
// (startYear, endYear]. A year's own index applies at its year-end close,
// so nothing is valorized when endYear <= startYear.
func ChainFactor(valorization YearTable, startYear, endYear int) (decimal.Decimal, error) {
	f := one
	for y := startYear + 1; y <= endYear; y++ {
		v, err := valorization.At(y)
		if err != nil {
			return decimal.Zero, err
		}
		f = f.Mul(one.Add(v))
	}
	return f, nil
}
