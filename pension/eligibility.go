package pension

// ContributoryYears counts ledger years with a positive contribution.
func ContributoryYears(result *MultiJobResult) int {
	n := 0
	for _, y := range result.Years {
		if y.ContributionTotal.IsPositive() {
			n++
		}
	}
	return n
}

// CheckEligibility fails with *NotEligibleError when the ledger holds fewer
// than minYears contributory years. minYears <= 0 disables the gate.
func CheckEligibility(result *MultiJobResult, minYears int) error {
	if minYears <= 0 {
		return nil
	}
	if n := ContributoryYears(result); n < minYears {
		return &NotEligibleError{Years: n, Required: minYears}
	}
	return nil
}
