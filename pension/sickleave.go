package pension

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SICK LEAVE - Day-level weighting of the contribution base
// =============================================================================

// SickLeave is a period of paid sick leave, both ends inclusive. A nil End
// runs to the last day of the start year.
type SickLeave struct {
	Start time.Time
	End   *time.Time
}

func (l SickLeave) bounds() (time.Time, time.Time) {
	start := dateOf(l.Start)
	end := time.Date(start.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	if l.End != nil {
		end = dateOf(*l.End)
	}
	return start, end
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInYear is 366 for leap years, 365 otherwise.
func DaysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

// SickDaysByYear counts distinct sick days per calendar year. A day covered
// by overlapping leaves counts once.
func SickDaysByYear(leaves []SickLeave) (map[int]int, error) {
	spans := make([][2]time.Time, 0, len(leaves))
	for i, l := range leaves {
		start, end := l.bounds()
		if end.Before(start) {
			return nil, invalid("leaves", "leave %d ends %s before it starts %s", i, end.Format("2006-01-02"), start.Format("2006-01-02"))
		}
		spans = append(spans, [2]time.Time{start, end})
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a][0].Before(spans[b][0]) })

	days := make(map[int]int)
	count := func(start, end time.Time) {
		for y := start.Year(); y <= end.Year(); y++ {
			from, to := 1, DaysInYear(y)
			if y == start.Year() {
				from = start.YearDay()
			}
			if y == end.Year() {
				to = end.YearDay()
			}
			days[y] += to - from + 1
		}
	}

	var cur [2]time.Time
	for i, sp := range spans {
		switch {
		case i == 0:
			cur = sp
		case !sp[0].After(cur[1].AddDate(0, 0, 1)):
			if sp[1].After(cur[1]) {
				cur[1] = sp[1]
			}
		default:
			count(cur[0], cur[1])
			cur = sp
		}
	}
	if len(spans) > 0 {
		count(cur[0], cur[1])
	}
	return days, nil
}

// SickFactorsByYear returns a factor for every year in [fromYear, toYear]
// that has leave. During sick leave the base drops to sickPayRatio of
// salary, so
//
//	factor = 1 - sickDays/daysInYear x (1 - sickPayRatio)
//
// Years without leave are absent; callers treat them as 1.
func SickFactorsByYear(leaves []SickLeave, fromYear, toYear int, sickPayRatio decimal.Decimal) (map[int]decimal.Decimal, error) {
	if sickPayRatio.IsNegative() || sickPayRatio.GreaterThan(one) {
		return nil, invalid("sick_pay_ratio", "%s must be in [0, 1]", sickPayRatio)
	}
	days, err := SickDaysByYear(leaves)
	if err != nil {
		return nil, err
	}

	reduction := one.Sub(sickPayRatio)
	factors := make(map[int]decimal.Decimal, len(days))
	for y, n := range days {
		if y < fromYear || y > toYear || n == 0 {
			continue
		}
		share := decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(DaysInYear(y))))
		factors[y] = one.Sub(share.Mul(reduction))
	}
	return factors, nil
}
