/*
Package indices holds the macroeconomic tables the pension engine reads.

PURPOSE:
  Five series drive every projection: wage growth, inflation, average
  monthly wage, valorization and life expectancy. They are loaded once at
  process start and then only read, so a single *Tables is shared by every
  concurrent calculation without locking.

KEY CONCEPTS:
  - YearSeries: year -> coefficient, immutable after construction
  - LifeExpectancy: (sex, year[, age]) -> remaining years of life
  - Tables: the frozen bundle of all series plus source metadata

IMMUTABILITY:
  New copies every input map. No exported method hands out a map the
  caller could write to; Years/Points return fresh slices.

RATE CONVENTION:
  Growth, inflation and valorization are stored as rates (0.05 = +5%).
  Consumers apply (1 + rate). See loader.go for index-style sources.

SEE ALSO:
  - loader.go: JSON document -> Tables
  - pension/salary.go, pension/valorization.go: main consumers
*/
package indices

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Sex selects the life expectancy curve.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

// ParseSex accepts "M"/"F" and "male"/"female" in any case.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return SexMale, nil
	case "f", "female":
		return SexFemale, nil
	}
	return "", fmt.Errorf("unknown sex %q (use M or F)", s)
}

// Series names a table. Values match the statistics document keys.
type Series string

const (
	SeriesGrowth         Series = "growth_rate"
	SeriesAverageWage    Series = "average_wage"
	SeriesValorization   Series = "valorization"
	SeriesInflation      Series = "inflation"
	SeriesLifeExpectancy Series = "life_expectancy"
)

// =============================================================================
// YEAR SERIES
// =============================================================================

// YearSeries maps a calendar year to a coefficient.
type YearSeries struct {
	name   Series
	values map[int]decimal.Decimal
}

// Point is one (year, value) pair, used for listings.
type Point struct {
	Year  int
	Value decimal.Decimal
}

// NewYearSeries builds a series from plain floats. The input map is copied.
func NewYearSeries(name Series, values map[int]float64) YearSeries {
	s := YearSeries{name: name, values: make(map[int]decimal.Decimal, len(values))}
	for y, v := range values {
		s.values[y] = decimal.NewFromFloat(v)
	}
	return s
}

// At returns the value for year or a *MissingDataError.
func (s YearSeries) At(year int) (decimal.Decimal, error) {
	v, ok := s.values[year]
	if !ok {
		return decimal.Zero, &MissingDataError{Series: s.name, Year: year}
	}
	return v, nil
}

func (s YearSeries) Has(year int) bool { _, ok := s.values[year]; return ok }
func (s YearSeries) Name() Series      { return s.name }
func (s YearSeries) Len() int          { return len(s.values) }

// Years returns the covered years in ascending order.
func (s YearSeries) Years() []int {
	years := make([]int, 0, len(s.values))
	for y := range s.values {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Points returns the series sorted by year.
func (s YearSeries) Points() []Point {
	years := s.Years()
	points := make([]Point, len(years))
	for i, y := range years {
		points[i] = Point{Year: y, Value: s.values[y]}
	}
	return points
}

// =============================================================================
// LIFE EXPECTANCY
// =============================================================================

// lifeCurve is the expectancy for one (sex, year): either a single value
// valid for any age, or a value per integer age.
type lifeCurve struct {
	flat  *decimal.Decimal
	byAge map[int]decimal.Decimal
}

// LifeExpectancy resolves remaining years of life by sex, year and age.
type LifeExpectancy struct {
	bySex map[Sex]map[int]lifeCurve
}

// At returns remaining life expectancy in years.
func (l LifeExpectancy) At(sex Sex, year, age int) (decimal.Decimal, error) {
	curve, ok := l.bySex[sex][year]
	if !ok {
		return decimal.Zero, &MissingDataError{Series: SeriesLifeExpectancy, Sex: sex, Year: year}
	}
	if curve.flat != nil {
		return *curve.flat, nil
	}
	v, ok := curve.byAge[age]
	if !ok {
		a := age
		return decimal.Zero, &MissingDataError{Series: SeriesLifeExpectancy, Sex: sex, Year: year, Age: &a}
	}
	return v, nil
}

// LifePoint is one row of a life expectancy listing. Age is nil for
// year-level values.
type LifePoint struct {
	Year  int
	Age   *int
	Value decimal.Decimal
}

// Points lists the curve for one sex ordered by year, then age.
func (l LifeExpectancy) Points(sex Sex) []LifePoint {
	years := make([]int, 0, len(l.bySex[sex]))
	for y := range l.bySex[sex] {
		years = append(years, y)
	}
	sort.Ints(years)

	var points []LifePoint
	for _, y := range years {
		curve := l.bySex[sex][y]
		if curve.flat != nil {
			points = append(points, LifePoint{Year: y, Value: *curve.flat})
			continue
		}
		ages := make([]int, 0, len(curve.byAge))
		for a := range curve.byAge {
			ages = append(ages, a)
		}
		sort.Ints(ages)
		for _, a := range ages {
			age := a
			points = append(points, LifePoint{Year: y, Age: &age, Value: curve.byAge[a]})
		}
	}
	return points
}

// =============================================================================
// TABLES
// =============================================================================

// Meta describes where a table set came from.
type Meta struct {
	Scenario   string
	PreparedOn string
}

// Data is the plain input to New. Maps are copied, never retained.
type Data struct {
	Growth       map[int]float64
	Inflation    map[int]float64
	AverageWage  map[int]float64
	Valorization map[int]float64

	// LifeExpectancy holds one value per (sex, year), valid for any age.
	LifeExpectancy map[Sex]map[int]float64
	// LifeExpectancyByAge holds per-age values; a (sex, year) present here
	// takes precedence over LifeExpectancy.
	LifeExpectancyByAge map[Sex]map[int]map[int]float64

	Meta Meta
}

// Tables is the frozen set of index series.
type Tables struct {
	growth       YearSeries
	inflation    YearSeries
	averageWage  YearSeries
	valorization YearSeries
	life         LifeExpectancy
	meta         Meta
}

// New freezes d into a Tables value.
func New(d Data) *Tables {
	life := LifeExpectancy{bySex: make(map[Sex]map[int]lifeCurve)}
	for sex, years := range d.LifeExpectancy {
		if life.bySex[sex] == nil {
			life.bySex[sex] = make(map[int]lifeCurve)
		}
		for y, v := range years {
			flat := decimal.NewFromFloat(v)
			life.bySex[sex][y] = lifeCurve{flat: &flat}
		}
	}
	for sex, years := range d.LifeExpectancyByAge {
		if life.bySex[sex] == nil {
			life.bySex[sex] = make(map[int]lifeCurve)
		}
		for y, ages := range years {
			curve := lifeCurve{byAge: make(map[int]decimal.Decimal, len(ages))}
			for a, v := range ages {
				curve.byAge[a] = decimal.NewFromFloat(v)
			}
			life.bySex[sex][y] = curve
		}
	}

	return &Tables{
		growth:       NewYearSeries(SeriesGrowth, d.Growth),
		inflation:    NewYearSeries(SeriesInflation, d.Inflation),
		averageWage:  NewYearSeries(SeriesAverageWage, d.AverageWage),
		valorization: NewYearSeries(SeriesValorization, d.Valorization),
		life:         life,
		meta:         d.Meta,
	}
}

func (t *Tables) Growth() YearSeries             { return t.growth }
func (t *Tables) Inflation() YearSeries          { return t.inflation }
func (t *Tables) AverageWage() YearSeries        { return t.averageWage }
func (t *Tables) Valorization() YearSeries       { return t.valorization }
func (t *Tables) LifeExpectancy() LifeExpectancy { return t.life }
func (t *Tables) Meta() Meta                     { return t.meta }

// Series returns a year series by name. Life expectancy is not a year
// series; use LifeExpectancy for it.
func (t *Tables) Series(name Series) (YearSeries, bool) {
	switch name {
	case SeriesGrowth:
		return t.growth, true
	case SeriesInflation:
		return t.inflation, true
	case SeriesAverageWage:
		return t.averageWage, true
	case SeriesValorization:
		return t.valorization, true
	}
	return YearSeries{}, false
}
