/*
errors.go - Error types for index table lookups and loading

ERROR CATEGORIES:
  1. Missing data - a lookup hit a year (or sex/age) the table does not carry
  2. Invalid document - the statistics source failed schema or value checks

A missing year is never papered over with zero, interpolation or the
nearest neighbour. Callers receive *MissingDataError and decide.

SEE ALSO:
  - tables.go: Lookups that return these errors
  - loader.go: Document validation
*/
package indices

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingData is returned when a required key is absent from a table.
	ErrMissingData = errors.New("missing index data")

	// ErrInvalidDocument is returned when a statistics document cannot be loaded.
	ErrInvalidDocument = errors.New("invalid statistics document")
)

// MissingDataError names the series and key that could not be resolved.
type MissingDataError struct {
	Series Series
	Year   int
	Sex    Sex // life expectancy only
	Age    *int
}

func (e *MissingDataError) Error() string {
	switch {
	case e.Age != nil:
		return fmt.Sprintf("missing %s for sex %s, year %d, age %d", e.Series, e.Sex, e.Year, *e.Age)
	case e.Sex != "":
		return fmt.Sprintf("missing %s for sex %s, year %d", e.Series, e.Sex, e.Year)
	default:
		return fmt.Sprintf("missing %s for year %d", e.Series, e.Year)
	}
}

func (e *MissingDataError) Unwrap() error {
	return ErrMissingData
}

// IsMissingData reports whether err comes from a failed table lookup.
func IsMissingData(err error) bool {
	return errors.Is(err, ErrMissingData)
}
