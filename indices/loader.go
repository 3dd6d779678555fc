/*
loader.go - Statistics document to Tables conversion

DOCUMENT SHAPE:
  {
    "scenario": "baseline",
    "prepared_on": "2025-09-01",
    "valorization_kind": "rate",
    "growth_rate":   {"2024": 0.035, ...},
    "average_wage":  {"2024": 8181.72, ...},
    "valorization":  {"2024": 0.0521, ...},
    "inflation":     {"2024": 0.036, ...},
    "life_expectancy": {
      "M": {"2060": 19.4, ...},
      "F": {"2060": {"60": 27.1, "65": 23.0}, ...}
    }
  }

  Year keys are four-digit strings. A life expectancy entry is either a
  number (any age) or an object keyed by integer age.

VALORIZATION KIND:
  "rate" (default): values are rates, used as (1 + v).
  "index": values are yearly indices (1.0521); converted to rates on load.

VALIDATION:
  The raw document is checked against an embedded JSON schema before it is
  decoded, so structural problems surface with a path instead of a zero.

SEE ALSO:
  - tables.go: Frozen result
  - cmd/server/main.go: Loads once at startup
*/
package indices

import (
	"fmt"
	"io"
	"os"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	ValorizationRate  = "rate"
	ValorizationIndex = "index"
)

const documentSchemaText = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["growth_rate", "average_wage", "valorization", "inflation", "life_expectancy"],
  "$defs": {
    "yearMap": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-9]{4}$"},
      "additionalProperties": {"type": "number"}
    },
    "positiveYearMap": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-9]{4}$"},
      "additionalProperties": {"type": "number", "exclusiveMinimum": 0}
    },
    "lifeCurve": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-9]{4}$"},
      "additionalProperties": {
        "oneOf": [
          {"type": "number", "exclusiveMinimum": 0},
          {
            "type": "object",
            "propertyNames": {"pattern": "^[0-9]{1,3}$"},
            "additionalProperties": {"type": "number", "exclusiveMinimum": 0}
          }
        ]
      }
    }
  },
  "properties": {
    "scenario": {"type": "string"},
    "prepared_on": {"type": "string"},
    "valorization_kind": {"enum": ["rate", "index"]},
    "growth_rate": {"$ref": "#/$defs/yearMap"},
    "average_wage": {"$ref": "#/$defs/positiveYearMap"},
    "valorization": {"$ref": "#/$defs/yearMap"},
    "inflation": {"$ref": "#/$defs/yearMap"},
    "life_expectancy": {
      "type": "object",
      "propertyNames": {"enum": ["M", "F"]},
      "additionalProperties": {"$ref": "#/$defs/lifeCurve"}
    }
  }
}`

var documentSchema = jsonschema.MustCompileString("statistics.schema.json", documentSchemaText)

type document struct {
	Scenario         string                                `json:"scenario"`
	PreparedOn       string                                `json:"prepared_on"`
	ValorizationKind string                                `json:"valorization_kind"`
	GrowthRate       map[string]float64                    `json:"growth_rate"`
	AverageWage      map[string]float64                    `json:"average_wage"`
	Valorization     map[string]float64                    `json:"valorization"`
	Inflation        map[string]float64                    `json:"inflation"`
	LifeExpectancy   map[string]map[string]json.RawMessage `json:"life_expectancy"`
}

// LoadFile reads and freezes the statistics document at path.
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open statistics: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a statistics document from r.
func Load(r io.Reader) (*Tables, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read statistics: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes a statistics document.
func Parse(data []byte) (*Tables, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := documentSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	d := Data{Meta: Meta{Scenario: doc.Scenario, PreparedOn: doc.PreparedOn}}
	var convErr error
	if d.Growth, convErr = intKeys(doc.GrowthRate); convErr != nil {
		return nil, convErr
	}
	if d.AverageWage, convErr = intKeys(doc.AverageWage); convErr != nil {
		return nil, convErr
	}
	if d.Inflation, convErr = intKeys(doc.Inflation); convErr != nil {
		return nil, convErr
	}
	if d.Valorization, convErr = intKeys(doc.Valorization); convErr != nil {
		return nil, convErr
	}

	switch doc.ValorizationKind {
	case "", ValorizationRate:
	case ValorizationIndex:
		for y, v := range d.Valorization {
			d.Valorization[y] = v - 1
		}
	default:
		return nil, fmt.Errorf("%w: unknown valorization_kind %q", ErrInvalidDocument, doc.ValorizationKind)
	}

	d.LifeExpectancy = make(map[Sex]map[int]float64)
	d.LifeExpectancyByAge = make(map[Sex]map[int]map[int]float64)
	for key, years := range doc.LifeExpectancy {
		sex, err := ParseSex(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		for yearKey, rawValue := range years {
			year, err := strconv.Atoi(yearKey)
			if err != nil {
				return nil, fmt.Errorf("%w: life_expectancy year %q", ErrInvalidDocument, yearKey)
			}
			var flat float64
			if err := json.Unmarshal(rawValue, &flat); err == nil {
				if d.LifeExpectancy[sex] == nil {
					d.LifeExpectancy[sex] = make(map[int]float64)
				}
				d.LifeExpectancy[sex][year] = flat
				continue
			}
			var byAge map[string]float64
			if err := json.Unmarshal(rawValue, &byAge); err != nil {
				return nil, fmt.Errorf("%w: life_expectancy %s/%d: %v", ErrInvalidDocument, sex, year, err)
			}
			ages, err := intKeys(byAge)
			if err != nil {
				return nil, err
			}
			if d.LifeExpectancyByAge[sex] == nil {
				d.LifeExpectancyByAge[sex] = make(map[int]map[int]float64)
			}
			d.LifeExpectancyByAge[sex][year] = ages
		}
	}

	return New(d), nil
}

func intKeys(in map[string]float64) (map[int]float64, error) {
	out := make(map[int]float64, len(in))
	for k, v := range in {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not an integer", ErrInvalidDocument, k)
		}
		out[n] = v
	}
	return out, nil
}
