/*
scenarios.go - Preset careers for demos and smoke tests

PURPOSE:
  Provides ready-made calculation requests that exercise specific engine
  behaviour. Years are relative to the current year so the presets stay
  inside the statistics horizon as time passes.

AVAILABLE SCENARIOS:
  entry-level:        Single job from today, early retirement
  two-jobs:           Main job since the past plus a time-boxed side job
  capped-earner:      Salary above the annual cap; contributions pro-rated
  sick-leave-history: Leave periods weighting the base in past years
  late-starter:       Short career topped up by accumulated funds

USAGE VIA API:
  GET  /api/scenarios              List presets with their requests
  POST /api/scenarios/{id}/run     Calculate (preview); ?save=true persists

ADDING NEW SCENARIOS:
  Append to 'scenarios' with an ID and a build function.

SEE ALSO:
  - handlers.go: calculate
*/
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ID          string
	Name        string
	Description string
	build       func(year int) CalculationRequest
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func moneyPtr(v int64) *decimal.Decimal { d := money(v); return &d }

func yearPtr(y int) *int { return &y }

var scenarios = []scenario{
	{
		ID:          "entry-level",
		Name:        "Entry Level",
		Description: "25-year-old starting this year on one salary, retiring at 60",
		build: func(year int) CalculationRequest {
			return CalculationRequest{
				Sex:            "F",
				Age:            25,
				WorkStartYear:  year,
				RetirementYear: year + 35,
				Jobs: []JobRequest{
					{Label: "first job", BaseSalaryMonthly: money(4500)},
				},
			}
		},
	},
	{
		ID:          "two-jobs",
		Name:        "Two Jobs",
		Description: "Main job for 15 years plus a side job running to five years from now",
		build: func(year int) CalculationRequest {
			return CalculationRequest{
				Sex:            "M",
				Age:            40,
				WorkStartYear:  year - 15,
				RetirementYear: year + 25,
				Jobs: []JobRequest{
					{Label: "main", BaseSalaryMonthly: money(8000)},
					{Label: "side", BaseSalaryMonthly: money(2500), StartYear: year - 3, EndYear: yearPtr(year + 5)},
				},
			}
		},
	},
	{
		ID:          "capped-earner",
		Name:        "Capped Earner",
		Description: "Two well-paid jobs whose combined base exceeds the annual cap",
		build: func(year int) CalculationRequest {
			return CalculationRequest{
				Sex:            "M",
				Age:            35,
				WorkStartYear:  year,
				RetirementYear: year + 30,
				Jobs: []JobRequest{
					{Label: "director", BaseSalaryMonthly: money(45000)},
					{Label: "board seat", BaseSalaryMonthly: money(20000)},
				},
			}
		},
	},
	{
		ID:          "sick-leave-history",
		Name:        "Sick Leave History",
		Description: "Career with two long sick leaves weighting the contribution base",
		build: func(year int) CalculationRequest {
			return CalculationRequest{
				Sex:              "F",
				Age:              45,
				WorkStartYear:    year - 20,
				RetirementYear:   year + 15,
				IncludeSickLeave: true,
				Jobs: []JobRequest{
					{Label: "nurse", BaseSalaryMonthly: money(6200)},
				},
				SickLeaves: []SickLeaveRequest{
					{Start: fmt.Sprintf("%d-02-01", year-6), End: fmt.Sprintf("%d-05-31", year-6)},
					{Start: fmt.Sprintf("%d-11-15", year-2), End: fmt.Sprintf("%d-01-31", year-1)},
				},
				ExpectedPension: moneyPtr(4000),
			}
		},
	},
	{
		ID:          "late-starter",
		Name:        "Late Starter",
		Description: "Ten contributory years topped up by previously accumulated funds",
		build: func(year int) CalculationRequest {
			return CalculationRequest{
				Sex:                   "M",
				Age:                   55,
				WorkStartYear:         year,
				RetirementYear:        year + 10,
				TotalAccumulatedFunds: moneyPtr(120000),
				ExpectedPension:       moneyPtr(3500),
				Jobs: []JobRequest{
					{Label: "consultant", BaseSalaryMonthly: money(9000)},
				},
			}
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the presets with requests built for this year.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()

	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		req := s.build(year)
		req.CalculationYear = year
		dtos[i] = ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description, Request: req}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunScenario calculates a preset. ?save=true stores the result.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := findScenario(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	persist := false
	if v := r.URL.Query().Get("save"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid save flag", err)
			return
		}
		persist = b
	}

	h.calculate(w, r, s.build(h.now().Year()), persist)
}
