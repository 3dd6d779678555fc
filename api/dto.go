/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  engine types (pension.Request, pension.Outcome) from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Money and coefficients are decimal.Decimal. Requests accept either JSON
  numbers or numeric strings; responses always emit strings so no client
  loses precision.

DATES:
  Sick-leave dates are YYYY-MM-DD. Jobs carry calendar years only.

TYPES:
  Calculation:
    CalculationRequest, JobRequest, SickLeaveRequest
    CalculationDTO, CalculationSummaryDTO, CalculationPageDTO, JobDTO, YearDTO

  Statistics:
    StatisticsDTO, SeriesDTO, PointDTO, LifeExpectancyDTO, LifePointDTO

  Scenarios:
    ScenarioDTO

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - records.go: DTO <-> engine <-> store mapping
*/
package api

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATION REQUESTS
// =============================================================================

// CalculationRequest is the body of POST /api/calculations.
type CalculationRequest struct {
	Sex string `json:"sex"`
	Age int    `json:"age"`

	// CalculationYear defaults to the current year.
	CalculationYear int `json:"calculation_year,omitempty"`

	WorkStartYear  int  `json:"work_start_year"`
	WorkEndYear    *int `json:"work_end_year,omitempty"`
	RetirementYear int  `json:"retirement_year"`

	Jobs       []JobRequest       `json:"jobs"`
	SickLeaves []SickLeaveRequest `json:"sick_leaves,omitempty"`

	IncludeSickLeave      bool             `json:"include_sick_leave"`
	ExpectedPension       *decimal.Decimal `json:"expected_pension,omitempty"`
	TotalAccumulatedFunds *decimal.Decimal `json:"total_accumulated_funds,omitempty"`
	PostalCode            string           `json:"postal_code,omitempty"`
}

// JobRequest is one job in a calculation request.
type JobRequest struct {
	Label             string           `json:"label,omitempty"`
	BaseSalaryMonthly decimal.Decimal  `json:"base_salary_monthly"`
	BaseYear          int              `json:"base_year,omitempty"`
	StartYear         int              `json:"start_year,omitempty"`
	EndYear           *int             `json:"end_year,omitempty"`
	SickFactor        *decimal.Decimal `json:"sick_factor,omitempty"`
}

// SickLeaveRequest is a sick-leave period; an empty end runs to the end of
// the start year.
type SickLeaveRequest struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// =============================================================================
// CALCULATION RESPONSES
// =============================================================================

// CalculationSummaryDTO carries the headline figures of a calculation.
type CalculationSummaryDTO struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`

	Sex             string `json:"sex"`
	Age             int    `json:"age"`
	CalculationYear int    `json:"calculation_year"`
	WorkStartYear   int    `json:"work_start_year"`
	WorkEndYear     int    `json:"work_end_year"`
	RetirementYear  int    `json:"retirement_year"`

	ContributoryYears       int              `json:"contributory_years"`
	KR                      decimal.Decimal  `json:"kr"`
	InitialCapital          decimal.Decimal  `json:"initial_capital"`
	Capital                 decimal.Decimal  `json:"capital"`
	AgeAtRetirement         int              `json:"age_at_retirement"`
	LifeExpectancyYears     decimal.Decimal  `json:"life_expectancy_years"`
	MonthlyPension          decimal.Decimal  `json:"monthly_pension"`
	RealMonthlyPension      decimal.Decimal  `json:"real_monthly_pension"`
	AverageWageAtRetirement decimal.Decimal  `json:"average_wage_at_retirement"`
	ReplacementRate         decimal.Decimal  `json:"replacement_rate"`
	ExpectedPension         *decimal.Decimal `json:"expected_pension,omitempty"`
	ExpectedPensionGap      *decimal.Decimal `json:"expected_pension_gap,omitempty"`
}

// CalculationPageDTO is one page of GET /api/calculations.
type CalculationPageDTO struct {
	Submissions []CalculationSummaryDTO `json:"submissions"`
	Page        int                     `json:"page"`
	PageSize    int                     `json:"page_size"`
	TotalItems  int                     `json:"total_items"`
	TotalPages  int                     `json:"total_pages"`
}

// CalculationDTO is a full calculation: summary, jobs as used and ledger.
type CalculationDTO struct {
	CalculationSummaryDTO

	IncludeSickLeave      bool               `json:"include_sick_leave"`
	ContributionRate      decimal.Decimal    `json:"contribution_rate"`
	TotalAccumulatedFunds *decimal.Decimal   `json:"total_accumulated_funds,omitempty"`
	PostalCode            string             `json:"postal_code,omitempty"`
	StatisticsScenario    string             `json:"statistics_scenario,omitempty"`
	Jobs                  []JobDTO           `json:"jobs"`
	SickLeaves            []SickLeaveRequest `json:"sick_leaves,omitempty"`
	Years                 []YearDTO          `json:"years"`
}

// JobDTO is a job after defaults were applied.
type JobDTO struct {
	Label             string           `json:"label,omitempty"`
	BaseSalaryMonthly decimal.Decimal  `json:"base_salary_monthly"`
	BaseYear          int              `json:"base_year"`
	StartYear         int              `json:"start_year"`
	EndYear           *int             `json:"end_year,omitempty"`
	SickFactor        *decimal.Decimal `json:"sick_factor,omitempty"`
}

// YearDTO is one ledger row. Per-job arrays follow the jobs order.
type YearDTO struct {
	Year                  int               `json:"year"`
	MonthlyByJob          []decimal.Decimal `json:"monthly_by_job"`
	BaseByJob             []decimal.Decimal `json:"base_by_job"`
	BaseAnnualBeforeCap   decimal.Decimal   `json:"base_annual_before_cap"`
	CapAnnual             decimal.Decimal   `json:"cap_annual"`
	BaseAnnualAfterCap    decimal.Decimal   `json:"base_annual_after_cap"`
	ContributionsByJob    []decimal.Decimal `json:"contributions_by_job"`
	ContributionTotal     decimal.Decimal   `json:"contribution_total"`
	ValorizationFactor    decimal.Decimal   `json:"valorization_factor"`
	ValorizedToRetirement decimal.Decimal   `json:"valorized_to_retirement"`
}

// =============================================================================
// STATISTICS
// =============================================================================

// PointDTO is one (year, value) pair.
type PointDTO struct {
	Year  int             `json:"year"`
	Value decimal.Decimal `json:"value"`
}

// SeriesDTO is a year series.
type SeriesDTO struct {
	Name   string     `json:"name"`
	Points []PointDTO `json:"points"`
}

// LifePointDTO is one life expectancy entry; Age is omitted for values
// that hold at any age.
type LifePointDTO struct {
	Year  int             `json:"year"`
	Age   *int            `json:"age,omitempty"`
	Value decimal.Decimal `json:"value"`
}

// LifeExpectancyDTO is the curve for one sex.
type LifeExpectancyDTO struct {
	Gender string         `json:"gender"`
	Points []LifePointDTO `json:"points"`
}

// StatisticsDTO bundles every table.
type StatisticsDTO struct {
	Scenario       string              `json:"scenario,omitempty"`
	PreparedOn     string              `json:"prepared_on,omitempty"`
	Series         []SeriesDTO         `json:"series"`
	LifeExpectancy []LifeExpectancyDTO `json:"life_expectancy"`
}

// =============================================================================
// SCENARIOS / MISC
// =============================================================================

// ScenarioDTO describes a preset career.
type ScenarioDTO struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Request     CalculationRequest `json:"request"`
}

// HealthDTO is the body of GET /api/health.
type HealthDTO struct {
	Status             string `json:"status"`
	StatisticsScenario string `json:"statistics_scenario,omitempty"`
	Database           string `json:"database"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
