/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Preview and persisted calculations, ledger read-back, export, delete
- Error mapping (400 / 404 / 422)
- Statistics endpoints
- Paging and bulk export
- Admin guards (delete, export, reset) and retention sweeps
*/
package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/pension-engine/export"
	"github.com/warp/pension-engine/indices"
	"github.com/warp/pension-engine/pension"
	"github.com/warp/pension-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func testTables() *indices.Tables {
	data := indices.Data{
		Growth:       map[int]float64{},
		AverageWage:  map[int]float64{},
		Valorization: map[int]float64{},
		Inflation:    map[int]float64{},
		LifeExpectancy: map[indices.Sex]map[int]float64{
			indices.SexMale:   {},
			indices.SexFemale: {},
		},
		Meta: indices.Meta{Scenario: "test"},
	}
	for y := 1990; y <= 2100; y++ {
		data.Growth[y] = 0
		data.AverageWage[y] = 5000
		data.Valorization[y] = 0
		data.Inflation[y] = 0.02
		data.LifeExpectancy[indices.SexMale][y] = 20
		data.LifeExpectancy[indices.SexFemale][y] = 25
	}
	return indices.New(data)
}

func setupTestHandler(t *testing.T, settings pension.Settings) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, pension.NewCalculator(testTables(), settings))
	h.now = func() time.Time { return fixedNow }
	ids := 0
	h.newID = func() string {
		ids++
		return "calc-" + string(rune('0'+ids))
	}
	return h
}

func do(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	NewRouter(h, []string{"*"}).ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const fiveYearCareer = `{
	"sex": "M",
	"age": 40,
	"calculation_year": 2025,
	"work_start_year": 2025,
	"retirement_year": 2030,
	"jobs": [{"label": "main", "base_salary_monthly": 5000}],
	"expected_pension": "3000",
	"postal_code": "00-950"
}`

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

// =============================================================================
// CALCULATIONS
// =============================================================================

func TestPreviewCalculation(t *testing.T) {
	// GIVEN: Five years at 5000/month, flat tables, male life expectancy 20
	// WHEN: Previewing
	// THEN: 200 with KR 58560, pension 244, nothing stored

	h := setupTestHandler(t, pension.DefaultSettings())

	rec := do(t, h, http.MethodPost, "/api/calculations/preview", fiveYearCareer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[CalculationDTO](t, rec)
	assert.Empty(t, dto.ID)
	assert.Empty(t, dto.CreatedAt)
	assert.Equal(t, 2029, dto.WorkEndYear)
	assert.Equal(t, 45, dto.AgeAtRetirement)
	assertDecimal(t, "58560", dto.KR)
	assertDecimal(t, "244", dto.MonthlyPension)
	assertDecimal(t, "0.0488", dto.ReplacementRate)
	require.NotNil(t, dto.ExpectedPensionGap)
	assertDecimal(t, "2756", *dto.ExpectedPensionGap)
	assert.Equal(t, "test", dto.StatisticsScenario)
	require.Len(t, dto.Years, 5)
	assertDecimal(t, "11712", dto.Years[0].ContributionTotal)
	require.Len(t, dto.Jobs, 1)
	assert.Equal(t, 2025, dto.Jobs[0].BaseYear)

	list, err := h.Store.ListCalculations(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPreviewCalculation_DefaultsCalculationYearToNow(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())

	body := strings.Replace(fiveYearCareer, `"calculation_year": 2025,`, "", 1)
	rec := do(t, h, http.MethodPost, "/api/calculations/preview", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[CalculationDTO](t, rec)
	assert.Equal(t, fixedNow.Year(), dto.CalculationYear)
}

func TestCalculationLifecycle(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Creating, reading, listing, exporting and deleting a calculation
	// THEN: Each step sees the same stored ledger

	h := setupTestHandler(t, pension.DefaultSettings())

	rec := do(t, h, http.MethodPost, "/api/calculations", fiveYearCareer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[CalculationDTO](t, rec)
	require.Equal(t, "calc-1", created.ID)
	assert.Equal(t, fixedNow.Format(time.RFC3339), created.CreatedAt)

	rec = do(t, h, http.MethodGet, "/api/calculations/calc-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[CalculationDTO](t, rec)
	assert.Equal(t, "00-950", got.PostalCode)
	assertDecimal(t, "244", got.MonthlyPension)
	require.Len(t, got.Years, 5)
	assertDecimal(t, "60000", got.Years[4].BaseAnnualAfterCap)

	rec = do(t, h, http.MethodGet, "/api/calculations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[CalculationPageDTO](t, rec)
	require.Len(t, page.Submissions, 1)
	assert.Equal(t, "calc-1", page.Submissions[0].ID)
	assert.Equal(t, 1, page.TotalItems)

	rec = do(t, h, http.MethodGet, "/api/calculations/calc-1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "pension-calc-1.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	h.AdminEnabled = true
	rec = do(t, h, http.MethodDelete, "/api/calculations/calc-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/calculations/calc-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/calculations/calc-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculation_SickLeaveDates(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())

	body := `{
		"sex": "F", "age": 40, "calculation_year": 2025,
		"work_start_year": 2025, "retirement_year": 2027,
		"include_sick_leave": true,
		"jobs": [{"base_salary_monthly": "5000"}],
		"sick_leaves": [{"start": "2026-01-01", "end": "2026-12-31"}]
	}`
	rec := do(t, h, http.MethodPost, "/api/calculations", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	dto := decode[CalculationDTO](t, rec)
	require.Len(t, dto.Years, 2)
	assertDecimal(t, "60000", dto.Years[0].BaseAnnualBeforeCap)
	assertDecimal(t, "48000", dto.Years[1].BaseAnnualBeforeCap)
	require.Len(t, dto.SickLeaves, 1)
	assert.Equal(t, "2026-12-31", dto.SickLeaves[0].End)
}

func TestCalculation_Errors(t *testing.T) {
	tests := []struct {
		name     string
		settings func(*pension.Settings)
		body     string
		status   int
	}{
		{
			name:   "malformed json",
			body:   `{"sex": `,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown sex",
			body:   strings.Replace(fiveYearCareer, `"sex": "M"`, `"sex": "X"`, 1),
			status: http.StatusBadRequest,
		},
		{
			name:   "no jobs",
			body:   `{"sex": "M", "age": 40, "work_start_year": 2025, "retirement_year": 2030, "jobs": []}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "bad leave date",
			body:   `{"sex": "M", "age": 40, "work_start_year": 2025, "retirement_year": 2030, "jobs": [{"base_salary_monthly": 1}], "sick_leaves": [{"start": "01/02/2026"}]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "beyond statistics horizon",
			body:   `{"sex": "M", "age": 40, "work_start_year": 2090, "retirement_year": 2120, "jobs": [{"base_salary_monthly": 1}]}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:     "not eligible",
			settings: func(s *pension.Settings) { s.MinContributoryYears = 10 },
			body:     fiveYearCareer,
			status:   http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := pension.DefaultSettings()
			if tt.settings != nil {
				tt.settings(&settings)
			}
			h := setupTestHandler(t, settings)

			rec := do(t, h, http.MethodPost, "/api/calculations", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)

			list, err := h.Store.ListCalculations(context.Background(), 10, 0)
			require.NoError(t, err)
			assert.Empty(t, list, "failed calculations are not stored")
		})
	}
}

func TestListCalculations_Paging(t *testing.T) {
	// GIVEN: Five stored calculations created a minute apart
	// WHEN: Listing pages of two
	// THEN: Newest first, totals cover every row, a page past the end is empty

	h := setupTestHandler(t, pension.DefaultSettings())
	for i := 0; i < 5; i++ {
		at := fixedNow.Add(time.Duration(i) * time.Minute)
		h.now = func() time.Time { return at }
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/calculations", fiveYearCareer).Code)
	}

	rec := do(t, h, http.MethodGet, "/api/calculations?page=2&page_size=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[CalculationPageDTO](t, rec)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Submissions, 2)
	assert.Equal(t, "calc-3", page.Submissions[0].ID)
	assert.Equal(t, "calc-2", page.Submissions[1].ID)

	rec = do(t, h, http.MethodGet, "/api/calculations?page=3&page_size=2", "")
	page = decode[CalculationPageDTO](t, rec)
	require.Len(t, page.Submissions, 1)
	assert.Equal(t, "calc-1", page.Submissions[0].ID)

	rec = do(t, h, http.MethodGet, "/api/calculations?page=9&page_size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[CalculationPageDTO](t, rec)
	assert.Empty(t, page.Submissions)
	assert.Equal(t, 5, page.TotalItems)

	rec = do(t, h, http.MethodGet, "/api/calculations?page_size=100000", "")
	page = decode[CalculationPageDTO](t, rec)
	assert.Equal(t, MaxPageSize, page.PageSize)
	assert.Equal(t, 1, page.TotalPages)
}

func TestListCalculations_EmptyStore(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())

	rec := do(t, h, http.MethodGet, "/api/calculations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[CalculationPageDTO](t, rec)
	assert.NotNil(t, page.Submissions)
	assert.Equal(t, 0, page.TotalPages)
	assert.Equal(t, DefaultPageSize, page.PageSize)
}

func TestListCalculations_InvalidPaging(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())

	for _, q := range []string{"page=0", "page=-1", "page=x", "page_size=0", "page_size=abc"} {
		rec := do(t, h, http.MethodGet, "/api/calculations?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestExportCalculations(t *testing.T) {
	// GIVEN: Two stored calculations
	// WHEN: Downloading every calculation as one workbook
	// THEN: 403 while admin is off; one row per calculation once enabled

	h := setupTestHandler(t, pension.DefaultSettings())
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/calculations", fiveYearCareer).Code)
	}

	rec := do(t, h, http.MethodGet, "/api/calculations/export", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h.AdminEnabled = true
	rec = do(t, h, http.MethodGet, "/api/calculations/export", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "pension-calculations.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.CalculationsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDeleteCalculation_AdminOnly(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/calculations", fiveYearCareer).Code)

	rec := do(t, h, http.MethodDelete, "/api/calculations/calc-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/calculations/calc-1", "")
	assert.Equal(t, http.StatusOK, rec.Code, "calculation survives a refused delete")
}

// =============================================================================
// STATISTICS
// =============================================================================

func TestStatistics(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())

	rec := do(t, h, http.MethodGet, "/api/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[StatisticsDTO](t, rec)
	assert.Equal(t, "test", all.Scenario)
	require.Len(t, all.Series, 4)
	assert.Equal(t, "growth_rate", all.Series[0].Name)
	assert.Len(t, all.Series[0].Points, 111)
	require.Len(t, all.LifeExpectancy, 2)

	rec = do(t, h, http.MethodGet, "/api/statistics/average-wage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	wage := decode[SeriesDTO](t, rec)
	assert.Equal(t, "average_wage", wage.Name)
	assert.Equal(t, 1990, wage.Points[0].Year)
	assertDecimal(t, "5000", wage.Points[0].Value)

	rec = do(t, h, http.MethodGet, "/api/statistics/unemployment", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatistics_LifeExpectancy(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())

	rec := do(t, h, http.MethodGet, "/api/statistics/life-expectancy?gender=female", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[LifeExpectancyDTO](t, rec)
	assert.Equal(t, "F", dto.Gender)
	require.NotEmpty(t, dto.Points)
	assert.Nil(t, dto.Points[0].Age)
	assertDecimal(t, "25", dto.Points[0].Value)

	rec = do(t, h, http.MethodGet, "/api/statistics/life-expectancy", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HEALTH / ADMIN
// =============================================================================

func TestHealth(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())

	rec := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[HealthDTO](t, rec)
	assert.Equal(t, "ok", dto.Status)
	assert.Equal(t, "test", dto.StatisticsScenario)
}

func TestResetDatabase(t *testing.T) {
	h := setupTestHandler(t, pension.DefaultSettings())
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/calculations", fiveYearCareer).Code)

	rec := do(t, h, http.MethodPost, "/api/admin/reset", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h.AdminEnabled = true
	rec = do(t, h, http.MethodPost, "/api/admin/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	list, err := h.Store.ListCalculations(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRetentionScheduler(t *testing.T) {
	// GIVEN: One calculation stored 40 days ago and one today
	// WHEN: Sweeping with 30 days retention
	// THEN: Only the old one is deleted

	h := setupTestHandler(t, pension.DefaultSettings())
	ctx := context.Background()

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/calculations", fiveYearCareer).Code)
	h.now = func() time.Time { return fixedNow.AddDate(0, 0, 40) }
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/calculations", fiveYearCareer).Code)

	rs := NewRetentionScheduler(h.Store, 30*24*time.Hour)
	rs.now = h.now
	assert.Equal(t, int64(1), rs.RunNow(ctx))

	list, err := h.Store.ListCalculations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "calc-2", list[0].ID)

	disabled := NewRetentionScheduler(h.Store, 0)
	assert.False(t, disabled.Enabled())
	assert.Equal(t, int64(0), disabled.RunNow(ctx))
}
