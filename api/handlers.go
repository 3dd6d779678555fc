/*
handlers.go - HTTP API handlers for the pension simulator

PURPOSE:
  Exposes the pension engine and the calculation store via REST API.
  Handles HTTP request/response and JSON serialization, and delegates
  to pension.Calculator.

ENDPOINTS:
  Health:
    GET    /api/health                          Liveness + database ping

  Statistics:
    GET    /api/statistics                      All tables + metadata
    GET    /api/statistics/life-expectancy      ?gender=M|F
    GET    /api/statistics/{series}             growth-rate, average-wage,
                                                valorization, inflation

  Calculations:
    POST   /api/calculations                    Calculate and persist
    POST   /api/calculations/preview            Calculate only
    GET    /api/calculations                    Newest first, ?page=&page_size=
    GET    /api/calculations/export             All calculations, XLSX (admin)
    GET    /api/calculations/{id}               Full ledger
    GET    /api/calculations/{id}/export        XLSX workbook
    DELETE /api/calculations/{id}               Remove (admin)

  Scenarios:
    GET    /api/scenarios                       Preset careers
    POST   /api/scenarios/{id}/run              Calculate a preset

  Admin:
    POST   /api/admin/reset                     Clear the store
  Admin routes answer 403 unless AdminEnabled (off in production).

REQUEST FLOW:
  1. Decode JSON body
  2. Map to pension.Request (syntax: sex, dates)
  3. Calculator validates and computes
  4. Map Outcome to a record; persist unless previewing
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with:
  - 400: Malformed body, validation errors
  - 403: Admin route while admin is disabled
  - 404: Unknown calculation, scenario or series
  - 422: Not eligible, or the tables lack a required year
  - 503: Request deadline exceeded or client went away
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - records.go: DTO/engine/store mapping
  - scenarios.go: Preset careers
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/warp/pension-engine/export"
	"github.com/warp/pension-engine/indices"
	"github.com/warp/pension-engine/pension"
	"github.com/warp/pension-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Calculator *pension.Calculator

	// AdminEnabled exposes destructive admin routes.
	AdminEnabled bool

	now   func() time.Time
	newID func() string
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, calc *pension.Calculator) *Handler {
	return &Handler{
		Store:      store,
		Calculator: calc,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dto := HealthDTO{
		Status:             "ok",
		StatisticsScenario: h.Calculator.Tables().Meta().Scenario,
		Database:           "ok",
	}
	if err := h.Store.Ping(r.Context()); err != nil {
		log.WithError(err).Warn("Database ping failed")
		dto.Status = "degraded"
		dto.Database = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, dto)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// STATISTICS HANDLERS
// =============================================================================

// seriesByPath maps URL segments to table names.
var seriesByPath = map[string]indices.Series{
	"growth-rate":  indices.SeriesGrowth,
	"average-wage": indices.SeriesAverageWage,
	"valorization": indices.SeriesValorization,
	"inflation":    indices.SeriesInflation,
}

// GetStatistics returns every table.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	tables := h.Calculator.Tables()
	meta := tables.Meta()

	dto := StatisticsDTO{
		Scenario:   meta.Scenario,
		PreparedOn: meta.PreparedOn,
		Series: []SeriesDTO{
			toSeriesDTO(tables.Growth()),
			toSeriesDTO(tables.AverageWage()),
			toSeriesDTO(tables.Valorization()),
			toSeriesDTO(tables.Inflation()),
		},
		LifeExpectancy: []LifeExpectancyDTO{
			toLifeExpectancyDTO(tables.LifeExpectancy(), indices.SexMale),
			toLifeExpectancyDTO(tables.LifeExpectancy(), indices.SexFemale),
		},
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetSeries returns one year series.
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	name, ok := seriesByPath[chi.URLParam(r, "series")]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown series", nil)
		return
	}
	s, _ := h.Calculator.Tables().Series(name)
	writeJSON(w, http.StatusOK, toSeriesDTO(s))
}

// GetLifeExpectancy returns the curve for ?gender=M|F.
func (h *Handler) GetLifeExpectancy(w http.ResponseWriter, r *http.Request) {
	sex, err := indices.ParseSex(r.URL.Query().Get("gender"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid gender", err)
		return
	}
	writeJSON(w, http.StatusOK, toLifeExpectancyDTO(h.Calculator.Tables().LifeExpectancy(), sex))
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// CreateCalculation calculates and persists.
func (h *Handler) CreateCalculation(w http.ResponseWriter, r *http.Request) {
	h.handleCalculation(w, r, true)
}

// PreviewCalculation calculates without persisting.
func (h *Handler) PreviewCalculation(w http.ResponseWriter, r *http.Request) {
	h.handleCalculation(w, r, false)
}

func (h *Handler) handleCalculation(w http.ResponseWriter, r *http.Request, persist bool) {
	var req CalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.calculate(w, r, req, persist)
}

// calculate runs req and writes the resulting CalculationDTO.
func (h *Handler) calculate(w http.ResponseWriter, r *http.Request, req CalculationRequest, persist bool) {
	now := h.now()

	engineReq, err := toEngineRequest(req, now.Year())
	if err != nil {
		writeCalculationError(w, err)
		return
	}

	out, err := h.Calculator.Calculate(r.Context(), engineReq)
	if err != nil {
		writeCalculationError(w, err)
		return
	}

	id := ""
	if persist {
		id = h.newID()
	}
	rec := toRecord(id, engineReq, req.PostalCode, out, h.Calculator.Settings(), h.Calculator.Tables(), now)

	fields := log.Fields{
		"sex":             rec.Sex,
		"retirement_year": rec.RetirementYear,
		"years":           len(rec.Years),
		"monthly_pension": rec.MonthlyPension.StringFixed(2),
	}

	if !persist {
		rec.CreatedAt = time.Time{}
		log.WithFields(fields).Debug("Calculation previewed")
		writeJSON(w, http.StatusOK, toCalculationDTO(rec))
		return
	}

	if err := h.Store.SaveCalculation(r.Context(), rec); err != nil {
		log.WithError(err).WithField("calculation_id", id).Error("Failed to save calculation")
		writeError(w, http.StatusInternalServerError, "Failed to save calculation", err)
		return
	}

	fields["calculation_id"] = id
	log.WithFields(fields).Info("Calculation saved")
	writeJSON(w, http.StatusCreated, toCalculationDTO(rec))
}

// Paging defaults for ListCalculations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// ListCalculations returns one page of stored calculations, newest first.
// ?page is 1-based; ?page_size is capped at MaxPageSize.
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "Invalid page", err)
		return
	}
	size, err := queryInt(r, "page_size", DefaultPageSize)
	if err != nil || size < 1 {
		writeError(w, http.StatusBadRequest, "Invalid page_size", err)
		return
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	total, err := h.Store.CountCalculations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count calculations", err)
		return
	}
	records, err := h.Store.ListCalculations(r.Context(), size, (page-1)*size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calculations", err)
		return
	}

	dto := CalculationPageDTO{
		Submissions: make([]CalculationSummaryDTO, len(records)),
		Page:        page,
		PageSize:    size,
		TotalItems:  total,
		TotalPages:  (total + size - 1) / size,
	}
	for i, rec := range records {
		dto.Submissions[i] = toSummaryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dto)
}

// ExportCalculations returns every stored calculation as one XLSX sheet.
func (h *Handler) ExportCalculations(w http.ResponseWriter, r *http.Request) {
	if !h.AdminEnabled {
		writeError(w, http.StatusForbidden, "Admin routes are disabled", nil)
		return
	}

	records, err := h.Store.ListCalculations(r.Context(), 0, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calculations", err)
		return
	}

	data, err := export.CalculationsWorkbook(records)
	if err != nil {
		log.WithError(err).Error("Bulk export failed")
		writeError(w, http.StatusInternalServerError, "Failed to export calculations", err)
		return
	}

	log.WithField("calculations", len(records)).Info("Calculations exported")
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="pension-calculations.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetCalculation returns one stored calculation with its ledger.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadCalculation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*rec))
}

// ExportCalculation returns the ledger as an XLSX workbook.
func (h *Handler) ExportCalculation(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadCalculation(w, r)
	if !ok {
		return
	}

	data, err := export.LedgerWorkbook(*rec)
	if err != nil {
		log.WithError(err).WithField("calculation_id", rec.ID).Error("Export failed")
		writeError(w, http.StatusInternalServerError, "Failed to export calculation", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="pension-`+rec.ID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// DeleteCalculation removes a stored calculation. Admin only.
func (h *Handler) DeleteCalculation(w http.ResponseWriter, r *http.Request) {
	if !h.AdminEnabled {
		writeError(w, http.StatusForbidden, "Admin routes are disabled", nil)
		return
	}
	id := chi.URLParam(r, "id")

	err := h.Store.DeleteCalculation(r.Context(), id)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Calculation not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete calculation", err)
		return
	}

	log.WithField("calculation_id", id).Info("Calculation deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadCalculation(w http.ResponseWriter, r *http.Request) (*sqlite.CalculationRecord, bool) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetCalculation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get calculation", err)
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Calculation not found", nil)
		return nil, false
	}
	return rec, true
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all stored calculations.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if !h.AdminEnabled {
		writeError(w, http.StatusForbidden, "Admin routes are disabled", nil)
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	log.Warn("Calculation store reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeCalculationError maps engine errors to HTTP statuses.
func writeCalculationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pension.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid calculation request", err)
	case errors.Is(err, pension.ErrNotEligible):
		writeError(w, http.StatusUnprocessableEntity, "Not eligible for a pension", err)
	case errors.Is(err, pension.ErrMissingData):
		log.WithError(err).Warn("Calculation hit a gap in the statistics tables")
		writeError(w, http.StatusUnprocessableEntity, "Statistics do not cover the requested years", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "Calculation cancelled", err)
	default:
		log.WithError(err).Error("Calculation failed")
		writeError(w, http.StatusInternalServerError, "Calculation failed", err)
	}
}
