/*
Package sqlite persists pension calculations in SQLite.

PURPOSE:
  Every calculation submitted through POST /api/calculations is stored
  with its inputs, the full year-by-year ledger and the derived figures,
  so it can be listed, re-read, exported and deleted later.

KEY TABLES:
  calculations:        One row per calculation (inputs + summary figures)
  calculation_jobs:    Jobs as used by the engine, in input order
  calculation_leaves:  Sick-leave periods
  calculation_years:   Ledger rows; per-job columns are JSON arrays

  Child tables cascade on delete of their calculation.

NUMBERS:
  Money and coefficients are stored as TEXT decimal strings so nothing is
  lost to float rounding. Timestamps are RFC3339; leave dates YYYY-MM-DD.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Writes of one calculation happen in
  a single SQL transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./pension.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - api/records.go: Outcome -> CalculationRecord mapping
  - export/workbook.go: XLSX rendering of a record
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a calculation ID does not exist.
var ErrNotFound = errors.New("calculation not found")

const dateLayout = "2006-01-02"

// Store persists calculations.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every new connection would open its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calculations (
		id TEXT PRIMARY KEY,
		sex TEXT NOT NULL,
		age INTEGER NOT NULL,
		postal_code TEXT,
		calculation_year INTEGER NOT NULL,
		work_start_year INTEGER NOT NULL,
		work_end_year INTEGER NOT NULL,
		retirement_year INTEGER NOT NULL,
		include_sick_leave BOOLEAN NOT NULL DEFAULT FALSE,
		expected_pension TEXT,
		total_accumulated_funds TEXT,
		contribution_rate TEXT NOT NULL,
		statistics_scenario TEXT,
		kr TEXT NOT NULL,
		initial_capital TEXT NOT NULL,
		capital TEXT NOT NULL,
		contributory_years INTEGER NOT NULL,
		age_at_retirement INTEGER NOT NULL,
		life_expectancy_years TEXT NOT NULL,
		monthly_pension TEXT NOT NULL,
		real_monthly_pension TEXT NOT NULL,
		average_wage_at_retirement TEXT NOT NULL,
		replacement_rate TEXT NOT NULL,
		expected_pension_gap TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calculations_created_at
		ON calculations(created_at DESC);

	CREATE TABLE IF NOT EXISTS calculation_jobs (
		calculation_id TEXT NOT NULL REFERENCES calculations(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		label TEXT,
		base_salary_monthly TEXT NOT NULL,
		base_year INTEGER NOT NULL,
		start_year INTEGER NOT NULL,
		end_year INTEGER,
		sick_factor TEXT,
		PRIMARY KEY (calculation_id, position)
	);

	CREATE TABLE IF NOT EXISTS calculation_leaves (
		calculation_id TEXT NOT NULL REFERENCES calculations(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		PRIMARY KEY (calculation_id, position)
	);

	CREATE TABLE IF NOT EXISTS calculation_years (
		calculation_id TEXT NOT NULL REFERENCES calculations(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		monthly_by_job_json TEXT NOT NULL,
		base_by_job_json TEXT NOT NULL,
		base_before_cap TEXT NOT NULL,
		cap_annual TEXT NOT NULL,
		base_after_cap TEXT NOT NULL,
		contributions_by_job_json TEXT NOT NULL,
		contribution_total TEXT NOT NULL,
		valorization_factor TEXT NOT NULL,
		valorized TEXT NOT NULL,
		PRIMARY KEY (calculation_id, year)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORDS
// =============================================================================

// CalculationRecord is a stored calculation.
type CalculationRecord struct {
	ID         string
	Sex        string
	Age        int
	PostalCode string

	CalculationYear int
	WorkStartYear   int
	WorkEndYear     int
	RetirementYear  int

	IncludeSickLeave      bool
	ExpectedPension       *decimal.Decimal
	TotalAccumulatedFunds *decimal.Decimal
	ContributionRate      decimal.Decimal
	StatisticsScenario    string

	KR                      decimal.Decimal
	InitialCapital          decimal.Decimal
	Capital                 decimal.Decimal
	ContributoryYears       int
	AgeAtRetirement         int
	LifeExpectancyYears     decimal.Decimal
	MonthlyPension          decimal.Decimal
	RealMonthlyPension      decimal.Decimal
	AverageWageAtRetirement decimal.Decimal
	ReplacementRate         decimal.Decimal
	ExpectedPensionGap      *decimal.Decimal

	Jobs   []JobRecord
	Leaves []LeaveRecord
	Years  []YearRecord

	CreatedAt time.Time
}

// JobRecord is one job as the engine used it.
type JobRecord struct {
	Label             string
	BaseSalaryMonthly decimal.Decimal
	BaseYear          int
	StartYear         int
	EndYear           *int
	SickFactor        *decimal.Decimal
}

// LeaveRecord is one sick-leave period.
type LeaveRecord struct {
	Start time.Time
	End   *time.Time
}

// YearRecord is one ledger row. Per-job slices follow Jobs order.
type YearRecord struct {
	Year               int
	MonthlyByJob       []decimal.Decimal
	BaseByJob          []decimal.Decimal
	BaseBeforeCap      decimal.Decimal
	CapAnnual          decimal.Decimal
	BaseAfterCap       decimal.Decimal
	ContributionsByJob []decimal.Decimal
	ContributionTotal  decimal.Decimal
	ValorizationFactor decimal.Decimal
	Valorized          decimal.Decimal
}

// =============================================================================
// CALCULATION STORE
// =============================================================================

// SaveCalculation stores a calculation with its jobs, leaves and ledger.
// An existing ID is replaced.
func (s *Store) SaveCalculation(ctx context.Context, rec CalculationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// children go with the parent row
	if _, err := tx.ExecContext(ctx, "DELETE FROM calculations WHERE id = ?", rec.ID); err != nil {
		return fmt.Errorf("failed to replace calculation: %w", err)
	}

	query := `
		INSERT INTO calculations
		(id, sex, age, postal_code, calculation_year, work_start_year, work_end_year,
		 retirement_year, include_sick_leave, expected_pension, total_accumulated_funds,
		 contribution_rate, statistics_scenario, kr, initial_capital, capital,
		 contributory_years, age_at_retirement, life_expectancy_years, monthly_pension,
		 real_monthly_pension, average_wage_at_retirement, replacement_rate,
		 expected_pension_gap, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		rec.ID, rec.Sex, rec.Age, nullString(rec.PostalCode),
		rec.CalculationYear, rec.WorkStartYear, rec.WorkEndYear, rec.RetirementYear,
		rec.IncludeSickLeave, nullDecimal(rec.ExpectedPension), nullDecimal(rec.TotalAccumulatedFunds),
		rec.ContributionRate.String(), nullString(rec.StatisticsScenario),
		rec.KR.String(), rec.InitialCapital.String(), rec.Capital.String(),
		rec.ContributoryYears, rec.AgeAtRetirement, rec.LifeExpectancyYears.String(),
		rec.MonthlyPension.String(), rec.RealMonthlyPension.String(),
		rec.AverageWageAtRetirement.String(), rec.ReplacementRate.String(),
		nullDecimal(rec.ExpectedPensionGap),
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}

	for i, j := range rec.Jobs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calculation_jobs
			(calculation_id, position, label, base_salary_monthly, base_year, start_year, end_year, sick_factor)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, nullString(j.Label), j.BaseSalaryMonthly.String(),
			j.BaseYear, j.StartYear, nullInt(j.EndYear), nullDecimal(j.SickFactor),
		)
		if err != nil {
			return fmt.Errorf("failed to insert job %d: %w", i, err)
		}
	}

	for i, l := range rec.Leaves {
		var end sql.NullString
		if l.End != nil {
			end = sql.NullString{String: l.End.Format(dateLayout), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calculation_leaves (calculation_id, position, start_date, end_date)
			VALUES (?, ?, ?, ?)`,
			rec.ID, i, l.Start.Format(dateLayout), end,
		)
		if err != nil {
			return fmt.Errorf("failed to insert leave %d: %w", i, err)
		}
	}

	for _, y := range rec.Years {
		monthly, err := json.Marshal(y.MonthlyByJob)
		if err != nil {
			return err
		}
		bases, err := json.Marshal(y.BaseByJob)
		if err != nil {
			return err
		}
		contributions, err := json.Marshal(y.ContributionsByJob)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO calculation_years
			(calculation_id, year, monthly_by_job_json, base_by_job_json, base_before_cap, cap_annual,
			 base_after_cap, contributions_by_job_json, contribution_total, valorization_factor, valorized)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, y.Year, string(monthly), string(bases),
			y.BaseBeforeCap.String(), y.CapAnnual.String(), y.BaseAfterCap.String(),
			string(contributions), y.ContributionTotal.String(),
			y.ValorizationFactor.String(), y.Valorized.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert year %d: %w", y.Year, err)
		}
	}

	return tx.Commit()
}

const calculationColumns = `
	id, sex, age, postal_code, calculation_year, work_start_year, work_end_year,
	retirement_year, include_sick_leave, expected_pension, total_accumulated_funds,
	contribution_rate, statistics_scenario, kr, initial_capital, capital,
	contributory_years, age_at_retirement, life_expectancy_years, monthly_pension,
	real_monthly_pension, average_wage_at_retirement, replacement_rate,
	expected_pension_gap, created_at`

// GetCalculation returns a calculation with jobs, leaves and ledger, or
// nil if the ID is unknown.
func (s *Store) GetCalculation(ctx context.Context, id string) (*CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+calculationColumns+" FROM calculations WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculation: %w", err)
	}
	recs, err := scanCalculations(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	rec := &recs[0]

	if rec.Jobs, err = s.loadJobs(ctx, id); err != nil {
		return nil, err
	}
	if rec.Leaves, err = s.loadLeaves(ctx, id); err != nil {
		return nil, err
	}
	if rec.Years, err = s.loadYears(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListCalculations returns the newest calculations first, skipping offset
// rows. limit <= 0 returns every row. Only summary columns are filled; use
// GetCalculation for jobs and ledger.
func (s *Store) ListCalculations(ctx context.Context, limit, offset int) ([]CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+calculationColumns+" FROM calculations ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	return scanCalculations(rows)
}

// CountCalculations returns the number of stored calculations.
func (s *Store) CountCalculations(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calculations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count calculations: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteCalculation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM calculations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete calculation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCalculationsBefore removes calculations created before cutoff and
// returns how many were deleted.
func (s *Store) DeleteCalculationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM calculations WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune calculations: %w", err)
	}
	return res.RowsAffected()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"calculation_years", "calculation_leaves", "calculation_jobs", "calculations"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

func scanCalculations(rows *sql.Rows) ([]CalculationRecord, error) {
	defer rows.Close()

	var out []CalculationRecord
	for rows.Next() {
		var (
			rec                                        CalculationRecord
			postalCode, scenario                       sql.NullString
			expected, funds, gap                       sql.NullString
			rate, kr, initial, capital, le             string
			pension, realPension, avgWage, replacement string
			created                                    string
		)
		err := rows.Scan(
			&rec.ID, &rec.Sex, &rec.Age, &postalCode,
			&rec.CalculationYear, &rec.WorkStartYear, &rec.WorkEndYear, &rec.RetirementYear,
			&rec.IncludeSickLeave, &expected, &funds,
			&rate, &scenario, &kr, &initial, &capital,
			&rec.ContributoryYears, &rec.AgeAtRetirement, &le, &pension,
			&realPension, &avgWage, &replacement, &gap, &created,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}

		rec.PostalCode = postalCode.String
		rec.StatisticsScenario = scenario.String
		rec.ExpectedPension = parseNullDecimal(expected)
		rec.TotalAccumulatedFunds = parseNullDecimal(funds)
		rec.ExpectedPensionGap = parseNullDecimal(gap)
		rec.ContributionRate = parseDecimal(rate)
		rec.KR = parseDecimal(kr)
		rec.InitialCapital = parseDecimal(initial)
		rec.Capital = parseDecimal(capital)
		rec.LifeExpectancyYears = parseDecimal(le)
		rec.MonthlyPension = parseDecimal(pension)
		rec.RealMonthlyPension = parseDecimal(realPension)
		rec.AverageWageAtRetirement = parseDecimal(avgWage)
		rec.ReplacementRate = parseDecimal(replacement)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)

		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) loadJobs(ctx context.Context, id string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, base_salary_monthly, base_year, start_year, end_year, sick_factor
		FROM calculation_jobs WHERE calculation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var (
			j          JobRecord
			label      sql.NullString
			salary     string
			endYear    sql.NullInt64
			sickFactor sql.NullString
		)
		if err := rows.Scan(&label, &salary, &j.BaseYear, &j.StartYear, &endYear, &sickFactor); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		j.Label = label.String
		j.BaseSalaryMonthly = parseDecimal(salary)
		if endYear.Valid {
			y := int(endYear.Int64)
			j.EndYear = &y
		}
		j.SickFactor = parseNullDecimal(sickFactor)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Store) loadLeaves(ctx context.Context, id string) ([]LeaveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_date, end_date
		FROM calculation_leaves WHERE calculation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	var leaves []LeaveRecord
	for rows.Next() {
		var (
			l     LeaveRecord
			start string
			end   sql.NullString
		)
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan leave: %w", err)
		}
		l.Start, _ = time.Parse(dateLayout, start)
		if end.Valid {
			t, _ := time.Parse(dateLayout, end.String)
			l.End = &t
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

func (s *Store) loadYears(ctx context.Context, id string) ([]YearRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, monthly_by_job_json, base_by_job_json, base_before_cap, cap_annual,
		       base_after_cap, contributions_by_job_json, contribution_total,
		       valorization_factor, valorized
		FROM calculation_years WHERE calculation_id = ? ORDER BY year`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var years []YearRecord
	for rows.Next() {
		var (
			y                               YearRecord
			monthly, bases, contributions   string
			before, capAnnual, after, total string
			factor, valorized               string
		)
		err := rows.Scan(&y.Year, &monthly, &bases, &before, &capAnnual,
			&after, &contributions, &total, &factor, &valorized)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		if err := json.Unmarshal([]byte(monthly), &y.MonthlyByJob); err != nil {
			return nil, fmt.Errorf("ledger %d monthly: %w", y.Year, err)
		}
		if err := json.Unmarshal([]byte(bases), &y.BaseByJob); err != nil {
			return nil, fmt.Errorf("ledger %d bases: %w", y.Year, err)
		}
		if err := json.Unmarshal([]byte(contributions), &y.ContributionsByJob); err != nil {
			return nil, fmt.Errorf("ledger %d contributions: %w", y.Year, err)
		}
		y.BaseBeforeCap = parseDecimal(before)
		y.CapAnnual = parseDecimal(capAnnual)
		y.BaseAfterCap = parseDecimal(after)
		y.ContributionTotal = parseDecimal(total)
		y.ValorizationFactor = parseDecimal(factor)
		y.Valorized = parseDecimal(valorized)
		years = append(years, y)
	}
	return years, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseNullDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d := parseDecimal(s.String)
	return &d
}
