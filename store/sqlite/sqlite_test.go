package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pension-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal { v := d(s); return &v }

func sampleRecord(id string, created time.Time) sqlite.CalculationRecord {
	end := 2027
	leaveEnd := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	return sqlite.CalculationRecord{
		ID:                      id,
		Sex:                     "F",
		Age:                     40,
		PostalCode:              "00-950",
		CalculationYear:         2025,
		WorkStartYear:           2025,
		WorkEndYear:             2026,
		RetirementYear:          2027,
		IncludeSickLeave:        true,
		ExpectedPension:         decPtr("3000"),
		ContributionRate:        d("0.1952"),
		StatisticsScenario:      "baseline",
		KR:                      d("23424"),
		InitialCapital:          d("0"),
		Capital:                 d("23424"),
		ContributoryYears:       2,
		AgeAtRetirement:         42,
		LifeExpectancyYears:     d("25"),
		MonthlyPension:          d("78.08"),
		RealMonthlyPension:      d("75.05"),
		AverageWageAtRetirement: d("5000"),
		ReplacementRate:         d("0.015616"),
		ExpectedPensionGap:      decPtr("2921.92"),
		Jobs: []sqlite.JobRecord{
			{Label: "main", BaseSalaryMonthly: d("5000"), BaseYear: 2025, StartYear: 2025},
			{BaseSalaryMonthly: d("1200.50"), BaseYear: 2025, StartYear: 2025, EndYear: &end, SickFactor: decPtr("0.9")},
		},
		Leaves: []sqlite.LeaveRecord{
			{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: &leaveEnd},
			{Start: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)},
		},
		Years: []sqlite.YearRecord{
			{
				Year:               2025,
				MonthlyByJob:       []decimal.Decimal{d("5000"), d("1200.50")},
				BaseByJob:          []decimal.Decimal{d("60000"), d("14406")},
				BaseBeforeCap:      d("74406"),
				CapAnnual:          d("150000"),
				BaseAfterCap:       d("74406"),
				ContributionsByJob: []decimal.Decimal{d("11712"), d("2812.0512")},
				ContributionTotal:  d("14524.0512"),
				ValorizationFactor: d("1.0521"),
				Valorized:          d("15280.75946752"),
			},
			{
				Year:               2026,
				MonthlyByJob:       []decimal.Decimal{d("5000"), d("1200.50")},
				BaseByJob:          []decimal.Decimal{d("60000"), d("14406")},
				BaseBeforeCap:      d("74406"),
				CapAnnual:          d("150000"),
				BaseAfterCap:       d("74406"),
				ContributionsByJob: []decimal.Decimal{d("11712"), d("2812.0512")},
				ContributionTotal:  d("14524.0512"),
				ValorizationFactor: d("1"),
				Valorized:          d("14524.0512"),
			},
		},
		CreatedAt: created,
	}
}

func TestStore_SaveAndGetCalculation(t *testing.T) {
	// GIVEN: A calculation with two jobs, two leaves and a two-year ledger
	// WHEN: Saving and reading it back
	// THEN: Every decimal, optional field and child row survives exactly

	store := newStore(t)
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveCalculation(ctx, sampleRecord("calc-1", created)))

	got, err := store.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "F", got.Sex)
	assert.Equal(t, "00-950", got.PostalCode)
	assert.Equal(t, 2027, got.RetirementYear)
	assert.True(t, got.IncludeSickLeave)
	assert.Equal(t, "baseline", got.StatisticsScenario)
	assert.True(t, got.KR.Equal(d("23424")))
	assert.True(t, got.ReplacementRate.Equal(d("0.015616")))
	require.NotNil(t, got.ExpectedPension)
	assert.True(t, got.ExpectedPension.Equal(d("3000")))
	assert.Nil(t, got.TotalAccumulatedFunds)
	require.NotNil(t, got.ExpectedPensionGap)
	assert.True(t, got.ExpectedPensionGap.Equal(d("2921.92")))
	assert.True(t, got.CreatedAt.Equal(created))

	require.Len(t, got.Jobs, 2)
	assert.Equal(t, "main", got.Jobs[0].Label)
	assert.Nil(t, got.Jobs[0].EndYear)
	assert.Nil(t, got.Jobs[0].SickFactor)
	require.NotNil(t, got.Jobs[1].EndYear)
	assert.Equal(t, 2027, *got.Jobs[1].EndYear)
	assert.True(t, got.Jobs[1].BaseSalaryMonthly.Equal(d("1200.5")))
	require.NotNil(t, got.Jobs[1].SickFactor)
	assert.True(t, got.Jobs[1].SickFactor.Equal(d("0.9")))

	require.Len(t, got.Leaves, 2)
	assert.Equal(t, "2026-01-01", got.Leaves[0].Start.Format("2006-01-02"))
	require.NotNil(t, got.Leaves[0].End)
	assert.Equal(t, "2026-03-14", got.Leaves[0].End.Format("2006-01-02"))
	assert.Nil(t, got.Leaves[1].End)

	require.Len(t, got.Years, 2)
	y := got.Years[0]
	assert.Equal(t, 2025, y.Year)
	require.Len(t, y.ContributionsByJob, 2)
	assert.True(t, y.ContributionsByJob[1].Equal(d("2812.0512")))
	assert.True(t, y.MonthlyByJob[1].Equal(d("1200.5")))
	assert.True(t, y.Valorized.Equal(d("15280.75946752")))
	assert.Equal(t, 2026, got.Years[1].Year)
}

func TestStore_GetUnknownCalculation(t *testing.T) {
	store := newStore(t)

	got, err := store.GetCalculation(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveReplacesExistingID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rec := sampleRecord("calc-1", time.Now().UTC())
	require.NoError(t, store.SaveCalculation(ctx, rec))

	rec.Jobs = rec.Jobs[:1]
	rec.Leaves = nil
	rec.Years = rec.Years[:1]
	rec.MonthlyPension = d("99")
	require.NoError(t, store.SaveCalculation(ctx, rec))

	got, err := store.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	assert.Len(t, got.Jobs, 1)
	assert.Empty(t, got.Leaves)
	assert.Len(t, got.Years, 1)
	assert.True(t, got.MonthlyPension.Equal(d("99")))
}

func TestStore_ListCalculationsNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveCalculation(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Hour))))
	}

	list, err := store.ListCalculations(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Nil(t, list[0].Years, "list carries summaries only")

	all, err := store.ListCalculations(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_ListCalculationsPaged(t *testing.T) {
	// GIVEN: Five calculations an hour apart
	// WHEN: Reading pages of two
	// THEN: Pages follow newest-first order and the count covers all rows

	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.SaveCalculation(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Hour))))
	}

	n, err := store.CountCalculations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	page, err := store.ListCalculations(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	last, err := store.ListCalculations(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "a", last[0].ID)

	past, err := store.ListCalculations(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestStore_DeleteCalculation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCalculation(ctx, sampleRecord("calc-1", time.Now().UTC())))
	require.NoError(t, store.DeleteCalculation(ctx, "calc-1"))

	got, err := store.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.DeleteCalculation(ctx, "calc-1")
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestStore_Reset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCalculation(ctx, sampleRecord("a", time.Now().UTC())))
	require.NoError(t, store.SaveCalculation(ctx, sampleRecord("b", time.Now().UTC())))
	require.NoError(t, store.Reset(ctx))

	list, err := store.ListCalculations(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_DeleteCalculationsBefore(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveCalculation(ctx, sampleRecord("old", base)))
	require.NoError(t, store.SaveCalculation(ctx, sampleRecord("new", base.AddDate(0, 2, 0))))

	n, err := store.DeleteCalculationsBefore(ctx, base.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := store.ListCalculations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
}
