package aggregate

import (
	"testing"

	"tally/internal/core"
	"tally/internal/period"
)

func expense(date core.Date, cents int64, category string) core.Record {
	return core.Transaction{
		Date:        date,
		Type:        core.TypeExpense,
		Description: "test",
		Amount:      core.Money{Cents: cents},
		Category:    category,
	}.Record()
}

func TestSumByFilter(t *testing.T) {
	records := []core.Record{
		expense(core.NewDate(2024, 3, 5), 5000, "food"),
		expense(core.NewDate(2024, 3, 20), 3000, "food"),
		expense(core.NewDate(2024, 3, 21), 999, "travel"),
	}

	got := SumByFilter(records, DimEquals(core.DimCategory, "food"))
	if got.Cents != 8000 {
		t.Fatalf("sum = %d, want 8000", got.Cents)
	}

	if got := SumByFilter(records, nil); got.Cents != 8999 {
		t.Fatalf("unfiltered sum = %d, want 8999", got.Cents)
	}

	if got := SumByFilter(nil, nil); got.Cents != 0 {
		t.Fatalf("empty sum = %d, want 0", got.Cents)
	}
}

// Budget-spent flow: resolve the budget's month, keep expenses inside it, sum.
func TestBudgetSpentWithinMonth(t *testing.T) {
	records := []core.Record{
		expense(core.NewDate(2024, 3, 5), 5000, "food"),
		expense(core.NewDate(2024, 3, 20), 3000, "food"),
		expense(core.NewDate(2024, 2, 28), 12345, "food"), // outside the window
	}
	rng := period.Resolve(core.Monthly, core.NewDate(2024, 3, 15), nil)

	spent := SumByFilter(records, func(r core.Record) bool {
		return rng.Contains(r.Date) && r.Dim(core.DimType) == core.TypeExpense
	})
	if spent.Cents != 8000 {
		t.Fatalf("spent = %d, want 8000", spent.Cents)
	}
}

func TestCumulativeSeriesMonthlyBuckets(t *testing.T) {
	records := []core.Record{
		expense(core.NewDate(2024, 1, 10), 10000, "a"),
		expense(core.NewDate(2024, 2, 5), 5000, "a"),
		expense(core.NewDate(2024, 2, 20), 2500, "a"),
	}
	rng := period.Resolve(core.Yearly, core.NewDate(2024, 6, 1), nil)

	points := CumulativeSeries(records, rng, core.Monthly)
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[0].Period != "Jan 2024" || points[0].Cumulative.Cents != 10000 {
		t.Fatalf("points[0] = %+v", points[0])
	}
	if points[1].Period != "Feb 2024" || points[1].Cumulative.Cents != 17500 {
		t.Fatalf("points[1] = %+v", points[1])
	}
}

func TestCumulativeSeriesFiltersToRange(t *testing.T) {
	records := []core.Record{
		expense(core.NewDate(2023, 12, 31), 100000, "a"),
		expense(core.NewDate(2024, 1, 1), 100, "a"),
		expense(core.NewDate(2025, 1, 1), 100000, "a"),
	}
	rng := period.Resolve(core.Yearly, core.NewDate(2024, 1, 1), nil)

	points := CumulativeSeries(records, rng, core.Monthly)
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(points))
	}
	if points[0].Cumulative.Cents != 100 {
		t.Fatalf("out-of-range records leaked into the running total: %+v", points[0])
	}
}

func TestCumulativeSeriesMonotone(t *testing.T) {
	// Unsorted input with duplicate dates; non-negative amounts must yield a
	// non-decreasing cumulative sequence.
	records := []core.Record{
		expense(core.NewDate(2024, 3, 9), 700, "a"),
		expense(core.NewDate(2024, 1, 2), 100, "a"),
		expense(core.NewDate(2024, 2, 14), 0, "a"),
		expense(core.NewDate(2024, 1, 2), 300, "a"),
		expense(core.NewDate(2024, 2, 1), 50, "a"),
	}
	rng := period.Resolve(core.Yearly, core.NewDate(2024, 1, 1), nil)

	points := CumulativeSeries(records, rng, core.Daily)
	if len(points) != 4 {
		t.Fatalf("len(points) = %d, want 4", len(points))
	}
	prev := int64(-1)
	for _, p := range points {
		if p.SortKey <= prev {
			t.Fatalf("sort keys not strictly ascending: %+v", points)
		}
		prev = p.SortKey
	}
	for i := 1; i < len(points); i++ {
		if points[i].Cumulative.Cents < points[i-1].Cumulative.Cents {
			t.Fatalf("cumulative decreased at %d: %+v", i, points)
		}
	}
	// Two records share Jan 2; the point holds the total through both.
	if points[0].Cumulative.Cents != 400 {
		t.Fatalf("same-day records not folded: %+v", points[0])
	}
	if points[len(points)-1].Cumulative.Cents != 1150 {
		t.Fatalf("final cumulative = %d, want 1150", points[len(points)-1].Cumulative.Cents)
	}
}

func TestCumulativeSeriesWeeklyLabels(t *testing.T) {
	// Jan 1 2024 is a Monday; Jan 7 (Sunday) opens week 2 under the
	// days-since-January-1st week numbering.
	records := []core.Record{
		expense(core.NewDate(2024, 1, 1), 100, "a"),
		expense(core.NewDate(2024, 1, 6), 200, "a"),
		expense(core.NewDate(2024, 1, 7), 400, "a"),
	}
	rng := period.Resolve(core.Yearly, core.NewDate(2024, 1, 1), nil)

	points := CumulativeSeries(records, rng, core.Weekly)
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2: %+v", len(points), points)
	}
	if points[0].Period != "Week 1 2024" || points[0].Cumulative.Cents != 300 {
		t.Fatalf("points[0] = %+v", points[0])
	}
	if points[1].Period != "Week 2 2024" || points[1].Cumulative.Cents != 700 {
		t.Fatalf("points[1] = %+v", points[1])
	}
}

func TestCumulativeSeriesYearlyLabels(t *testing.T) {
	records := []core.Record{
		expense(core.NewDate(2024, 3, 1), 100, "a"),
		expense(core.NewDate(2024, 9, 1), 200, "a"),
	}
	rng := period.Resolve(core.Yearly, core.NewDate(2024, 1, 1), nil)

	points := CumulativeSeries(records, rng, core.Yearly)
	if len(points) != 1 || points[0].Period != "2024" || points[0].Cumulative.Cents != 300 {
		t.Fatalf("points = %+v", points)
	}
}

func TestCumulativeSeriesEmpty(t *testing.T) {
	rng := period.Resolve(core.Yearly, core.NewDate(2024, 1, 1), nil)
	if points := CumulativeSeries(nil, rng, core.Monthly); len(points) != 0 {
		t.Fatalf("points = %+v, want none", points)
	}
}

func investment(stock, person string, cents int64) core.Record {
	return core.Investment{
		Date:   core.NewDate(2024, 5, 1),
		Stock:  stock,
		Person: person,
		Amount: core.Money{Cents: cents},
	}.Record()
}

func TestGroupedRollup(t *testing.T) {
	allow := []string{"Anthony", "Albert", "Juliana"}
	records := []core.Record{
		investment("AAPL", "Anthony", 10000),
		investment("AAPL", "Albert", 5000),
		investment("AAPL", "Someone Else", 999900), // off the allow-list
		investment("VWCE", "Juliana", 2000),
		investment("AAPL", "Anthony", 1000),
	}

	rollup := GroupedRollup(records, core.DimStock, core.DimPerson, allow)

	primaries := rollup.Primaries()
	if len(primaries) != 2 || primaries[0] != "AAPL" || primaries[1] != "VWCE" {
		t.Fatalf("primaries = %v", primaries)
	}
	if got := rollup.Cell("AAPL", "Anthony").Cents; got != 11000 {
		t.Fatalf("AAPL/Anthony = %d, want 11000", got)
	}
	if got := rollup.Cell("AAPL", "Albert").Cents; got != 5000 {
		t.Fatalf("AAPL/Albert = %d, want 5000", got)
	}
	// Allow-listed persons without contributions still appear as zero cells.
	if got := rollup.Cell("AAPL", "Juliana").Cents; got != 0 {
		t.Fatalf("AAPL/Juliana = %d, want 0", got)
	}
	if got := rollup.Cell("VWCE", "Juliana").Cents; got != 2000 {
		t.Fatalf("VWCE/Juliana = %d, want 2000", got)
	}
}

// Every cell of the rollup accounts for exactly the allow-listed records:
// no double counting, no silent gain.
func TestGroupedRollupConservation(t *testing.T) {
	allow := []string{"Anthony", "Albert", "Juliana"}
	records := []core.Record{
		investment("AAPL", "Anthony", 10000),
		investment("MSFT", "Albert", 5000),
		investment("AAPL", "Nobody", 70000),
		investment("VWCE", "Juliana", 123),
		investment("MSFT", "Anthony", 77),
	}

	rollup := GroupedRollup(records, core.DimStock, core.DimPerson, allow)

	allowed := map[string]bool{"Anthony": true, "Albert": true, "Juliana": true}
	want := SumByFilter(records, func(r core.Record) bool {
		return allowed[r.Dim(core.DimPerson)]
	})
	if got := rollup.Total(); got.Cents != want.Cents {
		t.Fatalf("rollup total = %d, want %d", got.Cents, want.Cents)
	}
}

func TestGroupedRollupMarshalJSON(t *testing.T) {
	records := []core.Record{
		investment("AAPL", "Anthony", 10000),
		investment("AAPL", "Albert", 5000),
		investment("AAPL", "Someone Else", 999900),
	}
	rollup := GroupedRollup(records, core.DimStock, core.DimPerson, []string{"Anthony", "Albert", "Juliana"})

	data, err := rollup.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"AAPL":{"Anthony":10000,"Albert":5000,"Juliana":0}}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}

func TestGroupedRollupEmpty(t *testing.T) {
	rollup := GroupedRollup(nil, core.DimStock, core.DimPerson, []string{"A"})
	if len(rollup.Primaries()) != 0 || rollup.Total().Cents != 0 {
		t.Fatalf("empty rollup = %+v", rollup)
	}
}

func TestSummaryStats(t *testing.T) {
	records := []core.Record{
		investment("AAPL", "Anthony", 10000),
		investment("AAPL", "Albert", 5000),
		investment("VWCE", "Juliana", 3000),
	}

	stats := SummaryStats(records, core.DimStock)
	if stats.Total.Cents != 18000 {
		t.Fatalf("total = %d, want 18000", stats.Total.Cents)
	}
	if stats.DistinctCount != 2 {
		t.Fatalf("distinct = %d, want 2", stats.DistinctCount)
	}
	if stats.Average.Cents != 6000 {
		t.Fatalf("average = %d, want 6000", stats.Average.Cents)
	}
}

func TestSummaryStatsDegenerate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		stats := SummaryStats(nil, core.DimStock)
		if stats.Total.Cents != 0 || stats.DistinctCount != 0 || stats.Average.Cents != 0 {
			t.Fatalf("stats = %+v, want all zero", stats)
		}
	})

	t.Run("single record", func(t *testing.T) {
		stats := SummaryStats([]core.Record{investment("AAPL", "Anthony", 500)}, core.DimStock)
		if stats.Total.Cents != 500 || stats.DistinctCount != 1 || stats.Average.Cents != 500 {
			t.Fatalf("stats = %+v", stats)
		}
	})

	t.Run("one dimension value", func(t *testing.T) {
		records := []core.Record{
			investment("AAPL", "Anthony", 100),
			investment("AAPL", "Albert", 300),
		}
		stats := SummaryStats(records, core.DimStock)
		if stats.DistinctCount != 1 || stats.Average.Cents != 200 {
			t.Fatalf("stats = %+v", stats)
		}
	})
}
