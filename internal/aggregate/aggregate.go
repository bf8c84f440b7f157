// Package aggregate is the rollup engine of the tracker: pure functions
// that turn a slice of dated records into sums, cumulative time series,
// grouped rollups and summary statistics. No I/O, no clock reads, no
// mutation of the input; every operation is total over empty input.
package aggregate

import (
	"tally/internal/core"
)

// SumByFilter sums the amounts of records matching pred. A nil pred
// matches everything. The empty set sums to zero.
func SumByFilter(records []core.Record, pred func(core.Record) bool) core.Money {
	var cents int64
	for _, r := range records {
		if pred == nil || pred(r) {
			cents += r.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// DimEquals builds a predicate matching records whose named dimension has
// the given value.
func DimEquals(name, value string) func(core.Record) bool {
	return func(r core.Record) bool {
		return r.Dim(name) == value
	}
}

// Stats is the summary view over a record set.
type Stats struct {
	Total         core.Money
	DistinctCount int
	Average       core.Money
}

// SummaryStats computes the total amount, the number of distinct values of
// the named dimension, and the mean amount per record. All three are zero
// for the empty set; in particular the average is defined as zero rather
// than dividing by zero.
func SummaryStats(records []core.Record, distinctDim string) Stats {
	stats := Stats{Total: SumByFilter(records, nil)}
	if len(records) == 0 {
		return stats
	}

	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.Dim(distinctDim)] = struct{}{}
	}
	stats.DistinctCount = len(seen)
	stats.Average = core.Money{Cents: stats.Total.Cents / int64(len(records))}
	return stats
}
