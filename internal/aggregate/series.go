package aggregate

import (
	"fmt"
	"sort"
	"strconv"

	"tally/internal/core"
	"tally/internal/period"
)

// SeriesPoint is one bucket of a cumulative time series. Cumulative holds
// the running total up to and including the last record seen for the
// bucket's label, not the per-bucket sum.
type SeriesPoint struct {
	Period     string     `json:"period"`
	SortKey    int64      `json:"sort_key"`
	Cumulative core.Money `json:"cumulative"`
}

// CumulativeSeries buckets the records falling inside rng into a cumulative
// time series at the given bucket granularity, e.g. a yearly range bucketed
// monthly. An unknown bucket kind buckets by day.
//
// Records are filtered to the range, stably sorted by date (input order
// breaks ties), then walked with a running total. The first record seen for
// a label creates its point; later records for the same label overwrite the
// stored cumulative value. Labels are assumed unique per sort key: the
// label formats below can't collide across different keys, and if one ever
// did, the later write would win. Points come back ascending by sort key.
func CumulativeSeries(records []core.Record, rng period.Range, bucketKind core.PeriodKind) []SeriesPoint {
	var in []core.Record
	for _, r := range records {
		if rng.Contains(r.Date) {
			in = append(in, r)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Date.Before(in[j].Date.Time)
	})

	var running int64
	index := make(map[string]int)
	var points []SeriesPoint
	for _, r := range in {
		running += r.Amount.Cents
		label, key := bucket(bucketKind, r.Date)
		if i, ok := index[label]; ok {
			points[i].Cumulative = core.Money{Cents: running}
			continue
		}
		index[label] = len(points)
		points = append(points, SeriesPoint{
			Period:     label,
			SortKey:    key,
			Cumulative: core.Money{Cents: running},
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].SortKey < points[j].SortKey
	})
	return points
}

// bucket derives the period label and numeric sort key for a date under the
// given bucketing kind.
func bucket(kind core.PeriodKind, d core.Date) (string, int64) {
	switch kind {
	case core.Yearly:
		return strconv.Itoa(d.Year()), int64(d.Year())
	case core.Monthly:
		return d.Format("Jan 2006"), int64(d.Year()*100 + d.Month() - 1)
	case core.Weekly:
		week := weekOfYear(d)
		return fmt.Sprintf("Week %d %d", week, d.Year()), int64(d.Year()*100 + week)
	default:
		return d.Format("Jan 2, 2006"), d.UnixMilli()
	}
}

// weekOfYear numbers the week within d's year: week 1 starts on January 1st
// and weeks break on Sunday/Monday boundaries relative to Jan 1's weekday.
func weekOfYear(d core.Date) int {
	jan1 := core.NewDate(d.Year(), 1, 1)
	days := int(d.Sub(jan1.Time).Hours() / 24)
	// ceil((days + weekday(jan1) + 1) / 7) with Sunday counted as 0.
	return (days + int(jan1.Weekday()) + 7) / 7
}
