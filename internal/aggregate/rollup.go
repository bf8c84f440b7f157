package aggregate

import (
	"bytes"
	"encoding/json"

	"tally/internal/core"
)

// Rollup is a two-level grouped sum: primary key -> secondary key -> amount.
// Primary keys keep the order in which they were first encountered; the
// secondary keys of every row are exactly the allow-list, each starting at
// zero.
type Rollup struct {
	primaries []string
	allowed   []string
	cells     map[string]map[string]int64
}

// GroupedRollup folds the records into a rollup keyed by primaryDim and
// secondaryDim. Seeing a primary value for the first time initializes its
// row with every allow-listed secondary at zero; a record only contributes
// its amount when its secondary value is on the allow-list, otherwise it is
// dropped silently (the row it may have opened stays). Each kept record
// lands in exactly one cell.
func GroupedRollup(records []core.Record, primaryDim, secondaryDim string, allowList []string) *Rollup {
	allowed := make(map[string]bool, len(allowList))
	for _, s := range allowList {
		allowed[s] = true
	}

	rollup := &Rollup{
		allowed: append([]string(nil), allowList...),
		cells:   make(map[string]map[string]int64),
	}
	for _, r := range records {
		primary := r.Dim(primaryDim)
		row, ok := rollup.cells[primary]
		if !ok {
			row = make(map[string]int64, len(allowList))
			for _, s := range allowList {
				row[s] = 0
			}
			rollup.cells[primary] = row
			rollup.primaries = append(rollup.primaries, primary)
		}
		if secondary := r.Dim(secondaryDim); allowed[secondary] {
			row[secondary] += r.Amount.Cents
		}
	}
	return rollup
}

// Primaries returns the primary keys in first-encounter order.
func (r *Rollup) Primaries() []string {
	return r.primaries
}

// Secondaries returns the allow-list the rollup was built with.
func (r *Rollup) Secondaries() []string {
	return r.allowed
}

// Cell returns the summed amount for a (primary, secondary) pair. Unknown
// pairs are zero.
func (r *Rollup) Cell(primary, secondary string) core.Money {
	return core.Money{Cents: r.cells[primary][secondary]}
}

// Total sums every cell of the rollup.
func (r *Rollup) Total() core.Money {
	var cents int64
	for _, row := range r.cells {
		for _, v := range row {
			cents += v
		}
	}
	return core.Money{Cents: cents}
}

// MarshalJSON emits the nested primary -> secondary -> cents object with
// primaries in first-encounter order and secondaries in allow-list order.
func (r *Rollup) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, primary := range r.primaries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(primary)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteByte('{')
		for j, secondary := range r.allowed {
			if j > 0 {
				buf.WriteByte(',')
			}
			skey, err := json.Marshal(secondary)
			if err != nil {
				return nil, err
			}
			buf.Write(skey)
			buf.WriteByte(':')
			val, err := json.Marshal(r.cells[primary][secondary])
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
