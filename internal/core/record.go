package core

// Record is the flat, dated, amount-bearing shape consumed by the aggregation
// engine. Domain entities are mapped to Records at the boundary; the engine
// never mutates them and never sees raw store rows.
type Record struct {
	Date   Date
	Amount Money
	Dims   map[string]string
}

// Dim returns the named dimension, or "" when the record does not carry it.
func (r Record) Dim(name string) string {
	return r.Dims[name]
}

// Record flattens a transaction into {type, category} dimensions.
func (t Transaction) Record() Record {
	return Record{
		Date:   t.Date,
		Amount: t.Amount,
		Dims: map[string]string{
			DimType:     t.Type,
			DimCategory: t.Category,
		},
	}
}

// Record flattens an investment into {stock, person} dimensions.
func (inv Investment) Record() Record {
	return Record{
		Date:   inv.Date,
		Amount: inv.Amount,
		Dims: map[string]string{
			DimStock:  inv.Stock,
			DimPerson: inv.Person,
		},
	}
}

// TransactionRecords maps a transaction slice to engine records.
func TransactionRecords(ts []Transaction) []Record {
	records := make([]Record, len(ts))
	for i, t := range ts {
		records[i] = t.Record()
	}
	return records
}

// InvestmentRecords maps an investment slice to engine records.
func InvestmentRecords(invs []Investment) []Record {
	records := make([]Record, len(invs))
	for i, inv := range invs {
		records[i] = inv.Record()
	}
	return records
}
