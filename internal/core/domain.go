package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   PeriodKind = "daily"
	Weekly  PeriodKind = "weekly"
	Monthly PeriodKind = "monthly"
	Yearly  PeriodKind = "yearly"
	Custom  PeriodKind = "custom"
)

const (
	TypeExpense = "expense"
	TypeIncome  = "income"
	TypeSaving  = "saving"
)

// Dimension names used when flattening domain entities into Records.
const (
	DimType     = "type"
	DimCategory = "category"
	DimStock    = "stock"
	DimPerson   = "person"
)

type (
	// PeriodKind selects how a reference date expands into a date range.
	PeriodKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          int64 // Database ID for operations
		Date        Date
		Type        string // expense, income or saving
		Description string
		Amount      Money
		Category    string
	}

	// Investment is an informal holding entry: who put how much into what.
	Investment struct {
		ID     int64
		Date   Date
		Stock  string
		Person string
		Amount Money
	}

	Budget struct {
		ID       int64
		Name     string
		Category string
		Period   PeriodKind // daily, weekly, monthly or yearly
		Amount   Money
	}

	SavingsGoal struct {
		ID       int64
		Name     string
		Target   Money
		Deadline Date // zero when open-ended
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidPeriod    = errors.New("invalid period kind")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyStock       = errors.New("empty stock symbol")
	ErrEmptyPerson      = errors.New("empty person")
)

// Valid reports whether k is one of the five supported period kinds.
func (k PeriodKind) Valid() bool {
	switch k {
	case Daily, Weekly, Monthly, Yearly, Custom:
		return true
	}
	return false
}

// NewDate creates a calendar date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// ISO returns the date formatted as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	switch t.Type {
	case TypeExpense, TypeIncome, TypeSaving:
	default:
		return ErrInvalidType
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (inv Investment) Validate() error {
	if err := inv.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(inv.Stock) == "" {
		return ErrEmptyStock
	}
	if strings.TrimSpace(inv.Person) == "" {
		return ErrEmptyPerson
	}
	return inv.Amount.Validate()
}

// Validate rejects zero-amount budgets at creation time, which keeps the
// spent/amount percentage computed at read time away from division by zero.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	switch b.Period {
	case Daily, Weekly, Monthly, Yearly:
		// A budget window is always derived from "now"; custom has no anchor.
	default:
		return ErrInvalidPeriod
	}
	return b.Amount.Validate()
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	return nil
}
