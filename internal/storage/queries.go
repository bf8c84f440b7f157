package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of *sql.DB / *sql.Tx the query layer needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the hand-written SQL for the tracker tables.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type TransactionRow struct {
	ID          int64
	Date        string
	Type        string
	Description string
	AmountCents int64
	Category    string
	CreatedAt   time.Time
}

type BudgetRow struct {
	ID          int64
	Name        string
	Category    string
	Period      string
	AmountCents int64
}

type GoalRow struct {
	ID          int64
	Name        string
	TargetCents int64
	Deadline    sql.NullString
}

type InvestmentRow struct {
	ID          int64
	Date        string
	Stock       string
	Person      string
	AmountCents int64
}

type BudgetAlertRow struct {
	ID          int64
	BudgetID    int64
	SpentCents  int64
	Percentage  float64
	PeriodStart string
	PeriodEnd   string
	CreatedAt   time.Time
}

type CreateTransactionParams struct {
	Date        string
	Type        string
	Description string
	AmountCents int64
	Category    string
}

const createTransaction = `
INSERT INTO transactions (date, type, description, amount_cents, category)
VALUES (?, ?, ?, ?, ?)
RETURNING id, date, type, description, amount_cents, category, created_at
`

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Date, arg.Type, arg.Description, arg.AmountCents, arg.Category)
	var t TransactionRow
	err := row.Scan(&t.ID, &t.Date, &t.Type, &t.Description, &t.AmountCents, &t.Category, &t.CreatedAt)
	return t, err
}

const getTransaction = `
SELECT id, date, type, description, amount_cents, category, created_at
FROM transactions WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var t TransactionRow
	err := row.Scan(&t.ID, &t.Date, &t.Type, &t.Description, &t.AmountCents, &t.Category, &t.CreatedAt)
	return t, err
}

const listTransactionsInRange = `
SELECT id, date, type, description, amount_cents, category, created_at
FROM transactions
WHERE date >= ? AND date <= ?
ORDER BY date, id
`

// ListTransactionsInRange returns the transactions dated inside the
// inclusive [start, end] range, both in YYYY-MM-DD form. Lexicographic
// comparison on that form matches chronological order.
func (q *Queries) ListTransactionsInRange(ctx context.Context, start, end string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsInRange, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransactionRow
	for rows.Next() {
		var t TransactionRow
		if err := rows.Scan(&t.ID, &t.Date, &t.Type, &t.Description, &t.AmountCents, &t.Category, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteTransaction, id)
	return err
}

type CreateBudgetParams struct {
	Name        string
	Category    string
	Period      string
	AmountCents int64
}

const createBudget = `
INSERT INTO budgets (name, category, period, amount_cents)
VALUES (?, ?, ?, ?)
RETURNING id, name, category, period, amount_cents
`

func (q *Queries) CreateBudget(ctx context.Context, arg CreateBudgetParams) (BudgetRow, error) {
	row := q.db.QueryRowContext(ctx, createBudget, arg.Name, arg.Category, arg.Period, arg.AmountCents)
	var b BudgetRow
	err := row.Scan(&b.ID, &b.Name, &b.Category, &b.Period, &b.AmountCents)
	return b, err
}

const getBudget = `
SELECT id, name, category, period, amount_cents FROM budgets WHERE id = ?
`

func (q *Queries) GetBudget(ctx context.Context, id int64) (BudgetRow, error) {
	row := q.db.QueryRowContext(ctx, getBudget, id)
	var b BudgetRow
	err := row.Scan(&b.ID, &b.Name, &b.Category, &b.Period, &b.AmountCents)
	return b, err
}

const listBudgets = `
SELECT id, name, category, period, amount_cents FROM budgets ORDER BY id
`

func (q *Queries) ListBudgets(ctx context.Context) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetRow
	for rows.Next() {
		var b BudgetRow
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &b.Period, &b.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const listBudgetsByCategory = `
SELECT id, name, category, period, amount_cents FROM budgets WHERE category = ? ORDER BY id
`

func (q *Queries) ListBudgetsByCategory(ctx context.Context, category string) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetsByCategory, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetRow
	for rows.Next() {
		var b BudgetRow
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &b.Period, &b.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const deleteBudget = `DELETE FROM budgets WHERE id = ?`

func (q *Queries) DeleteBudget(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteBudget, id)
	return err
}

type CreateGoalParams struct {
	Name        string
	TargetCents int64
	Deadline    sql.NullString
}

const createGoal = `
INSERT INTO savings_goals (name, target_cents, deadline)
VALUES (?, ?, ?)
RETURNING id, name, target_cents, deadline
`

func (q *Queries) CreateGoal(ctx context.Context, arg CreateGoalParams) (GoalRow, error) {
	row := q.db.QueryRowContext(ctx, createGoal, arg.Name, arg.TargetCents, arg.Deadline)
	var g GoalRow
	err := row.Scan(&g.ID, &g.Name, &g.TargetCents, &g.Deadline)
	return g, err
}

const listGoals = `
SELECT id, name, target_cents, deadline FROM savings_goals ORDER BY id
`

func (q *Queries) ListGoals(ctx context.Context) ([]GoalRow, error) {
	rows, err := q.db.QueryContext(ctx, listGoals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GoalRow
	for rows.Next() {
		var g GoalRow
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetCents, &g.Deadline); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type CreateInvestmentParams struct {
	Date        string
	Stock       string
	Person      string
	AmountCents int64
}

const createInvestment = `
INSERT INTO investments (date, stock, person, amount_cents)
VALUES (?, ?, ?, ?)
RETURNING id, date, stock, person, amount_cents
`

func (q *Queries) CreateInvestment(ctx context.Context, arg CreateInvestmentParams) (InvestmentRow, error) {
	row := q.db.QueryRowContext(ctx, createInvestment, arg.Date, arg.Stock, arg.Person, arg.AmountCents)
	var inv InvestmentRow
	err := row.Scan(&inv.ID, &inv.Date, &inv.Stock, &inv.Person, &inv.AmountCents)
	return inv, err
}

const listInvestments = `
SELECT id, date, stock, person, amount_cents FROM investments ORDER BY id
`

func (q *Queries) ListInvestments(ctx context.Context) ([]InvestmentRow, error) {
	rows, err := q.db.QueryContext(ctx, listInvestments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvestmentRow
	for rows.Next() {
		var inv InvestmentRow
		if err := rows.Scan(&inv.ID, &inv.Date, &inv.Stock, &inv.Person, &inv.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type CreateBudgetAlertParams struct {
	BudgetID    int64
	SpentCents  int64
	Percentage  float64
	PeriodStart string
	PeriodEnd   string
}

const createBudgetAlert = `
INSERT INTO budget_alerts (budget_id, spent_cents, percentage, period_start, period_end)
VALUES (?, ?, ?, ?, ?)
RETURNING id, budget_id, spent_cents, percentage, period_start, period_end, created_at
`

func (q *Queries) CreateBudgetAlert(ctx context.Context, arg CreateBudgetAlertParams) (BudgetAlertRow, error) {
	row := q.db.QueryRowContext(ctx, createBudgetAlert,
		arg.BudgetID, arg.SpentCents, arg.Percentage, arg.PeriodStart, arg.PeriodEnd)
	var a BudgetAlertRow
	err := row.Scan(&a.ID, &a.BudgetID, &a.SpentCents, &a.Percentage, &a.PeriodStart, &a.PeriodEnd, &a.CreatedAt)
	return a, err
}

const budgetAlertExistsForPeriod = `
SELECT EXISTS (
    SELECT 1 FROM budget_alerts WHERE budget_id = ? AND period_start = ?
)
`

func (q *Queries) BudgetAlertExistsForPeriod(ctx context.Context, budgetID int64, periodStart string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, budgetAlertExistsForPeriod, budgetID, periodStart).Scan(&exists)
	return exists, err
}

const listRecentBudgetAlerts = `
SELECT id, budget_id, spent_cents, percentage, period_start, period_end, created_at
FROM budget_alerts ORDER BY created_at DESC, id DESC LIMIT ?
`

func (q *Queries) ListRecentBudgetAlerts(ctx context.Context, limit int64) ([]BudgetAlertRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecentBudgetAlerts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetAlertRow
	for rows.Next() {
		var a BudgetAlertRow
		if err := rows.Scan(&a.ID, &a.BudgetID, &a.SpentCents, &a.Percentage, &a.PeriodStart, &a.PeriodEnd, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
