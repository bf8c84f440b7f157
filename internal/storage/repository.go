package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/period"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the record store collaborator: it maps rows to core
// types so the aggregation engine never sees SQL or raw row shapes.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction persists a validated transaction and returns its ID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		Date:        t.Date.ISO(),
		Type:        t.Type,
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", row.ID,
		"type", row.Type,
		"amount_cents", row.AmountCents,
		"category", row.Category,
		"date", row.Date)

	return row.ID, nil
}

// GetTransaction retrieves a single transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return transactionFromRow(row)
}

// TransactionsInRange returns the transactions dated inside rng, mapped to
// core types and ordered by date.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, rng period.Range) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsInRange(ctx, rng.Start.ISO(), rng.End.ISO())
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// DeleteTransaction removes a transaction by ID.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if err := r.queries.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// CreateBudget persists a validated budget and returns it with its ID set.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	row, err := r.queries.CreateBudget(ctx, CreateBudgetParams{
		Name:        b.Name,
		Category:    b.Category,
		Period:      string(b.Period),
		AmountCents: b.Amount.Cents,
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved", "id", row.ID, "name", row.Name, "period", row.Period)
	return budgetFromRow(row), nil
}

// GetBudget retrieves a budget by ID.
func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	row, err := r.queries.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	return budgetFromRow(row), nil
}

// ListBudgets returns every budget ordered by ID.
func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, len(rows))
	for i, row := range rows {
		out[i] = budgetFromRow(row)
	}
	return out, nil
}

// BudgetsForCategory returns the budgets watching a category.
func (r *SQLiteRepository) BudgetsForCategory(ctx context.Context, category string) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgetsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list budgets for category %s: %w", category, err)
	}
	out := make([]core.Budget, len(rows))
	for i, row := range rows {
		out[i] = budgetFromRow(row)
	}
	return out, nil
}

// DeleteBudget removes a budget and its alerts.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id int64) error {
	if err := r.queries.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

// CreateGoal persists a validated savings goal.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	deadline := sql.NullString{}
	if !g.Deadline.IsZero() {
		deadline = sql.NullString{String: g.Deadline.ISO(), Valid: true}
	}
	row, err := r.queries.CreateGoal(ctx, CreateGoalParams{
		Name:        g.Name,
		TargetCents: g.Target.Cents,
		Deadline:    deadline,
	})
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create goal: %w", err)
	}

	slog.InfoContext(ctx, "Savings goal saved", "id", row.ID, "name", row.Name)
	return goalFromRow(row)
}

// ListGoals returns every savings goal ordered by ID.
func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.SavingsGoal, error) {
	rows, err := r.queries.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]core.SavingsGoal, 0, len(rows))
	for _, row := range rows {
		g, err := goalFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// CreateInvestment persists a validated investment entry.
func (r *SQLiteRepository) CreateInvestment(ctx context.Context, inv core.Investment) (int64, error) {
	row, err := r.queries.CreateInvestment(ctx, CreateInvestmentParams{
		Date:        inv.Date.ISO(),
		Stock:       inv.Stock,
		Person:      inv.Person,
		AmountCents: inv.Amount.Cents,
	})
	if err != nil {
		return 0, fmt.Errorf("create investment: %w", err)
	}

	slog.InfoContext(ctx, "Investment saved",
		"id", row.ID, "stock", row.Stock, "person", row.Person, "amount_cents", row.AmountCents)
	return row.ID, nil
}

// ListInvestments returns every investment entry ordered by ID.
func (r *SQLiteRepository) ListInvestments(ctx context.Context) ([]core.Investment, error) {
	rows, err := r.queries.ListInvestments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	out := make([]core.Investment, 0, len(rows))
	for _, row := range rows {
		inv, err := investmentFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// BudgetAlert is a recorded threshold crossing.
type BudgetAlert struct {
	ID          int64
	BudgetID    int64
	Spent       core.Money
	Percentage  float64
	PeriodStart core.Date
	PeriodEnd   core.Date
	CreatedAt   time.Time
}

// RecordBudgetAlert stores a threshold crossing observed by the worker.
func (r *SQLiteRepository) RecordBudgetAlert(ctx context.Context, a BudgetAlert) (int64, error) {
	row, err := r.queries.CreateBudgetAlert(ctx, CreateBudgetAlertParams{
		BudgetID:    a.BudgetID,
		SpentCents:  a.Spent.Cents,
		Percentage:  a.Percentage,
		PeriodStart: a.PeriodStart.ISO(),
		PeriodEnd:   a.PeriodEnd.ISO(),
	})
	if err != nil {
		return 0, fmt.Errorf("record budget alert: %w", err)
	}

	slog.InfoContext(ctx, "Budget alert recorded",
		"id", row.ID, "budget_id", row.BudgetID, "percentage", row.Percentage)
	return row.ID, nil
}

// AlertExistsForPeriod reports whether an alert is already recorded for the
// budget and period start. The dedup check looks at the whole alert log, not
// a recent window, so it holds no matter how many budgets alert at once.
func (r *SQLiteRepository) AlertExistsForPeriod(ctx context.Context, budgetID int64, periodStart core.Date) (bool, error) {
	exists, err := r.queries.BudgetAlertExistsForPeriod(ctx, budgetID, periodStart.ISO())
	if err != nil {
		return false, fmt.Errorf("check alert for budget %d: %w", budgetID, err)
	}
	return exists, nil
}

// RecentBudgetAlerts returns the latest recorded alerts, newest first.
func (r *SQLiteRepository) RecentBudgetAlerts(ctx context.Context, limit int) ([]BudgetAlert, error) {
	rows, err := r.queries.ListRecentBudgetAlerts(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent budget alerts: %w", err)
	}
	out := make([]BudgetAlert, 0, len(rows))
	for _, row := range rows {
		start, err := parseDate(row.PeriodStart)
		if err != nil {
			return nil, err
		}
		end, err := parseDate(row.PeriodEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, BudgetAlert{
			ID:          row.ID,
			BudgetID:    row.BudgetID,
			Spent:       core.Money{Cents: row.SpentCents},
			Percentage:  row.Percentage,
			PeriodStart: start,
			PeriodEnd:   end,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	d, err := parseDate(row.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          row.ID,
		Date:        d,
		Type:        row.Type,
		Description: row.Description,
		Amount:      core.Money{Cents: row.AmountCents},
		Category:    row.Category,
	}, nil
}

func budgetFromRow(row BudgetRow) core.Budget {
	return core.Budget{
		ID:       row.ID,
		Name:     row.Name,
		Category: row.Category,
		Period:   core.PeriodKind(row.Period),
		Amount:   core.Money{Cents: row.AmountCents},
	}
}

func goalFromRow(row GoalRow) (core.SavingsGoal, error) {
	g := core.SavingsGoal{
		ID:     row.ID,
		Name:   row.Name,
		Target: core.Money{Cents: row.TargetCents},
	}
	if row.Deadline.Valid {
		d, err := parseDate(row.Deadline.String)
		if err != nil {
			return core.SavingsGoal{}, err
		}
		g.Deadline = d
	}
	return g, nil
}

func investmentFromRow(row InvestmentRow) (core.Investment, error) {
	d, err := parseDate(row.Date)
	if err != nil {
		return core.Investment{}, err
	}
	return core.Investment{
		ID:     row.ID,
		Date:   d,
		Stock:  row.Stock,
		Person: row.Person,
		Amount: core.Money{Cents: row.AmountCents},
	}, nil
}
