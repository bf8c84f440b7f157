package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/aggregate"
	"tally/internal/amqp"
	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/period"
	"tally/internal/storage"
)

// Store is the persistence port the service orchestrates. The SQLite
// repository satisfies it in production; tests plug in an in-memory fake.
type Store interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	TransactionsInRange(ctx context.Context, rng period.Range) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, id int64) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	BudgetsForCategory(ctx context.Context, category string) ([]core.Budget, error)
	DeleteBudget(ctx context.Context, id int64) error

	CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
	ListGoals(ctx context.Context) ([]core.SavingsGoal, error)

	CreateInvestment(ctx context.Context, inv core.Investment) (int64, error)
	ListInvestments(ctx context.Context) ([]core.Investment, error)

	RecentBudgetAlerts(ctx context.Context, limit int) ([]storage.BudgetAlert, error)
}

// AlertPublisher publishes budget threshold alerts. Nil-able: without a
// broker the service still works, alerts are just skipped.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// TrackerService orchestrates the domain: validation, persistence, period
// resolution and aggregation, plus best-effort alert publication.
type TrackerService struct {
	store          Store
	publisher      AlertPublisher
	clock          period.Clock
	alertThreshold float64
	holders        []string
}

func NewTrackerService(store Store, publisher AlertPublisher, clock period.Clock, alertThreshold float64, holders []string) *TrackerService {
	if clock == nil {
		clock = period.SystemClock{}
	}
	if alertThreshold <= 0 {
		alertThreshold = 100
	}
	return &TrackerService{
		store:          store,
		publisher:      publisher,
		clock:          clock,
		alertThreshold: alertThreshold,
		holders:        holders,
	}
}

// Range resolves a period kind around ref using the service clock. A zero
// ref means today.
func (s *TrackerService) Range(kind core.PeriodKind, ref core.Date) period.Range {
	return period.Resolve(kind, ref, s.clock)
}

// CreateTransaction validates and saves a transaction, then checks the
// budgets watching its category. Alert publication is best-effort: a broker
// failure never fails the write.
func (s *TrackerService) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}

	id, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	fields := applog.NewFields().
		WithOperation(applog.OpCreate).
		WithTransaction(t.Type, t.Amount.Cents, t.Category)
	slog.InfoContext(ctx, "Transaction recorded", fields.ToSlice()...)

	if t.Type == core.TypeExpense {
		if err := s.checkBudgetThresholds(ctx, t.Category); err != nil {
			slog.ErrorContext(ctx, "Budget threshold check failed",
				"category", t.Category, "error", err)
			// Don't fail the request - transaction is saved locally
		}
	}

	return id, nil
}

// Transactions lists the transactions dated inside rng.
func (s *TrackerService) Transactions(ctx context.Context, rng period.Range) ([]core.Transaction, error) {
	return s.store.TransactionsInRange(ctx, rng)
}

// DeleteTransaction removes a transaction by ID.
func (s *TrackerService) DeleteTransaction(ctx context.Context, id int64) error {
	return s.store.DeleteTransaction(ctx, id)
}

// Summary computes total, distinct category count and average over the
// transactions in rng, optionally restricted to one transaction type.
func (s *TrackerService) Summary(ctx context.Context, rng period.Range, txType string) (aggregate.Stats, error) {
	records, err := s.records(ctx, rng, txType)
	if err != nil {
		return aggregate.Stats{}, err
	}
	return aggregate.SummaryStats(records, core.DimCategory), nil
}

// Series computes the cumulative spending series over rng, bucketed by
// bucketKind, optionally restricted to one transaction type.
func (s *TrackerService) Series(ctx context.Context, rng period.Range, bucketKind core.PeriodKind, txType string) ([]aggregate.SeriesPoint, error) {
	records, err := s.records(ctx, rng, txType)
	if err != nil {
		return nil, err
	}
	return aggregate.CumulativeSeries(records, rng, bucketKind), nil
}

// CreateBudget validates and saves a budget.
func (s *TrackerService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("validate budget: %w", err)
	}
	return s.store.CreateBudget(ctx, b)
}

// DeleteBudget removes a budget by ID.
func (s *TrackerService) DeleteBudget(ctx context.Context, id int64) error {
	return s.store.DeleteBudget(ctx, id)
}

// BudgetSnapshots derives the current snapshot of every budget: resolve the
// budget's period around today, sum matching expenses, compare to the
// budgeted amount.
func (s *TrackerService) BudgetSnapshots(ctx context.Context) ([]core.BudgetSnapshot, error) {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	snapshots := make([]core.BudgetSnapshot, 0, len(budgets))
	for _, b := range budgets {
		snap, err := s.snapshot(ctx, b)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// BudgetSnapshot derives the current snapshot of one budget.
func (s *TrackerService) BudgetSnapshot(ctx context.Context, id int64) (core.BudgetSnapshot, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.BudgetSnapshot{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	return s.snapshot(ctx, b)
}

func (s *TrackerService) snapshot(ctx context.Context, b core.Budget) (core.BudgetSnapshot, error) {
	rng := period.Resolve(b.Period, core.Date{}, s.clock)
	txs, err := s.store.TransactionsInRange(ctx, rng)
	if err != nil {
		return core.BudgetSnapshot{}, fmt.Errorf("list transactions for budget %d: %w", b.ID, err)
	}
	spent := aggregate.SumByFilter(core.TransactionRecords(txs), expenseInCategory(b.Category))
	return core.NewBudgetSnapshot(b, spent), nil
}

func expenseInCategory(category string) func(core.Record) bool {
	return func(r core.Record) bool {
		return r.Dim(core.DimType) == core.TypeExpense && r.Dim(core.DimCategory) == category
	}
}

func (s *TrackerService) checkBudgetThresholds(ctx context.Context, category string) error {
	budgets, err := s.store.BudgetsForCategory(ctx, category)
	if err != nil {
		return fmt.Errorf("list budgets for category: %w", err)
	}

	for _, b := range budgets {
		rng := period.Resolve(b.Period, core.Date{}, s.clock)
		txs, err := s.store.TransactionsInRange(ctx, rng)
		if err != nil {
			return fmt.Errorf("list transactions for budget %d: %w", b.ID, err)
		}
		spent := aggregate.SumByFilter(core.TransactionRecords(txs), expenseInCategory(b.Category))
		snap := core.NewBudgetSnapshot(b, spent)

		if snap.Percentage < s.alertThreshold {
			continue
		}

		fields := applog.NewFields().
			WithOperation(applog.OpAlert).
			WithBudget(b.ID, snap.Percentage)
		slog.InfoContext(ctx, "Budget threshold crossed", fields.ToSlice()...)

		if s.publisher == nil {
			slog.WarnContext(ctx, "AMQP client not available, skipping budget alert",
				"budget_id", b.ID)
			continue
		}

		msg := amqp.NewBudgetAlertMessage(b.ID, spent.Cents, snap.Percentage, rng.Start.ISO(), rng.End.ISO())
		if err := s.publisher.PublishBudgetAlert(ctx, msg); err != nil {
			fields := applog.NewFields().
				WithOperation(applog.OpAlert).
				WithBudget(b.ID, snap.Percentage).
				WithError(err)
			slog.ErrorContext(ctx, "Failed to publish budget alert", fields.ToSlice()...)
			// Don't fail - the alert is advisory
		}
	}
	return nil
}

// RecentAlerts returns the latest recorded budget alerts, newest first.
func (s *TrackerService) RecentAlerts(ctx context.Context, limit int) ([]storage.BudgetAlert, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	alerts, err := s.store.RecentBudgetAlerts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	return alerts, nil
}

// CreateGoal validates and saves a savings goal.
func (s *TrackerService) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("validate goal: %w", err)
	}
	return s.store.CreateGoal(ctx, g)
}

// GoalProgress derives progress for every savings goal. A goal's saved total
// is the sum of saving-type transactions whose category matches the goal
// name, over all recorded history.
func (s *TrackerService) GoalProgress(ctx context.Context) ([]core.GoalProgress, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	rng := s.allTime()
	txs, err := s.store.TransactionsInRange(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	records := core.TransactionRecords(txs)

	progress := make([]core.GoalProgress, 0, len(goals))
	for _, g := range goals {
		name := g.Name
		saved := aggregate.SumByFilter(records, func(r core.Record) bool {
			return r.Dim(core.DimType) == core.TypeSaving && r.Dim(core.DimCategory) == name
		})
		progress = append(progress, core.NewGoalProgress(g, saved))
	}
	return progress, nil
}

// CreateInvestment validates an investment against the configured holder
// allow-list and saves it.
func (s *TrackerService) CreateInvestment(ctx context.Context, inv core.Investment) (int64, error) {
	if err := inv.Validate(); err != nil {
		return 0, fmt.Errorf("validate investment: %w", err)
	}
	if len(s.holders) > 0 && !contains(s.holders, inv.Person) {
		return 0, fmt.Errorf("unknown holder %q: %w", inv.Person, core.ErrEmptyPerson)
	}
	return s.store.CreateInvestment(ctx, inv)
}

// Investments lists every investment entry.
func (s *TrackerService) Investments(ctx context.Context) ([]core.Investment, error) {
	return s.store.ListInvestments(ctx)
}

// InvestmentRollup groups all investments by stock, then by holder. Holders
// outside the allow-list are dropped; every listed holder shows up in every
// stock row, zero-filled when they hold nothing.
func (s *TrackerService) InvestmentRollup(ctx context.Context) (*aggregate.Rollup, error) {
	invs, err := s.store.ListInvestments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	records := core.InvestmentRecords(invs)
	return aggregate.GroupedRollup(records, core.DimStock, core.DimPerson, s.holders), nil
}

// InvestmentStats computes total, distinct stock count and average over all
// investments.
func (s *TrackerService) InvestmentStats(ctx context.Context) (aggregate.Stats, error) {
	invs, err := s.store.ListInvestments(ctx)
	if err != nil {
		return aggregate.Stats{}, fmt.Errorf("list investments: %w", err)
	}
	return aggregate.SummaryStats(core.InvestmentRecords(invs), core.DimStock), nil
}

func (s *TrackerService) records(ctx context.Context, rng period.Range, txType string) ([]core.Record, error) {
	txs, err := s.store.TransactionsInRange(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	records := core.TransactionRecords(txs)
	if txType == "" {
		return records, nil
	}
	filtered := records[:0:0]
	for _, r := range records {
		if r.Dim(core.DimType) == txType {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func (s *TrackerService) allTime() period.Range {
	return period.ResolveCustom(core.NewDate(1970, 1, 1), core.DateOf(s.clock.Now()))
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
