package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/period"
	"tally/internal/storage"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	transactions []core.Transaction
	budgets      []core.Budget
	goals        []core.SavingsGoal
	investments  []core.Investment
	alerts       []storage.BudgetAlert
	nextID       int64
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	t.ID = f.id()
	f.transactions = append(f.transactions, t)
	return t.ID, nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	for _, t := range f.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, errors.New("not found")
}

func (f *fakeStore) TransactionsInRange(_ context.Context, rng period.Range) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.transactions {
		if rng.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, id int64) error {
	for i, t := range f.transactions {
		if t.ID == id {
			f.transactions = append(f.transactions[:i], f.transactions[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	b.ID = f.id()
	f.budgets = append(f.budgets, b)
	return b, nil
}

func (f *fakeStore) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	for _, b := range f.budgets {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Budget{}, errors.New("not found")
}

func (f *fakeStore) ListBudgets(_ context.Context) ([]core.Budget, error) {
	return f.budgets, nil
}

func (f *fakeStore) BudgetsForCategory(_ context.Context, category string) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range f.budgets {
		if b.Category == category {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteBudget(_ context.Context, id int64) error {
	for i, b := range f.budgets {
		if b.ID == id {
			f.budgets = append(f.budgets[:i], f.budgets[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) CreateGoal(_ context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.ID = f.id()
	f.goals = append(f.goals, g)
	return g, nil
}

func (f *fakeStore) ListGoals(_ context.Context) ([]core.SavingsGoal, error) {
	return f.goals, nil
}

func (f *fakeStore) CreateInvestment(_ context.Context, inv core.Investment) (int64, error) {
	inv.ID = f.id()
	f.investments = append(f.investments, inv)
	return inv.ID, nil
}

func (f *fakeStore) ListInvestments(_ context.Context) ([]core.Investment, error) {
	return f.investments, nil
}

func (f *fakeStore) RecentBudgetAlerts(_ context.Context, limit int) ([]storage.BudgetAlert, error) {
	if len(f.alerts) > limit {
		return f.alerts[:limit], nil
	}
	return f.alerts, nil
}

type fakePublisher struct {
	published []*amqp.BudgetAlertMessage
	err       error
}

func (p *fakePublisher) PublishBudgetAlert(_ context.Context, msg *amqp.BudgetAlertMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func juneClock() fixedClock {
	return fixedClock{now: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
}

func expenseTx(date core.Date, cents int64, category string) core.Transaction {
	return core.Transaction{
		Date:        date,
		Type:        core.TypeExpense,
		Description: "test expense",
		Amount:      core.Money{Cents: cents},
		Category:    category,
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	svc := NewTrackerService(&fakeStore{}, nil, juneClock(), 100, nil)

	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{
			name: "invalid type",
			tx: core.Transaction{
				Date: core.NewDate(2024, 6, 1), Type: "transfer",
				Description: "x", Amount: core.Money{Cents: 100}, Category: "misc",
			},
			want: core.ErrInvalidType,
		},
		{
			name: "zero amount",
			tx: core.Transaction{
				Date: core.NewDate(2024, 6, 1), Type: core.TypeExpense,
				Description: "x", Amount: core.Money{Cents: 0}, Category: "misc",
			},
			want: core.ErrInvalidAmount,
		},
		{
			name: "empty category",
			tx: core.Transaction{
				Date: core.NewDate(2024, 6, 1), Type: core.TypeExpense,
				Description: "x", Amount: core.Money{Cents: 100}, Category: "  ",
			},
			want: core.ErrEmptyCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(context.Background(), tt.tx)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateTransaction() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateTransactionPublishesAlert(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	svc := NewTrackerService(store, publisher, juneClock(), 90, nil)

	ctx := context.Background()
	budget, err := svc.CreateBudget(ctx, core.Budget{
		Name:     "groceries june",
		Category: "groceries",
		Period:   core.Monthly,
		Amount:   core.Money{Cents: 10000},
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	// 80% spent: below the 90% threshold, no alert.
	if _, err := svc.CreateTransaction(ctx, expenseTx(core.NewDate(2024, 6, 3), 8000, "groceries")); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("published %d alerts below threshold, want 0", len(publisher.published))
	}

	// 95% spent: crosses the threshold.
	if _, err := svc.CreateTransaction(ctx, expenseTx(core.NewDate(2024, 6, 10), 1500, "groceries")); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d alerts, want 1", len(publisher.published))
	}

	msg := publisher.published[0]
	if msg.BudgetID != budget.ID {
		t.Errorf("alert BudgetID = %d, want %d", msg.BudgetID, budget.ID)
	}
	if msg.SpentCents != 9500 {
		t.Errorf("alert SpentCents = %d, want 9500", msg.SpentCents)
	}
	if msg.PeriodStart != "2024-06-01" || msg.PeriodEnd != "2024-06-30" {
		t.Errorf("alert period = %s..%s, want 2024-06-01..2024-06-30", msg.PeriodStart, msg.PeriodEnd)
	}
}

func TestCreateTransactionPublishFailureDoesNotFailWrite(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := NewTrackerService(store, publisher, juneClock(), 50, nil)

	ctx := context.Background()
	if _, err := svc.CreateBudget(ctx, core.Budget{
		Name: "b", Category: "groceries", Period: core.Monthly, Amount: core.Money{Cents: 100},
	}); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	id, err := svc.CreateTransaction(ctx, expenseTx(core.NewDate(2024, 6, 3), 100, "groceries"))
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v, want nil despite publish failure", err)
	}
	if id == 0 {
		t.Error("CreateTransaction() returned zero ID")
	}
}

func TestBudgetSnapshots(t *testing.T) {
	store := &fakeStore{}
	svc := NewTrackerService(store, nil, juneClock(), 100, nil)
	ctx := context.Background()

	if _, err := svc.CreateBudget(ctx, core.Budget{
		Name: "groceries", Category: "groceries", Period: core.Monthly, Amount: core.Money{Cents: 20000},
	}); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	// Two expenses inside June, one outside, one in another category and one
	// income in the same category. Only the June groceries expenses count.
	fixtures := []core.Transaction{
		expenseTx(core.NewDate(2024, 6, 3), 3000, "groceries"),
		expenseTx(core.NewDate(2024, 6, 20), 5000, "groceries"),
		expenseTx(core.NewDate(2024, 5, 31), 9999, "groceries"),
		expenseTx(core.NewDate(2024, 6, 10), 4000, "transport"),
		{
			Date: core.NewDate(2024, 6, 12), Type: core.TypeIncome,
			Description: "refund", Amount: core.Money{Cents: 700}, Category: "groceries",
		},
	}
	for _, tx := range fixtures {
		if _, err := svc.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	snaps, err := svc.BudgetSnapshots(ctx)
	if err != nil {
		t.Fatalf("BudgetSnapshots() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	snap := snaps[0]
	if snap.Spent.Cents != 8000 {
		t.Errorf("Spent = %d cents, want 8000", snap.Spent.Cents)
	}
	if snap.Remaining.Cents != 12000 {
		t.Errorf("Remaining = %d cents, want 12000", snap.Remaining.Cents)
	}
	if snap.Percentage != 40.0 {
		t.Errorf("Percentage = %v, want 40", snap.Percentage)
	}
}

func TestSummaryFiltersByType(t *testing.T) {
	store := &fakeStore{}
	svc := NewTrackerService(store, nil, juneClock(), 100, nil)
	ctx := context.Background()

	fixtures := []core.Transaction{
		expenseTx(core.NewDate(2024, 6, 3), 1000, "groceries"),
		expenseTx(core.NewDate(2024, 6, 5), 2000, "transport"),
		{
			Date: core.NewDate(2024, 6, 7), Type: core.TypeIncome,
			Description: "salary", Amount: core.Money{Cents: 50000}, Category: "salary",
		},
	}
	for _, tx := range fixtures {
		if _, err := svc.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	rng := svc.Range(core.Monthly, core.NewDate(2024, 6, 15))
	stats, err := svc.Summary(ctx, rng, core.TypeExpense)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	if stats.Total.Cents != 3000 {
		t.Errorf("Total = %d cents, want 3000", stats.Total.Cents)
	}
	if stats.DistinctCount != 2 {
		t.Errorf("DistinctCount = %d, want 2", stats.DistinctCount)
	}
	if stats.Average.Cents != 1500 {
		t.Errorf("Average = %d cents, want 1500", stats.Average.Cents)
	}
}

func TestInvestmentRollup(t *testing.T) {
	store := &fakeStore{}
	holders := []string{"Anthony", "Albert", "Juliana"}
	svc := NewTrackerService(store, nil, juneClock(), 100, holders)
	ctx := context.Background()

	fixtures := []core.Investment{
		{Date: core.NewDate(2024, 6, 1), Stock: "AAPL", Person: "Anthony", Amount: core.Money{Cents: 10000}},
		{Date: core.NewDate(2024, 6, 2), Stock: "AAPL", Person: "Albert", Amount: core.Money{Cents: 5000}},
		{Date: core.NewDate(2024, 6, 3), Stock: "VWCE", Person: "Juliana", Amount: core.Money{Cents: 20000}},
	}
	for _, inv := range fixtures {
		if _, err := svc.CreateInvestment(ctx, inv); err != nil {
			t.Fatalf("CreateInvestment() error = %v", err)
		}
	}

	rollup, err := svc.InvestmentRollup(ctx)
	if err != nil {
		t.Fatalf("InvestmentRollup() error = %v", err)
	}

	primaries := rollup.Primaries()
	if len(primaries) != 2 || primaries[0] != "AAPL" || primaries[1] != "VWCE" {
		t.Errorf("Primaries() = %v, want [AAPL VWCE]", primaries)
	}
	if got := rollup.Cell("AAPL", "Anthony").Cents; got != 10000 {
		t.Errorf("Cell(AAPL, Anthony) = %d, want 10000", got)
	}
	if got := rollup.Cell("AAPL", "Juliana").Cents; got != 0 {
		t.Errorf("Cell(AAPL, Juliana) = %d, want 0", got)
	}
	if got := rollup.Total().Cents; got != 35000 {
		t.Errorf("Total() = %d, want 35000", got)
	}
}

func TestCreateInvestmentUnknownHolder(t *testing.T) {
	svc := NewTrackerService(&fakeStore{}, nil, juneClock(), 100, []string{"Anthony"})

	_, err := svc.CreateInvestment(context.Background(), core.Investment{
		Date: core.NewDate(2024, 6, 1), Stock: "AAPL", Person: "Mallory", Amount: core.Money{Cents: 100},
	})
	if err == nil {
		t.Error("CreateInvestment() with unknown holder should fail")
	}
}

func TestGoalProgress(t *testing.T) {
	store := &fakeStore{}
	svc := NewTrackerService(store, nil, juneClock(), 100, nil)
	ctx := context.Background()

	if _, err := svc.CreateGoal(ctx, core.SavingsGoal{
		Name: "vacation", Target: core.Money{Cents: 100000},
	}); err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	fixtures := []core.Transaction{
		{
			Date: core.NewDate(2024, 2, 1), Type: core.TypeSaving,
			Description: "monthly", Amount: core.Money{Cents: 15000}, Category: "vacation",
		},
		{
			Date: core.NewDate(2024, 5, 1), Type: core.TypeSaving,
			Description: "monthly", Amount: core.Money{Cents: 10000}, Category: "vacation",
		},
		// Saving toward something else, must not count.
		{
			Date: core.NewDate(2024, 5, 2), Type: core.TypeSaving,
			Description: "other", Amount: core.Money{Cents: 9999}, Category: "emergency",
		},
	}
	for _, tx := range fixtures {
		if _, err := svc.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	progress, err := svc.GoalProgress(ctx)
	if err != nil {
		t.Fatalf("GoalProgress() error = %v", err)
	}
	if len(progress) != 1 {
		t.Fatalf("got %d goals, want 1", len(progress))
	}

	p := progress[0]
	if p.Saved.Cents != 25000 {
		t.Errorf("Saved = %d cents, want 25000", p.Saved.Cents)
	}
	if p.Remaining.Cents != 75000 {
		t.Errorf("Remaining = %d cents, want 75000", p.Remaining.Cents)
	}
	if p.Percentage != 25.0 {
		t.Errorf("Percentage = %v, want 25", p.Percentage)
	}
}

func TestRecentAlertsClampsLimit(t *testing.T) {
	store := &fakeStore{}
	for i := int64(1); i <= 30; i++ {
		store.alerts = append(store.alerts, storage.BudgetAlert{ID: i, BudgetID: i})
	}
	svc := NewTrackerService(store, nil, juneClock(), 100, nil)
	ctx := context.Background()

	alerts, err := svc.RecentAlerts(ctx, 0)
	if err != nil {
		t.Fatalf("RecentAlerts() error = %v", err)
	}
	if len(alerts) != 20 {
		t.Errorf("got %d alerts for limit 0, want default 20", len(alerts))
	}

	alerts, err = svc.RecentAlerts(ctx, 5)
	if err != nil {
		t.Fatalf("RecentAlerts() error = %v", err)
	}
	if len(alerts) != 5 {
		t.Errorf("got %d alerts for limit 5, want 5", len(alerts))
	}
}
