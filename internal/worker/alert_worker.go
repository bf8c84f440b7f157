package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/aggregate"
	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/period"
	"tally/internal/storage"
)

// AlertStore is the storage surface the worker needs: budgets, the
// transactions to recompute spend from, and the alert log.
type AlertStore interface {
	GetBudget(ctx context.Context, id int64) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	TransactionsInRange(ctx context.Context, rng period.Range) ([]core.Transaction, error)
	RecordBudgetAlert(ctx context.Context, a storage.BudgetAlert) (int64, error)
	AlertExistsForPeriod(ctx context.Context, budgetID int64, periodStart core.Date) (bool, error)
}

// AlertConsumer delivers budget alert messages from the broker.
type AlertConsumer interface {
	ConsumeBudgetAlerts(ctx context.Context, handler func(*amqp.BudgetAlertMessage) error) error
}

// AlertWorker records budget threshold crossings. Messages carry the spend
// snapshot seen by the publisher; the worker recomputes from storage so the
// recorded row reflects the state at processing time, not publish time.
type AlertWorker struct {
	store          AlertStore
	clock          period.Clock
	alertThreshold float64
	sweepInterval  time.Duration
}

func NewAlertWorker(store AlertStore, clock period.Clock, alertThreshold float64, sweepInterval time.Duration) *AlertWorker {
	if clock == nil {
		clock = period.SystemClock{}
	}
	if alertThreshold <= 0 {
		alertThreshold = 100
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return &AlertWorker{
		store:          store,
		clock:          clock,
		alertThreshold: alertThreshold,
		sweepInterval:  sweepInterval,
	}
}

// Run consumes alert messages and sweeps all budgets periodically, the sweep
// being the backup in case messages are lost. Both loops stop on the first
// error or on context cancellation.
func (w *AlertWorker) Run(ctx context.Context, consumer AlertConsumer) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeBudgetAlerts(ctx, func(msg *amqp.BudgetAlertMessage) error {
			return w.HandleAlertMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.SweepBudgets(ctx); err != nil {
					slog.ErrorContext(ctx, "Budget sweep failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

// HandleAlertMessage processes a single budget alert message.
func (w *AlertWorker) HandleAlertMessage(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	slog.InfoContext(ctx, "Processing alert message",
		"budget_id", msg.BudgetID,
		"published_percentage", msg.Percentage)

	budget, err := w.store.GetBudget(ctx, msg.BudgetID)
	if err != nil {
		return fmt.Errorf("get budget from storage: %w", err)
	}

	return w.recordIfOverThreshold(ctx, budget)
}

// SweepBudgets recomputes every budget and records the ones at or over the
// threshold. This catches crossings whose messages never arrived.
func (w *AlertWorker) SweepBudgets(ctx context.Context) error {
	budgets, err := w.store.ListBudgets(ctx)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}

	for _, b := range budgets {
		if err := w.recordIfOverThreshold(ctx, b); err != nil {
			slog.ErrorContext(ctx, "Failed to check budget", "budget_id", b.ID, "error", err)
			continue
		}
	}
	return nil
}

func (w *AlertWorker) recordIfOverThreshold(ctx context.Context, b core.Budget) error {
	rng := period.Resolve(b.Period, core.Date{}, w.clock)
	txs, err := w.store.TransactionsInRange(ctx, rng)
	if err != nil {
		return fmt.Errorf("list transactions for budget %d: %w", b.ID, err)
	}

	spent := aggregate.SumByFilter(core.TransactionRecords(txs), func(r core.Record) bool {
		return r.Dim(core.DimType) == core.TypeExpense && r.Dim(core.DimCategory) == b.Category
	})
	snap := core.NewBudgetSnapshot(b, spent)

	if snap.Percentage < w.alertThreshold {
		return nil
	}

	// At most one alert per budget per period start.
	recorded, err := w.store.AlertExistsForPeriod(ctx, b.ID, rng.Start)
	if err != nil {
		return fmt.Errorf("check existing alert for budget %d: %w", b.ID, err)
	}
	if recorded {
		slog.InfoContext(ctx, "Alert already recorded for this period",
			"budget_id", b.ID, "period_start", rng.Start.ISO())
		return nil
	}

	id, err := w.store.RecordBudgetAlert(ctx, storage.BudgetAlert{
		BudgetID:    b.ID,
		Spent:       spent,
		Percentage:  snap.Percentage,
		PeriodStart: rng.Start,
		PeriodEnd:   rng.End,
	})
	if err != nil {
		return fmt.Errorf("record alert for budget %d: %w", b.ID, err)
	}

	slog.InfoContext(ctx, "Budget alert recorded",
		"alert_id", id,
		"budget_id", b.ID,
		"spent_cents", spent.Cents,
		"percentage", snap.Percentage)
	return nil
}
