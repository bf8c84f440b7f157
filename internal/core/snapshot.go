package core

// BudgetSnapshot is the derived read-time view of a budget: how much of the
// budgeted amount was spent in the budget's current period. Never persisted,
// recomputed on every read.
type BudgetSnapshot struct {
	Budget     Budget
	Spent      Money
	Remaining  Money
	Percentage float64
}

// NewBudgetSnapshot derives a snapshot from a budget and the spent total.
// Remaining = Amount - Spent; Percentage = Spent/Amount*100. A zero budget
// amount yields 0 percent; persisted budgets can't have one (see Validate),
// so the guard only matters for values that bypassed validation.
func NewBudgetSnapshot(b Budget, spent Money) BudgetSnapshot {
	snap := BudgetSnapshot{
		Budget:    b,
		Spent:     spent,
		Remaining: b.Amount.Sub(spent),
	}
	if b.Amount.Cents > 0 {
		snap.Percentage = float64(spent.Cents) / float64(b.Amount.Cents) * 100
	}
	return snap
}

// GoalProgress is the derived read-time view of a savings goal.
type GoalProgress struct {
	Goal       SavingsGoal
	Saved      Money
	Remaining  Money
	Percentage float64
}

// NewGoalProgress derives progress from a goal and its saved total.
func NewGoalProgress(g SavingsGoal, saved Money) GoalProgress {
	progress := GoalProgress{
		Goal:      g,
		Saved:     saved,
		Remaining: g.Target.Sub(saved),
	}
	if g.Target.Cents > 0 {
		progress.Percentage = float64(saved.Cents) / float64(g.Target.Cents) * 100
	}
	return progress
}
