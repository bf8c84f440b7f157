package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tally/internal/core"
)

const handlerTimeout = 5 * time.Second

type transactionRequest struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
}

func transactionJSON(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Date:        t.Date.ISO(),
		Type:        t.Type,
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodPost:
		s.createTransaction(ctx, w, r)
	case http.MethodGet:
		s.listTransactions(ctx, w, r)
	case http.MethodDelete:
		s.deleteTransaction(ctx, w, r)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) createTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date: want YYYY-MM-DD")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	t := core.Transaction{
		Date:        core.DateOf(date),
		Type:        sanitizeInput(req.Type),
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(req.Category),
	}

	id, err := s.tracker.CreateTransaction(ctx, t)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(ctx, "Create transaction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	s.invalidateReadCaches()

	t.ID = id
	writeJSON(w, http.StatusCreated, transactionJSON(t))
}

func (s *Server) listTransactions(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	rng, err := resolveRangeParams(r, s.tracker.Range, core.Monthly)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.tracker.Transactions(ctx, rng)
	if err != nil {
		slog.ErrorContext(ctx, "List transactions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	out := make([]transactionResponse, len(txs))
	for i, t := range txs {
		out[i] = transactionJSON(t)
	}
	writeJSON(w, http.StatusOK, struct {
		Start        string                `json:"start"`
		End          string                `json:"end"`
		Transactions []transactionResponse `json:"transactions"`
	}{rng.Start.ISO(), rng.End.ISO(), out})
}

func (s *Server) deleteTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}

	if err := s.tracker.DeleteTransaction(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		slog.ErrorContext(ctx, "Delete transaction failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.invalidateReadCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	rng, err := resolveRangeParams(r, s.tracker.Range, core.Monthly)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txType := r.URL.Query().Get("type")
	stats, err := s.tracker.Summary(ctx, rng, txType)
	if err != nil {
		slog.ErrorContext(ctx, "Summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Start              string `json:"start"`
		End                string `json:"end"`
		TotalCents         int64  `json:"total_cents"`
		DistinctCategories int    `json:"distinct_categories"`
		AverageCents       int64  `json:"average_cents"`
	}{rng.Start.ISO(), rng.End.ISO(), stats.Total.Cents, stats.DistinctCount, stats.Average.Cents})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	rng, err := resolveRangeParams(r, s.tracker.Range, core.Yearly)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bucket := core.PeriodKind(r.URL.Query().Get("bucket"))
	if bucket == "" {
		bucket = core.Monthly
	}
	if !bucket.Valid() || bucket == core.Custom {
		writeError(w, http.StatusBadRequest, "invalid bucket: want daily, weekly, monthly or yearly")
		return
	}
	txType := r.URL.Query().Get("type")

	cacheKey := r.URL.RawQuery
	if points, ok := s.seriesCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, struct {
			Points any `json:"points"`
		}{points})
		return
	}

	points, err := s.tracker.Series(ctx, rng, bucket, txType)
	if err != nil {
		slog.ErrorContext(ctx, "Series failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute series")
		return
	}
	s.seriesCache.Set(cacheKey, points)

	writeJSON(w, http.StatusOK, struct {
		Points any `json:"points"`
	}{points})
}

type budgetRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Period   string `json:"period"`
	Amount   string `json:"amount"`
}

type budgetResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Period      string `json:"period"`
	AmountCents int64  `json:"amount_cents"`
}

type snapshotResponse struct {
	Budget         budgetResponse `json:"budget"`
	SpentCents     int64          `json:"spent_cents"`
	RemainingCents int64          `json:"remaining_cents"`
	Percentage     float64        `json:"percentage"`
}

func budgetJSON(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:          b.ID,
		Name:        b.Name,
		Category:    b.Category,
		Period:      string(b.Period),
		AmountCents: b.Amount.Cents,
	}
}

func snapshotJSON(snap core.BudgetSnapshot) snapshotResponse {
	return snapshotResponse{
		Budget:         budgetJSON(snap.Budget),
		SpentCents:     snap.Spent.Cents,
		RemainingCents: snap.Remaining.Cents,
		Percentage:     snap.Percentage,
	}
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodPost:
		s.createBudget(ctx, w, r)
	case http.MethodGet:
		s.getBudgets(ctx, w, r)
	case http.MethodDelete:
		s.deleteBudget(ctx, w, r)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) createBudget(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	b := core.Budget{
		Name:     sanitizeInput(req.Name),
		Category: sanitizeInput(req.Category),
		Period:   core.PeriodKind(req.Period),
		Amount:   core.Money{Cents: cents},
	}

	created, err := s.tracker.CreateBudget(ctx, b)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(ctx, "Create budget failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save budget")
		return
	}

	s.invalidateReadCaches()
	writeJSON(w, http.StatusCreated, budgetJSON(created))
}

func (s *Server) getBudgets(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if id != 0 {
		snap, err := s.tracker.BudgetSnapshot(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusNotFound, "budget not found")
				return
			}
			slog.ErrorContext(ctx, "Budget snapshot failed", "error", err, "id", id)
			writeError(w, http.StatusInternalServerError, "failed to compute snapshot")
			return
		}
		writeJSON(w, http.StatusOK, snapshotJSON(snap))
		return
	}

	const cacheKey = "snapshots"
	if snaps, ok := s.snapshotCache.Get(cacheKey); ok {
		writeSnapshots(w, snaps)
		return
	}

	snaps, err := s.tracker.BudgetSnapshots(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Budget snapshots failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute snapshots")
		return
	}
	s.snapshotCache.Set(cacheKey, snaps)
	writeSnapshots(w, snaps)
}

func writeSnapshots(w http.ResponseWriter, snaps []core.BudgetSnapshot) {
	out := make([]snapshotResponse, len(snaps))
	for i, snap := range snaps {
		out[i] = snapshotJSON(snap)
	}
	writeJSON(w, http.StatusOK, struct {
		Budgets []snapshotResponse `json:"budgets"`
	}{out})
}

func (s *Server) deleteBudget(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}

	if err := s.tracker.DeleteBudget(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "budget not found")
			return
		}
		slog.ErrorContext(ctx, "Delete budget failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete budget")
		return
	}

	s.invalidateReadCaches()
	w.WriteHeader(http.StatusNoContent)
}

type goalRequest struct {
	Name     string `json:"name"`
	Target   string `json:"target"`
	Deadline string `json:"deadline,omitempty"`
}

type goalProgressResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	TargetCents    int64   `json:"target_cents"`
	Deadline       string  `json:"deadline,omitempty"`
	SavedCents     int64   `json:"saved_cents"`
	RemainingCents int64   `json:"remaining_cents"`
	Percentage     float64 `json:"percentage"`
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodPost:
		s.createGoal(ctx, w, r)
	case http.MethodGet:
		s.listGoalProgress(ctx, w)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

func (s *Server) createGoal(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Target)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid target: "+err.Error())
		return
	}

	g := core.SavingsGoal{
		Name:   sanitizeInput(req.Name),
		Target: core.Money{Cents: cents},
	}
	if req.Deadline != "" {
		d, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid deadline: want YYYY-MM-DD")
			return
		}
		g.Deadline = core.DateOf(d)
	}

	created, err := s.tracker.CreateGoal(ctx, g)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(ctx, "Create goal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save goal")
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		TargetCents int64  `json:"target_cents"`
		Deadline    string `json:"deadline,omitempty"`
	}{created.ID, created.Name, created.Target.Cents, req.Deadline})
}

func (s *Server) listGoalProgress(ctx context.Context, w http.ResponseWriter) {
	progress, err := s.tracker.GoalProgress(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Goal progress failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute goal progress")
		return
	}

	out := make([]goalProgressResponse, len(progress))
	for i, p := range progress {
		resp := goalProgressResponse{
			ID:             p.Goal.ID,
			Name:           p.Goal.Name,
			TargetCents:    p.Goal.Target.Cents,
			SavedCents:     p.Saved.Cents,
			RemainingCents: p.Remaining.Cents,
			Percentage:     p.Percentage,
		}
		if !p.Goal.Deadline.IsZero() {
			resp.Deadline = p.Goal.Deadline.ISO()
		}
		out[i] = resp
	}
	writeJSON(w, http.StatusOK, struct {
		Goals []goalProgressResponse `json:"goals"`
	}{out})
}

type investmentRequest struct {
	Date   string `json:"date"`
	Stock  string `json:"stock"`
	Person string `json:"person"`
	Amount string `json:"amount"`
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodPost:
		s.createInvestment(ctx, w, r)
	case http.MethodGet:
		s.getInvestments(ctx, w, r)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

func (s *Server) createInvestment(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req investmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date: want YYYY-MM-DD")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	inv := core.Investment{
		Date:   core.DateOf(date),
		Stock:  sanitizeInput(req.Stock),
		Person: sanitizeInput(req.Person),
		Amount: core.Money{Cents: cents},
	}

	id, err := s.tracker.CreateInvestment(ctx, inv)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(ctx, "Create investment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save investment")
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		ID int64 `json:"id"`
	}{id})
}

func (s *Server) getInvestments(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("view") {
	case "stats":
		stats, err := s.tracker.InvestmentStats(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Investment stats failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			TotalCents     int64 `json:"total_cents"`
			DistinctStocks int   `json:"distinct_stocks"`
			AverageCents   int64 `json:"average_cents"`
		}{stats.Total.Cents, stats.DistinctCount, stats.Average.Cents})
	case "list":
		invs, err := s.tracker.Investments(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "List investments failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list investments")
			return
		}
		type entry struct {
			ID          int64  `json:"id"`
			Date        string `json:"date"`
			Stock       string `json:"stock"`
			Person      string `json:"person"`
			AmountCents int64  `json:"amount_cents"`
		}
		out := make([]entry, len(invs))
		for i, inv := range invs {
			out[i] = entry{inv.ID, inv.Date.ISO(), inv.Stock, inv.Person, inv.Amount.Cents}
		}
		writeJSON(w, http.StatusOK, struct {
			Investments []entry `json:"investments"`
		}{out})
	default:
		rollup, err := s.tracker.InvestmentRollup(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Investment rollup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to compute rollup")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Rollup     any   `json:"rollup"`
			TotalCents int64 `json:"total_cents"`
		}{rollup, rollup.Total().Cents})
	}
}

type alertResponse struct {
	ID          int64   `json:"id"`
	BudgetID    int64   `json:"budget_id"`
	SpentCents  int64   `json:"spent_cents"`
	Percentage  float64 `json:"percentage"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	CreatedAt   string  `json:"created_at"`
}

// handleAlerts lists the budget alerts the worker has recorded, newest
// first. ?limit caps the page, defaulting to 20.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	alerts, err := s.tracker.RecentAlerts(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "List alerts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	out := make([]alertResponse, len(alerts))
	for i, a := range alerts {
		out[i] = alertResponse{
			ID:          a.ID,
			BudgetID:    a.BudgetID,
			SpentCents:  a.Spent.Cents,
			Percentage:  a.Percentage,
			PeriodStart: a.PeriodStart.ISO(),
			PeriodEnd:   a.PeriodEnd.ISO(),
			CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Alerts []alertResponse `json:"alerts"`
	}{out})
}

// isValidationError reports whether err stems from domain validation rather
// than infrastructure.
func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidDate, core.ErrInvalidAmount, core.ErrInvalidType,
		core.ErrInvalidPeriod, core.ErrEmptyDescription, core.ErrEmptyCategory,
		core.ErrEmptyName, core.ErrEmptyStock, core.ErrEmptyPerson,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
