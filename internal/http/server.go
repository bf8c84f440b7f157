package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/aggregate"
	"tally/internal/cache"
	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/period"
	"tally/internal/storage"
)

// Tracker is the service surface the handlers need.
type Tracker interface {
	Range(kind core.PeriodKind, ref core.Date) period.Range

	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	Transactions(ctx context.Context, rng period.Range) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	Summary(ctx context.Context, rng period.Range, txType string) (aggregate.Stats, error)
	Series(ctx context.Context, rng period.Range, bucketKind core.PeriodKind, txType string) ([]aggregate.SeriesPoint, error)

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	BudgetSnapshots(ctx context.Context) ([]core.BudgetSnapshot, error)
	BudgetSnapshot(ctx context.Context, id int64) (core.BudgetSnapshot, error)
	DeleteBudget(ctx context.Context, id int64) error

	CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
	GoalProgress(ctx context.Context) ([]core.GoalProgress, error)

	CreateInvestment(ctx context.Context, inv core.Investment) (int64, error)
	Investments(ctx context.Context) ([]core.Investment, error)
	InvestmentRollup(ctx context.Context) (*aggregate.Rollup, error)
	InvestmentStats(ctx context.Context) (aggregate.Stats, error)

	RecentAlerts(ctx context.Context, limit int) ([]storage.BudgetAlert, error)
}

// Server is the JSON API server.
type Server struct {
	http.Server
	tracker     Tracker
	rateLimiter *ratelimit.Limiter
	traceMW     *trace.Middleware

	// Read caches for the derived views; writes invalidate them.
	snapshotCache *cache.LRUCache[[]core.BudgetSnapshot]
	seriesCache   *cache.LRUCache[[]aggregate.SeriesPoint]
	cacheManager  *cache.Manager

	startTime    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, tracker Tracker) *Server {
	mux := http.NewServeMux()

	clientIP := security.NewClientIPExtractor().ExtractClientIP

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		tracker:       tracker,
		rateLimiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		traceMW:       trace.NewMiddleware(clientIP),
		snapshotCache: cache.NewLRUCache[[]core.BudgetSnapshot](50, 1*time.Minute),
		seriesCache:   cache.NewLRUCache[[]aggregate.SeriesPoint](200, 1*time.Minute),
		cacheManager:  cache.NewManager(),
		startTime:     time.Now(),
	}

	s.cacheManager.Register(s.snapshotCache)
	s.cacheManager.Register(s.seriesCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(clientIP)
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	requestLog := applog.Middleware(logger)
	requestID := applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})
	// trace first so the request ID exists when the logger picks it up.
	wrap := func(h http.HandlerFunc) http.Handler {
		return s.traceMW.Middleware(requestLog(requestID(limit(headers.Middleware(h)))))
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/api/transactions", wrap(s.handleTransactions))
	mux.Handle("/api/summary", wrap(s.handleSummary))
	mux.Handle("/api/series", wrap(s.handleSeries))
	mux.Handle("/api/budgets", wrap(s.handleBudgets))
	mux.Handle("/api/goals", wrap(s.handleGoals))
	mux.Handle("/api/investments", wrap(s.handleInvestments))
	mux.Handle("/api/alerts", wrap(s.handleAlerts))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidateReadCaches clears the derived-view caches after a write.
func (s *Server) invalidateReadCaches() {
	s.snapshotCache.Clear()
	s.seriesCache.Clear()
}

// handleHealth reports liveness plus the state of the in-process pieces:
// request counters from the trace middleware, cache entry counts, and the
// rate limiter's tracked client count.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.traceMW.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).String(),
		"checks": map[string]any{
			"http": map[string]any{
				"total_requests":   metrics.TotalRequests,
				"last_response_ms": metrics.LastResponseMs,
			},
			"cache": map[string]any{
				"snapshot_entries": s.snapshotCache.Size(),
				"series_entries":   s.seriesCache.Size(),
			},
			"rate_limiter": map[string]any{
				"active_clients": s.rateLimiter.ActiveClients(),
			},
		},
	})
}
