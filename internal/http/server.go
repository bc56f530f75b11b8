// Package http serves the dashboard JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetdash/internal/core"
	"budgetdash/internal/dashboard"
	"budgetdash/internal/log"
	"budgetdash/internal/metrics"
	"budgetdash/internal/middleware/ratelimit"
	"budgetdash/internal/middleware/security"
	"budgetdash/internal/middleware/trace"
	"budgetdash/internal/services"
)

// Deps are the collaborators the handlers call.
type Deps struct {
	View       *dashboard.View
	Bills      *services.BillService
	Expenses   *services.ExpenseService
	Budgets    *services.BudgetService
	References *services.ReferenceService
	Metrics    *metrics.Metrics
	Logger     *log.Logger

	// Location is the calendar used for "now"; UTC when nil.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time

	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	deps     Deps
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RateLimit.RequestsPerMinute == 0 {
		deps.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		deps:     deps,
		logger:   deps.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited)(h)
	h = s.flagSuspicious(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.NewMiddleware(deps.Logger, deps.Metrics, s.detector.ClientIP).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.deps.Metrics.Handler())

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/budgets/comparison", s.handleBudgetComparison)

	mux.HandleFunc("GET /api/bills", s.handleListBills)
	mux.HandleFunc("POST /api/bills", s.handleCreateBill)
	mux.HandleFunc("GET /api/bills/{id}", s.handleGetBill)
	mux.HandleFunc("POST /api/bills/{id}/pay", s.handlePayBill)
	mux.HandleFunc("POST /api/bills/{id}/complete", s.handleCompletePayment)

	mux.HandleFunc("GET /api/expenses", s.handleMonthExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleSaveBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleSaveBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	for _, c := range core.ReferenceCollections {
		base := "/api/" + string(c)
		mux.HandleFunc("GET "+base, s.handleListReferences(c))
		mux.HandleFunc("POST "+base, s.handleSaveReference(c))
		mux.HandleFunc("PUT "+base+"/{id}", s.handleSaveReference(c))
		mux.HandleFunc("DELETE "+base+"/{id}", s.handleDeleteReference(c))
	}
}

// Serve listens until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.limiter.Run(gctx) })
	g.Go(func() error {
		s.logger.InfoContext(ctx, "HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.logger.InfoContext(shutdownCtx, "HTTP server shutting down")
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) now() time.Time {
	return s.deps.Now().In(s.deps.Location)
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.Suspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, log.FieldClientIP, s.detector.ClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "rate limit exceeded, try again later"})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once every watched collection delivered its
// first snapshot.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	in := s.deps.View.Inputs()
	var waiting []core.Collection
	for _, c := range dashboard.Watched {
		if !in.Seen[c] {
			waiting = append(waiting, c)
		}
	}
	if len(waiting) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "waiting": waiting})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true, "version": in.Version})
}
