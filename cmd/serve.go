package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-research/internal/enrich"
	"github.com/sells-group/contact-research/internal/graph"
	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/internal/search"
)

var servePort int

const shutdownTimeout = 30 * time.Second

// enrichRunner runs one enrichment; the orchestrator implements it.
type enrichRunner interface {
	Run(ctx context.Context, contactID string) (*enrich.Report, error)
	BreakerStates() map[string]string
}

// pinger checks the relational store.
type pinger interface {
	Ping(ctx context.Context) error
}

// retriever is the read side served over HTTP; the search engine implements it.
type retriever interface {
	HybridSearch(ctx context.Context, query string, topK int) ([]model.FusedSearchResult, error)
	SemanticSearch(ctx context.Context, query string, topK int) ([]model.SearchHit, error)
	Neighborhood(ctx context.Context, id string, depth int) (*model.Neighborhood, error)
	ShortestPath(ctx context.Context, from, to string) (*model.Path, error)
}

// api serves the enrichment trigger and the retrieval endpoints. Triggered
// runs use runCtx so they outlive the request that started them, and are
// tracked so shutdown can wait for them before closing the stores.
type api struct {
	runCtx context.Context
	runner enrichRunner
	search retriever
	store  pinger
	runs   sync.WaitGroup
}

func newAPI(runCtx context.Context, runner enrichRunner, r retriever, store pinger) *api {
	return &api{runCtx: runCtx, runner: runner, search: r, store: store}
}

// drain waits for triggered runs to finish. It returns false if timeout
// elapsed first.
func (a *api) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		a.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// routes builds the HTTP handler for serve.
func (a *api) routes(allowedOrigins []string) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", a.handleHealth)
	router.Post("/contacts/{id}/enrich", a.handleEnrich)
	router.Get("/contacts/{id}/neighborhood", a.handleNeighborhood)
	router.Get("/search", a.handleSearch)
	router.Get("/search/semantic", a.handleSemantic)
	router.Get("/path", a.handlePath)

	return router
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code, storeState := "ok", http.StatusOK, "ok"
	if err := a.store.Ping(ctx); err != nil {
		zap.L().Warn("health: store ping failed", zap.Error(err))
		status, code, storeState = "degraded", http.StatusServiceUnavailable, "unreachable"
	}
	writeJSON(w, code, map[string]any{
		"status":   status,
		"store":    storeState,
		"breakers": a.runner.BreakerStates(),
	})
}

func (a *api) handleEnrich(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a.runs.Add(1)
	go func() {
		defer a.runs.Done()
		report, err := a.runner.Run(a.runCtx, id)
		if err != nil {
			zap.L().Error("triggered enrichment failed", zap.String("contact_id", id), zap.Error(err))
			return
		}
		zap.L().Info("triggered enrichment complete",
			zap.String("contact_id", id),
			zap.String("run_id", report.RunID),
			zap.Float64("depth_score", report.DepthScore),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "contact_id": id})
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	topK, ok := intParam(w, r, "top_k", 0)
	if !ok {
		return
	}
	results, err := a.search.HybridSearch(r.Context(), q, topK)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": results})
}

func (a *api) handleSemantic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	topK, ok := intParam(w, r, "top_k", 0)
	if !ok {
		return
	}
	hits, err := a.search.SemanticSearch(r.Context(), q, topK)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": hits})
}

func (a *api) handleNeighborhood(w http.ResponseWriter, r *http.Request) {
	depth, ok := intParam(w, r, "depth", 2)
	if !ok {
		return
	}
	n, err := a.search.Neighborhood(r.Context(), chi.URLParam(r, "id"), depth)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *api) handlePath(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	p, err := a.search.ShortestPath(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func intParam(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graph.ErrInvalidDepth), errors.Is(err, graph.ErrSameEndpoints):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, graph.ErrNoPath):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, search.ErrGraphUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment trigger and retrieval server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		// Triggered runs are not cancelled by the shutdown signal; they get
		// until shutdownTimeout to finish before the stores close.
		a := newAPI(context.WithoutCancel(ctx), env.Orchestrator, env.Search, env.Store)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           a.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		err = srv.ListenAndServe()
		if !a.drain(shutdownTimeout) {
			zap.L().Warn("triggered enrichments still running at shutdown")
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
