package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/sitecheck/internal/result"
	"github.com/hazz-dev/sitecheck/internal/storage"
)

// ServerStore defines the storage queries the server needs.
type ServerStore interface {
	ListRuns(ctx context.Context, limit, offset int) ([]storage.Run, int, error)
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	LatestRun(ctx context.Context) (*storage.Run, error)
	RunTable(ctx context.Context, id string) (*result.Table, error)
}

// Metrics records API requests and serves the exposition endpoint.
type Metrics interface {
	ObserveRequest(method, route string, status int, d time.Duration)
	Handler() http.Handler
}

// Server holds the chi router and its dependencies.
type Server struct {
	store   ServerStore
	metrics Metrics
	router  chi.Router
	logger  *slog.Logger
}

// New creates a new Server and registers all routes. metrics may be nil.
func New(store ServerStore, metrics Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   store,
		metrics: metrics,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/runs", s.handleListRuns)
	r.Get("/api/runs/latest", s.handleLatestRun)
	r.Get("/api/runs/{id}", s.handleGetRun)
	r.Get("/api/runs/{id}/codes", s.handleRunCodes)
	r.Get("/api/runs/{id}/codes/{code}", s.handleRunCode)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type runSummary struct {
	storage.Run
	Timeout string `json:"timeout"`
}

func summarize(run storage.Run) runSummary {
	return runSummary{Run: run, Timeout: run.Timeout.String()}
}

type runListResponse struct {
	Runs  []runSummary `json:"runs"`
	Total int          `json:"total"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("ListRuns", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, summarize(run))
	}
	writeJSON(w, http.StatusOK, runListResponse{Runs: summaries, Total: total})
}

type runDetail struct {
	runSummary
	Sites  int            `json:"sites"`
	Counts map[string]int `json:"counts"`
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestRun(r.Context())
	if err != nil {
		s.logger.Error("LatestRun", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	s.writeRunDetail(w, r, *run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.writeRunDetail(w, r, *run)
}

func (s *Server) writeRunDetail(w http.ResponseWriter, r *http.Request, run storage.Run) {
	g, ok := s.groupRun(w, r, run.ID)
	if !ok {
		return
	}
	sites := 0
	for _, n := range g.Counts() {
		sites += n
	}
	writeJSON(w, http.StatusOK, runDetail{
		runSummary: summarize(run),
		Sites:      sites,
		Counts:     g.Counts(),
	})
}

func (s *Server) handleRunCodes(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	g, ok := s.groupRun(w, r, run.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type codeResponse struct {
	Code  string   `json:"code"`
	Sites []string `json:"sites"`
}

func (s *Server) handleRunCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, ok := result.Parse(code); !ok {
		writeError(w, http.StatusBadRequest, "invalid status code")
		return
	}

	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	g, ok := s.groupRun(w, r, run.ID)
	if !ok {
		return
	}

	sites, _ := g.Lookup(code)
	if sites == nil {
		sites = []string{}
	}
	writeJSON(w, http.StatusOK, codeResponse{Code: code, Sites: sites})
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*storage.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("GetRun", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return run, true
}

func (s *Server) groupRun(w http.ResponseWriter, r *http.Request, id string) (*result.Grouped, bool) {
	t, err := s.store.RunTable(r.Context(), id)
	if err != nil {
		s.logger.Error("RunTable", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return result.Group(t), true
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", elapsed,
		)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, routePattern(r), sw.status, elapsed)
		}
	})
}

// routePattern keeps metric labels bounded to registered routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
