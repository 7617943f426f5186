// Package api serves the latest published board as read-only JSON and
// accepts refresh requests.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okian/audax/internal/adapters/mq/queue"
	"github.com/okian/audax/internal/adapters/repository"
	"github.com/okian/audax/internal/domain/aggregate"
	"github.com/okian/audax/internal/domain/model"
)

// Defaults for list endpoints.
const (
	defaultMaxLimit = 100
)

// Board is the read side handlers query.
type Board interface {
	Current(ctx context.Context) (*repository.Snapshot, error)
	Rider(ctx context.Context, riderID string) (repository.Detail, error)
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Board

	// RequestRefresh queues a refresh. It returns queue.ErrFull on
	// backpressure.
	RequestRefresh(ctx context.Context, reason string, force bool) (model.RefreshRequest, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = repository.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	boardHandler       *BoardHandler
	leaderboardHandler *LeaderboardHandler
	ridersHandler      *RidersHandler
	refreshHandler     *RefreshHandler

	maxLimit      int
	arrivalWindow int
	arrivalLimit  int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxLimit:      defaultMaxLimit,
		arrivalWindow: aggregate.DefaultArrivalWindow,
		arrivalLimit:  aggregate.DefaultArrivalLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.boardHandler = NewBoardHandler(deps, s.arrivalWindow, s.arrivalLimit, s.maxLimit)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.ridersHandler = NewRidersHandler(deps)
	s.refreshHandler = NewRefreshHandler(deps)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.HandleFunc("/summary", MetricsMiddleware(s.boardHandler.HandleSummary, "summary")).Methods(http.MethodGet)
	r.HandleFunc("/controls", MetricsMiddleware(s.boardHandler.HandleControls, "controls")).Methods(http.MethodGet)
	r.HandleFunc("/arrivals", MetricsMiddleware(s.boardHandler.HandleArrivals, "arrivals")).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard")).Methods(http.MethodGet)
	r.HandleFunc("/riders/{id}", MetricsMiddleware(s.ridersHandler.HandleGetRider, "riders")).Methods(http.MethodGet)
	r.HandleFunc("/refresh", MetricsMiddleware(s.refreshHandler.HandlePostRefresh, "refresh")).Methods(http.MethodPost)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError maps store and queue sentinels to a status code.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// intParam reads a positive integer query parameter. Missing means def.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s %q is not a positive integer", name, raw)
	}
	return n, nil
}
