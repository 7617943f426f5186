package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/audax/internal/adapters/repository"
	"github.com/okian/audax/internal/domain/aggregate"
)

// BoardDependencies exposes the current snapshot.
type BoardDependencies interface {
	Current(ctx context.Context) (*repository.Snapshot, error)
}

// BoardHandler serves the group views of the current snapshot.
type BoardHandler struct {
	deps          BoardDependencies
	arrivalWindow int
	arrivalLimit  int
	maxLimit      int
}

// NewBoardHandler creates a new board handler.
func NewBoardHandler(deps BoardDependencies, arrivalWindow, arrivalLimit, maxLimit int) *BoardHandler {
	return &BoardHandler{
		deps:          deps,
		arrivalWindow: arrivalWindow,
		arrivalLimit:  arrivalLimit,
		maxLimit:      maxLimit,
	}
}

type summaryResponse struct {
	Generation  string                       `json:"generation"`
	TakenAt     time.Time                    `json:"taken_at"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Summary     aggregate.Summary            `json:"summary"`
	ByVariant   map[string]aggregate.Summary `json:"by_variant"`
	Unparseable int                          `json:"unparseable"`
	Unmatched   int                          `json:"unmatched"`
}

// HandleSummary handles GET /summary requests.
func (h *BoardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Current(r.Context())
	if err != nil {
		writeUpstreamError(w, Wrap("api.get_summary", err))
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Generation:  snap.Generation,
		TakenAt:     snap.TakenAt,
		GeneratedAt: snap.Report.GeneratedAt,
		Summary:     snap.Report.Summary,
		ByVariant:   snap.Report.ByVariant,
		Unparseable: snap.Report.Unparseable,
		Unmatched:   snap.Report.Unmatched,
	})
}

// HandleControls handles GET /controls requests with per-control occupancy.
func (h *BoardHandler) HandleControls(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Current(r.Context())
	if err != nil {
		writeUpstreamError(w, Wrap("api.get_controls", err))
		return
	}
	writeJSON(w, http.StatusOK, snap.Report.Occupancy)
}

// HandleArrivals handles GET /arrivals?window=M&limit=N requests, relative to
// the instant the snapshot was evaluated at.
func (h *BoardHandler) HandleArrivals(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_arrivals"
	window, err := intParam(r, "window", h.arrivalWindow)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := intParam(r, "limit", h.arrivalLimit)
	if err == nil && limit > h.maxLimit {
		err = errLimitExceeded
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	snap, err := h.deps.Current(r.Context())
	if err != nil {
		writeUpstreamError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, aggregate.RecentArrivals(snap.Report.Results, snap.Report.GeneratedAt, window, limit))
}
