package api

import (
	"context"
	"net/http"
	"strconv"
)

// LeaderboardDependencies ranks the riders of the current board.
type LeaderboardDependencies interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
}

// LeaderboardHandler serves GET /leaderboard.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a leaderboard handler capped at maxLimit rows.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetLeaderboard answers with the first limit rows, furthest rider
// first. Without a limit the first maxLimit rows are returned. The row count
// is echoed in X-Total-Count.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"

	limit, code, err := h.limit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.TopN(r.Context(), limit)
	if err != nil {
		writeUpstreamError(w, Wrap(op, err))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(rows)))
	writeJSON(w, http.StatusOK, rows)
}

// limit returns the requested row count, or the error code to answer with.
func (h *LeaderboardHandler) limit(r *http.Request) (int, string, error) {
	n, err := intParam(r, "limit", h.maxLimit)
	switch {
	case err != nil:
		return 0, "bad_request", err
	case n > h.maxLimit:
		return 0, "limit_exceeded", errLimitExceeded
	}
	return n, "", nil
}
