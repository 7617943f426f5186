package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/okian/audax/internal/adapters/repository"
)

// RiderDependencies defines the interface for rider lookups.
type RiderDependencies interface {
	Rider(ctx context.Context, riderID string) (repository.Detail, error)
}

// RidersHandler handles rider requests.
type RidersHandler struct {
	deps RiderDependencies
}

// NewRidersHandler creates a new riders handler.
func NewRidersHandler(deps RiderDependencies) *RidersHandler {
	return &RidersHandler{deps: deps}
}

// HandleGetRider handles GET /riders/{id} requests.
func (h *RidersHandler) HandleGetRider(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rider"
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	detail, err := h.deps.Rider(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
