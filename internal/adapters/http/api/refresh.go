package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/audax/internal/domain/model"
)

const maxRefreshBody = 4 << 10

// RefreshDependencies defines the interface for refresh requests.
type RefreshDependencies interface {
	RequestRefresh(ctx context.Context, reason string, force bool) (model.RefreshRequest, error)
}

// RefreshHandler handles refresh requests.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// refreshRequest is the optional body of POST /refresh.
type refreshRequest struct {
	Reason string `json:"reason"`
	Force  bool   `json:"force"`
}

type refreshResponse struct {
	Status  string               `json:"status"`
	Request model.RefreshRequest `json:"request"`
}

// HandlePostRefresh handles POST /refresh requests. The body is optional;
// force may also be given as a query parameter.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"
	var body refreshRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBody)).Decode(&body)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if raw := r.URL.Query().Get("force"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		body.Force = body.Force || force
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = "api"
	}

	req, err := h.deps.RequestRefresh(r.Context(), reason, body.Force)
	if err != nil {
		writeUpstreamError(w, Wrap(op, err))
		return
	}
	status := "accepted"
	if req.Coalesced {
		status = "coalesced"
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: status, Request: req})
}
