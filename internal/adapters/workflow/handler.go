package workflow

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"procureflow/internal/core"
	"procureflow/pkg/domain"
)

// APIPrefix is the mount point of the workflow API.
const APIPrefix = "/api"

const maxPayloadBytes = 1 << 20

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// Handler exposes a Router over HTTP under APIPrefix.
type Handler struct {
	Router *Router
}

// NewHandler constructs a workflow HTTP handler.
func NewHandler(r *Router) *Handler {
	return &Handler{Router: r}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Router == nil {
		writeError(w, http.StatusInternalServerError, "workflow router not configured")
		return
	}
	path, ok := strings.CutPrefix(r.URL.Path, APIPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read payload: "+err.Error())
		return
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)
	ctx := core.WithRequestID(r.Context(), requestID)
	resp, err := h.Router.Do(ctx, r.Method, path, payload)
	if err != nil {
		writeError(w, domain.StatusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message, "status": status})
}
