package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/km2209/onion-gateway/internal/core/domain"
	"github.com/km2209/onion-gateway/internal/core/service"
	"github.com/km2209/onion-gateway/internal/metric"
)

// HTTPHandler is the sole translator between wire shapes and typed domain
// outcomes. No domain error crosses the listener unmapped.
type HTTPHandler struct {
	gateway *service.Gateway
}

type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateRequest struct {
	ExpectedVersion *int64  `json:"expected_version"`
	Title           *string `json:"title"`
	Description     *string `json:"description"`
}

type ResourceResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewHTTPHandler(gateway *service.Gateway) *HTTPHandler {
	return &HTTPHandler{gateway: gateway}
}

// Register wires all gateway routes onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/resources", h.Create)
	mux.HandleFunc("GET /api/resources", h.List)
	mux.HandleFunc("GET /api/resources/{id}", h.Get)
	mux.HandleFunc("PUT /api/resources/{id}", h.Update)
	mux.HandleFunc("DELETE /api/resources/{id}", h.Delete)
}

func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer track("create", time.Now())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "create", domain.ErrInvalidInput, "invalid request body")
		return
	}

	res, err := h.gateway.CreateResource(r.Context(), r.Host, req.Title, req.Description)
	if err != nil {
		writeError(w, "create", err, "")
		return
	}

	metric.RequestsTotal.WithLabelValues("create", "ok").Inc()
	writeJSON(w, http.StatusCreated, toResponse(res))
}

func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	defer track("get", time.Now())

	res, err := h.gateway.GetResource(r.Context(), r.Host, r.PathValue("id"))
	if err != nil {
		writeError(w, "get", err, "")
		return
	}

	metric.RequestsTotal.WithLabelValues("get", "ok").Inc()
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	defer track("list", time.Now())

	resources, err := h.gateway.ListResources(r.Context(), r.Host)
	if err != nil {
		writeError(w, "list", err, "")
		return
	}

	out := make([]ResourceResponse, 0, len(resources))
	for _, res := range resources {
		out = append(out, toResponse(res))
	}

	metric.RequestsTotal.WithLabelValues("list", "ok").Inc()
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	defer track("update", time.Now())

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "update", domain.ErrInvalidInput, "invalid request body")
		return
	}
	if req.ExpectedVersion == nil || *req.ExpectedVersion < 1 {
		writeError(w, "update", domain.ErrInvalidInput, "expected_version is required")
		return
	}

	res, err := h.gateway.UpdateResource(r.Context(), r.Host, r.PathValue("id"),
		*req.ExpectedVersion, req.Title, req.Description)
	if err != nil {
		writeError(w, "update", err, "")
		return
	}

	metric.RequestsTotal.WithLabelValues("update", "ok").Inc()
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	defer track("delete", time.Now())

	expectedVersion, err := strconv.ParseInt(r.URL.Query().Get("expected_version"), 10, 64)
	if err != nil || expectedVersion < 1 {
		writeError(w, "delete", domain.ErrInvalidInput, "expected_version is required")
		return
	}

	if err := h.gateway.DeleteResource(r.Context(), r.Host, r.PathValue("id"), expectedVersion); err != nil {
		writeError(w, "delete", err, "")
		return
	}

	metric.RequestsTotal.WithLabelValues("delete", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.gateway.AuthorizeHost(r.Host) {
		writeError(w, "health", domain.ErrHostRejected, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toResponse(res domain.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          res.ID,
		Title:       res.Title,
		Description: res.Description,
		Version:     res.Version,
		CreatedAt:   res.CreatedAt,
		UpdatedAt:   res.UpdatedAt,
	}
}

// writeError maps a domain error to the wire shape. The host-rejected body
// is identical regardless of target so existence never leaks.
func writeError(w http.ResponseWriter, operation string, err error, message string) {
	status := http.StatusInternalServerError
	kind := "internal"
	if message == "" {
		message = "internal error"
	}

	switch {
	case errors.Is(err, domain.ErrHostRejected):
		status, kind, message = http.StatusForbidden, "host_rejected", "host not allowed"
		metric.HostRejectedTotal.Inc()
	case errors.Is(err, domain.ErrInvalidInput):
		status, kind = http.StatusBadRequest, "invalid_input"
		if message == "internal error" {
			message = "invalid input"
		}
	case errors.Is(err, domain.ErrNotFound):
		status, kind, message = http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, domain.ErrVersionConflict):
		status, kind, message = http.StatusConflict, "version_conflict", "stale expected_version, re-read and retry"
	}

	metric.RequestsTotal.WithLabelValues(operation, kind).Inc()
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Kind: kind, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func track(operation string, start time.Time) {
	metric.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
