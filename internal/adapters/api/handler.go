package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veridianlabs/leadvault/internal/core/domain"
	"github.com/veridianlabs/leadvault/internal/core/ports"
)

// envelope is the JSON response shape for every endpoint.
type envelope struct {
	Status  string `json:"status"` // "success" or "error"
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// APIHandler handles HTTP requests for lead management and operator
// visibility.
type APIHandler struct {
	svc   ports.LeadService
	store ports.LeadStore
}

// NewAPIHandler creates and returns a new APIHandler instance. store is used
// for the public health check only; every lead operation goes through svc.
func NewAPIHandler(svc ports.LeadService, store ports.LeadStore) *APIHandler {
	return &APIHandler{svc: svc, store: store}
}

// RegisterRoutes registers the API routes with the provided ServeMux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("POST /leads", h.SubmitLead)
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)

	// Credentialed routes; authorization happens inside the service so every
	// attempt lands in the access log.
	mux.HandleFunc("GET /leads", h.ListLeads)
	mux.HandleFunc("GET /leads/{id}", h.GetLead)
	mux.HandleFunc("PATCH /leads/{id}", h.UpdateLead)
	mux.HandleFunc("DELETE /leads/{id}", h.DeleteLead)
	mux.HandleFunc("GET /audit-logs", h.ListAccessLog)
	mux.HandleFunc("GET /storage-status", h.StorageStatus)
}

// Metrics handles Prometheus metrics scraping requests.
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// SubmitLead accepts the public lead-capture form. The submitter sees
// success whenever at least one tier accepted the write; durability
// degradation is an operator concern, not theirs.
func (h *APIHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var lead domain.Lead
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// The outcome's tier detail is logged server-side; the submitter only
	// learns that the lead was accepted.
	if _, err := h.svc.SubmitLead(r.Context(), bearerToken(r), &lead, clientAddr(r)); err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		Status:  "success",
		Message: "Lead submitted successfully",
		Data:    map[string]string{"id": lead.ID},
	})
}

func (h *APIHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	opts := ports.ListOptions{
		Status:   domain.LeadStatus(r.URL.Query().Get("status")),
		Search:   r.URL.Query().Get("search"),
		SortBy:   r.URL.Query().Get("sort"),
		SortDesc: r.URL.Query().Get("order") == "desc",
	}

	leads, err := h.svc.ListLeads(r.Context(), bearerToken(r), opts, clientAddr(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: leads})
}

func (h *APIHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.svc.GetLead(r.Context(), bearerToken(r), r.PathValue("id"), clientAddr(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: lead})
}

func (h *APIHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	var patch domain.LeadPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	lead, err := h.svc.UpdateLead(r.Context(), bearerToken(r), r.PathValue("id"), patch, clientAddr(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Lead updated", Data: lead})
}

func (h *APIHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteLead(r.Context(), bearerToken(r), r.PathValue("id"), clientAddr(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Lead deleted"})
}

// ListAccessLog returns recent gate decisions for operator review.
func (h *APIHandler) ListAccessLog(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.svc.ListAccessLog(r.Context(), bearerToken(r), limit, clientAddr(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: entries})
}

// StorageStatus surfaces tier health and pending reconciliation to
// operators.
func (h *APIHandler) StorageStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.StorageStatus(r.Context(), bearerToken(r), clientAddr(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: status})
}

// HealthCheck handles health check requests. A primary outage reports
// DEGRADED but stays serving: the fallback tiers keep accepting leads.
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "UP"
	details := make(map[string]string)
	for name, checkErr := range h.store.Health(r.Context()) {
		if checkErr != nil {
			status = "DEGRADED"
			details[name] = checkErr.Error()
		} else {
			details[name] = "OK"
		}
	}

	code := http.StatusOK
	if status == "DEGRADED" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, envelope{Status: "success", Message: status, Data: details})
}

func writeJSON(w http.ResponseWriter, status int, resp envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: "error", Message: message})
}

// writeFailure maps service errors onto transport status codes.
func writeFailure(w http.ResponseWriter, err error) {
	var denied *domain.AccessDeniedError
	if errors.As(err, &denied) {
		switch denied.Decision.Reason {
		case domain.ReasonRoleMismatch:
			writeError(w, http.StatusForbidden, string(denied.Decision.Reason))
		case domain.ReasonRateLimited:
			writeError(w, http.StatusTooManyRequests, string(denied.Decision.Reason))
		default:
			writeError(w, http.StatusUnauthorized, string(denied.Decision.Reason))
		}
		return
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
	case errors.Is(err, domain.ErrAllTiersFailed):
		writeError(w, http.StatusInternalServerError, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
