package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Caliper/internal/learning"
	"github.com/MikeSquared-Agency/Caliper/internal/performance"
	"github.com/MikeSquared-Agency/Caliper/internal/store"
	"github.com/MikeSquared-Agency/Caliper/internal/validation"
)

type AdminHandler struct {
	learning  *learning.Service
	tracker   *performance.Tracker
	validator *validation.Service
}

func NewAdminHandler(l *learning.Service, t *performance.Tracker, v *validation.Service) *AdminHandler {
	return &AdminHandler{learning: l, tracker: t, validator: v}
}

func (h *AdminHandler) Weights(w http.ResponseWriter, r *http.Request) {
	filter := store.WeightFilter{
		TenantID:    r.Header.Get("X-Tenant-ID"),
		ServiceType: r.URL.Query().Get("service"),
		ContextKey:  r.URL.Query().Get("context_key"),
	}
	if v := r.URL.Query().Get("validated"); v == "true" {
		filter.ValidatedOnly = true
	}
	if v := r.URL.Query().Get("rolled_back"); v != "" {
		rb := v == "true"
		filter.RolledBack = &rb
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	records, err := h.learning.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []learning.RecordView{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *AdminHandler) Performance(w http.ResponseWriter, r *http.Request) {
	contextKey := r.URL.Query().Get("context_key")
	serviceType := r.URL.Query().Get("service")
	if contextKey == "" || serviceType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "context_key and service required"})
		return
	}

	stats := h.tracker.Get(r.Context(), r.Header.Get("X-Tenant-ID"), serviceType, contextKey)
	writeJSON(w, http.StatusOK, stats)
}

type ValidateRequest struct {
	ContextKey  string `json:"context_key"`
	ServiceType string `json:"service_type"`
}

func (h *AdminHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ContextKey == "" || req.ServiceType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "context_key and service_type required"})
		return
	}

	res, err := h.validator.Validate(r.Context(), r.Header.Get("X-Tenant-ID"), req.ContextKey, req.ServiceType)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type RollbackRequest struct {
	ContextKey  string `json:"context_key"`
	ServiceType string `json:"service_type"`
	Reason      string `json:"reason"`
}

func (h *AdminHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ContextKey == "" || req.ServiceType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "context_key and service_type required"})
		return
	}
	if req.Reason == "" {
		req.Reason = "manual rollback"
	}

	if err := h.validator.Rollback(r.Context(), r.Header.Get("X-Tenant-ID"), req.ContextKey, req.ServiceType, req.Reason); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rolled_back"})
}
