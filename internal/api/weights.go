package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Caliper/internal/contextkey"
	"github.com/MikeSquared-Agency/Caliper/internal/learning"
)

type WeightsHandler struct {
	learning *learning.Service
	keys     *contextkey.Generator
}

func NewWeightsHandler(l *learning.Service, keys *contextkey.Generator) *WeightsHandler {
	return &WeightsHandler{learning: l, keys: keys}
}

// Get serves the blended weight snapshot for one context. Callers pass
// either a precomputed context_key or the raw situational attributes
// the key schema names. The learning service never fails this path, so
// the handler only rejects missing inputs.
func (h *WeightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	serviceType := r.URL.Query().Get("service")
	if serviceType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service required"})
		return
	}

	contextKey := r.URL.Query().Get("context_key")
	if contextKey == "" {
		attrs := make(map[string]string)
		for name, vals := range r.URL.Query() {
			if name == "service" || len(vals) == 0 {
				continue
			}
			attrs[name] = vals[0]
		}
		if len(attrs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "context_key or context attributes required"})
			return
		}
		contextKey = deriveContextKey(h.keys, attrs)
	}

	tenantID := r.Header.Get("X-Tenant-ID")
	snap := h.learning.GetWeights(r.Context(), tenantID, contextKey, serviceType)
	writeJSON(w, http.StatusOK, snap)
}

type LearnRequest struct {
	ContextKey  string            `json:"context_key,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	ServiceType string            `json:"service_type"`
	SignalName  string            `json:"signal_name"`
	Quality     float64           `json:"quality"`
}

// Learn accepts a direct per-signal learning observation. Accepted
// observations are applied best-effort, so a 202 means "taken", not
// "persisted".
func (h *WeightsHandler) Learn(w http.ResponseWriter, r *http.Request) {
	var req LearnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ContextKey == "" && len(req.Context) > 0 {
		req.ContextKey = deriveContextKey(h.keys, req.Context)
	}
	if req.ContextKey == "" || req.ServiceType == "" || req.SignalName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "context_key (or context), service_type and signal_name required"})
		return
	}

	tenantID := r.Header.Get("X-Tenant-ID")
	h.learning.LearnFromOutcome(r.Context(), tenantID, req.ContextKey, req.ServiceType, req.SignalName, req.Quality)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// deriveContextKey buckets a raw "amount" attribute before handing the
// attributes to the key schema, so callers can send dollar values
// without inflating key cardinality.
func deriveContextKey(keys *contextkey.Generator, attrs map[string]string) string {
	if _, ok := attrs["deal_size"]; !ok {
		if raw, ok := attrs["amount"]; ok {
			if amount, err := strconv.ParseFloat(raw, 64); err == nil {
				attrs["deal_size"] = contextkey.SizeBucket(amount)
			}
		}
	}
	return keys.Key(attrs)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
