package api

import (
	"encoding/json"
	"net/http"

	"github.com/MikeSquared-Agency/Caliper/internal/contextkey"
	"github.com/MikeSquared-Agency/Caliper/internal/outcome"
)

type OutcomesHandler struct {
	collector *outcome.Collector
	keys      *contextkey.Generator
}

func NewOutcomesHandler(c *outcome.Collector, keys *contextkey.Generator) *OutcomesHandler {
	return &OutcomesHandler{collector: c, keys: keys}
}

type RecordPredictionRequest struct {
	ServiceType       string                 `json:"service_type"`
	ContextKey        string                 `json:"context_key,omitempty"`
	Context           map[string]string      `json:"context,omitempty"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
	PredictedValue    float64                `json:"predicted_value"`
	SignalPredictions map[string]float64     `json:"signal_predictions,omitempty"`
	SignalsUsed       []string               `json:"signals_used"`
	WeightsUsed       map[string]float64     `json:"weights_used,omitempty"`
	BlendRatio        float64                `json:"blend_ratio"`
}

func (h *OutcomesHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req RecordPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ContextKey == "" && len(req.Context) > 0 {
		req.ContextKey = deriveContextKey(h.keys, req.Context)
	}

	id, err := h.collector.RecordPrediction(r.Context(), outcome.PredictionInput{
		TenantID:          r.Header.Get("X-Tenant-ID"),
		ServiceType:       req.ServiceType,
		ContextKey:        req.ContextKey,
		Payload:           req.Payload,
		PredictedValue:    req.PredictedValue,
		SignalPredictions: req.SignalPredictions,
		SignalsUsed:       req.SignalsUsed,
		WeightsUsed:       req.WeightsUsed,
		BlendRatio:        req.BlendRatio,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"prediction_id": id})
}

type RecordOutcomeRequest struct {
	PredictionID  string  `json:"prediction_id"`
	ObservedValue float64 `json:"observed_value"`
	Label         string  `json:"label,omitempty"`
}

// CreateOutcome resolves a staged prediction. An unknown or expired
// prediction id is still a 202: the caller cannot distinguish a dropped
// prediction from an expired one, and should not retry either.
func (h *OutcomesHandler) CreateOutcome(w http.ResponseWriter, r *http.Request) {
	var req RecordOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PredictionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prediction_id required"})
		return
	}

	h.collector.RecordOutcome(r.Context(), req.PredictionID, r.Header.Get("X-Tenant-ID"), req.ObservedValue, req.Label)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
