package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"promptvault-backend/internal/domain"
	"promptvault-backend/internal/infrastructure/observability"
	"promptvault-backend/internal/interfaces/http/dto"
	"promptvault-backend/internal/service/engine"
	"promptvault-backend/pkg/api"
	"promptvault-backend/pkg/auth"
)

// PredictionHandler handles proactive suggestion and usage tracking requests.
type PredictionHandler struct {
	engine  engine.Service
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(engineService engine.Service, metrics *observability.Collector, logger *zap.Logger) *PredictionHandler {
	return &PredictionHandler{
		engine:  engineService,
		metrics: metrics,
		logger:  logger,
	}
}

// GetPredictions handles POST /api/predictions.
func (h *PredictionHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.PredictionsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := dto.Validate(req); err != nil {
			respondValidation(w, err)
			return
		}
	}

	suggestions, err := h.engine.GetPredictions(r.Context(), engine.PredictionParams{
		OwnerID:           userCtx.UserID,
		CurrentActivity:   req.CurrentActivity,
		RecentFragmentIDs: req.RecentFragmentIDs,
		Limit:             req.Limit,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		for _, suggestion := range suggestions {
			h.metrics.Predictions.WithLabelValues(string(suggestion.Source)).Inc()
		}
	}

	api.Success(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// TrackUsage handles POST /api/events.
func (h *PredictionHandler) TrackUsage(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.TrackUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := dto.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	event := domain.UsageEvent{
		UserID:             userCtx.UserID,
		FragmentID:         req.FragmentID,
		ActivityType:       req.ActivityType,
		Timestamp:          time.Now(),
		Success:            req.Success,
		Duration:           time.Duration(req.DurationS * float64(time.Second)),
		RelatedFragmentIDs: req.RelatedFragmentIDs,
	}
	if err := h.engine.TrackUsage(r.Context(), event); err != nil {
		respondError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.UsageEventsTracked.Inc()
	}

	api.Success(w, http.StatusAccepted, map[string]string{"status": "tracked"})
}
