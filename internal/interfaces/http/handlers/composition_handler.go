package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"promptvault-backend/internal/infrastructure/observability"
	"promptvault-backend/internal/interfaces/http/dto"
	"promptvault-backend/internal/service/engine"
	"promptvault-backend/pkg/api"
	"promptvault-backend/pkg/auth"
)

// CompositionHandler handles score-and-select requests.
type CompositionHandler struct {
	engine  engine.Service
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewCompositionHandler creates a new composition handler.
func NewCompositionHandler(engineService engine.Service, metrics *observability.Collector, logger *zap.Logger) *CompositionHandler {
	return &CompositionHandler{
		engine:  engineService,
		metrics: metrics,
		logger:  logger,
	}
}

// ScoreAndSelect handles POST /api/compositions.
func (h *CompositionHandler) ScoreAndSelect(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.ScoreAndSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := dto.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	composition, err := h.engine.ScoreAndSelect(r.Context(), engine.CompositionParams{
		OwnerID:          userCtx.UserID,
		GoalText:         req.GoalText,
		SourceFragmentID: req.SourceFragmentID,
		TokenBudget:      req.TokenBudget,
		MaxItems:         req.MaxItems,
		MinSimilarity:    req.MinSimilarity,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.Compositions.WithLabelValues("error").Inc()
		}
		respondError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		outcome := "selected"
		if len(composition.SelectedFragmentIDs) == 0 {
			outcome = "empty"
		}
		h.metrics.Compositions.WithLabelValues(outcome).Inc()
		h.metrics.SelectedFragments.Observe(float64(len(composition.SelectedFragmentIDs)))
	}

	api.Success(w, http.StatusOK, composition)
}
