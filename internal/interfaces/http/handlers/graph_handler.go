package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"promptvault-backend/internal/infrastructure/observability"
	"promptvault-backend/internal/interfaces/http/dto"
	"promptvault-backend/internal/service/engine"
	"promptvault-backend/pkg/api"
	"promptvault-backend/pkg/auth"
)

// GraphHandler handles similarity graph and path queries.
type GraphHandler struct {
	engine  engine.Service
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(engineService engine.Service, metrics *observability.Collector, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		engine:  engineService,
		metrics: metrics,
		logger:  logger,
	}
}

// BuildGraph handles POST /api/graph.
func (h *GraphHandler) BuildGraph(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.BuildGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := dto.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	view, err := h.engine.BuildGraph(r.Context(), engine.GraphParams{
		OwnerID:         userCtx.UserID,
		FragmentIDs:     req.FragmentIDs,
		MinSimilarity:   req.MinSimilarity,
		MaxEdgesPerNode: req.MaxEdgesPerNode,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.GraphBuilds.Inc()
		h.metrics.GraphNodes.Observe(float64(len(view.Nodes)))
	}

	api.Success(w, http.StatusOK, view)
}

// FindPaths handles POST /api/graph/paths.
func (h *GraphHandler) FindPaths(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.FindPathsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := dto.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	paths, err := h.engine.FindPaths(r.Context(), engine.PathParams{
		OwnerID:       userCtx.UserID,
		SourceID:      req.SourceID,
		TargetID:      req.TargetID,
		MaxDepth:      req.MaxDepth,
		MinSimilarity: req.MinSimilarity,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]interface{}{"paths": paths})
}

// GetNeighbors handles GET /api/fragments/{fragmentID}/neighbors.
func (h *GraphHandler) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	fragmentID := chi.URLParam(r, "fragmentID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	minSimilarity, _ := strconv.ParseFloat(r.URL.Query().Get("min_similarity"), 64)

	suggestions, err := h.engine.GetNeighbors(r.Context(), engine.NeighborParams{
		OwnerID:       userCtx.UserID,
		FragmentID:    fragmentID,
		MinSimilarity: minSimilarity,
		Limit:         limit,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]interface{}{"neighbors": suggestions})
}
