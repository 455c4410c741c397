// Package engine provides the context relevance, composition, and prediction
// engine: scoring and budget-constrained selection of fragments for a goal,
// similarity-graph construction with clustering and path search, and
// usage-pattern based suggestions.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"promptvault-backend/internal/domain"
	"promptvault-backend/internal/domain/services"
	"promptvault-backend/internal/infrastructure/observability"
	"promptvault-backend/internal/repository"
	"promptvault-backend/internal/service/embedding"
	appErrors "promptvault-backend/pkg/errors"
)

// Config holds the engine's request-level tunables.
type Config struct {
	CandidatePoolSize      int           // k for similarity searches
	DefaultMinSimilarity   float64       // candidate floor when the caller passes zero
	DefaultMaxItems        int           // selection cap when the caller passes zero
	EventWindow            time.Duration // trailing window mined for predictions
	StrategyTimeout        time.Duration // per-strategy budget for predictions
	DefaultSuggestionLimit int
	SequentialWindow       time.Duration // co-use granularity for the sequential strategy
	GraphMinSimilarity     float64       // graph edge floor when the caller passes zero
	GraphMaxEdgesPerNode   int           // per-node degree bound when the caller passes zero
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() *Config {
	return &Config{
		CandidatePoolSize:      50,
		DefaultMinSimilarity:   0.65,
		DefaultMaxItems:        10,
		EventWindow:            30 * 24 * time.Hour,
		StrategyTimeout:        2 * time.Second,
		DefaultSuggestionLimit: 5,
		SequentialWindow:       time.Minute,
		GraphMinSimilarity:     0.70,
		GraphMaxEdgesPerNode:   10,
	}
}

// CompositionParams describes a score-and-select request. Exactly one of
// GoalText and SourceFragmentID must be set.
type CompositionParams struct {
	OwnerID          string
	GoalText         string
	SourceFragmentID string
	TokenBudget      int
	MaxItems         int
	MinSimilarity    float64
}

// GraphParams describes a graph build request. Empty FragmentIDs means all of
// the owner's fragments, capped for cost control.
type GraphParams struct {
	OwnerID         string
	FragmentIDs     []string
	MinSimilarity   float64
	MaxEdgesPerNode int
}

// PathParams describes a shortest-path query between two fragments.
type PathParams struct {
	OwnerID       string
	SourceID      string
	TargetID      string
	MaxDepth      int
	MinSimilarity float64
}

// PredictionParams describes a prediction request. All inputs besides OwnerID
// are optional; strategies that lack their input simply do not fire.
type PredictionParams struct {
	OwnerID           string
	CurrentActivity   string
	RecentFragmentIDs []string
	Limit             int
}

// NeighborParams describes a nearest-neighbor query for one fragment.
type NeighborParams struct {
	OwnerID       string
	FragmentID    string
	MinSimilarity float64
	Limit         int
}

// Service defines the engine's operations. All operations are owner-scoped.
type Service interface {
	// ScoreAndSelect ranks the owner's fragments against a goal or source
	// fragment and selects a subset under the token budget.
	ScoreAndSelect(ctx context.Context, params CompositionParams) (*domain.Composition, error)

	// BuildGraph constructs the similarity graph over the owner's fragments.
	BuildGraph(ctx context.Context, params GraphParams) (*domain.GraphView, error)

	// FindPaths returns up to a handful of shortest paths between two
	// fragments over the similarity graph.
	FindPaths(ctx context.Context, params PathParams) ([]domain.Path, error)

	// GetPredictions suggests fragments from usage history without a query.
	GetPredictions(ctx context.Context, params PredictionParams) ([]domain.Suggestion, error)

	// GetNeighbors returns the fragments most similar to one fragment.
	GetNeighbors(ctx context.Context, params NeighborParams) ([]domain.Suggestion, error)

	// TrackUsage appends a usage event and publishes it to the event bus.
	TrackUsage(ctx context.Context, event domain.UsageEvent) error

	// UpdateConfig swaps the engine's tunables, typically after a config
	// hot reload. Requests in flight finish on the values they started with.
	UpdateConfig(config *Config)
}

// service implements Service with concrete store and provider dependencies.
type service struct {
	mu            sync.RWMutex
	config        *Config
	fragments     repository.FragmentReader
	relationships repository.RelationshipReader
	events        repository.UsageEventStore
	embeddings    repository.EmbeddingReader
	index         repository.SimilarityIndex
	provider      embedding.Provider
	publisher     repository.UsageEventPublisher

	scorer     *services.RelevanceScorer
	selector   *services.BudgetSelector
	resolver   *services.CompositionResolver
	builder    *services.GraphBuilder
	pathFinder *services.PathFinder
	ranker     *services.SuggestionRanker

	logger  *zap.Logger
	metrics *observability.Collector
	now     func() time.Time
}

// Dependencies bundles the engine's external collaborators.
type Dependencies struct {
	Fragments     repository.FragmentReader
	Relationships repository.RelationshipReader
	Events        repository.UsageEventStore
	Embeddings    repository.EmbeddingReader
	Index         repository.SimilarityIndex
	Provider      embedding.Provider
	Publisher     repository.UsageEventPublisher
	Logger        *zap.Logger
	Metrics       *observability.Collector
}

// NewService creates the engine with the provided collaborators.
func NewService(config *Config, deps Dependencies) Service {
	if config == nil {
		config = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		config:        config,
		fragments:     deps.Fragments,
		relationships: deps.Relationships,
		events:        deps.Events,
		embeddings:    deps.Embeddings,
		index:         deps.Index,
		provider:      deps.Provider,
		publisher:     deps.Publisher,
		scorer:        services.NewRelevanceScorer(nil),
		selector:      services.NewBudgetSelector(nil),
		resolver:      services.NewCompositionResolver(),
		builder:       services.NewGraphBuilder(nil),
		pathFinder:    services.NewPathFinder(nil),
		ranker:        services.NewSuggestionRanker(),
		logger:        logger,
		metrics:       deps.Metrics,
		now:           time.Now,
	}
}

// UpdateConfig implements Service.
func (s *service) UpdateConfig(config *Config) {
	if config == nil {
		return
	}
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
}

// cfg returns the current config snapshot. Operations read it once up front
// so a concurrent reload never changes tunables mid-request.
func (s *service) cfg() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// ScoreAndSelect ranks candidates against the query vector, selects under the
// token budget, and attaches advisory dependency and conflict reports.
func (s *service) ScoreAndSelect(ctx context.Context, params CompositionParams) (*domain.Composition, error) {
	cfg := s.cfg()
	if err := validateComposition(&params, cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.CompositionDuration.Observe(time.Since(start).Seconds())
		}
	}()

	queryVector, err := s.queryVector(ctx, params)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Search(ctx, params.OwnerID, queryVector, cfg.CandidatePoolSize, params.MinSimilarity)
	if err != nil {
		return nil, appErrors.NewUnavailable("similarity search failed", err)
	}

	// A source fragment is trivially most similar to itself.
	similarities := make(map[string]float64, len(matches))
	candidateIDs := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.FragmentID == params.SourceFragmentID {
			continue
		}
		similarities[match.FragmentID] = match.Similarity
		candidateIDs = append(candidateIDs, match.FragmentID)
	}

	if len(candidateIDs) == 0 {
		return s.emptyComposition(params, "no fragments matched at or above the similarity threshold"), nil
	}

	candidates, err := s.fragments.FindFragments(ctx, repository.FragmentQuery{
		OwnerID: params.OwnerID,
		IDs:     candidateIDs,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load candidate fragments")
	}

	inputs := make([]services.ScoredInput, 0, len(candidates))
	for _, fragment := range candidates {
		inputs = append(inputs, services.ScoredInput{
			Fragment:   fragment,
			Similarity: similarities[fragment.ID],
		})
	}

	scored := s.scorer.Score(inputs, s.now())
	selected, totalTokens := s.selector.Select(scored, params.TokenBudget, params.MaxItems)
	if len(selected) == 0 {
		return s.emptyComposition(params, "no candidate fits within the token budget"), nil
	}

	selectedIDs := make([]string, len(selected))
	for i, candidate := range selected {
		selectedIDs[i] = candidate.FragmentID
	}

	dependencies, conflicts, err := s.resolveRelationships(ctx, params.OwnerID, selectedIDs)
	if err != nil {
		return nil, err
	}

	var quality float64
	for _, candidate := range selected {
		quality += candidate.CompositeScore
	}
	quality /= float64(len(selected))

	return &domain.Composition{
		GoalText:            params.GoalText,
		SelectedFragmentIDs: selectedIDs,
		Candidates:          scored,
		TotalTokens:         totalTokens,
		Dependencies:        dependencies,
		Conflicts:           conflicts,
		QualityScore:        quality,
		Reason: fmt.Sprintf("selected %d of %d candidates using %d of %d budget tokens",
			len(selected), len(scored), totalTokens, params.TokenBudget),
	}, nil
}

// BuildGraph loads the fragment set, batches pairwise similarity through the
// index, and hands both to the graph builder.
func (s *service) BuildGraph(ctx context.Context, params GraphParams) (*domain.GraphView, error) {
	if err := validateSimilarity(params.MinSimilarity); err != nil {
		return nil, err
	}
	if params.MaxEdgesPerNode < 0 {
		return nil, appErrors.NewFieldValidation("max_edges_per_node", "must not be negative")
	}

	cfg := s.cfg()
	minSimilarity := params.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = cfg.GraphMinSimilarity
	}
	maxEdgesPerNode := params.MaxEdgesPerNode
	if maxEdgesPerNode == 0 {
		maxEdgesPerNode = cfg.GraphMaxEdgesPerNode
	}

	return s.graphView(ctx, params.OwnerID, params.FragmentIDs, minSimilarity, maxEdgesPerNode)
}

// FindPaths builds the similarity graph and runs breadth-first path search
// between the two fragments.
func (s *service) FindPaths(ctx context.Context, params PathParams) ([]domain.Path, error) {
	if params.SourceID == "" {
		return nil, appErrors.NewFieldValidation("source_id", "is required")
	}
	if params.TargetID == "" {
		return nil, appErrors.NewFieldValidation("target_id", "is required")
	}
	if params.MaxDepth < 0 {
		return nil, appErrors.NewFieldValidation("max_depth", "must not be negative")
	}

	minSimilarity := params.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = s.cfg().GraphMinSimilarity
	}

	// Path queries gate edges by the similarity floor only. The degree cap
	// is a rendering concern and must not hide an existing route; with the
	// fragment set capped, a bound of MaxFragments never binds.
	view, err := s.graphView(ctx, params.OwnerID, nil, minSimilarity, s.builder.Config().MaxFragments)
	if err != nil {
		return nil, err
	}

	return s.pathFinder.FindPaths(view, params.SourceID, params.TargetID, params.MaxDepth), nil
}

// graphView loads the fragment set with its vectors and assembles the
// similarity graph over them.
func (s *service) graphView(ctx context.Context, ownerID string, fragmentIDs []string, minSimilarity float64, maxEdgesPerNode int) (*domain.GraphView, error) {
	fragments, err := s.fragments.FindFragments(ctx, repository.FragmentQuery{
		OwnerID: ownerID,
		IDs:     fragmentIDs,
		Limit:   s.builder.Config().MaxFragments,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load fragments")
	}
	if len(fragments) == 0 {
		return domain.EmptyGraphView("no fragments to build a graph from"), nil
	}

	ids := make([]string, len(fragments))
	for i, fragment := range fragments {
		ids[i] = fragment.ID
	}

	vectors, err := s.embeddings.FindVectors(ctx, ownerID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load embedding vectors")
	}
	if len(vectors) == 0 {
		return domain.EmptyGraphView("no fragments have a computed embedding"), nil
	}

	pairwise, err := s.index.Pairwise(ctx, ownerID, ids)
	if err != nil {
		return nil, appErrors.NewUnavailable("pairwise similarity failed", err)
	}

	pairs := make([]services.SimilarityPair, len(pairwise))
	for i, pair := range pairwise {
		pairs[i] = services.SimilarityPair{
			SourceID:   pair.SourceID,
			TargetID:   pair.TargetID,
			Similarity: pair.Similarity,
		}
	}

	return s.builder.Build(fragments, minSimilarity, maxEdgesPerNode, pairs), nil
}

// GetNeighbors returns the fragments most similar to the given one. A
// fragment without a stored embedding yields an empty list.
func (s *service) GetNeighbors(ctx context.Context, params NeighborParams) ([]domain.Suggestion, error) {
	if params.FragmentID == "" {
		return nil, appErrors.NewFieldValidation("fragment_id", "is required")
	}
	if err := validateSimilarity(params.MinSimilarity); err != nil {
		return nil, err
	}
	limit := params.Limit
	if limit <= 0 {
		limit = s.cfg().DefaultSuggestionLimit
	}

	vectors, err := s.embeddings.FindVectors(ctx, params.OwnerID, []string{params.FragmentID})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load embedding vector")
	}
	if len(vectors) == 0 {
		return []domain.Suggestion{}, nil
	}

	matches, err := s.index.Search(ctx, params.OwnerID, vectors[0].Vector, limit+1, params.MinSimilarity)
	if err != nil {
		return nil, appErrors.NewUnavailable("similarity search failed", err)
	}

	neighborIDs := make([]string, 0, len(matches))
	similarities := make(map[string]float64, len(matches))
	for _, match := range matches {
		if match.FragmentID == params.FragmentID {
			continue
		}
		neighborIDs = append(neighborIDs, match.FragmentID)
		similarities[match.FragmentID] = match.Similarity
	}
	if len(neighborIDs) > limit {
		neighborIDs = neighborIDs[:limit]
	}
	if len(neighborIDs) == 0 {
		return []domain.Suggestion{}, nil
	}

	neighbors, err := s.fragments.FindFragments(ctx, repository.FragmentQuery{
		OwnerID: params.OwnerID,
		IDs:     neighborIDs,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load neighbor fragments")
	}

	byID := make(map[string]domain.Fragment, len(neighbors))
	for _, fragment := range neighbors {
		byID[fragment.ID] = fragment
	}

	suggestions := make([]domain.Suggestion, 0, len(neighborIDs))
	for _, id := range neighborIDs {
		fragment, ok := byID[id]
		if !ok {
			continue
		}
		suggestions = append(suggestions, domain.Suggestion{
			FragmentID: id,
			Name:       fragment.Name,
			Confidence: similarities[id],
			Reason:     fmt.Sprintf("%.0f%% similar content", similarities[id]*100),
			Source:     domain.SourceSimilarity,
		})
	}
	return suggestions, nil
}

// TrackUsage appends the event to the event log and publishes it for
// downstream consumers. Publish failures are logged, never surfaced.
func (s *service) TrackUsage(ctx context.Context, event domain.UsageEvent) error {
	if event.UserID == "" {
		return appErrors.NewFieldValidation("user_id", "is required")
	}
	if event.FragmentID == "" {
		return appErrors.NewFieldValidation("fragment_id", "is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	if err := s.events.AppendEvent(ctx, event); err != nil {
		return appErrors.Wrap(err, "failed to append usage event")
	}

	if s.publisher != nil {
		if err := s.publisher.PublishUsage(ctx, event); err != nil {
			s.logger.Warn("failed to publish usage event",
				zap.String("user_id", event.UserID),
				zap.String("fragment_id", event.FragmentID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func validateComposition(params *CompositionParams, cfg *Config) error {
	if params.TokenBudget <= 0 {
		return appErrors.NewFieldValidation("token_budget", "must be positive")
	}
	if params.MaxItems < 0 {
		return appErrors.NewFieldValidation("max_items", "must not be negative")
	}
	if err := validateSimilarity(params.MinSimilarity); err != nil {
		return err
	}
	if params.GoalText == "" && params.SourceFragmentID == "" {
		return appErrors.NewValidation("either goal_text or source_fragment_id is required")
	}
	if params.GoalText != "" && params.SourceFragmentID != "" {
		return appErrors.NewValidation("goal_text and source_fragment_id are mutually exclusive")
	}
	if params.MinSimilarity == 0 {
		params.MinSimilarity = cfg.DefaultMinSimilarity
	}
	if params.MaxItems == 0 {
		params.MaxItems = cfg.DefaultMaxItems
	}
	return nil
}

// queryVector resolves the query embedding: the goal text is embedded fresh,
// a source fragment reuses its stored vector.
func (s *service) queryVector(ctx context.Context, params CompositionParams) ([]float32, error) {
	if params.GoalText != "" {
		vector, err := s.embed(ctx, params.GoalText)
		if err != nil {
			return nil, appErrors.NewUnavailable("embedding provider failed", err)
		}
		return vector, nil
	}

	if _, err := s.fragments.FindFragmentByID(ctx, params.OwnerID, params.SourceFragmentID); err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.NewNotFound("source fragment not found")
		}
		return nil, appErrors.Wrap(err, "failed to load source fragment")
	}

	vectors, err := s.embeddings.FindVectors(ctx, params.OwnerID, []string{params.SourceFragmentID})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load embedding vector")
	}
	if len(vectors) == 0 {
		return nil, appErrors.NewNotFound("source fragment has no computed embedding")
	}
	return vectors[0].Vector, nil
}

// resolveRelationships loads one-hop edges for the selection and produces the
// advisory dependency and conflict reports.
func (s *service) resolveRelationships(ctx context.Context, ownerID string, selectedIDs []string) ([]domain.DependencyReport, []domain.ConflictReport, error) {
	edges, err := s.relationships.FindRelationshipsForSet(ctx, ownerID, selectedIDs)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, "failed to load relationships")
	}

	selected := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	targetIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, fragmentEdges := range edges {
		for _, edge := range fragmentEdges {
			if edge.RequiresTarget() && !selected[edge.TargetID] && !seen[edge.TargetID] {
				seen[edge.TargetID] = true
				targetIDs = append(targetIDs, edge.TargetID)
			}
		}
	}

	// Dependencies pointing at deleted fragments are dropped from the report.
	live := make(map[string]bool, len(targetIDs))
	if len(targetIDs) > 0 {
		targets, err := s.fragments.FindFragments(ctx, repository.FragmentQuery{
			OwnerID: ownerID,
			IDs:     targetIDs,
		})
		if err != nil {
			return nil, nil, appErrors.Wrap(err, "failed to verify dependency targets")
		}
		for _, target := range targets {
			live[target.ID] = true
		}
	}

	dependencies := s.resolver.ResolveDependencies(selectedIDs, edges, live)
	conflicts := s.resolver.FindConflicts(selectedIDs, edges)
	return dependencies, conflicts, nil
}

// embed forwards to the provider and records call metrics.
func (s *service) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := s.provider.Embed(ctx, text)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.EmbeddingCalls.WithLabelValues(status).Inc()
		s.metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	}
	return vector, err
}

func (s *service) emptyComposition(params CompositionParams, reason string) *domain.Composition {
	return &domain.Composition{
		GoalText:            params.GoalText,
		SelectedFragmentIDs: []string{},
		Candidates:          []domain.ScoredCandidate{},
		Dependencies:        []domain.DependencyReport{},
		Conflicts:           []domain.ConflictReport{},
		Reason:              reason,
	}
}

func validateSimilarity(minSimilarity float64) error {
	if minSimilarity < 0 || minSimilarity > 1 {
		return appErrors.NewFieldValidation("min_similarity", "must be between 0 and 1")
	}
	return nil
}
