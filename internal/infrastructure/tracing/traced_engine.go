package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"promptvault-backend/internal/domain"
	"promptvault-backend/internal/service/engine"
)

// TraceEngine wraps the engine service so every operation emits a span.
func TraceEngine(inner engine.Service, tracer trace.Tracer) engine.Service {
	return &tracedEngine{inner: inner, tracer: tracer}
}

type tracedEngine struct {
	inner  engine.Service
	tracer trace.Tracer
}

func (t *tracedEngine) ScoreAndSelect(ctx context.Context, params engine.CompositionParams) (*domain.Composition, error) {
	ctx, span := t.tracer.Start(ctx, "engine.ScoreAndSelect",
		trace.WithAttributes(
			attribute.String("owner.id", params.OwnerID),
			attribute.Int("token_budget", params.TokenBudget),
			attribute.Float64("min_similarity", params.MinSimilarity),
		),
	)
	defer span.End()

	composition, err := t.inner.ScoreAndSelect(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("selected_count", len(composition.SelectedFragmentIDs)),
		attribute.Int("total_tokens", composition.TotalTokens),
	)
	return composition, nil
}

func (t *tracedEngine) BuildGraph(ctx context.Context, params engine.GraphParams) (*domain.GraphView, error) {
	ctx, span := t.tracer.Start(ctx, "engine.BuildGraph",
		trace.WithAttributes(attribute.String("owner.id", params.OwnerID)),
	)
	defer span.End()

	view, err := t.inner.BuildGraph(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("node_count", len(view.Nodes)),
		attribute.Int("edge_count", len(view.Edges)),
	)
	return view, nil
}

func (t *tracedEngine) FindPaths(ctx context.Context, params engine.PathParams) ([]domain.Path, error) {
	ctx, span := t.tracer.Start(ctx, "engine.FindPaths",
		trace.WithAttributes(
			attribute.String("owner.id", params.OwnerID),
			attribute.String("source.id", params.SourceID),
			attribute.String("target.id", params.TargetID),
		),
	)
	defer span.End()

	paths, err := t.inner.FindPaths(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("path_count", len(paths)))
	return paths, nil
}

func (t *tracedEngine) GetPredictions(ctx context.Context, params engine.PredictionParams) ([]domain.Suggestion, error) {
	ctx, span := t.tracer.Start(ctx, "engine.GetPredictions",
		trace.WithAttributes(attribute.String("owner.id", params.OwnerID)),
	)
	defer span.End()

	suggestions, err := t.inner.GetPredictions(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("suggestion_count", len(suggestions)))
	return suggestions, nil
}

func (t *tracedEngine) GetNeighbors(ctx context.Context, params engine.NeighborParams) ([]domain.Suggestion, error) {
	ctx, span := t.tracer.Start(ctx, "engine.GetNeighbors",
		trace.WithAttributes(
			attribute.String("owner.id", params.OwnerID),
			attribute.String("fragment.id", params.FragmentID),
		),
	)
	defer span.End()

	suggestions, err := t.inner.GetNeighbors(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return suggestions, nil
}

func (t *tracedEngine) TrackUsage(ctx context.Context, event domain.UsageEvent) error {
	ctx, span := t.tracer.Start(ctx, "engine.TrackUsage",
		trace.WithAttributes(
			attribute.String("user.id", event.UserID),
			attribute.String("fragment.id", event.FragmentID),
		),
	)
	defer span.End()

	if err := t.inner.TrackUsage(ctx, event); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (t *tracedEngine) UpdateConfig(config *engine.Config) {
	t.inner.UpdateConfig(config)
}
