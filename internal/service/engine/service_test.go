package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvault-backend/internal/domain"
	"promptvault-backend/internal/infrastructure/vectorindex"
	"promptvault-backend/internal/repository"
	"promptvault-backend/internal/repository/mocks"
	"promptvault-backend/internal/service/embedding"
	appErrors "promptvault-backend/pkg/errors"
)

const testOwner = "owner-1"

func newTestService(t *testing.T, store *mocks.MockStore, provider embedding.Provider) *service {
	t.Helper()
	if provider == nil {
		provider = embedding.NewMockProvider(16)
	}

	svc := NewService(nil, Dependencies{
		Fragments:     store,
		Relationships: store,
		Events:        store,
		Embeddings:    store,
		Index:         vectorindex.NewIndex(store),
		Provider:      provider,
		Publisher:     store,
	}).(*service)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func addFragment(store *mocks.MockStore, id string, tokens int) {
	store.AddFragment(domain.Fragment{
		ID:         id,
		OwnerID:    testOwner,
		Type:       domain.FragmentTypeSnippet,
		Name:       "fragment " + id,
		Text:       "text of " + id,
		TokenCount: tokens,
	})
}

// unit returns a unit-length 2-d vector whose cosine similarity with
// unit(1, 0) is exactly x.
func unit(x, y float64) []float32 {
	norm := math.Sqrt(x*x + y*y)
	return []float32{float32(x / norm), float32(y / norm)}
}

// angle returns a unit vector at the given angle in degrees, so the cosine
// similarity of two such vectors is the cosine of their angular difference.
func angle(degrees float64) []float32 {
	radians := degrees * math.Pi / 180
	return unit(math.Cos(radians), math.Sin(radians))
}

func TestScoreAndSelectValidation(t *testing.T) {
	svc := newTestService(t, mocks.NewMockStore(), nil)
	ctx := context.Background()

	t.Run("NonPositiveBudgetRejected", func(t *testing.T) {
		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:     testOwner,
			GoalText:    "anything",
			TokenBudget: 0,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("SimilarityOutOfRangeRejected", func(t *testing.T) {
		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:       testOwner,
			GoalText:      "anything",
			TokenBudget:   100,
			MinSimilarity: 1.5,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("GoalAndSourceAreMutuallyExclusive", func(t *testing.T) {
		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			GoalText:         "anything",
			SourceFragmentID: "frag-1",
			TokenBudget:      100,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("OneOfGoalOrSourceRequired", func(t *testing.T) {
		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:     testOwner,
			TokenBudget: 100,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("NegativeMaxItemsRejected", func(t *testing.T) {
		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:     testOwner,
			GoalText:    "anything",
			TokenBudget: 100,
			MaxItems:    -1,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestScoreAndSelect(t *testing.T) {
	ctx := context.Background()

	// Three candidates at descending similarity to the source, each 400
	// tokens, against an 800-token budget: the top two fit, the third does
	// not survive the cutoff.
	seed := func() (*mocks.MockStore, *service) {
		store := mocks.NewMockStore()
		addFragment(store, "src", 100)
		addFragment(store, "a", 400)
		addFragment(store, "b", 400)
		addFragment(store, "c", 400)
		store.AddVector(testOwner, "src", unit(1, 0))
		store.AddVector(testOwner, "a", unit(0.9, math.Sqrt(1-0.81)))
		store.AddVector(testOwner, "b", unit(0.75, math.Sqrt(1-0.5625)))
		store.AddVector(testOwner, "c", unit(0.5, math.Sqrt(0.75)))
		return store, newTestService(t, store, nil)
	}

	t.Run("BudgetCoversTopTwoBySimilarity", func(t *testing.T) {
		_, svc := seed()
		composition, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "src",
			TokenBudget:      800,
			MinSimilarity:    0.4,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, composition.SelectedFragmentIDs)
		assert.Equal(t, 800, composition.TotalTokens)
		assert.Len(t, composition.Candidates, 3)
		assert.Greater(t, composition.QualityScore, 0.0)
		assert.Contains(t, composition.Reason, "selected 2 of 3 candidates")
	})

	t.Run("SourceFragmentExcludedFromCandidates", func(t *testing.T) {
		_, svc := seed()
		composition, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "src",
			TokenBudget:      10000,
			MinSimilarity:    0.4,
		})
		require.NoError(t, err)
		assert.NotContains(t, composition.SelectedFragmentIDs, "src")
	})

	t.Run("DependencyAndConflictReportsAttached", func(t *testing.T) {
		store, svc := seed()
		addFragment(store, "d", 50)
		store.AddRelationship(domain.Relationship{
			SourceID: "a", TargetID: "d", Type: domain.RelationshipDependsOn,
		})
		store.AddRelationship(domain.Relationship{
			SourceID: "a", TargetID: "b", Type: domain.RelationshipConflicts,
		})

		composition, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "src",
			TokenBudget:      800,
			MinSimilarity:    0.4,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, composition.SelectedFragmentIDs)

		require.Len(t, composition.Dependencies, 1)
		assert.Equal(t, "d", composition.Dependencies[0].TargetID)
		assert.NotContains(t, composition.SelectedFragmentIDs, "d")

		// both conflict members stay selected; the pair is only flagged
		require.Len(t, composition.Conflicts, 1)
		assert.Equal(t, "a", composition.Conflicts[0].SourceID)
		assert.Equal(t, "b", composition.Conflicts[0].TargetID)
	})

	t.Run("DanglingDependencyOmitted", func(t *testing.T) {
		store, svc := seed()
		store.AddRelationship(domain.Relationship{
			SourceID: "a", TargetID: "deleted", Type: domain.RelationshipDependsOn,
		})

		composition, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "src",
			TokenBudget:      800,
			MinSimilarity:    0.4,
		})
		require.NoError(t, err)
		assert.Empty(t, composition.Dependencies)
	})

	t.Run("Deterministic", func(t *testing.T) {
		_, svc := seed()
		params := CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "src",
			TokenBudget:      800,
			MinSimilarity:    0.4,
		}
		first, err := svc.ScoreAndSelect(ctx, params)
		require.NoError(t, err)
		second, err := svc.ScoreAndSelect(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("NoMatchYieldsEmptyCompositionNotError", func(t *testing.T) {
		store := mocks.NewMockStore()
		svc := newTestService(t, store, nil)

		composition, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:     testOwner,
			GoalText:    "anything at all",
			TokenBudget: 800,
		})
		require.NoError(t, err)
		assert.Empty(t, composition.SelectedFragmentIDs)
		assert.Equal(t, "no fragments matched at or above the similarity threshold", composition.Reason)
	})

	t.Run("NothingFitsYieldsEmptyComposition", func(t *testing.T) {
		_, svc := seed()
		composition, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "src",
			TokenBudget:      50,
			MinSimilarity:    0.4,
		})
		require.NoError(t, err)
		assert.Empty(t, composition.SelectedFragmentIDs)
		assert.Equal(t, "no candidate fits within the token budget", composition.Reason)
	})

	t.Run("GoalTextMatchesIdenticalFragment", func(t *testing.T) {
		store := mocks.NewMockStore()
		provider := embedding.NewMockProvider(16)
		svc := newTestService(t, store, provider)

		text := "summarize quarterly revenue numbers"
		vector, err := provider.Embed(ctx, text)
		require.NoError(t, err)
		addFragment(store, "match", 100)
		store.AddVector(testOwner, "match", vector)

		composition, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:     testOwner,
			GoalText:    text,
			TokenBudget: 800,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"match"}, composition.SelectedFragmentIDs)
	})
}

func TestScoreAndSelectFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownSourceFragmentIsNotFound", func(t *testing.T) {
		svc := newTestService(t, mocks.NewMockStore(), nil)
		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "ghost",
			TokenBudget:      800,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("SourceWithoutEmbeddingIsNotFound", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "src", 100)
		svc := newTestService(t, store, nil)

		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:          testOwner,
			SourceFragmentID: "src",
			TokenBudget:      800,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("EmbeddingProviderFailureIsUnavailable", func(t *testing.T) {
		provider := embedding.NewMockProvider(16)
		provider.SetAvailable(false)
		svc := newTestService(t, mocks.NewMockStore(), provider)

		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:     testOwner,
			GoalText:    "anything",
			TokenBudget: 800,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsUnavailable(err))
	})

	t.Run("SearchFailureIsUnavailable", func(t *testing.T) {
		store := mocks.NewMockStore()
		store.SetError("FindVectors", errors.New("throughput exceeded"))
		svc := newTestService(t, store, nil)

		_, err := svc.ScoreAndSelect(ctx, CompositionParams{
			OwnerID:     testOwner,
			GoalText:    "anything",
			TokenBudget: 800,
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsUnavailable(err))
	})
}

func TestBuildGraph(t *testing.T) {
	ctx := context.Background()

	t.Run("NoFragmentsCarriesReason", func(t *testing.T) {
		svc := newTestService(t, mocks.NewMockStore(), nil)
		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner})
		require.NoError(t, err)
		assert.True(t, view.Empty())
		assert.Equal(t, "no fragments to build a graph from", view.Reason)
	})

	t.Run("NoEmbeddingsCarriesReason", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		svc := newTestService(t, store, nil)

		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner})
		require.NoError(t, err)
		assert.True(t, view.Empty())
		assert.Equal(t, "no fragments have a computed embedding", view.Reason)
	})

	t.Run("BuildsNodesEdgesAndClusters", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		addFragment(store, "b", 100)
		addFragment(store, "lone", 100)
		store.AddVector(testOwner, "a", unit(1, 0))
		store.AddVector(testOwner, "b", unit(0.95, math.Sqrt(1-0.9025)))
		store.AddVector(testOwner, "lone", unit(0, 1))
		svc := newTestService(t, store, nil)

		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner, MinSimilarity: 0.8})
		require.NoError(t, err)
		assert.Len(t, view.Nodes, 3)
		require.Len(t, view.Edges, 1)
		assert.Equal(t, "a", view.Edges[0].SourceID)
		assert.Equal(t, "b", view.Edges[0].TargetID)
		require.Len(t, view.Clusters, 1)
		assert.Equal(t, []string{"a", "b"}, view.Clusters[0].FragmentIDs)
	})

	t.Run("InvalidSimilarityRejected", func(t *testing.T) {
		svc := newTestService(t, mocks.NewMockStore(), nil)
		_, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner, MinSimilarity: -0.1})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestUpdateConfig(t *testing.T) {
	ctx := context.Background()

	// pairwise similarities: a-b cos(10) ~ 0.985, b-c cos(15) ~ 0.966,
	// a-c cos(25) ~ 0.906 - all above the default 0.70 floor
	seed := func() (*mocks.MockStore, *service) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		addFragment(store, "b", 100)
		addFragment(store, "c", 100)
		store.AddVector(testOwner, "a", angle(0))
		store.AddVector(testOwner, "b", angle(10))
		store.AddVector(testOwner, "c", angle(25))
		return store, newTestService(t, store, nil)
	}

	t.Run("GraphFloorAppliesToSubsequentBuilds", func(t *testing.T) {
		_, svc := seed()

		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner})
		require.NoError(t, err)
		assert.Len(t, view.Edges, 3)

		raised := DefaultConfig()
		raised.GraphMinSimilarity = 0.97
		svc.UpdateConfig(raised)

		view, err = svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner})
		require.NoError(t, err)
		assert.Len(t, view.Edges, 1)
	})

	t.Run("DegreeCapAppliesToSubsequentBuilds", func(t *testing.T) {
		_, svc := seed()

		tightened := DefaultConfig()
		tightened.GraphMaxEdgesPerNode = 1
		svc.UpdateConfig(tightened)

		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner})
		require.NoError(t, err)
		require.Len(t, view.Edges, 1)
		assert.Equal(t, "a", view.Edges[0].SourceID)
		assert.Equal(t, "b", view.Edges[0].TargetID)
	})

	t.Run("ExplicitRequestValuesStillWin", func(t *testing.T) {
		_, svc := seed()

		raised := DefaultConfig()
		raised.GraphMinSimilarity = 0.99
		svc.UpdateConfig(raised)

		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner, MinSimilarity: 0.95})
		require.NoError(t, err)
		assert.Len(t, view.Edges, 2)
	})

	t.Run("NilConfigIgnored", func(t *testing.T) {
		_, svc := seed()
		svc.UpdateConfig(nil)

		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner})
		require.NoError(t, err)
		assert.Len(t, view.Edges, 3)
	})
}

func TestFindPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("EndpointsRequired", func(t *testing.T) {
		svc := newTestService(t, mocks.NewMockStore(), nil)
		_, err := svc.FindPaths(ctx, PathParams{OwnerID: testOwner, TargetID: "b"})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))

		_, err = svc.FindPaths(ctx, PathParams{OwnerID: testOwner, SourceID: "a"})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("FindsRouteThroughIntermediate", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		addFragment(store, "mid", 100)
		addFragment(store, "z", 100)
		// a-mid and mid-z clear the floor; a-z does not
		store.AddVector(testOwner, "a", unit(1, 0))
		store.AddVector(testOwner, "mid", unit(0.9, math.Sqrt(1-0.81)))
		store.AddVector(testOwner, "z", unit(0.62, math.Sqrt(1-0.3844)))
		svc := newTestService(t, store, nil)

		paths, err := svc.FindPaths(ctx, PathParams{
			OwnerID:       testOwner,
			SourceID:      "a",
			TargetID:      "z",
			MinSimilarity: 0.8,
		})
		require.NoError(t, err)
		require.NotEmpty(t, paths)
		assert.Equal(t, []string{"a", "mid", "z"}, paths[0].FragmentIDs)
		assert.Equal(t, 2, paths[0].Hops)
	})

	t.Run("RenderDegreeCapDoesNotHideRoutes", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		addFragment(store, "mid", 100)
		addFragment(store, "twin", 100)
		addFragment(store, "z", 100)
		// mid-twin is by far the strongest pair; with a degree cap of one
		// it consumes mid's whole budget and the rendered graph drops the
		// a-mid and mid-z edges.
		store.AddVector(testOwner, "a", angle(0))
		store.AddVector(testOwner, "mid", angle(35))
		store.AddVector(testOwner, "twin", angle(37))
		store.AddVector(testOwner, "z", angle(70))
		svc := newTestService(t, store, nil)

		tightened := DefaultConfig()
		tightened.GraphMaxEdgesPerNode = 1
		svc.UpdateConfig(tightened)

		view, err := svc.BuildGraph(ctx, GraphParams{OwnerID: testOwner, MinSimilarity: 0.8})
		require.NoError(t, err)
		require.Len(t, view.Edges, 1)
		assert.Equal(t, "mid", view.Edges[0].SourceID)
		assert.Equal(t, "twin", view.Edges[0].TargetID)

		// path search ignores the cap: every edge at or above the floor
		// stays traversable
		paths, err := svc.FindPaths(ctx, PathParams{
			OwnerID:       testOwner,
			SourceID:      "a",
			TargetID:      "z",
			MinSimilarity: 0.8,
		})
		require.NoError(t, err)
		require.NotEmpty(t, paths)
		assert.Equal(t, []string{"a", "mid", "z"}, paths[0].FragmentIDs)
	})

	t.Run("DisconnectedFragmentsYieldEmptySlice", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		addFragment(store, "b", 100)
		store.AddVector(testOwner, "a", unit(1, 0))
		store.AddVector(testOwner, "b", unit(0, 1))
		svc := newTestService(t, store, nil)

		paths, err := svc.FindPaths(ctx, PathParams{
			OwnerID:  testOwner,
			SourceID: "a",
			TargetID: "b",
		})
		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

func TestGetNeighbors(t *testing.T) {
	ctx := context.Background()

	t.Run("FragmentIDRequired", func(t *testing.T) {
		svc := newTestService(t, mocks.NewMockStore(), nil)
		_, err := svc.GetNeighbors(ctx, NeighborParams{OwnerID: testOwner})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("FragmentWithoutEmbeddingYieldsEmptyList", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		svc := newTestService(t, store, nil)

		suggestions, err := svc.GetNeighbors(ctx, NeighborParams{OwnerID: testOwner, FragmentID: "a"})
		require.NoError(t, err)
		assert.Empty(t, suggestions)
	})

	t.Run("ReturnsNearestExcludingSelf", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		addFragment(store, "near", 100)
		addFragment(store, "far", 100)
		store.AddVector(testOwner, "a", unit(1, 0))
		store.AddVector(testOwner, "near", unit(0.9, math.Sqrt(1-0.81)))
		store.AddVector(testOwner, "far", unit(0.3, math.Sqrt(1-0.09)))
		svc := newTestService(t, store, nil)

		suggestions, err := svc.GetNeighbors(ctx, NeighborParams{
			OwnerID:       testOwner,
			FragmentID:    "a",
			MinSimilarity: 0.2,
			Limit:         10,
		})
		require.NoError(t, err)
		require.Len(t, suggestions, 2)
		assert.Equal(t, "near", suggestions[0].FragmentID)
		assert.Equal(t, "fragment near", suggestions[0].Name)
		assert.Equal(t, domain.SourceSimilarity, suggestions[0].Source)
		assert.InDelta(t, 0.9, suggestions[0].Confidence, 0.01)
		assert.Equal(t, "far", suggestions[1].FragmentID)
	})

	t.Run("LimitTruncates", func(t *testing.T) {
		store := mocks.NewMockStore()
		addFragment(store, "a", 100)
		store.AddVector(testOwner, "a", unit(1, 0))
		for _, id := range []string{"n1", "n2", "n3"} {
			addFragment(store, id, 100)
			store.AddVector(testOwner, id, unit(0.95, math.Sqrt(1-0.9025)))
		}
		svc := newTestService(t, store, nil)

		suggestions, err := svc.GetNeighbors(ctx, NeighborParams{
			OwnerID:       testOwner,
			FragmentID:    "a",
			MinSimilarity: 0.2,
			Limit:         2,
		})
		require.NoError(t, err)
		assert.Len(t, suggestions, 2)
	})
}

func TestTrackUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiredFieldsValidated", func(t *testing.T) {
		svc := newTestService(t, mocks.NewMockStore(), nil)

		err := svc.TrackUsage(ctx, domain.UsageEvent{FragmentID: "a"})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))

		err = svc.TrackUsage(ctx, domain.UsageEvent{UserID: testOwner})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("AppendsWithDefaultedTimestamp", func(t *testing.T) {
		store := mocks.NewMockStore()
		svc := newTestService(t, store, nil)

		err := svc.TrackUsage(ctx, domain.UsageEvent{
			UserID:     testOwner,
			FragmentID: "a",
			Success:    true,
		})
		require.NoError(t, err)

		events, err := store.FindEvents(ctx, repository.EventQuery{OwnerID: testOwner})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("PublishFailureIsNotFatal", func(t *testing.T) {
		store := mocks.NewMockStore()
		store.SetError("PublishUsage", errors.New("bus unreachable"))
		svc := newTestService(t, store, nil)

		err := svc.TrackUsage(ctx, domain.UsageEvent{
			UserID:     testOwner,
			FragmentID: "a",
		})
		assert.NoError(t, err)
	})
}
