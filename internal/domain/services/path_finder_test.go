package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvault-backend/internal/domain"
)

func viewWith(edges []domain.GraphEdge, ids ...string) *domain.GraphView {
	view := &domain.GraphView{Edges: edges}
	for _, id := range ids {
		view.Nodes = append(view.Nodes, domain.GraphNode{ID: id, Label: "fragment " + id})
	}
	return view
}

func TestPathFinderFindPaths(t *testing.T) {
	finder := NewPathFinder(nil)

	t.Run("FindsShortestPathFirst", func(t *testing.T) {
		view := viewWith([]domain.GraphEdge{
			{SourceID: "a", TargetID: "b"},
			{SourceID: "b", TargetID: "d"},
			{SourceID: "a", TargetID: "c"},
			{SourceID: "c", TargetID: "e"},
			{SourceID: "e", TargetID: "d"},
		}, "a", "b", "c", "d", "e")

		paths := finder.FindPaths(view, "a", "d", 5)
		require.NotEmpty(t, paths)
		assert.Equal(t, []string{"a", "b", "d"}, paths[0].FragmentIDs)
		assert.Equal(t, 2, paths[0].Hops)
		assert.Equal(t, []string{"fragment a", "fragment b", "fragment d"}, paths[0].Names)
		for i := 1; i < len(paths); i++ {
			assert.GreaterOrEqual(t, paths[i].Hops, paths[i-1].Hops)
		}
	})

	t.Run("NoRouteYieldsEmptySliceNotError", func(t *testing.T) {
		view := viewWith([]domain.GraphEdge{
			{SourceID: "a", TargetID: "b"},
		}, "a", "b", "island")

		paths := finder.FindPaths(view, "a", "island", 5)
		assert.NotNil(t, paths)
		assert.Empty(t, paths)
	})

	t.Run("DepthCapPrunesLongRoutes", func(t *testing.T) {
		view := viewWith([]domain.GraphEdge{
			{SourceID: "a", TargetID: "b"},
			{SourceID: "b", TargetID: "c"},
			{SourceID: "c", TargetID: "d"},
		}, "a", "b", "c", "d")

		paths := finder.FindPaths(view, "a", "d", 2)
		assert.Empty(t, paths)
	})

	t.Run("MissingEndpointYieldsEmpty", func(t *testing.T) {
		view := viewWith([]domain.GraphEdge{
			{SourceID: "a", TargetID: "b"},
		}, "a", "b")

		assert.Empty(t, finder.FindPaths(view, "a", "ghost", 5))
		assert.Empty(t, finder.FindPaths(view, "ghost", "b", 5))
		assert.Empty(t, finder.FindPaths(view, "a", "a", 5))
	})

	t.Run("ReturnsAtMostFivePaths", func(t *testing.T) {
		// Six disjoint two-hop routes from a to z.
		edges := []domain.GraphEdge{}
		ids := []string{"a", "z"}
		for _, mid := range []string{"m1", "m2", "m3", "m4", "m5", "m6"} {
			ids = append(ids, mid)
			edges = append(edges,
				domain.GraphEdge{SourceID: "a", TargetID: mid},
				domain.GraphEdge{SourceID: mid, TargetID: "z"},
			)
		}
		view := viewWith(edges, ids...)

		paths := finder.FindPaths(view, "a", "z", 5)
		assert.Len(t, paths, 5)
	})

	t.Run("PathsNeverRevisitANode", func(t *testing.T) {
		view := viewWith([]domain.GraphEdge{
			{SourceID: "a", TargetID: "b"},
			{SourceID: "b", TargetID: "a"},
			{SourceID: "b", TargetID: "c"},
		}, "a", "b", "c")

		paths := finder.FindPaths(view, "a", "c", 5)
		for _, p := range paths {
			seen := make(map[string]bool)
			for _, id := range p.FragmentIDs {
				assert.False(t, seen[id], "node %s visited twice", id)
				seen[id] = true
			}
		}
	})
}
