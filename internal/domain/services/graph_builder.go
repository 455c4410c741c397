package services

import (
	"math"
	"sort"

	"promptvault-backend/internal/domain"
)

// GraphConfig configures similarity graph construction.
type GraphConfig struct {
	MinSimilarity   float64 // Similarity floor for retaining an edge
	MaxEdgesPerNode int     // Soft degree bound per node
	MaxFragments    int     // Cap on the fragment set, for O(n^2) cost control
	MinNodeSize     float64 // Lower bound of the rendered node size range
	MaxNodeSize     float64 // Upper bound of the rendered node size range
	UsageSizeCap    int     // usage_count value that saturates the size scale
	TokenSizeCap    int     // token_count value that saturates the size scale
}

// DefaultGraphConfig returns the standard graph construction settings.
func DefaultGraphConfig() *GraphConfig {
	return &GraphConfig{
		MinSimilarity:   0.70,
		MaxEdgesPerNode: 10,
		MaxFragments:    200,
		MinNodeSize:     1,
		MaxNodeSize:     3,
		UsageSizeCap:    50,
		TokenSizeCap:    2000,
	}
}

// SimilarityPair is one pairwise similarity reported by the index.
type SimilarityPair struct {
	SourceID   string
	TargetID   string
	Similarity float64
}

// GraphBuilder constructs a similarity graph over a fragment set: one node
// per fragment, edges gated by a similarity floor with a per-node degree
// cap, and clusters as connected components.
type GraphBuilder struct {
	config *GraphConfig
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(config *GraphConfig) *GraphBuilder {
	if config == nil {
		config = DefaultGraphConfig()
	}
	return &GraphBuilder{config: config}
}

// Config exposes the effective configuration, mainly for callers that need
// the fragment cap before fetching.
func (gb *GraphBuilder) Config() *GraphConfig {
	return gb.config
}

// Build assembles a GraphView from fragments and their pairwise similarities.
// Edges are considered in descending similarity order and dropped once either
// endpoint reaches the degree cap. The heuristic is greedy and order
// dependent: with tight caps it does not guarantee the globally best edge
// set per node, only a reasonable sparsification.
func (gb *GraphBuilder) Build(fragments []domain.Fragment, minSimilarity float64, maxEdgesPerNode int, pairs []SimilarityPair) *domain.GraphView {
	if len(fragments) == 0 {
		return &domain.GraphView{Reason: "no fragments to build a graph from"}
	}
	if minSimilarity <= 0 {
		minSimilarity = gb.config.MinSimilarity
	}
	if maxEdgesPerNode <= 0 {
		maxEdgesPerNode = gb.config.MaxEdgesPerNode
	}

	view := &domain.GraphView{
		Nodes:    make([]domain.GraphNode, 0, len(fragments)),
		Edges:    make([]domain.GraphEdge, 0),
		Clusters: make([]domain.GraphCluster, 0),
	}

	known := make(map[string]bool, len(fragments))
	for _, f := range fragments {
		known[f.ID] = true
		view.Nodes = append(view.Nodes, domain.GraphNode{
			ID:    f.ID,
			Label: f.Name,
			Group: f.Type,
			Size:  gb.nodeSize(f),
		})
	}

	// Highest-similarity edges claim degree budget first.
	ordered := make([]SimilarityPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Similarity < minSimilarity {
			continue
		}
		if !known[p.SourceID] || !known[p.TargetID] || p.SourceID == p.TargetID {
			continue
		}
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Similarity != ordered[j].Similarity {
			return ordered[i].Similarity > ordered[j].Similarity
		}
		if ordered[i].SourceID != ordered[j].SourceID {
			return ordered[i].SourceID < ordered[j].SourceID
		}
		return ordered[i].TargetID < ordered[j].TargetID
	})

	degree := make(map[string]int, len(fragments))
	added := make(map[[2]string]bool)
	for _, p := range ordered {
		key := canonicalPair(p.SourceID, p.TargetID)
		if added[key] {
			continue
		}
		if degree[p.SourceID] >= maxEdgesPerNode || degree[p.TargetID] >= maxEdgesPerNode {
			continue
		}

		added[key] = true
		degree[p.SourceID]++
		degree[p.TargetID]++
		view.Edges = append(view.Edges, domain.GraphEdge{
			SourceID:   key[0],
			TargetID:   key[1],
			Similarity: p.Similarity,
		})
	}

	view.Clusters = gb.findClusters(view)

	return view
}

// nodeSize scales usage and token counts into the configured size range.
func (gb *GraphBuilder) nodeSize(f domain.Fragment) float64 {
	usage := math.Min(float64(f.UsageCount), float64(gb.config.UsageSizeCap)) / float64(gb.config.UsageSizeCap)
	tokens := math.Min(float64(f.TokenCount), float64(gb.config.TokenSizeCap)) / float64(gb.config.TokenSizeCap)

	span := gb.config.MaxNodeSize - gb.config.MinNodeSize
	return gb.config.MinNodeSize + span*(usage+tokens)/2
}

// findClusters runs a depth-first traversal over the retained edge set and
// reports connected components of size >= 2. Singletons are omitted.
func (gb *GraphBuilder) findClusters(view *domain.GraphView) []domain.GraphCluster {
	adjacency := make(map[string][]string, len(view.Nodes))
	for _, edge := range view.Edges {
		adjacency[edge.SourceID] = append(adjacency[edge.SourceID], edge.TargetID)
		adjacency[edge.TargetID] = append(adjacency[edge.TargetID], edge.SourceID)
	}

	visited := make(map[string]bool, len(view.Nodes))
	clusters := make([]domain.GraphCluster, 0)

	for _, node := range view.Nodes {
		if visited[node.ID] {
			continue
		}

		component := make([]string, 0)
		stack := []string{node.ID}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[current] {
				continue
			}
			visited[current] = true
			component = append(component, current)
			stack = append(stack, adjacency[current]...)
		}

		if len(component) >= 2 {
			sort.Strings(component)
			clusters = append(clusters, domain.GraphCluster{
				ID:          len(clusters),
				FragmentIDs: component,
			})
		}
	}

	return clusters
}
