package services

import (
	"promptvault-backend/internal/domain"
)

// PathConfig configures shortest-path search over the similarity graph.
type PathConfig struct {
	MaxDepth int // Hop cap for the breadth-first search
	MaxPaths int // Number of paths returned per query
}

// DefaultPathConfig returns the standard path search settings.
func DefaultPathConfig() *PathConfig {
	return &PathConfig{
		MaxDepth: 5,
		MaxPaths: 5,
	}
}

// PathFinder answers shortest-path queries between two fragments over the
// retained similarity edges.
type PathFinder struct {
	config *PathConfig
}

// NewPathFinder creates a new path finder.
func NewPathFinder(config *PathConfig) *PathFinder {
	if config == nil {
		config = DefaultPathConfig()
	}
	return &PathFinder{config: config}
}

// FindPaths runs a breadth-first search from source to target, capped at
// maxDepth hops, and returns up to MaxPaths shortest paths by hop count,
// each annotated with fragment names. Finding no path within the cap is a
// normal outcome and yields an empty slice.
func (pf *PathFinder) FindPaths(view *domain.GraphView, sourceID, targetID string, maxDepth int) []domain.Path {
	if maxDepth <= 0 {
		maxDepth = pf.config.MaxDepth
	}

	names := make(map[string]string, len(view.Nodes))
	known := make(map[string]bool, len(view.Nodes))
	for _, node := range view.Nodes {
		names[node.ID] = node.Label
		known[node.ID] = true
	}
	if !known[sourceID] || !known[targetID] || sourceID == targetID {
		return []domain.Path{}
	}

	adjacency := make(map[string][]string, len(view.Nodes))
	for _, edge := range view.Edges {
		adjacency[edge.SourceID] = append(adjacency[edge.SourceID], edge.TargetID)
		adjacency[edge.TargetID] = append(adjacency[edge.TargetID], edge.SourceID)
	}

	// BFS over whole paths: the queue holds partial routes so multiple
	// shortest routes to the target survive. Each path avoids revisiting
	// its own nodes; n is capped upstream so the frontier stays small.
	paths := make([]domain.Path, 0, pf.config.MaxPaths)
	queue := [][]string{{sourceID}}
	shortest := -1

	for len(queue) > 0 && len(paths) < pf.config.MaxPaths {
		current := queue[0]
		queue = queue[1:]

		hops := len(current) - 1
		if hops >= maxDepth {
			continue
		}
		if shortest >= 0 && hops+1 > shortest && len(paths) >= pf.config.MaxPaths {
			break
		}

		last := current[len(current)-1]
		for _, next := range adjacency[last] {
			if containsID(current, next) {
				continue
			}

			route := append(append([]string{}, current...), next)
			if next == targetID {
				if shortest < 0 {
					shortest = len(route) - 1
				}
				paths = append(paths, pf.annotate(route, names))
				if len(paths) >= pf.config.MaxPaths {
					break
				}
				continue
			}
			queue = append(queue, route)
		}
	}

	return paths
}

func (pf *PathFinder) annotate(route []string, names map[string]string) domain.Path {
	annotated := make([]string, len(route))
	for i, id := range route {
		annotated[i] = names[id]
	}
	return domain.Path{
		FragmentIDs: route,
		Names:       annotated,
		Hops:        len(route) - 1,
	}
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
