package domain

// GraphNode is one fragment rendered as a graph node. Size is derived from
// usage and token counts, scaled into [1,3]; Group keys node color by
// fragment type.
type GraphNode struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Group FragmentType `json:"group"`
	Size  float64      `json:"size"`
}

// GraphEdge is an undirected similarity edge between two fragments.
type GraphEdge struct {
	SourceID   string  `json:"sourceId"`
	TargetID   string  `json:"targetId"`
	Similarity float64 `json:"similarity"`
}

// GraphCluster is a connected component of the similarity graph with at
// least two members.
type GraphCluster struct {
	ID          int      `json:"id"`
	FragmentIDs []string `json:"fragmentIds"`
}

// GraphView is a similarity graph over a fragment set, rebuilt from scratch
// on every request.
type GraphView struct {
	Nodes    []GraphNode    `json:"nodes"`
	Edges    []GraphEdge    `json:"edges"`
	Clusters []GraphCluster `json:"clusters"`
	Reason   string         `json:"reason,omitempty"` // set when no graph could be built
}

// EmptyGraphView returns a no-graph result carrying the reason no graph
// could be built. This is a valid outcome, not an error.
func EmptyGraphView(reason string) *GraphView {
	return &GraphView{
		Nodes:    []GraphNode{},
		Edges:    []GraphEdge{},
		Clusters: []GraphCluster{},
		Reason:   reason,
	}
}

// Empty reports whether the view carries no graph at all.
func (g *GraphView) Empty() bool {
	return len(g.Nodes) == 0
}

// Path is one route between two fragments in the similarity graph,
// annotated with fragment names for display.
type Path struct {
	FragmentIDs []string `json:"fragmentIds"`
	Names       []string `json:"names"`
	Hops        int      `json:"hops"`
}
