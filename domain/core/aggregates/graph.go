package aggregates

import (
	"errors"
	"time"

	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/core/valueobjects"
)

// Graph is the aggregate of everything one extraction session produced.
// Nodes and edges keep their emission order.
type Graph struct {
	sessionID string
	nodes     []entities.GraphNode
	edges     []entities.GraphEdge
	nodeIndex map[valueobjects.NodeID]int
	edgeIndex map[entities.EdgeKey]int
	createdAt time.Time
	updatedAt time.Time
}

// GraphMetadata contains graph-level information
type GraphMetadata struct {
	SessionID    string    `json:"session_id"`
	NodeCount    int       `json:"node_count"`
	EdgeCount    int       `json:"edge_count"`
	ClusterCount int       `json:"cluster_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewGraph creates an empty graph for a session
func NewGraph(sessionID string) *Graph {
	now := time.Now()
	return &Graph{
		sessionID: sessionID,
		nodeIndex: make(map[valueobjects.NodeID]int),
		edgeIndex: make(map[entities.EdgeKey]int),
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructGraph recreates a graph from stored data
func ReconstructGraph(sessionID string, nodes []entities.GraphNode, edges []entities.GraphEdge, createdAt time.Time) (*Graph, error) {
	graph := NewGraph(sessionID)
	graph.createdAt = createdAt

	for _, node := range nodes {
		if err := graph.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge); err != nil {
			return nil, err
		}
	}

	graph.updatedAt = createdAt
	return graph, nil
}

// SessionID returns the session that produced the graph
func (g *Graph) SessionID() string {
	return g.sessionID
}

// AddNode adds a completed node
func (g *Graph) AddNode(node entities.GraphNode) error {
	if node.ID.IsZero() {
		return errors.New("node has no identifier")
	}
	if _, exists := g.nodeIndex[node.ID]; exists {
		return errors.New("node already exists in graph")
	}
	if node.IsRoot && g.Root() != nil {
		return errors.New("graph already has a root node")
	}

	g.nodeIndex[node.ID] = len(g.nodes)
	g.nodes = append(g.nodes, node)
	g.updatedAt = time.Now()
	return nil
}

// AddEdge adds a completed edge. Endpoints may reference nodes outside the
// session when the stream named them by canonical identifier.
func (g *Graph) AddEdge(edge entities.GraphEdge) error {
	if edge.SourceID.Equals(edge.TargetID) {
		return errors.New("cannot connect node to itself")
	}

	key := edge.Key()
	if _, exists := g.edgeIndex[key]; exists {
		return errors.New("edge already exists")
	}

	g.edgeIndex[key] = len(g.edges)
	g.edges = append(g.edges, edge)
	g.updatedAt = time.Now()
	return nil
}

// ReplaceNode swaps in a revised copy of a node already in the graph
func (g *Graph) ReplaceNode(node entities.GraphNode) error {
	i, exists := g.nodeIndex[node.ID]
	if !exists {
		return errors.New("node not found in graph")
	}
	if node.IsRoot != g.nodes[i].IsRoot {
		return errors.New("cannot change the root node")
	}

	g.nodes[i] = node
	g.updatedAt = time.Now()
	return nil
}

// Nodes returns a copy of the nodes in emission order
func (g *Graph) Nodes() []entities.GraphNode {
	nodes := make([]entities.GraphNode, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

// Edges returns a copy of the edges in emission order
func (g *Graph) Edges() []entities.GraphEdge {
	edges := make([]entities.GraphEdge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// GetNode returns the node with the given identifier
func (g *Graph) GetNode(nodeID valueobjects.NodeID) (entities.GraphNode, bool) {
	idx, ok := g.nodeIndex[nodeID]
	if !ok {
		return entities.GraphNode{}, false
	}
	return g.nodes[idx], true
}

// HasNode checks if a node exists in the graph
func (g *Graph) HasNode(nodeID valueobjects.NodeID) bool {
	_, ok := g.nodeIndex[nodeID]
	return ok
}

// Root returns the root node, or nil when no node has completed yet
func (g *Graph) Root() *entities.GraphNode {
	for i := range g.nodes {
		if g.nodes[i].IsRoot {
			root := g.nodes[i]
			return &root
		}
	}
	return nil
}

// ExternalReferences returns edge endpoints that are not nodes of this graph
func (g *Graph) ExternalReferences() []valueobjects.NodeID {
	seen := make(map[valueobjects.NodeID]bool)
	var refs []valueobjects.NodeID

	for _, edge := range g.edges {
		for _, id := range []valueobjects.NodeID{edge.SourceID, edge.TargetID} {
			if !g.HasNode(id) && !seen[id] {
				seen[id] = true
				refs = append(refs, id)
			}
		}
	}
	return refs
}

// GetClusters returns the connected components of the graph, ignoring edge
// direction. Isolated nodes form their own cluster.
func (g *Graph) GetClusters() [][]valueobjects.NodeID {
	visited := make(map[valueobjects.NodeID]bool)
	clusters := [][]valueobjects.NodeID{}

	for _, node := range g.nodes {
		if !visited[node.ID] {
			clusters = append(clusters, g.dfs(node.ID, visited))
		}
	}

	return clusters
}

// Metadata returns graph-level counters
func (g *Graph) Metadata() GraphMetadata {
	return GraphMetadata{
		SessionID:    g.sessionID,
		NodeCount:    len(g.nodes),
		EdgeCount:    len(g.edges),
		ClusterCount: len(g.GetClusters()),
		CreatedAt:    g.createdAt,
		UpdatedAt:    g.updatedAt,
	}
}

// Validate ensures graph invariants
func (g *Graph) Validate() error {
	roots := 0
	for i, node := range g.nodes {
		if node.Title == "" {
			return errors.New("node without title")
		}
		if node.Category == "" {
			return errors.New("node without category")
		}
		if node.IsRoot {
			roots++
			if i != 0 {
				return errors.New("root node is not the first completed node")
			}
		}
	}
	if len(g.nodes) > 0 && roots != 1 {
		return errors.New("graph must have exactly one root node")
	}

	for _, edge := range g.edges {
		if edge.SourceID.Equals(edge.TargetID) {
			return errors.New("edge references itself")
		}
	}

	return nil
}

// Private helper methods

func (g *Graph) dfs(nodeID valueobjects.NodeID, visited map[valueobjects.NodeID]bool) []valueobjects.NodeID {
	cluster := []valueobjects.NodeID{nodeID}
	visited[nodeID] = true

	for _, edge := range g.edges {
		var next valueobjects.NodeID

		if edge.SourceID.Equals(nodeID) {
			next = edge.TargetID
		} else if edge.TargetID.Equals(nodeID) {
			next = edge.SourceID
		} else {
			continue
		}

		if g.HasNode(next) && !visited[next] {
			cluster = append(cluster, g.dfs(next, visited)...)
		}
	}

	return cluster
}
