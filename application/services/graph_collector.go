package services

import (
	"sync"

	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/core/valueobjects"
)

// GraphCollector accumulates the nodes and edges of one session into its
// extracted graph. Late citation and confidence fields are folded into the
// node they belong to, so the collected graph holds the final values even
// though the emitted node did not.
type GraphCollector struct {
	mu     sync.RWMutex
	graph  *aggregates.Graph
	labels map[string]valueobjects.NodeID
	logger *zap.Logger
}

var _ extraction.Observer = (*GraphCollector)(nil)

// NewGraphCollector creates a collector for a session
func NewGraphCollector(sessionID string, logger *zap.Logger) *GraphCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphCollector{
		graph:  aggregates.NewGraph(sessionID),
		labels: make(map[string]valueobjects.NodeID),
		logger: logger,
	}
}

func (c *GraphCollector) NodeReady(node entities.GraphNode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.graph.AddNode(node); err != nil {
		c.logger.Warn("Collected node rejected", zap.String("nodeID", node.ID.String()), zap.Error(err))
		return
	}
	if node.Label != "" {
		c.labels[node.Label] = node.ID
	}
}

func (c *GraphCollector) EdgeReady(edge entities.GraphEdge) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.graph.AddEdge(edge); err != nil {
		c.logger.Warn("Collected edge rejected", zap.String("edge", edge.Key().String()), zap.Error(err))
	}
}

// FieldUpdate patches a completed node. Updates for drafts that have not
// completed yet are ignored; the node carries them when it is emitted.
func (c *GraphCollector) FieldUpdate(label, key, value string) {
	field := extraction.FieldKey(key)
	if field != extraction.FieldCitation && field != extraction.FieldConfidence {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.labels[label]
	if !ok {
		return
	}
	node, ok := c.graph.GetNode(id)
	if !ok {
		return
	}

	switch field {
	case extraction.FieldCitation:
		node.Citation = value
	case extraction.FieldConfidence:
		confidence, ok := valueobjects.ParseConfidence(value)
		if !ok {
			return
		}
		node.Confidence = confidence.Float64()
	}

	if err := c.graph.ReplaceNode(node); err != nil {
		c.logger.Warn("Late field not applied", zap.String("label", label), zap.Error(err))
	}
}

func (c *GraphCollector) SessionComplete(extraction.Summary) {}

func (c *GraphCollector) SessionError(error) {}

// Graph returns a copy of the graph collected so far
func (c *GraphCollector) Graph() *aggregates.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()

	graph, err := aggregates.ReconstructGraph(c.graph.SessionID(), c.graph.Nodes(), c.graph.Edges(), c.graph.Metadata().CreatedAt)
	if err != nil {
		// Unreachable: the source graph already satisfies every rule
		c.logger.Error("Failed to copy collected graph", zap.Error(err))
		return aggregates.NewGraph(c.graph.SessionID())
	}
	return graph
}
