package memory

import (
	"context"
	"sync"

	"brain2-extractor/application/ports"
	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/pkg/errors"
)

// GraphSink keeps extracted graphs in process memory. It backs local
// development and tests; graphs are lost on restart.
type GraphSink struct {
	mu     sync.RWMutex
	graphs map[string]*aggregates.Graph
}

var _ ports.GraphSink = (*GraphSink)(nil)

// NewGraphSink creates an empty in-memory sink
func NewGraphSink() *GraphSink {
	return &GraphSink{graphs: make(map[string]*aggregates.Graph)}
}

// Save stores the graph, replacing an earlier graph of the same session
func (s *GraphSink) Save(ctx context.Context, graph *aggregates.Graph) error {
	if graph == nil || graph.SessionID() == "" {
		return errors.NewValidationError("graph with a session is required")
	}

	stored, err := aggregates.ReconstructGraph(graph.SessionID(), graph.Nodes(), graph.Edges(), graph.Metadata().CreatedAt)
	if err != nil {
		return errors.NewInternalError("failed to copy graph").WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[graph.SessionID()] = stored
	return nil
}

// Load returns the graph of a session
func (s *GraphSink) Load(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, ok := s.graphs[sessionID]
	if !ok {
		return nil, errors.NewNotFoundError("graph")
	}
	return graph, nil
}

// Len returns the number of stored graphs
func (s *GraphSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.graphs)
}
