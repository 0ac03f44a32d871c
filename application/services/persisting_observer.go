package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/ports"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/core/validators"
)

// PersistingObserver writes the collected graph of a completed session to
// the graph sink. Failed sessions are not persisted.
type PersistingObserver struct {
	collector *GraphCollector
	sink      ports.GraphSink
	validator *validators.GraphValidator
	timeout   time.Duration
	logger    *zap.Logger
}

var _ extraction.Observer = (*PersistingObserver)(nil)

// NewPersistingObserver creates an observer that saves the collector's graph
func NewPersistingObserver(collector *GraphCollector, sink ports.GraphSink, timeout time.Duration, logger *zap.Logger) *PersistingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistingObserver{
		collector: collector,
		sink:      sink,
		validator: validators.NewGraphValidator(),
		timeout:   timeout,
		logger:    logger,
	}
}

func (p *PersistingObserver) NodeReady(entities.GraphNode) {}

func (p *PersistingObserver) EdgeReady(entities.GraphEdge) {}

func (p *PersistingObserver) FieldUpdate(string, string, string) {}

func (p *PersistingObserver) SessionComplete(summary extraction.Summary) {
	graph := p.collector.Graph()

	if err := p.validator.ValidateGraph(graph); err != nil {
		p.logger.Warn("Extracted graph failed validation, not persisted",
			zap.String("sessionID", summary.SessionID),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.sink.Save(ctx, graph); err != nil {
		p.logger.Error("Failed to persist extracted graph",
			zap.String("sessionID", summary.SessionID),
			zap.Error(err))
		return
	}

	p.logger.Debug("Extracted graph persisted",
		zap.String("sessionID", summary.SessionID),
		zap.Int("nodes", summary.NodesEmitted),
		zap.Int("edges", summary.EdgesEmitted))
}

func (p *PersistingObserver) SessionError(error) {}
