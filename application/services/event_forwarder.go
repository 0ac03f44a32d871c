package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/ports"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/events"
)

// EventForwarder buffers the domain events of a session and publishes them
// in one batch once the session ends, completed or failed. Field updates
// are not forwarded.
type EventForwarder struct {
	sessionID string
	publisher ports.EventPublisher
	clock     extraction.Clock
	timeout   time.Duration
	logger    *zap.Logger
	pending   []events.DomainEvent
}

var _ extraction.Observer = (*EventForwarder)(nil)

// NewEventForwarder creates a forwarder for a session
func NewEventForwarder(sessionID string, publisher ports.EventPublisher, clock extraction.Clock, timeout time.Duration, logger *zap.Logger) *EventForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventForwarder{
		sessionID: sessionID,
		publisher: publisher,
		clock:     clock,
		timeout:   timeout,
		logger:    logger,
	}
}

func (f *EventForwarder) NodeReady(node entities.GraphNode) {
	f.pending = append(f.pending, events.NewNodeReady(f.sessionID, node, f.clock.Now()))
}

func (f *EventForwarder) EdgeReady(edge entities.GraphEdge) {
	f.pending = append(f.pending, events.NewEdgeReady(f.sessionID, edge, f.clock.Now()))
}

func (f *EventForwarder) FieldUpdate(string, string, string) {}

func (f *EventForwarder) SessionComplete(summary extraction.Summary) {
	f.flush(events.NewSessionCompleted(f.sessionID, summary.Stats(), f.clock.Now()))
}

func (f *EventForwarder) SessionError(cause error) {
	f.flush(events.NewSessionFailed(f.sessionID, cause, f.clock.Now()))
}

func (f *EventForwarder) flush(terminal events.DomainEvent) {
	batch := append(f.pending, terminal)
	f.pending = nil

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.publisher.PublishBatch(ctx, batch); err != nil {
		f.logger.Error("Failed to publish extraction events",
			zap.String("sessionID", f.sessionID),
			zap.Int("events", len(batch)),
			zap.Error(err))
	}
}
