package ports

import (
	"context"
	"time"

	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/domain/events"
)

// GraphSink persists the graph extracted by a session.
// This is a port in hexagonal architecture - the engine doesn't know about the implementation
type GraphSink interface {
	// Save persists the graph of a completed session (create or replace)
	Save(ctx context.Context, graph *aggregates.Graph) error

	// Load retrieves the graph of a session
	Load(ctx context.Context, sessionID string) (*aggregates.Graph, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// StreamSource yields the fragments of an upstream text stream in arrival
// order. Next returns io.EOF once the stream has ended normally; any other
// error is an upstream failure.
type StreamSource interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache for ttl
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error
}
