package events

import (
	"time"

	"brain2-extractor/domain/core/entities"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields. The aggregate of every extraction
// event is the session that produced it.
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event types
const (
	TypeNodeReady        = "extraction.node_ready"
	TypeEdgeReady        = "extraction.edge_ready"
	TypeFieldUpdated     = "extraction.field_updated"
	TypeSessionCompleted = "extraction.session_completed"
	TypeSessionFailed    = "extraction.session_failed"
)

func newBase(sessionID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: sessionID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// NodeReady is raised when a node completes
type NodeReady struct {
	BaseEvent
	Node entities.GraphNode `json:"node"`
}

// NewNodeReady creates a NodeReady event
func NewNodeReady(sessionID string, node entities.GraphNode, timestamp time.Time) NodeReady {
	return NodeReady{
		BaseEvent: newBase(sessionID, TypeNodeReady, timestamp),
		Node:      node,
	}
}

// EdgeReady is raised when an edge completes
type EdgeReady struct {
	BaseEvent
	Edge entities.GraphEdge `json:"edge"`
}

// NewEdgeReady creates an EdgeReady event
func NewEdgeReady(sessionID string, edge entities.GraphEdge, timestamp time.Time) EdgeReady {
	return EdgeReady{
		BaseEvent: newBase(sessionID, TypeEdgeReady, timestamp),
		Edge:      edge,
	}
}

// FieldUpdated is raised for every accepted field
type FieldUpdated struct {
	BaseEvent
	Label string `json:"label"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewFieldUpdated creates a FieldUpdated event
func NewFieldUpdated(sessionID, label, key, value string, timestamp time.Time) FieldUpdated {
	return FieldUpdated{
		BaseEvent: newBase(sessionID, TypeFieldUpdated, timestamp),
		Label:     label,
		Key:       key,
		Value:     value,
	}
}

// SessionStats are the counters reported when a session completes
type SessionStats struct {
	NodesEmitted          int    `json:"nodes_emitted"`
	EdgesEmitted          int    `json:"edges_emitted"`
	FieldsApplied         int    `json:"fields_applied"`
	FieldsDropped         int    `json:"fields_dropped"`
	FallbackTrims         int    `json:"fallback_trims"`
	PendingEdgesDiscarded int    `json:"pending_edges_discarded"`
	Reason                string `json:"reason"`
}

// SessionCompleted is raised exactly once when a session finalizes
type SessionCompleted struct {
	BaseEvent
	Stats SessionStats `json:"stats"`
}

// NewSessionCompleted creates a SessionCompleted event
func NewSessionCompleted(sessionID string, stats SessionStats, timestamp time.Time) SessionCompleted {
	return SessionCompleted{
		BaseEvent: newBase(sessionID, TypeSessionCompleted, timestamp),
		Stats:     stats,
	}
}

// SessionFailed is raised when the upstream stream reports a failure
type SessionFailed struct {
	BaseEvent
	Cause string `json:"cause"`
}

// NewSessionFailed creates a SessionFailed event
func NewSessionFailed(sessionID string, cause error, timestamp time.Time) SessionFailed {
	message := "unknown upstream failure"
	if cause != nil {
		message = cause.Error()
	}
	return SessionFailed{
		BaseEvent: newBase(sessionID, TypeSessionFailed, timestamp),
		Cause:     message,
	}
}

// IsTerminal reports whether the event ends its session's event stream
func IsTerminal(event DomainEvent) bool {
	switch event.GetEventType() {
	case TypeSessionCompleted, TypeSessionFailed:
		return true
	default:
		return false
	}
}
