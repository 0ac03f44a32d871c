package entities

import (
	"time"

	"brain2-extractor/domain/core/valueobjects"
	pkgerrors "brain2-extractor/pkg/errors"
)

// EdgeDraft is an edge under construction, holding raw session labels
type EdgeDraft struct {
	ID           valueobjects.NodeID
	SourceLabel  string
	TargetLabel  string
	Relationship string
	HasType      bool
}

// NewEdgeDraft creates an empty edge draft carrying a freshly minted identifier
func NewEdgeDraft(id valueobjects.NodeID) *EdgeDraft {
	return &EdgeDraft{ID: id}
}

// HasEndpoints reports whether both endpoint labels are present
func (d *EdgeDraft) HasEndpoints() bool {
	return d.SourceLabel != "" && d.TargetLabel != ""
}

// Finalize validates the resolved endpoints and returns the complete edge
func (d *EdgeDraft) Finalize(sourceID, targetID valueobjects.NodeID, createdAt time.Time) (GraphEdge, error) {
	if sourceID.IsZero() || targetID.IsZero() {
		return GraphEdge{}, pkgerrors.NewValidationError("edge endpoints are unresolved")
	}
	if sourceID.Equals(targetID) {
		return GraphEdge{}, pkgerrors.NewValidationError("self-referencing edges are not allowed")
	}

	id := d.ID
	if id.IsZero() {
		id = valueobjects.NewNodeID()
	}

	relationship, _ := valueobjects.ParseRelationshipType(d.Relationship)

	return GraphEdge{
		ID:           id,
		SourceID:     sourceID,
		TargetID:     targetID,
		Relationship: relationship,
		Style:        relationship.ConnectionStyle(),
		CreatedAt:    createdAt,
	}, nil
}

// Key returns the identity of the edge draft once its endpoints are resolved
func (d *EdgeDraft) Key(sourceID, targetID valueobjects.NodeID) EdgeKey {
	relationship, _ := valueobjects.ParseRelationshipType(d.Relationship)
	return EdgeKey{Source: sourceID, Target: targetID, Relationship: relationship}
}

// EdgeKey identifies an edge within a session
type EdgeKey struct {
	Source       valueobjects.NodeID
	Target       valueobjects.NodeID
	Relationship valueobjects.RelationshipType
}

// String returns the key in source|target|type form
func (k EdgeKey) String() string {
	return k.Source.String() + "|" + k.Target.String() + "|" + k.Relationship.String()
}

// GraphEdge is a completed, emitted edge
type GraphEdge struct {
	ID           valueobjects.NodeID           `json:"id"`
	SourceID     valueobjects.NodeID           `json:"source_id"`
	TargetID     valueobjects.NodeID           `json:"target_id"`
	Relationship valueobjects.RelationshipType `json:"relationship"`
	Style        valueobjects.ConnectionStyle  `json:"style"`
	CreatedAt    time.Time                     `json:"created_at"`
}

// Key returns the identity of the edge
func (e GraphEdge) Key() EdgeKey {
	return EdgeKey{Source: e.SourceID, Target: e.TargetID, Relationship: e.Relationship}
}
