package entities

import (
	"time"

	"brain2-extractor/domain/config"
	"brain2-extractor/domain/core/valueobjects"
	pkgerrors "brain2-extractor/pkg/errors"
)

// NodeDraft is a node under construction. Drafts are owned by exactly one
// session and are only mutated by the assembler; Finalize is the only way
// to obtain a GraphNode from one.
type NodeDraft struct {
	ID          valueobjects.NodeID
	Label       string
	NodeType    string
	Title       string
	Description string
	Citation    string
	Confidence  string
}

// NewNodeDraft creates an empty draft carrying a freshly minted identifier
func NewNodeDraft(id valueobjects.NodeID) *NodeDraft {
	return &NodeDraft{ID: id}
}

// HasContent reports whether the draft has a title or a description
func (d *NodeDraft) HasContent() bool {
	return d.Title != "" || d.Description != ""
}

// IsFlushable reports whether the draft may be completed outside of its
// terminal field, which requires both a label and some content.
func (d *NodeDraft) IsFlushable() bool {
	return d.Label != "" && d.HasContent()
}

// Content returns the draft text as a value object
func (d *NodeDraft) Content() valueobjects.NodeContent {
	return valueobjects.NewNodeContent(d.Title, d.Description)
}

// NodePlacement carries the session-assigned attributes of a node at completion
type NodePlacement struct {
	Index     int
	IsRoot    bool
	CreatedAt time.Time
}

// Finalize applies defaulting and inference rules and returns the complete node
func (d *NodeDraft) Finalize(policy *config.ExtractionPolicy, placement NodePlacement) (GraphNode, error) {
	if !d.HasContent() {
		return GraphNode{}, pkgerrors.NewValidationError("node draft has neither title nor description")
	}

	id := d.ID
	if id.IsZero() {
		id = valueobjects.NewNodeID()
	}

	content := d.Content().WithDerivedTitle(policy.MaxTitleLength)

	category, ok := valueobjects.ParseCategory(d.NodeType)
	if !ok {
		category = InferCategory(content, policy)
	}

	confidence, ok := valueobjects.ParseConfidence(d.Confidence)
	if !ok {
		confidence = valueobjects.ClampConfidence(policy.DefaultConfidence)
	}

	return GraphNode{
		ID:          id,
		Label:       d.Label,
		Title:       content.Title(),
		Description: content.Description(),
		Category:    category,
		Citation:    d.Citation,
		Confidence:  confidence.Float64(),
		IsRoot:      placement.IsRoot,
		Position:    valueobjects.GridPosition(placement.Index, policy.LayoutColumns, policy.LayoutSpacing),
		CreatedAt:   placement.CreatedAt,
	}, nil
}

// GraphNode is a completed, emitted node. It is passed by value and never
// modified after Finalize.
type GraphNode struct {
	ID          valueobjects.NodeID   `json:"id"`
	Label       string                `json:"internal_id,omitempty"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    valueobjects.Category `json:"category"`
	Citation    string                `json:"citation,omitempty"`
	Confidence  float64               `json:"confidence"`
	IsRoot      bool                  `json:"is_root"`
	Position    valueobjects.Position `json:"position"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Content returns the node text as a value object
func (n GraphNode) Content() valueobjects.NodeContent {
	return valueobjects.NewNodeContent(n.Title, n.Description)
}

// ReconstructNode rebuilds a node from stored attributes
func ReconstructNode(
	id valueobjects.NodeID,
	label string,
	content valueobjects.NodeContent,
	category valueobjects.Category,
	citation string,
	confidence float64,
	isRoot bool,
	position valueobjects.Position,
	createdAt time.Time,
) GraphNode {
	return GraphNode{
		ID:          id,
		Label:       label,
		Title:       content.Title(),
		Description: content.Description(),
		Category:    category,
		Citation:    citation,
		Confidence:  valueobjects.ClampConfidence(confidence).Float64(),
		IsRoot:      isRoot,
		Position:    position,
		CreatedAt:   createdAt,
	}
}
