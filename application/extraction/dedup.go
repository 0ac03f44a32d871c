package extraction

import (
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/core/valueobjects"
)

// Deduplicator keeps the two membership sets of a session: applied field
// values, bounded and periodically cleared, and completed entities, kept for
// the whole session.
type Deduplicator struct {
	fields     map[string]struct{}
	fieldLimit int
	clears     int

	nodes map[string]struct{}
	edges map[entities.EdgeKey]struct{}
}

// NewDeduplicator creates a deduplicator whose field set holds at most fieldLimit keys
func NewDeduplicator(fieldLimit int) *Deduplicator {
	if fieldLimit < 1 {
		fieldLimit = 1
	}
	return &Deduplicator{
		fields:     make(map[string]struct{}, fieldLimit),
		fieldLimit: fieldLimit,
		nodes:      make(map[string]struct{}),
		edges:      make(map[entities.EdgeKey]struct{}),
	}
}

// ApplyField records a field value for a draft and reports whether it is new
func (d *Deduplicator) ApplyField(draftID valueobjects.NodeID, key FieldKey, value string) bool {
	k := draftID.String() + "|" + string(key) + "|" + value
	if _, seen := d.fields[k]; seen {
		return false
	}
	if len(d.fields) >= d.fieldLimit {
		d.fields = make(map[string]struct{}, d.fieldLimit)
		d.clears++
	}
	d.fields[k] = struct{}{}
	return true
}

// NodeKey returns the completion key of a node draft: its label, or its
// content when the stream gave no label.
func NodeKey(label, title, description string) string {
	if label != "" {
		return "label:" + label
	}
	return "content:" + title + "|" + description
}

// NodeCompleted reports whether a node with this key was already emitted
func (d *Deduplicator) NodeCompleted(key string) bool {
	_, ok := d.nodes[key]
	return ok
}

// MarkNode records an emitted node
func (d *Deduplicator) MarkNode(key string) {
	d.nodes[key] = struct{}{}
}

// EdgeCompleted reports whether an edge with this key was already emitted
func (d *Deduplicator) EdgeCompleted(key entities.EdgeKey) bool {
	_, ok := d.edges[key]
	return ok
}

// MarkEdge records an emitted edge
func (d *Deduplicator) MarkEdge(key entities.EdgeKey) {
	d.edges[key] = struct{}{}
}

// FieldSetSize returns the current size of the field set
func (d *Deduplicator) FieldSetSize() int {
	return len(d.fields)
}

// FieldSetClears returns how often the field set was cleared
func (d *Deduplicator) FieldSetClears() int {
	return d.clears
}
