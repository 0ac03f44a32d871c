package extraction

import (
	"brain2-extractor/domain/core/valueobjects"
)

// IdentityResolver maps session labels to minted identifiers
type IdentityResolver struct {
	labels map[string]valueobjects.NodeID
}

// NewIdentityResolver creates an empty resolver
func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{labels: make(map[string]valueobjects.NodeID)}
}

// Mint returns a fresh identifier
func (r *IdentityResolver) Mint() valueobjects.NodeID {
	return valueobjects.NewNodeID()
}

// Bind records the identifier a label stands for. The first binding wins.
func (r *IdentityResolver) Bind(label string, id valueobjects.NodeID) {
	if label == "" {
		return
	}
	if _, exists := r.labels[label]; exists {
		return
	}
	r.labels[label] = id
}

// Resolve returns the identifier for a label. A label that already has the
// canonical identifier shape is used as is.
func (r *IdentityResolver) Resolve(label string) (valueobjects.NodeID, bool) {
	if label == "" {
		return valueobjects.NodeID{}, false
	}
	if id, ok := r.labels[label]; ok {
		return id, true
	}
	if valueobjects.IsCanonicalID(label) {
		id, err := valueobjects.NewNodeIDFromString(label)
		return id, err == nil
	}
	return valueobjects.NodeID{}, false
}

// Len returns the number of bound labels
func (r *IdentityResolver) Len() int {
	return len(r.labels)
}

// Reset forgets every binding
func (r *IdentityResolver) Reset() {
	r.labels = make(map[string]valueobjects.NodeID)
}
