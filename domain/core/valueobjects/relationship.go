package valueobjects

import "strings"

// RelationshipType defines the type of a directed edge
type RelationshipType string

const (
	RelationSupport    RelationshipType = "support"
	RelationContradict RelationshipType = "contradict"
	RelationElaborate  RelationshipType = "elaborate"
	RelationCause      RelationshipType = "cause"
	RelationExampleOf  RelationshipType = "example_of"
	RelationQuestion   RelationshipType = "question"
	RelationRelate     RelationshipType = "relate"
)

// ConnectionStyle is the rendering hint attached to an edge
type ConnectionStyle string

const (
	StyleSolid    ConnectionStyle = "solid"
	StyleDashed   ConnectionStyle = "dashed"
	StyleDotted   ConnectionStyle = "dotted"
	StyleAnimated ConnectionStyle = "animated"
)

var relationshipStyles = map[RelationshipType]ConnectionStyle{
	RelationSupport:    StyleSolid,
	RelationContradict: StyleDashed,
	RelationElaborate:  StyleSolid,
	RelationCause:      StyleAnimated,
	RelationExampleOf:  StyleDotted,
	RelationQuestion:   StyleDotted,
	RelationRelate:     StyleSolid,
}

// relationshipAliases maps common spellings emitted by generators onto the fixed set
var relationshipAliases = map[string]RelationshipType{
	"supports":    RelationSupport,
	"contradicts": RelationContradict,
	"refutes":     RelationContradict,
	"elaborates":  RelationElaborate,
	"causes":      RelationCause,
	"example":     RelationExampleOf,
	"related":     RelationRelate,
	"relates":     RelationRelate,
}

// ParseRelationshipType normalises raw text into a relationship type.
// Unknown values fall back to RelationRelate and report false.
func ParseRelationshipType(raw string) (RelationshipType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	rel := RelationshipType(normalized)
	if _, ok := relationshipStyles[rel]; ok {
		return rel, true
	}
	if alias, ok := relationshipAliases[normalized]; ok {
		return alias, true
	}
	return RelationRelate, false
}

// ConnectionStyle returns the rendering style for the relationship
func (r RelationshipType) ConnectionStyle() ConnectionStyle {
	if style, ok := relationshipStyles[r]; ok {
		return style
	}
	return StyleSolid
}

// String returns the relationship name
func (r RelationshipType) String() string {
	return string(r)
}
