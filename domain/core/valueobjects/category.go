package valueobjects

import "strings"

// Category is the category tag of an extracted node
type Category string

const (
	CategoryConcept    Category = "concept"
	CategoryClaim      Category = "claim"
	CategoryEvidence   Category = "evidence"
	CategoryQuestion   Category = "question"
	CategoryDefinition Category = "definition"
	CategoryExample    Category = "example"
)

// Categories lists every valid category
var Categories = []Category{
	CategoryConcept,
	CategoryClaim,
	CategoryEvidence,
	CategoryQuestion,
	CategoryDefinition,
	CategoryExample,
}

// ParseCategory normalises raw text into a known category.
// The second return value is false when the text names no known category.
func ParseCategory(raw string) (Category, bool) {
	normalized := Category(strings.ToLower(strings.TrimSpace(raw)))
	if normalized.IsValid() {
		return normalized, true
	}
	return "", false
}

// IsValid reports whether c belongs to the fixed category set
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the category name
func (c Category) String() string {
	return string(c)
}
