package valueobjects

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// NodeContent is a value object for the text of an extracted node
type NodeContent struct {
	title       string
	description string
}

// NewNodeContent creates content, trimming surrounding whitespace
func NewNodeContent(title, description string) NodeContent {
	return NodeContent{
		title:       strings.TrimSpace(title),
		description: strings.TrimSpace(description),
	}
}

// Title returns the content title
func (c NodeContent) Title() string {
	return c.title
}

// Description returns the content description
func (c NodeContent) Description() string {
	return c.description
}

// IsEmpty checks if content is empty
func (c NodeContent) IsEmpty() bool {
	return c.title == "" && c.description == ""
}

// Text returns title and description joined for keyword matching
func (c NodeContent) Text() string {
	if c.title == "" {
		return c.description
	}
	if c.description == "" {
		return c.title
	}
	return c.title + " " + c.description
}

// WithDerivedTitle returns content whose title is never empty when the
// description is not: a missing title is cut from the description.
func (c NodeContent) WithDerivedTitle(maxLength int) NodeContent {
	if c.title != "" || c.description == "" {
		return c
	}
	return NodeContent{
		title:       Truncate(c.description, maxLength),
		description: c.description,
	}
}

// Equals checks if two contents are equal
func (c NodeContent) Equals(other NodeContent) bool {
	return c.title == other.title && c.description == other.description
}

// Truncate shortens text to at most maxLength runes, preferring to cut at a
// word boundary and marking the cut with an ellipsis.
func Truncate(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	if maxLength <= 3 {
		return string([]rune(text)[:maxLength])
	}

	runes := []rune(text)[:maxLength-3]
	cut := string(runes)
	if idx := strings.LastIndexByte(cut, ' '); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

// Confidence is a score in [0, 1]
type Confidence float64

// ParseConfidence reads a confidence score, accepting fractions and
// percentages. Out of range values are clamped; unparseable text reports false.
func ParseConfidence(raw string) (Confidence, bool) {
	raw = strings.TrimSpace(raw)
	percent := strings.HasSuffix(raw, "%")
	raw = strings.TrimSuffix(raw, "%")

	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	if percent || value > 1 {
		value = value / 100
	}
	return ClampConfidence(value), true
}

// ClampConfidence bounds a score to [0, 1]
func ClampConfidence(value float64) Confidence {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return Confidence(value)
	}
}

// Float64 returns the score
func (c Confidence) Float64() float64 {
	return float64(c)
}
