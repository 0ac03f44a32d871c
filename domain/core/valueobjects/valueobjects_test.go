package valueobjects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeID(t *testing.T) {
	id := NewNodeID()
	assert.True(t, IsCanonicalID(id.String()))
	assert.False(t, id.IsZero())

	parsed, err := NewNodeIDFromString(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equals(parsed))

	_, err = NewNodeIDFromString("")
	assert.Error(t, err)
	_, err = NewNodeIDFromString("a1")
	assert.Error(t, err)

	upper, err := NewNodeIDFromString("3F2B8C1E-9D4A-4E7B-8C2D-1A2B3C4D5E6F")
	require.NoError(t, err)
	lower, err := NewNodeIDFromString("3f2b8c1e-9d4a-4e7b-8c2d-1a2b3c4d5e6f")
	require.NoError(t, err)
	assert.True(t, upper.Equals(lower))
	assert.Equal(t, "3f2b8c1e-9d4a-4e7b-8c2d-1a2b3c4d5e6f", upper.String())

	data, err := json.Marshal(id)
	require.NoError(t, err)
	var decoded NodeID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Question ")
	assert.True(t, ok)
	assert.Equal(t, CategoryQuestion, c)

	_, ok = ParseCategory("topic")
	assert.False(t, ok)
	_, ok = ParseCategory("")
	assert.False(t, ok)
}

func TestParseRelationshipType(t *testing.T) {
	tests := []struct {
		raw   string
		want  RelationshipType
		known bool
		style ConnectionStyle
	}{
		{"support", RelationSupport, true, StyleSolid},
		{"Contradict", RelationContradict, true, StyleDashed},
		{"example-of", RelationExampleOf, true, StyleDotted},
		{"example of", RelationExampleOf, true, StyleDotted},
		{"causes", RelationCause, true, StyleAnimated},
		{"question", RelationQuestion, true, StyleDotted},
		{"nonsense", RelationRelate, false, StyleSolid},
		{"", RelationRelate, false, StyleSolid},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, known := ParseRelationshipType(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.style, got.ConnectionStyle())
		})
	}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		raw  string
		want Confidence
		ok   bool
	}{
		{"0.7", 0.7, true},
		{" 1 ", 1, true},
		{"85%", 0.85, true},
		{"85", 0.85, true},
		{"-0.5", 0, true},
		{"250", 1, true},
		{"high", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseConfidence(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, float64(tt.want), got.Float64(), 1e-9)
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"fits", "short text", 50, "short text"},
		{"word boundary", "the quick brown fox jumps over the lazy dog", 20, "the quick brown..."},
		{"no space", "abcdefghijklmnopqrstuvwxyz", 10, "abcdefg..."},
		{"runes", "ääääääääää", 6, "äää..."},
		{"tiny limit", "abcdef", 2, "ab"},
		{"zero", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.max))
		})
	}
}

func TestNodeContent_WithDerivedTitle(t *testing.T) {
	c := NewNodeContent("", "  a description that is long enough to be cut  ").WithDerivedTitle(16)
	assert.Equal(t, "a description...", c.Title())
	assert.Equal(t, "a description that is long enough to be cut", c.Description())

	kept := NewNodeContent("Title", "desc").WithDerivedTitle(3)
	assert.Equal(t, "Title", kept.Title())

	assert.True(t, NewNodeContent(" ", "").IsEmpty())
}

func TestGridPosition(t *testing.T) {
	assert.Equal(t, Position{X: 0, Y: 0}, GridPosition(0, 5, 200))
	assert.Equal(t, Position{X: 800, Y: 0}, GridPosition(4, 5, 200))
	assert.Equal(t, Position{X: 100, Y: 200}, GridPosition(5, 5, 200))
	assert.Equal(t, Position{X: 0, Y: 400}, GridPosition(10, 5, 200))
	assert.Equal(t, Position{X: 100, Y: 600}, GridPosition(3, 0, 200))
}
