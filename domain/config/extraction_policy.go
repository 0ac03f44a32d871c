package config

import (
	"fmt"
	"time"

	"brain2-extractor/pkg/utils"
)

// Category names recognised by the policy. They mirror valueobjects.Category,
// which cannot be imported here without a cycle.
var knownCategories = map[string]bool{
	"concept":    true,
	"claim":      true,
	"evidence":   true,
	"question":   true,
	"definition": true,
	"example":    true,
}

// ExtractionPolicy holds the product rules of the extraction engine.
// None of these values are structural: they tune defaults, heuristics and
// limits, and can be replaced per environment or from a policy file.
type ExtractionPolicy struct {
	// Category inference
	DefaultCategory   string              `yaml:"default_category" validate:"required"`
	CategoryPriority  []string            `yaml:"category_priority" validate:"dive,required"`
	CategoryKeywords  map[string][]string `yaml:"category_keywords"`
	DefaultConfidence float64             `yaml:"default_confidence" validate:"gte=0,lte=1"`
	MaxTitleLength    int                 `yaml:"max_title_length" validate:"min=8"`

	// Session limits
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	BufferCeiling   int           `yaml:"buffer_ceiling" validate:"min=256"`
	FallbackTail    int           `yaml:"fallback_tail" validate:"min=64,ltfield=BufferCeiling"`
	FieldDedupLimit int           `yaml:"field_dedup_limit" validate:"min=16"`

	// Layout
	LayoutSpacing float64 `yaml:"layout_spacing" validate:"gt=0"`
	LayoutColumns int     `yaml:"layout_columns" validate:"min=1"`
}

// DefaultExtractionPolicy returns the default extraction policy
func DefaultExtractionPolicy() *ExtractionPolicy {
	return &ExtractionPolicy{
		DefaultCategory:  "concept",
		CategoryPriority: []string{"question", "definition", "example", "evidence", "claim"},
		CategoryKeywords: map[string][]string{
			"question":   {"?", "why", "how come", "what if", "whether", "unclear", "open question"},
			"definition": {"defined as", "refers to", "means", "definition", "is a term"},
			"example":    {"for example", "e.g.", "such as", "for instance", "case study"},
			"evidence":   {"study", "studies", "data", "measured", "experiment", "survey", "percent", "found that", "evidence"},
			"claim":      {"argue", "argues", "claim", "claims", "should", "must", "believe", "propose", "asserts"},
		},
		DefaultConfidence: 0.8,
		MaxTitleLength:    50,

		IdleTimeout:     30 * time.Second,
		BufferCeiling:   4000,
		FallbackTail:    1000,
		FieldDedupLimit: 500,

		LayoutSpacing: 220,
		LayoutColumns: 5,
	}
}

// ProductionExtractionPolicy returns production-specific policy
func ProductionExtractionPolicy() *ExtractionPolicy {
	policy := DefaultExtractionPolicy()

	// Slow upstream generations must not be cut short
	policy.IdleTimeout = 60 * time.Second
	policy.BufferCeiling = 8000
	policy.FallbackTail = 2000

	return policy
}

// DevelopmentExtractionPolicy returns development-specific policy
func DevelopmentExtractionPolicy() *ExtractionPolicy {
	policy := DefaultExtractionPolicy()

	policy.IdleTimeout = 10 * time.Second

	return policy
}

// LoadExtractionPolicy loads the extraction policy based on environment
func LoadExtractionPolicy(environment string) *ExtractionPolicy {
	switch environment {
	case "production":
		return ProductionExtractionPolicy()
	case "development":
		return DevelopmentExtractionPolicy()
	default:
		return DefaultExtractionPolicy()
	}
}

// Validate checks if the policy is usable by the engine
func (p *ExtractionPolicy) Validate() error {
	if err := utils.ValidateStruct(p); err != nil {
		return fmt.Errorf("invalid extraction policy: %w", err)
	}

	if !knownCategories[p.DefaultCategory] {
		return fmt.Errorf("invalid extraction policy: unknown default category %q", p.DefaultCategory)
	}

	for _, category := range p.CategoryPriority {
		if !knownCategories[category] {
			return fmt.Errorf("invalid extraction policy: unknown category %q in priority", category)
		}
	}

	for category := range p.CategoryKeywords {
		if !knownCategories[category] {
			return fmt.Errorf("invalid extraction policy: unknown category %q in keywords", category)
		}
	}

	return nil
}

// Clone returns a deep copy so sessions never share mutable policy state
func (p *ExtractionPolicy) Clone() *ExtractionPolicy {
	clone := *p

	clone.CategoryPriority = append([]string(nil), p.CategoryPriority...)
	clone.CategoryKeywords = make(map[string][]string, len(p.CategoryKeywords))
	for category, keywords := range p.CategoryKeywords {
		clone.CategoryKeywords[category] = append([]string(nil), keywords...)
	}

	return &clone
}
