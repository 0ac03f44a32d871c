package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExtractionPolicy(t *testing.T) {
	tests := []struct {
		env         string
		idleTimeout time.Duration
		ceiling     int
	}{
		{"production", 60 * time.Second, 8000},
		{"development", 10 * time.Second, 4000},
		{"staging", 30 * time.Second, 4000},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			policy := LoadExtractionPolicy(tt.env)
			require.NoError(t, policy.Validate())
			assert.Equal(t, tt.idleTimeout, policy.IdleTimeout)
			assert.Equal(t, tt.ceiling, policy.BufferCeiling)
		})
	}
}

func TestExtractionPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ExtractionPolicy)
	}{
		{"unknown default category", func(p *ExtractionPolicy) { p.DefaultCategory = "topic" }},
		{"empty default category", func(p *ExtractionPolicy) { p.DefaultCategory = "" }},
		{"unknown priority category", func(p *ExtractionPolicy) { p.CategoryPriority = []string{"mood"} }},
		{"unknown keyword category", func(p *ExtractionPolicy) { p.CategoryKeywords["mood"] = []string{"happy"} }},
		{"confidence above one", func(p *ExtractionPolicy) { p.DefaultConfidence = 1.5 }},
		{"zero idle timeout", func(p *ExtractionPolicy) { p.IdleTimeout = 0 }},
		{"tail not below ceiling", func(p *ExtractionPolicy) { p.FallbackTail = p.BufferCeiling }},
		{"tiny dedup limit", func(p *ExtractionPolicy) { p.FieldDedupLimit = 1 }},
		{"no columns", func(p *ExtractionPolicy) { p.LayoutColumns = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultExtractionPolicy()
			tt.mutate(policy)
			assert.Error(t, policy.Validate())
		})
	}
}

func TestExtractionPolicy_Clone(t *testing.T) {
	original := DefaultExtractionPolicy()
	clone := original.Clone()

	clone.CategoryKeywords["question"][0] = "changed"
	clone.CategoryPriority[0] = "claim"
	clone.IdleTimeout = time.Hour

	assert.Equal(t, "?", original.CategoryKeywords["question"][0])
	assert.Equal(t, "question", original.CategoryPriority[0])
	assert.Equal(t, 30*time.Second, original.IdleTimeout)
}
