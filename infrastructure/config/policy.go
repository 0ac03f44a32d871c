package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	domainconfig "brain2-extractor/domain/config"
)

// LoadPolicy builds the extraction policy in layers, lowest priority first:
//  1. the preset for the environment
//  2. the YAML policy file, when one is configured
//  3. EXTRACT_* environment variables
func LoadPolicy(cfg *Config) (*domainconfig.ExtractionPolicy, error) {
	policy := domainconfig.LoadExtractionPolicy(cfg.Environment)

	if cfg.PolicyFile != "" {
		if err := loadPolicyFile(cfg.PolicyFile, policy); err != nil {
			return nil, err
		}
	}

	applyPolicyEnv(policy)

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// loadPolicyFile overlays the file onto policy; keys absent from the file keep their value
func loadPolicyFile(path string, policy *domainconfig.ExtractionPolicy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, policy); err != nil {
		return fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return nil
}

func applyPolicyEnv(policy *domainconfig.ExtractionPolicy) {
	policy.DefaultCategory = getEnv("EXTRACT_DEFAULT_CATEGORY", policy.DefaultCategory)
	policy.DefaultConfidence = getEnvFloat("EXTRACT_DEFAULT_CONFIDENCE", policy.DefaultConfidence)
	policy.MaxTitleLength = getEnvInt("EXTRACT_MAX_TITLE_LENGTH", policy.MaxTitleLength)
	policy.IdleTimeout = getEnvDuration("EXTRACT_IDLE_TIMEOUT", policy.IdleTimeout)
	policy.BufferCeiling = getEnvInt("EXTRACT_BUFFER_CEILING", policy.BufferCeiling)
	policy.FallbackTail = getEnvInt("EXTRACT_FALLBACK_TAIL", policy.FallbackTail)
	policy.FieldDedupLimit = getEnvInt("EXTRACT_FIELD_DEDUP_LIMIT", policy.FieldDedupLimit)
}
