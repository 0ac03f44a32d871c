package entities

import (
	"strings"
	"unicode"

	"brain2-extractor/domain/config"
	"brain2-extractor/domain/core/valueobjects"
)

// InferCategory picks a category from keyword matches over the node text.
// Categories are tried in policy priority order; the policy default is
// returned when nothing matches, so the result is never empty.
func InferCategory(content valueobjects.NodeContent, policy *config.ExtractionPolicy) valueobjects.Category {
	raw := strings.ToLower(content.Text())
	normalized := " " + normalizeText(raw) + " "

	for _, name := range policy.CategoryPriority {
		for _, keyword := range policy.CategoryKeywords[name] {
			if matchesKeyword(raw, normalized, keyword) {
				if category, ok := valueobjects.ParseCategory(name); ok {
					return category
				}
			}
		}
	}

	if category, ok := valueobjects.ParseCategory(policy.DefaultCategory); ok {
		return category
	}
	return valueobjects.CategoryConcept
}

// DeriveTitle cuts a title from the description
func DeriveTitle(description string, maxLength int) string {
	return valueobjects.Truncate(description, maxLength)
}

// matchesKeyword matches whole words or phrases; keywords made only of
// punctuation such as "?" are matched as plain substrings.
func matchesKeyword(raw, normalized, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}

	words := normalizeText(keyword)
	if words == "" {
		return strings.Contains(raw, keyword)
	}
	return strings.Contains(normalized, " "+words+" ")
}

// normalizeText lowercases text and collapses every run of non letters and
// digits into a single space.
func normalizeText(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
