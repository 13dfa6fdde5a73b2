package config

import (
	"path"
	"strings"
)

// Normalize trims config patterns and removes empty values.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExcludeTables = normalizePatterns(c.ExcludeTables)
	c.ExcludeDatasets = normalizePatterns(c.ExcludeDatasets)
	c.Category = strings.ToLower(strings.TrimSpace(c.Category))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
}

// IsDatasetExcluded reports whether dataset matches exclude patterns.
func (c *Config) IsDatasetExcluded(dataset string) bool {
	if c == nil || len(c.ExcludeDatasets) == 0 {
		return false
	}

	value := normalizePattern(dataset)
	if value == "" {
		return false
	}

	for _, pattern := range c.ExcludeDatasets {
		if patternMatches(pattern, value) {
			return true
		}
	}

	return false
}

// IsTableExcluded reports whether dataset.table matches the exclude
// patterns, either by its full name or by the bare table name.
func (c *Config) IsTableExcluded(dataset, table string) bool {
	if c == nil {
		return false
	}

	if dataset != "" && c.IsDatasetExcluded(dataset) {
		return true
	}
	if len(c.ExcludeTables) == 0 {
		return false
	}

	fullName := normalizePattern(dataset + "." + table)
	bare := normalizePattern(table)
	for _, pattern := range c.ExcludeTables {
		if patternMatches(pattern, fullName) {
			return true
		}
		if bare != "" && patternMatches(pattern, bare) {
			return true
		}
	}

	return false
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, pattern := range values {
		p := normalizePattern(pattern)
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizePattern(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func patternMatches(pattern, value string) bool {
	normalizedPattern := normalizePattern(pattern)
	normalizedValue := normalizePattern(value)
	if normalizedPattern == "" || normalizedValue == "" {
		return false
	}

	// Invalid glob patterns are treated as exact matches.
	matched, err := path.Match(normalizedPattern, normalizedValue)
	if err == nil {
		return matched
	}
	return normalizedPattern == normalizedValue
}
