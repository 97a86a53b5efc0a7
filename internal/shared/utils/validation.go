package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Payload size limits (in bytes)
const (
	MaxJSONSize     = 1 * 1024 * 1024  // 1MB - request bodies other than snapshots
	MaxSnapshotSize = 16 * 1024 * 1024 // 16MB - one serialized DOM snapshot
	MaxScriptSize   = 16 * 1024        // 16KB - rule target scripts
)

// Structural limits
const (
	MaxIDLength      = 128
	MaxPatternLength = 256
	MaxConfigDepth   = 8
	MaxBatchSize     = 100
)

var (
	// SafeIDPattern allows alphanumeric, dots, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	// PatternChars allows topic patterns and message types: ids, separators and wildcards
	PatternChars = regexp.MustCompile(`^[a-zA-Z0-9._:*-]+$`)
)

// ValidateSize checks a payload against a limit
func ValidateSize(data []byte, limit int) error {
	if len(data) > limit {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(data), limit)
	}
	return nil
}

// ValidateJSONDepth checks decoded JSON nesting against maxDepth
func ValidateJSONDepth(data any, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data any, currentDepth int, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("JSON nesting depth %d exceeds maximum %d", currentDepth, maxDepth)
	}

	switch v := data.(type) {
	case map[string]any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}

	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an id such as a site, page, container or rule id
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidatePattern validates a message type or topic pattern
func ValidatePattern(pattern, fieldName string, required bool) error {
	if err := ValidateString(pattern, fieldName, 1, MaxPatternLength, required); err != nil {
		return err
	}

	if pattern != "" && !PatternChars.MatchString(pattern) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}
