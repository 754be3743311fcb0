package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Absolute file paths (Linux and Windows). URLs are masked separately.
	filePathPattern = regexp.MustCompile(`(^|\s)(/[a-zA-Z0-9_\-./]+)|([A-Z]:\\[a-zA-Z0-9_\-\\ ./]+)`)

	ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	// Backend internals leaked by the classifier's error strings.
	internalErrorPattern = regexp.MustCompile(`(?i)(mysql|sql:|database:|connection string|password=|secret=|token=|api[_-]?key=)`)
)

// ProductionMode determines whether messages are sanitized.
var ProductionMode = false

// SetProductionMode sets the production mode flag.
// Should be called during application initialization.
func SetProductionMode(production bool) {
	ProductionMode = production
}

// SanitizeError returns err with sensitive details removed in production mode.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	if !ProductionMode {
		return err
	}
	return errors.New(SanitizeString(err.Error()))
}

// SanitizeString removes sensitive information from a string in production mode.
func SanitizeString(s string) string {
	if !ProductionMode {
		return s
	}

	s = filePathPattern.ReplaceAllStringFunc(s, func(match string) string {
		trimmed := strings.TrimLeft(match, " \t")
		return match[:len(match)-len(trimmed)] + filepath.Base(trimmed)
	})

	// Keep the first two octets for debugging context.
	s = ipPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match, ".")
		if len(parts) == 4 {
			return fmt.Sprintf("%s.%s.x.x", parts[0], parts[1])
		}
		return "x.x.x.x"
	})

	if internalErrorPattern.MatchString(s) {
		s = "classifier storage operation failed"
	}

	if strings.Contains(s, "Traceback") || strings.Count(s, "\n") > 3 {
		s = "internal server error - operation failed"
	}

	return s
}

// SafeErrorMessage returns a user-safe message for errors outside the taxonomy.
func SafeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}
