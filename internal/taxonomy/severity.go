// Package taxonomy defines the closed severity and risk vocabularies shared by
// the aggregation, batch and presentation layers.
package taxonomy

import "strings"

// Severity is the severity of a detection event reported by the classifier.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"

	// SeverityUnknown is assigned to any value outside the taxonomy.
	SeverityUnknown Severity = "UNKNOWN"
)

// UnknownColor is the display color for values outside either taxonomy.
const UnknownColor = "#6b7280"

var severityOrder = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
}

var severityColors = map[Severity]string{
	SeverityCritical: "#ff4444",
	SeverityHigh:     "#ff6b6b",
	SeverityMedium:   "#ffa726",
	SeverityLow:      "#42a5f5",
}

// Severities returns the recognized severities in display order.
func Severities() []Severity {
	out := make([]Severity, len(severityOrder))
	copy(out, severityOrder)
	return out
}

// ParseSeverity maps a wire value to a Severity, case-insensitively.
// Unrecognized values map to SeverityUnknown.
func ParseSeverity(s string) Severity {
	candidate := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityColors[candidate]; ok {
		return candidate
	}
	return SeverityUnknown
}

// Known reports whether s is a member of the taxonomy.
func (s Severity) Known() bool {
	_, ok := severityColors[s]
	return ok
}

// IsSevere reports whether the severity counts toward the blocked tally.
func (s Severity) IsSevere() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Color returns the fixed display color for the severity.
func (s Severity) Color() string {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return UnknownColor
}

func (s Severity) String() string {
	return string(s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s), nil
}
