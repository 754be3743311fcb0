package taxonomy

import "strings"

// RiskLevel is the risk assigned to one batch-classified row. It extends the
// severity vocabulary with NORMAL.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "NORMAL"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"

	// RiskUnknown is assigned to any value outside the taxonomy.
	RiskUnknown RiskLevel = "UNKNOWN"
)

var riskOrder = []RiskLevel{
	RiskNormal,
	RiskLow,
	RiskMedium,
	RiskHigh,
	RiskCritical,
}

var riskColors = map[RiskLevel]string{
	RiskNormal:   "#22c55e",
	RiskLow:      "#3b82f6",
	RiskMedium:   "#f59e0b",
	RiskHigh:     "#ef4444",
	RiskCritical: "#dc2626",
}

// RiskLevels returns the recognized risk levels in display order.
func RiskLevels() []RiskLevel {
	out := make([]RiskLevel, len(riskOrder))
	copy(out, riskOrder)
	return out
}

// ParseRiskLevel maps a wire value to a RiskLevel, case-insensitively.
// Unrecognized and empty values map to RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	candidate := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := riskColors[candidate]; ok {
		return candidate
	}
	return RiskUnknown
}

// Known reports whether r is a member of the taxonomy.
func (r RiskLevel) Known() bool {
	_, ok := riskColors[r]
	return ok
}

// IsHighRisk reports whether r is HIGH or CRITICAL.
func (r RiskLevel) IsHighRisk() bool {
	return r == RiskHigh || r == RiskCritical
}

// Color returns the fixed display color for the risk level.
func (r RiskLevel) Color() string {
	if c, ok := riskColors[r]; ok {
		return c
	}
	return UnknownColor
}

func (r RiskLevel) String() string {
	if r == "" {
		return string(RiskUnknown)
	}
	return string(r)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(text []byte) error {
	*r = ParseRiskLevel(string(text))
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
