// Package report summarizes completed batch classifications and serializes
// them to the downloadable CSV report.
package report

import (
	"strings"

	"nids-console/internal/taxonomy"
)

// Probabilities are the normal/attack percentages reported for one row.
// They are not cross-validated against each other.
type Probabilities struct {
	Normal float64 `json:"normal"`
	Attack float64 `json:"attack"`
}

// Prediction is one batch-classification outcome for one input row.
type Prediction struct {
	Label         string             `json:"prediction_label"`
	RiskLevel     taxonomy.RiskLevel `json:"risk_level"`
	Confidence    float64            `json:"confidence"`
	Probabilities Probabilities      `json:"probabilities"`
	AttackType    string             `json:"attack_type,omitempty"`
}

// IsNormal reports whether the label is "normal", case-insensitively.
func (p Prediction) IsNormal() bool {
	return strings.EqualFold(strings.TrimSpace(p.Label), "normal")
}
