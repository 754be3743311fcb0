package report

import (
	"math"
	"strconv"

	"nids-console/internal/taxonomy"
)

// Stats summarizes a completed batch.
type Stats struct {
	Total              int     `json:"total"`
	NormalCount        int     `json:"normal_count"`
	AttackCount        int     `json:"attack_count"`
	HighRiskCount      int     `json:"high_risk_count"`
	NormalPercentage   float64 `json:"normal_percentage"`
	AttackPercentage   float64 `json:"attack_percentage"`
	HighRiskPercentage float64 `json:"high_risk_percentage"`
}

// ComputeStats summarizes predictions. The boolean is false for an empty
// batch, which has no statistics.
func ComputeStats(predictions []Prediction) (Stats, bool) {
	total := len(predictions)
	if total == 0 {
		return Stats{}, false
	}

	s := Stats{Total: total}
	for _, p := range predictions {
		if p.IsNormal() {
			s.NormalCount++
		}
		if p.RiskLevel.IsHighRisk() {
			s.HighRiskCount++
		}
	}
	s.AttackCount = total - s.NormalCount

	s.NormalPercentage = Percentage(s.NormalCount, total)
	s.AttackPercentage = Percentage(s.AttackCount, total)
	s.HighRiskPercentage = Percentage(s.HighRiskCount, total)
	return s, true
}

// Percentage returns count/total*100 rounded to one decimal, or 0 when total
// is not positive.
func Percentage(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// FormatPercent renders a percentage with exactly one decimal, e.g. "40.0".
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

// RiskBucket is one bar of the risk histogram.
type RiskBucket struct {
	Level      taxonomy.RiskLevel `json:"level"`
	Count      int                `json:"count"`
	Percentage float64            `json:"percentage"`
	Color      string             `json:"color"`
}

// RiskHistogram tallies predictions per risk level in display order
// NORMAL, LOW, MEDIUM, HIGH, CRITICAL. Unknown risk levels are not tallied.
func RiskHistogram(predictions []Prediction) []RiskBucket {
	counts := make(map[taxonomy.RiskLevel]int, 5)
	for _, p := range predictions {
		counts[p.RiskLevel]++
	}

	levels := taxonomy.RiskLevels()
	buckets := make([]RiskBucket, 0, len(levels))
	for _, level := range levels {
		buckets = append(buckets, RiskBucket{
			Level:      level,
			Count:      counts[level],
			Percentage: Percentage(counts[level], len(predictions)),
			Color:      level.Color(),
		})
	}
	return buckets
}
