package telemetry

import "time"

// Snapshot is everything the attack log dashboard renders for one poll.
type Snapshot struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	Total        int                 `json:"total"`
	HighSeverity int                 `json:"high_severity"`
	Timeline     []TimeBucket        `json:"timeline"`
	Severity     []DistributionEntry `json:"severity_distribution"`
	AttackTypes  []DistributionEntry `json:"attack_type_distribution"`
}

// Aggregate derives a Snapshot from records as of now. Every fold consumes
// the full input independently; nothing is carried across calls.
func Aggregate(records []Record, now time.Time) Snapshot {
	return Snapshot{
		GeneratedAt:  now,
		Total:        len(records),
		HighSeverity: SevereCount(records),
		Timeline:     HourlySeries(records, now),
		Severity:     SeverityDistribution(records),
		AttackTypes:  AttackTypeDistribution(records),
	}
}

// TimelineTotal sums the timeline bucket counts.
func (s Snapshot) TimelineTotal() int {
	total := 0
	for _, b := range s.Timeline {
		total += b.Count
	}
	return total
}
