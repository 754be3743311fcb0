package telemetry

import "nids-console/internal/taxonomy"

// DistributionEntry is one slice of a categorical distribution.
type DistributionEntry struct {
	Category string `json:"name"`
	Count    int    `json:"value"`
	Color    string `json:"color,omitempty"`
}

// SeverityDistribution counts records per recognized severity. It always
// returns one entry per taxonomy severity, in display order, tagged with its
// color. Records with an unrecognized severity are not counted.
func SeverityDistribution(records []Record) []DistributionEntry {
	counts := make(map[taxonomy.Severity]int, 4)
	for _, r := range records {
		if r.Severity.Known() {
			counts[r.Severity]++
		}
	}

	severities := taxonomy.Severities()
	entries := make([]DistributionEntry, 0, len(severities))
	for _, s := range severities {
		entries = append(entries, DistributionEntry{
			Category: s.String(),
			Count:    counts[s],
			Color:    s.Color(),
		})
	}
	return entries
}

// AttackTypeDistribution counts records per attack type in first-seen order.
// Only observed attack types appear, including UnknownAttackType.
func AttackTypeDistribution(records []Record) []DistributionEntry {
	index := make(map[string]int)
	entries := make([]DistributionEntry, 0)

	for _, r := range records {
		key := r.AttackType
		if key == "" {
			key = UnknownAttackType
		}
		if i, ok := index[key]; ok {
			entries[i].Count++
			continue
		}
		index[key] = len(entries)
		entries = append(entries, DistributionEntry{Category: key, Count: 1})
	}
	return entries
}

// SevereCount counts CRITICAL and HIGH records.
func SevereCount(records []Record) int {
	n := 0
	for _, r := range records {
		if r.Severity.IsSevere() {
			n++
		}
	}
	return n
}
