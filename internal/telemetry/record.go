// Package telemetry normalizes classification events fetched from the
// classifier and folds them into the series and distributions shown on the
// attack log dashboard.
package telemetry

import (
	"strings"
	"time"

	"nids-console/internal/taxonomy"
)

// UnknownAttackType labels events that carry neither attackType nor prediction_label.
const UnknownAttackType = "Unknown"

// RawAttack is one element of the attacks array returned by the classifier.
type RawAttack struct {
	ID              int64   `json:"id"`
	Timestamp       string  `json:"timestamp"`
	Severity        string  `json:"severity"`
	AttackType      string  `json:"attackType,omitempty"`
	PredictionLabel string  `json:"prediction_label,omitempty"`
	SourceIP        string  `json:"sourceIp,omitempty"`
	DestinationIP   string  `json:"destinationIp,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	Status          string  `json:"status,omitempty"`
}

// Record is a normalized detection event.
type Record struct {
	ID         int64
	Timestamp  time.Time // zero when the wire timestamp was malformed
	Severity   taxonomy.Severity
	AttackType string
	SourceIP   string
	Confidence float64
}

// HasTimestamp reports whether the record carries a parseable timestamp.
func (r Record) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp parses the timestamp formats emitted by the classifier.
// Zone-less values are interpreted in loc; a nil loc means time.Local.
// The second return value is false for malformed input.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeRecord shapes a raw event into a Record. It never fails: a
// malformed timestamp yields a record without a timestamp and an unknown
// severity yields taxonomy.SeverityUnknown.
func NormalizeRecord(raw RawAttack, loc *time.Location) Record {
	ts, _ := ParseTimestamp(raw.Timestamp, loc)

	attackType := strings.TrimSpace(raw.AttackType)
	if attackType == "" {
		attackType = strings.TrimSpace(raw.PredictionLabel)
	}
	if attackType == "" {
		attackType = UnknownAttackType
	}

	return Record{
		ID:         raw.ID,
		Timestamp:  ts,
		Severity:   taxonomy.ParseSeverity(raw.Severity),
		AttackType: attackType,
		SourceIP:   raw.SourceIP,
		Confidence: raw.Confidence,
	}
}

// NormalizeRecords normalizes a whole fetch result into a new slice.
func NormalizeRecords(raws []RawAttack, loc *time.Location) []Record {
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, NormalizeRecord(raw, loc))
	}
	return records
}
