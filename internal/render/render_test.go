package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"nids-console/internal/batch"
	"nids-console/internal/report"
	"nids-console/internal/taxonomy"
	"nids-console/internal/telemetry"
)

func sampleSnapshot() telemetry.Snapshot {
	now := time.Date(2025, 12, 13, 10, 30, 0, 0, time.UTC)
	return telemetry.Aggregate([]telemetry.Record{
		{ID: 1, Timestamp: now.Add(-time.Minute), Severity: taxonomy.SeverityCritical, AttackType: "DoS"},
		{ID: 2, Timestamp: now.Add(-90 * time.Minute), Severity: taxonomy.SeverityMedium, AttackType: "Probe"},
	}, now)
}

func sampleSession() batch.Session {
	results := []report.Prediction{
		{Label: "normal", RiskLevel: taxonomy.RiskNormal, Confidence: 99.5},
		{Label: "attack", RiskLevel: taxonomy.RiskCritical, Confidence: 91, AttackType: "DoS"},
		{Label: "attack", RiskLevel: taxonomy.RiskHigh, Confidence: 80, AttackType: "R2L"},
	}
	stats, ok := report.ComputeStats(results)
	return batch.Session{
		State:      batch.StateSucceeded,
		Results:    results,
		Stats:      stats,
		HasStats:   ok,
		SavedCount: 3,
		Message:    "Batch analysis complete! 3 records saved to database.",
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableSnapshot(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatTable).Snapshot(&buf, sampleSnapshot()); err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Total attacks: 2", "Blocked: 1", "Last 24h: 2", "CRITICAL", "Probe", "10:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONSnapshot(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatJSON).Snapshot(&buf, sampleSnapshot()); err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	var decoded telemetry.Snapshot
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.Total != 2 || decoded.HighSeverity != 1 {
		t.Errorf("unexpected decoded snapshot %+v", decoded)
	}
	if len(decoded.Timeline) != telemetry.SeriesLength {
		t.Errorf("expected %d timeline buckets, got %d", telemetry.SeriesLength, len(decoded.Timeline))
	}
}

func TestTableBatch(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatTable).Batch(&buf, sampleSession(), 2); err != nil {
		t.Fatalf("Batch() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"3 records saved",
		"Normal: 1 (33.3%)",
		"Attacks: 2 (66.7%)",
		"High risk: 2 (66.7%)",
		"Showing first 2 of 3 records",
		"99.5%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "R2L") {
		t.Error("rows beyond the preview limit should not be printed")
	}
}

func TestTableBatchWithoutStats(t *testing.T) {
	var buf bytes.Buffer
	sess := batch.Session{Message: "Batch analysis complete, but no records were saved to database."}
	if err := New(FormatTable).Batch(&buf, sess, 20); err != nil {
		t.Fatalf("Batch() error: %v", err)
	}
	if !strings.Contains(buf.String(), "No predictions returned.") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestJSONBatch(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatJSON).Batch(&buf, sampleSession(), 20); err != nil {
		t.Fatalf("Batch() error: %v", err)
	}

	var decoded struct {
		SavedCount  int                 `json:"database_saved_count"`
		Stats       *report.Stats       `json:"statistics"`
		Risk        []report.RiskBucket `json:"risk_distribution"`
		Predictions []report.Prediction `json:"predictions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.SavedCount != 3 || decoded.Stats == nil || decoded.Stats.AttackCount != 2 {
		t.Errorf("unexpected decoded batch %+v", decoded)
	}
	if len(decoded.Risk) != 5 || len(decoded.Predictions) != 3 {
		t.Errorf("expected 5 risk buckets and 3 predictions, got %d and %d", len(decoded.Risk), len(decoded.Predictions))
	}
}
