// Package render prints snapshots and batch outcomes for the command line.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"nids-console/internal/batch"
	"nids-console/internal/report"
	"nids-console/internal/telemetry"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or json)", s)
	}
}

type Renderer interface {
	Snapshot(w io.Writer, snap telemetry.Snapshot) error
	Batch(w io.Writer, sess batch.Session, previewRows int) error
}

func New(f Format) Renderer {
	switch f {
	case FormatJSON:
		return &jsonRenderer{}
	default:
		return &tableRenderer{}
	}
}

type jsonRenderer struct{}

func (r *jsonRenderer) Snapshot(w io.Writer, snap telemetry.Snapshot) error {
	return encode(w, snap)
}

type batchOutput struct {
	Message     string              `json:"message"`
	SavedCount  int                 `json:"database_saved_count"`
	Stats       *report.Stats       `json:"statistics,omitempty"`
	Risk        []report.RiskBucket `json:"risk_distribution,omitempty"`
	Predictions []report.Prediction `json:"predictions"`
}

func (r *jsonRenderer) Batch(w io.Writer, sess batch.Session, previewRows int) error {
	out := batchOutput{
		Message:     sess.Message,
		SavedCount:  sess.SavedCount,
		Predictions: sess.Preview(previewRows),
	}
	if sess.HasStats {
		stats := sess.Stats
		out.Stats = &stats
		out.Risk = report.RiskHistogram(sess.Results)
	}
	if out.Predictions == nil {
		out.Predictions = []report.Prediction{}
	}
	return encode(w, out)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type tableRenderer struct{}

func (r *tableRenderer) Snapshot(w io.Writer, snap telemetry.Snapshot) error {
	fmt.Fprintf(w, "Generated: %s\n", snap.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Total attacks: %d  Blocked: %d  Last 24h: %d\n\n",
		snap.Total, snap.HighSeverity, snap.TimelineTotal())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "SEVERITY\tCOUNT\n")
	for _, e := range snap.Severity {
		fmt.Fprintf(tw, "%s\t%d\n", e.Category, e.Count)
	}
	fmt.Fprintf(tw, "\t\n")

	fmt.Fprintf(tw, "ATTACK TYPE\tCOUNT\n")
	for _, e := range snap.AttackTypes {
		fmt.Fprintf(tw, "%s\t%d\n", e.Category, e.Count)
	}
	fmt.Fprintf(tw, "\t\n")

	fmt.Fprintf(tw, "HOUR\tCOUNT\n")
	for _, b := range snap.Timeline {
		fmt.Fprintf(tw, "%s\t%d\n", b.HourLabel, b.Count)
	}
	return tw.Flush()
}

func (r *tableRenderer) Batch(w io.Writer, sess batch.Session, previewRows int) error {
	if sess.Message != "" {
		fmt.Fprintln(w, sess.Message)
	}
	if !sess.HasStats {
		fmt.Fprintln(w, "No predictions returned.")
		return nil
	}

	st := sess.Stats
	fmt.Fprintf(w, "\nTotal: %d  Normal: %d (%s%%)  Attacks: %d (%s%%)  High risk: %d (%s%%)\n\n",
		st.Total,
		st.NormalCount, report.FormatPercent(st.NormalPercentage),
		st.AttackCount, report.FormatPercent(st.AttackPercentage),
		st.HighRiskCount, report.FormatPercent(st.HighRiskPercentage),
	)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RISK\tCOUNT\tPERCENT\n")
	for _, b := range report.RiskHistogram(sess.Results) {
		fmt.Fprintf(tw, "%s\t%d\t%s%%\n", b.Level, b.Count, report.FormatPercent(b.Percentage))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rows := sess.Preview(previewRows)
	fmt.Fprintf(w, "\nShowing first %d of %d records\n", len(rows), len(sess.Results))

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tPREDICTION\tRISK\tCONFIDENCE\tNORMAL\tATTACK\tATTACK TYPE\n")
	for i, p := range rows {
		fields := report.Row(i+1, p)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6])
	}
	return tw.Flush()
}
