package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"nids-console/internal/taxonomy"
)

// ErrNoResults is returned when exporting an empty batch.
var ErrNoResults = errors.New("no predictions to export")

// Header is the fixed column header of the CSV report.
var Header = []string{
	"ID",
	"Prediction",
	"Risk Level",
	"Confidence",
	"Normal Probability",
	"Attack Probability",
	"Attack Type",
}

// Row renders one prediction as report fields. id is 1-based.
func Row(id int, p Prediction) []string {
	label := p.Label
	if label == "" {
		label = "Unknown"
	}
	risk := p.RiskLevel
	if risk == "" {
		risk = taxonomy.RiskUnknown
	}
	attackType := p.AttackType
	if attackType == "" {
		attackType = "N/A"
	}

	return []string{
		strconv.Itoa(id),
		label,
		risk.String(),
		strconv.FormatFloat(p.Confidence, 'f', -1, 64) + "%",
		fmt.Sprintf("%.2f%%", p.Probabilities.Normal),
		fmt.Sprintf("%.2f%%", p.Probabilities.Attack),
		attackType,
	}
}

// WriteCSV writes the report for every prediction, rows separated by "\n".
//
// Fields are joined with a bare comma and are not quoted or escaped, so a
// label or attack type containing a comma shifts that row's columns.
func WriteCSV(w io.Writer, predictions []Prediction) error {
	if len(predictions) == 0 {
		return ErrNoResults
	}

	lines := make([]string, 0, len(predictions)+1)
	lines = append(lines, strings.Join(Header, ","))
	for i, p := range predictions {
		lines = append(lines, strings.Join(Row(i+1, p), ","))
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Filename returns the download name of a report generated at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("batch_predictions_%s.csv", t.UTC().Format("2006-01-02"))
}
