package scenes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nids-console/internal/batch"
	"nids-console/internal/convert"
	nerrors "nids-console/internal/errors"
	"nids-console/internal/report"
	"nids-console/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const progressWidth = 40

// BatchScene uploads a traffic file and shows the classification results
type BatchScene struct {
	ctx         context.Context
	runner      BatchRunner
	exporter    ReportExporter
	session     batch.Session
	previewRows int

	// path entry
	editing bool
	path    string

	exportNote string
	exportErr  error

	width   int
	height  int
	cursor  int
	offset  int
	maxRows int
}

// submitDoneMsg is returned when Submit unblocks
type submitDoneMsg struct {
	err error
}

// exportDoneMsg carries the outcome of a report export
type exportDoneMsg struct {
	result *report.ExportResult
	err    error
}

// NewBatchScene creates a new batch scene. exporter may be nil.
func NewBatchScene(ctx context.Context, runner BatchRunner, exporter ReportExporter, previewRows int) *BatchScene {
	if previewRows <= 0 {
		previewRows = 20
	}
	return &BatchScene{
		ctx:         ctx,
		runner:      runner,
		exporter:    exporter,
		session:     runner.View(),
		previewRows: previewRows,
		maxRows:     10,
	}
}

// Init initializes the batch scene
func (s *BatchScene) Init() tea.Cmd {
	s.session = s.runner.View()
	return nil
}

// TickCmd returns nil; session changes are pushed by the controller.
func (s *BatchScene) TickCmd() tea.Cmd {
	return nil
}

// Capturing reports whether keystrokes go to the path input.
func (s *BatchScene) Capturing() bool {
	return s.editing
}

func (s *BatchScene) submit() tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{err: s.runner.Submit(s.ctx)}
	}
}

func (s *BatchScene) export(results []report.Prediction) tea.Cmd {
	return func() tea.Msg {
		res, err := s.exporter.Export(s.ctx, results, time.Now())
		return exportDoneMsg{result: res, err: err}
	}
}

// Update handles messages for the batch scene
func (s *BatchScene) Update(msg tea.Msg) (*BatchScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.maxRows = max(5, s.height-24)
		return s, nil

	case tea.KeyMsg:
		if s.editing {
			return s, s.updateInput(msg)
		}
		return s, s.updateKeys(msg)

	case SessionMsg:
		s.session = msg.Session
		s.clampCursor()
		return s, nil

	case submitDoneMsg:
		s.session = s.runner.View()
		s.clampCursor()
		return s, nil

	case exportDoneMsg:
		s.exportErr = msg.err
		s.exportNote = ""
		if msg.err == nil {
			s.exportNote = fmt.Sprintf("Exported %d rows to %s", msg.result.Rows, msg.result.Path)
			if msg.result.Location != "" {
				s.exportNote += " (archived to " + msg.result.Location + ")"
			}
		}
		return s, nil
	}

	return s, nil
}

func (s *BatchScene) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		s.editing = false
	case tea.KeyEnter:
		s.editing = false
		path := strings.TrimSpace(s.path)
		// a rejected file is reported through the session
		_ = s.runner.Select(convert.LocalFile(path))
		s.session = s.runner.View()
	case tea.KeyBackspace:
		if len(s.path) > 0 {
			r := []rune(s.path)
			s.path = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		s.path += " "
	case tea.KeyRunes:
		s.path += string(msg.Runes)
	}
	return nil
}

func (s *BatchScene) updateKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "f":
		if !s.session.State.Busy() {
			s.editing = true
			s.path = ""
		}
	case "s", "enter":
		if s.session.State.Busy() {
			return nil
		}
		s.exportNote, s.exportErr = "", nil
		return s.submit()
	case "e":
		if s.exporter == nil || s.session.InFlight || len(s.session.Results) == 0 {
			return nil
		}
		return s.export(s.session.Results)
	case "x":
		s.runner.Reset()
		s.session = s.runner.View()
		s.exportNote, s.exportErr = "", nil
		s.cursor, s.offset = 0, 0
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
			if s.cursor < s.offset {
				s.offset = s.cursor
			}
		}
	case "down", "j":
		if s.cursor < len(s.preview())-1 {
			s.cursor++
			if s.cursor >= s.offset+s.maxRows {
				s.offset = s.cursor - s.maxRows + 1
			}
		}
	}
	return nil
}

func (s *BatchScene) preview() []report.Prediction {
	return s.session.Preview(s.previewRows)
}

func (s *BatchScene) clampCursor() {
	n := len(s.preview())
	if s.cursor >= n {
		s.cursor = max(0, n-1)
	}
	if s.offset > s.cursor {
		s.offset = s.cursor
	}
}

// View renders the batch scene
func (s *BatchScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Batch Analysis"))
	b.WriteString("\n\n")

	if s.editing {
		b.WriteString("  CSV or XLSX file path:\n")
		b.WriteString(styles.Input.Render(s.path + "█"))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("  [Enter] Select  [Esc] Cancel"))
		return b.String()
	}

	sess := s.session
	file := styles.Muted.Render("none")
	if sess.HasFile() {
		file = sess.FileName
	}
	b.WriteString(fmt.Sprintf("  File:   %s\n", file))
	b.WriteString(fmt.Sprintf("  State:  %s\n", renderState(sess.State)))

	if sess.InFlight || sess.Progress > 0 {
		b.WriteString(fmt.Sprintf("  %s %3d%%\n", renderProgress(sess.Progress), sess.Progress))
	}
	b.WriteString("\n")

	if sess.Message != "" {
		if sess.Err != nil {
			b.WriteString(styles.StatusError.Render("  " + sess.Message))
		} else {
			b.WriteString(styles.StatusOK.Render("  " + sess.Message))
		}
		b.WriteString("\n\n")
	}

	if s.exportErr != nil {
		msg := nerrors.UserMessage(s.exportErr)
		if errors.Is(s.exportErr, report.ErrNoResults) {
			msg = "Nothing to export"
		}
		b.WriteString(styles.StatusError.Render("  Export failed: " + msg))
		b.WriteString("\n\n")
	} else if s.exportNote != "" {
		b.WriteString(styles.StatusOK.Render("  " + s.exportNote))
		b.WriteString("\n\n")
	}

	if sess.HasStats {
		b.WriteString(renderStats(sess.Stats))
		b.WriteString("\n")
		b.WriteString(styles.Subtitle.Render("  Risk levels"))
		b.WriteString("\n")
		b.WriteString(renderRiskHistogram(report.RiskHistogram(sess.Results)))
		b.WriteString("\n")
		b.WriteString(s.renderPreview())
		b.WriteString("\n")
	}

	b.WriteString(styles.Muted.Render("  [f] Choose file  [s] Analyze  [e] Export CSV  [x] Reset"))
	return b.String()
}

func renderState(state batch.State) string {
	label := strings.ToUpper(string(state))
	switch state {
	case batch.StateSucceeded:
		return styles.StatusOK.Render(label)
	case batch.StateFailed, batch.StateRejected:
		return styles.StatusError.Render(label)
	case batch.StateConverting, batch.StateSubmitting, batch.StateValidating:
		return styles.StatusWarning.Render(label)
	default:
		return styles.Muted.Render(label)
	}
}

func renderProgress(progress int) string {
	filled := progress * progressWidth / 100
	return styles.Colored(string(styles.Primary), strings.Repeat("█", filled)) +
		styles.Muted.Render(strings.Repeat("░", progressWidth-filled))
}

func renderStats(st report.Stats) string {
	cards := []string{
		renderMetricCard("Total", formatNumber(st.Total)),
		renderMetricCard("Normal", fmt.Sprintf("%d (%s%%)", st.NormalCount, report.FormatPercent(st.NormalPercentage))),
		renderMetricCard("Attacks", fmt.Sprintf("%d (%s%%)", st.AttackCount, report.FormatPercent(st.AttackPercentage))),
		renderMetricCard("High Risk", fmt.Sprintf("%d (%s%%)", st.HighRiskCount, report.FormatPercent(st.HighRiskPercentage))),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...) + "\n"
}

func renderRiskHistogram(buckets []report.RiskBucket) string {
	peak := 0
	for _, rb := range buckets {
		if rb.Count > peak {
			peak = rb.Count
		}
	}

	var rows []string
	for _, rb := range buckets {
		rows = append(rows, fmt.Sprintf("  %-8s %6d %6s%% %s",
			rb.Level, rb.Count, report.FormatPercent(rb.Percentage),
			styles.Colored(rb.Color, bar(rb.Count, peak, barWidth))))
	}
	return strings.Join(rows, "\n") + "\n"
}

func (s *BatchScene) renderPreview() string {
	var b strings.Builder
	rows := s.preview()

	b.WriteString(styles.Subtitle.Render(fmt.Sprintf("  Showing first %d of %d records", len(rows), len(s.session.Results))))
	b.WriteString("\n")

	header := fmt.Sprintf("  %-5s %-12s %-10s %-11s %s", "ID", "Prediction", "Risk", "Confidence", "Attack Type")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	end := min(s.offset+s.maxRows, len(rows))
	for i := s.offset; i < end; i++ {
		fields := report.Row(i+1, rows[i])
		line := fmt.Sprintf("  %-5s %-12s %-10s %-11s %s",
			fields[0], truncate(fields[1], 12), fields[2], fields[3], truncate(fields[6], 30))
		if i == s.cursor {
			line = styles.TableRowSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
