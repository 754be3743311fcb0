package scenes

import (
	"context"
	"fmt"
	"strings"

	nerrors "nids-console/internal/errors"
	"nids-console/internal/taxonomy"
	"nids-console/internal/telemetry"
	"nids-console/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

// DashboardScene displays the aggregated attack log
type DashboardScene struct {
	ctx        context.Context
	source     SnapshotSource
	snapshot   telemetry.Snapshot
	hasData    bool
	err        error
	width      int
	height     int
	refreshing bool
}

// refreshMsg carries the result of a manual refresh
type refreshMsg struct {
	snapshot telemetry.Snapshot
	err      error
}

// NewDashboardScene creates a new dashboard scene
func NewDashboardScene(ctx context.Context, source SnapshotSource) *DashboardScene {
	d := &DashboardScene{ctx: ctx, source: source}
	if snap, ok := source.Snapshot(); ok {
		d.snapshot = snap
		d.hasData = true
	}
	return d
}

// Init initializes the dashboard scene. Snapshots arrive as SnapshotMsg.
func (d *DashboardScene) Init() tea.Cmd {
	return nil
}

// TickCmd returns nil; the poller pushes snapshots.
func (d *DashboardScene) TickCmd() tea.Cmd {
	return nil
}

func (d *DashboardScene) refresh() tea.Cmd {
	return func() tea.Msg {
		snap, err := d.source.Poll(d.ctx)
		return refreshMsg{snapshot: snap, err: err}
	}
}

// Update handles messages for the dashboard
func (d *DashboardScene) Update(msg tea.Msg) (*DashboardScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		return d, nil

	case tea.KeyMsg:
		if msg.String() == "r" && !d.refreshing {
			d.refreshing = true
			return d, d.refresh()
		}
		return d, nil

	case SnapshotMsg:
		d.snapshot = msg.Snapshot
		d.hasData = true
		d.err = nil
		return d, nil

	case refreshMsg:
		d.refreshing = false
		d.err = msg.err
		if msg.err == nil {
			d.snapshot = msg.snapshot
			d.hasData = true
		}
		return d, nil
	}

	return d, nil
}

// View renders the dashboard
func (d *DashboardScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Attack Logs"))
	b.WriteString("\n\n")

	if d.err != nil {
		b.WriteString(styles.StatusError.Render("  Error: " + nerrors.UserMessage(d.err)))
		b.WriteString("\n\n")
	}

	if !d.hasData {
		b.WriteString(styles.Muted.Render("  Waiting for the first poll..."))
		return b.String()
	}

	snap := d.snapshot
	cards := []string{
		renderMetricCard("Total Attacks", formatNumber(snap.Total)),
		renderMetricCard("Blocked", formatNumber(snap.HighSeverity)),
		renderMetricCard("Last 24h", formatNumber(snap.TimelineTotal())),
		renderMetricCard("Attack Types", formatNumber(len(snap.AttackTypes))),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n\n")

	b.WriteString(styles.Subtitle.Render("  Attacks per hour (24h)"))
	b.WriteString("\n")
	b.WriteString(renderTimeline(snap.Timeline))
	b.WriteString("\n\n")

	b.WriteString(styles.Subtitle.Render("  Severity"))
	b.WriteString("\n")
	b.WriteString(renderDistribution(snap.Severity))
	b.WriteString("\n")

	b.WriteString(styles.Subtitle.Render("  Attack types"))
	b.WriteString("\n")
	if len(snap.AttackTypes) == 0 {
		b.WriteString(styles.Muted.Render("  No attacks recorded."))
		b.WriteString("\n")
	} else {
		b.WriteString(renderDistribution(snap.AttackTypes))
	}
	b.WriteString("\n")

	status := fmt.Sprintf("  Updated: %s  [r] Refresh", snap.GeneratedAt.Format("15:04:05"))
	if d.refreshing {
		status += "  (refreshing...)"
	}
	b.WriteString(styles.Muted.Render(status))

	return b.String()
}

func renderMetricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s",
		styles.MetricValue.Render(value),
		styles.MetricLabel.Render(label),
	)
	return styles.MetricCard.Render(content)
}

func renderTimeline(buckets []telemetry.TimeBucket) string {
	if len(buckets) == 0 {
		return ""
	}
	counts := make([]int, len(buckets))
	peak := 0
	for i, bucket := range buckets {
		counts[i] = bucket.Count
		if bucket.Count > peak {
			peak = bucket.Count
		}
	}

	line := "  " + styles.Colored(taxonomy.SeverityHigh.Color(), sparkline(counts))
	axis := fmt.Sprintf("  %-*s%s", len(buckets)-len(buckets[len(buckets)-1].HourLabel),
		buckets[0].HourLabel, buckets[len(buckets)-1].HourLabel)
	return line + styles.Muted.Render(fmt.Sprintf("  peak %d", peak)) + "\n" + styles.Muted.Render(axis)
}

func renderDistribution(entries []telemetry.DistributionEntry) string {
	peak := 0
	for _, e := range entries {
		if e.Count > peak {
			peak = e.Count
		}
	}

	var rows []string
	for _, e := range entries {
		color := e.Color
		if color == "" {
			color = string(styles.Primary)
		}
		rows = append(rows, fmt.Sprintf("  %-20s %6d %s",
			truncate(e.Category, 20), e.Count, styles.Colored(color, bar(e.Count, peak, barWidth))))
	}
	return strings.Join(rows, "\n") + "\n"
}
