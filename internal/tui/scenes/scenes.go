// Package scenes provides TUI scenes for the NIDS console
package scenes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nids-console/internal/api"
	"nids-console/internal/batch"
	"nids-console/internal/convert"
	"nids-console/internal/report"
	"nids-console/internal/telemetry"
)

// SnapshotSource is the attack log poller as seen by the dashboard.
type SnapshotSource interface {
	Poll(ctx context.Context) (telemetry.Snapshot, error)
	Snapshot() (telemetry.Snapshot, bool)
}

// BatchRunner is the batch controller as seen by the batch scene.
type BatchRunner interface {
	Select(f convert.File) error
	Submit(ctx context.Context) error
	Reset()
	View() batch.Session
}

// ReportExporter writes finished batches to disk.
type ReportExporter interface {
	Export(ctx context.Context, predictions []report.Prediction, now time.Time) (*report.ExportResult, error)
}

// BackendStatus queries the classifier's health endpoints.
type BackendStatus interface {
	BaseURL() string
	Health(ctx context.Context) (*api.HealthResponse, error)
	Stats(ctx context.Context) (*api.StatsResponse, error)
}

// TickMsg is sent on each tick - exported for use by parent model
type TickMsg struct {
	Scene string
	Time  time.Time
}

// SnapshotMsg carries a snapshot committed by the poller.
type SnapshotMsg struct {
	Snapshot telemetry.Snapshot
}

// SessionMsg carries a batch session change.
type SessionMsg struct {
	Session batch.Session
}

// bar renders a horizontal bar of width proportional to count/peak.
func bar(count, peak, width int) string {
	if peak <= 0 || count <= 0 {
		return ""
	}
	n := count * width / peak
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders one block per value scaled to the largest value.
func sparkline(values []int) string {
	peak := 0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		if peak == 0 || v == 0 {
			b.WriteRune(' ')
			continue
		}
		idx := v * (len(sparkBlocks) - 1) / peak
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func formatNumber(n int) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
