package scenes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	nerrors "nids-console/internal/errors"
	"nids-console/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
)

// SystemScene displays classifier health and statistics
type SystemScene struct {
	ctx        context.Context
	backend    BackendStatus
	health     *healthView
	stats      map[string]any
	healthErr  error
	statsErr   error
	width      int
	height     int
	lastUpdate time.Time
	loading    bool
}

type healthView struct {
	healthy  bool
	status   string
	model    string
	database string
}

// systemMsg carries updated backend status
type systemMsg struct {
	health    *healthView
	stats     map[string]any
	healthErr error
	statsErr  error
}

// NewSystemScene creates a new system info scene
func NewSystemScene(ctx context.Context, backend BackendStatus) *SystemScene {
	return &SystemScene{
		ctx:     ctx,
		backend: backend,
		loading: true,
	}
}

// Init initializes the system scene
func (s *SystemScene) Init() tea.Cmd {
	return s.fetch()
}

// fetch queries health and statistics
func (s *SystemScene) fetch() tea.Cmd {
	return func() tea.Msg {
		var msg systemMsg

		health, err := s.backend.Health(s.ctx)
		if err != nil {
			msg.healthErr = err
		} else {
			msg.health = &healthView{
				healthy:  health.Healthy(),
				status:   health.Status,
				model:    health.Model,
				database: health.Database,
			}
		}

		stats, err := s.backend.Stats(s.ctx)
		if err != nil {
			msg.statsErr = err
		} else {
			msg.stats = stats.Statistics
		}
		return msg
	}
}

// TickCmd returns a command that ticks every interval
func (s *SystemScene) TickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "system", Time: t}
	})
}

// Update handles messages for the system scene
func (s *SystemScene) Update(msg tea.Msg) (*SystemScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			return s, s.fetch()
		}
		return s, nil

	case systemMsg:
		s.loading = false
		s.health = msg.health
		s.healthErr = msg.healthErr
		s.stats = msg.stats
		s.statsErr = msg.statsErr
		s.lastUpdate = time.Now()
		return s, nil

	case TickMsg:
		if msg.Scene == "system" {
			return s, s.fetch()
		}
		return s, nil
	}

	return s, nil
}

// View renders the system info scene
func (s *SystemScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  System Information"))
	b.WriteString("\n\n")

	if s.loading {
		b.WriteString(styles.Muted.Render("  Loading system information..."))
		return b.String()
	}

	b.WriteString(styles.Subtitle.Render("  Classifier"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Endpoint: %s\n", styles.Muted.Render("├"), s.backend.BaseURL()))
	switch {
	case s.healthErr != nil:
		b.WriteString(fmt.Sprintf("  %s %s\n", styles.StatusError.Render("●"), "Not connected"))
		b.WriteString(fmt.Sprintf("  %s Reason: %s\n", styles.Muted.Render("└"), nerrors.UserMessage(s.healthErr)))
	case s.health.healthy:
		b.WriteString(fmt.Sprintf("  %s Status: %s\n", styles.StatusOK.Render("●"), s.health.status))
		b.WriteString(fmt.Sprintf("  %s Model: %s\n", styles.Muted.Render("├"), s.health.model))
		b.WriteString(fmt.Sprintf("  %s Database: %s\n", styles.Muted.Render("└"), s.health.database))
	default:
		b.WriteString(fmt.Sprintf("  %s Status: %s\n", styles.StatusWarning.Render("●"), s.health.status))
		b.WriteString(fmt.Sprintf("  %s Database: %s\n", styles.Muted.Render("└"), s.health.database))
	}
	b.WriteString("\n")

	b.WriteString(styles.Subtitle.Render("  Statistics"))
	b.WriteString("\n")
	switch {
	case s.statsErr != nil:
		b.WriteString(styles.StatusError.Render("  " + nerrors.UserMessage(s.statsErr)))
		b.WriteString("\n")
	case len(s.stats) == 0:
		b.WriteString(styles.Muted.Render("  No statistics reported."))
		b.WriteString("\n")
	default:
		keys := make([]string, 0, len(s.stats))
		for k := range s.stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("  %-24s %s\n", k, styles.MetricValue.Render(fmt.Sprint(s.stats[k]))))
		}
	}
	b.WriteString("\n")

	if !s.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Last updated: %s  [r] Refresh", s.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}
