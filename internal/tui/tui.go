// Package tui provides a terminal user interface for the NIDS console
package tui

import (
	"context"
	"fmt"
	"strings"

	"nids-console/internal/batch"
	"nids-console/internal/telemetry"
	"nids-console/internal/tui/scenes"
	"nids-console/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Scene represents the current view
type Scene int

const (
	SceneDashboard Scene = iota
	SceneBatch
	SceneSystem
)

const sceneCount = 3

// Deps are the engine components rendered by the TUI.
type Deps struct {
	Snapshots   scenes.SnapshotSource
	Batch       scenes.BatchRunner
	Exporter    scenes.ReportExporter
	Backend     scenes.BackendStatus
	Feed        *Feed
	PreviewRows int
}

// Model is the main TUI model
type Model struct {
	feed *Feed

	// Current scene
	scene Scene

	// Scene models
	dashboard *scenes.DashboardScene
	batch     *scenes.BatchScene
	system    *scenes.SystemScene

	// Window dimensions
	width  int
	height int

	// Whether we're quitting
	quitting bool
}

// New creates a new TUI model
func New(ctx context.Context, deps Deps) *Model {
	feed := deps.Feed
	if feed == nil {
		feed = NewFeed()
	}
	return &Model{
		feed:      feed,
		scene:     SceneDashboard,
		dashboard: scenes.NewDashboardScene(ctx, deps.Snapshots),
		batch:     scenes.NewBatchScene(ctx, deps.Batch, deps.Exporter, deps.PreviewRows),
		system:    scenes.NewSystemScene(ctx, deps.Backend),
	}
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.system.Init(),
		m.feed.waitSnapshot(),
		m.feed.waitSession(),
		m.getActiveSceneTickCmd(),
	)
}

// getActiveSceneTickCmd returns the tick command for the active scene only
func (m *Model) getActiveSceneTickCmd() tea.Cmd {
	switch m.scene {
	case SceneDashboard:
		return m.dashboard.TickCmd()
	case SceneBatch:
		return m.batch.TickCmd()
	case SceneSystem:
		return m.system.TickCmd()
	default:
		return nil
	}
}

func (m *Model) switchTo(scene Scene) tea.Cmd {
	if m.scene == scene {
		return nil
	}
	m.scene = scene
	switch scene {
	case SceneDashboard:
		return tea.Batch(m.dashboard.Init(), m.dashboard.TickCmd())
	case SceneBatch:
		return tea.Batch(m.batch.Init(), m.batch.TickCmd())
	case SceneSystem:
		return tea.Batch(m.system.Init(), m.system.TickCmd())
	}
	return nil
}

// Update handles all messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		// the path input owns every other key while it is open
		if m.scene == SceneBatch && m.batch.Capturing() {
			var cmd tea.Cmd
			m.batch, cmd = m.batch.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "1":
			return m, m.switchTo(SceneDashboard)
		case "2":
			return m, m.switchTo(SceneBatch)
		case "3":
			return m, m.switchTo(SceneSystem)
		case "tab":
			return m, m.switchTo((m.scene + 1) % sceneCount)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dashboard, _ = m.dashboard.Update(msg)
		m.batch, _ = m.batch.Update(msg)
		m.system, _ = m.system.Update(msg)
		return m, nil

	case scenes.SnapshotMsg:
		// delivered regardless of the active scene so switching back is current
		m.dashboard, _ = m.dashboard.Update(msg)
		return m, m.feed.waitSnapshot()

	case scenes.SessionMsg:
		m.batch, _ = m.batch.Update(msg)
		return m, m.feed.waitSession()

	case scenes.TickMsg:
		// Only forward tick to the active scene
		var cmd tea.Cmd
		switch m.scene {
		case SceneDashboard:
			m.dashboard, cmd = m.dashboard.Update(msg)
		case SceneBatch:
			m.batch, cmd = m.batch.Update(msg)
		case SceneSystem:
			m.system, cmd = m.system.Update(msg)
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if tick := m.getActiveSceneTickCmd(); tick != nil {
			cmds = append(cmds, tick)
		}
		if len(cmds) == 0 {
			return m, nil
		}
		return m, tea.Batch(cmds...)
	}

	// Key presses go to the active scene; async results go to their owner.
	var cmd tea.Cmd
	if _, ok := msg.(tea.KeyMsg); ok {
		switch m.scene {
		case SceneDashboard:
			m.dashboard, cmd = m.dashboard.Update(msg)
		case SceneBatch:
			m.batch, cmd = m.batch.Update(msg)
		case SceneSystem:
			m.system, cmd = m.system.Update(msg)
		}
		return m, cmd
	}

	m.dashboard, cmd = m.dashboard.Update(msg)
	cmds = append(cmds, cmd)
	m.batch, cmd = m.batch.Update(msg)
	cmds = append(cmds, cmd)
	m.system, cmd = m.system.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the current view
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.scene {
	case SceneDashboard:
		b.WriteString(m.dashboard.View())
	case SceneBatch:
		b.WriteString(m.batch.View())
	case SceneSystem:
		b.WriteString(m.system.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderHeader() string {
	tabs := []struct {
		name  string
		key   string
		scene Scene
	}{
		{"Attack Logs", "1", SceneDashboard},
		{"Batch", "2", SceneBatch},
		{"System", "3", SceneSystem},
	}

	var tabViews []string
	for _, tab := range tabs {
		label := fmt.Sprintf(" %s %s ", tab.key, tab.name)
		if tab.scene == m.scene {
			tabViews = append(tabViews, styles.TabActive.Render(label))
		} else {
			tabViews = append(tabViews, styles.TabInactive.Render(label))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabViews...)

	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.MutedColor).
		Width(m.width).
		Render(tabBar)
}

func (m *Model) renderFooter() string {
	help := " [1-3] Switch tabs  [Tab] Next tab  [↑↓/jk] Navigate  [q] Quit "
	return styles.Help.Render(help)
}

// Run starts the TUI application and blocks until it exits or ctx is done.
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Feed relays engine notifications into the program. Only the latest value
// of each kind is kept, so publishers never block.
type Feed struct {
	snapshots chan telemetry.Snapshot
	sessions  chan batch.Session
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		snapshots: make(chan telemetry.Snapshot, 1),
		sessions:  make(chan batch.Session, 1),
	}
}

// PublishSnapshot is a poller OnSnapshot callback.
func (f *Feed) PublishSnapshot(s telemetry.Snapshot) {
	publishLatest(f.snapshots, s)
}

// PublishSession is a batch controller OnChange callback.
func (f *Feed) PublishSession(s batch.Session) {
	publishLatest(f.sessions, s)
}

func publishLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (f *Feed) waitSnapshot() tea.Cmd {
	return func() tea.Msg {
		return scenes.SnapshotMsg{Snapshot: <-f.snapshots}
	}
}

func (f *Feed) waitSession() tea.Cmd {
	return func() tea.Msg {
		return scenes.SessionMsg{Session: <-f.sessions}
	}
}
