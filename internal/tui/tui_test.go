package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nids-console/internal/api"
	"nids-console/internal/batch"
	"nids-console/internal/convert"
	"nids-console/internal/report"
	"nids-console/internal/taxonomy"
	"nids-console/internal/telemetry"
	"nids-console/internal/tui/scenes"

	tea "github.com/charmbracelet/bubbletea"
)

// keyMsg builds a tea.KeyMsg for the given key string.
func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

type fakeSource struct {
	snap telemetry.Snapshot
	ok   bool
}

func (f *fakeSource) Poll(ctx context.Context) (telemetry.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeSource) Snapshot() (telemetry.Snapshot, bool) {
	return f.snap, f.ok
}

type fakeRunner struct {
	mu       sync.Mutex
	selected []string
	submits  int
	resets   int
	session  batch.Session
}

func (f *fakeRunner) Select(file convert.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, file.Name())
	f.session.FileName = file.Name()
	return nil
}

func (f *fakeRunner) Submit(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return nil
}

func (f *fakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.session = batch.Session{State: batch.StateIdle}
}

func (f *fakeRunner) View() batch.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func newTestModel(t *testing.T, serverURL string) (*Model, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{session: batch.Session{State: batch.StateIdle}}
	m := New(context.Background(), Deps{
		Snapshots: &fakeSource{},
		Batch:     runner,
		Backend:   api.NewClient(serverURL, time.Second),
	})
	return m, runner
}

func sampleSnapshot() telemetry.Snapshot {
	now := time.Date(2025, 12, 13, 10, 30, 0, 0, time.UTC)
	records := []telemetry.Record{
		{ID: 1, Timestamp: now.Add(-time.Minute), Severity: taxonomy.SeverityCritical, AttackType: "DoS"},
		{ID: 2, Timestamp: now.Add(-2 * time.Hour), Severity: taxonomy.SeverityHigh, AttackType: "Probe"},
		{ID: 3, Timestamp: now.Add(-3 * time.Hour), Severity: taxonomy.SeverityLow, AttackType: "DoS"},
	}
	return telemetry.Aggregate(records, now)
}

// ---------------------------------------------------------------------------
// 1. Model Initialization
// ---------------------------------------------------------------------------

func TestNewModelDefaults(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")

	if m.scene != SceneDashboard {
		t.Errorf("expected initial scene SceneDashboard (%d), got %d", SceneDashboard, m.scene)
	}
	if m.dashboard == nil || m.batch == nil || m.system == nil {
		t.Fatal("scene models must be non-nil")
	}
	if m.feed == nil {
		t.Error("a feed should be created when none is supplied")
	}
	if m.quitting {
		t.Error("model should not be quitting on init")
	}
}

func TestSceneConstants(t *testing.T) {
	if SceneDashboard != 0 || SceneBatch != 1 || SceneSystem != 2 {
		t.Errorf("unexpected scene constants %d %d %d", SceneDashboard, SceneBatch, SceneSystem)
	}
}

func TestModelInitReturnsCommand(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")
	if m.Init() == nil {
		t.Error("Model.Init() returned nil, expected a batch command")
	}
}

// ---------------------------------------------------------------------------
// 2. Scene switching
// ---------------------------------------------------------------------------

func TestUpdateSwitchScenes(t *testing.T) {
	tests := []struct {
		key  string
		want Scene
	}{
		{"2", SceneBatch},
		{"3", SceneSystem},
		{"1", SceneDashboard},
	}

	m, _ := newTestModel(t, "http://localhost:8000")
	for _, tt := range tests {
		m.Update(keyMsg(tt.key))
		if m.scene != tt.want {
			t.Errorf("after key %q expected scene %d, got %d", tt.key, tt.want, m.scene)
		}
	}
}

func TestUpdateTabCyclesThroughScenes(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")

	want := []Scene{SceneBatch, SceneSystem, SceneDashboard}
	for i, w := range want {
		m.Update(keyMsg("tab"))
		if m.scene != w {
			t.Errorf("tab %d: expected scene %d, got %d", i+1, w, m.scene)
		}
	}
}

func TestUpdateNoSceneChangeWhenAlreadyOnScene(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")
	_, cmd := m.Update(keyMsg("1"))
	if cmd != nil {
		t.Error("switching to the active scene should not return a command")
	}
}

func TestUpdateQuit(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		m, _ := newTestModel(t, "http://localhost:8000")
		_, cmd := m.Update(keyMsg(key))
		if !m.quitting {
			t.Errorf("%s should set quitting", key)
		}
		if cmd == nil {
			t.Errorf("%s should return tea.Quit", key)
		}
		if m.View() != "" {
			t.Errorf("%s: view should be empty when quitting", key)
		}
	}
}

func TestUpdateWindowSizeMsg(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")
	_, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("expected 120x40, got %dx%d", m.width, m.height)
	}
	if cmd != nil {
		t.Error("WindowSizeMsg should not return a command")
	}
}

// ---------------------------------------------------------------------------
// 3. Engine notifications
// ---------------------------------------------------------------------------

func TestSnapshotMsgUpdatesDashboard(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")

	if !strings.Contains(m.View(), "Waiting for the first poll") {
		t.Error("dashboard should wait for data before the first snapshot")
	}

	_, cmd := m.Update(scenes.SnapshotMsg{Snapshot: sampleSnapshot()})
	if cmd == nil {
		t.Error("expected the feed to be re-armed after a snapshot")
	}

	view := m.View()
	for _, want := range []string{"Total Attacks", "Blocked", "DoS", "Probe", "CRITICAL"} {
		if !strings.Contains(view, want) {
			t.Errorf("dashboard view missing %q", want)
		}
	}
}

func TestSnapshotMsgWhileOtherSceneActive(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")
	m.Update(keyMsg("2"))
	m.Update(scenes.SnapshotMsg{Snapshot: sampleSnapshot()})
	m.Update(keyMsg("1"))

	if !strings.Contains(m.View(), "Total Attacks") {
		t.Error("snapshot delivered while hidden should show when switching back")
	}
}

func TestSessionMsgUpdatesBatchScene(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")
	m.Update(keyMsg("2"))

	results := []report.Prediction{
		{Label: "normal", RiskLevel: taxonomy.RiskNormal, Confidence: 99},
		{Label: "attack", RiskLevel: taxonomy.RiskHigh, Confidence: 87.5, AttackType: "DoS"},
	}
	stats, _ := report.ComputeStats(results)
	m.Update(scenes.SessionMsg{Session: batch.Session{
		State:    batch.StateSucceeded,
		Results:  results,
		Stats:    stats,
		HasStats: true,
		Message:  "Batch analysis complete! 2 records saved to database.",
	}})

	view := m.View()
	for _, want := range []string{"SUCCEEDED", "2 records saved", "Showing first 2 of 2 records", "50.0%", "DoS"} {
		if !strings.Contains(view, want) {
			t.Errorf("batch view missing %q", want)
		}
	}
}

func TestFeedKeepsLatest(t *testing.T) {
	f := NewFeed()
	first := telemetry.Snapshot{Total: 1}
	second := telemetry.Snapshot{Total: 2}

	f.PublishSnapshot(first)
	f.PublishSnapshot(second)

	msg := f.waitSnapshot()().(scenes.SnapshotMsg)
	if msg.Snapshot.Total != 2 {
		t.Errorf("expected the latest snapshot, got total %d", msg.Snapshot.Total)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			f.PublishSession(batch.Session{Progress: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing must never block")
	}
	if got := f.waitSession()().(scenes.SessionMsg); got.Session.Progress != 99 {
		t.Errorf("expected last session, got progress %d", got.Session.Progress)
	}
}

// ---------------------------------------------------------------------------
// 4. Batch file input
// ---------------------------------------------------------------------------

func TestBatchPathInputCapturesKeys(t *testing.T) {
	m, runner := newTestModel(t, "http://localhost:8000")
	m.Update(keyMsg("2"))
	m.Update(keyMsg("f"))

	// "q" and "1" are part of the path while typing
	for _, k := range []string{"q", "1", ".", "c", "s", "v"} {
		m.Update(keyMsg(k))
	}
	if m.quitting || m.scene != SceneBatch {
		t.Fatal("keys should go to the path input")
	}
	m.Update(keyMsg("enter"))

	if len(runner.selected) != 1 || runner.selected[0] != "q1.csv" {
		t.Errorf("expected q1.csv to be selected, got %v", runner.selected)
	}
	if !strings.Contains(m.View(), "q1.csv") {
		t.Error("selected file should be shown")
	}
}

func TestBatchSubmitAndReset(t *testing.T) {
	m, runner := newTestModel(t, "http://localhost:8000")
	m.Update(keyMsg("2"))

	_, cmd := m.Update(keyMsg("s"))
	if cmd == nil {
		t.Fatal("expected a submit command")
	}
	m.Update(cmd())
	if runner.submits != 1 {
		t.Errorf("expected one submission, got %d", runner.submits)
	}

	m.Update(keyMsg("x"))
	if runner.resets != 1 {
		t.Errorf("expected one reset, got %d", runner.resets)
	}
}

func TestBatchSubmitIgnoredWhileInFlight(t *testing.T) {
	m, runner := newTestModel(t, "http://localhost:8000")
	m.Update(keyMsg("2"))
	m.Update(scenes.SessionMsg{Session: batch.Session{State: batch.StateSubmitting, InFlight: true, Progress: 30}})

	if _, cmd := m.Update(keyMsg("s")); cmd != nil {
		t.Error("submit should be ignored while a batch is in flight")
	}
	if runner.submits != 0 {
		t.Errorf("expected no submission, got %d", runner.submits)
	}
	if !strings.Contains(m.View(), " 30%") {
		t.Error("progress should be rendered while in flight")
	}
}

func TestBatchKeysIgnoredWhileConverting(t *testing.T) {
	m, runner := newTestModel(t, "http://localhost:8000")
	m.Update(keyMsg("2"))
	m.Update(scenes.SessionMsg{Session: batch.Session{FileName: "capture.xlsx", State: batch.StateConverting}})

	if _, cmd := m.Update(keyMsg("s")); cmd != nil {
		t.Error("submit should be ignored while the file is converting")
	}
	m.Update(keyMsg("f"))
	if m.batch.Capturing() {
		t.Error("file selection should be ignored while the file is converting")
	}
	if runner.submits != 0 {
		t.Errorf("expected no submission, got %d", runner.submits)
	}
	if !strings.Contains(m.View(), "capture.xlsx") {
		t.Error("selected file should be shown")
	}
}

func TestBatchViewWithoutFile(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")
	m.Update(keyMsg("2"))

	if !strings.Contains(m.View(), "none") {
		t.Errorf("expected no file to be shown:\n%s", m.View())
	}
}

// ---------------------------------------------------------------------------
// 5. System scene
// ---------------------------------------------------------------------------

func TestSystemSceneFetchesHealthAndStats(t *testing.T) {
	var mu sync.Mutex
	paths := make(map[string]bool)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path] = true
		mu.Unlock()

		switch r.URL.Path {
		case "/api/health":
			json.NewEncoder(w).Encode(api.HealthResponse{
				Status:   "healthy",
				Model:    "loaded",
				Database: "connected",
				Success:  true,
			})
		case "/api/stats":
			json.NewEncoder(w).Encode(api.StatsResponse{
				Success:    true,
				Statistics: map[string]any{"total_predictions": 42},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	m, _ := newTestModel(t, ts.URL)
	_, cmd := m.Update(keyMsg("3"))
	if cmd == nil {
		t.Fatal("switching to system should fetch")
	}

	msg := m.system.Init()()
	m.Update(msg)

	for _, p := range []string{"/api/health", "/api/stats"} {
		if !paths[p] {
			t.Errorf("expected a request to %s", p)
		}
	}

	view := m.View()
	for _, want := range []string{"healthy", "connected", "total_predictions", "42"} {
		if !strings.Contains(view, want) {
			t.Errorf("system view missing %q", want)
		}
	}
}

func TestSystemSceneUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	m, _ := newTestModel(t, ts.URL)
	m.Update(keyMsg("3"))
	m.Update(m.system.Init()())

	if !strings.Contains(m.View(), "Not connected") {
		t.Error("expected a disconnected status")
	}
}

func TestTickRoutedToActiveSceneOnly(t *testing.T) {
	m, _ := newTestModel(t, "http://localhost:8000")

	// dashboard is active and has no ticker
	_, cmd := m.Update(scenes.TickMsg{Scene: "system", Time: time.Now()})
	if cmd != nil {
		t.Error("system tick should be ignored while the dashboard is active")
	}

	m.Update(keyMsg("3"))
	if _, cmd := m.Update(scenes.TickMsg{Scene: "system", Time: time.Now()}); cmd == nil {
		t.Error("system tick should fetch and reschedule while active")
	}
}
