package startup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nids-console/internal/api"
	"nids-console/internal/cache"
	"nids-console/internal/config"
)

// ---------- helpers ----------

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler)
}

// testConfig points every directory at a temp dir and disables optional
// components.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("NIDS_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := config.DefaultConfig()
	cfg.Export.Dir = filepath.Join(t.TempDir(), "exports")
	cfg.Watch.Dir = t.TempDir()
	return cfg
}

func healthServer(t *testing.T, status string) *api.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":   status,
			"model":    "random_forest",
			"database": "connected",
			"success":  true,
		})
	}))
	t.Cleanup(ts.Close)
	return api.NewClient(ts.URL, time.Second)
}

func findResult(results []DiagnosticResult, name string) *DiagnosticResult {
	for i := range results {
		if results[i].Name == name {
			return &results[i]
		}
	}
	return nil
}

func requireStatus(t *testing.T, results []DiagnosticResult, name string, want Status) *DiagnosticResult {
	t.Helper()
	r := findResult(results, name)
	if r == nil {
		t.Fatalf("no %q result", name)
	}
	if r.Status != want {
		t.Errorf("%s: status = %s, want %s (%s)", name, r.Status, want, r.Message)
	}
	return r
}

type nopCloser struct{ closed *bool }

func (n nopCloser) Close() error {
	*n.closed = true
	return nil
}

// ---------- Status ----------

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusOK, "OK"},
		{StatusWarning, "WARNING"},
		{StatusError, "ERROR"},
		{StatusSkipped, "SKIPPED"},
		{Status(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.expected)
			}
		})
	}
}

// ---------- RunAll ----------

func TestRunAllHealthyDefaults(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	d := NewDiagnostics(cfg, healthServer(t, "healthy"), nil, newTestLogger(&buf))

	results := d.RunAll(context.Background())

	requireStatus(t, results, "runtime", StatusOK)
	requireStatus(t, results, "config_file", StatusWarning)
	requireStatus(t, results, "config_validation", StatusOK)
	requireStatus(t, results, "export_dir", StatusOK)
	requireStatus(t, results, "watch_dir", StatusOK)
	requireStatus(t, results, "cache", StatusSkipped)
	requireStatus(t, results, "archive", StatusSkipped)
	requireStatus(t, results, "metrics_port", StatusSkipped)
	requireStatus(t, results, "production_mode", StatusWarning)
	requireStatus(t, results, "classifier_transport", StatusOK)

	c := requireStatus(t, results, "classifier", StatusOK)
	if c.Details["model"] != "random_forest" {
		t.Errorf("expected model detail, got %v", c.Details)
	}

	if d.HasErrors() {
		t.Error("healthy defaults should not report errors")
	}
	if !d.HasWarnings() {
		t.Error("missing config file and development mode should warn")
	}
	if !strings.Contains(buf.String(), "diagnostics summary") {
		t.Errorf("summary not logged:\n%s", buf.String())
	}
	if _, err := os.Stat(cfg.Export.Dir); err != nil {
		t.Errorf("export dir should be created: %v", err)
	}
}

func TestRunAllResetsResults(t *testing.T) {
	d := NewDiagnostics(testConfig(t), healthServer(t, "healthy"), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	first := len(d.RunAll(context.Background()))
	second := len(d.RunAll(context.Background()))
	if first != second {
		t.Errorf("second run should not accumulate results: %d then %d", first, second)
	}
}

// ---------- classifier ----------

func TestCheckClassifier(t *testing.T) {
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()

	tests := []struct {
		name   string
		client HealthChecker
		want   Status
	}{
		{"healthy", healthServer(t, "healthy"), StatusOK},
		{"degraded", healthServer(t, "degraded"), StatusWarning},
		{"unreachable", api.NewClient(closed.URL, time.Second), StatusError},
		{"no client", nil, StatusSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDiagnostics(testConfig(t), tt.client, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
			d.checkClassifier(context.Background())
			requireStatus(t, d.results, "classifier", tt.want)
		})
	}
}

// ---------- cache ----------

func TestCheckCache(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cache.Enabled = true

		var closed bool
		dial := func(ctx context.Context, c cache.Config) (io.Closer, error) {
			return nopCloser{closed: &closed}, nil
		}
		d := NewDiagnostics(cfg, nil, dial, nil)
		d.checkCache(context.Background())

		requireStatus(t, d.results, "cache", StatusOK)
		if !closed {
			t.Error("test connection should be closed")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cache.Enabled = true

		dial := func(ctx context.Context, c cache.Config) (io.Closer, error) {
			return nil, errors.New("connection refused")
		}
		d := NewDiagnostics(cfg, nil, dial, nil)
		d.checkCache(context.Background())

		r := requireStatus(t, d.results, "cache", StatusWarning)
		if !strings.Contains(r.Message, "connection refused") {
			t.Errorf("unexpected message %q", r.Message)
		}
	})
}

// ---------- archive ----------

func TestCheckArchive(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   Status
		creds  string
		key    string
	}{
		{"default chain", func(c *config.Config) { c.Archive.Enabled = true }, StatusOK, "default chain", ""},
		{"static", func(c *config.Config) {
			c.Archive.Enabled = true
			c.Archive.AccessKeyID = "AKIAEXAMPLE"
			c.Archive.SecretAccessKey = "secret"
		}, StatusOK, "static", "AKIA***LE"},
		{"half static", func(c *config.Config) {
			c.Archive.Enabled = true
			c.Archive.AccessKeyID = "AKIAEXAMPLE"
		}, StatusWarning, "default chain", "AKIA***LE"},
		{"missing bucket", func(c *config.Config) {
			c.Archive.Enabled = true
			c.Archive.Bucket = ""
		}, StatusError, "default chain", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			d := NewDiagnostics(cfg, nil, nil, nil)
			d.checkArchive()

			r := requireStatus(t, d.results, "archive", tt.want)
			if r.Details["credentials"] != tt.creds {
				t.Errorf("credentials = %q, want %q", r.Details["credentials"], tt.creds)
			}
			if r.Details["access_key"] != tt.key {
				t.Errorf("access_key = %q, want %q", r.Details["access_key"], tt.key)
			}
		})
	}
}

// ---------- metrics port ----------

func TestCheckMetricsPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	cfg := testConfig(t)
	cfg.Metrics.ListenAddr = busy.Addr().String()
	d := NewDiagnostics(cfg, nil, nil, nil)
	d.checkMetricsPort()
	requireStatus(t, d.results, "metrics_port", StatusError)

	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	d = NewDiagnostics(cfg, nil, nil, nil)
	d.checkMetricsPort()
	requireStatus(t, d.results, "metrics_port", StatusOK)
}

// ---------- directories ----------

func TestCheckDirectories(t *testing.T) {
	t.Run("missing watch dir", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Watch.Dir = filepath.Join(t.TempDir(), "absent")
		d := NewDiagnostics(cfg, nil, nil, nil)
		d.checkDirectories()
		requireStatus(t, d.results, "watch_dir", StatusWarning)
	})

	t.Run("watch path is a file", func(t *testing.T) {
		cfg := testConfig(t)
		file := filepath.Join(t.TempDir(), "inbox")
		os.WriteFile(file, nil, 0o600)
		cfg.Watch.Dir = file
		d := NewDiagnostics(cfg, nil, nil, nil)
		d.checkDirectories()
		requireStatus(t, d.results, "watch_dir", StatusError)
	})

	t.Run("export path is a file", func(t *testing.T) {
		cfg := testConfig(t)
		file := filepath.Join(t.TempDir(), "exports")
		os.WriteFile(file, nil, 0o600)
		cfg.Export.Dir = file
		d := NewDiagnostics(cfg, nil, nil, nil)
		d.checkDirectories()
		requireStatus(t, d.results, "export_dir", StatusError)
	})
}

// ---------- configuration ----------

func TestCheckConfiguration(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("server:\n  url: http://localhost:8000\n"), 0o600)
	t.Setenv("NIDS_CONFIG_PATH", path)

	cfg.Polling.Schedule = "whenever"
	d := NewDiagnostics(cfg, nil, nil, nil)
	d.checkConfiguration()

	requireStatus(t, d.results, "config_file", StatusOK)
	requireStatus(t, d.results, "config_validation", StatusError)
}

// ---------- security ----------

func TestCheckSecurityConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.Config)
		check      string
		want       Status
		wantAbsent bool
	}{
		{"production enabled", func(c *config.Config) { c.Production = true }, "production_mode", StatusOK, false},
		{"remote plain http", func(c *config.Config) { c.Server.URL = "http://10.0.0.5:8000" }, "classifier_transport", StatusWarning, false},
		{"remote https", func(c *config.Config) { c.Server.URL = "https://nids.example.com" }, "classifier_transport", StatusOK, false},
		{"loopback http", func(c *config.Config) { c.Server.URL = "http://127.0.0.1:8000" }, "classifier_transport", StatusOK, false},
		{"redis password without tls", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.Password = "secret"
		}, "cache_transport", StatusWarning, false},
		{"redis password with tls", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.Password = "secret"
			c.Cache.TLSEnabled = true
		}, "cache_transport", StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			d := NewDiagnostics(cfg, nil, nil, nil)
			d.checkSecurityConfiguration()

			if tt.wantAbsent {
				if r := findResult(d.results, tt.check); r != nil {
					t.Errorf("expected no %s result, got %+v", tt.check, r)
				}
				return
			}
			requireStatus(t, d.results, tt.check, tt.want)
		})
	}
}

// ---------- report ----------

func TestWriteReport(t *testing.T) {
	results := []DiagnosticResult{
		{Name: "runtime", Status: StatusOK, Message: "Go runtime detected"},
		{Name: "classifier", Status: StatusError, Message: "Cannot reach classifier"},
		{Name: "cache", Status: StatusSkipped, Message: "Snapshot cache disabled"},
		{Name: "production_mode", Status: StatusWarning, Message: "Production mode is DISABLED"},
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, results); err != nil {
		t.Fatalf("WriteReport() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"CHECK", "classifier", "ERROR", "SKIPPED", "1 passed, 1 warnings, 1 errors"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
