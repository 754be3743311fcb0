// Package startup runs environment diagnostics before the console talks to
// the classifier.
package startup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"nids-console/internal/api"
	"nids-console/internal/cache"
	"nids-console/internal/config"
	nerrors "nids-console/internal/errors"
	"nids-console/internal/logging"
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name    string
	Status  Status
	Message string
	Details map[string]string
}

// Status represents the status of a diagnostic check
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// HealthChecker is the classifier health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// CacheDialer opens and verifies a cache connection.
type CacheDialer func(ctx context.Context, cfg cache.Config) (io.Closer, error)

// DialRedis connects with go-redis.
func DialRedis(ctx context.Context, cfg cache.Config) (io.Closer, error) {
	c, err := cache.NewGoRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Diagnostics runs all startup diagnostics
type Diagnostics struct {
	cfg        *config.Config
	classifier HealthChecker
	dialCache  CacheDialer
	logger     *slog.Logger
	timeout    time.Duration
	results    []DiagnosticResult
}

// NewDiagnostics creates a new diagnostics runner. dialCache may be nil when
// the cache is disabled.
func NewDiagnostics(cfg *config.Config, classifier HealthChecker, dialCache CacheDialer, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{
		cfg:        cfg,
		classifier: classifier,
		dialCache:  dialCache,
		logger:     logger,
		timeout:    5 * time.Second,
	}
}

// RunAll runs all diagnostic checks
func (d *Diagnostics) RunAll(ctx context.Context) []DiagnosticResult {
	d.results = nil
	d.logger.Info("running startup diagnostics")

	d.checkSystem()
	d.checkConfiguration()
	d.checkDirectories()

	d.checkClassifier(ctx)
	d.checkCache(ctx)
	d.checkArchive()
	d.checkMetricsPort()

	d.checkSecurityConfiguration()

	d.logSummary()
	return d.results
}

func (d *Diagnostics) addResult(result DiagnosticResult) {
	d.results = append(d.results, result)

	attrs := []any{
		"check", result.Name,
		"status", result.Status.String(),
	}
	if result.Message != "" {
		attrs = append(attrs, "message", result.Message)
	}
	for _, k := range sortedKeys(result.Details) {
		attrs = append(attrs, k, result.Details[k])
	}

	switch result.Status {
	case StatusOK:
		d.logger.Info("diagnostic check passed", attrs...)
	case StatusWarning:
		d.logger.Warn("diagnostic check warning", attrs...)
	case StatusError:
		d.logger.Error("diagnostic check failed", attrs...)
	case StatusSkipped:
		d.logger.Debug("diagnostic check skipped", attrs...)
	}
}

func (d *Diagnostics) checkSystem() {
	d.addResult(DiagnosticResult{
		Name:    "runtime",
		Status:  StatusOK,
		Message: "Go runtime detected",
		Details: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
	})
}

func (d *Diagnostics) checkConfiguration() {
	configPath := os.Getenv("NIDS_CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusWarning,
			Message: "Config file not found, using defaults",
			Details: map[string]string{"path": configPath},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusOK,
			Message: "Config file found",
			Details: map[string]string{"path": configPath},
		})
	}

	if err := d.cfg.Validate(); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "config_validation",
			Status:  StatusError,
			Message: fmt.Sprintf("Configuration validation failed: %s", err),
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "config_validation",
		Status:  StatusOK,
		Message: "Configuration is valid",
	})
}

func (d *Diagnostics) checkDirectories() {
	dir := d.cfg.Export.Dir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "export_dir",
			Status:  StatusError,
			Message: fmt.Sprintf("Failed to create directory: %s", err),
			Details: map[string]string{"path": dir},
		})
	} else if err := checkWritable(dir); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "export_dir",
			Status:  StatusError,
			Message: fmt.Sprintf("Directory is not writable: %s", err),
			Details: map[string]string{"path": dir},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "export_dir",
			Status:  StatusOK,
			Message: "Reports can be written",
			Details: map[string]string{"path": dir},
		})
	}

	dir = d.cfg.Watch.Dir
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		d.addResult(DiagnosticResult{
			Name:    "watch_dir",
			Status:  StatusWarning,
			Message: "Watch directory missing, the watch command will fail",
			Details: map[string]string{"path": dir},
		})
	case err != nil:
		d.addResult(DiagnosticResult{
			Name:    "watch_dir",
			Status:  StatusError,
			Message: fmt.Sprintf("Error checking directory: %s", err),
			Details: map[string]string{"path": dir},
		})
	case !info.IsDir():
		d.addResult(DiagnosticResult{
			Name:    "watch_dir",
			Status:  StatusError,
			Message: "Path exists but is not a directory",
			Details: map[string]string{"path": dir},
		})
	default:
		d.addResult(DiagnosticResult{
			Name:    "watch_dir",
			Status:  StatusOK,
			Message: "Directory exists",
			Details: map[string]string{"path": dir},
		})
	}
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".nids-write-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (d *Diagnostics) checkClassifier(ctx context.Context) {
	details := map[string]string{"url": d.cfg.Server.URL}
	if d.classifier == nil {
		d.addResult(DiagnosticResult{Name: "classifier", Status: StatusSkipped, Message: "No client configured", Details: details})
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	health, err := d.classifier.Health(checkCtx)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "classifier",
			Status:  StatusError,
			Message: fmt.Sprintf("Cannot reach classifier: %s", nerrors.UserMessage(err)),
			Details: details,
		})
		return
	}

	details["model"] = health.Model
	details["database"] = health.Database
	if !health.Healthy() {
		d.addResult(DiagnosticResult{
			Name:    "classifier",
			Status:  StatusWarning,
			Message: fmt.Sprintf("Classifier reports status %q", health.Status),
			Details: details,
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "classifier",
		Status:  StatusOK,
		Message: "Classifier is healthy",
		Details: details,
	})
}

func (d *Diagnostics) checkCache(ctx context.Context) {
	cfg := d.cfg.Cache
	if !cfg.Enabled {
		d.addResult(DiagnosticResult{
			Name:    "cache",
			Status:  StatusSkipped,
			Message: "Snapshot cache disabled, the dashboard starts empty",
		})
		return
	}
	if d.dialCache == nil {
		d.addResult(DiagnosticResult{Name: "cache", Status: StatusSkipped, Message: "No cache dialer configured"})
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, err := d.dialCache(checkCtx, cfg)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "cache",
			Status:  StatusWarning,
			Message: fmt.Sprintf("Cannot connect to Redis: %s", err),
			Details: map[string]string{"addr": cfg.Addr},
		})
		return
	}
	conn.Close()
	d.addResult(DiagnosticResult{
		Name:    "cache",
		Status:  StatusOK,
		Message: "Redis is reachable",
		Details: map[string]string{"addr": cfg.Addr, "key": cfg.Key},
	})
}

func (d *Diagnostics) checkArchive() {
	cfg := d.cfg.Archive
	if !cfg.Enabled {
		d.addResult(DiagnosticResult{
			Name:    "archive",
			Status:  StatusSkipped,
			Message: "Report archiving disabled",
		})
		return
	}

	creds := "default chain"
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = "static"
	}
	details := map[string]string{
		"bucket":      cfg.Bucket,
		"region":      cfg.Region,
		"credentials": creds,
	}
	if cfg.Endpoint != "" {
		details["endpoint"] = cfg.Endpoint
	}
	if cfg.AccessKeyID != "" {
		details["access_key"] = logging.MaskString(cfg.AccessKeyID, 4, 2)
	}

	if err := cfg.Validate(); err != nil {
		d.addResult(DiagnosticResult{Name: "archive", Status: StatusError, Message: err.Error(), Details: details})
		return
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		d.addResult(DiagnosticResult{
			Name:    "archive",
			Status:  StatusWarning,
			Message: "Only one static credential is set, falling back to the default chain",
			Details: details,
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "archive",
		Status:  StatusOK,
		Message: "Report archiving configured",
		Details: details,
	})
}

func (d *Diagnostics) checkMetricsPort() {
	addr := d.cfg.Metrics.ListenAddr
	if addr == "" {
		d.addResult(DiagnosticResult{
			Name:    "metrics_port",
			Status:  StatusSkipped,
			Message: "Metrics endpoint disabled",
		})
		return
	}

	// try to bind briefly
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "metrics_port",
			Status:  StatusError,
			Message: fmt.Sprintf("Address %s is not available: %s", addr, err),
			Details: map[string]string{"addr": addr},
		})
		return
	}
	listener.Close()
	d.addResult(DiagnosticResult{
		Name:    "metrics_port",
		Status:  StatusOK,
		Message: fmt.Sprintf("Address %s is available", addr),
		Details: map[string]string{"addr": addr},
	})
}

func (d *Diagnostics) checkSecurityConfiguration() {
	if !d.cfg.Production {
		d.addResult(DiagnosticResult{
			Name:    "production_mode",
			Status:  StatusWarning,
			Message: "Production mode is DISABLED - internal error details are shown to users",
			Details: map[string]string{"recommendation": "Set production=true"},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "production_mode",
			Status:  StatusOK,
			Message: "Production mode is enabled",
		})
	}

	u, err := url.Parse(d.cfg.Server.URL)
	if err == nil && strings.EqualFold(u.Scheme, "http") && !isLoopback(u.Hostname()) {
		d.addResult(DiagnosticResult{
			Name:    "classifier_transport",
			Status:  StatusWarning,
			Message: "Classifier is reached over plain HTTP",
			Details: map[string]string{
				"recommendation": "Use an https:// server URL",
				"risk":           "Traffic samples and predictions may be intercepted",
			},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "classifier_transport",
			Status:  StatusOK,
			Message: "Classifier transport is local or encrypted",
		})
	}

	if d.cfg.Cache.Enabled && d.cfg.Cache.Password != "" && !d.cfg.Cache.TLSEnabled {
		d.addResult(DiagnosticResult{
			Name:    "cache_transport",
			Status:  StatusWarning,
			Message: "Redis password is sent WITHOUT TLS",
			Details: map[string]string{"recommendation": "Set cache.tls_enabled=true"},
		})
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (d *Diagnostics) counts() (ok, warnings, errors, skipped int) {
	for _, r := range d.results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warnings++
		case StatusError:
			errors++
		case StatusSkipped:
			skipped++
		}
	}
	return ok, warnings, errors, skipped
}

func (d *Diagnostics) logSummary() {
	ok, warnings, errors, skipped := d.counts()
	d.logger.Info("diagnostics summary",
		"passed", ok,
		"warnings", warnings,
		"errors", errors,
		"skipped", skipped,
	)
}

// HasErrors returns true if any diagnostic check failed
func (d *Diagnostics) HasErrors() bool {
	for _, r := range d.results {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any diagnostic check has warnings
func (d *Diagnostics) HasWarnings() bool {
	for _, r := range d.results {
		if r.Status == StatusWarning {
			return true
		}
	}
	return false
}

// WriteReport prints results as a table followed by a summary line.
func WriteReport(w io.Writer, results []DiagnosticResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CHECK\tSTATUS\tMESSAGE\n")

	var ok, warnings, errors int
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Status, r.Message)
		switch r.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warnings++
		case StatusError:
			errors++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d warnings, %d errors\n", ok, warnings, errors)
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
