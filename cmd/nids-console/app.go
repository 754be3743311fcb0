package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"nids-console/internal/api"
	"nids-console/internal/batch"
	"nids-console/internal/cache"
	"nids-console/internal/config"
	"nids-console/internal/convert"
	nerrors "nids-console/internal/errors"
	"nids-console/internal/logging"
	"nids-console/internal/metrics"
	"nids-console/internal/poller"
	"nids-console/internal/report"
	"nids-console/internal/storage/s3"
	"nids-console/internal/telemetry"
	"nids-console/internal/watch"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	serverURL  string
}

// app holds the components built from the configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *api.Client
	metrics  *metrics.Metrics
	exporter *report.Exporter

	// nil when the cache is disabled
	snapshots *cache.SnapshotCache

	closers []io.Closer
}

// loadConfig reads, overrides, resolves and validates the configuration.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	if opts.configPath != "" {
		os.Setenv("NIDS_CONFIG_PATH", opts.configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.serverURL != "" {
		cfg.Server.URL = opts.serverURL
	}
	if err := cfg.ResolveSecrets(context.Background()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the engine. logOut receives log output.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	nerrors.SetProductionMode(cfg.Production)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		client:  newClassifierClient(cfg),
		metrics: metrics.New(),
	}

	if cfg.Cache.Enabled {
		rc, err := cache.NewGoRedisClient(ctx, cfg.Cache)
		if err != nil {
			// the dashboard works without a warm start
			logger.Warn("snapshot cache unavailable", "addr", cfg.Cache.Addr, "error", err)
		} else {
			a.snapshots = cache.NewSnapshotCache(rc, cfg.Cache)
			a.closers = append(a.closers, a.snapshots)
			logger.Info("snapshot cache enabled", "addr", cfg.Cache.Addr, "key", cfg.Cache.Key)
		}
	}

	var archiver report.Archiver
	if cfg.Archive.Enabled {
		client, err := s3.NewClient(ctx, cfg.Archive, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create report archive: %w", err)
		}
		archiver = s3.NewReportArchiver(client)
		a.metrics.RegisterArchive(func() metrics.ArchiveStats {
			m := client.GetMetrics()
			return metrics.ArchiveStats{Bytes: m.BytesUploaded, Objects: m.ObjectsUploaded, Errors: m.Errors}
		})
	}
	a.exporter = report.NewExporter(cfg.Export.Dir, archiver, logger)

	logger.Info("configuration loaded",
		"server", cfg.Server.URL,
		"poll_schedule", cfg.Polling.Schedule,
		"cache_enabled", a.snapshots != nil,
		"archive_enabled", cfg.Archive.Enabled,
		"production", cfg.Production,
	)
	return a, nil
}

func newClassifierClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Server.URL, cfg.Server.RequestTimeout)
}

// Close releases connections held by the app.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// serveMetrics exposes Prometheus metrics until ctx is done when an address
// is configured.
func (a *app) serveMetrics(ctx context.Context) {
	addr := a.cfg.Metrics.ListenAddr
	if addr == "" {
		return
	}
	go func() {
		if err := a.metrics.Serve(ctx, addr, a.logger); err != nil {
			a.logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
}

// newPoller builds the attack log poller. onSnapshot may be nil.
func (a *app) newPoller(onSnapshot func(telemetry.Snapshot)) (*poller.Poller, error) {
	sched, err := poller.ParseSchedule(a.cfg.Polling.Schedule)
	if err != nil {
		return nil, err
	}
	loc, err := a.cfg.Server.Location()
	if err != nil {
		return nil, err
	}

	pcfg := poller.Config{
		Schedule:   sched,
		Location:   loc,
		Logger:     a.logger.With("component", "poller"),
		Recorder:   a.metrics,
		OnSnapshot: onSnapshot,
	}
	if a.snapshots != nil {
		pcfg.Store = a.snapshots
	}
	return poller.New(a.client, pcfg), nil
}

// newBatch builds the batch controller. onChange may be nil.
func (a *app) newBatch(onChange func(batch.Session)) *batch.Controller {
	return batch.NewController(a.client, batch.Config{
		Progress:      a.cfg.Batch.Progress,
		SubmitTimeout: a.cfg.Batch.SubmitTimeout,
		Logger:        a.logger.With("component", "batch"),
		Recorder:      a.metrics,
		OnChange:      onChange,
	})
}

// processFile selects, submits and exports one file. It returns the final
// session and the export result, which is nil when nothing was exported.
func (a *app) processFile(ctx context.Context, ctrl *batch.Controller, f convert.File, export bool) (batch.Session, *report.ExportResult, error) {
	if err := ctrl.Select(f); err != nil {
		return ctrl.View(), nil, err
	}
	if err := ctrl.Submit(ctx); err != nil {
		return ctrl.View(), nil, err
	}

	sess := ctrl.View()
	if !export || len(sess.Results) == 0 {
		return sess, nil, nil
	}

	res, err := a.exporter.Export(ctx, sess.Results, time.Now())
	if err != nil {
		return sess, nil, fmt.Errorf("export report: %w", err)
	}
	return sess, res, nil
}

// watchHandler classifies and exports each dropped file.
func (a *app) watchHandler(ctrl *batch.Controller) watch.Handler {
	return func(ctx context.Context, path string) error {
		sess, res, err := a.processFile(ctx, ctrl, convert.LocalFile(path), true)
		if err != nil {
			return err
		}
		if res == nil {
			a.logger.Info("batch returned no predictions", "file", path, "message", sess.Message)
			return nil
		}
		if !sess.Persisted() {
			a.logger.Warn("classifier stored none of the batch", "file", path)
		}
		a.logger.Info("batch report exported",
			"file", path,
			"predictions", res.Rows,
			"saved", sess.SavedCount,
			"report", res.Path,
			"location", res.Location,
		)
		return nil
	}
}
