// Package main is the entry point for the NIDS console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nids-console/internal/batch"
	"nids-console/internal/convert"
	nerrors "nids-console/internal/errors"
	"nids-console/internal/logging"
	"nids-console/internal/render"
	"nids-console/internal/startup"
	"nids-console/internal/tui"
	"nids-console/internal/watch"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "nids-console",
		Short:        "Monitor and batch-classify network traffic with a remote NIDS classifier",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $NIDS_CONFIG_PATH or configs/config.yaml)")
	root.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", "", "classifier base URL (overrides config)")

	root.AddCommand(
		newDashboardCmd(opts),
		newBatchCmd(opts),
		newSnapshotCmd(opts),
		newWatchCmd(opts),
		newDoctorCmd(opts),
		newVersionCmd(),
	)
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newDashboardCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the terminal dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			// log lines would corrupt the alt screen
			logFile, err := logging.OpenFile(cfg.Logging.File)
			if err != nil {
				return err
			}
			defer logFile.Close()

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg, logFile)
			if err != nil {
				return err
			}
			defer a.Close()
			a.serveMetrics(ctx)

			feed := tui.NewFeed()
			p, err := a.newPoller(feed.PublishSnapshot)
			if err != nil {
				return err
			}
			if err := p.Start(ctx); err != nil {
				return err
			}
			defer p.Stop()

			ctrl := a.newBatch(feed.PublishSession)
			defer ctrl.Reset()

			return tui.Run(ctx, tui.Deps{
				Snapshots:   p,
				Batch:       ctrl,
				Exporter:    a.exporter,
				Backend:     a.client,
				Feed:        feed,
				PreviewRows: cfg.Batch.PreviewRows,
			})
		},
	}
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		export bool
		output string
		rows   int
	)

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Classify a CSV or XLSX traffic file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if rows <= 0 {
				rows = cfg.Batch.PreviewRows
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl := a.newBatch(nil)
			sess, res, err := a.processFile(ctx, ctrl, convert.LocalFile(args[0]), export)
			if err != nil {
				if sess.State == batch.StateSucceeded {
					// classified but the report could not be written
					return nerrors.SanitizeError(err)
				}
				if sess.Message != "" {
					return fmt.Errorf("%s", sess.Message)
				}
				return fmt.Errorf("%s", nerrors.UserMessage(err))
			}

			if err := render.New(format).Batch(cmd.OutOrStdout(), sess, rows); err != nil {
				return err
			}
			if res != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", res.Path)
				if res.Location != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Report archived to %s\n", res.Location)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&export, "export", "e", false, "write the CSV report to the export directory")
	cmd.Flags().StringVarP(&output, "output", "o", string(render.FormatTable), "output format (table or json)")
	cmd.Flags().IntVar(&rows, "rows", 0, "number of predictions to print (default from config)")
	return cmd
}

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch the attack log once and print its aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.newPoller(nil)
			if err != nil {
				return err
			}
			snap, err := p.Poll(ctx)
			if err != nil {
				return fmt.Errorf("%s", nerrors.UserMessage(err))
			}
			return render.New(format).Snapshot(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(render.FormatTable), "output format (table or json)")
	return cmd
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		dir      string
		existing bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Classify and export every traffic file dropped into a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			wcfg := cfg.Watch
			if dir != "" {
				wcfg.Dir = dir
			}
			if cmd.Flags().Changed("existing") {
				wcfg.ProcessExisting = existing
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			a.serveMetrics(ctx)

			ctrl := a.newBatch(nil)
			wcfg.Logger = a.logger.With("component", "watch")
			w := watch.New(wcfg, a.watchHandler(ctrl))

			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to watch (default from config)")
	cmd.Flags().BoolVar(&existing, "existing", false, "also process files already in the directory")
	return cmd
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and connectivity to the classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}

			var dial startup.CacheDialer
			if cfg.Cache.Enabled {
				dial = startup.DialRedis
			}
			client := newClassifierClient(cfg)
			d := startup.NewDiagnostics(cfg, client, dial, logger)

			results := d.RunAll(ctx)
			if err := startup.WriteReport(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if d.HasErrors() {
				return fmt.Errorf("diagnostics found errors")
			}
			if strict && d.HasWarnings() {
				return fmt.Errorf("diagnostics found warnings")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on warnings as well as errors")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nids-console %s\n", version)
		},
	}
}
