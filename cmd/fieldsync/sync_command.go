package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"fieldsync/internal/hierarchy"
	"fieldsync/internal/logging"
	"fieldsync/internal/metrics"
	"fieldsync/internal/store"
	"fieldsync/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var serverFlag string
	var manifestFlag string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization cycle",
		Long: "Reconcile the manifest's videos against the entry store, upload new or changed\n" +
			"videos and params, and poll inference status for everything already uploaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			manifestPath := strings.TrimSpace(manifestFlag)
			if manifestPath == "" {
				manifestPath = cfg.Paths.Manifest
			}
			manifest, err := hierarchy.Load(manifestPath)
			if err != nil {
				return err
			}
			items, err := manifest.MediaItems()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(runCtx)

			rec := metrics.New()
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var printMu sync.Mutex
			report := func(msg syncer.Message) {
				if quiet && msg.Level == syncer.LevelInfo {
					return
				}
				printMu.Lock()
				defer printMu.Unlock()
				fmt.Fprintln(out, renderProgressLine(msg, colorize))
			}

			return ctx.withStore(cmd, func(st *store.Store, logger *slog.Logger) error {
				engine := syncer.NewEngine(cfg, st, logger, syncer.WithMetrics(rec))
				rep, err := engine.Sync(runCtx, serverFlag, items, report)
				writeMetrics(runCtx, logger, rec, cfg.Metrics.Textfile)
				if err != nil {
					logging.ErrorWithContext(logger, "sync cycle failed", "sync_failed",
						logging.String(logging.FieldServerURL, rep.ServerURL),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "fix the reported problem and run fieldsync sync again"),
					)
					return err
				}
				fmt.Fprintln(out, paint(fmt.Sprintf("Sync finished: %s", rep.Summary()), summaryKind(rep), colorize))
				return nil
			}, store.WithObserver(rec))
		},
	}

	cmd.Flags().StringVarP(&serverFlag, "server", "s", "", "Inference server base URL (overrides server.url)")
	cmd.Flags().StringVarP(&manifestFlag, "manifest", "m", "", "Hierarchy manifest (overrides paths.manifest)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print warnings, errors, and the summary")
	return cmd
}

func writeMetrics(ctx context.Context, logger *slog.Logger, rec *metrics.Recorder, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := rec.WriteTextfile(path); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "metrics textfile not written", "metrics_write_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "metrics for this cycle are not exported"),
		)
	}
}

func summaryKind(rep syncer.Report) statusKind {
	switch {
	case rep.Upload.Failed+rep.Upload.Rejected+rep.Inference.Failed > 0:
		return statusWarn
	case rep.Cancelled:
		return statusWarn
	default:
		return statusOK
	}
}
