package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgerfeed/internal/config"
	"github.com/cleared-dev/ledgerfeed/internal/importer"
	"github.com/cleared-dev/ledgerfeed/internal/logctx"
	"github.com/cleared-dev/ledgerfeed/internal/runlog"
)

type runOptions struct {
	configPath string
	feed       string
	dryRun     bool
	strict     bool
	debug      bool
	human      bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import new rows from every configured feed",
		Long: `Lists each feed's source location, appends the rows newer than the
destination table's last date and moves every processed file to the archive
location. Files that fail stay in place and are retried on the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logctx.New(cmd.ErrOrStderr(), opts.debug, opts.human)
			ctx := logctx.WithLogger(cmd.Context(), log)
			return runImport(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", DefaultConfigFile, "config file")
	cmd.Flags().StringVar(&opts.feed, "feed", "", "run only the named feed")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would be imported without writing or moving anything")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when any file or feed failed")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&opts.human, "human", false, "human-readable log output instead of JSON")

	return cmd
}

func runImport(ctx context.Context, out io.Writer, opts runOptions) error {
	log := logctx.FromContext(ctx)

	configPath, err := filepath.Abs(opts.configPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	baseDir := filepath.Dir(configPath)

	st := newStores(cfg, baseDir)
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("closing table stores")
		}
	}()
	feeds, err := st.feeds(ctx, opts.feed)
	if err != nil {
		return fmt.Errorf("setting up feeds: %w", err)
	}

	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	engine := importer.New(importer.Options{
		Location: loc,
		Retry: importer.RetryPolicy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
		DryRun:      opts.dryRun,
		Concurrency: cfg.Concurrency,
	})
	report, runErr := engine.Run(ctx, feeds)

	printReport(out, report, opts.dryRun)

	if !opts.dryRun && cfg.RunLog != "" {
		path := resolvePath(baseDir, cfg.RunLog)
		if err := writeRunLog(path, report, time.Now().In(loc)); err != nil {
			log.Warn().Err(err).Str("run_log", path).Msg("failed to write run log")
		}
	}

	if runErr != nil {
		return runErr
	}
	if t := report.Totals(); opts.strict && !report.OK() {
		return fmt.Errorf("%d files failed, %d feeds could not be listed", t.Failed, t.FeedFailures)
	}
	return nil
}

func writeRunLog(path string, report *importer.RunReport, now time.Time) error {
	existing, err := runlog.Read(path)
	if err != nil {
		return err
	}
	runID := runlog.NextRunID(existing, now)
	return runlog.Append(path, runlog.FromReport(report, runID, now))
}

func printReport(out io.Writer, report *importer.RunReport, dryRun bool) {
	verb := "imported"
	if dryRun {
		verb = "would import"
	}
	for _, f := range report.Feeds {
		if f.Err != nil {
			fmt.Fprintf(out, "%s: failed: %v\n", f.Feed, f.Err)
			continue
		}
		rows, failed := 0, 0
		for _, r := range f.Files {
			if r.State == importer.StateFailed {
				failed++
				continue
			}
			rows += r.Imported
		}
		line := fmt.Sprintf("%s: %d files, %s %d rows", f.Feed, len(f.Files), verb, rows)
		if amount, ok := f.ImportedAmount(); ok {
			line += fmt.Sprintf(" totaling %s", amount.StringFixed(2))
		}
		if failed > 0 {
			line += fmt.Sprintf(", %d failed", failed)
		}
		fmt.Fprintln(out, line)
	}
}
