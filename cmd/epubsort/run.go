package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"epubsort/internal/logging"
	"epubsort/internal/metrics"
	"epubsort/internal/pipeline"
	"epubsort/internal/report"
	"epubsort/internal/status"
)

const metricsFile = "metrics.prom"

type runOptions struct {
	dryRun   bool
	noResume bool
	noCache  bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every EPUB in the input folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Classify and report without moving files")
	cmd.Flags().BoolVar(&opts.noResume, "no-resume", false, "Ignore the checkpoint ledger")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the web and AI result caches")
	return cmd
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if opts.dryRun {
		cfg.Features.DryRun = true
	}
	if opts.noResume {
		cfg.Features.ResumeEnabled = false
	}
	if opts.noCache {
		cfg.Features.CacheEnabled = false
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another epubsort run holds %s", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("epubsort starting", logging.String("config", ctx.configPath))
	for _, warning := range cfg.Warnings() {
		logging.WarnWithContext(logger, warning, "config_warning")
	}

	recorder := metrics.New()
	orch, err := pipeline.New(cfg, pipeline.DependenciesFromConfig(cfg, logger, recorder), logger)
	if err != nil {
		return err
	}
	summary, runErr := orch.Run(cmd.Context())
	if err := orch.Close(); err != nil {
		logger.Warn("browser shutdown failed", logging.Error(err))
	}

	if err := report.WriteAll(cfg.Paths.ReportDir, summary.Records, logger); err != nil {
		logger.Warn("report generation incomplete", logging.Error(err))
	}
	promPath := filepath.Join(cfg.Paths.ReportDir, metricsFile)
	if err := recorder.WriteTextfile(promPath); err != nil {
		logger.Warn("metrics export failed", logging.String("path", promPath), logging.Error(err))
	}

	out := cmd.OutOrStdout()
	printSummary(out, summary, cfg.Features.DryRun, shouldColorize(out))
	return runErr
}

func printSummary(out io.Writer, summary pipeline.Summary, dryRun bool, colorize bool) {
	counts := summary.Counts()
	readers := make(map[string]int)
	for _, rec := range summary.Records {
		if rec.Outcome.FinalStatus == pipeline.FinalOK {
			readers[rec.Reader.Status]++
		}
	}

	rows := [][]string{
		{"Processed", strconv.Itoa(len(summary.Records))},
		{"Skipped (already done)", strconv.Itoa(summary.Skipped)},
		{"OK", strconv.Itoa(counts[pipeline.FinalOK])},
		{"  " + status.Full, strconv.Itoa(readers[status.Full])},
		{"  " + status.Ongoing, strconv.Itoa(readers[status.Ongoing])},
		{"  " + status.Unknown, strconv.Itoa(readers[status.Unknown])},
		{"Classification unknown", strconv.Itoa(counts[pipeline.FinalClassificationUnknown])},
		{"Errors", strconv.Itoa(counts[pipeline.FinalError])},
		{"Duration", summary.Duration.Round(time.Second).String()},
	}
	title := "Run summary"
	if dryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, colorize))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
