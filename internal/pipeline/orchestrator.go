package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"epubsort/internal/checkpoint"
	"epubsort/internal/config"
	"epubsort/internal/dedup"
	"epubsort/internal/discovery"
	"epubsort/internal/logging"
	"epubsort/internal/metrics"
	"epubsort/internal/normalizer"
	"epubsort/internal/resultcache"
	"epubsort/internal/services"
	"epubsort/internal/translation"
)

// Classifier decides the translation type of a file.
type Classifier interface {
	Decide(ctx context.Context, filename, epubTitle string) translation.Decision
}

// TitleNormalizer turns a filename into a searchable title.
type TitleNormalizer interface {
	NormalizeOne(ctx context.Context, filename string) normalizer.Result
}

// Searcher looks a title up on the web. A nil result means no data.
type Searcher interface {
	Search(ctx context.Context, title string) (*discovery.Metadata, error)
}

// Dependencies are the collaborators of an Orchestrator. Ledger, caches and
// Searcher may be nil: resume, caching and web lookups are then disabled.
type Dependencies struct {
	Classifier Classifier
	Normalizer TitleNormalizer
	Searcher   Searcher
	Ledger     *checkpoint.Ledger
	Registry   *dedup.Registry
	WebCache   *resultcache.Store
	AICache    *resultcache.Store
	Metrics    *metrics.Recorder
}

// Summary is the outcome of one run.
type Summary struct {
	Records  []Record
	Skipped  int
	Duration time.Duration
}

// Counts tallies records by final status.
func (s Summary) Counts() map[string]int {
	counts := make(map[string]int)
	for _, rec := range s.Records {
		counts[rec.Outcome.FinalStatus]++
	}
	return counts
}

// Orchestrator processes the input folder sequentially.
type Orchestrator struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time

	corrupted     map[string]struct{}
	cooldownUntil time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects the time source used for cooldowns and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an orchestrator. Classifier and Normalizer are required.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "config required", nil)
	}
	if deps.Classifier == nil || deps.Normalizer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "classifier and normalizer required", nil)
	}
	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		now:       time.Now,
		corrupted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, name := range deps.Ledger.Corrupted() {
		o.corrupted[name] = struct{}{}
	}
	return o, nil
}

// Run processes every *.epub in the input folder. It returns the records
// produced so far together with ctx.Err() when interrupted.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	start := o.now()
	summary := Summary{}
	defer func() {
		summary.Duration = o.now().Sub(start)
		o.deps.Metrics.SetRunDuration(summary.Duration)
	}()

	input := o.cfg.Paths.InputFolder
	runID := uuid.NewString()
	o.logger.Info("pipeline started",
		logging.String("run_id", runID),
		logging.String("input", input),
		logging.Bool("dry_run", o.cfg.Features.DryRun),
		logging.Bool("resume", o.deps.Ledger != nil),
		logging.Bool("cache", o.deps.WebCache != nil))

	files, err := o.listInputs(input)
	if err != nil {
		return summary, err
	}
	if files == nil {
		return summary, nil
	}
	o.logger.Info("epub files found", logging.Int("count", len(files)))

	for idx, path := range files {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("run interrupted; remaining files left for next run",
				logging.Int("remaining", len(files)-idx))
			return summary, err
		}
		name := filepath.Base(path)
		if o.deps.Ledger.IsProcessed(name) {
			o.logger.Info("skipping already processed file",
				logging.String(logging.FieldFile, name),
				logging.String(logging.FieldEventType, "checkpoint_skip"))
			summary.Skipped++
			continue
		}

		fileCtx := services.WithFile(ctx, name)
		fileCtx = services.WithRequestID(fileCtx, uuid.NewString())
		logging.WithContext(fileCtx, o.logger).Info("processing file",
			logging.String("run_id", runID),
			logging.Int("index", idx+1),
			logging.Int("total", len(files)))

		// An interrupt lets the current file finish; the loop stops before the next one.
		rec, procErr := o.processFile(context.WithoutCancel(fileCtx), path)
		if procErr != nil {
			rec.Outcome = Outcome{
				FinalStatus:  FinalError,
				ErrorType:    services.ErrorType(procErr),
				ErrorMessage: procErr.Error(),
			}
			logging.ErrorWithContext(logging.WithContext(fileCtx, o.logger), "file processing failed", "file_failed",
				logging.Error(procErr),
				logging.String("error_type", rec.Outcome.ErrorType),
				logging.String(logging.FieldErrorHint, "file is retried on the next run"))
		}
		summary.Records = append(summary.Records, rec)
		o.deps.Metrics.FileProcessed(rec.Outcome.FinalStatus)
		if procErr == nil && !o.cfg.Features.DryRun && !o.isCorrupted(name) {
			o.deps.Ledger.MarkProcessed(name, map[string]any{"final_status": rec.Outcome.FinalStatus})
		}
	}

	o.logger.Info("pipeline complete",
		logging.Int("processed", len(summary.Records)),
		logging.Int("skipped", summary.Skipped))
	return summary, nil
}

// listInputs returns the epub files in lexical order. A missing input folder
// is created and yields nil.
func (o *Orchestrator) listInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(input, 0o755); err != nil {
			return nil, services.Wrap(services.ErrSystem, "pipeline", "create input folder", input, err)
		}
		o.logger.Info("created input folder; add EPUB files and run again", logging.String("input", input))
		return nil, nil
	case err != nil:
		return nil, services.Wrap(services.ErrSystem, "pipeline", "stat input folder", input, err)
	case !info.IsDir():
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "stat input folder", "not a directory: "+input, nil)
	}

	files, err := filepath.Glob(filepath.Join(input, "*.epub"))
	if err != nil {
		return nil, services.Wrap(services.ErrSystem, "pipeline", "list input folder", input, err)
	}
	slices.Sort(files)
	if len(files) == 0 {
		o.logger.Info("no epub files found", logging.String("input", input))
		return nil, nil
	}
	return files, nil
}

// stage runs fn with the stage name in ctx and logs start and completion.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, o.logger)
	started := o.now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	err := fn(stageCtx)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", o.now().Sub(started)),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logger.Info("stage completed", logging.Args(attrs...)...)
	return err
}

func (o *Orchestrator) markCorrupted(name string) {
	o.corrupted[name] = struct{}{}
	o.deps.Ledger.MarkCorrupted(name)
}

func (o *Orchestrator) isCorrupted(name string) bool {
	_, ok := o.corrupted[name]
	return ok
}

func stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func dryRunPath(outputBase, status string) string {
	return fmt.Sprintf("%s%s/%s/", dryRunPrefix, outputBase, status)
}
