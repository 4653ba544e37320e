package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"epubsort/internal/discovery"
	"epubsort/internal/epub"
	"epubsort/internal/fileutil"
	"epubsort/internal/logging"
	"epubsort/internal/metrics"
	"epubsort/internal/normalizer"
	"epubsort/internal/services"
	"epubsort/internal/status"
	"epubsort/internal/textutil"
	"epubsort/internal/translation"
)

// processFile runs the phases for one file. A returned error means the
// record is incomplete and the caller turns it into an Error record.
func (o *Orchestrator) processFile(ctx context.Context, path string) (Record, error) {
	name := filepath.Base(path)
	rec := newRecord(name, path)
	logger := logging.WithContext(ctx, o.logger)

	if o.isCorrupted(name) {
		logger.Info("skipping corrupted file", logging.String(logging.FieldEventType, "corrupted_skip"))
		rec.Validation = Validation{Result: ValidationInvalid, Error: corruptedSkipMessage}
		rec.Outcome.FinalStatus = FinalError
		return rec, nil
	}

	err := o.stage(ctx, "validate", func(context.Context) error {
		return epub.Validate(path)
	})
	if err != nil {
		logging.WarnWithContext(logger, "epub validation failed; marking corrupted", "epub_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "replace the file, then run 'epubsort state clear-corrupted'"),
			logging.String(logging.FieldImpact, "file is skipped on every future run"))
		o.markCorrupted(name)
		rec.Validation = Validation{Result: ValidationInvalid, Error: validationFailMessage}
		rec.Outcome = Outcome{FinalStatus: FinalError, ErrorType: services.ErrorType(err), ErrorMessage: err.Error()}
		return rec, nil
	}

	var info epub.Info
	err = o.stage(ctx, "analyze", func(context.Context) error {
		var aerr error
		info, aerr = epub.Analyze(path)
		return aerr
	})
	if err != nil {
		logging.WarnWithContext(logger, "epub parse failed; marking corrupted", "epub_parse_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file is skipped on every future run"))
		o.markCorrupted(name)
		rec.Validation = Validation{Result: ValidationInvalid, Error: err.Error()}
		rec.Outcome = Outcome{FinalStatus: FinalError, ErrorType: services.ErrorType(err), ErrorMessage: err.Error()}
		return rec, nil
	}
	rec.Analysis = Analysis{
		ChapterCount:   info.ChapterCount,
		ContentHash:    info.ContentHash,
		FileSizeMB:     info.FileSizeMB,
		EmbeddedTitle:  info.Title,
		EmbeddedAuthor: info.Author,
		Language:       info.Language,
	}
	rec.Validation.Result = ValidationOK

	_ = o.stage(ctx, "dedup", func(context.Context) error {
		o.checkDuplicate(logger, &rec, path)
		return nil
	})

	_ = o.stage(ctx, "classify", func(stageCtx context.Context) error {
		d := o.deps.Classifier.Decide(stageCtx, name, info.Title)
		rec.Classification = Classification{
			Label:      d.Label,
			RawType:    d.RawType,
			Confidence: d.Confidence,
			Method:     d.Method,
			Reason:     d.Reason,
			Status:     ClassificationFailed,
		}
		if d.Known() {
			rec.Classification.Status = ClassificationSuccess
		}
		return nil
	})
	if rec.Classification.Label == translation.LabelUnknown {
		logger.Warn("translation type unknown; skipping web lookup and human report",
			logging.String("reason", rec.Classification.Reason))
		rec.Outcome.FinalStatus = FinalClassificationUnknown
		return rec, nil
	}

	var web *discovery.Metadata
	_ = o.stage(ctx, "enrich", func(stageCtx context.Context) error {
		web = o.enrich(stageCtx, &rec)
		return nil
	})
	if web != nil {
		rec.Web.Title = web.Title
		rec.Web.Author = web.Author
		rec.Web.StatusRaw = web.StatusRaw
		rec.Web.Chapters = web.ChapterCount
		rec.Web.Source = web.Source
		rec.Web.URL = web.URL
	}

	_ = o.stage(ctx, "resolve", func(context.Context) error {
		d := status.Resolve(rec.Analysis.ChapterCount, web)
		rec.Reader = Reader{Status: d.Status, Confidence: d.Confidence, Reason: d.Reason}
		return nil
	})
	rec.Outcome.FinalStatus = FinalOK

	if err := o.stage(ctx, "organize", func(context.Context) error {
		return o.organize(&rec)
	}); err != nil {
		return rec, err
	}
	return rec, nil
}

func (o *Orchestrator) checkDuplicate(logger *slog.Logger, rec *Record, path string) {
	hash := rec.Analysis.ContentHash
	if hash == "" {
		return
	}
	if first, ok := o.deps.Registry.Lookup(hash); ok && first != path {
		logger.Warn("duplicate content detected", logging.String("duplicate_of", first))
		rec.Duplicate = Duplicate{IsDuplicate: true, Of: first}
		return
	}
	o.deps.Registry.Register(hash, path)
}

// enrich normalizes the filename and looks the title up on the web, honoring
// the CAPTCHA cooldown. It never fails; problems mean no web data.
func (o *Orchestrator) enrich(ctx context.Context, rec *Record) *discovery.Metadata {
	logger := logging.WithContext(ctx, o.logger)
	now := o.now()
	if !o.cooldownUntil.IsZero() {
		if now.Before(o.cooldownUntil) {
			remaining := o.cooldownUntil.Sub(now).Round(time.Second)
			logger.Warn("captcha cooldown active; skipping web lookup",
				logging.Duration("remaining", remaining))
			rec.Web.CaptchaBlocked = true
			rec.Web.Attempted = false
			o.deps.Metrics.WebLookup(metrics.LookupSkipped)
			return nil
		}
		o.cooldownUntil = time.Time{}
		logger.Info("captcha cooldown expired; resuming web lookups")
	}
	rec.Web.Attempted = true

	norm := o.normalize(ctx, rec.Identity.Filename)
	if !norm.Usable() {
		logger.Warn("normalized title unusable; skipping web lookup",
			logging.String("canonical_title", norm.CanonicalTitle))
		o.deps.Metrics.WebLookup(metrics.LookupSkipped)
		return nil
	}
	title := strings.TrimSpace(norm.CanonicalTitle)
	rec.Web.NormalizedTitle = title

	var cached discovery.Metadata
	if o.deps.WebCache.Get(title, &cached) {
		logger.Info("using cached web metadata", logging.String(logging.FieldEventType, "cache_hit"))
		rec.Web.Succeeded = true
		o.deps.Metrics.WebLookup(metrics.LookupCached)
		return &cached
	}
	if o.deps.Searcher == nil {
		o.deps.Metrics.WebLookup(metrics.LookupSkipped)
		return nil
	}

	meta, err := o.deps.Searcher.Search(ctx, title)
	switch {
	case errors.Is(err, discovery.ErrBlocked):
		minutes := o.cfg.WebSearch.CaptchaCooldownMinutes
		o.cooldownUntil = now.Add(time.Duration(minutes) * time.Minute)
		rec.Web.CaptchaBlocked = true
		o.deps.Metrics.WebLookup(metrics.LookupBlocked)
		o.deps.Metrics.CaptchaTrip()
		logging.ErrorWithContext(logger, "captcha detected; pausing web lookups", "captcha_cooldown",
			logging.Int("cooldown_minutes", minutes),
			logging.String(logging.FieldErrorHint, "lookups resume automatically after the cooldown"))
		return nil
	case err != nil:
		logging.WarnWithContext(logger, "web lookup failed", "web_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status resolves without web data"))
		o.deps.Metrics.WebLookup(metrics.LookupError)
		return nil
	case meta == nil:
		o.deps.Metrics.WebLookup(metrics.LookupMiss)
		return nil
	}
	rec.Web.Succeeded = true
	o.deps.Metrics.WebLookup(metrics.LookupHit)
	o.deps.WebCache.Set(title, meta)
	return meta
}

// normalize returns the cached normalization for filename or computes and
// caches a new one.
func (o *Orchestrator) normalize(ctx context.Context, filename string) normalizer.Result {
	var cached normalizer.Result
	if o.deps.AICache.Get(filename, &cached) {
		logging.WithContext(ctx, o.logger).Debug("using cached title normalization",
			logging.String(logging.FieldEventType, "cache_hit"))
		return cached
	}
	result := o.deps.Normalizer.NormalizeOne(ctx, filename)
	o.deps.AICache.Set(filename, result)
	return result
}

// organize moves the file into <output>/<status>/ under its target name.
// Dry runs only record where it would go.
func (o *Orchestrator) organize(rec *Record) error {
	target := targetName(rec)
	rec.Outcome.FinalFilename = target
	base := o.cfg.Paths.OutputBaseFolder
	if o.cfg.Features.DryRun {
		rec.Outcome.FinalPath = dryRunPath(base, rec.Reader.Status)
		return nil
	}

	dir := filepath.Join(base, rec.Reader.Status)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrSystem, "organize", "create status folder", dir, err)
	}
	dst, err := fileutil.UniquePath(dir, target)
	if err != nil {
		return services.Wrap(services.ErrSystem, "organize", "resolve target", target, err)
	}
	if err := fileutil.MoveAtomic(rec.Identity.Path, dst); err != nil {
		return services.Wrap(services.ErrSystem, "organize", "move file", dst, err)
	}
	rec.Outcome.FinalPath = dst
	rec.Outcome.FinalFilename = filepath.Base(dst)
	return nil
}

// targetName builds "[Status] Title - Author - Source.epub", leaving out an
// unknown author and an empty source.
func targetName(rec *Record) string {
	title := strings.TrimSpace(rec.Web.NormalizedTitle)
	if title == "" {
		title = strings.TrimSpace(rec.Analysis.EmbeddedTitle)
	}
	if title == "" {
		title = stem(rec.Identity.Filename)
	}
	parts := []string{textutil.SafeFileName(title)}
	if author := strings.TrimSpace(rec.Web.Author); author != "" && author != "Unknown" {
		parts = append(parts, textutil.SafeFileName(author))
	}
	if source := strings.TrimSpace(rec.Web.Source); source != "" && source != "Unknown" {
		parts = append(parts, textutil.SafeFileName(source))
	}
	return "[" + rec.Reader.Status + "] " + strings.Join(parts, " - ") + ".epub"
}
