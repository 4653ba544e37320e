package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"epubsort/internal/config"
	"epubsort/internal/dedup"
	"epubsort/internal/discovery"
	"epubsort/internal/logging"
	"epubsort/internal/metrics"
	"epubsort/internal/normalizer"
	"epubsort/internal/resultcache"
	"epubsort/internal/services"
	"epubsort/internal/status"
	"epubsort/internal/testsupport"
	"epubsort/internal/translation"
)

type fakeClassifier struct {
	decision translation.Decision
	calls    int
}

func (f *fakeClassifier) Decide(context.Context, string, string) translation.Decision {
	f.calls++
	return f.decision
}

type fakeNormalizer struct {
	title string
	calls int
}

func (f *fakeNormalizer) NormalizeOne(_ context.Context, filename string) normalizer.Result {
	f.calls++
	return normalizer.Result{OriginalFilename: filename, CanonicalTitle: f.title, Confidence: 0.9, TrustLevel: normalizer.TrustHigh}
}

type fakeSearcher struct {
	meta    *discovery.Metadata
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, title string) (*discovery.Metadata, error) {
	f.queries = append(f.queries, title)
	return f.meta, f.err
}

var humanDecision = translation.Decision{
	Label:      translation.LabelHuman,
	RawType:    translation.RawDich,
	Confidence: 0.95,
	Method:     translation.MethodHeuristic,
	Reason:     "keyword",
}

func webMeta(chapters int) *discovery.Metadata {
	return &discovery.Metadata{
		Title:        "Tiên Nghịch",
		Author:       "Nhĩ Căn",
		StatusRaw:    discovery.StatusFull,
		ChapterCount: chapters,
		Source:       "Metruyencv",
		URL:          "https://metruyencv.com/truyen/tien-nghich",
	}
}

type harness struct {
	cfg      *config.Config
	deps     Dependencies
	search   *fakeSearcher
	classify *fakeClassifier
	norm     *fakeNormalizer
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{
		cfg:      cfg,
		search:   &fakeSearcher{meta: webMeta(10)},
		classify: &fakeClassifier{decision: humanDecision},
		norm:     &fakeNormalizer{title: "Tiên Nghịch"},
	}
	web, ai := resultcache.OpenDir(cfg.Paths.CacheDir, 24*time.Hour, logging.NewNop())
	h.deps = Dependencies{
		Classifier: h.classify,
		Normalizer: h.norm,
		Searcher:   h.search,
		Ledger:     testsupport.OpenLedger(t, cfg),
		Registry:   dedup.Open(filepath.Join(cfg.Paths.CacheDir, dedup.FileName), logging.NewNop()),
		WebCache:   web,
		AICache:    ai,
		Metrics:    metrics.New(),
	}
	return h
}

func (h *harness) run(t *testing.T, opts ...Option) Summary {
	t.Helper()
	o, err := New(h.cfg, h.deps, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return summary
}

func (h *harness) book(t *testing.T, name string, chapters int) string {
	t.Helper()
	return testsupport.WriteEPUB(t, h.cfg.Paths.InputFolder, name, testsupport.EPUBSpec{
		Title:    "Tiên Nghịch",
		Author:   "Nhĩ Căn",
		Language: "vi",
		Chapters: chapters,
	})
}

func TestRunOrganizesFileByStatus(t *testing.T) {
	h := newHarness(t)
	src := h.book(t, "tien-nghich [Dịch].epub", 12)

	summary := h.run(t)

	if len(summary.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(summary.Records))
	}
	rec := summary.Records[0]
	if rec.Outcome.FinalStatus != FinalOK {
		t.Fatalf("unexpected outcome: %+v", rec.Outcome)
	}
	if rec.Reader.Status != status.Full || rec.Classification.Status != ClassificationSuccess {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.Web.Attempted || !rec.Web.Succeeded || rec.Web.Chapters != 10 {
		t.Fatalf("unexpected web fields: %+v", rec.Web)
	}
	want := filepath.Join(h.cfg.Paths.OutputBaseFolder, "Full", "[Full] Tiên-Nghịch - Nhĩ-Căn - Metruyencv.epub")
	if rec.Outcome.FinalPath != want {
		t.Fatalf("unexpected final path: got %q want %q", rec.Outcome.FinalPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected organized file: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source removed, stat err: %v", err)
	}
	if !h.deps.Ledger.IsProcessed("tien-nghich [Dịch].epub") {
		t.Fatal("expected ledger to mark file processed")
	}
}

func TestRunSkipsProcessedFiles(t *testing.T) {
	h := newHarness(t)
	h.book(t, "a.epub", 3)
	h.deps.Ledger.MarkProcessed("a.epub", map[string]any{"final_status": FinalOK})

	summary := h.run(t)

	if len(summary.Records) != 0 || summary.Skipped != 1 {
		t.Fatalf("expected one skipped file, got %+v", summary)
	}
	if h.classify.calls != 0 {
		t.Fatal("expected classifier not to run for a processed file")
	}
}

func TestRunCorruptedFileIsPermanentlySkipped(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.InputFolder, "broken.epub"), "not a zip")

	first := h.run(t)
	rec := first.Records[0]
	if rec.Outcome.FinalStatus != FinalError || rec.Validation.Result != ValidationInvalid {
		t.Fatalf("unexpected first record: %+v", rec)
	}
	if rec.Validation.Error != validationFailMessage || rec.Outcome.ErrorType != "input_error" {
		t.Fatalf("unexpected validation failure: %+v", rec)
	}
	if !h.deps.Ledger.IsCorrupted("broken.epub") {
		t.Fatal("expected ledger corrupted mark")
	}

	second := h.run(t)
	if len(second.Records) != 1 {
		t.Fatalf("expected corrupted file to produce a record, got %+v", second)
	}
	if got := second.Records[0].Validation.Error; got != corruptedSkipMessage {
		t.Fatalf("expected corrupted skip, got %q", got)
	}
	if h.deps.Ledger.IsProcessed("broken.epub") {
		t.Fatal("corrupted file must not be marked ok")
	}
}

func TestRunDryRunLeavesFilesInPlace(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	src := h.book(t, "a.epub", 3)

	summary := h.run(t)

	rec := summary.Records[0]
	want := dryRunPrefix + h.cfg.Paths.OutputBaseFolder + "/" + status.Ongoing + "/"
	if rec.Outcome.FinalPath != want {
		t.Fatalf("unexpected dry-run path: got %q want %q", rec.Outcome.FinalPath, want)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected source untouched: %v", err)
	}
	if h.deps.Ledger.IsProcessed("a.epub") {
		t.Fatal("dry run must not mark files processed")
	}
}

func TestRunCollisionGetsVersionSuffix(t *testing.T) {
	h := newHarness(t)
	h.book(t, "a.epub", 12)
	testsupport.WriteEPUB(t, h.cfg.Paths.InputFolder, "b.epub", testsupport.EPUBSpec{Title: "Khác", Chapters: 12})

	summary := h.run(t)

	if len(summary.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(summary.Records))
	}
	second := summary.Records[1].Outcome.FinalFilename
	if second != "[Full] Tiên-Nghịch - Nhĩ-Căn - Metruyencv_v1.epub" {
		t.Fatalf("unexpected collision name %q", second)
	}
}

func TestRunMarksDuplicates(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.book(t, "a.epub", 4)
	h.book(t, "b.epub", 4)

	summary := h.run(t)

	if summary.Records[0].Duplicate.IsDuplicate {
		t.Fatal("first copy must not be a duplicate")
	}
	dup := summary.Records[1].Duplicate
	if !dup.IsDuplicate || filepath.Base(dup.Of) != "a.epub" {
		t.Fatalf("expected duplicate of a.epub, got %+v", dup)
	}
	if summary.Records[1].Outcome.FinalStatus != FinalOK {
		t.Fatal("duplicates are still processed")
	}
}

func TestRunUnknownClassificationSkipsWeb(t *testing.T) {
	h := newHarness(t)
	h.classify.decision = translation.Decision{Label: translation.LabelUnknown, RawType: translation.RawUnknown, Method: translation.MethodUnknown}
	src := h.book(t, "a.epub", 3)

	summary := h.run(t)

	rec := summary.Records[0]
	if rec.Outcome.FinalStatus != FinalClassificationUnknown || rec.Classification.Status != ClassificationFailed {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(h.search.queries) != 0 || h.norm.calls != 0 {
		t.Fatal("expected web lookup to be skipped")
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file left in input: %v", err)
	}
	if !h.deps.Ledger.IsProcessed("a.epub") {
		t.Fatal("expected classification unknown to count as processed")
	}
}

func TestRunCaptchaCooldown(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.search.err = services.Wrap(services.ErrWeb, "discovery", "search", "captcha detected", discovery.ErrBlocked)
	h.book(t, "a.epub", 3)
	testsupport.WriteEPUB(t, h.cfg.Paths.InputFolder, "b.epub", testsupport.EPUBSpec{Title: "Khác", Chapters: 2})

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	summary := h.run(t, WithClock(func() time.Time { return now }))

	first, second := summary.Records[0], summary.Records[1]
	if !first.Web.Attempted || !first.Web.CaptchaBlocked {
		t.Fatalf("expected blocked attempt, got %+v", first.Web)
	}
	if second.Web.Attempted || !second.Web.CaptchaBlocked {
		t.Fatalf("expected cooldown skip, got %+v", second.Web)
	}
	if len(h.search.queries) != 1 {
		t.Fatalf("expected one search during cooldown, got %d", len(h.search.queries))
	}
	if first.Outcome.FinalStatus != FinalOK || first.Reader.Status != status.Unknown {
		t.Fatalf("blocked lookup must not fail the file: %+v", first)
	}
}

func TestRunCooldownExpires(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.search.err = discovery.ErrBlocked
	h.book(t, "a.epub", 3)
	testsupport.WriteEPUB(t, h.cfg.Paths.InputFolder, "b.epub", testsupport.EPUBSpec{Title: "Khác", Chapters: 2})

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current := now
		now = now.Add(6 * time.Minute)
		return current
	}
	h.run(t, WithClock(clock))

	if len(h.search.queries) != 2 {
		t.Fatalf("expected search after cooldown expiry, got %d searches", len(h.search.queries))
	}
}

func TestRunUsesCaches(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.deps.WebCache.Set("Tiên Nghịch", webMeta(2))
	h.deps.AICache.Set("a.epub", normalizer.Result{OriginalFilename: "a.epub", CanonicalTitle: "Tiên Nghịch", Confidence: 0.9})
	h.book(t, "a.epub", 3)

	summary := h.run(t)

	if h.norm.calls != 0 || len(h.search.queries) != 0 {
		t.Fatalf("expected cached results, normalizer=%d searches=%d", h.norm.calls, len(h.search.queries))
	}
	rec := summary.Records[0]
	if !rec.Web.Succeeded || rec.Reader.Status != status.Full {
		t.Fatalf("unexpected record from cache: %+v", rec)
	}
}

func TestRunCachesSearchResults(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.book(t, "a.epub", 3)

	h.run(t)

	var cached discovery.Metadata
	if !h.deps.WebCache.Get("Tiên Nghịch", &cached) || cached.ChapterCount != 10 {
		t.Fatalf("expected web result cached, got %+v", cached)
	}
	var norm normalizer.Result
	if !h.deps.AICache.Get("a.epub", &norm) || norm.CanonicalTitle != "Tiên Nghịch" {
		t.Fatalf("expected normalization cached, got %+v", norm)
	}
}

func TestRunUnusableTitleSkipsSearch(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.norm.title = "Unknown"
	h.book(t, "a.epub", 3)

	summary := h.run(t)

	if len(h.search.queries) != 0 {
		t.Fatal("expected no search for an unusable title")
	}
	if got := summary.Records[0].Reader.Status; got != status.Unknown {
		t.Fatalf("expected Unknown status, got %q", got)
	}
}

func TestRunSearchErrorIsNoData(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.search.err = errors.New("browser crashed")
	h.book(t, "a.epub", 3)

	summary := h.run(t)

	rec := summary.Records[0]
	if rec.Outcome.FinalStatus != FinalOK || rec.Web.Succeeded || rec.Web.CaptchaBlocked {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestRunMoveFailureIsRetriedNextRun(t *testing.T) {
	h := newHarness(t)
	h.book(t, "a.epub", 12)
	// A regular file where the status folder should be makes MkdirAll fail.
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.OutputBaseFolder, "Full"), "blocker")

	summary := h.run(t)

	rec := summary.Records[0]
	if rec.Outcome.FinalStatus != FinalError || rec.Outcome.ErrorType != "system_error" {
		t.Fatalf("unexpected outcome: %+v", rec.Outcome)
	}
	if h.deps.Ledger.IsProcessed("a.epub") {
		t.Fatal("raised errors must not mark the ledger")
	}
}

func TestRunCreatesMissingInputFolder(t *testing.T) {
	h := newHarness(t)

	summary := h.run(t)

	if len(summary.Records) != 0 {
		t.Fatalf("expected empty run, got %+v", summary)
	}
	if info, err := os.Stat(h.cfg.Paths.InputFolder); err != nil || !info.IsDir() {
		t.Fatalf("expected input folder created: %v", err)
	}
}

func TestRunStopsBetweenFilesOnCancel(t *testing.T) {
	h := newHarness(t, testsupport.WithDryRun(true))
	h.book(t, "a.epub", 3)

	o, err := New(h.cfg, h.deps, logging.NewNop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(summary.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(summary.Records))
	}
}

type cancellingSearcher struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingSearcher) Search(ctx context.Context, _ string) (*discovery.Metadata, error) {
	c.calls++
	c.cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return webMeta(10), nil
}

func TestRunFinishesCurrentFileWhenInterrupted(t *testing.T) {
	h := newHarness(t)
	h.book(t, "a.epub", 12)
	second := h.book(t, "b.epub", 12)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	searcher := &cancellingSearcher{cancel: cancel}
	h.deps.Searcher = searcher

	o, err := New(h.cfg, h.deps, logging.NewNop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	summary, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if searcher.calls != 1 || len(summary.Records) != 1 {
		t.Fatalf("expected one file processed, got %d records and %d searches", len(summary.Records), searcher.calls)
	}
	rec := summary.Records[0]
	if !rec.Web.Succeeded || rec.Reader.Status != status.Full {
		t.Fatalf("web lookup was cut short: web=%+v reader=%+v", rec.Web, rec.Reader)
	}
	want := filepath.Join(h.cfg.Paths.OutputBaseFolder, "Full", "[Full] Tiên-Nghịch - Nhĩ-Căn - Metruyencv.epub")
	if rec.Outcome.FinalPath != want {
		t.Fatalf("unexpected final path: got %q want %q", rec.Outcome.FinalPath, want)
	}
	if !h.deps.Ledger.IsProcessed("a.epub") || h.deps.Ledger.IsProcessed("b.epub") {
		t.Fatal("expected only the interrupted file in the ledger")
	}
	if _, err := os.Stat(second); err != nil {
		t.Fatalf("expected second file left in input: %v", err)
	}
}

func TestNewRequiresClassifierAndNormalizer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := New(cfg, Dependencies{}, logging.NewNop())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTargetName(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "all parts",
			rec: Record{
				Identity: Identity{Filename: "x.epub"},
				Web:      Web{NormalizedTitle: "Đấu Phá", Author: "Thiên Tàm", Source: "TruyenFull"},
				Reader:   Reader{Status: status.Ongoing},
			},
			want: "[Đang ra] Đấu-Phá - Thiên-Tàm - TruyenFull.epub",
		},
		{
			name: "unknown author omitted",
			rec: Record{
				Identity: Identity{Filename: "x.epub"},
				Analysis: Analysis{EmbeddedTitle: "Embedded"},
				Web:      Web{Author: "Unknown"},
				Reader:   Reader{Status: status.Unknown},
			},
			want: "[Unknown] Embedded.epub",
		},
		{
			name: "stem fallback with unsafe characters",
			rec: Record{
				Identity: Identity{Filename: "a:b?.epub"},
				Reader:   Reader{Status: status.Full},
			},
			want: "[Full] a-b-.epub",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			if got := targetName(&rec); got != tt.want {
				t.Fatalf("targetName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummaryCounts(t *testing.T) {
	s := Summary{Records: []Record{
		{Outcome: Outcome{FinalStatus: FinalOK}},
		{Outcome: Outcome{FinalStatus: FinalOK}},
		{Outcome: Outcome{FinalStatus: FinalError}},
	}}
	counts := s.Counts()
	if counts[FinalOK] != 2 || counts[FinalError] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if !strings.HasPrefix(dryRunPath("/out", "Full"), dryRunPrefix) {
		t.Fatal("expected dry-run prefix")
	}
}
