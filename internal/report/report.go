package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"epubsort/internal/logging"
	"epubsort/internal/pipeline"
	"epubsort/internal/translation"
)

// Report file names inside the report directory.
const (
	HumanFile   = "HumanReport.xlsx"
	MachineFile = "MachineReport.xlsx"
)

const sheetName = "Report"

var humanHeaders = []string{
	"Tên truyện",
	"Tác giả",
	"Số chương (local)",
	"Tình trạng",
	"Thể loại dịch",
	"Trạng thái phân loại",
}

var translationNames = map[string]string{
	translation.LabelHuman:   "Người dịch",
	translation.LabelMachine: "Convert",
}

// machineColumns flattens a Record into named columns.
var machineColumns = []struct {
	header string
	value  func(pipeline.Record) any
}{
	{"original_filename", func(r pipeline.Record) any { return r.Identity.Filename }},
	{"file_path", func(r pipeline.Record) any { return r.Identity.Path }},
	{"validation_result", func(r pipeline.Record) any { return r.Validation.Result }},
	{"validation_error", func(r pipeline.Record) any { return r.Validation.Error }},
	{"classification_label", func(r pipeline.Record) any { return r.Classification.Label }},
	{"translation_type_raw", func(r pipeline.Record) any { return r.Classification.RawType }},
	{"classification_confidence", func(r pipeline.Record) any { return r.Classification.Confidence }},
	{"classification_method", func(r pipeline.Record) any { return r.Classification.Method }},
	{"classification_reason", func(r pipeline.Record) any { return r.Classification.Reason }},
	{"classification_status", func(r pipeline.Record) any { return r.Classification.Status }},
	{"chapter_count", func(r pipeline.Record) any { return r.Analysis.ChapterCount }},
	{"content_hash", func(r pipeline.Record) any { return r.Analysis.ContentHash }},
	{"file_size_mb", func(r pipeline.Record) any { return r.Analysis.FileSizeMB }},
	{"epub_title", func(r pipeline.Record) any { return r.Analysis.EmbeddedTitle }},
	{"epub_author", func(r pipeline.Record) any { return r.Analysis.EmbeddedAuthor }},
	{"language", func(r pipeline.Record) any { return r.Analysis.Language }},
	{"web_search_attempted", func(r pipeline.Record) any { return r.Web.Attempted }},
	{"web_search_success", func(r pipeline.Record) any { return r.Web.Succeeded }},
	{"captcha_blocked", func(r pipeline.Record) any { return r.Web.CaptchaBlocked }},
	{"canonical_title", func(r pipeline.Record) any { return r.Web.NormalizedTitle }},
	{"web_title", func(r pipeline.Record) any { return r.Web.Title }},
	{"web_author", func(r pipeline.Record) any { return r.Web.Author }},
	{"web_status", func(r pipeline.Record) any { return r.Web.StatusRaw }},
	{"web_chapters", func(r pipeline.Record) any { return r.Web.Chapters }},
	{"web_source", func(r pipeline.Record) any { return r.Web.Source }},
	{"web_url", func(r pipeline.Record) any { return r.Web.URL }},
	{"is_duplicate", func(r pipeline.Record) any { return r.Duplicate.IsDuplicate }},
	{"duplicate_of", func(r pipeline.Record) any { return r.Duplicate.Of }},
	{"reader_status", func(r pipeline.Record) any { return r.Reader.Status }},
	{"status_confidence", func(r pipeline.Record) any { return r.Reader.Confidence }},
	{"status_reason", func(r pipeline.Record) any { return r.Reader.Reason }},
	{"final_status", func(r pipeline.Record) any { return r.Outcome.FinalStatus }},
	{"final_path", func(r pipeline.Record) any { return r.Outcome.FinalPath }},
	{"final_filename", func(r pipeline.Record) any { return r.Outcome.FinalFilename }},
	{"error_type", func(r pipeline.Record) any { return r.Outcome.ErrorType }},
	{"error_message", func(r pipeline.Record) any { return r.Outcome.ErrorMessage }},
}

// HumanRows returns the human report rows for records, in input order.
func HumanRows(records []pipeline.Record) [][]any {
	var rows [][]any
	for _, rec := range records {
		if rec.Validation.Result != pipeline.ValidationOK {
			continue
		}
		kind, ok := translationNames[rec.Classification.Label]
		if !ok {
			continue
		}
		rows = append(rows, []any{
			rec.Analysis.EmbeddedTitle,
			rec.Analysis.EmbeddedAuthor,
			rec.Analysis.ChapterCount,
			rec.Reader.Status,
			kind,
			pipeline.ClassificationSuccess,
		})
	}
	return rows
}

// MachineRows returns one flattened row per record.
func MachineRows(records []pipeline.Record) [][]any {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(machineColumns))
		for i, col := range machineColumns {
			row[i] = col.value(rec)
		}
		rows = append(rows, row)
	}
	return rows
}

func machineHeaders() []string {
	headers := make([]string, len(machineColumns))
	for i, col := range machineColumns {
		headers[i] = col.header
	}
	return headers
}

// WriteHuman writes the human report to path and returns the row count.
// Nothing is written when no record qualifies.
func WriteHuman(path string, records []pipeline.Record) (int, error) {
	rows := HumanRows(records)
	if len(rows) == 0 {
		return 0, nil
	}
	return len(rows), writeSheet(path, humanHeaders, rows)
}

// WriteMachine writes every record to path.
func WriteMachine(path string, records []pipeline.Record) error {
	return writeSheet(path, machineHeaders(), MachineRows(records))
}

// WriteAll writes both reports into dir. Each failure is logged and joined
// into the returned error; one report failing does not stop the other.
func WriteAll(dir string, records []pipeline.Record, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "report")
	if len(records) == 0 {
		logger.Warn("no results to report")
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	var errs []error
	humanPath := filepath.Join(dir, HumanFile)
	count, err := WriteHuman(humanPath, records)
	switch {
	case err != nil:
		logging.ErrorWithContext(logger, "failed to save human report", "report_failed",
			logging.String("path", humanPath), logging.Error(err))
		errs = append(errs, err)
	case count == 0:
		logger.Info("no successfully classified books for human report")
	default:
		logger.Info("human report saved", logging.String("path", humanPath), logging.Int("books", count))
	}

	machinePath := filepath.Join(dir, MachineFile)
	if err := WriteMachine(machinePath, records); err != nil {
		logging.ErrorWithContext(logger, "failed to save machine report", "report_failed",
			logging.String("path", machinePath), logging.Error(err))
		errs = append(errs, err)
	} else {
		logger.Info("machine report saved", logging.String("path", machinePath), logging.Int("files", len(records)))
	}
	return errors.Join(errs...)
}

func writeSheet(path string, headers []string, rows [][]any) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}
