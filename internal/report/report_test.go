package report_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"epubsort/internal/logging"
	"epubsort/internal/pipeline"
	"epubsort/internal/report"
	"epubsort/internal/translation"
)

func sampleRecords() []pipeline.Record {
	return []pipeline.Record{
		{
			Identity:       pipeline.Identity{Filename: "a.epub", Path: "/in/a.epub"},
			Validation:     pipeline.Validation{Result: pipeline.ValidationOK},
			Classification: pipeline.Classification{Label: translation.LabelHuman, Status: pipeline.ClassificationSuccess},
			Analysis:       pipeline.Analysis{ChapterCount: 120, EmbeddedTitle: "Tiên Nghịch", EmbeddedAuthor: "Nhĩ Căn"},
			Reader:         pipeline.Reader{Status: "Full"},
			Outcome:        pipeline.Outcome{FinalStatus: pipeline.FinalOK},
		},
		{
			Identity:       pipeline.Identity{Filename: "b.epub", Path: "/in/b.epub"},
			Validation:     pipeline.Validation{Result: pipeline.ValidationOK},
			Classification: pipeline.Classification{Label: translation.LabelMachine, Status: pipeline.ClassificationSuccess},
			Analysis:       pipeline.Analysis{ChapterCount: 40, EmbeddedTitle: "Đấu Phá"},
			Reader:         pipeline.Reader{Status: "Đang ra"},
			Outcome:        pipeline.Outcome{FinalStatus: pipeline.FinalOK},
		},
		{
			Identity:       pipeline.Identity{Filename: "c.epub", Path: "/in/c.epub"},
			Validation:     pipeline.Validation{Result: pipeline.ValidationOK},
			Classification: pipeline.Classification{Label: translation.LabelUnknown, Status: pipeline.ClassificationFailed},
			Outcome:        pipeline.Outcome{FinalStatus: pipeline.FinalClassificationUnknown},
		},
		{
			Identity:   pipeline.Identity{Filename: "d.epub", Path: "/in/d.epub"},
			Validation: pipeline.Validation{Result: pipeline.ValidationInvalid, Error: "Basic EPUB format validation failed"},
			Outcome:    pipeline.Outcome{FinalStatus: pipeline.FinalError, ErrorType: "input_error"},
		},
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows("Report")
	if err != nil {
		t.Fatalf("GetRows returned error: %v", err)
	}
	return rows
}

func TestWriteAllProducesBothReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "result")
	if err := report.WriteAll(dir, sampleRecords(), logging.NewNop()); err != nil {
		t.Fatalf("WriteAll returned error: %v", err)
	}

	human := readRows(t, filepath.Join(dir, report.HumanFile))
	if len(human) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d: %v", len(human), human)
	}
	if human[0][0] != "Tên truyện" || human[0][5] != "Trạng thái phân loại" {
		t.Fatalf("unexpected header: %v", human[0])
	}
	want := []string{"Tiên Nghịch", "Nhĩ Căn", "120", "Full", "Người dịch", "success"}
	for i, v := range want {
		if human[1][i] != v {
			t.Fatalf("human row 1 col %d: got %q want %q", i, human[1][i], v)
		}
	}
	if human[2][4] != "Convert" {
		t.Fatalf("expected Convert label, got %q", human[2][4])
	}

	machine := readRows(t, filepath.Join(dir, report.MachineFile))
	if len(machine) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(machine))
	}
	if machine[0][0] != "original_filename" {
		t.Fatalf("unexpected machine header: %v", machine[0])
	}
	if machine[4][0] != "d.epub" {
		t.Fatalf("expected failed file in machine report, got %v", machine[4])
	}
}

func TestWriteHumanSkipsWhenNothingQualifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), report.HumanFile)
	count, err := report.WriteHuman(path, sampleRecords()[2:])
	if err != nil {
		t.Fatalf("WriteHuman returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no file, stat err: %v", err)
	}
}

func TestMachineRowsFlattenEveryField(t *testing.T) {
	rows := report.MachineRows(sampleRecords()[:1])
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	var found bool
	for _, v := range rows[0] {
		if v == "Nhĩ Căn" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected embedded author in flattened row: %v", rows[0])
	}
}

func TestWriteAllWithoutRecordsWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "result")
	if err := report.WriteAll(dir, nil, logging.NewNop()); err != nil {
		t.Fatalf("WriteAll returned error: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no report dir, stat err: %v", err)
	}
}
