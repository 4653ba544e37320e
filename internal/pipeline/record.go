package pipeline

import (
	"epubsort/internal/status"
	"epubsort/internal/translation"
)

// Validation results.
const (
	ValidationPending = "pending"
	ValidationOK      = "ok"
	ValidationInvalid = "invalid_epub"
)

// Classification statuses.
const (
	ClassificationSuccess = "success"
	ClassificationFailed  = "failed"
	ClassificationNotRun  = "not_run"
)

// Final statuses.
const (
	FinalOK                    = "OK"
	FinalError                 = "Error"
	FinalClassificationUnknown = "ClassificationUnknown"
	FinalUnknown               = "Unknown"
)

const (
	corruptedSkipMessage  = "Corrupted EPUB (permanently skipped)"
	validationFailMessage = "Basic EPUB format validation failed"
	dryRunPrefix          = "[DRY-RUN] "
)

// Identity names the input file.
type Identity struct {
	Filename string
	Path     string
}

type Validation struct {
	Result string
	Error  string
}

type Classification struct {
	Label      string
	RawType    string
	Confidence float64
	Method     string
	Reason     string
	Status     string
}

// Analysis is what the EPUB itself says.
type Analysis struct {
	ChapterCount   int
	ContentHash    string
	FileSizeMB     float64
	EmbeddedTitle  string
	EmbeddedAuthor string
	Language       string
}

// Web holds the web lookup outcome. NormalizedTitle is the query title.
type Web struct {
	Attempted       bool
	Succeeded       bool
	CaptchaBlocked  bool
	Title           string
	Author          string
	StatusRaw       string
	Chapters        int
	Source          string
	URL             string
	NormalizedTitle string
}

type Duplicate struct {
	IsDuplicate bool
	Of          string
}

// Reader is the reader-facing completion status.
type Reader struct {
	Status     string
	Confidence float64
	Reason     string
}

type Outcome struct {
	FinalStatus   string
	FinalPath     string
	FinalFilename string
	ErrorType     string
	ErrorMessage  string
}

// Record is the full processing history of one file. Phases fill it in
// order; once returned from a run it is not modified.
type Record struct {
	Identity       Identity
	Validation     Validation
	Classification Classification
	Analysis       Analysis
	Web            Web
	Duplicate      Duplicate
	Reader         Reader
	Outcome        Outcome
}

func newRecord(filename, path string) Record {
	return Record{
		Identity:       Identity{Filename: filename, Path: path},
		Validation:     Validation{Result: ValidationPending},
		Classification: Classification{Label: translation.LabelUnknown, Status: ClassificationNotRun},
		Reader:         Reader{Status: status.Unknown},
		Outcome:        Outcome{FinalStatus: FinalUnknown},
	}
}
