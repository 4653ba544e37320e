package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes recorded on failed files. Each maps to one ErrorType string.
var (
	ErrInput  = errors.New("input error")
	ErrAI     = errors.New("ai error")
	ErrWeb    = errors.New("web error")
	ErrLogic  = errors.New("logic error")
	ErrSystem = errors.New("system error")
)

// Finer markers that still classify under one of the classes above.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes phase context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrSystem
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorType maps an error to the string stored in a record's error_type field.
// Unclassified errors are system errors.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput), errors.Is(err, ErrValidation):
		return "input_error"
	case errors.Is(err, ErrAI):
		return "ai_error"
	case errors.Is(err, ErrWeb):
		return "web_error"
	case errors.Is(err, ErrLogic):
		return "logic_error"
	default:
		return "system_error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
