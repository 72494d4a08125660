package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-friendly error message.
// If debug is true, the underlying cause is included.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	oe, ok := As(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(oe.Message)
	sb.WriteString("\n")

	if debug && oe.Cause != nil {
		sb.WriteString("Cause: ")
		sb.WriteString(oe.Cause.Error())
		sb.WriteString("\n")
	}

	if oe.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(oe.Suggestion)
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", oe.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	oe, ok := As(err)
	if !ok {
		oe = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", oe.Message))
	if oe.Cause != nil && oe.Cause.Error() != oe.Message {
		sb.WriteString(fmt.Sprintf("  Cause: %s\n", oe.Cause.Error()))
	}
	if oe.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", oe.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", oe.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	oe, ok := As(err)
	if !ok {
		oe = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       oe.Code,
		Message:    oe.Message,
		Category:   string(oe.Category),
		Severity:   string(oe.Severity),
		Details:    oe.Details,
		Suggestion: oe.Suggestion,
		Retryable:  oe.Retryable,
	}
	if oe.Cause != nil {
		je.Cause = oe.Cause.Error()
	}

	return json.Marshal(je)
}

// LogAttrs formats an error as key-value pairs for slog.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	oe, ok := As(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", oe.Code,
		"error", oe.Error(),
		"category", string(oe.Category),
	}
	for k, v := range oe.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
