// Package mcp exposes mirrored indices to AI clients over the Model Context
// Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// Custom MCP error codes for offsearch.
const (
	// ErrCodeNotActivated indicates offline mode has not been enabled.
	ErrCodeNotActivated = -32001

	// ErrCodeIndexNotFound indicates the index has no local data yet.
	ErrCodeIndexNotFound = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeUnavailable indicates a transient failure worth retrying.
	ErrCodeUnavailable = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound indicates the requested tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if oe, ok := offerr.As(err); ok {
		return mapOffError(oe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapOffError(oe *offerr.OffError) *MCPError {
	message := oe.Message
	if idx := oe.Details["index"]; idx != "" {
		message = fmt.Sprintf("%s (index %q)", message, idx)
	}
	if oe.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", message, oe.Suggestion)
	}

	switch oe.Code {
	case offerr.ErrCodeNotActivated:
		return &MCPError{Code: ErrCodeNotActivated, Message: message}
	case offerr.ErrCodeIndexMissing, offerr.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case offerr.ErrCodeCancelled:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	}

	if oe.Category == offerr.CategoryUsage {
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	}
	if oe.Retryable {
		return &MCPError{Code: ErrCodeUnavailable, Message: message}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: message}
}
