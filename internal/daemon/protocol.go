package daemon

import (
	"fmt"

	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/mirror"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodSearch = "search"
	MethodBuild  = "build"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Daemon-specific error codes.
const (
	ErrCodeNotActivated    = -32001
	ErrCodeOperationFailed = -32002
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the offsearch error code across the socket so clients
// can rebuild a typed error.
type ErrorData struct {
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// errorResponse maps an offsearch error onto a JSON-RPC error.
func errorResponse(id string, err error) Response {
	code := ErrCodeOperationFailed
	switch offerr.GetCode(err) {
	case offerr.ErrCodeNotActivated:
		code = ErrCodeNotActivated
	case offerr.ErrCodeInvalidInput, offerr.ErrCodeTypeConflict:
		code = ErrCodeInvalidParams
	}

	resp := NewErrorResponse(id, code, err.Error())
	if oe, ok := offerr.As(err); ok {
		resp.Error.Message = oe.Message
		resp.Error.Data = &ErrorData{Code: oe.Code, Suggestion: oe.Suggestion}
	}
	return resp
}

// toError converts a JSON-RPC error back into an offsearch error.
func (e *Error) toError(method string) error {
	if e.Data != nil && e.Data.Code != "" {
		oe := offerr.New(e.Data.Code, e.Message, nil)
		if e.Data.Suggestion != "" {
			oe = oe.WithSuggestion(e.Data.Suggestion)
		}
		return oe
	}
	return fmt.Errorf("%s failed: %s (code: %d)", method, e.Message, e.Code)
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Index is the mirrored index to search (required).
	Index string `json:"index"`

	// Query is the full-text query. Empty browses the index.
	Query string `json:"query"`

	// Limit is the maximum number of hits (0 uses the configured default).
	Limit int `json:"limit,omitempty"`

	// Offset skips the first hits.
	Offset int `json:"offset,omitempty"`
}

// Validate checks that required fields are present.
func (p *SearchParams) Validate() error {
	if p.Index == "" {
		return fmt.Errorf("index is required")
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return nil
}

// EngineQuery returns the engine query for p.
func (p SearchParams) EngineQuery() engine.Query {
	return engine.Query{Text: p.Query, Limit: p.Limit, Offset: p.Offset}
}

// BuildParams are the parameters for the build method.
type BuildParams struct {
	// Index is the mirrored index to build (required).
	Index string `json:"index"`

	// Source is a JSON or NDJSON file of records (required).
	Source string `json:"source"`

	// Mirrored turns on automatic refresh for the index.
	Mirrored bool `json:"mirrored,omitempty"`

	// Wait blocks the call until the build finishes.
	Wait bool `json:"wait,omitempty"`
}

// Validate checks that required fields are present.
func (p *BuildParams) Validate() error {
	if p.Index == "" {
		return fmt.Errorf("index is required")
	}
	if p.Source == "" {
		return fmt.Errorf("source is required")
	}
	return nil
}

// BuildResult reports a queued or finished build.
type BuildResult struct {
	Index     string `json:"index"`
	Task      uint64 `json:"task,omitempty"`
	Queued    bool   `json:"queued"`
	Watched   bool   `json:"watched,omitempty"`
	Documents int    `json:"documents,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Backend   string `json:"backend,omitempty"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running bool          `json:"running"`
	PID     int           `json:"pid"`
	Uptime  string        `json:"uptime"`
	Watcher string        `json:"watcher,omitempty"`
	Mirror  mirror.Status `json:"mirror"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
