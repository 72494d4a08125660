package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not activated", offerr.NotActivated("search"), ErrCodeNotActivated},
		{"index missing", offerr.EngineError(offerr.ErrCodeIndexMissing, "p", nil), ErrCodeIndexNotFound},
		{"cancelled", offerr.Cancelled("search p", context.Canceled), ErrCodeTimeout},
		{"type conflict", offerr.TypeConflict("p", "plain", "mirrored"), ErrCodeInvalidParams},
		{"lock held is retryable", offerr.New(offerr.ErrCodeLockHeld, "busy", nil), ErrCodeUnavailable},
		{"engine failure", offerr.EngineError(offerr.ErrCodeEngineBuild, "p", nil), ErrCodeInternalError},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound},
		{"plain error", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)

			assert.Equal(t, tt.code, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("bad")

	assert.Same(t, orig, MapError(fmt.Errorf("wrapped: %w", orig)))
}

func TestMapError_MessageCarriesIndexAndSuggestion(t *testing.T) {
	err := offerr.New(offerr.ErrCodeNotMirrored, "index is not mirrored", nil).
		WithDetail("index", "products").
		WithSuggestion("Enable mirroring on the index first")

	got := MapError(err)

	assert.Equal(t, ErrCodeInvalidParams, got.Code)
	assert.Contains(t, got.Message, `"products"`)
	assert.Contains(t, got.Message, "Enable mirroring")
}

func TestMCPError_Error(t *testing.T) {
	assert.Equal(t, "MCP error -32602: bad", NewInvalidParamsError("bad").Error())
	assert.Contains(t, NewMethodNotFoundError("x").Message, "'x'")
}
