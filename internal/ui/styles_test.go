package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStyles_HeaderIsBold(t *testing.T) {
	assert.True(t, DefaultStyles().Header.GetBold())
}

func TestNoColorStyles_RenderVerbatim(t *testing.T) {
	styles := NoColorStyles()

	assert.Equal(t, "x", styles.Header.Render("x"))
	assert.Equal(t, "x", styles.Error.Render("x"))
}

func TestGetStyles(t *testing.T) {
	assert.False(t, GetStyles(true).Header.GetBold())
	assert.True(t, GetStyles(false).Header.GetBold())
}
